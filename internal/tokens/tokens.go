// Package tokens estimates prompt sizes for OpenAI-family models using
// tiktoken encodings. Counts follow OpenAI's published per-message
// overhead for chat completions.
package tokens

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/tiktoken-go/tokenizer"

	"github.com/tambo-ai/tambo-go/internal/domain"
)

// Counter counts prompt tokens for chat completion requests. It caches
// tokenizer codecs by encoding, so a single Counter is safe and cheap to
// share across requests.
type Counter struct {
	mu    sync.RWMutex
	cache map[tokenizer.Encoding]tokenizer.Codec
}

// NewCounter creates a token counter with an empty codec cache.
func NewCounter() *Counter {
	return &Counter{cache: make(map[tokenizer.Encoding]tokenizer.Codec)}
}

func (c *Counter) codec(model string) (tokenizer.Codec, error) {
	if codec, err := tokenizer.ForModel(mapModelName(model)); err == nil {
		return codec, nil
	}

	encoding := modelToEncoding(model)

	c.mu.RLock()
	if cached, ok := c.cache[encoding]; ok {
		c.mu.RUnlock()
		return cached, nil
	}
	c.mu.RUnlock()

	codec, err := tokenizer.Get(encoding)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.cache[encoding] = codec
	c.mu.Unlock()
	return codec, nil
}

// CountMessages returns the estimated prompt token count for a chat
// completion built from msgs, including per-message framing overhead.
func (c *Counter) CountMessages(model string, msgs []domain.Message) (int, error) {
	codec, err := c.codec(model)
	if err != nil {
		return 0, err
	}

	// Per OpenAI's chat format accounting: 3 tokens of framing per
	// message, 1 for the role, and 3 priming the assistant reply.
	const tokensPerMessage = 3
	const tokensPerRole = 1

	total := 0
	for _, msg := range msgs {
		total += tokensPerMessage + tokensPerRole
		total += c.countText(codec, msg.Text())
		if msg.ToolCallRequest != nil {
			total += c.countText(codec, msg.ToolCallRequest.ToolName)
			if args, err := json.Marshal(msg.ToolCallRequest.Parameters); err == nil {
				total += c.countText(codec, string(args))
			}
			total += 3
		}
	}
	total += 3

	return total, nil
}

func (c *Counter) countText(codec tokenizer.Codec, text string) int {
	if text == "" {
		return 0
	}
	ids, _, err := codec.Encode(text)
	if err != nil {
		return 0
	}
	return len(ids)
}

func mapModelName(model string) tokenizer.Model {
	model = strings.ToLower(model)

	switch {
	case strings.HasPrefix(model, "gpt-5-mini"):
		return tokenizer.GPT5Mini
	case strings.HasPrefix(model, "gpt-5-nano"):
		return tokenizer.GPT5Nano
	case strings.HasPrefix(model, "gpt-5"):
		return tokenizer.GPT5
	case strings.HasPrefix(model, "gpt-4.1"):
		return tokenizer.GPT41
	case strings.HasPrefix(model, "gpt-4o"):
		return tokenizer.GPT4o
	case strings.HasPrefix(model, "o1"):
		if strings.Contains(model, "mini") {
			return tokenizer.O1Mini
		}
		return tokenizer.O1
	case strings.HasPrefix(model, "o3"):
		if strings.Contains(model, "mini") {
			return tokenizer.O3Mini
		}
		return tokenizer.O3
	case strings.HasPrefix(model, "o4"):
		return tokenizer.O4Mini
	case strings.HasPrefix(model, "gpt-4"):
		return tokenizer.GPT4
	case strings.HasPrefix(model, "gpt-3.5"):
		return tokenizer.GPT35Turbo
	default:
		// Unknown models fall through to the encoding fallback.
		return tokenizer.Model(model)
	}
}

func modelToEncoding(model string) tokenizer.Encoding {
	model = strings.ToLower(model)

	switch {
	case strings.HasPrefix(model, "gpt-4-"), model == "gpt-4",
		strings.HasPrefix(model, "gpt-3.5"), strings.HasPrefix(model, "text-embedding"):
		return tokenizer.Cl100kBase
	default:
		// Newer and unknown models default to o200k_base.
		return tokenizer.O200kBase
	}
}
