package openai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tambo-ai/tambo-go/internal/domain"
)

const defaultBaseURL = "https://api.openai.com/v1"

// ClientOption configures the client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL. Any endpoint speaking the chat
// completions dialect works.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// Client speaks the OpenAI chat completions API and adapts its SSE
// stream to completion chunks.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

var _ domain.Client = (*Client)(nil)

// NewClient creates a chat completions client.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Complete starts a streaming chat completion and adapts its chunks.
func (c *Client) Complete(ctx context.Context, req domain.CompletionRequest) (<-chan domain.CompletionChunk, error) {
	wireReq, err := buildRequest(req)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(wireReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(resp.Body)
		if apiErr := parseErrorResponse(respBody); apiErr != nil {
			return nil, apiErr
		}
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	out := make(chan domain.CompletionChunk)
	go c.streamReader(resp.Body, out)
	return out, nil
}

func buildRequest(req domain.CompletionRequest) (*chatRequest, error) {
	wireReq := &chatRequest{
		Model:         req.Model,
		MaxTokens:     req.MaxTokens,
		Stream:        true,
		StreamOptions: &streamOptions{IncludeUsage: true},
	}
	if req.Temperature != 0 {
		temp := req.Temperature
		wireReq.Temperature = &temp
	}

	for _, msg := range req.Messages {
		wm := chatMessage{
			Role:       string(msg.Role),
			Content:    msg.Text(),
			ToolCallID: msg.ToolCallID,
		}
		if msg.Role == domain.RoleAssistant && msg.ToolCallRequest != nil {
			args := make(map[string]any, len(msg.ToolCallRequest.Parameters))
			for _, p := range msg.ToolCallRequest.Parameters {
				args[p.Name] = p.Value
			}
			rawArgs, err := json.Marshal(args)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal tool call arguments: %w", err)
			}
			wm.ToolCalls = []wireToolCall{{
				ID:   msg.ToolCallID,
				Type: "function",
				Function: wireFunctionCall{
					Name:      msg.ToolCallRequest.ToolName,
					Arguments: string(rawArgs),
				},
			}}
		}
		wireReq.Messages = append(wireReq.Messages, wm)
	}

	for _, tool := range req.Tools {
		wireReq.Tools = append(wireReq.Tools, wireTool{
			Type: "function",
			Function: wireFunction{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Parameters,
			},
		})
	}

	switch req.ToolChoice {
	case "", domain.ToolChoiceAuto:
		// Provider default.
	case domain.ToolChoiceRequired, domain.ToolChoiceNone:
		wireReq.ToolChoice = req.ToolChoice
	default:
		wireReq.ToolChoice = map[string]any{
			"type":     "function",
			"function": map[string]any{"name": req.ToolChoice},
		}
	}

	return wireReq, nil
}

// streamState accumulates the assistant message across SSE chunks.
type streamState struct {
	content   strings.Builder
	reasoning strings.Builder
	calls     []*callState
	byIndex   map[int]*callState
}

type callState struct {
	id   string
	name string
	args strings.Builder
	done bool
}

func (c *Client) streamReader(body io.ReadCloser, out chan<- domain.CompletionChunk) {
	defer close(out)
	defer body.Close()

	st := &streamState{byIndex: make(map[int]*callState)}

	scanner := bufio.NewScanner(body)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			return
		}

		var chunk chatChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			out <- domain.CompletionChunk{Err: fmt.Errorf("failed to unmarshal chunk: %w", err)}
			return
		}

		if item, ok := st.apply(chunk); ok {
			out <- item
		}
	}

	if err := scanner.Err(); err != nil {
		out <- domain.CompletionChunk{Err: fmt.Errorf("stream read error: %w", err)}
	}
}

// apply folds one wire chunk into the accumulated state and produces the
// corresponding completion chunk. Usage-only chunks yield nothing.
func (st *streamState) apply(chunk chatChunk) (domain.CompletionChunk, bool) {
	if len(chunk.Choices) == 0 {
		return domain.CompletionChunk{}, false
	}
	choice := chunk.Choices[0]

	st.content.WriteString(choice.Delta.Content)
	st.reasoning.WriteString(choice.Delta.Reasoning)

	deltas := make(map[*callState]string)
	for _, tc := range choice.Delta.ToolCalls {
		cs, ok := st.byIndex[tc.Index]
		if !ok {
			cs = &callState{}
			st.byIndex[tc.Index] = cs
			st.calls = append(st.calls, cs)
		}
		if tc.ID != "" {
			cs.id = tc.ID
		}
		if tc.Function != nil {
			if tc.Function.Name != "" {
				cs.name = tc.Function.Name
			}
			if tc.Function.Arguments != "" {
				cs.args.WriteString(tc.Function.Arguments)
				deltas[cs] += tc.Function.Arguments
			}
		}
	}

	if choice.FinishReason != nil && *choice.FinishReason != "" {
		for _, cs := range st.calls {
			cs.done = true
		}
	}

	msg := domain.ResponseMessage{Content: st.content.String()}
	for _, cs := range st.calls {
		msg.ToolCalls = append(msg.ToolCalls, domain.StreamToolCall{
			ID:             cs.id,
			Name:           cs.name,
			Arguments:      cs.args.String(),
			ArgumentsDelta: deltas[cs],
			Done:           cs.done,
		})
	}

	return domain.CompletionChunk{
		Response: domain.LLMResponse{
			Message:   msg,
			Reasoning: st.reasoning.String(),
		},
	}, true
}
