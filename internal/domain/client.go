package domain

import (
	"context"

	"github.com/tambo-ai/tambo-go/internal/events"
)

// Client is the contract the decision loop consumes from an LLM completion
// backend. Implementations wrap provider SDKs or wire clients and translate
// their streaming output into CompletionChunks.
type Client interface {
	// Complete starts a streaming completion and returns a channel of chunks.
	// The channel MUST be closed by the implementation when the stream ends.
	// In-stream failures are delivered as a chunk with Err set, followed by
	// channel close. Cancellation is the caller's ctx.
	Complete(ctx context.Context, req CompletionRequest) (<-chan CompletionChunk, error)
}

// ToolChoice values reserved by the completion API. Anything else must name
// a tool present in the request's tool set.
const (
	ToolChoiceAuto     = "auto"
	ToolChoiceRequired = "required"
	ToolChoiceNone     = "none"
)

// CompletionRequest captures the normalized parameters for one streamed
// model invocation.
type CompletionRequest struct {
	Messages []Message
	Tools    []Tool
	// ToolChoice forces or forbids tool use: auto, required, none, or a tool
	// name.
	ToolChoice string
	// PromptTemplateName selects a provider-side prompt template, when the
	// backend supports one.
	PromptTemplateName string
	// PromptTemplateParams are substituted into the selected template.
	PromptTemplateParams map[string]string
	Model                string
	MaxTokens            int
	Temperature          float32
}

// CompletionChunk is one streamed item from the model: the provider's
// incremental response plus any base-protocol events it emitted alongside.
type CompletionChunk struct {
	Response LLMResponse
	// Events carries the raw agent-protocol events for this chunk; the loop
	// passes them through to its own consumers.
	Events []events.Event
	// Err reports an in-stream failure. The producer closes the channel
	// after delivering it.
	Err error
}

// LLMResponse is the provider response portion of a chunk.
type LLMResponse struct {
	// Message is the incremental assistant message for this chunk.
	Message ResponseMessage
	// Reasoning is provider reasoning text, when exposed.
	Reasoning string
	// ReasoningDurationMS reports how long the provider spent reasoning.
	ReasoningDurationMS int64
}

// ResponseMessage carries this chunk's text and tool-call state.
type ResponseMessage struct {
	// Content is the accumulated assistant text so far.
	Content string
	// ToolCalls lists in-flight tool invocations; the loop acts on the first.
	ToolCalls []StreamToolCall
}

// StreamToolCall is a provider tool call as observed mid-stream.
type StreamToolCall struct {
	// ID is the provider-assigned tool call identifier.
	ID string
	// Name is the tool's name; may arrive before any arguments do.
	Name string
	// Arguments is the raw accumulated argument JSON so far, possibly
	// truncated mid-token.
	Arguments string
	// ArgumentsDelta is the raw argument fragment new in this chunk.
	ArgumentsDelta string
	// Done reports that the provider has finished streaming this call's
	// arguments.
	Done bool
}

// FirstToolCall returns the first tool call of the chunk's message, or nil.
func (r LLMResponse) FirstToolCall() *StreamToolCall {
	if len(r.Message.ToolCalls) == 0 {
		return nil
	}
	return &r.Message.ToolCalls[0]
}

// Fetcher retrieves the content of an external resource referenced by a
// message. Implementations are keyed by ResourceRef.ServerKey.
type Fetcher interface {
	Fetch(ctx context.Context, uri string) (string, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, uri string) (string, error)

// Fetch implements Fetcher.
func (f FetcherFunc) Fetch(ctx context.Context, uri string) (string, error) {
	return f(ctx, uri)
}
