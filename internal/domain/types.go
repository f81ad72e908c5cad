// Package domain holds the provider-agnostic types the decision loop
// operates on: thread messages, tool definitions, tool-call requests, and
// the accumulated component decision.
package domain

import (
	"time"
)

// Role identifies the author of a thread message.
type Role string

const (
	RoleUser      Role = "user"
	RoleSystem    Role = "system"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ContentPartType discriminates message content parts.
type ContentPartType string

const (
	ContentTypeText     ContentPartType = "text"
	ContentTypeImage    ContentPartType = "image_url"
	ContentTypeAudio    ContentPartType = "input_audio"
	ContentTypeResource ContentPartType = "resource"
)

// ContentPart is one entry in a message's ordered content list.
type ContentPart struct {
	Type ContentPartType `json:"type"`
	// Text carries the part body for text parts, and the inlined fetched
	// content for resolved resource parts.
	Text string `json:"text,omitempty"`
	// MediaURL references external media for image/audio parts.
	MediaURL string `json:"media_url,omitempty"`
	// Resource identifies an external resource to be prefetched before the
	// loop starts. ServerKey selects the fetcher; URI is passed to it.
	Resource *ResourceRef `json:"resource,omitempty"`
}

// ResourceRef points at an external resource referenced by a message.
type ResourceRef struct {
	ServerKey string `json:"server_key"`
	URI       string `json:"uri"`
}

// Message is one entry in a thread's history. Messages are constructed
// upstream and read-only within the core.
type Message struct {
	ID       string        `json:"id"`
	ThreadID string        `json:"thread_id"`
	Role     Role          `json:"role"`
	Content  []ContentPart `json:"content"`
	// ToolCallID links tool messages (and assistant tool-call messages) to
	// the tool invocation they belong to. Required for Role == tool.
	ToolCallID string `json:"tool_call_id,omitempty"`
	// ToolCallRequest is present on assistant messages that requested a tool
	// call; an assistant message carrying ToolCallID must carry it.
	ToolCallRequest *ToolCallRequest `json:"tool_call_request,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
}

// Text concatenates the message's text parts.
func (m Message) Text() string {
	var out string
	for _, part := range m.Content {
		if part.Type == ContentTypeText {
			out += part.Text
		}
	}
	return out
}

// TextMessage builds a single-text-part message.
func TextMessage(threadID string, role Role, text string) Message {
	return Message{
		ThreadID:  threadID,
		Role:      role,
		Content:   []ContentPart{{Type: ContentTypeText, Text: text}},
		CreatedAt: time.Now(),
	}
}

// Parameter is one named argument of a tool invocation.
type Parameter struct {
	Name  string `json:"parameterName"`
	Value any    `json:"parameterValue"`
}

// ToolCallRequest is the normalized representation of a tool invocation,
// independent of any provider wire format.
type ToolCallRequest struct {
	ToolName   string      `json:"toolName"`
	Parameters []Parameter `json:"parameters"`
}

// Tool describes a tool exposed to the model. Parameters is the tool's JSON
// Schema document decoded to a map.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters"`
}

// ComponentDecision is the mutable accumulator for one conversation turn:
// the best current understanding of what the assistant is saying and doing,
// merged from every streamed delta seen so far.
type ComponentDecision struct {
	// Message is the display text resolved for this turn. Never empty once
	// the loop has yielded at least one item; a single space stands in when
	// the model supplied nothing.
	Message string `json:"message"`
	// ComponentName names the UI component chosen by a UI tool call. Empty
	// when no UI tool was chosen.
	ComponentName string `json:"componentName,omitempty"`
	// ComponentID is assigned once when the component decision starts
	// streaming and survives deltas that do not reiterate it.
	ComponentID string `json:"componentId,omitempty"`
	// Props is the current best-known argument object for a UI tool.
	Props map[string]any `json:"props,omitempty"`
	// ToolCallRequest is the normalized in-flight tool invocation, built
	// best-effort even while its argument JSON is incomplete.
	ToolCallRequest *ToolCallRequest `json:"toolCallRequest,omitempty"`
	ToolCallID      string           `json:"toolCallId,omitempty"`
	// StatusMessage is shown while the tool call streams.
	StatusMessage string `json:"statusMessage,omitempty"`
	// CompleteStatusMessage is shown once the tool call finishes.
	CompleteStatusMessage string `json:"completeStatusMessage,omitempty"`
	// Reasoning carries provider reasoning text when available.
	Reasoning string `json:"reasoning,omitempty"`
}
