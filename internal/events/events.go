// Package events defines the custom event protocol the decision loop emits on
// top of the base agent event stream. Custom events share a common envelope
// {type: "CUSTOM", name, value, timestamp} and a fixed name vocabulary; base
// protocol events pass through untouched as Raw values.
//
// A client reconstructs live tool-call argument state by replaying
// ToolCallArgsDelta.Operations in arrival order, overlaying StreamingStatus,
// and committing to ToolCallEnd.FinalArgs when the call's stream ends.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/tambo-ai/tambo-go/internal/jsonpatch"
)

// TypeCustom is the envelope type shared by every custom event.
const TypeCustom = "CUSTOM"

// Name identifies a custom event. The vocabulary is fixed; consumers switch
// on it to decode the payload.
type Name string

const (
	ComponentStartName      Name = "tambo.component.start"
	ComponentPropsDeltaName Name = "tambo.component.props_delta"
	ComponentStateDeltaName Name = "tambo.component.state_delta"
	ComponentEndName        Name = "tambo.component.end"
	RunAwaitingInputName    Name = "tambo.run.awaiting_input"
	MessageParentName       Name = "tambo.message.parent"
	ToolCallArgsDeltaName   Name = "tambo.tool_call.args_delta"
	ToolCallEndName         Name = "tambo.tool_call.end"
)

// StreamStatus is the per-property lifecycle label attached to streamed
// tool-call arguments.
type StreamStatus string

const (
	StatusStarted   StreamStatus = "started"
	StatusStreaming StreamStatus = "streaming"
	StatusDone      StreamStatus = "done"
)

// Event is implemented by everything that can appear on a decision-loop
// stream: Custom envelopes and Raw base-protocol passthroughs.
type Event interface {
	// EventType returns the wire-level event type ("CUSTOM" for envelopes,
	// the base protocol's own type string for Raw events).
	EventType() string
}

// Payload is implemented by each custom event value. The name ties the
// payload to its envelope; payloads are immutable once constructed.
type Payload interface {
	EventName() Name
}

// Custom is the envelope wrapped around every custom event value.
type Custom struct {
	// Name is the event's entry in the fixed vocabulary.
	Name Name
	// Value is the event-specific payload.
	Value Payload
	// Timestamp is wall-clock construction time in epoch milliseconds.
	Timestamp int64
	// Raw optionally carries the base-protocol event this custom event was
	// derived from, for passthrough to consumers that want it.
	Raw json.RawMessage
}

// New wraps a payload in its envelope, stamping the current wall-clock time.
func New(value Payload) Custom {
	return Custom{
		Name:      value.EventName(),
		Value:     value,
		Timestamp: time.Now().UnixMilli(),
	}
}

// EventType implements Event.
func (Custom) EventType() string { return TypeCustom }

// MarshalJSON emits the wire envelope.
func (c Custom) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type      string          `json:"type"`
		Name      Name            `json:"name"`
		Value     Payload         `json:"value"`
		Timestamp int64           `json:"timestamp"`
		RawEvent  json.RawMessage `json:"rawEvent,omitempty"`
	}{
		Type:      TypeCustom,
		Name:      c.Name,
		Value:     c.Value,
		Timestamp: c.Timestamp,
		RawEvent:  c.Raw,
	})
}

// UnmarshalJSON decodes a wire envelope, selecting the payload type by name.
func (c *Custom) UnmarshalJSON(data []byte) error {
	var wire struct {
		Type      string          `json:"type"`
		Name      Name            `json:"name"`
		Value     json.RawMessage `json:"value"`
		Timestamp int64           `json:"timestamp"`
		RawEvent  json.RawMessage `json:"rawEvent"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	if wire.Type != TypeCustom {
		return fmt.Errorf("events: unexpected envelope type %q", wire.Type)
	}
	payload, err := decodePayload(wire.Name, wire.Value)
	if err != nil {
		return err
	}
	c.Name = wire.Name
	c.Value = payload
	c.Timestamp = wire.Timestamp
	c.Raw = wire.RawEvent
	return nil
}

func decodePayload(name Name, data json.RawMessage) (Payload, error) {
	var payload Payload
	switch name {
	case ComponentStartName:
		payload = &ComponentStart{}
	case ComponentPropsDeltaName:
		payload = &ComponentPropsDelta{}
	case ComponentStateDeltaName:
		payload = &ComponentStateDelta{}
	case ComponentEndName:
		payload = &ComponentEnd{}
	case RunAwaitingInputName:
		payload = &RunAwaitingInput{}
	case MessageParentName:
		payload = &MessageParent{}
	case ToolCallArgsDeltaName:
		payload = &ToolCallArgsDelta{}
	case ToolCallEndName:
		payload = &ToolCallEnd{}
	default:
		return nil, fmt.Errorf("events: unknown custom event name %q", name)
	}
	if err := json.Unmarshal(data, payload); err != nil {
		return nil, fmt.Errorf("events: failed to decode %s payload: %w", name, err)
	}
	return payload, nil
}

// Raw is a base agent-protocol event passed through unmodified.
type Raw struct {
	// Type is the base protocol's event type string (e.g.
	// "TEXT_MESSAGE_CONTENT").
	Type string `json:"type"`
	// Data is the full original event body.
	Data json.RawMessage `json:"data,omitempty"`
}

// EventType implements Event.
func (r Raw) EventType() string { return r.Type }

// ComponentStart announces that a UI component decision has begun streaming.
type ComponentStart struct {
	ComponentName string `json:"componentName"`
	ComponentID   string `json:"componentId"`
	ToolCallID    string `json:"toolCallId,omitempty"`
}

func (*ComponentStart) EventName() Name { return ComponentStartName }

// ComponentPropsDelta carries an incremental update to a component's props.
type ComponentPropsDelta struct {
	ComponentID string                `json:"componentId"`
	Operations  []jsonpatch.Operation `json:"operations"`
}

func (*ComponentPropsDelta) EventName() Name { return ComponentPropsDeltaName }

// ComponentStateDelta carries an incremental update to a component's state.
type ComponentStateDelta struct {
	ComponentID string                `json:"componentId"`
	Operations  []jsonpatch.Operation `json:"operations"`
}

func (*ComponentStateDelta) EventName() Name { return ComponentStateDeltaName }

// ComponentEnd marks a component decision as complete.
type ComponentEnd struct {
	ComponentID string `json:"componentId"`
}

func (*ComponentEnd) EventName() Name { return ComponentEndName }

// RunAwaitingInput signals that the run is paused for user input.
type RunAwaitingInput struct {
	MessageID string `json:"messageId,omitempty"`
}

func (*RunAwaitingInput) EventName() Name { return RunAwaitingInputName }

// MessageParent links a streamed message to its parent message.
type MessageParent struct {
	MessageID       string `json:"messageId"`
	ParentMessageID string `json:"parentMessageId"`
}

func (*MessageParent) EventName() Name { return MessageParentName }

// ToolCallArgsDelta bundles the patch operations produced by one processed
// argument fragment, plus a snapshot of the per-property streaming status.
type ToolCallArgsDelta struct {
	ToolCallID      string                  `json:"toolCallId"`
	Operations      []jsonpatch.Operation   `json:"operations"`
	StreamingStatus map[string]StreamStatus `json:"streamingStatus"`
}

func (*ToolCallArgsDelta) EventName() Name { return ToolCallArgsDeltaName }

// ToolCallEnd carries the final, strictly parsed argument object for a
// completed tool call.
type ToolCallEnd struct {
	ToolCallID string         `json:"toolCallId"`
	FinalArgs  map[string]any `json:"finalArgs"`
}

func (*ToolCallEnd) EventName() Name { return ToolCallEndName }
