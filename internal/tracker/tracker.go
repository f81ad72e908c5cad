// Package tracker converts a streamed sequence of raw JSON argument
// fragments into structural patch operations plus a per-property streaming
// lifecycle, and produces the final clean argument object once the stream
// ends.
//
// One Tracker is exclusively owned by one in-flight tool call. Feed each
// argument fragment to ProcessDelta as it arrives; call Finalize exactly once
// when the provider reports the call's argument stream complete.
package tracker

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"reflect"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/tambo-ai/tambo-go/internal/events"
	"github.com/tambo-ai/tambo-go/internal/jsonpatch"
	"github.com/tambo-ai/tambo-go/internal/partialjson"
	"github.com/tambo-ai/tambo-go/internal/unstrict"
)

// MaxAccumulatedSize caps the raw JSON a single tool call may accumulate.
// Exceeding it is fatal for that tool call.
const MaxAccumulatedSize = 10 * 1024 * 1024

// Option configures a Tracker.
type Option func(*Tracker)

// WithLogger sets the logger used for non-fatal diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) { t.logger = logger }
}

// WithSchemaValidation enables best-effort validation of the final argument
// object against the tool schema at Finalize. Validation failures are logged,
// not fatal: by the time the stream is complete the arguments are what they
// are, and the executor surfaces schema mismatches on its own terms.
func WithSchemaValidation() Option {
	return func(t *Tracker) { t.validate = true }
}

// Tracker accumulates one tool call's streamed argument JSON and diffs each
// successive lenient parse against the previous one.
type Tracker struct {
	toolCallID string
	schema     map[string]any
	logger     *slog.Logger
	validate   bool

	buf      strings.Builder
	prevArgs map[string]any
	status   map[string]events.StreamStatus
	seen     map[string]bool
	order    []string // property keys in first-seen order
}

// New creates a tracker for a single tool call. schema is the tool's JSON
// Schema document (decoded to a map) used for unstrictification; it may be
// nil when the tool declares no parameters.
func New(toolCallID string, schema map[string]any, opts ...Option) *Tracker {
	t := &Tracker{
		toolCallID: toolCallID,
		schema:     schema,
		logger:     slog.Default(),
		status:     make(map[string]events.StreamStatus),
		seen:       make(map[string]bool),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// ToolCallID returns the tool call this tracker is bound to.
func (t *Tracker) ToolCallID() string { return t.toolCallID }

// AccumulatedJSON returns the raw buffer accumulated so far.
func (t *Tracker) AccumulatedJSON() string { return t.buf.String() }

// ProcessDelta appends a raw argument fragment and emits at most one
// args_delta event describing how the parsed argument object changed.
// Fragments that do not yet complete any new structure produce no events and
// no error; that is the expected state for most of a stream's lifetime.
func (t *Tracker) ProcessDelta(delta string) ([]events.Event, error) {
	t.buf.WriteString(delta)
	if t.buf.Len() > MaxAccumulatedSize {
		// The offending fragment stays in the raw buffer; only further
		// processing stops.
		return nil, fmt.Errorf("tool call %s: accumulated JSON exceeds maximum size of %d bytes", t.toolCallID, MaxAccumulatedSize)
	}

	parsed, err := partialjson.Parse(t.buf.String())
	if err != nil {
		// Truncated or not-yet-valid JSON: no new information this delta.
		return nil, nil
	}
	obj, ok := parsed.(map[string]any)
	if !ok {
		return nil, nil
	}
	args := unstrict.Apply(obj, t.schema)

	ops, fresh := t.diff(args)
	t.prevArgs = args
	if len(ops) == 0 {
		return nil, nil
	}

	// A new property starting implies the prior properties finished: models
	// fill object fields roughly in declaration order, so the arrival of a
	// fresh key flips every other tracked key to done. This is a heuristic,
	// not a guarantee.
	if len(fresh) > 0 {
		for key := range t.status {
			if !fresh[key] {
				t.status[key] = events.StatusDone
			}
		}
	}

	evt := events.New(&events.ToolCallArgsDelta{
		ToolCallID:      t.toolCallID,
		Operations:      ops,
		StreamingStatus: maps.Clone(t.status),
	})
	return []events.Event{evt}, nil
}

// diff compares args against the previous parse, returning patch operations
// and the set of keys that appeared for the first time in this delta.
func (t *Tracker) diff(args map[string]any) ([]jsonpatch.Operation, map[string]bool) {
	var ops []jsonpatch.Operation

	// Known keys first, in first-seen order: late-joins, value changes,
	// removals.
	for _, key := range t.order {
		cur, inCur := args[key]
		prev, inPrev := t.prevArgs[key]
		switch {
		case inCur && !inPrev:
			// Seen before but absent from the previous parse.
			ops = append(ops, jsonpatch.Add(key, cur))
			if t.status[key] != events.StatusDone {
				t.status[key] = events.StatusStreaming
			}
		case inCur && !reflect.DeepEqual(cur, prev):
			ops = append(ops, jsonpatch.Replace(key, cur))
			if t.status[key] != events.StatusDone {
				t.status[key] = events.StatusStreaming
			}
		case !inCur && inPrev:
			ops = append(ops, jsonpatch.Remove(key))
			delete(t.status, key)
		}
	}

	// Then keys never seen before. The partial parser hands back a Go map, so
	// arrival order within a single fragment is not observable; lexical order
	// keeps the emitted operations deterministic.
	var freshKeys []string
	for key := range args {
		if !t.seen[key] {
			freshKeys = append(freshKeys, key)
		}
	}
	sort.Strings(freshKeys)

	fresh := make(map[string]bool, len(freshKeys))
	for _, key := range freshKeys {
		ops = append(ops, jsonpatch.Add(key, args[key]))
		t.status[key] = events.StatusStarted
		t.seen[key] = true
		t.order = append(t.order, key)
		fresh[key] = true
	}
	return ops, fresh
}

// Finalize performs the one strict parse of the accumulated buffer, forces
// every tracked property to done, and emits the tool_call.end event carrying
// the clean final argument object. By this point the argument stream is
// claimed complete, so a parse failure is an error, not a retryable state.
// Callers invoke Finalize exactly once per tool call.
func (t *Tracker) Finalize() ([]events.Event, error) {
	var parsed any
	if err := json.Unmarshal([]byte(t.buf.String()), &parsed); err != nil {
		return nil, fmt.Errorf("tool call %s: failed to parse final JSON: %w", t.toolCallID, err)
	}
	obj, ok := parsed.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("tool call %s: failed to parse final JSON: value is %T, not an object", t.toolCallID, parsed)
	}
	args := unstrict.Apply(obj, t.schema)

	if t.validate && len(t.schema) > 0 {
		if err := validateAgainstSchema(args, t.schema); err != nil {
			t.logger.Warn("final tool arguments do not satisfy the tool schema",
				slog.String("tool_call_id", t.toolCallID),
				slog.String("error", err.Error()))
		}
	}

	for key := range t.status {
		t.status[key] = events.StatusDone
	}

	evt := events.New(&events.ToolCallEnd{
		ToolCallID: t.toolCallID,
		FinalArgs:  args,
	})
	return []events.Event{evt}, nil
}

// StreamingStatus returns a snapshot of the per-property status map.
func (t *Tracker) StreamingStatus() map[string]events.StreamStatus {
	return maps.Clone(t.status)
}

func validateAgainstSchema(args map[string]any, schemaDoc map[string]any) error {
	c := jsonschema.NewCompiler()
	if err := c.AddResource("schema.json", schemaDoc); err != nil {
		return fmt.Errorf("add schema resource: %w", err)
	}
	schema, err := c.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var doc any = args
	return schema.Validate(doc)
}
