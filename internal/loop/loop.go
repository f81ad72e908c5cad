// Package loop drives one decision turn of a generative UI conversation.
//
// The driver sends the thread to a completion backend, watches the streamed
// response for tool calls, tracks UI tool arguments incrementally, and folds
// every delta into a single evolving component decision. Consumers range
// over the returned channel and render each item as the turn's current
// state.
package loop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tambo-ai/tambo-go/internal/domain"
	"github.com/tambo-ai/tambo-go/internal/events"
	"github.com/tambo-ai/tambo-go/internal/partialjson"
	"github.com/tambo-ai/tambo-go/internal/prompt"
	"github.com/tambo-ai/tambo-go/internal/resources"
	"github.com/tambo-ai/tambo-go/internal/sanitize"
	"github.com/tambo-ai/tambo-go/internal/tokens"
	"github.com/tambo-ai/tambo-go/internal/tools"
	"github.com/tambo-ai/tambo-go/internal/tracker"
)

// Option configures a Driver.
type Option func(*Driver)

// WithLogger sets the driver's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Driver) { d.logger = logger }
}

// WithFetchers registers resource fetchers keyed by server key.
func WithFetchers(fetchers map[string]domain.Fetcher) Option {
	return func(d *Driver) { d.fetchers = fetchers }
}

// WithTokenCounter enables prompt size estimation before each run.
func WithTokenCounter(counter *tokens.Counter) Option {
	return func(d *Driver) { d.counter = counter }
}

// WithModel sets the model passed to the completion backend.
func WithModel(model string) Option {
	return func(d *Driver) { d.model = model }
}

// WithMaxTokens caps the completion length.
func WithMaxTokens(n int) Option {
	return func(d *Driver) { d.maxTokens = n }
}

// WithSchemaValidation enables JSON Schema validation of finalized tool
// arguments. Violations are logged, never fatal.
func WithSchemaValidation() Option {
	return func(d *Driver) { d.validate = true }
}

// Driver runs decision turns against a completion backend.
type Driver struct {
	client    domain.Client
	fetchers  map[string]domain.Fetcher
	cache     *resources.Cache
	counter   *tokens.Counter
	logger    *slog.Logger
	tracer    trace.Tracer
	model     string
	maxTokens int
	validate  bool
}

// New creates a Driver over the given completion client.
func New(client domain.Client, opts ...Option) *Driver {
	d := &Driver{
		client: client,
		cache:  resources.NewCache(),
		logger: slog.Default(),
		tracer: otel.Tracer("tambo-go/loop"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Request describes one decision turn.
type Request struct {
	// Messages is the thread history, oldest first. Must be non-empty and
	// the first message must carry the thread identifier.
	Messages []domain.Message
	// Tools are the UI and action tools available this turn, without the
	// standard parameters; the driver injects those.
	Tools []domain.Tool
	// ToolChoice forces or forbids tool use. Empty means auto.
	ToolChoice string
	// CustomInstructions are appended to the system prompt.
	CustomInstructions string
}

// Item is one streamed result of a decision turn.
type Item struct {
	// Decision is a snapshot of the turn's accumulated state. Safe to
	// retain; later items never mutate it.
	Decision domain.ComponentDecision
	// Events carries the protocol events produced for this delta.
	Events []events.Event
	// Err reports a failure that ended tracking of the current tool call.
	// The turn itself continues; subsequent items may follow.
	Err error
}

// Run starts a decision turn. Setup failures (empty thread, bad tool
// choice, unreachable resources, backend refusal) are returned
// synchronously; everything after the stream opens arrives on the channel,
// which the driver closes when the turn ends.
func (d *Driver) Run(ctx context.Context, req Request) (<-chan Item, error) {
	if len(req.Messages) == 0 {
		return nil, errors.New("decision loop requires at least one message")
	}
	threadID := req.Messages[0].ThreadID
	if threadID == "" {
		return nil, errors.New("first message must carry a thread id")
	}
	if err := tools.ValidateToolChoice(req.ToolChoice, req.Tools); err != nil {
		return nil, err
	}

	system := prompt.Build(req.CustomInstructions, req.Tools)
	messages := append(
		[]domain.Message{domain.TextMessage(threadID, domain.RoleSystem, system)},
		req.Messages...,
	)

	messages, err := d.cache.PrefetchAndCache(ctx, messages, d.fetchers)
	if err != nil {
		return nil, fmt.Errorf("failed to prefetch resources: %w", err)
	}

	if d.counter != nil {
		if n, err := d.counter.CountMessages(d.model, messages); err == nil {
			d.logger.Debug("estimated prompt tokens",
				slog.String("thread_id", threadID),
				slog.Int("tokens", n))
		}
	}

	ctx, span := d.tracer.Start(ctx, "loop.run",
		trace.WithAttributes(
			attribute.String("thread.id", threadID),
			attribute.Int("tools.count", len(req.Tools)),
		))

	stream, err := d.client.Complete(ctx, domain.CompletionRequest{
		Messages:   messages,
		Tools:      tools.InjectAll(req.Tools),
		ToolChoice: req.ToolChoice,
		Model:      d.model,
		MaxTokens:  d.maxTokens,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "completion failed to start")
		span.End()
		return nil, fmt.Errorf("failed to start completion: %w", err)
	}

	out := make(chan Item)
	go d.consume(span, req.Tools, stream, out)
	return out, nil
}

// turnState is the driver's working memory for one turn.
type turnState struct {
	decision  domain.ComponentDecision
	trackers  map[string]*tracker.Tracker
	order     []string
	started   map[string]bool
	finalized map[string]bool
	uiCall    map[string]bool
	toolName  map[string]string
}

func newTurnState() *turnState {
	return &turnState{
		trackers:  make(map[string]*tracker.Tracker),
		started:   make(map[string]bool),
		finalized: make(map[string]bool),
		uiCall:    make(map[string]bool),
		toolName:  make(map[string]string),
	}
}

// snapshot copies the decision so consumers can retain items safely.
func (st *turnState) snapshot() domain.ComponentDecision {
	dec := st.decision
	dec.Props = maps.Clone(dec.Props)
	if dec.ToolCallRequest != nil {
		tcr := *dec.ToolCallRequest
		tcr.Parameters = slices.Clone(tcr.Parameters)
		dec.ToolCallRequest = &tcr
	}
	return dec
}

func (d *Driver) consume(span trace.Span, available []domain.Tool, stream <-chan domain.CompletionChunk, out chan<- Item) {
	defer close(out)
	defer span.End()

	st := newTurnState()

	for chunk := range stream {
		if chunk.Err != nil {
			span.RecordError(chunk.Err)
			span.SetStatus(codes.Error, "stream failed")
			d.logger.Error("completion stream failed", slog.String("error", chunk.Err.Error()))
			out <- Item{Decision: st.snapshot(), Err: chunk.Err}
			return
		}

		item, ok := d.processChunk(st, available, chunk)
		if ok {
			out <- item
		}
	}

	// The provider may end the stream without flagging tool calls done.
	for _, id := range st.order {
		if st.finalized[id] {
			continue
		}
		evts, err := d.finalizeCall(st, available, id)
		out <- Item{Decision: st.snapshot(), Events: evts, Err: err}
	}

	end := events.New(&events.RunAwaitingInput{})
	out <- Item{Decision: st.snapshot(), Events: []events.Event{end}}
}

// processChunk folds one chunk into the turn state. A panic while handling
// a delta is contained and logged; the stream moves on.
func (d *Driver) processChunk(st *turnState, available []domain.Tool, chunk domain.CompletionChunk) (item Item, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("panic while processing stream delta", slog.Any("panic", r))
			item, ok = Item{}, false
		}
	}()

	evts := slices.Clone(chunk.Events)
	resp := chunk.Response

	var reserved tools.ReservedArgs
	var callErr error

	tc := resp.FirstToolCall()
	if tc != nil && tc.Name != "" {
		var callEvts []events.Event
		callEvts, reserved, callErr = d.processToolCall(st, available, tc)
		evts = append(evts, callEvts...)
	}

	// Display text: the model's own text wins, a reserved message argument
	// backfills it, and a single space stands in for silence.
	text := sanitize.Clean(resp.Message.Content)
	if text == "" {
		text = reserved.Message
	}
	if text == "" && st.decision.Message != "" {
		text = st.decision.Message
	}
	if text == "" {
		text = " "
	}
	st.decision.Message = text

	if resp.Reasoning != "" {
		st.decision.Reasoning = resp.Reasoning
	}
	if reserved.StatusMessage != "" {
		st.decision.StatusMessage = reserved.StatusMessage
	}
	if reserved.CompleteStatusMessage != "" {
		st.decision.CompleteStatusMessage = reserved.CompleteStatusMessage
	}

	if id := componentIDFromEvents(evts); id != "" {
		st.decision.ComponentID = id
	}

	return Item{Decision: st.snapshot(), Events: evts, Err: callErr}, true
}

// processToolCall advances the tracker for tc and merges its best-effort
// argument view into the decision. The returned error reports a failure
// that aborted tracking of this call.
func (d *Driver) processToolCall(st *turnState, available []domain.Tool, tc *domain.StreamToolCall) ([]events.Event, tools.ReservedArgs, error) {
	var evts []events.Event
	var reserved tools.ReservedArgs

	callID := tc.ID
	if callID == "" {
		callID = tc.Name
	}

	tr := st.trackers[callID]
	if tr == nil && !st.finalized[callID] {
		// A new call supersedes any still-open earlier one.
		for _, prev := range st.order {
			if !st.finalized[prev] {
				prevEvts, err := d.finalizeCall(st, available, prev)
				evts = append(evts, prevEvts...)
				if err != nil {
					d.logger.Error("failed to finalize superseded tool call",
						slog.String("tool_call_id", prev),
						slog.String("error", err.Error()))
				}
			}
		}

		schema := toolSchema(tc.Name, available)
		opts := []tracker.Option{tracker.WithLogger(d.logger)}
		if d.validate {
			opts = append(opts, tracker.WithSchemaValidation())
		}
		tr = tracker.New(callID, schema, opts...)
		st.trackers[callID] = tr
		st.order = append(st.order, callID)
		st.uiCall[callID] = tools.IsUITool(tc.Name)
		st.toolName[callID] = tc.Name
	}

	isUI := st.uiCall[callID]
	if isUI && !st.started[callID] {
		st.started[callID] = true
		evts = append(evts, events.New(&events.ComponentStart{
			ComponentName: tools.ComponentName(tc.Name),
			ComponentID:   uuid.NewString(),
			ToolCallID:    callID,
		}))
	}

	if tr == nil {
		// Tracking of this call already ended.
		return evts, reserved, nil
	}

	if tc.ArgumentsDelta != "" {
		deltaEvts, err := tr.ProcessDelta(tc.ArgumentsDelta)
		evts = append(evts, deltaEvts...)
		if err != nil {
			st.finalized[callID] = true
			delete(st.trackers, callID)
			return evts, reserved, err
		}
	}

	reserved = d.mergeCallIntoDecision(st, tc.Name, callID, tr.AccumulatedJSON(), isUI)

	if tc.Done && !st.finalized[callID] {
		endEvts, err := d.finalizeCall(st, available, callID)
		evts = append(evts, endEvts...)
		if err != nil {
			return evts, reserved, err
		}
	}

	return evts, reserved, nil
}

// mergeCallIntoDecision refreshes the decision's tool call view from the
// accumulated argument buffer, leniently parsed.
func (d *Driver) mergeCallIntoDecision(st *turnState, toolName, callID, accumulated string, isUI bool) tools.ReservedArgs {
	var reserved tools.ReservedArgs

	st.decision.ToolCallID = callID
	if isUI {
		st.decision.ComponentName = tools.ComponentName(toolName)
	}

	parsed, err := partialjson.Parse(accumulated)
	if err != nil {
		if !errors.Is(err, partialjson.ErrIncomplete) {
			d.logger.Debug("accumulated tool arguments unparsable",
				slog.String("tool_call_id", callID),
				slog.String("error", err.Error()))
		}
		return reserved
	}
	args, ok := parsed.(map[string]any)
	if !ok {
		return reserved
	}

	var cleaned map[string]any
	reserved, cleaned = tools.ExtractReserved(args)

	st.decision.ToolCallRequest = toolCallRequest(toolName, cleaned)
	if isUI {
		st.decision.Props = cleaned
	}
	return reserved
}

// finalizeCall closes a tool call's tracker and commits its final
// arguments to the decision.
func (d *Driver) finalizeCall(st *turnState, available []domain.Tool, callID string) ([]events.Event, error) {
	tr := st.trackers[callID]
	st.finalized[callID] = true
	if tr == nil {
		return nil, nil
	}
	delete(st.trackers, callID)

	evts, err := tr.Finalize()
	if err != nil {
		return nil, err
	}

	if final := finalArgsFromEvents(evts); final != nil {
		toolName := st.toolName[callID]
		_, cleaned := tools.ExtractReserved(final)
		st.decision.ToolCallRequest = toolCallRequest(toolName, cleaned)
		if st.uiCall[callID] {
			st.decision.Props = cleaned
		}
	}

	if st.started[callID] && st.decision.ComponentID != "" {
		evts = append(evts, events.New(&events.ComponentEnd{
			ComponentID: st.decision.ComponentID,
		}))
	}
	return evts, nil
}

// toolSchema looks up a tool's parameter schema with the standard
// parameters injected, matching what the model was shown.
func toolSchema(name string, available []domain.Tool) map[string]any {
	tool, ok := tools.FindTool(name, available)
	if !ok {
		return nil
	}
	return tools.InjectStandardParameters(tool).Parameters
}

// toolCallRequest normalizes an argument object into the parameter list
// form, sorted by name for stable output.
func toolCallRequest(toolName string, args map[string]any) *domain.ToolCallRequest {
	req := &domain.ToolCallRequest{ToolName: toolName}
	names := slices.Sorted(maps.Keys(args))
	for _, name := range names {
		req.Parameters = append(req.Parameters, domain.Parameter{
			Name:  name,
			Value: args[name],
		})
	}
	return req
}

func componentIDFromEvents(evts []events.Event) string {
	for _, evt := range evts {
		custom, ok := evt.(events.Custom)
		if !ok {
			continue
		}
		if start, ok := custom.Value.(*events.ComponentStart); ok {
			return start.ComponentID
		}
	}
	return ""
}

func finalArgsFromEvents(evts []events.Event) map[string]any {
	for _, evt := range evts {
		custom, ok := evt.(events.Custom)
		if !ok {
			continue
		}
		if end, ok := custom.Value.(*events.ToolCallEnd); ok {
			return end.FinalArgs
		}
	}
	return nil
}
