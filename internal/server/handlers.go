package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tambo-ai/tambo-go/internal/domain"
	"github.com/tambo-ai/tambo-go/internal/events"
	"github.com/tambo-ai/tambo-go/internal/loop"
	"github.com/tambo-ai/tambo-go/internal/storage"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type createThreadRequest struct {
	ProjectID string            `json:"projectId"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

func (s *Server) handleCreateThread(w http.ResponseWriter, r *http.Request) {
	var req createThreadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("failed to decode request: %w", err))
		return
	}

	thread := &storage.Thread{ProjectID: req.ProjectID, Metadata: req.Metadata}
	if err := s.store.CreateThread(r.Context(), thread); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, thread)
}

func (s *Server) handleListThreads(w http.ResponseWriter, r *http.Request) {
	opts := storage.ListOptions{ProjectID: r.URL.Query().Get("projectId")}
	if v := r.URL.Query().Get("limit"); v != "" {
		opts.Limit, _ = strconv.Atoi(v)
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		opts.Offset, _ = strconv.Atoi(v)
	}

	threads, err := s.store.ListThreads(r.Context(), opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if threads == nil {
		threads = []*storage.Thread{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"threads": threads})
}

func (s *Server) handleGetThread(w http.ResponseWriter, r *http.Request) {
	thread, err := s.store.GetThread(r.Context(), chi.URLParam(r, "threadID"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, thread)
}

func (s *Server) handleGetMessages(w http.ResponseWriter, r *http.Request) {
	messages, err := s.store.GetMessages(r.Context(), chi.URLParam(r, "threadID"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

type advanceRequest struct {
	// Message is the user's new input for this turn.
	Message string `json:"message"`
	// Tools are the UI and action tools the client has registered.
	Tools []domain.Tool `json:"tools,omitempty"`
	// ToolChoice forces or forbids tool use this turn.
	ToolChoice string `json:"toolChoice,omitempty"`
}

// handleAdvance appends the user's message to the thread, runs one decision
// turn, and streams the results as server-sent events. Each protocol event
// is its own frame; decision snapshots arrive as "decision" frames.
func (s *Server) handleAdvance(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "threadID")

	var req advanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("failed to decode request: %w", err))
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, errors.New("message is required"))
		return
	}

	ctx := r.Context()

	userMsg := domain.TextMessage(threadID, domain.RoleUser, req.Message)
	if err := s.store.AddMessage(ctx, threadID, &userMsg); err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	history, err := s.store.GetMessages(ctx, threadID)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	items, err := s.driver.Run(ctx, loop.Request{
		Messages:           history,
		Tools:              req.Tools,
		ToolChoice:         req.ToolChoice,
		CustomInstructions: s.instructions,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, errors.New("streaming unsupported"))
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	var final *domain.ComponentDecision
	for item := range items {
		if item.Err != nil {
			writeSSE(w, "error", map[string]string{"error": item.Err.Error()})
			flusher.Flush()
			continue
		}
		for _, evt := range item.Events {
			writeSSE(w, evt.EventType(), evt)
		}
		writeSSE(w, "decision", item.Decision)
		flusher.Flush()

		dec := item.Decision
		final = &dec
	}

	if final != nil {
		assistant := domain.TextMessage(threadID, domain.RoleAssistant, final.Message)
		// A decision from a failed finalize can carry the call ID without a
		// request object; an assistant message must carry both or neither.
		if final.ToolCallRequest != nil {
			assistant.ToolCallID = final.ToolCallID
			assistant.ToolCallRequest = final.ToolCallRequest
		}
		if err := s.store.AddMessage(ctx, threadID, &assistant); err != nil {
			s.logger.Error("failed to persist assistant message",
				slog.String("thread_id", threadID),
				slog.String("error", err.Error()))
		} else {
			parent := events.New(&events.MessageParent{
				MessageID:       assistant.ID,
				ParentMessageID: userMsg.ID,
			})
			writeSSE(w, parent.EventType(), parent)
		}
	}

	writeSSE(w, "done", map[string]string{"threadId": threadID})
	flusher.Flush()
}

func writeSSE(w http.ResponseWriter, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func statusFor(err error) int {
	if errors.Is(err, storage.ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}
