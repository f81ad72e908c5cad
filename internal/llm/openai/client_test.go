package openai

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/tambo-ai/tambo-go/internal/domain"
	"github.com/tambo-ai/tambo-go/internal/testutil"
)

func sseServer(t *testing.T, lines []string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, line := range lines {
			fmt.Fprintf(w, "data: %s\n\n", line)
			flusher.Flush()
		}
	}))
}

func collect(t *testing.T, ch <-chan domain.CompletionChunk) []domain.CompletionChunk {
	t.Helper()
	var chunks []domain.CompletionChunk
	for chunk := range ch {
		chunks = append(chunks, chunk)
	}
	return chunks
}

func TestCompleteAccumulatesText(t *testing.T) {
	srv := sseServer(t, []string{
		`{"id":"c1","choices":[{"index":0,"delta":{"role":"assistant","content":"Hel"},"finish_reason":null}]}`,
		`{"id":"c1","choices":[{"index":0,"delta":{"content":"lo"},"finish_reason":null}]}`,
		`{"id":"c1","choices":[{"index":0,"delta":{},"finish_reason":"stop"}]}`,
		`[DONE]`,
	})
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))
	ch, err := c.Complete(context.Background(), domain.CompletionRequest{
		Model:    "gpt-4o",
		Messages: []domain.Message{domain.TextMessage("t1", domain.RoleUser, "hi")},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	chunks := collect(t, ch)
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}
	if got := chunks[0].Response.Message.Content; got != "Hel" {
		t.Errorf("first chunk content = %q, want %q", got, "Hel")
	}
	if got := chunks[1].Response.Message.Content; got != "Hello" {
		t.Errorf("second chunk content = %q, want accumulated %q", got, "Hello")
	}
	for _, chunk := range chunks {
		if chunk.Err != nil {
			t.Errorf("unexpected stream error: %v", chunk.Err)
		}
	}
}

func TestCompleteToolCallDeltas(t *testing.T) {
	srv := sseServer(t, []string{
		`{"id":"c1","choices":[{"index":0,"delta":{"role":"assistant","tool_calls":[{"index":0,"id":"call_1","type":"function","function":{"name":"show_component_Graph","arguments":""}}]},"finish_reason":null}]}`,
		`{"id":"c1","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"{\"title\":"}}]},"finish_reason":null}]}`,
		`{"id":"c1","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":" \"Revenue\"}"}}]},"finish_reason":null}]}`,
		`{"id":"c1","choices":[{"index":0,"delta":{},"finish_reason":"tool_calls"}]}`,
		`[DONE]`,
	})
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))
	ch, err := c.Complete(context.Background(), domain.CompletionRequest{
		Model:    "gpt-4o",
		Messages: []domain.Message{domain.TextMessage("t1", domain.RoleUser, "graph please")},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	chunks := collect(t, ch)
	if len(chunks) != 4 {
		t.Fatalf("got %d chunks, want 4", len(chunks))
	}

	tc := chunks[1].Response.FirstToolCall()
	if tc == nil {
		t.Fatal("second chunk has no tool call")
	}
	if tc.ID != "call_1" || tc.Name != "show_component_Graph" {
		t.Errorf("tool call identity = %q/%q", tc.ID, tc.Name)
	}
	if tc.ArgumentsDelta != `{"title":` {
		t.Errorf("ArgumentsDelta = %q", tc.ArgumentsDelta)
	}
	if tc.Arguments != `{"title":` {
		t.Errorf("Arguments = %q", tc.Arguments)
	}
	if tc.Done {
		t.Error("tool call marked done mid-stream")
	}

	final := chunks[3].Response.FirstToolCall()
	if final == nil {
		t.Fatal("final chunk has no tool call")
	}
	if final.Arguments != `{"title": "Revenue"}` {
		t.Errorf("final accumulated arguments = %q", final.Arguments)
	}
	if final.ArgumentsDelta != "" {
		t.Errorf("finish chunk ArgumentsDelta = %q, want empty", final.ArgumentsDelta)
	}
	if !final.Done {
		t.Error("tool call not marked done after finish_reason")
	}
}

func TestCompleteAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"Incorrect API key provided","type":"authentication_error","code":"invalid_api_key"}}`)
	}))
	defer srv.Close()

	c := NewClient("bad-key", WithBaseURL(srv.URL))
	_, err := c.Complete(context.Background(), domain.CompletionRequest{
		Model:    "gpt-4o",
		Messages: []domain.Message{domain.TextMessage("t1", domain.RoleUser, "hi")},
	})
	if err == nil {
		t.Fatal("expected error for 401 response")
	}
	apiErr, ok := err.(*apiError)
	if !ok {
		t.Fatalf("error type = %T, want *apiError", err)
	}
	if apiErr.Code != "invalid_api_key" {
		t.Errorf("error code = %q", apiErr.Code)
	}
}

func TestCompleteMalformedChunk(t *testing.T) {
	srv := sseServer(t, []string{`{not json`})
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))
	ch, err := c.Complete(context.Background(), domain.CompletionRequest{
		Model:    "gpt-4o",
		Messages: []domain.Message{domain.TextMessage("t1", domain.RoleUser, "hi")},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	chunks := collect(t, ch)
	if len(chunks) != 1 || chunks[0].Err == nil {
		t.Fatalf("expected a single error chunk, got %+v", chunks)
	}
}

func TestBuildRequestToolChoice(t *testing.T) {
	base := domain.CompletionRequest{
		Model:    "gpt-4o",
		Messages: []domain.Message{domain.TextMessage("t1", domain.RoleUser, "hi")},
	}

	t.Run("auto omits tool_choice", func(t *testing.T) {
		req := base
		req.ToolChoice = domain.ToolChoiceAuto
		wireReq, err := buildRequest(req)
		if err != nil {
			t.Fatal(err)
		}
		if wireReq.ToolChoice != nil {
			t.Errorf("ToolChoice = %v, want nil", wireReq.ToolChoice)
		}
	})

	t.Run("tool name becomes function object", func(t *testing.T) {
		req := base
		req.ToolChoice = "show_component_Graph"
		wireReq, err := buildRequest(req)
		if err != nil {
			t.Fatal(err)
		}
		obj, ok := wireReq.ToolChoice.(map[string]any)
		if !ok {
			t.Fatalf("ToolChoice type = %T", wireReq.ToolChoice)
		}
		fn := obj["function"].(map[string]any)
		if fn["name"] != "show_component_Graph" {
			t.Errorf("function name = %v", fn["name"])
		}
	})
}

func TestBuildRequestAssistantToolCallMessage(t *testing.T) {
	req := domain.CompletionRequest{
		Model: "gpt-4o",
		Messages: []domain.Message{
			{
				ThreadID:   "t1",
				Role:       domain.RoleAssistant,
				ToolCallID: "call_9",
				ToolCallRequest: &domain.ToolCallRequest{
					ToolName:   "lookup_weather",
					Parameters: []domain.Parameter{{Name: "city", Value: "Oslo"}},
				},
			},
			{ThreadID: "t1", Role: domain.RoleTool, ToolCallID: "call_9"},
		},
	}

	wireReq, err := buildRequest(req)
	if err != nil {
		t.Fatal(err)
	}
	if len(wireReq.Messages) != 2 {
		t.Fatalf("got %d messages", len(wireReq.Messages))
	}
	tc := wireReq.Messages[0].ToolCalls
	if len(tc) != 1 || tc[0].Function.Name != "lookup_weather" {
		t.Fatalf("assistant tool_calls = %+v", tc)
	}
	if tc[0].Function.Arguments != `{"city":"Oslo"}` {
		t.Errorf("arguments = %q", tc[0].Function.Arguments)
	}
	if wireReq.Messages[1].ToolCallID != "call_9" {
		t.Errorf("tool message ToolCallID = %q", wireReq.Messages[1].ToolCallID)
	}
}

func TestCompleteReplayedStream(t *testing.T) {
	if os.Getenv("OPENAI_API_KEY") == "" && os.Getenv("VCR_MODE") == "record" {
		t.Skip("OPENAI_API_KEY not set")
	}

	rec, cleanup := testutil.NewVCRRecorder(t, "chat_stream")
	defer cleanup()

	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		apiKey = "test-key"
	}

	c := NewClient(apiKey, WithHTTPClient(testutil.VCRHTTPClient(rec)))
	ch, err := c.Complete(context.Background(), domain.CompletionRequest{
		Model:    "gpt-4o",
		Messages: []domain.Message{domain.TextMessage("t1", domain.RoleUser, "say hello in a note")},
		Tools: []domain.Tool{{
			Name:        "show_component_Note",
			Description: "Render a note component",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"title": map[string]any{"type": "string"},
				},
			},
		}},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	chunks := collect(t, ch)
	if len(chunks) == 0 {
		t.Fatal("no chunks replayed")
	}
	last := chunks[len(chunks)-1]
	if last.Err != nil {
		t.Fatalf("stream error: %v", last.Err)
	}
	tc := last.Response.FirstToolCall()
	if tc == nil {
		t.Fatal("replayed stream produced no tool call")
	}
	if tc.Name != "show_component_Note" {
		t.Errorf("tool call name = %q", tc.Name)
	}
	if tc.Arguments != `{"title": "Hello"}` {
		t.Errorf("accumulated arguments = %q", tc.Arguments)
	}
	if !tc.Done {
		t.Error("tool call not done at end of replayed stream")
	}
}
