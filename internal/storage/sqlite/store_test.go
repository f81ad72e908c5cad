package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/tambo-ai/tambo-go/internal/domain"
	"github.com/tambo-ai/tambo-go/internal/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore_ThreadRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	thread := &storage.Thread{
		ProjectID: "project-1",
		Metadata:  map[string]string{"env": "test"},
	}
	if err := store.CreateThread(ctx, thread); err != nil {
		t.Fatalf("CreateThread() error = %v", err)
	}
	if thread.ID == "" {
		t.Fatal("expected generated thread id")
	}

	retrieved, err := store.GetThread(ctx, thread.ID)
	if err != nil {
		t.Fatalf("GetThread() error = %v", err)
	}
	if retrieved.ProjectID != "project-1" {
		t.Errorf("ProjectID = %q", retrieved.ProjectID)
	}
	if retrieved.Metadata["env"] != "test" {
		t.Errorf("Metadata = %v", retrieved.Metadata)
	}
}

func TestSQLiteStore_GetThreadNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetThread(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetThread() error = %v, want ErrNotFound", err)
	}
}

func TestSQLiteStore_MessagesOrdered(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	thread := &storage.Thread{ID: "t1", ProjectID: "p1"}
	if err := store.CreateThread(ctx, thread); err != nil {
		t.Fatalf("CreateThread() error = %v", err)
	}

	for _, text := range []string{"first", "second", "third"} {
		msg := domain.TextMessage("t1", domain.RoleUser, text)
		if err := store.AddMessage(ctx, "t1", &msg); err != nil {
			t.Fatalf("AddMessage(%q) error = %v", text, err)
		}
	}

	messages, err := store.GetMessages(ctx, "t1")
	if err != nil {
		t.Fatalf("GetMessages() error = %v", err)
	}
	if len(messages) != 3 {
		t.Fatalf("got %d messages, want 3", len(messages))
	}
	for i, want := range []string{"first", "second", "third"} {
		if messages[i].Text() != want {
			t.Errorf("message[%d] = %q, want %q", i, messages[i].Text(), want)
		}
	}
}

func TestSQLiteStore_ToolCallMessageRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	thread := &storage.Thread{ID: "t1", ProjectID: "p1"}
	if err := store.CreateThread(ctx, thread); err != nil {
		t.Fatalf("CreateThread() error = %v", err)
	}

	msg := domain.Message{
		Role:       domain.RoleAssistant,
		ToolCallID: "call_1",
		ToolCallRequest: &domain.ToolCallRequest{
			ToolName:   "show_component_Graph",
			Parameters: []domain.Parameter{{Name: "title", Value: "Revenue"}},
		},
	}
	if err := store.AddMessage(ctx, "t1", &msg); err != nil {
		t.Fatalf("AddMessage() error = %v", err)
	}

	messages, err := store.GetMessages(ctx, "t1")
	if err != nil {
		t.Fatalf("GetMessages() error = %v", err)
	}
	got := messages[0]
	if got.ToolCallID != "call_1" {
		t.Errorf("ToolCallID = %q", got.ToolCallID)
	}
	if got.ToolCallRequest == nil || got.ToolCallRequest.ToolName != "show_component_Graph" {
		t.Fatalf("ToolCallRequest = %+v", got.ToolCallRequest)
	}
	if len(got.ToolCallRequest.Parameters) != 1 || got.ToolCallRequest.Parameters[0].Name != "title" {
		t.Errorf("Parameters = %+v", got.ToolCallRequest.Parameters)
	}
}

func TestSQLiteStore_AddMessageMissingThread(t *testing.T) {
	store := newTestStore(t)

	msg := domain.TextMessage("missing", domain.RoleUser, "x")
	err := store.AddMessage(context.Background(), "missing", &msg)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("AddMessage() error = %v, want ErrNotFound", err)
	}
}

func TestSQLiteStore_ListThreads(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, th := range []*storage.Thread{
		{ID: "a", ProjectID: "p1"},
		{ID: "b", ProjectID: "p2"},
	} {
		if err := store.CreateThread(ctx, th); err != nil {
			t.Fatalf("CreateThread() error = %v", err)
		}
	}

	p1, err := store.ListThreads(ctx, storage.ListOptions{ProjectID: "p1"})
	if err != nil {
		t.Fatalf("ListThreads() error = %v", err)
	}
	if len(p1) != 1 || p1[0].ID != "a" {
		t.Errorf("p1 threads = %+v", p1)
	}

	all, err := store.ListThreads(ctx, storage.ListOptions{})
	if err != nil {
		t.Fatalf("ListThreads() error = %v", err)
	}
	if len(all) != 2 {
		t.Errorf("got %d threads, want 2", len(all))
	}
}
