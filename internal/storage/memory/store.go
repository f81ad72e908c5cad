// Package memory provides an in-memory ThreadStore for tests and
// single-process deployments.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tambo-ai/tambo-go/internal/domain"
	"github.com/tambo-ai/tambo-go/internal/storage"
)

// Store is an in-memory implementation of ThreadStore.
type Store struct {
	mu      sync.RWMutex
	threads map[string]*storage.Thread
}

var _ storage.ThreadStore = (*Store)(nil)

// New creates a new in-memory store.
func New() *Store {
	return &Store{threads: make(map[string]*storage.Thread)}
}

func (s *Store) CreateThread(ctx context.Context, thread *storage.Thread) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if thread.ID == "" {
		thread.ID = uuid.NewString()
	}
	if _, exists := s.threads[thread.ID]; exists {
		return fmt.Errorf("thread %s already exists", thread.ID)
	}

	thread.CreatedAt = time.Now()
	thread.UpdatedAt = thread.CreatedAt
	thread.Messages = []domain.Message{}

	s.threads[thread.ID] = thread
	return nil
}

func (s *Store) GetThread(ctx context.Context, id string) (*storage.Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	thread, exists := s.threads[id]
	if !exists {
		return nil, fmt.Errorf("thread %s: %w", id, storage.ErrNotFound)
	}

	cp := *thread
	cp.Messages = append([]domain.Message(nil), thread.Messages...)
	return &cp, nil
}

func (s *Store) ListThreads(ctx context.Context, opts storage.ListOptions) ([]*storage.Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*storage.Thread
	for _, thread := range s.threads {
		if opts.ProjectID != "" && thread.ProjectID != opts.ProjectID {
			continue
		}
		cp := *thread
		cp.Messages = nil
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].UpdatedAt.After(result[j].UpdatedAt)
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(result) {
			return nil, nil
		}
		result = result[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(result) {
		result = result[:opts.Limit]
	}
	return result, nil
}

func (s *Store) AddMessage(ctx context.Context, threadID string, msg *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	thread, exists := s.threads[threadID]
	if !exists {
		return fmt.Errorf("thread %s: %w", threadID, storage.ErrNotFound)
	}

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	msg.ThreadID = threadID
	msg.CreatedAt = time.Now()

	thread.Messages = append(thread.Messages, *msg)
	thread.UpdatedAt = msg.CreatedAt
	return nil
}

func (s *Store) GetMessages(ctx context.Context, threadID string) ([]domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	thread, exists := s.threads[threadID]
	if !exists {
		return nil, fmt.Errorf("thread %s: %w", threadID, storage.ErrNotFound)
	}
	return append([]domain.Message(nil), thread.Messages...), nil
}

func (s *Store) Close() error { return nil }
