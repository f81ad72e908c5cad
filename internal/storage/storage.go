// Package storage defines the persistence contract for conversation
// threads and their messages.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/tambo-ai/tambo-go/internal/domain"
)

// ErrNotFound reports that the requested thread does not exist. Store
// implementations wrap it so callers can match with errors.Is.
var ErrNotFound = errors.New("not found")

// Thread is a stored conversation thread.
type Thread struct {
	ID        string            `json:"id"`
	ProjectID string            `json:"projectId"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
	Messages  []domain.Message  `json:"messages,omitempty"`
}

// ListOptions filters thread listings.
type ListOptions struct {
	ProjectID string
	Limit     int
	Offset    int
}

// ThreadStore persists threads and their messages.
type ThreadStore interface {
	CreateThread(ctx context.Context, thread *Thread) error
	GetThread(ctx context.Context, id string) (*Thread, error)
	ListThreads(ctx context.Context, opts ListOptions) ([]*Thread, error)
	AddMessage(ctx context.Context, threadID string, msg *domain.Message) error
	GetMessages(ctx context.Context, threadID string) ([]domain.Message, error)
	Close() error
}
