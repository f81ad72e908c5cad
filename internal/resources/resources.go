// Package resources resolves external resource references in thread messages
// before a decision-loop turn starts streaming. Fetched content is inlined
// into the message content and cached, so repeated turns over the same
// thread do not refetch unchanged resources.
package resources

import (
	"context"
	"fmt"
	"sync"

	"github.com/tambo-ai/tambo-go/internal/domain"
)

// Cache is a process-wide resource content cache keyed by server key + URI.
// Safe for concurrent use.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]string
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]string)}
}

// PrefetchAndCache returns a copy of messages with every resource content
// part resolved to its fetched text. The input messages are never mutated.
// A resource whose server key has no registered fetcher, or whose fetch
// fails, aborts the pass: resources are resolved before streaming begins,
// so a failure here fails the turn before any model call is made.
func (c *Cache) PrefetchAndCache(ctx context.Context, messages []domain.Message, fetchers map[string]domain.Fetcher) ([]domain.Message, error) {
	out := make([]domain.Message, len(messages))
	for i, msg := range messages {
		out[i] = msg
		if !hasResource(msg) {
			continue
		}
		parts := make([]domain.ContentPart, len(msg.Content))
		copy(parts, msg.Content)
		for j, part := range parts {
			if part.Type != domain.ContentTypeResource || part.Resource == nil {
				continue
			}
			text, err := c.resolve(ctx, *part.Resource, fetchers)
			if err != nil {
				return nil, err
			}
			parts[j] = domain.ContentPart{Type: domain.ContentTypeText, Text: text}
		}
		out[i].Content = parts
	}
	return out, nil
}

func hasResource(msg domain.Message) bool {
	for _, part := range msg.Content {
		if part.Type == domain.ContentTypeResource {
			return true
		}
	}
	return false
}

func (c *Cache) resolve(ctx context.Context, ref domain.ResourceRef, fetchers map[string]domain.Fetcher) (string, error) {
	key := ref.ServerKey + "\x00" + ref.URI

	c.mu.RLock()
	cached, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return cached, nil
	}

	fetcher, ok := fetchers[ref.ServerKey]
	if !ok {
		return "", fmt.Errorf("no resource fetcher registered for server key %q", ref.ServerKey)
	}
	text, err := fetcher.Fetch(ctx, ref.URI)
	if err != nil {
		return "", fmt.Errorf("failed to fetch resource %s from %q: %w", ref.URI, ref.ServerKey, err)
	}

	c.mu.Lock()
	c.entries[key] = text
	c.mu.Unlock()
	return text, nil
}
