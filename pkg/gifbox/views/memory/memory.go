// Package memory keeps view counts in process memory.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Counter is an in-memory gifbox.ViewCounter.
type Counter struct {
	mu     sync.Mutex
	counts map[uuid.UUID]int64
}

func New() *Counter {
	return &Counter{counts: make(map[uuid.UUID]int64)}
}

func (c *Counter) Increment(ctx context.Context, postID uuid.UUID) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.counts[postID]++
	return c.counts[postID], nil
}

func (c *Counter) Fetch(ctx context.Context, postID uuid.UUID) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.counts[postID], nil
}
