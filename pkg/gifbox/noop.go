package gifbox

import (
	"context"

	"github.com/google/uuid"
)

// NoopSearchIndex is a no-operation implementation of SearchIndex.
// Useful when search is not deployed; queries always come back empty.
type NoopSearchIndex struct{}

// NewNoopSearchIndex creates a new no-operation search index
func NewNoopSearchIndex() SearchIndex {
	return &NoopSearchIndex{}
}

// Upsert does nothing and returns nil
func (n *NoopSearchIndex) Upsert(ctx context.Context, doc SearchDocument) error {
	return nil
}

// Remove does nothing and returns nil
func (n *NoopSearchIndex) Remove(ctx context.Context, id string) error {
	return nil
}

// Query returns an empty, exact result
func (n *NoopSearchIndex) Query(ctx context.Context, q SearchQuery) (*SearchHits, error) {
	return &SearchHits{IDs: []string{}}, nil
}

// NoopViewCounter is a no-operation implementation of ViewCounter.
// Every post reports zero views.
type NoopViewCounter struct{}

// NewNoopViewCounter creates a new no-operation view counter
func NewNoopViewCounter() ViewCounter {
	return &NoopViewCounter{}
}

// Increment does nothing and returns zero
func (n *NoopViewCounter) Increment(ctx context.Context, postID uuid.UUID) (int64, error) {
	return 0, nil
}

// Fetch always returns zero
func (n *NoopViewCounter) Fetch(ctx context.Context, postID uuid.UUID) (int64, error) {
	return 0, nil
}
