package memory

import (
	"context"
	"sync"

	"github.com/gifbox/api/pkg/gifbox"
)

type object struct {
	data     []byte
	mimeType string
}

// Backend is an in-memory implementation of the gifbox.BlobStore interface
type Backend struct {
	mu      sync.RWMutex
	objects map[string]object
}

// New creates a new in-memory storage backend
func New() *Backend {
	return &Backend{
		objects: make(map[string]object),
	}
}

func key(bucket gifbox.Bucket, name string) string {
	return string(bucket) + "/" + name
}

// Put stores a copy of data, replacing any existing object
func (b *Backend) Put(ctx context.Context, bucket gifbox.Bucket, name string, data []byte, mimeType string) error {
	buf := make([]byte, len(data))
	copy(buf, data)

	b.mu.Lock()
	defer b.mu.Unlock()

	b.objects[key(bucket, name)] = object{data: buf, mimeType: mimeType}
	return nil
}

// Get returns a copy of the stored bytes
func (b *Backend) Get(ctx context.Context, bucket gifbox.Bucket, name string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	obj, exists := b.objects[key(bucket, name)]
	if !exists {
		return nil, gifbox.ErrObjectNotFound
	}

	buf := make([]byte, len(obj.data))
	copy(buf, obj.data)
	return buf, nil
}

// Delete removes an object; deleting a missing object succeeds
func (b *Backend) Delete(ctx context.Context, bucket gifbox.Bucket, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.objects, key(bucket, name))
	return nil
}

// Exists reports whether an object is stored
func (b *Backend) Exists(ctx context.Context, bucket gifbox.Bucket, name string) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	_, exists := b.objects[key(bucket, name)]
	return exists, nil
}

// MimeType returns the content type recorded at Put time
func (b *Backend) MimeType(bucket gifbox.Bucket, name string) (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	obj, exists := b.objects[key(bucket, name)]
	return obj.mimeType, exists
}

// Len returns the number of stored objects
func (b *Backend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.objects)
}
