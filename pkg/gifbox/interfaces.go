package gifbox

import (
	"context"

	"github.com/google/uuid"
)

// BlobStore defines the interface for blob storage backends. Objects are
// addressed by (bucket, name). Put overwrites; Delete of a missing object is
// not an error; Get of a missing object returns ErrObjectNotFound.
type BlobStore interface {
	Put(ctx context.Context, bucket Bucket, name string, data []byte, mimeType string) error
	Get(ctx context.Context, bucket Bucket, name string) ([]byte, error)
	Delete(ctx context.Context, bucket Bucket, name string) error
	Exists(ctx context.Context, bucket Bucket, name string) (bool, error)
}

// Repository defines the interface for post metadata storage. Users are
// read-only from this package's point of view.
type Repository interface {
	// Post operations
	CreatePost(ctx context.Context, post *Post) error
	GetPost(ctx context.Context, id uuid.UUID) (*Post, error)
	GetPostByFileName(ctx context.Context, fileName string) (*Post, error)
	DeletePost(ctx context.Context, id uuid.UUID) error

	// User lookups
	GetUser(ctx context.Context, id uuid.UUID) (*User, error)
	GetUserByAvatarFileName(ctx context.Context, fileName string) (*User, error)
}

// Transcoder converts an accepted upload into canonical WebP bytes.
type Transcoder interface {
	Transcode(ctx context.Context, data []byte) ([]byte, error)
}

// TranscoderFunc adapts a function to the Transcoder interface.
type TranscoderFunc func(ctx context.Context, data []byte) ([]byte, error)

func (f TranscoderFunc) Transcode(ctx context.Context, data []byte) ([]byte, error) {
	return f(ctx, data)
}

// SearchIndex mirrors SearchDocuments. Query must never return documents
// with Private set.
type SearchIndex interface {
	Upsert(ctx context.Context, doc SearchDocument) error
	Remove(ctx context.Context, id string) error
	Query(ctx context.Context, q SearchQuery) (*SearchHits, error)
}

// ViewCounter counts post views independently of the repository.
type ViewCounter interface {
	Increment(ctx context.Context, postID uuid.UUID) (int64, error)
	Fetch(ctx context.Context, postID uuid.UUID) (int64, error)
}
