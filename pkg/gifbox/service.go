package gifbox

import (
	"context"

	"github.com/google/uuid"
)

// Service defines the main interface for the gifbox pipeline
type Service interface {
	// Post operations
	CreatePost(ctx context.Context, req CreatePostRequest) (*PostView, error)
	DeletePost(ctx context.Context, req DeletePostRequest) error
	GetPost(ctx context.Context, id uuid.UUID) (*PostView, error)
	SearchPosts(ctx context.Context, req SearchPostsRequest) (*SearchPage, error)

	// File reads
	OpenPostFile(ctx context.Context, fileName string) (*FileObject, error)
	OpenAvatarFile(ctx context.Context, fileName string) (*FileObject, error)

	// Flush waits for pending search index writes
	Flush(ctx context.Context) error
}
