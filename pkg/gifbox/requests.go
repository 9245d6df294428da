package gifbox

import (
	"time"

	"github.com/google/uuid"
)

// Request DTOs

// CreatePostRequest contains parameters for creating a post from an upload.
// DeclaredType is the client-supplied content type; it is recorded for logs
// but never trusted.
type CreatePostRequest struct {
	AuthorID     uuid.UUID
	Title        string   `json:"title" validate:"required,max=512"`
	Tags         []string `json:"tags" validate:"omitempty,dive,min=3,max=50"`
	FileName     string
	DeclaredType string
	Data         []byte
}

// DeletePostRequest contains parameters for deleting a post
type DeletePostRequest struct {
	PostID      uuid.UUID
	RequesterID uuid.UUID
}

// SearchPostsRequest contains parameters for querying the search index.
// A zero Limit means DefaultSearchLimit.
type SearchPostsRequest struct {
	Query  string     `json:"query" validate:"max=512"`
	Offset int        `json:"skip" validate:"gte=0"`
	Limit  int        `json:"limit" validate:"gte=0,lte=100"`
	Author *uuid.UUID `json:"author,omitempty"`
	Sort   string     `json:"sort,omitempty" validate:"omitempty,oneof=createdAt:asc createdAt:desc"`

	CreatedAfter  *time.Time `json:"createdAfter,omitempty"`
	CreatedBefore *time.Time `json:"createdBefore,omitempty"`
}

const (
	DefaultSearchLimit = 10
	MaxSearchLimit     = 100
)
