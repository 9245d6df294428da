package gifbox

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Error types
var (
	// ErrNoFileProvided indicates the upload carried no bytes
	ErrNoFileProvided = errors.New("no file provided")

	// ErrInvalidMediaType indicates the sniffed content is not an accepted image type
	ErrInvalidMediaType = errors.New("invalid media type")

	// ErrTranscodeFailure indicates the conversion process failed or produced nothing
	ErrTranscodeFailure = errors.New("transcode failed")

	// ErrTranscoderBusy indicates no transcode slot became free in time
	ErrTranscoderBusy = errors.New("transcoder at capacity")

	// ErrTranscodeTimeout indicates the conversion process was killed for
	// exceeding the server's time limit
	ErrTranscodeTimeout = errors.New("transcode timed out")

	// ErrMetadataConflict indicates a record with the same identity already exists
	ErrMetadataConflict = errors.New("metadata conflict")

	// ErrPostNotFound indicates a post was not found
	ErrPostNotFound = errors.New("post not found")

	// ErrUserNotFound indicates a user was not found
	ErrUserNotFound = errors.New("user not found")

	// ErrFileNotFound indicates a file is unreferenced or its blob is gone
	ErrFileNotFound = errors.New("file not found")

	// ErrObjectNotFound indicates a blob was not found in the blob store
	ErrObjectNotFound = errors.New("object not found")

	// ErrPermissionDenied indicates the requester does not own the post
	ErrPermissionDenied = errors.New("permission denied")

	// ErrSearchIndexDegraded marks a failed best-effort index write. It is
	// logged, never returned to a caller.
	ErrSearchIndexDegraded = errors.New("search index degraded")
)

// PostError represents an error related to post operations
type PostError struct {
	PostID uuid.UUID
	Op     string
	Err    error
}

func (e *PostError) Error() string {
	return fmt.Sprintf("post operation %s failed for post %s: %v", e.Op, e.PostID, e.Err)
}

func (e *PostError) Unwrap() error {
	return e.Err
}

// StorageError represents an error related to blob store operations
type StorageError struct {
	Backend string
	Bucket  Bucket
	Key     string
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed for %s/%s on backend %s: %v", e.Op, e.Bucket, e.Key, e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// ValidationError reports a request field that failed validation. Message is
// safe to show to clients.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
