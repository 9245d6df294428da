package fs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gifbox/api/pkg/gifbox"
)

const backendName = "fs"

// Backend is a filesystem implementation of the gifbox.BlobStore interface.
// Objects live at <BaseDir>/<bucket>/<name>.
type Backend struct {
	baseDir string
}

// Config options for the filesystem backend
type Config struct {
	BaseDir string // Base directory for storing files
}

// New creates a new filesystem storage backend
func New(config Config) (*Backend, error) {
	// Validate and create base directory if it doesn't exist
	if config.BaseDir == "" {
		return nil, errors.New("base directory is required")
	}

	if err := os.MkdirAll(config.BaseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &Backend{
		baseDir: filepath.Clean(config.BaseDir),
	}, nil
}

func (b *Backend) path(bucket gifbox.Bucket, name string) (string, error) {
	if !bucket.Valid() {
		return "", fmt.Errorf("unknown bucket %q", bucket)
	}
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("invalid object name %q", name)
	}
	return filepath.Join(b.baseDir, string(bucket), name), nil
}

func (b *Backend) storageError(op string, bucket gifbox.Bucket, name string, err error) error {
	return &gifbox.StorageError{Backend: backendName, Bucket: bucket, Key: name, Op: op, Err: err}
}

// Put writes the object to a temporary file and renames it into place, so a
// reader never sees a partial object.
func (b *Backend) Put(ctx context.Context, bucket gifbox.Bucket, name string, data []byte, mimeType string) error {
	filePath, err := b.path(bucket, name)
	if err != nil {
		return b.storageError("put", bucket, name, err)
	}

	// Create directory structure if it doesn't exist
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return b.storageError("put", bucket, name, fmt.Errorf("failed to create directory: %w", err))
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return b.storageError("put", bucket, name, fmt.Errorf("failed to create file: %w", err))
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return b.storageError("put", bucket, name, fmt.Errorf("failed to write file: %w", err))
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return b.storageError("put", bucket, name, fmt.Errorf("failed to close file: %w", err))
	}

	if err := os.Rename(tmpName, filePath); err != nil {
		os.Remove(tmpName)
		return b.storageError("put", bucket, name, fmt.Errorf("failed to move file into place: %w", err))
	}

	return nil
}

// Get reads an object from the filesystem
func (b *Backend) Get(ctx context.Context, bucket gifbox.Bucket, name string) ([]byte, error) {
	filePath, err := b.path(bucket, name)
	if err != nil {
		return nil, b.storageError("get", bucket, name, err)
	}

	data, err := os.ReadFile(filePath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, gifbox.ErrObjectNotFound
	} else if err != nil {
		return nil, b.storageError("get", bucket, name, fmt.Errorf("failed to read file: %w", err))
	}

	return data, nil
}

// Delete removes an object. A missing object is not an error.
func (b *Backend) Delete(ctx context.Context, bucket gifbox.Bucket, name string) error {
	filePath, err := b.path(bucket, name)
	if err != nil {
		return b.storageError("delete", bucket, name, err)
	}

	if err := os.Remove(filePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return b.storageError("delete", bucket, name, fmt.Errorf("failed to delete file: %w", err))
	}

	// Clean up empty directories
	b.cleanupEmptyDirectories(filepath.Dir(filePath))

	return nil
}

// Exists reports whether an object file is present
func (b *Backend) Exists(ctx context.Context, bucket gifbox.Bucket, name string) (bool, error) {
	filePath, err := b.path(bucket, name)
	if err != nil {
		return false, b.storageError("exists", bucket, name, err)
	}

	_, err = os.Stat(filePath)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	} else if err != nil {
		return false, b.storageError("exists", bucket, name, err)
	}
	return true, nil
}

// cleanupEmptyDirectories recursively removes empty directories up to baseDir
func (b *Backend) cleanupEmptyDirectories(dir string) {
	// Don't remove the base directory
	if dir == b.baseDir {
		return
	}

	if entries, err := os.ReadDir(dir); err == nil && len(entries) == 0 {
		if os.Remove(dir) == nil {
			b.cleanupEmptyDirectories(filepath.Dir(dir))
		}
	}
}
