package fs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/gifbox/api/pkg/gifbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFSBackend_BasicOps(t *testing.T) {
	tmp := t.TempDir()
	backend, err := New(Config{BaseDir: tmp})
	require.NoError(t, err)

	ctx := context.Background()
	name := "4f1c2d.webp"
	data := []byte("hello fs")

	require.NoError(t, backend.Put(ctx, gifbox.BucketPosts, name, data, gifbox.CanonicalMimeType))

	_, err = os.Stat(filepath.Join(tmp, "posts", name))
	require.NoError(t, err, "object should be stored under the bucket directory")

	ok, err := backend.Exists(ctx, gifbox.BucketPosts, name)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := backend.Get(ctx, gifbox.BucketPosts, name)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	require.NoError(t, backend.Put(ctx, gifbox.BucketPosts, name, []byte("replaced"), gifbox.CanonicalMimeType))
	got, err = backend.Get(ctx, gifbox.BucketPosts, name)
	require.NoError(t, err)
	assert.Equal(t, "replaced", string(got))

	require.NoError(t, backend.Delete(ctx, gifbox.BucketPosts, name))
	_, err = os.Stat(filepath.Join(tmp, "posts", name))
	assert.True(t, os.IsNotExist(err), "expected file removed, stat err=%v", err)

	_, err = os.Stat(filepath.Join(tmp, "posts"))
	assert.True(t, os.IsNotExist(err), "empty bucket directory should be cleaned up")

	_, err = os.Stat(tmp)
	assert.NoError(t, err, "base directory must survive cleanup")
}

func TestFSBackend_Missing(t *testing.T) {
	backend, err := New(Config{BaseDir: t.TempDir()})
	require.NoError(t, err)
	ctx := context.Background()

	_, err = backend.Get(ctx, gifbox.BucketAvatars, "nope.webp")
	assert.ErrorIs(t, err, gifbox.ErrObjectNotFound)

	ok, err := backend.Exists(ctx, gifbox.BucketAvatars, "nope.webp")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, backend.Delete(ctx, gifbox.BucketAvatars, "nope.webp"))
}

func TestFSBackend_RejectsUnsafeNames(t *testing.T) {
	backend, err := New(Config{BaseDir: t.TempDir()})
	require.NoError(t, err)
	ctx := context.Background()

	for _, name := range []string{"", ".", "..", "../escape.webp", `a\b.webp`, "nested/name.webp"} {
		t.Run(name, func(t *testing.T) {
			err := backend.Put(ctx, gifbox.BucketPosts, name, []byte("x"), gifbox.CanonicalMimeType)
			var serr *gifbox.StorageError
			require.True(t, errors.As(err, &serr), "expected StorageError, got %v", err)
			assert.Equal(t, "put", serr.Op)
			assert.Equal(t, "fs", serr.Backend)
		})
	}

	err = backend.Put(ctx, gifbox.Bucket("other"), "a.webp", []byte("x"), gifbox.CanonicalMimeType)
	assert.Error(t, err)
}

func TestFSBackend_RequiresBaseDir(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base directory is required")
}
