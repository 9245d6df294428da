package memory_test

import (
	"context"
	"testing"

	"github.com/gifbox/api/pkg/gifbox"
	memorystorage "github.com/gifbox/api/pkg/gifbox/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBackend(t *testing.T) {
	backend := memorystorage.New()
	ctx := context.Background()
	testName := "0123456789abcdef.webp"
	testData := []byte("RIFF....WEBPVP8 test data")

	t.Run("Put", func(t *testing.T) {
		err := backend.Put(ctx, gifbox.BucketPosts, testName, testData, "image/webp")
		assert.NoError(t, err)

		mimeType, ok := backend.MimeType(gifbox.BucketPosts, testName)
		assert.True(t, ok)
		assert.Equal(t, "image/webp", mimeType)
	})

	t.Run("Get", func(t *testing.T) {
		data, err := backend.Get(ctx, gifbox.BucketPosts, testName)
		require.NoError(t, err)
		assert.Equal(t, testData, data)
	})

	t.Run("BucketsAreSeparate", func(t *testing.T) {
		_, err := backend.Get(ctx, gifbox.BucketAvatars, testName)
		assert.ErrorIs(t, err, gifbox.ErrObjectNotFound)
	})

	t.Run("Exists", func(t *testing.T) {
		ok, err := backend.Exists(ctx, gifbox.BucketPosts, testName)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = backend.Exists(ctx, gifbox.BucketPosts, "missing.webp")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("StoredBytesAreCopied", func(t *testing.T) {
		buf := []byte("original")
		require.NoError(t, backend.Put(ctx, gifbox.BucketPosts, "copy.webp", buf, "image/webp"))
		buf[0] = 'X'

		data, err := backend.Get(ctx, gifbox.BucketPosts, "copy.webp")
		require.NoError(t, err)
		assert.Equal(t, "original", string(data))
	})

	t.Run("Delete", func(t *testing.T) {
		err := backend.Delete(ctx, gifbox.BucketPosts, testName)
		assert.NoError(t, err)

		_, err = backend.Get(ctx, gifbox.BucketPosts, testName)
		assert.ErrorIs(t, err, gifbox.ErrObjectNotFound)
	})

	t.Run("DeleteMissingIsNoop", func(t *testing.T) {
		err := backend.Delete(ctx, gifbox.BucketPosts, "never-stored.webp")
		assert.NoError(t, err)
	})
}
