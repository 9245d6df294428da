package s3

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/gifbox/api/pkg/gifbox"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestS3Backend_BasicConfiguration(t *testing.T) {
	t.Run("EmptyBucket", func(t *testing.T) {
		_, err := New(context.Background(), Config{Region: "us-east-1"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bucket name is required")
	})

	t.Run("DefaultRegion", func(t *testing.T) {
		backend, err := New(context.Background(), Config{
			Bucket:          "gifbox",
			AccessKeyID:     "test-key",
			SecretAccessKey: "test-secret",
		})
		require.NoError(t, err)
		assert.Equal(t, "us-east-1", backend.config.Region)
	})

	t.Run("MinIOEndpoint", func(t *testing.T) {
		backend, err := New(context.Background(), Config{
			Bucket:          "gifbox",
			AccessKeyID:     "minioadmin",
			SecretAccessKey: "minioadmin",
			Endpoint:        "http://localhost:9000",
			UsePathStyle:    true,
		})
		require.NoError(t, err)
		assert.NotNil(t, backend.client)
		assert.NotNil(t, backend.uploader)
	})
}

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "posts/abc.webp", ObjectKey(gifbox.BucketPosts, "abc.webp"))
	assert.Equal(t, "avatars/abc.webp", ObjectKey(gifbox.BucketAvatars, "abc.webp"))
}

func TestIsNotFound(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"typed NoSuchKey", &types.NoSuchKey{}, true},
		{"typed NotFound", &types.NotFound{}, true},
		{"wrapped NoSuchKey", fmt.Errorf("get: %w", &types.NoSuchKey{}), true},
		{"generic api NotFound", &smithy.GenericAPIError{Code: "NotFound"}, true},
		{"generic api AccessDenied", &smithy.GenericAPIError{Code: "AccessDenied"}, false},
		{"plain error", errors.New("connection reset"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isNotFound(tt.err))
		})
	}
}

// TestS3Backend_Integration runs against a real S3/MinIO endpoint.
func TestS3Backend_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	endpoint := os.Getenv("TEST_S3_ENDPOINT")
	if endpoint == "" {
		t.Skip("Skipping integration test: TEST_S3_ENDPOINT not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	backend, err := New(ctx, Config{
		Bucket:                 envOr("TEST_S3_BUCKET", "gifbox-test"),
		AccessKeyID:            envOr("TEST_S3_ACCESS_KEY_ID", "minioadmin"),
		SecretAccessKey:        envOr("TEST_S3_SECRET_ACCESS_KEY", "minioadmin"),
		Endpoint:               endpoint,
		UsePathStyle:           true,
		CreateBucketIfNotExist: true,
	})
	require.NoError(t, err)

	name := uuid.NewString() + ".webp"
	data := []byte("integration payload")

	require.NoError(t, backend.Put(ctx, gifbox.BucketPosts, name, data, gifbox.CanonicalMimeType))

	ok, err := backend.Exists(ctx, gifbox.BucketPosts, name)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := backend.Get(ctx, gifbox.BucketPosts, name)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	require.NoError(t, backend.Delete(ctx, gifbox.BucketPosts, name))
	require.NoError(t, backend.Delete(ctx, gifbox.BucketPosts, name), "second delete must be a no-op")

	_, err = backend.Get(ctx, gifbox.BucketPosts, name)
	assert.ErrorIs(t, err, gifbox.ErrObjectNotFound)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
