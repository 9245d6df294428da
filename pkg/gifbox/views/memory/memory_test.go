package memory_test

import (
	"context"
	"testing"

	"github.com/gifbox/api/pkg/gifbox/views/memory"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestCounter(t *testing.T) {
	ctx := context.Background()
	c := memory.New()
	id := uuid.New()

	n, err := c.Fetch(ctx, id)
	require.NoError(t, err)
	assert.Zero(t, n)

	var g errgroup.Group
	for i := 0; i < 50; i++ {
		g.Go(func() error {
			_, err := c.Increment(ctx, id)
			return err
		})
	}
	require.NoError(t, g.Wait())

	n, err = c.Fetch(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(50), n)

	n, err = c.Fetch(ctx, uuid.New())
	require.NoError(t, err)
	assert.Zero(t, n)
}
