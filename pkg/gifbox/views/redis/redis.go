// Package redis stores view counts in Redis, one integer key per post.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gifbox/api/pkg/gifbox"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Key returns the Redis key holding a post's view count.
func Key(postID uuid.UUID) string {
	return fmt.Sprintf("posts:%s:views", postID)
}

// ParseOptions accepts either a redis:// URL or a bare host:port.
func ParseOptions(addr string) (*redis.Options, error) {
	if strings.Contains(addr, "://") {
		opts, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url %q: %w", addr, err)
		}
		return opts, nil
	}
	if addr == "" {
		return nil, errors.New("redis address is required")
	}
	return &redis.Options{Addr: addr}, nil
}

type metricsHook struct{}

func (h metricsHook) DialHook(next redis.DialHook) redis.DialHook {
	return next
}

func (h metricsHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		err := next(ctx, cmd)
		if err != nil && !errors.Is(err, redis.Nil) {
			gifbox.RedisErrors.WithLabelValues(cmd.Name()).Inc()
		}
		return err
	}
}

func (h metricsHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		err := next(ctx, cmds)
		if err != nil && !errors.Is(err, redis.Nil) {
			gifbox.RedisErrors.WithLabelValues("pipeline").Inc()
		}
		return err
	}
}

// Counter implements gifbox.ViewCounter with INCR/GET.
type Counter struct {
	client *redis.Client
}

// New wraps client and installs the error-counting hook.
func New(client *redis.Client) *Counter {
	client.AddHook(metricsHook{})
	return &Counter{client: client}
}

func (c *Counter) Increment(ctx context.Context, postID uuid.UUID) (int64, error) {
	n, err := c.client.Incr(ctx, Key(postID)).Result()
	if err != nil {
		return 0, fmt.Errorf("incr views for %s: %w", postID, err)
	}
	return n, nil
}

// Fetch returns 0 for a missing or non-numeric key.
func (c *Counter) Fetch(ctx context.Context, postID uuid.UUID) (int64, error) {
	raw, err := c.client.Get(ctx, Key(postID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get views for %s: %w", postID, err)
	}

	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, nil
	}
	return n, nil
}
