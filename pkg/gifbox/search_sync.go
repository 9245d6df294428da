package gifbox

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// searchSyncer mirrors posts into the search index without blocking the
// request that caused the write. Failures are logged and counted only.
//
// Writes for the same post are not ordered against each other; a remove that
// overtakes its upsert leaves a stale document, which readers drop when the
// hit fails to resolve.
type searchSyncer struct {
	index   SearchIndex
	logger  *slog.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

func newSearchSyncer(index SearchIndex, logger *slog.Logger, timeout time.Duration) *searchSyncer {
	return &searchSyncer{
		index:   index,
		logger:  logger,
		timeout: timeout,
	}
}

func (s *searchSyncer) upsert(doc SearchDocument) {
	s.dispatch("upsert", doc.ID, func(ctx context.Context) error {
		return s.index.Upsert(ctx, doc)
	})
}

func (s *searchSyncer) remove(id string) {
	s.dispatch("remove", id, func(ctx context.Context) error {
		return s.index.Remove(ctx, id)
	})
}

func (s *searchSyncer) dispatch(op, id string, fn func(context.Context) error) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		if err := fn(ctx); err != nil {
			SearchSyncFailures.WithLabelValues(op).Inc()
			s.logger.Warn("search index write failed",
				"op", op,
				"post_id", id,
				"error", fmt.Errorf("%w: %v", ErrSearchIndexDegraded, err))
		}
	}()
}

// flush blocks until every dispatched write has finished or ctx is done.
func (s *searchSyncer) flush(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
