// Package meili mirrors posts into a Meilisearch index.
package meili

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gifbox/api/pkg/gifbox"
	"github.com/meilisearch/meilisearch-go"
)

const (
	DefaultIndexUID = "posts"
	primaryKey      = "id"

	taskPollInterval = 50 * time.Millisecond
)

// Config options for the Meilisearch backend
type Config struct {
	Host     string        // e.g. http://localhost:7700
	APIKey   string        // master or search+write key
	IndexUID string        // default: posts
	Timeout  time.Duration // per request; default 10s
}

// Index implements gifbox.SearchIndex on Meilisearch. Meilisearch reports
// estimatedTotalHits, so every result is marked approximate.
type Index struct {
	client *meilisearch.Client
	index  *meilisearch.Index
	uid    string
}

// New creates a Meilisearch-backed index
func New(cfg Config) (*Index, error) {
	if cfg.Host == "" {
		return nil, errors.New("meilisearch host is required")
	}
	if cfg.IndexUID == "" {
		cfg.IndexUID = DefaultIndexUID
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	client := meilisearch.NewClient(meilisearch.ClientConfig{
		Host:    cfg.Host,
		APIKey:  cfg.APIKey,
		Timeout: cfg.Timeout,
	})

	return &Index{
		client: client,
		index:  client.Index(cfg.IndexUID),
		uid:    cfg.IndexUID,
	}, nil
}

// EnsureIndex creates the index if needed and applies the attribute
// settings the queries rely on. Creating an index that already exists only
// produces a failed task, which is ignored.
func (i *Index) EnsureIndex(ctx context.Context) error {
	if _, err := i.client.CreateIndex(&meilisearch.IndexConfig{
		Uid:        i.uid,
		PrimaryKey: primaryKey,
	}); err != nil {
		return fmt.Errorf("create index %s: %w", i.uid, err)
	}

	task, err := i.index.UpdateSettings(&meilisearch.Settings{
		FilterableAttributes: []string{"private", "createdAt", "author"},
		SortableAttributes:   []string{"createdAt"},
		SearchableAttributes: []string{"title", "tags", "author"},
	})
	if err != nil {
		return fmt.Errorf("update settings for %s: %w", i.uid, err)
	}

	if err := i.wait(ctx, task); err != nil {
		return fmt.Errorf("update settings for %s: %w", i.uid, err)
	}
	return nil
}

// Upsert returns once Meilisearch has processed the document, so a rejected
// document surfaces as an error rather than a silently failed task.
func (i *Index) Upsert(ctx context.Context, doc gifbox.SearchDocument) error {
	task, err := i.index.AddDocuments([]gifbox.SearchDocument{doc}, primaryKey)
	if err != nil {
		return fmt.Errorf("index post %s: %w", doc.ID, err)
	}
	if err := i.wait(ctx, task); err != nil {
		return fmt.Errorf("index post %s: %w", doc.ID, err)
	}
	return nil
}

func (i *Index) Remove(ctx context.Context, id string) error {
	task, err := i.index.DeleteDocument(id)
	if err != nil {
		return fmt.Errorf("remove post %s: %w", id, err)
	}
	if err := i.wait(ctx, task); err != nil {
		return fmt.Errorf("remove post %s: %w", id, err)
	}
	return nil
}

// wait polls an enqueued task until it finishes or ctx is done.
func (i *Index) wait(ctx context.Context, info *meilisearch.TaskInfo) error {
	task, err := i.client.WaitForTask(info.TaskUID, meilisearch.WaitParams{Context: ctx, Interval: taskPollInterval})
	if err != nil {
		return fmt.Errorf("wait for task %d: %w", info.TaskUID, err)
	}
	if task.Status == meilisearch.TaskStatusFailed {
		return fmt.Errorf("task %d failed: %s: %s", info.TaskUID, task.Error.Code, task.Error.Message)
	}
	return nil
}

func (i *Index) Query(ctx context.Context, q gifbox.SearchQuery) (*gifbox.SearchHits, error) {
	req := &meilisearch.SearchRequest{
		Offset:               int64(q.Offset),
		Limit:                int64(q.Limit),
		Filter:               Filter(q),
		AttributesToRetrieve: []string{primaryKey},
	}
	if q.Sort != "" {
		req.Sort = []string{q.Sort}
	}

	resp, err := i.index.Search(q.Text, req)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", i.uid, err)
	}

	hits := &gifbox.SearchHits{
		IDs:                make([]string, 0, len(resp.Hits)),
		EstimatedTotalHits: resp.EstimatedTotalHits,
		Approximate:        true,
	}
	for _, h := range resp.Hits {
		if id := hitID(h); id != "" {
			hits.IDs = append(hits.IDs, id)
		}
	}

	return hits, nil
}

// Filter builds the AND-ed filter expressions for q. The private clause is
// always present.
func Filter(q gifbox.SearchQuery) []string {
	filter := []string{"private = false"}
	if q.Author != "" {
		filter = append(filter, "author = "+strconv.Quote(q.Author))
	}
	if q.CreatedAfter != nil {
		filter = append(filter, fmt.Sprintf("createdAt > %d", q.CreatedAfter.Unix()))
	}
	if q.CreatedBefore != nil {
		filter = append(filter, fmt.Sprintf("createdAt < %d", q.CreatedBefore.Unix()))
	}
	return filter
}

func hitID(hit interface{}) string {
	m, ok := hit.(map[string]interface{})
	if !ok {
		return ""
	}
	id, _ := m[primaryKey].(string)
	return id
}
