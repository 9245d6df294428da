package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/gifbox/api/pkg/gifbox"
)

// Index is an in-memory implementation of gifbox.SearchIndex. Matching is a
// case-insensitive substring test of every query term against title, tags
// and author. Totals are exact.
type Index struct {
	mu   sync.RWMutex
	docs map[string]gifbox.SearchDocument
}

// New creates an empty index
func New() *Index {
	return &Index{docs: make(map[string]gifbox.SearchDocument)}
}

func (i *Index) Upsert(ctx context.Context, doc gifbox.SearchDocument) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	doc.Tags = append([]string(nil), doc.Tags...)
	i.docs[doc.ID] = doc
	return nil
}

func (i *Index) Remove(ctx context.Context, id string) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	delete(i.docs, id)
	return nil
}

// Get returns a stored document, for tests and diagnostics
func (i *Index) Get(id string) (gifbox.SearchDocument, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	doc, ok := i.docs[id]
	return doc, ok
}

func (i *Index) Query(ctx context.Context, q gifbox.SearchQuery) (*gifbox.SearchHits, error) {
	terms := strings.Fields(strings.ToLower(q.Text))

	i.mu.RLock()
	matches := make([]gifbox.SearchDocument, 0, len(i.docs))
	for _, doc := range i.docs {
		if doc.Private {
			continue
		}
		if q.Author != "" && doc.Author != q.Author {
			continue
		}
		if q.CreatedAfter != nil && doc.CreatedAt <= q.CreatedAfter.Unix() {
			continue
		}
		if q.CreatedBefore != nil && doc.CreatedAt >= q.CreatedBefore.Unix() {
			continue
		}
		if !matchesAll(doc, terms) {
			continue
		}
		matches = append(matches, doc)
	}
	i.mu.RUnlock()

	asc := q.Sort == "createdAt:asc"
	sort.Slice(matches, func(a, b int) bool {
		if matches[a].CreatedAt != matches[b].CreatedAt {
			if asc {
				return matches[a].CreatedAt < matches[b].CreatedAt
			}
			return matches[a].CreatedAt > matches[b].CreatedAt
		}
		return matches[a].ID < matches[b].ID
	})

	hits := &gifbox.SearchHits{
		IDs:                []string{},
		EstimatedTotalHits: int64(len(matches)),
		Approximate:        false,
	}

	start := min(q.Offset, len(matches))
	end := len(matches)
	if q.Limit > 0 {
		end = min(start+q.Limit, len(matches))
	}
	for _, doc := range matches[start:end] {
		hits.IDs = append(hits.IDs, doc.ID)
	}

	return hits, nil
}

func matchesAll(doc gifbox.SearchDocument, terms []string) bool {
	if len(terms) == 0 {
		return true
	}

	haystack := strings.ToLower(doc.Title + " " + strings.Join(doc.Tags, " ") + " " + doc.Author)
	for _, term := range terms {
		if !strings.Contains(haystack, term) {
			return false
		}
	}
	return true
}
