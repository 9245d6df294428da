package gifbox

import (
	"strings"

	"github.com/gosimple/slug"
)

const maxSlugLength = 50

// MakeSlug derives the URL slug for a title: lowercase, hyphenated, at most
// 50 characters. Slugs are not unique.
func MakeSlug(title string) string {
	s := slug.Make(title)
	if len(s) > maxSlugLength {
		s = strings.Trim(s[:maxSlugLength], "-")
	}
	return s
}

// NormalizeTags slugs every tag, drops the ones that slug to nothing and
// removes duplicates while keeping first-seen order.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		t := slug.Make(tag)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
