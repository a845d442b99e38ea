// Package dedup decides whether a channel post was already published.
package dedup

import (
	"strings"

	"tgfb-relay/internal/database/models"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Normalize collapses all whitespace runs to a single space, trims and
// case-folds text so that reposts of identical content compare equal.
func Normalize(text string) string {
	s := norm.NFKC.String(text)
	s = strings.Join(strings.Fields(s), " ")
	return cases.Fold().String(s)
}

// Index is the in-memory set of keys of already published posts.
type Index struct {
	byText bool
	ids    map[int]struct{}
	texts  map[string]struct{}
	groups map[string]struct{}
}

// NewIndex builds an index from stored records. Only Posted records count:
// a Failed entry never blocks a retry.
func NewIndex(records []models.PublishRecord, byText bool) *Index {
	idx := &Index{
		byText: byText,
		ids:    make(map[int]struct{}, len(records)),
		texts:  make(map[string]struct{}, len(records)),
		groups: make(map[string]struct{}),
	}
	for _, rec := range records {
		idx.Add(rec)
	}
	return idx
}

// Add registers a record.
func (idx *Index) Add(rec models.PublishRecord) {
	if rec.Status != models.StatusPosted {
		return
	}
	idx.ids[rec.SourceID] = struct{}{}
	if key := Normalize(rec.OriginalText); key != "" {
		idx.texts[key] = struct{}{}
	}
	if rec.MediaGroupID != "" {
		idx.groups[rec.MediaGroupID] = struct{}{}
	}
}

// Len returns the number of distinct source ids indexed.
func (idx *Index) Len() int { return len(idx.ids) }

// Seen reports whether any of ids, the group key or (when text dedup is on)
// the normalized text is already recorded.
func (idx *Index) Seen(ids []int, groupKey, text string) bool {
	for _, id := range ids {
		if _, ok := idx.ids[id]; ok {
			return true
		}
	}
	if groupKey != "" {
		if _, ok := idx.groups[groupKey]; ok {
			return true
		}
	}
	if idx.byText {
		if key := Normalize(text); key != "" {
			if _, ok := idx.texts[key]; ok {
				return true
			}
		}
	}
	return false
}
