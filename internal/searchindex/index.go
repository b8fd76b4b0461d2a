// Package searchindex builds and serves the in-process inverted index over the
// activity catalog. The index is an immutable snapshot: readers always see
// either the previous build or a complete new one, never a partial structure.
package searchindex

import (
	"context"
	"time"

	"github.com/wayfarerlabs/tripweaver/internal/model"
)

// Embedder produces vector representations for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Metadata describes a completed index build.
type Metadata struct {
	Count         int       `json:"count"`
	BuiltAt       time.Time `json:"builtAt"`
	SchemaVersion int       `json:"schemaVersion"`
}

// Index holds the inverted maps and per-activity derived data for one build.
// Invariant: every id appearing in any inverted map exists in Activities.
type Index struct {
	tokenIndex    map[string][]string
	categoryIndex map[string][]string
	timeSlotIndex map[model.TimeSlot][]string
	tagIndex      map[string][]string
	vectors       map[string][]float32
	activities    map[string]model.IndexedActivity
	meta          Metadata
}

// Meta returns build metadata.
func (ix *Index) Meta() Metadata { return ix.meta }

// Get returns the indexed activity for id.
func (ix *Index) Get(id string) (model.IndexedActivity, bool) {
	a, ok := ix.activities[id]
	return a, ok
}

// Vector returns the embedding for id, if one was generated at build time.
func (ix *Index) Vector(id string) ([]float32, bool) {
	v, ok := ix.vectors[id]
	return v, ok
}

// ByToken returns ids whose search tokens include tok.
func (ix *Index) ByToken(tok string) []string { return ix.tokenIndex[tok] }

// ByCategory returns ids scoring above zero for the category.
func (ix *Index) ByCategory(cat string) []string { return ix.categoryIndex[cat] }

// ByTag returns ids carrying the exact tag.
func (ix *Index) ByTag(tag string) []string { return ix.tagIndex[tag] }

// ByTimeSlot returns ids whose derived slot matches.
func (ix *Index) ByTimeSlot(slot model.TimeSlot) []string { return ix.timeSlotIndex[slot] }

// All returns every indexed activity. The slice is freshly allocated; the
// underlying activities are copies and safe to retain.
func (ix *Index) All() []model.IndexedActivity {
	out := make([]model.IndexedActivity, 0, len(ix.activities))
	for _, a := range ix.activities {
		out = append(out, a)
	}
	return out
}

// Lookup resolves a free-text term against token, category and tag maps,
// deduping ids. It is the degraded retrieval path used when the similarity
// search collaborator is unavailable.
func (ix *Index) Lookup(term string) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(ids []string) {
		for _, id := range ids {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	for _, tok := range Tokenize(term) {
		add(ix.tokenIndex[tok])
		add(ix.categoryIndex[tok])
	}
	add(ix.tagIndex[term])
	return out
}
