// Package index maintains an inverted index from tag, category, and
// language facets to pattern ids. The index is derived and disposable: it
// is rebuilt wholesale from the pattern store whenever a pattern is added
// or its facets change, and is never a source of truth.
package index

import (
	"sync"

	"patternmind/internal/logging"
	"patternmind/internal/types"
)

// PatternIndex answers facet queries with set intersection over pattern ids.
type PatternIndex struct {
	mu         sync.RWMutex
	byTag      map[string]map[string]struct{}
	byCategory map[types.PatternCategory]map[string]struct{}
	byLanguage map[string]map[string]struct{}
	allIDs     map[string]struct{}
}

// New returns an empty index.
func New() *PatternIndex {
	idx := &PatternIndex{}
	idx.reset()
	return idx
}

func (idx *PatternIndex) reset() {
	idx.byTag = make(map[string]map[string]struct{})
	idx.byCategory = make(map[types.PatternCategory]map[string]struct{})
	idx.byLanguage = make(map[string]map[string]struct{})
	idx.allIDs = make(map[string]struct{})
}

// Rebuild recomputes every posting list from a pattern snapshot. Runs in
// O(total tags across patterns).
func (idx *PatternIndex) Rebuild(patterns []types.CodePattern) {
	timer := logging.StartTimer(logging.CategoryIndex, "PatternIndex.Rebuild")
	defer timer.Stop()

	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.reset()
	for _, p := range patterns {
		idx.allIDs[p.ID] = struct{}{}

		if set, ok := idx.byCategory[p.Category]; ok {
			set[p.ID] = struct{}{}
		} else {
			idx.byCategory[p.Category] = map[string]struct{}{p.ID: {}}
		}

		if p.Language != "" {
			if set, ok := idx.byLanguage[p.Language]; ok {
				set[p.ID] = struct{}{}
			} else {
				idx.byLanguage[p.Language] = map[string]struct{}{p.ID: {}}
			}
		}

		for _, tag := range p.Tags {
			if set, ok := idx.byTag[tag]; ok {
				set[p.ID] = struct{}{}
			} else {
				idx.byTag[tag] = map[string]struct{}{p.ID: {}}
			}
		}
	}

	logging.IndexDebug("Index rebuilt: %d patterns, %d tags, %d categories, %d languages",
		len(idx.allIDs), len(idx.byTag), len(idx.byCategory), len(idx.byLanguage))
}

// Candidates returns the pattern ids matching every specified facet of the
// criteria (intersection). With no facets set, every id matches. An empty
// intersection is a valid empty result, not an error.
func (idx *PatternIndex) Candidates(criteria types.SearchCriteria) map[string]struct{} {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if criteria.Empty() {
		return copySet(idx.allIDs)
	}

	// Gather one posting list per facet, then intersect starting from the
	// smallest.
	var lists []map[string]struct{}
	if criteria.Category != nil {
		lists = append(lists, idx.byCategory[*criteria.Category])
	}
	if criteria.Language != "" {
		lists = append(lists, idx.byLanguage[criteria.Language])
	}
	for _, tag := range criteria.Tags {
		lists = append(lists, idx.byTag[tag])
	}

	smallest := 0
	for i, list := range lists {
		if list == nil {
			return map[string]struct{}{}
		}
		if len(list) < len(lists[smallest]) {
			smallest = i
		}
	}

	result := make(map[string]struct{}, len(lists[smallest]))
outer:
	for id := range lists[smallest] {
		for i, list := range lists {
			if i == smallest {
				continue
			}
			if _, ok := list[id]; !ok {
				continue outer
			}
		}
		result[id] = struct{}{}
	}

	return result
}

// Size returns the number of indexed patterns.
func (idx *PatternIndex) Size() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.allIDs)
}

func copySet(in map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(in))
	for id := range in {
		out[id] = struct{}{}
	}
	return out
}
