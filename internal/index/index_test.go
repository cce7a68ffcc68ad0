package index

import (
	"testing"

	"patternmind/internal/types"
)

func testPatterns() []types.CodePattern {
	return []types.CodePattern{
		{ID: "retry", Category: types.CategoryWorkflow, Language: "go", Tags: []string{"async", "resilience"}},
		{ID: "table-test", Category: types.CategoryTesting, Language: "go", Tags: []string{"async"}},
		{ID: "mock-clock", Category: types.CategoryTesting, Language: "go", Tags: []string{"time"}},
		{ID: "debounce", Category: types.CategoryComponent, Language: "typescript", Tags: []string{"async"}},
		{ID: "untagged", Category: types.CategoryAPI},
	}
}

func candidates(t *testing.T, idx *PatternIndex, c types.SearchCriteria) map[string]struct{} {
	t.Helper()
	return idx.Candidates(c)
}

func TestCandidatesNoFacetsReturnsAll(t *testing.T) {
	idx := New()
	idx.Rebuild(testPatterns())

	got := candidates(t, idx, types.SearchCriteria{})
	if len(got) != 5 {
		t.Errorf("no-facet query returned %d ids, want all 5", len(got))
	}
}

func TestCandidatesSingleFacets(t *testing.T) {
	idx := New()
	idx.Rebuild(testPatterns())

	testing_ := types.CategoryTesting
	tests := []struct {
		name string
		crit types.SearchCriteria
		want []string
	}{
		{"by category", types.SearchCriteria{Category: &testing_}, []string{"table-test", "mock-clock"}},
		{"by tag", types.SearchCriteria{Tags: []string{"async"}}, []string{"retry", "table-test", "debounce"}},
		{"by language", types.SearchCriteria{Language: "typescript"}, []string{"debounce"}},
		{"unknown tag", types.SearchCriteria{Tags: []string{"nope"}}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := candidates(t, idx, tt.crit)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d ids, want %d (%v)", len(got), len(tt.want), tt.want)
			}
			for _, id := range tt.want {
				if _, ok := got[id]; !ok {
					t.Errorf("missing id %q", id)
				}
			}
		})
	}
}

func TestCandidatesIntersection(t *testing.T) {
	idx := New()
	idx.Rebuild(testPatterns())

	testing_ := types.CategoryTesting
	both := candidates(t, idx, types.SearchCriteria{Category: &testing_, Tags: []string{"async"}})
	byCategory := candidates(t, idx, types.SearchCriteria{Category: &testing_})
	byTag := candidates(t, idx, types.SearchCriteria{Tags: []string{"async"}})

	if len(both) != 1 {
		t.Fatalf("intersection = %d ids, want exactly table-test", len(both))
	}
	if _, ok := both["table-test"]; !ok {
		t.Error("intersection should contain table-test")
	}

	// A multi-facet result is a subset of each single-facet result.
	for id := range both {
		if _, ok := byCategory[id]; !ok {
			t.Errorf("id %q not in category-only result", id)
		}
		if _, ok := byTag[id]; !ok {
			t.Errorf("id %q not in tag-only result", id)
		}
	}
}

func TestCandidatesEmptyIntersectionIsValid(t *testing.T) {
	idx := New()
	idx.Rebuild(testPatterns())

	api := types.CategoryAPI
	got := candidates(t, idx, types.SearchCriteria{Category: &api, Tags: []string{"async"}})
	if len(got) != 0 {
		t.Errorf("disjoint facets should intersect to empty, got %d", len(got))
	}
}

func TestCandidatesMultiTagIntersection(t *testing.T) {
	idx := New()
	idx.Rebuild(testPatterns())

	got := candidates(t, idx, types.SearchCriteria{Tags: []string{"async", "resilience"}})
	if len(got) != 1 {
		t.Fatalf("got %d ids, want 1", len(got))
	}
	if _, ok := got["retry"]; !ok {
		t.Error("want retry")
	}
}

func TestRebuildReplacesState(t *testing.T) {
	idx := New()
	idx.Rebuild(testPatterns())
	idx.Rebuild([]types.CodePattern{
		{ID: "only", Category: types.CategoryAPI, Tags: []string{"fresh"}},
	})

	if idx.Size() != 1 {
		t.Errorf("size = %d after rebuild, want 1", idx.Size())
	}
	if got := candidates(t, idx, types.SearchCriteria{Tags: []string{"async"}}); len(got) != 0 {
		t.Errorf("stale tag survived rebuild: %v", got)
	}
}

func TestCandidatesResultIsACopy(t *testing.T) {
	idx := New()
	idx.Rebuild(testPatterns())

	got := candidates(t, idx, types.SearchCriteria{})
	delete(got, "retry")

	again := candidates(t, idx, types.SearchCriteria{})
	if _, ok := again["retry"]; !ok {
		t.Error("mutating a result leaked into the index")
	}
}
