package similarity

import (
	"context"
	"errors"
	"math"
	"reflect"
	"sort"
	"testing"
	"time"

	"patternmind/internal/config"
	"patternmind/internal/types"
)

type fakeSource struct {
	snapshots map[string]types.ProjectKnowledge
	refreshed []string
	failures  map[string]error
}

func (f *fakeSource) GetOrRefresh(_ context.Context, projectID string) (types.ProjectKnowledge, error) {
	f.refreshed = append(f.refreshed, projectID)
	if err := f.failures[projectID]; err != nil {
		return types.ProjectKnowledge{}, err
	}
	k, ok := f.snapshots[projectID]
	if !ok {
		return types.ProjectKnowledge{}, types.NotFound("project", projectID)
	}
	return k, nil
}

func (f *fakeSource) Snapshots() []types.ProjectKnowledge {
	out := make([]types.ProjectKnowledge, 0, len(f.snapshots))
	for _, k := range f.snapshots {
		out = append(out, k)
	}
	return out
}

func snapshot(id, projectType string, successRate float64, patterns, deps []string) types.ProjectKnowledge {
	return types.ProjectKnowledge{
		ProjectID:    id,
		ProjectType:  projectType,
		LastAnalyzed: time.Now().UTC(),
		Patterns:     patterns,
		Dependencies: deps,
		Metrics:      types.ProjectMetrics{SuccessRate: successRate},
	}
}

func newEngine(source *fakeSource) *Engine {
	return NewEngine(source, config.DefaultConfig().Similarity)
}

func TestSimilarityReflexivity(t *testing.T) {
	a := snapshot("a", "go-service", 0.85,
		[]string{"retry", "table-test"},
		[]string{"github.com/spf13/cobra"})

	got := newEngine(&fakeSource{}).Similarity(a, a)
	if math.Abs(got-1.0) > 1e-9 {
		t.Errorf("Similarity(a, a) = %v, want 1", got)
	}
}

func TestSimilarityFormula(t *testing.T) {
	// projectA and projectB: same type, same success rate, 3 of A's 5
	// patterns shared, no shared dependencies.
	a := snapshot("a", "go-service", 0.8,
		[]string{"p1", "p2", "p3", "p4", "p5"},
		[]string{"d1", "d2"})
	b := snapshot("b", "go-service", 0.8,
		[]string{"p1", "p2", "p3", "other"},
		[]string{"d3"})

	want := 0.30 + 0.30*(3.0/5.0) + 0.20*1.0 // type + patterns + success, no deps
	engine := newEngine(&fakeSource{})

	got := engine.Similarity(a, b)
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("Similarity = %v, want %v", got, want)
	}

	// Deterministic across repeated evaluation.
	for i := 0; i < 10; i++ {
		if again := engine.Similarity(a, b); again != got {
			t.Fatalf("similarity not reproducible: %v then %v", got, again)
		}
	}
}

func TestSimilaritySuccessRateDelta(t *testing.T) {
	a := snapshot("a", "", 1.0, nil, nil)
	b := snapshot("b", "", 0.4, nil, nil)

	// Only the success term applies: (1 - 0.6) * 0.20.
	got := newEngine(&fakeSource{}).Similarity(a, b)
	if math.Abs(got-0.08) > 1e-9 {
		t.Errorf("Similarity = %v, want 0.08", got)
	}
}

func TestSimilarityEmptyReferenceTermsScoreZero(t *testing.T) {
	a := snapshot("a", "cli", 0.9, nil, nil)
	b := snapshot("b", "cli", 0.9, []string{"p1"}, []string{"d1"})

	// Pattern and dependency terms vanish when the reference has none.
	got := newEngine(&fakeSource{}).Similarity(a, b)
	if math.Abs(got-0.50) > 1e-9 {
		t.Errorf("Similarity = %v, want 0.50", got)
	}
}

func TestFindSimilarRanksAndFilters(t *testing.T) {
	source := &fakeSource{snapshots: map[string]types.ProjectKnowledge{
		"target": snapshot("target", "go-service", 0.8, []string{"p1", "p2"}, []string{"d1"}),
		// Same type, both patterns, the dependency: near-identical.
		"twin": snapshot("twin", "go-service", 0.8, []string{"p1", "p2"}, []string{"d1"}),
		// Same type only.
		"cousin": snapshot("cousin", "go-service", 0.8, nil, nil),
		// Nothing in common and a large success gap: below threshold.
		"stranger": snapshot("stranger", "web-app", 0.1, nil, nil),
	}}

	results, err := newEngine(source).FindSimilar(context.Background(), "target")
	if err != nil {
		t.Fatalf("FindSimilar: %v", err)
	}

	var ids []string
	for _, r := range results {
		ids = append(ids, r.Project.ProjectID)
	}
	if want := []string{"twin", "cousin"}; !reflect.DeepEqual(ids, want) {
		t.Fatalf("ranking = %v, want %v", ids, want)
	}

	if got := results[0].SharedPatterns; !reflect.DeepEqual(got, []string{"p1", "p2"}) {
		t.Errorf("SharedPatterns = %v, want [p1 p2]", got)
	}
	if got := results[0].SharedDependencies; !reflect.DeepEqual(got, []string{"d1"}) {
		t.Errorf("SharedDependencies = %v, want [d1]", got)
	}
	if results[0].Similarity <= results[1].Similarity {
		t.Errorf("twin (%v) must outrank cousin (%v)", results[0].Similarity, results[1].Similarity)
	}
}

func TestFindSimilarRefreshesTargetAndPeers(t *testing.T) {
	source := &fakeSource{snapshots: map[string]types.ProjectKnowledge{
		"target": snapshot("target", "go-service", 0.8, nil, nil),
		"peer":   snapshot("peer", "go-service", 0.8, nil, nil),
	}}

	if _, err := newEngine(source).FindSimilar(context.Background(), "target"); err != nil {
		t.Fatalf("FindSimilar: %v", err)
	}

	sort.Strings(source.refreshed)
	if want := []string{"peer", "target"}; !reflect.DeepEqual(source.refreshed, want) {
		t.Errorf("refreshed = %v, want %v (every served snapshot goes through the cache)", source.refreshed, want)
	}
}

func TestFindSimilarSkipsFailingPeer(t *testing.T) {
	source := &fakeSource{
		snapshots: map[string]types.ProjectKnowledge{
			"target": snapshot("target", "go-service", 0.8, nil, nil),
			"peer":   snapshot("peer", "go-service", 0.8, nil, nil),
			"broken": snapshot("broken", "go-service", 0.8, nil, nil),
		},
		failures: map[string]error{"broken": errors.New("refresh failed")},
	}

	results, err := newEngine(source).FindSimilar(context.Background(), "target")
	if err != nil {
		t.Fatalf("FindSimilar: %v", err)
	}
	if len(results) != 1 || results[0].Project.ProjectID != "peer" {
		t.Errorf("results = %v, want just peer", results)
	}
}

func TestFindSimilarUnknownTarget(t *testing.T) {
	source := &fakeSource{snapshots: map[string]types.ProjectKnowledge{}}

	_, err := newEngine(source).FindSimilar(context.Background(), "ghost")
	if !errors.Is(err, types.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
