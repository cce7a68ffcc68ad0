package intelligence

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"patternmind/internal/config"
	"patternmind/internal/types"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Storage.DatabasePath = ":memory:"
	return cfg
}

func newTestCoordinator(t *testing.T) *Coordinator {
	t.Helper()
	c := NewCoordinator(testConfig(), t.TempDir(), nil, nil)
	if err := c.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestNotInitializedGuards(t *testing.T) {
	c := NewCoordinator(testConfig(), t.TempDir(), nil, nil)

	if _, err := c.RegisterPattern(types.PatternDraft{Name: "x", Category: types.CategoryTesting}); !errors.Is(err, types.ErrNotInitialized) {
		t.Errorf("RegisterPattern err = %v, want ErrNotInitialized", err)
	}
	if _, err := c.SearchPatterns(types.SearchCriteria{}); !errors.Is(err, types.ErrNotInitialized) {
		t.Errorf("SearchPatterns err = %v, want ErrNotInitialized", err)
	}
	if _, err := c.MetricsSummary(30); !errors.Is(err, types.ErrNotInitialized) {
		t.Errorf("MetricsSummary err = %v, want ErrNotInitialized", err)
	}
	if _, err := c.PlanTransfer(context.Background(), "a", "b"); !errors.Is(err, types.ErrNotInitialized) {
		t.Errorf("PlanTransfer err = %v, want ErrNotInitialized", err)
	}
	if _, err := c.ExportPatterns(nil); !errors.Is(err, types.ErrNotInitialized) {
		t.Errorf("ExportPatterns err = %v, want ErrNotInitialized", err)
	}
}

func TestInitializeIsIdempotent(t *testing.T) {
	c := newTestCoordinator(t)
	if err := c.Initialize(context.Background()); err != nil {
		t.Fatalf("second Initialize: %v", err)
	}
}

func TestCloseDisablesCoordinator(t *testing.T) {
	c := NewCoordinator(testConfig(), t.TempDir(), nil, nil)
	if err := c.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := c.SearchPatterns(types.SearchCriteria{}); !errors.Is(err, types.ErrNotInitialized) {
		t.Errorf("post-Close err = %v, want ErrNotInitialized", err)
	}
	// Second Close is a no-op.
	if err := c.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestRegisterPatternIsSearchable(t *testing.T) {
	c := newTestCoordinator(t)

	p, err := c.RegisterPattern(types.PatternDraft{
		Name:     "Retry With Backoff",
		Category: types.CategoryWorkflow,
		Language: "go",
		Tags:     []string{"resilience"},
	})
	if err != nil {
		t.Fatalf("RegisterPattern: %v", err)
	}

	matches, err := c.SearchPatterns(types.SearchCriteria{Tags: []string{"resilience"}})
	if err != nil {
		t.Fatalf("SearchPatterns: %v", err)
	}
	if len(matches) != 1 || matches[0].Pattern.ID != p.ID {
		t.Fatalf("matches = %v, want the new pattern (index rebuilt on add)", matches)
	}
}

func TestRecordUsageFlowsIntoSearchRanking(t *testing.T) {
	c := newTestCoordinator(t)

	p, err := c.RegisterPattern(types.PatternDraft{Name: "Table Test", Category: types.CategoryTesting})
	if err != nil {
		t.Fatalf("RegisterPattern: %v", err)
	}
	if err := c.RecordPatternUsage(p.ID, "projecta", false); err != nil {
		t.Fatalf("RecordPatternUsage: %v", err)
	}

	got, err := c.GetPattern(p.ID)
	if err != nil {
		t.Fatalf("GetPattern: %v", err)
	}
	if got.Usage.Count != 1 {
		t.Errorf("Count = %d, want 1", got.Usage.Count)
	}
	if got.Usage.SuccessRate != 0.9 {
		t.Errorf("SuccessRate = %v, want 0.9 after one failure from 1.0", got.Usage.SuccessRate)
	}
}

func TestSessionLifecycleThroughFacade(t *testing.T) {
	c := newTestCoordinator(t)

	m, err := c.StartSession("projecta-1", []string{"implement", "test"})
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if err := c.RecordQualityGate(m.SessionID, types.GateTests, true); err != nil {
		t.Fatalf("RecordQualityGate: %v", err)
	}
	if err := c.CompleteObjective(m.SessionID, "implement"); err != nil {
		t.Fatalf("CompleteObjective: %v", err)
	}
	if err := c.RecordSessionError(m.SessionID, "lint", "unused variable"); err != nil {
		t.Fatalf("RecordSessionError: %v", err)
	}

	status := types.SessionCompleted
	if err := c.UpdateSession(m.SessionID, types.SessionUpdate{Status: &status}); err != nil {
		t.Fatalf("UpdateSession: %v", err)
	}

	summary, err := c.MetricsSummary(30)
	if err != nil {
		t.Fatalf("MetricsSummary: %v", err)
	}
	if summary.TotalSessions != 1 || summary.SuccessfulSessions != 1 {
		t.Errorf("summary = %+v, want one completed session", summary)
	}
	if len(summary.TopErrors) != 1 || summary.TopErrors[0].Type != "lint" {
		t.Errorf("TopErrors = %v, want the lint error", summary.TopErrors)
	}
}

func TestSessionCompletionEvent(t *testing.T) {
	c := newTestCoordinator(t)

	events := make(chan Event, 4)
	if err := c.Subscribe(func(e Event) { events <- e }); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	if _, err := c.StartSession("projecta-1", nil); err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	status := types.SessionCompleted
	if err := c.UpdateSession("projecta-1", types.SessionUpdate{Status: &status}); err != nil {
		t.Fatalf("UpdateSession: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case e := <-events:
			if e.Type == EventSessionCompleted && e.ID == "projecta-1" {
				return
			}
		case <-deadline:
			t.Fatal("session completion event not delivered")
		}
	}
}

func TestAnalyzeGlobalPatternsPersistsInsights(t *testing.T) {
	c := newTestCoordinator(t)

	p, err := c.RegisterPattern(types.PatternDraft{Name: "Proven", Category: types.CategoryArchitecture})
	if err != nil {
		t.Fatalf("RegisterPattern: %v", err)
	}
	// 11 successful uses on a 1.0 rate keep it above both thresholds.
	for i := 0; i < 11; i++ {
		if err := c.RecordPatternUsage(p.ID, "projecta", true); err != nil {
			t.Fatalf("RecordPatternUsage: %v", err)
		}
	}

	insights, err := c.AnalyzeGlobalPatterns()
	if err != nil {
		t.Fatalf("AnalyzeGlobalPatterns: %v", err)
	}
	if len(insights) != 1 || !strings.HasPrefix(insights[0].ID, "pattern-") {
		t.Fatalf("insights = %v, want one proven-pattern insight", insights)
	}

	// Persisted: readable through the query side, including the filter.
	all, err := c.CrossProjectInsights("")
	if err != nil {
		t.Fatalf("CrossProjectInsights: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("persisted insights = %v, want 1", all)
	}
	forProject, err := c.CrossProjectInsights("projecta")
	if err != nil {
		t.Fatalf("CrossProjectInsights(projecta): %v", err)
	}
	if len(forProject) != 1 {
		t.Errorf("insights for projecta = %v, want 1", forProject)
	}
	forOther, err := c.CrossProjectInsights("unrelated")
	if err != nil {
		t.Fatalf("CrossProjectInsights(unrelated): %v", err)
	}
	if len(forOther) != 0 {
		t.Errorf("insights for unrelated = %v, want none", forOther)
	}
}

func TestExportImportThroughFacade(t *testing.T) {
	c := newTestCoordinator(t)

	if _, err := c.RegisterPattern(types.PatternDraft{Name: "Mock Clock", Category: types.CategoryTesting}); err != nil {
		t.Fatalf("RegisterPattern: %v", err)
	}

	serialized, err := c.ExportPatterns(nil)
	if err != nil {
		t.Fatalf("ExportPatterns: %v", err)
	}
	imported, err := c.ImportPatterns(serialized)
	if err != nil {
		t.Fatalf("ImportPatterns: %v", err)
	}
	if imported != 0 {
		t.Errorf("round-trip imported %d, want 0", imported)
	}
}

type staticAnalyzer struct{ detected string }

func (s staticAnalyzer) AnalyzeProject(context.Context, string) (types.ProjectAnalysis, error) {
	return types.ProjectAnalysis{DetectedType: s.detected, Confidence: 1}, nil
}

func TestProjectKnowledgeThroughFacade(t *testing.T) {
	c := NewCoordinator(testConfig(), t.TempDir(), staticAnalyzer{detected: "go-service"}, nil)
	if err := c.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	t.Cleanup(func() { c.Close() })

	if err := c.RegisterProject("projecta", t.TempDir(), false); err != nil {
		t.Fatalf("RegisterProject: %v", err)
	}

	k, err := c.ProjectKnowledge(context.Background(), "projecta")
	if err != nil {
		t.Fatalf("ProjectKnowledge: %v", err)
	}
	if k.ProjectType != "go-service" {
		t.Errorf("ProjectType = %q, want go-service", k.ProjectType)
	}

	// The fresh snapshot feeds similarity without error.
	if _, err := c.FindSimilarProjects(context.Background(), "projecta"); err != nil {
		t.Fatalf("FindSimilarProjects: %v", err)
	}
}
