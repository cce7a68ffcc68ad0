package insight

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"patternmind/internal/config"
	"patternmind/internal/types"
)

type fakeLedger struct {
	sessions []types.SessionMetric
}

func (f *fakeLedger) SessionsInWindow(int) []types.SessionMetric {
	return f.sessions
}

func newGenerator(sessions []types.SessionMetric) *Generator {
	return NewGenerator(&fakeLedger{sessions: sessions}, config.DefaultConfig().Insight)
}

func hasInsight(report InsightReport, kind, titleFragment string) bool {
	for _, in := range report.Insights {
		if in.Kind == kind && strings.Contains(in.Title, titleFragment) {
			return true
		}
	}
	return false
}

func TestGenerateEmptyLedger(t *testing.T) {
	report := newGenerator(nil).Generate()

	assert.Empty(t, report.Insights)
	assert.Empty(t, report.Recommendations)
	assert.NotZero(t, report.GeneratedAt)
}

func TestHighSuccessRateInsight(t *testing.T) {
	now := time.Now().UTC()
	var sessions []types.SessionMetric
	for i := 0; i < 19; i++ {
		sessions = append(sessions, session("s", types.SessionCompleted, now, time.Minute))
	}
	sessions = append(sessions, session("f", types.SessionFailed, now, 0))

	report := newGenerator(sessions).Generate()
	assert.True(t, hasInsight(report, "success", "High session success rate"))
}

func TestLowSuccessRateWarning(t *testing.T) {
	now := time.Now().UTC()
	sessions := []types.SessionMetric{
		session("a", types.SessionCompleted, now, time.Minute),
		session("b", types.SessionFailed, now, 0),
	}

	report := newGenerator(sessions).Generate()
	require.True(t, hasInsight(report, "warning", "Low session success rate"))

	var rec string
	for _, in := range report.Insights {
		if in.Kind == "warning" {
			rec = in.Recommendation
		}
	}
	assert.Contains(t, rec, "planning")
}

func TestFailingGateInsight(t *testing.T) {
	now := time.Now().UTC()
	var sessions []types.SessionMetric
	for i := 0; i < 10; i++ {
		m := session("s", types.SessionCompleted, now, time.Minute)
		m.QualityGates = map[string]types.GateResult{
			types.GateTests: {Passed: i < 5, Count: 1}, // 50% pass rate
			types.GateLint:  {Passed: true, Count: 1},  // 100%
		}
		sessions = append(sessions, m)
	}

	report := newGenerator(sessions).Generate()
	assert.True(t, hasInsight(report, "improvement", `Quality gate "tests"`))
	assert.False(t, hasInsight(report, "improvement", `Quality gate "lint"`))
}

func TestDominantErrorBecomesNegativePattern(t *testing.T) {
	now := time.Now().UTC()
	m := session("s", types.SessionFailed, now, 0)
	for i := 0; i < 4; i++ {
		m.Errors = append(m.Errors, types.SessionError{Type: "merge-conflict"})
	}

	report := newGenerator([]types.SessionMetric{m, session("c", types.SessionCompleted, now, time.Minute)}).Generate()

	require.NotEmpty(t, report.NegativePatterns)
	assert.Contains(t, report.NegativePatterns[0], "merge-conflict")
	require.NotEmpty(t, report.Recommendations)
	assert.Contains(t, strings.Join(report.Recommendations, " "), "merge-conflict")
}

func TestLongSessionInsight(t *testing.T) {
	now := time.Now().UTC()
	sessions := []types.SessionMetric{
		session("a", types.SessionCompleted, now, 3*time.Hour),
		session("b", types.SessionCompleted, now, 4*time.Hour),
	}

	report := newGenerator(sessions).Generate()
	assert.True(t, hasInsight(report, "improvement", "Long average session duration"))
}

func TestObjectiveScopingRecommendation(t *testing.T) {
	now := time.Now().UTC()
	m := session("a", types.SessionCompleted, now, time.Minute)
	m.Objectives = []string{"1", "2", "3", "4"}
	m.CompletedObjectives = []string{"1"}

	report := newGenerator([]types.SessionMetric{m}).Generate()
	assert.Contains(t, strings.Join(report.Recommendations, " "), "fewer objectives")
}

func TestObjectiveScopingAtZeroCompletion(t *testing.T) {
	// Declared objectives with none completed is the worst case and must
	// still produce the scoping recommendation.
	now := time.Now().UTC()
	m := session("a", types.SessionCompleted, now, time.Minute)
	m.Objectives = []string{"1", "2", "3"}

	report := newGenerator([]types.SessionMetric{m}).Generate()
	assert.Contains(t, strings.Join(report.Recommendations, " "), "fewer objectives")
}

func TestFailureRecoveryRecommendation(t *testing.T) {
	now := time.Now().UTC()
	sessions := []types.SessionMetric{
		session("a", types.SessionCompleted, now, time.Minute),
		session("b", types.SessionCompleted, now, time.Minute),
		session("c", types.SessionFailed, now, 0),
	}

	// failed/successful = 0.5 > 0.3 ceiling
	report := newGenerator(sessions).Generate()
	assert.Contains(t, strings.Join(report.Recommendations, " "), "error-recovery")
}

func trendSessions(now time.Time, perDayRecent, perDayPrior int) []types.SessionMetric {
	var out []types.SessionMetric
	for day := 1; day <= 14; day++ {
		start := now.AddDate(0, 0, -day)
		n := perDayPrior
		if day <= 7 {
			n = perDayRecent
		}
		for i := 0; i < n; i++ {
			out = append(out, session("s", types.SessionCompleted, start, time.Minute))
		}
	}
	return out
}

func TestTrendRiseFlagsPositivePattern(t *testing.T) {
	now := time.Now().UTC()
	report := newGenerator(trendSessions(now, 4, 2)).Generate()

	require.NotEmpty(t, report.PositivePatterns)
	assert.Contains(t, report.PositivePatterns[0], "up")
}

func TestTrendDropFlagsNegativePatternAndRecommendation(t *testing.T) {
	now := time.Now().UTC()
	report := newGenerator(trendSessions(now, 2, 4)).Generate()

	require.NotEmpty(t, report.NegativePatterns)
	assert.Contains(t, strings.Join(report.Recommendations, " "), "workflow changes")
}

func TestTrendNeedsEnoughDays(t *testing.T) {
	now := time.Now().UTC()
	var sessions []types.SessionMetric
	for day := 1; day <= 5; day++ {
		sessions = append(sessions, session("s", types.SessionCompleted, now.AddDate(0, 0, -day), time.Minute))
	}

	report := newGenerator(sessions).Generate()
	assert.Empty(t, report.PositivePatterns)
}

func TestGenerateCaching(t *testing.T) {
	ledger := &fakeLedger{}
	g := NewGenerator(ledger, config.DefaultConfig().Insight)

	now := time.Now().UTC()
	g.clock = func() time.Time { return now }

	first := g.Generate()

	// New data arrives; a call within the TTL still serves the snapshot.
	ledger.sessions = []types.SessionMetric{session("late", types.SessionCompleted, now, time.Minute)}
	g.clock = func() time.Time { return now.Add(30 * time.Minute) }
	second := g.Generate()
	assert.Equal(t, first.GeneratedAt, second.GeneratedAt)
	assert.Equal(t, 0, second.Summary.TotalSessions)

	// Past the TTL the report recomputes.
	g.clock = func() time.Time { return now.Add(61 * time.Minute) }
	third := g.Generate()
	assert.Equal(t, 1, third.Summary.TotalSessions)
}

func TestInvalidateForcesRecompute(t *testing.T) {
	ledger := &fakeLedger{}
	g := NewGenerator(ledger, config.DefaultConfig().Insight)

	g.Generate()
	ledger.sessions = []types.SessionMetric{session("s", types.SessionCompleted, time.Now().UTC(), time.Minute)}

	g.Invalidate()
	report := g.Generate()
	assert.Equal(t, 1, report.Summary.TotalSessions)
}
