package insight

import (
	"fmt"
	"sync"
	"time"

	"patternmind/internal/config"
	"patternmind/internal/logging"
	"patternmind/internal/types"
)

// Insight is one flagged observation in a report.
type Insight struct {
	Kind           string `json:"kind"` // success, warning, improvement
	Title          string `json:"title"`
	Detail         string `json:"detail"`
	Recommendation string `json:"recommendation,omitempty"`
}

// InsightReport is the derived view over the summary window: flagged
// observations, detected positive and negative workflow patterns, and
// global recommendations.
type InsightReport struct {
	GeneratedAt      time.Time      `json:"generated_at"`
	Summary          MetricsSummary `json:"summary"`
	Insights         []Insight      `json:"insights"`
	PositivePatterns []string       `json:"positive_patterns"`
	NegativePatterns []string       `json:"negative_patterns"`
	Recommendations  []string       `json:"recommendations"`
}

// SessionWindow is the slice of the ledger the generator reads.
type SessionWindow interface {
	SessionsInWindow(windowDays int) []types.SessionMetric
}

// Generator derives insight reports from ledger aggregates. Reports are
// cached for the configured TTL: two calls within the window return the
// same snapshot even if sessions were recorded in between. That staleness
// window is documented behavior; callers that need fresher data call
// Invalidate first.
type Generator struct {
	ledger SessionWindow
	cfg    config.InsightConfig
	clock  func() time.Time

	mu       sync.Mutex
	cached   *InsightReport
	cachedAt time.Time
}

// NewGenerator creates an insight generator over the given ledger.
func NewGenerator(ledger SessionWindow, cfg config.InsightConfig) *Generator {
	return &Generator{ledger: ledger, cfg: cfg, clock: time.Now}
}

// Generate returns the current insight report, serving the cached one while
// it is younger than the cache TTL.
func (g *Generator) Generate() InsightReport {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock().UTC()
	if g.cached != nil && now.Sub(g.cachedAt) < g.cfg.CacheTTLDuration() {
		logging.Get(logging.CategoryInsight).Debug("Serving cached report (age %v)", now.Sub(g.cachedAt))
		return *g.cached
	}

	timer := logging.StartTimer(logging.CategoryInsight, "Generator.Generate")
	defer timer.Stop()

	windowDays := g.cfg.SummaryWindowDays
	if windowDays <= 0 {
		windowDays = 30
	}
	summary := Summarize(g.ledger.SessionsInWindow(windowDays), windowDays, g.cfg.CommonErrorLimit)
	report := g.build(summary, now)

	g.cached = &report
	g.cachedAt = now
	return report
}

// Invalidate drops the cached report so the next Generate recomputes.
func (g *Generator) Invalidate() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cached = nil
}

// build applies the insight rules to a summary.
func (g *Generator) build(summary MetricsSummary, now time.Time) InsightReport {
	report := InsightReport{
		GeneratedAt:      now,
		Summary:          summary,
		Insights:         []Insight{},
		PositivePatterns: []string{},
		NegativePatterns: []string{},
		Recommendations:  []string{},
	}

	if summary.TotalSessions == 0 {
		return report
	}

	// Overall success rate.
	rate := summary.SuccessRate()
	finished := summary.SuccessfulSessions + summary.FailedSessions
	if finished > 0 {
		if rate > g.cfg.HighSuccessRate {
			report.Insights = append(report.Insights, Insight{
				Kind:   "success",
				Title:  "High session success rate",
				Detail: fmt.Sprintf("%.0f%% of finished sessions completed successfully", rate*100),
			})
		} else if rate < g.cfg.LowSuccessRate {
			report.Insights = append(report.Insights, Insight{
				Kind:           "warning",
				Title:          "Low session success rate",
				Detail:         fmt.Sprintf("only %.0f%% of finished sessions completed successfully", rate*100),
				Recommendation: "Review session planning and break work into smaller, verifiable objectives",
			})
		}
	}

	// Quality gates.
	for _, gate := range types.QualityGateNames {
		passRate, ok := summary.GatePassRates[gate]
		if !ok {
			continue
		}
		if passRate < g.cfg.GatePassThreshold {
			report.Insights = append(report.Insights, Insight{
				Kind:           "improvement",
				Title:          fmt.Sprintf("Quality gate %q failing often", gate),
				Detail:         fmt.Sprintf("%s passes in only %.0f%% of sessions", gate, passRate*100),
				Recommendation: fmt.Sprintf("Run the %s gate earlier in the session to catch failures sooner", gate),
			})
		}
	}

	// Dominant recurring error.
	if len(summary.TopErrors) > 0 && summary.TopErrors[0].Count > 1 {
		top := summary.TopErrors[0]
		report.NegativePatterns = append(report.NegativePatterns,
			fmt.Sprintf("Recurring error: %s (%d occurrences)", top.Type, top.Count))
		report.Recommendations = append(report.Recommendations,
			fmt.Sprintf("Address the recurring %q error; it accounts for the most failures in the window", top.Type))
	}

	// Week-over-window productivity trend.
	g.applyTrend(&report, summary, now)

	// Long sessions.
	if summary.AverageDuration > g.cfg.LongSessionCutoff() {
		report.Insights = append(report.Insights, Insight{
			Kind:           "improvement",
			Title:          "Long average session duration",
			Detail:         fmt.Sprintf("completed sessions average %v", summary.AverageDuration.Round(time.Minute)),
			Recommendation: "Decompose tasks so sessions finish within a shorter focus window",
		})
	}

	// Objective completion. A window with declared but zero completed
	// objectives (ratio 0) must still trip the floor.
	if summary.ObjectivesDeclared > 0 && summary.ObjectiveCompletion < g.cfg.ObjectiveRatioFloor {
		report.Recommendations = append(report.Recommendations,
			fmt.Sprintf("Only %.0f%% of declared objectives are completed; scope sessions with fewer objectives", summary.ObjectiveCompletion*100))
	}

	// Failure recovery.
	if summary.SuccessfulSessions > 0 {
		failureRatio := float64(summary.FailedSessions) / float64(summary.SuccessfulSessions)
		if failureRatio > g.cfg.FailureRatioCeiling {
			report.Recommendations = append(report.Recommendations,
				"Failed sessions are frequent relative to successes; adopt an error-recovery strategy such as checkpointing progress before risky steps")
		}
	}

	return report
}

// applyTrend compares the most recent trend week against the remainder of
// the window, flagging sustained rises or drops in completed sessions.
func (g *Generator) applyTrend(report *InsightReport, summary MetricsSummary, now time.Time) {
	if len(summary.DailyTrend) < g.cfg.TrendMinDays {
		return
	}

	weekStart := now.AddDate(0, 0, -g.cfg.TrendWindowDays).Format("2006-01-02")
	var recentSum, priorSum, recentDays, priorDays int
	for _, day := range summary.DailyTrend {
		if day.Date >= weekStart {
			recentSum += day.SessionsCompleted
			recentDays++
		} else {
			priorSum += day.SessionsCompleted
			priorDays++
		}
	}
	if recentDays == 0 || priorDays == 0 || priorSum == 0 {
		return
	}

	recentMean := float64(recentSum) / float64(recentDays)
	priorMean := float64(priorSum) / float64(priorDays)
	change := (recentMean - priorMean) / priorMean

	switch {
	case change >= g.cfg.TrendChangeThreshold:
		report.PositivePatterns = append(report.PositivePatterns,
			fmt.Sprintf("Completed sessions per day up %.0f%% over the last %d days", change*100, g.cfg.TrendWindowDays))
	case change <= -g.cfg.TrendChangeThreshold:
		report.NegativePatterns = append(report.NegativePatterns,
			fmt.Sprintf("Completed sessions per day down %.0f%% over the last %d days", -change*100, g.cfg.TrendWindowDays))
		report.Recommendations = append(report.Recommendations,
			"Productivity dropped this week; review recent workflow changes")
	}
}
