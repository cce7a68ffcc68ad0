// Package insight aggregates session metrics into time-windowed summaries
// and derives an insight report from them. All scoring is deterministic
// arithmetic over counters; the thresholds are policy carried in config.
package insight

import (
	"sort"
	"time"

	"patternmind/internal/logging"
	"patternmind/internal/types"
)

// DailyProductivity is one calendar day of the productivity trend.
type DailyProductivity struct {
	Date                string        `json:"date"` // 2006-01-02
	SessionsCompleted   int           `json:"sessions_completed"`
	ObjectivesCompleted int           `json:"objectives_completed"`
	AvgDuration         time.Duration `json:"avg_duration"`
}

// MetricsSummary aggregates the sessions whose start time falls within the
// summary window.
type MetricsSummary struct {
	WindowDays          int                    `json:"window_days"`
	TotalSessions       int                    `json:"total_sessions"`
	SuccessfulSessions  int                    `json:"successful_sessions"`
	FailedSessions      int                    `json:"failed_sessions"`
	CancelledSessions   int                    `json:"cancelled_sessions"`
	RunningSessions     int                    `json:"running_sessions"`
	AverageDuration     time.Duration          `json:"average_duration"` // over completed sessions only
	TopErrors           []types.ErrorFrequency `json:"top_errors"`
	ObjectivesDeclared  int                    `json:"objectives_declared"`  // sum of declared objectives
	ObjectiveCompletion float64                `json:"objective_completion"` // sum completed / sum declared
	GatePassRates       map[string]float64     `json:"gate_pass_rates"`      // passed sessions / total sessions
	DailyTrend          []DailyProductivity    `json:"daily_trend"`          // ascending by date
}

// SuccessRate is the completed share of finished (completed or failed)
// sessions, 0 when none have finished.
func (s MetricsSummary) SuccessRate() float64 {
	finished := s.SuccessfulSessions + s.FailedSessions
	if finished == 0 {
		return 0
	}
	return float64(s.SuccessfulSessions) / float64(finished)
}

// Summarize computes a MetricsSummary over the given sessions. Callers pass
// the ledger's window slice; errorLimit bounds the top-error ranking.
func Summarize(sessions []types.SessionMetric, windowDays, errorLimit int) MetricsSummary {
	timer := logging.StartTimer(logging.CategoryMetrics, "Summarize")
	defer timer.Stop()

	summary := MetricsSummary{
		WindowDays:    windowDays,
		GatePassRates: make(map[string]float64),
	}

	var totalDuration time.Duration
	completedWithDuration := 0
	errorCounts := make(map[string]int)
	gatePassed := make(map[string]int)
	objectivesTotal := 0
	objectivesDone := 0

	type dayAgg struct {
		completed  int
		objectives int
		duration   time.Duration
		durations  int
	}
	days := make(map[string]*dayAgg)

	for _, m := range sessions {
		summary.TotalSessions++
		switch m.Status {
		case types.SessionCompleted:
			summary.SuccessfulSessions++
		case types.SessionFailed:
			summary.FailedSessions++
		case types.SessionCancelled:
			summary.CancelledSessions++
		default:
			summary.RunningSessions++
		}

		if m.Status == types.SessionCompleted && m.Duration != nil {
			totalDuration += *m.Duration
			completedWithDuration++
		}

		for _, e := range m.Errors {
			errorCounts[e.Type]++
		}
		for gate, result := range m.QualityGates {
			if result.Passed {
				gatePassed[gate]++
			}
		}

		objectivesTotal += len(m.Objectives)
		objectivesDone += len(m.CompletedObjectives)

		day := m.StartTime.UTC().Format("2006-01-02")
		agg, ok := days[day]
		if !ok {
			agg = &dayAgg{}
			days[day] = agg
		}
		if m.Status == types.SessionCompleted {
			agg.completed++
			if m.Duration != nil {
				agg.duration += *m.Duration
				agg.durations++
			}
		}
		agg.objectives += len(m.CompletedObjectives)
	}

	if completedWithDuration > 0 {
		summary.AverageDuration = totalDuration / time.Duration(completedWithDuration)
	}

	summary.ObjectivesDeclared = objectivesTotal
	if objectivesTotal > 0 {
		summary.ObjectiveCompletion = float64(objectivesDone) / float64(objectivesTotal)
	}

	if summary.TotalSessions > 0 {
		for _, gate := range types.QualityGateNames {
			summary.GatePassRates[gate] = float64(gatePassed[gate]) / float64(summary.TotalSessions)
		}
		for gate, passed := range gatePassed {
			if _, known := summary.GatePassRates[gate]; !known {
				summary.GatePassRates[gate] = float64(passed) / float64(summary.TotalSessions)
			}
		}
	}

	summary.TopErrors = rankErrors(errorCounts, errorLimit)

	for day, agg := range days {
		entry := DailyProductivity{
			Date:                day,
			SessionsCompleted:   agg.completed,
			ObjectivesCompleted: agg.objectives,
		}
		if agg.durations > 0 {
			entry.AvgDuration = agg.duration / time.Duration(agg.durations)
		}
		summary.DailyTrend = append(summary.DailyTrend, entry)
	}
	sort.Slice(summary.DailyTrend, func(i, j int) bool {
		return summary.DailyTrend[i].Date < summary.DailyTrend[j].Date
	})

	return summary
}

// rankErrors returns the top limit error types by frequency, ties broken by
// name for reproducibility.
func rankErrors(counts map[string]int, limit int) []types.ErrorFrequency {
	if limit <= 0 {
		limit = 5
	}
	ranked := make([]types.ErrorFrequency, 0, len(counts))
	for errType, count := range counts {
		ranked = append(ranked, types.ErrorFrequency{Type: errType, Count: count})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].Type < ranked[j].Type
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}
