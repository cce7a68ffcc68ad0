package intelligence

import (
	"fmt"
	"sort"
	"time"

	"patternmind/internal/config"
	"patternmind/internal/logging"
	"patternmind/internal/types"
)

// GlobalPatternAnalyzer scans every pattern and every project snapshot for
// cross-cutting observations. Each run regenerates the full insight list;
// prior insights are replaced, never merged.
type GlobalPatternAnalyzer struct {
	cfg config.AnalysisConfig
}

// NewGlobalPatternAnalyzer creates an analyzer with the given thresholds.
func NewGlobalPatternAnalyzer(cfg config.AnalysisConfig) *GlobalPatternAnalyzer {
	return &GlobalPatternAnalyzer{cfg: cfg}
}

// Analyze derives the current cross-project insight set. The result is
// sorted by id so repeated runs over identical inputs are byte-identical.
func (a *GlobalPatternAnalyzer) Analyze(patterns []types.CodePattern, snapshots []types.ProjectKnowledge) []types.CrossProjectInsight {
	timer := logging.StartTimer(logging.CategoryCoordinator, "GlobalPatternAnalyzer.Analyze")
	defer timer.Stop()

	insights := []types.CrossProjectInsight{}
	insights = append(insights, a.patternInsights(patterns)...)
	insights = append(insights, a.errorWarnings(snapshots)...)
	insights = append(insights, a.durationOptimizations(snapshots)...)

	sort.Slice(insights, func(i, j int) bool { return insights[i].ID < insights[j].ID })

	logging.Get(logging.CategoryCoordinator).Info("Global analysis produced %d insights over %d patterns, %d projects",
		len(insights), len(patterns), len(snapshots))
	return insights
}

// patternInsights flags individual patterns as proven or as antipatterns
// based on their usage track record.
func (a *GlobalPatternAnalyzer) patternInsights(patterns []types.CodePattern) []types.CrossProjectInsight {
	var insights []types.CrossProjectInsight
	for _, p := range patterns {
		switch {
		case p.Usage.Count > a.cfg.PatternMinUsage && p.Usage.SuccessRate > a.cfg.PatternMinSuccess:
			insights = append(insights, types.CrossProjectInsight{
				ID:               "pattern-" + p.ID,
				Type:             types.InsightPattern,
				Title:            fmt.Sprintf("Proven pattern: %s", p.Name),
				Description:      fmt.Sprintf("%q has %d uses at a %.0f%% success rate", p.Name, p.Usage.Count, p.Usage.SuccessRate*100),
				AffectedProjects: append([]string(nil), p.Usage.Projects...),
				Recommendation:   fmt.Sprintf("Prefer %q when its category applies; its track record is strong", p.Name),
				Confidence:       p.Usage.SuccessRate,
			})
		case p.Usage.Count > a.cfg.AntipatternMinUsage && p.Usage.SuccessRate < a.cfg.AntipatternMaxSuccess:
			insights = append(insights, types.CrossProjectInsight{
				ID:               "antipattern-" + p.ID,
				Type:             types.InsightAntipattern,
				Title:            fmt.Sprintf("Failing pattern: %s", p.Name),
				Description:      fmt.Sprintf("%q has %d uses but only a %.0f%% success rate", p.Name, p.Usage.Count, p.Usage.SuccessRate*100),
				AffectedProjects: append([]string(nil), p.Usage.Projects...),
				Recommendation:   fmt.Sprintf("Avoid %q or rework it; it fails more often than it succeeds", p.Name),
				Confidence:       1 - p.Usage.SuccessRate,
			})
		}
	}
	return insights
}

// errorWarnings flags error types that recur across more than the
// configured number of projects.
func (a *GlobalPatternAnalyzer) errorWarnings(snapshots []types.ProjectKnowledge) []types.CrossProjectInsight {
	affected := make(map[string][]string)
	for _, snapshot := range snapshots {
		for _, e := range snapshot.Metrics.CommonErrors {
			affected[e.Type] = append(affected[e.Type], snapshot.ProjectID)
		}
	}

	var insights []types.CrossProjectInsight
	for errType, projects := range affected {
		if len(projects) <= a.cfg.RecurringErrorMin {
			continue
		}
		sort.Strings(projects)
		insights = append(insights, types.CrossProjectInsight{
			ID:               "warning-" + errType,
			Type:             types.InsightWarning,
			Title:            fmt.Sprintf("Recurring error across projects: %s", errType),
			Description:      fmt.Sprintf("%q errors occur in %d projects", errType, len(projects)),
			AffectedProjects: projects,
			Recommendation:   fmt.Sprintf("Investigate the shared cause of %q errors; it is not project-specific", errType),
			Confidence:       float64(len(projects)) / float64(len(snapshots)),
		})
	}
	return insights
}

// durationOptimizations flags project-type groups whose mean session
// duration far exceeds the group's best performer.
func (a *GlobalPatternAnalyzer) durationOptimizations(snapshots []types.ProjectKnowledge) []types.CrossProjectInsight {
	type group struct {
		projects []string
		total    time.Duration
		min      time.Duration
		fastest  string
	}
	groups := make(map[string]*group)
	for _, snapshot := range snapshots {
		if snapshot.ProjectType == "" || snapshot.Metrics.AvgDuration <= 0 {
			continue
		}
		g, ok := groups[snapshot.ProjectType]
		if !ok {
			g = &group{min: snapshot.Metrics.AvgDuration, fastest: snapshot.ProjectID}
			groups[snapshot.ProjectType] = g
		}
		g.projects = append(g.projects, snapshot.ProjectID)
		g.total += snapshot.Metrics.AvgDuration
		if snapshot.Metrics.AvgDuration < g.min {
			g.min = snapshot.Metrics.AvgDuration
			g.fastest = snapshot.ProjectID
		}
	}

	var insights []types.CrossProjectInsight
	for projectType, g := range groups {
		if len(g.projects) < 2 {
			continue
		}
		mean := g.total / time.Duration(len(g.projects))
		if float64(mean) <= a.cfg.DurationSpreadFactor*float64(g.min) {
			continue
		}
		sort.Strings(g.projects)
		insights = append(insights, types.CrossProjectInsight{
			ID:               "optimization-" + projectType,
			Type:             types.InsightOptimization,
			Title:            fmt.Sprintf("Session duration spread in %s projects", projectType),
			Description:      fmt.Sprintf("mean session duration %v vs best %v (%s)", mean.Round(time.Minute), g.min.Round(time.Minute), g.fastest),
			AffectedProjects: g.projects,
			Recommendation:   fmt.Sprintf("Compare workflows with %s, the fastest %s project", g.fastest, projectType),
			Confidence:       1 - float64(g.min)/float64(mean),
		})
	}
	return insights
}
