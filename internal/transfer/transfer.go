// Package transfer plans the movement of proven patterns and style
// preferences from one project to another. A plan is advisory and
// ephemeral; nothing here writes to the stores.
package transfer

import (
	"context"
	"fmt"

	"patternmind/internal/config"
	"patternmind/internal/logging"
	"patternmind/internal/types"
)

// SnapshotSource supplies project knowledge snapshots, refreshing stale ones
// before they are served.
type SnapshotSource interface {
	GetOrRefresh(ctx context.Context, projectID string) (types.ProjectKnowledge, error)
	Snapshots() []types.ProjectKnowledge
}

// PatternSource resolves pattern ids to full records.
type PatternSource interface {
	GetPattern(id string) (types.CodePattern, error)
}

// Planner filters source-project patterns and styles for safe application
// to a target project.
type Planner struct {
	snapshots SnapshotSource
	patterns  PatternSource
	cfg       config.TransferConfig
}

// NewPlanner creates a learning transfer planner.
func NewPlanner(snapshots SnapshotSource, patterns PatternSource, cfg config.TransferConfig) *Planner {
	return &Planner{snapshots: snapshots, patterns: patterns, cfg: cfg}
}

// Plan builds a LearningTransfer from one project to another. Both
// snapshots are refreshed when stale before any filtering happens.
func (p *Planner) Plan(ctx context.Context, fromProject, toProject string) (types.LearningTransfer, error) {
	timer := logging.StartTimer(logging.CategoryTransfer, "Planner.Plan")
	defer timer.Stop()

	from, err := p.snapshots.GetOrRefresh(ctx, fromProject)
	if err != nil {
		return types.LearningTransfer{}, err
	}
	to, err := p.snapshots.GetOrRefresh(ctx, toProject)
	if err != nil {
		return types.LearningTransfer{}, err
	}

	plan := types.LearningTransfer{
		FromProject: fromProject,
		ToProject:   toProject,
	}

	targetLanguages := p.targetLanguages(to)
	for _, id := range from.Patterns {
		if to.UsesPattern(id) {
			continue
		}
		pattern, err := p.patterns.GetPattern(id)
		if err != nil {
			logging.Get(logging.CategoryTransfer).Warn("Snapshot references missing pattern %q, skipping", id)
			continue
		}
		if p.applicable(pattern, to, targetLanguages) {
			plan.Patterns = append(plan.Patterns, pattern)
		}
	}

	plan.Styles = p.transferableStyles(from, to)
	plan.Recommendations = p.recommendations(from, to)

	logging.Get(logging.CategoryTransfer).Info("Plan %s -> %s: %d patterns, %d styles, %d recommendations",
		fromProject, toProject, len(plan.Patterns), len(plan.Styles), len(plan.Recommendations))
	return plan, nil
}

// applicable applies the three transfer gates to one pattern.
func (p *Planner) applicable(pattern types.CodePattern, to types.ProjectKnowledge, targetLanguages map[string]bool) bool {
	// Language gate: agnostic patterns always pass; otherwise the target
	// must already work in the pattern's language. A target with no known
	// languages passes everything through.
	if !pattern.LanguageAgnostic() && len(targetLanguages) > 0 && !targetLanguages[pattern.Language] {
		return false
	}

	// Dependency gate: every declared pattern dependency must already be
	// present in the target.
	for _, dep := range pattern.Metadata.Dependencies {
		if !to.HasDependency(dep) {
			return false
		}
	}

	// Track-record gate: a pattern already tried in projects of the
	// target's type with a weak success rate is rejected.
	if p.usedInProjectType(pattern, to.ProjectType) && pattern.Usage.SuccessRate < p.cfg.MinPatternSuccess {
		return false
	}

	return true
}

// targetLanguages collects the languages of the patterns the target already
// uses. It is the best available signal for what the project is written in.
func (p *Planner) targetLanguages(to types.ProjectKnowledge) map[string]bool {
	languages := make(map[string]bool)
	for _, id := range to.Patterns {
		pattern, err := p.patterns.GetPattern(id)
		if err != nil || pattern.LanguageAgnostic() {
			continue
		}
		languages[pattern.Language] = true
	}
	return languages
}

// usedInProjectType reports whether any project using the pattern has the
// given project type.
func (p *Planner) usedInProjectType(pattern types.CodePattern, projectType string) bool {
	if projectType == "" {
		return false
	}
	for _, snapshot := range p.snapshots.Snapshots() {
		if snapshot.ProjectType == projectType && pattern.Usage.UsedBy(snapshot.ProjectID) {
			return true
		}
	}
	return false
}

// transferableStyles keeps high-confidence source styles that do not
// conflict with a rule already set differently in the target.
func (p *Planner) transferableStyles(from, to types.ProjectKnowledge) []types.StylePreference {
	targetRules := make(map[string]string, len(to.StylePreferences))
	for _, s := range to.StylePreferences {
		targetRules[s.Rule] = s.Value
	}

	var styles []types.StylePreference
	for _, s := range from.StylePreferences {
		if s.Confidence <= p.cfg.MinStyleConfidence {
			continue
		}
		if existing, set := targetRules[s.Rule]; set && existing != s.Value {
			continue
		}
		styles = append(styles, s)
	}
	return styles
}

// recommendations derives advisory text from the two snapshots' success
// rates and error sets.
func (p *Planner) recommendations(from, to types.ProjectKnowledge) []string {
	var recs []string

	if from.Metrics.SessionCount > 0 && to.Metrics.SessionCount > 0 &&
		from.Metrics.SuccessRate > to.Metrics.SuccessRate {
		recs = append(recs, fmt.Sprintf(
			"%s completes sessions at %.0f%% vs %.0f%% in %s; review its workflow for transferable habits",
			from.ProjectID, from.Metrics.SuccessRate*100, to.Metrics.SuccessRate*100, to.ProjectID))
	}

	fromErrors := make(map[string]bool, len(from.Metrics.CommonErrors))
	for _, e := range from.Metrics.CommonErrors {
		fromErrors[e.Type] = true
	}
	for _, e := range to.Metrics.CommonErrors {
		if !fromErrors[e.Type] {
			recs = append(recs, fmt.Sprintf(
				"%q errors recur in %s but not in %s; compare how %s avoids them",
				e.Type, to.ProjectID, from.ProjectID, from.ProjectID))
		}
	}

	return recs
}
