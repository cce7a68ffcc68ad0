// Package types defines the core data model for the pattern intelligence
// engine: code patterns with usage statistics, session outcome metrics,
// per-project knowledge snapshots, and the derived cross-project artifacts.
//
// Entities reference each other by opaque id only (a pattern records the ids
// of the projects that used it, a project snapshot records the ids of the
// patterns it uses). The authoritative copy of each entity lives in its
// store; nothing here embeds one entity inside another.
package types

import (
	"fmt"
	"time"
)

// =============================================================================
// CODE PATTERNS
// =============================================================================

// PatternCategory is the fixed classification for code patterns.
type PatternCategory string

const (
	CategoryArchitecture PatternCategory = "architecture"
	CategoryComponent    PatternCategory = "component"
	CategoryAPI          PatternCategory = "api"
	CategoryTesting      PatternCategory = "testing"
	CategoryPerformance  PatternCategory = "performance"
	CategorySecurity     PatternCategory = "security"
	CategoryWorkflow     PatternCategory = "workflow"
)

// AllCategories lists every valid pattern category.
var AllCategories = []PatternCategory{
	CategoryArchitecture,
	CategoryComponent,
	CategoryAPI,
	CategoryTesting,
	CategoryPerformance,
	CategorySecurity,
	CategoryWorkflow,
}

// ParseCategory validates a category string.
func ParseCategory(s string) (PatternCategory, error) {
	for _, c := range AllCategories {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: unknown category %q", ErrInvalidCriteria, s)
}

// PatternUsage tracks how a pattern has performed across projects.
// SuccessRate is an exponential moving average (alpha 0.1) over recorded
// outcomes and is always within [0, 1]. Count never decreases.
type PatternUsage struct {
	Count       int       `json:"count"`
	LastUsed    time.Time `json:"last_used"`
	Projects    []string  `json:"projects"`
	SuccessRate float64   `json:"success_rate"`
}

// UsedBy reports whether the pattern has been used by the given project.
func (u PatternUsage) UsedBy(projectID string) bool {
	for _, p := range u.Projects {
		if p == projectID {
			return true
		}
	}
	return false
}

// PatternMetadata carries bookkeeping for a pattern record.
// Version starts at 1 and increments by exactly one per update.
type PatternMetadata struct {
	Created         time.Time `json:"created"`
	Updated         time.Time `json:"updated"`
	Version         int       `json:"version"`
	Dependencies    []string  `json:"dependencies,omitempty"`
	RelatedPatterns []string  `json:"related_patterns,omitempty"`
}

// PatternExample is a worked usage example attached to a pattern.
type PatternExample struct {
	Description string `json:"description"`
	Code        string `json:"code"`
	Context     string `json:"context,omitempty"`
}

// PerformanceProfile is an optional complexity annotation for a pattern.
type PerformanceProfile struct {
	Complexity     string  `json:"complexity"`
	AvgExecutionMs float64 `json:"avg_execution_ms,omitempty"`
	MemoryNote     string  `json:"memory_note,omitempty"`
}

// CodePattern is a reusable, named code fragment with tracked usage and
// success statistics. The id is derived from the name at registration time
// and never changes afterwards. Patterns are never physically deleted.
type CodePattern struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Category    PatternCategory     `json:"category"`
	Description string              `json:"description"`
	Code        string              `json:"code"`
	Language    string              `json:"language"`
	Tags        []string            `json:"tags"`
	Usage       PatternUsage        `json:"usage"`
	Metadata    PatternMetadata     `json:"metadata"`
	Examples    []PatternExample    `json:"examples,omitempty"`
	Performance *PerformanceProfile `json:"performance,omitempty"`
}

// LanguageAgnostic reports whether the pattern applies regardless of target
// language (no language declared, or explicitly "any").
func (p CodePattern) LanguageAgnostic() bool {
	return p.Language == "" || p.Language == "any"
}

// PatternDraft is the caller-supplied portion of a new pattern. The store
// assigns id, usage, and metadata.
type PatternDraft struct {
	Name        string
	Category    PatternCategory
	Description string
	Code        string
	Language    string
	Tags        []string
	Examples    []PatternExample
	Performance *PerformanceProfile
}

// PatternUpdate is a partial update to an existing pattern. Nil fields are
// left untouched. Identity and usage statistics cannot be changed this way.
type PatternUpdate struct {
	Name            *string
	Category        *PatternCategory
	Description     *string
	Code            *string
	Language        *string
	Tags            []string
	Examples        []PatternExample
	Dependencies    []string
	RelatedPatterns []string
	Performance     *PerformanceProfile
}

// SearchCriteria selects and ranks patterns. All facets are optional; facets
// that are set narrow the result (intersection semantics).
type SearchCriteria struct {
	Category       *PatternCategory
	Tags           []string
	Language       string
	SearchText     string
	MinSuccessRate *float64
	Limit          int
}

// Empty reports whether no index facet is set (text and success filters are
// applied after candidate selection and do not count as facets).
func (c SearchCriteria) Empty() bool {
	return c.Category == nil && len(c.Tags) == 0 && c.Language == ""
}

// Validate rejects criteria that can never be satisfied correctly.
func (c SearchCriteria) Validate() error {
	if c.Category != nil {
		if _, err := ParseCategory(string(*c.Category)); err != nil {
			return err
		}
	}
	if c.MinSuccessRate != nil && (*c.MinSuccessRate < 0 || *c.MinSuccessRate > 1) {
		return fmt.Errorf("%w: min success rate %.3f outside [0,1]", ErrInvalidCriteria, *c.MinSuccessRate)
	}
	if c.Limit < 0 {
		return fmt.Errorf("%w: negative limit %d", ErrInvalidCriteria, c.Limit)
	}
	return nil
}

// PatternMatch is one ranked search result.
type PatternMatch struct {
	Pattern   CodePattern `json:"pattern"`
	Relevance float64     `json:"relevance"`
	Reason    string      `json:"reason"`
}

// =============================================================================
// SESSION METRICS
// =============================================================================

// SessionStatus is the lifecycle state of a development session.
type SessionStatus string

const (
	SessionRunning   SessionStatus = "running"
	SessionCompleted SessionStatus = "completed"
	SessionFailed    SessionStatus = "failed"
	SessionCancelled SessionStatus = "cancelled"
)

// Terminal reports whether the status forbids further mutation.
func (s SessionStatus) Terminal() bool {
	return s == SessionCompleted || s == SessionFailed || s == SessionCancelled
}

// SessionError is one recorded error event within a session.
type SessionError struct {
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// GateResult tracks a named quality gate within a session.
type GateResult struct {
	Passed bool `json:"passed"`
	Count  int  `json:"count"`
}

// The four quality gates every session reports against.
const (
	GateLint      = "lint"
	GateTypecheck = "typecheck"
	GateTests     = "tests"
	GateBuild     = "build"
)

// QualityGateNames lists the gates in reporting order.
var QualityGateNames = []string{GateLint, GateTypecheck, GateTests, GateBuild}

// SessionMetric is the outcome record for one development session. Duration
// is set only when the session reaches completed or failed. Once the status
// is terminal the record is immutable.
type SessionMetric struct {
	SessionID           string                   `json:"session_id"`
	StartTime           time.Time                `json:"start_time"`
	EndTime             *time.Time               `json:"end_time,omitempty"`
	Duration            *time.Duration           `json:"duration,omitempty"`
	Status              SessionStatus            `json:"status"`
	Objectives          []string                 `json:"objectives"`
	CompletedObjectives []string                 `json:"completed_objectives"`
	Errors              []SessionError           `json:"errors"`
	QualityGates        map[string]GateResult    `json:"quality_gates"`
	FilesChanged        int                      `json:"files_changed"`
	LinesAdded          int                      `json:"lines_added"`
	LinesRemoved        int                      `json:"lines_removed"`
	Commits             int                      `json:"commits"`
	Performance         map[string]time.Duration `json:"performance,omitempty"`
}

// HasObjective reports whether the session declared the given objective.
func (m SessionMetric) HasObjective(objective string) bool {
	for _, o := range m.Objectives {
		if o == objective {
			return true
		}
	}
	return false
}

// ObjectiveDone reports whether the objective was already marked complete.
func (m SessionMetric) ObjectiveDone(objective string) bool {
	for _, o := range m.CompletedObjectives {
		if o == objective {
			return true
		}
	}
	return false
}

// SessionUpdate is a partial update applied to a running session.
type SessionUpdate struct {
	Status       *SessionStatus
	Objectives   []string
	FilesChanged *int
	LinesAdded   *int
	LinesRemoved *int
	Commits      *int
}

// =============================================================================
// PROJECT KNOWLEDGE
// =============================================================================

// ErrorFrequency is one entry of a common-error ranking.
type ErrorFrequency struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// DebtSeverity grades a technical debt item.
type DebtSeverity string

const (
	DebtLow    DebtSeverity = "low"
	DebtMedium DebtSeverity = "medium"
	DebtHigh   DebtSeverity = "high"
)

// DebtItem is one detected technical debt entry for a project.
type DebtItem struct {
	Type        string       `json:"type"`
	Severity    DebtSeverity `json:"severity"`
	Description string       `json:"description"`
}

// ProjectMetrics aggregates session outcomes for one project.
type ProjectMetrics struct {
	SessionCount int              `json:"session_count"`
	SuccessRate  float64          `json:"success_rate"`
	AvgDuration  time.Duration    `json:"avg_duration"`
	CommonErrors []ErrorFrequency `json:"common_errors"`
}

// StylePreference is one extracted code-style rule for a project.
type StylePreference struct {
	Rule       string  `json:"rule"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

// ProjectKnowledge is a point-in-time snapshot of one project: the patterns
// it uses (by id), its extracted style, its aggregated session metrics, its
// declared dependencies, and detected technical debt. A snapshot older than
// the staleness window must be recomputed before it is trusted for
// similarity or transfer decisions.
type ProjectKnowledge struct {
	ProjectID        string            `json:"project_id"`
	ProjectType      string            `json:"project_type"`
	LastAnalyzed     time.Time         `json:"last_analyzed"`
	Patterns         []string          `json:"patterns"`
	StylePreferences []StylePreference `json:"style_preferences"`
	Metrics          ProjectMetrics    `json:"metrics"`
	Dependencies     []string          `json:"dependencies"`
	TechnicalDebt    []DebtItem        `json:"technical_debt"`
}

// StaleAt reports whether the snapshot is older than maxAge at the given
// reference time.
func (k ProjectKnowledge) StaleAt(now time.Time, maxAge time.Duration) bool {
	return now.Sub(k.LastAnalyzed) > maxAge
}

// HasDependency reports whether the project declares the given dependency.
func (k ProjectKnowledge) HasDependency(dep string) bool {
	for _, d := range k.Dependencies {
		if d == dep {
			return true
		}
	}
	return false
}

// UsesPattern reports whether the snapshot lists the given pattern id.
func (k ProjectKnowledge) UsesPattern(patternID string) bool {
	for _, p := range k.Patterns {
		if p == patternID {
			return true
		}
	}
	return false
}

// =============================================================================
// DERIVED ARTIFACTS
// =============================================================================

// InsightType classifies a cross-project insight.
type InsightType string

const (
	InsightPattern      InsightType = "pattern"
	InsightAntipattern  InsightType = "antipattern"
	InsightOptimization InsightType = "optimization"
	InsightWarning      InsightType = "warning"
)

// CrossProjectInsight is a derived, non-authoritative observation spanning
// projects. The full set is regenerated wholesale on each global analysis
// run; prior insights are replaced, never merged.
type CrossProjectInsight struct {
	ID               string      `json:"id"`
	Type             InsightType `json:"type"`
	Title            string      `json:"title"`
	Description      string      `json:"description"`
	AffectedProjects []string    `json:"affected_projects"`
	Recommendation   string      `json:"recommendation"`
	Confidence       float64     `json:"confidence"`
	Examples         []string    `json:"examples,omitempty"`
}

// Affects reports whether the insight names the given project.
func (i CrossProjectInsight) Affects(projectID string) bool {
	for _, p := range i.AffectedProjects {
		if p == projectID {
			return true
		}
	}
	return false
}

// LearningTransfer is an ephemeral plan for moving knowledge from one
// project to another. It is computed on demand and never persisted.
type LearningTransfer struct {
	FromProject     string            `json:"from_project"`
	ToProject       string            `json:"to_project"`
	Patterns        []CodePattern     `json:"patterns"`
	Styles          []StylePreference `json:"styles"`
	Recommendations []string          `json:"recommendations"`
}

// SimilarProject is one ranked entry from a nearest-neighbor query.
type SimilarProject struct {
	Project            ProjectKnowledge `json:"project"`
	Similarity         float64          `json:"similarity"`
	SharedPatterns     []string         `json:"shared_patterns"`
	SharedDependencies []string         `json:"shared_dependencies"`
}
