package types

import "context"

// External collaborators consumed by the knowledge layer. Both are treated
// as read-only, potentially slow, and potentially failing; callers bound
// them with a context deadline and degrade to the last good snapshot on
// error.

// ProjectAnalysis is the structural analysis of a project tree produced by
// an external detector.
type ProjectAnalysis struct {
	DetectedType    string   `json:"detected_type"`
	Confidence      float64  `json:"confidence"`
	MatchedPatterns []string `json:"matched_patterns"`
	MissingElements []string `json:"missing_elements"`
}

// ProjectAnalyzer detects the project type and structural gaps for a
// project path.
type ProjectAnalyzer interface {
	AnalyzeProject(ctx context.Context, path string) (ProjectAnalysis, error)
}

// StyleExtractor derives code-style preferences from a project's sources.
type StyleExtractor interface {
	ExtractStyles(ctx context.Context, path string) ([]StylePreference, error)
}

// DependencyReader reads the declared dependency names from a project's
// manifest (go.mod, package.json, and friends).
type DependencyReader interface {
	ReadDependencies(ctx context.Context, path string) ([]string, error)
}
