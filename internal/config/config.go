// Package config holds all patternmind configuration, including the scoring
// weights and insight thresholds used by the intelligence engine. The
// weights are policy, not load-bearing business logic; they default to the
// tuned values but can be overridden per workspace.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all patternmind configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Durable storage
	Storage StorageConfig `yaml:"storage"`

	// Search and related-pattern scoring weights
	Scoring ScoringConfig `yaml:"scoring"`

	// Insight generation thresholds
	Insight InsightConfig `yaml:"insight"`

	// Project knowledge snapshots
	Knowledge KnowledgeConfig `yaml:"knowledge"`

	// Project similarity weights
	Similarity SimilarityConfig `yaml:"similarity"`

	// Learning transfer thresholds
	Transfer TransferConfig `yaml:"transfer"`

	// Global cross-project analysis thresholds
	Analysis AnalysisConfig `yaml:"analysis"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// StorageConfig configures the SQLite-backed stores.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// ScoringConfig configures pattern search relevance and related-pattern
// scoring. Relevance is a sum of independent weighted terms.
type ScoringConfig struct {
	SuccessRateWeight float64 `yaml:"success_rate_weight"` // successRate * w
	UsageWeight       float64 `yaml:"usage_weight"`        // min(count/saturation, 1) * w
	UsageSaturation   int     `yaml:"usage_saturation"`    // count at which usage maxes out
	NameMatchWeight   float64 `yaml:"name_match_weight"`
	DescMatchWeight   float64 `yaml:"desc_match_weight"`
	CodeMatchWeight   float64 `yaml:"code_match_weight"`
	RecencyBonus      float64 `yaml:"recency_bonus"`
	RecencyWindow     string  `yaml:"recency_window"`

	// Related-pattern heuristics
	SameCategoryWeight  float64 `yaml:"same_category_weight"`
	SharedTagWeight     float64 `yaml:"shared_tag_weight"`
	SameLanguageWeight  float64 `yaml:"same_language_weight"`
	ExplicitLinkWeight  float64 `yaml:"explicit_link_weight"`
	SharedProjectWeight float64 `yaml:"shared_project_weight"`
}

// InsightConfig configures insight generation thresholds.
type InsightConfig struct {
	CacheTTL             string  `yaml:"cache_ttl"`
	HighSuccessRate      float64 `yaml:"high_success_rate"`
	LowSuccessRate       float64 `yaml:"low_success_rate"`
	GatePassThreshold    float64 `yaml:"gate_pass_threshold"`
	TrendMinDays         int     `yaml:"trend_min_days"`
	TrendWindowDays      int     `yaml:"trend_window_days"`
	TrendChangeThreshold float64 `yaml:"trend_change_threshold"`
	LongSessionDuration  string  `yaml:"long_session_duration"`
	ObjectiveRatioFloor  float64 `yaml:"objective_ratio_floor"`
	FailureRatioCeiling  float64 `yaml:"failure_ratio_ceiling"`
	SummaryWindowDays    int     `yaml:"summary_window_days"`
	CommonErrorLimit     int     `yaml:"common_error_limit"`
}

// KnowledgeConfig configures project knowledge snapshots.
type KnowledgeConfig struct {
	StalenessWindow    string  `yaml:"staleness_window"`
	RefreshTimeout     string  `yaml:"refresh_timeout"`
	MissingElementsMax int     `yaml:"missing_elements_max"` // above this, medium debt
	CommonErrorsMax    int     `yaml:"common_errors_max"`    // above this, high debt
	WeakPatternRate    float64 `yaml:"weak_pattern_rate"`    // below this, low debt per pattern
	CommonErrorLimit   int     `yaml:"common_error_limit"`   // top-N errors kept per snapshot
}

// SimilarityConfig configures the pairwise project similarity function.
type SimilarityConfig struct {
	TypeWeight       float64 `yaml:"type_weight"`
	PatternWeight    float64 `yaml:"pattern_weight"`
	DependencyWeight float64 `yaml:"dependency_weight"`
	SuccessWeight    float64 `yaml:"success_weight"`
	MinSimilarity    float64 `yaml:"min_similarity"`
}

// TransferConfig configures learning transfer applicability checks.
type TransferConfig struct {
	MinPatternSuccess  float64 `yaml:"min_pattern_success"`
	MinStyleConfidence float64 `yaml:"min_style_confidence"`
}

// AnalysisConfig configures global cross-project pattern analysis.
type AnalysisConfig struct {
	PatternMinUsage       int     `yaml:"pattern_min_usage"`
	PatternMinSuccess     float64 `yaml:"pattern_min_success"`
	AntipatternMinUsage   int     `yaml:"antipattern_min_usage"`
	AntipatternMaxSuccess float64 `yaml:"antipattern_max_success"`
	RecurringErrorMin     int     `yaml:"recurring_error_min"`    // error must recur in more than this many projects
	DurationSpreadFactor  float64 `yaml:"duration_spread_factor"` // group mean vs min
}

// LoggingConfig configures the categorized debug logger.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Level      string          `yaml:"level"` // debug, info, warn, error
	Categories map[string]bool `yaml:"categories"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "patternmind",
		Version: "1.0.0",

		Storage: StorageConfig{
			DatabasePath: ".patternmind/intelligence.db",
		},

		Scoring: ScoringConfig{
			SuccessRateWeight: 0.30,
			UsageWeight:       0.20,
			UsageSaturation:   100,
			NameMatchWeight:   0.30,
			DescMatchWeight:   0.20,
			CodeMatchWeight:   0.10,
			RecencyBonus:      0.10,
			RecencyWindow:     "168h",

			SameCategoryWeight:  0.30,
			SharedTagWeight:     0.10,
			SameLanguageWeight:  0.20,
			ExplicitLinkWeight:  0.50,
			SharedProjectWeight: 0.05,
		},

		Insight: InsightConfig{
			CacheTTL:             "1h",
			HighSuccessRate:      0.90,
			LowSuccessRate:       0.70,
			GatePassThreshold:    0.80,
			TrendMinDays:         8,
			TrendWindowDays:      7,
			TrendChangeThreshold: 0.20,
			LongSessionDuration:  "2h",
			ObjectiveRatioFloor:  0.80,
			FailureRatioCeiling:  0.30,
			SummaryWindowDays:    30,
			CommonErrorLimit:     5,
		},

		Knowledge: KnowledgeConfig{
			StalenessWindow:    "168h",
			RefreshTimeout:     "30s",
			MissingElementsMax: 5,
			CommonErrorsMax:    3,
			WeakPatternRate:    0.70,
			CommonErrorLimit:   5,
		},

		Similarity: SimilarityConfig{
			TypeWeight:       0.30,
			PatternWeight:    0.30,
			DependencyWeight: 0.20,
			SuccessWeight:    0.20,
			MinSimilarity:    0.30,
		},

		Transfer: TransferConfig{
			MinPatternSuccess:  0.70,
			MinStyleConfidence: 0.80,
		},

		Analysis: AnalysisConfig{
			PatternMinUsage:       10,
			PatternMinSuccess:     0.90,
			AntipatternMinUsage:   5,
			AntipatternMaxSuccess: 0.50,
			RecurringErrorMin:     2,
			DurationSpreadFactor:  1.5,
		},

		Logging: LoggingConfig{
			DebugMode: false,
			Level:     "info",
		},
	}
}

// Load loads configuration from a YAML file, falling back to defaults when
// the file does not exist.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if path := os.Getenv("PATTERNMIND_DB_PATH"); path != "" {
		c.Storage.DatabasePath = path
	}
	if debug := os.Getenv("PATTERNMIND_DEBUG"); debug != "" {
		if v, err := strconv.ParseBool(debug); err == nil {
			c.Logging.DebugMode = v
		}
	}
	if level := os.Getenv("PATTERNMIND_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

// duration parses a config duration string, returning fallback on error.
func duration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// CacheTTLDuration returns the insight cache TTL.
func (c InsightConfig) CacheTTLDuration() time.Duration {
	return duration(c.CacheTTL, time.Hour)
}

// LongSessionCutoff returns the long-session duration threshold.
func (c InsightConfig) LongSessionCutoff() time.Duration {
	return duration(c.LongSessionDuration, 2*time.Hour)
}

// StalenessDuration returns the knowledge staleness window.
func (c KnowledgeConfig) StalenessDuration() time.Duration {
	return duration(c.StalenessWindow, 7*24*time.Hour)
}

// RefreshTimeoutDuration returns the collaborator refresh timeout.
func (c KnowledgeConfig) RefreshTimeoutDuration() time.Duration {
	return duration(c.RefreshTimeout, 30*time.Second)
}

// RecencyDuration returns the search recency bonus window.
func (c ScoringConfig) RecencyDuration() time.Duration {
	return duration(c.RecencyWindow, 7*24*time.Hour)
}

// FindWorkspaceRoot walks up from the working directory looking for an
// existing .patternmind directory or a go.mod, falling back to the working
// directory itself.
func FindWorkspaceRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	originalDir := dir
	for {
		if _, err := os.Stat(filepath.Join(dir, ".patternmind")); err == nil {
			return dir, nil
		}
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return originalDir, nil
}
