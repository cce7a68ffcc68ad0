// Package search ranks patterns against search criteria. Relevance is a sum
// of independent weighted terms over a pattern's statistics plus optional
// text and recency bonuses; the weights are additive heuristics carried in
// config, not tuned constants baked into the code.
package search

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"patternmind/internal/config"
	"patternmind/internal/index"
	"patternmind/internal/logging"
	"patternmind/internal/types"
)

// PatternSource is the slice of the store the engine reads from.
type PatternSource interface {
	GetPattern(id string) (types.CodePattern, error)
	AllPatterns() []types.CodePattern
}

// Engine executes criteria against the index and store.
type Engine struct {
	source  PatternSource
	index   *index.PatternIndex
	scoring config.ScoringConfig
}

// NewEngine creates a search engine over the given source and index.
func NewEngine(source PatternSource, idx *index.PatternIndex, scoring config.ScoringConfig) *Engine {
	return &Engine{source: source, index: idx, scoring: scoring}
}

// Search returns relevance-ranked matches for the criteria. No-match is an
// empty slice, never an error.
func (e *Engine) Search(criteria types.SearchCriteria) ([]types.PatternMatch, error) {
	timer := logging.StartTimer(logging.CategorySearch, "Engine.Search")
	defer timer.Stop()

	if err := criteria.Validate(); err != nil {
		return nil, err
	}

	candidateIDs := e.index.Candidates(criteria)
	logging.SearchDebug("Search candidates: %d (text=%q)", len(candidateIDs), criteria.SearchText)

	matches := make([]types.PatternMatch, 0, len(candidateIDs))
	now := time.Now().UTC()
	for id := range candidateIDs {
		p, err := e.source.GetPattern(id)
		if err != nil {
			// Index lag; the store is the source of truth.
			continue
		}
		if criteria.MinSuccessRate != nil && p.Usage.SuccessRate < *criteria.MinSuccessRate {
			continue
		}

		relevance, reason, ok := e.score(p, criteria, now)
		if !ok {
			continue
		}
		matches = append(matches, types.PatternMatch{Pattern: p, Relevance: relevance, Reason: reason})
	}

	// Descending by relevance; ties keep a stable id order so results are
	// reproducible.
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Relevance != matches[j].Relevance {
			return matches[i].Relevance > matches[j].Relevance
		}
		return matches[i].Pattern.ID < matches[j].Pattern.ID
	})

	if criteria.Limit > 0 && len(matches) > criteria.Limit {
		matches = matches[:criteria.Limit]
	}

	return matches, nil
}

// score computes the relevance of one candidate. When search text is given,
// candidates without any text match are excluded (ok=false).
func (e *Engine) score(p types.CodePattern, criteria types.SearchCriteria, now time.Time) (float64, string, bool) {
	var reasons []string

	relevance := p.Usage.SuccessRate * e.scoring.SuccessRateWeight
	reasons = append(reasons, fmt.Sprintf("success %.0f%%", p.Usage.SuccessRate*100))

	saturation := e.scoring.UsageSaturation
	if saturation <= 0 {
		saturation = 100
	}
	usage := float64(p.Usage.Count) / float64(saturation)
	if usage > 1 {
		usage = 1
	}
	relevance += usage * e.scoring.UsageWeight
	if p.Usage.Count > 0 {
		reasons = append(reasons, fmt.Sprintf("used %d times", p.Usage.Count))
	}

	if criteria.SearchText != "" {
		text := strings.ToLower(criteria.SearchText)
		switch {
		case strings.Contains(strings.ToLower(p.Name), text):
			relevance += e.scoring.NameMatchWeight
			reasons = append(reasons, "name match")
		case strings.Contains(strings.ToLower(p.Description), text):
			relevance += e.scoring.DescMatchWeight
			reasons = append(reasons, "description match")
		case strings.Contains(strings.ToLower(p.Code), text):
			relevance += e.scoring.CodeMatchWeight
			reasons = append(reasons, "code match")
		default:
			return 0, "", false
		}
	}

	if !p.Usage.LastUsed.IsZero() && now.Sub(p.Usage.LastUsed) <= e.scoring.RecencyDuration() {
		relevance += e.scoring.RecencyBonus
		reasons = append(reasons, "recently used")
	}

	return relevance, strings.Join(reasons, ", "), true
}

// Related scores every other pattern against the given one by shared
// category, tags, language, explicit relations, and shared projects, and
// returns the top limit patterns with a positive score.
func (e *Engine) Related(id string, limit int) ([]types.CodePattern, error) {
	timer := logging.StartTimer(logging.CategorySearch, "Engine.Related")
	defer timer.Stop()

	base, err := e.source.GetPattern(id)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 5
	}

	baseTags := make(map[string]struct{}, len(base.Tags))
	for _, tag := range base.Tags {
		baseTags[tag] = struct{}{}
	}
	baseProjects := make(map[string]struct{}, len(base.Usage.Projects))
	for _, proj := range base.Usage.Projects {
		baseProjects[proj] = struct{}{}
	}
	related := make(map[string]struct{}, len(base.Metadata.RelatedPatterns))
	for _, rid := range base.Metadata.RelatedPatterns {
		related[rid] = struct{}{}
	}

	type scored struct {
		pattern types.CodePattern
		score   float64
	}
	var candidates []scored

	for _, other := range e.source.AllPatterns() {
		if other.ID == base.ID {
			continue
		}

		score := 0.0
		if other.Category == base.Category {
			score += e.scoring.SameCategoryWeight
		}
		for _, tag := range other.Tags {
			if _, ok := baseTags[tag]; ok {
				score += e.scoring.SharedTagWeight
			}
		}
		if base.Language != "" && other.Language == base.Language {
			score += e.scoring.SameLanguageWeight
		}
		if _, ok := related[other.ID]; ok {
			score += e.scoring.ExplicitLinkWeight
		} else {
			for _, rid := range other.Metadata.RelatedPatterns {
				if rid == base.ID {
					score += e.scoring.ExplicitLinkWeight
					break
				}
			}
		}
		for _, proj := range other.Usage.Projects {
			if _, ok := baseProjects[proj]; ok {
				score += e.scoring.SharedProjectWeight
			}
		}

		if score > 0 {
			candidates = append(candidates, scored{pattern: other, score: score})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].pattern.ID < candidates[j].pattern.ID
	})

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	out := make([]types.CodePattern, len(candidates))
	for i, c := range candidates {
		out[i] = c.pattern
	}
	return out, nil
}
