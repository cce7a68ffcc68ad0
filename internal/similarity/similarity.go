// Package similarity ranks projects by how alike their knowledge snapshots
// are. Similarity is a weighted sum of four independent terms computed from
// the snapshots alone; no store access happens here.
package similarity

import (
	"context"
	"sort"

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

// Engine computes pairwise project similarity and nearest-neighbor queries.
type Engine struct {
	source SnapshotSource
	cfg    config.SimilarityConfig
}

// NewEngine creates a similarity engine over the given snapshot source.
func NewEngine(source SnapshotSource, cfg config.SimilarityConfig) *Engine {
	return &Engine{source: source, cfg: cfg}
}

// Similarity scores how alike b is to a, in [0, 1]. The score is asymmetric:
// the shared-pattern and shared-dependency terms are normalized by a's
// counts, so a is the reference project.
func (e *Engine) Similarity(a, b types.ProjectKnowledge) float64 {
	score := 0.0

	if a.ProjectType != "" && a.ProjectType == b.ProjectType {
		score += e.cfg.TypeWeight
	}
	if len(a.Patterns) > 0 {
		shared := len(sharedStrings(a.Patterns, b.Patterns))
		score += float64(shared) / float64(len(a.Patterns)) * e.cfg.PatternWeight
	}
	if len(a.Dependencies) > 0 {
		shared := len(sharedStrings(a.Dependencies, b.Dependencies))
		score += float64(shared) / float64(len(a.Dependencies)) * e.cfg.DependencyWeight
	}

	delta := a.Metrics.SuccessRate - b.Metrics.SuccessRate
	if delta < 0 {
		delta = -delta
	}
	score += (1 - delta) * e.cfg.SuccessWeight

	return score
}

// FindSimilar returns the projects similar to projectID, most similar first.
// The reference snapshot and every peer are refreshed when stale; a peer
// whose refresh fails outright is skipped rather than failing the query.
func (e *Engine) FindSimilar(ctx context.Context, projectID string) ([]types.SimilarProject, error) {
	timer := logging.StartTimer(logging.CategorySimilarity, "Engine.FindSimilar")
	defer timer.Stop()

	target, err := e.source.GetOrRefresh(ctx, projectID)
	if err != nil {
		return nil, err
	}

	var results []types.SimilarProject
	for _, candidate := range e.source.Snapshots() {
		if candidate.ProjectID == projectID {
			continue
		}

		peer, err := e.source.GetOrRefresh(ctx, candidate.ProjectID)
		if err != nil {
			logging.Get(logging.CategorySimilarity).Warn("Skipping peer %s: %v", candidate.ProjectID, err)
			continue
		}

		score := e.Similarity(target, peer)
		if score <= e.cfg.MinSimilarity {
			continue
		}
		results = append(results, types.SimilarProject{
			Project:            peer,
			Similarity:         score,
			SharedPatterns:     sharedStrings(target.Patterns, peer.Patterns),
			SharedDependencies: sharedStrings(target.Dependencies, peer.Dependencies),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return results[i].Project.ProjectID < results[j].Project.ProjectID
	})

	logging.Get(logging.CategorySimilarity).Info("FindSimilar(%s): %d matches", projectID, len(results))
	return results, nil
}

// sharedStrings returns the sorted intersection of two string slices.
func sharedStrings(a, b []string) []string {
	inB := make(map[string]bool, len(b))
	for _, s := range b {
		inB[s] = true
	}

	var shared []string
	for _, s := range a {
		if inB[s] {
			shared = append(shared, s)
			inB[s] = false // count duplicates once
		}
	}
	sort.Strings(shared)
	return shared
}
