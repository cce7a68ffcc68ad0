// Package knowledge builds and maintains per-project knowledge snapshots:
// the patterns a project uses, its style preferences, aggregated session
// outcomes, declared dependencies, and detected technical debt.
//
// Snapshots are derived data. They go stale after a configured window (and
// early, when a watched dependency manifest changes) and are recomputed
// from the stores and the external collaborators before being trusted
// again. Collaborator failures degrade to the last good snapshot.
package knowledge

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"patternmind/internal/config"
	"patternmind/internal/logging"
	"patternmind/internal/store"
	"patternmind/internal/types"
)

// Storage is the slice of the store the cache reads and writes.
type Storage interface {
	AllPatterns() []types.CodePattern
	SessionsForProject(projectID string) []types.SessionMetric
	LoadKnowledgeDocument() (store.KnowledgeDocument, error)
	SaveKnowledgeDocument(doc store.KnowledgeDocument) error
}

// Cache owns the ProjectKnowledge snapshots.
type Cache struct {
	storage  Storage
	analyzer types.ProjectAnalyzer
	styles   types.StyleExtractor
	deps     types.DependencyReader
	cfg      config.KnowledgeConfig
	clock    func() time.Time

	group singleflight.Group

	mu        sync.RWMutex
	snapshots map[string]types.ProjectKnowledge
	paths     map[string]string
	forced    map[string]bool // projects marked stale ahead of the clock
}

// NewCache creates a knowledge cache over the given storage and
// collaborators, loading previously persisted snapshots.
func NewCache(storage Storage, analyzer types.ProjectAnalyzer, styles types.StyleExtractor, deps types.DependencyReader, cfg config.KnowledgeConfig) (*Cache, error) {
	doc, err := storage.LoadKnowledgeDocument()
	if err != nil {
		return nil, err
	}

	c := &Cache{
		storage:   storage,
		analyzer:  analyzer,
		styles:    styles,
		deps:      deps,
		cfg:       cfg,
		clock:     time.Now,
		snapshots: make(map[string]types.ProjectKnowledge, len(doc.Projects)),
		paths:     make(map[string]string),
		forced:    make(map[string]bool),
	}
	for id, snapshot := range doc.Projects {
		c.snapshots[id] = snapshot
	}

	logging.Knowledge("Knowledge cache loaded: %d project snapshots", len(c.snapshots))
	return c, nil
}

// RegisterProject associates a project id with its filesystem path for
// collaborator calls. Unregistered projects fall back to the id as path.
func (c *Cache) RegisterProject(projectID, path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paths[projectID] = path
}

// MarkStale forces the next GetOrRefresh for the project to recompute,
// regardless of snapshot age.
func (c *Cache) MarkStale(projectID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.forced[projectID] = true
	logging.KnowledgeDebug("Snapshot marked stale: project=%s", projectID)
}

// Get returns the current snapshot without refreshing.
func (c *Cache) Get(projectID string) (types.ProjectKnowledge, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	k, ok := c.snapshots[projectID]
	return k, ok
}

// Snapshots returns all current snapshots, order unspecified.
func (c *Cache) Snapshots() []types.ProjectKnowledge {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]types.ProjectKnowledge, 0, len(c.snapshots))
	for _, k := range c.snapshots {
		out = append(out, k)
	}
	return out
}

// GetOrRefresh returns the project's snapshot, recomputing it first when it
// is missing, older than the staleness window, or explicitly marked stale.
// Concurrent refreshes of the same project are collapsed into one.
func (c *Cache) GetOrRefresh(ctx context.Context, projectID string) (types.ProjectKnowledge, error) {
	c.mu.RLock()
	snapshot, exists := c.snapshots[projectID]
	forced := c.forced[projectID]
	c.mu.RUnlock()

	if exists && !forced && !snapshot.StaleAt(c.clock().UTC(), c.cfg.StalenessDuration()) {
		return snapshot, nil
	}

	result, err, _ := c.group.Do(projectID, func() (interface{}, error) {
		return c.refresh(ctx, projectID)
	})
	if err != nil {
		return types.ProjectKnowledge{}, err
	}
	return result.(types.ProjectKnowledge), nil
}

// refresh recomputes one snapshot. Collaborator calls run concurrently
// under a bounded timeout; on collaborator failure the last good snapshot
// is returned instead of an error.
func (c *Cache) refresh(ctx context.Context, projectID string) (types.ProjectKnowledge, error) {
	timer := logging.StartTimer(logging.CategoryKnowledge, "Cache.refresh")
	defer timer.Stop()

	c.mu.RLock()
	path, registered := c.paths[projectID]
	previous, hasPrevious := c.snapshots[projectID]
	c.mu.RUnlock()
	if !registered {
		path = projectID
	}

	callCtx, cancel := context.WithTimeout(ctx, c.cfg.RefreshTimeoutDuration())
	defer cancel()

	var (
		analysis     types.ProjectAnalysis
		stylePrefs   []types.StylePreference
		dependencies []string
	)
	eg, egCtx := errgroup.WithContext(callCtx)
	eg.Go(func() error {
		a, err := c.analyzer.AnalyzeProject(egCtx, path)
		if err != nil {
			return types.CollaboratorError("project analyzer", err)
		}
		analysis = a
		return nil
	})
	eg.Go(func() error {
		s, err := c.styles.ExtractStyles(egCtx, path)
		if err != nil {
			return types.CollaboratorError("style extractor", err)
		}
		stylePrefs = s
		return nil
	})
	eg.Go(func() error {
		d, err := c.deps.ReadDependencies(egCtx, path)
		if err != nil {
			return types.CollaboratorError("dependency reader", err)
		}
		dependencies = d
		return nil
	})

	if err := eg.Wait(); err != nil {
		if hasPrevious {
			logging.Get(logging.CategoryKnowledge).Warn("Refresh degraded to previous snapshot for %s: %v", projectID, err)
			return previous, nil
		}
		return types.ProjectKnowledge{}, err
	}

	patterns := c.storage.AllPatterns()
	sessions := c.storage.SessionsForProject(projectID)

	snapshot := types.ProjectKnowledge{
		ProjectID:        projectID,
		ProjectType:      analysis.DetectedType,
		LastAnalyzed:     c.clock().UTC(),
		Patterns:         usedPatternIDs(patterns, projectID),
		StylePreferences: stylePrefs,
		Metrics:          projectMetrics(sessions, c.cfg.CommonErrorLimit),
		Dependencies:     dependencies,
	}
	snapshot.TechnicalDebt = c.detectDebt(analysis, patterns, snapshot)

	if err := c.persist(snapshot); err != nil {
		return types.ProjectKnowledge{}, err
	}

	logging.Knowledge("Snapshot refreshed: project=%s type=%s patterns=%d debt=%d",
		projectID, snapshot.ProjectType, len(snapshot.Patterns), len(snapshot.TechnicalDebt))
	return snapshot, nil
}

// persist stores the snapshot in memory and in the aggregate document.
func (c *Cache) persist(snapshot types.ProjectKnowledge) error {
	doc, err := c.storage.LoadKnowledgeDocument()
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	doc.Projects[snapshot.ProjectID] = snapshot
	if err := c.storage.SaveKnowledgeDocument(doc); err != nil {
		return err
	}
	c.snapshots[snapshot.ProjectID] = snapshot
	delete(c.forced, snapshot.ProjectID)
	return nil
}

// detectDebt applies the technical debt rules to a fresh snapshot.
func (c *Cache) detectDebt(analysis types.ProjectAnalysis, patterns []types.CodePattern, snapshot types.ProjectKnowledge) []types.DebtItem {
	var debt []types.DebtItem

	if len(analysis.MissingElements) > c.cfg.MissingElementsMax {
		debt = append(debt, types.DebtItem{
			Type:        "structure",
			Severity:    types.DebtMedium,
			Description: fmt.Sprintf("%d expected structural elements are missing", len(analysis.MissingElements)),
		})
	}

	for _, p := range patterns {
		if p.Usage.UsedBy(snapshot.ProjectID) && p.Usage.SuccessRate < c.cfg.WeakPatternRate {
			debt = append(debt, types.DebtItem{
				Type:        "pattern",
				Severity:    types.DebtLow,
				Description: fmt.Sprintf("pattern %q succeeds only %.0f%% of the time here", p.ID, p.Usage.SuccessRate*100),
			})
		}
	}

	if len(snapshot.Metrics.CommonErrors) > c.cfg.CommonErrorsMax {
		debt = append(debt, types.DebtItem{
			Type:        "errors",
			Severity:    types.DebtHigh,
			Description: fmt.Sprintf("%d distinct error types recur across sessions", len(snapshot.Metrics.CommonErrors)),
		})
	}

	return debt
}

// usedPatternIDs collects the ids of patterns whose usage set contains the
// project, sorted for reproducible snapshots.
func usedPatternIDs(patterns []types.CodePattern, projectID string) []string {
	var ids []string
	for _, p := range patterns {
		if p.Usage.UsedBy(projectID) {
			ids = append(ids, p.ID)
		}
	}
	sort.Strings(ids)
	return ids
}

// projectMetrics aggregates a project's sessions. CommonErrors keeps only
// the errorLimit most frequent types.
func projectMetrics(sessions []types.SessionMetric, errorLimit int) types.ProjectMetrics {
	metrics := types.ProjectMetrics{SessionCount: len(sessions)}

	completed, failed := 0, 0
	var totalDuration time.Duration
	withDuration := 0
	errorCounts := make(map[string]int)

	for _, m := range sessions {
		switch m.Status {
		case types.SessionCompleted:
			completed++
			if m.Duration != nil {
				totalDuration += *m.Duration
				withDuration++
			}
		case types.SessionFailed:
			failed++
		}
		for _, e := range m.Errors {
			errorCounts[e.Type]++
		}
	}

	if completed+failed > 0 {
		metrics.SuccessRate = float64(completed) / float64(completed+failed)
	}
	if withDuration > 0 {
		metrics.AvgDuration = totalDuration / time.Duration(withDuration)
	}

	for errType, count := range errorCounts {
		metrics.CommonErrors = append(metrics.CommonErrors, types.ErrorFrequency{Type: errType, Count: count})
	}
	sort.Slice(metrics.CommonErrors, func(i, j int) bool {
		if metrics.CommonErrors[i].Count != metrics.CommonErrors[j].Count {
			return metrics.CommonErrors[i].Count > metrics.CommonErrors[j].Count
		}
		return metrics.CommonErrors[i].Type < metrics.CommonErrors[j].Type
	})
	if errorLimit > 0 && len(metrics.CommonErrors) > errorLimit {
		metrics.CommonErrors = metrics.CommonErrors[:errorLimit]
	}

	return metrics
}
