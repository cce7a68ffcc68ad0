// Package intelligence wires the stores, index, search, insight, knowledge,
// similarity, and transfer components into one coordinator with an explicit
// lifecycle. The coordinator is the only public surface; callers never touch
// the components directly.
package intelligence

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"patternmind/internal/config"
	"patternmind/internal/index"
	"patternmind/internal/insight"
	"patternmind/internal/knowledge"
	"patternmind/internal/logging"
	"patternmind/internal/search"
	"patternmind/internal/similarity"
	"patternmind/internal/store"
	"patternmind/internal/transfer"
	"patternmind/internal/types"
)

// Coordinator owns the intelligence engine's components and lifecycle.
// Initialize must complete before any other method is called; until then
// every call fails with ErrNotInitialized. There is no hidden singleton;
// callers own the instance and its Close.
type Coordinator struct {
	cfg       *config.Config
	workspace string

	projectAnalyzer types.ProjectAnalyzer
	styleExtractor  types.StyleExtractor
	depReader       types.DependencyReader

	mu          sync.RWMutex
	initialized bool

	store      *store.Store
	index      *index.PatternIndex
	search     *search.Engine
	insights   *insight.Generator
	knowledge  *knowledge.Cache
	similarity *similarity.Engine
	transfer   *transfer.Planner
	analyzer   *GlobalPatternAnalyzer
	bus        *Bus
	watcher    *knowledge.ManifestWatcher
}

// NewCoordinator creates an uninitialized coordinator. The analyzer and
// style extractor are the external collaborators; nil means "none wired",
// and knowledge refreshes then run with empty analysis and styles.
func NewCoordinator(cfg *config.Config, workspace string, projectAnalyzer types.ProjectAnalyzer, styleExtractor types.StyleExtractor) *Coordinator {
	if projectAnalyzer == nil {
		projectAnalyzer = noopAnalyzer{}
	}
	if styleExtractor == nil {
		styleExtractor = noopStyles{}
	}
	return &Coordinator{
		cfg:             cfg,
		workspace:       workspace,
		projectAnalyzer: projectAnalyzer,
		styleExtractor:  styleExtractor,
		depReader:       knowledge.ManifestReader{},
	}
}

type noopAnalyzer struct{}

func (noopAnalyzer) AnalyzeProject(context.Context, string) (types.ProjectAnalysis, error) {
	return types.ProjectAnalysis{}, nil
}

type noopStyles struct{}

func (noopStyles) ExtractStyles(context.Context, string) ([]types.StylePreference, error) {
	return nil, nil
}

// Initialize opens the store, loads persisted state, rebuilds the index,
// and wires the components together. Idempotent; a second call is a no-op.
func (c *Coordinator) Initialize(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.initialized {
		return nil
	}

	if err := logging.Initialize(c.workspace, logging.Options{
		DebugMode:  c.cfg.Logging.DebugMode,
		Level:      c.cfg.Logging.Level,
		Categories: c.cfg.Logging.Categories,
	}); err != nil {
		return err
	}
	logging.Boot("Initializing intelligence coordinator (workspace=%s)", c.workspace)

	dbPath := c.cfg.Storage.DatabasePath
	if dbPath != ":memory:" && !filepath.IsAbs(dbPath) {
		dbPath = filepath.Join(c.workspace, dbPath)
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return err
	}
	c.store = st

	c.index = index.New()
	c.index.Rebuild(st.AllPatterns())
	c.search = search.NewEngine(st, c.index, c.cfg.Scoring)
	c.insights = insight.NewGenerator(st, c.cfg.Insight)

	cache, err := knowledge.NewCache(st, c.projectAnalyzer, c.styleExtractor, c.depReader, c.cfg.Knowledge)
	if err != nil {
		st.Close()
		return err
	}
	c.knowledge = cache

	c.similarity = similarity.NewEngine(cache, c.cfg.Similarity)
	c.transfer = transfer.NewPlanner(cache, st, c.cfg.Transfer)
	c.analyzer = NewGlobalPatternAnalyzer(c.cfg.Analysis)
	c.bus = NewBus()

	// Derived state follows the stores: any pattern mutation re-derives the
	// index; terminal sessions surface as completion events.
	st.OnPatternChange(func(types.CodePattern) {
		c.index.Rebuild(st.AllPatterns())
	})
	st.OnSessionFinal(func(m types.SessionMetric) {
		c.insights.Invalidate()
		if m.Status == types.SessionCompleted {
			c.bus.Publish(Event{Type: EventSessionCompleted, ID: m.SessionID})
		}
	})

	c.initialized = true
	logging.Boot("Coordinator initialized: %d patterns indexed", c.index.Size())
	return nil
}

// Close releases the coordinator's resources. The coordinator cannot be
// reused afterwards.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	if !c.initialized {
		c.mu.Unlock()
		return nil
	}
	c.initialized = false
	watcher := c.watcher
	c.watcher = nil
	c.mu.Unlock()

	// Drained outside the lock: in-flight listeners may still call back
	// into the coordinator (and get ErrNotInitialized).
	if watcher != nil {
		if err := watcher.Close(); err != nil {
			logging.Get(logging.CategoryCoordinator).Warn("Watcher close: %v", err)
		}
	}
	c.bus.Close()
	err := c.store.Close()
	logging.Boot("Coordinator closed")
	logging.CloseAll()
	return err
}

// ready guards every public method.
func (c *Coordinator) ready() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.initialized {
		return types.ErrNotInitialized
	}
	return nil
}

// Subscribe registers a listener for state-change events.
func (c *Coordinator) Subscribe(l Listener) error {
	if err := c.ready(); err != nil {
		return err
	}
	c.bus.Subscribe(l)
	return nil
}

// ---------------------------------------------------------------------------
// Ingestion
// ---------------------------------------------------------------------------

// RegisterPattern stores a new pattern and announces it.
func (c *Coordinator) RegisterPattern(draft types.PatternDraft) (types.CodePattern, error) {
	if err := c.ready(); err != nil {
		return types.CodePattern{}, err
	}
	p, err := c.store.AddPattern(draft)
	if err != nil {
		return types.CodePattern{}, err
	}
	c.bus.Publish(Event{Type: EventPatternAdded, ID: p.ID})
	return p, nil
}

// UpdatePattern merges a partial update into an existing pattern.
func (c *Coordinator) UpdatePattern(id string, update types.PatternUpdate) error {
	if err := c.ready(); err != nil {
		return err
	}
	return c.store.UpdatePattern(id, update)
}

// RecordPatternUsage records one usage outcome for a pattern.
func (c *Coordinator) RecordPatternUsage(id, projectID string, success bool) error {
	if err := c.ready(); err != nil {
		return err
	}
	if err := c.store.RecordUsage(id, projectID, success); err != nil {
		return err
	}
	c.bus.Publish(Event{Type: EventPatternUsed, ID: id})
	return nil
}

// StartSession opens a session record. An empty id gets a generated one.
func (c *Coordinator) StartSession(sessionID string, objectives []string) (types.SessionMetric, error) {
	if err := c.ready(); err != nil {
		return types.SessionMetric{}, err
	}
	return c.store.StartSession(sessionID, objectives)
}

// UpdateSession merges a partial update into a running session.
func (c *Coordinator) UpdateSession(sessionID string, update types.SessionUpdate) error {
	if err := c.ready(); err != nil {
		return err
	}
	return c.store.UpdateSession(sessionID, update)
}

// RecordSessionError appends an error to a running session.
func (c *Coordinator) RecordSessionError(sessionID, errType, message string) error {
	if err := c.ready(); err != nil {
		return err
	}
	return c.store.RecordSessionError(sessionID, errType, message)
}

// RecordQualityGate records a quality gate outcome for a running session.
func (c *Coordinator) RecordQualityGate(sessionID, gate string, passed bool) error {
	if err := c.ready(); err != nil {
		return err
	}
	return c.store.RecordQualityGate(sessionID, gate, passed)
}

// CompleteObjective marks a declared objective done.
func (c *Coordinator) CompleteObjective(sessionID, objective string) error {
	if err := c.ready(); err != nil {
		return err
	}
	return c.store.CompleteObjective(sessionID, objective)
}

// RecordPerformance records a phase timing for a running session.
func (c *Coordinator) RecordPerformance(sessionID, phase string, elapsed time.Duration) error {
	if err := c.ready(); err != nil {
		return err
	}
	return c.store.RecordPerformance(sessionID, phase, elapsed)
}

// RecordCodeChanges records code-change counters for a running session.
func (c *Coordinator) RecordCodeChanges(sessionID string, filesChanged, linesAdded, linesRemoved, commits int) error {
	if err := c.ready(); err != nil {
		return err
	}
	return c.store.RecordCodeChanges(sessionID, filesChanged, linesAdded, linesRemoved, commits)
}

// RegisterProject associates a project id with its filesystem path so
// knowledge refreshes know where to point the collaborators. When watch is
// set, manifest changes under the path invalidate the project's snapshot.
func (c *Coordinator) RegisterProject(projectID, path string, watch bool) error {
	if err := c.ready(); err != nil {
		return err
	}
	c.knowledge.RegisterProject(projectID, path)
	if !watch {
		return nil
	}

	c.mu.Lock()
	if c.watcher == nil {
		w, err := knowledge.NewManifestWatcher(c.knowledge)
		if err != nil {
			c.mu.Unlock()
			return err
		}
		c.watcher = w
	}
	w := c.watcher
	c.mu.Unlock()

	return w.Watch(projectID, path)
}

// ---------------------------------------------------------------------------
// Query
// ---------------------------------------------------------------------------

// GetPattern returns one pattern by id.
func (c *Coordinator) GetPattern(id string) (types.CodePattern, error) {
	if err := c.ready(); err != nil {
		return types.CodePattern{}, err
	}
	return c.store.GetPattern(id)
}

// SearchPatterns returns relevance-ranked matches for the criteria.
func (c *Coordinator) SearchPatterns(criteria types.SearchCriteria) ([]types.PatternMatch, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	return c.search.Search(criteria)
}

// RelatedPatterns returns patterns related to the given one.
func (c *Coordinator) RelatedPatterns(id string, limit int) ([]types.CodePattern, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	return c.search.Related(id, limit)
}

// GetSession returns one session by id.
func (c *Coordinator) GetSession(sessionID string) (types.SessionMetric, error) {
	if err := c.ready(); err != nil {
		return types.SessionMetric{}, err
	}
	return c.store.GetSession(sessionID)
}

// MetricsSummary aggregates the sessions of the last windowDays days.
func (c *Coordinator) MetricsSummary(windowDays int) (insight.MetricsSummary, error) {
	if err := c.ready(); err != nil {
		return insight.MetricsSummary{}, err
	}
	sessions := c.store.SessionsInWindow(windowDays)
	return insight.Summarize(sessions, windowDays, c.cfg.Insight.CommonErrorLimit), nil
}

// GenerateInsights returns the current insight report, cached per config.
func (c *Coordinator) GenerateInsights() (insight.InsightReport, error) {
	if err := c.ready(); err != nil {
		return insight.InsightReport{}, err
	}
	return c.insights.Generate(), nil
}

// ProjectKnowledge returns the project's snapshot, refreshing it when stale.
func (c *Coordinator) ProjectKnowledge(ctx context.Context, projectID string) (types.ProjectKnowledge, error) {
	if err := c.ready(); err != nil {
		return types.ProjectKnowledge{}, err
	}
	return c.knowledge.GetOrRefresh(ctx, projectID)
}

// FindSimilarProjects returns projects similar to the given one, best first.
func (c *Coordinator) FindSimilarProjects(ctx context.Context, projectID string) ([]types.SimilarProject, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	return c.similarity.FindSimilar(ctx, projectID)
}

// PlanTransfer builds a learning transfer plan between two projects.
func (c *Coordinator) PlanTransfer(ctx context.Context, fromProject, toProject string) (types.LearningTransfer, error) {
	if err := c.ready(); err != nil {
		return types.LearningTransfer{}, err
	}
	return c.transfer.Plan(ctx, fromProject, toProject)
}

// AnalyzeGlobalPatterns regenerates the cross-project insight set, persists
// it, and announces the update.
func (c *Coordinator) AnalyzeGlobalPatterns() ([]types.CrossProjectInsight, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}

	insights := c.analyzer.Analyze(c.store.AllPatterns(), c.knowledge.Snapshots())

	doc, err := c.store.LoadKnowledgeDocument()
	if err != nil {
		return nil, err
	}
	doc.Insights = insights
	if err := c.store.SaveKnowledgeDocument(doc); err != nil {
		return nil, err
	}

	c.bus.Publish(Event{Type: EventInsightsUpdated})
	return insights, nil
}

// CrossProjectInsights returns the persisted insight set, filtered to those
// affecting projectID when one is given.
func (c *Coordinator) CrossProjectInsights(projectID string) ([]types.CrossProjectInsight, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}

	doc, err := c.store.LoadKnowledgeDocument()
	if err != nil {
		return nil, err
	}
	if projectID == "" {
		return doc.Insights, nil
	}

	filtered := []types.CrossProjectInsight{}
	for _, in := range doc.Insights {
		if in.Affects(projectID) {
			filtered = append(filtered, in)
		}
	}
	return filtered, nil
}

// ---------------------------------------------------------------------------
// Bulk interchange
// ---------------------------------------------------------------------------

// ExportPatterns serializes patterns, optionally one category only.
func (c *Coordinator) ExportPatterns(category *types.PatternCategory) (string, error) {
	if err := c.ready(); err != nil {
		return "", err
	}
	return c.store.ExportPatterns(category)
}

// ImportPatterns loads serialized patterns, skipping ids that already
// exist, and reports how many were imported.
func (c *Coordinator) ImportPatterns(serialized string) (int, error) {
	if err := c.ready(); err != nil {
		return 0, err
	}
	return c.store.ImportPatterns(serialized)
}

// Stats returns storage-level counters for diagnostics.
func (c *Coordinator) Stats() (map[string]int64, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	return c.store.Stats()
}
