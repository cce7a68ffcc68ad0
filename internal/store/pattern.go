package store

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"patternmind/internal/logging"
	"patternmind/internal/types"
)

// successAlpha is the smoothing factor of the success-rate EMA:
// new = alpha*outcome + (1-alpha)*old.
const successAlpha = 0.1

var slugStrip = regexp.MustCompile(`[^a-z0-9]+`)

// slugify derives a pattern id from its name.
func slugify(name string) string {
	slug := slugStrip.ReplaceAllString(strings.ToLower(name), "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		slug = "pattern"
	}
	return slug
}

// AddPattern registers a new pattern. The id is the slugified name with a
// numeric suffix on collision; usage starts at zero with a 1.0 success rate
// and metadata at version 1. The stored record is returned.
func (s *Store) AddPattern(draft types.PatternDraft) (types.CodePattern, error) {
	timer := logging.StartTimer(logging.CategoryStore, "Store.AddPattern")
	defer timer.Stop()

	if draft.Name == "" {
		return types.CodePattern{}, fmt.Errorf("%w: pattern name required", types.ErrInvalidCriteria)
	}
	if _, err := types.ParseCategory(string(draft.Category)); err != nil {
		return types.CodePattern{}, err
	}

	now := time.Now().UTC()

	s.mu.Lock()
	id := slugify(draft.Name)
	if _, taken := s.patterns[id]; taken {
		base := id
		for n := 2; ; n++ {
			id = fmt.Sprintf("%s-%d", base, n)
			if _, taken := s.patterns[id]; !taken {
				break
			}
		}
	}

	p := types.CodePattern{
		ID:          id,
		Name:        draft.Name,
		Category:    draft.Category,
		Description: draft.Description,
		Code:        draft.Code,
		Language:    draft.Language,
		Tags:        append([]string(nil), draft.Tags...),
		Usage: types.PatternUsage{
			Count:       0,
			Projects:    []string{},
			SuccessRate: 1.0,
		},
		Metadata: types.PatternMetadata{
			Created: now,
			Updated: now,
			Version: 1,
		},
		Examples:    append([]types.PatternExample(nil), draft.Examples...),
		Performance: draft.Performance,
	}

	if err := s.persistPattern(p, true); err != nil {
		s.mu.Unlock()
		return types.CodePattern{}, err
	}
	s.patterns[p.ID] = p
	s.mu.Unlock()

	logging.Store("Pattern registered: id=%s category=%s language=%s", p.ID, p.Category, p.Language)
	s.notifyPatternChange(p)
	return p, nil
}

// UpdatePattern merges a partial update into an existing pattern, bumping
// the metadata version by one.
func (s *Store) UpdatePattern(id string, update types.PatternUpdate) error {
	timer := logging.StartTimer(logging.CategoryStore, "Store.UpdatePattern")
	defer timer.Stop()

	lock := s.patternLocks.acquire(id)
	defer lock.Unlock()

	s.mu.RLock()
	p, ok := s.patterns[id]
	s.mu.RUnlock()
	if !ok {
		return types.NotFound("pattern", id)
	}

	if update.Name != nil {
		p.Name = *update.Name
	}
	if update.Category != nil {
		if _, err := types.ParseCategory(string(*update.Category)); err != nil {
			return err
		}
		p.Category = *update.Category
	}
	if update.Description != nil {
		p.Description = *update.Description
	}
	if update.Code != nil {
		p.Code = *update.Code
	}
	if update.Language != nil {
		p.Language = *update.Language
	}
	if update.Tags != nil {
		p.Tags = append([]string(nil), update.Tags...)
	}
	if update.Examples != nil {
		p.Examples = append([]types.PatternExample(nil), update.Examples...)
	}
	if update.Dependencies != nil {
		p.Metadata.Dependencies = append([]string(nil), update.Dependencies...)
	}
	if update.RelatedPatterns != nil {
		p.Metadata.RelatedPatterns = append([]string(nil), update.RelatedPatterns...)
	}
	if update.Performance != nil {
		p.Performance = update.Performance
	}

	p.Metadata.Updated = time.Now().UTC()
	p.Metadata.Version++

	if err := s.writePattern(p); err != nil {
		return err
	}

	logging.StoreDebug("Pattern updated: id=%s version=%d", p.ID, p.Metadata.Version)
	s.notifyPatternChange(p)
	return nil
}

// RecordUsage records one usage outcome for a pattern in a project. The
// success rate moves by the EMA law, the usage count increments, and the
// project id is added to the usage set. Applied in arrival order per id.
func (s *Store) RecordUsage(id, projectID string, success bool) error {
	lock := s.patternLocks.acquire(id)
	defer lock.Unlock()

	s.mu.RLock()
	p, ok := s.patterns[id]
	s.mu.RUnlock()
	if !ok {
		return types.NotFound("pattern", id)
	}

	outcome := 0.0
	if success {
		outcome = 1.0
	}
	p.Usage.SuccessRate = successAlpha*outcome + (1-successAlpha)*p.Usage.SuccessRate
	if p.Usage.SuccessRate < 0 {
		p.Usage.SuccessRate = 0
	}
	if p.Usage.SuccessRate > 1 {
		p.Usage.SuccessRate = 1
	}
	p.Usage.Count++
	p.Usage.LastUsed = time.Now().UTC()
	if projectID != "" && !p.Usage.UsedBy(projectID) {
		p.Usage.Projects = append(p.Usage.Projects, projectID)
	}

	if err := s.writePattern(p); err != nil {
		return err
	}

	logging.StoreDebug("Usage recorded: id=%s project=%s success=%v rate=%.4f count=%d",
		id, projectID, success, p.Usage.SuccessRate, p.Usage.Count)
	return nil
}

// GetPattern returns the pattern with the given id.
func (s *Store) GetPattern(id string) (types.CodePattern, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.patterns[id]
	if !ok {
		return types.CodePattern{}, types.NotFound("pattern", id)
	}
	return p, nil
}

// AllPatterns returns a snapshot of every stored pattern, order unspecified.
func (s *Store) AllPatterns() []types.CodePattern {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.CodePattern, 0, len(s.patterns))
	for _, p := range s.patterns {
		out = append(out, p)
	}
	return out
}

// PatternCount returns the number of stored patterns.
func (s *Store) PatternCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.patterns)
}

// writePattern persists an updated record, then publishes it to the cache.
func (s *Store) writePattern(p types.CodePattern) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.persistPattern(p, false); err != nil {
		return err
	}
	s.patterns[p.ID] = p
	return nil
}

// persistPattern writes the full record to SQLite. Caller holds s.mu.
func (s *Store) persistPattern(p types.CodePattern, isNew bool) error {
	record, err := json.Marshal(p)
	if err != nil {
		return types.PersistenceError("encode pattern", err)
	}

	if isNew {
		_, err = s.db.Exec(
			`INSERT INTO patterns (id, name, category, language, record) VALUES (?, ?, ?, ?, ?)`,
			p.ID, p.Name, string(p.Category), p.Language, string(record),
		)
	} else {
		_, err = s.db.Exec(
			`UPDATE patterns SET name = ?, category = ?, language = ?, record = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
			p.Name, string(p.Category), p.Language, string(record), p.ID,
		)
	}
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to persist pattern %s: %v", p.ID, err)
		return types.PersistenceError("persist pattern "+p.ID, err)
	}
	return nil
}
