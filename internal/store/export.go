package store

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"patternmind/internal/logging"
	"patternmind/internal/types"
)

// patternExport is the self-describing envelope for pattern interchange.
type patternExport struct {
	Version    int                 `json:"version"`
	ExportedAt time.Time           `json:"exported_at"`
	Patterns   []types.CodePattern `json:"patterns"`
}

const exportVersion = 1

// ExportPatterns serializes all patterns, optionally filtered to one
// category, to a portable JSON document. Output is ordered by id so the
// same store always exports the same text.
func (s *Store) ExportPatterns(category *types.PatternCategory) (string, error) {
	timer := logging.StartTimer(logging.CategoryStore, "Store.ExportPatterns")
	defer timer.Stop()

	if category != nil {
		if _, err := types.ParseCategory(string(*category)); err != nil {
			return "", err
		}
	}

	patterns := s.AllPatterns()
	out := patternExport{Version: exportVersion, ExportedAt: time.Now().UTC()}
	for _, p := range patterns {
		if category != nil && p.Category != *category {
			continue
		}
		out.Patterns = append(out.Patterns, p)
	}
	sort.Slice(out.Patterns, func(i, j int) bool { return out.Patterns[i].ID < out.Patterns[j].ID })

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", types.PersistenceError("encode export", err)
	}

	logging.Store("Exported %d patterns", len(out.Patterns))
	return string(data), nil
}

// ImportPatterns loads patterns from a serialized export, skipping any id
// that already exists. Importing a store's own export is a no-op. Returns
// the number of newly imported patterns.
func (s *Store) ImportPatterns(serialized string) (int, error) {
	timer := logging.StartTimer(logging.CategoryStore, "Store.ImportPatterns")
	defer timer.Stop()

	var in patternExport
	if err := json.Unmarshal([]byte(serialized), &in); err != nil {
		return 0, fmt.Errorf("%w: malformed pattern export: %v", types.ErrInvalidCriteria, err)
	}

	imported := 0
	for _, p := range in.Patterns {
		if p.ID == "" || p.Name == "" {
			logging.Get(logging.CategoryStore).Warn("Skipping import record without id/name")
			continue
		}
		if _, err := types.ParseCategory(string(p.Category)); err != nil {
			logging.Get(logging.CategoryStore).Warn("Skipping import record %s with bad category %q", p.ID, p.Category)
			continue
		}

		s.mu.Lock()
		if _, exists := s.patterns[p.ID]; exists {
			s.mu.Unlock()
			continue
		}
		if err := s.persistPattern(p, true); err != nil {
			s.mu.Unlock()
			return imported, err
		}
		s.patterns[p.ID] = p
		s.mu.Unlock()

		s.notifyPatternChange(p)
		imported++
	}

	logging.Store("Imported %d new patterns (of %d in document)", imported, len(in.Patterns))
	return imported, nil
}
