// Package store implements durable persistence for the pattern intelligence
// engine using SQLite. Patterns and session metrics each get one record per
// entity id; project knowledge snapshots and cross-project insights live in
// a single aggregate document row.
//
// Every mutation persists synchronously before the in-memory cache is
// updated, so a crash can never leave the cache ahead of disk. Mutations to
// the same entity id are serialized through a per-id lock table; mutations
// to different ids proceed independently.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"patternmind/internal/logging"
	"patternmind/internal/types"
)

// Store is the single source of truth for CodePattern and SessionMetric
// records, plus the aggregate knowledge document.
type Store struct {
	db     *sql.DB
	dbPath string

	mu       sync.RWMutex
	patterns map[string]types.CodePattern
	sessions map[string]types.SessionMetric

	patternLocks lockTable
	sessionLocks lockTable

	changeMu         sync.RWMutex
	onPatternChange  func(types.CodePattern)
	onSessionFinal   func(types.SessionMetric)
}

// Open initializes the SQLite database at the given path (":memory:" for
// tests) and loads the record caches.
func Open(path string) (*Store, error) {
	timer := logging.StartTimer(logging.CategoryStore, "store.Open")
	defer timer.Stop()

	if path == "" {
		return nil, fmt.Errorf("database path required")
	}

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{
		db:       db,
		dbPath:   path,
		patterns: make(map[string]types.CodePattern),
		sessions: make(map[string]types.SessionMetric),
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.loadCaches(); err != nil {
		db.Close()
		return nil, err
	}

	logging.Store("Store opened at %s: %d patterns, %d sessions", path, len(s.patterns), len(s.sessions))
	return s, nil
}

// initialize creates the required tables.
func (s *Store) initialize() error {
	patternsTable := `
	CREATE TABLE IF NOT EXISTS patterns (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		category TEXT NOT NULL,
		language TEXT,
		record TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_patterns_category ON patterns(category);
	CREATE INDEX IF NOT EXISTS idx_patterns_language ON patterns(language);
	`

	sessionsTable := `
	CREATE TABLE IF NOT EXISTS sessions (
		session_id TEXT PRIMARY KEY,
		started_at DATETIME NOT NULL,
		status TEXT NOT NULL,
		record TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_started ON sessions(started_at);
	CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions(status);
	`

	// Single aggregate row holding all project snapshots and the current
	// cross-project insight list.
	knowledgeTable := `
	CREATE TABLE IF NOT EXISTS knowledge_doc (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		doc TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`

	for _, table := range []string{patternsTable, sessionsTable, knowledgeTable} {
		if _, err := s.db.Exec(table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	return nil
}

// loadCaches reads every pattern and session record into memory. Records
// that fail to decode are skipped with the failure logged; a partially
// written record must never become visible.
func (s *Store) loadCaches() error {
	rows, err := s.db.Query("SELECT id, record FROM patterns")
	if err != nil {
		return types.PersistenceError("load patterns", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, record string
		if err := rows.Scan(&id, &record); err != nil {
			continue
		}
		var p types.CodePattern
		if err := json.Unmarshal([]byte(record), &p); err != nil {
			logging.Get(logging.CategoryStore).Error("Skipping undecodable pattern record %s: %v", id, err)
			continue
		}
		s.patterns[p.ID] = p
	}

	srows, err := s.db.Query("SELECT session_id, record FROM sessions")
	if err != nil {
		return types.PersistenceError("load sessions", err)
	}
	defer srows.Close()

	for srows.Next() {
		var id, record string
		if err := srows.Scan(&id, &record); err != nil {
			continue
		}
		var m types.SessionMetric
		if err := json.Unmarshal([]byte(record), &m); err != nil {
			logging.Get(logging.CategoryStore).Error("Skipping undecodable session record %s: %v", id, err)
			continue
		}
		s.sessions[m.SessionID] = m
	}

	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// OnPatternChange registers a hook invoked after any pattern add or update
// has been persisted. Used by the coordinator to rebuild the index and
// publish notifications.
func (s *Store) OnPatternChange(fn func(types.CodePattern)) {
	s.changeMu.Lock()
	defer s.changeMu.Unlock()
	s.onPatternChange = fn
}

// OnSessionFinal registers a hook invoked when a session reaches a terminal
// status.
func (s *Store) OnSessionFinal(fn func(types.SessionMetric)) {
	s.changeMu.Lock()
	defer s.changeMu.Unlock()
	s.onSessionFinal = fn
}

func (s *Store) notifyPatternChange(p types.CodePattern) {
	s.changeMu.RLock()
	fn := s.onPatternChange
	s.changeMu.RUnlock()
	if fn != nil {
		fn(p)
	}
}

func (s *Store) notifySessionFinal(m types.SessionMetric) {
	s.changeMu.RLock()
	fn := s.onSessionFinal
	s.changeMu.RUnlock()
	if fn != nil {
		fn(m)
	}
}

// Stats returns record counts per table.
func (s *Store) Stats() (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make(map[string]int64)
	for _, table := range []string{"patterns", "sessions", "knowledge_doc"} {
		var count int64
		if err := s.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&count); err != nil {
			continue
		}
		stats[table] = count
	}
	return stats, nil
}

// lockTable provides one mutex per entity id so read-modify-write cycles on
// the same id apply in arrival order while different ids stay independent.
type lockTable struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (t *lockTable) acquire(id string) *sync.Mutex {
	t.mu.Lock()
	if t.locks == nil {
		t.locks = make(map[string]*sync.Mutex)
	}
	l, ok := t.locks[id]
	if !ok {
		l = &sync.Mutex{}
		t.locks[id] = l
	}
	t.mu.Unlock()

	l.Lock()
	return l
}
