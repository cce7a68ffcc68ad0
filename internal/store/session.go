package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"patternmind/internal/logging"
	"patternmind/internal/types"
)

// =============================================================================
// SESSION METRICS LEDGER
// =============================================================================

// StartSession creates a new running session record. A session id is
// generated when the caller does not supply one.
func (s *Store) StartSession(sessionID string, objectives []string) (types.SessionMetric, error) {
	timer := logging.StartTimer(logging.CategoryStore, "Store.StartSession")
	defer timer.Stop()

	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	s.mu.Lock()
	if _, exists := s.sessions[sessionID]; exists {
		s.mu.Unlock()
		return types.SessionMetric{}, fmt.Errorf("%w: session %q already exists", types.ErrInvalidCriteria, sessionID)
	}

	m := types.SessionMetric{
		SessionID:           sessionID,
		StartTime:           time.Now().UTC(),
		Status:              types.SessionRunning,
		Objectives:          append([]string(nil), objectives...),
		CompletedObjectives: []string{},
		Errors:              []types.SessionError{},
		QualityGates:        make(map[string]types.GateResult),
	}

	if err := s.persistSession(m, true); err != nil {
		s.mu.Unlock()
		return types.SessionMetric{}, err
	}
	s.sessions[sessionID] = m
	s.mu.Unlock()

	logging.Store("Session started: id=%s objectives=%d", sessionID, len(objectives))
	return m, nil
}

// UpdateSession applies a partial update to a running session. Moving the
// status to completed or failed stamps the end time and duration; any
// terminal status freezes the record.
func (s *Store) UpdateSession(sessionID string, update types.SessionUpdate) error {
	return s.mutateSession(sessionID, func(m *types.SessionMetric) error {
		if update.Objectives != nil {
			m.Objectives = append([]string(nil), update.Objectives...)
			// Completion set stays a subset of the declared objectives. The
			// kept list is freshly allocated: the old backing array is shared
			// with the cached record and with previously returned snapshots.
			var kept []string
			for _, o := range m.CompletedObjectives {
				if m.HasObjective(o) {
					kept = append(kept, o)
				}
			}
			m.CompletedObjectives = kept
		}
		if update.FilesChanged != nil {
			m.FilesChanged = *update.FilesChanged
		}
		if update.LinesAdded != nil {
			m.LinesAdded = *update.LinesAdded
		}
		if update.LinesRemoved != nil {
			m.LinesRemoved = *update.LinesRemoved
		}
		if update.Commits != nil {
			m.Commits = *update.Commits
		}
		if update.Status != nil {
			m.Status = *update.Status
			if m.Status == types.SessionCompleted || m.Status == types.SessionFailed {
				end := time.Now().UTC()
				m.EndTime = &end
				d := end.Sub(m.StartTime)
				m.Duration = &d
			}
		}
		return nil
	})
}

// RecordSessionError appends an error event to a running session.
func (s *Store) RecordSessionError(sessionID, errType, message string) error {
	return s.mutateSession(sessionID, func(m *types.SessionMetric) error {
		m.Errors = append(m.Errors, types.SessionError{
			Type:      errType,
			Message:   message,
			Timestamp: time.Now().UTC(),
		})
		return nil
	})
}

// RecordQualityGate records one quality gate result. The gate's run count
// increments and its latest outcome is kept.
func (s *Store) RecordQualityGate(sessionID, gate string, passed bool) error {
	return s.mutateSession(sessionID, func(m *types.SessionMetric) error {
		if m.QualityGates == nil {
			m.QualityGates = make(map[string]types.GateResult)
		}
		g := m.QualityGates[gate]
		g.Passed = passed
		g.Count++
		m.QualityGates[gate] = g
		return nil
	})
}

// CompleteObjective marks a declared objective as complete. Unknown
// objectives are rejected; duplicates are ignored (set semantics).
func (s *Store) CompleteObjective(sessionID, objective string) error {
	return s.mutateSession(sessionID, func(m *types.SessionMetric) error {
		if !m.HasObjective(objective) {
			return fmt.Errorf("%w: objective %q not declared for session %s", types.ErrInvalidCriteria, objective, sessionID)
		}
		if m.ObjectiveDone(objective) {
			return nil
		}
		m.CompletedObjectives = append(m.CompletedObjectives, objective)
		return nil
	})
}

// RecordPerformance records a phase timing for a session.
func (s *Store) RecordPerformance(sessionID, phase string, elapsed time.Duration) error {
	return s.mutateSession(sessionID, func(m *types.SessionMetric) error {
		if m.Performance == nil {
			m.Performance = make(map[string]time.Duration)
		}
		m.Performance[phase] = elapsed
		return nil
	})
}

// RecordCodeChanges records file and line churn for a session.
func (s *Store) RecordCodeChanges(sessionID string, filesChanged, linesAdded, linesRemoved, commits int) error {
	return s.mutateSession(sessionID, func(m *types.SessionMetric) error {
		m.FilesChanged = filesChanged
		m.LinesAdded = linesAdded
		m.LinesRemoved = linesRemoved
		m.Commits = commits
		return nil
	})
}

// GetSession returns the session with the given id.
func (s *Store) GetSession(sessionID string) (types.SessionMetric, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.sessions[sessionID]
	if !ok {
		return types.SessionMetric{}, types.NotFound("session", sessionID)
	}
	return m, nil
}

// AllSessions returns a snapshot of every session record.
func (s *Store) AllSessions() []types.SessionMetric {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.SessionMetric, 0, len(s.sessions))
	for _, m := range s.sessions {
		out = append(out, m)
	}
	return out
}

// SessionsInWindow returns sessions whose start time falls within the last
// windowDays days.
func (s *Store) SessionsInWindow(windowDays int) []types.SessionMetric {
	cutoff := time.Now().UTC().AddDate(0, 0, -windowDays)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []types.SessionMetric
	for _, m := range s.sessions {
		if !m.StartTime.Before(cutoff) {
			out = append(out, m)
		}
	}
	return out
}

// SessionsForProject returns sessions correlated to a project. Session ids
// carry the project id as a prefix ("projectid-..." or "projectid:...").
func (s *Store) SessionsForProject(projectID string) []types.SessionMetric {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []types.SessionMetric
	for id, m := range s.sessions {
		if sessionBelongsTo(id, projectID) {
			out = append(out, m)
		}
	}
	return out
}

func sessionBelongsTo(sessionID, projectID string) bool {
	if projectID == "" || len(sessionID) <= len(projectID) {
		return sessionID == projectID
	}
	if sessionID[:len(projectID)] != projectID {
		return false
	}
	sep := sessionID[len(projectID)]
	return sep == '-' || sep == ':'
}

// mutateSession runs one serialized read-modify-write cycle on a session.
// Terminal sessions reject all mutation.
func (s *Store) mutateSession(sessionID string, apply func(*types.SessionMetric) error) error {
	lock := s.sessionLocks.acquire(sessionID)
	defer lock.Unlock()

	s.mu.RLock()
	m, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return types.NotFound("session", sessionID)
	}
	if m.Status.Terminal() {
		return fmt.Errorf("%w: %s", types.ErrSessionFinal, sessionID)
	}

	if err := apply(&m); err != nil {
		return err
	}

	s.mu.Lock()
	if err := s.persistSession(m, false); err != nil {
		s.mu.Unlock()
		return err
	}
	s.sessions[sessionID] = m
	s.mu.Unlock()

	if m.Status.Terminal() {
		logging.Store("Session finalized: id=%s status=%s errors=%d", sessionID, m.Status, len(m.Errors))
		s.notifySessionFinal(m)
	}
	return nil
}

// persistSession writes the full record to SQLite. Caller holds s.mu.
func (s *Store) persistSession(m types.SessionMetric, isNew bool) error {
	record, err := json.Marshal(m)
	if err != nil {
		return types.PersistenceError("encode session", err)
	}

	if isNew {
		_, err = s.db.Exec(
			`INSERT INTO sessions (session_id, started_at, status, record) VALUES (?, ?, ?, ?)`,
			m.SessionID, m.StartTime, string(m.Status), string(record),
		)
	} else {
		_, err = s.db.Exec(
			`UPDATE sessions SET status = ?, record = ? WHERE session_id = ?`,
			string(m.Status), string(record), m.SessionID,
		)
	}
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to persist session %s: %v", m.SessionID, err)
		return types.PersistenceError("persist session "+m.SessionID, err)
	}
	return nil
}
