package store

import (
	"database/sql"
	"encoding/json"
	"time"

	"patternmind/internal/logging"
	"patternmind/internal/types"
)

// KnowledgeDocument is the aggregate persisted alongside the entity tables:
// every project knowledge snapshot plus the current cross-project insight
// list. Insights are replaced wholesale on each global analysis run.
type KnowledgeDocument struct {
	Version   int                               `json:"version"`
	Projects  map[string]types.ProjectKnowledge `json:"projects"`
	Insights  []types.CrossProjectInsight       `json:"insights"`
	UpdatedAt time.Time                         `json:"updated_at"`
}

// NewKnowledgeDocument returns an empty document.
func NewKnowledgeDocument() KnowledgeDocument {
	return KnowledgeDocument{
		Version:  1,
		Projects: make(map[string]types.ProjectKnowledge),
		Insights: []types.CrossProjectInsight{},
	}
}

// LoadKnowledgeDocument reads the aggregate knowledge document. A missing
// row yields an empty document, not an error.
func (s *Store) LoadKnowledgeDocument() (KnowledgeDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var raw string
	err := s.db.QueryRow("SELECT doc FROM knowledge_doc WHERE id = 1").Scan(&raw)
	if err != nil {
		if err == sql.ErrNoRows {
			return NewKnowledgeDocument(), nil
		}
		return NewKnowledgeDocument(), types.PersistenceError("load knowledge document", err)
	}

	var doc KnowledgeDocument
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		logging.Get(logging.CategoryStore).Error("Undecodable knowledge document, starting fresh: %v", err)
		return NewKnowledgeDocument(), nil
	}
	if doc.Projects == nil {
		doc.Projects = make(map[string]types.ProjectKnowledge)
	}
	if doc.Insights == nil {
		doc.Insights = []types.CrossProjectInsight{}
	}

	return doc, nil
}

// SaveKnowledgeDocument persists the aggregate knowledge document.
func (s *Store) SaveKnowledgeDocument(doc KnowledgeDocument) error {
	timer := logging.StartTimer(logging.CategoryStore, "Store.SaveKnowledgeDocument")
	defer timer.Stop()

	doc.UpdatedAt = time.Now().UTC()
	raw, err := json.Marshal(doc)
	if err != nil {
		return types.PersistenceError("encode knowledge document", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.Exec(
		`INSERT INTO knowledge_doc (id, doc, updated_at) VALUES (1, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(id) DO UPDATE SET doc = excluded.doc, updated_at = CURRENT_TIMESTAMP`,
		string(raw),
	)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to persist knowledge document: %v", err)
		return types.PersistenceError("persist knowledge document", err)
	}

	logging.StoreDebug("Knowledge document saved: %d projects, %d insights", len(doc.Projects), len(doc.Insights))
	return nil
}
