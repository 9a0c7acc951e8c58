package store

import (
	"time"

	"github.com/google/uuid"
	"github.com/niklasschaeffer/open-mem/internal/types"
)

// CreateSessionSummary persists the AI-generated recap produced when a
// session ends, and links it back onto the session row.
func (s *Store) CreateSessionSummary(sum *types.SessionSummary) (*types.SessionSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sum.ID == "" {
		sum.ID = uuid.NewString()
	}
	sum.CreatedAt = time.Now().UTC()

	tx, err := s.db.Begin()
	if err != nil {
		return nil, types.Internal(err, "begin summary tx")
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO session_summaries
			(id, session_id, summary, key_decisions_json, files_modified_json, concepts_json,
			 request, investigated, learned, completed, next_steps, token_count, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sum.ID, sum.SessionID, sum.Summary,
		marshalStrings(sum.KeyDecisions), marshalStrings(sum.FilesModified), marshalStrings(sum.Concepts),
		sum.Request, sum.Investigated, sum.Learned, sum.Completed, sum.NextSteps,
		sum.TokenCount, sum.CreatedAt,
	)
	if err != nil {
		return nil, types.Internal(err, "insert session summary")
	}

	if _, err := tx.Exec(`UPDATE sessions SET summary_id = ? WHERE id = ?`, sum.ID, sum.SessionID); err != nil {
		return nil, types.Internal(err, "link summary to session")
	}

	if err := tx.Commit(); err != nil {
		return nil, types.Internal(err, "commit summary tx")
	}
	return sum, nil
}

// GetSessionSummary returns the summary attached to a session, if any.
func (s *Store) GetSessionSummary(sessionID string) (*types.SessionSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(
		`SELECT id, session_id, summary, key_decisions_json, files_modified_json, concepts_json,
			request, investigated, learned, completed, next_steps, token_count, created_at
		 FROM session_summaries WHERE session_id = ?`, sessionID)

	var sum types.SessionSummary
	var keyDecisionsJSON, filesModifiedJSON, conceptsJSON string
	err := row.Scan(
		&sum.ID, &sum.SessionID, &sum.Summary, &keyDecisionsJSON, &filesModifiedJSON, &conceptsJSON,
		&sum.Request, &sum.Investigated, &sum.Learned, &sum.Completed, &sum.NextSteps,
		&sum.TokenCount, &sum.CreatedAt,
	)
	if err != nil {
		return nil, types.NotFound("session summary not found")
	}
	sum.KeyDecisions = unmarshalStrings(keyDecisionsJSON)
	sum.FilesModified = unmarshalStrings(filesModifiedJSON)
	sum.Concepts = unmarshalStrings(conceptsJSON)
	return &sum, nil
}
