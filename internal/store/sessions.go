package store

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/niklasschaeffer/open-mem/internal/logging"
	"github.com/niklasschaeffer/open-mem/internal/types"
)

// GetOrCreateSession fetches the session with sessionID (whatever its
// status or project), or creates it under projectPath if it does not
// exist — matching §1's "created or fetched on first capture" lifecycle.
func (s *Store) GetOrCreateSession(sessionID, projectPath string) (*types.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sessionID != "" {
		if sess, err := s.getSession(sessionID); err == nil {
			return sess, nil
		}
	}

	sess := &types.Session{
		ID:          sessionID,
		ProjectPath: projectPath,
		StartedAt:   time.Now().UTC(),
		Status:      types.SessionActive,
	}
	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}

	_, err := s.db.Exec(
		`INSERT INTO sessions (id, project_path, started_at, status, observation_count) VALUES (?, ?, ?, ?, 0)`,
		sess.ID, sess.ProjectPath, sess.StartedAt, sess.Status,
	)
	if err != nil {
		return nil, types.Internal(err, "create session")
	}
	return sess, nil
}

func (s *Store) getSession(id string) (*types.Session, error) {
	row := s.db.QueryRow(
		`SELECT id, project_path, started_at, ended_at, status, observation_count, summary_id FROM sessions WHERE id = ?`, id)
	return scanSession(row)
}

// GetSession returns one session row by id.
func (s *Store) GetSession(id string) (*types.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getSession(id)
}

func scanSession(row rowScanner) (*types.Session, error) {
	var sess types.Session
	var endedAt sql.NullTime
	var summaryID sql.NullString
	err := row.Scan(&sess.ID, &sess.ProjectPath, &sess.StartedAt, &endedAt, &sess.Status, &sess.ObservationCount, &summaryID)
	if err == sql.ErrNoRows {
		return nil, types.NotFound("session not found")
	}
	if err != nil {
		return nil, types.Internal(err, "scan session")
	}
	if endedAt.Valid {
		sess.EndedAt = &endedAt.Time
	}
	sess.SummaryID = summaryID.String
	return &sess, nil
}

// MarkSessionIdle transitions a session to idle when the host reports
// idle.
func (s *Store) MarkSessionIdle(id string) error {
	return s.setSessionStatus(id, types.SessionIdle, false)
}

// MarkSessionCompleted transitions a session to completed and stamps
// endedAt.
func (s *Store) MarkSessionCompleted(id string) error {
	return s.setSessionStatus(id, types.SessionCompleted, true)
}

func (s *Store) setSessionStatus(id string, status types.SessionStatus, stampEnd bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if stampEnd {
		_, err := s.db.Exec(`UPDATE sessions SET status = ?, ended_at = ? WHERE id = ?`, status, time.Now().UTC(), id)
		if err != nil {
			return types.Internal(err, "update session status")
		}
		return nil
	}
	_, err := s.db.Exec(`UPDATE sessions SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return types.Internal(err, "update session status")
	}
	return nil
}

// IncrementObservationCount bumps a session's observationCount after a
// successful create/revise.
func (s *Store) IncrementObservationCount(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.Exec(`UPDATE sessions SET observation_count = observation_count + 1 WHERE id = ?`, sessionID); err != nil {
		logging.Get(logging.CategoryStore).Warn("failed to bump observation count for session %s: %v", sessionID, err)
	}
}

// ListSessions pages sessions for a project, most recent first.
func (s *Store) ListSessions(projectPath string, limit int) ([]*types.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(
		`SELECT id, project_path, started_at, ended_at, status, observation_count, summary_id
		 FROM sessions WHERE project_path = ? ORDER BY started_at DESC LIMIT ?`,
		projectPath, limit,
	)
	if err != nil {
		return nil, types.Internal(err, "list sessions")
	}
	defer rows.Close()

	var out []*types.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err == nil {
			out = append(out, sess)
		}
	}
	return out, nil
}
