package store

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/niklasschaeffer/open-mem/internal/types"
)

// Enqueue persists a durable pending capture. Duplicate (sessionId, callId)
// pairs are idempotent: the insert is ignored on conflict (I-P5, at-least-once
// delivery without double-processing a retried tool call).
func (s *Store) Enqueue(sessionID, toolName, toolOutput, callID string) (*types.PendingMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg := &types.PendingMessage{
		ID:         uuid.NewString(),
		SessionID:  sessionID,
		ToolName:   toolName,
		ToolOutput: toolOutput,
		CallID:     callID,
		CreatedAt:  time.Now().UTC(),
		Status:     types.PendingQueued,
	}

	res, err := s.db.Exec(
		`INSERT INTO pending_messages (id, session_id, tool_name, tool_output, call_id, created_at, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(session_id, call_id) DO NOTHING`,
		msg.ID, msg.SessionID, msg.ToolName, msg.ToolOutput, msg.CallID, msg.CreatedAt, msg.Status,
	)
	if err != nil {
		return nil, types.Internal(err, "enqueue pending message")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		existing, err := s.getPendingByCallID(sessionID, callID)
		if err != nil {
			return msg, nil
		}
		return existing, nil
	}
	return msg, nil
}

func (s *Store) getPendingByCallID(sessionID, callID string) (*types.PendingMessage, error) {
	row := s.db.QueryRow(
		`SELECT id, session_id, tool_name, tool_output, call_id, created_at, status, retry_count, error
		 FROM pending_messages WHERE session_id = ? AND call_id = ?`, sessionID, callID)
	return scanPending(row)
}

func scanPending(row rowScanner) (*types.PendingMessage, error) {
	var m types.PendingMessage
	var errStr sql.NullString
	err := row.Scan(&m.ID, &m.SessionID, &m.ToolName, &m.ToolOutput, &m.CallID, &m.CreatedAt, &m.Status, &m.RetryCount, &errStr)
	if err != nil {
		return nil, types.NotFound("pending message not found")
	}
	m.Error = errStr.String
	return &m, nil
}

// Claim atomically marks up to batchSize oldest pending rows as processing
// and returns them, invisible to other claimants for the duration of the tx.
func (s *Store) Claim(batchSize int) ([]*types.PendingMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if batchSize <= 0 {
		batchSize = 20
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, types.Internal(err, "begin claim tx")
	}
	defer tx.Rollback()

	rows, err := tx.Query(
		`SELECT id FROM pending_messages WHERE status = ? ORDER BY created_at ASC LIMIT ?`,
		types.PendingQueued, batchSize,
	)
	if err != nil {
		return nil, types.Internal(err, "select claimable rows")
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err == nil {
			ids = append(ids, id)
		}
	}
	rows.Close()
	if len(ids) == 0 {
		return nil, nil
	}

	now := time.Now().UTC()
	var claimed []*types.PendingMessage
	for _, id := range ids {
		if _, err := tx.Exec(`UPDATE pending_messages SET status = ?, claimed_at = ? WHERE id = ?`, types.PendingProcessing, now, id); err != nil {
			return nil, types.Internal(err, "claim pending row")
		}
		row := tx.QueryRow(
			`SELECT id, session_id, tool_name, tool_output, call_id, created_at, status, retry_count, error
			 FROM pending_messages WHERE id = ?`, id)
		m, err := scanPending(row)
		if err != nil {
			return nil, err
		}
		claimed = append(claimed, m)
	}

	if err := tx.Commit(); err != nil {
		return nil, types.Internal(err, "commit claim tx")
	}
	return claimed, nil
}

// Complete removes a successfully processed pending row.
func (s *Store) Complete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`DELETE FROM pending_messages WHERE id = ?`, id)
	if err != nil {
		return types.Internal(err, "complete pending message")
	}
	return nil
}

// Fail increments retryCount and returns the row to pending, or marks it
// failed once retryCount reaches maxRetries.
func (s *Store) Fail(id, errMsg string, maxRetries int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRow(`SELECT retry_count FROM pending_messages WHERE id = ?`, id)
	var retryCount int
	if err := row.Scan(&retryCount); err != nil {
		return types.NotFound("pending message not found")
	}
	retryCount++

	status := types.PendingQueued
	if retryCount >= maxRetries {
		status = types.PendingFailed
	}
	_, err := s.db.Exec(
		`UPDATE pending_messages SET status = ?, retry_count = ?, error = ?, claimed_at = NULL WHERE id = ?`,
		status, retryCount, errMsg, id,
	)
	if err != nil {
		return types.Internal(err, "fail pending message")
	}
	return nil
}

// RevertStaleClaims returns processing rows older than staleAfter to
// pending, recovering claims left by a process that crashed mid-batch.
// It runs only when called; engine and daemon start-up do not call it.
func (s *Store) RevertStaleClaims(staleAfter time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().UTC().Add(-staleAfter)
	res, err := s.db.Exec(
		`UPDATE pending_messages SET status = ?, claimed_at = NULL WHERE status = ? AND claimed_at < ?`,
		types.PendingQueued, types.PendingProcessing, cutoff,
	)
	if err != nil {
		return 0, types.Internal(err, "revert stale claims")
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// PendingDepth reports the count of rows still awaiting processing, used
// by the health/metrics surface.
func (s *Store) PendingDepth() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row := s.db.QueryRow(`SELECT COUNT(*) FROM pending_messages WHERE status IN (?, ?)`, types.PendingQueued, types.PendingProcessing)
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, types.Internal(err, "count pending depth")
	}
	return n, nil
}
