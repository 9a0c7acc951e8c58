package store

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/niklasschaeffer/open-mem/internal/logging"
	"github.com/niklasschaeffer/open-mem/internal/types"
)

const observationColumns = `id, session_id, scope, type, title, subtitle, narrative,
	facts_json, concepts_json, files_read_json, files_modified_json,
	raw_tool_output, tool_name, created_at, token_count, discovery_tokens,
	importance, revision_of, superseded_by, superseded_at, deleted_at`

func scanObservation(row rowScanner) (*types.Observation, error) {
	var o types.Observation
	var factsJSON, conceptsJSON, filesReadJSON, filesModifiedJSON string
	var subtitle, narrative, rawToolOutput, toolName, revisionOf, supersededBy sql.NullString
	var supersededAt, deletedAt sql.NullTime

	err := row.Scan(
		&o.ID, &o.SessionID, &o.Scope, &o.Type, &o.Title, &subtitle, &narrative,
		&factsJSON, &conceptsJSON, &filesReadJSON, &filesModifiedJSON,
		&rawToolOutput, &toolName, &o.CreatedAt, &o.TokenCount, &o.DiscoveryTokens,
		&o.Importance, &revisionOf, &supersededBy, &supersededAt, &deletedAt,
	)
	if err != nil {
		return nil, err
	}

	o.Subtitle = subtitle.String
	o.Narrative = narrative.String
	o.RawToolOutput = rawToolOutput.String
	o.ToolName = toolName.String
	o.RevisionOf = revisionOf.String
	o.SupersededBy = supersededBy.String
	o.Facts = unmarshalStrings(factsJSON)
	o.Concepts = unmarshalStrings(conceptsJSON)
	o.FilesRead = unmarshalStrings(filesReadJSON)
	o.FilesModified = unmarshalStrings(filesModifiedJSON)
	if supersededAt.Valid {
		t := supersededAt.Time
		o.SupersededAt = &t
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		o.DeletedAt = &t
	}
	return &o, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// CreateObservation assigns an id and createdAt, writes the row and its FTS
// entry, and returns the full record.
func (s *Store) CreateObservation(o *types.Observation) (*types.Observation, error) {
	timer := logging.StartTimer(logging.CategoryStore, "CreateObservation")
	defer timer.Stop()

	if o.Title == "" {
		return nil, types.Validation("observation title is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out := *o
	if out.ID == "" {
		out.ID = uuid.NewString()
	}
	if out.CreatedAt.IsZero() {
		out.CreatedAt = time.Now().UTC()
	}
	if out.Scope == "" {
		out.Scope = types.ScopeProject
	}
	if out.Importance == 0 {
		out.Importance = 3
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, types.Internal(err, "begin create transaction")
	}
	defer tx.Rollback()

	if err := insertObservationTx(tx, &out); err != nil {
		return nil, err
	}
	if err := indexFTSTx(tx, &out); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, types.Internal(err, "commit create observation")
	}
	return &out, nil
}

func insertObservationTx(tx *sql.Tx, o *types.Observation) error {
	_, err := tx.Exec(
		`INSERT INTO observations (`+observationColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.SessionID, o.Scope, o.Type, o.Title, o.Subtitle, o.Narrative,
		marshalStrings(o.Facts), marshalStrings(o.Concepts), marshalStrings(o.FilesRead), marshalStrings(o.FilesModified),
		o.RawToolOutput, o.ToolName, o.CreatedAt, o.TokenCount, o.DiscoveryTokens,
		o.Importance, nullableStr(o.RevisionOf), nullableStr(o.SupersededBy), o.SupersededAt, o.DeletedAt,
	)
	if err != nil {
		return types.Internal(err, "insert observation")
	}
	return nil
}

func indexFTSTx(tx *sql.Tx, o *types.Observation) error {
	_, err := tx.Exec(
		`INSERT INTO observations_fts (id, title, narrative, facts, concepts, files) VALUES (?, ?, ?, ?, ?, ?)`,
		o.ID, o.Title, o.Narrative, joinSpace(o.Facts), joinSpace(o.Concepts), joinSpace(append(append([]string{}, o.FilesRead...), o.FilesModified...)),
	)
	if err != nil {
		// FTS is a secondary index: degrade silently per §7, but log loudly.
		logging.Get(logging.CategoryStore).Warn("FTS index failed for observation %s: %v", o.ID, err)
		return nil
	}
	return nil
}

func deleteFTS(db dbExec, id string) {
	if _, err := db.Exec(`DELETE FROM observations_fts WHERE id = ?`, id); err != nil {
		logging.Get(logging.CategoryStore).Warn("FTS delete failed for observation %s: %v", id, err)
	}
}

type dbExec interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
}

func nullableStr(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func joinSpace(ss []string) string {
	out := ""
	for i, s := range ss {
		if i > 0 {
			out += " "
		}
		out += s
	}
	return out
}

// GetObservation returns the observation only if it is active (I1).
func (s *Store) GetObservation(id string) (*types.Observation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, err := s.getByID(id)
	if err != nil {
		return nil, err
	}
	if !o.Active() {
		return nil, types.NotFound("observation %s is not active", id)
	}
	return o, nil
}

// GetIncludingArchived returns the observation regardless of lineage/
// tombstone state, for audit access. Falls back to the cold
// observations_archive table when MaintenanceCleanup has already relieved
// the hot table of the row.
func (s *Store) GetIncludingArchived(id string) (*types.Observation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, err := s.getByID(id)
	if err == nil {
		return o, nil
	}
	return s.getArchived(id)
}

func (s *Store) getArchived(id string) (*types.Observation, error) {
	row := s.db.QueryRow(`SELECT body_json FROM observations_archive WHERE id = ?`, id)
	var bodyJSON string
	if err := row.Scan(&bodyJSON); err != nil {
		return nil, types.NotFound("observation %s not found", id)
	}
	var o types.Observation
	if err := json.Unmarshal([]byte(bodyJSON), &o); err != nil {
		return nil, types.Internal(err, "unmarshal archived observation %s", id)
	}
	return &o, nil
}

func (s *Store) getByID(id string) (*types.Observation, error) {
	row := s.db.QueryRow(`SELECT `+observationColumns+` FROM observations WHERE id = ?`, id)
	o, err := scanObservation(row)
	if err == sql.ErrNoRows {
		return nil, types.NotFound("observation %s not found", id)
	}
	if err != nil {
		return nil, types.Internal(err, "scan observation %s", id)
	}
	return o, nil
}

// UpdateObservation creates a revision: a new active row with the patched
// fields, revisionOf = id, and marks the predecessor superseded. Fails with
// NotFound if id doesn't exist or isn't active.
func (s *Store) UpdateObservation(id string, patch types.ObservationPatch) (*types.Observation, error) {
	timer := logging.StartTimer(logging.CategoryStore, "UpdateObservation")
	defer timer.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, err := s.getByID(id)
	if err != nil {
		return nil, err
	}
	if !prev.Active() {
		return nil, types.NotFound("observation %s is not active", id)
	}

	next := *prev
	next.ID = uuid.NewString()
	next.CreatedAt = time.Now().UTC()
	next.RevisionOf = prev.ID
	next.SupersededBy = ""
	next.SupersededAt = nil
	next.DeletedAt = nil

	if patch.Title != nil {
		next.Title = *patch.Title
	}
	if patch.Subtitle != nil {
		next.Subtitle = *patch.Subtitle
	}
	if patch.Narrative != nil {
		next.Narrative = *patch.Narrative
	}
	if patch.Type != nil {
		next.Type = *patch.Type
	}
	if patch.Facts != nil {
		next.Facts = patch.Facts
	}
	if patch.Concepts != nil {
		next.Concepts = patch.Concepts
	}
	if patch.FilesRead != nil {
		next.FilesRead = patch.FilesRead
	}
	if patch.FilesModified != nil {
		next.FilesModified = patch.FilesModified
	}
	if patch.Importance != nil {
		next.Importance = *patch.Importance
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, types.Internal(err, "begin update transaction")
	}
	defer tx.Rollback()

	if err := insertObservationTx(tx, &next); err != nil {
		return nil, err
	}
	if err := indexFTSTx(tx, &next); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if _, err := tx.Exec(
		`UPDATE observations SET superseded_by = ?, superseded_at = ? WHERE id = ?`,
		next.ID, now, prev.ID,
	); err != nil {
		return nil, types.Internal(err, "mark predecessor superseded")
	}

	if err := tx.Commit(); err != nil {
		return nil, types.Internal(err, "commit update observation")
	}
	return &next, nil
}

// DeleteObservation tombstones the active row and removes its vector entry.
func (s *Store) DeleteObservation(id string) error {
	timer := logging.StartTimer(logging.CategoryStore, "DeleteObservation")
	defer timer.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	o, err := s.getByID(id)
	if err != nil {
		return err
	}
	if !o.Active() {
		return types.NotFound("observation %s not found or not active", id)
	}

	now := time.Now().UTC()
	if _, err := s.db.Exec(`UPDATE observations SET deleted_at = ? WHERE id = ?`, now, id); err != nil {
		return types.Internal(err, "tombstone observation %s", id)
	}
	deleteFTS(s.db, id)
	if _, err := s.db.Exec(`DELETE FROM vectors WHERE observation_id = ?`, id); err != nil {
		logging.Get(logging.CategoryStore).Warn("vector delete failed for observation %s: %v", id, err)
	}
	return nil
}

// ListByProject pages active-by-default observations, ordered
// createdAt DESC, id DESC.
func (s *Store) ListByProject(projectPath string, opts types.ListOptions) ([]*types.Observation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	state := opts.State
	if state == "" {
		state = types.StateCurrent
	}

	query := `SELECT ` + observationColumns + ` FROM observations o
		JOIN sessions se ON se.id = o.session_id
		WHERE se.project_path = ?`
	args := []interface{}{projectPath}

	switch state {
	case types.StateCurrent:
		query += ` AND o.superseded_by IS NULL AND o.deleted_at IS NULL`
	case types.StateTombstone:
		query += ` AND o.deleted_at IS NOT NULL`
	}

	if opts.Type != "" {
		query += ` AND o.type = ?`
		args = append(args, opts.Type)
	}
	if opts.SessionID != "" {
		query += ` AND o.session_id = ?`
		args = append(args, opts.SessionID)
	}

	query += ` ORDER BY o.created_at DESC, o.id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, opts.Offset)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, types.Internal(err, "listByProject query")
	}
	defer rows.Close()

	var out []*types.Observation
	for rows.Next() {
		o, err := scanObservation(rows)
		if err != nil {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

// GetAroundTimestamp returns a cross-session window of active rows strictly
// before then strictly after ts, concatenated in chronological order.
func (s *Store) GetAroundTimestamp(ts time.Time, before, after int, projectPath string) ([]*types.Observation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	beforeRows, err := s.db.Query(
		`SELECT `+observationColumns+` FROM observations o
		 JOIN sessions se ON se.id = o.session_id
		 WHERE se.project_path = ? AND o.created_at < ? AND o.superseded_by IS NULL AND o.deleted_at IS NULL
		 ORDER BY o.created_at DESC LIMIT ?`,
		projectPath, ts, before,
	)
	if err != nil {
		return nil, types.Internal(err, "getAroundTimestamp before query")
	}
	var beforeList []*types.Observation
	for beforeRows.Next() {
		o, err := scanObservation(beforeRows)
		if err == nil {
			beforeList = append(beforeList, o)
		}
	}
	beforeRows.Close()
	reverse(beforeList)

	afterRows, err := s.db.Query(
		`SELECT `+observationColumns+` FROM observations o
		 JOIN sessions se ON se.id = o.session_id
		 WHERE se.project_path = ? AND o.created_at > ? AND o.superseded_by IS NULL AND o.deleted_at IS NULL
		 ORDER BY o.created_at ASC LIMIT ?`,
		projectPath, ts, after,
	)
	if err != nil {
		return nil, types.Internal(err, "getAroundTimestamp after query")
	}
	defer afterRows.Close()
	for afterRows.Next() {
		o, err := scanObservation(afterRows)
		if err == nil {
			beforeList = append(beforeList, o)
		}
	}
	return beforeList, nil
}

func reverse(os []*types.Observation) {
	for i, j := 0, len(os)-1; i < j; i, j = i+1, j-1 {
		os[i], os[j] = os[j], os[i]
	}
}

// GetLineage returns the full revision chain oldest to newest, following
// revisionOf backwards then supersededBy forwards. Cycle-safe via a
// visited set (P3).
func (s *Store) GetLineage(id string) ([]*types.Observation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start, err := s.getByID(id)
	if err != nil {
		return nil, err
	}

	visited := map[string]bool{start.ID: true}

	var backward []*types.Observation
	cur := start
	for cur.RevisionOf != "" && !visited[cur.RevisionOf] {
		prev, err := s.getByID(cur.RevisionOf)
		if err != nil {
			break
		}
		visited[prev.ID] = true
		backward = append(backward, prev)
		cur = prev
	}
	reverse(backward)

	var forward []*types.Observation
	cur = start
	for cur.SupersededBy != "" && !visited[cur.SupersededBy] {
		next, err := s.getByID(cur.SupersededBy)
		if err != nil {
			break
		}
		visited[next.ID] = true
		forward = append(forward, next)
		cur = next
	}

	chain := append(backward, start)
	chain = append(chain, forward...)
	return chain, nil
}
