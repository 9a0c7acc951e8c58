package store

import (
	"database/sql"
	"strings"

	"github.com/niklasschaeffer/open-mem/internal/logging"
	"github.com/niklasschaeffer/open-mem/internal/types"
)

// ftsHit is one row of the raw FTS join, before the orchestrator wraps it
// into a types.SearchResult.
type ftsHit struct {
	Observation types.Observation
	Rank        float64
}

// Search runs an FTS match over title/narrative/facts/concepts/files,
// filtered as specified, ranked by FTS rank ascending (lower = better).
// Project isolation always joins through sessions.
func (s *Store) Search(opts types.SearchOptions) ([]ftsHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT ` + prefixed("o", observationColumns) + `, f.rank
		FROM observations_fts f
		JOIN observations o ON o.id = f.id
		JOIN sessions se ON se.id = o.session_id
		WHERE observations_fts MATCH ?
		AND o.superseded_by IS NULL AND o.deleted_at IS NULL`
	args := []interface{}{ftsQuery(opts.Query)}

	query, args = applyFilters(query, args, opts)
	query += ` ORDER BY f.rank ASC LIMIT ? OFFSET ?`
	args = append(args, limit, opts.Offset)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		logging.Get(logging.CategoryStore).Warn("FTS search failed, degrading to empty result: %v", err)
		return nil, nil
	}
	defer rows.Close()

	var out []ftsHit
	for rows.Next() {
		var o types.Observation
		var factsJSON, conceptsJSON, filesReadJSON, filesModifiedJSON string
		var subtitle, narrative, rawToolOutput, toolName, revisionOf, supersededBy sql.NullString
		var supersededAt, deletedAt sql.NullTime
		var rank float64
		err := rows.Scan(
			&o.ID, &o.SessionID, &o.Scope, &o.Type, &o.Title, &subtitle, &narrative,
			&factsJSON, &conceptsJSON, &filesReadJSON, &filesModifiedJSON,
			&rawToolOutput, &toolName, &o.CreatedAt, &o.TokenCount, &o.DiscoveryTokens,
			&o.Importance, &revisionOf, &supersededBy, &supersededAt, &deletedAt, &rank,
		)
		if err != nil {
			continue
		}
		o.Subtitle, o.Narrative, o.RawToolOutput, o.ToolName = subtitle.String, narrative.String, rawToolOutput.String, toolName.String
		o.RevisionOf, o.SupersededBy = revisionOf.String, supersededBy.String
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
		out = append(out, ftsHit{Observation: o, Rank: rank})
	}
	return out, nil
}

// SearchByConcept runs FTS restricted to the concepts column.
func (s *Store) SearchByConcept(concept string, limit int, projectPath string) ([]*types.Observation, error) {
	return s.searchColumn("concepts", concept, limit, projectPath)
}

// SearchByFile runs FTS restricted to the files column.
func (s *Store) SearchByFile(file string, limit int, projectPath string) ([]*types.Observation, error) {
	return s.searchColumn("files", file, limit, projectPath)
}

func (s *Store) searchColumn(column, term string, limit int, projectPath string) ([]*types.Observation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}
	query := `SELECT ` + prefixed("o", observationColumns) + `
		FROM observations_fts f
		JOIN observations o ON o.id = f.id
		JOIN sessions se ON se.id = o.session_id
		WHERE f.` + column + ` MATCH ?
		AND o.superseded_by IS NULL AND o.deleted_at IS NULL`
	args := []interface{}{ftsQuery(term)}

	if projectPath != "" {
		query += ` AND se.project_path = ?`
		args = append(args, projectPath)
	}
	query += ` ORDER BY o.created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		logging.Get(logging.CategoryStore).Warn("column FTS search failed, degrading to empty result: %v", err)
		return nil, nil
	}
	defer rows.Close()

	var out []*types.Observation
	for rows.Next() {
		o, err := scanObservation(rows)
		if err == nil {
			out = append(out, o)
		}
	}
	return out, nil
}

func applyFilters(query string, args []interface{}, opts types.SearchOptions) (string, []interface{}) {
	if opts.ProjectPath != "" {
		query += ` AND se.project_path = ?`
		args = append(args, opts.ProjectPath)
	}
	if opts.SessionID != "" {
		query += ` AND o.session_id = ?`
		args = append(args, opts.SessionID)
	}
	if opts.Type != "" {
		query += ` AND o.type = ?`
		args = append(args, opts.Type)
	}
	if opts.ImportanceMin > 0 {
		query += ` AND o.importance >= ?`
		args = append(args, opts.ImportanceMin)
	}
	if opts.ImportanceMax > 0 {
		query += ` AND o.importance <= ?`
		args = append(args, opts.ImportanceMax)
	}
	if opts.CreatedAfter != nil {
		query += ` AND o.created_at > ?`
		args = append(args, *opts.CreatedAfter)
	}
	if opts.CreatedBefore != nil {
		query += ` AND o.created_at < ?`
		args = append(args, *opts.CreatedBefore)
	}
	return query, args
}

func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

// ftsQuery converts free text into an FTS5 MATCH expression. Each word has
// its double quotes removed, is quoted and wildcarded for prefix matching,
// and the words are joined with OR; FTS operators in q are matched as
// plain terms, not interpreted.
func ftsQuery(q string) string {
	q = strings.TrimSpace(q)
	if q == "" {
		return `""`
	}
	fields := strings.Fields(q)
	for i, f := range fields {
		fields[i] = `"` + strings.ReplaceAll(f, `"`, "") + `"*`
	}
	return strings.Join(fields, " OR ")
}
