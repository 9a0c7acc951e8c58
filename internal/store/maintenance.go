package store

import (
	"encoding/json"
	"time"

	"github.com/niklasschaeffer/open-mem/internal/logging"
	"github.com/niklasschaeffer/open-mem/internal/types"
)

// MaintenanceResult reports what a cleanup pass did, surfaced through the
// health/stats API rather than logged only.
type MaintenanceResult struct {
	Archived int
	Vacuumed int
}

// MaintenanceCleanup relieves the hot tables: tombstoned observations older
// than olderThan are moved whole (as JSON) into observations_archive and
// removed from the observations table and its FTS/vector indexes. Audit
// access survives via GetIncludingArchived's archive fallback; this never
// destroys history, only moves it to a colder tier.
func (s *Store) MaintenanceCleanup(olderThan time.Duration) (MaintenanceResult, error) {
	timer := logging.StartTimer(logging.CategoryStore, "MaintenanceCleanup")
	defer timer.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().UTC().Add(-olderThan)
	rows, err := s.db.Query(`SELECT id FROM observations WHERE deleted_at IS NOT NULL AND deleted_at < ?`, cutoff)
	if err != nil {
		return MaintenanceResult{}, types.Internal(err, "select tombstoned observations for archival")
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err == nil {
			ids = append(ids, id)
		}
	}
	rows.Close()

	var result MaintenanceResult
	for _, id := range ids {
		if err := s.archiveOne(id); err != nil {
			logging.Get(logging.CategoryStore).Warn("failed to archive observation %s, leaving in hot table: %v", id, err)
			continue
		}
		result.Archived++
		result.Vacuumed++
	}
	return result, nil
}

func (s *Store) archiveOne(id string) error {
	row := s.db.QueryRow(`SELECT `+observationColumns+` FROM observations WHERE id = ?`, id)
	o, err := scanObservation(row)
	if err != nil {
		return err
	}

	bodyJSON, err := json.Marshal(o)
	if err != nil {
		return types.Internal(err, "marshal observation for archive")
	}

	tx, err := s.db.Begin()
	if err != nil {
		return types.Internal(err, "begin archive tx")
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO observations_archive (id, body_json) VALUES (?, ?)`, id, string(bodyJSON)); err != nil {
		return types.Internal(err, "insert archive row")
	}
	if _, err := tx.Exec(`DELETE FROM observations WHERE id = ?`, id); err != nil {
		return types.Internal(err, "delete archived observation from hot table")
	}
	if _, err := tx.Exec(`DELETE FROM observations_fts WHERE id = ?`, id); err != nil {
		return types.Internal(err, "delete archived observation from fts index")
	}
	if _, err := tx.Exec(`DELETE FROM vectors WHERE observation_id = ?`, id); err != nil {
		return types.Internal(err, "delete archived observation from vector table")
	}
	if s.vectorExt {
		if _, err := tx.Exec(`DELETE FROM vec_index WHERE obs_id = ?`, id); err != nil {
			logging.Get(logging.CategoryStore).Warn("failed to delete %s from native vec index during archival: %v", id, err)
		}
	}

	return tx.Commit()
}
