package host

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/niklasschaeffer/open-mem/internal/contextbuilder"
	"github.com/niklasschaeffer/open-mem/internal/search"
	"github.com/niklasschaeffer/open-mem/internal/store"
	"github.com/niklasschaeffer/open-mem/internal/types"
)

// SearchAndBuild runs the search orchestrator and folds the results
// through the context builder in one call, the shape a harness actually
// wants on every turn: ranked results plus a ready-to-inject block.
func (e *Engine) SearchAndBuild(ctx context.Context, q search.Query, summary *types.SessionSummary) (contextbuilder.Result, []types.SearchResult, error) {
	results, err := e.Search.Run(ctx, q)
	if err != nil {
		return contextbuilder.Result{}, nil, err
	}
	return e.Context.Build(results, summary), results, nil
}

// List returns observations for a project under the given filters,
// newest first, the dashboard's default browse view.
func (e *Engine) List(projectPath string, opts types.ListOptions) ([]*types.Observation, error) {
	return e.Store.ListByProject(projectPath, opts)
}

// Get fetches a single observation by ID, including archived ones so a
// dashboard deep link never 404s just because maintenance moved it cold.
func (e *Engine) Get(id string) (*types.Observation, error) {
	return e.Store.GetIncludingArchived(id)
}

// Lineage returns the full revision chain for an observation, oldest
// first, the dashboard's "show history" view.
func (e *Engine) Lineage(id string) ([]*types.Observation, error) {
	return e.Store.GetLineage(id)
}

// Create persists a manually authored observation, the dashboard's "add
// memory" form bypassing the capture queue entirely.
func (e *Engine) Create(o *types.Observation) (*types.Observation, error) {
	return e.Store.CreateObservation(o)
}

// Update applies a partial edit to an existing observation.
func (e *Engine) Update(id string, patch types.ObservationPatch) (*types.Observation, error) {
	return e.Store.UpdateObservation(id, patch)
}

// Tombstone soft-deletes an observation; it survives in the archive after
// the next maintenance pass rather than disappearing outright.
func (e *Engine) Tombstone(id string) error {
	return e.Store.DeleteObservation(id)
}

// Sessions lists sessions for a project, most recently active first.
func (e *Engine) Sessions(projectPath string, limit int) ([]*types.Session, error) {
	return e.Store.ListSessions(projectPath, limit)
}

// Stats reports row counts per table, the dashboard's storage widget.
func (e *Engine) Stats() (map[string]int64, error) {
	return e.Store.Stats()
}

// Health reports whether the store's vector index is backed by a native
// extension or the brute-force fallback, plus the current queue depth.
type Health struct {
	VectorIndexNative bool  `json:"vectorIndexNative"`
	QueueDepth        int   `json:"queueDepth"`
	QueueDepthError   error `json:"-"`
}

func (e *Engine) Health() Health {
	depth, err := e.Store.PendingDepth()
	return Health{
		VectorIndexNative: e.Store.HasVectorIndex(),
		QueueDepth:        depth,
		QueueDepthError:   err,
	}
}

// TriggerQueue forces an out-of-band batch run, the dashboard's "process
// now" button.
func (e *Engine) TriggerQueue(ctx context.Context) {
	e.Scheduler.Trigger(ctx)
}

// Export streams a project's current (active) observations as
// newline-delimited JSON, newest first (ListByProject's order), so it
// composes with Import without buffering the whole project in memory.
func (e *Engine) Export(w io.Writer, projectPath string) (int, error) {
	const pageSize = 500
	enc := json.NewEncoder(w)
	total := 0
	offset := 0
	for {
		batch, err := e.Store.ListByProject(projectPath, types.ListOptions{Limit: pageSize, Offset: offset})
		if err != nil {
			return total, err
		}
		if len(batch) == 0 {
			return total, nil
		}
		for _, o := range batch {
			if err := enc.Encode(o); err != nil {
				return total, err
			}
			total++
		}
		offset += len(batch)
	}
}

// Import reads newline-delimited JSON observations (as produced by
// Export) and recreates them. A row that decodes but fails to be created
// is skipped and counted; a decode error aborts the import and is returned.
func (e *Engine) Import(r io.Reader) (imported, skipped int, err error) {
	dec := json.NewDecoder(r)
	for dec.More() {
		var o types.Observation
		if decErr := dec.Decode(&o); decErr != nil {
			return imported, skipped, decErr
		}
		o.ID = ""
		if _, createErr := e.Store.CreateObservation(&o); createErr != nil {
			skipped++
			continue
		}
		imported++
	}
	return imported, skipped, nil
}

// Maintenance runs the archival sweep (Store.MaintenanceCleanup) on
// demand; nothing in the daemon runs it on a timer.
func (e *Engine) Maintenance(olderThan time.Duration) (store.MaintenanceResult, error) {
	return e.Store.MaintenanceCleanup(olderThan)
}
