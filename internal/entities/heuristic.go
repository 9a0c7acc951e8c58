package entities

import (
	"context"
	"path/filepath"

	"github.com/niklasschaeffer/open-mem/internal/config"
	"github.com/niklasschaeffer/open-mem/internal/types"
)

// Heuristic derives file-touch relationships directly from an
// observation's filesRead/filesModified sets, with no AI call. It is the
// fallback extractor when the AI extractor is disabled or fails, and
// deliberately only claims the "modifies"/"reads" edges it can assert with
// certainty from structured fields already on the observation.
type Heuristic struct{}

func NewHeuristic() *Heuristic { return &Heuristic{} }

func (Heuristic) Name() string { return "heuristic-fallback" }

func (Heuristic) Extract(_ context.Context, obs *types.Observation, mode *config.Mode) ([]types.Relationship, error) {
	var vocab []string
	if mode != nil {
		vocab = mode.RelationshipTypes
	}

	var out []types.Relationship
	for _, f := range obs.FilesModified {
		if !vocabAllows(vocab, "modifies") {
			continue
		}
		out = append(out, types.Relationship{
			Type: "modifies", FromType: "observation", FromName: obs.ID,
			ToType: "file", ToName: filepath.ToSlash(f),
			ObservationID: obs.ID, Weight: 1.0,
		})
	}
	for _, f := range obs.FilesRead {
		if !vocabAllows(vocab, "reads") {
			continue
		}
		out = append(out, types.Relationship{
			Type: "reads", FromType: "observation", FromName: obs.ID,
			ToType: "file", ToName: filepath.ToSlash(f),
			ObservationID: obs.ID, Weight: 1.0,
		})
	}
	return out, nil
}
