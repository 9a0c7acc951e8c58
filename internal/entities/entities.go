// Package entities extracts domain entities and relationships from an
// observation's narrative into knowledge-graph edges, targeting the same
// typed (entityType, name) -> (relation) -> (entityType, name) shape the
// store's knowledge_graph table persists.
package entities

import (
	"context"

	"github.com/niklasschaeffer/open-mem/internal/config"
	"github.com/niklasschaeffer/open-mem/internal/types"
)

// Extractor turns one observation into a set of relationships, constrained
// to the mode's configured entity/relationship-type vocabulary.
type Extractor interface {
	Extract(ctx context.Context, obs *types.Observation, mode *config.Mode) ([]types.Relationship, error)
	Name() string
}

// vocabAllows reports whether value is permitted by vocab, or whether
// vocab is empty (unconstrained).
func vocabAllows(vocab []string, value string) bool {
	if len(vocab) == 0 {
		return true
	}
	for _, v := range vocab {
		if v == value {
			return true
		}
	}
	return false
}
