package entities

import (
	"context"
	"testing"

	"github.com/niklasschaeffer/open-mem/internal/config"
	"github.com/niklasschaeffer/open-mem/internal/types"
)

func TestHeuristicExtractModifiesAndReads(t *testing.T) {
	h := NewHeuristic()
	obs := &types.Observation{
		ID:            "obs-1",
		FilesModified: []string{"internal/store/store.go"},
		FilesRead:     []string{"internal/types/types.go"},
	}
	mode := &config.Mode{RelationshipTypes: []string{"modifies", "reads"}}

	rels, err := h.Extract(context.Background(), obs, mode)
	if err != nil {
		t.Fatalf("Extract error: %v", err)
	}
	if len(rels) != 2 {
		t.Fatalf("Extract returned %d relationships, want 2", len(rels))
	}
}

func TestHeuristicExtractRespectsVocab(t *testing.T) {
	h := NewHeuristic()
	obs := &types.Observation{ID: "obs-1", FilesModified: []string{"a.go"}, FilesRead: []string{"b.go"}}
	mode := &config.Mode{RelationshipTypes: []string{"modifies"}}

	rels, err := h.Extract(context.Background(), obs, mode)
	if err != nil {
		t.Fatalf("Extract error: %v", err)
	}
	if len(rels) != 1 || rels[0].Type != "modifies" {
		t.Fatalf("Extract with restricted vocab=%+v, want only modifies", rels)
	}
}
