package graph

import (
	"testing"

	"github.com/niklasschaeffer/open-mem/internal/store"
	"github.com/niklasschaeffer/open-mem/internal/types"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNeighboursDepth1(t *testing.T) {
	s := newTestStore(t)
	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("StoreLink: %v", err)
		}
	}
	must(s.StoreLink(types.Relationship{FromType: "observation", FromName: "obs-1", Type: "modifies", ToType: "file", ToName: "a.go", ObservationID: "obs-1", Weight: 1}))

	nbs, err := Neighbours(s, "observation", "obs-1", 1)
	if err != nil {
		t.Fatalf("Neighbours: %v", err)
	}
	if len(nbs) != 1 || nbs[0].Entity.Name != "a.go" || nbs[0].Depth != 1 {
		t.Fatalf("Neighbours=%+v, want one depth-1 hit on a.go", nbs)
	}
}

func TestNeighboursDepth2ExpandsAndExcludesStart(t *testing.T) {
	s := newTestStore(t)
	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("StoreLink: %v", err)
		}
	}
	must(s.StoreLink(types.Relationship{FromType: "observation", FromName: "obs-1", Type: "modifies", ToType: "file", ToName: "a.go", ObservationID: "obs-1", Weight: 1}))
	must(s.StoreLink(types.Relationship{FromType: "file", FromName: "a.go", Type: "modifies", ToType: "observation", ToName: "obs-2", ObservationID: "obs-2", Weight: 1}))

	nbs, err := Neighbours(s, "observation", "obs-1", 2)
	if err != nil {
		t.Fatalf("Neighbours: %v", err)
	}
	if len(nbs) != 2 {
		t.Fatalf("Neighbours=%+v, want 2 (a.go at depth 1, obs-2 at depth 2)", nbs)
	}
	for _, nb := range nbs {
		if nb.Entity.Type == "observation" && nb.Entity.Name == "obs-1" {
			t.Fatalf("Neighbours must not include the start entity, got %+v", nbs)
		}
	}
}

func TestNeighboursMergesRepeatedEdges(t *testing.T) {
	s := newTestStore(t)
	if err := s.StoreLink(types.Relationship{FromType: "observation", FromName: "obs-1", Type: "modifies", ToType: "file", ToName: "a.go", ObservationID: "obs-1", Weight: 1}); err != nil {
		t.Fatalf("StoreLink: %v", err)
	}
	if err := s.StoreLink(types.Relationship{FromType: "observation", FromName: "obs-3", Type: "modifies", ToType: "file", ToName: "a.go", ObservationID: "obs-3", Weight: 1}); err != nil {
		t.Fatalf("StoreLink: %v", err)
	}

	nbs, err := Neighbours(s, "observation", "obs-1", 2)
	if err != nil {
		t.Fatalf("Neighbours: %v", err)
	}
	for _, nb := range nbs {
		if nb.Entity.Name == "a.go" && len(nb.ObservationIDs) != 1 {
			t.Fatalf("a.go neighbour ObservationIDs=%v, want exactly the one edge from obs-1 reached via BFS", nb.ObservationIDs)
		}
	}
}
