package diff

import (
	"testing"

	"github.com/niklasschaeffer/open-mem/internal/types"
)

func TestObservationsScalarFields(t *testing.T) {
	before := &types.Observation{Title: "a", Importance: 3, Type: types.ObservationBugfix}
	after := &types.Observation{Title: "b", Importance: 5, Type: types.ObservationBugfix}

	fields := Observations(before, after)
	if len(fields) != 2 {
		t.Fatalf("fields=%+v, want 2 (title, importance)", fields)
	}
	byField := map[string]types.RevisionDiffField{}
	for _, f := range fields {
		byField[f.Field] = f
	}
	if byField["title"].After != "b" {
		t.Fatalf("title diff=%+v", byField["title"])
	}
	if byField["importance"].After != 5 {
		t.Fatalf("importance diff=%+v", byField["importance"])
	}
}

func TestObservationsSetFieldsIgnoreOrder(t *testing.T) {
	before := &types.Observation{Facts: []string{"x", "y"}}
	after := &types.Observation{Facts: []string{"y", "x"}}

	if fields := Observations(before, after); len(fields) != 0 {
		t.Fatalf("fields=%+v, want none for a pure reorder", fields)
	}
}

func TestObservationsSetFieldsDetectAddRemove(t *testing.T) {
	before := &types.Observation{Concepts: []string{"x", "y"}}
	after := &types.Observation{Concepts: []string{"y", "z"}}

	fields := Observations(before, after)
	if len(fields) != 1 || fields[0].Field != "concepts" {
		t.Fatalf("fields=%+v, want one concepts diff", fields)
	}
	if fields[0].Summary == "" {
		t.Fatalf("expected a non-empty summary")
	}
}

func TestLineageWalksConsecutivePairs(t *testing.T) {
	chain := []*types.Observation{
		{ID: "1", Title: "a"},
		{ID: "2", Title: "b"},
		{ID: "3", Title: "b"},
	}
	diffs := Lineage(chain)
	if len(diffs) != 2 {
		t.Fatalf("diffs=%+v, want 2 (one per consecutive pair)", diffs)
	}
	if len(diffs[0]) != 1 || diffs[0][0].Field != "title" {
		t.Fatalf("diffs[0]=%+v, want a title change", diffs[0])
	}
	if len(diffs[1]) != 0 {
		t.Fatalf("diffs[1]=%+v, want no change between identical titles", diffs[1])
	}
}

func TestLineageShortChainReturnsNil(t *testing.T) {
	if got := Lineage([]*types.Observation{{ID: "1"}}); got != nil {
		t.Fatalf("got=%+v, want nil for a single-element chain", got)
	}
}
