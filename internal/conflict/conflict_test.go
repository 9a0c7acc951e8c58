package conflict

import (
	"context"
	"testing"
)

func TestEvaluateCreateNewWhenNoNeighbours(t *testing.T) {
	e := NewEvaluator(0.85, 0.97)
	d := e.Evaluate(context.Background(), nil)
	if d.Action != ActionCreate {
		t.Fatalf("Evaluate(no neighbours)=%v, want create-new", d.Action)
	}
}

func TestEvaluateCreateNewBelowBand(t *testing.T) {
	e := NewEvaluator(0.85, 0.97)
	d := e.Evaluate(context.Background(), []Neighbour{{ID: "a", Similarity: 0.5}})
	if d.Action != ActionCreate {
		t.Fatalf("Evaluate(below band)=%v, want create-new", d.Action)
	}
}

func TestEvaluateSupersedeWithinBand(t *testing.T) {
	e := NewEvaluator(0.85, 0.97)
	d := e.Evaluate(context.Background(), []Neighbour{{ID: "a", Similarity: 0.9}})
	if d.Action != ActionSupersede || d.TargetID != "a" {
		t.Fatalf("Evaluate(within band)=%+v, want supersede(a)", d)
	}
}

func TestEvaluateDropAboveBand(t *testing.T) {
	e := NewEvaluator(0.85, 0.97)
	d := e.Evaluate(context.Background(), []Neighbour{{ID: "a", Similarity: 0.99}})
	if d.Action != ActionDrop || d.TargetID != "a" {
		t.Fatalf("Evaluate(above band)=%+v, want drop(a)", d)
	}
}
