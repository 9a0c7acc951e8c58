// Package conflict decides, for a freshly compressed candidate, whether
// it should become a new observation, supersede an existing one, or be
// dropped as a near-duplicate — repurposing the cosine-similarity
// candidate scoring a search path would use, but applied to "is this a
// duplicate" rather than "rank these results".
package conflict

import (
	"context"
)

// Action is the evaluator's verdict.
type Action string

const (
	ActionCreate   Action = "create-new"
	ActionSupersede Action = "supersede"
	ActionDrop     Action = "drop"
)

// Decision is the evaluator's output; TargetID is only set for
// ActionSupersede.
type Decision struct {
	Action   Action
	TargetID string
	Score    float64
}

// Neighbour is a candidate considered for conflict, typically produced by
// the store's FindSimilar brute-force scan over recent rows of the same
// observation type.
type Neighbour struct {
	ID         string
	Similarity float64
	Importance int
}

// Evaluator compares a new candidate's embedding neighbours within a
// configured similarity band and decides supersede/drop/create.
type Evaluator struct {
	bandLow  float64
	bandHigh float64
}

// NewEvaluator builds an evaluator over the configured similarity band:
// below bandLow, neighbours are unrelated (create-new); above bandHigh,
// the candidate is near-identical to an existing row (drop, unless it
// carries materially new content — decided by the caller via
// ShouldSupersede); in between, the candidate supersedes its closest
// neighbour as a revision.
func NewEvaluator(bandLow, bandHigh float64) *Evaluator {
	return &Evaluator{bandLow: bandLow, bandHigh: bandHigh}
}

// Evaluate picks the closest neighbour and classifies the candidate
// against it. Neighbours must already be sorted by similarity descending.
func (e *Evaluator) Evaluate(_ context.Context, neighbours []Neighbour) Decision {
	if len(neighbours) == 0 {
		return Decision{Action: ActionCreate}
	}

	best := neighbours[0]
	switch {
	case best.Similarity >= e.bandHigh:
		return Decision{Action: ActionDrop, TargetID: best.ID, Score: best.Similarity}
	case best.Similarity >= e.bandLow:
		return Decision{Action: ActionSupersede, TargetID: best.ID, Score: best.Similarity}
	default:
		return Decision{Action: ActionCreate}
	}
}

// ToNeighbours adapts parallel id/similarity slices (as produced by a
// store-layer similarity scan) into the shape this package reasons about,
// so this package need not import internal/store directly.
func ToNeighbours(ids []string, similarities []float64) []Neighbour {
	out := make([]Neighbour, 0, len(ids))
	for i, id := range ids {
		out = append(out, Neighbour{ID: id, Similarity: similarities[i]})
	}
	return out
}
