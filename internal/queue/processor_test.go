package queue

import (
	"context"
	"testing"

	"github.com/niklasschaeffer/open-mem/internal/compress"
	"github.com/niklasschaeffer/open-mem/internal/config"
	"github.com/niklasschaeffer/open-mem/internal/conflict"
	"github.com/niklasschaeffer/open-mem/internal/entities"
	"github.com/niklasschaeffer/open-mem/internal/store"
	"github.com/niklasschaeffer/open-mem/internal/types"
)

func newTestProcessor(t *testing.T) (*Processor, *store.Store) {
	t.Helper()
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	return &Processor{
		Store:      st,
		Compressor: compress.NewBasic(),
		Extractor:  entities.NewHeuristic(),
		Mode:       nil,
		Config: config.QueueConfig{
			BatchSize:        10,
			MaxRetries:       3,
			ConflictEnabled:  false,
			EntityExtraction: true,
		},
	}, st
}

func TestRunBatchCreatesObservationFromPending(t *testing.T) {
	p, st := newTestProcessor(t)
	ctx := context.Background()

	if _, err := st.GetOrCreateSession("sess-1", "/tmp/project"); err != nil {
		t.Fatalf("create session: %v", err)
	}
	if _, err := st.Enqueue("sess-1", "edit", "edited internal/store/store.go successfully", "call-1"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	result, err := p.RunBatch(ctx)
	if err != nil {
		t.Fatalf("RunBatch error: %v", err)
	}
	if result.Claimed != 1 || result.Completed != 1 {
		t.Fatalf("RunBatch result=%+v, want 1 claimed/1 completed", result)
	}

	obs, err := st.ListByProject("/tmp/project", types.ListOptions{State: types.StateCurrent})
	if err != nil {
		t.Fatalf("list observations: %v", err)
	}
	if len(obs) != 1 {
		t.Fatalf("got %d observations, want 1", len(obs))
	}

	depth, err := st.PendingDepth()
	if err != nil {
		t.Fatalf("pending depth: %v", err)
	}
	if depth != 0 {
		t.Fatalf("pending depth=%d, want 0 after completion", depth)
	}
}

func TestRunBatchEmptyQueueReturnsZeroResult(t *testing.T) {
	p, _ := newTestProcessor(t)
	result, err := p.RunBatch(context.Background())
	if err != nil {
		t.Fatalf("RunBatch error: %v", err)
	}
	if result.Claimed != 0 {
		t.Fatalf("RunBatch result=%+v, want 0 claimed on empty queue", result)
	}
}

func TestEvaluateConflictSkipsWhenDisabled(t *testing.T) {
	p, _ := newTestProcessor(t)
	p.Config.ConflictEnabled = true
	p.Evaluator = conflict.NewEvaluator(0.85, 0.97)
	// Embedder is nil, so evaluation must degrade to ActionCreate rather
	// than panic on a nil dereference.
	vec, decision := p.evaluateConflict(context.Background(), &types.Observation{Narrative: "test"})
	if vec != nil {
		t.Fatalf("expected nil vector with no embedder, got %v", vec)
	}
	if decision.Action != conflict.ActionCreate {
		t.Fatalf("decision=%+v, want ActionCreate", decision)
	}
}
