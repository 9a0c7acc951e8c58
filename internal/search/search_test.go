package search

import (
	"context"
	"testing"

	"github.com/niklasschaeffer/open-mem/internal/config"
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

func TestRunFilterOnlyFindsFTSMatch(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.GetOrCreateSession("sess-1", "/proj"); err != nil {
		t.Fatalf("GetOrCreateSession: %v", err)
	}
	obs, err := s.CreateObservation(&types.Observation{
		SessionID: "sess-1",
		Type:      types.ObservationBugfix,
		Title:     "fixed race in worker pool",
		Narrative: "found a goroutine leak in the worker pool and patched it",
	})
	if err != nil {
		t.Fatalf("CreateObservation: %v", err)
	}

	o := New(s, nil, nil, config.SearchConfig{DefaultStrategy: "filter-only"})
	results, err := o.Run(context.Background(), Query{Text: "worker pool", ProjectPath: "/proj"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(results) != 1 || results[0].Observation.ID != obs.ID {
		t.Fatalf("results=%+v, want exactly the one matching observation", results)
	}
	if results[0].Rank != 1 {
		t.Fatalf("Rank=%d, want 1", results[0].Rank)
	}
	foundRRF := false
	for _, sig := range results[0].Explain {
		if sig.Signal == signalRRF {
			foundRRF = true
		}
	}
	if !foundRRF {
		t.Fatalf("Explain=%+v, want an rrf signal entry", results[0].Explain)
	}
}

func TestRunRespectsLimit(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.GetOrCreateSession("sess-1", "/proj"); err != nil {
		t.Fatalf("GetOrCreateSession: %v", err)
	}
	for i := 0; i < 5; i++ {
		if _, err := s.CreateObservation(&types.Observation{
			SessionID: "sess-1",
			Type:      types.ObservationBugfix,
			Title:     "duplicate bug report",
			Narrative: "duplicate bug report narrative text",
		}); err != nil {
			t.Fatalf("CreateObservation: %v", err)
		}
	}

	o := New(s, nil, nil, config.SearchConfig{DefaultStrategy: "filter-only"})
	results, err := o.Run(context.Background(), Query{Text: "duplicate bug", ProjectPath: "/proj", Limit: 2})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("len(results)=%d, want 2", len(results))
	}
}

func TestRunNoMatchesReturnsEmpty(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.GetOrCreateSession("sess-1", "/proj"); err != nil {
		t.Fatalf("GetOrCreateSession: %v", err)
	}

	o := New(s, nil, nil, config.SearchConfig{DefaultStrategy: "filter-only"})
	results, err := o.Run(context.Background(), Query{Text: "nonexistent", ProjectPath: "/proj"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("results=%+v, want none", results)
	}
}
