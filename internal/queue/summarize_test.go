package queue

import (
	"context"
	"testing"

	"github.com/niklasschaeffer/open-mem/internal/types"
)

func TestSummarizeSessionUsesBasicSummarizer(t *testing.T) {
	p, st := newTestProcessor(t)
	ctx := context.Background()

	if _, err := st.GetOrCreateSession("sess-1", "/tmp/project"); err != nil {
		t.Fatalf("create session: %v", err)
	}
	if _, err := st.CreateObservation(&types.Observation{
		SessionID:     "sess-1",
		Type:          types.ObservationDecision,
		Title:         "chose sqlite for storage",
		FilesModified: []string{"internal/store/store.go"},
		Concepts:      []string{"storage"},
	}); err != nil {
		t.Fatalf("create observation: %v", err)
	}

	sum, err := p.SummarizeSession(ctx, BasicSummarizer{}, "sess-1")
	if err != nil {
		t.Fatalf("SummarizeSession error: %v", err)
	}
	if len(sum.KeyDecisions) != 1 || sum.KeyDecisions[0] != "chose sqlite for storage" {
		t.Fatalf("KeyDecisions=%v, want the one decision observation's title", sum.KeyDecisions)
	}
	if len(sum.FilesModified) != 1 {
		t.Fatalf("FilesModified=%v, want 1 entry", sum.FilesModified)
	}

	stored, err := st.GetSessionSummary("sess-1")
	if err != nil {
		t.Fatalf("GetSessionSummary error: %v", err)
	}
	if stored.ID != sum.ID {
		t.Fatalf("stored summary id=%s, want %s", stored.ID, sum.ID)
	}
}

func TestBasicSummaryDeduplicatesFilesAndConcepts(t *testing.T) {
	observations := []*types.Observation{
		{Type: types.ObservationFeature, FilesModified: []string{"a.go"}, Concepts: []string{"auth"}},
		{Type: types.ObservationFeature, FilesModified: []string{"a.go", "b.go"}, Concepts: []string{"auth"}},
	}
	sum := basicSummary(observations)
	if len(sum.FilesModified) != 2 {
		t.Fatalf("FilesModified=%v, want 2 deduplicated entries", sum.FilesModified)
	}
	if len(sum.Concepts) != 1 {
		t.Fatalf("Concepts=%v, want 1 deduplicated entry", sum.Concepts)
	}
}
