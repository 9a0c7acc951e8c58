package contextbuilder

import (
	"strings"
	"testing"
	"time"

	"github.com/niklasschaeffer/open-mem/internal/config"
	"github.com/niklasschaeffer/open-mem/internal/types"
)

func sampleResults(n int) []types.SearchResult {
	out := make([]types.SearchResult, n)
	for i := 0; i < n; i++ {
		out[i] = types.SearchResult{
			Observation: types.Observation{
				ID:         "obs-" + string(rune('a'+i)),
				Type:       types.ObservationBugfix,
				Title:      "fixed something",
				Narrative:  "a narrative describing the fix in some detail",
				Importance: 5,
				CreatedAt:  time.Now(),
			},
		}
	}
	return out
}

func TestBuildSplitsDetailAndIndex(t *testing.T) {
	b := New(config.ContextConfig{ContextFullObservationCount: 2, MaxIndexEntries: 10, MaxContextTokens: 4000})
	results := sampleResults(5)
	res := b.Build(results, nil)

	if res.DetailCount != 2 {
		t.Fatalf("DetailCount=%d, want 2", res.DetailCount)
	}
	if res.IndexCount != 3 {
		t.Fatalf("IndexCount=%d, want 3", res.IndexCount)
	}
	if !strings.Contains(res.Text, "## Relevant memory") {
		t.Fatalf("Text missing detail header: %q", res.Text)
	}
	if !strings.Contains(res.Text, "## Other observations") {
		t.Fatalf("Text missing index header: %q", res.Text)
	}
}

func TestBuildIncludesSummaryWhenPresent(t *testing.T) {
	b := New(config.ContextConfig{ContextFullObservationCount: 1, MaxIndexEntries: 5, MaxContextTokens: 4000})
	summary := &types.SessionSummary{Summary: "worked on the retry logic"}
	res := b.Build(sampleResults(1), summary)

	if !res.IncludedSummary {
		t.Fatalf("IncludedSummary=false, want true")
	}
	if !strings.Contains(res.Text, "worked on the retry logic") {
		t.Fatalf("Text missing summary content: %q", res.Text)
	}
}

func TestBuildRespectsTinyTokenBudget(t *testing.T) {
	b := New(config.ContextConfig{ContextFullObservationCount: 5, MaxIndexEntries: 40, MaxContextTokens: 40})
	res := b.Build(sampleResults(20), nil)

	if res.EstimatedTokens > res.BudgetTokens+20 {
		t.Fatalf("EstimatedTokens=%d exceeds BudgetTokens=%d by too much", res.EstimatedTokens, res.BudgetTokens)
	}
	if !res.TruncatedDetail && !res.TruncatedIndex {
		t.Fatalf("expected truncation to be flagged under a 40-token budget with 20 results")
	}
	if !strings.Contains(res.Text, "truncated=true") {
		t.Fatalf("footer missing truncated=true: %q", res.Text)
	}
}

func TestBuildEmptyResultsProducesFooterOnly(t *testing.T) {
	b := New(config.ContextConfig{})
	res := b.Build(nil, nil)

	if res.DetailCount != 0 || res.IndexCount != 0 {
		t.Fatalf("expected no detail/index entries for an empty result set, got %+v", res)
	}
	if !strings.Contains(res.Text, "memory:") {
		t.Fatalf("Text missing footer: %q", res.Text)
	}
}
