package host

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/niklasschaeffer/open-mem/internal/config"
	"github.com/niklasschaeffer/open-mem/internal/search"
	"github.com/niklasschaeffer/open-mem/internal/types"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.ProjectRoot = t.TempDir()
	cfg.Storage.DatabasePath = filepath.Join(cfg.ProjectRoot, "memory.db")
	cfg.Embedding.Enabled = false
	cfg.Compress.Provider = "disabled"

	e, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return e
}

func TestOpenWiresEverySubsystem(t *testing.T) {
	e := newTestEngine(t)
	if e.Store == nil || e.Search == nil || e.Context == nil || e.Processor == nil || e.Scheduler == nil || e.Redactor == nil || e.ModeLoader == nil {
		t.Fatalf("Open left a subsystem nil: %+v", e)
	}
}

func TestCaptureCreateSearchRoundTrip(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.OnToolExecute(ToolExecution{
		SessionID:   "sess-1",
		ProjectPath: e.ProjectPath(e.Config.ProjectRoot),
		ToolName:    "edit",
		Output:      "changed the retry backoff in the queue processor to use exponential delay",
		CallID:      "call-1",
	})
	if err != nil {
		t.Fatalf("OnToolExecute: %v", err)
	}

	if _, err := e.Processor.RunBatch(context.Background()); err != nil {
		t.Fatalf("RunBatch: %v", err)
	}

	results, err := e.Search.Run(context.Background(), search.Query{
		Text:     "retry backoff",
		Strategy: types.StrategyFilterOnly,
		Limit:    10,
	})
	if err != nil {
		t.Fatalf("Search.Run: %v", err)
	}
	if len(results) == 0 {
		t.Fatalf("expected at least one search result after capture")
	}
}

func TestSessionCompactingProducesSummary(t *testing.T) {
	e := newTestEngine(t)
	projectPath := e.ProjectPath(e.Config.ProjectRoot)

	sess, err := e.Store.GetOrCreateSession("sess-2", projectPath)
	if err != nil {
		t.Fatalf("GetOrCreateSession: %v", err)
	}

	obs := &types.Observation{
		SessionID:     sess.ID,
		Type:          types.ObservationDecision,
		Title:         "chose RRF for fusion",
		Narrative:     "decided to fuse signals with reciprocal rank fusion rather than a weighted sum",
		FilesModified: []string{"internal/search/search.go"},
	}
	if _, err := e.Store.CreateObservation(obs); err != nil {
		t.Fatalf("CreateObservation: %v", err)
	}

	summary, err := e.OnSessionCompacting(sess.ID)
	if err != nil {
		t.Fatalf("OnSessionCompacting: %v", err)
	}
	if summary == nil {
		t.Fatalf("expected a non-nil summary")
	}
	if !strings.Contains(summary.Summary, "chose RRF for fusion") {
		t.Fatalf("summary missing observation title: %+v", summary)
	}
	if len(summary.KeyDecisions) != 1 {
		t.Fatalf("KeyDecisions=%v, want 1 entry", summary.KeyDecisions)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	e := newTestEngine(t)
	projectPath := e.ProjectPath(e.Config.ProjectRoot)

	sess, err := e.Store.GetOrCreateSession("sess-3", projectPath)
	if err != nil {
		t.Fatalf("GetOrCreateSession: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := e.Store.CreateObservation(&types.Observation{
			SessionID: sess.ID,
			Type:      types.ObservationBugfix,
			Title:     "fix",
			Narrative: "narrative",
		}); err != nil {
			t.Fatalf("CreateObservation: %v", err)
		}
	}

	var buf strings.Builder
	n, err := e.Export(&buf, projectPath)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if n != 3 {
		t.Fatalf("Export count=%d, want 3", n)
	}

	imported, skipped, err := e.Import(strings.NewReader(buf.String()))
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if imported != 3 || skipped != 0 {
		t.Fatalf("Import imported=%d skipped=%d, want 3/0", imported, skipped)
	}

	list, err := e.List(projectPath, types.ListOptions{Limit: 100})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 6 {
		t.Fatalf("List len=%d, want 6 (3 original + 3 imported)", len(list))
	}
}
