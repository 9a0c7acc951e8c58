// Package host is the facade an agent harness and the dashboard both embed
// against: a capture interface (onToolExecute and friends) that feeds the
// durable queue, and a query surface (search/list/get/lineage/...) that
// reads back through the same store.
package host

import (
	"os"
	"path/filepath"

	"github.com/niklasschaeffer/open-mem/internal/compress"
	"github.com/niklasschaeffer/open-mem/internal/config"
	"github.com/niklasschaeffer/open-mem/internal/conflict"
	"github.com/niklasschaeffer/open-mem/internal/contextbuilder"
	"github.com/niklasschaeffer/open-mem/internal/embedding"
	"github.com/niklasschaeffer/open-mem/internal/entities"
	"github.com/niklasschaeffer/open-mem/internal/events"
	"github.com/niklasschaeffer/open-mem/internal/gitutil"
	"github.com/niklasschaeffer/open-mem/internal/logging"
	"github.com/niklasschaeffer/open-mem/internal/metrics"
	"github.com/niklasschaeffer/open-mem/internal/queue"
	"github.com/niklasschaeffer/open-mem/internal/redact"
	"github.com/niklasschaeffer/open-mem/internal/search"
	"github.com/niklasschaeffer/open-mem/internal/store"
)

// Engine wires every subsystem together behind the capture and query
// surfaces. Bus and Metrics are optional (nil skips publishing/recording).
type Engine struct {
	Store      *store.Store
	Search     *search.Orchestrator
	Context    *contextbuilder.Builder
	Processor  *queue.Processor
	Scheduler  *queue.Scheduler
	Redactor   *redact.Redactor
	ModeLoader *config.ModeLoader
	Bus        *events.Bus
	Metrics    *metrics.Metrics
	Config     *config.Config
}

// Open builds an Engine from a resolved Config: opens the store, builds
// the compress/embedding/conflict/entity stack, and wires the search
// orchestrator and context builder against it. The embedded event bus and
// metrics registry are optional add-ons started by the caller (typically
// cmd/openmem's daemon command) via WithBus/WithMetrics.
func Open(cfg *config.Config) (*Engine, error) {
	s, err := store.Open(cfg.DatabasePath())
	if err != nil {
		return nil, err
	}

	embedProvider := cfg.Embedding.Provider
	if !cfg.Embedding.Enabled {
		embedProvider = "disabled"
	}
	embedder, err := embedding.New(embedding.Config{
		Provider:    embedProvider,
		GenAIAPIKey: apiKeyFromEnv(),
		GenAIModel:  cfg.Embedding.Model,
		TaskType:    "SEMANTIC_SIMILARITY",
	})
	if err != nil {
		return nil, err
	}
	s.SetEmbeddingEngine(embedder)

	var compressors []compress.Compressor
	if cfg.Compress.Provider != "" && cfg.Compress.Provider != "disabled" {
		ai, err := compress.NewAI(apiKeyFromEnv(), cfg.Compress.Model)
		if err == nil {
			compressors = append(compressors, ai)
		} else {
			logging.Get(logging.CategoryCompress).Warn("AI compressor unavailable, basic extractor only: %v", err)
		}
	}
	chain := compress.NewChain(compressors, compress.NewBasic(), cfg.Compress.RatePerSecond)

	modeLoader := config.NewModeLoader(modesDir(cfg.ProjectRoot))
	mode := modeLoader.Load(config.DefaultModeID)

	evaluator := conflict.NewEvaluator(cfg.Queue.SimilarityBandLow, cfg.Queue.SimilarityBandHigh)
	extractor := entities.Extractor(entities.NewHeuristic())

	processor := &queue.Processor{
		Store:      s,
		Compressor: chain,
		Embedder:   embedder,
		Evaluator:  evaluator,
		Extractor:  extractor,
		Mode:       mode,
		Config:     cfg.Queue,
	}
	scheduler := queue.NewScheduler(processor, cfg.Queue.IntervalSeconds)

	orchestrator := search.New(s, embedder, nil, cfg.Search)
	builder := contextbuilder.New(cfg.Context)
	redactor := redact.New(cfg.Redact.MinCaptureLength, cfg.Redact.ExtraPatterns)

	return &Engine{
		Store:      s,
		Search:     orchestrator,
		Context:    builder,
		Processor:  processor,
		Scheduler:  scheduler,
		Redactor:   redactor,
		ModeLoader: modeLoader,
		Config:     cfg,
	}, nil
}

// WithBus attaches an already-started event bus, also handing it to the
// queue processor so lifecycle events publish.
func (e *Engine) WithBus(bus *events.Bus) *Engine {
	e.Bus = bus
	e.Processor.Bus = bus
	return e
}

// WithMetrics attaches a metrics registry, also handing it to the queue
// processor so batch/observation counters record.
func (e *Engine) WithMetrics(m *metrics.Metrics) *Engine {
	e.Metrics = m
	e.Processor.Metrics = m
	return e
}

// Close releases the store and event bus.
func (e *Engine) Close() error {
	if e.Bus != nil {
		e.Bus.Close()
	}
	return e.Store.Close()
}

// ProjectPath canonicalises dir through gitutil so sessions opened from a
// linked worktree land on the same project as the main checkout.
func (e *Engine) ProjectPath(dir string) string {
	return gitutil.CanonicalProjectPath(dir)
}

func apiKeyFromEnv() string {
	return os.Getenv("OPENMEM_GENAI_API_KEY")
}

func modesDir(projectRoot string) string {
	return filepath.Join(projectRoot, ".open-mem", "modes")
}
