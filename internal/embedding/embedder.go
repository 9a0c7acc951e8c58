// Package embedding generates vector embeddings for observation text,
// used both at capture time (stored against the observation) and at query
// time (for semantic search).
package embedding

import (
	"context"
	"fmt"
	"math"

	"github.com/niklasschaeffer/open-mem/internal/logging"
)

// Embedder generates vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Name() string
}

// HealthChecker is an optional capability for engines that can cheaply
// verify reachability. The queue processor does not consult it.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Config selects and configures the embedding backend.
type Config struct {
	Provider string `json:"provider" yaml:"provider"` // "genai" or "disabled"

	GenAIAPIKey string `json:"genaiApiKey" yaml:"genaiApiKey"`
	GenAIModel  string `json:"genaiModel" yaml:"genaiModel"`
	TaskType    string `json:"taskType" yaml:"taskType"`
}

// DefaultConfig returns the genai-backed default.
func DefaultConfig() Config {
	return Config{
		Provider:   "genai",
		GenAIModel: "gemini-embedding-001",
		TaskType:   "SEMANTIC_SIMILARITY",
	}
}

// New constructs an Embedder from configuration.
func New(cfg Config) (Embedder, error) {
	timer := logging.StartTimer(logging.CategoryEmbedding, "New")
	defer timer.Stop()

	switch cfg.Provider {
	case "", "disabled":
		return NewNoop(), nil
	case "genai":
		return NewGenAIEngine(cfg.GenAIAPIKey, cfg.GenAIModel, cfg.TaskType)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}
}

// CosineSimilarity is the package-level convenience for callers reasoning
// purely in terms of embeddings (not storage rows); the store's brute-force
// scan uses its own store.CosineSimilarity rather than this one.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
