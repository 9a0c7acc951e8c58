package embedding

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/niklasschaeffer/open-mem/internal/logging"
)

// maxBatchSize caps a single EmbedContent request; the API rejects larger
// batches outright, so EmbedBatch chunks beyond it.
const maxBatchSize = 100

func int32Ptr(i int32) *int32 { return &i }

// GenAIEngine generates embeddings via Google's Gemini embedding API.
type GenAIEngine struct {
	client   *genai.Client
	model    string
	taskType string
}

// NewGenAIEngine dials the GenAI client. A missing API key is a
// configuration error, not a retryable one — it should never enter the
// provider-chain retry loop.
func NewGenAIEngine(apiKey, model, taskType string) (*GenAIEngine, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("genai embedding: API key is required")
	}
	if model == "" {
		model = "gemini-embedding-001"
	}
	if taskType == "" {
		taskType = "SEMANTIC_SIMILARITY"
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &GenAIEngine{client: client, model: model, taskType: taskType}, nil
}

// Embed generates an embedding for one text.
func (e *GenAIEngine) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.embedBatchChunk(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("genai embed: no embeddings returned")
	}
	return vecs[0], nil
}

// EmbedBatch generates embeddings for multiple texts, chunking beyond
// maxBatchSize and concatenating results.
func (e *GenAIEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if len(texts) <= maxBatchSize {
		return e.embedBatchChunk(ctx, texts)
	}

	numBatches := (len(texts) + maxBatchSize - 1) / maxBatchSize
	all := make([][]float32, 0, len(texts))
	for i := 0; i < numBatches; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		start := i * maxBatchSize
		end := start + maxBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		chunk, err := e.embedBatchChunk(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("embed batch %d/%d: %w", i+1, numBatches, err)
		}
		all = append(all, chunk...)
	}
	return all, nil
}

func (e *GenAIEngine) embedBatchChunk(ctx context.Context, texts []string) ([][]float32, error) {
	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}

	result, err := e.client.Models.EmbedContent(ctx, e.model, contents,
		&genai.EmbedContentConfig{OutputDimensionality: int32Ptr(int32(e.Dimensions()))})
	if err != nil {
		logging.Get(logging.CategoryEmbedding).Warn("genai embed request failed: %v", err)
		return nil, err
	}

	out := make([][]float32, len(result.Embeddings))
	for i, emb := range result.Embeddings {
		out[i] = emb.Values
	}
	return out, nil
}

// HealthCheck embeds a one-word probe to confirm reachability before a
// batch is attempted.
func (e *GenAIEngine) HealthCheck(ctx context.Context) error {
	_, err := e.Embed(ctx, "health")
	return err
}

// Dimensions returns the configured output dimensionality. gemini-embedding-001
// supports truncation to smaller dimensions via OutputDimensionality, but
// this project always requests the model's native 3072 to match the native
// vec0 index sizing decision (probe-from-first-vector).
func (e *GenAIEngine) Dimensions() int { return 3072 }

// Name identifies the engine for logs and the vectors table's type column.
func (e *GenAIEngine) Name() string { return fmt.Sprintf("genai:%s", e.model) }
