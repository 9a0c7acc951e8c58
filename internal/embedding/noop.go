package embedding

import "context"

// Noop is the embedding backend used when the config disables embeddings
// entirely. Search falls back to FTS-only in that configuration.
type Noop struct{}

// NewNoop constructs a disabled embedder.
func NewNoop() *Noop { return &Noop{} }

func (Noop) Embed(ctx context.Context, text string) ([]float32, error) { return nil, nil }

func (Noop) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) { return nil, nil }

func (Noop) Dimensions() int { return 0 }

func (Noop) Name() string { return "noop" }
