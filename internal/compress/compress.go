// Package compress distills a raw tool capture into an observation body.
// Three implementations share the Compressor interface: a genai-backed
// AI compressor, a deterministic basic extractor used as the fallback path,
// and a Chain that wraps an ordered provider list with retry/fallback
// classification.
package compress

import (
	"context"

	"github.com/niklasschaeffer/open-mem/internal/config"
	"github.com/niklasschaeffer/open-mem/internal/types"
)

// Input is a raw capture plus the mode configuration governing
// observation-type vocabulary and concept extraction.
type Input struct {
	ToolName   string
	ToolOutput string
	Mode       *config.Mode
}

// Result is a distilled observation body excluding identity fields (id,
// sessionId, createdAt) which the observation repository assigns.
type Result struct {
	Type          types.ObservationType
	Title         string
	Subtitle      string
	Narrative     string
	Facts         []string
	Concepts      []string
	FilesRead     []string
	FilesModified []string
	Importance    int
}

// Compressor distills a raw capture into a Result. Implementations must
// treat AI-provider timeouts and rate-limits as types.KindRetryable and
// auth/request errors as types.KindConfig; only the latter should
// propagate past a Chain.
type Compressor interface {
	Compress(ctx context.Context, in Input) (Result, error)
	Name() string
}
