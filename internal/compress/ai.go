package compress

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/niklasschaeffer/open-mem/internal/logging"
	"github.com/niklasschaeffer/open-mem/internal/types"
)

// AI is a genai-backed Compressor. It asks the model to return a single
// JSON object matching Result's shape and parses it directly; any model or
// transport failure is classified by classifyErr so the Chain can decide
// whether to retry, fall through, or short-circuit.
type AI struct {
	client *genai.Client
	model  string
}

// NewAI dials a GenAI client for compression. Missing credentials are a
// configuration error raised immediately, not deferred to first use.
func NewAI(apiKey, model string) (*AI, error) {
	if apiKey == "" {
		return nil, types.ConfigError(nil, "genai compressor: API key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, types.ConfigError(err, "create genai client")
	}
	return &AI{client: client, model: model}, nil
}

func (a *AI) Name() string { return fmt.Sprintf("genai:%s", a.model) }

// Compress asks the model to distill the capture into a Result-shaped JSON
// object, constrained to the mode's observation-type and concept
// vocabulary.
func (a *AI) Compress(ctx context.Context, in Input) (Result, error) {
	prompt := buildPrompt(in)

	resp, err := a.client.Models.GenerateContent(ctx, a.model,
		[]*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)},
		&genai.GenerateContentConfig{ResponseMIMEType: "application/json"},
	)
	if err != nil {
		return Result{}, classifyErr(err)
	}

	text := resp.Text()
	if text == "" {
		return Result{}, types.Retryable(nil, "genai compressor: empty response")
	}

	var raw struct {
		Type          string   `json:"type"`
		Title         string   `json:"title"`
		Subtitle      string   `json:"subtitle"`
		Narrative     string   `json:"narrative"`
		Facts         []string `json:"facts"`
		Concepts      []string `json:"concepts"`
		FilesRead     []string `json:"filesRead"`
		FilesModified []string `json:"filesModified"`
		Importance    int      `json:"importance"`
	}
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		logging.Get(logging.CategoryCompress).Warn("genai response was not valid JSON: %v", err)
		return Result{}, types.Retryable(err, "genai compressor: malformed JSON response")
	}

	if raw.Importance < 1 || raw.Importance > 5 {
		raw.Importance = 3
	}

	return Result{
		Type:          types.ObservationType(raw.Type),
		Title:         raw.Title,
		Subtitle:      raw.Subtitle,
		Narrative:     raw.Narrative,
		Facts:         raw.Facts,
		Concepts:      raw.Concepts,
		FilesRead:     raw.FilesRead,
		FilesModified: raw.FilesModified,
		Importance:    raw.Importance,
	}, nil
}

func buildPrompt(in Input) string {
	var b strings.Builder
	b.WriteString("Distill the following tool call into a single JSON object with fields: ")
	b.WriteString(`type, title, subtitle, narrative, facts (string array), concepts (string array), `)
	b.WriteString("filesRead (string array), filesModified (string array), importance (1-5).\n")
	if in.Mode != nil && len(in.Mode.ObservationTypes) > 0 {
		b.WriteString("type must be one of: " + strings.Join(in.Mode.ObservationTypes, ", ") + "\n")
	}
	if in.Mode != nil && len(in.Mode.Concepts) > 0 {
		b.WriteString("Prefer concepts from this vocabulary when applicable: " + strings.Join(in.Mode.Concepts, ", ") + "\n")
	}
	b.WriteString("Tool: " + in.ToolName + "\n")
	b.WriteString("Output:\n" + in.ToolOutput)
	return b.String()
}

// classifyErr maps a genai transport/API error onto this project's Kind
// taxonomy: rate-limit, 503/504 and timeout responses are retryable;
// 400/401/403 responses are configuration errors that are not retried;
// any other failure is treated as retryable.
func classifyErr(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429"), strings.Contains(msg, "rate limit"),
		strings.Contains(msg, "503"), strings.Contains(msg, "504"),
		strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline exceeded"):
		return types.Retryable(err, "genai compressor: transient failure")
	case strings.Contains(msg, "401"), strings.Contains(msg, "403"), strings.Contains(msg, "400"):
		return types.ConfigError(err, "genai compressor: request rejected")
	default:
		return types.Retryable(err, "genai compressor: unclassified failure")
	}
}
