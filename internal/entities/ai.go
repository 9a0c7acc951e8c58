package entities

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/niklasschaeffer/open-mem/internal/config"
	"github.com/niklasschaeffer/open-mem/internal/logging"
	"github.com/niklasschaeffer/open-mem/internal/types"
)

// AI asks a genai model to extract typed entities/relationships from an
// observation's narrative and facts, returned as a JSON array matching
// types.Relationship's shape.
type AI struct {
	client *genai.Client
	model  string
}

// NewAI dials a GenAI client for entity extraction.
func NewAI(apiKey, model string) (*AI, error) {
	if apiKey == "" {
		return nil, types.ConfigError(nil, "genai extractor: API key is required")
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

func (a *AI) Extract(ctx context.Context, obs *types.Observation, mode *config.Mode) ([]types.Relationship, error) {
	resp, err := a.client.Models.GenerateContent(ctx, a.model,
		[]*genai.Content{genai.NewContentFromText(buildPrompt(obs, mode), genai.RoleUser)},
		&genai.GenerateContentConfig{ResponseMIMEType: "application/json"},
	)
	if err != nil {
		logging.Get(logging.CategoryGraph).Warn("entity extraction request failed: %v", err)
		return nil, types.Retryable(err, "genai extractor: request failed")
	}

	text := resp.Text()
	if text == "" {
		return nil, nil
	}

	var raw []struct {
		FromType string  `json:"fromType"`
		FromName string  `json:"fromName"`
		Relation string  `json:"relation"`
		ToType   string  `json:"toType"`
		ToName   string  `json:"toName"`
		Weight   float64 `json:"weight"`
	}
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		logging.Get(logging.CategoryGraph).Warn("entity extraction response was not valid JSON: %v", err)
		return nil, nil
	}

	var entityVocab, relVocab []string
	if mode != nil {
		entityVocab, relVocab = mode.EntityTypes, mode.RelationshipTypes
	}

	out := make([]types.Relationship, 0, len(raw))
	for _, r := range raw {
		if r.FromName == "" || r.ToName == "" || r.Relation == "" {
			continue
		}
		if !vocabAllows(entityVocab, r.FromType) || !vocabAllows(entityVocab, r.ToType) {
			continue
		}
		if !vocabAllows(relVocab, r.Relation) {
			continue
		}
		if r.Weight <= 0 {
			r.Weight = 1.0
		}
		out = append(out, types.Relationship{
			Type: r.Relation, FromType: r.FromType, FromName: r.FromName,
			ToType: r.ToType, ToName: r.ToName, ObservationID: obs.ID, Weight: r.Weight,
		})
	}
	return out, nil
}

func buildPrompt(obs *types.Observation, mode *config.Mode) string {
	var b strings.Builder
	b.WriteString("Extract entities and relationships from this observation as a JSON array of objects ")
	b.WriteString(`with fields: fromType, fromName, relation, toType, toName, weight (0-1).` + "\n")
	if mode != nil && len(mode.EntityTypes) > 0 {
		b.WriteString("entity types must be one of: " + strings.Join(mode.EntityTypes, ", ") + "\n")
	}
	if mode != nil && len(mode.RelationshipTypes) > 0 {
		b.WriteString("relation must be one of: " + strings.Join(mode.RelationshipTypes, ", ") + "\n")
	}
	b.WriteString("Title: " + obs.Title + "\n")
	b.WriteString("Narrative: " + obs.Narrative + "\n")
	if len(obs.Facts) > 0 {
		b.WriteString("Facts: " + strings.Join(obs.Facts, "; ") + "\n")
	}
	return b.String()
}
