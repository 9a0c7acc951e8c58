package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"google.golang.org/genai"

	"github.com/niklasschaeffer/open-mem/internal/logging"
	"github.com/niklasschaeffer/open-mem/internal/types"
)

// Summarizer turns a session's observations into a recap, stored once the
// session ends so the context assembler can surface it instead of
// re-walking the full observation list.
type Summarizer interface {
	Summarize(ctx context.Context, session *types.Session, observations []*types.Observation) (types.SessionSummary, error)
	Name() string
}

// SummarizeSession loads a session's current observations and runs them
// through summarizer, persisting the result. The host layer does not call
// it; OnSessionCompacting builds its summary separately.
func (p *Processor) SummarizeSession(ctx context.Context, summarizer Summarizer, sessionID string) (*types.SessionSummary, error) {
	session, err := p.Store.GetSession(sessionID)
	if err != nil {
		return nil, err
	}

	observations, err := p.Store.ListByProject(session.ProjectPath, types.ListOptions{
		SessionID: sessionID,
		State:     types.StateCurrent,
	})
	if err != nil {
		return nil, err
	}

	sum, err := summarizer.Summarize(ctx, session, observations)
	if err != nil {
		logging.Get(logging.CategoryQueue).Warn("summarizer %s failed, falling back to basic recap: %v", summarizer.Name(), err)
		sum = basicSummary(observations)
	}
	sum.SessionID = sessionID

	return p.Store.CreateSessionSummary(&sum)
}

// BasicSummarizer builds a deterministic recap from observation fields
// with no model call, used as the always-available fallback.
type BasicSummarizer struct{}

func (BasicSummarizer) Name() string { return "basic" }

func (BasicSummarizer) Summarize(_ context.Context, _ *types.Session, observations []*types.Observation) (types.SessionSummary, error) {
	return basicSummary(observations), nil
}

func basicSummary(observations []*types.Observation) types.SessionSummary {
	var decisions, files, concepts []string
	seenFiles := map[string]bool{}
	seenConcepts := map[string]bool{}

	for _, o := range observations {
		if o.Type == types.ObservationDecision {
			decisions = append(decisions, o.Title)
		}
		for _, f := range o.FilesModified {
			if !seenFiles[f] {
				seenFiles[f] = true
				files = append(files, f)
			}
		}
		for _, c := range o.Concepts {
			if !seenConcepts[c] {
				seenConcepts[c] = true
				concepts = append(concepts, c)
			}
		}
	}
	sort.Strings(files)
	sort.Strings(concepts)

	return types.SessionSummary{
		Summary:       fmt.Sprintf("%d observations recorded across %d modified files.", len(observations), len(files)),
		KeyDecisions:  decisions,
		FilesModified: files,
		Concepts:      concepts,
	}
}

// AISummarizer asks a genai model to produce the structured recap
// (request, investigated, learned, completed, nextSteps) the basic
// summarizer cannot infer from field aggregation alone.
type AISummarizer struct {
	client *genai.Client
	model  string
}

func NewAISummarizer(apiKey, model string) (*AISummarizer, error) {
	if apiKey == "" {
		return nil, types.ConfigError(nil, "genai summarizer: API key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, types.ConfigError(err, "create genai client")
	}
	return &AISummarizer{client: client, model: model}, nil
}

func (a *AISummarizer) Name() string { return fmt.Sprintf("genai:%s", a.model) }

func (a *AISummarizer) Summarize(ctx context.Context, session *types.Session, observations []*types.Observation) (types.SessionSummary, error) {
	if len(observations) == 0 {
		return basicSummary(observations), nil
	}

	prompt := buildSummaryPrompt(session, observations)
	resp, err := a.client.Models.GenerateContent(ctx, a.model,
		[]*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)},
		&genai.GenerateContentConfig{ResponseMIMEType: "application/json"},
	)
	if err != nil {
		return types.SessionSummary{}, types.Retryable(err, "genai summarizer call failed")
	}

	text := resp.Text()
	if text == "" {
		return types.SessionSummary{}, types.Retryable(nil, "genai summarizer: empty response")
	}

	var raw struct {
		Summary      string   `json:"summary"`
		KeyDecisions []string `json:"keyDecisions"`
		Request      string   `json:"request"`
		Investigated string   `json:"investigated"`
		Learned      string   `json:"learned"`
		Completed    string   `json:"completed"`
		NextSteps    string   `json:"nextSteps"`
	}
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return types.SessionSummary{}, types.Retryable(err, "genai summarizer: malformed JSON response")
	}

	base := basicSummary(observations)
	base.Summary = raw.Summary
	if len(raw.KeyDecisions) > 0 {
		base.KeyDecisions = raw.KeyDecisions
	}
	base.Request = raw.Request
	base.Investigated = raw.Investigated
	base.Learned = raw.Learned
	base.Completed = raw.Completed
	base.NextSteps = raw.NextSteps
	return base, nil
}

func buildSummaryPrompt(session *types.Session, observations []*types.Observation) string {
	var b strings.Builder
	b.WriteString("Summarize this coding session as a single JSON object with fields: ")
	b.WriteString("summary, keyDecisions (string array), request, investigated, learned, completed, nextSteps.\n")
	b.WriteString("Project: " + session.ProjectPath + "\n")
	for _, o := range observations {
		b.WriteString(fmt.Sprintf("- [%s] %s: %s\n", o.Type, o.Title, o.Subtitle))
	}
	return b.String()
}
