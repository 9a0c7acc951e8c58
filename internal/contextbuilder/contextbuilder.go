// Package contextbuilder assembles a progressive-disclosure context block
// from search results: cheap index lines for the whole result set, full
// detail for the top few, an optional session summary, and a memory
// economics footer, all clamped to a hard token budget.
package contextbuilder

import (
	"fmt"
	"strings"

	"github.com/niklasschaeffer/open-mem/internal/config"
	"github.com/niklasschaeffer/open-mem/internal/types"
)

// Builder assembles context blocks from ContextConfig.
type Builder struct {
	Config config.ContextConfig
}

// New constructs a Builder, applying the default budgets when cfg is the
// zero value (a caller wiring this up ad hoc rather than through
// config.Load).
func New(cfg config.ContextConfig) *Builder {
	if cfg.MaxIndexEntries <= 0 {
		cfg.MaxIndexEntries = 40
	}
	if cfg.ContextFullObservationCount <= 0 {
		cfg.ContextFullObservationCount = 5
	}
	if cfg.MaxContextTokens <= 0 {
		cfg.MaxContextTokens = 4000
	}
	return &Builder{Config: cfg}
}

// Result is an assembled context block plus the bookkeeping behind its
// memory economics footer.
type Result struct {
	Text             string
	IndexCount       int
	DetailCount      int
	TruncatedIndex   bool
	TruncatedDetail  bool
	EstimatedTokens  int
	BudgetTokens     int
	IncludedSummary  bool
}

// Build renders results (already ranked by internal/search) into a single
// context block. summary is optional (pass nil when the session has none
// yet). Observations beyond Config.ContextFullObservationCount appear only
// as index lines; the rest are dropped once MaxContextTokens is reached,
// index lines dropping before full-detail entries since an index line with
// no matching detail is still useful but a half-written detail block is not.
func (b *Builder) Build(results []types.SearchResult, summary *types.SessionSummary) Result {
	budget := b.Config.MaxContextTokens
	reserved := estimateTokens(footerPlaceholder)
	available := budget - reserved
	if available < 0 {
		available = 0
	}

	var sb strings.Builder
	used := 0

	if summary != nil {
		block := renderSummary(summary)
		cost := estimateTokens(block)
		if cost <= available {
			sb.WriteString(block)
			used += cost
			available -= cost
		}
	}
	includedSummary := sb.Len() > 0

	detailN := b.Config.ContextFullObservationCount
	if detailN > len(results) {
		detailN = len(results)
	}

	detailCount := 0
	truncatedDetail := false
	if detailN > 0 {
		header := "## Relevant memory\n\n"
		cost := estimateTokens(header)
		if cost <= available {
			sb.WriteString(header)
			used += cost
			available -= cost
		} else {
			detailN = 0
			truncatedDetail = true
		}
	}
	for i := 0; i < detailN; i++ {
		block := renderDetail(results[i])
		cost := estimateTokens(block)
		if cost > available {
			truncatedDetail = true
			break
		}
		sb.WriteString(block)
		used += cost
		available -= cost
		detailCount++
	}

	indexN := len(results) - detailCount
	if indexN > b.Config.MaxIndexEntries {
		indexN = b.Config.MaxIndexEntries
	}
	indexCount := 0
	truncatedIndex := false
	if indexN > 0 {
		header := "## Other observations\n\n"
		cost := estimateTokens(header)
		if cost <= available {
			sb.WriteString(header)
			used += cost
			available -= cost
			for i := detailCount; i < detailCount+indexN; i++ {
				line := renderIndexLine(results[i])
				lineCost := estimateTokens(line)
				if lineCost > available {
					truncatedIndex = true
					break
				}
				sb.WriteString(line)
				used += lineCost
				available -= lineCost
				indexCount++
			}
		}
	}
	if len(results)-detailCount-indexCount > 0 {
		truncatedIndex = true
	}

	sb.WriteString(renderFooter(detailCount, indexCount, used+reserved, budget, truncatedIndex || truncatedDetail))

	return Result{
		Text:            sb.String(),
		IndexCount:      indexCount,
		DetailCount:     detailCount,
		TruncatedIndex:  truncatedIndex,
		TruncatedDetail: truncatedDetail,
		EstimatedTokens: used + reserved,
		BudgetTokens:    budget,
		IncludedSummary: includedSummary,
	}
}

const footerPlaceholder = "\n---\nmemory: 00 full, 00 indexed, 0000/0000 tokens, truncated=false\n"

func renderSummary(s *types.SessionSummary) string {
	var sb strings.Builder
	sb.WriteString("## Session summary\n\n")
	sb.WriteString(s.Summary)
	sb.WriteString("\n\n")
	return sb.String()
}

func renderDetail(r types.SearchResult) string {
	o := r.Observation
	var sb strings.Builder
	fmt.Fprintf(&sb, "### %s (%s, importance %d)\n", o.Title, o.Type, o.Importance)
	if o.Subtitle != "" {
		sb.WriteString(o.Subtitle)
		sb.WriteString("\n")
	}
	sb.WriteString(o.Narrative)
	sb.WriteString("\n")
	if len(o.Facts) > 0 {
		sb.WriteString("facts: " + strings.Join(o.Facts, "; ") + "\n")
	}
	if len(o.FilesModified) > 0 {
		sb.WriteString("files: " + strings.Join(o.FilesModified, ", ") + "\n")
	}
	sb.WriteString("\n")
	return sb.String()
}

func renderIndexLine(r types.SearchResult) string {
	o := r.Observation
	return fmt.Sprintf("- [%s] %s (%s)\n", o.Type, o.Title, o.ID)
}

func renderFooter(detailCount, indexCount, used, budget int, truncated bool) string {
	return fmt.Sprintf("\n---\nmemory: %d full, %d indexed, %d/%d tokens, truncated=%t\n",
		detailCount, indexCount, used, budget, truncated)
}

// estimateTokens approximates a token count from character length (chars/4,
// a reasonable heuristic for English prose and comparable for code).
func estimateTokens(s string) int {
	if s == "" {
		return 0
	}
	return (len(s) + 3) / 4
}
