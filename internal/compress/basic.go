package compress

import (
	"context"
	"regexp"
	"strings"

	"github.com/niklasschaeffer/open-mem/internal/types"
)

const (
	basicMaxLines = 20
	basicMaxBytes = 2000
)

// pathLikeToken matches a conservative file-path shape: at least one path
// separator and a file extension, avoiding false positives on ordinary
// prose.
var pathLikeToken = regexp.MustCompile(`[./][\w./-]+\.\w{1,8}\b`)

var writeToolNames = map[string]bool{
	"write": true, "edit": true, "apply_patch": true, "create_file": true,
}

// Basic is the deterministic fallback extractor used when the AI provider
// is unavailable or every chained provider failed with a retryable error.
// It never errors: the caller is guaranteed a usable (if low-fidelity)
// Result.
type Basic struct{}

// NewBasic constructs the fallback extractor.
func NewBasic() *Basic { return &Basic{} }

func (Basic) Name() string { return "basic-fallback" }

// Compress never returns an error; it is the bottom of the fallback chain.
func (Basic) Compress(_ context.Context, in Input) (Result, error) {
	narrative := truncateLines(in.ToolOutput, basicMaxLines, basicMaxBytes)
	paths := pathLikeToken.FindAllString(in.ToolOutput, -1)
	paths = dedupe(paths)

	res := Result{
		Type:       types.ObservationChange,
		Title:      in.ToolName,
		Narrative:  narrative,
		Concepts:   []string{},
		Importance: 3,
	}
	if writeToolNames[strings.ToLower(in.ToolName)] {
		res.FilesModified = paths
		res.FilesRead = []string{}
	} else {
		res.FilesRead = paths
		res.FilesModified = []string{}
	}
	res.Facts = []string{}
	return res, nil
}

func truncateLines(s string, maxLines, maxBytes int) string {
	lines := strings.Split(s, "\n")
	if len(lines) > maxLines {
		lines = lines[:maxLines]
	}
	out := strings.Join(lines, "\n")
	if len(out) > maxBytes {
		out = out[:maxBytes]
	}
	return out
}

func dedupe(ss []string) []string {
	seen := make(map[string]bool, len(ss))
	out := make([]string, 0, len(ss))
	for _, s := range ss {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
