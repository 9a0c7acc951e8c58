// Package redact strips private content and sensitive-looking tokens from
// raw captures before they touch the pending queue.
package redact

import (
	"regexp"
	"strings"

	"github.com/niklasschaeffer/open-mem/internal/logging"
)

const redactionMarker = "[REDACTED]"

var privateBlock = regexp.MustCompile(`(?s)<private>.*?</private>`)

// builtinPatterns detects common API-key/token shapes and generic
// high-entropy base64-like runs of 24+ characters.
var builtinPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)sk-[a-z0-9]{20,}`),
	regexp.MustCompile(`(?i)ghp_[a-z0-9]{36,}`),
	regexp.MustCompile(`(?i)AIza[a-z0-9_\-]{30,}`),
	regexp.MustCompile(`(?i)Bearer\s+[a-z0-9\-_.]{20,}`),
	regexp.MustCompile(`[A-Za-z0-9+/]{24,}={0,2}`),
}

// Redactor applies the two-stage redaction transform described in §4.1:
// strip <private> blocks, then scrub sensitive patterns. Captures shorter
// than MinLength after redaction are suppressed entirely.
type Redactor struct {
	MinLength int
	extra     []*regexp.Regexp
}

// New builds a Redactor. extraPatterns are additional case-insensitive
// regexes supplied via config; an invalid pattern is skipped and logged,
// never fatal (fail-open per §4.1).
func New(minLength int, extraPatterns []string) *Redactor {
	r := &Redactor{MinLength: minLength}
	for _, p := range extraPatterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			logging.Get(logging.CategoryRedact).Warn("skipping invalid redaction pattern %q: %v", p, err)
			continue
		}
		r.extra = append(r.extra, re)
	}
	return r
}

// Redact returns the redacted text and whether the caller should suppress
// the capture entirely (output too short after redaction).
func (r *Redactor) Redact(text string) (result string, suppress bool) {
	stripped := privateBlock.ReplaceAllString(text, "")

	for _, re := range builtinPatterns {
		stripped = safeReplace(re, stripped)
	}
	for _, re := range r.extra {
		stripped = safeReplace(re, stripped)
	}

	stripped = strings.TrimSpace(stripped)
	if len(stripped) < r.MinLength {
		return "", true
	}
	return stripped, false
}

func safeReplace(re *regexp.Regexp, s string) (out string) {
	out = s
	defer func() {
		if rec := recover(); rec != nil {
			logging.Get(logging.CategoryRedact).Warn("redaction pattern panicked, skipping: %v", rec)
			out = s
		}
	}()
	out = re.ReplaceAllString(s, redactionMarker)
	return
}
