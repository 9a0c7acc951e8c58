package redact

import (
	"strings"
	"testing"
)

func TestRedactStripsPrivateBlocks(t *testing.T) {
	r := New(0, nil)
	out, suppress := r.Redact("before <private>secret stuff\nmultiline</private> after")
	if suppress {
		t.Fatalf("unexpected suppress")
	}
	if strings.Contains(out, "secret stuff") {
		t.Fatalf("private block leaked: %q", out)
	}
	if !strings.Contains(out, "before") || !strings.Contains(out, "after") {
		t.Fatalf("surrounding text lost: %q", out)
	}
}

func TestRedactScrubsAPIKeyPatterns(t *testing.T) {
	r := New(0, nil)
	out, _ := r.Redact("token=sk-abcdefghijklmnopqrstuvwxyz1234")
	if strings.Contains(out, "sk-abcdefghijklmnopqrstuvwxyz1234") {
		t.Fatalf("api key leaked: %q", out)
	}
}

func TestRedactSuppressesShortOutput(t *testing.T) {
	r := New(50, nil)
	_, suppress := r.Redact("short")
	if !suppress {
		t.Fatalf("expected suppression for output under MinLength")
	}
}

func TestRedactInvalidExtraPatternFailsOpen(t *testing.T) {
	r := New(0, []string{"("}) // invalid regex
	out, suppress := r.Redact("hello world")
	if suppress {
		t.Fatalf("unexpected suppress")
	}
	if out != "hello world" {
		t.Fatalf("expected text unchanged when only pattern is invalid, got %q", out)
	}
}
