package compress

import (
	"context"
	"strings"
	"testing"
)

func TestBasicCompressNeverErrors(t *testing.T) {
	b := NewBasic()
	_, err := b.Compress(context.Background(), Input{ToolName: "read", ToolOutput: "hello"})
	if err != nil {
		t.Fatalf("Basic.Compress returned an error: %v", err)
	}
}

func TestBasicCompressClassifiesWriteVsRead(t *testing.T) {
	b := NewBasic()

	write, _ := b.Compress(context.Background(), Input{ToolName: "edit", ToolOutput: "patched src/main.go"})
	if len(write.FilesModified) == 0 || !strings.Contains(write.FilesModified[0], "main.go") {
		t.Fatalf("expected edit tool output to populate filesModified, got %+v", write)
	}
	if len(write.FilesRead) != 0 {
		t.Fatalf("expected empty filesRead for a write tool, got %v", write.FilesRead)
	}

	read, _ := b.Compress(context.Background(), Input{ToolName: "read", ToolOutput: "looked at src/main.go"})
	if len(read.FilesRead) == 0 {
		t.Fatalf("expected read tool output to populate filesRead, got %+v", read)
	}
	if len(read.FilesModified) != 0 {
		t.Fatalf("expected empty filesModified for a read tool, got %v", read.FilesModified)
	}
}

func TestBasicCompressTruncatesNarrative(t *testing.T) {
	b := NewBasic()
	lines := make([]string, 50)
	for i := range lines {
		lines[i] = "line"
	}
	out, _ := b.Compress(context.Background(), Input{ToolName: "read", ToolOutput: strings.Join(lines, "\n")})
	if strings.Count(out.Narrative, "\n")+1 > basicMaxLines {
		t.Fatalf("narrative has more than %d lines", basicMaxLines)
	}
}

func TestBasicCompressFixedImportance(t *testing.T) {
	b := NewBasic()
	out, _ := b.Compress(context.Background(), Input{ToolName: "read", ToolOutput: "x"})
	if out.Importance != 3 {
		t.Fatalf("Basic.Compress importance=%d, want 3", out.Importance)
	}
}
