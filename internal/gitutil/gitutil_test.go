package gitutil

import "testing"

func TestCanonicalProjectPathNonGitDirReturnsInput(t *testing.T) {
	dir := t.TempDir()
	if got := CanonicalProjectPath(dir); got != dir {
		t.Fatalf("CanonicalProjectPath(%s)=%s, want unchanged for a non-git directory", dir, got)
	}
}

func TestIsWorktreeNonGitDirIsFalse(t *testing.T) {
	dir := t.TempDir()
	if IsWorktree(dir) {
		t.Fatalf("IsWorktree(%s)=true, want false for a non-git directory", dir)
	}
}
