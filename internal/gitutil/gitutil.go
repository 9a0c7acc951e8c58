// Package gitutil resolves a filesystem path to a stable project identity
// across git worktrees, so a session opened from a worktree checkout
// shares its observations with the main checkout instead of fragmenting
// into a second project.
package gitutil

import (
	"bytes"
	"context"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/niklasschaeffer/open-mem/internal/logging"
)

// CanonicalProjectPath resolves dir to the repository's common git
// directory's parent (stable across worktrees) when dir sits inside a git
// repository, otherwise returns dir unchanged (not an error: a project
// with no git repo is still a valid project).
func CanonicalProjectPath(dir string) string {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if !isGitRepo(ctx, dir) {
		return dir
	}

	commonDir, err := runGit(ctx, dir, "rev-parse", "--path-format=absolute", "--git-common-dir")
	if err != nil {
		logging.Get(logging.CategoryHost).Warn("git-common-dir lookup failed for %s, using raw path: %v", dir, err)
		return dir
	}
	commonDir = strings.TrimSpace(commonDir)
	if commonDir == "" {
		return dir
	}

	// A common dir of ".git" means dir is already the main checkout's
	// worktree root; a bare path (worktree's private gitdir) points at
	// <root>/.git, so its parent is the canonical project root.
	root := filepath.Dir(commonDir)
	if root == "." || root == "" {
		return dir
	}
	return root
}

func isGitRepo(ctx context.Context, dir string) bool {
	cmd := exec.CommandContext(ctx, "git", "rev-parse", "--is-inside-work-tree")
	cmd.Dir = dir
	return cmd.Run() == nil
}

func runGit(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return "", err
	}
	return out.String(), nil
}

// IsWorktree reports whether dir's git-dir differs from its
// git-common-dir, i.e. dir is a linked worktree rather than the main
// checkout.
func IsWorktree(dir string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if !isGitRepo(ctx, dir) {
		return false
	}
	gitDir, err1 := runGit(ctx, dir, "rev-parse", "--path-format=absolute", "--git-dir")
	commonDir, err2 := runGit(ctx, dir, "rev-parse", "--path-format=absolute", "--git-common-dir")
	if err1 != nil || err2 != nil {
		return false
	}
	return strings.TrimSpace(gitDir) != strings.TrimSpace(commonDir)
}
