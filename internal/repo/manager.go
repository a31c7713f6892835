// Package repo manages throwaway working copies of pull request branches.
package repo

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/LynnGuo666/Gitea-TLDR/internal/git"
)

// Manager clones PR head branches into per-review working directories under
// a base directory. Directory names carry a ULID so concurrent reviews of the
// same PR never collide.
type Manager struct {
	baseDir string
}

// NewManager creates a Manager rooted at baseDir, creating it if needed.
func NewManager(baseDir string) (*Manager, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	return &Manager{baseDir: baseDir}, nil
}

// BaseDir returns the root under which working copies are created.
func (m *Manager) BaseDir() string { return m.baseDir }

// Clone checks out the PR head branch into a fresh working directory and
// returns its path, or "" when the clone fails. Clone failures are recoverable
// (the review falls back to diff-only mode) so they log and swallow.
func (m *Manager) Clone(ctx context.Context, cloneURL, owner, repoName, branch string, prNumber int) string {
	dir := filepath.Join(m.baseDir, workdirName(owner, repoName, prNumber))

	if err := git.Clone(ctx, cloneURL, branch, dir); err != nil {
		log.Printf("Warning: clone failed for %s/%s#%d: %v", owner, repoName, prNumber, err)
		os.RemoveAll(dir)
		return ""
	}
	return dir
}

// Cleanup removes a working directory. Best-effort.
func (m *Manager) Cleanup(dir string) {
	if dir == "" {
		return
	}
	// Refuse to remove anything outside our base directory.
	rel, err := filepath.Rel(m.baseDir, dir)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		log.Printf("Warning: refusing to clean up %s: outside work dir", dir)
		return
	}
	if err := os.RemoveAll(dir); err != nil {
		log.Printf("Warning: failed to clean up %s: %v", dir, err)
	}
}

// workdirName builds a directory name like owner_repo_pr42_01J....
// The ULID suffix keeps concurrent reviews of the same PR apart.
func workdirName(owner, repoName string, prNumber int) string {
	return fmt.Sprintf("%s_%s_pr%d_%s",
		sanitizeComponent(owner), sanitizeComponent(repoName), prNumber, ulid.Make())
}

// sanitizeComponent keeps directory names flat and shell-safe.
func sanitizeComponent(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
