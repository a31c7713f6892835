package testutil

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// RepoFixture is a throwaway local git repository that clone-based tests use
// as their source, standing in for the forge's clone URL.
type RepoFixture struct {
	t   *testing.T
	dir string
}

// NewGitRepo initializes an empty repository with a "main" branch in a temp
// directory.
func NewGitRepo(t *testing.T) *RepoFixture {
	t.Helper()
	dir := t.TempDir()
	// macOS temp dirs sit behind a /var symlink; resolve it so the fixture
	// path matches what git reports for clones.
	if resolved, err := filepath.EvalSymlinks(dir); err == nil {
		dir = resolved
	}
	f := &RepoFixture{t: t, dir: dir}
	f.git("init", "-b", "main")
	return f
}

// Path returns the repository directory, usable directly as a clone URL.
func (f *RepoFixture) Path() string { return f.dir }

// CommitFile writes a file and commits it.
func (f *RepoFixture) CommitFile(name, content, msg string) {
	f.t.Helper()
	if err := os.WriteFile(filepath.Join(f.dir, name), []byte(content), 0o644); err != nil {
		f.t.Fatal(err)
	}
	f.git("add", name)
	f.git("commit", "-m", msg)
}

// HeadSHA returns the current HEAD commit hash.
func (f *RepoFixture) HeadSHA() string {
	f.t.Helper()
	return strings.TrimSpace(f.git("rev-parse", "HEAD"))
}

// git runs a git command in the fixture with a fixed committer identity, so
// commits work without touching the host's git config.
func (f *RepoFixture) git(args ...string) string {
	f.t.Helper()
	full := append([]string{"-c", "user.name=fixture", "-c", "user.email=fixture@example.com"}, args...)
	cmd := exec.Command("git", full...)
	cmd.Dir = f.dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		f.t.Fatalf("git %v: %s: %v", args, out, err)
	}
	return string(out)
}
