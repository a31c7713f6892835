// Package git shells out to the git CLI for the small set of operations the
// review pipeline needs.
package git

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Clone performs a shallow, single-branch clone of cloneURL at branch into
// dest. The URL may embed credentials; it is never logged here.
func Clone(ctx context.Context, cloneURL, branch, dest string) error {
	args := []string{"clone", "--depth", "1", "--single-branch"}
	if branch != "" {
		args = append(args, "--branch", branch)
	}
	args = append(args, cloneURL, dest)

	cmd := exec.CommandContext(ctx, "git", args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("git clone: %w: %s", err, sanitize(stderr.String(), cloneURL))
	}
	return nil
}

// HeadSHA returns the full SHA of HEAD in repoPath.
func HeadSHA(ctx context.Context, repoPath string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", "rev-parse", "HEAD")
	cmd.Dir = repoPath

	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("git rev-parse: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// sanitize removes the credentialed clone URL from git's stderr before it
// reaches any log line or stored error.
func sanitize(stderr, cloneURL string) string {
	s := strings.ReplaceAll(stderr, cloneURL, "<clone-url>")
	return strings.TrimSpace(s)
}
