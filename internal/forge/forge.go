// Package forge talks to the Gitea REST API. Every call returns a zero value
// on failure instead of an error; failures are logged here so callers can
// treat publish steps as best-effort.
package forge

import "context"

// User is a Gitea account reference.
type User struct {
	Login string `json:"login"`
}

// BranchRef is one side of a pull request.
type BranchRef struct {
	Ref string `json:"ref"`
	SHA string `json:"sha"`
}

// PullRequest is the subset of the Gitea PR payload the pipeline needs.
type PullRequest struct {
	Number int       `json:"number"`
	Title  string    `json:"title"`
	Body   string    `json:"body"`
	User   User      `json:"user"`
	Head   BranchRef `json:"head"`
	Base   BranchRef `json:"base"`
}

// LineComment is a per-line comment attached to a review.
type LineComment struct {
	Path        string `json:"path"`
	Body        string `json:"body"`
	NewPosition int    `json:"new_position"`
	OldPosition int    `json:"old_position"`
}

// Commit status states accepted by Gitea.
const (
	StatusPending = "pending"
	StatusSuccess = "success"
	StatusFailure = "failure"
	StatusError   = "error"
)

// Client is the forge surface consumed by the review pipeline.
type Client interface {
	// GetPullRequest fetches PR details; nil on failure.
	GetPullRequest(ctx context.Context, owner, repo string, number int) *PullRequest

	// GetDiff fetches the PR diff text; "" on failure.
	GetDiff(ctx context.Context, owner, repo string, number int) string

	// CloneURL returns the token-authenticated clone URL.
	CloneURL(owner, repo string) string

	// CreateComment posts an issue comment and returns its id; 0 on failure.
	CreateComment(ctx context.Context, owner, repo string, number int, body string) int64

	// UpdateComment edits an existing issue comment in place.
	UpdateComment(ctx context.Context, owner, repo string, commentID int64, body string) bool

	// CreateReview posts a structured review with optional line comments
	// pinned to commitID.
	CreateReview(ctx context.Context, owner, repo string, number int, body, event string, comments []LineComment, commitID string) bool

	// SetCommitStatus sets the commit status for sha.
	SetCommitStatus(ctx context.Context, owner, repo, sha, state, description string) bool

	// RequestReviewers asks the given accounts to review the PR.
	RequestReviewers(ctx context.Context, owner, repo string, number int, usernames []string) bool
}
