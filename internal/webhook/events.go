package webhook

import "github.com/LynnGuo666/Gitea-TLDR/internal/forge"

// RepositoryRef identifies the repository an event belongs to.
type RepositoryRef struct {
	Name  string     `json:"name"`
	Owner forge.User `json:"owner"`
}

// PullRequestEvent is the Gitea pull_request webhook payload subset we read.
type PullRequestEvent struct {
	Action      string             `json:"action"`
	PullRequest *forge.PullRequest `json:"pull_request"`
	Repository  RepositoryRef      `json:"repository"`
}

// PullRequestRef marks an issue as being a pull request.
type PullRequestRef struct {
	URL string `json:"url"`
}

// IssueCommentEvent is the Gitea issue_comment webhook payload subset we read.
type IssueCommentEvent struct {
	Action  string `json:"action"`
	Comment struct {
		Body string     `json:"body"`
		User forge.User `json:"user"`
	} `json:"comment"`
	Issue struct {
		Number int `json:"number"`
		// Non-nil only when the issue is a pull request.
		PullRequest *PullRequestRef `json:"pull_request"`
	} `json:"issue"`
	Repository RepositoryRef `json:"repository"`
}
