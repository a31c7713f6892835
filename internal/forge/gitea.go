package forge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// statusContext is the commit-status context reported to Gitea.
const statusContext = "pr-reviewer"

// GiteaClient is the HTTP implementation of Client.
type GiteaClient struct {
	baseURL string
	token   string
	debug   bool
	http    *http.Client
}

// NewGiteaClient creates a Gitea API client.
func NewGiteaClient(baseURL, token string, debug bool) *GiteaClient {
	return &GiteaClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		debug:   debug,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// do runs one API request and returns the response body for 2xx responses.
// Permission errors are expected at org boundaries and log as warnings.
func (c *GiteaClient) do(ctx context.Context, method, path string, payload any, accept string) ([]byte, bool) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			log.Printf("gitea: marshal %s %s: %v", method, path, err)
			return nil, false
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		log.Printf("gitea: build %s %s: %v", method, path, err)
		return nil, false
	}
	req.Header.Set("Authorization", "token "+c.token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	if c.debug {
		log.Printf("gitea: %s %s", method, path)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		log.Printf("gitea: %s %s: %v", method, path, err)
		return nil, false
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Printf("gitea: read %s %s: %v", method, path, err)
		return nil, false
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			log.Printf("Warning: gitea: insufficient permissions for %s %s (HTTP %d)", method, path, resp.StatusCode)
		} else {
			log.Printf("gitea: %s %s: HTTP %d: %s", method, path, resp.StatusCode, truncate(string(data), 200))
		}
		return nil, false
	}

	return data, true
}

func (c *GiteaClient) GetPullRequest(ctx context.Context, owner, repo string, number int) *PullRequest {
	data, ok := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/v1/repos/%s/%s/pulls/%d", owner, repo, number), nil, "")
	if !ok {
		return nil
	}
	var pr PullRequest
	if err := json.Unmarshal(data, &pr); err != nil {
		log.Printf("gitea: decode pull request: %v", err)
		return nil
	}
	return &pr
}

func (c *GiteaClient) GetDiff(ctx context.Context, owner, repo string, number int) string {
	data, ok := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/v1/repos/%s/%s/pulls/%d.diff", owner, repo, number), nil, "text/plain")
	if !ok {
		return ""
	}
	return string(data)
}

// CloneURL embeds the API token so the clone needs no credential helper.
func (c *GiteaClient) CloneURL(owner, repo string) string {
	parsed, err := url.Parse(c.baseURL)
	if err != nil || parsed.Host == "" {
		return fmt.Sprintf("%s/%s/%s.git", c.baseURL, owner, repo)
	}
	scheme := parsed.Scheme
	if scheme == "" {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s@%s/%s/%s.git", scheme, c.token, parsed.Host, owner, repo)
}

func (c *GiteaClient) CreateComment(ctx context.Context, owner, repo string, number int, body string) int64 {
	data, ok := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/v1/repos/%s/%s/issues/%d/comments", owner, repo, number), map[string]string{"body": body}, "")
	if !ok {
		return 0
	}
	var created struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal(data, &created); err != nil {
		log.Printf("gitea: decode created comment: %v", err)
		return 0
	}
	return created.ID
}

func (c *GiteaClient) UpdateComment(ctx context.Context, owner, repo string, commentID int64, body string) bool {
	_, ok := c.do(ctx, http.MethodPatch, fmt.Sprintf("/api/v1/repos/%s/%s/issues/comments/%d", owner, repo, commentID), map[string]string{"body": body}, "")
	return ok
}

func (c *GiteaClient) CreateReview(ctx context.Context, owner, repo string, number int, body, event string, comments []LineComment, commitID string) bool {
	payload := map[string]any{
		"body":  body,
		"event": event,
	}
	if len(comments) > 0 {
		payload["comments"] = comments
	}
	if commitID != "" {
		payload["commit_id"] = commitID
	}
	_, ok := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/v1/repos/%s/%s/pulls/%d/reviews", owner, repo, number), payload, "")
	return ok
}

func (c *GiteaClient) SetCommitStatus(ctx context.Context, owner, repo, sha, state, description string) bool {
	payload := map[string]string{
		"state":       state,
		"context":     statusContext,
		"description": description,
	}
	_, ok := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/v1/repos/%s/%s/statuses/%s", owner, repo, sha), payload, "")
	if ok {
		log.Printf("gitea: commit status %s/%s@%s -> %s", owner, repo, shortSHA(sha), state)
	}
	return ok
}

func (c *GiteaClient) RequestReviewers(ctx context.Context, owner, repo string, number int, usernames []string) bool {
	_, ok := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/v1/repos/%s/%s/pulls/%d/requested_reviewers", owner, repo, number), map[string][]string{"reviewers": usernames}, "")
	return ok
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
