package forge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetPullRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/repos/acme/widgets/pulls/5", r.URL.Path)
		assert.Equal(t, "token secret", r.Header.Get("Authorization"))
		w.Write([]byte(`{
			"number": 5,
			"title": "Add feature",
			"body": "details",
			"user": {"login": "alice"},
			"head": {"ref": "feature", "sha": "abc123"},
			"base": {"ref": "main", "sha": "def456"}
		}`))
	}))
	defer srv.Close()

	c := NewGiteaClient(srv.URL, "secret", false)
	pr := c.GetPullRequest(context.Background(), "acme", "widgets", 5)
	require.NotNil(t, pr)
	assert.Equal(t, 5, pr.Number)
	assert.Equal(t, "Add feature", pr.Title)
	assert.Equal(t, "alice", pr.User.Login)
	assert.Equal(t, "feature", pr.Head.Ref)
	assert.Equal(t, "abc123", pr.Head.SHA)
}

func TestGetPullRequestFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewGiteaClient(srv.URL, "secret", false)
	assert.Nil(t, c.GetPullRequest(context.Background(), "acme", "widgets", 5))
}

func TestGetDiff(t *testing.T) {
	const diff = "diff --git a/x b/x\n+line\n"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/repos/acme/widgets/pulls/5.diff", r.URL.Path)
		assert.Equal(t, "text/plain", r.Header.Get("Accept"))
		w.Write([]byte(diff))
	}))
	defer srv.Close()

	c := NewGiteaClient(srv.URL, "secret", false)
	assert.Equal(t, diff, c.GetDiff(context.Background(), "acme", "widgets", 5))
}

func TestGetDiffUnauthorizedReturnsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewGiteaClient(srv.URL, "secret", false)
	assert.Equal(t, "", c.GetDiff(context.Background(), "acme", "widgets", 5))
}

func TestCreateComment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/repos/acme/widgets/issues/5/comments", r.URL.Path)

		var payload map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "hello", payload["body"])

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id": 42}`))
	}))
	defer srv.Close()

	c := NewGiteaClient(srv.URL, "secret", false)
	assert.Equal(t, int64(42), c.CreateComment(context.Background(), "acme", "widgets", 5, "hello"))
}

func TestCreateCommentPermissionDenied(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewGiteaClient(srv.URL, "secret", false)
	assert.Equal(t, int64(0), c.CreateComment(context.Background(), "acme", "widgets", 5, "hello"))
}

func TestUpdateComment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/api/v1/repos/acme/widgets/issues/comments/42", r.URL.Path)
		w.Write([]byte(`{"id": 42}`))
	}))
	defer srv.Close()

	c := NewGiteaClient(srv.URL, "secret", false)
	assert.True(t, c.UpdateComment(context.Background(), "acme", "widgets", 42, "updated"))
}

func TestCreateReview(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/repos/acme/widgets/pulls/5/reviews", r.URL.Path)

		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "summary", payload["body"])
		assert.Equal(t, "COMMENT", payload["event"])
		assert.Equal(t, "abc123", payload["commit_id"])
		require.Len(t, payload["comments"], 1)

		w.Write([]byte(`{"id": 1}`))
	}))
	defer srv.Close()

	c := NewGiteaClient(srv.URL, "secret", false)
	comments := []LineComment{{Path: "a.go", Body: "fix", NewPosition: 3}}
	assert.True(t, c.CreateReview(context.Background(), "acme", "widgets", 5, "summary", "COMMENT", comments, "abc123"))
}

func TestCreateReviewOmitsEmptyComments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		_, hasComments := payload["comments"]
		assert.False(t, hasComments)
		w.Write([]byte(`{"id": 1}`))
	}))
	defer srv.Close()

	c := NewGiteaClient(srv.URL, "secret", false)
	assert.True(t, c.CreateReview(context.Background(), "acme", "widgets", 5, "summary", "COMMENT", nil, "abc123"))
}

func TestSetCommitStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/repos/acme/widgets/statuses/abc123", r.URL.Path)

		var payload map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "success", payload["state"])
		assert.Equal(t, "pr-reviewer", payload["context"])

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewGiteaClient(srv.URL, "secret", false)
	assert.True(t, c.SetCommitStatus(context.Background(), "acme", "widgets", "abc123", StatusSuccess, "done"))
}

func TestRequestReviewers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/repos/acme/widgets/pulls/5/requested_reviewers", r.URL.Path)

		var payload map[string][]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, []string{"review-bot"}, payload["reviewers"])

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewGiteaClient(srv.URL, "secret", false)
	assert.True(t, c.RequestReviewers(context.Background(), "acme", "widgets", 5, []string{"review-bot"}))
}

func TestCloneURLEmbedsToken(t *testing.T) {
	c := NewGiteaClient("https://git.example.com", "tok123", false)
	assert.Equal(t, "https://tok123@git.example.com/acme/widgets.git", c.CloneURL("acme", "widgets"))
}

func TestCloneURLHTTP(t *testing.T) {
	c := NewGiteaClient("http://git.internal:3000/", "tok123", false)
	assert.Equal(t, "http://tok123@git.internal:3000/acme/widgets.git", c.CloneURL("acme", "widgets"))
}
