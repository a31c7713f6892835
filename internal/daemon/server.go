// Package daemon is the HTTP entry point: it accepts Gitea webhooks,
// acknowledges them immediately, and runs reviews in the background.
package daemon

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/LynnGuo666/Gitea-TLDR/internal/config"
	"github.com/LynnGuo666/Gitea-TLDR/internal/version"
	"github.com/LynnGuo666/Gitea-TLDR/internal/webhook"
)

// maxWebhookBody caps webhook payload size.
const maxWebhookBody = 10 << 20

// Server is the webhook HTTP server.
type Server struct {
	cfg        *config.Config
	pipeline   *webhook.Pipeline
	httpServer *http.Server
	startTime  time.Time

	// tracks in-flight background reviews so Stop can drain them
	reviews sync.WaitGroup
}

// NewServer creates the HTTP server around a review pipeline.
func NewServer(cfg *config.Config, pipeline *webhook.Pipeline) *Server {
	s := &Server{
		cfg:       cfg,
		pipeline:  pipeline,
		startTime: time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/webhook", s.handleWebhook)
	mux.HandleFunc("/api/health", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: mux,
	}
	return s
}

// Handler exposes the HTTP handler for tests.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Start runs the HTTP server until it is shut down.
func (s *Server) Start() error {
	log.Printf("Starting HTTP server on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop shuts the server down and waits for in-flight reviews to finish.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
	s.reviews.Wait()
	return nil
}

// handleWebhook accepts a Gitea webhook, verifies its signature when a secret
// is configured, and dispatches the review to a background goroutine. The
// 202 response goes out before the review runs so webhook delivery never
// waits on a provider subprocess.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body: "+err.Error())
		return
	}

	if s.cfg.WebhookSecret != "" {
		if !verifySignature(body, r.Header.Get("X-Gitea-Signature"), s.cfg.WebhookSecret) {
			log.Printf("Warning: webhook signature mismatch from %s", r.RemoteAddr)
			writeError(w, http.StatusUnauthorized, "invalid signature")
			return
		}
	}

	event := r.Header.Get("X-Gitea-Event")
	switch event {
	case "pull_request":
		var payload webhook.PullRequestEvent
		if err := json.Unmarshal(body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, "decode payload: "+err.Error())
			return
		}
		features := webhook.ParseFeatures(r.Header.Get("X-Review-Features"))
		focus := webhook.ParseFocus(r.Header.Get("X-Review-Focus"))
		s.dispatch(func(ctx context.Context) {
			s.pipeline.HandlePullRequestEvent(ctx, &payload, features, focus)
		})
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})

	case "issue_comment":
		var payload webhook.IssueCommentEvent
		if err := json.Unmarshal(body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, "decode payload: "+err.Error())
			return
		}
		s.dispatch(func(ctx context.Context) {
			s.pipeline.HandleIssueCommentEvent(ctx, &payload)
		})
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})

	default:
		log.Printf("ignoring webhook event %q", event)
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
	}
}

// dispatch runs a review in the background. Reviews deliberately do not
// inherit the request context: the webhook response returns immediately and
// must not cancel the review.
func (s *Server) dispatch(fn func(context.Context)) {
	s.reviews.Add(1)
	go func() {
		defer s.reviews.Done()
		fn(context.Background())
	}()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": version.Version,
		"uptime":  time.Since(s.startTime).Round(time.Second).String(),
	})
}

// verifySignature checks the hex HMAC-SHA256 Gitea puts in X-Gitea-Signature.
func verifySignature(body []byte, signature, secret string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
