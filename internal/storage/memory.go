package storage

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps everything in process memory. Used when no database path
// is configured; sessions are lost on restart.
type MemoryStore struct {
	mu sync.Mutex

	nextRepoID    int64
	nextSessionID int64
	nextConfigID  int64
	nextCommentID int64
	nextUsageID   int64

	repos    map[string]*Repository // keyed by owner/name
	sessions map[int64]*ReviewSession
	configs  []*ModelConfig
	comments map[int64][]InlineComment // keyed by session id
	usage    []*UsageStat
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		repos:    make(map[string]*Repository),
		sessions: make(map[int64]*ReviewSession),
		comments: make(map[int64][]InlineComment),
	}
}

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) GetOrCreateRepository(_ context.Context, owner, name string) (*Repository, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := owner + "/" + name
	if repo, ok := m.repos[key]; ok {
		copied := *repo
		return &copied, nil
	}
	m.nextRepoID++
	repo := &Repository{
		ID:        m.nextRepoID,
		Owner:     owner,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	m.repos[key] = repo
	copied := *repo
	return &copied, nil
}

func (m *MemoryStore) GetModelConfig(_ context.Context, repoID int64) (*ModelConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var global *ModelConfig
	for i := len(m.configs) - 1; i >= 0; i-- {
		cfg := m.configs[i]
		if cfg.RepoID != nil && *cfg.RepoID == repoID {
			copied := *cfg
			return &copied, nil
		}
		if cfg.RepoID == nil && cfg.IsDefault && global == nil {
			global = cfg
		}
	}
	if global == nil {
		return nil, nil
	}
	copied := *global
	return &copied, nil
}

func (m *MemoryStore) SaveModelConfig(_ context.Context, cfg *ModelConfig) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextConfigID++
	copied := *cfg
	copied.ID = m.nextConfigID
	m.configs = append(m.configs, &copied)
	return copied.ID, nil
}

func (m *MemoryStore) CreateSession(_ context.Context, sess *ReviewSession) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sess.StartedAt.IsZero() {
		sess.StartedAt = time.Now().UTC()
	}
	m.nextSessionID++
	sess.ID = m.nextSessionID
	copied := *sess
	m.sessions[sess.ID] = &copied
	return sess.ID, nil
}

func (m *MemoryStore) SetAnalysisMode(_ context.Context, sessionID int64, mode string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sess, ok := m.sessions[sessionID]; ok && !sess.Completed() {
		sess.AnalysisMode = mode
	}
	return nil
}

func (m *MemoryStore) CompleteSession(_ context.Context, sessionID int64, c SessionCompletion) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[sessionID]
	if !ok || sess.Completed() {
		return nil
	}
	now := time.Now().UTC()
	sess.DiffSize = c.DiffSize
	sess.Severity = c.Severity
	sess.SummaryMarkdown = c.SummaryMarkdown
	sess.InlineCommentCount = c.InlineCommentCount
	sess.Success = c.Success
	sess.ErrorMessage = c.ErrorMessage
	sess.CompletedAt = &now
	sess.DurationSec = now.Sub(sess.StartedAt).Seconds()
	return nil
}

func (m *MemoryStore) GetSession(_ context.Context, sessionID int64) (*ReviewSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	copied := *sess
	return &copied, nil
}

func (m *MemoryStore) SaveInlineComments(_ context.Context, sessionID int64, comments []InlineComment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range comments {
		m.nextCommentID++
		c.ID = m.nextCommentID
		c.SessionID = sessionID
		m.comments[sessionID] = append(m.comments[sessionID], c)
	}
	return nil
}

// InlineComments returns the stored comments for a session. Test helper.
func (m *MemoryStore) InlineComments(sessionID int64) []InlineComment {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]InlineComment(nil), m.comments[sessionID]...)
}

func (m *MemoryStore) RecordUsage(_ context.Context, u *UsageStat) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextUsageID++
	copied := *u
	copied.ID = m.nextUsageID
	if copied.CreatedAt.IsZero() {
		copied.CreatedAt = time.Now().UTC()
	}
	m.usage = append(m.usage, &copied)
	return nil
}

// UsageStats returns all recorded usage rows. Test helper.
func (m *MemoryStore) UsageStats() []*UsageStat {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*UsageStat, len(m.usage))
	for i, u := range m.usage {
		copied := *u
		out[i] = &copied
	}
	return out
}
