// Package storage persists review sessions, inline comments, usage stats,
// and model configuration. Two implementations exist: a SQLite store for
// normal operation and an in-memory store used when no database path is
// configured (and by tests). Exactly one is active per process.
package storage

import "context"

// Store is the persistence surface consumed by the review pipeline.
type Store interface {
	// GetOrCreateRepository returns the repository row for owner/name,
	// creating it on first sight.
	GetOrCreateRepository(ctx context.Context, owner, name string) (*Repository, error)

	// GetModelConfig resolves the effective model configuration for a
	// repository: the repo-level row if one exists, otherwise the global
	// default, otherwise nil.
	GetModelConfig(ctx context.Context, repoID int64) (*ModelConfig, error)

	// SaveModelConfig inserts or replaces a model configuration row.
	SaveModelConfig(ctx context.Context, cfg *ModelConfig) (int64, error)

	// CreateSession persists a pending session and returns its id.
	CreateSession(ctx context.Context, s *ReviewSession) (int64, error)

	// SetAnalysisMode records full/simple mode before the provider runs.
	SetAnalysisMode(ctx context.Context, sessionID int64, mode string) error

	// CompleteSession writes the terminal fields and completion timestamp.
	// A session completes at most once; later calls are ignored.
	CompleteSession(ctx context.Context, sessionID int64, c SessionCompletion) error

	// GetSession returns a session by id, or nil when unknown.
	GetSession(ctx context.Context, sessionID int64) (*ReviewSession, error)

	// SaveInlineComments persists the findings of a successful analysis.
	SaveInlineComments(ctx context.Context, sessionID int64, comments []InlineComment) error

	// RecordUsage appends the per-session usage audit row.
	RecordUsage(ctx context.Context, u *UsageStat) error

	Close() error
}
