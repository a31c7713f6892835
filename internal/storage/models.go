package storage

import (
	"strings"
	"time"
)

// Trigger types for a review session.
const (
	TriggerAuto   = "auto"
	TriggerManual = "manual"
)

// Config sources recorded on a session, in precedence order.
const (
	ConfigSourceHeader        = "header"
	ConfigSourceRepoConfig    = "repo_config"
	ConfigSourceGlobalDefault = "global_default"
)

// Analysis modes.
const (
	ModeFull   = "full"   // working copy available
	ModeSimple = "simple" // diff-only
)

// Repository is a known Gitea repository.
type Repository struct {
	ID        int64
	Owner     string
	Name      string
	CreatedAt time.Time
}

// FullName returns owner/name.
func (r *Repository) FullName() string {
	return r.Owner + "/" + r.Name
}

// ReviewSession is one review run for a PR. Created pending at pipeline start
// and completed exactly once, success or failure.
type ReviewSession struct {
	ID           int64
	RepoID       int64
	PRNumber     int
	PRTitle      string
	PRAuthor     string
	HeadBranch   string
	BaseBranch   string
	HeadSHA      string
	TriggerType  string
	EngineName   string
	ModelID      string
	ConfigSource string
	Features     []string
	FocusAreas   []string
	AnalysisMode string
	DiffSize     int

	Severity           string
	SummaryMarkdown    string
	InlineCommentCount int
	Success            bool
	ErrorMessage       string

	StartedAt   time.Time
	CompletedAt *time.Time
	DurationSec float64
}

// Completed reports whether the session has reached a terminal state.
func (s *ReviewSession) Completed() bool {
	return s.CompletedAt != nil
}

// SessionCompletion carries the terminal fields written when a session
// finishes.
type SessionCompletion struct {
	DiffSize           int
	Severity           string
	SummaryMarkdown    string
	InlineCommentCount int
	Success            bool
	ErrorMessage       string
}

// InlineComment is a persisted copy of one inline finding.
type InlineComment struct {
	ID        int64
	SessionID int64
	Path      string
	NewLine   int // 0 when unset
	OldLine   int // 0 when unset
	Severity  string
	Body      string
}

// UsageStat is the per-session audit row of estimated cost.
type UsageStat struct {
	ID           int64
	SessionID    int64
	Provider     string
	Model        string
	InputTokens  int
	OutputTokens int
	APICalls     int
	CloneOps     int
	CreatedAt    time.Time
}

// ModelConfig configures the engine for a repository (RepoID set) or globally
// (RepoID nil with IsDefault). The pipeline only reads these.
type ModelConfig struct {
	ID           int64
	RepoID       *int64
	Engine       string
	Model        string
	APIURL       string
	APIKey       string
	WireAPI      string
	CustomPrompt string
	Features     []string
	FocusAreas   []string
	IsDefault    bool
}

// joinList and splitList store string slices as comma-separated TEXT.
func joinList(items []string) string {
	return strings.Join(items, ",")
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
