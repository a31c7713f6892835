package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// storeFactories runs the shared Store contract tests against both
// implementations.
var storeFactories = map[string]func(t *testing.T) Store{
	"sqlite": func(t *testing.T) Store {
		s, err := Open(filepath.Join(t.TempDir(), "test.db"))
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return s
	},
	"memory": func(t *testing.T) Store {
		return NewMemoryStore()
	},
}

func TestGetOrCreateRepository(t *testing.T) {
	for name, factory := range storeFactories {
		t.Run(name, func(t *testing.T) {
			s := factory(t)
			ctx := context.Background()

			first, err := s.GetOrCreateRepository(ctx, "acme", "widgets")
			require.NoError(t, err)
			assert.NotZero(t, first.ID)
			assert.Equal(t, "acme/widgets", first.FullName())

			second, err := s.GetOrCreateRepository(ctx, "acme", "widgets")
			require.NoError(t, err)
			assert.Equal(t, first.ID, second.ID)

			other, err := s.GetOrCreateRepository(ctx, "acme", "gadgets")
			require.NoError(t, err)
			assert.NotEqual(t, first.ID, other.ID)
		})
	}
}

func TestModelConfigResolution(t *testing.T) {
	for name, factory := range storeFactories {
		t.Run(name, func(t *testing.T) {
			s := factory(t)
			ctx := context.Background()

			repo, err := s.GetOrCreateRepository(ctx, "acme", "widgets")
			require.NoError(t, err)

			// Nothing configured yet.
			cfg, err := s.GetModelConfig(ctx, repo.ID)
			require.NoError(t, err)
			assert.Nil(t, cfg)

			// Global default becomes the fallback.
			_, err = s.SaveModelConfig(ctx, &ModelConfig{
				Engine:    "claude_code",
				Model:     "claude-sonnet",
				IsDefault: true,
			})
			require.NoError(t, err)

			cfg, err = s.GetModelConfig(ctx, repo.ID)
			require.NoError(t, err)
			require.NotNil(t, cfg)
			assert.Equal(t, "claude-sonnet", cfg.Model)
			assert.Nil(t, cfg.RepoID)

			// Repo-level config wins over the global default.
			_, err = s.SaveModelConfig(ctx, &ModelConfig{
				RepoID:     &repo.ID,
				Engine:     "codex_cli",
				Model:      "gpt-5",
				APIURL:     "https://proxy.example.com",
				APIKey:     "sk-repo",
				FocusAreas: []string{"security"},
				Features:   []string{"comment", "status"},
			})
			require.NoError(t, err)

			cfg, err = s.GetModelConfig(ctx, repo.ID)
			require.NoError(t, err)
			require.NotNil(t, cfg)
			assert.Equal(t, "codex_cli", cfg.Engine)
			assert.Equal(t, "gpt-5", cfg.Model)
			require.NotNil(t, cfg.RepoID)
			assert.Equal(t, repo.ID, *cfg.RepoID)
			assert.Equal(t, []string{"security"}, cfg.FocusAreas)
			assert.Equal(t, []string{"comment", "status"}, cfg.Features)

			// Another repo still sees the global default.
			other, err := s.GetOrCreateRepository(ctx, "acme", "gadgets")
			require.NoError(t, err)
			cfg, err = s.GetModelConfig(ctx, other.ID)
			require.NoError(t, err)
			require.NotNil(t, cfg)
			assert.Equal(t, "claude-sonnet", cfg.Model)
		})
	}
}

func TestSessionLifecycle(t *testing.T) {
	for name, factory := range storeFactories {
		t.Run(name, func(t *testing.T) {
			s := factory(t)
			ctx := context.Background()

			repo, err := s.GetOrCreateRepository(ctx, "acme", "widgets")
			require.NoError(t, err)

			sess := &ReviewSession{
				RepoID:       repo.ID,
				PRNumber:     7,
				PRTitle:      "Fix bug",
				PRAuthor:     "alice",
				HeadBranch:   "fix",
				BaseBranch:   "main",
				HeadSHA:      "abc123",
				TriggerType:  TriggerAuto,
				EngineName:   "claude_code",
				ConfigSource: ConfigSourceGlobalDefault,
				Features:     []string{"comment", "status"},
				FocusAreas:   []string{"quality", "security"},
			}
			id, err := s.CreateSession(ctx, sess)
			require.NoError(t, err)
			require.NotZero(t, id)

			// Pending immediately after creation.
			got, err := s.GetSession(ctx, id)
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.False(t, got.Completed())
			assert.Equal(t, []string{"comment", "status"}, got.Features)
			assert.Equal(t, []string{"quality", "security"}, got.FocusAreas)
			assert.Equal(t, TriggerAuto, got.TriggerType)

			require.NoError(t, s.SetAnalysisMode(ctx, id, ModeFull))

			require.NoError(t, s.CompleteSession(ctx, id, SessionCompletion{
				DiffSize:           2048,
				Severity:           "medium",
				SummaryMarkdown:    "one issue",
				InlineCommentCount: 1,
				Success:            true,
			}))

			got, err = s.GetSession(ctx, id)
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.True(t, got.Completed())
			assert.True(t, got.Success)
			assert.Equal(t, ModeFull, got.AnalysisMode)
			assert.Equal(t, "medium", got.Severity)
			assert.Equal(t, 2048, got.DiffSize)
			firstCompleted := *got.CompletedAt

			// A second completion must not overwrite the first.
			time.Sleep(5 * time.Millisecond)
			require.NoError(t, s.CompleteSession(ctx, id, SessionCompletion{
				Success:      false,
				ErrorMessage: "late failure",
			}))

			got, err = s.GetSession(ctx, id)
			require.NoError(t, err)
			assert.True(t, got.Success, "first completion must win")
			assert.Empty(t, got.ErrorMessage)
			assert.Equal(t, firstCompleted.Unix(), got.CompletedAt.Unix())

			// Mode changes after completion are ignored too.
			require.NoError(t, s.SetAnalysisMode(ctx, id, ModeSimple))
			got, err = s.GetSession(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, ModeFull, got.AnalysisMode)
		})
	}
}

func TestSessionFailureCompletion(t *testing.T) {
	for name, factory := range storeFactories {
		t.Run(name, func(t *testing.T) {
			s := factory(t)
			ctx := context.Background()

			repo, err := s.GetOrCreateRepository(ctx, "acme", "widgets")
			require.NoError(t, err)

			sess := &ReviewSession{RepoID: repo.ID, PRNumber: 1, TriggerType: TriggerManual}
			id, err := s.CreateSession(ctx, sess)
			require.NoError(t, err)

			require.NoError(t, s.CompleteSession(ctx, id, SessionCompletion{
				Success:      false,
				ErrorMessage: "无法获取PR diff",
			}))

			got, err := s.GetSession(ctx, id)
			require.NoError(t, err)
			assert.False(t, got.Success)
			assert.Equal(t, "无法获取PR diff", got.ErrorMessage)
			assert.True(t, got.Completed())
		})
	}
}

func TestSaveInlineCommentsAndUsage(t *testing.T) {
	for name, factory := range storeFactories {
		t.Run(name, func(t *testing.T) {
			s := factory(t)
			ctx := context.Background()

			repo, err := s.GetOrCreateRepository(ctx, "acme", "widgets")
			require.NoError(t, err)
			id, err := s.CreateSession(ctx, &ReviewSession{RepoID: repo.ID, PRNumber: 2, TriggerType: TriggerAuto})
			require.NoError(t, err)

			comments := []InlineComment{
				{Path: "a.go", NewLine: 3, Severity: "high", Body: "unchecked error"},
				{Path: "b.go", OldLine: 9, Body: "removed validation"},
			}
			require.NoError(t, s.SaveInlineComments(ctx, id, comments))
			require.NoError(t, s.SaveInlineComments(ctx, id, nil))

			require.NoError(t, s.RecordUsage(ctx, &UsageStat{
				SessionID:    id,
				Provider:     "claude_code",
				Model:        "claude-sonnet",
				InputTokens:  1500,
				OutputTokens: 120,
				APICalls:     4,
				CloneOps:     1,
			}))
		})
	}
}

func TestGetSessionUnknown(t *testing.T) {
	for name, factory := range storeFactories {
		t.Run(name, func(t *testing.T) {
			s := factory(t)
			got, err := s.GetSession(context.Background(), 9999)
			require.NoError(t, err)
			assert.Nil(t, got)
		})
	}
}

func TestSQLiteReopenPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persist.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	repo, err := s.GetOrCreateRepository(ctx, "acme", "widgets")
	require.NoError(t, err)
	id, err := s.CreateSession(ctx, &ReviewSession{RepoID: repo.ID, PRNumber: 3, TriggerType: TriggerAuto})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.GetSession(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 3, got.PRNumber)
}

func TestMemoryStoreHelpers(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	repo, err := s.GetOrCreateRepository(ctx, "acme", "widgets")
	require.NoError(t, err)
	id, err := s.CreateSession(ctx, &ReviewSession{RepoID: repo.ID, PRNumber: 4, TriggerType: TriggerAuto})
	require.NoError(t, err)

	require.NoError(t, s.SaveInlineComments(ctx, id, []InlineComment{{Path: "a.go", Body: "x"}}))
	require.NoError(t, s.RecordUsage(ctx, &UsageStat{SessionID: id, APICalls: 2}))

	comments := s.InlineComments(id)
	require.Len(t, comments, 1)
	assert.Equal(t, id, comments[0].SessionID)

	usage := s.UsageStats()
	require.Len(t, usage, 1)
	assert.Equal(t, 2, usage[0].APICalls)
}
