package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS repositories (
  id INTEGER PRIMARY KEY,
  owner TEXT NOT NULL,
  name TEXT NOT NULL,
  created_at TEXT NOT NULL DEFAULT (datetime('now')),
  UNIQUE(owner, name)
);

CREATE TABLE IF NOT EXISTS review_sessions (
  id INTEGER PRIMARY KEY,
  repo_id INTEGER NOT NULL REFERENCES repositories(id),
  pr_number INTEGER NOT NULL,
  pr_title TEXT NOT NULL DEFAULT '',
  pr_author TEXT NOT NULL DEFAULT '',
  head_branch TEXT NOT NULL DEFAULT '',
  base_branch TEXT NOT NULL DEFAULT '',
  head_sha TEXT NOT NULL DEFAULT '',
  trigger_type TEXT NOT NULL CHECK(trigger_type IN ('auto','manual')),
  engine_name TEXT NOT NULL DEFAULT '',
  model_id TEXT NOT NULL DEFAULT '',
  config_source TEXT NOT NULL DEFAULT '',
  features TEXT NOT NULL DEFAULT '',
  focus_areas TEXT NOT NULL DEFAULT '',
  analysis_mode TEXT NOT NULL DEFAULT '',
  diff_size INTEGER NOT NULL DEFAULT 0,
  severity TEXT NOT NULL DEFAULT '',
  summary_markdown TEXT NOT NULL DEFAULT '',
  inline_comment_count INTEGER NOT NULL DEFAULT 0,
  success INTEGER,
  error_message TEXT NOT NULL DEFAULT '',
  started_at TEXT NOT NULL,
  completed_at TEXT,
  duration_sec REAL NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS inline_comments (
  id INTEGER PRIMARY KEY,
  session_id INTEGER NOT NULL REFERENCES review_sessions(id) ON DELETE CASCADE,
  path TEXT NOT NULL,
  new_line INTEGER NOT NULL DEFAULT 0,
  old_line INTEGER NOT NULL DEFAULT 0,
  severity TEXT NOT NULL DEFAULT '',
  body TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS usage_stats (
  id INTEGER PRIMARY KEY,
  session_id INTEGER NOT NULL REFERENCES review_sessions(id) ON DELETE CASCADE,
  provider TEXT NOT NULL DEFAULT '',
  model TEXT NOT NULL DEFAULT '',
  input_tokens INTEGER NOT NULL DEFAULT 0,
  output_tokens INTEGER NOT NULL DEFAULT 0,
  api_calls INTEGER NOT NULL DEFAULT 0,
  clone_ops INTEGER NOT NULL DEFAULT 0,
  created_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS model_configs (
  id INTEGER PRIMARY KEY,
  repo_id INTEGER REFERENCES repositories(id),
  engine TEXT NOT NULL DEFAULT '',
  model TEXT NOT NULL DEFAULT '',
  api_url TEXT NOT NULL DEFAULT '',
  api_key TEXT NOT NULL DEFAULT '',
  wire_api TEXT NOT NULL DEFAULT '',
  custom_prompt TEXT NOT NULL DEFAULT '',
  features TEXT NOT NULL DEFAULT '',
  focus_areas TEXT NOT NULL DEFAULT '',
  is_default INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_sessions_repo ON review_sessions(repo_id);
CREATE INDEX IF NOT EXISTS idx_sessions_pr ON review_sessions(repo_id, pr_number);
CREATE INDEX IF NOT EXISTS idx_inline_comments_session ON inline_comments(session_id);
CREATE INDEX IF NOT EXISTS idx_model_configs_repo ON model_configs(repo_id);
`

const timeFormat = time.RFC3339Nano

// SQLiteStore is the persistent Store implementation.
type SQLiteStore struct {
	db *sql.DB
}

// Open opens or creates the database at dbPath.
func Open(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// migrate adds columns introduced after the initial schema. CREATE IF NOT
// EXISTS covers new tables; column additions go here.
func (s *SQLiteStore) migrate() error {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM pragma_table_info('review_sessions') WHERE name = 'duration_sec'`).Scan(&count)
	if err != nil {
		return fmt.Errorf("check duration_sec column: %w", err)
	}
	if count == 0 {
		if _, err := s.db.Exec(`ALTER TABLE review_sessions ADD COLUMN duration_sec REAL NOT NULL DEFAULT 0`); err != nil {
			return fmt.Errorf("add duration_sec column: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) GetOrCreateRepository(ctx context.Context, owner, name string) (*Repository, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO repositories (owner, name) VALUES (?, ?) ON CONFLICT(owner, name) DO NOTHING`,
		owner, name)
	if err != nil {
		return nil, fmt.Errorf("insert repository: %w", err)
	}

	var repo Repository
	var createdAt string
	err = s.db.QueryRowContext(ctx,
		`SELECT id, owner, name, created_at FROM repositories WHERE owner = ? AND name = ?`,
		owner, name).Scan(&repo.ID, &repo.Owner, &repo.Name, &createdAt)
	if err != nil {
		return nil, fmt.Errorf("select repository: %w", err)
	}
	repo.CreatedAt = parseTime(createdAt)
	return &repo, nil
}

func (s *SQLiteStore) GetModelConfig(ctx context.Context, repoID int64) (*ModelConfig, error) {
	cfg, err := s.scanModelConfig(s.db.QueryRowContext(ctx,
		`SELECT id, repo_id, engine, model, api_url, api_key, wire_api, custom_prompt, features, focus_areas, is_default
		 FROM model_configs WHERE repo_id = ? ORDER BY id DESC LIMIT 1`, repoID))
	if err != nil {
		return nil, err
	}
	if cfg != nil {
		return cfg, nil
	}
	return s.scanModelConfig(s.db.QueryRowContext(ctx,
		`SELECT id, repo_id, engine, model, api_url, api_key, wire_api, custom_prompt, features, focus_areas, is_default
		 FROM model_configs WHERE repo_id IS NULL AND is_default = 1 ORDER BY id DESC LIMIT 1`))
}

func (s *SQLiteStore) scanModelConfig(row *sql.Row) (*ModelConfig, error) {
	var cfg ModelConfig
	var repoID sql.NullInt64
	var features, focus string
	err := row.Scan(&cfg.ID, &repoID, &cfg.Engine, &cfg.Model, &cfg.APIURL, &cfg.APIKey,
		&cfg.WireAPI, &cfg.CustomPrompt, &features, &focus, &cfg.IsDefault)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan model config: %w", err)
	}
	if repoID.Valid {
		cfg.RepoID = &repoID.Int64
	}
	cfg.Features = splitList(features)
	cfg.FocusAreas = splitList(focus)
	return &cfg, nil
}

func (s *SQLiteStore) SaveModelConfig(ctx context.Context, cfg *ModelConfig) (int64, error) {
	var repoID any
	if cfg.RepoID != nil {
		repoID = *cfg.RepoID
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO model_configs (repo_id, engine, model, api_url, api_key, wire_api, custom_prompt, features, focus_areas, is_default)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		repoID, cfg.Engine, cfg.Model, cfg.APIURL, cfg.APIKey, cfg.WireAPI,
		cfg.CustomPrompt, joinList(cfg.Features), joinList(cfg.FocusAreas), cfg.IsDefault)
	if err != nil {
		return 0, fmt.Errorf("insert model config: %w", err)
	}
	return res.LastInsertId()
}

func (s *SQLiteStore) CreateSession(ctx context.Context, sess *ReviewSession) (int64, error) {
	if sess.StartedAt.IsZero() {
		sess.StartedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO review_sessions
		 (repo_id, pr_number, pr_title, pr_author, head_branch, base_branch, head_sha,
		  trigger_type, engine_name, model_id, config_source, features, focus_areas,
		  diff_size, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.RepoID, sess.PRNumber, sess.PRTitle, sess.PRAuthor, sess.HeadBranch,
		sess.BaseBranch, sess.HeadSHA, sess.TriggerType, sess.EngineName, sess.ModelID,
		sess.ConfigSource, joinList(sess.Features), joinList(sess.FocusAreas),
		sess.DiffSize, sess.StartedAt.Format(timeFormat))
	if err != nil {
		return 0, fmt.Errorf("insert session: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("session id: %w", err)
	}
	sess.ID = id
	return id, nil
}

func (s *SQLiteStore) SetAnalysisMode(ctx context.Context, sessionID int64, mode string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE review_sessions SET analysis_mode = ? WHERE id = ? AND completed_at IS NULL`,
		mode, sessionID)
	if err != nil {
		return fmt.Errorf("set analysis mode: %w", err)
	}
	return nil
}

// CompleteSession writes terminal fields. The completed_at guard makes
// completion idempotent: only the first call wins.
func (s *SQLiteStore) CompleteSession(ctx context.Context, sessionID int64, c SessionCompletion) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`UPDATE review_sessions SET
		   diff_size = ?, severity = ?, summary_markdown = ?, inline_comment_count = ?,
		   success = ?, error_message = ?, completed_at = ?,
		   duration_sec = (julianday(?) - julianday(started_at)) * 86400
		 WHERE id = ? AND completed_at IS NULL`,
		c.DiffSize, c.Severity, c.SummaryMarkdown, c.InlineCommentCount,
		c.Success, c.ErrorMessage, now.Format(timeFormat),
		now.Format(timeFormat), sessionID)
	if err != nil {
		return fmt.Errorf("complete session: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetSession(ctx context.Context, sessionID int64) (*ReviewSession, error) {
	var sess ReviewSession
	var features, focus, startedAt string
	var completedAt sql.NullString
	var success sql.NullBool
	err := s.db.QueryRowContext(ctx,
		`SELECT id, repo_id, pr_number, pr_title, pr_author, head_branch, base_branch,
		        head_sha, trigger_type, engine_name, model_id, config_source, features,
		        focus_areas, analysis_mode, diff_size, severity, summary_markdown,
		        inline_comment_count, success, error_message, started_at, completed_at,
		        duration_sec
		 FROM review_sessions WHERE id = ?`, sessionID).Scan(
		&sess.ID, &sess.RepoID, &sess.PRNumber, &sess.PRTitle, &sess.PRAuthor,
		&sess.HeadBranch, &sess.BaseBranch, &sess.HeadSHA, &sess.TriggerType,
		&sess.EngineName, &sess.ModelID, &sess.ConfigSource, &features, &focus,
		&sess.AnalysisMode, &sess.DiffSize, &sess.Severity, &sess.SummaryMarkdown,
		&sess.InlineCommentCount, &success, &sess.ErrorMessage, &startedAt,
		&completedAt, &sess.DurationSec)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select session: %w", err)
	}
	sess.Features = splitList(features)
	sess.FocusAreas = splitList(focus)
	sess.Success = success.Valid && success.Bool
	sess.StartedAt = parseTime(startedAt)
	if completedAt.Valid {
		t := parseTime(completedAt.String)
		sess.CompletedAt = &t
	}
	return &sess, nil
}

func (s *SQLiteStore) SaveInlineComments(ctx context.Context, sessionID int64, comments []InlineComment) error {
	if len(comments) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for _, c := range comments {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO inline_comments (session_id, path, new_line, old_line, severity, body)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			sessionID, c.Path, c.NewLine, c.OldLine, c.Severity, c.Body)
		if err != nil {
			return fmt.Errorf("insert inline comment: %w", err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) RecordUsage(ctx context.Context, u *UsageStat) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO usage_stats (session_id, provider, model, input_tokens, output_tokens, api_calls, clone_ops)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.SessionID, u.Provider, u.Model, u.InputTokens, u.OutputTokens, u.APICalls, u.CloneOps)
	if err != nil {
		return fmt.Errorf("insert usage stat: %w", err)
	}
	return nil
}

func parseTime(s string) time.Time {
	if t, err := time.Parse(timeFormat, s); err == nil {
		return t
	}
	// datetime('now') default uses this layout
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t
	}
	return time.Time{}
}
