package webhook

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/LynnGuo666/Gitea-TLDR/internal/config"
	"github.com/LynnGuo666/Gitea-TLDR/internal/forge"
	"github.com/LynnGuo666/Gitea-TLDR/internal/prompt"
	"github.com/LynnGuo666/Gitea-TLDR/internal/provider"
	"github.com/LynnGuo666/Gitea-TLDR/internal/repo"
	"github.com/LynnGuo666/Gitea-TLDR/internal/review"
	"github.com/LynnGuo666/Gitea-TLDR/internal/storage"
)

// User-facing review comment bodies. These render on the PR, so they stay in
// the product's UI language.
const (
	placeholderComment = "## 自动代码审查\n\n正在审查中，请稍候..."
	reportHeader       = "## 自动代码审查报告\n\n"
	failureHeader      = "## 自动代码审查\n\n审查失败："
	diffFetchError     = "无法获取PR diff"
	emptyReportText    = "未生成审查报告"
	genericError       = "审查分析过程出错"
	statusPendingDesc  = "代码审查进行中..."
	statusDoneDesc     = "代码审查完成"
	statusFailedDesc   = "代码审查失败"
)

// Pipeline drives a review from webhook event to finalized session. One
// instance serves all events; each review runs independently with its own
// session row, working copy, and subprocess.
type Pipeline struct {
	cfg    *config.Config
	forge  forge.Client
	repos  *repo.Manager
	engine *provider.Engine
	store  storage.Store
	parser *CommandParser
}

// NewPipeline wires the pipeline's collaborators together.
func NewPipeline(cfg *config.Config, fc forge.Client, repos *repo.Manager, engine *provider.Engine, store storage.Store) *Pipeline {
	return &Pipeline{
		cfg:    cfg,
		forge:  fc,
		repos:  repos,
		engine: engine,
		store:  store,
		parser: NewCommandParser(cfg.BotUsername),
	}
}

// HandlePullRequestEvent processes a pull_request webhook. Only opened and
// synchronized actions trigger a review; everything else is a no-op success.
// features/focus are trigger-level overrides (nil means fall back to config).
func (p *Pipeline) HandlePullRequestEvent(ctx context.Context, event *PullRequestEvent, features, focus []string) bool {
	if event.Action != "opened" && event.Action != "synchronized" {
		log.Printf("ignoring PR event action %q", event.Action)
		return true
	}
	if event.PullRequest == nil {
		log.Printf("Warning: pull_request event without pull request payload")
		return false
	}

	owner := event.Repository.Owner.Login
	name := event.Repository.Name
	pr := event.PullRequest
	log.Printf("reviewing PR %s/%s#%d - %s (%s -> %s)",
		owner, name, pr.Number, pr.Title, pr.Head.Ref, pr.Base.Ref)

	return p.performReview(ctx, owner, name, pr, features, focus, storage.TriggerAuto)
}

// HandleIssueCommentEvent processes an issue_comment webhook as a manual
// trigger. Unrecognized comments and comments outside PRs are no-op successes.
func (p *Pipeline) HandleIssueCommentEvent(ctx context.Context, event *IssueCommentEvent) bool {
	if event.Action != "created" {
		log.Printf("ignoring comment event action %q", event.Action)
		return true
	}

	cmd := p.parser.Parse(event.Comment.Body)
	if cmd == nil {
		return true
	}
	if event.Issue.PullRequest == nil {
		log.Printf("review command on a non-PR issue, ignoring")
		return true
	}

	owner := event.Repository.Owner.Login
	name := event.Repository.Name
	number := event.Issue.Number
	log.Printf("manual review trigger for %s/%s#%d features=%v focus=%v",
		owner, name, number, cmd.Features, cmd.FocusAreas)

	pr := p.forge.GetPullRequest(ctx, owner, name, number)
	if pr == nil {
		log.Printf("could not fetch PR %s/%s#%d for manual trigger", owner, name, number)
		return false
	}

	return p.performReview(ctx, owner, name, pr, cmd.Features, cmd.FocusAreas, storage.TriggerManual)
}

// reviewRun accumulates per-review state shared across pipeline steps.
type reviewRun struct {
	owner    string
	repoName string
	pr       *forge.PullRequest

	features []string
	focus    []string

	sessionID int64
	repoID    int64

	commentID int64
	diffSize  int
	apiCalls  int
	cloneOps  int
}

func (r *reviewRun) featureEnabled(name string) bool {
	for _, f := range r.features {
		if f == name {
			return true
		}
	}
	return false
}

// performReview runs the whole state machine for one PR. Any panic below is
// converted into a finalized-failure session so no event leaves a session
// permanently pending.
func (p *Pipeline) performReview(ctx context.Context, owner, repoName string, pr *forge.PullRequest, features, focus []string, trigger string) (ok bool) {
	run := &reviewRun{owner: owner, repoName: repoName, pr: pr}

	defer func() {
		if r := recover(); r != nil {
			log.Printf("review of %s/%s#%d panicked: %v", owner, repoName, pr.Number, r)
			if run.sessionID != 0 {
				p.finalizeFailure(ctx, run, fmt.Sprintf("%v", r))
			}
			ok = false
		}
	}()

	// Step 1: config resolution.
	repoRow, err := p.store.GetOrCreateRepository(ctx, owner, repoName)
	if err != nil {
		log.Printf("storage: %v", err)
		return false
	}
	run.repoID = repoRow.ID

	headerSupplied := features != nil || focus != nil
	engineName := p.engine.DefaultProviderName()
	configSource := storage.ConfigSourceGlobalDefault
	var opts provider.Options

	mc, err := p.store.GetModelConfig(ctx, repoRow.ID)
	if err != nil {
		log.Printf("Warning: load model config: %v", err)
	}
	if mc != nil {
		opts.APIBaseURL = mc.APIURL
		opts.AuthToken = mc.APIKey
		opts.WireAPI = mc.WireAPI
		opts.Model = mc.Model
		opts.CustomPrompt = mc.CustomPrompt
		if mc.Engine != "" {
			engineName = mc.Engine
		}
		if mc.RepoID != nil && *mc.RepoID == repoRow.ID {
			configSource = storage.ConfigSourceRepoConfig
		}
		if len(focus) == 0 && len(mc.FocusAreas) > 0 {
			focus = mc.FocusAreas
		}
		if len(features) == 0 && len(mc.Features) > 0 {
			features = mc.Features
		}
	}
	if headerSupplied {
		configSource = storage.ConfigSourceHeader
	}
	if len(focus) == 0 {
		if len(p.cfg.DefaultFocus) > 0 {
			focus = p.cfg.DefaultFocus
		} else {
			focus = DefaultFocus()
		}
	}
	if len(features) == 0 {
		features = DefaultFeatures()
	}
	run.features = features
	run.focus = focus

	// Step 2: pending session before any external call.
	sess := &storage.ReviewSession{
		RepoID:       repoRow.ID,
		PRNumber:     pr.Number,
		PRTitle:      pr.Title,
		PRAuthor:     pr.User.Login,
		HeadBranch:   pr.Head.Ref,
		BaseBranch:   pr.Base.Ref,
		HeadSHA:      pr.Head.SHA,
		TriggerType:  trigger,
		EngineName:   engineName,
		ModelID:      opts.Model,
		ConfigSource: configSource,
		Features:     features,
		FocusAreas:   focus,
	}
	if _, err := p.store.CreateSession(ctx, sess); err != nil {
		log.Printf("storage: create session: %v", err)
		return false
	}
	run.sessionID = sess.ID

	// Step 3: initial feedback.
	if run.featureEnabled("comment") {
		run.commentID = p.forge.CreateComment(ctx, owner, repoName, pr.Number, placeholderComment)
		run.apiCalls++
	}
	if run.featureEnabled("status") {
		p.forge.SetCommitStatus(ctx, owner, repoName, pr.Head.SHA, forge.StatusPending, statusPendingDesc)
		run.apiCalls++
	}

	// Step 4: diff fetch. Failure here is terminal.
	diff := p.forge.GetDiff(ctx, owner, repoName, pr.Number)
	run.apiCalls++
	run.diffSize = len(diff)
	if diff == "" {
		log.Printf("%s for %s/%s#%d", diffFetchError, owner, repoName, pr.Number)
		p.publishFailure(ctx, run, diffFetchError)
		p.finalizeFailure(ctx, run, diffFetchError)
		return false
	}

	// Step 5: repository acquisition. Clone failure degrades to simple mode.
	cloneURL := p.forge.CloneURL(owner, repoName)
	repoPath := p.repos.Clone(ctx, cloneURL, owner, repoName, pr.Head.Ref, pr.Number)
	run.cloneOps++

	mode := storage.ModeFull
	if repoPath == "" {
		mode = storage.ModeSimple
		log.Printf("falling back to diff-only analysis for %s/%s#%d", owner, repoName, pr.Number)
	}
	if err := p.store.SetAnalysisMode(ctx, run.sessionID, mode); err != nil {
		log.Printf("Warning: record analysis mode: %v", err)
	}

	// Step 6: analysis.
	result, analysisErr := p.analyze(ctx, engineName, repoPath, diff, focus, pr, opts)
	p.repos.Cleanup(repoPath)

	if result == nil {
		errMsg := analysisErr
		if errMsg == "" {
			errMsg = genericError
		}
		log.Printf("analysis failed for %s/%s#%d: %s", owner, repoName, pr.Number, errMsg)
		p.publishFailure(ctx, run, errMsg)
		p.completeSession(ctx, run, storage.SessionCompletion{
			Success:      false,
			ErrorMessage: errMsg,
		})
		return false
	}

	// Step 7: publish, best-effort per feature.
	success := true
	summary := result.SummaryText()
	if summary == "" {
		summary = emptyReportText
	}

	if run.featureEnabled("comment") {
		body := reportHeader + summary
		if run.commentID != 0 {
			success = p.forge.UpdateComment(ctx, owner, repoName, run.commentID, body) && success
		} else {
			success = p.forge.CreateComment(ctx, owner, repoName, pr.Number, body) != 0 && success
		}
		run.apiCalls++
	}

	if run.featureEnabled("review") {
		reviewOK := p.forge.CreateReview(ctx, owner, repoName, pr.Number,
			summary, "COMMENT", buildLineComments(result), pr.Head.SHA)
		run.apiCalls++
		success = reviewOK && success

		if reviewOK && p.cfg.AutoRequestReviewer && p.cfg.BotUsername != "" {
			p.forge.RequestReviewers(ctx, owner, repoName, pr.Number, []string{p.cfg.BotUsername})
			run.apiCalls++
		}
	}

	if run.featureEnabled("status") {
		state := forge.StatusSuccess
		if result.IndicatesFailure() {
			state = forge.StatusFailure
		}
		success = p.forge.SetCommitStatus(ctx, owner, repoName, pr.Head.SHA, state, statusDoneDesc) && success
		run.apiCalls++
	}

	// Step 8: finalize.
	p.completeSession(ctx, run, storage.SessionCompletion{
		Severity:           result.OverallSeverity,
		SummaryMarkdown:    summary,
		InlineCommentCount: len(result.InlineFindings),
		Success:            success,
	})
	p.persistFindings(ctx, run, result)
	p.recordUsage(ctx, run, resultEngine(result, engineName), resultModel(result, opts.Model), len(diff), summary)

	log.Printf("review complete for %s/%s#%d (mode=%s, success=%v)", owner, repoName, pr.Number, mode, success)
	return success
}

// analyze runs the engine under the configured timeout. Returns the result
// (nil on failure) and the actionable error message for the failure case.
func (p *Pipeline) analyze(ctx context.Context, engineName, repoPath, diff string, focus []string, pr *forge.PullRequest, opts provider.Options) (*review.Result, string) {
	if p.cfg.ReviewTimeoutMinutes > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(p.cfg.ReviewTimeoutMinutes)*time.Minute)
		defer cancel()
	}

	info := prompt.PRInfo{
		Number:     pr.Number,
		Title:      pr.Title,
		Body:       pr.Body,
		Author:     pr.User.Login,
		HeadBranch: pr.Head.Ref,
		BaseBranch: pr.Base.Ref,
		HeadSHA:    pr.Head.SHA,
	}

	var result *review.Result
	var err error
	if repoPath != "" {
		result, err = p.engine.AnalyzeWithRepo(ctx, engineName, repoPath, diff, focus, info, opts)
	} else {
		result, err = p.engine.AnalyzeDiff(ctx, engineName, diff, focus, info, opts)
	}
	if err != nil {
		return nil, err.Error()
	}
	if result == nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Sprintf("review timed out after %d minutes", p.cfg.ReviewTimeoutMinutes)
		}
		return nil, p.engine.LastError()
	}
	return result, ""
}

// publishFailure updates the placeholder comment and commit status after a
// terminal failure so the PR is never left showing "reviewing".
func (p *Pipeline) publishFailure(ctx context.Context, run *reviewRun, errMsg string) {
	if run.commentID != 0 {
		p.forge.UpdateComment(ctx, run.owner, run.repoName, run.commentID, failureHeader+errMsg)
		run.apiCalls++
	}
	if run.featureEnabled("status") {
		p.forge.SetCommitStatus(ctx, run.owner, run.repoName, run.pr.Head.SHA, forge.StatusError, statusDesc(errMsg))
		run.apiCalls++
	}
}

// statusDesc fits an error message into the commit status description limit.
// Truncation counts runes so multi-byte text is never cut mid-character.
func statusDesc(errMsg string) string {
	desc := strings.TrimSpace(strings.ReplaceAll(errMsg, "\n", " "))
	if runes := []rune(desc); len(runes) > 120 {
		desc = string(runes[:120])
	}
	if desc == "" {
		desc = statusFailedDesc
	}
	return desc
}

func (p *Pipeline) finalizeFailure(ctx context.Context, run *reviewRun, errMsg string) {
	p.completeSession(ctx, run, storage.SessionCompletion{
		Success:      false,
		ErrorMessage: errMsg,
	})
}

func (p *Pipeline) completeSession(ctx context.Context, run *reviewRun, c storage.SessionCompletion) {
	c.DiffSize = run.diffSize
	if err := p.store.CompleteSession(ctx, run.sessionID, c); err != nil {
		log.Printf("storage: complete session %d: %v", run.sessionID, err)
	}
}

func (p *Pipeline) persistFindings(ctx context.Context, run *reviewRun, result *review.Result) {
	if len(result.InlineFindings) == 0 {
		return
	}
	comments := make([]storage.InlineComment, 0, len(result.InlineFindings))
	for _, f := range result.InlineFindings {
		c := storage.InlineComment{
			Path:     f.Path,
			Severity: f.Severity,
			Body:     f.BuildBody(),
		}
		if f.NewLine != nil {
			c.NewLine = *f.NewLine
		}
		if f.OldLine != nil {
			c.OldLine = *f.OldLine
		}
		comments = append(comments, c)
	}
	if err := p.store.SaveInlineComments(ctx, run.sessionID, comments); err != nil {
		log.Printf("storage: save inline comments: %v", err)
	}
}

// recordUsage writes the rough token estimate for the session: a quarter of
// the diff plus prompt overhead in, a quarter of the summary out.
func (p *Pipeline) recordUsage(ctx context.Context, run *reviewRun, engineName, model string, diffSize int, summary string) {
	u := &storage.UsageStat{
		SessionID:    run.sessionID,
		Provider:     engineName,
		Model:        model,
		InputTokens:  diffSize/4 + 500,
		OutputTokens: len(summary) / 4,
		APICalls:     run.apiCalls,
		CloneOps:     run.cloneOps,
	}
	if err := p.store.RecordUsage(ctx, u); err != nil {
		log.Printf("storage: record usage: %v", err)
	}
}

// buildLineComments maps inline findings onto forge review comments, skipping
// entries without a usable path or body.
func buildLineComments(result *review.Result) []forge.LineComment {
	var out []forge.LineComment
	for _, f := range result.InlineFindings {
		path := strings.TrimSpace(f.Path)
		body := f.BuildBody()
		if path == "" || body == "" {
			continue
		}
		lc := forge.LineComment{Path: path, Body: body}
		if f.NewLine != nil {
			lc.NewPosition = *f.NewLine
		}
		if f.OldLine != nil {
			lc.OldPosition = *f.OldLine
		}
		out = append(out, lc)
	}
	return out
}

func resultEngine(result *review.Result, fallback string) string {
	if result.ProviderName != "" {
		return result.ProviderName
	}
	return fallback
}

func resultModel(result *review.Result, fallback string) string {
	if m := result.UsageMetadata["model"]; m != "" {
		return m
	}
	return fallback
}
