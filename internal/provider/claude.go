package provider

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os/exec"
	"strings"

	"github.com/LynnGuo666/Gitea-TLDR/internal/prompt"
	"github.com/LynnGuo666/Gitea-TLDR/internal/review"
)

// ClaudeProvider reviews PRs through the Claude Code CLI. The prompt is
// passed as an argument and the diff is streamed over stdin.
type ClaudeProvider struct {
	errorTracker
	Command string // the claude command to run (default: "claude")
	Debug   bool
}

const (
	claudeName        = "claude_code"
	claudeDisplayName = "Claude Code"
)

// NewClaudeProvider creates a new Claude Code provider
func NewClaudeProvider(command string, debug bool) *ClaudeProvider {
	if command == "" {
		command = "claude"
	}
	return &ClaudeProvider{Command: command, Debug: debug}
}

func (p *ClaudeProvider) Name() string        { return claudeName }
func (p *ClaudeProvider) DisplayName() string { return claudeDisplayName }

// buildEnv maps invocation overrides onto the Claude CLI's environment
// contract. The variable names must not change without a compatibility break.
func (p *ClaudeProvider) buildEnv(opts Options) []string {
	return baseEnv(map[string]string{
		"ANTHROPIC_BASE_URL":   opts.APIBaseURL,
		"ANTHROPIC_AUTH_TOKEN": opts.AuthToken,
		"ANTHROPIC_MODEL":      strings.TrimSpace(opts.Model),
	})
}

func (p *ClaudeProvider) AnalyzeWithRepo(ctx context.Context, repoPath, diff string, focusAreas []string, pr prompt.PRInfo, opts Options) *review.Result {
	return p.analyze(ctx, repoPath, diff, focusAreas, pr, opts)
}

func (p *ClaudeProvider) AnalyzeDiff(ctx context.Context, diff string, focusAreas []string, pr prompt.PRInfo, opts Options) *review.Result {
	return p.analyze(ctx, "", diff, focusAreas, pr, opts)
}

func (p *ClaudeProvider) analyze(ctx context.Context, repoPath, diff string, focusAreas []string, pr prompt.PRInfo, opts Options) *review.Result {
	p.clearError()

	reviewPrompt := prompt.Build(focusAreas, pr, opts.CustomPrompt)

	if repoPath != "" {
		log.Printf("%s: analyzing PR #%d with repository context at %s", claudeDisplayName, pr.Number, repoPath)
	} else {
		log.Printf("%s: analyzing PR #%d in diff-only mode", claudeDisplayName, pr.Number)
	}
	if p.Debug {
		log.Printf("[%s prompt]\n%s", claudeName, reviewPrompt)
		log.Printf("[diff length] %d characters", len(diff))
	}

	cmd := exec.CommandContext(ctx, p.Command, "-p", reviewPrompt, "--output-format", "text")
	if repoPath != "" {
		cmd.Dir = repoPath
	}
	cmd.Env = p.buildEnv(opts)
	cmd.Stdin = strings.NewReader(diff)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		stderrText := strings.TrimSpace(stderr.String())
		stdoutText := strings.TrimSpace(stdout.String())
		actionable := extractActionableError(stderrText, stdoutText)
		log.Printf("%s failed: %v", claudeDisplayName, err)
		if stderrText != "" {
			log.Printf("%s stderr: %s", claudeDisplayName, stderrText)
		}
		if actionable == "" {
			actionable = fmt.Sprintf("%s failed: %v", claudeDisplayName, err)
		}
		p.setError(actionable)
		return nil
	}

	result := review.Parse(stdout.String(), claudeName)
	if result == nil {
		log.Printf("%s returned empty output", claudeDisplayName)
		p.setError(claudeDisplayName + " result was empty")
		return nil
	}

	result.SetModelMetadata(opts.Model)
	log.Printf("%s: analysis complete for PR #%d", claudeDisplayName, pr.Number)
	return result
}

func init() {
	registerBuiltin(claudeName, func(cliPath string, debug bool) Provider {
		return NewClaudeProvider(cliPath, debug)
	})
}
