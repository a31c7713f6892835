package provider

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/LynnGuo666/Gitea-TLDR/internal/prompt"
	"github.com/LynnGuo666/Gitea-TLDR/internal/review"
)

// CodexProvider reviews PRs through `codex exec` in non-interactive mode.
// Codex cannot take the diff on stdin, so the diff is embedded in the prompt.
type CodexProvider struct {
	errorTracker
	Command string // the codex command to run (default: "codex")
	Debug   bool
}

const (
	codexName        = "codex_cli"
	codexDisplayName = "Codex CLI"
)

// NewCodexProvider creates a new Codex CLI provider
func NewCodexProvider(command string, debug bool) *CodexProvider {
	if command == "" {
		command = "codex"
	}
	return &CodexProvider{Command: command, Debug: debug}
}

func (p *CodexProvider) Name() string        { return codexName }
func (p *CodexProvider) DisplayName() string { return codexDisplayName }

func (p *CodexProvider) AnalyzeWithRepo(ctx context.Context, repoPath, diff string, focusAreas []string, pr prompt.PRInfo, opts Options) *review.Result {
	return p.analyze(ctx, repoPath, diff, focusAreas, pr, opts)
}

func (p *CodexProvider) AnalyzeDiff(ctx context.Context, diff string, focusAreas []string, pr prompt.PRInfo, opts Options) *review.Result {
	return p.analyze(ctx, "", diff, focusAreas, pr, opts)
}

func (p *CodexProvider) buildArgs(reviewPrompt, repoPath string) []string {
	args := []string{
		"exec",
		reviewPrompt,
		"--sandbox", "read-only",
		"--skip-git-repo-check",
		"--color", "never",
	}
	if repoPath != "" {
		args = append(args, "--cd", repoPath)
	}
	return args
}

// buildEnv maps invocation overrides onto the Codex CLI's environment
// contract. The variable names must not change without a compatibility break.
func (p *CodexProvider) buildEnv(opts Options, codexHome string) []string {
	env := baseEnv(map[string]string{
		"OPENAI_BASE_URL": opts.APIBaseURL,
		"CODEX_API_KEY":   opts.AuthToken,
	})
	if codexHome != "" {
		env = append(env, "CODEX_HOME="+codexHome)
	}
	return env
}

// codexConfig is the scratch CODEX_HOME config.toml pointing the CLI at a
// custom model, base URL, and wire protocol for one invocation.
type codexConfig struct {
	Model          string                        `toml:"model,omitempty"`
	ModelProvider  string                        `toml:"model_provider,omitempty"`
	ModelProviders map[string]codexModelProvider `toml:"model_providers,omitempty"`
}

type codexModelProvider struct {
	Name    string `toml:"name"`
	BaseURL string `toml:"base_url"`
	EnvKey  string `toml:"env_key"`
	WireAPI string `toml:"wire_api,omitempty"`
}

// writeScratchConfig creates a per-invocation CODEX_HOME. Returns "" when no
// override needs one. The caller must remove the directory when done.
func (p *CodexProvider) writeScratchConfig(opts Options) (string, error) {
	if opts.Model == "" && opts.APIBaseURL == "" && opts.WireAPI == "" {
		return "", nil
	}

	dir, err := os.MkdirTemp("", "codex-home-*")
	if err != nil {
		return "", fmt.Errorf("create scratch codex home: %w", err)
	}

	cfg := codexConfig{Model: strings.TrimSpace(opts.Model)}
	if opts.APIBaseURL != "" || opts.WireAPI != "" {
		cfg.ModelProvider = "gitea-tldr"
		cfg.ModelProviders = map[string]codexModelProvider{
			"gitea-tldr": {
				Name:    "gitea-tldr",
				BaseURL: opts.APIBaseURL,
				EnvKey:  "CODEX_API_KEY",
				WireAPI: opts.WireAPI,
			},
		}
	}

	f, err := os.Create(filepath.Join(dir, "config.toml"))
	if err != nil {
		os.RemoveAll(dir)
		return "", fmt.Errorf("create scratch config: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		os.RemoveAll(dir)
		return "", fmt.Errorf("encode scratch config: %w", err)
	}
	return dir, nil
}

func (p *CodexProvider) analyze(ctx context.Context, repoPath, diff string, focusAreas []string, pr prompt.PRInfo, opts Options) *review.Result {
	p.clearError()

	reviewPrompt := prompt.BuildWithDiff(diff, focusAreas, pr, opts.CustomPrompt)

	if repoPath != "" {
		log.Printf("%s: analyzing PR #%d with repository context at %s", codexDisplayName, pr.Number, repoPath)
	} else {
		log.Printf("%s: analyzing PR #%d in diff-only mode", codexDisplayName, pr.Number)
	}
	if p.Debug {
		log.Printf("[%s diff length] %d characters", codexName, len(diff))
	}

	codexHome, err := p.writeScratchConfig(opts)
	if err != nil {
		log.Printf("%s: %v", codexDisplayName, err)
		p.setError(err.Error())
		return nil
	}
	if codexHome != "" {
		defer os.RemoveAll(codexHome)
	}

	cmd := exec.CommandContext(ctx, p.Command, p.buildArgs(reviewPrompt, repoPath)...)
	cmd.Env = p.buildEnv(opts, codexHome)
	cmd.Stdin = nil

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		stderrText := strings.TrimSpace(stderr.String())
		stdoutText := strings.TrimSpace(stdout.String())
		actionable := extractActionableError(stderrText, stdoutText)
		log.Printf("%s failed: %v", codexDisplayName, err)
		if stderrText != "" {
			log.Printf("%s stderr: %s", codexDisplayName, stderrText)
		}
		if actionable == "" {
			actionable = fmt.Sprintf("%s failed: %v", codexDisplayName, err)
		}
		p.setError(actionable)
		return nil
	}

	result := review.Parse(stdout.String(), codexName)
	if result == nil {
		log.Printf("%s returned empty output", codexDisplayName)
		p.setError(codexDisplayName + " result was empty")
		return nil
	}

	result.SetModelMetadata(opts.Model)
	log.Printf("%s: analysis complete for PR #%d", codexDisplayName, pr.Number)
	return result
}

func init() {
	registerBuiltin(codexName, func(cliPath string, debug bool) Provider {
		return NewCodexProvider(cliPath, debug)
	})
}
