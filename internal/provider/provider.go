// Package provider adapts external AI review CLIs (Claude Code, Codex) to a
// common analysis interface.
package provider

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/LynnGuo666/Gitea-TLDR/internal/prompt"
	"github.com/LynnGuo666/Gitea-TLDR/internal/review"
)

// Options carries per-invocation overrides resolved from configuration.
// Zero values mean "use the tool's ambient configuration".
type Options struct {
	APIBaseURL   string
	AuthToken    string
	Model        string
	WireAPI      string
	CustomPrompt string
}

// Provider is an adapter to an external AI code-review tool.
//
// Both analyze methods return nil on failure; a subprocess failing is an
// expected, recoverable condition, not a programming error. The caller
// retrieves the redacted, actionable message via LastError.
type Provider interface {
	// Name returns the provider identifier (e.g. "claude_code").
	Name() string

	// DisplayName returns the human-readable name (e.g. "Claude Code").
	DisplayName() string

	// AnalyzeWithRepo reviews the diff with a local clone available for
	// code-base context.
	AnalyzeWithRepo(ctx context.Context, repoPath, diff string, focusAreas []string, pr prompt.PRInfo, opts Options) *review.Result

	// AnalyzeDiff reviews using only the diff text (degraded simple mode).
	AnalyzeDiff(ctx context.Context, diff string, focusAreas []string, pr prompt.PRInfo, opts Options) *review.Result

	// LastError returns the actionable error from the most recent failed
	// analysis, or "" if the last analysis succeeded.
	LastError() string
}

// Factory constructs a provider bound to a CLI path.
type Factory func(cliPath string, debug bool) Provider

// Registry maps provider names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns a registry pre-populated with the built-in providers.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	for name, factory := range builtins {
		r.factories[name] = factory
	}
	return r
}

var builtins = make(map[string]Factory)

// registerBuiltin is called from provider init functions.
func registerBuiltin(name string, factory Factory) {
	builtins[name] = factory
}

// Register adds or replaces a provider factory.
func (r *Registry) Register(name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Create constructs a provider by name.
func (r *Registry) Create(name, cliPath string, debug bool) (Provider, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s (available: %v)", name, r.Available())
	}
	return factory(cliPath, debug), nil
}

// Available returns the sorted names of all registered providers.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// errorTracker holds the last actionable error for a provider instance.
// Guarded because the pipeline may invoke one instance concurrently.
type errorTracker struct {
	mu   sync.Mutex
	last string
}

func (t *errorTracker) LastError() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}

func (t *errorTracker) clearError() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last = ""
}

func (t *errorTracker) setError(message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last = redactCredentials(message)
}

// envAllowList is the only parent environment carried into provider
// subprocesses unconditionally. Credentials are injected explicitly.
var envAllowList = []string{"PATH", "HOME", "LANG", "TMPDIR", "USER"}

// baseEnv builds a minimal subprocess environment from the allow-list plus
// the ambient values of passthrough variables that have no explicit override.
func baseEnv(passthrough map[string]string) []string {
	env := make([]string, 0, len(envAllowList)+len(passthrough))
	for _, key := range envAllowList {
		if value, ok := os.LookupEnv(key); ok {
			env = append(env, key+"="+value)
		}
	}
	keys := make([]string, 0, len(passthrough))
	for key := range passthrough {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		value := passthrough[key]
		if value == "" {
			// No override: fall back to the ambient value, if any.
			ambient, ok := os.LookupEnv(key)
			if !ok {
				continue
			}
			value = ambient
		}
		env = append(env, key+"="+value)
	}
	return env
}
