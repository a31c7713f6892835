package provider

import (
	"context"
	"sync"

	"github.com/LynnGuo666/Gitea-TLDR/internal/prompt"
	"github.com/LynnGuo666/Gitea-TLDR/internal/review"
)

// Engine routes analysis calls to the configured provider. The default
// provider is constructed once at startup; alternates are constructed fresh
// per call, which is fine since providers keep no state between calls beyond
// the last error.
type Engine struct {
	registry    *Registry
	defaultName string
	debug       bool
	cliPaths    map[string]string

	defaultProvider Provider

	mu   sync.Mutex
	last Provider // provider that most recently ran
}

// NewEngine creates a review engine with the given default provider.
// cliPaths maps provider names to their CLI commands.
func NewEngine(defaultName, cliPath string, debug bool, cliPaths map[string]string) (*Engine, error) {
	registry := NewRegistry()

	paths := make(map[string]string, len(cliPaths)+1)
	for name, path := range cliPaths {
		paths[name] = path
	}
	if _, ok := paths[defaultName]; !ok {
		paths[defaultName] = cliPath
	}

	defaultProvider, err := registry.Create(defaultName, cliPath, debug)
	if err != nil {
		return nil, err
	}

	return &Engine{
		registry:        registry,
		defaultName:     defaultName,
		debug:           debug,
		cliPaths:        paths,
		defaultProvider: defaultProvider,
	}, nil
}

// DefaultProviderName returns the name of the default provider.
func (e *Engine) DefaultProviderName() string {
	return e.defaultName
}

// Registry exposes the underlying registry so callers can register
// additional providers before serving.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// resolveProvider returns the shared default instance when name matches (or
// is empty), otherwise constructs a fresh instance via the registry.
func (e *Engine) resolveProvider(name string) (Provider, error) {
	if name == "" || name == e.defaultName {
		return e.defaultProvider, nil
	}
	cliPath := e.cliPaths[name]
	if cliPath == "" {
		cliPath = name
	}
	return e.registry.Create(name, cliPath, e.debug)
}

// AnalyzeWithRepo resolves the provider and runs a full-mode analysis.
func (e *Engine) AnalyzeWithRepo(ctx context.Context, providerName, repoPath, diff string, focusAreas []string, pr prompt.PRInfo, opts Options) (*review.Result, error) {
	p, err := e.resolveProvider(providerName)
	if err != nil {
		return nil, err
	}
	e.track(p)
	return p.AnalyzeWithRepo(ctx, repoPath, diff, focusAreas, pr, opts), nil
}

// AnalyzeDiff resolves the provider and runs a diff-only analysis.
func (e *Engine) AnalyzeDiff(ctx context.Context, providerName, diff string, focusAreas []string, pr prompt.PRInfo, opts Options) (*review.Result, error) {
	p, err := e.resolveProvider(providerName)
	if err != nil {
		return nil, err
	}
	e.track(p)
	return p.AnalyzeDiff(ctx, diff, focusAreas, pr, opts), nil
}

// LastError proxies to whichever provider most recently ran.
func (e *Engine) LastError() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.last == nil {
		return ""
	}
	return e.last.LastError()
}

func (e *Engine) track(p Provider) {
	e.mu.Lock()
	e.last = p
	e.mu.Unlock()
}
