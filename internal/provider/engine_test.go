package provider

import (
	"context"
	"strings"
	"testing"

	"github.com/LynnGuo666/Gitea-TLDR/internal/testutil"
)

func TestEngineUnknownDefault(t *testing.T) {
	_, err := NewEngine("no-such-engine", "cli", false, nil)
	if err == nil {
		t.Fatal("expected error for unknown default provider")
	}
	if !strings.Contains(err.Error(), "unknown provider") {
		t.Errorf("error = %v", err)
	}
}

func TestEngineResolvesDefault(t *testing.T) {
	cli := testutil.FakeCommand(t, `cat > /dev/null
echo '{"summary_markdown": "from default"}'`)

	e, err := NewEngine(claudeName, cli, false, nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	if e.DefaultProviderName() != claudeName {
		t.Errorf("DefaultProviderName = %q", e.DefaultProviderName())
	}

	// Empty name and the default name both hit the shared default instance.
	for _, name := range []string{"", claudeName} {
		result, err := e.AnalyzeDiff(context.Background(), name, "diff", nil, testPRInfo, Options{})
		if err != nil {
			t.Fatalf("AnalyzeDiff(%q): %v", name, err)
		}
		if result == nil || result.SummaryMarkdown != "from default" {
			t.Errorf("AnalyzeDiff(%q) = %+v", name, result)
		}
	}
}

func TestEngineResolvesAlternate(t *testing.T) {
	claudeCLI := testutil.FakeCommand(t, `cat > /dev/null
echo '{"summary_markdown": "claude"}'`)
	codexCLI := testutil.FakeCommand(t, `echo '{"summary_markdown": "codex"}'`)

	e, err := NewEngine(claudeName, claudeCLI, false, map[string]string{codexName: codexCLI})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	result, err := e.AnalyzeDiff(context.Background(), codexName, "diff", nil, testPRInfo, Options{})
	if err != nil {
		t.Fatalf("AnalyzeDiff: %v", err)
	}
	if result == nil || result.SummaryMarkdown != "codex" {
		t.Errorf("result = %+v", result)
	}
}

func TestEngineUnknownProviderAtAnalyze(t *testing.T) {
	cli := testutil.FakeCommand(t, `cat > /dev/null; echo ok`)
	e, err := NewEngine(claudeName, cli, false, nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	_, err = e.AnalyzeDiff(context.Background(), "mystery", "diff", nil, testPRInfo, Options{})
	if err == nil || !strings.Contains(err.Error(), "unknown provider") {
		t.Errorf("err = %v", err)
	}
}

func TestEngineLastErrorProxies(t *testing.T) {
	cli := testutil.FakeCommand(t, `cat > /dev/null
echo "ERROR: rate_limited" >&2
exit 1`)

	e, err := NewEngine(claudeName, cli, false, nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	result, err := e.AnalyzeDiff(context.Background(), "", "diff", nil, testPRInfo, Options{})
	if err != nil {
		t.Fatalf("AnalyzeDiff: %v", err)
	}
	if result != nil {
		t.Fatalf("expected nil result, got %+v", result)
	}
	if got := e.LastError(); !strings.Contains(got, "ERROR: rate_limited") {
		t.Errorf("LastError = %q", got)
	}
}
