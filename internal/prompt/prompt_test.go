package prompt

import (
	"strings"
	"testing"
)

var testPR = PRInfo{
	Number:     12,
	Title:      "Add login throttling",
	Body:       "Limits failed attempts",
	Author:     "alice",
	HeadBranch: "feature/throttle",
	BaseBranch: "main",
}

func TestBuildDeterministic(t *testing.T) {
	focus := []string{"security", "quality"}

	a := Build(focus, testPR, "")
	b := Build(focus, testPR, "")
	if a != b {
		t.Error("Build is not deterministic for identical inputs")
	}
}

func TestBuildRendersMetadataAndContract(t *testing.T) {
	p := Build([]string{"security"}, testPR, "")

	for _, want := range []string{
		"Add login throttling",
		"alice",
		"stdin",
		"summary_markdown",
		"overall_severity",
		"inline_comments",
	} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestBuildUnknownFocusTagPassesThrough(t *testing.T) {
	p := Build([]string{"security", "observability"}, testPR, "")

	if !strings.Contains(p, "observability") {
		t.Error("unknown focus tag should pass through verbatim")
	}
	if !strings.Contains(p, focusDescriptions["security"]) {
		t.Error("known focus tag should be localized")
	}
}

func TestBuildCustomPromptAfterContract(t *testing.T) {
	const suffix = "只检查并发相关问题"
	p := Build([]string{"quality"}, testPR, suffix)

	contractIdx := strings.Index(p, "inline_comments")
	suffixIdx := strings.Index(p, suffix)
	if contractIdx == -1 || suffixIdx == -1 {
		t.Fatalf("contract or suffix missing from prompt")
	}
	if suffixIdx < contractIdx {
		t.Error("custom prompt must come after the output contract")
	}
}

func TestBuildWithDiffEmbedsDiff(t *testing.T) {
	diff := "diff --git a/main.go b/main.go\n+added line\n"
	p := BuildWithDiff(diff, []string{"logic"}, testPR, "")

	if !strings.Contains(p, "```diff") {
		t.Error("diff fence missing")
	}
	if !strings.Contains(p, "+added line") {
		t.Error("diff content missing")
	}
	if strings.Contains(p, "已截断") {
		t.Error("small diff should not carry a truncation marker")
	}
}

func TestBuildWithDiffTruncation(t *testing.T) {
	diff := strings.Repeat("x", MaxDiffChars+100)
	p := BuildWithDiff(diff, []string{"quality"}, testPR, "")

	if !strings.Contains(p, "diff 内容过长，已截断") {
		t.Error("oversized diff must carry the truncation marker")
	}
	if strings.Contains(p, strings.Repeat("x", MaxDiffChars+1)) {
		t.Error("diff was not truncated")
	}
}

func TestFocusText(t *testing.T) {
	got := FocusText([]string{"quality", "custom-tag"})
	if !strings.Contains(got, focusDescriptions["quality"]) || !strings.Contains(got, "custom-tag") {
		t.Errorf("FocusText = %q", got)
	}
	if !strings.Contains(got, "、") {
		t.Errorf("FocusText should join with 、: %q", got)
	}
}

func TestEmptyMetadataRendersNA(t *testing.T) {
	p := Build([]string{"quality"}, PRInfo{Number: 1}, "")
	if !strings.Contains(p, "N/A") {
		t.Error("empty PR fields should render as N/A")
	}
}
