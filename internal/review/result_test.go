package review

import (
	"strings"
	"testing"
)

func TestIndicatesFailure(t *testing.T) {
	tests := []struct {
		name   string
		result Result
		want   bool
	}{
		{
			name:   "critical severity",
			result: Result{OverallSeverity: "critical"},
			want:   true,
		},
		{
			name:   "high severity",
			result: Result{OverallSeverity: "high"},
			want:   true,
		},
		{
			name:   "blocker severity",
			result: Result{OverallSeverity: "blocker"},
			want:   true,
		},
		{
			name:   "failure severity",
			result: Result{OverallSeverity: "failure"},
			want:   true,
		},
		{
			name:   "severity case insensitive",
			result: Result{OverallSeverity: " Critical "},
			want:   true,
		},
		{
			name:   "low severity clean summary",
			result: Result{OverallSeverity: "low", SummaryMarkdown: "minor style nits"},
			want:   false,
		},
		{
			name:   "summary contains 严重 despite info severity",
			result: Result{OverallSeverity: "info", SummaryMarkdown: "发现严重的安全问题"},
			want:   true,
		},
		{
			name:   "summary contains critical keyword",
			result: Result{OverallSeverity: "low", SummaryMarkdown: "There is a CRITICAL bug here"},
			want:   true,
		},
		{
			name: "severe inline finding",
			result: Result{
				OverallSeverity: "low",
				SummaryMarkdown: "mostly fine",
				InlineFindings:  []InlineFinding{{Path: "a.go", Comment: "x", Severity: "high"}},
			},
			want: true,
		},
		{
			name: "medium inline finding only",
			result: Result{
				OverallSeverity: "low",
				SummaryMarkdown: "mostly fine",
				InlineFindings:  []InlineFinding{{Path: "a.go", Comment: "x", Severity: "medium"}},
			},
			want: false,
		},
		{
			name:   "empty result",
			result: Result{},
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.result.IndicatesFailure(); got != tt.want {
				t.Errorf("IndicatesFailure() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSummaryTextFallsBackToRaw(t *testing.T) {
	r := Result{RawOutput: "  raw answer  "}
	if got := r.SummaryText(); got != "raw answer" {
		t.Errorf("SummaryText() = %q", got)
	}

	r.SummaryMarkdown = "parsed summary"
	if got := r.SummaryText(); got != "parsed summary" {
		t.Errorf("SummaryText() = %q", got)
	}
}

func TestSetModelMetadata(t *testing.T) {
	var r Result
	r.SetModelMetadata("")
	if r.UsageMetadata != nil {
		t.Errorf("empty model should not allocate metadata: %v", r.UsageMetadata)
	}

	r.SetModelMetadata(" claude-sonnet ")
	if r.UsageMetadata["model"] != "claude-sonnet" {
		t.Errorf("UsageMetadata = %v", r.UsageMetadata)
	}
}

func TestBuildBody(t *testing.T) {
	f := InlineFinding{
		Path:       "a.go",
		Comment:    "unchecked error",
		Severity:   "medium",
		Suggestion: "handle the error",
	}
	body := f.BuildBody()

	for _, want := range []string{"**严重级别**: medium", "unchecked error", "**建议**：handle the error"} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q:\n%s", want, body)
		}
	}

	empty := InlineFinding{Path: "a.go"}
	if got := empty.BuildBody(); got != "" {
		t.Errorf("empty finding body = %q", got)
	}
}
