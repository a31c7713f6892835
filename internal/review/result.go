// Package review holds the provider-agnostic review result model and the
// shared output parser used by every provider implementation.
package review

import "strings"

// Severity levels reported by providers, most severe first.
const (
	SeverityCritical = "critical"
	SeverityHigh     = "high"
	SeverityMedium   = "medium"
	SeverityLow      = "low"
	SeverityInfo     = "info"
)

// ResultKind distinguishes a parsed JSON answer from a free-text fallback.
type ResultKind string

const (
	// StructuredResult means the provider answered with the requested JSON object.
	StructuredResult ResultKind = "structured"
	// FreeTextResult means the provider answered in prose and the raw text
	// became the summary. This is graceful degradation, not a failure.
	FreeTextResult ResultKind = "free_text"
)

// InlineFinding is a file/line-scoped review comment produced by a provider.
type InlineFinding struct {
	Path       string `json:"path"`
	Comment    string `json:"comment"`
	NewLine    *int   `json:"new_line,omitempty"`
	OldLine    *int   `json:"old_line,omitempty"`
	Severity   string `json:"severity,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

// BuildBody renders the full comment body for publishing to the forge.
func (f *InlineFinding) BuildBody() string {
	var parts []string
	if f.Severity != "" {
		parts = append(parts, "**严重级别**: "+f.Severity)
	}
	if text := strings.TrimSpace(f.Comment); text != "" {
		parts = append(parts, text)
	}
	if text := strings.TrimSpace(f.Suggestion); text != "" {
		parts = append(parts, "**建议**："+text)
	}
	return strings.TrimSpace(strings.Join(parts, "\n\n"))
}

// Result is the outcome of one provider analysis. Immutable once produced,
// apart from the provider tagging its name and usage metadata.
type Result struct {
	Kind            ResultKind
	SummaryMarkdown string
	InlineFindings  []InlineFinding
	OverallSeverity string
	RawOutput       string
	ProviderName    string
	UsageMetadata   map[string]string
}

// SummaryText returns the text to publish, preferring the parsed summary.
func (r *Result) SummaryText() string {
	if s := strings.TrimSpace(r.SummaryMarkdown); s != "" {
		return s
	}
	return strings.TrimSpace(r.RawOutput)
}

// SetModelMetadata records the resolved model id in usage metadata.
func (r *Result) SetModelMetadata(model string) {
	model = strings.TrimSpace(model)
	if model == "" {
		return
	}
	if r.UsageMetadata == nil {
		r.UsageMetadata = make(map[string]string)
	}
	r.UsageMetadata["model"] = model
}

// severeLevels are the severity values that flip a commit status to failure.
var severeLevels = map[string]bool{
	SeverityCritical: true,
	SeverityHigh:     true,
	"blocker":        true,
}

// IndicatesFailure reports whether the review found problems severe enough
// to mark the commit status as failed. The keyword heuristics match the
// publishing side and must not change without a compatibility break.
func (r *Result) IndicatesFailure() bool {
	severity := strings.ToLower(strings.TrimSpace(r.OverallSeverity))
	if severeLevels[severity] || severity == "failure" {
		return true
	}

	summary := r.SummaryText()
	if summary == "" {
		return false
	}
	if strings.Contains(summary, "严重") || strings.Contains(strings.ToLower(summary), "critical") {
		return true
	}

	for _, f := range r.InlineFindings {
		if severeLevels[strings.ToLower(f.Severity)] {
			return true
		}
	}
	return false
}
