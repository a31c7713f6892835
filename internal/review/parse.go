package review

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

var fencedJSONRe = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// Parse extracts a Result from a provider's raw stdout. Providers rarely
// follow the output contract perfectly, so extraction tries progressively
// looser strategies and finally degrades to a free-text result instead of
// erroring. Returns nil only for empty output.
func Parse(raw, providerName string) *Result {
	sanitized := strings.TrimSpace(raw)
	if sanitized == "" {
		return nil
	}

	data, ok := extractJSONObject(sanitized)
	if !ok {
		return &Result{
			Kind:            FreeTextResult,
			SummaryMarkdown: sanitized,
			RawOutput:       sanitized,
			ProviderName:    providerName,
		}
	}

	summary := firstString(data, "summary_markdown", "summary", "report")
	if summary == "" {
		summary = sanitized
	}

	severity := strings.TrimSpace(firstString(data, "overall_severity", "severity"))

	var findings []InlineFinding
	if items, ok := data["inline_comments"].([]any); ok {
		for _, item := range items {
			if f, ok := parseInlineFinding(item); ok {
				findings = append(findings, f)
			}
		}
	}

	return &Result{
		Kind:            StructuredResult,
		SummaryMarkdown: summary,
		InlineFindings:  findings,
		OverallSeverity: severity,
		RawOutput:       sanitized,
		ProviderName:    providerName,
	}
}

// extractJSONObject tries, in order: the whole text as JSON, a fenced code
// block containing an object, and finally the outermost {...} span.
func extractJSONObject(text string) (map[string]any, bool) {
	if data, ok := decodeObject(text); ok {
		return data, true
	}

	if m := fencedJSONRe.FindStringSubmatch(text); m != nil {
		if data, ok := decodeObject(m[1]); ok {
			return data, true
		}
	}

	first := strings.Index(text, "{")
	last := strings.LastIndex(text, "}")
	if first != -1 && last > first {
		if data, ok := decodeObject(text[first : last+1]); ok {
			return data, true
		}
	}

	return nil, false
}

func decodeObject(text string) (map[string]any, bool) {
	var data map[string]any
	if err := json.Unmarshal([]byte(text), &data); err != nil {
		return nil, false
	}
	return data, true
}

// parseInlineFinding validates one inline_comments entry. Entries missing a
// path or a comment body are skipped without aborting the whole parse.
func parseInlineFinding(item any) (InlineFinding, bool) {
	obj, ok := item.(map[string]any)
	if !ok {
		return InlineFinding{}, false
	}

	path := strings.TrimSpace(stringValue(obj["path"]))
	comment := strings.TrimSpace(firstString(obj, "comment", "body"))
	if path == "" || comment == "" {
		return InlineFinding{}, false
	}

	lineType := strings.ToLower(stringValue(obj["line_type"]))
	if lineType == "" {
		lineType = "new"
	}

	newLine := coerceInt(obj["new_line"])
	oldLine := coerceInt(obj["old_line"])
	if line := coerceInt(obj["line"]); line != nil {
		if lineType == "old" && oldLine == nil {
			oldLine = line
		} else if lineType == "new" && newLine == nil {
			newLine = line
		}
	}

	return InlineFinding{
		Path:       path,
		Comment:    comment,
		NewLine:    newLine,
		OldLine:    oldLine,
		Severity:   strings.TrimSpace(stringValue(obj["severity"])),
		Suggestion: strings.TrimSpace(stringValue(obj["suggestion"])),
	}, true
}

// firstString returns the first non-empty string value among the given keys.
func firstString(obj map[string]any, keys ...string) string {
	for _, key := range keys {
		if s := strings.TrimSpace(stringValue(obj[key])); s != "" {
			return s
		}
	}
	return ""
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}

// coerceInt converts a JSON number or numeric string to an int, nil on failure.
func coerceInt(v any) *int {
	switch n := v.(type) {
	case float64:
		i := int(n)
		return &i
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return nil
		}
		if i, err := strconv.Atoi(s); err == nil {
			return &i
		}
	}
	return nil
}
