package provider

import (
	"regexp"
	"strings"
)

// maxErrorLen caps stored error messages so session rows stay readable.
const maxErrorLen = 500

var (
	ansiRe   = regexp.MustCompile(`\x1b\[[0-9;]*m`)
	redactRe = regexp.MustCompile(`(?i)(token|key|secret|authorization)\s*[:=]\s*[^\s,;]+`)

	// Ordered by usefulness: explicit error lines first, then HTTP status
	// phrases surfaced by the CLIs.
	errorPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)ERROR:\s*[^\n]*`),
		regexp.MustCompile(`(?i)unexpected status\s+\d{3}[^\n]*`),
		regexp.MustCompile(`(?i)Error:\s*[^\n]*`),
	}
)

// extractActionableError pulls a short, human-useful message out of a failed
// CLI's combined stderr/stdout. Falls back to the last non-empty line.
func extractActionableError(stderrText, stdoutText string) string {
	var parts []string
	for _, part := range []string{strings.TrimSpace(stderrText), strings.TrimSpace(stdoutText)} {
		if part != "" {
			parts = append(parts, part)
		}
	}
	combined := strings.Join(parts, "\n")
	if combined == "" {
		return ""
	}

	combined = ansiRe.ReplaceAllString(combined, "")

	for _, pattern := range errorPatterns {
		if match := pattern.FindString(combined); match != "" {
			return strings.TrimSpace(match)
		}
	}

	var lines []string
	for _, line := range strings.Split(combined, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return ""
	}
	// Progress chatter is not actionable.
	for i := len(lines) - 1; i >= 0; i-- {
		if !strings.HasPrefix(lines[i], "Reconnecting...") {
			return lines[i]
		}
	}
	return lines[len(lines)-1]
}

// redactCredentials masks credential values and caps the message length.
func redactCredentials(message string) string {
	text := strings.TrimSpace(message)
	if text == "" {
		return ""
	}
	text = redactRe.ReplaceAllString(text, "$1=[REDACTED]")
	if len(text) > maxErrorLen {
		text = text[:maxErrorLen] + "..."
	}
	return text
}
