// Package webhook turns Gitea webhook events into review runs.
package webhook

import (
	"regexp"
	"strings"
)

// Valid feature and focus-area tags.
var (
	validFeatures = map[string]bool{"comment": true, "review": true, "status": true}
	validFocus    = map[string]bool{"quality": true, "security": true, "performance": true, "logic": true}
)

// DefaultFeatures is used when a trigger supplies no feature list.
func DefaultFeatures() []string { return []string{"comment"} }

// DefaultFocus is used when a trigger supplies no focus list.
func DefaultFocus() []string {
	return []string{"quality", "security", "performance", "logic"}
}

// ReviewCommand is a parsed manual trigger from an issue comment.
type ReviewCommand struct {
	Features   []string
	FocusAreas []string
}

// CommandParser recognizes /review commands in issue comments. When a bot
// username is configured, the comment must also @-mention it.
type CommandParser struct {
	botUsername string
	mentionRe   *regexp.Regexp
}

var (
	featuresRe = regexp.MustCompile(`--features\s+(\S+)`)
	focusRe    = regexp.MustCompile(`--focus\s+(\S+)`)
)

// NewCommandParser creates a parser; botUsername may be empty.
func NewCommandParser(botUsername string) *CommandParser {
	p := &CommandParser{botUsername: botUsername}
	if botUsername != "" {
		p.mentionRe = regexp.MustCompile("@" + regexp.QuoteMeta(botUsername))
	}
	return p
}

// Parse extracts a review command from a comment body, or nil when the
// comment is not a valid trigger.
//
// Recognized forms:
//
//	/review
//	@bot /review
//	@bot /review --features comment,status
//	@bot /review --focus security,performance
func (p *CommandParser) Parse(commentBody string) *ReviewCommand {
	comment := strings.TrimSpace(commentBody)
	if comment == "" || !strings.Contains(comment, "/review") {
		return nil
	}
	if p.mentionRe != nil && !p.mentionRe.MatchString(comment) {
		return nil
	}

	cmd := &ReviewCommand{
		Features:   DefaultFeatures(),
		FocusAreas: DefaultFocus(),
	}
	if m := featuresRe.FindStringSubmatch(comment); m != nil {
		if parsed := filterTags(m[1], validFeatures); len(parsed) > 0 {
			cmd.Features = parsed
		}
	}
	if m := focusRe.FindStringSubmatch(comment); m != nil {
		if parsed := filterTags(m[1], validFocus); len(parsed) > 0 {
			cmd.FocusAreas = parsed
		}
	}
	return cmd
}

// ParseFeatures validates a comma-separated feature list from a trigger
// header. Returns nil for an empty header so callers can fall back.
func ParseFeatures(header string) []string {
	if strings.TrimSpace(header) == "" {
		return nil
	}
	return filterTags(header, validFeatures)
}

// ParseFocus validates a comma-separated focus list from a trigger header.
func ParseFocus(header string) []string {
	if strings.TrimSpace(header) == "" {
		return nil
	}
	return filterTags(header, validFocus)
}

func filterTags(csv string, valid map[string]bool) []string {
	var out []string
	for _, tag := range strings.Split(csv, ",") {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if valid[tag] {
			out = append(out, tag)
		}
	}
	return out
}
