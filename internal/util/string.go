package util

import (
	"regexp"
	"strings"
)

var (
	controlCharsPattern = regexp.MustCompile(`[\x00-\x1F\x7F]`)
	whitespacePattern   = regexp.MustCompile(`\s+`)
)

// TruncateString truncates a string to maxRunes characters (rune-based, not byte-based)
// If truncated, appends "..." to the result
func TruncateString(s string, maxRunes int) string {
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	return string(runes[:maxRunes]) + "..."
}

// Normalize performs basic string normalization (lowercase + trim)
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// SanitizeQuery strips control characters, collapses whitespace and caps the
// result at maxRunes runes. It returns "" for blank input.
func SanitizeQuery(input string, maxRunes int) string {
	withoutControl := controlCharsPattern.ReplaceAllString(input, " ")
	collapsed := whitespacePattern.ReplaceAllString(withoutControl, " ")
	trimmed := strings.TrimSpace(collapsed)
	if trimmed == "" {
		return ""
	}

	runes := []rune(trimmed)
	if maxRunes > 0 && len(runes) > maxRunes {
		return strings.TrimSpace(string(runes[:maxRunes]))
	}
	return trimmed
}

// ContainsFold reports whether any item contains substr, ignoring case.
func ContainsFold(items []string, substr string) bool {
	needle := strings.ToLower(substr)
	for _, item := range items {
		if strings.Contains(strings.ToLower(item), needle) {
			return true
		}
	}
	return false
}
