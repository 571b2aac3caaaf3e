package utils

import (
	"fmt"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

const (
	PlaceholderUsername = "<username>"
	PlaceholderMention  = "<mention>"
)

// RenderMemberTemplate substitutes member placeholders in text. Only one kind
// is replaced per call: <username> when present, otherwise <mention>.
func RenderMemberTemplate(text, username, mention string) string {
	switch {
	case strings.Contains(text, PlaceholderUsername):
		return strings.ReplaceAll(text, PlaceholderUsername, username)
	case strings.Contains(text, PlaceholderMention):
		return strings.ReplaceAll(text, PlaceholderMention, mention)
	default:
		return text
	}
}

// ParseHexColour converts "#RRGGBB" (leading # optional) to an embed colour.
func ParseHexColour(value string) (int, error) {
	value = strings.TrimSpace(value)
	if !strings.HasPrefix(value, "#") {
		value = "#" + value
	}
	colour, err := colorful.Hex(value)
	if err != nil {
		return 0, fmt.Errorf("invalid colour %q: %w", value, err)
	}
	r, g, b := colour.RGB255()
	return int(r)<<16 | int(g)<<8 | int(b), nil
}

// Truncate shortens s to at most max runes, marking the cut with an ellipsis.
func Truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 1 {
		return string(runes[:max])
	}
	return string(runes[:max-1]) + "…"
}
