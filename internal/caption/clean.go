// Package caption turns raw channel text into translatable text and
// post-processes generated captions.
package caption

import (
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	markdownLinkRe = regexp.MustCompile(`\[([^\]]*)\]\((?:[^()\s]+)\)`)
	urlRe          = regexp.MustCompile(`(?i)\b(?:https?://|www\.|t\.me/)\S+`)
	mentionRe      = regexp.MustCompile(`(^|[^\w@])@[A-Za-z0-9_]+`)
	spaceRunRe     = regexp.MustCompile(`[ \t\f\v]+`)
	newlineRunRe   = regexp.MustCompile(`\n{2,}`)
)

var strictPolicy = bluemonday.StrictPolicy()

// Clean removes @handles, bare URLs and markdown link syntax (keeping the
// link label), strips markup and collapses consecutive newlines to one.
func Clean(text string) string {
	s := strings.ReplaceAll(text, "\r\n", "\n")
	s = markdownLinkRe.ReplaceAllString(s, "$1")
	s = urlRe.ReplaceAllString(s, "")
	s = mentionRe.ReplaceAllString(s, "$1")
	s = StripMarkup(s)

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(spaceRunRe.ReplaceAllString(line, " "))
	}
	s = strings.Join(lines, "\n")
	s = newlineRunRe.ReplaceAllString(s, "\n")
	return strings.TrimSpace(s)
}

// StripMarkup removes any HTML tags, leaving plain text.
func StripMarkup(s string) string {
	if !strings.ContainsAny(s, "<>&") {
		return s
	}
	return html.UnescapeString(strictPolicy.Sanitize(s))
}

// TokenCount returns the number of whitespace-separated tokens in s.
func TokenCount(s string) int {
	return len(strings.Fields(s))
}

// Publishable reports whether cleaned text is long enough to stand on its own.
// minTokens <= 0 only requires non-empty text.
func Publishable(cleaned string, minTokens int) bool {
	if strings.TrimSpace(cleaned) == "" {
		return false
	}
	return minTokens <= 0 || TokenCount(cleaned) >= minTokens
}
