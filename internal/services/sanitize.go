package services

import (
	"regexp"
	"strings"
)

// The model is told to answer in plain text but still leaks markdown and
// emoji; replies are scrubbed before they are stored or shown.
var (
	markdownTokens = regexp.MustCompile("(\\*\\*|__|\\*|_|~~|`|>|#)")
	markdownLinks  = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
	emojiRanges    = regexp.MustCompile(`[\x{1F600}-\x{1F64F}\x{1F300}-\x{1F5FF}\x{1F680}-\x{1F6FF}\x{1F1E0}-\x{1F1FF}\x{2600}-\x{26FF}\x{2700}-\x{27BF}]`)
	runsOfSpace    = regexp.MustCompile(`\s+`)
)

// SanitizeReply strips markdown tokens, markdown links (keeping the link
// text) and emoji from a model reply, then collapses leftover whitespace.
func SanitizeReply(s string) string {
	s = markdownTokens.ReplaceAllString(s, "")
	s = markdownLinks.ReplaceAllString(s, "$1")
	s = emojiRanges.ReplaceAllString(s, "")
	s = runsOfSpace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
