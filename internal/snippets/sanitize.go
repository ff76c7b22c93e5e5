package snippets

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var multiSpace = regexp.MustCompile(`\s{2,}`)

// Sanitize prepares a snippet for prompting: NFC-normalises it, turns the
// first newline into a space and collapses whitespace runs.
func Sanitize(s string) string {
	s = norm.NFC.String(s)
	s = strings.Replace(s, "\n", " ", 1)
	return multiSpace.ReplaceAllString(s, " ")
}

// Filter sanitises every item and, when excludeLinks is set, drops items
// containing "http". Empty results are dropped too.
func Filter(items []string, excludeLinks bool) []string {
	out := make([]string, 0, len(items))
	for _, s := range items {
		if excludeLinks && strings.Contains(s, "http") {
			continue
		}
		s = Sanitize(s)
		if strings.TrimSpace(s) == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}
