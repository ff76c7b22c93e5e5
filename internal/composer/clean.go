package composer

import (
	"regexp"
	"strings"
)

var (
	hashtagRe = regexp.MustCompile(`#\w+\s?`)
	quotedRe  = regexp.MustCompile(`^"(.*)"$`)
)

// Clean strips hashtags, a leftover leading "#", wrapping double quotes and
// surrounding whitespace. The steps repeat until the text stops changing,
// so Clean(Clean(s)) == Clean(s).
func Clean(s string) string {
	for {
		next := cleanOnce(s)
		if next == s {
			return s
		}
		s = next
	}
}

func cleanOnce(s string) string {
	s = hashtagRe.ReplaceAllString(s, "")
	s = strings.TrimPrefix(s, "#")
	s = quotedRe.ReplaceAllString(s, "$1")
	return strings.TrimSpace(s)
}

// CleanAll cleans every candidate, keeping order.
func CleanAll(raw []string) []string {
	out := make([]string, len(raw))
	for i, s := range raw {
		out[i] = Clean(s)
	}
	return out
}
