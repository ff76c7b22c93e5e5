package config

import (
	"regexp"
	"strings"
)

var (
	validAccountRe  = regexp.MustCompile(`^[a-z0-9_]{1,50}$`)
	invalidAccountC = regexp.MustCompile(`[^a-z0-9_]+`)
)

// NormalizeAccount converts a user-provided handle into the identifier used
// to key cache files, logs and history rows:
//   - leading "@" and surrounding whitespace removed
//   - lowercased, max 50 chars
//   - characters outside [a-z0-9_] dropped
//
// Returns "" when nothing usable remains.
func NormalizeAccount(handle string) string {
	trimmed := strings.TrimSpace(handle)
	trimmed = strings.TrimLeft(trimmed, "@")
	if trimmed == "" {
		return ""
	}

	lower := strings.ToLower(trimmed)
	if validAccountRe.MatchString(lower) {
		return lower
	}

	result := invalidAccountC.ReplaceAllString(lower, "")
	if len(result) > 50 {
		result = result[:50]
	}
	return result
}
