// Package redact removes credentials from text and config dumps before they
// are written to logs, run files or webhooks.
package redact

import "regexp"

// keyPatterns match credentials by their own shape, so they are safe to apply
// to free text such as posts.
var keyPatterns = []*regexp.Regexp{
	// OpenAI / DashScope
	regexp.MustCompile(`sk-[a-zA-Z0-9_-]{20,}`),
	// Google API keys (Gemini)
	regexp.MustCompile(`AIza[0-9A-Za-z_-]{35}`),
	// Telegram bot tokens
	regexp.MustCompile(`\b\d{8,10}:[A-Za-z0-9_-]{35}\b`),
	// Slack
	regexp.MustCompile(`xox[abprs]-[A-Za-z0-9-]{10,}`),
	// OAuth 1.0a header parameters
	regexp.MustCompile(`oauth_(signature|token|consumer_key)="[^"]*"`),
}

// Generic key=value patterns (case-insensitive). These also hit ordinary
// prose, so they are only used on log and error text.
var keyValuePattern = regexp.MustCompile(`(?i)(api[_-]?key|token|secret|password|bearer|authorization)\s*[:=]\s*["']?\S{8,}["']?`)

const Placeholder = "[REDACTED]"

// ScrubKeys replaces credential-shaped tokens in text with [REDACTED] and
// leaves everything else untouched.
func ScrubKeys(text string) string {
	for _, pat := range keyPatterns {
		text = pat.ReplaceAllString(text, Placeholder)
	}
	return text
}

// ScrubCredentials is ScrubKeys plus generic key=value assignments.
func ScrubCredentials(text string) string {
	return keyValuePattern.ReplaceAllString(ScrubKeys(text), Placeholder)
}
