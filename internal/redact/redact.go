// Package redact scrubs credential material from error and log strings before
// they leave the process.
package redact

import (
	"regexp"
	"strings"
)

var (
	// Matches "Bearer <token>" (JWTs and opaque tokens).
	bearerTokenRe = regexp.MustCompile(`(?i)\bBearer\s+[^\s"']+`)

	// Common key=value formats that sometimes leak in error strings.
	apiKeyKVRe = regexp.MustCompile(`(?i)\b(api[_-]?key|openai[_-]?api[_-]?key|gemini[_-]?api[_-]?key|google[_-]?api[_-]?key)\b\s*[:=]\s*[^\s"'&]+`)

	// Custom Search credentials travel as URL query parameters.
	searchQueryRe = regexp.MustCompile(`(?i)\b(key|cx)=[^\s"'&]+`)
)

// Secrets removes obvious secret-bearing substrings from error/log strings.
func Secrets(s string) string {
	if s == "" {
		return ""
	}
	out := s
	out = bearerTokenRe.ReplaceAllString(out, "Bearer <redacted>")
	out = apiKeyKVRe.ReplaceAllString(out, "<redacted_kv>")
	out = searchQueryRe.ReplaceAllString(out, "$1=<redacted>")
	return strings.TrimSpace(out)
}
