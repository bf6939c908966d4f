// Package redact scrubs sensitive material from strings before they reach
// logs or client-facing error responses: connection strings, signed session
// tokens, encryption key material, and filesystem paths.
package redact

import "regexp"

// Redaction placeholders.
const (
	CredentialPlaceholder = "[REDACTED_CREDENTIAL]"
	TokenPlaceholder      = "[REDACTED_TOKEN]"
	KeyPlaceholder        = "[REDACTED_KEY]"
	PathPlaceholder       = "[REDACTED_PATH]"
)

var (
	// Database connection strings with embedded credentials.
	connStringPattern = regexp.MustCompile(`(?i)postgres(?:ql)?://[^@\s]+@`)

	// Signed JWTs: three base64url segments starting with the JSON header.
	jwtPattern = regexp.MustCompile(`eyJ[A-Za-z0-9_-]+\.eyJ[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+`)

	// Key-value shapes carrying secrets.
	secretPattern = regexp.MustCompile(`(?i)(password|secret|signing[_-]?key|encryption[_-]?key|token)(['"\s:=]+)[^\s'"&]{8,}`)

	// Filesystem paths leaked from os-level errors.
	pathPattern = regexp.MustCompile(`(/[\w.-]+){2,}`)

	replacements = []struct {
		pattern     *regexp.Regexp
		placeholder string
	}{
		{connStringPattern, CredentialPlaceholder},
		{jwtPattern, TokenPlaceholder},
		{secretPattern, KeyPlaceholder},
		{pathPattern, PathPlaceholder},
	}
)

// String scrubs sensitive fragments from the input.
func String(input string) string {
	if input == "" {
		return input
	}

	result := input
	for _, r := range replacements {
		result = r.pattern.ReplaceAllString(result, r.placeholder)
	}
	return result
}

// Error scrubs an error's message. A nil error yields the empty string.
func Error(err error) string {
	if err == nil {
		return ""
	}
	return String(err.Error())
}
