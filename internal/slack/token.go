package slack

import "strings"

const (
	// UserTokenPrefix is the prefix Slack puts on user tokens.
	UserTokenPrefix = "xoxp-"

	// minTokenLength guards against obviously truncated values. Real user
	// tokens are far longer.
	minTokenLength = 20
)

// ValidTokenFormat reports whether a candidate value has the shape of a
// Slack user token. This is a syntax check only, never a substitute for a
// live auth.test call.
func ValidTokenFormat(token string) bool {
	return strings.HasPrefix(token, UserTokenPrefix) && len(token) >= minTokenLength
}

// RedactToken returns a truncated prefix safe for diagnostics. Full
// credential values never appear in logs or error bodies.
func RedactToken(token string) string {
	if len(token) <= 10 {
		return "***"
	}
	return token[:10] + "..."
}
