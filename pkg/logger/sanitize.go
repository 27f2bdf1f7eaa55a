package logger

import (
	"strings"
)

// SanitizedEmail masks an email address for logging (e.g., "u***@e***.com")
func SanitizedEmail(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return "[invalid-email]"
	}

	username := parts[0]
	domain := parts[1]

	// Mask username: keep first char, mask rest
	if len(username) > 1 {
		username = string(username[0]) + strings.Repeat("*", len(username)-1)
	}

	// Mask domain: keep TLD, mask the rest
	domainParts := strings.Split(domain, ".")
	if len(domainParts) > 1 {
		for i := 0; i < len(domainParts)-1; i++ {
			domainParts[i] = strings.Repeat("*", len(domainParts[i]))
		}
		domain = strings.Join(domainParts, ".")
	}

	return username + "@" + domain
}

// sensitiveParams are query parameters whose values must never be logged.
var sensitiveParams = []string{"token", "password", "secret", "captcha"}

// SanitizeQueryString reports whether a raw query string carries
// sensitive parameters and therefore must be redacted from request logs.
// Reset-password links put the token in the query string, so this matters.
func SanitizeQueryString(rawQuery string) bool {
	if rawQuery == "" {
		return false
	}

	lowered := strings.ToLower(rawQuery)
	for _, param := range sensitiveParams {
		if strings.Contains(lowered, param+"=") {
			return true
		}
	}
	return false
}
