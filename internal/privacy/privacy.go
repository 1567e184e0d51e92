// Package privacy provides redaction of credential-shaped values in log and
// audit-trail details, plus masking helpers for configuration read APIs.
// Every action-log record passes through SanitizeDetails before it is
// written anywhere, including the console log.
package privacy

import (
	"strings"
)

// Redacted is the placeholder stored in place of a sensitive value.
const Redacted = "[REDACTED]"

// sensitiveKeyFragments are matched case-insensitively as substrings of the
// detail key name. A match redacts the value regardless of its content.
var sensitiveKeyFragments = []string{
	"token",
	"api_key",
	"apikey",
	"secret",
	"password",
	"authorization",
	"credential",
	"cookie",
	"session_id",
	"sessionid",
	"csrf",
	"code_verifier",
}

// IsSensitiveKey reports whether a detail key names a credential-shaped
// value.
func IsSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, fragment := range sensitiveKeyFragments {
		if strings.Contains(lower, fragment) {
			return true
		}
	}
	return false
}

// SanitizeDetails returns a copy of details with credential-shaped values
// replaced by the Redacted placeholder. Nested maps are sanitized
// recursively; all other values pass through unchanged. A nil map returns
// nil.
func SanitizeDetails(details map[string]any) map[string]any {
	if details == nil {
		return nil
	}

	sanitized := make(map[string]any, len(details))
	for key, value := range details {
		if IsSensitiveKey(key) {
			sanitized[key] = Redacted
			continue
		}
		switch v := value.(type) {
		case map[string]any:
			sanitized[key] = SanitizeDetails(v)
		default:
			sanitized[key] = value
		}
	}
	return sanitized
}

// MaskValue hides all but the last four characters of a credential for
// display in configuration read endpoints. Values of four characters or
// fewer are returned unchanged.
func MaskValue(value string) string {
	if len(value) <= 4 {
		return value
	}
	return strings.Repeat("•", len(value)-4) + value[len(value)-4:]
}

// MaskKey shows the first and last four characters of an API key, which is
// enough to identify it without exposing it.
func MaskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "****" + key[len(key)-4:]
}
