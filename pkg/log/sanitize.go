package log

import (
	"strings"
)

// sensitiveKeywords marks log field keys whose values must be masked.
// Signing secrets and computed signatures are the main concern in this
// service; the generic credential keywords cover collaborator tokens.
var sensitiveKeywords = []string{
	"secret",
	"signature",
	"token",
	"password",
	"api_key", "apikey", "api-key",
	"authorization",
	"credential",
}

// SanitizeField masks the value when the key names a sensitive field.
func SanitizeField(key, value string) string {
	if value == "" {
		return value
	}

	lowerKey := strings.ToLower(key)
	for _, keyword := range sensitiveKeywords {
		if strings.Contains(lowerKey, keyword) {
			return maskValue(value)
		}
	}

	return value
}

// maskValue keeps just enough of the value to correlate log lines.
func maskValue(value string) string {
	if len(value) <= 8 {
		return strings.Repeat("*", len(value))
	}
	return value[:4] + strings.Repeat("*", len(value)-8) + value[len(value)-4:]
}
