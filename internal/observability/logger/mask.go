package logger

import (
	"net/http"
	"strings"
)

var sensitiveHeaders = []string{
	"authorization",
	"cookie",
	"x-api-key",
}

// MaskAuthorization masks bearer tokens, preserving the scheme.
func MaskAuthorization(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	parts := strings.Fields(value)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return "Bearer " + maskLast4(parts[1])
	}
	return maskLast4(value)
}

// MaskHeaders returns a copy of headers with sensitive fields masked.
func MaskHeaders(headers http.Header) map[string]string {
	if len(headers) == 0 {
		return map[string]string{}
	}
	masked := make(map[string]string, len(headers))
	for key, values := range headers {
		value := strings.Join(values, ", ")
		if isSensitiveHeader(key) {
			value = MaskAuthorization(value)
		}
		masked[key] = value
	}
	return masked
}

func isSensitiveHeader(key string) bool {
	lowered := strings.ToLower(key)
	for _, sensitive := range sensitiveHeaders {
		if lowered == sensitive {
			return true
		}
	}
	return false
}

func maskLast4(value string) string {
	if len(value) <= 4 {
		return "****"
	}
	return "****" + value[len(value)-4:]
}
