// Package logging scrubs secrets from values before they reach the logs.
package logging

import (
	"regexp"
	"strings"
)

const (
	// RedactedText replaces sensitive data.
	RedactedText = "[REDACTED]"
	// MaxFieldLogLength bounds string fields logged by RedactFields.
	MaxFieldLogLength = 200
)

var (
	// password=xxx, pwd=xxx, pass=xxx up to the next delimiter
	passwordPattern = regexp.MustCompile(`(?i)(password|pwd|pass)=[^;&\s]+`)

	// Bearer tokens in JWT form
	jwtPattern = regexp.MustCompile(`Bearer\s+[A-Za-z0-9-_]+\.[A-Za-z0-9-_]+\.[A-Za-z0-9-_]*`)

	// api_key=..., key=... query parameters
	apiKeyPattern = regexp.MustCompile(`(?i)(api[_-]?key|apikey|key)=[A-Za-z0-9-_]{20,}`)

	// OpenAI and Anthropic style secret keys echoed in provider errors
	providerKeyPattern = regexp.MustCompile(`sk-(ant-)?[A-Za-z0-9_-]{16,}`)

	// user:pass@host in URLs
	connStringPattern = regexp.MustCompile(`://[^:/\s]+:[^@\s]+@`)

	// AWS signed URL credentials
	awsSignaturePattern = regexp.MustCompile(`(?i)(X-Amz-Signature|X-Amz-Credential|X-Amz-Security-Token)=[^&\s]+`)
)

// sensitiveKeys are field name fragments whose values are never logged.
var sensitiveKeys = []string{"password", "secret", "token", "key", "credential", "authorization"}

// SanitizeConnectionString removes credentials from a database or broker URL.
func SanitizeConnectionString(connStr string) string {
	if connStr == "" {
		return ""
	}
	sanitized := passwordPattern.ReplaceAllString(connStr, "${1}="+RedactedText)
	return connStringPattern.ReplaceAllString(sanitized, "://"+RedactedText+"@")
}

// SanitizeError returns the error text with credentials, tokens and
// provider keys removed.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	sanitized := passwordPattern.ReplaceAllString(err.Error(), "${1}="+RedactedText)
	sanitized = jwtPattern.ReplaceAllString(sanitized, "Bearer "+RedactedText)
	sanitized = apiKeyPattern.ReplaceAllString(sanitized, "${1}="+RedactedText)
	sanitized = providerKeyPattern.ReplaceAllString(sanitized, RedactedText)
	sanitized = awsSignaturePattern.ReplaceAllString(sanitized, "${1}="+RedactedText)
	return connStringPattern.ReplaceAllString(sanitized, "://"+RedactedText+"@")
}

// IsSensitiveKey reports whether a field with this name must be redacted.
func IsSensitiveKey(name string) bool {
	lower := strings.ToLower(name)
	for _, k := range sensitiveKeys {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// RedactFields copies fields, replacing sensitive values and truncating
// long strings. Nested maps are handled recursively.
func RedactFields(fields map[string]any) map[string]any {
	if fields == nil {
		return nil
	}
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if IsSensitiveKey(k) {
			out[k] = RedactedText
			continue
		}
		switch val := v.(type) {
		case string:
			out[k] = TruncateString(val, MaxFieldLogLength)
		case map[string]any:
			out[k] = RedactFields(val)
		default:
			out[k] = v
		}
	}
	return out
}

// TruncateString truncates a string to maxLen and adds ellipsis if needed.
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
