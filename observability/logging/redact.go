package logging

import (
	"log/slog"
	"strings"
)

// RedactedValue replaces secrets in log output.
const RedactedValue = "[REDACTED]"

// plainKeys are emitted verbatim by MaskField.
var plainKeys = map[string]struct{}{
	"service":      {},
	"env":          {},
	"error":        {},
	"reason":       {},
	"issuer":       {},
	"token":        {},
	"epoch":        {},
	"orchestrator": {},
}

// IsAllowlisted reports whether key is logged without masking.
func IsAllowlisted(key string) bool {
	_, ok := plainKeys[strings.ToLower(strings.TrimSpace(key))]
	return ok
}

// MaskValue hides non-empty values.
func MaskValue(value string) string {
	if strings.TrimSpace(value) == "" {
		return value
	}
	return RedactedValue
}

// MaskField builds an attribute for key, masking value unless key is
// allowlisted.
func MaskField(key, value string) slog.Attr {
	if IsAllowlisted(key) {
		return slog.String(key, value)
	}
	return slog.String(key, MaskValue(value))
}
