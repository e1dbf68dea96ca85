// Package logger carries shared zap helpers.
package logger

import (
	"strings"

	"go.uber.org/zap"
)

// Field keys whose values must never reach the logs verbatim.
var sensitiveKeys = map[string]struct{}{
	"password":      {},
	"token":         {},
	"authorization": {},
	"secret":        {},
	"jwt":           {},
}

// SanitizeFields masks the value of any field whose key looks credential-like.
// Use it on every log call that carries request-derived fields.
func SanitizeFields(fields ...zap.Field) []zap.Field {
	out := make([]zap.Field, len(fields))
	for i, f := range fields {
		if _, ok := sensitiveKeys[strings.ToLower(f.Key)]; ok {
			out[i] = zap.String(f.Key, "[REDACTED]")
			continue
		}
		out[i] = f
	}
	return out
}
