// Package logger provides structured logging for snapkeep.
package logger

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Key fragments whose values are never logged verbatim.
var sensitiveKeyPatterns = []string{
	"password",
	"secret",
	"token",
	"credential",
}

// Key suffixes that carry filesystem paths.
var pathKeySuffixes = []string{
	"path",
	"dir",
	"file",
}

const redactedValue = "***REDACTED***"

// homeDir is resolved once; tests override it.
var homeDir, _ = os.UserHomeDir()

func redactSensitive(a slog.Attr) slog.Attr {
	switch a.Value.Kind() {
	case slog.KindString:
		if IsSensitiveKey(a.Key) {
			if a.Value.String() != "" {
				return slog.String(a.Key, redactedValue)
			}
			return a
		}
		if isPathKey(a.Key) {
			return slog.String(a.Key, ShortenPath(a.Value.String()))
		}
	case slog.KindGroup:
		attrs := a.Value.Group()
		out := make([]slog.Attr, len(attrs))
		for i, attr := range attrs {
			out[i] = redactSensitive(attr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(out...)}
	}
	return a
}

// ShortenPath replaces the user's home directory prefix with "~".
func ShortenPath(p string) string {
	if homeDir == "" || p == "" {
		return p
	}
	if p == homeDir {
		return "~"
	}
	prefix := homeDir + string(filepath.Separator)
	if strings.HasPrefix(p, prefix) {
		return "~" + string(filepath.Separator) + p[len(prefix):]
	}
	return p
}

// IsSensitiveKey checks if a key name suggests sensitive content.
func IsSensitiveKey(key string) bool {
	keyLower := strings.ToLower(key)
	for _, pattern := range sensitiveKeyPatterns {
		if strings.Contains(keyLower, pattern) {
			return true
		}
	}
	return false
}

func isPathKey(key string) bool {
	keyLower := strings.ToLower(key)
	for _, suffix := range pathKeySuffixes {
		if strings.HasSuffix(keyLower, suffix) {
			return true
		}
	}
	return false
}
