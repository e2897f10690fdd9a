// Package logger provides structured logging for snapkeep.
//
// It wraps log/slog behind a small Logger interface so storage components
// can be handed a logger explicitly instead of reaching for a global:
//
//   - logger.go: configuration, level control, default instance
//   - context.go: carrying a logger and the active project through a context
//   - redact.go: secret masking and home-directory shortening for paths
package logger
