// Package logger provides structured logging for snapkeep.
package logger

import "context"

type contextKey string

const (
	loggerKey  contextKey = "snapkeep.logger"
	projectKey contextKey = "snapkeep.project"
)

// WithLogger adds a logger to the context.
func WithLogger(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext extracts the logger from context.
// Returns the default logger if none is set.
func FromContext(ctx context.Context) Logger {
	if l, ok := ctx.Value(loggerKey).(Logger); ok {
		return l
	}
	return Default()
}

// WithProject records the active project path in the context.
func WithProject(ctx context.Context, projectPath string) context.Context {
	return context.WithValue(ctx, projectKey, projectPath)
}

// ProjectFromContext returns the project path stored by WithProject.
func ProjectFromContext(ctx context.Context) string {
	if p, ok := ctx.Value(projectKey).(string); ok {
		return p
	}
	return ""
}

// L is FromContext enriched with the active project, if any.
func L(ctx context.Context) Logger {
	l := FromContext(ctx)
	if p := ProjectFromContext(ctx); p != "" {
		l = l.With("project_path", p)
	}
	return l
}
