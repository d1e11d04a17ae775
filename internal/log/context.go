package log

import (
	"context"
	"log/slog"
	"time"
)

// ContextKey type for context keys
type ContextKey string

const (
	// LoggerContextKey is the context key for the logger
	LoggerContextKey ContextKey = "logger"
)

// WithLogger returns a context carrying logger
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, LoggerContextKey, logger)
}

// FromContext extracts a logger from the context
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(LoggerContextKey).(*Logger); ok {
		return logger
	}
	return &Logger{
		Logger:    slog.Default(),
		component: "unknown",
	}
}

// StructuredLogger provides the recurring log records of the client
type StructuredLogger struct {
	logger *Logger
}

// NewStructuredLogger creates a new structured logger
func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{
		logger: logger,
	}
}

// LogRequest logs the completion of an outbound API request. Client errors
// are warnings, server errors and transport failures are errors.
func (sl *StructuredLogger) LogRequest(ctx context.Context, requestID, method, path string, statusCode int, elapsed time.Duration, err error) {
	level := slog.LevelDebug
	switch {
	case err != nil && statusCode == 0:
		level = slog.LevelError
	case statusCode >= 500:
		level = slog.LevelError
	case statusCode >= 400:
		level = slog.LevelWarn
	}

	fields := NewFields().
		WithRequestID(requestID).
		WithHTTPRequest(method, path).
		WithHTTPResponse(statusCode, elapsed.Milliseconds(), err == nil && statusCode < 400).
		WithError(err).
		WithComponent(ComponentHTTP)

	sl.logger.Logger.Log(ctx, level, "API request completed", fields.ToSlice()...)
}

// LogInvalidation logs a tag invalidation and the cache keys it touched
func (sl *StructuredLogger) LogInvalidation(ctx context.Context, source string, tags []string, affected int) {
	fields := NewFields().
		WithOperation(OpInvalidate).
		WithComponent(ComponentCache)
	fields[FieldTags] = tags
	fields[FieldCount] = affected
	fields["source"] = source

	sl.logger.Logger.Log(ctx, slog.LevelDebug, "Cache tags invalidated", fields.ToSlice()...)
}

// LogError logs an error with structured context
func (sl *StructuredLogger) LogError(ctx context.Context, msg string, err error, component string, operation string, fields LogFields) {
	if fields == nil {
		fields = NewFields()
	}
	allFields := fields.
		WithError(err).
		WithOperation(operation).
		WithComponent(component)

	sl.logger.Logger.Log(ctx, slog.LevelError, msg, allFields.ToSlice()...)
}
