package log

import (
	"context"
	"log/slog"
	"net/http"
)

// StructuredLogger logs the recurring events of the service with a fixed set
// of fields.
type StructuredLogger struct {
	logger *Logger
}

func NewStructuredLogger(logger *Logger) *StructuredLogger {
	if logger == nil {
		logger = New(DefaultConfig())
	}
	return &StructuredLogger{
		logger: logger,
	}
}

// LogHTTPStart logs the start of an HTTP request
func (sl *StructuredLogger) LogHTTPStart(ctx context.Context, r *http.Request, clientIP string) {
	fields := NewFields().
		WithRequest(r).
		WithClientIP(clientIP).
		WithComponent(ComponentHTTP)
	if ua := r.Header.Get("User-Agent"); ua != "" {
		fields[FieldUserAgent] = ua
	}

	sl.logger.InfoContext(ctx, "HTTP request started", fields.ToSlice()...)
}

// LogHTTPEnd logs the completion of an HTTP request; 4xx log at warn and
// 5xx at error.
func (sl *StructuredLogger) LogHTTPEnd(ctx context.Context, r *http.Request, statusCode int, durationMs int64, clientIP string) {
	level := slog.LevelInfo
	if statusCode >= 400 && statusCode < 500 {
		level = slog.LevelWarn
	} else if statusCode >= 500 {
		level = slog.LevelError
	}

	fields := NewFields().
		WithRequest(r).
		WithStatus(statusCode, durationMs).
		WithClientIP(clientIP).
		WithComponent(ComponentHTTP)

	sl.logger.Log(ctx, level, "HTTP request completed", fields.ToSlice()...)
}

// LogCommandApplied logs a queued command the worker applied
func (sl *StructuredLogger) LogCommandApplied(ctx context.Context, id, kind string, durationMs int64) {
	fields := NewFields().
		WithCommand(id, kind).
		WithOperation(OpUpdate).
		WithComponent(ComponentWorker)
	fields[FieldDuration] = durationMs

	sl.logger.InfoContext(ctx, "Command applied", fields.ToSlice()...)
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

	sl.logger.ErrorContext(ctx, msg, allFields.ToSlice()...)
}
