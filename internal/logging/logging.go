// Package logging carries request-scoped identifiers through contexts and
// attaches them to log lines.
package logging

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/happy-hops/choperia/pkg/logger"
)

type contextKey string

const (
	TraceIDKey contextKey = "trace_id"
	UserIDKey  contextKey = "user_id"
	TipoKey    contextKey = "user_tipo"
)

// NewTraceID generates a fresh request trace id.
func NewTraceID() string {
	return uuid.NewString()
}

// WithTraceID stores traceID in ctx.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	if traceID == "" {
		return ctx
	}
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// GetTraceID returns the trace id in ctx, or "".
func GetTraceID(ctx context.Context) string {
	if v, ok := ctx.Value(TraceIDKey).(string); ok {
		return v
	}
	return ""
}

// WithUserID stores the authenticated user's id and tipo in ctx.
func WithUserID(ctx context.Context, userID int64, tipo string) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, userID)
	if tipo != "" {
		ctx = context.WithValue(ctx, TipoKey, tipo)
	}
	return ctx
}

// GetUserID returns the authenticated user id in ctx.
func GetUserID(ctx context.Context) (int64, bool) {
	v, ok := ctx.Value(UserIDKey).(int64)
	return v, ok && v > 0
}

// GetTipo returns the authenticated user's tipo, or "".
func GetTipo(ctx context.Context) string {
	if v, ok := ctx.Value(TipoKey).(string); ok {
		return v
	}
	return ""
}

// FromContext decorates log with the trace and user ids found in ctx.
func FromContext(ctx context.Context, log *logger.Logger) *logger.Logger {
	if traceID := GetTraceID(ctx); traceID != "" {
		log = log.WithField("trace_id", traceID)
	}
	if userID, ok := GetUserID(ctx); ok {
		log = log.WithField("user_id", userID)
	}
	return log
}

// LogRequest writes one line per served HTTP request. 5xx responses log at
// error level, 4xx at warn.
func LogRequest(ctx context.Context, log *logger.Logger, method, path string, status int, duration time.Duration) {
	entry := FromContext(ctx, log).WithFields(map[string]interface{}{
		"method":      method,
		"path":        path,
		"status":      status,
		"duration_ms": duration.Milliseconds(),
	})
	switch {
	case status >= 500:
		entry.Error("request failed")
	case status >= 400:
		entry.Warn("request rejected")
	default:
		entry.Info("request served")
	}
}

// LogSecurityEvent records auth and abuse related events.
func LogSecurityEvent(ctx context.Context, log *logger.Logger, event string, fields map[string]interface{}) {
	FromContext(ctx, log).WithField("security_event", event).WithFields(fields).Warn("security event")
}
