package log

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// ContextKey type for context keys
type ContextKey string

const (
	// LoggerContextKey is the context key for the logger
	LoggerContextKey ContextKey = "logger"
)

// WithContext stores logger in ctx
func WithContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, LoggerContextKey, logger)
}

// FromContext extracts a logger from the context
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(LoggerContextKey).(*Logger); ok {
		return logger
	}
	// Return default logger if not found
	return &Logger{
		Logger:    slog.Default(),
		component: "unknown",
	}
}

// RequestIDHeader carries the id Transport stamps on outbound requests.
const RequestIDHeader = "X-Request-ID"

// GenerateRequestID returns a random 16 character hex id.
func GenerateRequestID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("%016x", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}

// Transport logs every outbound HTTP request made through Base with its
// status and duration. 4xx responses log at warn, 5xx and transport errors at error.
// Requests without an X-Request-ID get one so backend logs can be matched.
type Transport struct {
	Base   http.RoundTripper
	Logger *Logger
}

// RoundTrip implements http.RoundTripper
func (t *Transport) RoundTrip(r *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	requestID := r.Header.Get(RequestIDHeader)
	if requestID == "" {
		requestID = GenerateRequestID()
		r = r.Clone(r.Context())
		r.Header.Set(RequestIDHeader, requestID)
	}

	start := time.Now()
	resp, err := base.RoundTrip(r)
	duration := time.Since(start).Milliseconds()

	fields := []any{
		FieldRequestID, requestID,
		FieldMethod, r.Method,
		FieldPath, r.URL.Path,
		FieldDuration, duration,
	}
	if err != nil {
		t.Logger.ErrorContext(r.Context(), "HTTP request failed", append(fields, FieldError, err.Error())...)
		return nil, err
	}

	level := slog.LevelDebug
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		level = slog.LevelWarn
	} else if resp.StatusCode >= 500 {
		level = slog.LevelError
	}
	t.Logger.Logger.Log(r.Context(), level, "HTTP request completed",
		t.Logger.attrs(append(fields, FieldStatusCode, resp.StatusCode))...)
	return resp, nil
}
