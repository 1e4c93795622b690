// ============================================================================
// UWS Core — slog-backed Logger
// ============================================================================
//
// Package: internal/logging
// File: logging.go
// Purpose: Default contracts.Logger implementation, backed by log/slog —
//          the same package-level logger idiom the teacher uses throughout
//          internal/controller and internal/worker (var log = slog.Default()).
//
// ============================================================================

package logging

import (
	"log/slog"
	"os"

	"github.com/gmantele/vollt-uws/internal/contracts"
)

// SlogLogger adapts an *slog.Logger to contracts.Logger.
type SlogLogger struct {
	logger *slog.Logger
}

// NewSlogLogger wraps logger. A nil logger falls back to a JSON handler
// over os.Stderr, matching the teacher's default of slog.Default().
func NewSlogLogger(logger *slog.Logger) *SlogLogger {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}
	return &SlogLogger{logger: logger}
}

// Log implements contracts.Logger.
func (l *SlogLogger) Log(level contracts.LogLevel, event, message string, cause error) {
	attrs := []any{"event", event}
	if cause != nil {
		attrs = append(attrs, "error", cause)
	}
	switch level {
	case contracts.DEBUG:
		l.logger.Debug(message, attrs...)
	case contracts.INFO:
		l.logger.Info(message, attrs...)
	case contracts.WARNING:
		l.logger.Warn(message, attrs...)
	case contracts.ERROR, contracts.FATAL:
		l.logger.Error(message, attrs...)
	default:
		l.logger.Info(message, attrs...)
	}
}
