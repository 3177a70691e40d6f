package observability

import (
	"log/slog"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
)

// NewLogger builds the process logger and installs it as the slog default.
// format is "json" or "text"; level is one of debug, info, warn, error.
func NewLogger(level, format string) *slog.Logger {
	return sharedobs.NewLogger(level, format)
}

// DiscardLogger returns a logger that drops everything, for tests.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
