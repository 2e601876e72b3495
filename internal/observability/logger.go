package observability

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// NewLogger returns a structured JSON logger tagged with the service name.
// LOG_LEVEL adjusts verbosity, defaulting to info.
func NewLogger(service string) zerolog.Logger {
	level := zerolog.InfoLevel
	if raw := strings.TrimSpace(os.Getenv("LOG_LEVEL")); raw != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(raw)); err == nil {
			level = parsed
		}
	}

	return zerolog.New(os.Stdout).
		Level(level).
		With().
		Str("service", service).
		Timestamp().
		Logger()
}
