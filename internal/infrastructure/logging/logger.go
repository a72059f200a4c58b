package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/azimuth-iot/azimuth-device-core/internal/infrastructure/config"
)

// attrComponent is the attribute key attached by Component.
const attrComponent = "component"

// redactedValue replaces secret field values in logged connection
// strings.
const redactedValue = "REDACTED"

// secretFields are connection-string keys whose values must never reach
// a log sink. Keys are compared case-insensitively.
var secretFields = map[string]bool{
	"sharedaccesskey":       true,
	"sharedaccesssignature": true,
}

// Logger wraps slog.Logger with Azimuth-specific functionality.
//
// Every entry carries the service and version fields so aggregated logs
// from a fleet of devices stay attributable to one agent build.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Logger struct {
	*slog.Logger
}

// New creates a new Logger with the specified configuration.
//
// Parameters:
//   - cfg: Logging configuration from config.yaml
//   - version: Agent build version, stamped on every entry
//
// Returns:
//   - *Logger: Configured logger ready for use
func New(cfg config.LoggingConfig, version string) *Logger {
	handler := newHandler(cfg).WithAttrs([]slog.Attr{
		slog.String("service", "azimuth"),
		slog.String("version", version),
	})
	return &Logger{Logger: slog.New(handler)}
}

// newHandler builds the slog handler for the configured output and
// format. Unrecognised values fall back to JSON on stdout.
func newHandler(cfg config.LoggingConfig) slog.Handler {
	var output io.Writer = os.Stdout
	if strings.EqualFold(cfg.Output, "stderr") {
		output = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.NewTextHandler(output, opts)
	}
	return slog.NewJSONHandler(output, opts)
}

// parseLevel converts a string log level to slog.Level.
//
// Supported levels: debug, info, warn, error
// Defaults to info if unrecognised.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// With returns a new Logger with additional default attributes.
//
// Parameters:
//   - args: Key-value pairs to add as default attributes
//
// Returns:
//   - *Logger: New logger with added attributes
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// Component returns a child logger tagged with a subsystem name, used
// to attribute entries to one part of the agent (iothub, spool, ...).
//
// Example:
//
//	hubLog := logger.Component("iothub")
//	hubLog.Info("connected") // Includes component=iothub
func (l *Logger) Component(name string) *Logger {
	return l.With(attrComponent, name)
}

// Default creates a default logger for use before configuration is
// loaded: JSON on stdout at info level.
func Default() *Logger {
	return New(config.LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	}, "dev")
}

// RedactConnectionString returns a copy of an IoT Hub connection string
// safe for logging. Secret field values are replaced; all other fields,
// malformed pairs included, pass through unchanged.
func RedactConnectionString(s string) string {
	pairs := strings.Split(s, ";")
	for i, pair := range pairs {
		key, _, ok := strings.Cut(pair, "=")
		if ok && secretFields[strings.ToLower(strings.TrimSpace(key))] {
			pairs[i] = key + "=" + redactedValue
		}
	}
	return strings.Join(pairs, ";")
}
