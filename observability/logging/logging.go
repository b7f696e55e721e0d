package logging

import (
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// Format selects the log line encoding.
type Format string

const (
	// FormatJSON emits structured JSON lines, the default for deployed
	// services.
	FormatJSON Format = "json"
	// FormatConsole emits colorised human-readable lines for interactive
	// use, e.g. the scenario simulator.
	FormatConsole Format = "console"
)

// Setup configures the process-wide logger and returns the slog.Logger for
// richer logging within the service. All log lines include the service name
// and environment when provided.
func Setup(service, env string, format Format) *slog.Logger {
	var handler slog.Handler
	switch format {
	case FormatConsole:
		handler = tint.NewHandler(os.Stderr, &tint.Options{
			Level:      slog.LevelInfo,
			TimeFormat: time.Kitchen,
		})
	default:
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
				switch attr.Key {
				case slog.TimeKey:
					return slog.Attr{Key: "timestamp", Value: attr.Value}
				case slog.LevelKey:
					return slog.String("severity", strings.ToUpper(attr.Value.String()))
				case slog.MessageKey:
					return slog.Attr{Key: "message", Value: attr.Value}
				}
				return attr
			},
		})
	}

	attrs := []any{slog.String("service", strings.TrimSpace(service))}
	if env = strings.TrimSpace(env); env != "" {
		attrs = append(attrs, slog.String("env", env))
	}

	base := slog.New(handler).With(attrs...)
	slog.SetDefault(base)

	// Bridge the standard library logger so dependencies keep working.
	stdBridge := slog.NewLogLogger(handler, slog.LevelInfo)
	stdBridge.SetFlags(0)
	log.SetOutput(stdBridge.Writer())
	log.SetFlags(0)
	log.SetPrefix("")

	return base
}
