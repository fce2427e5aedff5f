package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/nerrad567/gray-logic-knxip/internal/infrastructure/config"
)

// Logger wraps slog.Logger with the client's default fields.
//
// It satisfies the small Logger interfaces of the tunnel, transport and
// bridge packages.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Logger struct {
	*slog.Logger
	file *lumberjack.Logger
}

// New creates a new Logger with the specified configuration.
//
// It configures:
//   - Output format (JSON or text)
//   - Log level filtering
//   - Default fields (service name, version)
//   - Output destination; when logging.file.path is set records also go
//     to a size-rotated file
//
// Parameters:
//   - cfg: Logging configuration
//   - version: Application version for default field
func New(cfg config.LoggingConfig, version string) *Logger {
	var file *lumberjack.Logger
	if cfg.File.Path != "" {
		file = &lumberjack.Logger{
			Filename:   cfg.File.Path,
			MaxSize:    cfg.File.MaxSize,
			MaxBackups: cfg.File.MaxBackups,
			MaxAge:     cfg.File.MaxAge,
			Compress:   cfg.File.Compress,
		}
	}

	var output io.Writer
	switch strings.ToLower(cfg.Output) {
	case "file":
		output = io.Discard
		if file != nil {
			output = file
		}
	case "stdout":
		output = os.Stdout
	default:
		output = os.Stderr
	}
	if file != nil && output != io.Writer(file) {
		output = io.MultiWriter(output, file)
	}

	l := NewWithWriter(output, cfg, version)
	l.file = file
	return l
}

// NewWithWriter creates a Logger writing to w, ignoring cfg.Output.
func NewWithWriter(w io.Writer, cfg config.LoggingConfig, version string) *Logger {
	opts := &slog.HandlerOptions{
		Level: parseLevel(cfg.Level),
	}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}

	handler = handler.WithAttrs([]slog.Attr{
		slog.String("service", "knxip"),
		slog.String("version", version),
	})

	return &Logger{Logger: slog.New(handler)}
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
// Example:
//
//	tunnelLog := logger.With("component", "tunnel")
//	tunnelLog.Info("connected") // Includes component=tunnel
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		Logger: l.Logger.With(args...),
		file:   l.file,
	}
}

// Close releases the log file, if any.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// Default creates a logger for use before configuration is loaded:
// text to stderr at info level.
func Default() *Logger {
	return New(config.LoggingConfig{
		Level:  "info",
		Format: "text",
		Output: "stderr",
	}, "dev")
}
