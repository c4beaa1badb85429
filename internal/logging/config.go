package logging

import (
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// Config holds the configuration for the logger.
type Config struct {
	// Level is the minimum log level to output (DEBUG, INFO, WARN, ERROR, FATAL)
	Level string `yaml:"level"`
	// Format is the output format (json, console)
	Format string `yaml:"format"`
	// Output is the output destination (stdout, stderr, or file path)
	Output string `yaml:"output"`
}

// DefaultConfig returns the default logging configuration.
func DefaultConfig() *Config {
	return &Config{
		Level:  "info",
		Format: FormatJSON,
		Output: "stderr",
	}
}

// NewLogger creates a new logger with the given configuration.
func NewLogger(cfg *Config) (*Logger, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	switch strings.ToLower(cfg.Format) {
	case "", FormatJSON, FormatConsole, "text":
	default:
		return nil, errors.Errorf("logging: unknown format %q", cfg.Format)
	}

	output, err := getOutput(cfg.Output)
	if err != nil {
		return nil, err
	}
	return NewLoggerWithWriter(cfg, output)
}

// NewLoggerWithWriter is NewLogger with cfg.Output replaced by w.
func NewLoggerWithWriter(cfg *Config, w io.Writer) (*Logger, error) {
	format := strings.ToLower(cfg.Format)
	switch format {
	case "", FormatJSON:
		format = FormatJSON
	case FormatConsole, "text":
		format = FormatConsole
	default:
		return nil, errors.Errorf("logging: unknown format %q", cfg.Format)
	}
	return newLogger(parseLevel(cfg.Level), format, w), nil
}

// parseLevel converts a string log level to LogLevel.
func parseLevel(level string) LogLevel {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return DebugLevel
	case "INFO":
		return InfoLevel
	case "WARN", "WARNING":
		return WarnLevel
	case "ERROR":
		return ErrorLevel
	case "FATAL":
		return FatalLevel
	default:
		return InfoLevel
	}
}

// getOutput returns an io.Writer for the given output destination.
func getOutput(output string) (io.Writer, error) {
	switch output {
	case "", "stderr":
		return os.Stderr, nil
	case "stdout":
		return os.Stdout, nil
	default:
		// Treat as file path
		file, err := os.OpenFile(output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, errors.Wrap(err, "logging: opening output")
		}
		return file, nil
	}
}
