package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ConfigureFromSettings creates a Logger from string-based parameters, for
// integration with configuration files, environment variables and flags.
//
// Supported values:
//   - level: "debug", "info", "warn", "error"
//   - format: "text", "json"
//   - output: "console", "file", "both"
//   - filename: required for "file" and "both"
func ConfigureFromSettings(level, format, output, filename string) (*Logger, error) {
	logLevel, err := ParseLogLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	var logFormat LogFormat
	switch format {
	case "json":
		logFormat = JSONFormat
	case "text", "":
		logFormat = TextFormat
	default:
		return nil, fmt.Errorf("invalid log format: %s", format)
	}

	var writer io.Writer
	switch output {
	case "console", "":
		writer = os.Stderr
	case "file":
		if filename == "" {
			return nil, fmt.Errorf("log file path required when output is 'file'")
		}
		fileWriter, err := CreateFileOutput(filename)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		writer = fileWriter
	case "both":
		if filename == "" {
			return nil, fmt.Errorf("log file path required when output is 'both'")
		}
		fileWriter, err := CreateFileOutput(filename)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		writer = io.MultiWriter(os.Stderr, fileWriter)
	default:
		return nil, fmt.Errorf("invalid log output: %s", output)
	}

	return NewLogger(&Config{
		Level:  logLevel,
		Format: logFormat,
		Output: writer,
	}), nil
}

// InitGlobalFromSettings configures the global logger from string settings.
func InitGlobalFromSettings(level, format, output, filename string) error {
	logger, err := ConfigureFromSettings(level, format, output, filename)
	if err != nil {
		return err
	}
	globalMutex.Lock()
	defer globalMutex.Unlock()
	globalLogger = logger
	return nil
}

// CreateFileOutput opens (creating directories as needed) an append-mode log
// file writer.
func CreateFileOutput(filename string) (io.Writer, error) {
	dir := filepath.Dir(filename)
	if dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
		}
	}

	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", filename, err)
	}
	return file, nil
}
