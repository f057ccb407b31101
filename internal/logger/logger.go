package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Level is the logging level.
type Level int

const (
	Debug Level = iota
	Info
	Warn
	Error
)

// Logger is a basic logger wrapper.
type Logger struct {
	level   Level
	logger  zerolog.Logger
	enabled bool
	file    *os.File
}

var globalLogger *Logger

// Init initializes the logger. Console output goes to stderr so that the
// event stream on stdout stays machine-readable.
func Init(enabled bool, levelStr, logFile string, console bool) error {
	return InitWriter(enabled, levelStr, logFile, console, os.Stderr)
}

// InitWriter is Init with an explicit console writer.
func InitWriter(enabled bool, levelStr, logFile string, console bool, consoleOut io.Writer) error {
	if !enabled {
		globalLogger = &Logger{enabled: false}
		return nil
	}

	level := parseLevel(levelStr)
	var writers []io.Writer
	var file *os.File

	if logFile != "" {
		dir := filepath.Dir(logFile)
		if dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create log directory: %w", err)
			}
		}
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		file = f
		writers = append(writers, f)
	}

	if console || len(writers) == 0 {
		writers = append(writers, zerolog.ConsoleWriter{Out: consoleOut, TimeFormat: time.DateTime, NoColor: true})
	}

	globalLogger = &Logger{
		level:   level,
		logger:  zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp().Logger().Level(zerologLevel(level)),
		enabled: true,
		file:    file,
	}

	return nil
}

// Close releases the log file, if any.
func Close() error {
	if globalLogger == nil || globalLogger.file == nil {
		return nil
	}
	err := globalLogger.file.Close()
	globalLogger.file = nil
	return err
}

func parseLevel(levelStr string) Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return Debug
	case "info":
		return Info
	case "warn", "warning":
		return Warn
	case "error":
		return Error
	default:
		return Info
	}
}

func zerologLevel(level Level) zerolog.Level {
	switch level {
	case Debug:
		return zerolog.DebugLevel
	case Warn:
		return zerolog.WarnLevel
	case Error:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func active(level Level) bool {
	return globalLogger != nil && globalLogger.enabled && globalLogger.level <= level
}

// Debugf logs a debug message.
func Debugf(format string, args ...interface{}) {
	if !active(Debug) {
		return
	}
	globalLogger.logger.Debug().Msgf(format, args...)
}

// Infof logs an info message.
func Infof(format string, args ...interface{}) {
	if !active(Info) {
		return
	}
	globalLogger.logger.Info().Msgf(format, args...)
}

// Warnf logs a warning.
func Warnf(format string, args ...interface{}) {
	if !active(Warn) {
		return
	}
	globalLogger.logger.Warn().Msgf(format, args...)
}

// Errorf logs an error message.
func Errorf(format string, args ...interface{}) {
	if !active(Error) {
		return
	}
	globalLogger.logger.Error().Msgf(format, args...)
}
