// Package logger is the leveled logging sink used throughout the server.
//
// It wraps zerolog with a printf-style surface plus the Log(level, msg)
// sink form. Warnings and above carry the caller location.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

type Level int

const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

func (l Level) String() string {
	switch l {
	case LevelTrace:
		return "TRACE"
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

func (l Level) zerolog() zerolog.Level {
	switch l {
	case LevelTrace:
		return zerolog.TraceLevel
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelInfo:
		return zerolog.InfoLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.FatalLevel
	}
}

// ParseLevel converts a case-insensitive level name.
func ParseLevel(s string) (Level, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return LevelTrace, true
	case "DEBUG":
		return LevelDebug, true
	case "INFO":
		return LevelInfo, true
	case "WARN", "WARNING":
		return LevelWarn, true
	case "ERROR":
		return LevelError, true
	case "FATAL":
		return LevelFatal, true
	}
	return LevelInfo, false
}

const timeFormat = "20060102-150405.000000"

var (
	mu           sync.Mutex
	currentLevel atomic.Int32
	base         = newLogger(os.Stdout, "text")
	closer       io.Closer
)

func init() {
	currentLevel.Store(int32(LevelInfo))
}

func newLogger(w io.Writer, format string) zerolog.Logger {
	if format != "json" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: timeFormat, NoColor: true}
	}
	return zerolog.New(w).Level(zerolog.TraceLevel).With().Timestamp().Logger()
}

// SetLevel sets the minimum level; unknown names leave it unchanged.
func SetLevel(level string) {
	if l, ok := ParseLevel(level); ok {
		currentLevel.Store(int32(l))
	}
}

// GetLevel returns the current minimum level.
func GetLevel() Level {
	return Level(currentLevel.Load())
}

// SetOutput redirects log output. format is "text" or "json".
func SetOutput(w io.Writer, format string) {
	mu.Lock()
	defer mu.Unlock()
	base = newLogger(w, format)
	if closer != nil {
		_ = closer.Close()
		closer = nil
	}
}

// Config switches output to a rolling log file rooted at path.
// "stdout" and "stderr" select the standard streams instead.
func Config(path, format string, maxLines int) error {
	switch path {
	case "", "stdout":
		SetOutput(os.Stdout, format)
		return nil
	case "stderr":
		SetOutput(os.Stderr, format)
		return nil
	}
	rf, err := NewRollingFile(path, maxLines)
	if err != nil {
		return fmt.Errorf("configure log file: %w", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if closer != nil {
		_ = closer.Close()
	}
	base = newLogger(rf, format)
	closer = rf
	return nil
}

// Close flushes and closes a configured log file.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if closer == nil {
		return nil
	}
	err := closer.Close()
	closer = nil
	base = newLogger(os.Stdout, "text")
	return err
}

// Log is the sink form consumed by the core engines.
func Log(level Level, msg string) {
	write(level, 2, msg)
}

func write(level Level, skip int, msg string) {
	if level < GetLevel() {
		return
	}
	mu.Lock()
	l := base
	mu.Unlock()
	ev := l.WithLevel(level.zerolog())
	if level >= LevelWarn {
		ev = ev.Caller(skip)
	}
	ev.Msg(msg)
}

func logf(level Level, format string, v ...any) {
	if level < GetLevel() {
		return
	}
	write(level, 3, fmt.Sprintf(format, v...))
}

func Trace(format string, v ...any) { logf(LevelTrace, format, v...) }

func Debug(format string, v ...any) { logf(LevelDebug, format, v...) }

func Info(format string, v ...any) { logf(LevelInfo, format, v...) }

func Warn(format string, v ...any) { logf(LevelWarn, format, v...) }

func Error(format string, v ...any) { logf(LevelError, format, v...) }

// Fatal logs at FATAL level, closes any log file and exits with status 1.
func Fatal(format string, v ...any) {
	logf(LevelFatal, format, v...)
	_ = Close()
	exit(1)
}

var exit = os.Exit
