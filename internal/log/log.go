// Package log provides structured diagnostic logging for replpane.
// It writes leveled, categorized lines to a file opened with tea.LogToFile
// and is enabled via the --debug flag or the REPLPANE_DEBUG env var.
package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// Level represents log severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a level name such as "warn" into a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug, nil
	case "INFO":
		return LevelInfo, nil
	case "WARN", "WARNING":
		return LevelWarn, nil
	case "ERROR":
		return LevelError, nil
	default:
		return LevelDebug, fmt.Errorf("unknown log level %q", s)
	}
}

// Category groups related log messages.
type Category string

const (
	CatProc    Category = "proc"    // Interpreter process lifecycle and streams
	CatSink    Category = "sink"    // Console sink attach/detach
	CatConfig  Category = "config"  // Configuration loading/saving
	CatWatcher Category = "watcher" // Config file watcher events
	CatUI      Category = "ui"      // UI component updates
	CatTrace   Category = "trace"   // Tracing provider setup
)

// Logger provides structured logging.
type Logger struct {
	mu       sync.Mutex
	closer   io.Closer
	writer   io.Writer
	enabled  bool
	minLevel Level
}

var (
	loggerMu      sync.RWMutex
	defaultLogger *Logger
)

// Init opens path for appending and installs it as the global logger.
// Returns a cleanup function to close the log file.
func Init(path string) (func(), error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644) //nolint:gosec // G304: path is user-controlled debug log path
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	install(&Logger{closer: f, writer: f, enabled: true, minLevel: LevelDebug})
	return func() { _ = f.Close() }, nil
}

// InitWithTeaLog uses tea.LogToFile for initialization.
func InitWithTeaLog(path string, prefix string) (func(), error) {
	f, err := tea.LogToFile(path, prefix)
	if err != nil {
		return nil, err
	}
	install(&Logger{closer: f, writer: f, enabled: true, minLevel: LevelDebug})
	return func() { _ = f.Close() }, nil
}

// InitWriter installs a logger that writes to w. Used by tests.
func InitWriter(w io.Writer) {
	install(&Logger{writer: w, enabled: true, minLevel: LevelDebug})
}

// Reset removes the global logger. Subsequent log calls are no-ops.
func Reset() {
	install(nil)
}

func install(l *Logger) {
	loggerMu.Lock()
	defaultLogger = l
	loggerMu.Unlock()
}

func current() *Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return defaultLogger
}

// SetEnabled toggles logging on/off.
func SetEnabled(enabled bool) {
	if l := current(); l != nil {
		l.mu.Lock()
		l.enabled = enabled
		l.mu.Unlock()
	}
}

// SetMinLevel sets the minimum log level.
func SetMinLevel(level Level) {
	if l := current(); l != nil {
		l.mu.Lock()
		l.minLevel = level
		l.mu.Unlock()
	}
}

// Debug logs at debug level.
func Debug(cat Category, msg string, fields ...any) {
	log(LevelDebug, cat, msg, fields...)
}

// Info logs at info level.
func Info(cat Category, msg string, fields ...any) {
	log(LevelInfo, cat, msg, fields...)
}

// Warn logs at warning level.
func Warn(cat Category, msg string, fields ...any) {
	log(LevelWarn, cat, msg, fields...)
}

// Error logs at error level.
func Error(cat Category, msg string, fields ...any) {
	log(LevelError, cat, msg, fields...)
}

// ErrorErr logs an error with the error value.
func ErrorErr(cat Category, msg string, err error, fields ...any) {
	if err != nil {
		fields = append(fields, "error", err.Error())
	} else {
		fields = append(fields, "error", "<nil>")
	}
	log(LevelError, cat, msg, fields...)
}

func log(level Level, cat Category, msg string, fields ...any) {
	l := current()
	if l == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.enabled || level < l.minLevel || l.writer == nil {
		return
	}

	_, _ = io.WriteString(l.writer, format(time.Now(), level, cat, msg, fields...))
}

// format renders one entry.
// Format: 2025-12-06T10:45:00 [ERROR] [proc] message key=value key2=value2
func format(ts time.Time, level Level, cat Category, msg string, fields ...any) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s] [%s] %s", ts.Format("2006-01-02T15:04:05"), level, cat, msg)

	for i := 0; i+1 < len(fields); i += 2 {
		fmt.Fprintf(&b, " %v=%v", fields[i], fields[i+1])
	}
	// Orphan key with no value
	if len(fields)%2 != 0 {
		fmt.Fprintf(&b, " %v=<missing>", fields[len(fields)-1])
	}
	b.WriteString("\n")
	return b.String()
}
