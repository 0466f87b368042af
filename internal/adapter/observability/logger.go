// Package observability provides the structured logger used across the
// pipeline's use cases.
package observability

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"
	"time"
)

// LogLevel defines the logging verbosity level.
type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelError
)

// ParseLevel maps a config string to a level. Unknown values mean info.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(s) {
	case "debug":
		return LogLevelDebug
	case "error":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

// LogFormat defines the output format for logs.
type LogFormat int

const (
	LogFormatHuman LogFormat = iota
	LogFormatJSON
)

// ParseFormat maps a config string to a format. "auto" and unknown values
// pick human output on a terminal and JSON otherwise, so piped and CI runs
// stay machine-readable without configuration.
func ParseFormat(s string) LogFormat {
	switch strings.ToLower(s) {
	case "json":
		return LogFormatJSON
	case "human":
		return LogFormatHuman
	default:
		if IsTTY(os.Stderr.Fd()) {
			return LogFormatHuman
		}
		return LogFormatJSON
	}
}

// Logger writes leveled, structured log lines. It satisfies the council and
// guard Logger ports.
type Logger struct {
	level  LogLevel
	format LogFormat
	out    *log.Logger
	now    func() time.Time
}

// NewLogger creates a logger writing to stderr.
func NewLogger(level LogLevel, format LogFormat) *Logger {
	return NewLoggerTo(os.Stderr, level, format)
}

// NewLoggerTo creates a logger writing to the given sink.
func NewLoggerTo(w io.Writer, level LogLevel, format LogFormat) *Logger {
	return &Logger{
		level:  level,
		format: format,
		out:    log.New(w, "", 0),
		now:    time.Now,
	}
}

// LogInfo logs an informational message with structured fields.
func (l *Logger) LogInfo(ctx context.Context, message string, fields map[string]interface{}) {
	if l.level > LogLevelInfo {
		return
	}
	l.write("info", message, fields)
}

// LogWarning logs a warning message with structured fields. Warnings are
// emitted at info level and above.
func (l *Logger) LogWarning(ctx context.Context, message string, fields map[string]interface{}) {
	if l.level > LogLevelInfo {
		return
	}
	l.write("warning", message, fields)
}

// LogError logs an error message with structured fields.
func (l *Logger) LogError(ctx context.Context, message string, fields map[string]interface{}) {
	l.write("error", message, fields)
}

// LogDebug logs a debug message with structured fields.
func (l *Logger) LogDebug(ctx context.Context, message string, fields map[string]interface{}) {
	if l.level > LogLevelDebug {
		return
	}
	l.write("debug", message, fields)
}

func (l *Logger) write(level, message string, fields map[string]interface{}) {
	if l.format == LogFormatJSON {
		entry := make(map[string]interface{}, len(fields)+3)
		for key, value := range fields {
			entry[key] = value
		}
		entry["level"] = level
		entry["message"] = message
		entry["timestamp"] = l.now().UTC().Format(time.RFC3339)

		encoded, err := json.Marshal(entry)
		if err != nil {
			l.out.Printf(`{"level":"error","message":"failed to encode log entry: %v"}`, err)
			return
		}
		l.out.Print(string(encoded))
		return
	}

	l.out.Printf("[%s] %s%s", strings.ToUpper(level), message, formatFields(fields))
}

// formatFields renders fields as sorted key=value pairs for the human format.
func formatFields(fields map[string]interface{}) string {
	if len(fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(" (")
	for i, key := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s=%v", key, fields[key])
	}
	b.WriteString(")")
	return b.String()
}
