// Package log wraps log/slog with the level and format switches shared by
// authd and calendar-front.
//
// LOG_LEVEL selects the initial level (trace, debug, info, warn, error) and
// LOG_FORMAT=json switches from text to JSON lines on stderr.
package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"
)

// LevelTrace sits below debug and is used for per-request noise
const LevelTrace = slog.Level(-8)

var level = new(slog.LevelVar)

var levelNames = map[slog.Level]string{
	LevelTrace:      "trace",
	slog.LevelDebug: "debug",
	slog.LevelInfo:  "info",
	slog.LevelWarn:  "warn",
	slog.LevelError: "error",
}

func init() {
	initial, err := parseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		initial = slog.LevelInfo
	}
	level.Set(initial)
	slog.SetDefault(slog.New(newHandler(os.Stderr, os.Getenv("LOG_FORMAT"))))
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "trace":
		return LevelTrace, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("invalid log level: %s", s)
}

// newHandler builds the handler for format. Both formats read the shared
// level var, so SetLogLevel never needs to rebuild them.
func newHandler(w io.Writer, format string) slog.Handler {
	json := strings.EqualFold(format, "json")
	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			switch a.Key {
			case slog.TimeKey:
				if json {
					return slog.String("timestamp", a.Value.Time().UTC().Format(time.RFC3339Nano))
				}
				return slog.String(slog.TimeKey, a.Value.Time().Format("2006-01-02 15:04:05.000-07:00"))
			case slog.LevelKey:
				if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelTrace {
					return slog.String(slog.LevelKey, "TRACE")
				}
			}
			return a
		},
	}
	if json {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// SetLogLevel changes the level of the default logger at runtime
func SetLogLevel(name string) error {
	parsed, err := parseLevel(name)
	if err != nil {
		return err
	}
	level.Set(parsed)
	LogDebugWithFields("logging", "Log level changed", map[string]any{"level": GetLogLevel()})
	return nil
}

// GetLogLevel returns the name of the current level
func GetLogLevel() string {
	if name, ok := levelNames[level.Level()]; ok {
		return name
	}
	return "unknown"
}

func LogInfo(message string) {
	slog.Default().Info(message)
}

func LogError(format string, args ...any) {
	slog.Default().Error(fmt.Sprintf(format, args...))
}

func LogWarn(format string, args ...any) {
	slog.Default().Warn(fmt.Sprintf(format, args...))
}

func LogDebug(format string, args ...any) {
	slog.Default().Debug(fmt.Sprintf(format, args...))
}

// fieldArgs flattens fields into slog key/value pairs with the component
// first and the rest in key order.
func fieldArgs(component string, fields map[string]any) []any {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	args := make([]any, 0, len(fields)*2+2)
	args = append(args, "component", component)
	for _, k := range keys {
		args = append(args, k, fields[k])
	}
	return args
}

func logWithFields(lvl slog.Level, component, message string, fields map[string]any) {
	logger := slog.Default()
	if !logger.Enabled(context.Background(), lvl) {
		return
	}
	logger.Log(context.Background(), lvl, message, fieldArgs(component, fields)...)
}

func LogTraceWithFields(component, message string, fields map[string]any) {
	logWithFields(LevelTrace, component, message, fields)
}

func LogDebugWithFields(component, message string, fields map[string]any) {
	logWithFields(slog.LevelDebug, component, message, fields)
}

func LogInfoWithFields(component, message string, fields map[string]any) {
	logWithFields(slog.LevelInfo, component, message, fields)
}

func LogWarnWithFields(component, message string, fields map[string]any) {
	logWithFields(slog.LevelWarn, component, message, fields)
}

func LogErrorWithFields(component, message string, fields map[string]any) {
	logWithFields(slog.LevelError, component, message, fields)
}
