// Package log is the component-tagged slog setup shared by every package.
package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// LevelTrace sits below debug and logs backend response details
const LevelTrace = slog.Level(-8)

// Environment variables read at startup
const (
	LevelEnv  = "RESUMESCAN_LOG_LEVEL"
	FormatEnv = "RESUMESCAN_LOG_FORMAT"
)

var (
	level slog.LevelVar

	outputMu sync.Mutex
	output   io.Writer = os.Stderr
)

var levelNames = map[string]slog.Level{
	"error":   slog.LevelError,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"info":    slog.LevelInfo,
	"":        slog.LevelInfo,
	"debug":   slog.LevelDebug,
	"trace":   LevelTrace,
}

func init() {
	lvl, err := parseLevel(os.Getenv(LevelEnv))
	if err != nil {
		lvl = slog.LevelInfo
	}
	level.Set(lvl)
	install(output)
}

func parseLevel(s string) (slog.Level, error) {
	lvl, ok := levelNames[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, fmt.Errorf("invalid log level %q (error, warn, info, debug or trace)", s)
	}
	return lvl, nil
}

// install makes a handler writing to w the slog default. Text output uses
// local time; JSON output uses UTC under "timestamp".
func install(w io.Writer) {
	jsonFormat := strings.EqualFold(os.Getenv(FormatEnv), "json")
	opts := &slog.HandlerOptions{
		Level: &level,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			switch a.Key {
			case slog.TimeKey:
				if jsonFormat {
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

	var h slog.Handler = slog.NewTextHandler(w, opts)
	if jsonFormat {
		h = slog.NewJSONHandler(w, opts)
	}
	slog.SetDefault(slog.New(h))
}

// SetOutput redirects log output. The CLI points it at stderr so command
// output on stdout stays machine readable.
func SetOutput(w io.Writer) {
	outputMu.Lock()
	defer outputMu.Unlock()
	output = w
	install(w)
}

// SetLogLevel changes the level at runtime
func SetLogLevel(name string) error {
	lvl, err := parseLevel(name)
	if err != nil {
		return err
	}
	level.Set(lvl)
	LogDebugWithFields("logging", "Log level changed", map[string]any{"level": name})
	return nil
}

func emit(lvl slog.Level, component, message string, fields map[string]any) {
	logger := slog.Default()
	if !logger.Enabled(context.Background(), lvl) {
		return
	}
	args := make([]any, 0, len(fields)*2+2)
	args = append(args, "component", component)
	for k, v := range fields {
		args = append(args, k, v)
	}
	logger.Log(context.Background(), lvl, message, args...)
}

func LogErrorWithFields(component, message string, fields map[string]any) {
	emit(slog.LevelError, component, message, fields)
}

func LogWarnWithFields(component, message string, fields map[string]any) {
	emit(slog.LevelWarn, component, message, fields)
}

func LogInfoWithFields(component, message string, fields map[string]any) {
	emit(slog.LevelInfo, component, message, fields)
}

func LogDebugWithFields(component, message string, fields map[string]any) {
	emit(slog.LevelDebug, component, message, fields)
}

func LogTraceWithFields(component, message string, fields map[string]any) {
	emit(LevelTrace, component, message, fields)
}

// MaskToken keeps a short prefix of a credential so log lines can be correlated
// without leaking it.
func MaskToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 8 {
		return "***"
	}
	return token[:4] + "***"
}
