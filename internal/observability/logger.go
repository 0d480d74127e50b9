// Package observability provides structured logging for audarr.
package observability

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/m-mizutani/masq"

	"github.com/jmylchreest/audarr/internal/config"
)

// LevelTrace is a custom level below debug for per-chunk stream tracing.
const LevelTrace = slog.Level(-8)

// slogLevels maps config level names to slog levels.
var slogLevels = map[string]slog.Level{
	"trace": LevelTrace,
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// parseLevel resolves a config level name, defaulting to info on unknown
// input.
func parseLevel(level string) slog.Level {
	if l, ok := slogLevels[level]; ok {
		return l
	}
	return slog.LevelInfo
}

// sensitiveKeys are attribute names whose values never reach a log sink.
// Matched case-insensitively against attribute keys and URL query
// parameter names.
var sensitiveKeys = map[string]struct{}{
	"password":    {},
	"passwd":      {},
	"secret":      {},
	"token":       {},
	"apikey":      {},
	"api_key":     {},
	"credential":  {},
	"credentials": {},
	"dsn":         {},
}

const redactedMarker = "[REDACTED]"

// NewLogger builds a logger writing to stdout, formatted and filtered per
// the logging config.
func NewLogger(cfg config.LoggingConfig) *slog.Logger {
	return NewLoggerWithWriter(cfg, os.Stdout)
}

// NewLoggerWithWriter builds a logger writing to w. Tests use it to capture
// output; the serve command points it at stderr.
func NewLoggerWithWriter(cfg config.LoggingConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:       parseLevel(cfg.Level),
		AddSource:   cfg.AddSource,
		ReplaceAttr: redactingReplaceAttr(cfg.TimeFormat),
	}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// redactingReplaceAttr builds the attribute hook shared by both handler
// formats. It applies the configured time format, names the trace level,
// shortens source positions, and redacts credentials before they reach the
// sink: attribute keys in sensitiveKeys, sensitive URL query parameters
// inside string values, and struct fields matched by masq (tag
// `masq:"secret"`, DSN/Password field names).
func redactingReplaceAttr(timeFormat string) func([]string, slog.Attr) slog.Attr {
	deepRedact := masq.New(
		masq.WithTag("secret"),
		masq.WithFieldName("DSN"),
		masq.WithFieldName("Password"),
	)

	return func(groups []string, a slog.Attr) slog.Attr {
		switch a.Key {
		case slog.TimeKey:
			if len(groups) == 0 && timeFormat != "" {
				if t, ok := a.Value.Any().(time.Time); ok {
					return slog.String(slog.TimeKey, t.Format(timeFormat))
				}
			}
			return a
		case slog.LevelKey:
			if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelTrace {
				return slog.String(slog.LevelKey, "TRACE")
			}
			return a
		case slog.SourceKey:
			if src, ok := a.Value.Any().(*slog.Source); ok && src != nil {
				return slog.String("logpos", fmt.Sprintf("%s:%d", shortPath(src.File), src.Line))
			}
			return a
		}
		if isSensitiveKey(a.Key) {
			return slog.String(a.Key, redactedMarker)
		}
		if a.Value.Kind() == slog.KindString {
			if scrubbed, changed := scrubURLParams(a.Value.String()); changed {
				return slog.String(a.Key, scrubbed)
			}
		}
		return deepRedact(groups, a)
	}
}

func isSensitiveKey(key string) bool {
	_, ok := sensitiveKeys[strings.ToLower(key)]
	return ok
}

// shortPath trims an absolute source path down to its last three elements,
// enough to identify package and file without leaking build paths.
func shortPath(file string) string {
	parts := strings.Split(filepath.ToSlash(file), "/")
	if len(parts) > 3 {
		parts = parts[len(parts)-3:]
	}
	return strings.Join(parts, "/")
}

// scrubURLParams replaces the values of sensitive query parameters in a URL
// string. The query is rebuilt pair by pair so parameter order and the
// encoding of untouched values survive.
func scrubURLParams(s string) (string, bool) {
	qpos := strings.IndexByte(s, '?')
	if qpos < 0 || qpos == len(s)-1 {
		return s, false
	}
	rawQuery := s[qpos+1:]
	pairs := strings.Split(rawQuery, "&")
	changed := false
	for i, pair := range pairs {
		eq := strings.IndexByte(pair, '=')
		if eq <= 0 {
			continue
		}
		if isSensitiveKey(pair[:eq]) {
			pairs[i] = pair[:eq] + "=" + redactedMarker
			changed = true
		}
	}
	if !changed {
		return s, false
	}
	return s[:qpos+1] + strings.Join(pairs, "&"), true
}

// SetDefault installs logger as the process-wide slog default.
func SetDefault(logger *slog.Logger) {
	slog.SetDefault(logger)
}
