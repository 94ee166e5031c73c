package log

import (
	"context"
	"io"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
)

// MaskValue is the string used to replace sensitive values.
const MaskValue = "***REDACTED***"

// sensitiveKeys are attribute keys whose values are always masked.
// They cover the request headers a site config may carry.
var sensitiveKeys = map[string]bool{
	"authorization":       true,
	"proxy-authorization": true,
	"cookie":              true,
	"set-cookie":          true,
	"x-api-key":           true,
	"x-auth-token":        true,
	"password":            true,
	"session":             true,
	"session_id":          true,
}

// sensitiveKeywords mask any key that contains them.
var sensitiveKeywords = []string{"password", "passwd", "secret", "token", "auth", "credential"}

// sensitivePatterns mask values regardless of their key.
var sensitivePatterns = []*regexp.Regexp{
	// JWT
	regexp.MustCompile(`^eyJ[A-Za-z0-9_-]*\.eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]*$`),
	regexp.MustCompile(`(?i)^bearer\s+.+`),
	regexp.MustCompile(`(?i)^basic\s+[A-Za-z0-9+/=]+$`),
}

// RedactHandler wraps an slog.Handler and masks sensitive attribute values
// before the record reaches the underlying handler.
//
// Three rules apply to every attribute, groups included:
//   - keys naming a credential header or secret are masked
//   - string values that look like bearer/basic/JWT credentials are masked
//   - URLs keep their scheme, host and path but lose their userinfo,
//     also inside error messages
type RedactHandler struct {
	handler slog.Handler
}

// NewRedactHandler wraps handler. A nil handler falls back to the default
// slog handler.
func NewRedactHandler(handler slog.Handler) *RedactHandler {
	if handler == nil {
		handler = slog.Default().Handler()
	}
	return &RedactHandler{handler: handler}
}

// Enabled delegates to the underlying handler.
func (h *RedactHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle redacts the record's attributes and passes it on.
func (h *RedactHandler) Handle(ctx context.Context, r slog.Record) error {
	redacted := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		redacted.AddAttrs(redactAttr(a))
		return true
	})
	return h.handler.Handle(ctx, redacted)
}

// WithAttrs returns a handler with the redacted attributes added.
func (h *RedactHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	redacted := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		redacted[i] = redactAttr(a)
	}
	return &RedactHandler{handler: h.handler.WithAttrs(redacted)}
}

// WithGroup returns a handler with the given group name.
func (h *RedactHandler) WithGroup(name string) slog.Handler {
	return &RedactHandler{handler: h.handler.WithGroup(name)}
}

func redactAttr(a slog.Attr) slog.Attr {
	a.Value = a.Value.Resolve()

	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		redacted := make([]slog.Attr, len(attrs))
		for i, ga := range attrs {
			redacted[i] = redactAttr(ga)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(redacted...)}
	}

	if isSensitiveKey(a.Key) {
		return slog.String(a.Key, MaskValue)
	}

	switch a.Value.Kind() {
	case slog.KindString:
		if v, ok := redactString(a.Value.String()); ok {
			return slog.String(a.Key, v)
		}
	case slog.KindAny:
		// Fetch and proxy errors quote the URL they failed on.
		if err, ok := a.Value.Any().(error); ok && err != nil {
			if v, ok := redactString(err.Error()); ok {
				return slog.String(a.Key, v)
			}
		}
	}

	return a
}

// redactString returns the masked or cleaned form of v and whether it
// differs from v.
func redactString(v string) (string, bool) {
	if isSensitiveValue(v) {
		return MaskValue, true
	}
	if stripped, ok := stripUserinfo(v); ok {
		return stripped, true
	}
	if cleaned := userinfoPattern.ReplaceAllString(v, "$1"); cleaned != v {
		return cleaned, true
	}
	return v, false
}

func isSensitiveKey(key string) bool {
	key = strings.ToLower(key)
	if sensitiveKeys[key] {
		return true
	}
	for _, keyword := range sensitiveKeywords {
		if strings.Contains(key, keyword) {
			return true
		}
	}
	return false
}

func isSensitiveValue(value string) bool {
	for _, pattern := range sensitivePatterns {
		if pattern.MatchString(value) {
			return true
		}
	}
	return false
}

// userinfoPattern matches the userinfo of a URL embedded in free text.
var userinfoPattern = regexp.MustCompile(`([A-Za-z][A-Za-z0-9+.-]*://)[^/\s@"']+@`)

// stripUserinfo removes user:password@ from an absolute URL.
// It reports false when value is not such a URL.
func stripUserinfo(value string) (string, bool) {
	if !strings.Contains(value, "@") || !strings.Contains(value, "://") {
		return "", false
	}
	u, err := url.Parse(value)
	if err != nil || u.User == nil || u.Host == "" {
		return "", false
	}
	u.User = nil
	return u.String(), true
}

// NewLogger creates a redacting logger writing to w.
//
// The default level is Info so that a run reports its progress (state
// transitions, converted pages, degraded items). verbose lowers the level
// to Debug and adds per-request detail. json switches to JSON lines.
func NewLogger(w io.Writer, verbose, json bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if json {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(NewRedactHandler(handler))
}

// Discard returns a logger that drops everything.
// Components use it when no logger is configured.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
