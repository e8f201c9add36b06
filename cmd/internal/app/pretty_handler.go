package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
)

// prettyHandler renders one human-oriented line per record for local runs.
// http.request and auth.audit records get a compact headline; everything else follows as key=value
// with the server's own field names shortened (username -> user, session_id -> sid, ...).
type prettyHandler struct {
	w      io.Writer
	level  slog.Leveler
	source bool
	color  bool
	prefix string
	attrs  []prettyField
	mu     *sync.Mutex
}

type prettyField struct {
	key string
	val slog.Value
}

var prettyAliases = map[string]string{
	"status_class":  "class",
	"duration_ms":   "took",
	"username":      "user",
	"session_id":    "sid",
	"request_id":    "rid",
	"kv_backend":    "backend",
	"retry_after_s": "retry",
}

func newPrettyHandler(w io.Writer, opts *slog.HandlerOptions, color bool) slog.Handler {
	h := &prettyHandler{
		w:     w,
		level: slog.LevelInfo,
		color: color,
		mu:    &sync.Mutex{},
	}
	if opts != nil {
		if opts.Level != nil {
			h.level = opts.Level
		}
		h.source = opts.AddSource
	}
	return h
}

func (h *prettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *prettyHandler) Handle(_ context.Context, r slog.Record) error {
	fields := slices.Clone(h.attrs)
	r.Attrs(func(a slog.Attr) bool {
		fields = appendField(fields, h.prefix, a)
		return true
	})

	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	var b strings.Builder
	b.WriteString(paint(ts.Format("15:04:05.000"), ansiDim, h.color))
	b.WriteByte(' ')
	b.WriteString(levelTag(r.Level, h.color))
	b.WriteByte(' ')
	b.WriteString(paint(r.Message, ansiBright, h.color))

	var head string
	head, fields = h.headline(r.Message, fields)
	if head != "" {
		b.WriteString("  ")
		b.WriteString(head)
	}

	for _, f := range fields {
		b.WriteByte(' ')
		b.WriteString(prettyKey(f.key))
		b.WriteByte('=')
		b.WriteString(h.renderField(f.key, f.val))
	}

	if h.source && r.PC != 0 {
		frame, _ := runtime.CallersFrames([]uintptr{r.PC}).Next()
		if frame.File != "" {
			b.WriteString(paint(fmt.Sprintf(" @%s:%d", filepath.Base(frame.File), frame.Line), ansiDim, h.color))
		}
	}
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

func (h *prettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	cp := *h
	cp.attrs = slices.Clone(h.attrs)
	for _, a := range attrs {
		cp.attrs = appendField(cp.attrs, h.prefix, a)
	}
	return &cp
}

func (h *prettyHandler) WithGroup(name string) slog.Handler {
	if strings.TrimSpace(name) == "" {
		return h
	}
	cp := *h
	cp.prefix = h.prefix + name + "."
	return &cp
}

// appendField flattens groups into dotted keys.
func appendField(dst []prettyField, prefix string, a slog.Attr) []prettyField {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return dst
	}
	if a.Value.Kind() == slog.KindGroup {
		if a.Key != "" {
			prefix += a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			dst = appendField(dst, prefix, ga)
		}
		return dst
	}
	if strings.TrimSpace(a.Key) == "" {
		return dst
	}
	return append(dst, prettyField{key: prefix + a.Key, val: a.Value})
}

// headline lifts the fields that identify a request or audit event out of the key=value tail.
func (h *prettyHandler) headline(msg string, fields []prettyField) (string, []prettyField) {
	switch msg {
	case "http.request":
		method, ok1 := findField(fields, "method")
		path, ok2 := findField(fields, "path")
		if !ok1 || !ok2 {
			return "", fields
		}
		parts := []string{
			colorizeHTTPMethod(strings.ToUpper(method.String()), h.color),
			paint(quoteIfNeeded(path.String()), ansiCyan, h.color),
		}
		drop := []string{"method", "path"}
		if status, ok := findField(fields, "status"); ok {
			parts = append(parts, h.renderField("status", status))
			drop = append(drop, "status")
		}
		if d, ok := findField(fields, "duration_ms"); ok {
			parts = append(parts, h.renderField("duration_ms", d))
			drop = append(drop, "duration_ms")
		}
		return strings.Join(parts, " "), dropFields(fields, drop...)

	case "auth.audit":
		action, ok1 := findField(fields, "action")
		result, ok2 := findField(fields, "result")
		if !ok1 || !ok2 {
			return "", fields
		}
		head := quoteIfNeeded(action.String()) + " " + h.renderField("result", result)
		return head, dropFields(fields, "action", "result")
	}
	return "", fields
}

func (h *prettyHandler) renderField(key string, v slog.Value) string {
	switch key {
	case "method":
		return colorizeHTTPMethod(strings.ToUpper(strings.TrimSpace(v.String())), h.color)
	case "status":
		if n, ok := valueToInt64(v); ok {
			return colorizeStatusCode(int(n), h.color)
		}
	case "status_class", "class":
		return colorizeStatusClass(strings.TrimSpace(v.String()), h.color)
	case "duration_ms":
		if n, ok := valueToInt64(v); ok {
			return colorizeDurationMS(n, h.color)
		}
	case "result":
		return colorizeResult(strings.ToLower(strings.TrimSpace(v.String())), h.color)
	case "username":
		return paint(quoteIfNeeded(v.String()), ansiCyan, h.color)
	case "session_id", "request_id":
		return paint(quoteIfNeeded(v.String()), ansiDim, h.color)
	case "kv_backend":
		return paint(quoteIfNeeded(v.String()), ansiMagenta, h.color)
	case "code", "err":
		code := ansiYellow
		if key == "err" {
			code = ansiRed
		}
		return paint(quoteIfNeeded(valueToString(v)), code, h.color)
	case "attempts":
		if n, ok := valueToInt64(v); ok && n > 1 {
			return paint(strconv.FormatInt(n, 10), ansiYellow, h.color)
		}
	case "retry_after_s":
		if n, ok := valueToInt64(v); ok {
			return paint(strconv.FormatInt(n, 10)+"s", ansiYellow, h.color)
		}
	}
	return quoteIfNeeded(valueToString(v))
}

func prettyKey(k string) string {
	if alias, ok := prettyAliases[k]; ok {
		return alias
	}
	return k
}

func findField(fields []prettyField, key string) (slog.Value, bool) {
	for _, f := range fields {
		if f.key == key {
			return f.val, true
		}
	}
	return slog.Value{}, false
}

func dropFields(fields []prettyField, keys ...string) []prettyField {
	return slices.DeleteFunc(fields, func(f prettyField) bool {
		return slices.Contains(keys, f.key)
	})
}

func valueToString(v slog.Value) string {
	switch v.Kind() {
	case slog.KindString:
		return v.String()
	case slog.KindTime:
		return v.Time().Format(time.RFC3339)
	default:
		return v.String()
	}
}

func quoteIfNeeded(s string) string {
	if s == "" {
		return `""`
	}
	if strings.ContainsAny(s, " \t\r\n\"=") {
		return strconv.Quote(s)
	}
	return s
}

func levelTag(level slog.Level, color bool) string {
	switch {
	case level >= slog.LevelError:
		return paint("ERROR", ansiRed, color)
	case level >= slog.LevelWarn:
		return paint("WARN ", ansiYellow, color)
	case level < slog.LevelInfo:
		return paint("DEBUG", ansiMagenta, color)
	default:
		return paint("INFO ", ansiBlue, color)
	}
}
