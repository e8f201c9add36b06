package app

import (
	"log/slog"
	"strconv"
	"strings"
)

const (
	ansiReset   = "\x1b[0m"
	ansiBright  = "\x1b[1m"
	ansiDim     = "\x1b[2m"
	ansiRed     = "\x1b[31m"
	ansiGreen   = "\x1b[32m"
	ansiYellow  = "\x1b[33m"
	ansiBlue    = "\x1b[34m"
	ansiMagenta = "\x1b[35m"
	ansiCyan    = "\x1b[36m"
)

func paint(s, code string, color bool) string {
	if !color || code == "" {
		return s
	}
	return code + s + ansiReset
}

func colorizeHTTPMethod(method string, color bool) string {
	switch method {
	case "GET":
		return paint(method, ansiGreen, color)
	case "POST":
		return paint(method, ansiBlue, color)
	case "PUT", "PATCH":
		return paint(method, ansiYellow, color)
	case "DELETE":
		return paint(method, ansiRed, color)
	default:
		return paint(method, ansiMagenta, color)
	}
}

func colorizeStatusCode(status int, color bool) string {
	return paint(strconv.Itoa(status), statusColor(status), color)
}

func colorizeStatusClass(class string, color bool) string {
	if class == "" {
		return `""`
	}
	n, err := strconv.Atoi(class[:1])
	if err != nil {
		return paint(class, "", color)
	}
	return paint(class, statusColor(n*100), color)
}

func statusColor(status int) string {
	switch {
	case status >= 500:
		return ansiRed
	case status >= 400:
		return ansiYellow
	case status >= 300:
		return ansiCyan
	case status >= 200:
		return ansiGreen
	default:
		return ""
	}
}

func colorizeDurationMS(ms int64, color bool) string {
	s := strconv.FormatInt(ms, 10) + "ms"
	switch {
	case ms >= 1000:
		return paint(s, ansiRed, color)
	case ms >= 250:
		return paint(s, ansiYellow, color)
	default:
		return paint(s, ansiDim, color)
	}
}

func colorizeResult(result string, color bool) string {
	switch {
	case result == "success" || result == "ok":
		return paint(result, ansiGreen, color)
	case strings.HasSuffix(result, "server_error") || result == "error":
		return paint(result, ansiRed, color)
	case strings.HasSuffix(result, "client_error"):
		return paint(result, ansiYellow, color)
	default:
		return quoteIfNeeded(result)
	}
}

func valueToInt64(v slog.Value) (int64, bool) {
	switch v.Kind() {
	case slog.KindInt64:
		return v.Int64(), true
	case slog.KindUint64:
		u := v.Uint64()
		if u > 1<<63-1 {
			return 0, false
		}
		return int64(u), true
	case slog.KindFloat64:
		return int64(v.Float64()), true
	case slog.KindString:
		n, err := strconv.ParseInt(strings.TrimSpace(v.String()), 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}
