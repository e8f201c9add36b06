package authapi

import (
	"log/slog"
	"net/http"
	"strings"

	"studysprint/cmd/internal/httpx"
)

// audit emits one structured audit record per security-relevant auth event.
// Records go to the handler logger under the "auth.audit" message so they can be routed separately.
func (h *Handler) audit(r *http.Request, action, result string, attrs ...slog.Attr) {
	if h == nil {
		return
	}

	base := []slog.Attr{
		slog.String("action", action),
		slog.String("result", result),
	}
	if ip := httpx.ClientIP(r, h.cfg.TrustProxy); ip != nil {
		base = append(base, slog.String("ip", ip.String()))
	}
	if ua := strings.TrimSpace(r.UserAgent()); ua != "" {
		base = append(base, slog.String("user_agent", ua))
	}

	h.log.LogAttrs(r.Context(), slog.LevelInfo, "auth.audit", append(base, attrs...)...)
	h.metrics.AuthEvent(action, result)
}
