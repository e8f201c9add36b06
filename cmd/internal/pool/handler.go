package pool

import (
	"log/slog"
	"net/http"

	"studysprint/cmd/internal/httpx"
)

type cardsResponse struct {
	Count int    `json:"count"`
	Items []Card `json:"items"`
}

// Handler serves GET /api/questions. A nil loader answers 404.
func Handler(log *slog.Logger, l *Loader) http.HandlerFunc {
	if log == nil {
		log = slog.Default()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if !httpx.Method(w, r, http.MethodGet) {
			return
		}
		if l == nil {
			httpx.WriteError(w, http.StatusNotFound, "not_configured", "question pool not configured")
			return
		}

		cards, err := l.Cards(r.Context())
		if err != nil {
			log.Warn("pool.serve.fail", "err", err)
			httpx.WriteError(w, http.StatusBadGateway, "upstream_error", "question pool unavailable")
			return
		}
		httpx.WriteJSON(w, http.StatusOK, cardsResponse{Count: len(cards), Items: cards})
	}
}
