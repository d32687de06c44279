package httptransport

import (
	"net/http"

	"algo-arena/internal/livestate"

	"github.com/rs/zerolog/log"
)

type OpsHandlers struct {
	durable   Pinger
	ephemeral Pinger
	ranking   *livestate.Ranking
}

func NewOpsHandlers(durable, ephemeral Pinger, ranking *livestate.Ranking) *OpsHandlers {
	return &OpsHandlers{durable: durable, ephemeral: ephemeral, ranking: ranking}
}

// Health reports both stores; either one down is a 503.
func (h *OpsHandlers) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := map[string]any{"ok": true, "db": "up", "ephemeral": "up"}
		status := http.StatusOK
		if err := h.durable.Ping(r.Context()); err != nil {
			log.Warn().Err(err).Msg("durable store ping failed")
			body["ok"], body["db"] = false, "down"
			status = http.StatusServiceUnavailable
		}
		if err := h.ephemeral.Ping(r.Context()); err != nil {
			log.Warn().Err(err).Msg("ephemeral store ping failed")
			body["ok"], body["ephemeral"] = false, "down"
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, body)
	}
}

func (h *OpsHandlers) Ranking() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := ParseLimit(r, 50, 500)
		items, err := h.ranking.Top(r.Context(), limit)
		if err != nil {
			metricRankingQueryErrors.Add(1)
			log.Error().Err(err).Msg("ranking query failed")
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items, "limit": limit})
	}
}
