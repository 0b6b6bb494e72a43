package http

import (
	"net/http"

	"github.com/rs/zerolog/log"
)

// RunSync dispara uma sincronização completa imediata, fora do ciclo do
// agendador. Falhas de card individuais voltam no corpo; só erro de board
// inteiro vira falha da requisição.
func (h *Handler) RunSync(w http.ResponseWriter, r *http.Request) {
	result, err := h.syncer.SyncAll(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("sync manual falhou")
		WriteError(w, http.StatusBadGateway, "SYNC_FAILED", "sincronização com o board falhou", nil)
		return
	}

	WriteJSON(w, http.StatusOK, result)
}

// SyncStatus expõe o estado do agendador e o resultado da última rodada.
func (h *Handler) SyncStatus(w http.ResponseWriter, r *http.Request) {
	if h.scheduler == nil {
		WriteError(w, http.StatusServiceUnavailable, "SCHEDULER_DISABLED", "agendador desabilitado", nil)
		return
	}
	WriteJSON(w, http.StatusOK, h.scheduler.Status())
}
