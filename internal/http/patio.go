package http

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/doctorautoprime/oficina/internal/patio"
)

// ListCards lista os cards ativos do pátio, opcionalmente filtrados por
// etapa via ?status=.
func (h *Handler) ListCards(w http.ResponseWriter, r *http.Request) {
	var filter patio.CardFilter

	if raw := r.URL.Query().Get("status"); raw != "" {
		status := patio.Status(raw)
		if _, ok := patio.MetaFor(status); !ok {
			WriteError(w, http.StatusBadRequest, "INVALID_STATUS", "status desconhecido", map[string]string{"status": raw})
			return
		}
		filter.Status = &status
	}

	cards, err := h.store.ListCards(r.Context(), filter)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "LIST_FAILED", "falha ao listar cards", nil)
		return
	}
	if cards == nil {
		cards = []patio.Card{}
	}

	WriteJSON(w, http.StatusOK, cards)
}

// GetCard devolve um card pelo identificador do Trello.
func (h *Handler) GetCard(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	card, err := h.store.GetCard(r.Context(), id)
	if err != nil {
		if errors.Is(err, patio.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "CARD_NOT_FOUND", "card não encontrado", nil)
			return
		}
		WriteError(w, http.StatusInternalServerError, "GET_FAILED", "falha ao buscar card", nil)
		return
	}

	WriteJSON(w, http.StatusOK, card)
}

// CardHistory lista o histórico de eventos de um card, mais recente primeiro.
func (h *Handler) CardHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	entries, err := h.store.ListHistory(r.Context(), id)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "HISTORY_FAILED", "falha ao buscar histórico", nil)
		return
	}
	if entries == nil {
		entries = []patio.HistoryEntry{}
	}

	WriteJSON(w, http.StatusOK, entries)
}

// CardStages devolve quantos dias o card ficou em cada lista, derivado do
// histórico de movimentações.
func (h *Handler) CardStages(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	stages, err := h.store.StageDurations(r.Context(), id)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "STAGES_FAILED", "falha ao calcular etapas", nil)
		return
	}
	if stages == nil {
		stages = []patio.StageDuration{}
	}

	WriteJSON(w, http.StatusOK, stages)
}

type statusStat struct {
	Status patio.Status     `json:"status"`
	Meta   patio.StatusMeta `json:"meta"`
	Count  int              `json:"count"`
}

type patioStats struct {
	Total      int               `json:"total"`
	ByStatus   []statusStat      `json:"by_status"`
	Incomplete []incompleteStats `json:"incomplete"`
}

type incompleteStats struct {
	CardID  string   `json:"card_id"`
	Name    string   `json:"name"`
	Status  string   `json:"status"`
	Missing []string `json:"missing"`
}

// PatioStats resume a ocupação do pátio: contagem por etapa na ordem do
// fluxo e cards com campos obrigatórios pendentes.
func (h *Handler) PatioStats(w http.ResponseWriter, r *http.Request) {
	cards, err := h.store.ListCards(r.Context(), patio.CardFilter{})
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "STATS_FAILED", "falha ao calcular estatísticas", nil)
		return
	}

	counts := make(map[patio.Status]int, len(patio.Statuses))
	incomplete := []incompleteStats{}
	for _, card := range cards {
		counts[card.Status]++
		if missing := patio.MissingFields(card); len(missing) > 0 {
			incomplete = append(incomplete, incompleteStats{
				CardID:  card.ID,
				Name:    card.Name,
				Status:  string(card.Status),
				Missing: missing,
			})
		}
	}

	stats := patioStats{Total: len(cards), Incomplete: incomplete}
	for _, status := range patio.Statuses {
		meta, _ := patio.MetaFor(status)
		stats.ByStatus = append(stats.ByStatus, statusStat{
			Status: status,
			Meta:   meta,
			Count:  counts[status],
		})
	}

	WriteJSON(w, http.StatusOK, stats)
}
