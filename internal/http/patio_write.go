package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/doctorautoprime/oficina/internal/patio"
	"github.com/doctorautoprime/oficina/internal/trello"
)

type updateCardRequest struct {
	Name         *string           `json:"name"`
	Description  *string           `json:"description"`
	ListID       *string           `json:"list_id"`
	CustomFields map[string]string `json:"custom_fields"`
}

// UpdateCard aplica edições do dashboard de volta no board e ressincroniza o
// card. O board é a fonte de verdade: nada é escrito direto no banco.
func (h *Handler) UpdateCard(w http.ResponseWriter, r *http.Request) {
	if h.board == nil {
		WriteError(w, http.StatusServiceUnavailable, "TRELLO_DISABLED", "integração trello desabilitada", nil)
		return
	}

	id := chi.URLParam(r, "id")

	var req updateCardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "INVALID_BODY", "payload inválido", nil)
		return
	}
	if req.Name == nil && req.Description == nil && req.ListID == nil && len(req.CustomFields) == 0 {
		WriteError(w, http.StatusBadRequest, "EMPTY_UPDATE", "nenhuma alteração informada", nil)
		return
	}

	changes := trello.CardChanges{Name: req.Name, Description: req.Description}
	if req.Name != nil || req.Description != nil {
		if err := h.board.UpdateCard(r.Context(), id, changes); err != nil {
			WriteError(w, http.StatusBadGateway, "TRELLO_ERROR", "falha ao atualizar card no board", nil)
			return
		}
	}
	if req.ListID != nil {
		if err := h.board.MoveCard(r.Context(), id, *req.ListID); err != nil {
			WriteError(w, http.StatusBadGateway, "TRELLO_ERROR", "falha ao mover card no board", nil)
			return
		}
	}
	for field, value := range req.CustomFields {
		if err := h.board.SetCustomFieldByName(r.Context(), id, field, value); err != nil {
			WriteError(w, http.StatusBadGateway, "TRELLO_ERROR", "falha ao gravar campo "+field, nil)
			return
		}
	}

	h.syncCard(r.Context(), id)

	card, err := h.store.GetCard(r.Context(), id)
	if err != nil {
		// a escrita no board valeu; o espelho chega na próxima sincronização
		log.Warn().Err(err).Str("card", id).Msg("patio: card atualizado, espelho indisponível")
		WriteJSON(w, http.StatusOK, map[string]string{"status": "atualizado"})
		return
	}

	WriteJSON(w, http.StatusOK, card)
}

// DeleteCard remove o card do board e marca o espelho como removido.
func (h *Handler) DeleteCard(w http.ResponseWriter, r *http.Request) {
	if h.board == nil {
		WriteError(w, http.StatusServiceUnavailable, "TRELLO_DISABLED", "integração trello desabilitada", nil)
		return
	}

	id := chi.URLParam(r, "id")

	if err := h.board.DeleteCard(r.Context(), id); err != nil {
		WriteError(w, http.StatusBadGateway, "TRELLO_ERROR", "falha ao remover card no board", nil)
		return
	}
	if err := h.store.SoftDeleteCard(r.Context(), id); err != nil && !errors.Is(err, patio.ErrNotFound) {
		log.Error().Err(err).Str("card", id).Msg("patio: falha no soft delete após remoção no board")
	}

	WriteJSON(w, http.StatusOK, map[string]string{"status": "removido"})
}

type addCommentRequest struct {
	Text string `json:"text"`
}

// AddCardComment registra um comentário no card do board.
func (h *Handler) AddCardComment(w http.ResponseWriter, r *http.Request) {
	if h.board == nil {
		WriteError(w, http.StatusServiceUnavailable, "TRELLO_DISABLED", "integração trello desabilitada", nil)
		return
	}

	id := chi.URLParam(r, "id")

	var req addCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		WriteError(w, http.StatusBadRequest, "MISSING_TEXT", "texto do comentário é obrigatório", nil)
		return
	}

	if err := h.board.AddComment(r.Context(), id, req.Text); err != nil {
		WriteError(w, http.StatusBadGateway, "TRELLO_ERROR", "falha ao comentar no card", nil)
		return
	}

	WriteJSON(w, http.StatusCreated, map[string]string{"status": "comentado"})
}
