package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/doctorautoprime/oficina/internal/trello"
)

// ListTrelloWebhooks lista as assinaturas de webhook ativas no token.
func (h *Handler) ListTrelloWebhooks(w http.ResponseWriter, r *http.Request) {
	if h.webhooks == nil {
		WriteError(w, http.StatusServiceUnavailable, "TRELLO_DISABLED", "integração trello desabilitada", nil)
		return
	}

	hooks, err := h.webhooks.ListWebhooks(r.Context())
	if err != nil {
		WriteError(w, http.StatusBadGateway, "TRELLO_ERROR", "falha ao listar webhooks", nil)
		return
	}
	if hooks == nil {
		hooks = []trello.Webhook{}
	}

	WriteJSON(w, http.StatusOK, hooks)
}

type createWebhookRequest struct {
	CallbackURL string `json:"callback_url"`
	Description string `json:"description"`
}

// CreateTrelloWebhook registra uma nova assinatura apontando para a URL
// informada. O Trello valida a URL com um HEAD antes de confirmar.
func (h *Handler) CreateTrelloWebhook(w http.ResponseWriter, r *http.Request) {
	if h.webhooks == nil {
		WriteError(w, http.StatusServiceUnavailable, "TRELLO_DISABLED", "integração trello desabilitada", nil)
		return
	}

	var req createWebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "INVALID_BODY", "payload inválido", nil)
		return
	}
	if strings.TrimSpace(req.CallbackURL) == "" {
		WriteError(w, http.StatusBadRequest, "MISSING_CALLBACK", "callback_url é obrigatório", nil)
		return
	}

	hook, err := h.webhooks.CreateWebhook(r.Context(), req.CallbackURL, req.Description)
	if err != nil {
		WriteError(w, http.StatusBadGateway, "TRELLO_ERROR", "falha ao criar webhook", nil)
		return
	}

	WriteJSON(w, http.StatusCreated, hook)
}

// DeleteTrelloWebhook remove uma assinatura pelo id.
func (h *Handler) DeleteTrelloWebhook(w http.ResponseWriter, r *http.Request) {
	if h.webhooks == nil {
		WriteError(w, http.StatusServiceUnavailable, "TRELLO_DISABLED", "integração trello desabilitada", nil)
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.webhooks.DeleteWebhook(r.Context(), id); err != nil {
		WriteError(w, http.StatusBadGateway, "TRELLO_ERROR", "falha ao remover webhook", nil)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{"status": "removido"})
}
