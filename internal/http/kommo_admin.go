package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

type linkOrderRequest struct {
	OrderID string `json:"order_id"`
	LeadID  int64  `json:"lead_id"`
}

// LinkOrder associa uma ordem de serviço interna a um lead do CRM.
func (h *Handler) LinkOrder(w http.ResponseWriter, r *http.Request) {
	if h.leads == nil {
		WriteError(w, http.StatusServiceUnavailable, "KOMMO_DISABLED", "integração kommo desabilitada", nil)
		return
	}

	var req linkOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "INVALID_BODY", "payload inválido", nil)
		return
	}
	if req.OrderID == "" || req.LeadID == 0 {
		WriteError(w, http.StatusBadRequest, "MISSING_FIELDS", "order_id e lead_id são obrigatórios", nil)
		return
	}

	mapping, err := h.leads.LinkOrder(r.Context(), req.OrderID, req.LeadID)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "LINK_FAILED", "falha ao vincular ordem de serviço", nil)
		return
	}

	WriteJSON(w, http.StatusCreated, mapping)
}

// UnlinkLead desfaz o vínculo de um lead removido no CRM.
func (h *Handler) UnlinkLead(w http.ResponseWriter, r *http.Request) {
	if h.leads == nil {
		WriteError(w, http.StatusServiceUnavailable, "KOMMO_DISABLED", "integração kommo desabilitada", nil)
		return
	}

	leadID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || leadID <= 0 {
		WriteError(w, http.StatusBadRequest, "INVALID_LEAD", "id de lead inválido", nil)
		return
	}

	if err := h.leads.Unlink(r.Context(), leadID); err != nil {
		WriteError(w, http.StatusInternalServerError, "UNLINK_FAILED", "falha ao desvincular lead", nil)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{"status": "desvinculado"})
}
