package http

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/doctorautoprime/oficina/internal/kommo"
)

type kommoWebhookPayload struct {
	Leads []kommo.InboundLead `json:"leads"`
}

// KommoWebhook recebe mudanças de status de leads do CRM. Assim como no
// webhook do Trello, falhas de lead individual não derrubam a requisição:
// são devolvidas no corpo e logadas, e o CRM recebe 200.
func (h *Handler) KommoWebhook(w http.ResponseWriter, r *http.Request) {
	if h.leads == nil {
		writeWebhookError(w, http.StatusServiceUnavailable, "integração kommo desabilitada")
		return
	}

	var payload kommoWebhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeWebhookError(w, http.StatusBadRequest, "payload inválido: esperado objeto com \"leads\"")
		return
	}
	if len(payload.Leads) == 0 {
		writeWebhookError(w, http.StatusBadRequest, "payload sem leads")
		return
	}

	processed, errs := h.leads.ProcessLeads(r.Context(), payload.Leads)
	if len(errs) > 0 {
		log.Warn().Int("processados", processed).Strs("erros", errs).Msg("webhook kommo: leads com falha")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success":   true,
		"processed": processed,
		"errors":    errs,
	})
}
