package http

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/doctorautoprime/oficina/internal/patio"
	"github.com/doctorautoprime/oficina/internal/telegram"
)

// trelloEvent é o envelope de evento enviado pelo Trello.
type trelloEvent struct {
	Action *trelloAction `json:"action"`
}

type trelloAction struct {
	Type string           `json:"type"`
	Data trelloActionData `json:"data"`
}

type trelloActionData struct {
	Card       *trelloActionCard `json:"card"`
	List       *trelloActionList `json:"list"`
	ListBefore *trelloActionList `json:"listBefore"`
	ListAfter  *trelloActionList `json:"listAfter"`
	Old        map[string]any    `json:"old"`
}

type trelloActionCard struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	IDList string `json:"idList"`
}

type trelloActionList struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// TrelloWebhookHandshake responde à validação de assinatura do Trello, que
// faz um HEAD na URL cadastrada antes de ativar o webhook.
func (h *Handler) TrelloWebhookHandshake(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// TrelloWebhook processa eventos de card do board. O contrato com o Trello
// exige resposta de sucesso sempre que o evento foi tratado ou ignorado:
// falhas repetidas fazem o Trello desativar a assinatura, então erros de
// processamento são logados e o webhook ainda é confirmado com 200.
func (h *Handler) TrelloWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeWebhookError(w, http.StatusBadRequest, "corpo ilegível")
		return
	}

	if secret := h.cfg.Trello.WebhookSecret; secret != "" {
		signature := r.Header.Get("X-Trello-Webhook")
		if signature != "" && !validSignature(body, signature, secret) {
			log.Warn().Msg("webhook trello: assinatura inválida")
			writeWebhookError(w, http.StatusUnauthorized, "assinatura inválida")
			return
		}
	}

	var event trelloEvent
	if err := json.Unmarshal(body, &event); err != nil || event.Action == nil {
		writeWebhookError(w, http.StatusBadRequest, "payload inválido: esperado objeto com \"action\"")
		return
	}

	h.handleTrelloEvent(r.Context(), event.Action)

	writeWebhookSuccess(w)
}

func (h *Handler) handleTrelloEvent(ctx context.Context, action *trelloAction) {
	if action.Data.Card == nil || action.Data.Card.ID == "" {
		log.Debug().Str("tipo", action.Type).Msg("webhook trello: evento sem card, ignorado")
		return
	}
	cardID := action.Data.Card.ID

	switch action.Type {
	case "createCard":
		entry := patio.HistoryEntry{
			ID:        uuid.New(),
			CardID:    cardID,
			EventType: patio.EventCreated,
		}
		if action.Data.List != nil {
			entry.ToList = &action.Data.List.Name
		}
		h.appendHistory(ctx, entry)
		h.syncCard(ctx, cardID)

	case "updateCard":
		oldListID, _ := action.Data.Old["idList"].(string)
		moved := oldListID != "" && oldListID != action.Data.Card.IDList

		if moved {
			entry := patio.HistoryEntry{
				ID:        uuid.New(),
				CardID:    cardID,
				EventType: patio.EventMoved,
			}
			if action.Data.ListBefore != nil {
				entry.FromList = &action.Data.ListBefore.Name
			}
			if action.Data.ListAfter != nil {
				entry.ToList = &action.Data.ListAfter.Name
			}
			h.appendHistory(ctx, entry)
			h.syncCard(ctx, cardID)
			h.afterMove(ctx, cardID, action.Data.ListAfter)
		} else {
			entry := patio.HistoryEntry{
				ID:               uuid.New(),
				CardID:           cardID,
				EventType:        patio.EventUpdated,
				PreviousSnapshot: action.Data.Old,
			}
			h.appendHistory(ctx, entry)
			h.syncCard(ctx, cardID)
		}

	case "deleteCard":
		h.appendHistory(ctx, patio.HistoryEntry{
			ID:        uuid.New(),
			CardID:    cardID,
			EventType: patio.EventDeleted,
		})
		if err := h.store.SoftDeleteCard(ctx, cardID); err != nil && !errors.Is(err, patio.ErrNotFound) {
			log.Error().Err(err).Str("card", cardID).Msg("webhook trello: falha no soft delete")
		}

	case "addLabelToCard", "removeLabelFromCard", "updateCustomFieldItem":
		h.syncCard(ctx, cardID)

	default:
		log.Debug().Str("tipo", action.Type).Msg("webhook trello: tipo de evento ignorado")
	}
}

// afterMove dispara os efeitos colaterais de uma movimentação: avisos no
// grupo da oficina e conclusão do lead vinculado quando o carro é entregue.
func (h *Handler) afterMove(ctx context.Context, cardID string, listAfter *trelloActionList) {
	if listAfter == nil {
		return
	}
	status, ok := patio.MapListName(listAfter.Name)
	if !ok {
		return
	}

	switch status {
	case patio.StatusBOPeca:
		h.notifyMove(ctx, cardID, telegram.TypeBOPeca)
	case patio.StatusProntoRetirada:
		h.notifyMove(ctx, cardID, telegram.TypeCarroPronto)
	case patio.StatusConcluido:
		h.completeLinkedLead(ctx, cardID)
	}
}

func (h *Handler) notifyMove(ctx context.Context, cardID string, kind telegram.NotificationType) {
	if h.notifier == nil {
		return
	}

	card, err := h.store.GetCard(ctx, cardID)
	if err != nil {
		log.Warn().Err(err).Str("card", cardID).Msg("webhook trello: card indisponível para notificação")
		return
	}

	mecanico, _ := card.CustomFields["Mecânico"].(string)
	msg := telegram.Notification{
		Type:     kind,
		Plate:    card.Plate,
		Vehicle:  card.Vehicle,
		Mecanico: mecanico,
		Horario:  time.Now().Format("02/01/2006 15:04"),
	}
	if err := h.notifier.Notify(ctx, msg); err != nil {
		log.Error().Err(err).Str("card", cardID).Msg("webhook trello: falha ao notificar telegram")
	}
}

func (h *Handler) completeLinkedLead(ctx context.Context, cardID string) {
	if h.leads == nil {
		return
	}

	card, err := h.store.GetCard(ctx, cardID)
	if err != nil || card.LinkedLeadID == nil {
		return
	}
	if err := h.leads.CompleteLead(ctx, *card.LinkedLeadID); err != nil {
		log.Error().Err(err).Str("card", cardID).Int64("lead", *card.LinkedLeadID).Msg("webhook trello: falha ao concluir lead")
	}
}

func (h *Handler) appendHistory(ctx context.Context, entry patio.HistoryEntry) {
	if err := h.store.AppendHistory(ctx, entry); err != nil {
		log.Error().Err(err).Str("card", entry.CardID).Str("evento", string(entry.EventType)).Msg("webhook trello: falha ao registrar histórico")
	}
}

func (h *Handler) syncCard(ctx context.Context, cardID string) {
	if err := h.syncer.SyncOne(ctx, cardID); err != nil {
		log.Error().Err(err).Str("card", cardID).Msg("webhook trello: sincronização do card falhou")
	}
}

func validSignature(body []byte, signature, secret string) bool {
	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// writeWebhookSuccess confirma o evento no formato esperado pelos CRMs.
func writeWebhookSuccess(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": true})
}

func writeWebhookError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "error": message})
}
