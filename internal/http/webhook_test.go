package http

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/doctorautoprime/oficina/internal/config"
	"github.com/doctorautoprime/oficina/internal/kommo"
	"github.com/doctorautoprime/oficina/internal/patio"
	"github.com/doctorautoprime/oficina/internal/sync"
	"github.com/doctorautoprime/oficina/internal/telegram"
)

type stubSyncer struct {
	synced  []string
	syncErr error
}

func (s *stubSyncer) SyncAll(ctx context.Context) (sync.Result, error) {
	return sync.Result{CardsProcessed: len(s.synced)}, nil
}
func (s *stubSyncer) SyncOne(ctx context.Context, cardID string) error {
	s.synced = append(s.synced, cardID)
	return s.syncErr
}

type stubStore struct {
	cards   map[string]patio.Card
	history []patio.HistoryEntry
	deleted []string
}

func newStubStore() *stubStore {
	return &stubStore{cards: map[string]patio.Card{}}
}

func (s *stubStore) GetCard(ctx context.Context, id string) (*patio.Card, error) {
	card, ok := s.cards[id]
	if !ok {
		return nil, patio.ErrNotFound
	}
	return &card, nil
}
func (s *stubStore) ListCards(ctx context.Context, filter patio.CardFilter) ([]patio.Card, error) {
	var out []patio.Card
	for _, card := range s.cards {
		if filter.Status != nil && card.Status != *filter.Status {
			continue
		}
		out = append(out, card)
	}
	return out, nil
}
func (s *stubStore) SoftDeleteCard(ctx context.Context, id string) error {
	if _, ok := s.cards[id]; !ok {
		return patio.ErrNotFound
	}
	s.deleted = append(s.deleted, id)
	return nil
}
func (s *stubStore) AppendHistory(ctx context.Context, entry patio.HistoryEntry) error {
	s.history = append(s.history, entry)
	return nil
}
func (s *stubStore) ListHistory(ctx context.Context, cardID string) ([]patio.HistoryEntry, error) {
	var out []patio.HistoryEntry
	for _, entry := range s.history {
		if entry.CardID == cardID {
			out = append(out, entry)
		}
	}
	return out, nil
}
func (s *stubStore) StageDurations(ctx context.Context, cardID string) ([]patio.StageDuration, error) {
	return nil, nil
}

type stubNotifier struct {
	sent []telegram.Notification
}

func (s *stubNotifier) Notify(ctx context.Context, msg telegram.Notification) error {
	s.sent = append(s.sent, msg)
	return nil
}

type stubLeads struct {
	received  []kommo.InboundLead
	completed []int64
	errs      []string
}

func (s *stubLeads) ProcessLeads(ctx context.Context, leads []kommo.InboundLead) (int, []string) {
	s.received = append(s.received, leads...)
	return len(leads) - len(s.errs), s.errs
}
func (s *stubLeads) CompleteLead(ctx context.Context, leadID int64) error {
	s.completed = append(s.completed, leadID)
	return nil
}
func (s *stubLeads) LinkOrder(ctx context.Context, orderID string, leadID int64) (*kommo.OrderMapping, error) {
	return &kommo.OrderMapping{OrderID: orderID, LeadID: leadID}, nil
}
func (s *stubLeads) Unlink(ctx context.Context, leadID int64) error { return nil }

func testConfig() *config.Config {
	return &config.Config{
		RateLimitPublic: config.RateLimitConfig{RequestsPerSecond: 100, Burst: 100},
	}
}

func newTestHandler(store *stubStore, syncer *stubSyncer, leads LeadService) *Handler {
	return NewHandler(testConfig(), nil, store, syncer, nil, leads, nil, nil, nil)
}

func postJSON(t *testing.T, router http.Handler, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestTrelloWebhookHandshake(t *testing.T) {
	handler := newTestHandler(newStubStore(), &stubSyncer{}, nil)
	router := handler.Routes()

	req := httptest.NewRequest(http.MethodHead, "/webhook/trello", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("esperado 200, veio %d", rec.Code)
	}
}

func TestTrelloWebhookSemAction(t *testing.T) {
	handler := newTestHandler(newStubStore(), &stubSyncer{}, nil)
	router := handler.Routes()

	rec := postJSON(t, router, "/webhook/trello", map[string]any{"model": map[string]any{"id": "b1"}})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("payload sem action deveria devolver 400, veio %d", rec.Code)
	}
}

func TestTrelloWebhookCreateCard(t *testing.T) {
	store := newStubStore()
	syncer := &stubSyncer{}
	handler := newTestHandler(store, syncer, nil)
	router := handler.Routes()

	rec := postJSON(t, router, "/webhook/trello", map[string]any{
		"action": map[string]any{
			"type": "createCard",
			"data": map[string]any{
				"card": map[string]any{"id": "c1", "name": "ABC1234 Civic"},
				"list": map[string]any{"id": "l1", "name": "🧠Diagnóstico"},
			},
		},
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("esperado 200, veio %d", rec.Code)
	}
	if len(store.history) != 1 {
		t.Fatalf("esperado 1 registro de histórico, veio %d", len(store.history))
	}
	entry := store.history[0]
	if entry.EventType != patio.EventCreated || entry.CardID != "c1" {
		t.Errorf("histórico inesperado: %+v", entry)
	}
	if entry.ToList == nil || *entry.ToList != "🧠Diagnóstico" {
		t.Errorf("to_list deveria ser a lista de criação: %+v", entry.ToList)
	}
	if len(syncer.synced) != 1 || syncer.synced[0] != "c1" {
		t.Errorf("card deveria ter sido sincronizado: %v", syncer.synced)
	}
}

func TestTrelloWebhookDetectaMovimentacao(t *testing.T) {
	store := newStubStore()
	syncer := &stubSyncer{}
	handler := newTestHandler(store, syncer, nil)
	router := handler.Routes()

	rec := postJSON(t, router, "/webhook/trello", map[string]any{
		"action": map[string]any{
			"type": "updateCard",
			"data": map[string]any{
				"card":       map[string]any{"id": "c1", "name": "ABC1234 Civic", "idList": "l2"},
				"old":        map[string]any{"idList": "l1"},
				"listBefore": map[string]any{"id": "l1", "name": "Diagnóstico"},
				"listAfter":  map[string]any{"id": "l2", "name": "Em Serviço"},
			},
		},
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("esperado 200, veio %d", rec.Code)
	}
	if len(store.history) != 1 {
		t.Fatalf("esperado exatamente 1 registro, veio %d", len(store.history))
	}
	entry := store.history[0]
	if entry.EventType != patio.EventMoved {
		t.Errorf("evento esperado moved, veio %s", entry.EventType)
	}
	if entry.FromList == nil || *entry.FromList != "Diagnóstico" {
		t.Errorf("from_list inesperado: %+v", entry.FromList)
	}
	if entry.ToList == nil || *entry.ToList != "Em Serviço" {
		t.Errorf("to_list inesperado: %+v", entry.ToList)
	}
}

func TestTrelloWebhookMovimentacaoNotificaBOPeca(t *testing.T) {
	store := newStubStore()
	store.cards["c1"] = patio.Card{
		ID:           "c1",
		Plate:        "ABC1234",
		Vehicle:      "Civic",
		CustomFields: map[string]any{"Mecânico": "Carlos"},
	}
	notifier := &stubNotifier{}
	handler := NewHandler(testConfig(), nil, store, &stubSyncer{}, nil, nil, notifier, nil, nil)
	router := handler.Routes()

	rec := postJSON(t, router, "/webhook/trello", map[string]any{
		"action": map[string]any{
			"type": "updateCard",
			"data": map[string]any{
				"card":       map[string]any{"id": "c1", "name": "ABC1234 Civic", "idList": "l4"},
				"old":        map[string]any{"idList": "l2"},
				"listBefore": map[string]any{"id": "l2", "name": "Em Serviço"},
				"listAfter":  map[string]any{"id": "l4", "name": "B.O Peça"},
			},
		},
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("esperado 200, veio %d", rec.Code)
	}
	if len(notifier.sent) != 1 {
		t.Fatalf("movimentação para B.O Peça deveria notificar, veio %d avisos", len(notifier.sent))
	}
	msg := notifier.sent[0]
	if msg.Type != telegram.TypeBOPeca {
		t.Errorf("tipo de aviso esperado bo_peca, veio %s", msg.Type)
	}
	if msg.Plate != "ABC1234" || msg.Vehicle != "Civic" || msg.Mecanico != "Carlos" {
		t.Errorf("aviso deveria carregar os dados do card: %+v", msg)
	}
}

func TestTrelloWebhookEntregaConcluiLead(t *testing.T) {
	leadID := int64(42)
	store := newStubStore()
	store.cards["c1"] = patio.Card{ID: "c1", Plate: "ABC1234", LinkedLeadID: &leadID}
	store.cards["c2"] = patio.Card{ID: "c2", Plate: "XYZ9876"}
	leads := &stubLeads{}
	handler := newTestHandler(store, &stubSyncer{}, leads)
	router := handler.Routes()

	moveToEntregue := func(cardID string) *httptest.ResponseRecorder {
		return postJSON(t, router, "/webhook/trello", map[string]any{
			"action": map[string]any{
				"type": "updateCard",
				"data": map[string]any{
					"card":      map[string]any{"id": cardID, "idList": "l9"},
					"old":       map[string]any{"idList": "l5"},
					"listAfter": map[string]any{"id": "l9", "name": "🙏🏻Entregue"},
				},
			},
		})
	}

	if rec := moveToEntregue("c1"); rec.Code != http.StatusOK {
		t.Fatalf("esperado 200, veio %d", rec.Code)
	}
	if len(leads.completed) != 1 || leads.completed[0] != 42 {
		t.Fatalf("lead vinculado deveria ter sido concluído: %v", leads.completed)
	}

	// card sem lead vinculado entrega sem efeito no CRM
	if rec := moveToEntregue("c2"); rec.Code != http.StatusOK {
		t.Fatalf("esperado 200, veio %d", rec.Code)
	}
	if len(leads.completed) != 1 {
		t.Errorf("card sem lead não deveria concluir nada: %v", leads.completed)
	}
}

func TestTrelloWebhookUpdateSemMovimentacao(t *testing.T) {
	store := newStubStore()
	handler := newTestHandler(store, &stubSyncer{}, nil)
	router := handler.Routes()

	rec := postJSON(t, router, "/webhook/trello", map[string]any{
		"action": map[string]any{
			"type": "updateCard",
			"data": map[string]any{
				"card": map[string]any{"id": "c1", "name": "ABC1234 Civic novo", "idList": "l1"},
				"old":  map[string]any{"name": "ABC1234 Civic"},
			},
		},
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("esperado 200, veio %d", rec.Code)
	}
	if len(store.history) != 1 || store.history[0].EventType != patio.EventUpdated {
		t.Fatalf("esperado 1 evento updated, veio %+v", store.history)
	}
	if store.history[0].PreviousSnapshot["name"] != "ABC1234 Civic" {
		t.Errorf("snapshot anterior deveria carregar o nome antigo: %+v", store.history[0].PreviousSnapshot)
	}
}

func TestTrelloWebhookDeleteCard(t *testing.T) {
	store := newStubStore()
	store.cards["c1"] = patio.Card{ID: "c1"}
	handler := newTestHandler(store, &stubSyncer{}, nil)
	router := handler.Routes()

	rec := postJSON(t, router, "/webhook/trello", map[string]any{
		"action": map[string]any{
			"type": "deleteCard",
			"data": map[string]any{"card": map[string]any{"id": "c1"}},
		},
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("esperado 200, veio %d", rec.Code)
	}
	if len(store.deleted) != 1 || store.deleted[0] != "c1" {
		t.Errorf("card deveria ter sido marcado como removido: %v", store.deleted)
	}
	if len(store.history) != 1 || store.history[0].EventType != patio.EventDeleted {
		t.Errorf("esperado evento deleted, veio %+v", store.history)
	}
}

func TestTrelloWebhookEventoDesconhecido(t *testing.T) {
	store := newStubStore()
	syncer := &stubSyncer{}
	handler := newTestHandler(store, syncer, nil)
	router := handler.Routes()

	rec := postJSON(t, router, "/webhook/trello", map[string]any{
		"action": map[string]any{
			"type": "addMemberToCard",
			"data": map[string]any{"card": map[string]any{"id": "c1"}},
		},
	})

	if rec.Code != http.StatusOK {
		t.Errorf("evento desconhecido deveria ser confirmado com 200, veio %d", rec.Code)
	}
	if len(store.history) != 0 || len(syncer.synced) != 0 {
		t.Error("evento desconhecido não deveria gerar efeitos")
	}
}

func TestTrelloWebhookFalhaDeSyncAindaConfirma(t *testing.T) {
	store := newStubStore()
	syncer := &stubSyncer{syncErr: errors.New("board fora do ar")}
	handler := newTestHandler(store, syncer, nil)
	router := handler.Routes()

	rec := postJSON(t, router, "/webhook/trello", map[string]any{
		"action": map[string]any{
			"type": "updateCustomFieldItem",
			"data": map[string]any{"card": map[string]any{"id": "c1"}},
		},
	})

	if rec.Code != http.StatusOK {
		t.Errorf("falha interna não deveria vazar para o webhook, veio %d", rec.Code)
	}
}

func TestTrelloWebhookAssinatura(t *testing.T) {
	cfg := testConfig()
	cfg.Trello.WebhookSecret = "segredo"
	store := newStubStore()
	handler := NewHandler(cfg, nil, store, &stubSyncer{}, nil, nil, nil, nil, nil)
	router := handler.Routes()

	payload := []byte(`{"action":{"type":"deleteCard","data":{"card":{"id":"c1"}}}}`)

	req := httptest.NewRequest(http.MethodPost, "/webhook/trello", bytes.NewReader(payload))
	req.Header.Set("X-Trello-Webhook", "assinatura-errada")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("assinatura inválida deveria devolver 401, veio %d", rec.Code)
	}

	mac := hmac.New(sha1.New, []byte("segredo"))
	mac.Write(payload)
	valid := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	req = httptest.NewRequest(http.MethodPost, "/webhook/trello", bytes.NewReader(payload))
	req.Header.Set("X-Trello-Webhook", valid)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("assinatura válida deveria devolver 200, veio %d", rec.Code)
	}
}

func TestKommoWebhook(t *testing.T) {
	leads := &stubLeads{}
	handler := newTestHandler(newStubStore(), &stubSyncer{}, leads)
	router := handler.Routes()

	rec := postJSON(t, router, "/webhook/kommo", map[string]any{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("payload sem leads deveria devolver 400, veio %d", rec.Code)
	}

	rec = postJSON(t, router, "/webhook/kommo", map[string]any{
		"leads": []map[string]any{
			{"id": 10, "name": "João", "status_name": "Agendamento Confirmado", "plate": "ABC1234"},
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("esperado 200, veio %d", rec.Code)
	}
	if len(leads.received) != 1 || leads.received[0].ID != 10 {
		t.Errorf("lead deveria ter sido processado: %+v", leads.received)
	}
}

func TestLinkOrder(t *testing.T) {
	handler := newTestHandler(newStubStore(), &stubSyncer{}, &stubLeads{})
	router := handler.Routes()

	rec := postJSON(t, router, "/kommo/orders", map[string]any{"order_id": "OS-123", "lead_id": 10})
	if rec.Code != http.StatusCreated {
		t.Fatalf("esperado 201, veio %d", rec.Code)
	}

	rec = postJSON(t, router, "/kommo/orders", map[string]any{"order_id": ""})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("payload incompleto deveria devolver 400, veio %d", rec.Code)
	}
}

func TestKommoWebhookDesabilitado(t *testing.T) {
	handler := newTestHandler(newStubStore(), &stubSyncer{}, nil)
	router := handler.Routes()

	rec := postJSON(t, router, "/webhook/kommo", map[string]any{"leads": []map[string]any{{"id": 1}}})
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("integração desabilitada deveria devolver 503, veio %d", rec.Code)
	}
}
