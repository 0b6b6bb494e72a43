package sync

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/doctorautoprime/oficina/internal/patio"
	"github.com/doctorautoprime/oficina/internal/trello"
)

type stubBoard struct {
	lists    []trello.List
	cards    []trello.Card
	fields   []trello.CustomField
	listsErr error
	cardsErr error
}

func (s *stubBoard) ListLists(ctx context.Context) ([]trello.List, error) {
	return s.lists, s.listsErr
}
func (s *stubBoard) ListCards(ctx context.Context) ([]trello.Card, error) {
	return s.cards, s.cardsErr
}
func (s *stubBoard) GetCard(ctx context.Context, cardID string) (*trello.Card, error) {
	for i := range s.cards {
		if s.cards[i].ID == cardID {
			return &s.cards[i], nil
		}
	}
	return nil, errors.New("card não encontrado")
}
func (s *stubBoard) ListCustomFields(ctx context.Context) ([]trello.CustomField, error) {
	return s.fields, nil
}

type stubStore struct {
	upserts   map[string]patio.Card
	failIDs   map[string]bool
	history   []patio.HistoryEntry
	deletedID string
}

func newStubStore() *stubStore {
	return &stubStore{upserts: map[string]patio.Card{}, failIDs: map[string]bool{}}
}

func (s *stubStore) UpsertCard(ctx context.Context, card patio.Card) error {
	if s.failIDs[card.ID] {
		return errors.New("falha simulada")
	}
	s.upserts[card.ID] = card
	return nil
}
func (s *stubStore) GetCard(ctx context.Context, id string) (*patio.Card, error) {
	card, ok := s.upserts[id]
	if !ok {
		return nil, patio.ErrNotFound
	}
	return &card, nil
}
func (s *stubStore) SoftDeleteCard(ctx context.Context, id string) error {
	s.deletedID = id
	return nil
}
func (s *stubStore) AppendHistory(ctx context.Context, entry patio.HistoryEntry) error {
	s.history = append(s.history, entry)
	return nil
}

func boardFixture() *stubBoard {
	return &stubBoard{
		lists: []trello.List{
			{ID: "l1", Name: "🧠Diagnóstico"},
			{ID: "l2", Name: "Em Serviço"},
			{ID: "l3", Name: "Ideias de Marketing"},
		},
		cards: []trello.Card{
			{ID: "c1", Name: "ABC1234 Civic João Silva", IDList: "l1"},
			{ID: "c2", Name: "XYZ9876 Corolla", IDList: "l2"},
			{ID: "c3", Name: "anotação solta", IDList: "l3"},
		},
	}
}

func TestSyncAll(t *testing.T) {
	board := boardFixture()
	store := newStubStore()
	engine := NewEngine(board, store, nil, zerolog.Nop())

	result, err := engine.SyncAll(context.Background())
	if err != nil {
		t.Fatalf("erro inesperado: %v", err)
	}
	if result.CardsProcessed != 2 {
		t.Errorf("esperado 2 cards processados, veio %d", result.CardsProcessed)
	}
	if len(result.Errors) != 0 {
		t.Errorf("esperado zero erros, veio %v", result.Errors)
	}
	if _, ok := store.upserts["c3"]; ok {
		t.Error("card de lista fora do fluxo não deveria ser persistido")
	}

	c1 := store.upserts["c1"]
	if c1.Status != patio.StatusDiagnostico {
		t.Errorf("status esperado %s, veio %s", patio.StatusDiagnostico, c1.Status)
	}
	if c1.Plate != "ABC1234" || c1.Vehicle != "Civic" || c1.Client != "João Silva" {
		t.Errorf("parse do nome incorreto: %+v", c1)
	}
	if store.upserts["c2"].Status != patio.StatusEmExecucao {
		t.Errorf("lista Em Serviço deveria mapear para em_execucao")
	}
}

func TestSyncAllIdempotente(t *testing.T) {
	board := boardFixture()
	store := newStubStore()
	engine := NewEngine(board, store, nil, zerolog.Nop())

	first, err := engine.SyncAll(context.Background())
	if err != nil {
		t.Fatalf("primeira rodada: %v", err)
	}
	snapshot := store.upserts["c1"]

	second, err := engine.SyncAll(context.Background())
	if err != nil {
		t.Fatalf("segunda rodada: %v", err)
	}
	if first.CardsProcessed != second.CardsProcessed {
		t.Errorf("rodadas deveriam processar a mesma quantidade: %d vs %d", first.CardsProcessed, second.CardsProcessed)
	}

	// fora o carimbo de sincronização, nada muda entre rodadas
	again := store.upserts["c1"]
	again.SyncedAt = snapshot.SyncedAt
	if again.Status != snapshot.Status || again.Plate != snapshot.Plate || again.ListName != snapshot.ListName {
		t.Errorf("segunda rodada alterou o card: %+v vs %+v", snapshot, again)
	}
}

func TestSyncAllIsolaFalhaPorCard(t *testing.T) {
	board := boardFixture()
	store := newStubStore()
	store.failIDs["c1"] = true
	engine := NewEngine(board, store, nil, zerolog.Nop())

	result, err := engine.SyncAll(context.Background())
	if err != nil {
		t.Fatalf("falha de card não deveria abortar o ciclo: %v", err)
	}
	if result.CardsProcessed != 1 {
		t.Errorf("esperado 1 processado, veio %d", result.CardsProcessed)
	}
	if len(result.Errors) != 1 || !strings.Contains(result.Errors[0], "c1") {
		t.Errorf("esperado erro do card c1, veio %v", result.Errors)
	}
	if _, ok := store.upserts["c2"]; !ok {
		t.Error("card c2 deveria ter sido persistido mesmo com c1 falhando")
	}
}

func TestSyncAllFalhaTotal(t *testing.T) {
	board := boardFixture()
	board.cardsErr = errors.New("board indisponível")
	engine := NewEngine(board, newStubStore(), nil, zerolog.Nop())

	if _, err := engine.SyncAll(context.Background()); err == nil {
		t.Fatal("indisponibilidade do board deveria virar erro")
	}
}

func TestSyncOne(t *testing.T) {
	board := boardFixture()
	store := newStubStore()
	engine := NewEngine(board, store, nil, zerolog.Nop())

	if err := engine.SyncOne(context.Background(), "c1"); err != nil {
		t.Fatalf("erro inesperado: %v", err)
	}
	if _, ok := store.upserts["c1"]; !ok {
		t.Fatal("card deveria ter sido persistido")
	}

	// lista fora do fluxo é dispensada sem erro
	if err := engine.SyncOne(context.Background(), "c3"); err != nil {
		t.Fatalf("card fora do fluxo não deveria virar erro: %v", err)
	}
	if _, ok := store.upserts["c3"]; ok {
		t.Error("card fora do fluxo não deveria ser persistido")
	}

	if err := engine.SyncOne(context.Background(), "inexistente"); err == nil {
		t.Error("card inexistente deveria virar erro")
	}
}

func TestBuildCardCustomFieldsPrecedem(t *testing.T) {
	fields := []trello.CustomField{
		{ID: "f1", Name: "Placa", Type: "text"},
		{ID: "f2", Name: "Serviço", Type: "text"},
	}
	card := trello.Card{
		ID:     "c1",
		Name:   "ABC1234 Civic João",
		IDList: "l1",
		CustomFieldItems: []trello.CustomFieldItem{
			{IDCustomField: "f1", Value: &trello.CustomFieldValue{Text: "DEF5678"}},
			{IDCustomField: "f2", Value: &trello.CustomFieldValue{Text: "Troca de embreagem"}},
		},
	}

	record, ok := buildCard(card, map[string]string{"l1": "Diagnóstico"}, fields)
	if !ok {
		t.Fatal("card deveria ser mapeável")
	}
	if record.Plate != "DEF5678" {
		t.Errorf("custom field Placa deveria prevalecer sobre o nome: %q", record.Plate)
	}
	if record.Service != "Troca de embreagem" {
		t.Errorf("serviço esperado do custom field, veio %q", record.Service)
	}
	if record.Client != "João" {
		t.Errorf("cliente do nome deveria ser mantido: %q", record.Client)
	}
}
