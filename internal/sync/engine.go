package sync

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/doctorautoprime/oficina/internal/patio"
	"github.com/doctorautoprime/oficina/internal/trello"
)

// Board é a visão que o motor de sincronização tem do CRM externo.
type Board interface {
	ListLists(ctx context.Context) ([]trello.List, error)
	ListCards(ctx context.Context) ([]trello.Card, error)
	GetCard(ctx context.Context, cardID string) (*trello.Card, error)
	ListCustomFields(ctx context.Context) ([]trello.CustomField, error)
}

// Store é o contrato de persistência consumido pelo motor. O motor é o único
// dono das escritas em cards e histórico.
type Store interface {
	UpsertCard(ctx context.Context, card patio.Card) error
	GetCard(ctx context.Context, id string) (*patio.Card, error)
	SoftDeleteCard(ctx context.Context, id string) error
	AppendHistory(ctx context.Context, entry patio.HistoryEntry) error
}

// Result agrega o desfecho de um ciclo de sincronização. Falhas por card não
// abortam o lote; só indisponibilidade total do board vira erro.
type Result struct {
	CardsProcessed int       `json:"cards_processed"`
	Errors         []string  `json:"errors"`
	FinishedAt     time.Time `json:"finished_at"`
}

// Engine reconcilia o board do Trello com o armazenamento do pátio.
type Engine struct {
	board  Board
	store  Store
	guard  *Guard
	logger zerolog.Logger
}

// NewEngine cria o motor. guard pode ser nil quando não há supressão de
// sincronizações concorrentes por card.
func NewEngine(board Board, store Store, guard *Guard, logger zerolog.Logger) *Engine {
	return &Engine{board: board, store: store, guard: guard, logger: logger}
}

// SyncAll busca listas e cards do board em paralelo e faz upsert de cada
// card mapeável. Cards em listas fora do fluxo do pátio são pulados sem
// erro. Falhas por card são acumuladas em Result.Errors.
func (e *Engine) SyncAll(ctx context.Context) (Result, error) {
	var (
		lists    []trello.List
		cards    []trello.Card
		fields   []trello.CustomField
		listsErr error
		cardsErr error
		wg       sync.WaitGroup
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		lists, listsErr = e.board.ListLists(ctx)
		if listsErr == nil {
			// custom fields raramente mudam; falha aqui não derruba o ciclo
			var err error
			fields, err = e.board.ListCustomFields(ctx)
			if err != nil {
				e.logger.Warn().Err(err).Msg("sync: custom fields indisponíveis")
			}
		}
	}()
	go func() {
		defer wg.Done()
		cards, cardsErr = e.board.ListCards(ctx)
	}()
	wg.Wait()

	if listsErr != nil {
		return Result{}, fmt.Errorf("buscar listas: %w", listsErr)
	}
	if cardsErr != nil {
		return Result{}, fmt.Errorf("buscar cards: %w", cardsErr)
	}

	listNames := make(map[string]string, len(lists))
	for _, list := range lists {
		listNames[list.ID] = list.Name
	}

	result := Result{Errors: []string{}}
	for _, card := range cards {
		record, ok := buildCard(card, listNames, fields)
		if !ok {
			continue
		}
		if err := e.store.UpsertCard(ctx, record); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("card %s: %v", card.ID, err))
			continue
		}
		result.CardsProcessed++
	}

	result.FinishedAt = time.Now()
	e.logger.Info().
		Int("cards", result.CardsProcessed).
		Int("erros", len(result.Errors)).
		Msg("sync: ciclo concluído")

	return result, nil
}

// SyncOne sincroniza um único card, usado pelo handler de webhooks para não
// pagar o custo de uma varredura completa. Quando outro gatilho já está
// sincronizando o mesmo card, a chamada é dispensada.
func (e *Engine) SyncOne(ctx context.Context, cardID string) error {
	if e.guard != nil {
		ok := e.guard.TryAcquire(ctx, cardID)
		if !ok {
			e.logger.Debug().Str("card", cardID).Msg("sync: card já em sincronização")
			return nil
		}
		defer e.guard.Release(ctx, cardID)
	}

	lists, err := e.board.ListLists(ctx)
	if err != nil {
		return fmt.Errorf("buscar listas: %w", err)
	}

	card, err := e.board.GetCard(ctx, cardID)
	if err != nil {
		return fmt.Errorf("buscar card %s: %w", cardID, err)
	}

	fields, err := e.board.ListCustomFields(ctx)
	if err != nil {
		e.logger.Warn().Err(err).Msg("sync: custom fields indisponíveis")
	}

	listNames := make(map[string]string, len(lists))
	for _, list := range lists {
		listNames[list.ID] = list.Name
	}

	record, ok := buildCard(*card, listNames, fields)
	if !ok {
		e.logger.Debug().Str("card", cardID).Str("lista", listNames[card.IDList]).Msg("sync: lista fora do fluxo, card ignorado")
		return nil
	}

	return e.store.UpsertCard(ctx, record)
}

// buildCard converte o card do board no registro persistido: resolve a etapa
// pelo nome da lista, quebra o nome em placa/veículo/cliente e achata os
// custom fields. ok=false quando a lista não pertence ao fluxo do pátio.
func buildCard(card trello.Card, listNames map[string]string, fields []trello.CustomField) (patio.Card, bool) {
	listName := listNames[card.IDList]
	status, ok := patio.MapListName(listName)
	if !ok {
		return patio.Card{}, false
	}

	parsed := patio.ParseCardName(card.Name)
	custom := flattenCustomFields(card.CustomFieldItems, fields)

	record := patio.Card{
		ID:           card.ID,
		Name:         card.Name,
		Description:  card.Desc,
		ListID:       card.IDList,
		ListName:     listName,
		Status:       status,
		Plate:        parsed.Plate,
		Vehicle:      parsed.Vehicle,
		Client:       parsed.Client,
		CustomFields: custom,
		URL:          card.URL,
		SyncedAt:     time.Now(),
	}

	// custom fields preenchidos no board têm precedência sobre o parse do nome
	if v, ok := stringField(custom, "Placa"); ok {
		record.Plate = v
	}
	if v, ok := stringField(custom, "Modelo"); ok {
		record.Vehicle = v
	}
	if v, ok := stringField(custom, "Cliente"); ok {
		record.Client = v
	}
	if v, ok := stringField(custom, "Serviço"); ok {
		record.Service = v
	}

	for _, label := range card.Labels {
		record.Labels = append(record.Labels, patio.Label{Name: label.Name, Color: label.Color})
	}

	if card.DateLastActivity != "" {
		if ts, err := time.Parse(time.RFC3339, card.DateLastActivity); err == nil {
			record.DateLastActivity = &ts
		}
	}

	return record, true
}

// flattenCustomFields resolve cada item para um par nome→valor usando as
// definições do board; opções de dropdown viram o texto da opção.
func flattenCustomFields(items []trello.CustomFieldItem, fields []trello.CustomField) map[string]any {
	result := map[string]any{}
	if len(items) == 0 || len(fields) == 0 {
		return result
	}

	byID := make(map[string]trello.CustomField, len(fields))
	for _, field := range fields {
		byID[field.ID] = field
	}

	for _, item := range items {
		field, ok := byID[item.IDCustomField]
		if !ok {
			continue
		}

		var value any
		if item.IDValue != "" {
			for _, opt := range field.Options {
				if opt.ID == item.IDValue {
					value = opt.Value.Text
					break
				}
			}
		} else if item.Value != nil {
			switch {
			case item.Value.Text != "":
				value = item.Value.Text
			case item.Value.Date != "":
				value = item.Value.Date
			case item.Value.Number != "":
				value = item.Value.Number
			}
		}

		if value != nil {
			result[field.Name] = value
		}
	}

	return result
}

func stringField(custom map[string]any, name string) (string, bool) {
	raw, ok := custom[name]
	if !ok {
		return "", false
	}
	s, ok := raw.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", false
	}
	return s, true
}
