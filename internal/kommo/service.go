package kommo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/doctorautoprime/oficina/internal/patio"
	"github.com/doctorautoprime/oficina/internal/trello"
)

// CardBoard é o que o serviço precisa do board do pátio para materializar
// leads confirmados como cards.
type CardBoard interface {
	CreateCard(ctx context.Context, input trello.CreateCardInput) (*trello.Card, error)
	SetCustomFieldByName(ctx context.Context, cardID, fieldName, value string) error
}

// CardLinker grava no registro do card o lead que o originou, para que o
// fluxo de entrega saiba qual lead concluir.
type CardLinker interface {
	LinkLead(ctx context.Context, cardID string, leadID int64) error
}

// CRM é a escrita de volta no Kommo: garantir contato e gravar no lead o
// link do card criado.
type CRM interface {
	UpdateLead(ctx context.Context, leadID int64, update LeadUpdate) error
	SearchContactByPhone(ctx context.Context, phone string) (*Contact, error)
	CreateContact(ctx context.Context, contact Contact) (int64, error)
}

// Store é o contrato de persistência de leads e vínculos.
type Store interface {
	UpsertLead(ctx context.Context, lead LeadSnapshot) error
	GetLead(ctx context.Context, leadID int64) (*LeadSnapshot, error)
	SetLeadCard(ctx context.Context, leadID int64, cardID string) error
	SetSyncStatus(ctx context.Context, leadID int64, status string, syncErr *string) error
	LinkOrder(ctx context.Context, orderID string, leadID int64) (*OrderMapping, error)
	GetMappingByOrder(ctx context.Context, orderID string) (*OrderMapping, error)
	Unlink(ctx context.Context, leadID int64) error
}

// InboundLead é o formato aceito no webhook de mudança de status do Kommo.
type InboundLead struct {
	ID              int64   `json:"id"`
	Name            string  `json:"name"`
	Price           float64 `json:"price"`
	StatusID        int64   `json:"status_id"`
	PipelineID      int64   `json:"pipeline_id"`
	StatusName      string  `json:"status_name"`
	Phone           string  `json:"phone"`
	Plate           string  `json:"plate"`
	DataAgendamento string  `json:"data_agendamento"`
}

// Service mantém os leads espelhados e cria cards no board quando um
// agendamento é confirmado.
type Service struct {
	store         Store
	cards         CardLinker
	board         CardBoard
	crm           CRM
	agendadosList string
	cardFieldID   int64
	phoneFieldID  int64
	logger        zerolog.Logger
}

// NewService cria o serviço. cards, board e crm podem ser nil quando o
// vínculo reverso, a criação de cards ou a escrita de volta no CRM estão
// desabilitados. cardFieldID é o campo customizado do lead que recebe o
// link do card; phoneFieldID é o campo de telefone dos contatos. Zero
// desativa a gravação do campo correspondente.
func NewService(store Store, cards CardLinker, board CardBoard, crm CRM, agendadosList string, cardFieldID, phoneFieldID int64, logger zerolog.Logger) *Service {
	return &Service{
		store:         store,
		cards:         cards,
		board:         board,
		crm:           crm,
		agendadosList: agendadosList,
		cardFieldID:   cardFieldID,
		phoneFieldID:  phoneFieldID,
		logger:        logger,
	}
}

// ProcessLeads espelha cada lead recebido e, quando o status é "Agendamento
// Confirmado" e ainda não há card vinculado, cria o card na lista de
// agendados. Falhas por lead são coletadas sem abortar o lote.
func (s *Service) ProcessLeads(ctx context.Context, leads []InboundLead) (int, []string) {
	var errs []string
	processed := 0

	for _, inbound := range leads {
		if err := s.processLead(ctx, inbound); err != nil {
			errs = append(errs, fmt.Sprintf("lead %d: %v", inbound.ID, err))
			continue
		}
		processed++
	}

	return processed, errs
}

func (s *Service) processLead(ctx context.Context, inbound InboundLead) error {
	existing, err := s.store.GetLead(ctx, inbound.ID)
	if err != nil && !isNotFound(err) {
		return err
	}

	snapshot := LeadSnapshot{
		LeadID:     inbound.ID,
		Name:       inbound.Name,
		StatusID:   inbound.StatusID,
		StatusName: inbound.StatusName,
		PipelineID: inbound.PipelineID,
		Price:      inbound.Price,
		Phone:      inbound.Phone,
		Plate:      inbound.Plate,
		SyncStatus: SyncPending,
	}
	if existing != nil {
		snapshot.TrelloCardID = existing.TrelloCardID
		snapshot.SyncStatus = existing.SyncStatus
	}

	if err := s.store.UpsertLead(ctx, snapshot); err != nil {
		return fmt.Errorf("espelhar lead: %w", err)
	}

	if inbound.StatusName != StatusAgendamentoConfirmado {
		return nil
	}
	if snapshot.TrelloCardID != nil {
		return nil
	}
	if s.board == nil || s.agendadosList == "" {
		s.logger.Debug().Int64("lead", inbound.ID).Msg("kommo: criação de card desabilitada")
		return nil
	}

	s.ensureContact(ctx, inbound)

	card, err := s.createCardForLead(ctx, inbound)
	if err != nil {
		msg := err.Error()
		if stErr := s.store.SetSyncStatus(ctx, inbound.ID, SyncFailed, &msg); stErr != nil {
			s.logger.Error().Err(stErr).Int64("lead", inbound.ID).Msg("kommo: falha ao registrar erro de sync")
		}
		return fmt.Errorf("criar card: %w", err)
	}

	if err := s.store.SetLeadCard(ctx, inbound.ID, card.ID); err != nil {
		return fmt.Errorf("vincular card: %w", err)
	}
	if s.cards != nil {
		if err := s.cards.LinkLead(ctx, card.ID, inbound.ID); err != nil {
			s.logger.Warn().Err(err).Str("card", card.ID).Msg("kommo: vínculo reverso no card falhou")
		}
	}

	s.writeBackCardLink(ctx, inbound.ID, card.URL)

	s.logger.Info().Int64("lead", inbound.ID).Str("card", card.ID).Msg("kommo: card criado para agendamento confirmado")
	return nil
}

// ensureContact garante que o telefone do lead existe como contato no CRM.
// É melhor esforço: falha aqui não bloqueia a criação do card.
func (s *Service) ensureContact(ctx context.Context, inbound InboundLead) {
	if s.crm == nil || inbound.Phone == "" {
		return
	}

	existing, err := s.crm.SearchContactByPhone(ctx, inbound.Phone)
	if err != nil {
		s.logger.Warn().Err(err).Int64("lead", inbound.ID).Msg("kommo: busca de contato falhou")
		return
	}
	if existing != nil {
		return
	}

	// o telefone vai no campo customizado; é por ele que a busca acima encontra
	contact := Contact{Name: inbound.Name}
	if contact.Name == "" {
		contact.Name = "Cliente"
	}
	if s.phoneFieldID != 0 {
		contact.CustomFieldValues = []CustomFieldValue{FieldValue(s.phoneFieldID, inbound.Phone)}
	}

	if _, err := s.crm.CreateContact(ctx, contact); err != nil {
		s.logger.Warn().Err(err).Int64("lead", inbound.ID).Msg("kommo: criação de contato falhou")
	}
}

// writeBackCardLink grava o link do card no campo customizado do lead, para
// que a equipe comercial enxergue o andamento direto no CRM.
func (s *Service) writeBackCardLink(ctx context.Context, leadID int64, cardURL string) {
	if s.crm == nil || s.cardFieldID == 0 || cardURL == "" {
		return
	}

	update := LeadUpdate{CustomFieldValues: []CustomFieldValue{FieldValue(s.cardFieldID, cardURL)}}
	if err := s.crm.UpdateLead(ctx, leadID, update); err != nil {
		s.logger.Warn().Err(err).Int64("lead", leadID).Msg("kommo: escrita do link do card falhou")
	}
}

func (s *Service) createCardForLead(ctx context.Context, inbound InboundLead) (*trello.Card, error) {
	name := cardNameForLead(inbound)

	card, err := s.board.CreateCard(ctx, trello.CreateCardInput{
		Name:        name,
		Description: fmt.Sprintf("Lead Kommo #%d\nTelefone: %s", inbound.ID, inbound.Phone),
		ListID:      s.agendadosList,
	})
	if err != nil {
		return nil, err
	}

	if inbound.DataAgendamento != "" {
		if err := s.board.SetCustomFieldByName(ctx, card.ID, "Data de Entrada", inbound.DataAgendamento); err != nil {
			s.logger.Warn().Err(err).Str("card", card.ID).Msg("kommo: falha ao gravar data de entrada")
		}
	}

	return card, nil
}

// CompleteLead marca o lead como concluído quando o veículo é entregue.
func (s *Service) CompleteLead(ctx context.Context, leadID int64) error {
	return s.store.SetSyncStatus(ctx, leadID, SyncCompleted, nil)
}

// LinkOrder associa uma ordem de serviço interna a um lead.
func (s *Service) LinkOrder(ctx context.Context, orderID string, leadID int64) (*OrderMapping, error) {
	if strings.TrimSpace(orderID) == "" {
		return nil, fmt.Errorf("ordem de serviço obrigatória")
	}
	return s.store.LinkOrder(ctx, orderID, leadID)
}

// Unlink desfaz o vínculo de um lead removido no CRM.
func (s *Service) Unlink(ctx context.Context, leadID int64) error {
	return s.store.Unlink(ctx, leadID)
}

// cardNameForLead monta o nome do card seguindo a convenção
// "PLACA VEÍCULO CLIENTE" consumida pelo parser do pátio.
func cardNameForLead(inbound InboundLead) string {
	parts := []string{}
	if inbound.Plate != "" {
		parts = append(parts, strings.ToUpper(inbound.Plate))
	}
	if inbound.Name != "" {
		parts = append(parts, inbound.Name)
	}
	if len(parts) == 0 {
		parts = append(parts, fmt.Sprintf("Lead %d", inbound.ID))
	}
	return strings.Join(parts, " ")
}

func isNotFound(err error) bool {
	return errors.Is(err, patio.ErrNotFound)
}
