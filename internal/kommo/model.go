package kommo

import (
	"time"

	"github.com/google/uuid"
)

// LeadSnapshot é a cópia local de um lead recebida via webhook, usada pelas
// visões do pátio e pelo vínculo com ordens de serviço.
type LeadSnapshot struct {
	LeadID       int64      `json:"lead_id"`
	Name         string     `json:"name"`
	StatusID     int64      `json:"status_id"`
	StatusName   string     `json:"status_name"`
	PipelineID   int64      `json:"pipeline_id"`
	Price        float64    `json:"price"`
	Phone        string     `json:"phone"`
	Plate        string     `json:"plate"`
	TrelloCardID *string    `json:"trello_card_id,omitempty"`
	SyncStatus   string     `json:"sync_status"`
	SyncError    *string    `json:"sync_error,omitempty"`
	LastSyncAt   *time.Time `json:"last_sync_at,omitempty"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// OrderMapping vincula uma ordem de serviço interna a um lead do Kommo.
// Criado quando lead e ordem são associados pela primeira vez; removido
// apenas quando o vínculo é desfeito explicitamente.
type OrderMapping struct {
	ID       uuid.UUID `json:"id"`
	OrderID  string    `json:"os_id"`
	LeadID   int64     `json:"kommo_lead_id"`
	SyncedAt time.Time `json:"synced_at"`
}

// Estados de sincronização de um lead.
const (
	SyncPending   = "pending"
	SyncLinked    = "linked"
	SyncCompleted = "completed"
	SyncFailed    = "error"
)

// StatusAgendamentoConfirmado é o estágio do pipeline que dispara a criação
// do card no board do pátio.
const StatusAgendamentoConfirmado = "Agendamento Confirmado"
