package patio

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound é retornado quando nenhum registro é encontrado.
	ErrNotFound = errors.New("registro não encontrado")
)

// Card espelha um card do board do Trello mais os campos derivados pela
// sincronização. O ID é sempre o identificador externo do card.
type Card struct {
	ID               string         `json:"id"`
	Name             string         `json:"name"`
	Description      string         `json:"description"`
	ListID           string         `json:"id_list"`
	ListName         string         `json:"list_name"`
	Status           Status         `json:"status"`
	Plate            string         `json:"plate"`
	Vehicle          string         `json:"vehicle"`
	Client           string         `json:"client"`
	Service          string         `json:"service"`
	Labels           []Label        `json:"labels"`
	CustomFields     map[string]any `json:"custom_fields"`
	URL              string         `json:"url"`
	DateLastActivity *time.Time     `json:"date_last_activity"`
	LinkedLeadID     *int64         `json:"linked_lead_id,omitempty"`
	DeletedAt        *time.Time     `json:"deleted_at,omitempty"`
	SyncedAt         time.Time      `json:"synced_at"`
}

// Label é a etiqueta de um card conforme vem do board.
type Label struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// EventType classifica transições observadas sobre um card.
type EventType string

const (
	EventCreated EventType = "created"
	EventUpdated EventType = "updated"
	EventMoved   EventType = "moved"
	EventDeleted EventType = "deleted"
)

// HistoryEntry é um registro append-only de transição de card. Nunca é
// alterado nem removido; alimenta auditoria e métricas de dias por etapa.
type HistoryEntry struct {
	ID               uuid.UUID      `json:"id"`
	CardID           string         `json:"card_id"`
	EventType        EventType      `json:"event_type"`
	FromList         *string        `json:"from_list,omitempty"`
	ToList           *string        `json:"to_list,omitempty"`
	PreviousSnapshot map[string]any `json:"previous_snapshot,omitempty"`
	OccurredAt       time.Time      `json:"occurred_at"`
}

// StageDuration resume quanto tempo um card permaneceu em uma etapa.
type StageDuration struct {
	CardID    string    `json:"card_id"`
	List      string    `json:"list"`
	EnteredAt time.Time `json:"entered_at"`
	LeftAt    time.Time `json:"left_at"`
	Days      int       `json:"days"`
}

// CardFilter restringe listagens de cards do pátio.
type CardFilter struct {
	Status *Status
}
