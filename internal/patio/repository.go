package patio

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provê acesso ao armazenamento de cards e histórico do pátio.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository cria um novo repositório do pátio.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const cardColumns = `id, name, description, id_list, list_name, status, plate, vehicle, client, service, labels, custom_fields, url, date_last_activity, linked_lead_id, deleted_at, synced_at`

// UpsertCard insere ou substitui integralmente um card, chaveado pelo id
// externo. A substituição completa mantém a operação idempotente por
// conteúdo: reexecutar com os mesmos dados só avança synced_at. O vínculo
// de lead vem do fluxo do CRM, não da sincronização, então é preservado; um
// card visto no board volta a ficar ativo.
func (r *Repository) UpsertCard(ctx context.Context, card Card) error {
	const query = `
        INSERT INTO trello_cards (id, name, description, id_list, list_name, status, plate, vehicle, client, service, labels, custom_fields, url, date_last_activity, linked_lead_id, synced_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
        ON CONFLICT (id) DO UPDATE SET
            name = EXCLUDED.name,
            description = EXCLUDED.description,
            id_list = EXCLUDED.id_list,
            list_name = EXCLUDED.list_name,
            status = EXCLUDED.status,
            plate = EXCLUDED.plate,
            vehicle = EXCLUDED.vehicle,
            client = EXCLUDED.client,
            service = EXCLUDED.service,
            labels = EXCLUDED.labels,
            custom_fields = EXCLUDED.custom_fields,
            url = EXCLUDED.url,
            date_last_activity = EXCLUDED.date_last_activity,
            linked_lead_id = COALESCE(EXCLUDED.linked_lead_id, trello_cards.linked_lead_id),
            deleted_at = NULL,
            synced_at = EXCLUDED.synced_at
    `

	labelsJSON, err := json.Marshal(card.Labels)
	if err != nil {
		return err
	}
	fieldsJSON, err := jsonMarshalMap(card.CustomFields)
	if err != nil {
		return err
	}

	syncedAt := card.SyncedAt
	if syncedAt.IsZero() {
		syncedAt = time.Now()
	}

	_, err = r.pool.Exec(ctx, query,
		card.ID,
		card.Name,
		card.Description,
		card.ListID,
		card.ListName,
		string(card.Status),
		card.Plate,
		card.Vehicle,
		card.Client,
		card.Service,
		labelsJSON,
		fieldsJSON,
		card.URL,
		card.DateLastActivity,
		card.LinkedLeadID,
		syncedAt,
	)
	return err
}

// GetCard busca um card pelo identificador externo.
func (r *Repository) GetCard(ctx context.Context, id string) (*Card, error) {
	const query = `
        SELECT ` + cardColumns + `
        FROM trello_cards
        WHERE id = $1
    `

	row := r.pool.QueryRow(ctx, query, id)
	return scanCard(row)
}

// ListCards devolve cards não removidos, opcionalmente filtrados por etapa.
func (r *Repository) ListCards(ctx context.Context, filter CardFilter) ([]Card, error) {
	query := `
        SELECT ` + cardColumns + `
        FROM trello_cards
        WHERE deleted_at IS NULL
    `
	args := []any{}
	if filter.Status != nil {
		query += ` AND status = $1`
		args = append(args, string(*filter.Status))
	}
	query += ` ORDER BY synced_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cards []Card
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		cards = append(cards, *c)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return cards, nil
}

// SoftDeleteCard marca o card como removido preservando histórico.
func (r *Repository) SoftDeleteCard(ctx context.Context, id string) error {
	const query = `
        UPDATE trello_cards
        SET deleted_at = now()
        WHERE id = $1 AND deleted_at IS NULL
    `

	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// LinkLead associa um lead do Kommo ao card.
func (r *Repository) LinkLead(ctx context.Context, cardID string, leadID int64) error {
	const query = `
        UPDATE trello_cards
        SET linked_lead_id = $2
        WHERE id = $1
    `

	tag, err := r.pool.Exec(ctx, query, cardID, leadID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendHistory registra uma transição observada. O log é append-only.
func (r *Repository) AppendHistory(ctx context.Context, entry HistoryEntry) error {
	const query = `
        INSERT INTO trello_card_history (id, card_id, event_type, from_list, to_list, previous_snapshot, occurred_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `

	snapshotJSON, err := jsonMarshalMap(entry.PreviousSnapshot)
	if err != nil {
		return err
	}

	occurredAt := entry.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}

	_, err = r.pool.Exec(ctx, query,
		entry.ID,
		entry.CardID,
		string(entry.EventType),
		entry.FromList,
		entry.ToList,
		snapshotJSON,
		occurredAt,
	)
	return err
}

// ListHistory devolve o histórico de um card, do mais recente ao mais antigo.
func (r *Repository) ListHistory(ctx context.Context, cardID string) ([]HistoryEntry, error) {
	const query = `
        SELECT id, card_id, event_type, from_list, to_list, previous_snapshot, occurred_at
        FROM trello_card_history
        WHERE card_id = $1
        ORDER BY occurred_at DESC
    `

	rows, err := r.pool.Query(ctx, query, cardID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var (
			e           HistoryEntry
			eventType   string
			snapshotRaw []byte
		)
		if err := rows.Scan(&e.ID, &e.CardID, &eventType, &e.FromList, &e.ToList, &snapshotRaw, &e.OccurredAt); err != nil {
			return nil, err
		}
		e.EventType = EventType(eventType)
		snapshot, err := decodeJSONMap(snapshotRaw)
		if err != nil {
			return nil, err
		}
		if len(snapshot) > 0 {
			e.PreviousSnapshot = snapshot
		}
		entries = append(entries, e)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return entries, nil
}

// StageDurations calcula quantos dias o card passou em cada etapa a partir
// dos eventos de movimentação do histórico.
func (r *Repository) StageDurations(ctx context.Context, cardID string) ([]StageDuration, error) {
	const query = `
        SELECT to_list, occurred_at,
               LEAD(occurred_at) OVER (ORDER BY occurred_at) AS left_at
        FROM trello_card_history
        WHERE card_id = $1 AND event_type IN ('created', 'moved') AND to_list IS NOT NULL
        ORDER BY occurred_at
    `

	rows, err := r.pool.Query(ctx, query, cardID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	now := time.Now()
	var durations []StageDuration
	for rows.Next() {
		var (
			list      string
			enteredAt time.Time
			leftAt    *time.Time
		)
		if err := rows.Scan(&list, &enteredAt, &leftAt); err != nil {
			return nil, err
		}

		end := now
		if leftAt != nil {
			end = *leftAt
		}
		durations = append(durations, StageDuration{
			CardID:    cardID,
			List:      list,
			EnteredAt: enteredAt,
			LeftAt:    end,
			Days:      int(end.Sub(enteredAt).Hours() / 24),
		})
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return durations, nil
}

func scanCard(row pgx.Row) (*Card, error) {
	var (
		c         Card
		status    string
		labelsRaw []byte
		fieldsRaw []byte
	)

	if err := row.Scan(&c.ID, &c.Name, &c.Description, &c.ListID, &c.ListName, &status, &c.Plate, &c.Vehicle, &c.Client, &c.Service, &labelsRaw, &fieldsRaw, &c.URL, &c.DateLastActivity, &c.LinkedLeadID, &c.DeletedAt, &c.SyncedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}

	c.Status = Status(status)

	if len(labelsRaw) > 0 {
		if err := json.Unmarshal(labelsRaw, &c.Labels); err != nil {
			return nil, err
		}
	}

	fields, err := decodeJSONMap(fieldsRaw)
	if err != nil {
		return nil, err
	}
	c.CustomFields = fields

	return &c, nil
}

func decodeJSONMap(raw []byte) (map[string]any, error) {
	if len(raw) == 0 {
		return map[string]any{}, nil
	}
	var result map[string]any
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, err
	}
	if result == nil {
		return map[string]any{}, nil
	}
	return result, nil
}

func jsonMarshalMap(m map[string]any) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}
