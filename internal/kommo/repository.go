package kommo

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/doctorautoprime/oficina/internal/db"
	"github.com/doctorautoprime/oficina/internal/patio"
)

// Repository provê acesso a leads espelhados e vínculos lead↔ordem.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository cria um novo repositório do Kommo.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// UpsertLead insere ou substitui o espelho local de um lead.
func (r *Repository) UpsertLead(ctx context.Context, lead LeadSnapshot) error {
	const query = `
        INSERT INTO kommo_leads (kommo_lead_id, name, status_id, status_name, pipeline_id, price, phone, plate, trello_card_id, sync_status, sync_error, last_sync_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now())
        ON CONFLICT (kommo_lead_id) DO UPDATE SET
            name = EXCLUDED.name,
            status_id = EXCLUDED.status_id,
            status_name = EXCLUDED.status_name,
            pipeline_id = EXCLUDED.pipeline_id,
            price = EXCLUDED.price,
            phone = EXCLUDED.phone,
            plate = EXCLUDED.plate,
            trello_card_id = COALESCE(EXCLUDED.trello_card_id, kommo_leads.trello_card_id),
            sync_status = EXCLUDED.sync_status,
            sync_error = EXCLUDED.sync_error,
            last_sync_at = EXCLUDED.last_sync_at,
            updated_at = now()
    `

	syncStatus := lead.SyncStatus
	if syncStatus == "" {
		syncStatus = SyncPending
	}

	_, err := r.pool.Exec(ctx, query,
		lead.LeadID,
		lead.Name,
		lead.StatusID,
		lead.StatusName,
		lead.PipelineID,
		lead.Price,
		lead.Phone,
		lead.Plate,
		lead.TrelloCardID,
		syncStatus,
		lead.SyncError,
		lead.LastSyncAt,
	)
	return err
}

// GetLead busca o espelho local de um lead.
func (r *Repository) GetLead(ctx context.Context, leadID int64) (*LeadSnapshot, error) {
	const query = `
        SELECT kommo_lead_id, name, status_id, status_name, pipeline_id, price, phone, plate, trello_card_id, sync_status, sync_error, last_sync_at, updated_at
        FROM kommo_leads
        WHERE kommo_lead_id = $1
    `

	row := r.pool.QueryRow(ctx, query, leadID)

	var lead LeadSnapshot
	if err := row.Scan(&lead.LeadID, &lead.Name, &lead.StatusID, &lead.StatusName, &lead.PipelineID, &lead.Price, &lead.Phone, &lead.Plate, &lead.TrelloCardID, &lead.SyncStatus, &lead.SyncError, &lead.LastSyncAt, &lead.UpdatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, patio.ErrNotFound
		}
		return nil, err
	}
	return &lead, nil
}

// SetLeadCard grava o card do board criado para o lead.
func (r *Repository) SetLeadCard(ctx context.Context, leadID int64, cardID string) error {
	const query = `
        UPDATE kommo_leads
        SET trello_card_id = $2,
            sync_status = $3,
            last_sync_at = now(),
            updated_at = now()
        WHERE kommo_lead_id = $1
    `

	tag, err := r.pool.Exec(ctx, query, leadID, cardID, SyncLinked)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return patio.ErrNotFound
	}
	return nil
}

// SetSyncStatus atualiza o estado de sincronização do lead, com erro
// opcional.
func (r *Repository) SetSyncStatus(ctx context.Context, leadID int64, status string, syncErr *string) error {
	const query = `
        UPDATE kommo_leads
        SET sync_status = $2,
            sync_error = $3,
            last_sync_at = now(),
            updated_at = now()
        WHERE kommo_lead_id = $1
    `

	tag, err := r.pool.Exec(ctx, query, leadID, status, syncErr)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return patio.ErrNotFound
	}
	return nil
}

// LinkOrder cria ou renova o vínculo entre uma ordem de serviço e um lead.
// O vínculo e o estado do lead mudam juntos, então a operação roda em uma
// transação.
func (r *Repository) LinkOrder(ctx context.Context, orderID string, leadID int64) (*OrderMapping, error) {
	const mappingQuery = `
        INSERT INTO kommo_os_mapping (id, os_id, kommo_lead_id, synced_at)
        VALUES ($1, $2, $3, now())
        ON CONFLICT (os_id) DO UPDATE SET
            kommo_lead_id = EXCLUDED.kommo_lead_id,
            synced_at = now()
        RETURNING id, os_id, kommo_lead_id, synced_at
    `
	const leadQuery = `
        UPDATE kommo_leads
        SET sync_status = $2,
            updated_at = now()
        WHERE kommo_lead_id = $1
    `

	var mapping OrderMapping
	err := db.WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		row := tx.QueryRow(ctx, mappingQuery, uuid.New(), orderID, leadID)
		if err := row.Scan(&mapping.ID, &mapping.OrderID, &mapping.LeadID, &mapping.SyncedAt); err != nil {
			return err
		}
		// o espelho do lead pode ainda não existir; o vínculo vale sozinho
		_, err := tx.Exec(ctx, leadQuery, leadID, SyncLinked)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &mapping, nil
}

// GetMappingByOrder busca o vínculo a partir da ordem de serviço.
func (r *Repository) GetMappingByOrder(ctx context.Context, orderID string) (*OrderMapping, error) {
	const query = `
        SELECT id, os_id, kommo_lead_id, synced_at
        FROM kommo_os_mapping
        WHERE os_id = $1
    `

	row := r.pool.QueryRow(ctx, query, orderID)

	var mapping OrderMapping
	if err := row.Scan(&mapping.ID, &mapping.OrderID, &mapping.LeadID, &mapping.SyncedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, patio.ErrNotFound
		}
		return nil, err
	}
	return &mapping, nil
}

// Unlink desfaz o vínculo de um lead (por exemplo, lead removido no CRM).
func (r *Repository) Unlink(ctx context.Context, leadID int64) error {
	const query = `
        DELETE FROM kommo_os_mapping
        WHERE kommo_lead_id = $1
    `

	tag, err := r.pool.Exec(ctx, query, leadID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return patio.ErrNotFound
	}
	return nil
}
