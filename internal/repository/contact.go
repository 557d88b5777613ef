package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/wagate/gateway-server-go/internal/model"
)

type ContactRepository interface {
	FindByID(ctx context.Context, id string) (*model.Contact, error)
	FindByProtocolID(ctx context.Context, tenantID, protocolID string) (*model.Contact, error)
	Upsert(ctx context.Context, params model.UpsertContactParams) (*model.Contact, error)
	Search(ctx context.Context, tenantID, query string, limit, offset int) ([]model.Contact, error)
	TouchLastSeen(ctx context.Context, tenantID, protocolID string, seenAt time.Time) error
	WithTx(tx *sqlx.Tx) ContactRepository
}

type contactRepo struct {
	db dbtx
}

func NewContactRepository(db *sqlx.DB) ContactRepository {
	return &contactRepo{db: db}
}

func (r *contactRepo) WithTx(tx *sqlx.Tx) ContactRepository {
	return &contactRepo{db: tx}
}

func (r *contactRepo) FindByID(ctx context.Context, id string) (*model.Contact, error) {
	var contact model.Contact
	err := r.db.GetContext(ctx, &contact, `
		SELECT * FROM contacts WHERE id = $1
	`, id)
	return HandleNotFound(&contact, err)
}

func (r *contactRepo) FindByProtocolID(ctx context.Context, tenantID, protocolID string) (*model.Contact, error) {
	var contact model.Contact
	err := r.db.GetContext(ctx, &contact, `
		SELECT * FROM contacts WHERE tenant_id = $1 AND protocol_id = $2
	`, tenantID, protocolID)
	return HandleNotFound(&contact, err)
}

// Upsert is idempotent on (tenant_id, protocol_id). The push name is only
// replaced by a non-empty value and metadata is merged, not overwritten.
func (r *contactRepo) Upsert(ctx context.Context, params model.UpsertContactParams) (*model.Contact, error) {
	var contact model.Contact
	err := r.db.GetContext(ctx, &contact, `
		INSERT INTO contacts (tenant_id, protocol_id, push_name, is_group, metadata)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5)
		ON CONFLICT (tenant_id, protocol_id) DO UPDATE SET
			push_name = COALESCE(NULLIF($3, ''), contacts.push_name),
			is_group = $4,
			metadata = COALESCE(contacts.metadata, '{}'::jsonb) || COALESCE($5, '{}'::jsonb),
			updated_at = NOW()
		RETURNING *
	`, params.TenantID, params.ProtocolID, params.PushName, params.IsGroup, params.Metadata)
	if err != nil {
		return nil, err
	}
	return &contact, nil
}

func (r *contactRepo) Search(ctx context.Context, tenantID, query string, limit, offset int) ([]model.Contact, error) {
	var contacts []model.Contact
	err := r.db.SelectContext(ctx, &contacts, `
		SELECT * FROM contacts
		WHERE tenant_id = $1
		AND ($2 = '' OR protocol_id ILIKE '%' || $2 || '%' OR push_name ILIKE '%' || $2 || '%')
		ORDER BY updated_at DESC
		LIMIT $3 OFFSET $4
	`, tenantID, query, limit, offset)
	return contacts, err
}

func (r *contactRepo) TouchLastSeen(ctx context.Context, tenantID, protocolID string, seenAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE contacts SET last_seen_at = $3, updated_at = NOW()
		WHERE tenant_id = $1 AND protocol_id = $2
	`, tenantID, protocolID, seenAt)
	return err
}
