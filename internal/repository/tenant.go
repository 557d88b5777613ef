package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/wagate/gateway-server-go/internal/model"
)

type TenantRepository interface {
	FindByID(ctx context.Context, id string) (*model.Tenant, error)
	FindByAPIKey(ctx context.Context, apiKey string) (*model.Tenant, error)
	FindByName(ctx context.Context, name string) (*model.Tenant, error)
	Create(ctx context.Context, params model.CreateTenantParams) (*model.Tenant, error)
	UpdateSettings(ctx context.Context, id string, params model.UpdateTenantSettingsParams) (*model.Tenant, error)
	Suspend(ctx context.Context, id string) error
	WithTx(tx *sqlx.Tx) TenantRepository
}

type tenantRepo struct {
	db dbtx
}

func NewTenantRepository(db *sqlx.DB) TenantRepository {
	return &tenantRepo{db: db}
}

func (r *tenantRepo) WithTx(tx *sqlx.Tx) TenantRepository {
	return &tenantRepo{db: tx}
}

func (r *tenantRepo) FindByID(ctx context.Context, id string) (*model.Tenant, error) {
	var tenant model.Tenant
	err := r.db.GetContext(ctx, &tenant, `
		SELECT * FROM tenants WHERE id = $1
	`, id)
	return HandleNotFound(&tenant, err)
}

func (r *tenantRepo) FindByAPIKey(ctx context.Context, apiKey string) (*model.Tenant, error) {
	var tenant model.Tenant
	err := r.db.GetContext(ctx, &tenant, `
		SELECT * FROM tenants WHERE api_key = $1
	`, apiKey)
	return HandleNotFound(&tenant, err)
}

func (r *tenantRepo) FindByName(ctx context.Context, name string) (*model.Tenant, error) {
	var tenant model.Tenant
	err := r.db.GetContext(ctx, &tenant, `
		SELECT * FROM tenants WHERE name = $1
	`, name)
	return HandleNotFound(&tenant, err)
}

func (r *tenantRepo) Create(ctx context.Context, params model.CreateTenantParams) (*model.Tenant, error) {
	var tenant model.Tenant
	err := r.db.GetContext(ctx, &tenant, `
		INSERT INTO tenants (name, api_key, webhook_url, receive_group_messages, auto_reconnect)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING *
	`, params.Name, params.APIKey, params.WebhookURL, params.ReceiveGroupMessages, params.AutoReconnect)
	if err != nil {
		return nil, err
	}
	return &tenant, nil
}

func (r *tenantRepo) UpdateSettings(ctx context.Context, id string, params model.UpdateTenantSettingsParams) (*model.Tenant, error) {
	var tenant model.Tenant
	err := r.db.GetContext(ctx, &tenant, `
		UPDATE tenants SET
			webhook_url = COALESCE($2, webhook_url),
			receive_group_messages = COALESCE($3, receive_group_messages),
			auto_reconnect = COALESCE($4, auto_reconnect),
			settings = COALESCE($5, settings),
			updated_at = NOW()
		WHERE id = $1
		RETURNING *
	`, id, params.WebhookURL, params.ReceiveGroupMessages, params.AutoReconnect, params.Settings)
	return HandleNotFound(&tenant, err)
}

// Suspend soft-disables a tenant. Tenants are never hard-deleted.
func (r *tenantRepo) Suspend(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE tenants SET status = 'suspended', updated_at = NOW() WHERE id = $1
	`, id)
	return err
}
