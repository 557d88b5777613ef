package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/wagate/gateway-server-go/internal/model"
)

type MessageRepository interface {
	FindByID(ctx context.Context, id string) (*model.Message, error)
	FindByMessageID(ctx context.Context, tenantID, messageID string) (*model.Message, error)
	Create(ctx context.Context, params model.CreateMessageParams) (*model.Message, error)
	UpdateStatusByMessageID(ctx context.Context, tenantID, messageID string, status model.MessageStatus) (bool, error)
	List(ctx context.Context, params model.ListMessagesParams) ([]model.Message, error)
	CountByTenantID(ctx context.Context, tenantID string) (int, error)
	Delete(ctx context.Context, tenantID, id string) error
	WithTx(tx *sqlx.Tx) MessageRepository
}

type messageRepo struct {
	db dbtx
}

func NewMessageRepository(db *sqlx.DB) MessageRepository {
	return &messageRepo{db: db}
}

func (r *messageRepo) WithTx(tx *sqlx.Tx) MessageRepository {
	return &messageRepo{db: tx}
}

func (r *messageRepo) FindByID(ctx context.Context, id string) (*model.Message, error) {
	var msg model.Message
	err := r.db.GetContext(ctx, &msg, `
		SELECT * FROM messages WHERE id = $1
	`, id)
	return HandleNotFound(&msg, err)
}

func (r *messageRepo) FindByMessageID(ctx context.Context, tenantID, messageID string) (*model.Message, error) {
	var msg model.Message
	err := r.db.GetContext(ctx, &msg, `
		SELECT * FROM messages WHERE tenant_id = $1 AND message_id = $2
	`, tenantID, messageID)
	return HandleNotFound(&msg, err)
}

// Create is idempotent on (tenant_id, message_id): redelivery of an
// already-seen protocol message id returns the existing row untouched.
func (r *messageRepo) Create(ctx context.Context, params model.CreateMessageParams) (*model.Message, error) {
	var msg model.Message
	err := r.db.GetContext(ctx, &msg, `
		INSERT INTO messages (tenant_id, contact_id, message_id, type, direction, status, content, quoted_message_id, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (tenant_id, message_id) DO NOTHING
		RETURNING *
	`, params.TenantID, params.ContactID, params.MessageID, params.Type, params.Direction,
		params.Status, params.Content, params.QuotedMessageID, params.Timestamp)
	if existing, herr := HandleNotFound(&msg, err); herr != nil {
		return nil, herr
	} else if existing != nil {
		return existing, nil
	}
	// Conflict path: the row already exists.
	return r.FindByMessageID(ctx, params.TenantID, params.MessageID)
}

// UpdateStatusByMessageID applies a delivery-receipt status change by
// protocol message id. An unknown id is a no-op, reported via the bool.
func (r *messageRepo) UpdateStatusByMessageID(ctx context.Context, tenantID, messageID string, status model.MessageStatus) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE messages SET status = $3, updated_at = NOW()
		WHERE tenant_id = $1 AND message_id = $2
	`, tenantID, messageID, status)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *messageRepo) List(ctx context.Context, params model.ListMessagesParams) ([]model.Message, error) {
	var messages []model.Message
	err := r.db.SelectContext(ctx, &messages, `
		SELECT * FROM messages
		WHERE tenant_id = $1
		AND ($2 = '' OR contact_id = $2)
		AND ($3 = '' OR direction = $3)
		AND ($4 = '' OR content ILIKE '%' || $4 || '%')
		ORDER BY timestamp DESC
		LIMIT $5 OFFSET $6
	`, params.TenantID, params.ContactID, params.Direction, params.Query, params.Limit, params.Offset)
	return messages, err
}

func (r *messageRepo) CountByTenantID(ctx context.Context, tenantID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM messages WHERE tenant_id = $1
	`, tenantID)
	return count, err
}

func (r *messageRepo) Delete(ctx context.Context, tenantID, id string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM messages WHERE tenant_id = $1 AND id = $2
	`, tenantID, id)
	return err
}
