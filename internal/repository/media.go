package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/wagate/gateway-server-go/internal/model"
)

type MediaRepository interface {
	FindByMessageID(ctx context.Context, messageID string) ([]model.Media, error)
	Create(ctx context.Context, params model.CreateMediaParams) (*model.Media, error)
	WithTx(tx *sqlx.Tx) MediaRepository
}

type mediaRepo struct {
	db dbtx
}

func NewMediaRepository(db *sqlx.DB) MediaRepository {
	return &mediaRepo{db: db}
}

func (r *mediaRepo) WithTx(tx *sqlx.Tx) MediaRepository {
	return &mediaRepo{db: tx}
}

func (r *mediaRepo) FindByMessageID(ctx context.Context, messageID string) ([]model.Media, error) {
	var media []model.Media
	err := r.db.SelectContext(ctx, &media, `
		SELECT * FROM media WHERE message_id = $1 ORDER BY created_at
	`, messageID)
	return media, err
}

func (r *mediaRepo) Create(ctx context.Context, params model.CreateMediaParams) (*model.Media, error) {
	var media model.Media
	err := r.db.GetContext(ctx, &media, `
		INSERT INTO media (message_id, filename, mime_type, size, file_path, thumbnail_path)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING *
	`, params.MessageID, params.Filename, params.MimeType, params.Size, params.FilePath, params.ThumbnailPath)
	if err != nil {
		return nil, err
	}
	return &media, nil
}
