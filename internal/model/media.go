package model

import "time"

type Media struct {
	ID            string    `db:"id" json:"id"`
	MessageID     string    `db:"message_id" json:"messageId"`
	Filename      string    `db:"filename" json:"filename"`
	MimeType      string    `db:"mime_type" json:"mimeType"`
	Size          int64     `db:"size" json:"size"`
	FilePath      string    `db:"file_path" json:"filePath"`
	ThumbnailPath *string   `db:"thumbnail_path" json:"thumbnailPath,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time `db:"updated_at" json:"updatedAt"`
}

type CreateMediaParams struct {
	MessageID     string
	Filename      string
	MimeType      string
	Size          int64
	FilePath      string
	ThumbnailPath *string
}
