package model

import "time"

type Message struct {
	ID              string           `db:"id" json:"id"`
	TenantID        string           `db:"tenant_id" json:"tenantId"`
	ContactID       string           `db:"contact_id" json:"contactId"`
	MessageID       string           `db:"message_id" json:"messageId"`
	Type            MessageType      `db:"type" json:"type"`
	Direction       MessageDirection `db:"direction" json:"direction"`
	Status          MessageStatus    `db:"status" json:"status"`
	Content         string           `db:"content" json:"content"`
	QuotedMessageID *string          `db:"quoted_message_id" json:"quotedMessageId,omitempty"`
	Timestamp       time.Time        `db:"timestamp" json:"timestamp"`
	CreatedAt       time.Time        `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time        `db:"updated_at" json:"updatedAt"`
}

type CreateMessageParams struct {
	TenantID        string
	ContactID       string
	MessageID       string
	Type            MessageType
	Direction       MessageDirection
	Status          MessageStatus
	Content         string
	QuotedMessageID *string
	Timestamp       time.Time
}

type ListMessagesParams struct {
	TenantID  string
	ContactID string
	Direction string
	Query     string
	Limit     int
	Offset    int
}
