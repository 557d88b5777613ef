package model

import (
	"encoding/json"
	"time"
)

// Session is one logical connection lifetime for a tenant. The auth_state
// blob is owned by the authstate package and is deliberately absent here:
// nothing outside that package reads or writes it.
type Session struct {
	ID                 string           `db:"id" json:"id"`
	TenantID           string           `db:"tenant_id" json:"tenantId"`
	SessionID          string           `db:"session_id" json:"sessionId"`
	Status             SessionStatus    `db:"status" json:"status"`
	QRCode             *string          `db:"qr_code" json:"qrCode,omitempty"`
	PairingCode        *string          `db:"pairing_code" json:"pairingCode,omitempty"`
	Profile            *json.RawMessage `db:"profile" json:"profile,omitempty"`
	LastConnectedAt    *time.Time       `db:"last_connected_at" json:"lastConnectedAt,omitempty"`
	LastDisconnectedAt *time.Time       `db:"last_disconnected_at" json:"lastDisconnectedAt,omitempty"`
	CreatedAt          time.Time        `db:"created_at" json:"createdAt"`
	UpdatedAt          time.Time        `db:"updated_at" json:"updatedAt"`
}

// SessionProfile is the snapshot taken when a connection opens.
type SessionProfile struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name,omitempty"`
	Number   string `json:"number,omitempty"`
	Platform string `json:"platform,omitempty"`
}
