package model

import (
	"encoding/json"
	"time"
)

type Contact struct {
	ID         string           `db:"id" json:"id"`
	TenantID   string           `db:"tenant_id" json:"tenantId"`
	ProtocolID string           `db:"protocol_id" json:"protocolId"`
	Name       *string          `db:"name" json:"name,omitempty"`
	PushName   *string          `db:"push_name" json:"pushName,omitempty"`
	IsGroup    bool             `db:"is_group" json:"isGroup"`
	IsBlocked  bool             `db:"is_blocked" json:"isBlocked"`
	IsBusiness bool             `db:"is_business" json:"isBusiness"`
	Metadata   *json.RawMessage `db:"metadata" json:"metadata,omitempty"`
	LastSeenAt *time.Time       `db:"last_seen_at" json:"lastSeenAt,omitempty"`
	CreatedAt  time.Time        `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time        `db:"updated_at" json:"updatedAt"`
}

type UpsertContactParams struct {
	TenantID   string
	ProtocolID string
	PushName   string
	IsGroup    bool
	Metadata   *json.RawMessage
}
