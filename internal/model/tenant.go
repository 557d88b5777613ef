package model

import (
	"encoding/json"
	"time"
)

type Tenant struct {
	ID                   string           `db:"id" json:"id"`
	Name                 string           `db:"name" json:"name"`
	APIKey               string           `db:"api_key" json:"-"`
	Status               TenantStatus     `db:"status" json:"status"`
	WebhookURL           *string          `db:"webhook_url" json:"webhookUrl,omitempty"`
	ReceiveGroupMessages bool             `db:"receive_group_messages" json:"receiveGroupMessages"`
	AutoReconnect        bool             `db:"auto_reconnect" json:"autoReconnect"`
	Settings             *json.RawMessage `db:"settings" json:"settings,omitempty"`
	CreatedAt            time.Time        `db:"created_at" json:"createdAt"`
	UpdatedAt            time.Time        `db:"updated_at" json:"updatedAt"`
}

type CreateTenantParams struct {
	Name                 string
	APIKey               string
	WebhookURL           *string
	ReceiveGroupMessages bool
	AutoReconnect        bool
}

type UpdateTenantSettingsParams struct {
	WebhookURL           *string          `json:"webhookUrl"`
	ReceiveGroupMessages *bool            `json:"receiveGroupMessages"`
	AutoReconnect        *bool            `json:"autoReconnect"`
	Settings             *json.RawMessage `json:"settings"`
}
