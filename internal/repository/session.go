package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/wagate/gateway-server-go/internal/model"
)

type SessionRepository interface {
	FindBySessionID(ctx context.Context, sessionID string) (*model.Session, error)
	FindByTenantID(ctx context.Context, tenantID string) ([]model.Session, error)
	FindByStatus(ctx context.Context, status model.SessionStatus) ([]model.Session, error)
	Ensure(ctx context.Context, tenantID, sessionID string) (*model.Session, error)
	UpdateStatus(ctx context.Context, tenantID, sessionID string, status model.SessionStatus) error
	SaveQRCode(ctx context.Context, tenantID, sessionID, qrCode string) error
	SavePairingCode(ctx context.Context, tenantID, sessionID, pairingCode string) error
	SaveProfile(ctx context.Context, tenantID, sessionID string, profile model.SessionProfile) error
	Delete(ctx context.Context, tenantID, sessionID string) error
	DeleteStale(ctx context.Context, cutoff time.Time) (int64, error)
	WithTx(tx *sqlx.Tx) SessionRepository
}

type sessionRepo struct {
	db dbtx
}

func NewSessionRepository(db *sqlx.DB) SessionRepository {
	return &sessionRepo{db: db}
}

func (r *sessionRepo) WithTx(tx *sqlx.Tx) SessionRepository {
	return &sessionRepo{db: tx}
}

func (r *sessionRepo) FindBySessionID(ctx context.Context, sessionID string) (*model.Session, error) {
	var session model.Session
	err := r.db.GetContext(ctx, &session, `
		SELECT id, tenant_id, session_id, status, qr_code, pairing_code, profile,
		       last_connected_at, last_disconnected_at, created_at, updated_at
		FROM sessions WHERE session_id = $1
	`, sessionID)
	return HandleNotFound(&session, err)
}

func (r *sessionRepo) FindByTenantID(ctx context.Context, tenantID string) ([]model.Session, error) {
	var sessions []model.Session
	err := r.db.SelectContext(ctx, &sessions, `
		SELECT id, tenant_id, session_id, status, qr_code, pairing_code, profile,
		       last_connected_at, last_disconnected_at, created_at, updated_at
		FROM sessions WHERE tenant_id = $1
		ORDER BY created_at DESC
	`, tenantID)
	return sessions, err
}

func (r *sessionRepo) FindByStatus(ctx context.Context, status model.SessionStatus) ([]model.Session, error) {
	var sessions []model.Session
	err := r.db.SelectContext(ctx, &sessions, `
		SELECT id, tenant_id, session_id, status, qr_code, pairing_code, profile,
		       last_connected_at, last_disconnected_at, created_at, updated_at
		FROM sessions WHERE status = $1
		ORDER BY last_connected_at DESC NULLS LAST
	`, status)
	return sessions, err
}

// Ensure upserts the row for (tenantID, sessionID) and returns it. New rows
// start disconnected.
func (r *sessionRepo) Ensure(ctx context.Context, tenantID, sessionID string) (*model.Session, error) {
	var session model.Session
	err := r.db.GetContext(ctx, &session, `
		INSERT INTO sessions (tenant_id, session_id, status)
		VALUES ($1, $2, 'disconnected')
		ON CONFLICT (tenant_id, session_id) DO UPDATE SET updated_at = NOW()
		RETURNING id, tenant_id, session_id, status, qr_code, pairing_code, profile,
		          last_connected_at, last_disconnected_at, created_at, updated_at
	`, tenantID, sessionID)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// UpdateStatus records the last observed lifecycle state. Connecting clears
// nothing; connected stamps last_connected_at and clears both challenge
// codes; disconnected and logout stamp last_disconnected_at.
func (r *sessionRepo) UpdateStatus(ctx context.Context, tenantID, sessionID string, status model.SessionStatus) error {
	switch status {
	case model.SessionStatusConnected:
		_, err := r.db.ExecContext(ctx, `
			UPDATE sessions SET
				status = $3,
				qr_code = NULL,
				pairing_code = NULL,
				last_connected_at = NOW(),
				updated_at = NOW()
			WHERE tenant_id = $1 AND session_id = $2
		`, tenantID, sessionID, status)
		return err
	case model.SessionStatusDisconnected, model.SessionStatusLoggedOut:
		_, err := r.db.ExecContext(ctx, `
			UPDATE sessions SET
				status = $3,
				last_disconnected_at = NOW(),
				updated_at = NOW()
			WHERE tenant_id = $1 AND session_id = $2
		`, tenantID, sessionID, status)
		return err
	default:
		_, err := r.db.ExecContext(ctx, `
			UPDATE sessions SET status = $3, updated_at = NOW()
			WHERE tenant_id = $1 AND session_id = $2
		`, tenantID, sessionID, status)
		return err
	}
}

// QR and pairing codes are mutually exclusive: saving one clears the other.

func (r *sessionRepo) SaveQRCode(ctx context.Context, tenantID, sessionID, qrCode string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET
			qr_code = $3,
			pairing_code = NULL,
			status = 'connecting',
			updated_at = NOW()
		WHERE tenant_id = $1 AND session_id = $2
	`, tenantID, sessionID, qrCode)
	return err
}

func (r *sessionRepo) SavePairingCode(ctx context.Context, tenantID, sessionID, pairingCode string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET
			pairing_code = $3,
			qr_code = NULL,
			status = 'connecting',
			updated_at = NOW()
		WHERE tenant_id = $1 AND session_id = $2
	`, tenantID, sessionID, pairingCode)
	return err
}

func (r *sessionRepo) SaveProfile(ctx context.Context, tenantID, sessionID string, profile model.SessionProfile) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		UPDATE sessions SET profile = $3, updated_at = NOW()
		WHERE tenant_id = $1 AND session_id = $2
	`, tenantID, sessionID, data)
	return err
}

func (r *sessionRepo) Delete(ctx context.Context, tenantID, sessionID string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM sessions WHERE tenant_id = $1 AND session_id = $2
	`, tenantID, sessionID)
	return err
}

// DeleteStale removes sessions that have been disconnected since before the
// cutoff and never completed a connection, bounding growth from abandoned
// QR attempts.
func (r *sessionRepo) DeleteStale(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM sessions
		WHERE status = 'disconnected'
		AND last_connected_at IS NULL
		AND COALESCE(last_disconnected_at, created_at) < $1
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
