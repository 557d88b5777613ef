package authstate

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
)

// Records is the persistence surface the store needs: one nullable blob
// per (tenant, session). Implemented on the sessions table; faked in tests.
type Records interface {
	LoadBlob(ctx context.Context, tenantID, sessionID string) ([]byte, error)
	SaveBlob(ctx context.Context, tenantID, sessionID string, blob []byte) error
	ClearBlob(ctx context.Context, tenantID, sessionID string) error
}

// Store persists one auth-state blob per (tenant, session) pair.
type Store struct {
	records Records
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{records: &sqlRecords{db: db}}
}

// NewStoreWithRecords exists for tests.
func NewStoreWithRecords(records Records) *Store {
	return &Store{records: records}
}

// Load returns the persisted state for the pair, or a fresh empty state if
// no row exists, the blob is null, or the blob does not deserialize. A
// corrupt blob is an anomaly worth logging but never an error: the caller
// always gets a usable state and the session re-pairs from scratch.
func (s *Store) Load(ctx context.Context, tenantID, sessionID string) (*State, error) {
	blob, err := s.records.LoadBlob(ctx, tenantID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load auth state: %w", err)
	}
	if len(blob) == 0 {
		return NewState(), nil
	}

	var state State
	if err := json.Unmarshal(blob, &state); err != nil {
		log.Warn().
			Err(err).
			Str("tenantId", tenantID).
			Str("sessionId", sessionID).
			Msg("stored auth state is corrupt, falling back to fresh credentials")
		return NewState(), nil
	}
	if state.Keys == nil {
		state.Keys = make(KeyMaterial)
	}
	return &state, nil
}

// Save atomically upserts the serialized state for the pair.
func (s *Store) Save(ctx context.Context, tenantID, sessionID string, state *State) error {
	blob, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal auth state: %w", err)
	}
	if err := s.records.SaveBlob(ctx, tenantID, sessionID, blob); err != nil {
		return fmt.Errorf("save auth state: %w", err)
	}
	return nil
}

// Clear nulls the blob and marks the session logged-out.
func (s *Store) Clear(ctx context.Context, tenantID, sessionID string) error {
	if err := s.records.ClearBlob(ctx, tenantID, sessionID); err != nil {
		return fmt.Errorf("clear auth state: %w", err)
	}
	return nil
}

// Bind loads the state for the pair and returns a handle with write-through
// mutation helpers. Credential updates and key-material updates each
// trigger their own save, so incremental protocol state survives a crash
// between full credential writes.
func (s *Store) Bind(ctx context.Context, tenantID, sessionID string) (*Bound, error) {
	state, err := s.Load(ctx, tenantID, sessionID)
	if err != nil {
		return nil, err
	}
	return &Bound{
		store:     s,
		tenantID:  tenantID,
		sessionID: sessionID,
		state:     state,
	}, nil
}

type Bound struct {
	store     *Store
	tenantID  string
	sessionID string

	mu    sync.Mutex
	state *State
}

func (b *Bound) TenantID() string  { return b.tenantID }
func (b *Bound) SessionID() string { return b.sessionID }

func (b *Bound) Creds() Credentials {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state.Creds
}

func (b *Bound) Paired() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state.Paired()
}

// UpdateCreds mutates the credentials and writes the whole state through.
func (b *Bound) UpdateCreds(ctx context.Context, fn func(*Credentials)) error {
	b.mu.Lock()
	fn(&b.state.Creds)
	b.mu.Unlock()
	return b.save(ctx)
}

// PutKeys merges key material into a category and writes through. A nil
// value deletes the entry.
func (b *Bound) PutKeys(ctx context.Context, category string, entries map[string][]byte) error {
	b.mu.Lock()
	b.state.Keys.put(category, entries)
	b.mu.Unlock()
	return b.save(ctx)
}

func (b *Bound) GetKeys(category string, ids []string) map[string][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state.Keys.get(category, ids)
}

func (b *Bound) save(ctx context.Context) error {
	b.mu.Lock()
	blob, err := json.Marshal(b.state)
	b.mu.Unlock()
	if err != nil {
		return fmt.Errorf("marshal auth state: %w", err)
	}
	if err := b.store.records.SaveBlob(ctx, b.tenantID, b.sessionID, blob); err != nil {
		return fmt.Errorf("save auth state: %w", err)
	}
	return nil
}

type sqlRecords struct {
	db *sqlx.DB
}

func (r *sqlRecords) LoadBlob(ctx context.Context, tenantID, sessionID string) ([]byte, error) {
	var blob sql.NullString
	err := r.db.GetContext(ctx, &blob, `
		SELECT auth_state FROM sessions WHERE tenant_id = $1 AND session_id = $2
	`, tenantID, sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !blob.Valid {
		return nil, nil
	}
	return []byte(blob.String), nil
}

func (r *sqlRecords) SaveBlob(ctx context.Context, tenantID, sessionID string, blob []byte) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (tenant_id, session_id, status, auth_state)
		VALUES ($1, $2, 'connecting', $3)
		ON CONFLICT (tenant_id, session_id) DO UPDATE SET
			auth_state = $3,
			updated_at = NOW()
	`, tenantID, sessionID, string(blob))
	return err
}

func (r *sqlRecords) ClearBlob(ctx context.Context, tenantID, sessionID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET
			auth_state = NULL,
			status = 'logout',
			qr_code = NULL,
			pairing_code = NULL,
			last_disconnected_at = NOW(),
			updated_at = NOW()
		WHERE tenant_id = $1 AND session_id = $2
	`, tenantID, sessionID)
	return err
}
