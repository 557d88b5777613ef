package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/wagate/gateway-server-go/internal/authstate"
	"github.com/wagate/gateway-server-go/internal/model"
	"github.com/wagate/gateway-server-go/internal/protocol"
	"github.com/wagate/gateway-server-go/internal/repository"
)

// fakeSocket is a scriptable protocol.Socket. Tests push events through
// Emit and observe calls through the recorded fields.
type fakeSocket struct {
	mu           sync.Mutex
	events       chan protocol.Event
	closeOnce    sync.Once
	connected    bool
	connectErr   error
	pairingCode  string
	pairingErr   error
	profile      *protocol.Profile
	mediaData    []byte
	mediaErr     error
	logoutCalled bool
	disconnects  int
	sent         []string
}

func newFakeSocket() *fakeSocket {
	return &fakeSocket{events: make(chan protocol.Event, 16)}
}

func (f *fakeSocket) Connect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	return nil
}

func (f *fakeSocket) SendMessage(ctx context.Context, to string, content protocol.OutgoingContent) (protocol.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, to)
	return protocol.Receipt{MessageID: "wire-id"}, nil
}

func (f *fakeSocket) RequestPairingCode(ctx context.Context, phoneNumber string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pairingCode, f.pairingErr
}

func (f *fakeSocket) Logout(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logoutCalled = true
	f.connected = false
	return nil
}

func (f *fakeSocket) Disconnect() {
	f.mu.Lock()
	f.connected = false
	f.disconnects++
	f.mu.Unlock()
	f.closeOnce.Do(func() { close(f.events) })
}

func (f *fakeSocket) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeSocket) Profile() *protocol.Profile {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.profile
}

func (f *fakeSocket) DownloadMedia(ctx context.Context, msg *protocol.IncomingMessage) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mediaData, f.mediaErr
}

func (f *fakeSocket) Events() <-chan protocol.Event {
	return f.events
}

func (f *fakeSocket) Emit(evt protocol.Event) {
	f.events <- evt
}

func (f *fakeSocket) logoutWasCalled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.logoutCalled
}

func (f *fakeSocket) disconnectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.disconnects
}

// fakeDialer hands out one fakeSocket per Dial.
type fakeDialer struct {
	mu          sync.Mutex
	err         error
	pairingCode string
	sockets     []*fakeSocket
	onDial      func() // runs mid-dial, before the socket is handed back
}

func (d *fakeDialer) Dial(ctx context.Context, auth *authstate.Bound) (protocol.Socket, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	if d.onDial != nil {
		d.onDial()
	}
	sock := newFakeSocket()
	sock.pairingCode = d.pairingCode
	d.sockets = append(d.sockets, sock)
	return sock, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sockets)
}

func (d *fakeDialer) socketAt(i int) *fakeSocket {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i >= len(d.sockets) {
		return nil
	}
	return d.sockets[i]
}

// fakeTenantRepo serves a fixed tenant set.
type fakeTenantRepo struct {
	tenants map[string]*model.Tenant
}

func (r *fakeTenantRepo) FindByID(ctx context.Context, id string) (*model.Tenant, error) {
	return r.tenants[id], nil
}
func (r *fakeTenantRepo) FindByAPIKey(ctx context.Context, apiKey string) (*model.Tenant, error) {
	for _, t := range r.tenants {
		if t.APIKey == apiKey {
			return t, nil
		}
	}
	return nil, nil
}
func (r *fakeTenantRepo) FindByName(ctx context.Context, name string) (*model.Tenant, error) {
	return nil, nil
}
func (r *fakeTenantRepo) Create(ctx context.Context, params model.CreateTenantParams) (*model.Tenant, error) {
	return nil, nil
}
func (r *fakeTenantRepo) UpdateSettings(ctx context.Context, id string, params model.UpdateTenantSettingsParams) (*model.Tenant, error) {
	return nil, nil
}
func (r *fakeTenantRepo) Suspend(ctx context.Context, id string) error { return nil }
func (r *fakeTenantRepo) WithTx(tx *sqlx.Tx) repository.TenantRepository {
	return r
}

// fakeSessionRepo keeps rows in memory and records status transitions.
type fakeSessionRepo struct {
	mu           sync.Mutex
	rows         map[string]*model.Session
	statuses     []model.SessionStatus
	qrCodes      []string
	pairingCodes []string
	deleted      int64
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{rows: make(map[string]*model.Session)}
}

func (r *fakeSessionRepo) FindBySessionID(ctx context.Context, sessionID string) (*model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rows[sessionID], nil
}

func (r *fakeSessionRepo) FindByTenantID(ctx context.Context, tenantID string) ([]model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Session
	for _, row := range r.rows {
		if row.TenantID == tenantID {
			out = append(out, *row)
		}
	}
	return out, nil
}

func (r *fakeSessionRepo) FindByStatus(ctx context.Context, status model.SessionStatus) ([]model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Session
	for _, row := range r.rows {
		if row.Status == status {
			out = append(out, *row)
		}
	}
	return out, nil
}

func (r *fakeSessionRepo) Ensure(ctx context.Context, tenantID, sessionID string) (*model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if row, ok := r.rows[sessionID]; ok {
		return row, nil
	}
	row := &model.Session{
		ID:        sessionID,
		TenantID:  tenantID,
		SessionID: sessionID,
		Status:    model.SessionStatusDisconnected,
	}
	r.rows[sessionID] = row
	return row, nil
}

func (r *fakeSessionRepo) UpdateStatus(ctx context.Context, tenantID, sessionID string, status model.SessionStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, status)
	if row, ok := r.rows[sessionID]; ok {
		row.Status = status
	}
	return nil
}

func (r *fakeSessionRepo) SaveQRCode(ctx context.Context, tenantID, sessionID, qrCode string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.qrCodes = append(r.qrCodes, qrCode)
	if row, ok := r.rows[sessionID]; ok {
		row.QRCode = &qrCode
	}
	return nil
}

func (r *fakeSessionRepo) SavePairingCode(ctx context.Context, tenantID, sessionID, pairingCode string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pairingCodes = append(r.pairingCodes, pairingCode)
	return nil
}

func (r *fakeSessionRepo) SaveProfile(ctx context.Context, tenantID, sessionID string, profile model.SessionProfile) error {
	return nil
}

func (r *fakeSessionRepo) Delete(ctx context.Context, tenantID, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rows, sessionID)
	return nil
}

func (r *fakeSessionRepo) DeleteStale(ctx context.Context, cutoff time.Time) (int64, error) {
	return r.deleted, nil
}

func (r *fakeSessionRepo) WithTx(tx *sqlx.Tx) repository.SessionRepository { return r }

func (r *fakeSessionRepo) lastStatus() model.SessionStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.statuses) == 0 {
		return ""
	}
	return r.statuses[len(r.statuses)-1]
}

func (r *fakeSessionRepo) savedQRCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.qrCodes)
}

// fakeRecords backs the auth store in memory.
type fakeRecords struct {
	mu     sync.Mutex
	blobs  map[string][]byte
	clears int
}

func newFakeRecords() *fakeRecords {
	return &fakeRecords{blobs: make(map[string][]byte)}
}

func (r *fakeRecords) LoadBlob(ctx context.Context, tenantID, sessionID string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.blobs[tenantID+"/"+sessionID], nil
}

func (r *fakeRecords) SaveBlob(ctx context.Context, tenantID, sessionID string, blob []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.blobs[tenantID+"/"+sessionID] = blob
	return nil
}

func (r *fakeRecords) ClearBlob(ctx context.Context, tenantID, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.blobs, tenantID+"/"+sessionID)
	r.clears++
	return nil
}

func (r *fakeRecords) clearCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.clears
}

// fakeContactRepo records upserts.
type fakeContactRepo struct {
	mu       sync.Mutex
	upserts  []model.UpsertContactParams
	touched  []string
	upsertFn func(params model.UpsertContactParams) *model.Contact
}

func (r *fakeContactRepo) FindByID(ctx context.Context, id string) (*model.Contact, error) {
	return nil, nil
}
func (r *fakeContactRepo) FindByProtocolID(ctx context.Context, tenantID, protocolID string) (*model.Contact, error) {
	return nil, nil
}
func (r *fakeContactRepo) Upsert(ctx context.Context, params model.UpsertContactParams) (*model.Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upserts = append(r.upserts, params)
	if r.upsertFn != nil {
		return r.upsertFn(params), nil
	}
	return &model.Contact{ID: "contact-" + params.ProtocolID, TenantID: params.TenantID, ProtocolID: params.ProtocolID}, nil
}
func (r *fakeContactRepo) Search(ctx context.Context, tenantID, query string, limit, offset int) ([]model.Contact, error) {
	return nil, nil
}
func (r *fakeContactRepo) TouchLastSeen(ctx context.Context, tenantID, protocolID string, seenAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.touched = append(r.touched, protocolID)
	return nil
}
func (r *fakeContactRepo) WithTx(tx *sqlx.Tx) repository.ContactRepository { return r }

func (r *fakeContactRepo) upsertCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.upserts)
}

// fakeMessageRepo records creates and status updates.
type fakeMessageRepo struct {
	mu       sync.Mutex
	created  []model.CreateMessageParams
	updates  map[string]model.MessageStatus
	known    map[string]bool
	createID int
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{
		updates: make(map[string]model.MessageStatus),
		known:   make(map[string]bool),
	}
}

func (r *fakeMessageRepo) FindByID(ctx context.Context, id string) (*model.Message, error) {
	return nil, nil
}
func (r *fakeMessageRepo) FindByMessageID(ctx context.Context, tenantID, messageID string) (*model.Message, error) {
	return nil, nil
}
func (r *fakeMessageRepo) Create(ctx context.Context, params model.CreateMessageParams) (*model.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, params)
	r.known[params.MessageID] = true
	r.createID++
	return &model.Message{
		ID:        "row-" + params.MessageID,
		TenantID:  params.TenantID,
		ContactID: params.ContactID,
		MessageID: params.MessageID,
		Type:      params.Type,
		Direction: params.Direction,
		Status:    params.Status,
		Content:   params.Content,
	}, nil
}
func (r *fakeMessageRepo) UpdateStatusByMessageID(ctx context.Context, tenantID, messageID string, status model.MessageStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.known[messageID] {
		return false, nil
	}
	r.updates[messageID] = status
	return true, nil
}
func (r *fakeMessageRepo) List(ctx context.Context, params model.ListMessagesParams) ([]model.Message, error) {
	return nil, nil
}
func (r *fakeMessageRepo) CountByTenantID(ctx context.Context, tenantID string) (int, error) {
	return 0, nil
}
func (r *fakeMessageRepo) Delete(ctx context.Context, tenantID, id string) error { return nil }
func (r *fakeMessageRepo) WithTx(tx *sqlx.Tx) repository.MessageRepository       { return r }

// fakeMediaRepo records created media rows.
type fakeMediaRepo struct {
	mu      sync.Mutex
	created []model.CreateMediaParams
}

func (r *fakeMediaRepo) FindByMessageID(ctx context.Context, messageID string) ([]model.Media, error) {
	return nil, nil
}
func (r *fakeMediaRepo) Create(ctx context.Context, params model.CreateMediaParams) (*model.Media, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, params)
	return &model.Media{ID: "media-1", MessageID: params.MessageID}, nil
}
func (r *fakeMediaRepo) WithTx(tx *sqlx.Tx) repository.MediaRepository { return r }
