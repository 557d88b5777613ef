package service

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/mock"

	"github.com/wagate/gateway-server-go/internal/model"
	"github.com/wagate/gateway-server-go/internal/protocol"
	"github.com/wagate/gateway-server-go/internal/repository"
)

type mockTenantRepo struct {
	mock.Mock
}

func (m *mockTenantRepo) FindByID(ctx context.Context, id string) (*model.Tenant, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Tenant), args.Error(1)
}

func (m *mockTenantRepo) FindByAPIKey(ctx context.Context, apiKey string) (*model.Tenant, error) {
	args := m.Called(ctx, apiKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Tenant), args.Error(1)
}

func (m *mockTenantRepo) FindByName(ctx context.Context, name string) (*model.Tenant, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Tenant), args.Error(1)
}

func (m *mockTenantRepo) Create(ctx context.Context, params model.CreateTenantParams) (*model.Tenant, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Tenant), args.Error(1)
}

func (m *mockTenantRepo) UpdateSettings(ctx context.Context, id string, params model.UpdateTenantSettingsParams) (*model.Tenant, error) {
	args := m.Called(ctx, id, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Tenant), args.Error(1)
}

func (m *mockTenantRepo) Suspend(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockTenantRepo) WithTx(tx *sqlx.Tx) repository.TenantRepository { return m }

type mockMessageRepo struct {
	mock.Mock
}

func (m *mockMessageRepo) FindByID(ctx context.Context, id string) (*model.Message, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Message), args.Error(1)
}

func (m *mockMessageRepo) FindByMessageID(ctx context.Context, tenantID, messageID string) (*model.Message, error) {
	args := m.Called(ctx, tenantID, messageID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Message), args.Error(1)
}

func (m *mockMessageRepo) Create(ctx context.Context, params model.CreateMessageParams) (*model.Message, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Message), args.Error(1)
}

func (m *mockMessageRepo) UpdateStatusByMessageID(ctx context.Context, tenantID, messageID string, status model.MessageStatus) (bool, error) {
	args := m.Called(ctx, tenantID, messageID, status)
	return args.Bool(0), args.Error(1)
}

func (m *mockMessageRepo) List(ctx context.Context, params model.ListMessagesParams) ([]model.Message, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Message), args.Error(1)
}

func (m *mockMessageRepo) CountByTenantID(ctx context.Context, tenantID string) (int, error) {
	args := m.Called(ctx, tenantID)
	return args.Int(0), args.Error(1)
}

func (m *mockMessageRepo) Delete(ctx context.Context, tenantID, id string) error {
	args := m.Called(ctx, tenantID, id)
	return args.Error(0)
}

func (m *mockMessageRepo) WithTx(tx *sqlx.Tx) repository.MessageRepository { return m }

type mockContactRepo struct {
	mock.Mock
}

func (m *mockContactRepo) FindByID(ctx context.Context, id string) (*model.Contact, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Contact), args.Error(1)
}

func (m *mockContactRepo) FindByProtocolID(ctx context.Context, tenantID, protocolID string) (*model.Contact, error) {
	args := m.Called(ctx, tenantID, protocolID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Contact), args.Error(1)
}

func (m *mockContactRepo) Upsert(ctx context.Context, params model.UpsertContactParams) (*model.Contact, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Contact), args.Error(1)
}

func (m *mockContactRepo) Search(ctx context.Context, tenantID, query string, limit, offset int) ([]model.Contact, error) {
	args := m.Called(ctx, tenantID, query, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Contact), args.Error(1)
}

func (m *mockContactRepo) TouchLastSeen(ctx context.Context, tenantID, protocolID string, seenAt time.Time) error {
	args := m.Called(ctx, tenantID, protocolID, seenAt)
	return args.Error(0)
}

func (m *mockContactRepo) WithTx(tx *sqlx.Tx) repository.ContactRepository { return m }

// stubSocketProvider returns a fixed socket or error.
type stubSocketProvider struct {
	socket protocol.Socket
	err    error
}

func (s *stubSocketProvider) SocketFor(tenantID, sessionID string) (protocol.Socket, error) {
	return s.socket, s.err
}

// stubSocket records sends and returns scripted receipts.
type stubSocket struct {
	receipt protocol.Receipt
	sendErr error
	sent    []string
}

func (s *stubSocket) Connect(ctx context.Context) error { return nil }

func (s *stubSocket) SendMessage(ctx context.Context, to string, content protocol.OutgoingContent) (protocol.Receipt, error) {
	s.sent = append(s.sent, to)
	if s.sendErr != nil {
		return protocol.Receipt{}, s.sendErr
	}
	return s.receipt, nil
}

func (s *stubSocket) RequestPairingCode(ctx context.Context, phoneNumber string) (string, error) {
	return "", nil
}
func (s *stubSocket) Logout(ctx context.Context) error     { return nil }
func (s *stubSocket) Disconnect()                          {}
func (s *stubSocket) IsConnected() bool                    { return true }
func (s *stubSocket) Profile() *protocol.Profile           { return nil }
func (s *stubSocket) Events() <-chan protocol.Event        { return nil }
func (s *stubSocket) DownloadMedia(ctx context.Context, msg *protocol.IncomingMessage) ([]byte, error) {
	return nil, nil
}
