package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/wagate/gateway-server-go/internal/errors"
	"github.com/wagate/gateway-server-go/internal/middleware"
	"github.com/wagate/gateway-server-go/internal/model"
	"github.com/wagate/gateway-server-go/internal/protocol"
	"github.com/wagate/gateway-server-go/internal/repository"
	"github.com/wagate/gateway-server-go/internal/service"
)

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

type stubSocket struct {
	receipt protocol.Receipt
	sendErr error
}

func (s *stubSocket) Connect(ctx context.Context) error { return nil }
func (s *stubSocket) SendMessage(ctx context.Context, to string, content protocol.OutgoingContent) (protocol.Receipt, error) {
	return s.receipt, s.sendErr
}
func (s *stubSocket) RequestPairingCode(ctx context.Context, phoneNumber string) (string, error) {
	return "", nil
}
func (s *stubSocket) Logout(ctx context.Context) error { return nil }
func (s *stubSocket) Disconnect()                      {}
func (s *stubSocket) IsConnected() bool                { return true }
func (s *stubSocket) Profile() *protocol.Profile       { return nil }
func (s *stubSocket) Events() <-chan protocol.Event    { return nil }
func (s *stubSocket) DownloadMedia(ctx context.Context, msg *protocol.IncomingMessage) ([]byte, error) {
	return nil, nil
}

type stubSockets struct {
	socket protocol.Socket
	err    error
}

func (s *stubSockets) SocketFor(tenantID, sessionID string) (protocol.Socket, error) {
	return s.socket, s.err
}

func authedRequest(method, target string, body []byte) *http.Request {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, bytes.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	tenant := &model.Tenant{ID: "tenant-1", Status: model.TenantStatusActive}
	ctx := context.WithValue(req.Context(), middleware.TenantContextKey, tenant)
	return req.WithContext(ctx)
}

func TestSendMessageEndpoint(t *testing.T) {
	messages := new(mockMessageRepo)
	contacts := new(mockContactRepo)
	sockets := &stubSockets{socket: &stubSocket{receipt: protocol.Receipt{MessageID: "wamid-1"}}}
	h := NewMessageHandler(service.NewMessageService(messages, contacts, sockets))

	contacts.On("FindByProtocolID", mock.Anything, "tenant-1", "5511999990000").
		Return(&model.Contact{ID: "contact-1", TenantID: "tenant-1"}, nil)
	messages.On("Create", mock.Anything, mock.Anything).
		Return(&model.Message{ID: "msg-1", MessageID: "wamid-1", Status: model.MessageStatusSent}, nil)

	body, _ := json.Marshal(map[string]any{
		"sessionId": "session-1",
		"to":        "5511999990000",
		"content":   map[string]any{"kind": "text", "text": "hello"},
	})

	rec := httptest.NewRecorder()
	h.Send(rec, authedRequest("POST", "/v1/messages", body))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp model.Message
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "wamid-1", resp.MessageID)
}

func TestSendMessageEndpointRequiresAuth(t *testing.T) {
	h := NewMessageHandler(service.NewMessageService(new(mockMessageRepo), new(mockContactRepo), &stubSockets{}))

	body, _ := json.Marshal(map[string]any{"sessionId": "session-1", "to": "x"})
	rec := httptest.NewRecorder()
	h.Send(rec, httptest.NewRequest("POST", "/v1/messages", bytes.NewReader(body)))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSendMessageEndpointNotConnected(t *testing.T) {
	sockets := &stubSockets{err: errors.NotConnected("session-1")}
	h := NewMessageHandler(service.NewMessageService(new(mockMessageRepo), new(mockContactRepo), sockets))

	body, _ := json.Marshal(map[string]any{
		"sessionId": "session-1",
		"to":        "5511999990000",
		"content":   map[string]any{"kind": "text", "text": "hello"},
	})

	rec := httptest.NewRecorder()
	h.Send(rec, authedRequest("POST", "/v1/messages", body))

	assert.Equal(t, http.StatusConflict, rec.Code)

	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, string(errors.ErrCodeNotConnected), resp["code"])
}

func TestListMessagesEndpoint(t *testing.T) {
	messages := new(mockMessageRepo)
	h := NewMessageHandler(service.NewMessageService(messages, new(mockContactRepo), &stubSockets{}))

	messages.On("List", mock.Anything, mock.MatchedBy(func(p model.ListMessagesParams) bool {
		return p.TenantID == "tenant-1" && p.Limit == 10 && p.Offset == 20
	})).Return([]model.Message{{ID: "msg-1"}}, nil)

	rec := httptest.NewRecorder()
	h.List(rec, authedRequest("GET", "/v1/messages?limit=10&offset=20", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	messages.AssertExpectations(t)
}

func TestSendBulkEndpointRejectsEmptyBatch(t *testing.T) {
	h := NewMessageHandler(service.NewMessageService(new(mockMessageRepo), new(mockContactRepo), &stubSockets{}))

	body, _ := json.Marshal(map[string]any{"sessionId": "session-1", "messages": []any{}})
	rec := httptest.NewRecorder()
	h.SendBulk(rec, authedRequest("POST", "/v1/messages/bulk", body))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
