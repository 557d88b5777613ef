package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/wagate/gateway-server-go/internal/model"
	"github.com/wagate/gateway-server-go/internal/repository"
	"github.com/wagate/gateway-server-go/internal/service"
	"github.com/wagate/gateway-server-go/internal/webhook"
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

func newTenantHandler(repo *mockTenantRepo) *TenantHandler {
	return NewTenantHandler(service.NewTenantService(repo, webhook.NewNotifier(webhook.NewDispatcher())))
}

func TestCreateTenantEndpoint(t *testing.T) {
	repo := new(mockTenantRepo)
	h := newTenantHandler(repo)

	repo.On("FindByName", mock.Anything, "acme").Return(nil, nil)
	repo.On("Create", mock.Anything, mock.Anything).
		Return(&model.Tenant{ID: "tenant-1", Name: "acme"}, nil)

	body, _ := json.Marshal(map[string]any{"name": "acme"})
	rec := httptest.NewRecorder()
	h.Create(rec, httptest.NewRequest("POST", "/v1/tenants", bytes.NewReader(body)))

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Tenant model.Tenant `json:"tenant"`
		APIKey string       `json:"apiKey"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "tenant-1", resp.Tenant.ID)
	assert.NotEmpty(t, resp.APIKey)
}

func TestCreateTenantEndpointValidation(t *testing.T) {
	h := newTenantHandler(new(mockTenantRepo))

	body, _ := json.Marshal(map[string]any{"name": ""})
	rec := httptest.NewRecorder()
	h.Create(rec, httptest.NewRequest("POST", "/v1/tenants", bytes.NewReader(body)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetTenantEndpointScopedToSelf(t *testing.T) {
	repo := new(mockTenantRepo)
	h := newTenantHandler(repo)

	router := chi.NewRouter()
	router.Mount("/v1/tenants", h.Routes())

	// Authenticated as tenant-1, asking for tenant-2.
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest("GET", "/v1/tenants/tenant-2", nil))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	repo.AssertNotCalled(t, "FindByID")
}

func TestUpdateTenantSettingsEndpoint(t *testing.T) {
	repo := new(mockTenantRepo)
	h := newTenantHandler(repo)

	url := "https://hooks.example.com/wa"
	repo.On("UpdateSettings", mock.Anything, "tenant-1", mock.MatchedBy(func(p model.UpdateTenantSettingsParams) bool {
		return p.WebhookURL != nil && *p.WebhookURL == url
	})).Return(&model.Tenant{ID: "tenant-1", WebhookURL: &url}, nil)

	router := chi.NewRouter()
	router.Mount("/v1/tenants", h.Routes())

	body, _ := json.Marshal(map[string]any{"webhookUrl": url})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest("PATCH", "/v1/tenants/tenant-1/settings", body))

	require.Equal(t, http.StatusOK, rec.Code)
	repo.AssertExpectations(t)
}
