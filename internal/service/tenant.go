package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/wagate/gateway-server-go/internal/errors"
	"github.com/wagate/gateway-server-go/internal/model"
	"github.com/wagate/gateway-server-go/internal/repository"
	"github.com/wagate/gateway-server-go/internal/webhook"
)

type CreateTenantParams struct {
	Name                 string
	WebhookURL           *string
	ReceiveGroupMessages bool
	AutoReconnect        bool
}

type TenantService struct {
	tenantRepo repository.TenantRepository
	notifier   *webhook.Notifier
}

func NewTenantService(tenantRepo repository.TenantRepository, notifier *webhook.Notifier) *TenantService {
	return &TenantService{
		tenantRepo: tenantRepo,
		notifier:   notifier,
	}
}

// Create provisions a tenant with a generated API key. The key is
// returned once, on this call only.
func (s *TenantService) Create(ctx context.Context, params CreateTenantParams) (*model.Tenant, string, error) {
	if params.Name == "" {
		return nil, "", errors.MissingRequired("name")
	}
	if params.WebhookURL != nil && *params.WebhookURL != "" {
		if err := webhook.ValidateURL(*params.WebhookURL); err != nil {
			return nil, "", err
		}
	}

	existing, err := s.tenantRepo.FindByName(ctx, params.Name)
	if err != nil {
		return nil, "", err
	}
	if existing != nil {
		return nil, "", errors.AlreadyExists("tenant")
	}

	apiKey := uuid.NewString()
	tenant, err := s.tenantRepo.Create(ctx, model.CreateTenantParams{
		Name:                 params.Name,
		APIKey:               apiKey,
		WebhookURL:           params.WebhookURL,
		ReceiveGroupMessages: params.ReceiveGroupMessages,
		AutoReconnect:        params.AutoReconnect,
	})
	if err != nil {
		return nil, "", err
	}

	log.Info().
		Str("tenantId", tenant.ID).
		Str("name", tenant.Name).
		Msg("tenant created")

	return tenant, apiKey, nil
}

func (s *TenantService) FindByID(ctx context.Context, id string) (*model.Tenant, error) {
	tenant, err := s.tenantRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if tenant == nil {
		return nil, errors.TenantNotFound(id)
	}
	return tenant, nil
}

// FindByAPIKey resolves the tenant for a request credential. A missing
// key returns nil without error; the middleware decides the response.
func (s *TenantService) FindByAPIKey(ctx context.Context, apiKey string) (*model.Tenant, error) {
	return s.tenantRepo.FindByAPIKey(ctx, apiKey)
}

func (s *TenantService) UpdateSettings(ctx context.Context, id string, params model.UpdateTenantSettingsParams) (*model.Tenant, error) {
	if params.WebhookURL != nil && *params.WebhookURL != "" {
		if err := webhook.ValidateURL(*params.WebhookURL); err != nil {
			return nil, err
		}
	}

	tenant, err := s.tenantRepo.UpdateSettings(ctx, id, params)
	if err != nil {
		return nil, err
	}
	if tenant == nil {
		return nil, errors.TenantNotFound(id)
	}

	log.Info().Str("tenantId", id).Msg("tenant settings updated")
	return tenant, nil
}

func (s *TenantService) Suspend(ctx context.Context, id string) error {
	tenant, err := s.tenantRepo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if tenant == nil {
		return errors.TenantNotFound(id)
	}
	if err := s.tenantRepo.Suspend(ctx, id); err != nil {
		return err
	}
	log.Warn().Str("tenantId", id).Msg("tenant suspended")
	return nil
}

// TestWebhook probes an endpoint before the tenant commits to it. An
// empty URL falls back to the stored one.
func (s *TenantService) TestWebhook(ctx context.Context, tenantID, url string) error {
	if url == "" {
		tenant, err := s.FindByID(ctx, tenantID)
		if err != nil {
			return err
		}
		if tenant.WebhookURL == nil || *tenant.WebhookURL == "" {
			return errors.MissingRequired("webhookUrl")
		}
		url = *tenant.WebhookURL
	}
	return s.notifier.Test(ctx, url, tenantID)
}
