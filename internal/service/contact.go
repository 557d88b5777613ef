package service

import (
	"context"

	"github.com/wagate/gateway-server-go/internal/errors"
	"github.com/wagate/gateway-server-go/internal/model"
	"github.com/wagate/gateway-server-go/internal/repository"
)

type ContactService struct {
	contactRepo repository.ContactRepository
}

func NewContactService(contactRepo repository.ContactRepository) *ContactService {
	return &ContactService{contactRepo: contactRepo}
}

func (s *ContactService) Search(ctx context.Context, tenantID, query string, limit, offset int) ([]model.Contact, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.contactRepo.Search(ctx, tenantID, query, limit, offset)
}

func (s *ContactService) Get(ctx context.Context, tenantID, id string) (*model.Contact, error) {
	contact, err := s.contactRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if contact == nil || contact.TenantID != tenantID {
		return nil, errors.NotFound("contact")
	}
	return contact, nil
}
