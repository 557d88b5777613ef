package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/wagate/gateway-server-go/internal/errors"
	"github.com/wagate/gateway-server-go/internal/model"
)

func TestSearchContactsClampsPaging(t *testing.T) {
	repo := new(mockContactRepo)
	svc := NewContactService(repo)

	repo.On("Search", mock.Anything, "tenant-1", "bob", 50, 0).Return([]model.Contact{}, nil)

	_, err := svc.Search(context.Background(), "tenant-1", "bob", 9999, -3)
	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestGetContactHidesOtherTenants(t *testing.T) {
	repo := new(mockContactRepo)
	svc := NewContactService(repo)

	repo.On("FindByID", mock.Anything, "contact-1").
		Return(&model.Contact{ID: "contact-1", TenantID: "tenant-2"}, nil)

	_, err := svc.Get(context.Background(), "tenant-1", "contact-1")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeNotFound, errors.GetCode(err))
}
