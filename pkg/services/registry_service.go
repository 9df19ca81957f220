package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/anant-gupta-utexas/slo-recommendation-engine-sub001/pkg/models"
	"github.com/anant-gupta-utexas/slo-recommendation-engine-sub001/pkg/store"
)

// RegistryService manages explicit service registration and lookup.
type RegistryService struct {
	stores *store.Stores
}

// NewRegistryService creates a new RegistryService.
func NewRegistryService(stores *store.Stores) *RegistryService {
	if stores == nil {
		panic("NewRegistryService: stores must not be nil")
	}
	return &RegistryService{stores: stores}
}

// RegisterService upserts one explicitly declared service. Registration
// clears the discovered flag if a placeholder row already existed.
func (s *RegistryService) RegisterService(ctx context.Context, svc *models.Service) (*models.Service, error) {
	if svc == nil {
		return nil, NewValidationError("service", "service body is required")
	}
	applyServiceDefaults(svc)
	if err := svc.Validate(); err != nil {
		return nil, NewValidationError("service", err.Error())
	}

	svc.Discovered = false
	if _, err := s.stores.Services.UpsertMany(ctx, []*models.Service{svc}); err != nil {
		return nil, storageErr("register service", err)
	}

	stored, err := s.stores.Services.GetByServiceID(ctx, svc.ServiceID)
	if err != nil {
		return nil, storageErr("load registered service", err)
	}
	return stored, nil
}

// GetService fetches one service by its business identifier.
func (s *RegistryService) GetService(ctx context.Context, serviceID string) (*models.Service, error) {
	if serviceID == "" {
		return nil, NewValidationError("service_id", "service_id is required")
	}
	svc, err := s.stores.Services.GetByServiceID(ctx, serviceID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("service %s: %w", serviceID, ErrNotFound)
	}
	if err != nil {
		return nil, storageErr("get service", err)
	}
	return svc, nil
}

// ListServices returns a page of services plus the total matching count.
func (s *RegistryService) ListServices(ctx context.Context, skip, limit int, filters models.ServiceFilters) ([]*models.Service, int, error) {
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	services, total, err := s.stores.Services.ListAll(ctx, skip, limit, filters)
	if err != nil {
		return nil, 0, storageErr("list services", err)
	}
	return services, total, nil
}

func applyServiceDefaults(svc *models.Service) {
	if svc.Criticality == "" {
		svc.Criticality = models.CriticalityMedium
	}
	if svc.ServiceType == "" {
		svc.ServiceType = models.ServiceTypeInternal
	}
}
