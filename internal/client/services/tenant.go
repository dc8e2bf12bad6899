package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/datngoHD/white-label-app/internal/client/api"
	"github.com/datngoHD/white-label-app/internal/client/cache"
	"github.com/datngoHD/white-label-app/internal/client/models"
	"github.com/datngoHD/white-label-app/internal/logging"
)

const (
	tenantConfigPath   = "/tenant/config"
	tenantStatusPath   = "/tenant/status"
	tenantFeaturesPath = "/tenant/features"

	domainTenant = "tenant"
)

// TenantService reads the white-label configuration of the active tenant.
// Everything is cached under the "tenant" domain; Refresh drops freshness
// so the next read revalidates.
type TenantService interface {
	Config(ctx context.Context) (*models.TenantConfig, error)
	Status(ctx context.Context) (*models.TenantStatus, error)
	Features(ctx context.Context) (models.FeatureFlags, error)
	Refresh()
}

type tenantService struct {
	client  *api.Client
	tenant  *api.TenantHolder
	queries *cache.QueryCache
	log     logging.Logger
}

func NewTenantService(client *api.Client, tenant *api.TenantHolder, queries *cache.QueryCache, log logging.Logger) TenantService {
	if log == nil {
		log = logging.Default()
	}
	return &tenantService{client: client, tenant: tenant, queries: queries, log: log}
}

func (s *tenantService) Config(ctx context.Context) (*models.TenantConfig, error) {
	var config models.TenantConfig
	if err := s.cached(ctx, "config", tenantConfigPath, &config); err != nil {
		return nil, err
	}
	return &config, nil
}

func (s *tenantService) Status(ctx context.Context) (*models.TenantStatus, error) {
	var status models.TenantStatus
	if err := s.cached(ctx, "status", tenantStatusPath, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (s *tenantService) Features(ctx context.Context) (models.FeatureFlags, error) {
	var flags models.FeatureFlags
	if err := s.cached(ctx, "features", tenantFeaturesPath, &flags); err != nil {
		return nil, err
	}
	return flags, nil
}

// Refresh marks every tenant read stale; online, they revalidate in the
// background right away.
func (s *tenantService) Refresh() {
	s.queries.Invalidate(models.NewKey(domainTenant, s.tenant.Get()))
}

func (s *tenantService) cached(ctx context.Context, qualifier, path string, out any) error {
	key := models.NewKey(domainTenant, s.tenant.Get(), qualifier)
	raw, err := s.queries.Fetch(ctx, key, func(ctx context.Context) (json.RawMessage, error) {
		var body json.RawMessage
		if err := s.client.GetJSON(ctx, path, &body); err != nil {
			return nil, err
		}
		return body, nil
	})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode cached tenant data: %w", err)
	}
	return nil
}
