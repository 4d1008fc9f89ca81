package settings

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/lotwise/backend-lotwise/internal/pricing"
	"github.com/lotwise/backend-lotwise/internal/tenant"
)

// Service reads and writes tenant pricing configuration with a read-through
// cache. Missing rows are not an error: the fee engine substitutes defaults.
type Service struct {
	Store Store
	Cache *Cache
}

func rateKey(tenantID string) string {
	return tenant.PrefixKey(tenantID, "settings:rates")
}

func businessKey(tenantID string) string {
	return tenant.PrefixKey(tenantID, "settings:business")
}

// RateSchedule returns the tenant's rate schedule, or nil when none is configured.
func (s *Service) RateSchedule(ctx context.Context, tenantID string) (*pricing.RateSchedule, error) {
	var cached pricing.RateSchedule
	hit, err := s.Cache.GetJSON(ctx, rateKey(tenantID), &cached)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("rate schedule cache read failed")
	}
	if hit {
		return &cached, nil
	}

	rs, err := s.Store.GetRateSchedule(ctx, tenantID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load rate schedule: %w", err)
	}
	if err := s.Cache.SetJSON(ctx, rateKey(tenantID), rs); err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("rate schedule cache write failed")
	}
	return &rs, nil
}

// UpdateRateSchedule stores the schedule and invalidates the cache.
func (s *Service) UpdateRateSchedule(ctx context.Context, tenantID string, rs pricing.RateSchedule) error {
	if err := s.Store.UpsertRateSchedule(ctx, tenantID, rs); err != nil {
		return fmt.Errorf("save rate schedule: %w", err)
	}
	s.Cache.Invalidate(ctx, rateKey(tenantID))
	return nil
}

// Business returns the tenant's business settings, or nil when none is configured.
func (s *Service) Business(ctx context.Context, tenantID string) (*pricing.Business, error) {
	var cached pricing.Business
	hit, err := s.Cache.GetJSON(ctx, businessKey(tenantID), &cached)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("business settings cache read failed")
	}
	if hit {
		return &cached, nil
	}

	b, err := s.Store.GetBusiness(ctx, tenantID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load business settings: %w", err)
	}
	if err := s.Cache.SetJSON(ctx, businessKey(tenantID), b); err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("business settings cache write failed")
	}
	return &b, nil
}

// UpdateBusiness stores the settings and invalidates the cache.
func (s *Service) UpdateBusiness(ctx context.Context, tenantID string, b pricing.Business) error {
	if err := s.Store.UpsertBusiness(ctx, tenantID, b); err != nil {
		return fmt.Errorf("save business settings: %w", err)
	}
	s.Cache.Invalidate(ctx, businessKey(tenantID))
	return nil
}
