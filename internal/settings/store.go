package settings

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lotwise/backend-lotwise/internal/pricing"
)

// ErrNotFound indicates no stored configuration for the tenant.
var ErrNotFound = errors.New("settings: not found")

// Store persists tenant pricing configuration.
type Store struct {
	Pool *pgxpool.Pool
}

// GetRateSchedule loads the tenant's rate schedule.
func (s Store) GetRateSchedule(ctx context.Context, tenantID string) (pricing.RateSchedule, error) {
	const q = `
SELECT hourly_rate, first_hour_rate, daily_max_rate, grace_period_minutes,
       night_rate, night_start_hour, night_end_hour, weekend_rate
FROM parking_settings WHERE tenant_id = $1`
	var rs pricing.RateSchedule
	err := s.Pool.QueryRow(ctx, q, tenantID).Scan(
		&rs.HourlyRate, &rs.FirstHourRate, &rs.DailyMaxRate, &rs.GracePeriodMinutes,
		&rs.NightRate, &rs.NightStartHour, &rs.NightEndHour, &rs.WeekendRate,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return pricing.RateSchedule{}, ErrNotFound
		}
		return pricing.RateSchedule{}, err
	}
	return rs, nil
}

// UpsertRateSchedule stores the tenant's rate schedule.
func (s Store) UpsertRateSchedule(ctx context.Context, tenantID string, rs pricing.RateSchedule) error {
	const q = `
INSERT INTO parking_settings
  (tenant_id, hourly_rate, first_hour_rate, daily_max_rate, grace_period_minutes,
   night_rate, night_start_hour, night_end_hour, weekend_rate, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (tenant_id) DO UPDATE SET
  hourly_rate = EXCLUDED.hourly_rate,
  first_hour_rate = EXCLUDED.first_hour_rate,
  daily_max_rate = EXCLUDED.daily_max_rate,
  grace_period_minutes = EXCLUDED.grace_period_minutes,
  night_rate = EXCLUDED.night_rate,
  night_start_hour = EXCLUDED.night_start_hour,
  night_end_hour = EXCLUDED.night_end_hour,
  weekend_rate = EXCLUDED.weekend_rate,
  updated_at = EXCLUDED.updated_at`
	_, err := s.Pool.Exec(ctx, q, tenantID,
		rs.HourlyRate, rs.FirstHourRate, rs.DailyMaxRate, rs.GracePeriodMinutes,
		rs.NightRate, rs.NightStartHour, rs.NightEndHour, rs.WeekendRate, time.Now().UTC())
	return err
}

// GetBusiness loads the tenant's business settings.
func (s Store) GetBusiness(ctx context.Context, tenantID string) (pricing.Business, error) {
	const q = `
SELECT tax_rate_bps, tax_label, currency, locale
FROM business_settings WHERE tenant_id = $1`
	var b pricing.Business
	err := s.Pool.QueryRow(ctx, q, tenantID).Scan(&b.TaxRateBps, &b.TaxLabel, &b.Currency, &b.Locale)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return pricing.Business{}, ErrNotFound
		}
		return pricing.Business{}, err
	}
	return b, nil
}

// UpsertBusiness stores the tenant's business settings.
func (s Store) UpsertBusiness(ctx context.Context, tenantID string, b pricing.Business) error {
	const q = `
INSERT INTO business_settings (tenant_id, tax_rate_bps, tax_label, currency, locale, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (tenant_id) DO UPDATE SET
  tax_rate_bps = EXCLUDED.tax_rate_bps,
  tax_label = EXCLUDED.tax_label,
  currency = EXCLUDED.currency,
  locale = EXCLUDED.locale,
  updated_at = EXCLUDED.updated_at`
	_, err := s.Pool.Exec(ctx, q, tenantID, b.TaxRateBps, b.TaxLabel, b.Currency, b.Locale, time.Now().UTC())
	return err
}
