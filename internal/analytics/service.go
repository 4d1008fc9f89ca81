package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/lotwise/backend-lotwise/internal/pricing"
	"github.com/lotwise/backend-lotwise/internal/tenant"
)

// DailyRow is one day of session and revenue rollup for a tenant.
type DailyRow struct {
	Day            time.Time     `json:"day"`
	SessionsOpened int64         `json:"sessionsOpened"`
	SessionsClosed int64         `json:"sessionsClosed"`
	Revenue        pricing.Money `json:"revenue"`
	AvgFee         pricing.Money `json:"avgFee"`
	GraceSessions  int64         `json:"graceSessions"`
	AvgStayMinutes int64         `json:"avgStayMinutes"`
}

// Occupancy is a point-in-time view of lot utilisation.
type Occupancy struct {
	ActiveSessions int64 `json:"activeSessions"`
}

// Querier defines the database access required for analytics operations.
type Querier interface {
	RevenueDailyRange(ctx context.Context, tenantID string, from, to time.Time) ([]DailyRow, error)
	ActiveSessionCount(ctx context.Context, tenantID string) (int64, error)
}

// PgQuerier computes rollups directly from parking_sessions. Volumes here are
// modest enough that live aggregates with a short cache beat maintaining
// materialized views.
type PgQuerier struct {
	Pool *pgxpool.Pool
}

// RevenueDailyRange aggregates closed sessions per day, inclusive of from and
// exclusive of to.
func (q PgQuerier) RevenueDailyRange(ctx context.Context, tenantID string, from, to time.Time) ([]DailyRow, error) {
	const query = `
SELECT
  date_trunc('day', exit_at) AS day,
  COUNT(*) FILTER (WHERE entry_at >= date_trunc('day', exit_at)) AS sessions_opened,
  COUNT(*) AS sessions_closed,
  COALESCE(SUM(calculated_fee), 0) AS revenue,
  COALESCE(AVG(calculated_fee), 0)::bigint AS avg_fee,
  COUNT(*) FILTER (WHERE calculated_fee = 0) AS grace_sessions,
  COALESCE(AVG(EXTRACT(EPOCH FROM (exit_at - entry_at)) / 60), 0)::bigint AS avg_stay_minutes
FROM parking_sessions
WHERE tenant_id = $1 AND exit_at IS NOT NULL AND exit_at >= $2 AND exit_at < $3
GROUP BY 1
ORDER BY 1`
	rows, err := q.Pool.Query(ctx, query, tenantID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DailyRow
	for rows.Next() {
		var r DailyRow
		if err := rows.Scan(&r.Day, &r.SessionsOpened, &r.SessionsClosed, &r.Revenue,
			&r.AvgFee, &r.GraceSessions, &r.AvgStayMinutes); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ActiveSessionCount counts sessions without an exit.
func (q PgQuerier) ActiveSessionCount(ctx context.Context, tenantID string) (int64, error) {
	const query = `SELECT COUNT(*) FROM parking_sessions WHERE tenant_id = $1 AND exit_at IS NULL`
	var n int64
	err := q.Pool.QueryRow(ctx, query, tenantID).Scan(&n)
	return n, err
}

// Service provides cached access to revenue and occupancy rollups.
type Service struct {
	Q            Querier
	R            *redis.Client
	TTL          time.Duration
	DefaultRange int
	Now          func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func cacheKey(tenantID string, parts ...any) string {
	formatted := make([]string, 0, len(parts)+1)
	formatted = append(formatted, "an")
	for _, part := range parts {
		formatted = append(formatted, fmt.Sprint(part))
	}
	return tenant.PrefixKey(tenantID, strings.Join(formatted, ":"))
}

// RevenueRange returns the daily rollup between the provided bounds,
// inclusive of from and exclusive of to.
func (s *Service) RevenueRange(ctx context.Context, tenantID string, from, to time.Time) ([]DailyRow, error) {
	if s == nil || s.Q == nil {
		return nil, fmt.Errorf("analytics service not configured")
	}
	key := cacheKey(tenantID, "revenue", from.Format("2006-01-02"), to.Format("2006-01-02"))
	if rows, ok := s.fromCache(ctx, key); ok {
		return rows, nil
	}
	rows, err := s.Q.RevenueDailyRange(ctx, tenantID, from, to)
	if err != nil {
		return nil, err
	}
	s.store(ctx, key, rows)
	return rows, nil
}

// DefaultRangeBounds resolves the default reporting window ending today.
func (s *Service) DefaultRangeBounds() (time.Time, time.Time) {
	days := s.DefaultRange
	if days <= 0 {
		days = 30
	}
	to := s.now().UTC().Truncate(24 * time.Hour).Add(24 * time.Hour)
	from := to.AddDate(0, 0, -days)
	return from, to
}

// CurrentOccupancy returns the live count of active sessions. Not cached:
// occupancy drives gate displays and must be fresh.
func (s *Service) CurrentOccupancy(ctx context.Context, tenantID string) (Occupancy, error) {
	if s == nil || s.Q == nil {
		return Occupancy{}, fmt.Errorf("analytics service not configured")
	}
	n, err := s.Q.ActiveSessionCount(ctx, tenantID)
	if err != nil {
		return Occupancy{}, err
	}
	return Occupancy{ActiveSessions: n}, nil
}

func (s *Service) fromCache(ctx context.Context, key string) ([]DailyRow, bool) {
	if s.R == nil || s.TTL <= 0 {
		return nil, false
	}
	data, err := s.R.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var rows []DailyRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, false
	}
	return rows, true
}

func (s *Service) store(ctx context.Context, key string, value any) {
	if s.R == nil || s.TTL <= 0 {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	_ = s.R.Set(ctx, key, data, s.TTL).Err()
}
