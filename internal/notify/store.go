package notify

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lotwise/backend-lotwise/internal/events"
)

// ErrNotFound indicates a webhook row does not exist.
var ErrNotFound = errors.New("notify: not found")

// Store defines the persistence operations required for webhook management.
type Store interface {
	CreateEndpoint(ctx context.Context, ep Endpoint) (Endpoint, error)
	UpdateEndpoint(ctx context.Context, ep Endpoint) (Endpoint, error)
	GetEndpoint(ctx context.Context, tenantID string, id uuid.UUID) (Endpoint, error)
	ListEndpoints(ctx context.Context, tenantID string) ([]Endpoint, error)
	DeleteEndpoint(ctx context.Context, tenantID string, id uuid.UUID) error
	ListActiveEndpointsForTopic(ctx context.Context, tenantID, topic string) ([]Endpoint, error)

	InsertDelivery(ctx context.Context, d Delivery) (Delivery, error)
	GetDelivery(ctx context.Context, id uuid.UUID) (Delivery, error)
	ListDeliveries(ctx context.Context, tenantID string, limit, offset int) ([]Delivery, int64, error)
	MarkDelivering(ctx context.Context, id uuid.UUID) error
	MarkDelivered(ctx context.Context, id uuid.UUID, responseStatus int) error
	MarkFailed(ctx context.Context, id uuid.UUID, attempt int, status, lastError string) error
	ResetForReplay(ctx context.Context, tenantID string, id uuid.UUID) (Delivery, error)

	GetDomainEvent(ctx context.Context, id uuid.UUID) (events.Event, error)
}

// PgStore is the Postgres-backed Store.
type PgStore struct {
	Pool *pgxpool.Pool
}

const endpointColumns = `id, tenant_id, url, secret, topics, active, created_at, updated_at`

func scanEndpoint(row pgx.Row) (Endpoint, error) {
	var ep Endpoint
	err := row.Scan(&ep.ID, &ep.TenantID, &ep.URL, &ep.Secret, &ep.Topics, &ep.Active, &ep.CreatedAt, &ep.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Endpoint{}, ErrNotFound
		}
		return Endpoint{}, err
	}
	return ep, nil
}

func (s PgStore) CreateEndpoint(ctx context.Context, ep Endpoint) (Endpoint, error) {
	const q = `
INSERT INTO webhook_endpoints (id, tenant_id, url, secret, topics, active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
RETURNING ` + endpointColumns
	if ep.ID == uuid.Nil {
		ep.ID = uuid.New()
	}
	return scanEndpoint(s.Pool.QueryRow(ctx, q, ep.ID, ep.TenantID, ep.URL, ep.Secret, ep.Topics, ep.Active, time.Now().UTC()))
}

func (s PgStore) UpdateEndpoint(ctx context.Context, ep Endpoint) (Endpoint, error) {
	const q = `
UPDATE webhook_endpoints
SET url = $3, secret = $4, topics = $5, active = $6, updated_at = $7
WHERE tenant_id = $1 AND id = $2
RETURNING ` + endpointColumns
	return scanEndpoint(s.Pool.QueryRow(ctx, q, ep.TenantID, ep.ID, ep.URL, ep.Secret, ep.Topics, ep.Active, time.Now().UTC()))
}

func (s PgStore) GetEndpoint(ctx context.Context, tenantID string, id uuid.UUID) (Endpoint, error) {
	const q = `SELECT ` + endpointColumns + ` FROM webhook_endpoints WHERE tenant_id = $1 AND id = $2`
	return scanEndpoint(s.Pool.QueryRow(ctx, q, tenantID, id))
}

func (s PgStore) ListEndpoints(ctx context.Context, tenantID string) ([]Endpoint, error) {
	const q = `SELECT ` + endpointColumns + ` FROM webhook_endpoints WHERE tenant_id = $1 ORDER BY created_at DESC`
	rows, err := s.Pool.Query(ctx, q, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Endpoint
	for rows.Next() {
		ep, err := scanEndpoint(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ep)
	}
	return out, rows.Err()
}

func (s PgStore) DeleteEndpoint(ctx context.Context, tenantID string, id uuid.UUID) error {
	tag, err := s.Pool.Exec(ctx, `DELETE FROM webhook_endpoints WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s PgStore) ListActiveEndpointsForTopic(ctx context.Context, tenantID, topic string) ([]Endpoint, error) {
	const q = `
SELECT ` + endpointColumns + `
FROM webhook_endpoints
WHERE tenant_id = $1 AND active AND $2 = ANY(topics)`
	rows, err := s.Pool.Query(ctx, q, tenantID, topic)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Endpoint
	for rows.Next() {
		ep, err := scanEndpoint(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ep)
	}
	return out, rows.Err()
}

const deliveryColumns = `id, tenant_id, endpoint_id, event_id, attempt, max_attempt, status, last_error, response_status, delivered_at, created_at, updated_at`

func scanDelivery(row pgx.Row) (Delivery, error) {
	var d Delivery
	err := row.Scan(&d.ID, &d.TenantID, &d.EndpointID, &d.EventID, &d.Attempt, &d.MaxAttempt,
		&d.Status, &d.LastError, &d.ResponseStatus, &d.DeliveredAt, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Delivery{}, ErrNotFound
		}
		return Delivery{}, err
	}
	return d, nil
}

func (s PgStore) InsertDelivery(ctx context.Context, d Delivery) (Delivery, error) {
	const q = `
INSERT INTO webhook_deliveries
  (id, tenant_id, endpoint_id, event_id, attempt, max_attempt, status, last_error, response_status, created_at, updated_at)
VALUES ($1, $2, $3, $4, 0, $5, $6, '', 0, $7, $7)
ON CONFLICT (endpoint_id, event_id) DO NOTHING
RETURNING ` + deliveryColumns
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	if d.Status == "" {
		d.Status = StatusPending
	}
	row := s.Pool.QueryRow(ctx, q, d.ID, d.TenantID, d.EndpointID, d.EventID, d.MaxAttempt, d.Status, time.Now().UTC())
	return scanDelivery(row)
}

func (s PgStore) GetDelivery(ctx context.Context, id uuid.UUID) (Delivery, error) {
	const q = `SELECT ` + deliveryColumns + ` FROM webhook_deliveries WHERE id = $1`
	return scanDelivery(s.Pool.QueryRow(ctx, q, id))
}

func (s PgStore) ListDeliveries(ctx context.Context, tenantID string, limit, offset int) ([]Delivery, int64, error) {
	var total int64
	if err := s.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM webhook_deliveries WHERE tenant_id = $1`, tenantID).Scan(&total); err != nil {
		return nil, 0, err
	}
	const q = `
SELECT ` + deliveryColumns + `
FROM webhook_deliveries
WHERE tenant_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`
	rows, err := s.Pool.Query(ctx, q, tenantID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Delivery
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, d)
	}
	return out, total, rows.Err()
}

func (s PgStore) MarkDelivering(ctx context.Context, id uuid.UUID) error {
	const q = `UPDATE webhook_deliveries SET status = $2, updated_at = $3 WHERE id = $1`
	_, err := s.Pool.Exec(ctx, q, id, StatusDelivering, time.Now().UTC())
	return err
}

func (s PgStore) MarkDelivered(ctx context.Context, id uuid.UUID, responseStatus int) error {
	const q = `
UPDATE webhook_deliveries
SET status = $2, response_status = $3, delivered_at = $4, updated_at = $4
WHERE id = $1`
	_, err := s.Pool.Exec(ctx, q, id, StatusDelivered, responseStatus, time.Now().UTC())
	return err
}

func (s PgStore) MarkFailed(ctx context.Context, id uuid.UUID, attempt int, status, lastError string) error {
	const q = `
UPDATE webhook_deliveries
SET status = $2, attempt = $3, last_error = $4, updated_at = $5
WHERE id = $1`
	_, err := s.Pool.Exec(ctx, q, id, status, attempt, lastError, time.Now().UTC())
	return err
}

func (s PgStore) ResetForReplay(ctx context.Context, tenantID string, id uuid.UUID) (Delivery, error) {
	const q = `
UPDATE webhook_deliveries
SET status = $3, attempt = 0, last_error = '', updated_at = $4
WHERE tenant_id = $1 AND id = $2
RETURNING ` + deliveryColumns
	return scanDelivery(s.Pool.QueryRow(ctx, q, tenantID, id, StatusPending, time.Now().UTC()))
}

func (s PgStore) GetDomainEvent(ctx context.Context, id uuid.UUID) (events.Event, error) {
	const q = `SELECT id, tenant_id, topic, aggregate_id, payload, occurred_at FROM domain_events WHERE id = $1`
	var ev events.Event
	err := s.Pool.QueryRow(ctx, q, id).Scan(&ev.ID, &ev.TenantID, &ev.Topic, &ev.AggregateID, &ev.Payload, &ev.OccurredAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return events.Event{}, ErrNotFound
		}
		return events.Event{}, err
	}
	return ev, nil
}
