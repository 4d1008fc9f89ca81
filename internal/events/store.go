package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store persists domain events in Postgres.
type Store struct {
	Pool *pgxpool.Pool
}

// InsertDomainEvent appends an event to the domain_events log.
func (s Store) InsertDomainEvent(ctx context.Context, ev Event) (Event, error) {
	const q = `
INSERT INTO domain_events (id, tenant_id, topic, aggregate_id, payload, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, tenant_id, topic, aggregate_id, payload, occurred_at`
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	row := s.Pool.QueryRow(ctx, q, ev.ID, ev.TenantID, ev.Topic, ev.AggregateID, ev.Payload, ev.OccurredAt)
	var out Event
	if err := row.Scan(&out.ID, &out.TenantID, &out.Topic, &out.AggregateID, &out.Payload, &out.OccurredAt); err != nil {
		return Event{}, err
	}
	return out, nil
}
