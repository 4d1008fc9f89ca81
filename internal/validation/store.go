package validation

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lotwise/backend-lotwise/internal/pricing"
)

// ErrNotFound indicates the validation does not exist for the session.
var ErrNotFound = errors.New("validation: not found")

// Record is a merchant validation attached to a parking session. Applied in
// grant order when the fee is computed.
type Record struct {
	ID              uuid.UUID     `json:"id"`
	TenantID        string        `json:"-"`
	SessionID       uuid.UUID     `json:"sessionId"`
	ValidatorName   string        `json:"validatorName"`
	DiscountPercent int           `json:"discountPercent"`
	DiscountAmount  pricing.Money `json:"discountAmount"`
	GrantedBy       string        `json:"grantedBy,omitempty"`
	CreatedAt       time.Time     `json:"createdAt"`
}

// Pricing converts the record into the shape the fee engine consumes.
func (r Record) Pricing() pricing.Validation {
	return pricing.Validation{
		ValidatorName:   r.ValidatorName,
		DiscountPercent: r.DiscountPercent,
		DiscountAmount:  r.DiscountAmount,
	}
}

// Store persists session validations.
type Store struct {
	Pool *pgxpool.Pool
}

// Create inserts a validation.
func (s Store) Create(ctx context.Context, rec Record) (Record, error) {
	const q = `
INSERT INTO parking_validations
  (id, tenant_id, session_id, validator_name, discount_percent, discount_amount, granted_by, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id, tenant_id, session_id, validator_name, discount_percent, discount_amount, granted_by, created_at`
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	row := s.Pool.QueryRow(ctx, q, rec.ID, rec.TenantID, rec.SessionID,
		rec.ValidatorName, rec.DiscountPercent, rec.DiscountAmount, rec.GrantedBy, time.Now().UTC())
	return scanRecord(row)
}

// ListBySession returns a session's validations in grant order.
func (s Store) ListBySession(ctx context.Context, tenantID string, sessionID uuid.UUID) ([]Record, error) {
	const q = `
SELECT id, tenant_id, session_id, validator_name, discount_percent, discount_amount, granted_by, created_at
FROM parking_validations
WHERE tenant_id = $1 AND session_id = $2
ORDER BY created_at ASC, id ASC`
	rows, err := s.Pool.Query(ctx, q, tenantID, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Delete revokes a validation.
func (s Store) Delete(ctx context.Context, tenantID string, sessionID, id uuid.UUID) error {
	const q = `DELETE FROM parking_validations WHERE tenant_id = $1 AND session_id = $2 AND id = $3`
	tag, err := s.Pool.Exec(ctx, q, tenantID, sessionID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanRecord(row pgx.Row) (Record, error) {
	var rec Record
	err := row.Scan(&rec.ID, &rec.TenantID, &rec.SessionID, &rec.ValidatorName,
		&rec.DiscountPercent, &rec.DiscountAmount, &rec.GrantedBy, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	return rec, nil
}
