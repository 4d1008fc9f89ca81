package parker

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates no frequent parker matched the lookup.
var ErrNotFound = errors.New("parker: not found")

// ErrDuplicatePlate indicates the plate is already registered for the tenant.
var ErrDuplicatePlate = errors.New("parker: plate already registered")

const selectColumns = `id, tenant_id, plate, name, phone, is_vip, monthly_pass_expiry, notes, created_at, updated_at`

// Store persists frequent parker records.
type Store struct {
	Pool *pgxpool.Pool
}

func scanParker(row pgx.Row) (FrequentParker, error) {
	var p FrequentParker
	err := row.Scan(&p.ID, &p.TenantID, &p.Plate, &p.Name, &p.Phone, &p.IsVIP,
		&p.MonthlyPassExpiry, &p.Notes, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// Create inserts a frequent parker. The plate must already be normalized.
func (s Store) Create(ctx context.Context, p FrequentParker) (FrequentParker, error) {
	const q = `
INSERT INTO frequent_parkers
  (id, tenant_id, plate, name, phone, is_vip, monthly_pass_expiry, notes, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
RETURNING ` + selectColumns
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now().UTC()
	row := s.Pool.QueryRow(ctx, q, p.ID, p.TenantID, p.Plate, p.Name, p.Phone,
		p.IsVIP, p.MonthlyPassExpiry, p.Notes, now)
	created, err := scanParker(row)
	if err != nil {
		if isUniqueViolation(err) {
			return FrequentParker{}, ErrDuplicatePlate
		}
		return FrequentParker{}, err
	}
	return created, nil
}

// GetByPlate looks a parker up by normalized plate within the tenant.
func (s Store) GetByPlate(ctx context.Context, tenantID, plate string) (FrequentParker, error) {
	const q = `SELECT ` + selectColumns + ` FROM frequent_parkers WHERE tenant_id = $1 AND plate = $2`
	p, err := scanParker(s.Pool.QueryRow(ctx, q, tenantID, plate))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return FrequentParker{}, ErrNotFound
		}
		return FrequentParker{}, err
	}
	return p, nil
}

// GetByID looks a parker up by id within the tenant.
func (s Store) GetByID(ctx context.Context, tenantID string, id uuid.UUID) (FrequentParker, error) {
	const q = `SELECT ` + selectColumns + ` FROM frequent_parkers WHERE tenant_id = $1 AND id = $2`
	p, err := scanParker(s.Pool.QueryRow(ctx, q, tenantID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return FrequentParker{}, ErrNotFound
		}
		return FrequentParker{}, err
	}
	return p, nil
}

// List returns the tenant's frequent parkers, most recently updated first.
func (s Store) List(ctx context.Context, tenantID string, limit, offset int) ([]FrequentParker, int64, error) {
	const countQ = `SELECT COUNT(*) FROM frequent_parkers WHERE tenant_id = $1`
	var total int64
	if err := s.Pool.QueryRow(ctx, countQ, tenantID).Scan(&total); err != nil {
		return nil, 0, err
	}

	const q = `
SELECT ` + selectColumns + `
FROM frequent_parkers
WHERE tenant_id = $1
ORDER BY updated_at DESC
LIMIT $2 OFFSET $3`
	rows, err := s.Pool.Query(ctx, q, tenantID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []FrequentParker
	for rows.Next() {
		p, err := scanParker(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

// Update replaces the mutable fields of a parker record.
func (s Store) Update(ctx context.Context, p FrequentParker) (FrequentParker, error) {
	const q = `
UPDATE frequent_parkers
SET name = $3, phone = $4, is_vip = $5, monthly_pass_expiry = $6, notes = $7, updated_at = $8
WHERE tenant_id = $1 AND id = $2
RETURNING ` + selectColumns
	row := s.Pool.QueryRow(ctx, q, p.TenantID, p.ID, p.Name, p.Phone, p.IsVIP,
		p.MonthlyPassExpiry, p.Notes, time.Now().UTC())
	updated, err := scanParker(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return FrequentParker{}, ErrNotFound
		}
		return FrequentParker{}, err
	}
	return updated, nil
}

// Delete removes a parker record.
func (s Store) Delete(ctx context.Context, tenantID string, id uuid.UUID) error {
	const q = `DELETE FROM frequent_parkers WHERE tenant_id = $1 AND id = $2`
	tag, err := s.Pool.Exec(ctx, q, tenantID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
