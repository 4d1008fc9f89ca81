package session

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lotwise/backend-lotwise/internal/pricing"
)

var (
	// ErrNotFound indicates the session does not exist for the tenant.
	ErrNotFound = errors.New("session: not found")
	// ErrAlreadyClosed indicates the conditional close matched no open row.
	ErrAlreadyClosed = errors.New("session: already closed")
	// ErrOpenSessionExists indicates the plate already has an active session.
	ErrOpenSessionExists = errors.New("session: open session exists for plate")
)

const sessionColumns = `id, tenant_id, plate, parker_id, entry_gate, exit_gate, entry_at, exit_at, calculated_fee, fee_detail, created_at, updated_at`

// Store persists parking sessions.
type Store struct {
	Pool *pgxpool.Pool
}

func scanSession(row pgx.Row) (Session, error) {
	var s Session
	err := row.Scan(&s.ID, &s.TenantID, &s.Plate, &s.ParkerID, &s.EntryGate, &s.ExitGate,
		&s.EntryAt, &s.ExitAt, &s.CalculatedFee, &s.FeeDetail, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

// Insert opens a session. A partial unique index on (tenant_id, plate) for
// open rows rejects a second active session for the same vehicle.
func (s Store) Insert(ctx context.Context, sess Session) (Session, error) {
	const q = `
INSERT INTO parking_sessions
  (id, tenant_id, plate, parker_id, entry_gate, entry_at, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
RETURNING ` + sessionColumns
	if sess.ID == uuid.Nil {
		sess.ID = uuid.New()
	}
	now := time.Now().UTC()
	if sess.EntryAt.IsZero() {
		sess.EntryAt = now
	}
	row := s.Pool.QueryRow(ctx, q, sess.ID, sess.TenantID, sess.Plate, sess.ParkerID,
		sess.EntryGate, sess.EntryAt, now)
	created, err := scanSession(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Session{}, ErrOpenSessionExists
		}
		return Session{}, err
	}
	return created, nil
}

// GetByID loads one session.
func (s Store) GetByID(ctx context.Context, tenantID string, id uuid.UUID) (Session, error) {
	const q = `SELECT ` + sessionColumns + ` FROM parking_sessions WHERE tenant_id = $1 AND id = $2`
	sess, err := scanSession(s.Pool.QueryRow(ctx, q, tenantID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Session{}, ErrNotFound
		}
		return Session{}, err
	}
	return sess, nil
}

// FindOpenByPlate returns the active session for a normalized plate, if any.
func (s Store) FindOpenByPlate(ctx context.Context, tenantID, plate string) (Session, error) {
	const q = `
SELECT ` + sessionColumns + `
FROM parking_sessions
WHERE tenant_id = $1 AND plate = $2 AND exit_at IS NULL
ORDER BY entry_at DESC
LIMIT 1`
	sess, err := scanSession(s.Pool.QueryRow(ctx, q, tenantID, plate))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Session{}, ErrNotFound
		}
		return Session{}, err
	}
	return sess, nil
}

// Close finalises a session at most once. The WHERE clause only matches the
// open row, so a concurrent duplicate observes zero rows and reports
// ErrAlreadyClosed instead of overwriting the stored fee.
func (s Store) Close(ctx context.Context, tenantID string, id uuid.UUID, exitAt time.Time, exitGate string, fee pricing.Money, detail json.RawMessage) (Session, error) {
	const q = `
UPDATE parking_sessions
SET exit_at = $3, exit_gate = $4, calculated_fee = $5, fee_detail = $6, updated_at = $7
WHERE tenant_id = $1 AND id = $2 AND exit_at IS NULL
RETURNING ` + sessionColumns
	row := s.Pool.QueryRow(ctx, q, tenantID, id, exitAt, exitGate, fee, detail, time.Now().UTC())
	closed, err := scanSession(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Distinguish a duplicate close from a missing session.
			if _, getErr := s.GetByID(ctx, tenantID, id); getErr == nil {
				return Session{}, ErrAlreadyClosed
			} else if errors.Is(getErr, ErrNotFound) {
				return Session{}, ErrNotFound
			} else {
				return Session{}, getErr
			}
		}
		return Session{}, err
	}
	return closed, nil
}

// SessionOpen reports whether a session exists and is still open.
func (s Store) SessionOpen(ctx context.Context, tenantID string, id uuid.UUID) (bool, bool, error) {
	const q = `SELECT exit_at IS NULL FROM parking_sessions WHERE tenant_id = $1 AND id = $2`
	var open bool
	if err := s.Pool.QueryRow(ctx, q, tenantID, id).Scan(&open); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, false, nil
		}
		return false, false, err
	}
	return true, open, nil
}

// List returns sessions matching the filter, newest entries first, plus the
// total count for pagination.
func (s Store) List(ctx context.Context, tenantID string, f ListFilter) ([]Session, int64, error) {
	where := []string{"tenant_id = $1"}
	args := []any{tenantID}

	switch f.Status {
	case StatusActive:
		where = append(where, "exit_at IS NULL")
	case StatusCompleted:
		where = append(where, "exit_at IS NOT NULL")
	}
	if f.Plate != "" {
		args = append(args, f.Plate)
		where = append(where, "plate = $"+strconv.Itoa(len(args)))
	}
	if f.From != nil {
		args = append(args, *f.From)
		where = append(where, "entry_at >= $"+strconv.Itoa(len(args)))
	}
	if f.To != nil {
		args = append(args, *f.To)
		where = append(where, "entry_at < $"+strconv.Itoa(len(args)))
	}
	clause := strings.Join(where, " AND ")

	var total int64
	if err := s.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM parking_sessions WHERE `+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	args = append(args, limit)
	limitPos := strconv.Itoa(len(args))
	args = append(args, f.Offset)
	offsetPos := strconv.Itoa(len(args))

	q := `SELECT ` + sessionColumns + ` FROM parking_sessions WHERE ` + clause +
		` ORDER BY entry_at DESC LIMIT $` + limitPos + ` OFFSET $` + offsetPos
	rows, err := s.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, sess)
	}
	return out, total, rows.Err()
}
