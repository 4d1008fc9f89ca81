package validation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/lotwise/backend-lotwise/internal/common"
	"github.com/lotwise/backend-lotwise/internal/pricing"
)

// Storage is the persistence surface the service needs. Satisfied by Store.
type Storage interface {
	Create(ctx context.Context, rec Record) (Record, error)
	ListBySession(ctx context.Context, tenantID string, sessionID uuid.UUID) ([]Record, error)
	Delete(ctx context.Context, tenantID string, sessionID, id uuid.UUID) error
}

// SessionChecker reports whether a session exists and is still open. The
// session package provides the implementation; the indirection avoids an
// import cycle.
type SessionChecker interface {
	SessionOpen(ctx context.Context, tenantID string, sessionID uuid.UUID) (exists, open bool, err error)
}

// Service manages merchant validations for parking sessions.
type Service struct {
	Store    Storage
	Sessions SessionChecker
}

// GrantInput carries a new validation.
type GrantInput struct {
	ValidatorName   string
	DiscountPercent int
	DiscountAmount  pricing.Money
	GrantedBy       string
}

// Grant attaches a validation to an open session. Both a percent and a fixed
// amount may be present; the fee engine applies percent first.
func (s *Service) Grant(ctx context.Context, tenantID string, sessionID uuid.UUID, in GrantInput) (Record, error) {
	name := strings.TrimSpace(in.ValidatorName)
	if name == "" {
		return Record{}, common.NewAppError("INVALID_VALIDATOR", "validatorName must not be empty", http.StatusUnprocessableEntity, nil)
	}
	if in.DiscountPercent < 0 || in.DiscountPercent > 100 {
		return Record{}, common.NewAppError("INVALID_DISCOUNT", "discountPercent must be between 0 and 100", http.StatusUnprocessableEntity, nil)
	}
	if in.DiscountAmount < 0 {
		return Record{}, common.NewAppError("INVALID_DISCOUNT", "discountAmount must not be negative", http.StatusUnprocessableEntity, nil)
	}
	if in.DiscountPercent == 0 && in.DiscountAmount == 0 {
		return Record{}, common.NewAppError("INVALID_DISCOUNT", "validation must carry a percent or fixed discount", http.StatusUnprocessableEntity, nil)
	}

	if s.Sessions != nil {
		exists, open, err := s.Sessions.SessionOpen(ctx, tenantID, sessionID)
		if err != nil {
			return Record{}, fmt.Errorf("check session: %w", err)
		}
		if !exists {
			return Record{}, common.NewAppError("SESSION_NOT_FOUND", "parking session not found", http.StatusNotFound, nil)
		}
		if !open {
			return Record{}, common.NewAppError("SESSION_CLOSED", "validations cannot be added to a closed session", http.StatusConflict, nil)
		}
	}

	rec, err := s.Store.Create(ctx, Record{
		TenantID:        tenantID,
		SessionID:       sessionID,
		ValidatorName:   name,
		DiscountPercent: in.DiscountPercent,
		DiscountAmount:  in.DiscountAmount,
		GrantedBy:       strings.TrimSpace(in.GrantedBy),
	})
	if err != nil {
		return Record{}, fmt.Errorf("grant validation: %w", err)
	}
	return rec, nil
}

// List returns a session's validations in grant order.
func (s *Service) List(ctx context.Context, tenantID string, sessionID uuid.UUID) ([]Record, error) {
	recs, err := s.Store.ListBySession(ctx, tenantID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list validations: %w", err)
	}
	return recs, nil
}

// ForPricing loads a session's validations in the shape the fee engine consumes.
func (s *Service) ForPricing(ctx context.Context, tenantID string, sessionID uuid.UUID) ([]pricing.Validation, error) {
	recs, err := s.Store.ListBySession(ctx, tenantID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load validations: %w", err)
	}
	out := make([]pricing.Validation, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.Pricing())
	}
	return out, nil
}

// Revoke removes a validation from a session.
func (s *Service) Revoke(ctx context.Context, tenantID string, sessionID, id uuid.UUID) error {
	if err := s.Store.Delete(ctx, tenantID, sessionID, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return common.NewAppError("VALIDATION_NOT_FOUND", "validation not found", http.StatusNotFound, err)
		}
		return fmt.Errorf("revoke validation: %w", err)
	}
	return nil
}
