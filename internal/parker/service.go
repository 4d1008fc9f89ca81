package parker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lotwise/backend-lotwise/internal/common"
	"github.com/lotwise/backend-lotwise/internal/pricing"
)

// Storage is the persistence surface the service needs. Satisfied by Store.
type Storage interface {
	Create(ctx context.Context, p FrequentParker) (FrequentParker, error)
	GetByPlate(ctx context.Context, tenantID, plate string) (FrequentParker, error)
	GetByID(ctx context.Context, tenantID string, id uuid.UUID) (FrequentParker, error)
	List(ctx context.Context, tenantID string, limit, offset int) ([]FrequentParker, int64, error)
	Update(ctx context.Context, p FrequentParker) (FrequentParker, error)
	Delete(ctx context.Context, tenantID string, id uuid.UUID) error
}

// Service manages frequent parker registrations.
type Service struct {
	Store Storage
}

// CreateInput carries a new registration.
type CreateInput struct {
	Plate             string
	Name              string
	Phone             string
	IsVIP             bool
	MonthlyPassExpiry *time.Time
	Notes             string
}

// Register creates a frequent parker after normalizing the plate.
func (s *Service) Register(ctx context.Context, tenantID string, in CreateInput) (FrequentParker, error) {
	plate := NormalizePlate(in.Plate)
	if plate == "" {
		return FrequentParker{}, common.NewAppError("INVALID_PLATE", "plate must not be empty", http.StatusUnprocessableEntity, nil)
	}
	if strings.TrimSpace(in.Name) == "" {
		return FrequentParker{}, common.NewAppError("INVALID_NAME", "name must not be empty", http.StatusUnprocessableEntity, nil)
	}
	created, err := s.Store.Create(ctx, FrequentParker{
		TenantID:          tenantID,
		Plate:             plate,
		Name:              strings.TrimSpace(in.Name),
		Phone:             strings.TrimSpace(in.Phone),
		IsVIP:             in.IsVIP,
		MonthlyPassExpiry: in.MonthlyPassExpiry,
		Notes:             in.Notes,
	})
	if err != nil {
		if errors.Is(err, ErrDuplicatePlate) {
			return FrequentParker{}, common.NewAppError("DUPLICATE_PLATE", "plate is already registered", http.StatusConflict, err)
		}
		return FrequentParker{}, fmt.Errorf("register parker: %w", err)
	}
	return created, nil
}

// Lookup finds a frequent parker by plate. A miss is reported as ErrNotFound.
func (s *Service) Lookup(ctx context.Context, tenantID, plate string) (FrequentParker, error) {
	p, err := s.Store.GetByPlate(ctx, tenantID, NormalizePlate(plate))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return FrequentParker{}, common.NewAppError("PARKER_NOT_FOUND", "no frequent parker for plate", http.StatusNotFound, err)
		}
		return FrequentParker{}, fmt.Errorf("lookup parker: %w", err)
	}
	return p, nil
}

// Profile resolves a plate into the pricing profile used by the fee engine.
// Unknown plates yield nil so the engine treats the stay as a walk-in.
func (s *Service) Profile(ctx context.Context, tenantID, plate string) (*pricing.Parker, *FrequentParker, error) {
	p, err := s.Store.GetByPlate(ctx, tenantID, NormalizePlate(plate))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("resolve parker profile: %w", err)
	}
	return &pricing.Parker{IsVIP: p.IsVIP, MonthlyPassExpiry: p.MonthlyPassExpiry}, &p, nil
}

// Get returns a parker by id.
func (s *Service) Get(ctx context.Context, tenantID string, id uuid.UUID) (FrequentParker, error) {
	p, err := s.Store.GetByID(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return FrequentParker{}, common.NewAppError("PARKER_NOT_FOUND", "frequent parker not found", http.StatusNotFound, err)
		}
		return FrequentParker{}, fmt.Errorf("get parker: %w", err)
	}
	return p, nil
}

// List returns a page of the tenant's frequent parkers.
func (s *Service) List(ctx context.Context, tenantID string, page, perPage int) ([]FrequentParker, int64, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}
	items, total, err := s.Store.List(ctx, tenantID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, fmt.Errorf("list parkers: %w", err)
	}
	return items, total, nil
}

// UpdateInput carries mutable parker fields.
type UpdateInput struct {
	Name              string
	Phone             string
	IsVIP             bool
	MonthlyPassExpiry *time.Time
	Notes             string
}

// Update replaces the mutable fields of an existing registration.
func (s *Service) Update(ctx context.Context, tenantID string, id uuid.UUID, in UpdateInput) (FrequentParker, error) {
	if strings.TrimSpace(in.Name) == "" {
		return FrequentParker{}, common.NewAppError("INVALID_NAME", "name must not be empty", http.StatusUnprocessableEntity, nil)
	}
	updated, err := s.Store.Update(ctx, FrequentParker{
		ID:                id,
		TenantID:          tenantID,
		Name:              strings.TrimSpace(in.Name),
		Phone:             strings.TrimSpace(in.Phone),
		IsVIP:             in.IsVIP,
		MonthlyPassExpiry: in.MonthlyPassExpiry,
		Notes:             in.Notes,
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return FrequentParker{}, common.NewAppError("PARKER_NOT_FOUND", "frequent parker not found", http.StatusNotFound, err)
		}
		return FrequentParker{}, fmt.Errorf("update parker: %w", err)
	}
	return updated, nil
}

// Remove deletes a registration.
func (s *Service) Remove(ctx context.Context, tenantID string, id uuid.UUID) error {
	if err := s.Store.Delete(ctx, tenantID, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return common.NewAppError("PARKER_NOT_FOUND", "frequent parker not found", http.StatusNotFound, err)
		}
		return fmt.Errorf("delete parker: %w", err)
	}
	return nil
}
