package validation_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/lotwise/backend-lotwise/internal/common"
	"github.com/lotwise/backend-lotwise/internal/validation"
)

type fakeStore struct {
	records []validation.Record
}

func (f *fakeStore) Create(_ context.Context, rec validation.Record) (validation.Record, error) {
	rec.ID = uuid.New()
	f.records = append(f.records, rec)
	return rec, nil
}

func (f *fakeStore) ListBySession(_ context.Context, _ string, sessionID uuid.UUID) ([]validation.Record, error) {
	var out []validation.Record
	for _, rec := range f.records {
		if rec.SessionID == sessionID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fakeStore) Delete(_ context.Context, _ string, sessionID, id uuid.UUID) error {
	for i, rec := range f.records {
		if rec.SessionID == sessionID && rec.ID == id {
			f.records = append(f.records[:i], f.records[i+1:]...)
			return nil
		}
	}
	return validation.ErrNotFound
}

type fakeSessions struct {
	exists bool
	open   bool
}

func (f fakeSessions) SessionOpen(context.Context, string, uuid.UUID) (bool, bool, error) {
	return f.exists, f.open, nil
}

func TestGrantRejectsClosedSession(t *testing.T) {
	svc := &validation.Service{Store: &fakeStore{}, Sessions: fakeSessions{exists: true, open: false}}

	_, err := svc.Grant(context.Background(), "acme", uuid.New(), validation.GrantInput{
		ValidatorName: "Mall Cinema", DiscountPercent: 50,
	})
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "SESSION_CLOSED", appErr.Code)
}

func TestGrantRejectsEmptyDiscount(t *testing.T) {
	svc := &validation.Service{Store: &fakeStore{}, Sessions: fakeSessions{exists: true, open: true}}

	_, err := svc.Grant(context.Background(), "acme", uuid.New(), validation.GrantInput{ValidatorName: "Shop"})
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "INVALID_DISCOUNT", appErr.Code)
}

func TestForPricingPreservesGrantOrder(t *testing.T) {
	store := &fakeStore{}
	svc := &validation.Service{Store: store, Sessions: fakeSessions{exists: true, open: true}}
	ctx := context.Background()
	sessionID := uuid.New()

	_, err := svc.Grant(ctx, "acme", sessionID, validation.GrantInput{ValidatorName: "Cinema", DiscountPercent: 50})
	require.NoError(t, err)
	_, err = svc.Grant(ctx, "acme", sessionID, validation.GrantInput{ValidatorName: "Cafe", DiscountAmount: 200})
	require.NoError(t, err)

	vals, err := svc.ForPricing(ctx, "acme", sessionID)
	require.NoError(t, err)
	require.Len(t, vals, 2)
	require.Equal(t, "Cinema", vals[0].ValidatorName)
	require.Equal(t, 50, vals[0].DiscountPercent)
	require.Equal(t, "Cafe", vals[1].ValidatorName)
}

func TestRevokeMissingValidation(t *testing.T) {
	svc := &validation.Service{Store: &fakeStore{}}

	err := svc.Revoke(context.Background(), "acme", uuid.New(), uuid.New())
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "VALIDATION_NOT_FOUND", appErr.Code)
}
