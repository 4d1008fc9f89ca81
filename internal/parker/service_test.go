package parker_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/lotwise/backend-lotwise/internal/common"
	"github.com/lotwise/backend-lotwise/internal/parker"
)

type fakeStore struct {
	byPlate map[string]parker.FrequentParker
	created []parker.FrequentParker
}

func (f *fakeStore) Create(_ context.Context, p parker.FrequentParker) (parker.FrequentParker, error) {
	if _, exists := f.byPlate[p.Plate]; exists {
		return parker.FrequentParker{}, parker.ErrDuplicatePlate
	}
	p.ID = uuid.New()
	if f.byPlate == nil {
		f.byPlate = map[string]parker.FrequentParker{}
	}
	f.byPlate[p.Plate] = p
	f.created = append(f.created, p)
	return p, nil
}

func (f *fakeStore) GetByPlate(_ context.Context, _ string, plate string) (parker.FrequentParker, error) {
	p, ok := f.byPlate[plate]
	if !ok {
		return parker.FrequentParker{}, parker.ErrNotFound
	}
	return p, nil
}

func (f *fakeStore) GetByID(_ context.Context, _ string, id uuid.UUID) (parker.FrequentParker, error) {
	for _, p := range f.byPlate {
		if p.ID == id {
			return p, nil
		}
	}
	return parker.FrequentParker{}, parker.ErrNotFound
}

func (f *fakeStore) List(_ context.Context, _ string, _, _ int) ([]parker.FrequentParker, int64, error) {
	var out []parker.FrequentParker
	for _, p := range f.byPlate {
		out = append(out, p)
	}
	return out, int64(len(out)), nil
}

func (f *fakeStore) Update(_ context.Context, p parker.FrequentParker) (parker.FrequentParker, error) {
	for plate, existing := range f.byPlate {
		if existing.ID == p.ID {
			p.Plate = plate
			f.byPlate[plate] = p
			return p, nil
		}
	}
	return parker.FrequentParker{}, parker.ErrNotFound
}

func (f *fakeStore) Delete(_ context.Context, _ string, id uuid.UUID) error {
	for plate, existing := range f.byPlate {
		if existing.ID == id {
			delete(f.byPlate, plate)
			return nil
		}
	}
	return parker.ErrNotFound
}

func TestRegisterNormalizesPlate(t *testing.T) {
	store := &fakeStore{}
	svc := &parker.Service{Store: store}

	created, err := svc.Register(context.Background(), "acme", parker.CreateInput{Plate: "ab-12 cd", Name: "Dana"})
	require.NoError(t, err)
	require.Equal(t, "AB12CD", created.Plate)
}

func TestRegisterDuplicatePlateConflicts(t *testing.T) {
	store := &fakeStore{}
	svc := &parker.Service{Store: store}
	ctx := context.Background()

	_, err := svc.Register(ctx, "acme", parker.CreateInput{Plate: "AB12CD", Name: "Dana"})
	require.NoError(t, err)

	_, err = svc.Register(ctx, "acme", parker.CreateInput{Plate: "ab 12 cd", Name: "Other"})
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "DUPLICATE_PLATE", appErr.Code)
}

func TestProfileUnknownPlateIsWalkIn(t *testing.T) {
	svc := &parker.Service{Store: &fakeStore{}}

	profile, record, err := svc.Profile(context.Background(), "acme", "ZZ99")
	require.NoError(t, err)
	require.Nil(t, profile)
	require.Nil(t, record)
}

func TestProfileCarriesVIPAndPass(t *testing.T) {
	store := &fakeStore{}
	svc := &parker.Service{Store: store}
	ctx := context.Background()

	expiry := time.Now().Add(24 * time.Hour).UTC()
	_, err := svc.Register(ctx, "acme", parker.CreateInput{
		Plate: "AB12CD", Name: "Dana", IsVIP: true, MonthlyPassExpiry: &expiry,
	})
	require.NoError(t, err)

	profile, record, err := svc.Profile(ctx, "acme", "ab-12-cd")
	require.NoError(t, err)
	require.NotNil(t, profile)
	require.True(t, profile.IsVIP)
	require.NotNil(t, profile.MonthlyPassExpiry)
	require.NotNil(t, record)
	require.True(t, record.HasActivePass(time.Now()))
}
