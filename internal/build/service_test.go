package build_test

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/motorcraft/backend-configurator/internal/build"
	"github.com/motorcraft/backend-configurator/internal/catalog"
	"github.com/motorcraft/backend-configurator/internal/common"
)

var (
	userID     = uuid.MustParse("aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa")
	roadsterID = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	sunroofID  = uuid.MustParse("22222222-2222-2222-2222-222222222222")
	towHitchID = uuid.MustParse("33333333-3333-3333-3333-333333333333")
	brakeCtlID = uuid.MustParse("44444444-4444-4444-4444-444444444444")
	towPkgID   = uuid.MustParse("55555555-5555-5555-5555-555555555555")
)

type fakeCatalog struct {
	vehicle  catalog.Vehicle
	options  map[uuid.UUID]catalog.Option
	packages map[uuid.UUID]catalog.Package
}

func (f *fakeCatalog) Snapshot(_ context.Context, vehicleID uuid.UUID, optionIDs, packageIDs []uuid.UUID) (catalog.Snapshot, error) {
	if vehicleID != f.vehicle.ID {
		return catalog.Snapshot{}, fmt.Errorf("vehicle %s: %w", vehicleID, catalog.ErrNotFound)
	}
	snap := catalog.Snapshot{
		Vehicle:  f.vehicle,
		Options:  map[uuid.UUID]catalog.Option{},
		Packages: map[uuid.UUID]catalog.Package{},
	}
	for _, id := range packageIDs {
		pkg, ok := f.packages[id]
		if !ok {
			return catalog.Snapshot{}, fmt.Errorf("package %s: %w", id, catalog.ErrNotFound)
		}
		snap.Packages[id] = pkg
		for _, inc := range pkg.IncludedOptions {
			if opt, ok := f.options[inc.OptionID]; ok {
				snap.Options[opt.ID] = opt
			}
		}
	}
	for _, id := range optionIDs {
		opt, ok := f.options[id]
		if !ok {
			return catalog.Snapshot{}, fmt.Errorf("option %s: %w", id, catalog.ErrNotFound)
		}
		snap.Options[id] = opt
	}
	return snap, nil
}

type memoryStore struct {
	mu     sync.Mutex
	builds map[uuid.UUID]build.Build
}

func newMemoryStore() *memoryStore {
	return &memoryStore{builds: map[uuid.UUID]build.Build{}}
}

func (m *memoryStore) Create(_ context.Context, b build.Build) (build.Build, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b.ID = uuid.New()
	b.Version = 1
	b.CreatedAt = time.Now()
	b.LastModified = b.CreatedAt
	m.builds[b.ID] = b
	return b, nil
}

func (m *memoryStore) Get(_ context.Context, userID, id uuid.UUID) (build.Build, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.builds[id]
	if !ok || b.UserID != userID {
		return build.Build{}, build.ErrNotFound
	}
	return b, nil
}

func (m *memoryStore) ListByUser(_ context.Context, userID uuid.UUID, limit, offset int) ([]build.Build, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []build.Build
	for _, b := range m.builds {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	return out, len(out), nil
}

func (m *memoryStore) Update(_ context.Context, b build.Build, expectedVersion int64) (build.Build, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.builds[b.ID]
	if !ok || stored.UserID != b.UserID {
		return build.Build{}, build.ErrNotFound
	}
	if stored.Version != expectedVersion {
		return build.Build{}, build.ErrVersionConflict
	}
	b.Version = stored.Version + 1
	b.CreatedAt = stored.CreatedAt
	b.LastModified = time.Now()
	m.builds[b.ID] = b
	return b, nil
}

func (m *memoryStore) Delete(_ context.Context, userID, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.builds[id]
	if !ok || b.UserID != userID {
		return build.ErrNotFound
	}
	delete(m.builds, id)
	return nil
}

func newService() *build.Service {
	cat := &fakeCatalog{
		vehicle: catalog.Vehicle{
			ID:        roadsterID,
			Name:      "Roadster GT",
			BasePrice: 4_500_000,
			Category:  catalog.CategorySports,
			Colors: []catalog.Color{
				{Name: "Midnight Blue", Code: "#003", Price: 150_000},
			},
			InStock: true,
		},
		options: map[uuid.UUID]catalog.Option{
			sunroofID:  {ID: sunroofID, Name: "Panoramic Sunroof", Price: 150_000},
			towHitchID: {ID: towHitchID, Name: "Tow Hitch", Price: 60_000, Dependencies: []uuid.UUID{brakeCtlID}},
			brakeCtlID: {ID: brakeCtlID, Name: "Brake Controller", Price: 40_000},
		},
		packages: map[uuid.UUID]catalog.Package{
			towPkgID: {
				ID:              towPkgID,
				Name:            "Towing Package",
				Price:           90_000,
				DiscountPercent: 10,
				IncludedOptions: []catalog.PackageOption{{OptionID: brakeCtlID, Qty: 1}},
			},
		},
	}
	return &build.Service{Store: newMemoryStore(), Catalog: cat}
}

func TestCreateComputesTotals(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	created, err := svc.Create(ctx, userID, build.CreateRequest{
		VehicleID: roadsterID,
		Name:      "Weekend Car",
		Color:     "Midnight Blue",
		Options:   []build.SelectedOption{{OptionID: sunroofID, Qty: 1}},
	})
	require.NoError(t, err)
	require.Equal(t, int64(1), created.Version)
	require.Equal(t, int64(4_500_000), created.BasePrice)
	// base + color + sunroof
	require.Equal(t, int64(4_800_000), created.TotalPrice)
	require.NotNil(t, created.Color)
	require.Equal(t, "Midnight Blue", created.Color.Name)
}

func TestCreateRejectsMissingDependency(t *testing.T) {
	svc := newService()

	_, err := svc.Create(context.Background(), userID, build.CreateRequest{
		VehicleID: roadsterID,
		Options:   []build.SelectedOption{{OptionID: towHitchID, Qty: 1}},
	})
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, common.CodeIncompatible, appErr.Code)
	require.Equal(t, http.StatusUnprocessableEntity, appErr.HTTPStatus)
}

func TestPackageSatisfiesDependency(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	created, err := svc.Create(ctx, userID, build.CreateRequest{
		VehicleID: roadsterID,
		Options:   []build.SelectedOption{{OptionID: towHitchID, Qty: 1}},
		Packages:  []uuid.UUID{towPkgID},
	})
	require.NoError(t, err)
	// base + tow hitch + discounted towing package
	require.Equal(t, int64(4_500_000+60_000+81_000), created.TotalPrice)
}

func TestTogglePackageOffRevalidates(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	created, err := svc.Create(ctx, userID, build.CreateRequest{
		VehicleID: roadsterID,
		Options:   []build.SelectedOption{{OptionID: towHitchID, Qty: 1}},
		Packages:  []uuid.UUID{towPkgID},
	})
	require.NoError(t, err)

	// removing the package would strand the tow hitch's dependency
	_, err = svc.TogglePackage(ctx, userID, created.ID, towPkgID, created.Version)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, common.CodeIncompatible, appErr.Code)

	// the stored build is untouched
	current, err := svc.Get(ctx, userID, created.ID)
	require.NoError(t, err)
	require.Equal(t, created.Version, current.Version)
	require.True(t, current.HasPackage(towPkgID))
}

func TestToggleOptionRoundTrip(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	created, err := svc.Create(ctx, userID, build.CreateRequest{VehicleID: roadsterID})
	require.NoError(t, err)
	baseTotal := created.TotalPrice

	on, err := svc.ToggleOption(ctx, userID, created.ID, sunroofID, created.Version)
	require.NoError(t, err)
	require.True(t, on.HasOption(sunroofID))
	require.Equal(t, baseTotal+150_000, on.TotalPrice)

	off, err := svc.ToggleOption(ctx, userID, created.ID, sunroofID, on.Version)
	require.NoError(t, err)
	require.False(t, off.HasOption(sunroofID))
	require.Equal(t, baseTotal, off.TotalPrice)
}

func TestStaleVersionRejected(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	created, err := svc.Create(ctx, userID, build.CreateRequest{VehicleID: roadsterID})
	require.NoError(t, err)

	_, err = svc.ToggleOption(ctx, userID, created.ID, sunroofID, created.Version)
	require.NoError(t, err)

	// a second writer still holding version 1 must be rejected
	_, err = svc.ToggleOption(ctx, userID, created.ID, sunroofID, created.Version)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, common.CodeStaleVersion, appErr.Code)
	require.Equal(t, http.StatusConflict, appErr.HTTPStatus)
}

func TestSelectColorClears(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	created, err := svc.Create(ctx, userID, build.CreateRequest{
		VehicleID: roadsterID,
		Color:     "Midnight Blue",
	})
	require.NoError(t, err)
	require.Equal(t, int64(4_650_000), created.TotalPrice)

	cleared, err := svc.SelectColor(ctx, userID, created.ID, "", created.Version)
	require.NoError(t, err)
	require.Nil(t, cleared.Color)
	require.Equal(t, int64(4_500_000), cleared.TotalPrice)
}

func TestOwnershipEnforced(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	created, err := svc.Create(ctx, userID, build.CreateRequest{VehicleID: roadsterID})
	require.NoError(t, err)

	stranger := uuid.New()
	_, err = svc.Get(ctx, stranger, created.ID)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, http.StatusNotFound, appErr.HTTPStatus)

	err = svc.Delete(ctx, stranger, created.ID)
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, http.StatusNotFound, appErr.HTTPStatus)
}

func TestDuplicateOptionRejected(t *testing.T) {
	svc := newService()

	_, err := svc.Create(context.Background(), userID, build.CreateRequest{
		VehicleID: roadsterID,
		Options: []build.SelectedOption{
			{OptionID: sunroofID, Qty: 1},
			{OptionID: sunroofID, Qty: 2},
		},
	})
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, http.StatusBadRequest, appErr.HTTPStatus)
}
