package catalog_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/motorcraft/backend-configurator/internal/catalog"
)

var (
	roadsterID = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	haulerID   = uuid.MustParse("22222222-2222-2222-2222-222222222222")
	sunroofID  = uuid.MustParse("33333333-3333-3333-3333-333333333333")
	audioID    = uuid.MustParse("44444444-4444-4444-4444-444444444444")
	comfortID  = uuid.MustParse("55555555-5555-5555-5555-555555555555")
)

type vehiclesResponse struct {
	Data       []catalog.Vehicle `json:"data"`
	Pagination struct {
		Page       int `json:"page"`
		PerPage    int `json:"per_page"`
		TotalItems int `json:"total_items"`
	} `json:"pagination"`
}

type vehicleDetailResponse struct {
	Data catalog.VehicleDetail `json:"data"`
}

type packagesResponse struct {
	Data []catalog.PackageView `json:"data"`
}

func TestCatalogHandlers(t *testing.T) {
	store := newFakeStore()
	svc, err := catalog.NewService(catalog.ServiceConfig{
		Store:        store,
		DefaultLimit: 20,
		MaxLimit:     100,
	})
	require.NoError(t, err)
	handler := catalog.NewHandler(catalog.HandlerConfig{Service: svc})

	t.Run("vehicles list with pagination", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/vehicles?limit=1", nil)
		rec := httptest.NewRecorder()
		handler.Vehicles(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "2", rec.Header().Get("X-Total-Count"))

		var resp vehiclesResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Data, 1)
		require.Equal(t, 1, resp.Pagination.Page)
		require.Equal(t, 1, resp.Pagination.PerPage)
		require.Equal(t, 2, resp.Pagination.TotalItems)
	})

	t.Run("vehicles filter by category", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/vehicles?category=sports", nil)
		rec := httptest.NewRecorder()
		handler.Vehicles(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp vehiclesResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Data, 1)
		require.Equal(t, "Roadster GT", resp.Data[0].Name)
	})

	t.Run("vehicles rejects bad price range", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/vehicles?minPrice=900&maxPrice=100", nil)
		rec := httptest.NewRecorder()
		handler.Vehicles(rec, req)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("vehicle detail resolves options and packages", func(t *testing.T) {
		rec := getVehicleDetail(t, handler, roadsterID.String())
		require.Equal(t, http.StatusOK, rec.Code)

		var resp vehicleDetailResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Equal(t, "Roadster GT", resp.Data.Name)
		require.Len(t, resp.Data.Options, 2)
		require.Len(t, resp.Data.Packages, 1)
		// bundle list price 200000 vs 220000 standalone
		require.Equal(t, int64(20_000), resp.Data.Packages[0].Savings)
	})

	t.Run("vehicle detail with no curated options offers none", func(t *testing.T) {
		rec := getVehicleDetail(t, handler, haulerID.String())
		require.Equal(t, http.StatusOK, rec.Code)

		var resp vehicleDetailResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Equal(t, "Hauler X", resp.Data.Name)
		require.Empty(t, resp.Data.Options)
		require.Empty(t, resp.Data.Packages)
	})

	t.Run("vehicle detail invalid id", func(t *testing.T) {
		rec := getVehicleDetail(t, handler, "not-a-uuid")
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("vehicle detail missing vehicle", func(t *testing.T) {
		rec := getVehicleDetail(t, handler, uuid.NewString())
		require.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("options list", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/options", nil)
		rec := httptest.NewRecorder()
		handler.Options(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Data []catalog.Option `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Data, 2)
	})

	t.Run("packages list includes savings", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/packages", nil)
		rec := httptest.NewRecorder()
		handler.Packages(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp packagesResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Data, 1)
		require.Equal(t, "Comfort Package", resp.Data[0].Name)
		require.Equal(t, int64(20_000), resp.Data[0].Savings)
	})
}

func getVehicleDetail(t *testing.T, handler *catalog.Handler, id string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/vehicles/"+id, nil)
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add("id", id)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
	rec := httptest.NewRecorder()
	handler.VehicleDetail(rec, req)
	return rec
}

type fakeStore struct {
	vehicles []catalog.Vehicle
	options  []catalog.Option
	packages []catalog.Package
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		vehicles: []catalog.Vehicle{
			{
				ID:           roadsterID,
				Name:         "Roadster GT",
				Model:        "GT",
				Manufacturer: "Porsche",
				BasePrice:    9_500_000,
				Category:     catalog.CategorySports,
				Year:         2025,
				Colors: []catalog.Color{
					{Name: "Racing Red", Code: "#C00", Price: 150_000},
				},
				AvailableOptions:  []uuid.UUID{sunroofID, audioID},
				AvailablePackages: []uuid.UUID{comfortID},
				InStock:           true,
				UpdatedAt:         time.Now(),
			},
			{
				ID:           haulerID,
				Name:         "Hauler X",
				Model:        "X",
				Manufacturer: "Ford",
				BasePrice:    4_200_000,
				Category:     catalog.CategoryTruck,
				Year:         2024,
				InStock:      true,
				UpdatedAt:    time.Now(),
			},
		},
		options: []catalog.Option{
			{ID: sunroofID, Name: "Panoramic Sunroof", Category: "exterior", Price: 100_000},
			{ID: audioID, Name: "Premium Audio", Category: "technology", Price: 120_000},
		},
		packages: []catalog.Package{
			{
				ID:              comfortID,
				Name:            "Comfort Package",
				Type:            "comfort",
				Price:           200_000,
				DiscountPercent: 10,
				IncludedOptions: []catalog.PackageOption{
					{OptionID: sunroofID, Qty: 1},
					{OptionID: audioID, Qty: 1},
				},
			},
		},
	}
}

func (f *fakeStore) ListVehicles(_ context.Context, filter catalog.ListFilter) ([]catalog.Vehicle, int, error) {
	var matched []catalog.Vehicle
	for _, v := range f.vehicles {
		if filter.Category != "" && v.Category != filter.Category {
			continue
		}
		if filter.Manufacturer != "" && v.Manufacturer != filter.Manufacturer {
			continue
		}
		if filter.MinPrice != nil && v.BasePrice < *filter.MinPrice {
			continue
		}
		if filter.MaxPrice != nil && v.BasePrice > *filter.MaxPrice {
			continue
		}
		if filter.InStock != nil && v.InStock != *filter.InStock {
			continue
		}
		matched = append(matched, v)
	}
	total := len(matched)
	start := filter.Offset
	if start > total {
		start = total
	}
	end := start + filter.Limit
	if filter.Limit <= 0 || end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (f *fakeStore) GetVehicle(_ context.Context, id uuid.UUID) (catalog.Vehicle, error) {
	for _, v := range f.vehicles {
		if v.ID == id {
			return v, nil
		}
	}
	return catalog.Vehicle{}, fmt.Errorf("vehicle %s: %w", id, catalog.ErrNotFound)
}

func (f *fakeStore) ListOptions(context.Context) ([]catalog.Option, error) {
	return append([]catalog.Option(nil), f.options...), nil
}

func (f *fakeStore) ListPackages(context.Context) ([]catalog.Package, error) {
	return append([]catalog.Package(nil), f.packages...), nil
}

func (f *fakeStore) LoadSnapshot(ctx context.Context, vehicleID uuid.UUID, optionIDs, packageIDs []uuid.UUID) (catalog.Snapshot, error) {
	vehicle, err := f.GetVehicle(ctx, vehicleID)
	if err != nil {
		return catalog.Snapshot{}, err
	}
	snap := catalog.Snapshot{
		Vehicle:  vehicle,
		Options:  map[uuid.UUID]catalog.Option{},
		Packages: map[uuid.UUID]catalog.Package{},
	}
	for _, id := range packageIDs {
		found := false
		for _, p := range f.packages {
			if p.ID == id {
				snap.Packages[id] = p
				for _, inc := range p.IncludedOptions {
					for _, o := range f.options {
						if o.ID == inc.OptionID {
							snap.Options[o.ID] = o
						}
					}
				}
				found = true
			}
		}
		if !found {
			return catalog.Snapshot{}, fmt.Errorf("package %s: %w", id, catalog.ErrNotFound)
		}
	}
	for _, id := range optionIDs {
		found := false
		for _, o := range f.options {
			if o.ID == id {
				snap.Options[id] = o
				found = true
			}
		}
		if !found {
			return catalog.Snapshot{}, fmt.Errorf("option %s: %w", id, catalog.ErrNotFound)
		}
	}
	return snap, nil
}
