package quote_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/motorcraft/backend-configurator/internal/catalog"
	"github.com/motorcraft/backend-configurator/internal/quote"
)

var (
	roadsterID = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	sunroofID  = uuid.MustParse("22222222-2222-2222-2222-222222222222")
	audioID    = uuid.MustParse("33333333-3333-3333-3333-333333333333")
	sportExhID = uuid.MustParse("44444444-4444-4444-4444-444444444444")
	quietExhID = uuid.MustParse("55555555-5555-5555-5555-555555555555")
	techPkgID  = uuid.MustParse("66666666-6666-6666-6666-666666666666")
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

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		vehicle: catalog.Vehicle{
			ID:        roadsterID,
			Name:      "Roadster GT",
			BasePrice: 4_500_000,
			Category:  catalog.CategorySports,
			Colors: []catalog.Color{
				{Name: "Midnight Blue", Code: "#003", Price: 150_000},
				{Name: "Arctic White", Code: "#FFF", Price: 0},
			},
			InStock: true,
		},
		options: map[uuid.UUID]catalog.Option{
			sunroofID:  {ID: sunroofID, Name: "Panoramic Sunroof", Price: 150_000},
			audioID:    {ID: audioID, Name: "Premium Audio", Price: 100_000},
			sportExhID: {ID: sportExhID, Name: "Sport Exhaust", Price: 90_000, Conflicts: []uuid.UUID{quietExhID}},
			quietExhID: {ID: quietExhID, Name: "Quiet Exhaust", Price: 80_000},
		},
		packages: map[uuid.UUID]catalog.Package{
			techPkgID: {
				ID:              techPkgID,
				Name:            "Tech Package",
				Price:           550_000,
				DiscountPercent: 15,
				IncludedOptions: []catalog.PackageOption{{OptionID: audioID, Qty: 1}},
			},
		},
	}
}

func newHandler() *quote.Handler {
	svc := &quote.Service{
		Catalog:      newFakeCatalog(),
		Validate:     validator.New(),
		TaxRateBPS:   800,
		ShippingBase: 150_000,
		Currency:     "USD",
	}
	return quote.NewHandler(svc)
}

func postPrice(t *testing.T, handler *quote.Handler, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/configurator/price", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	handler.Price(rec, req)
	return rec
}

func TestPriceQuote(t *testing.T) {
	handler := newHandler()

	rec := postPrice(t, handler, quote.PriceRequest{
		VehicleID: roadsterID,
		Color:     "Midnight Blue",
		Options: []quote.SelectedOption{
			{OptionID: sunroofID, Qty: 1},
			{OptionID: audioID, Qty: 1},
		},
		Packages: []uuid.UUID{techPkgID},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data quote.PriceQuote `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	q := resp.Data
	require.Equal(t, int64(4_500_000), q.Breakdown.BasePrice)
	require.Equal(t, int64(150_000), q.Breakdown.ColorPrice)
	require.Equal(t, int64(250_000), q.Breakdown.OptionsTotal)
	require.Equal(t, int64(467_500), q.Breakdown.PackagesTotal)
	require.Equal(t, int64(5_367_500), q.Breakdown.TotalPrice)
	require.Equal(t, int64(429_400), q.EstimatedTax)
	require.Equal(t, int64(225_000), q.EstimatedShipping)
	require.Equal(t, int64(6_021_900), q.EstimatedTotal)
	require.Equal(t, "USD", q.Currency)
}

func TestPriceQuoteBaseOnly(t *testing.T) {
	handler := newHandler()

	rec := postPrice(t, handler, quote.PriceRequest{VehicleID: roadsterID})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data quote.PriceQuote `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, int64(4_500_000), resp.Data.Breakdown.TotalPrice)
	require.Zero(t, resp.Data.Breakdown.ColorPrice)
}

func TestPriceQuoteConflict(t *testing.T) {
	handler := newHandler()

	rec := postPrice(t, handler, quote.PriceRequest{
		VehicleID: roadsterID,
		Options: []quote.SelectedOption{
			{OptionID: sportExhID, Qty: 1},
			{OptionID: quietExhID, Qty: 1},
		},
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var resp struct {
		Error struct {
			Code    string `json:"code"`
			Details struct {
				Violations []struct {
					Kind string `json:"kind"`
				} `json:"violations"`
			} `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "INCOMPATIBLE_SELECTION", resp.Error.Code)
	require.Len(t, resp.Error.Details.Violations, 1)
	require.Equal(t, "conflict", resp.Error.Details.Violations[0].Kind)
}

func TestPriceQuoteUnknownVehicle(t *testing.T) {
	handler := newHandler()

	rec := postPrice(t, handler, quote.PriceRequest{VehicleID: uuid.New()})
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPriceQuoteUnknownColor(t *testing.T) {
	handler := newHandler()

	rec := postPrice(t, handler, quote.PriceRequest{VehicleID: roadsterID, Color: "Neon Green"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPriceQuoteMissingVehicleID(t *testing.T) {
	handler := newHandler()

	rec := postPrice(t, handler, map[string]any{"selectedColor": "Arctic White"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPriceQuoteInvalidJSON(t *testing.T) {
	handler := newHandler()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/configurator/price", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()
	handler.Price(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
