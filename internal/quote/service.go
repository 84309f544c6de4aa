// Package quote prices a proposed configuration without persisting anything.
package quote

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/motorcraft/backend-configurator/internal/catalog"
	"github.com/motorcraft/backend-configurator/internal/common"
	"github.com/motorcraft/backend-configurator/internal/compat"
	"github.com/motorcraft/backend-configurator/internal/obs"
	"github.com/motorcraft/backend-configurator/internal/pricing"
)

// Snapshotter loads a consistent catalog snapshot for one calculation.
type Snapshotter interface {
	Snapshot(ctx context.Context, vehicleID uuid.UUID, optionIDs, packageIDs []uuid.UUID) (catalog.Snapshot, error)
}

// SelectedOption is one option line in a quote request.
type SelectedOption struct {
	OptionID uuid.UUID `json:"optionId" validate:"required"`
	Qty      int       `json:"qty" validate:"gte=0,lte=10"`
}

// PriceRequest is the payload for a price quote.
type PriceRequest struct {
	VehicleID uuid.UUID        `json:"vehicleId" validate:"required"`
	Color     string           `json:"selectedColor"`
	Options   []SelectedOption `json:"selectedOptions" validate:"dive"`
	Packages  []uuid.UUID      `json:"selectedPackages"`
}

// PriceQuote is the computed result. Tax and shipping are estimates; the
// binding figures are computed again at order time from the same formulas.
type PriceQuote struct {
	VehicleID         uuid.UUID         `json:"vehicleId"`
	Currency          string            `json:"currency"`
	Breakdown         pricing.Breakdown `json:"breakdown"`
	EstimatedTax      int64             `json:"estimatedTax"`
	EstimatedShipping int64             `json:"estimatedShipping"`
	EstimatedTotal    int64             `json:"estimatedTotal"`
}

// Service computes price quotes.
type Service struct {
	Catalog      Snapshotter
	Validate     *validator.Validate
	TaxRateBPS   int
	ShippingBase int64
	Currency     string
}

// Price validates the selection and returns the full computed quote.
func (s *Service) Price(ctx context.Context, req PriceRequest) (PriceQuote, error) {
	if s.Validate != nil {
		if err := s.Validate.Struct(req); err != nil {
			countQuote("invalid")
			return PriceQuote{}, &common.AppError{
				Code:       common.CodeBadRequest,
				Message:    "invalid quote request",
				HTTPStatus: http.StatusBadRequest,
				Err:        err,
			}
		}
	}

	optionIDs := make([]uuid.UUID, 0, len(req.Options))
	for _, line := range req.Options {
		optionIDs = append(optionIDs, line.OptionID)
	}

	snap, err := s.Catalog.Snapshot(ctx, req.VehicleID, optionIDs, req.Packages)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			countQuote("not_found")
			return PriceQuote{}, &common.AppError{
				Code:       common.CodeNotFound,
				Message:    "selection references an unknown catalog entity",
				HTTPStatus: http.StatusNotFound,
				Err:        err,
			}
		}
		countQuote("error")
		return PriceQuote{}, fmt.Errorf("load catalog snapshot: %w", err)
	}

	var color *pricing.Color
	if req.Color != "" {
		c, ok := snap.Vehicle.ColorByName(req.Color)
		if !ok {
			countQuote("invalid")
			return PriceQuote{}, &common.AppError{
				Code:       common.CodeBadRequest,
				Message:    fmt.Sprintf("color %q is not offered on this vehicle", req.Color),
				HTTPStatus: http.StatusBadRequest,
			}
		}
		color = &pricing.Color{Name: c.Name, Code: c.Code, Price: c.Price}
	}

	if violations := compat.Validate(snap, optionIDs, req.Packages); len(violations) > 0 {
		countQuote("incompatible")
		return PriceQuote{}, &common.AppError{
			Code:       common.CodeIncompatible,
			Message:    "selection violates compatibility rules",
			HTTPStatus: http.StatusUnprocessableEntity,
			Details:    map[string]any{"violations": violations},
		}
	}

	breakdown := pricing.Compute(
		snap.Vehicle.BasePrice,
		color,
		optionLines(snap, req.Options),
		packageLines(snap, req.Packages),
	)
	tax := pricing.Tax(breakdown.TotalPrice, s.TaxRateBPS)
	shipping := pricing.Shipping(snap.Vehicle.Category, s.ShippingBase)

	countQuote("ok")
	return PriceQuote{
		VehicleID:         req.VehicleID,
		Currency:          s.Currency,
		Breakdown:         breakdown,
		EstimatedTax:      tax,
		EstimatedShipping: shipping,
		EstimatedTotal:    breakdown.TotalPrice + tax + shipping,
	}, nil
}

func optionLines(snap catalog.Snapshot, selected []SelectedOption) []pricing.OptionLine {
	lines := make([]pricing.OptionLine, 0, len(selected))
	for _, sel := range selected {
		opt, ok := snap.Option(sel.OptionID)
		if !ok {
			continue
		}
		lines = append(lines, pricing.OptionLine{Qty: sel.Qty, UnitPrice: opt.Price})
	}
	return lines
}

func packageLines(snap catalog.Snapshot, packageIDs []uuid.UUID) []pricing.PackageLine {
	lines := make([]pricing.PackageLine, 0, len(packageIDs))
	for _, id := range packageIDs {
		pkg, ok := snap.Package(id)
		if !ok {
			continue
		}
		lines = append(lines, pricing.PackageLine{Price: pkg.Price, DiscountPercent: pkg.DiscountPercent})
	}
	return lines
}

func countQuote(result string) {
	if obs.PriceQuotesTotal != nil {
		obs.PriceQuotesTotal.WithLabelValues(result).Inc()
	}
}
