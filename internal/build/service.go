package build

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/motorcraft/backend-configurator/internal/catalog"
	"github.com/motorcraft/backend-configurator/internal/common"
	"github.com/motorcraft/backend-configurator/internal/compat"
	"github.com/motorcraft/backend-configurator/internal/obs"
	"github.com/motorcraft/backend-configurator/internal/pricing"
	"github.com/motorcraft/backend-configurator/internal/quote"
)

// Service validates, prices, and persists builds. Every mutation re-runs the
// compatibility rules and recomputes the total from the current catalog.
type Service struct {
	Store   Store
	Catalog quote.Snapshotter
}

// CreateRequest is the payload for a new build.
type CreateRequest struct {
	VehicleID uuid.UUID        `json:"vehicleId"`
	Name      string           `json:"name"`
	Color     string           `json:"color"`
	Options   []SelectedOption `json:"options"`
	Packages  []uuid.UUID      `json:"packages"`
}

// ReplaceRequest swaps the whole selection in one write.
type ReplaceRequest struct {
	Name     string           `json:"name"`
	Color    string           `json:"color"`
	Options  []SelectedOption `json:"options"`
	Packages []uuid.UUID      `json:"packages"`
	Version  int64            `json:"version"`
}

// Create validates the selection and persists a new build.
func (s *Service) Create(ctx context.Context, userID uuid.UUID, req CreateRequest) (Build, error) {
	if req.VehicleID == uuid.Nil {
		countSave("create", "invalid")
		return Build{}, badRequest("vehicleId is required", nil)
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = "My Build"
	}
	draft := Build{
		UserID:    userID,
		VehicleID: req.VehicleID,
		Name:      name,
		Options:   req.Options,
		Packages:  req.Packages,
	}
	if err := s.resolveAndPrice(ctx, &draft, req.Color); err != nil {
		countSave("create", outcome(err))
		return Build{}, err
	}
	created, err := s.Store.Create(ctx, draft)
	if err != nil {
		countSave("create", "error")
		return Build{}, fmt.Errorf("create build: %w", err)
	}
	countSave("create", "ok")
	return created, nil
}

// Get returns one build owned by the user.
func (s *Service) Get(ctx context.Context, userID, id uuid.UUID) (Build, error) {
	b, err := s.Store.Get(ctx, userID, id)
	if err != nil {
		return Build{}, mapStoreError(err)
	}
	return b, nil
}

// List returns the user's builds, most recently modified first.
func (s *Service) List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Build, int, error) {
	builds, total, err := s.Store.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list builds: %w", err)
	}
	if builds == nil {
		builds = []Build{}
	}
	return builds, total, nil
}

// Delete removes a build owned by the user.
func (s *Service) Delete(ctx context.Context, userID, id uuid.UUID) error {
	if err := s.Store.Delete(ctx, userID, id); err != nil {
		return mapStoreError(err)
	}
	return nil
}

// Replace swaps the entire selection, revalidates, reprices, and writes with
// a version check.
func (s *Service) Replace(ctx context.Context, userID, id uuid.UUID, req ReplaceRequest) (Build, error) {
	current, err := s.Store.Get(ctx, userID, id)
	if err != nil {
		return Build{}, mapStoreError(err)
	}
	next := current
	if name := strings.TrimSpace(req.Name); name != "" {
		next.Name = name
	}
	next.Options = req.Options
	next.Packages = req.Packages
	return s.save(ctx, "replace", next, req.Color, req.Version)
}

// SelectColor sets or clears the paint choice. An empty name clears it.
func (s *Service) SelectColor(ctx context.Context, userID, id uuid.UUID, colorName string, version int64) (Build, error) {
	current, err := s.Store.Get(ctx, userID, id)
	if err != nil {
		return Build{}, mapStoreError(err)
	}
	return s.save(ctx, "color", current, colorName, version)
}

// ToggleOption adds the option when absent and removes it when present.
func (s *Service) ToggleOption(ctx context.Context, userID, id, optionID uuid.UUID, version int64) (Build, error) {
	current, err := s.Store.Get(ctx, userID, id)
	if err != nil {
		return Build{}, mapStoreError(err)
	}
	next := current
	if current.HasOption(optionID) {
		options := make([]SelectedOption, 0, len(current.Options))
		for _, sel := range current.Options {
			if sel.OptionID != optionID {
				options = append(options, sel)
			}
		}
		next.Options = options
	} else {
		next.Options = append(append([]SelectedOption(nil), current.Options...), SelectedOption{OptionID: optionID, Qty: 1})
	}
	return s.save(ctx, "toggle_option", next, currentColorName(current), version)
}

// TogglePackage adds the package when absent and removes it when present.
// Removing a package drops its injected options from the effective set
// because only manual selections are stored.
func (s *Service) TogglePackage(ctx context.Context, userID, id, packageID uuid.UUID, version int64) (Build, error) {
	current, err := s.Store.Get(ctx, userID, id)
	if err != nil {
		return Build{}, mapStoreError(err)
	}
	next := current
	if current.HasPackage(packageID) {
		packages := make([]uuid.UUID, 0, len(current.Packages))
		for _, pkg := range current.Packages {
			if pkg != packageID {
				packages = append(packages, pkg)
			}
		}
		next.Packages = packages
	} else {
		next.Packages = append(append([]uuid.UUID(nil), current.Packages...), packageID)
	}
	return s.save(ctx, "toggle_package", next, currentColorName(current), version)
}

func (s *Service) save(ctx context.Context, operation string, next Build, colorName string, expectedVersion int64) (Build, error) {
	if err := s.resolveAndPrice(ctx, &next, colorName); err != nil {
		countSave(operation, outcome(err))
		return Build{}, err
	}
	updated, err := s.Store.Update(ctx, next, expectedVersion)
	if err != nil {
		countSave(operation, outcome(err))
		return Build{}, mapStoreError(err)
	}
	countSave(operation, "ok")
	return updated, nil
}

// resolveAndPrice normalises the selection, revalidates it against a fresh
// catalog snapshot, and recomputes the stored prices.
func (s *Service) resolveAndPrice(ctx context.Context, b *Build, colorName string) error {
	options, err := dedupeOptions(b.Options)
	if err != nil {
		return err
	}
	b.Options = options
	b.Packages = dedupePackages(b.Packages)

	optionIDs := b.optionIDs()
	snap, err := s.Catalog.Snapshot(ctx, b.VehicleID, optionIDs, b.Packages)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return &common.AppError{
				Code:       common.CodeNotFound,
				Message:    "selection references an unknown catalog entity",
				HTTPStatus: http.StatusNotFound,
				Err:        err,
			}
		}
		return fmt.Errorf("load catalog snapshot: %w", err)
	}

	b.Color = nil
	var priceColor *pricing.Color
	if name := strings.TrimSpace(colorName); name != "" {
		c, ok := snap.Vehicle.ColorByName(name)
		if !ok {
			return badRequest(fmt.Sprintf("color %q is not offered on this vehicle", name), nil)
		}
		b.Color = &c
		priceColor = &pricing.Color{Name: c.Name, Code: c.Code, Price: c.Price}
	}

	if violations := compat.Validate(snap, optionIDs, b.Packages); len(violations) > 0 {
		return &common.AppError{
			Code:       common.CodeIncompatible,
			Message:    "selection violates compatibility rules",
			HTTPStatus: http.StatusUnprocessableEntity,
			Details:    map[string]any{"violations": violations},
		}
	}

	optionLines := make([]pricing.OptionLine, 0, len(b.Options))
	for _, sel := range b.Options {
		opt, ok := snap.Option(sel.OptionID)
		if !ok {
			continue
		}
		optionLines = append(optionLines, pricing.OptionLine{Qty: sel.Qty, UnitPrice: opt.Price})
	}
	packageLines := make([]pricing.PackageLine, 0, len(b.Packages))
	for _, id := range b.Packages {
		pkg, ok := snap.Package(id)
		if !ok {
			continue
		}
		packageLines = append(packageLines, pricing.PackageLine{Price: pkg.Price, DiscountPercent: pkg.DiscountPercent})
	}
	breakdown := pricing.Compute(snap.Vehicle.BasePrice, priceColor, optionLines, packageLines)
	b.BasePrice = breakdown.BasePrice
	b.TotalPrice = breakdown.TotalPrice
	return nil
}

func currentColorName(b Build) string {
	if b.Color == nil {
		return ""
	}
	return b.Color.Name
}

func dedupeOptions(options []SelectedOption) ([]SelectedOption, error) {
	seen := make(map[uuid.UUID]bool, len(options))
	out := make([]SelectedOption, 0, len(options))
	for _, sel := range options {
		if seen[sel.OptionID] {
			return nil, badRequest(fmt.Sprintf("option %s selected more than once", sel.OptionID), nil)
		}
		seen[sel.OptionID] = true
		if sel.Qty < 1 {
			sel.Qty = 1
		}
		out = append(out, sel)
	}
	return out, nil
}

func dedupePackages(packages []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(packages))
	out := make([]uuid.UUID, 0, len(packages))
	for _, id := range packages {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func mapStoreError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return &common.AppError{
			Code:       common.CodeNotFound,
			Message:    "build not found",
			HTTPStatus: http.StatusNotFound,
			Err:        err,
		}
	case errors.Is(err, ErrVersionConflict):
		return &common.AppError{
			Code:       common.CodeStaleVersion,
			Message:    "build was modified concurrently, reload and retry",
			HTTPStatus: http.StatusConflict,
			Err:        err,
		}
	default:
		return err
	}
}

func badRequest(message string, err error) *common.AppError {
	return &common.AppError{
		Code:       common.CodeBadRequest,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
		Err:        err,
	}
}

func outcome(err error) string {
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		switch appErr.Code {
		case common.CodeIncompatible:
			return "incompatible"
		case common.CodeStaleVersion:
			return "conflict"
		case common.CodeNotFound:
			return "not_found"
		default:
			return "invalid"
		}
	}
	return "error"
}

func countSave(operation, result string) {
	if obs.BuildSavesTotal != nil {
		obs.BuildSavesTotal.WithLabelValues(operation, result).Inc()
	}
}
