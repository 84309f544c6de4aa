package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/motorcraft/backend-configurator/internal/common"
	"github.com/motorcraft/backend-configurator/internal/pricing"
)

// Service orchestrates catalog queries, DTO assembly, and caching.
type Service struct {
	store        Store
	cache        *Cache
	defaultLimit int
	maxLimit     int
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Store        Store
	Cache        *Cache
	DefaultLimit int
	MaxLimit     int
}

// NewService constructs a Service instance.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("catalog: store is required")
	}
	defaultLimit := cfg.DefaultLimit
	if defaultLimit < 1 {
		defaultLimit = 20
	}
	maxLimit := cfg.MaxLimit
	if maxLimit < 1 {
		maxLimit = 100
	}
	if defaultLimit > maxLimit {
		defaultLimit = maxLimit
	}
	return &Service{
		store:        cfg.Store,
		cache:        cfg.Cache,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
	}, nil
}

// ListParams captures filters for vehicle listing.
type ListParams struct {
	Category     string
	Manufacturer string
	MinPrice     *int64
	MaxPrice     *int64
	InStock      *bool
	Page         int
	Limit        int
}

// VehicleListResult contains list data and pagination metadata.
type VehicleListResult struct {
	Items []Vehicle
	Total int
	Page  int
	Limit int
}

// PackageView is a package enriched with the resolved bundle contents and the
// savings versus buying the parts individually.
type PackageView struct {
	Package
	Savings int64 `json:"savings,omitempty"`
}

// VehicleDetail aggregates the full detail payload with resolved options and
// packages rather than bare id lists.
type VehicleDetail struct {
	Vehicle
	Options  []Option      `json:"options"`
	Packages []PackageView `json:"packages"`
}

// ParseListParams normalises raw query values into strongly typed filters.
func (s *Service) ParseListParams(values url.Values) (ListParams, error) {
	params := ListParams{Page: 1, Limit: s.defaultLimit}
	params.Category = strings.TrimSpace(values.Get("category"))
	params.Manufacturer = strings.TrimSpace(values.Get("manufacturer"))

	if v := strings.TrimSpace(values.Get("page")); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			return params, badRequest("page", "page must be a positive integer", err)
		}
		params.Page = page
	}
	limit := s.defaultLimit
	if v := strings.TrimSpace(values.Get("limit")); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil || l < 1 {
			return params, badRequest("limit", "limit must be a positive integer", err)
		}
		limit = l
	}
	if limit > s.maxLimit {
		limit = s.maxLimit
	}
	params.Limit = limit

	if v := strings.TrimSpace(values.Get("minPrice")); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return params, badRequest("minPrice", "minPrice must be a valid integer", err)
		}
		params.MinPrice = &parsed
	}
	if v := strings.TrimSpace(values.Get("maxPrice")); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return params, badRequest("maxPrice", "maxPrice must be a valid integer", err)
		}
		params.MaxPrice = &parsed
	}
	if params.MinPrice != nil && params.MaxPrice != nil && *params.MinPrice > *params.MaxPrice {
		return params, badRequest("price", "minPrice cannot be greater than maxPrice", fmt.Errorf("invalid price range"))
	}
	if v := strings.TrimSpace(values.Get("inStock")); v != "" {
		b, err := parseBool(v)
		if err != nil {
			return params, badRequest("inStock", "inStock must be true or false", err)
		}
		params.InStock = &b
	}
	return params, nil
}

// ListVehicles returns a filtered vehicle list with pagination metadata.
func (s *Service) ListVehicles(ctx context.Context, params ListParams) (VehicleListResult, error) {
	key, cacheable := s.listCacheKey(params)
	if cacheable {
		var cached cachedList
		ok, err := s.cache.GetJSON(ctx, key, &cached)
		if err == nil && ok {
			return VehicleListResult{Items: cached.Items, Total: cached.Total, Page: params.Page, Limit: params.Limit}, nil
		}
	}
	filter := ListFilter{
		Category:     params.Category,
		Manufacturer: params.Manufacturer,
		MinPrice:     params.MinPrice,
		MaxPrice:     params.MaxPrice,
		InStock:      params.InStock,
		Limit:        params.Limit,
		Offset:       (params.Page - 1) * params.Limit,
	}
	items, total, err := s.store.ListVehicles(ctx, filter)
	if err != nil {
		return VehicleListResult{}, fmt.Errorf("list vehicles: %w", err)
	}
	if items == nil {
		items = []Vehicle{}
	}
	if cacheable {
		_ = s.cache.SetJSON(ctx, key, cachedList{Items: items, Total: total})
	}
	return VehicleListResult{Items: items, Total: total, Page: params.Page, Limit: params.Limit}, nil
}

// GetVehicleDetail returns one vehicle with its available options and
// packages resolved to full records.
func (s *Service) GetVehicleDetail(ctx context.Context, id uuid.UUID) (VehicleDetail, error) {
	cacheKey := "catalog:vehicles:detail:" + id.String()
	var cached VehicleDetail
	if ok, err := s.cache.GetJSON(ctx, cacheKey, &cached); err == nil && ok {
		return cached, nil
	}

	snap, err := s.store.LoadSnapshot(ctx, id, nil, nil)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return VehicleDetail{}, notFound("vehicle not found", err)
		}
		return VehicleDetail{}, fmt.Errorf("get vehicle: %w", err)
	}
	detail := VehicleDetail{Vehicle: snap.Vehicle, Options: []Option{}, Packages: []PackageView{}}

	allOptions, err := s.store.ListOptions(ctx)
	if err != nil {
		return VehicleDetail{}, fmt.Errorf("list options: %w", err)
	}
	byID := make(map[uuid.UUID]Option, len(allOptions))
	for _, o := range allOptions {
		byID[o.ID] = o
		if hasID(snap.Vehicle.AvailableOptions, o.ID) && o.CompatibleWith(id) {
			detail.Options = append(detail.Options, o)
		}
	}

	allPackages, err := s.store.ListPackages(ctx)
	if err != nil {
		return VehicleDetail{}, fmt.Errorf("list packages: %w", err)
	}
	for _, p := range allPackages {
		if !hasID(snap.Vehicle.AvailablePackages, p.ID) || !p.CompatibleWith(id) {
			continue
		}
		detail.Packages = append(detail.Packages, PackageView{
			Package: p,
			Savings: packageSavings(p, byID),
		})
	}

	_ = s.cache.SetJSON(ctx, cacheKey, detail)
	return detail, nil
}

// ListOptions returns all active options.
func (s *Service) ListOptions(ctx context.Context) ([]Option, error) {
	cacheKey := "catalog:options:list"
	var cached []Option
	if ok, err := s.cache.GetJSON(ctx, cacheKey, &cached); err == nil && ok {
		return cached, nil
	}
	options, err := s.store.ListOptions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list options: %w", err)
	}
	if options == nil {
		options = []Option{}
	}
	_ = s.cache.SetJSON(ctx, cacheKey, options)
	return options, nil
}

// ListPackages returns all active packages with computed savings.
func (s *Service) ListPackages(ctx context.Context) ([]PackageView, error) {
	cacheKey := "catalog:packages:list"
	var cached []PackageView
	if ok, err := s.cache.GetJSON(ctx, cacheKey, &cached); err == nil && ok {
		return cached, nil
	}
	packages, err := s.store.ListPackages(ctx)
	if err != nil {
		return nil, fmt.Errorf("list packages: %w", err)
	}
	options, err := s.store.ListOptions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list options: %w", err)
	}
	byID := make(map[uuid.UUID]Option, len(options))
	for _, o := range options {
		byID[o.ID] = o
	}
	views := make([]PackageView, 0, len(packages))
	for _, p := range packages {
		views = append(views, PackageView{Package: p, Savings: packageSavings(p, byID)})
	}
	_ = s.cache.SetJSON(ctx, cacheKey, views)
	return views, nil
}

// Snapshot exposes the consistent snapshot loader to the quote, build, and
// order services.
func (s *Service) Snapshot(ctx context.Context, vehicleID uuid.UUID, optionIDs, packageIDs []uuid.UUID) (Snapshot, error) {
	return s.store.LoadSnapshot(ctx, vehicleID, optionIDs, packageIDs)
}

func packageSavings(p Package, options map[uuid.UUID]Option) int64 {
	included := make([]pricing.IncludedOption, 0, len(p.IncludedOptions))
	for _, inc := range p.IncludedOptions {
		opt, ok := options[inc.OptionID]
		if !ok {
			continue
		}
		included = append(included, pricing.IncludedOption{Qty: inc.Qty, UnitPrice: opt.Price})
	}
	savings := pricing.PackageSavings(p.Price, included)
	if savings < 0 {
		return 0
	}
	return savings
}

type cachedList struct {
	Items []Vehicle `json:"items"`
	Total int       `json:"total"`
}

func (s *Service) listCacheKey(params ListParams) (string, bool) {
	if params.Page != 1 || params.Limit != s.defaultLimit {
		return "", false
	}
	if params.Category != "" || params.Manufacturer != "" || params.MinPrice != nil || params.MaxPrice != nil || params.InStock != nil {
		return "", false
	}
	return "catalog:vehicles:list:default", true
}

func parseBool(value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1", "yes", "y":
		return true, nil
	case "false", "0", "no", "n":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean: %s", value)
	}
}

func badRequest(field, message string, err error) *common.AppError {
	return &common.AppError{
		Code:       common.CodeBadRequest,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
		Err:        err,
		Details: map[string]any{
			"field": field,
		},
	}
}

func notFound(message string, err error) *common.AppError {
	return &common.AppError{
		Code:       common.CodeNotFound,
		Message:    message,
		HTTPStatus: http.StatusNotFound,
		Err:        err,
	}
}
