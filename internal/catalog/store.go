package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates a referenced catalog entity does not exist.
var ErrNotFound = errors.New("catalog entity not found")

// ListFilter narrows vehicle listings.
type ListFilter struct {
	Category     string
	Manufacturer string
	MinPrice     *int64
	MaxPrice     *int64
	InStock      *bool
	Limit        int
	Offset       int
}

// Store is the read interface the engines depend on. The pricing and
// compatibility components receive it by injection and never reach for a
// concrete database themselves.
type Store interface {
	ListVehicles(ctx context.Context, filter ListFilter) ([]Vehicle, int, error)
	GetVehicle(ctx context.Context, id uuid.UUID) (Vehicle, error)
	ListOptions(ctx context.Context) ([]Option, error)
	ListPackages(ctx context.Context) ([]Package, error)
	LoadSnapshot(ctx context.Context, vehicleID uuid.UUID, optionIDs, packageIDs []uuid.UUID) (Snapshot, error)
}

// PGStore implements Store on Postgres.
type PGStore struct {
	Pool *pgxpool.Pool
}

var _ Store = (*PGStore)(nil)

const vehicleColumns = `id, name, model, manufacturer, base_price, category, year, description, specs, colors, available_options, available_packages, in_stock, updated_at`

func scanVehicle(row pgx.Row) (Vehicle, error) {
	var (
		v          Vehicle
		specsJSON  []byte
		colorsJSON []byte
	)
	err := row.Scan(
		&v.ID, &v.Name, &v.Model, &v.Manufacturer, &v.BasePrice, &v.Category,
		&v.Year, &v.Description, &specsJSON, &colorsJSON,
		&v.AvailableOptions, &v.AvailablePackages, &v.InStock, &v.UpdatedAt,
	)
	if err != nil {
		return Vehicle{}, err
	}
	if len(specsJSON) > 0 {
		if err := json.Unmarshal(specsJSON, &v.Specs); err != nil {
			return Vehicle{}, fmt.Errorf("decode vehicle specs: %w", err)
		}
	}
	if len(colorsJSON) > 0 {
		if err := json.Unmarshal(colorsJSON, &v.Colors); err != nil {
			return Vehicle{}, fmt.Errorf("decode vehicle colors: %w", err)
		}
	}
	return v, nil
}

// ListVehicles returns active vehicles matching the filter plus the total count.
func (s *PGStore) ListVehicles(ctx context.Context, filter ListFilter) ([]Vehicle, int, error) {
	where := []string{"is_active"}
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter.Category != "" {
		where = append(where, "category = "+arg(filter.Category))
	}
	if filter.Manufacturer != "" {
		where = append(where, "manufacturer = "+arg(filter.Manufacturer))
	}
	if filter.MinPrice != nil {
		where = append(where, "base_price >= "+arg(*filter.MinPrice))
	}
	if filter.MaxPrice != nil {
		where = append(where, "base_price <= "+arg(*filter.MaxPrice))
	}
	if filter.InStock != nil {
		where = append(where, "in_stock = "+arg(*filter.InStock))
	}
	clause := strings.Join(where, " AND ")

	var total int
	if err := s.Pool.QueryRow(ctx, "SELECT count(*) FROM vehicles WHERE "+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	query := fmt.Sprintf(
		"SELECT %s FROM vehicles WHERE %s ORDER BY manufacturer, model LIMIT %s OFFSET %s",
		vehicleColumns, clause, arg(limit), arg(filter.Offset),
	)
	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Vehicle
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, v)
	}
	return out, total, rows.Err()
}

// GetVehicle loads one active vehicle by id.
func (s *PGStore) GetVehicle(ctx context.Context, id uuid.UUID) (Vehicle, error) {
	return getVehicle(ctx, s.Pool, id)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func getVehicle(ctx context.Context, q querier, id uuid.UUID) (Vehicle, error) {
	row := q.QueryRow(ctx, "SELECT "+vehicleColumns+" FROM vehicles WHERE id = $1 AND is_active", id)
	v, err := scanVehicle(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Vehicle{}, fmt.Errorf("vehicle %s: %w", id, ErrNotFound)
	}
	return v, err
}

const optionColumns = `id, name, category, subcategory, description, price, dependencies, conflicts, compatible_vehicles`

func scanOption(row pgx.Row) (Option, error) {
	var o Option
	err := row.Scan(
		&o.ID, &o.Name, &o.Category, &o.Subcategory, &o.Description,
		&o.Price, &o.Dependencies, &o.Conflicts, &o.CompatibleVehicles,
	)
	return o, err
}

// ListOptions returns every active option.
func (s *PGStore) ListOptions(ctx context.Context) ([]Option, error) {
	return queryOptions(ctx, s.Pool, "SELECT "+optionColumns+" FROM vehicle_options WHERE is_active ORDER BY category, subcategory, name")
}

func queryOptions(ctx context.Context, q querier, query string, args ...any) ([]Option, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Option
	for rows.Next() {
		o, err := scanOption(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

const packageColumns = `id, name, type, description, price, discount_percent, included_options, compatible_vehicles`

func scanPackage(row pgx.Row) (Package, error) {
	var (
		p            Package
		includedJSON []byte
	)
	err := row.Scan(
		&p.ID, &p.Name, &p.Type, &p.Description, &p.Price,
		&p.DiscountPercent, &includedJSON, &p.CompatibleVehicles,
	)
	if err != nil {
		return Package{}, err
	}
	if len(includedJSON) > 0 {
		if err := json.Unmarshal(includedJSON, &p.IncludedOptions); err != nil {
			return Package{}, fmt.Errorf("decode included options: %w", err)
		}
	}
	return p, nil
}

// ListPackages returns every active package.
func (s *PGStore) ListPackages(ctx context.Context) ([]Package, error) {
	return queryPackages(ctx, s.Pool, "SELECT "+packageColumns+" FROM packages WHERE is_active ORDER BY type, name")
}

func queryPackages(ctx context.Context, q querier, query string, args ...any) ([]Package, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Package
	for rows.Next() {
		p, err := scanPackage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// LoadSnapshot reads the vehicle and every referenced option and package in
// one repeatable-read transaction, including options pulled in transitively
// through package bundles, so a single price or validation pass never mixes
// catalog states.
func (s *PGStore) LoadSnapshot(ctx context.Context, vehicleID uuid.UUID, optionIDs, packageIDs []uuid.UUID) (Snapshot, error) {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	})
	if err != nil {
		return Snapshot{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	vehicle, err := getVehicle(ctx, tx, vehicleID)
	if err != nil {
		return Snapshot{}, err
	}
	snap := Snapshot{
		Vehicle:  vehicle,
		Options:  map[uuid.UUID]Option{},
		Packages: map[uuid.UUID]Package{},
	}

	if len(packageIDs) > 0 {
		pkgs, err := queryPackages(ctx, tx, "SELECT "+packageColumns+" FROM packages WHERE is_active AND id = ANY($1)", packageIDs)
		if err != nil {
			return Snapshot{}, err
		}
		for _, p := range pkgs {
			snap.Packages[p.ID] = p
		}
		for _, id := range packageIDs {
			if _, ok := snap.Packages[id]; !ok {
				return Snapshot{}, fmt.Errorf("package %s: %w", id, ErrNotFound)
			}
		}
	}

	wanted := map[uuid.UUID]bool{}
	for _, id := range optionIDs {
		wanted[id] = true
	}
	for _, p := range snap.Packages {
		for _, inc := range p.IncludedOptions {
			wanted[inc.OptionID] = true
		}
	}
	if len(wanted) > 0 {
		ids := make([]uuid.UUID, 0, len(wanted))
		for id := range wanted {
			ids = append(ids, id)
		}
		opts, err := queryOptions(ctx, tx, "SELECT "+optionColumns+" FROM vehicle_options WHERE is_active AND id = ANY($1)", ids)
		if err != nil {
			return Snapshot{}, err
		}
		for _, o := range opts {
			snap.Options[o.ID] = o
		}
		for _, id := range optionIDs {
			if _, ok := snap.Options[id]; !ok {
				return Snapshot{}, fmt.Errorf("option %s: %w", id, ErrNotFound)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}
