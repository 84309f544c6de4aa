package build

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound indicates the build does not exist or belongs to someone else.
	ErrNotFound = errors.New("build not found")
	// ErrVersionConflict indicates the stored version moved past the one the
	// caller read. The caller must re-read and retry.
	ErrVersionConflict = errors.New("build was modified concurrently")
)

// Store persists builds.
type Store interface {
	Create(ctx context.Context, b Build) (Build, error)
	Get(ctx context.Context, userID, id uuid.UUID) (Build, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Build, int, error)
	Update(ctx context.Context, b Build, expectedVersion int64) (Build, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
}

// PGStore implements Store on Postgres.
type PGStore struct {
	Pool *pgxpool.Pool
}

var _ Store = (*PGStore)(nil)

const buildColumns = `id, user_id, vehicle_id, name, selected_color, selected_options, selected_packages, base_price, total_price, version, created_at, last_modified`

func scanBuild(row pgx.Row) (Build, error) {
	var (
		b           Build
		colorJSON   []byte
		optionsJSON []byte
	)
	err := row.Scan(
		&b.ID, &b.UserID, &b.VehicleID, &b.Name, &colorJSON, &optionsJSON,
		&b.Packages, &b.BasePrice, &b.TotalPrice, &b.Version, &b.CreatedAt, &b.LastModified,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Build{}, ErrNotFound
	}
	if err != nil {
		return Build{}, err
	}
	if len(colorJSON) > 0 {
		if err := json.Unmarshal(colorJSON, &b.Color); err != nil {
			return Build{}, fmt.Errorf("decode selected color: %w", err)
		}
	}
	if len(optionsJSON) > 0 {
		if err := json.Unmarshal(optionsJSON, &b.Options); err != nil {
			return Build{}, fmt.Errorf("decode selected options: %w", err)
		}
	}
	if b.Options == nil {
		b.Options = []SelectedOption{}
	}
	if b.Packages == nil {
		b.Packages = []uuid.UUID{}
	}
	return b, nil
}

func encodeSelection(b Build) (colorJSON, optionsJSON []byte, err error) {
	if b.Color != nil {
		colorJSON, err = json.Marshal(b.Color)
		if err != nil {
			return nil, nil, fmt.Errorf("encode selected color: %w", err)
		}
	}
	options := b.Options
	if options == nil {
		options = []SelectedOption{}
	}
	optionsJSON, err = json.Marshal(options)
	if err != nil {
		return nil, nil, fmt.Errorf("encode selected options: %w", err)
	}
	return colorJSON, optionsJSON, nil
}

func (s *PGStore) Create(ctx context.Context, b Build) (Build, error) {
	colorJSON, optionsJSON, err := encodeSelection(b)
	if err != nil {
		return Build{}, err
	}
	row := s.Pool.QueryRow(ctx, `
		INSERT INTO builds (user_id, vehicle_id, name, selected_color, selected_options, selected_packages, base_price, total_price)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+buildColumns,
		b.UserID, b.VehicleID, b.Name, colorJSON, optionsJSON, b.Packages, b.BasePrice, b.TotalPrice,
	)
	return scanBuild(row)
}

func (s *PGStore) Get(ctx context.Context, userID, id uuid.UUID) (Build, error) {
	row := s.Pool.QueryRow(ctx,
		`SELECT `+buildColumns+` FROM builds WHERE id = $1 AND user_id = $2`, id, userID)
	return scanBuild(row)
}

func (s *PGStore) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Build, int, error) {
	var total int
	if err := s.Pool.QueryRow(ctx, `SELECT count(*) FROM builds WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, err
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.Pool.Query(ctx,
		`SELECT `+buildColumns+` FROM builds WHERE user_id = $1 ORDER BY last_modified DESC LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Build
	for rows.Next() {
		b, err := scanBuild(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, b)
	}
	return out, total, rows.Err()
}

// Update writes the build only if the stored version still matches
// expectedVersion, bumping the version and last_modified on success.
func (s *PGStore) Update(ctx context.Context, b Build, expectedVersion int64) (Build, error) {
	colorJSON, optionsJSON, err := encodeSelection(b)
	if err != nil {
		return Build{}, err
	}
	row := s.Pool.QueryRow(ctx, `
		UPDATE builds
		SET name = $4, selected_color = $5, selected_options = $6, selected_packages = $7,
		    base_price = $8, total_price = $9, version = version + 1, last_modified = now()
		WHERE id = $1 AND user_id = $2 AND version = $3
		RETURNING `+buildColumns,
		b.ID, b.UserID, expectedVersion,
		b.Name, colorJSON, optionsJSON, b.Packages, b.BasePrice, b.TotalPrice,
	)
	updated, err := scanBuild(row)
	if errors.Is(err, ErrNotFound) {
		// Distinguish a stale version from a missing row.
		if _, getErr := s.Get(ctx, b.UserID, b.ID); getErr == nil {
			return Build{}, ErrVersionConflict
		}
		return Build{}, ErrNotFound
	}
	return updated, err
}

func (s *PGStore) Delete(ctx context.Context, userID, id uuid.UUID) error {
	tag, err := s.Pool.Exec(ctx, `DELETE FROM builds WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
