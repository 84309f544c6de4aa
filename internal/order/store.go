package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound indicates the order does not exist or is not visible to
	// the caller.
	ErrNotFound = errors.New("order not found")
	// ErrStatusConflict indicates the order's status moved between read and
	// write.
	ErrStatusConflict = errors.New("order status changed concurrently")
)

// ListFilter narrows order listings.
type ListFilter struct {
	UserID uuid.UUID
	Status Status
	Limit  int
	Offset int
}

// Store persists orders. Create assigns the order number from the per-day
// sequence; a unique-violation error bubbles up so the caller can retry with
// a recounted sequence.
type Store interface {
	Create(ctx context.Context, o Order) (Order, error)
	Get(ctx context.Context, id uuid.UUID) (Order, error)
	GetForUser(ctx context.Context, userID, id uuid.UUID) (Order, error)
	List(ctx context.Context, filter ListFilter) ([]Order, int, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) error
}

// PGStore implements Store on Postgres.
type PGStore struct {
	Pool *pgxpool.Pool
}

var _ Store = (*PGStore)(nil)

const orderColumns = `id, order_number, user_id, build_id, vehicle_id, items, pricing_subtotal, pricing_tax, pricing_shipping, pricing_discount, pricing_total, shipping_address, billing_address, payment_method, payment_status, financing, status, created_at, updated_at`

func scanOrder(row pgx.Row) (Order, error) {
	var (
		o             Order
		itemsJSON     []byte
		shippingJSON  []byte
		billingJSON   []byte
		financingJSON []byte
	)
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.UserID, &o.BuildID, &o.VehicleID, &itemsJSON,
		&o.Pricing.Subtotal, &o.Pricing.Tax, &o.Pricing.Shipping, &o.Pricing.Discount, &o.Pricing.Total,
		&shippingJSON, &billingJSON, &o.Payment.Method, &o.Payment.Status, &financingJSON,
		&o.Status, &o.CreatedAt, &o.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	if err != nil {
		return Order{}, err
	}
	if len(itemsJSON) > 0 {
		if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
			return Order{}, fmt.Errorf("decode order items: %w", err)
		}
	}
	if len(shippingJSON) > 0 {
		if err := json.Unmarshal(shippingJSON, &o.ShippingAddress); err != nil {
			return Order{}, fmt.Errorf("decode shipping address: %w", err)
		}
	}
	if len(billingJSON) > 0 {
		if err := json.Unmarshal(billingJSON, &o.BillingAddress); err != nil {
			return Order{}, fmt.Errorf("decode billing address: %w", err)
		}
	}
	if len(financingJSON) > 0 {
		if err := json.Unmarshal(financingJSON, &o.Financing); err != nil {
			return Order{}, fmt.Errorf("decode financing: %w", err)
		}
	}
	return o, nil
}

// Create numbers and inserts the order in one transaction. The number is
// ORD-YYYYMMDD-NNNN where NNNN continues the day's sequence; the unique
// index on order_number surfaces concurrent numbering as a 23505 error.
func (s *PGStore) Create(ctx context.Context, o Order) (Order, error) {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return Order{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var countToday int
	if err := tx.QueryRow(ctx,
		`SELECT count(*) FROM orders WHERE created_at >= date_trunc('day', now())`,
	).Scan(&countToday); err != nil {
		return Order{}, err
	}
	o.OrderNumber = FormatOrderNumber(time.Now(), countToday+1)

	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return Order{}, fmt.Errorf("encode order items: %w", err)
	}
	shippingJSON, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return Order{}, fmt.Errorf("encode shipping address: %w", err)
	}
	var billingJSON []byte
	if o.BillingAddress != nil {
		if billingJSON, err = json.Marshal(o.BillingAddress); err != nil {
			return Order{}, fmt.Errorf("encode billing address: %w", err)
		}
	}
	var financingJSON []byte
	if o.Financing != nil {
		if financingJSON, err = json.Marshal(o.Financing); err != nil {
			return Order{}, fmt.Errorf("encode financing: %w", err)
		}
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO orders (order_number, user_id, build_id, vehicle_id, items,
			pricing_subtotal, pricing_tax, pricing_shipping, pricing_discount, pricing_total,
			shipping_address, billing_address, payment_method, payment_status, financing, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING `+orderColumns,
		o.OrderNumber, o.UserID, o.BuildID, o.VehicleID, itemsJSON,
		o.Pricing.Subtotal, o.Pricing.Tax, o.Pricing.Shipping, o.Pricing.Discount, o.Pricing.Total,
		shippingJSON, billingJSON, o.Payment.Method, o.Payment.Status, financingJSON, o.Status,
	)
	created, err := scanOrder(row)
	if err != nil {
		return Order{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Order{}, err
	}
	return created, nil
}

// FormatOrderNumber renders the canonical order number for a day and sequence.
func FormatOrderNumber(day time.Time, seq int) string {
	return fmt.Sprintf("ORD-%s-%04d", day.Format("20060102"), seq)
}

func (s *PGStore) Get(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(s.Pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
}

func (s *PGStore) GetForUser(ctx context.Context, userID, id uuid.UUID) (Order, error) {
	return scanOrder(s.Pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1 AND user_id = $2`, id, userID))
}

func (s *PGStore) List(ctx context.Context, filter ListFilter) ([]Order, int, error) {
	where := "user_id = $1"
	args := []any{filter.UserID}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}

	var total int
	if err := s.Pool.QueryRow(ctx, "SELECT count(*) FROM orders WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	args = append(args, limit, filter.Offset)
	query := fmt.Sprintf(
		"SELECT %s FROM orders WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		orderColumns, where, len(args)-1, len(args),
	)
	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, o)
	}
	return out, total, rows.Err()
}

// UpdateStatus moves the order from one state to another, failing when the
// stored state no longer matches.
func (s *PGStore) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) error {
	tag, err := s.Pool.Exec(ctx,
		`UPDATE orders SET status = $3, updated_at = now() WHERE id = $1 AND status = $2`,
		id, from, to,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, getErr := s.Get(ctx, id); getErr != nil {
			return ErrNotFound
		}
		return ErrStatusConflict
	}
	return nil
}
