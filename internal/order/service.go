package order

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"github.com/motorcraft/backend-configurator/internal/build"
	"github.com/motorcraft/backend-configurator/internal/catalog"
	"github.com/motorcraft/backend-configurator/internal/common"
	"github.com/motorcraft/backend-configurator/internal/finance"
	"github.com/motorcraft/backend-configurator/internal/obs"
	"github.com/motorcraft/backend-configurator/internal/pricing"
	"github.com/motorcraft/backend-configurator/internal/quote"
)

const defaultNumberRetries = 5

// Builds reads saved builds on behalf of the order flow.
type Builds interface {
	Get(ctx context.Context, userID, id uuid.UUID) (build.Build, error)
}

// Notifier publishes order lifecycle events. Enqueue failures never fail the
// order itself.
type Notifier interface {
	OrderCreated(ctx context.Context, o Order) error
}

// Service converts builds into orders and manages their lifecycle.
type Service struct {
	Store         Store
	Builds        Builds
	Catalog       quote.Snapshotter
	Notifier      Notifier
	Log           zerolog.Logger
	TaxRateBPS    int
	ShippingBase  int64
	NumberRetries int
}

// FinancingRequest carries the loan terms chosen at checkout. The monthly
// payment is recomputed server-side and never trusted from the client.
type FinancingRequest struct {
	DownPayment  int64   `json:"downPayment"`
	InterestRate float64 `json:"interestRate"`
	TermMonths   int     `json:"termMonths"`
}

// CreateRequest is the payload for converting a build into an order.
type CreateRequest struct {
	BuildID         uuid.UUID         `json:"buildId"`
	ShippingAddress Address           `json:"shippingAddress"`
	BillingAddress  *Address          `json:"billingAddress,omitempty"`
	PaymentMethod   string            `json:"paymentMethod"`
	Financing       *FinancingRequest `json:"financing,omitempty"`
}

// Create freezes the build into an immutable order.
func (s *Service) Create(ctx context.Context, userID uuid.UUID, req CreateRequest) (Order, error) {
	if req.BuildID == uuid.Nil {
		return Order{}, s.fail("invalid", badRequest("buildId is required", nil))
	}
	if err := validateAddress(req.ShippingAddress); err != nil {
		return Order{}, s.fail("invalid", err)
	}
	if !validPaymentMethod(req.PaymentMethod) {
		return Order{}, s.fail("invalid", badRequest("unsupported payment method", nil))
	}
	if req.PaymentMethod == PaymentFinancing && req.Financing == nil {
		return Order{}, s.fail("invalid", badRequest("financing terms are required for financed orders", nil))
	}

	b, err := s.Builds.Get(ctx, userID, req.BuildID)
	if err != nil {
		return Order{}, s.fail("not_found", err)
	}

	optionIDs := make([]uuid.UUID, 0, len(b.Options))
	for _, sel := range b.Options {
		optionIDs = append(optionIDs, sel.OptionID)
	}
	snap, err := s.Catalog.Snapshot(ctx, b.VehicleID, optionIDs, b.Packages)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return Order{}, s.fail("not_found", &common.AppError{
				Code:       common.CodeNotFound,
				Message:    "build references an entity no longer in the catalog",
				HTTPStatus: http.StatusNotFound,
				Err:        err,
			})
		}
		return Order{}, s.fail("error", fmt.Errorf("load catalog snapshot: %w", err))
	}

	items := freezeItems(b, snap)
	subtotal := b.TotalPrice
	tax := pricing.Tax(subtotal, s.TaxRateBPS)
	shipping := pricing.Shipping(snap.Vehicle.Category, s.ShippingBase)
	summary := Pricing{
		Subtotal: subtotal,
		Tax:      tax,
		Shipping: shipping,
		Discount: 0,
		Total:    subtotal + tax + shipping,
	}

	var financing *Financing
	if req.Financing != nil {
		financing, err = resolveFinancing(summary.Total, *req.Financing)
		if err != nil {
			return Order{}, s.fail("invalid", err)
		}
	}

	draft := Order{
		UserID:          userID,
		BuildID:         b.ID,
		VehicleID:       b.VehicleID,
		Items:           items,
		Pricing:         summary,
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.BillingAddress,
		Payment:         Payment{Method: req.PaymentMethod, Status: "pending"},
		Financing:       financing,
		Status:          StatusPending,
	}

	created, err := s.createNumbered(ctx, draft)
	if err != nil {
		return Order{}, s.fail("error", err)
	}

	if s.Notifier != nil {
		if err := s.Notifier.OrderCreated(ctx, created); err != nil {
			s.Log.Warn().Err(err).Str("order_number", created.OrderNumber).Msg("enqueue order.created notification failed")
		}
	}
	if obs.OrdersCreatedTotal != nil {
		obs.OrdersCreatedTotal.WithLabelValues("ok").Inc()
	}
	return created, nil
}

// createNumbered retries on order-number collisions so two orders placed in
// the same instant both get a valid sequence position.
func (s *Service) createNumbered(ctx context.Context, draft Order) (Order, error) {
	retries := s.NumberRetries
	if retries <= 0 {
		retries = defaultNumberRetries
	}
	for attempt := 0; attempt < retries; attempt++ {
		created, err := s.Store.Create(ctx, draft)
		if err == nil {
			return created, nil
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			if obs.OrderNumberRetries != nil {
				obs.OrderNumberRetries.Inc()
			}
			continue
		}
		return Order{}, fmt.Errorf("create order: %w", err)
	}
	return Order{}, fmt.Errorf("create order: exhausted %d attempts assigning an order number", retries)
}

// Get returns one order owned by the user.
func (s *Service) Get(ctx context.Context, userID, id uuid.UUID) (Order, error) {
	o, err := s.Store.GetForUser(ctx, userID, id)
	if err != nil {
		return Order{}, mapStoreError(err)
	}
	return o, nil
}

// List returns the user's orders, optionally filtered by status.
func (s *Service) List(ctx context.Context, userID uuid.UUID, status Status, limit, offset int) ([]Order, int, error) {
	if status != "" && !IsValidStatus(status) {
		return nil, 0, badRequest("unknown status filter", nil)
	}
	orders, total, err := s.Store.List(ctx, ListFilter{UserID: userID, Status: status, Limit: limit, Offset: offset})
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	if orders == nil {
		orders = []Order{}
	}
	return orders, total, nil
}

// Cancel cancels an order on behalf of its owner. Only pending and confirmed
// orders can be cancelled.
func (s *Service) Cancel(ctx context.Context, userID, id uuid.UUID) (Order, error) {
	o, err := s.Store.GetForUser(ctx, userID, id)
	if err != nil {
		return Order{}, mapStoreError(err)
	}
	return s.transition(ctx, o, StatusCancelled)
}

// UpdateStatus moves an order along the fulfilment line. Admin only.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, to Status) (Order, error) {
	if !IsValidStatus(to) {
		return Order{}, badRequest("unknown status", nil)
	}
	o, err := s.Store.Get(ctx, id)
	if err != nil {
		return Order{}, mapStoreError(err)
	}
	return s.transition(ctx, o, to)
}

func (s *Service) transition(ctx context.Context, o Order, to Status) (Order, error) {
	if !CanTransition(o.Status, to) {
		countTransition(to, "rejected")
		return Order{}, &common.AppError{
			Code:       common.CodeInvalidState,
			Message:    fmt.Sprintf("cannot move order from %s to %s", o.Status, to),
			HTTPStatus: http.StatusConflict,
		}
	}
	if err := s.Store.UpdateStatus(ctx, o.ID, o.Status, to); err != nil {
		countTransition(to, "error")
		return Order{}, mapStoreError(err)
	}
	countTransition(to, "ok")
	o.Status = to
	return o, nil
}

// freezeItems resolves the build selection into named, priced line items.
func freezeItems(b build.Build, snap catalog.Snapshot) []Item {
	items := make([]Item, 0, 2+len(b.Options)+len(b.Packages))
	items = append(items, Item{
		Kind:      "vehicle",
		RefID:     snap.Vehicle.ID,
		Name:      snap.Vehicle.Name,
		UnitPrice: snap.Vehicle.BasePrice,
		Qty:       1,
		Subtotal:  snap.Vehicle.BasePrice,
	})
	if b.Color != nil && b.Color.Price > 0 {
		items = append(items, Item{
			Kind:      "color",
			RefID:     b.VehicleID,
			Name:      b.Color.Name,
			UnitPrice: b.Color.Price,
			Qty:       1,
			Subtotal:  b.Color.Price,
		})
	}
	for _, sel := range b.Options {
		opt, ok := snap.Option(sel.OptionID)
		if !ok {
			continue
		}
		qty := sel.Qty
		if qty < 1 {
			qty = 1
		}
		items = append(items, Item{
			Kind:      "option",
			RefID:     opt.ID,
			Name:      opt.Name,
			UnitPrice: opt.Price,
			Qty:       qty,
			Subtotal:  int64(qty) * opt.Price,
		})
	}
	for _, id := range b.Packages {
		pkg, ok := snap.Package(id)
		if !ok {
			continue
		}
		final := pricing.PackageFinalPrice(pkg.Price, pkg.DiscountPercent)
		items = append(items, Item{
			Kind:      "package",
			RefID:     pkg.ID,
			Name:      pkg.Name,
			UnitPrice: final,
			Qty:       1,
			Subtotal:  final,
		})
	}
	return items
}

func resolveFinancing(total int64, req FinancingRequest) (*Financing, error) {
	loanAmount := total - req.DownPayment
	if err := finance.ValidateLoanParameters(total, req.InterestRate, req.TermMonths, req.DownPayment); err != nil {
		var loanErr *finance.LoanParamsError
		if errors.As(err, &loanErr) {
			return nil, &common.AppError{
				Code:       common.CodeInvalidLoan,
				Message:    "invalid financing terms",
				HTTPStatus: http.StatusUnprocessableEntity,
				Err:        err,
				Details:    map[string]any{"violations": loanErr.Violations},
			}
		}
		return nil, err
	}
	monthly, err := finance.CalculateEMI(loanAmount, req.InterestRate, req.TermMonths)
	if err != nil {
		return nil, err
	}
	return &Financing{
		LoanAmount:     loanAmount,
		DownPayment:    req.DownPayment,
		InterestRate:   req.InterestRate,
		TermMonths:     req.TermMonths,
		MonthlyPayment: monthly,
	}, nil
}

func validateAddress(a Address) error {
	missing := []string{}
	if strings.TrimSpace(a.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(a.Line1) == "" {
		missing = append(missing, "line1")
	}
	if strings.TrimSpace(a.City) == "" {
		missing = append(missing, "city")
	}
	if strings.TrimSpace(a.PostalCode) == "" {
		missing = append(missing, "postalCode")
	}
	if strings.TrimSpace(a.Country) == "" {
		missing = append(missing, "country")
	}
	if len(missing) > 0 {
		return &common.AppError{
			Code:       common.CodeBadRequest,
			Message:    "shipping address is incomplete",
			HTTPStatus: http.StatusBadRequest,
			Details:    map[string]any{"missing": missing},
		}
	}
	return nil
}

func validPaymentMethod(method string) bool {
	switch method {
	case PaymentCreditCard, PaymentBankTransfer, PaymentFinancing, PaymentCash:
		return true
	}
	return false
}

func (s *Service) fail(result string, err error) error {
	if obs.OrdersCreatedTotal != nil {
		obs.OrdersCreatedTotal.WithLabelValues(result).Inc()
	}
	return err
}

func mapStoreError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return &common.AppError{
			Code:       common.CodeNotFound,
			Message:    "order not found",
			HTTPStatus: http.StatusNotFound,
			Err:        err,
		}
	case errors.Is(err, ErrStatusConflict):
		return &common.AppError{
			Code:       common.CodeInvalidState,
			Message:    "order status changed, reload and retry",
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

func countTransition(to Status, result string) {
	if obs.OrderStatusTransitions != nil {
		obs.OrderStatusTransitions.WithLabelValues(string(to), result).Inc()
	}
}
