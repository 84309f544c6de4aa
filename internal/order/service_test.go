package order_test

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/motorcraft/backend-configurator/internal/build"
	"github.com/motorcraft/backend-configurator/internal/catalog"
	"github.com/motorcraft/backend-configurator/internal/common"
	"github.com/motorcraft/backend-configurator/internal/order"
)

var (
	userID     = uuid.MustParse("aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa")
	buildID    = uuid.MustParse("bbbbbbbb-bbbb-bbbb-bbbb-bbbbbbbbbbbb")
	roadsterID = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	sunroofID  = uuid.MustParse("22222222-2222-2222-2222-222222222222")
	techPkgID  = uuid.MustParse("33333333-3333-3333-3333-333333333333")
)

type memoryStore struct {
	mu        sync.Mutex
	orders    map[uuid.UUID]order.Order
	numbers   map[string]bool
	failNext  int
	createdAt time.Time
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		orders:  map[uuid.UUID]order.Order{},
		numbers: map[string]bool{},
	}
}

func (m *memoryStore) Create(_ context.Context, o order.Order) (order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failNext > 0 {
		m.failNext--
		return order.Order{}, &pgconn.PgError{Code: "23505", ConstraintName: "orders_order_number_key"}
	}
	day := time.Now()
	count := 0
	for _, existing := range m.orders {
		if existing.CreatedAt.YearDay() == day.YearDay() {
			count++
		}
	}
	o.OrderNumber = order.FormatOrderNumber(day, count+1)
	if m.numbers[o.OrderNumber] {
		return order.Order{}, &pgconn.PgError{Code: "23505", ConstraintName: "orders_order_number_key"}
	}
	m.numbers[o.OrderNumber] = true
	o.ID = uuid.New()
	o.CreatedAt = day
	o.UpdatedAt = day
	m.orders[o.ID] = o
	return o, nil
}

func (m *memoryStore) Get(_ context.Context, id uuid.UUID) (order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return order.Order{}, order.ErrNotFound
	}
	return o, nil
}

func (m *memoryStore) GetForUser(_ context.Context, userID, id uuid.UUID) (order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok || o.UserID != userID {
		return order.Order{}, order.ErrNotFound
	}
	return o, nil
}

func (m *memoryStore) List(_ context.Context, filter order.ListFilter) ([]order.Order, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []order.Order
	for _, o := range m.orders {
		if o.UserID != filter.UserID {
			continue
		}
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		out = append(out, o)
	}
	return out, len(out), nil
}

func (m *memoryStore) UpdateStatus(_ context.Context, id uuid.UUID, from, to order.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return order.ErrNotFound
	}
	if o.Status != from {
		return order.ErrStatusConflict
	}
	o.Status = to
	o.UpdatedAt = time.Now()
	m.orders[id] = o
	return nil
}

type fakeBuilds struct {
	mu     sync.Mutex
	builds map[uuid.UUID]build.Build
}

func (f *fakeBuilds) Get(_ context.Context, userID, id uuid.UUID) (build.Build, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.builds[id]
	if !ok || b.UserID != userID {
		return build.Build{}, &common.AppError{
			Code:       common.CodeNotFound,
			Message:    "build not found",
			HTTPStatus: http.StatusNotFound,
		}
	}
	return b, nil
}

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
	for _, id := range optionIDs {
		if opt, ok := f.options[id]; ok {
			snap.Options[id] = opt
		}
	}
	for _, id := range packageIDs {
		if pkg, ok := f.packages[id]; ok {
			snap.Packages[id] = pkg
		}
	}
	return snap, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	orders []order.Order
}

func (r *recordingNotifier) OrderCreated(_ context.Context, o order.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders = append(r.orders, o)
	return nil
}

func fixtureBuild() build.Build {
	return build.Build{
		ID:        buildID,
		UserID:    userID,
		VehicleID: roadsterID,
		Name:      "Weekend Car",
		Color:     &catalog.Color{Name: "Midnight Blue", Code: "#003", Price: 150_000},
		Options:   []build.SelectedOption{{OptionID: sunroofID, Qty: 1}},
		Packages:  []uuid.UUID{techPkgID},
		BasePrice: 4_500_000,
		// base + color + sunroof + discounted package
		TotalPrice: 4_500_000 + 150_000 + 150_000 + 467_500,
		Version:    3,
	}
}

func newService(store *memoryStore, notifier *recordingNotifier) (*order.Service, *fakeBuilds) {
	builds := &fakeBuilds{builds: map[uuid.UUID]build.Build{buildID: fixtureBuild()}}
	svc := &order.Service{
		Store:  store,
		Builds: builds,
		Catalog: &fakeCatalog{
			vehicle: catalog.Vehicle{
				ID:        roadsterID,
				Name:      "Roadster GT",
				BasePrice: 4_500_000,
				Category:  catalog.CategorySports,
			},
			options: map[uuid.UUID]catalog.Option{
				sunroofID: {ID: sunroofID, Name: "Panoramic Sunroof", Price: 150_000},
			},
			packages: map[uuid.UUID]catalog.Package{
				techPkgID: {ID: techPkgID, Name: "Tech Package", Price: 550_000, DiscountPercent: 15},
			},
		},
		Notifier:      notifier,
		Log:           zerolog.Nop(),
		TaxRateBPS:    800,
		ShippingBase:  150_000,
		NumberRetries: 3,
	}
	return svc, builds
}

func shippingAddress() order.Address {
	return order.Address{
		Name:       "Dana Buyer",
		Line1:      "1 Main St",
		City:       "Springfield",
		PostalCode: "01101",
		Country:    "US",
	}
}

func TestCreateFreezesBuild(t *testing.T) {
	store := newMemoryStore()
	notifier := &recordingNotifier{}
	svc, builds := newService(store, notifier)
	ctx := context.Background()

	created, err := svc.Create(ctx, userID, order.CreateRequest{
		BuildID:         buildID,
		ShippingAddress: shippingAddress(),
		PaymentMethod:   order.PaymentCreditCard,
	})
	require.NoError(t, err)
	require.Equal(t, order.StatusPending, created.Status)
	require.Equal(t, "pending", created.Payment.Status)

	subtotal := int64(5_267_500)
	require.Equal(t, subtotal, created.Pricing.Subtotal)
	require.Equal(t, subtotal*800/10000, created.Pricing.Tax)
	require.Equal(t, int64(225_000), created.Pricing.Shipping)
	require.Zero(t, created.Pricing.Discount)
	require.Equal(t, subtotal+created.Pricing.Tax+created.Pricing.Shipping, created.Pricing.Total)

	require.Len(t, created.Items, 4)
	kinds := map[string]order.Item{}
	for _, item := range created.Items {
		kinds[item.Kind] = item
	}
	require.Equal(t, "Roadster GT", kinds["vehicle"].Name)
	require.Equal(t, "Midnight Blue", kinds["color"].Name)
	require.Equal(t, "Panoramic Sunroof", kinds["option"].Name)
	require.Equal(t, "Tech Package", kinds["package"].Name)
	require.Equal(t, int64(467_500), kinds["package"].Subtotal)

	// later build edits never touch the stored order
	b := builds.builds[buildID]
	b.TotalPrice = 1
	builds.builds[buildID] = b
	stored, err := svc.Get(ctx, userID, created.ID)
	require.NoError(t, err)
	require.Equal(t, subtotal, stored.Pricing.Subtotal)

	require.Len(t, notifier.orders, 1)
	require.Equal(t, created.OrderNumber, notifier.orders[0].OrderNumber)
}

func TestSequentialOrderNumbers(t *testing.T) {
	store := newMemoryStore()
	svc, _ := newService(store, &recordingNotifier{})
	ctx := context.Background()

	first, err := svc.Create(ctx, userID, order.CreateRequest{
		BuildID:         buildID,
		ShippingAddress: shippingAddress(),
		PaymentMethod:   order.PaymentCash,
	})
	require.NoError(t, err)
	second, err := svc.Create(ctx, userID, order.CreateRequest{
		BuildID:         buildID,
		ShippingAddress: shippingAddress(),
		PaymentMethod:   order.PaymentCash,
	})
	require.NoError(t, err)

	day := time.Now().Format("20060102")
	require.Equal(t, "ORD-"+day+"-0001", first.OrderNumber)
	require.Equal(t, "ORD-"+day+"-0002", second.OrderNumber)
}

func TestOrderNumberCollisionRetried(t *testing.T) {
	store := newMemoryStore()
	store.failNext = 2
	svc, _ := newService(store, &recordingNotifier{})

	created, err := svc.Create(context.Background(), userID, order.CreateRequest{
		BuildID:         buildID,
		ShippingAddress: shippingAddress(),
		PaymentMethod:   order.PaymentCash,
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.OrderNumber)
}

func TestOrderNumberRetriesExhausted(t *testing.T) {
	store := newMemoryStore()
	store.failNext = 10
	svc, _ := newService(store, &recordingNotifier{})

	_, err := svc.Create(context.Background(), userID, order.CreateRequest{
		BuildID:         buildID,
		ShippingAddress: shippingAddress(),
		PaymentMethod:   order.PaymentCash,
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "exhausted")
}

func TestFinancingRecomputedServerSide(t *testing.T) {
	store := newMemoryStore()
	svc, _ := newService(store, &recordingNotifier{})

	created, err := svc.Create(context.Background(), userID, order.CreateRequest{
		BuildID:         buildID,
		ShippingAddress: shippingAddress(),
		PaymentMethod:   order.PaymentFinancing,
		Financing: &order.FinancingRequest{
			DownPayment:  1_000_000,
			InterestRate: 5.5,
			TermMonths:   60,
		},
	})
	require.NoError(t, err)
	require.NotNil(t, created.Financing)
	require.Equal(t, created.Pricing.Total-1_000_000, created.Financing.LoanAmount)
	require.Positive(t, created.Financing.MonthlyPayment)
	// sanity: total repaid exceeds the financed amount at a positive rate
	repaid := created.Financing.MonthlyPayment * int64(created.Financing.TermMonths)
	require.Greater(t, repaid, created.Financing.LoanAmount)
}

func TestFinancingRequiredForFinancedOrders(t *testing.T) {
	store := newMemoryStore()
	svc, _ := newService(store, &recordingNotifier{})

	_, err := svc.Create(context.Background(), userID, order.CreateRequest{
		BuildID:         buildID,
		ShippingAddress: shippingAddress(),
		PaymentMethod:   order.PaymentFinancing,
	})
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, http.StatusBadRequest, appErr.HTTPStatus)
}

func TestInvalidFinancingTerms(t *testing.T) {
	store := newMemoryStore()
	svc, _ := newService(store, &recordingNotifier{})

	_, err := svc.Create(context.Background(), userID, order.CreateRequest{
		BuildID:         buildID,
		ShippingAddress: shippingAddress(),
		PaymentMethod:   order.PaymentFinancing,
		Financing: &order.FinancingRequest{
			DownPayment:  -5,
			InterestRate: -1,
			TermMonths:   0,
		},
	})
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, common.CodeInvalidLoan, appErr.Code)
	require.Equal(t, http.StatusUnprocessableEntity, appErr.HTTPStatus)
}

func TestIncompleteAddressRejected(t *testing.T) {
	store := newMemoryStore()
	svc, _ := newService(store, &recordingNotifier{})

	_, err := svc.Create(context.Background(), userID, order.CreateRequest{
		BuildID:       buildID,
		PaymentMethod: order.PaymentCash,
	})
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, http.StatusBadRequest, appErr.HTTPStatus)
}

func TestStatusMachine(t *testing.T) {
	store := newMemoryStore()
	svc, _ := newService(store, &recordingNotifier{})
	ctx := context.Background()

	created, err := svc.Create(ctx, userID, order.CreateRequest{
		BuildID:         buildID,
		ShippingAddress: shippingAddress(),
		PaymentMethod:   order.PaymentCash,
	})
	require.NoError(t, err)

	// skipping a state is rejected
	_, err = svc.UpdateStatus(ctx, created.ID, order.StatusShipped)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, common.CodeInvalidState, appErr.Code)
	require.Equal(t, http.StatusConflict, appErr.HTTPStatus)

	for _, next := range []order.Status{
		order.StatusConfirmed,
		order.StatusInProduction,
		order.StatusShipped,
		order.StatusDelivered,
	} {
		updated, err := svc.UpdateStatus(ctx, created.ID, next)
		require.NoError(t, err)
		require.Equal(t, next, updated.Status)
	}

	// delivered is terminal
	_, err = svc.UpdateStatus(ctx, created.ID, order.StatusCancelled)
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, common.CodeInvalidState, appErr.Code)
}

func TestCancelOnlyBeforeProduction(t *testing.T) {
	store := newMemoryStore()
	svc, _ := newService(store, &recordingNotifier{})
	ctx := context.Background()

	created, err := svc.Create(ctx, userID, order.CreateRequest{
		BuildID:         buildID,
		ShippingAddress: shippingAddress(),
		PaymentMethod:   order.PaymentCash,
	})
	require.NoError(t, err)

	cancelled, err := svc.Cancel(ctx, userID, created.ID)
	require.NoError(t, err)
	require.Equal(t, order.StatusCancelled, cancelled.Status)

	second, err := svc.Create(ctx, userID, order.CreateRequest{
		BuildID:         buildID,
		ShippingAddress: shippingAddress(),
		PaymentMethod:   order.PaymentCash,
	})
	require.NoError(t, err)
	_, err = svc.UpdateStatus(ctx, second.ID, order.StatusConfirmed)
	require.NoError(t, err)
	_, err = svc.UpdateStatus(ctx, second.ID, order.StatusInProduction)
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, userID, second.ID)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, common.CodeInvalidState, appErr.Code)
}

func TestOwnershipEnforced(t *testing.T) {
	store := newMemoryStore()
	svc, _ := newService(store, &recordingNotifier{})
	ctx := context.Background()

	created, err := svc.Create(ctx, userID, order.CreateRequest{
		BuildID:         buildID,
		ShippingAddress: shippingAddress(),
		PaymentMethod:   order.PaymentCash,
	})
	require.NoError(t, err)

	stranger := uuid.New()
	_, err = svc.Get(ctx, stranger, created.ID)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, http.StatusNotFound, appErr.HTTPStatus)

	_, err = svc.Cancel(ctx, stranger, created.ID)
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, http.StatusNotFound, appErr.HTTPStatus)
}

func TestListFiltersByStatus(t *testing.T) {
	store := newMemoryStore()
	svc, _ := newService(store, &recordingNotifier{})
	ctx := context.Background()

	first, err := svc.Create(ctx, userID, order.CreateRequest{
		BuildID:         buildID,
		ShippingAddress: shippingAddress(),
		PaymentMethod:   order.PaymentCash,
	})
	require.NoError(t, err)
	_, err = svc.Create(ctx, userID, order.CreateRequest{
		BuildID:         buildID,
		ShippingAddress: shippingAddress(),
		PaymentMethod:   order.PaymentCash,
	})
	require.NoError(t, err)
	_, err = svc.Cancel(ctx, userID, first.ID)
	require.NoError(t, err)

	pending, total, err := svc.List(ctx, userID, order.StatusPending, 20, 0)
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, pending, 1)

	_, _, err = svc.List(ctx, userID, order.Status("bogus"), 20, 0)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, http.StatusBadRequest, appErr.HTTPStatus)
}
