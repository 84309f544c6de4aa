// Package order converts saved builds into immutable purchase orders and
// walks them through the fulfilment state machine.
package order

import (
	"time"

	"github.com/google/uuid"
)

// Status is an order's fulfilment state.
type Status string

const (
	StatusPending      Status = "pending"
	StatusConfirmed    Status = "confirmed"
	StatusInProduction Status = "in_production"
	StatusShipped      Status = "shipped"
	StatusDelivered    Status = "delivered"
	StatusCancelled    Status = "cancelled"
)

// Payment methods accepted at checkout.
const (
	PaymentCreditCard   = "credit_card"
	PaymentBankTransfer = "bank_transfer"
	PaymentFinancing    = "financing"
	PaymentCash         = "cash"
)

// Item is one frozen order line. RefID points at the catalog entity the line
// was priced from; the name and prices never change after the order exists.
type Item struct {
	Kind      string    `json:"kind"`
	RefID     uuid.UUID `json:"refId"`
	Name      string    `json:"name"`
	UnitPrice int64     `json:"unitPrice"`
	Qty       int       `json:"qty"`
	Subtotal  int64     `json:"subtotal"`
}

// Address is a shipping or billing address.
type Address struct {
	Name       string `json:"name"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
	Phone      string `json:"phone,omitempty"`
}

// Pricing is the frozen money summary of an order.
type Pricing struct {
	Subtotal int64 `json:"subtotal"`
	Tax      int64 `json:"tax"`
	Shipping int64 `json:"shipping"`
	Discount int64 `json:"discount"`
	Total    int64 `json:"total"`
}

// Payment records how the order is being paid.
type Payment struct {
	Method string `json:"method"`
	Status string `json:"status"`
}

// Financing captures the loan terms attached to a financed order. The
// monthly payment is always recomputed server-side.
type Financing struct {
	LoanAmount     int64   `json:"loanAmount"`
	DownPayment    int64   `json:"downPayment"`
	InterestRate   float64 `json:"interestRate"`
	TermMonths     int     `json:"termMonths"`
	MonthlyPayment int64   `json:"monthlyPayment"`
}

// Order is an immutable snapshot of a purchased build.
type Order struct {
	ID              uuid.UUID  `json:"id"`
	OrderNumber     string     `json:"orderNumber"`
	UserID          uuid.UUID  `json:"userId"`
	BuildID         uuid.UUID  `json:"buildId"`
	VehicleID       uuid.UUID  `json:"vehicleId"`
	Items           []Item     `json:"items"`
	Pricing         Pricing    `json:"pricing"`
	ShippingAddress Address    `json:"shippingAddress"`
	BillingAddress  *Address   `json:"billingAddress,omitempty"`
	Payment         Payment    `json:"payment"`
	Financing       *Financing `json:"financing,omitempty"`
	Status          Status     `json:"status"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}
