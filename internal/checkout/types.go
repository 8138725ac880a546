package checkout

import (
	"context"

	"github.com/shopspring/decimal"
)

// PaymentMethod is the tender type of a sale.
type PaymentMethod string

const (
	PaymentCash PaymentMethod = "cash"
	PaymentCard PaymentMethod = "card"
)

// Valid reports whether m is a supported tender type.
func (m PaymentMethod) Valid() bool {
	return m == PaymentCash || m == PaymentCard
}

// Product is the catalog snapshot the engine reads when adding an item.
// The engine never mutates it.
type Product struct {
	ID       string
	Name     string
	Price    decimal.Decimal
	Stock    int
	Category string
}

// Line is one product's accumulated quantity within the active sale.
type Line struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	MaxStock  int             `json:"max_stock"`
}

// Amount is UnitPrice x Quantity at full precision.
func (l Line) Amount() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Totals are the derived monetary values of a cart, rounded to cents.
type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Discount decimal.Decimal `json:"discount"`
	Taxable  decimal.Decimal `json:"taxable"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
}

// RequestLine is a line of a finalized sale.
type RequestLine struct {
	ProductID string          `json:"id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

// Request is handed to the Submitter at checkout. It is built once and never reused.
type Request struct {
	Lines         []RequestLine   `json:"items"`
	CustomerID    string          `json:"customer_id,omitempty"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	CashAmount    decimal.Decimal `json:"cash_amount"`
	CardAmount    decimal.Decimal `json:"card_amount"`
	Discount      decimal.Decimal `json:"discount"`
	StaffName     string          `json:"staff_name,omitempty"`
	Notes         string          `json:"notes,omitempty"`
}

// Result is returned by the Submitter.
type Result struct {
	Success       bool            `json:"success"`
	ChangeDue     decimal.Decimal `json:"change_due"`
	Error         string          `json:"error,omitempty"`
	Code          string          `json:"code,omitempty"`
	TransactionID string          `json:"transaction_id,omitempty"`
}

// Rejection codes carried in Result.Code.
const (
	RejectEmpty             = "EMPTY_TRANSACTION"
	RejectInvalidPayment    = "INVALID_PAYMENT_METHOD"
	RejectInvalidQuantity   = "INVALID_QUANTITY"
	RejectProductNotFound   = "PRODUCT_NOT_FOUND"
	RejectInsufficientStock = "INSUFFICIENT_STOCK"
	RejectInsufficientFunds = "INSUFFICIENT_FUNDS"
)

// Submitter persists a finalized sale and adjusts stock.
// Business rejections are reported with Result.Success == false,
// transport or infrastructure failures as a non-nil error.
type Submitter interface {
	Submit(ctx context.Context, req *Request) (*Result, error)
}

// SubmitterFunc adapts a function to Submitter.
type SubmitterFunc func(ctx context.Context, req *Request) (*Result, error)

func (f SubmitterFunc) Submit(ctx context.Context, req *Request) (*Result, error) {
	return f(ctx, req)
}

// State of a session's checkout.
type State int

const (
	StateIdle State = iota
	StateSubmitting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSubmitting:
		return "submitting"
	default:
		return "unknown"
	}
}
