package checkout

import (
	"github.com/shopspring/decimal"
)

// Snapshot is the persistable state of a session. It never carries an in-flight checkout.
type Snapshot struct {
	Lines         []Line          `json:"lines"`
	Discount      decimal.Decimal `json:"discount"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	CashTendered  decimal.Decimal `json:"cash_tendered"`
	CustomerID    string          `json:"customer_id,omitempty"`
	StaffName     string          `json:"staff_name,omitempty"`
	Notes         string          `json:"notes,omitempty"`
	TaxRate       decimal.Decimal `json:"tax_rate"`
}

// Snapshot captures the current cart and tender inputs.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Lines:         s.copyLines(),
		Discount:      s.discount,
		PaymentMethod: s.paymentMethod,
		CashTendered:  s.cashTendered,
		CustomerID:    s.customerID,
		StaffName:     s.staffName,
		Notes:         s.notes,
		TaxRate:       s.taxRate,
	}
}

// Restore rebuilds a session from a snapshot. Lines violating the cart invariants
// (non-positive quantity, quantity above stock, negative price, duplicate product)
// are dropped.
func Restore(snap Snapshot, submitter Submitter, opts ...Option) *Session {
	s := NewSession(submitter, WithTaxRate(snap.TaxRate), WithStaffName(snap.StaffName))
	for _, opt := range opts {
		opt(s)
	}
	if snap.PaymentMethod.Valid() {
		s.paymentMethod = snap.PaymentMethod
	}
	if !snap.Discount.IsNegative() {
		s.discount = snap.Discount
	}
	if !snap.CashTendered.IsNegative() {
		s.cashTendered = snap.CashTendered
	}
	s.customerID = snap.CustomerID
	s.notes = snap.Notes

	seen := make(map[string]bool, len(snap.Lines))
	for _, l := range snap.Lines {
		if l.Quantity <= 0 || l.Quantity > l.MaxStock || l.UnitPrice.IsNegative() || seen[l.ProductID] {
			continue
		}
		seen[l.ProductID] = true
		line := l
		s.lines = append(s.lines, &line)
	}
	return s
}
