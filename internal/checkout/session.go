// Package checkout maintains the cart of a single register and turns it into a sale.
//
// A Session owns an ordered list of lines, the tender inputs of the sale and the
// checkout state flag. All derived money values are recomputed from the full line list
// on every call; nothing is cached incrementally.
package checkout

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
)

// Session is the cart and checkout state of one register.
type Session struct {
	mu sync.Mutex

	lines         []*Line
	discount      decimal.Decimal
	paymentMethod PaymentMethod
	cashTendered  decimal.Decimal
	customerID    string
	staffName     string
	notes         string

	taxRate   decimal.Decimal
	state     State
	submitter Submitter
}

// Option configures a Session.
type Option func(*Session)

// WithTaxRate sets the rate used by Totals and Checkout, e.g. 0.08.
func WithTaxRate(rate decimal.Decimal) Option {
	return func(s *Session) {
		s.taxRate = rate
	}
}

// WithStaffName sets the cashier recorded on submitted sales.
func WithStaffName(name string) Option {
	return func(s *Session) {
		s.staffName = name
	}
}

// NewSession creates an empty cart bound to a submitter. Payment defaults to cash.
func NewSession(submitter Submitter, opts ...Option) *Session {
	s := &Session{
		submitter:     submitter,
		paymentMethod: PaymentCash,
		discount:      decimal.Zero,
		cashTendered:  decimal.Zero,
		taxRate:       decimal.Zero,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) find(productID string) (int, *Line) {
	for i, l := range s.lines {
		if l.ProductID == productID {
			return i, l
		}
	}
	return -1, nil
}

func (s *Session) removeAt(i int) {
	s.lines = append(s.lines[:i], s.lines[i+1:]...)
}

// AddItem adds one unit of the product, appending a line on first add.
func (s *Session) AddItem(p Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateSubmitting {
		return ErrCheckoutInProgress
	}
	if p.Price.IsNegative() {
		return ErrNegativeAmount
	}
	if p.Stock <= 0 {
		return stockError(p.ID, p.Stock)
	}

	if _, line := s.find(p.ID); line != nil {
		if line.Quantity >= p.Stock {
			return stockError(p.ID, p.Stock)
		}
		line.Quantity++
		line.MaxStock = p.Stock
		return nil
	}

	s.lines = append(s.lines, &Line{
		ProductID: p.ID,
		Name:      p.Name,
		UnitPrice: p.Price,
		Quantity:  1,
		MaxStock:  p.Stock,
	})
	return nil
}

// UpdateQuantity changes a line's quantity by delta. A result of zero or less removes the
// line; a result above the known stock fails and leaves the line as it was.
// Unknown product ids are ignored.
func (s *Session) UpdateQuantity(productID string, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateSubmitting {
		return ErrCheckoutInProgress
	}

	i, line := s.find(productID)
	if line == nil {
		return nil
	}
	if delta > 0 && delta > line.MaxStock-line.Quantity {
		return stockError(productID, line.MaxStock)
	}
	if n := line.Quantity + delta; n <= 0 {
		s.removeAt(i)
	} else {
		line.Quantity = n
	}
	return nil
}

// RemoveItem deletes the product's line if present.
func (s *Session) RemoveItem(productID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateSubmitting {
		return ErrCheckoutInProgress
	}
	if i, line := s.find(productID); line != nil {
		s.removeAt(i)
	}
	return nil
}

// Clear empties the cart and resets discount, cash tendered and the attached customer.
// The payment method is kept as the register's last selection.
func (s *Session) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateSubmitting {
		return ErrCheckoutInProgress
	}
	s.reset()
	return nil
}

func (s *Session) reset() {
	s.lines = nil
	s.discount = decimal.Zero
	s.cashTendered = decimal.Zero
	s.customerID = ""
	s.notes = ""
}

// SetDiscount sets the flat discount applied before tax.
func (s *Session) SetDiscount(d decimal.Decimal) error {
	if d.IsNegative() {
		return ErrNegativeAmount
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateSubmitting {
		return ErrCheckoutInProgress
	}
	s.discount = d
	return nil
}

// SetPaymentMethod selects cash or card.
func (s *Session) SetPaymentMethod(m PaymentMethod) error {
	if !m.Valid() {
		return ErrInvalidPaymentMethod
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateSubmitting {
		return ErrCheckoutInProgress
	}
	s.paymentMethod = m
	return nil
}

// SetCashTendered records the cash offered by the customer.
func (s *Session) SetCashTendered(d decimal.Decimal) error {
	if d.IsNegative() {
		return ErrNegativeAmount
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateSubmitting {
		return ErrCheckoutInProgress
	}
	s.cashTendered = d
	return nil
}

// SetCustomer attaches a customer to the sale; empty detaches.
func (s *Session) SetCustomer(customerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateSubmitting {
		return ErrCheckoutInProgress
	}
	s.customerID = customerID
	return nil
}

// SetNotes attaches a free-text note to the sale.
func (s *Session) SetNotes(notes string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateSubmitting {
		return ErrCheckoutInProgress
	}
	s.notes = notes
	return nil
}

// SetStaffName sets the cashier recorded on the sale.
func (s *Session) SetStaffName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.staffName = name
}

// SetTaxRate replaces the tax rate used by Totals and Checkout.
func (s *Session) SetTaxRate(rate decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.taxRate = rate
}

// Lines returns a copy of the cart lines in insertion order.
func (s *Session) Lines() []Line {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyLines()
}

func (s *Session) copyLines() []Line {
	out := make([]Line, 0, len(s.lines))
	for _, l := range s.lines {
		out = append(out, *l)
	}
	return out
}

// ItemCount is the sum of all line quantities.
func (s *Session) ItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, l := range s.lines {
		n += l.Quantity
	}
	return n
}

// ComputeTotals recomputes the totals of the current cart at the given rate.
func (s *Session) ComputeTotals(taxRate decimal.Decimal) Totals {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ComputeTotals(s.copyLines(), s.discount, taxRate)
}

// Totals recomputes the totals at the session's tax rate.
func (s *Session) Totals() Totals {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ComputeTotals(s.copyLines(), s.discount, s.taxRate)
}

// ChangeDue is the change owed for the current cash tender, zero for card sales.
func (s *Session) ChangeDue() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.paymentMethod != PaymentCash {
		return decimal.Zero
	}
	totals := ComputeTotals(s.copyLines(), s.discount, s.taxRate)
	return ComputeChangeDue(s.cashTendered, totals.Total)
}

// State reports whether a checkout is in flight.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Checkout validates the cart, submits it and clears it on success.
// On any failure the cart is left exactly as it was before the call.
func (s *Session) Checkout(ctx context.Context) (*Result, error) {
	s.mu.Lock()
	if s.state == StateSubmitting {
		s.mu.Unlock()
		return nil, ErrCheckoutInProgress
	}
	req, err := s.buildRequest()
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.state = StateSubmitting
	s.mu.Unlock()

	res, err := s.submit(ctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateIdle
	if err != nil {
		return nil, err
	}
	if res == nil || !res.Success {
		subErr := &SubmissionError{}
		if res != nil {
			subErr.Code, subErr.Message = res.Code, res.Error
		}
		return res, subErr
	}
	s.reset()
	return res, nil
}

// submit hands req to the submitter. A panicking submitter returns the session
// to Idle before the panic continues.
func (s *Session) submit(ctx context.Context, req *Request) (*Result, error) {
	defer func() {
		if r := recover(); r != nil {
			s.mu.Lock()
			s.state = StateIdle
			s.mu.Unlock()
			panic(r)
		}
	}()
	return s.submitter.Submit(ctx, req)
}

// buildRequest runs the validating step. Caller holds the lock.
func (s *Session) buildRequest() (*Request, error) {
	if len(s.lines) == 0 {
		return nil, ErrEmptyCart
	}
	totals := ComputeTotals(s.copyLines(), s.discount, s.taxRate)

	req := &Request{
		Lines:         make([]RequestLine, 0, len(s.lines)),
		CustomerID:    s.customerID,
		PaymentMethod: s.paymentMethod,
		CashAmount:    decimal.Zero,
		CardAmount:    decimal.Zero,
		Discount:      s.discount,
		StaffName:     s.staffName,
		Notes:         s.notes,
	}
	switch s.paymentMethod {
	case PaymentCash:
		if s.cashTendered.LessThan(totals.Total) {
			return nil, ErrInsufficientFunds
		}
		req.CashAmount = s.cashTendered
	case PaymentCard:
		req.CardAmount = totals.Total
	default:
		return nil, ErrInvalidPaymentMethod
	}
	for _, l := range s.lines {
		req.Lines = append(req.Lines, RequestLine{
			ProductID: l.ProductID,
			Name:      l.Name,
			UnitPrice: l.UnitPrice,
			Quantity:  l.Quantity,
		})
	}
	return req, nil
}
