package checkout

import (
	"github.com/pkg/errors"
)

var (
	ErrInsufficientStock    = errors.New("insufficient stock")
	ErrEmptyCart            = errors.New("cart is empty")
	ErrInsufficientFunds    = errors.New("cash tendered is below total")
	ErrCheckoutInProgress   = errors.New("checkout already in progress")
	ErrInvalidPaymentMethod = errors.New("invalid payment method")
	ErrNegativeAmount       = errors.New("amount must not be negative")
)

// SubmissionError is returned by Checkout when the submitter rejected the sale.
type SubmissionError struct {
	Code    string
	Message string
}

func (e *SubmissionError) Error() string {
	if e.Message == "" {
		return "transaction rejected"
	}
	return "transaction rejected: " + e.Message
}

func stockError(productID string, available int) error {
	return errors.Wrapf(ErrInsufficientStock, "product %s: available %d", productID, available)
}
