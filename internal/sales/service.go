// Package sales persists completed sales: it reprices the cart against the
// catalog, decrements stock and records the transaction atomically, then
// announces the sale to asynchronous subscribers.
package sales

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/velvetpos/velvetpos/internal/checkout"
	"github.com/velvetpos/velvetpos/internal/domain"
	"github.com/velvetpos/velvetpos/pkg/common"
	"github.com/velvetpos/velvetpos/pkg/metrics"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// TopicTransactionCreated is published with the committed *domain.Transaction.
const TopicTransactionCreated = "transaction:created"

// DefaultTaxRate applies when a store has no tax_rate setting.
var DefaultTaxRate = decimal.RequireFromString("0.08")

// TaxRates resolves the tax rate of a store.
type TaxRates interface {
	TaxRate(storeID string) decimal.Decimal
}

// TaxRateFunc adapts a function to TaxRates.
type TaxRateFunc func(storeID string) decimal.Decimal

func (f TaxRateFunc) TaxRate(storeID string) decimal.Decimal { return f(storeID) }

// Scope identifies who rings up a sale.
type Scope struct {
	StoreID   string
	StaffID   string
	StaffName string
}

type Service struct {
	db    *gorm.DB
	bus   EventBus.Bus
	rates TaxRates
	now   func() time.Time
}

func NewService(db *gorm.DB, bus EventBus.Bus, rates TaxRates) *Service {
	if rates == nil {
		rates = TaxRateFunc(func(string) decimal.Decimal { return DefaultTaxRate })
	}
	return &Service{db: db, bus: bus, rates: rates, now: time.Now}
}

// Bus returns the event bus sales are published on.
func (s *Service) Bus() EventBus.Bus {
	return s.bus
}

// rejection is a business failure reported back in Result.
type rejection struct {
	code string
	msg  string
}

func (r *rejection) Error() string { return r.msg }

func reject(code, format string, args ...interface{}) error {
	return &rejection{code: code, msg: fmt.Sprintf(format, args...)}
}

// Submit records a sale. Rejected sales leave stock untouched and are
// reported with Success false; a non-nil error means the store is unavailable.
func (s *Service) Submit(ctx context.Context, scope Scope, req *checkout.Request) (*checkout.Result, error) {
	if req == nil || len(req.Lines) == 0 {
		return &checkout.Result{Error: "No items in transaction", Code: checkout.RejectEmpty}, nil
	}
	method := req.PaymentMethod
	if method == "" {
		method = checkout.PaymentCash
	}
	if !method.Valid() {
		return &checkout.Result{
			Error: fmt.Sprintf("Unsupported payment method: %s", method),
			Code:  checkout.RejectInvalidPayment,
		}, nil
	}

	rate := s.rates.TaxRate(scope.StoreID)
	var tx *domain.Transaction
	err := s.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		var err error
		tx, err = s.record(db, scope, method, rate, req)
		return err
	})
	var rej *rejection
	if errors.As(err, &rej) {
		zap.L().Info("sale rejected",
			zap.String("store_id", scope.StoreID),
			zap.String("code", rej.code),
			zap.String("reason", rej.msg))
		_ = metrics.AddSample(metrics.MetricsCheckoutRejected, scope.StoreID, 1)
		return &checkout.Result{Error: rej.msg, Code: rej.code}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "record transaction")
	}

	zap.L().Info("sale recorded",
		zap.String("store_id", scope.StoreID),
		zap.String("transaction_id", tx.ID),
		zap.String("total", tx.Total.StringFixed(checkout.MoneyPlaces)))
	if s.bus != nil {
		s.bus.Publish(TopicTransactionCreated, tx)
	}
	return &checkout.Result{
		Success:       true,
		ChangeDue:     tx.ChangeDue,
		TransactionID: tx.ID,
	}, nil
}

func (s *Service) record(db *gorm.DB, scope Scope, method checkout.PaymentMethod, rate decimal.Decimal, req *checkout.Request) (*domain.Transaction, error) {
	lines, err := s.reprice(db, scope.StoreID, req.Lines)
	if err != nil {
		return nil, err
	}

	totals := checkout.ComputeTotals(lines, req.Discount, rate)

	cash, card := decimal.Zero, decimal.Zero
	switch method {
	case checkout.PaymentCash:
		cash = req.CashAmount
		if cash.LessThan(totals.Total) {
			return nil, reject(checkout.RejectInsufficientFunds, "Cash amount %s is below total %s",
				cash.StringFixed(checkout.MoneyPlaces), totals.Total.StringFixed(checkout.MoneyPlaces))
		}
	case checkout.PaymentCard:
		card = totals.Total
	}

	for _, l := range lines {
		res := db.Model(&domain.Product{}).
			Where("id = ? AND store_id = ? AND stock >= ?", l.ProductID, scope.StoreID, l.Quantity).
			UpdateColumn("stock", gorm.Expr("stock - ?", l.Quantity))
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			return nil, reject(checkout.RejectInsufficientStock, "Insufficient stock for %s. Available: %d", l.Name, l.MaxStock)
		}
	}

	now := s.now()
	staffName := scope.StaffName
	if req.StaffName != "" {
		staffName = req.StaffName
	}
	items := make([]domain.TransactionItem, 0, len(lines))
	for _, l := range lines {
		items = append(items, domain.TransactionItem{
			ProductID: l.ProductID,
			Name:      l.Name,
			Price:     l.UnitPrice,
			Quantity:  l.Quantity,
		})
	}
	tx := &domain.Transaction{
		ID:            common.TransactionID(now),
		StoreID:       scope.StoreID,
		Timestamp:     now,
		Date:          now.Format("2006-01-02"),
		Time:          now.Format("15:04:05"),
		StaffID:       scope.StaffID,
		StaffName:     staffName,
		CustomerID:    req.CustomerID,
		Items:         items,
		Subtotal:      totals.Subtotal,
		TaxRate:       rate,
		TaxAmount:     totals.Tax,
		Discount:      totals.Discount,
		Total:         totals.Total,
		PaymentMethod: string(method),
		CashAmount:    cash,
		CardAmount:    card,
		ChangeDue:     checkout.ComputeChangeDue(cash, totals.Total),
		Notes:         strings.TrimSpace(req.Notes),
	}
	if err := db.Create(tx).Error; err != nil {
		return nil, err
	}
	return tx, nil
}

// reprice merges duplicate lines and takes name and price from the catalog.
func (s *Service) reprice(db *gorm.DB, storeID string, in []checkout.RequestLine) ([]checkout.Line, error) {
	var lines []checkout.Line
	index := make(map[string]int)
	for _, rl := range in {
		if rl.Quantity <= 0 {
			return nil, reject(checkout.RejectInvalidQuantity, "Invalid quantity %d for %s", rl.Quantity, rl.ProductID)
		}
		if i, ok := index[rl.ProductID]; ok {
			lines[i].Quantity += rl.Quantity
			continue
		}
		var p domain.Product
		err := db.Where("id = ? AND store_id = ?", rl.ProductID, storeID).First(&p).Error
		if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && !p.Active) {
			return nil, reject(checkout.RejectProductNotFound, "Product %s not found", rl.ProductID)
		}
		if err != nil {
			return nil, err
		}
		index[rl.ProductID] = len(lines)
		lines = append(lines, checkout.Line{
			ProductID: p.ID,
			Name:      p.Name,
			UnitPrice: p.Price,
			Quantity:  rl.Quantity,
			MaxStock:  p.Stock,
		})
	}
	return lines, nil
}

// Bind adapts the service to the engine's Submitter for one scope.
func (s *Service) Bind(scope Scope) checkout.Submitter {
	return checkout.SubmitterFunc(func(ctx context.Context, req *checkout.Request) (*checkout.Result, error) {
		return s.Submit(ctx, scope, req)
	})
}
