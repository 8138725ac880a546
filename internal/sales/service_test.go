package sales

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/velvetpos/velvetpos/internal/checkout"
	"github.com/velvetpos/velvetpos/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "sales.db") + "?_pragma=busy_timeout(5000)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(domain.Tables...))

	products := []domain.Product{
		{ID: "prod_1", StoreID: "s1", Name: "Matte Ruby Lipstick", SKU: "LIP-001", Price: dec("24.99"), Stock: 50, Active: true},
		{ID: "prod_6", StoreID: "s1", Name: "Professional Brush Set", SKU: "ACC-001", Price: dec("10.00"), Stock: 2, Active: true},
		{ID: "prod_9", StoreID: "s1", Name: "Retired", Price: dec("5.00"), Stock: 10, Active: false},
		{ID: "prod_1", StoreID: "s2", Name: "Other store lipstick", Price: dec("1.00"), Stock: 1, Active: true},
	}
	require.NoError(t, db.Create(&products).Error)
	require.NoError(t, db.Create(&domain.Customer{ID: "cust_1", StoreID: "s1", Name: "Emma", Phone: "555-0101",
		LoyaltyTier: domain.DefaultLoyaltyTier, TotalPurchases: decimal.Zero}).Error)
	return db
}

func newService(db *gorm.DB) *Service {
	bus := EventBus.New()
	svc := NewService(db, bus, nil)
	svc.now = func() time.Time { return time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC) }
	return svc
}

func stockOf(t *testing.T, db *gorm.DB, id string) int {
	var p domain.Product
	require.NoError(t, db.Where("id = ? AND store_id = ?", id, "s1").First(&p).Error)
	return p.Stock
}

var scope = Scope{StoreID: "s1", StaffID: "42", StaffName: "Ava"}

func TestSubmitCashSale(t *testing.T) {
	db := setupDB(t)
	svc := newService(db)

	res, err := svc.Submit(context.Background(), scope, &checkout.Request{
		Lines:         []checkout.RequestLine{{ProductID: "prod_6", Quantity: 2}},
		PaymentMethod: checkout.PaymentCash,
		CashAmount:    dec("25.00"),
	})
	require.NoError(t, err)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "3.40", res.ChangeDue.StringFixed(2))
	assert.Regexp(t, `^tx_20260314_093000_[0-9a-f]{8}$`, res.TransactionID)
	assert.Equal(t, 0, stockOf(t, db, "prod_6"))

	var tx domain.Transaction
	require.NoError(t, db.First(&tx, "id = ?", res.TransactionID).Error)
	assert.Equal(t, "20.00", tx.Subtotal.StringFixed(2))
	assert.Equal(t, "1.60", tx.TaxAmount.StringFixed(2))
	assert.Equal(t, "21.60", tx.Total.StringFixed(2))
	assert.Equal(t, "Ava", tx.StaffName)
	assert.Equal(t, "2026-03-14", tx.Date)
	require.Len(t, tx.Items, 1)
	assert.Equal(t, "Professional Brush Set", tx.Items[0].Name)
}

func TestSubmitUsesCatalogPrice(t *testing.T) {
	db := setupDB(t)
	svc := newService(db)

	res, err := svc.Submit(context.Background(), scope, &checkout.Request{
		Lines:         []checkout.RequestLine{{ProductID: "prod_1", UnitPrice: dec("0.01"), Quantity: 1}},
		PaymentMethod: checkout.PaymentCard,
	})
	require.NoError(t, err)
	require.True(t, res.Success)

	var tx domain.Transaction
	require.NoError(t, db.First(&tx, "id = ?", res.TransactionID).Error)
	assert.Equal(t, "24.99", tx.Items[0].Price.StringFixed(2))
	assert.Equal(t, "26.99", tx.Total.StringFixed(2))
	assert.True(t, tx.CardAmount.Equal(tx.Total))
	assert.True(t, tx.ChangeDue.IsZero())
}

func TestSubmitRejections(t *testing.T) {
	cases := []struct {
		name string
		req  *checkout.Request
		msg  string
		code string
	}{
		{"empty", &checkout.Request{}, "No items in transaction", checkout.RejectEmpty},
		{"unknown product", &checkout.Request{
			Lines: []checkout.RequestLine{{ProductID: "nope", Quantity: 1}}, PaymentMethod: checkout.PaymentCard,
		}, "Product nope not found", checkout.RejectProductNotFound},
		{"inactive product", &checkout.Request{
			Lines: []checkout.RequestLine{{ProductID: "prod_9", Quantity: 1}}, PaymentMethod: checkout.PaymentCard,
		}, "Product prod_9 not found", checkout.RejectProductNotFound},
		{"oversell", &checkout.Request{
			Lines: []checkout.RequestLine{{ProductID: "prod_6", Quantity: 3}}, PaymentMethod: checkout.PaymentCard,
		}, "Insufficient stock for Professional Brush Set. Available: 2", checkout.RejectInsufficientStock},
		{"short cash", &checkout.Request{
			Lines:         []checkout.RequestLine{{ProductID: "prod_6", Quantity: 1}},
			PaymentMethod: checkout.PaymentCash,
			CashAmount:    dec("10.00"),
		}, "Cash amount 10.00 is below total 10.80", checkout.RejectInsufficientFunds},
		{"bad method", &checkout.Request{
			Lines: []checkout.RequestLine{{ProductID: "prod_6", Quantity: 1}}, PaymentMethod: "voucher",
		}, "Unsupported payment method: voucher", checkout.RejectInvalidPayment},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			db := setupDB(t)
			svc := newService(db)
			res, err := svc.Submit(context.Background(), scope, tc.req)
			require.NoError(t, err)
			assert.False(t, res.Success)
			assert.Equal(t, tc.msg, res.Error)
			assert.Equal(t, tc.code, res.Code)
			assert.Equal(t, 2, stockOf(t, db, "prod_6"))

			var n int64
			db.Model(&domain.Transaction{}).Count(&n)
			assert.Zero(t, n)
		})
	}
}

func TestSubmitRollsBackPartialStock(t *testing.T) {
	db := setupDB(t)
	svc := newService(db)

	res, err := svc.Submit(context.Background(), scope, &checkout.Request{
		Lines: []checkout.RequestLine{
			{ProductID: "prod_1", Quantity: 1},
			{ProductID: "prod_6", Quantity: 5},
		},
		PaymentMethod: checkout.PaymentCard,
	})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, 50, stockOf(t, db, "prod_1"))
}

func TestSubmitMergesDuplicateLines(t *testing.T) {
	db := setupDB(t)
	svc := newService(db)

	res, err := svc.Submit(context.Background(), scope, &checkout.Request{
		Lines: []checkout.RequestLine{
			{ProductID: "prod_6", Quantity: 1},
			{ProductID: "prod_6", Quantity: 2},
		},
		PaymentMethod: checkout.PaymentCard,
	})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, 2, stockOf(t, db, "prod_6"))
}

func TestConcurrentSubmitNeverOversells(t *testing.T) {
	db := setupDB(t)
	svc := newService(db)

	var wg sync.WaitGroup
	results := make([]*checkout.Result, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := svc.Submit(context.Background(), scope, &checkout.Request{
				Lines:         []checkout.RequestLine{{ProductID: "prod_6", Quantity: 1}},
				PaymentMethod: checkout.PaymentCard,
			})
			if assert.NoError(t, err) {
				results[i] = res
			}
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, r := range results {
		if r != nil && r.Success {
			ok++
		}
	}
	assert.Equal(t, 2, ok)
	assert.Equal(t, 0, stockOf(t, db, "prod_6"))
}

func TestSubscribersUpdateSummaryAndLoyalty(t *testing.T) {
	db := setupDB(t)
	svc := newService(db)
	require.NoError(t, Subscribe(svc.Bus(), db))

	for i := 0; i < 2; i++ {
		res, err := svc.Submit(context.Background(), scope, &checkout.Request{
			Lines:         []checkout.RequestLine{{ProductID: "prod_6", Quantity: 1}},
			PaymentMethod: checkout.PaymentCash,
			CashAmount:    dec("20"),
			CustomerID:    "cust_1",
		})
		require.NoError(t, err)
		require.True(t, res.Success)
		svc.Bus().WaitAsync()
	}

	var summary domain.DailySummary
	require.NoError(t, db.First(&summary, "store_id = ? AND date = ?", "s1", "2026-03-14").Error)
	assert.EqualValues(t, 2, summary.TransactionCount)
	assert.EqualValues(t, 2, summary.ItemsSold)
	assert.Equal(t, "21.60", summary.TotalSales.StringFixed(2))

	var cust domain.Customer
	require.NoError(t, db.First(&cust, "id = ?", "cust_1").Error)
	assert.EqualValues(t, 20, cust.Points)
	assert.Equal(t, "21.60", cust.TotalPurchases.StringFixed(2))
}

func TestBindSubmitsThroughSession(t *testing.T) {
	db := setupDB(t)
	svc := newService(db)

	s := checkout.NewSession(svc.Bind(scope))
	require.NoError(t, s.AddItem(checkout.Product{ID: "prod_6", Name: "Brush", Price: dec("10.00"), Stock: 2}))
	require.NoError(t, s.SetPaymentMethod(checkout.PaymentCard))

	res, err := s.Checkout(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Zero(t, s.ItemCount())
	assert.Equal(t, 1, stockOf(t, db, "prod_6"))
}

func TestSubmitStoresTrimmedNotes(t *testing.T) {
	db := setupDB(t)
	svc := newService(db)

	res, err := svc.Submit(context.Background(), scope, &checkout.Request{
		Lines:         []checkout.RequestLine{{ProductID: "prod_1", Quantity: 1}},
		PaymentMethod: checkout.PaymentCard,
		Notes:         "  gift wrap, ribbon  ",
	})
	require.NoError(t, err)
	require.True(t, res.Success, res.Error)

	var tx domain.Transaction
	require.NoError(t, db.First(&tx, "id = ?", res.TransactionID).Error)
	assert.Equal(t, "gift wrap, ribbon", tx.Notes)
}
