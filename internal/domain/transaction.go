package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionItem is one sold line, frozen at the time of sale.
type TransactionItem struct {
	ProductID string          `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

// Transaction is a completed sale.
type Transaction struct {
	ID            string            `gorm:"primaryKey;size:64" json:"id"`
	StoreID       string            `gorm:"index;size:64" json:"store_id"`
	Timestamp     time.Time         `gorm:"index" json:"timestamp"`
	Date          string            `gorm:"index;size:10" json:"date"`
	Time          string            `gorm:"size:8" json:"time"`
	StaffID       string            `gorm:"size:64" json:"staff_id"`
	StaffName     string            `json:"staff_name"`
	CustomerID    string            `gorm:"index;size:64" json:"customer_id"`
	Items         []TransactionItem `gorm:"serializer:json" json:"items"`
	Subtotal      decimal.Decimal   `gorm:"type:decimal(14,2)" json:"subtotal"`
	TaxRate       decimal.Decimal   `gorm:"type:decimal(6,4)" json:"tax_rate"`
	TaxAmount     decimal.Decimal   `gorm:"type:decimal(14,2)" json:"tax_amount"`
	Discount      decimal.Decimal   `gorm:"type:decimal(14,2)" json:"discount"`
	Total         decimal.Decimal   `gorm:"type:decimal(14,2)" json:"total"`
	PaymentMethod string            `gorm:"size:16" json:"payment_method"`
	CashAmount    decimal.Decimal   `gorm:"type:decimal(14,2)" json:"cash_amount"`
	CardAmount    decimal.Decimal   `gorm:"type:decimal(14,2)" json:"card_amount"`
	ChangeDue     decimal.Decimal   `gorm:"type:decimal(14,2)" json:"change_due"`
	Notes         string            `json:"notes"`
}

// TableName Specify table name
func (Transaction) TableName() string {
	return "pos_transaction"
}

// ItemCount is the number of units sold.
func (t *Transaction) ItemCount() int {
	n := 0
	for _, it := range t.Items {
		n += it.Quantity
	}
	return n
}

// DailySummary accumulates sales per store and calendar day.
type DailySummary struct {
	StoreID          string          `gorm:"primaryKey;size:64" json:"store_id"`
	Date             string          `gorm:"primaryKey;size:10" json:"date"`
	TransactionCount int64           `json:"transaction_count"`
	TotalSales       decimal.Decimal `gorm:"type:decimal(14,2)" json:"total_sales"`
	ItemsSold        int64           `json:"items_sold"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// TableName Specify table name
func (DailySummary) TableName() string {
	return "daily_summaries"
}
