package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Customer is a loyalty member of a store
type Customer struct {
	ID             string          `gorm:"primaryKey;size:64" json:"id" form:"id"`
	StoreID        string          `gorm:"primaryKey;size:64" json:"store_id" form:"store_id"`
	Name           string          `gorm:"index" json:"name" form:"name"`
	Email          string          `json:"email" form:"email"`
	Phone          string          `gorm:"index;size:64" json:"phone" form:"phone"`
	Points         int64           `json:"points" form:"points"`
	LoyaltyTier    string          `gorm:"size:32" json:"loyalty_tier" form:"loyalty_tier"`
	Notes          string          `json:"notes" form:"notes"`
	TotalPurchases decimal.Decimal `gorm:"type:decimal(14,2)" json:"total_purchases"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// TableName Specify table name
func (Customer) TableName() string {
	return "pos_customer"
}

const DefaultLoyaltyTier = "Bronze"
