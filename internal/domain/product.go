package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is an inventory item of a store.
type Product struct {
	ID          string          `gorm:"primaryKey;size:64" json:"id"`
	StoreID     string          `gorm:"primaryKey;size:64" json:"store_id"`
	SKU         string          `gorm:"index;size:64" json:"sku"`
	Barcode     string          `gorm:"index;size:64" json:"barcode"`
	Name        string          `gorm:"index" json:"name"`
	Category    string          `gorm:"index;size:128" json:"category"`
	Price       decimal.Decimal `gorm:"type:decimal(12,2)" json:"price"`
	Stock       int             `json:"stock"`
	Active      bool            `json:"active"`
	ImageURL    string          `gorm:"size:1024" json:"image_url"`
	Description string          `json:"description"`
	CreatedBy   string          `json:"created_by"`
	UpdatedBy   string          `json:"updated_by"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// TableName Specify table name
func (Product) TableName() string {
	return "pos_product"
}

// Category groups products for browsing.
type Category struct {
	ID        string `gorm:"primaryKey;size:64" json:"id"`
	StoreID   string `gorm:"primaryKey;size:64" json:"store_id"`
	Name      string `json:"name"`
	SortOrder int    `json:"sort_order"`
}

// TableName Specify table name
func (Category) TableName() string {
	return "pos_category"
}
