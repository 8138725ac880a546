package adminapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/360EntSecGroup-Skylar/excelize"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/velvetpos/velvetpos/internal/domain"
	"github.com/velvetpos/velvetpos/internal/webserver"
	"github.com/velvetpos/velvetpos/pkg/common"
)

type inventoryPayload struct {
	Name        string           `json:"name" validate:"required,min=1,max=200"`
	SKU         string           `json:"sku" validate:"required,min=1,max=64"`
	Price       *decimal.Decimal `json:"price" validate:"required"`
	Barcode     string           `json:"barcode" validate:"omitempty,max=64"`
	Category    string           `json:"category" validate:"omitempty,max=128"`
	Stock       int              `json:"stock" validate:"min=0"`
	Active      *bool            `json:"active"`
	ImageURL    string           `json:"image_url" validate:"omitempty,max=1024"`
	Description string           `json:"description" validate:"omitempty,max=2000"`
}

type inventoryUpdatePayload struct {
	Name        *string          `json:"name" validate:"omitempty,min=1,max=200"`
	SKU         *string          `json:"sku" validate:"omitempty,min=1,max=64"`
	Price       *decimal.Decimal `json:"price"`
	Barcode     *string          `json:"barcode" validate:"omitempty,max=64"`
	Category    *string          `json:"category" validate:"omitempty,max=128"`
	Stock       *int             `json:"stock" validate:"omitempty,min=0"`
	Active      *bool            `json:"active"`
	ImageURL    *string          `json:"image_url" validate:"omitempty,max=1024"`
	Description *string          `json:"description" validate:"omitempty,max=2000"`
}

// registerInventoryRoutes registers product CRUD endpoints
func registerInventoryRoutes() {
	webserver.ApiGET("/inventory", listInventory)
	webserver.ApiGET("/inventory/export.xlsx", exportInventory, webserver.RequireAdmin)
	webserver.ApiGET("/inventory/:id", getInventoryItem)
	webserver.ApiPOST("/inventory", createInventoryItem, webserver.RequireAdmin)
	webserver.ApiPUT("/inventory/:id", updateInventoryItem, webserver.RequireAdmin)
	webserver.ApiDELETE("/inventory/:id", deleteInventoryItem, webserver.RequireAdmin)
}

func listInventory(c echo.Context) error {
	page, pageSize := parsePagination(c)

	sortField := strings.TrimSpace(c.QueryParam("sort"))
	order := strings.ToUpper(strings.TrimSpace(c.QueryParam("order")))
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}
	// whitelist allowed sort columns to avoid SQL injection
	allowed := map[string]string{
		"name":       "name",
		"sku":        "sku",
		"price":      "price",
		"stock":      "stock",
		"category":   "category",
		"updated_at": "updated_at",
	}
	sortCol, found := allowed[sortField]
	if !found {
		sortCol = "name"
	}

	db := GetDB(c).Model(&domain.Product{}).Where("store_id = ?", storeID(c))
	if q := strings.TrimSpace(c.QueryParam("q")); q != "" {
		like := likeValue(db, q)
		db = db.Where(likeClause(db, "name")+" OR "+likeClause(db, "sku")+" OR barcode = ?", like, like, q)
	}
	if category := strings.TrimSpace(c.QueryParam("category")); category != "" {
		db = db.Where("category = ?", category)
	}
	if c.QueryParam("active") == "true" {
		db = db.Where("active = ?", true)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query inventory", err.Error())
	}

	var rows []domain.Product
	if err := db.Order(sortCol + " " + order).Offset((page - 1) * pageSize).Limit(pageSize).Find(&rows).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query inventory", err.Error())
	}
	return paged(c, rows, total, page, pageSize)
}

func findProduct(c echo.Context) (*domain.Product, error) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return nil, fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid product ID", nil)
	}
	var p domain.Product
	err = GetDB(c).Where("id = ? AND store_id = ?", id, storeID(c)).First(&p).Error
	if isNotFound(err) {
		return nil, fail(c, http.StatusNotFound, "NOT_FOUND", "Product not found", nil)
	}
	if err != nil {
		return nil, fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query product", err.Error())
	}
	return &p, nil
}

func getInventoryItem(c echo.Context) error {
	p, err := findProduct(c)
	if p == nil {
		return err
	}
	return ok(c, p)
}

func skuTaken(c echo.Context, sku, exceptID string) bool {
	var count int64
	GetDB(c).Model(&domain.Product{}).
		Where("store_id = ? AND sku = ? AND id <> ?", storeID(c), sku, exceptID).
		Count(&count)
	return count > 0
}

func createInventoryItem(c echo.Context) error {
	var payload inventoryPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse product", err.Error())
	}
	payload.Name = strings.TrimSpace(payload.Name)
	payload.SKU = strings.TrimSpace(payload.SKU)
	if err := c.Validate(&payload); err != nil {
		return handleValidationError(c, err)
	}
	if payload.Price.IsNegative() {
		return fail(c, http.StatusBadRequest, "INVALID_PRICE", "Price must not be negative", nil)
	}
	if skuTaken(c, payload.SKU, "") {
		return fail(c, http.StatusConflict, "DUPLICATE_SKU", "A product with this SKU already exists", nil)
	}

	active := true
	if payload.Active != nil {
		active = *payload.Active
	}
	now := time.Now()
	p := domain.Product{
		ID:          fmt.Sprintf("prod_%d", common.UUIDint64()),
		StoreID:     storeID(c),
		SKU:         payload.SKU,
		Barcode:     strings.TrimSpace(payload.Barcode),
		Name:        payload.Name,
		Category:    strings.TrimSpace(payload.Category),
		Price:       payload.Price.Round(2),
		Stock:       payload.Stock,
		Active:      active,
		ImageURL:    strings.TrimSpace(payload.ImageURL),
		Description: payload.Description,
		CreatedBy:   operatorName(c),
		UpdatedBy:   operatorName(c),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := GetDB(c).Create(&p).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "CREATION_FAILED", "Failed to create product", err.Error())
	}
	logOperation(c, "create_product", p.ID+" "+p.Name)
	return created(c, p)
}

func updateInventoryItem(c echo.Context) error {
	p, err := findProduct(c)
	if p == nil {
		return err
	}

	var payload inventoryUpdatePayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse product", err.Error())
	}
	if err := c.Validate(&payload); err != nil {
		return handleValidationError(c, err)
	}

	if payload.Name != nil {
		p.Name = strings.TrimSpace(*payload.Name)
	}
	if payload.SKU != nil {
		sku := strings.TrimSpace(*payload.SKU)
		if skuTaken(c, sku, p.ID) {
			return fail(c, http.StatusConflict, "DUPLICATE_SKU", "A product with this SKU already exists", nil)
		}
		p.SKU = sku
	}
	if payload.Price != nil {
		if payload.Price.IsNegative() {
			return fail(c, http.StatusBadRequest, "INVALID_PRICE", "Price must not be negative", nil)
		}
		p.Price = payload.Price.Round(2)
	}
	if payload.Barcode != nil {
		p.Barcode = strings.TrimSpace(*payload.Barcode)
	}
	if payload.Category != nil {
		p.Category = strings.TrimSpace(*payload.Category)
	}
	if payload.Stock != nil {
		p.Stock = *payload.Stock
	}
	if payload.Active != nil {
		p.Active = *payload.Active
	}
	if payload.ImageURL != nil {
		p.ImageURL = strings.TrimSpace(*payload.ImageURL)
	}
	if payload.Description != nil {
		p.Description = *payload.Description
	}
	p.UpdatedBy = operatorName(c)
	p.UpdatedAt = time.Now()

	if err := GetDB(c).Save(p).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "UPDATE_FAILED", "Failed to update product", err.Error())
	}
	logOperation(c, "update_product", p.ID+" "+p.Name)
	return ok(c, p)
}

func deleteInventoryItem(c echo.Context) error {
	p, err := findProduct(c)
	if p == nil {
		return err
	}
	if err := GetDB(c).Where("id = ? AND store_id = ?", p.ID, p.StoreID).Delete(&domain.Product{}).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DELETE_FAILED", "Failed to delete product", err.Error())
	}
	logOperation(c, "delete_product", p.ID+" "+p.Name)
	return ok(c, map[string]interface{}{"id": p.ID})
}

var inventoryColumns = []struct {
	col, title string
	value      func(p *domain.Product) interface{}
}{
	{"A", "ID", func(p *domain.Product) interface{} { return p.ID }},
	{"B", "SKU", func(p *domain.Product) interface{} { return p.SKU }},
	{"C", "Barcode", func(p *domain.Product) interface{} { return p.Barcode }},
	{"D", "Name", func(p *domain.Product) interface{} { return p.Name }},
	{"E", "Category", func(p *domain.Product) interface{} { return p.Category }},
	{"F", "Price", func(p *domain.Product) interface{} { return p.Price.StringFixed(2) }},
	{"G", "Stock", func(p *domain.Product) interface{} { return p.Stock }},
	{"H", "Active", func(p *domain.Product) interface{} { return p.Active }},
}

func exportInventory(c echo.Context) error {
	var rows []domain.Product
	if err := GetDB(c).Where("store_id = ?", storeID(c)).Order("name").Find(&rows).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query inventory", err.Error())
	}

	const sheet = "Sheet1"
	f := excelize.NewFile()
	for _, col := range inventoryColumns {
		f.SetCellValue(sheet, col.col+"1", col.title)
	}
	for i := range rows {
		row := fmt.Sprint(i + 2)
		for _, col := range inventoryColumns {
			f.SetCellValue(sheet, col.col+row, col.value(&rows[i]))
		}
	}

	filename := fmt.Sprintf("inventory-%s.xlsx", time.Now().Format("20060102"))
	c.Response().Header().Set(echo.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Response().Header().Set(echo.HeaderContentDisposition, "attachment; filename="+filename)
	c.Response().WriteHeader(http.StatusOK)
	return f.Write(c.Response())
}
