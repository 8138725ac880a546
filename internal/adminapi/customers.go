package adminapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/velvetpos/velvetpos/internal/domain"
	"github.com/velvetpos/velvetpos/internal/webserver"
	"github.com/velvetpos/velvetpos/pkg/common"
)

func registerCustomerRoutes() {
	webserver.ApiGET("/customers", listCustomers)
	webserver.ApiGET("/customers/:id", getCustomer)
	webserver.ApiPOST("/customers", createCustomer)
	webserver.ApiPUT("/customers/:id", updateCustomer)
}

func listCustomers(c echo.Context) error {
	page, pageSize := parsePagination(c)

	base := GetDB(c).Model(&domain.Customer{}).Where("store_id = ?", storeID(c))
	if search := strings.TrimSpace(c.QueryParam("search")); search != "" {
		base = base.Where(likeClause(base, "name")+" OR phone LIKE ?", likeValue(base, search), "%"+search+"%")
	}

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query customers", err.Error())
	}

	var customers []domain.Customer
	if err := base.Order("name").Offset((page - 1) * pageSize).Limit(pageSize).Find(&customers).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query customers", err.Error())
	}
	return paged(c, customers, total, page, pageSize)
}

func getCustomer(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid customer ID", nil)
	}
	var cust domain.Customer
	if err := GetDB(c).Where("id = ? AND store_id = ?", id, storeID(c)).First(&cust).Error; isNotFound(err) {
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Customer not found", nil)
	} else if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query customer", err.Error())
	}
	return ok(c, cust)
}

type customerPayload struct {
	Name        string `json:"name" validate:"omitempty,max=200"`
	Email       string `json:"email" validate:"omitempty,email"`
	Phone       string `json:"phone" validate:"required,max=64"`
	Points      int64  `json:"points" validate:"min=0"`
	LoyaltyTier string `json:"loyalty_tier" validate:"omitempty,max=32"`
	Notes       string `json:"notes" validate:"omitempty,max=2000"`
}

func phoneTaken(c echo.Context, phone, exceptID string) bool {
	var count int64
	GetDB(c).Model(&domain.Customer{}).
		Where("store_id = ? AND phone = ? AND id <> ?", storeID(c), phone, exceptID).
		Count(&count)
	return count > 0
}

func createCustomer(c echo.Context) error {
	var payload customerPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse customer parameters", nil)
	}
	payload.Phone = strings.TrimSpace(payload.Phone)
	if err := c.Validate(&payload); err != nil {
		return handleValidationError(c, err)
	}
	// ensure phone uniqueness within the store
	if phoneTaken(c, payload.Phone, "") {
		return fail(c, http.StatusConflict, "DUPLICATE_CUSTOMER", "Customer with this phone already exists", nil)
	}
	tier := strings.TrimSpace(payload.LoyaltyTier)
	if tier == "" {
		tier = domain.DefaultLoyaltyTier
	}

	now := time.Now()
	cust := domain.Customer{
		ID:             fmt.Sprintf("cust_%d", common.UUIDint64()),
		StoreID:        storeID(c),
		Name:           strings.TrimSpace(payload.Name),
		Email:          strings.TrimSpace(payload.Email),
		Phone:          payload.Phone,
		Points:         payload.Points,
		LoyaltyTier:    tier,
		Notes:          payload.Notes,
		TotalPurchases: decimal.Zero,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := GetDB(c).Create(&cust).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "CREATION_FAILED", "Failed to create customer", err.Error())
	}
	return created(c, cust)
}

type customerUpdatePayload struct {
	Name        *string `json:"name" validate:"omitempty,max=200"`
	Email       *string `json:"email" validate:"omitempty,email"`
	Phone       *string `json:"phone" validate:"omitempty,min=1,max=64"`
	LoyaltyTier *string `json:"loyalty_tier" validate:"omitempty,max=32"`
	Notes       *string `json:"notes" validate:"omitempty,max=2000"`
}

func updateCustomer(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid customer ID", nil)
	}
	var cust domain.Customer
	if err := GetDB(c).Where("id = ? AND store_id = ?", id, storeID(c)).First(&cust).Error; isNotFound(err) {
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Customer not found", nil)
	} else if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query customer", err.Error())
	}

	var payload customerUpdatePayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse customer parameters", nil)
	}
	if err := c.Validate(&payload); err != nil {
		return handleValidationError(c, err)
	}

	if payload.Phone != nil {
		phone := strings.TrimSpace(*payload.Phone)
		if phoneTaken(c, phone, cust.ID) {
			return fail(c, http.StatusConflict, "DUPLICATE_CUSTOMER", "Customer with this phone already exists", nil)
		}
		cust.Phone = phone
	}
	if payload.Name != nil {
		cust.Name = strings.TrimSpace(*payload.Name)
	}
	if payload.Email != nil {
		cust.Email = strings.TrimSpace(*payload.Email)
	}
	if payload.LoyaltyTier != nil {
		cust.LoyaltyTier = strings.TrimSpace(*payload.LoyaltyTier)
	}
	if payload.Notes != nil {
		cust.Notes = *payload.Notes
	}
	cust.UpdatedAt = time.Now()

	// points and total purchases are owned by the sales pipeline
	if err := GetDB(c).Model(&domain.Customer{}).
		Where("id = ? AND store_id = ?", cust.ID, cust.StoreID).
		Updates(map[string]interface{}{
			"name":         cust.Name,
			"email":        cust.Email,
			"phone":        cust.Phone,
			"loyalty_tier": cust.LoyaltyTier,
			"notes":        cust.Notes,
			"updated_at":   cust.UpdatedAt,
		}).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "UPDATE_FAILED", "Failed to update customer", err.Error())
	}
	return ok(c, cust)
}
