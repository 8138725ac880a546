package adminapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/velvetpos/velvetpos/internal/checkout"
	"github.com/velvetpos/velvetpos/internal/domain"
	"github.com/velvetpos/velvetpos/internal/pos"
	"github.com/velvetpos/velvetpos/internal/webserver"
	"go.uber.org/zap"
)

func registerRegisterRoutes() {
	webserver.ApiPOST("/pos/registers", openRegister)
	webserver.ApiGET("/pos/registers", listRegisters)
	webserver.ApiGET("/pos/registers/current", getCurrentRegister)
	webserver.ApiGET("/pos/registers/:id", getRegister)
	webserver.ApiPOST("/pos/registers/:id/items", addRegisterItem)
	webserver.ApiPATCH("/pos/registers/:id/items/:product_id", updateRegisterItem)
	webserver.ApiDELETE("/pos/registers/:id/items/:product_id", removeRegisterItem)
	webserver.ApiDELETE("/pos/registers/:id/items", clearRegister)
	webserver.ApiPUT("/pos/registers/:id/tender", updateRegisterTender)
	webserver.ApiPOST("/pos/registers/:id/checkout", checkoutRegister)
	webserver.ApiDELETE("/pos/registers/:id", closeRegister)
}

type registerView struct {
	ID            string                 `json:"id"`
	StoreID       string                 `json:"store_id"`
	StaffName     string                 `json:"staff_name"`
	OpenedAt      time.Time              `json:"opened_at"`
	State         string                 `json:"state"`
	Lines         []checkout.Line        `json:"lines"`
	ItemCount     int                    `json:"item_count"`
	Totals        checkout.Totals        `json:"totals"`
	PaymentMethod checkout.PaymentMethod `json:"payment_method"`
	CashTendered  decimal.Decimal        `json:"cash_tendered"`
	ChangeDue     decimal.Decimal        `json:"change_due"`
	CustomerID    string                 `json:"customer_id,omitempty"`
	Notes         string                 `json:"notes,omitempty"`
	TaxRate       decimal.Decimal        `json:"tax_rate"`
}

func newRegisterView(reg *pos.Register) registerView {
	snap := reg.Session.Snapshot()
	lines := snap.Lines
	if lines == nil {
		lines = []checkout.Line{}
	}
	return registerView{
		ID:            reg.ID,
		StoreID:       reg.StoreID,
		StaffName:     reg.StaffName,
		OpenedAt:      reg.OpenedAt,
		State:         reg.Session.State().String(),
		Lines:         lines,
		ItemCount:     reg.Session.ItemCount(),
		Totals:        reg.Session.Totals(),
		PaymentMethod: snap.PaymentMethod,
		CashTendered:  snap.CashTendered,
		ChangeDue:     reg.Session.ChangeDue(),
		CustomerID:    snap.CustomerID,
		Notes:         snap.Notes,
		TaxRate:       snap.TaxRate,
	}
}

// cartFailed maps engine and registry errors to responses.
func cartFailed(c echo.Context, err error) error {
	var subErr *checkout.SubmissionError
	switch {
	case errors.Is(err, pos.ErrRegisterNotFound):
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Register not found", nil)
	case errors.Is(err, checkout.ErrInsufficientStock):
		return fail(c, http.StatusConflict, "INSUFFICIENT_STOCK", err.Error(), nil)
	case errors.Is(err, checkout.ErrCheckoutInProgress):
		return fail(c, http.StatusConflict, "CHECKOUT_IN_PROGRESS", err.Error(), nil)
	case errors.Is(err, checkout.ErrEmptyCart):
		return fail(c, http.StatusBadRequest, "EMPTY_CART", err.Error(), nil)
	case errors.Is(err, checkout.ErrInsufficientFunds):
		return fail(c, http.StatusBadRequest, "INSUFFICIENT_FUNDS", err.Error(), nil)
	case errors.Is(err, checkout.ErrInvalidPaymentMethod), errors.Is(err, checkout.ErrNegativeAmount):
		return fail(c, http.StatusBadRequest, "INVALID_TENDER", err.Error(), nil)
	case errors.As(err, &subErr):
		status, code := rejectionStatus(subErr.Code)
		return fail(c, status, code, subErr.Message, nil)
	default:
		zap.L().Error("register operation failed", zap.Error(err))
		return fail(c, http.StatusInternalServerError, "REGISTER_FAILED", "Register operation failed", err.Error())
	}
}

// mutate runs fn on the register's session with the store's current tax rate.
func mutate(c echo.Context, fn func(*checkout.Session) error) error {
	appCtx := GetAppContext(c)
	store := storeID(c)
	rate := appCtx.ConfigMgr().TaxRate(store)
	reg, err := appCtx.Registers().Mutate(store, c.Param("id"), func(s *checkout.Session) error {
		s.SetTaxRate(rate)
		return fn(s)
	})
	if err != nil {
		return cartFailed(c, err)
	}
	return ok(c, newRegisterView(reg))
}

func openRegister(c echo.Context) error {
	reg, err := GetAppContext(c).Registers().Open(currentScope(c))
	if err != nil {
		return cartFailed(c, err)
	}
	if err := webserver.RememberRegister(c, reg.ID); err != nil {
		zap.L().Warn("remember register failed", zap.Error(err))
	}
	return created(c, newRegisterView(reg))
}

func listRegisters(c echo.Context) error {
	regs := GetAppContext(c).Registers().List(storeID(c))
	views := make([]registerView, 0, len(regs))
	for _, reg := range regs {
		views = append(views, newRegisterView(reg))
	}
	return ok(c, views)
}

func getCurrentRegister(c echo.Context) error {
	id := webserver.RememberedRegister(c)
	if id == "" {
		return fail(c, http.StatusNotFound, "NOT_FOUND", "No register open in this session", nil)
	}
	reg, err := GetAppContext(c).Registers().Get(storeID(c), id)
	if err != nil {
		return cartFailed(c, err)
	}
	return ok(c, newRegisterView(reg))
}

func getRegister(c echo.Context) error {
	reg, err := GetAppContext(c).Registers().Get(storeID(c), c.Param("id"))
	if err != nil {
		return cartFailed(c, err)
	}
	return ok(c, newRegisterView(reg))
}

type addItemPayload struct {
	ProductID string `json:"product_id" validate:"required"`
}

func addRegisterItem(c echo.Context) error {
	var payload addItemPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse item", err.Error())
	}
	payload.ProductID = strings.TrimSpace(payload.ProductID)
	if err := c.Validate(&payload); err != nil {
		return handleValidationError(c, err)
	}

	var p domain.Product
	err := GetDB(c).Where("id = ? AND store_id = ? AND active = ?", payload.ProductID, storeID(c), true).First(&p).Error
	if isNotFound(err) {
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Product not found", nil)
	}
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query product", err.Error())
	}
	return mutate(c, func(s *checkout.Session) error {
		return s.AddItem(checkout.Product{
			ID:       p.ID,
			Name:     p.Name,
			Price:    p.Price,
			Stock:    p.Stock,
			Category: p.Category,
		})
	})
}

type updateItemPayload struct {
	Delta int `json:"delta" validate:"required"`
}

func updateRegisterItem(c echo.Context) error {
	var payload updateItemPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse quantity change", err.Error())
	}
	if err := c.Validate(&payload); err != nil {
		return handleValidationError(c, err)
	}
	productID := c.Param("product_id")
	return mutate(c, func(s *checkout.Session) error {
		return s.UpdateQuantity(productID, payload.Delta)
	})
}

func removeRegisterItem(c echo.Context) error {
	productID := c.Param("product_id")
	return mutate(c, func(s *checkout.Session) error {
		return s.RemoveItem(productID)
	})
}

func clearRegister(c echo.Context) error {
	return mutate(c, func(s *checkout.Session) error {
		return s.Clear()
	})
}

type tenderPayload struct {
	PaymentMethod *string          `json:"payment_method"`
	CashTendered  *decimal.Decimal `json:"cash_tendered"`
	Discount      *decimal.Decimal `json:"discount"`
	CustomerID    *string          `json:"customer_id"`
	Notes         *string          `json:"notes" validate:"omitempty,max=2000"`
}

func updateRegisterTender(c echo.Context) error {
	var payload tenderPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse tender", err.Error())
	}
	if err := c.Validate(&payload); err != nil {
		return handleValidationError(c, err)
	}
	if payload.PaymentMethod != nil && !checkout.PaymentMethod(*payload.PaymentMethod).Valid() {
		return cartFailed(c, checkout.ErrInvalidPaymentMethod)
	}
	if (payload.CashTendered != nil && payload.CashTendered.IsNegative()) ||
		(payload.Discount != nil && payload.Discount.IsNegative()) {
		return cartFailed(c, checkout.ErrNegativeAmount)
	}
	if payload.CustomerID != nil && *payload.CustomerID != "" {
		var count int64
		GetDB(c).Model(&domain.Customer{}).
			Where("id = ? AND store_id = ?", *payload.CustomerID, storeID(c)).
			Count(&count)
		if count == 0 {
			return fail(c, http.StatusNotFound, "NOT_FOUND", "Customer not found", nil)
		}
	}
	return mutate(c, func(s *checkout.Session) error {
		if payload.PaymentMethod != nil {
			if err := s.SetPaymentMethod(checkout.PaymentMethod(*payload.PaymentMethod)); err != nil {
				return err
			}
		}
		if payload.CashTendered != nil {
			if err := s.SetCashTendered(*payload.CashTendered); err != nil {
				return err
			}
		}
		if payload.Discount != nil {
			if err := s.SetDiscount(*payload.Discount); err != nil {
				return err
			}
		}
		if payload.CustomerID != nil {
			if err := s.SetCustomer(*payload.CustomerID); err != nil {
				return err
			}
		}
		if payload.Notes != nil {
			return s.SetNotes(strings.TrimSpace(*payload.Notes))
		}
		return nil
	})
}

func checkoutRegister(c echo.Context) error {
	reg, res, err := GetAppContext(c).Registers().Checkout(c.Request().Context(), storeID(c), c.Param("id"))
	if err != nil {
		return cartFailed(c, err)
	}
	return ok(c, map[string]interface{}{
		"result":   res,
		"register": newRegisterView(reg),
	})
}

func closeRegister(c echo.Context) error {
	id := c.Param("id")
	if err := GetAppContext(c).Registers().Close(storeID(c), id); err != nil {
		return cartFailed(c, err)
	}
	if webserver.RememberedRegister(c) == id {
		_ = webserver.RememberRegister(c, "")
	}
	return ok(c, map[string]interface{}{"id": id, "closed": true})
}
