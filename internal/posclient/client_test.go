package posclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/velvetpos/velvetpos/internal/checkout"
	"github.com/velvetpos/velvetpos/internal/domain"
)

const testToken = "tok-123"

func stubServer(t *testing.T) *httptest.Server {
	e := echo.New()
	authed := func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().Header.Get(echo.HeaderAuthorization) != "Bearer "+testToken {
				return c.JSON(http.StatusUnauthorized, errorBody{Error: "Access token required", Code: "AUTH_REQUIRED"})
			}
			return next(c)
		}
	}
	e.POST("/api/v1/auth/login", func(c echo.Context) error {
		var body map[string]string
		_ = c.Bind(&body)
		if body["password"] != "velvetpos" {
			return c.JSON(http.StatusUnauthorized, errorBody{Error: "Invalid email or password", Code: "INVALID_CREDENTIALS"})
		}
		return c.JSON(http.StatusOK, echo.Map{"data": echo.Map{"token": testToken}})
	})
	e.GET("/api/v1/inventory/:id", func(c echo.Context) error {
		switch c.Param("id") {
		case "prod_1":
			return c.JSON(http.StatusOK, echo.Map{"data": domain.Product{
				ID: "prod_1", Name: "Matte Ruby Lipstick", Price: decimal.RequireFromString("24.99"), Stock: 50, Active: true,
			}})
		case "lip?rose#2":
			return c.JSON(http.StatusOK, echo.Map{"data": domain.Product{
				ID: "lip?rose#2", Name: "Rose Lip Tint", Price: decimal.RequireFromString("12.00"), Stock: 3, Active: true,
			}})
		case "prod_9":
			return c.JSON(http.StatusOK, echo.Map{"data": domain.Product{ID: "prod_9", Active: false}})
		}
		return c.JSON(http.StatusNotFound, errorBody{Error: "Product not found", Code: "NOT_FOUND"})
	}, authed)
	e.GET("/api/v1/store/config", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"data": echo.Map{"name": "Velvet", "tax_rate": "0.08"}})
	}, authed)
	e.POST("/api/v1/transactions", func(c echo.Context) error {
		var req checkout.Request
		if err := c.Bind(&req); err != nil {
			return err
		}
		if req.Lines[0].Quantity > 50 {
			return c.JSON(http.StatusConflict, errorBody{
				Error: "Insufficient stock for Matte Ruby Lipstick. Available: 50", Code: "INSUFFICIENT_STOCK",
			})
		}
		if req.Lines[0].Quantity == 13 {
			return c.JSON(http.StatusInternalServerError, errorBody{Error: "Failed to process transaction", Code: "TRANSACTION_FAILED"})
		}
		return c.JSON(http.StatusCreated, echo.Map{"data": checkout.Result{
			Success:       true,
			ChangeDue:     req.CashAmount.Sub(decimal.RequireFromString("21.60")),
			TransactionID: "tx_20260314_093000_ab12cd34e",
		}})
	}, authed)
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return srv
}

func TestLogin(t *testing.T) {
	srv := stubServer(t)
	c := New(srv.URL, "")

	err := c.Login(context.Background(), "admin@velvetpos.local", "nope")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "INVALID_CREDENTIALS", apiErr.Code)

	require.NoError(t, c.Login(context.Background(), "admin@velvetpos.local", "velvetpos"))
	assert.Equal(t, testToken, c.Token())
}

func TestProduct(t *testing.T) {
	srv := stubServer(t)
	c := New(srv.URL+"/", testToken)

	p, err := c.Product(context.Background(), "prod_1")
	require.NoError(t, err)
	assert.Equal(t, "Matte Ruby Lipstick", p.Name)
	assert.Equal(t, "24.99", p.Price.StringFixed(2))
	assert.Equal(t, 50, p.Stock)

	p, err = c.Product(context.Background(), "lip?rose#2")
	require.NoError(t, err)
	assert.Equal(t, "Rose Lip Tint", p.Name)

	_, err = c.Product(context.Background(), "prod_9")
	assert.ErrorIs(t, err, ErrProductNotFound)
	_, err = c.Product(context.Background(), "prod_404")
	assert.ErrorIs(t, err, ErrProductNotFound)

	_, err = New(srv.URL, "").Product(context.Background(), "prod_1")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "AUTH_REQUIRED", apiErr.Code)
}

func TestSubmitThroughSession(t *testing.T) {
	srv := stubServer(t)
	c := New(srv.URL, testToken)
	ctx := context.Background()

	rate, err := c.TaxRate(ctx)
	require.NoError(t, err)
	assert.Equal(t, "0.08", rate.String())
	p, err := c.Product(ctx, "prod_1")
	require.NoError(t, err)
	s := checkout.NewSession(c, checkout.WithTaxRate(rate))
	require.NoError(t, s.AddItem(p))
	require.NoError(t, s.SetCashTendered(decimal.NewFromInt(30)))

	res, err := s.Checkout(ctx)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "8.40", res.ChangeDue.StringFixed(2))
	assert.Empty(t, s.Lines())
}

func TestSubmitRejection(t *testing.T) {
	srv := stubServer(t)
	c := New(srv.URL, testToken)

	res, err := c.Submit(context.Background(), &checkout.Request{
		Lines:         []checkout.RequestLine{{ProductID: "prod_1", Quantity: 51}},
		PaymentMethod: checkout.PaymentCard,
	})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "Insufficient stock")
	assert.Equal(t, checkout.RejectInsufficientStock, res.Code)

	_, err = c.Submit(context.Background(), &checkout.Request{
		Lines:         []checkout.RequestLine{{ProductID: "prod_1", Quantity: 13}},
		PaymentMethod: checkout.PaymentCard,
	})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
}
