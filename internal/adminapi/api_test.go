package adminapi

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/velvetpos/velvetpos/config"
	"github.com/velvetpos/velvetpos/internal/app"
	"github.com/velvetpos/velvetpos/internal/checkout"
	"github.com/velvetpos/velvetpos/internal/webserver"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type testEnv struct {
	t     *testing.T
	e     *echo.Echo
	app   *app.Application
	token string
}

func setupTestServer(t *testing.T) *testEnv {
	t.Helper()
	cfg := *config.DefaultAppConfig
	cfg.System.Workdir = t.TempDir()
	cfg.System.Debug = false
	cfg.Database = config.DBConfig{Type: "sqlite", Name: filepath.Join(cfg.System.Workdir, "api.db")}
	cfg.Store.DemoMode = true

	db, err := app.OpenDatabase(cfg.Database, cfg.System.Workdir)
	require.NoError(t, err)
	a := app.NewApplication(&cfg)
	a.OverrideDB(db)
	require.NoError(t, a.Bootstrap())
	t.Cleanup(func() {
		a.Bus().WaitAsync()
		_ = a.Registers().Shutdown()
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	srv := webserver.Init(a)
	Init()
	env := &testEnv{t: t, e: srv.Echo(), app: a}
	env.token = env.login(app.SuperEmail, "velvetpos")
	return env
}

func (env *testEnv) request(method, path, token string, body interface{}, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	env.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(env.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, webserver.ApiPrefix+path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

func (env *testEnv) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	return env.request(method, path, env.token, body)
}

func (env *testEnv) login(email, password string) string {
	rec := env.request(http.MethodPost, "/auth/login", "", map[string]string{"email": email, "password": password})
	require.Equal(env.t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	decode(env.t, rec, &resp)
	require.NotEmpty(env.t, resp.Data.Token)
	return resp.Data.Token
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	var body webserver.ErrorBody
	decode(t, rec, &body)
	return body.Code
}

func TestHealthIsPublic(t *testing.T) {
	env := setupTestServer(t)
	rec := env.request(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)
}

func TestAuthentication(t *testing.T) {
	env := setupTestServer(t)

	rec := env.request(http.MethodGet, "/inventory", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "AUTH_REQUIRED", errorCode(t, rec))

	rec = env.request(http.MethodGet, "/inventory", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "INVALID_TOKEN", errorCode(t, rec))

	rec = env.request(http.MethodPost, "/auth/login", "", map[string]string{"email": app.SuperEmail, "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "INVALID_CREDENTIALS", errorCode(t, rec))

	rec = env.do(http.MethodPost, "/auth/verify", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var verify struct {
		Data struct {
			User struct {
				Role    string `json:"role"`
				StoreID string `json:"store_id"`
			} `json:"user"`
			StoreConfig struct {
				TaxRate decimal.Decimal `json:"tax_rate"`
			} `json:"store_config"`
		} `json:"data"`
	}
	decode(t, rec, &verify)
	assert.Equal(t, "owner", verify.Data.User.Role)
	assert.Equal(t, "default", verify.Data.User.StoreID)
	assert.Equal(t, "0.08", verify.Data.StoreConfig.TaxRate.String())
}

func TestStaffCannotManageInventory(t *testing.T) {
	env := setupTestServer(t)

	rec := env.do(http.MethodPost, "/auth/create-user", map[string]string{
		"email": "ava@velvet.test", "password": "secret1", "name": "Ava",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = env.do(http.MethodPost, "/auth/create-user", map[string]string{
		"email": "ava@velvet.test", "password": "secret1",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	staff := env.login("ava@velvet.test", "secret1")
	rec = env.request(http.MethodPost, "/inventory", staff, map[string]interface{}{
		"name": "Gloss", "sku": "GLS-001", "price": "9.99",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "INSUFFICIENT_PERMISSIONS", errorCode(t, rec))

	rec = env.request(http.MethodGet, "/inventory", staff, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(http.MethodGet, "/staff", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ava@velvet.test")
	assert.NotContains(t, rec.Body.String(), "password")
}

func TestInventoryCrud(t *testing.T) {
	env := setupTestServer(t)

	rec := env.do(http.MethodGet, "/inventory?category=Lipstick", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Data []struct {
			ID    string          `json:"id"`
			Price decimal.Decimal `json:"price"`
		} `json:"data"`
		Meta PageMeta `json:"meta"`
	}
	decode(t, rec, &list)
	assert.EqualValues(t, 2, list.Meta.Total)

	rec = env.do(http.MethodPost, "/inventory", map[string]interface{}{"name": "Gloss", "price": 9.99})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "MISSING_FIELDS", errorCode(t, rec))

	rec = env.do(http.MethodPost, "/inventory", map[string]interface{}{
		"name": "Gloss", "sku": "LIP-001", "price": 9.99,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(http.MethodPost, "/inventory", map[string]interface{}{
		"name": "Gloss", "sku": "GLS-001", "price": 9.99, "stock": 4, "category": "Lipstick",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var createdItem struct {
		Data struct {
			ID     string `json:"id"`
			Stock  int    `json:"stock"`
			Active bool   `json:"active"`
		} `json:"data"`
	}
	decode(t, rec, &createdItem)
	assert.True(t, createdItem.Data.Active)
	id := createdItem.Data.ID

	rec = env.do(http.MethodPut, "/inventory/"+id, map[string]interface{}{"stock": 12})
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &createdItem)
	assert.Equal(t, 12, createdItem.Data.Stock)

	rec = env.do(http.MethodGet, "/inventory?q=gloss", nil)
	decode(t, rec, &list)
	assert.EqualValues(t, 1, list.Meta.Total)

	rec = env.do(http.MethodDelete, "/inventory/"+id, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(http.MethodGet, "/inventory/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(http.MethodGet, "/inventory/export.xlsx", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")))
}

func TestTransactionsAndAnalytics(t *testing.T) {
	env := setupTestServer(t)

	rec := env.do(http.MethodPost, "/transactions", map[string]interface{}{
		"items":          []map[string]interface{}{{"id": "prod_6", "quantity": 11}},
		"payment_method": "card",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "INSUFFICIENT_STOCK", errorCode(t, rec))

	rec = env.do(http.MethodPost, "/transactions", map[string]interface{}{
		"items":          []map[string]interface{}{{"id": "prod_404", "quantity": 1}},
		"payment_method": "card",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "PRODUCT_NOT_FOUND", errorCode(t, rec))

	rec = env.do(http.MethodPost, "/transactions", map[string]interface{}{"items": []interface{}{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "EMPTY_TRANSACTION", errorCode(t, rec))

	rec = env.do(http.MethodPost, "/transactions", map[string]interface{}{
		"items":          []map[string]interface{}{{"id": "prod_1", "quantity": 2}, {"id": "prod_4", "quantity": 1}},
		"payment_method": "cash",
		"cash_amount":    "120",
		"customer_id":    "cust_1",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		Data struct {
			Success       bool            `json:"success"`
			ChangeDue     decimal.Decimal `json:"change_due"`
			TransactionID string          `json:"transaction_id"`
		} `json:"data"`
	}
	decode(t, rec, &created)
	assert.True(t, created.Data.Success)
	// 2 x 24.99 + 54.99 = 104.97, tax 8.40, total 113.37
	assert.Equal(t, "6.63", created.Data.ChangeDue.StringFixed(2))
	env.app.Bus().WaitAsync()

	rec = env.do(http.MethodGet, "/transactions?limit=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), created.Data.TransactionID)

	rec = env.do(http.MethodGet, "/transactions/"+created.Data.TransactionID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var tx struct {
		Data struct {
			Total     decimal.Decimal `json:"total"`
			TaxAmount decimal.Decimal `json:"tax_amount"`
		} `json:"data"`
	}
	decode(t, rec, &tx)
	assert.Equal(t, "113.37", tx.Data.Total.StringFixed(2))
	assert.Equal(t, "8.40", tx.Data.TaxAmount.StringFixed(2))

	rec = env.do(http.MethodGet, "/transactions/export.csv?days=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "id,date,time,staff"))

	rec = env.do(http.MethodGet, "/analytics/sales?days=7", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var sales struct {
		Data salesAnalytics `json:"data"`
	}
	decode(t, rec, &sales)
	assert.EqualValues(t, 1, sales.Data.TotalTransactions)
	assert.Equal(t, "113.37", sales.Data.TotalSales.StringFixed(2))
	assert.Equal(t, "113.37", sales.Data.AverageTransactionValue.StringFixed(2))

	rec = env.do(http.MethodGet, "/analytics/top-products?limit=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var top struct {
		Data struct {
			TopProducts []productSales `json:"top_products"`
		} `json:"data"`
	}
	decode(t, rec, &top)
	require.Len(t, top.Data.TopProducts, 1)
	assert.Equal(t, "prod_4", top.Data.TopProducts[0].ProductID)

	rec = env.do(http.MethodGet, "/customers/cust_1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var cust struct {
		Data struct {
			Points int64 `json:"points"`
		} `json:"data"`
	}
	decode(t, rec, &cust)
	assert.EqualValues(t, 245+113, cust.Data.Points)
}

func TestRegisterFlow(t *testing.T) {
	env := setupTestServer(t)

	rec := env.do(http.MethodPost, "/pos/registers", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	cookies := rec.Result().Cookies()
	var view struct {
		Data registerView `json:"data"`
	}
	decode(t, rec, &view)
	id := view.Data.ID
	base := "/pos/registers/" + id

	rec = env.request(http.MethodGet, "/pos/registers/current", env.token, nil, cookies...)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &view)
	assert.Equal(t, id, view.Data.ID)

	for i := 0; i < 2; i++ {
		rec = env.do(http.MethodPost, base+"/items", map[string]string{"product_id": "prod_1"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}
	decode(t, rec, &view)
	assert.Equal(t, 2, view.Data.ItemCount)
	assert.Equal(t, "53.98", view.Data.Totals.Total.StringFixed(2))

	rec = env.do(http.MethodPost, base+"/items", map[string]string{"product_id": "nope"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(http.MethodPost, base+"/checkout", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INSUFFICIENT_FUNDS", errorCode(t, rec))

	rec = env.do(http.MethodPatch, base+"/items/prod_1", map[string]int{"delta": -1})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(http.MethodPut, base+"/tender", map[string]interface{}{"cash_tendered": "30", "payment_method": "cash", "notes": " gift wrap "})
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &view)
	assert.Equal(t, "gift wrap", view.Data.Notes)
	assert.Equal(t, "26.99", view.Data.Totals.Total.StringFixed(2))
	assert.Equal(t, "3.01", view.Data.ChangeDue.StringFixed(2))

	rec = env.do(http.MethodPut, base+"/tender", map[string]interface{}{"payment_method": "voucher"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodPost, base+"/checkout", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var done struct {
		Data struct {
			Result struct {
				Success   bool            `json:"success"`
				ChangeDue decimal.Decimal `json:"change_due"`
			} `json:"result"`
			Register registerView `json:"register"`
		} `json:"data"`
	}
	decode(t, rec, &done)
	assert.True(t, done.Data.Result.Success)
	assert.Equal(t, "3.01", done.Data.Result.ChangeDue.StringFixed(2))
	assert.Zero(t, done.Data.Register.ItemCount)

	rec = env.do(http.MethodPost, base+"/checkout", nil)
	assert.Equal(t, "EMPTY_CART", errorCode(t, rec))

	rec = env.do(http.MethodDelete, base, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(http.MethodGet, base, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStoreConfigMerge(t *testing.T) {
	env := setupTestServer(t)

	rec := env.do(http.MethodPut, "/store/config", map[string]interface{}{"tax_rate": 0.1, "name": "Velvet Downtown"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(http.MethodGet, "/store/config", nil)
	var sc struct {
		Data app.StoreConfig `json:"data"`
	}
	decode(t, rec, &sc)
	assert.Equal(t, "Velvet Downtown", sc.Data.Name)
	assert.Equal(t, "0.1", sc.Data.TaxRate.String())
	assert.Equal(t, "USD", sc.Data.Currency)

	rec = env.do(http.MethodPut, "/store/config", map[string]interface{}{"favourite_color": "red"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "UNKNOWN_SETTING", errorCode(t, rec))
}

func TestCustomers(t *testing.T) {
	env := setupTestServer(t)

	rec := env.do(http.MethodPost, "/customers", map[string]string{"name": "Mia"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodPost, "/customers", map[string]string{"name": "Mia Park", "phone": "555-0199"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"loyalty_tier":"Bronze"`)

	rec = env.do(http.MethodPost, "/customers", map[string]string{"name": "Other", "phone": "555-0199"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(http.MethodGet, "/customers?search=mia", nil)
	var list struct {
		Meta PageMeta `json:"meta"`
	}
	decode(t, rec, &list)
	assert.EqualValues(t, 1, list.Meta.Total)

	rec = env.do(http.MethodGet, "/customers?search=555-010", nil)
	decode(t, rec, &list)
	assert.EqualValues(t, 3, list.Meta.Total)

	rec = env.do(http.MethodGet, "/categories", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Accessories")
}

func TestSystemEndpoints(t *testing.T) {
	env := setupTestServer(t)

	rec := env.do(http.MethodPut, "/store/config", map[string]interface{}{"theme_color": "#aa3366"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(http.MethodGet, "/system/oplogs?action=update_store_config", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var logs struct {
		Meta PageMeta `json:"meta"`
	}
	decode(t, rec, &logs)
	assert.EqualValues(t, 1, logs.Meta.Total)

	rec = env.do(http.MethodGet, "/system/db/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats struct {
		Data struct {
			Dialect string      `json:"dialect"`
			Tables  []tableStat `json:"tables"`
		} `json:"data"`
	}
	decode(t, rec, &stats)
	assert.Equal(t, "sqlite", stats.Data.Dialect)
	rows := map[string]int64{}
	for _, s := range stats.Data.Tables {
		rows[s.Table] = s.Rows
	}
	assert.EqualValues(t, 6, rows["pos_product"])
	assert.EqualValues(t, 3, rows["pos_customer"])

	rec = env.do(http.MethodGet, "/system/jobs", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(http.MethodPost, "/system/jobs/daily-report/run", map[string]string{"date": "not a date"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = env.do(http.MethodPost, "/system/jobs/daily-report/run", map[string]string{"date": "2026-03-14"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "2026-03-14")
}

func TestRejectionStatusUsesCode(t *testing.T) {
	cases := []struct {
		code       string
		wantStatus int
		wantCode   string
	}{
		{checkout.RejectInsufficientStock, http.StatusConflict, "INSUFFICIENT_STOCK"},
		{checkout.RejectProductNotFound, http.StatusNotFound, "PRODUCT_NOT_FOUND"},
		{checkout.RejectInsufficientFunds, http.StatusBadRequest, "INSUFFICIENT_FUNDS"},
		{checkout.RejectEmpty, http.StatusBadRequest, "EMPTY_TRANSACTION"},
		{"", http.StatusBadRequest, "TRANSACTION_REJECTED"},
	}
	for _, tc := range cases {
		status, code := rejectionStatus(tc.code)
		assert.Equal(t, tc.wantStatus, status, tc.code)
		assert.Equal(t, tc.wantCode, code, tc.code)
	}
}
