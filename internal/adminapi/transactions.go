package adminapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/labstack/echo/v4"
	"github.com/velvetpos/velvetpos/internal/checkout"
	"github.com/velvetpos/velvetpos/internal/domain"
	"github.com/velvetpos/velvetpos/internal/webserver"
)

func registerTransactionRoutes() {
	webserver.ApiGET("/transactions", listTransactions)
	webserver.ApiGET("/transactions/export.csv", exportTransactions, webserver.RequireAdmin)
	webserver.ApiGET("/transactions/:id", getTransaction)
	webserver.ApiPOST("/transactions", createTransaction)
}

func listTransactions(c echo.Context) error {
	limit := parseLimit(c, 100, 1000)
	db := GetDB(c).Where("store_id = ?", storeID(c))
	if c.QueryParam("from") != "" || c.QueryParam("to") != "" {
		from, to, err := parseDateRange(c, 30)
		if err != nil {
			return fail(c, http.StatusBadRequest, "INVALID_DATE", err.Error(), nil)
		}
		db = db.Where("date >= ? AND date <= ?", from, to)
	}
	if customer := strings.TrimSpace(c.QueryParam("customer_id")); customer != "" {
		db = db.Where("customer_id = ?", customer)
	}

	var rows []domain.Transaction
	if err := db.Order("timestamp DESC").Limit(limit).Find(&rows).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "FETCH_FAILED", "Failed to query transactions", err.Error())
	}
	return ok(c, rows)
}

func getTransaction(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid transaction ID", nil)
	}
	var tx domain.Transaction
	if err := GetDB(c).Where("id = ? AND store_id = ?", id, storeID(c)).First(&tx).Error; isNotFound(err) {
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Transaction not found", nil)
	} else if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query transaction", err.Error())
	}
	return ok(c, tx)
}

// rejectionStatus maps a submission rejection code to an HTTP status and error code.
func rejectionStatus(code string) (int, string) {
	switch code {
	case "":
		return http.StatusBadRequest, "TRANSACTION_REJECTED"
	case checkout.RejectInsufficientStock:
		return http.StatusConflict, code
	case checkout.RejectProductNotFound:
		return http.StatusNotFound, code
	default:
		return http.StatusBadRequest, code
	}
}

func submissionFailed(c echo.Context, res *checkout.Result) error {
	status, code := rejectionStatus(res.Code)
	return fail(c, status, code, res.Error, res)
}

func createTransaction(c echo.Context) error {
	var req checkout.Request
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse transaction", err.Error())
	}
	res, err := GetAppContext(c).Sales().Submit(c.Request().Context(), currentScope(c), &req)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "CREATION_FAILED", "Failed to record transaction", err.Error())
	}
	if !res.Success {
		return submissionFailed(c, res)
	}
	return created(c, res)
}

type transactionCSVRow struct {
	ID            string `csv:"id"`
	Date          string `csv:"date"`
	Time          string `csv:"time"`
	StaffName     string `csv:"staff"`
	CustomerID    string `csv:"customer_id"`
	Items         int    `csv:"items"`
	Subtotal      string `csv:"subtotal"`
	Discount      string `csv:"discount"`
	TaxAmount     string `csv:"tax"`
	Total         string `csv:"total"`
	PaymentMethod string `csv:"payment_method"`
	CashAmount    string `csv:"cash_amount"`
	ChangeDue     string `csv:"change_due"`
}

func exportTransactions(c echo.Context) error {
	from, to, err := parseDateRange(c, 30)
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_DATE", err.Error(), nil)
	}
	var txs []domain.Transaction
	if err := GetDB(c).
		Where("store_id = ? AND date >= ? AND date <= ?", storeID(c), from, to).
		Order("timestamp").Find(&txs).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "FETCH_FAILED", "Failed to query transactions", err.Error())
	}

	rows := make([]*transactionCSVRow, 0, len(txs))
	for i := range txs {
		tx := &txs[i]
		rows = append(rows, &transactionCSVRow{
			ID:            tx.ID,
			Date:          tx.Date,
			Time:          tx.Time,
			StaffName:     tx.StaffName,
			CustomerID:    tx.CustomerID,
			Items:         tx.ItemCount(),
			Subtotal:      tx.Subtotal.StringFixed(2),
			Discount:      tx.Discount.StringFixed(2),
			TaxAmount:     tx.TaxAmount.StringFixed(2),
			Total:         tx.Total.StringFixed(2),
			PaymentMethod: tx.PaymentMethod,
			CashAmount:    tx.CashAmount.StringFixed(2),
			ChangeDue:     tx.ChangeDue.StringFixed(2),
		})
	}

	filename := fmt.Sprintf("transactions-%s-%s.csv", from, to)
	c.Response().Header().Set(echo.HeaderContentType, "text/csv; charset=utf-8")
	c.Response().Header().Set(echo.HeaderContentDisposition, "attachment; filename="+filename)
	c.Response().Header().Set("X-Generated-At", time.Now().Format(time.RFC3339))
	c.Response().WriteHeader(http.StatusOK)
	return gocsv.Marshal(rows, c.Response())
}
