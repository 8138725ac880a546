package adminapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/velvetpos/velvetpos/internal/app"
	"github.com/velvetpos/velvetpos/internal/domain"
	"github.com/velvetpos/velvetpos/internal/sales"
	"github.com/velvetpos/velvetpos/internal/webserver"
	"github.com/velvetpos/velvetpos/pkg/common"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Init registers every API route on the current admin server.
func Init() {
	registerHealthRoutes()
	registerAuthRoutes()
	registerInventoryRoutes()
	registerCategoryRoutes()
	registerCustomerRoutes()
	registerTransactionRoutes()
	registerAnalyticsRoutes()
	registerStoreRoutes()
	registerRegisterRoutes()
	registerDemoRoutes()
	registerSystemRoutes()
}

// Response wraps successful payloads.
type Response struct {
	Data interface{} `json:"data"`
	Meta *PageMeta   `json:"meta,omitempty"`
}

type PageMeta struct {
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
}

func GetAppContext(c echo.Context) app.AppContext {
	return c.Get(webserver.AppContextKey).(app.AppContext)
}

func GetDB(c echo.Context) *gorm.DB {
	return GetAppContext(c).DB().WithContext(c.Request().Context())
}

func ok(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusOK, Response{Data: data})
}

func created(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusCreated, Response{Data: data})
}

func fail(c echo.Context, status int, code, message string, details interface{}) error {
	return c.JSON(status, webserver.ErrorBody{Error: message, Code: code, Details: details})
}

func paged(c echo.Context, data interface{}, total int64, page, pageSize int) error {
	return c.JSON(http.StatusOK, Response{
		Data: data,
		Meta: &PageMeta{Total: total, Page: page, PageSize: pageSize},
	})
}

// parsePagination reads page and perPage (or pageSize) with sane bounds.
func parsePagination(c echo.Context) (int, int) {
	page, err := strconv.Atoi(c.QueryParam("page"))
	if err != nil || page < 1 {
		page = 1
	}
	sizeStr := c.QueryParam("perPage")
	if sizeStr == "" {
		sizeStr = c.QueryParam("pageSize")
	}
	pageSize, err := strconv.Atoi(sizeStr)
	if err != nil || pageSize < 1 {
		pageSize = 50
	}
	if pageSize > 500 {
		pageSize = 500
	}
	return page, pageSize
}

// parseIDParam returns a trimmed, non-empty path id.
func parseIDParam(c echo.Context, name string) (string, error) {
	id := strings.TrimSpace(c.Param(name))
	if id == "" {
		return "", fmt.Errorf("missing %s", name)
	}
	return id, nil
}

func parseLimit(c echo.Context, def, max int) int {
	limit, err := strconv.Atoi(c.QueryParam("limit"))
	if err != nil || limit < 1 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}

func handleValidationError(c echo.Context, err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, strings.ToLower(fe.Field()))
		}
		return fail(c, http.StatusBadRequest, "MISSING_FIELDS",
			"Invalid or missing fields: "+strings.Join(fields, ", "), fields)
	}
	return fail(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
}

// currentScope is the store and cashier of the authenticated caller.
func currentScope(c echo.Context) sales.Scope {
	u := webserver.CurrentUser(c)
	if u == nil {
		return sales.Scope{}
	}
	return sales.Scope{StoreID: u.StoreID, StaffID: u.UID, StaffName: u.Name}
}

func storeID(c echo.Context) string {
	return currentScope(c).StoreID
}

func operatorName(c echo.Context) string {
	if u := webserver.CurrentUser(c); u != nil {
		if u.Email != "" {
			return u.Email
		}
		return u.Name
	}
	return "anonymous"
}

// logOperation records an administrative change in the operator log.
func logOperation(c echo.Context, action, desc string) {
	entry := domain.SysOprLog{
		ID:        common.UUIDint64(),
		StoreID:   storeID(c),
		OprName:   operatorName(c),
		OprIp:     c.RealIP(),
		OptAction: action,
		OptDesc:   desc,
		OptTime:   time.Now(),
	}
	if err := GetDB(c).Create(&entry).Error; err != nil {
		zap.L().Warn("write operator log failed", zap.String("action", action), zap.Error(err))
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// likeClause builds a case-insensitive LIKE for the active dialect.
func likeClause(db *gorm.DB, column string) string {
	if strings.EqualFold(db.Dialector.Name(), "postgres") {
		return column + " ILIKE ?"
	}
	return "LOWER(" + column + ") LIKE ?"
}

func likeValue(db *gorm.DB, q string) string {
	if strings.EqualFold(db.Dialector.Name(), "postgres") {
		return "%" + q + "%"
	}
	return "%" + strings.ToLower(q) + "%"
}
