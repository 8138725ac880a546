package adminapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/velvetpos/velvetpos/internal/domain"
	"github.com/velvetpos/velvetpos/internal/webserver"
)

func registerCategoryRoutes() {
	webserver.ApiGET("/categories", listCategories)
}

func listCategories(c echo.Context) error {
	var categories []domain.Category
	err := GetDB(c).Where("store_id = ?", storeID(c)).Order("sort_order, name").Find(&categories).Error
	if err != nil {
		return fail(c, http.StatusInternalServerError, "FETCH_FAILED", "Failed to query categories", err.Error())
	}
	return ok(c, categories)
}
