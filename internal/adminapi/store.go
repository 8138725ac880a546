package adminapi

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/velvetpos/velvetpos/internal/app"
	"github.com/velvetpos/velvetpos/internal/webserver"
	"go.uber.org/zap"
)

func registerStoreRoutes() {
	webserver.ApiGET("/store/config", getStoreConfig)
	webserver.ApiPUT("/store/config", updateStoreConfig, webserver.RequireAdmin)
	webserver.ApiGET("/store/settings/schemas", listSettingSchemas, webserver.RequireAdmin)
}

func getStoreConfig(c echo.Context) error {
	sc, err := GetAppContext(c).ConfigMgr().StoreConfig(storeID(c))
	if err != nil {
		return fail(c, http.StatusInternalServerError, "FETCH_FAILED", "Failed to load store config", err.Error())
	}
	return ok(c, sc)
}

// updateStoreConfig merges the given keys into the store settings.
func updateStoreConfig(c echo.Context) error {
	var values map[string]interface{}
	if err := c.Bind(&values); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse config", err.Error())
	}
	if len(values) == 0 {
		return fail(c, http.StatusBadRequest, "MISSING_FIELDS", "No settings given", nil)
	}
	appCtx := GetAppContext(c)
	if err := appCtx.SaveSettings(storeID(c), "store", values); err != nil {
		if errors.Is(err, app.ErrUnknownSetting) {
			return fail(c, http.StatusBadRequest, "UNKNOWN_SETTING", err.Error(), nil)
		}
		return fail(c, http.StatusBadRequest, "INVALID_SETTING", err.Error(), nil)
	}
	zap.L().Info("store config updated", zap.String("store_id", storeID(c)), zap.String("by", operatorName(c)))
	logOperation(c, "update_store_config", "updated store settings")

	sc, err := appCtx.ConfigMgr().StoreConfig(storeID(c))
	if err != nil {
		return fail(c, http.StatusInternalServerError, "FETCH_FAILED", "Failed to load store config", err.Error())
	}
	return ok(c, sc)
}

func listSettingSchemas(c echo.Context) error {
	return ok(c, GetAppContext(c).ConfigMgr().Schemas())
}
