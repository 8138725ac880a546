package adminapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/velvetpos/velvetpos/internal/webserver"
)

func registerDemoRoutes() {
	webserver.ApiPOST("/demo/initialize", initializeDemo, webserver.RequireAdmin)
}

func initializeDemo(c echo.Context) error {
	if err := GetAppContext(c).SeedDemo(storeID(c), operatorName(c)); err != nil {
		return fail(c, http.StatusInternalServerError, "INIT_FAILED", "Failed to initialize demo data", err.Error())
	}
	logOperation(c, "initialize_demo", "loaded demo catalog")
	return ok(c, map[string]interface{}{"initialized": true})
}
