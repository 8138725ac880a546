package adminapi

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/velvetpos/velvetpos/internal/webserver"
)

func registerHealthRoutes() {
	webserver.ApiGET("/health", getHealth)
}

func getHealth(c echo.Context) error {
	appCtx := GetAppContext(c)
	status := "healthy"
	database := "connected"
	if sqlDB, err := appCtx.DB().DB(); err != nil || sqlDB.PingContext(c.Request().Context()) != nil {
		status, database = "degraded", "unavailable"
	}
	return ok(c, map[string]interface{}{
		"status":    status,
		"database":  database,
		"demo_mode": appCtx.Config().Store.DemoMode,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}
