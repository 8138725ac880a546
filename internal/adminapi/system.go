package adminapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/labstack/echo/v4"
	"github.com/velvetpos/velvetpos/internal/domain"
	"github.com/velvetpos/velvetpos/internal/webserver"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

func registerSystemRoutes() {
	webserver.ApiGET("/system/jobs", listJobs, webserver.RequireAdmin)
	webserver.ApiPOST("/system/jobs/daily-report/run", runDailyReport, webserver.RequireAdmin)
	webserver.ApiGET("/system/oplogs", listOperationLogs, webserver.RequireAdmin)
	webserver.ApiGET("/system/db/stats", getDatabaseStats, webserver.RequireAdmin)
}

type jobView struct {
	ID   int       `json:"id"`
	Next time.Time `json:"next"`
	Prev time.Time `json:"prev"`
}

func listJobs(c echo.Context) error {
	sched := GetAppContext(c).Scheduler()
	if sched == nil {
		return ok(c, []jobView{})
	}
	entries := sched.Entries()
	jobs := make([]jobView, 0, len(entries))
	for _, e := range entries {
		jobs = append(jobs, jobView{ID: int(e.ID), Next: e.Next, Prev: e.Prev})
	}
	return ok(c, jobs)
}

type runReportPayload struct {
	Date string `json:"date"`
}

// runDailyReport sends the daily sales reports of the given day now. Reports
// go to every store, so only the owner may trigger it.
func runDailyReport(c echo.Context) error {
	if u := webserver.CurrentUser(c); u == nil || u.Role != domain.RoleOwner {
		return fail(c, http.StatusForbidden, "INSUFFICIENT_PERMISSIONS", "Owner access required", nil)
	}
	var payload runReportPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request", err.Error())
	}
	day := time.Now().AddDate(0, 0, -1)
	if s := strings.TrimSpace(payload.Date); s != "" {
		t, err := dateparse.ParseLocal(s)
		if err != nil {
			return fail(c, http.StatusBadRequest, "INVALID_DATE", "Invalid report date", s)
		}
		day = t
	}
	date := day.Format("2006-01-02")
	if err := GetAppContext(c).SendDailyReports(date); err != nil {
		zap.L().Error("manual daily report failed", zap.String("date", date), zap.Error(err))
		return fail(c, http.StatusInternalServerError, "RUN_FAILED", "Failed to send daily reports", err.Error())
	}
	logOperation(c, "run_daily_report", "sent daily reports for "+date)
	return ok(c, map[string]string{"date": date})
}

func listOperationLogs(c echo.Context) error {
	page, pageSize := parsePagination(c)
	db := GetDB(c).Model(&domain.SysOprLog{}).Where("store_id = ?", storeID(c))
	if action := strings.TrimSpace(c.QueryParam("action")); action != "" {
		db = db.Where("opt_action = ?", action)
	}
	if q := strings.TrimSpace(c.QueryParam("q")); q != "" {
		db = db.Where(likeClause(db, "opt_desc"), likeValue(db, q))
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to count logs", err.Error())
	}
	var logs []domain.SysOprLog
	err := db.Order("opt_time DESC").Limit(pageSize).Offset((page - 1) * pageSize).Find(&logs).Error
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query logs", err.Error())
	}
	return paged(c, logs, total, page, pageSize)
}

type tableStat struct {
	Table string `json:"table"`
	Rows  int64  `json:"rows"`
}

// getDatabaseStats reports row counts of the store's tables.
func getDatabaseStats(c echo.Context) error {
	db := GetDB(c)
	sid := storeID(c)
	stats := make([]tableStat, 0, len(domain.Tables))
	for _, model := range domain.Tables {
		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(model); err != nil {
			return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to inspect schema", err.Error())
		}
		q := db.Model(model)
		if hasStoreColumn(stmt.Schema) {
			q = q.Where("store_id = ?", sid)
		}
		var n int64
		if err := q.Count(&n).Error; err != nil {
			return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to count "+stmt.Schema.Table, err.Error())
		}
		stats = append(stats, tableStat{Table: stmt.Schema.Table, Rows: n})
	}
	return ok(c, map[string]interface{}{
		"dialect": db.Dialector.Name(),
		"tables":  stats,
	})
}

func hasStoreColumn(s *schema.Schema) bool {
	return s.LookUpField("StoreID") != nil
}
