package adminapi

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/google/btree"
	"github.com/labstack/echo/v4"
	"github.com/montanaflynn/stats"
	"github.com/shopspring/decimal"
	"github.com/velvetpos/velvetpos/internal/domain"
	"github.com/velvetpos/velvetpos/internal/webserver"
	"github.com/velvetpos/velvetpos/pkg/metrics"
)

const dateLayout = "2006-01-02"

func registerAnalyticsRoutes() {
	webserver.ApiGET("/analytics/sales", getSalesAnalytics)
	webserver.ApiGET("/analytics/top-products", getTopProducts)
	webserver.ApiGET("/analytics/metrics/:name", getMetricSeries, webserver.RequireAdmin)
}

// parseDateRange reads from/to in any common date format, or a trailing
// window of days ending today. Both bounds are inclusive.
func parseDateRange(c echo.Context, defaultDays int) (string, string, error) {
	now := time.Now()
	to := now
	if s := strings.TrimSpace(c.QueryParam("to")); s != "" {
		t, err := dateparse.ParseLocal(s)
		if err != nil {
			return "", "", fmt.Errorf("invalid to date %q", s)
		}
		to = t
	}
	var from time.Time
	if s := strings.TrimSpace(c.QueryParam("from")); s != "" {
		t, err := dateparse.ParseLocal(s)
		if err != nil {
			return "", "", fmt.Errorf("invalid from date %q", s)
		}
		from = t
	} else {
		days := defaultDays
		if d, err := strconv.Atoi(c.QueryParam("days")); err == nil && d > 0 && d <= 3660 {
			days = d
		}
		from = to.AddDate(0, 0, -(days - 1))
	}
	if from.After(to) {
		return "", "", fmt.Errorf("from date is after to date")
	}
	return from.Format(dateLayout), to.Format(dateLayout), nil
}

type dailySales struct {
	Date             string          `json:"date"`
	TransactionCount int64           `json:"transaction_count"`
	TotalSales       decimal.Decimal `json:"total_sales"`
	ItemsSold        int64           `json:"items_sold"`
}

type salesAnalytics struct {
	From                    string          `json:"from"`
	To                      string          `json:"to"`
	TotalSales              decimal.Decimal `json:"total_sales"`
	TotalTransactions       int64           `json:"total_transactions"`
	ItemsSold               int64           `json:"items_sold"`
	AverageDailySales       decimal.Decimal `json:"average_daily_sales"`
	MedianDailySales        decimal.Decimal `json:"median_daily_sales"`
	AverageTransactionValue decimal.Decimal `json:"average_transaction_value"`
	DailyBreakdown          []dailySales    `json:"daily_breakdown"`
}

func getSalesAnalytics(c echo.Context) error {
	from, to, err := parseDateRange(c, 30)
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_DATE", err.Error(), nil)
	}

	var summaries []domain.DailySummary
	if err := GetDB(c).
		Where("store_id = ? AND date >= ? AND date <= ?", storeID(c), from, to).
		Order("date").Find(&summaries).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "ANALYTICS_FAILED", "Failed to query sales", err.Error())
	}

	out := salesAnalytics{
		From:                    from,
		To:                      to,
		TotalSales:              decimal.Zero,
		AverageDailySales:       decimal.Zero,
		MedianDailySales:        decimal.Zero,
		AverageTransactionValue: decimal.Zero,
		DailyBreakdown:          make([]dailySales, 0, len(summaries)),
	}
	daily := make(stats.Float64Data, 0, len(summaries))
	for _, s := range summaries {
		out.TotalSales = out.TotalSales.Add(s.TotalSales)
		out.TotalTransactions += s.TransactionCount
		out.ItemsSold += s.ItemsSold
		v, _ := s.TotalSales.Float64()
		daily = append(daily, v)
		out.DailyBreakdown = append(out.DailyBreakdown, dailySales{
			Date:             s.Date,
			TransactionCount: s.TransactionCount,
			TotalSales:       s.TotalSales,
			ItemsSold:        s.ItemsSold,
		})
	}
	if len(daily) > 0 {
		if mean, err := stats.Mean(daily); err == nil {
			out.AverageDailySales = decimal.NewFromFloat(mean).Round(2)
		}
		if median, err := stats.Median(daily); err == nil {
			out.MedianDailySales = decimal.NewFromFloat(median).Round(2)
		}
	}
	if out.TotalTransactions > 0 {
		out.AverageTransactionValue = out.TotalSales.DivRound(decimal.NewFromInt(out.TotalTransactions), 2)
	}
	return ok(c, out)
}

type productSales struct {
	ProductID    string          `json:"id"`
	Name         string          `json:"name"`
	QuantitySold int             `json:"quantity_sold"`
	Revenue      decimal.Decimal `json:"revenue"`
}

// byRevenue orders products by revenue, highest first, ties broken by id.
func byRevenue(a, b *productSales) bool {
	if cmp := a.Revenue.Cmp(b.Revenue); cmp != 0 {
		return cmp > 0
	}
	return a.ProductID < b.ProductID
}

func getTopProducts(c echo.Context) error {
	limit := parseLimit(c, 10, 100)
	from, to, err := parseDateRange(c, 30)
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_DATE", err.Error(), nil)
	}

	var txs []domain.Transaction
	if err := GetDB(c).
		Where("store_id = ? AND date >= ? AND date <= ?", storeID(c), from, to).
		Find(&txs).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "FETCH_FAILED", "Failed to query transactions", err.Error())
	}

	agg := make(map[string]*productSales)
	for _, tx := range txs {
		for _, it := range tx.Items {
			ps, found := agg[it.ProductID]
			if !found {
				ps = &productSales{ProductID: it.ProductID, Name: it.Name, Revenue: decimal.Zero}
				agg[it.ProductID] = ps
			}
			ps.QuantitySold += it.Quantity
			ps.Revenue = ps.Revenue.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
		}
	}

	ranking := btree.NewG[*productSales](8, byRevenue)
	for _, ps := range agg {
		ranking.ReplaceOrInsert(ps)
	}
	top := make([]productSales, 0, limit)
	ranking.Ascend(func(ps *productSales) bool {
		row := *ps
		row.Revenue = row.Revenue.Round(2)
		top = append(top, row)
		return len(top) < limit
	})
	return ok(c, map[string]interface{}{
		"from":         from,
		"to":           to,
		"top_products": top,
	})
}

var storeMetrics = map[string]bool{
	metrics.MetricsSalesTotal:       true,
	metrics.MetricsSalesCount:       true,
	metrics.MetricsItemsSold:        true,
	metrics.MetricsCheckoutRejected: true,
}

var processMetrics = map[string]bool{
	metrics.MetricsSystemCPU:  true,
	metrics.MetricsSystemMem:  true,
	metrics.MetricsProcessCPU: true,
	metrics.MetricsProcessMem: true,
}

func getMetricSeries(c echo.Context) error {
	name := c.Param("name")
	store := ""
	switch {
	case storeMetrics[name]:
		store = storeID(c)
	case processMetrics[name]:
	default:
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Unknown metric", name)
	}
	hours := 24
	if h, err := strconv.Atoi(c.QueryParam("hours")); err == nil && h > 0 && h <= 24*30 {
		hours = h
	}
	end := time.Now().Add(time.Minute)
	points, err := metrics.Query(name, store, end.Add(-time.Duration(hours)*time.Hour), end)
	if err != nil {
		return fail(c, http.StatusServiceUnavailable, "METRICS_UNAVAILABLE", "Metrics storage unavailable", err.Error())
	}
	return ok(c, map[string]interface{}{
		"name":   name,
		"points": points,
	})
}
