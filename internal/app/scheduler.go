package app

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/velvetpos/velvetpos/internal/domain"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

const reportWorkers = 8

// StartBackgroundJobs runs the cron scheduler until ctx is done.
func (a *Application) StartBackgroundJobs(ctx context.Context) {
	if a.sched == nil {
		return
	}
	a.sched.Start()
	zap.L().Info("background jobs started", zap.Int("entries", len(a.sched.Entries())))
	<-ctx.Done()
}

// SalesReport is the day summary mailed to a store.
type SalesReport struct {
	StoreID   string
	StoreName string
	Currency  string
	Summary   domain.DailySummary
}

func (r SalesReport) Subject() string {
	return fmt.Sprintf("[%s] Sales report %s", r.StoreName, r.Summary.Date)
}

func (r SalesReport) Body() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Store: %s (%s)\n", r.StoreName, r.StoreID)
	fmt.Fprintf(&b, "Date: %s\n", r.Summary.Date)
	fmt.Fprintf(&b, "Transactions: %d\n", r.Summary.TransactionCount)
	fmt.Fprintf(&b, "Items sold: %d\n", r.Summary.ItemsSold)
	fmt.Fprintf(&b, "Total sales: %s %s\n", r.Summary.TotalSales.StringFixed(2), r.Currency)
	if r.Summary.TransactionCount > 0 {
		avg := r.Summary.TotalSales.DivRound(decimal.NewFromInt(r.Summary.TransactionCount), 2)
		fmt.Fprintf(&b, "Average ticket: %s %s\n", avg.StringFixed(2), r.Currency)
	}
	return b.String()
}

// BuildDailyReports collects the summaries of every store that sold on day.
func (a *Application) BuildDailyReports(day string) ([]SalesReport, error) {
	var summaries []domain.DailySummary
	if err := a.gormDB.Where("date = ?", day).Order("store_id").Find(&summaries).Error; err != nil {
		return nil, errors.Wrap(err, "query daily summaries")
	}
	reports := make([]SalesReport, 0, len(summaries))
	for _, s := range summaries {
		if !a.configManager.GetBool(s.StoreID, "report", "daily_enabled") {
			continue
		}
		reports = append(reports, SalesReport{
			StoreID:   s.StoreID,
			StoreName: a.configManager.GetString(s.StoreID, "store", "name"),
			Currency:  a.configManager.GetString(s.StoreID, "store", "currency"),
			Summary:   s,
		})
	}
	return reports, nil
}

// SendDailyReports fans the reports of day out on a worker pool.
func (a *Application) SendDailyReports(day string) error {
	reports, err := a.BuildDailyReports(day)
	if err != nil {
		return err
	}
	if len(reports) == 0 {
		return nil
	}

	pool, err := ants.NewPool(reportWorkers)
	if err != nil {
		return err
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for _, r := range reports {
		r := r
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			a.deliverReport(r)
		}); err != nil {
			wg.Done()
			zap.L().Error("submit report task failed", zap.String("store_id", r.StoreID), zap.Error(err))
		}
	}
	wg.Wait()
	return nil
}

func (a *Application) reportRecipients(storeID string) []string {
	var out []string
	for _, addr := range strings.Split(a.configManager.GetString(storeID, "report", "recipients"), ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			out = append(out, addr)
		}
	}
	if len(out) == 0 {
		out = a.appConfig.Mail.To
	}
	return out
}

func (a *Application) deliverReport(r SalesReport) {
	mc := a.appConfig.Mail
	to := a.reportRecipients(r.StoreID)
	if !mc.Enabled || mc.Host == "" || len(to) == 0 {
		zap.L().Info("daily sales report",
			zap.String("store_id", r.StoreID),
			zap.String("date", r.Summary.Date),
			zap.Int64("transactions", r.Summary.TransactionCount),
			zap.String("total", r.Summary.TotalSales.StringFixed(2)))
		return
	}

	m := gomail.NewMessage()
	m.SetHeader("From", mc.From)
	m.SetHeader("To", to...)
	m.SetHeader("Subject", r.Subject())
	m.SetBody("text/plain", r.Body())

	d := gomail.NewDialer(mc.Host, mc.Port, mc.Username, mc.Password)
	if err := d.DialAndSend(m); err != nil {
		zap.L().Error("send daily report failed", zap.String("store_id", r.StoreID), zap.Error(err))
		return
	}
	zap.L().Info("daily report sent", zap.String("store_id", r.StoreID), zap.Strings("to", to))
}
