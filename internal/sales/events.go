package sales

import (
	"github.com/asaskevich/EventBus"
	"github.com/velvetpos/velvetpos/internal/domain"
	"github.com/velvetpos/velvetpos/pkg/metrics"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LowStockThreshold is the stock level at or below which a sale logs a warning.
const LowStockThreshold = 5

// Subscribe attaches the bookkeeping handlers to the bus.
func Subscribe(bus EventBus.Bus, db *gorm.DB) error {
	handlers := []func(*domain.Transaction){
		func(tx *domain.Transaction) { updateDailySummary(db, tx) },
		func(tx *domain.Transaction) { updateLoyalty(db, tx) },
		recordMetrics,
		func(tx *domain.Transaction) { warnLowStock(db, tx) },
	}
	for _, h := range handlers {
		if err := bus.SubscribeAsync(TopicTransactionCreated, h, false); err != nil {
			return err
		}
	}
	return nil
}

func updateDailySummary(db *gorm.DB, tx *domain.Transaction) {
	summary := domain.DailySummary{
		StoreID:          tx.StoreID,
		Date:             tx.Date,
		TransactionCount: 1,
		TotalSales:       tx.Total,
		ItemsSold:        int64(tx.ItemCount()),
		UpdatedAt:        tx.Timestamp,
	}
	err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "store_id"}, {Name: "date"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"transaction_count": gorm.Expr("daily_summaries.transaction_count + ?", 1),
			"total_sales":       gorm.Expr("daily_summaries.total_sales + ?", tx.Total),
			"items_sold":        gorm.Expr("daily_summaries.items_sold + ?", summary.ItemsSold),
			"updated_at":        tx.Timestamp,
		}),
	}).Create(&summary).Error
	if err != nil {
		zap.L().Error("update daily summary failed",
			zap.String("transaction_id", tx.ID), zap.Error(err))
	}
}

// updateLoyalty awards one point per whole currency unit spent.
func updateLoyalty(db *gorm.DB, tx *domain.Transaction) {
	if tx.CustomerID == "" {
		return
	}
	points := tx.Total.IntPart()
	err := db.Model(&domain.Customer{}).
		Where("id = ? AND store_id = ?", tx.CustomerID, tx.StoreID).
		Updates(map[string]interface{}{
			"points":          gorm.Expr("points + ?", points),
			"total_purchases": gorm.Expr("total_purchases + ?", tx.Total),
		}).Error
	if err != nil {
		zap.L().Error("update customer loyalty failed",
			zap.String("customer_id", tx.CustomerID), zap.Error(err))
	}
}

func recordMetrics(tx *domain.Transaction) {
	total, _ := tx.Total.Float64()
	if err := metrics.AddSample(metrics.MetricsSalesTotal, tx.StoreID, total); err != nil {
		zap.L().Debug("sales metrics skipped", zap.Error(err))
		return
	}
	_ = metrics.AddSample(metrics.MetricsSalesCount, tx.StoreID, 1)
	_ = metrics.AddSample(metrics.MetricsItemsSold, tx.StoreID, float64(tx.ItemCount()))
}

func warnLowStock(db *gorm.DB, tx *domain.Transaction) {
	ids := make([]string, 0, len(tx.Items))
	for _, it := range tx.Items {
		ids = append(ids, it.ProductID)
	}
	var low []domain.Product
	err := db.Where("store_id = ? AND id IN ? AND stock <= ?", tx.StoreID, ids, LowStockThreshold).
		Find(&low).Error
	if err != nil {
		zap.L().Error("low stock check failed", zap.Error(err))
		return
	}
	for _, p := range low {
		zap.L().Warn("low stock",
			zap.String("store_id", p.StoreID),
			zap.String("product_id", p.ID),
			zap.String("name", p.Name),
			zap.Int("stock", p.Stock))
	}
}
