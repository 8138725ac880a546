package app

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/velvetpos/velvetpos/internal/domain"
	"github.com/velvetpos/velvetpos/pkg/common"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const SuperEmail = "admin@velvetpos.local"

func (a *Application) checkSuper() {
	password := a.appConfig.Auth.AdminPassword
	if password == "" {
		password = "velvetpos"
	}
	storeID := a.appConfig.Store.DefaultID

	var operator domain.SysOpr
	err := a.gormDB.Where("email = ?", SuperEmail).First(&operator).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		hashed, err := common.HashPassword(password)
		if err != nil {
			zap.L().Error("failed to hash super admin password", zap.Error(err))
			return
		}
		if err := a.gormDB.Create(&domain.SysOpr{
			ID:        common.UUIDint64(),
			StoreID:   storeID,
			Realname:  "administrator",
			Email:     SuperEmail,
			Password:  hashed,
			Role:      domain.RoleOwner,
			Status:    common.ENABLED,
			Remark:    "super",
			LastLogin: time.Now(),
		}).Error; err != nil {
			zap.L().Error("failed to create default super admin", zap.Error(err))
		} else {
			zap.L().Info("initialized default super admin account", zap.String("email", SuperEmail))
		}
		return
	case err != nil:
		zap.L().Error("failed to query super admin", zap.Error(err))
		return
	}

	resetPassword := strings.TrimSpace(operator.Password) == ""
	resetRole := operator.Role != domain.RoleOwner
	resetStatus := !strings.EqualFold(operator.Status, common.ENABLED)

	if !resetPassword && !resetRole && !resetStatus {
		return
	}

	updates := map[string]interface{}{
		"updated_at": time.Now(),
	}
	if resetPassword {
		hashed, err := common.HashPassword(password)
		if err != nil {
			zap.L().Error("failed to hash super admin password", zap.Error(err))
			return
		}
		updates["password"] = hashed
	}
	if resetRole {
		updates["role"] = domain.RoleOwner
	}
	if resetStatus {
		updates["status"] = common.ENABLED
	}

	if err := a.gormDB.Model(&domain.SysOpr{}).Where("id = ?", operator.ID).Updates(updates).Error; err != nil {
		zap.L().Error("failed to repair super admin account", zap.Error(err))
		return
	}

	zap.L().Warn("repaired default super admin account",
		zap.String("email", SuperEmail),
		zap.Bool("passwordReset", resetPassword),
		zap.Bool("roleReset", resetRole),
		zap.Bool("statusEnabled", resetStatus))
}

// checkSettings creates the missing settings rows of the default store.
func (a *Application) checkSettings() {
	storeID := a.appConfig.Store.DefaultID
	for sortid, schema := range a.configManager.Schemas() {
		parts := strings.SplitN(schema.Key, ".", 2)
		if len(parts) != 2 {
			zap.L().Warn("invalid config key format", zap.String("key", schema.Key))
			continue
		}
		category, name := parts[0], parts[1]

		var count int64
		a.gormDB.Model(&domain.SysConfig{}).
			Where("store_id = ? and type = ? and name = ?", storeID, category, name).
			Count(&count)
		if count > 0 {
			continue
		}
		value := schema.Default
		if schema.Key == "store.demo_mode" && a.appConfig.Store.DemoMode {
			value = "true"
		}
		if err := a.gormDB.Create(&domain.SysConfig{
			StoreID: storeID,
			Sort:    sortid,
			Type:    category,
			Name:    name,
			Value:   value,
			Remark:  schema.Description,
		}).Error; err != nil {
			zap.L().Error("failed to initialize config", zap.String("key", schema.Key), zap.Error(err))
			continue
		}
		zap.L().Info("initialized config",
			zap.String("store_id", storeID),
			zap.String("key", schema.Key),
			zap.String("default", value))
	}
	a.configManager.Invalidate(storeID)
}

var demoCategories = []domain.Category{
	{ID: "cat_1", Name: "Lipstick", SortOrder: 1},
	{ID: "cat_2", Name: "Foundation", SortOrder: 2},
	{ID: "cat_3", Name: "Eyeshadow", SortOrder: 3},
	{ID: "cat_4", Name: "Skincare", SortOrder: 4},
	{ID: "cat_5", Name: "Accessories", SortOrder: 5},
}

var demoProducts = []domain.Product{
	{ID: "prod_1", Name: "Matte Ruby Lipstick", SKU: "LIP-001", Price: decimal.RequireFromString("24.99"), Category: "Lipstick", Stock: 50,
		Description: "Long-lasting matte finish lipstick in classic ruby red"},
	{ID: "prod_2", Name: "Velvet Rose Lipstick", SKU: "LIP-002", Price: decimal.RequireFromString("26.99"), Category: "Lipstick", Stock: 35,
		Description: "Hydrating velvet finish in romantic rose pink"},
	{ID: "prod_3", Name: "Silk Foundation - Beige", SKU: "FND-001", Price: decimal.RequireFromString("42.99"), Category: "Foundation", Stock: 25,
		Description: "Lightweight silk formula for natural coverage"},
	{ID: "prod_4", Name: "Naked Palette Eyeshadow", SKU: "EYE-001", Price: decimal.RequireFromString("54.99"), Category: "Eyeshadow", Stock: 20,
		Description: "12-shade neutral palette for everyday looks"},
	{ID: "prod_5", Name: "Hydrating Face Serum", SKU: "SKN-001", Price: decimal.RequireFromString("68.99"), Category: "Skincare", Stock: 15,
		Description: "Hyaluronic acid serum for intense hydration"},
	{ID: "prod_6", Name: "Professional Brush Set", SKU: "ACC-001", Price: decimal.RequireFromString("89.99"), Category: "Accessories", Stock: 10,
		Description: "12-piece professional makeup brush collection"},
}

var demoCustomers = []domain.Customer{
	{ID: "cust_1", Name: "Emma Thompson", Email: "emma@email.com", Phone: "555-0101", Points: 245,
		LoyaltyTier: "Gold", TotalPurchases: decimal.RequireFromString("1250.00")},
	{ID: "cust_2", Name: "Sophia Rodriguez", Email: "sophia@email.com", Phone: "555-0102", Points: 89,
		LoyaltyTier: "Silver", TotalPurchases: decimal.RequireFromString("450.00")},
	{ID: "cust_3", Name: "Olivia Chen", Email: "olivia@email.com", Phone: "555-0103", Points: 456,
		LoyaltyTier: "Platinum", TotalPurchases: decimal.RequireFromString("2890.00")},
}

// SeedDemo loads the demo catalog and customers into a store. Existing
// records with the same ids are left as they are.
func (a *Application) SeedDemo(storeID, operator string) error {
	err := a.gormDB.Transaction(func(tx *gorm.DB) error {
		categories := make([]domain.Category, len(demoCategories))
		for i, c := range demoCategories {
			c.StoreID = storeID
			categories[i] = c
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&categories).Error; err != nil {
			return err
		}

		products := make([]domain.Product, len(demoProducts))
		for i, p := range demoProducts {
			p.StoreID = storeID
			p.Active = true
			p.CreatedBy = operator
			p.UpdatedBy = operator
			products[i] = p
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&products).Error; err != nil {
			return err
		}

		customers := make([]domain.Customer, len(demoCustomers))
		for i, c := range demoCustomers {
			c.StoreID = storeID
			customers[i] = c
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&customers).Error
	})
	if err != nil {
		return err
	}
	if err := a.configManager.Update(storeID, "store", map[string]interface{}{"demo_mode": true}); err != nil {
		return err
	}
	zap.L().Info("demo data initialized", zap.String("store_id", storeID), zap.String("by", operator))
	return nil
}
