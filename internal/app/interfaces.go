package app

import (
	"github.com/asaskevich/EventBus"
	"github.com/robfig/cron/v3"
	"github.com/velvetpos/velvetpos/config"
	"github.com/velvetpos/velvetpos/internal/pos"
	"github.com/velvetpos/velvetpos/internal/sales"
	"gorm.io/gorm"
)

// DBProvider provides database access
type DBProvider interface {
	DB() *gorm.DB
}

// ConfigProvider provides application configuration
type ConfigProvider interface {
	Config() *config.AppConfig
}

// SettingsProvider provides store-scoped settings access
type SettingsProvider interface {
	GetSettingsStringValue(storeID, category, key string) string
	GetSettingsInt64Value(storeID, category, key string) int64
	GetSettingsBoolValue(storeID, category, key string) bool
	SaveSettings(storeID, category string, settings map[string]interface{}) error
}

// SchedulerProvider provides task scheduling capability
type SchedulerProvider interface {
	Scheduler() *cron.Cron
}

// ConfigManagerProvider provides configuration manager access
type ConfigManagerProvider interface {
	ConfigMgr() *ConfigManager
}

// SalesProvider provides the transaction submission service
type SalesProvider interface {
	Sales() *sales.Service
	Bus() EventBus.Bus
}

// RegistryProvider provides the open registers
type RegistryProvider interface {
	Registers() *pos.Registry
}

// AppContext combines all provider interfaces for full application context
// Services should depend on specific providers or this combined interface
type AppContext interface {
	DBProvider
	ConfigProvider
	SettingsProvider
	SchedulerProvider
	ConfigManagerProvider
	SalesProvider
	RegistryProvider

	// Application lifecycle methods
	MigrateDB(track bool) error
	InitDb()
	DropAll()
	// SeedDemo loads the demo catalog, customers and settings into a store
	SeedDemo(storeID, operator string) error
	// SendDailyReports mails yesterday's sales summary of every active store
	SendDailyReports(day string) error
}
