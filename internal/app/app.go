package app

import (
	"os"
	"path"
	"runtime/debug"
	"time"
	_ "time/tzdata"

	"github.com/asaskevich/EventBus"
	"github.com/robfig/cron/v3"
	"github.com/velvetpos/velvetpos/config"
	"github.com/velvetpos/velvetpos/internal/domain"
	"github.com/velvetpos/velvetpos/internal/pos"
	"github.com/velvetpos/velvetpos/internal/sales"
	"github.com/velvetpos/velvetpos/pkg/metrics"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
	"gorm.io/gorm"
)

type Application struct {
	appConfig     *config.AppConfig
	gormDB        *gorm.DB
	sched         *cron.Cron
	configManager *ConfigManager
	bus           EventBus.Bus
	sales         *sales.Service
	registers     *pos.Registry
}

// Ensure Application implements all interfaces
var (
	_ DBProvider            = (*Application)(nil)
	_ ConfigProvider        = (*Application)(nil)
	_ SettingsProvider      = (*Application)(nil)
	_ SchedulerProvider     = (*Application)(nil)
	_ ConfigManagerProvider = (*Application)(nil)
	_ SalesProvider         = (*Application)(nil)
	_ RegistryProvider      = (*Application)(nil)
	_ AppContext            = (*Application)(nil)
)

func NewApplication(appConfig *config.AppConfig) *Application {
	return &Application{appConfig: appConfig}
}

func (a *Application) Config() *config.AppConfig {
	return a.appConfig
}

func (a *Application) DB() *gorm.DB {
	return a.gormDB
}

// OverrideDB replaces the application's database handle (used in tests).
func (a *Application) OverrideDB(db *gorm.DB) {
	a.gormDB = db
}

func (a *Application) Init(cfg *config.AppConfig) {
	loc, err := time.LoadLocation(cfg.System.Location)
	if err != nil {
		zap.S().Error("timezone config error")
	} else {
		time.Local = loc
	}

	// Initialize zap logger
	var zapConfig zap.Config
	if cfg.Logger.Mode == "production" {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
	}

	// Configure output paths
	zapConfig.OutputPaths = []string{"stdout"}
	if cfg.Logger.FileEnable {
		zapConfig.OutputPaths = append(zapConfig.OutputPaths, cfg.Logger.Filename)
	}

	// Build logger with file rotation if enabled
	var logger *zap.Logger
	if cfg.Logger.FileEnable {
		lumberJackLogger := &lumberjack.Logger{
			Filename:   cfg.Logger.Filename,
			MaxSize:    64,
			MaxBackups: 7,
			MaxAge:     7,
			Compress:   false,
		}

		core := zapcore.NewTee(
			zapcore.NewCore(
				zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
				zapcore.AddSync(lumberJackLogger),
				zapConfig.Level,
			),
			zapcore.NewCore(
				zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
				zapcore.AddSync(os.Stdout),
				zapConfig.Level,
			),
		)
		logger = zap.New(core, zap.AddCaller())
	} else {
		logger, err = zapConfig.Build(zap.AddCaller())
		if err != nil {
			panic(err)
		}
	}

	zap.ReplaceGlobals(logger)

	err = metrics.InitMetrics(cfg.System.Workdir)
	if err != nil {
		zap.S().Warn("Failed to initialize metrics:", err)
	}

	if cfg.Database.Type == "" {
		cfg.Database.Type = "postgres"
	}
	a.gormDB = getDatabase(cfg.Database, cfg.System.Workdir)
	zap.S().Infof("Database connection successful, type: %s", cfg.Database.Type)

	if err := a.Bootstrap(); err != nil {
		zap.S().Fatalf("application bootstrap failed: %v", err)
	}

	a.initJob()
}

// Bootstrap migrates the schema, wires the sales pipeline and seeds required
// records. The database handle must already be set.
func (a *Application) Bootstrap() error {
	if err := a.MigrateDB(false); err != nil {
		return err
	}

	a.configManager = NewConfigManager(a)

	a.bus = EventBus.New()
	a.sales = sales.NewService(a.gormDB, a.bus, a.configManager)
	if err := sales.Subscribe(a.bus, a.gormDB); err != nil {
		return err
	}

	dataDir := path.Join(a.appConfig.System.Workdir, "data")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return err
	}
	registers, err := pos.NewRegistry(path.Join(dataDir, "registers.db"), a.sales, a.configManager)
	if err != nil {
		return err
	}
	a.registers = registers

	a.checkSuper()
	a.checkSettings()
	if a.appConfig.Store.DemoMode {
		if err := a.SeedDemo(a.appConfig.Store.DefaultID, "system"); err != nil {
			zap.L().Error("seed demo data failed", zap.Error(err))
		}
	}
	return nil
}

func (a *Application) MigrateDB(track bool) (err error) {
	defer func() {
		if err1 := recover(); err1 != nil {
			if os.Getenv("GO_DEGUB_TRACE") != "" {
				debug.PrintStack()
			}
			err2, ok := err1.(error)
			if ok {
				err = err2
				zap.S().Error(err2.Error())
			}
		}
	}()
	db := a.gormDB
	if track {
		db = db.Debug()
	}
	return db.Migrator().AutoMigrate(domain.Tables...)
}

func (a *Application) DropAll() {
	_ = a.gormDB.Migrator().DropTable(domain.Tables...)
}

func (a *Application) InitDb() {
	_ = a.gormDB.Migrator().DropTable(domain.Tables...)
	err := a.gormDB.Migrator().AutoMigrate(domain.Tables...)
	if err != nil {
		zap.S().Error(err)
	}
}

// ConfigMgr returns the configuration manager
func (a *Application) ConfigMgr() *ConfigManager {
	return a.configManager
}

// Scheduler returns the cron scheduler
func (a *Application) Scheduler() *cron.Cron {
	return a.sched
}

// Sales returns the transaction submission service
func (a *Application) Sales() *sales.Service {
	return a.sales
}

// Registers returns the open registers
func (a *Application) Registers() *pos.Registry {
	return a.registers
}

// Bus returns the application event bus
func (a *Application) Bus() EventBus.Bus {
	return a.bus
}

// GetSettingsStringValue retrieves a string configuration value
func (a *Application) GetSettingsStringValue(storeID, category, key string) string {
	return a.configManager.GetString(storeID, category, key)
}

// GetSettingsInt64Value retrieves an int64 configuration value
func (a *Application) GetSettingsInt64Value(storeID, category, key string) int64 {
	return a.configManager.GetInt64(storeID, category, key)
}

// GetSettingsBoolValue retrieves a boolean configuration value
func (a *Application) GetSettingsBoolValue(storeID, category, key string) bool {
	return a.configManager.GetBool(storeID, category, key)
}

// SaveSettings merges settings into one category of a store
func (a *Application) SaveSettings(storeID, category string, settings map[string]interface{}) error {
	return a.configManager.Update(storeID, category, settings)
}

// Release releases application resources
func (a *Application) Release() {
	if a.sched != nil {
		<-a.sched.Stop().Done()
	}
	if a.registers != nil {
		if err := a.registers.Shutdown(); err != nil {
			zap.L().Error("close register store failed", zap.Error(err))
		}
	}
	if a.bus != nil {
		a.bus.WaitAsync()
	}

	_ = metrics.Close()
	_ = zap.L().Sync()
}
