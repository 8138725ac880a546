package app

import (
	"fmt"
	"path"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/velvetpos/velvetpos/config"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// getDatabase opens the configured database, panicking when it is unreachable.
func getDatabase(cfg config.DBConfig, workdir string) *gorm.DB {
	db, err := OpenDatabase(cfg, workdir)
	if err != nil {
		zap.S().Errorf("database connection failed: %s", err.Error())
		panic(err)
	}
	return db
}

// OpenDatabase opens postgres or an embedded sqlite file in <workdir>/data.
func OpenDatabase(cfg config.DBConfig, workdir string) (*gorm.DB, error) {
	gcfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)}
	if cfg.Debug {
		gcfg.Logger = logger.Default.LogMode(logger.Info)
	}

	var dialector gorm.Dialector
	switch cfg.Type {
	case "sqlite":
		name := cfg.Name
		if name == "" {
			name = "velvetpos.db"
		}
		if !path.IsAbs(name) {
			name = path.Join(workdir, "data", name)
		}
		dialector = sqlite.Open(name + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	case "postgres", "":
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable TimeZone=UTC",
			cfg.Host, cfg.Port, cfg.User, cfg.Passwd, cfg.Name)
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database type %q", cfg.Type)
	}

	db, err := gorm.Open(dialector, gcfg)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	maxConn := cfg.MaxConn
	if maxConn <= 0 {
		maxConn = 20
	}
	idleConn := cfg.IdleConn
	if idleConn <= 0 {
		idleConn = 5
	}
	if cfg.Type == "sqlite" {
		maxConn, idleConn = 1, 1
	}
	sqlDB.SetMaxOpenConns(maxConn)
	sqlDB.SetMaxIdleConns(idleConn)
	sqlDB.SetConnMaxLifetime(time.Hour)
	return db, nil
}
