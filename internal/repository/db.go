package repository

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go-shelf-inspector/internal/config"
	"go-shelf-inspector/internal/logger"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Open connects to the configured database and, unless disabled, migrates
// the schema. For sqlite an empty DSN means defaultPath, whose directory is
// created if needed.
func Open(cfg config.DatabaseConfig, defaultPath string) (*gorm.DB, error) {
	dialector, err := dialectorFor(cfg, defaultPath)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger: gormlogger.New(logger.Logger, gormlogger.Config{
			SlowThreshold:             500 * time.Millisecond,
			LogLevel:                  gormLogLevel(),
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("connect %s database: %w", cfg.Driver, err)
	}

	if cfg.Driver == "sqlite" || cfg.Driver == "" {
		// sqlite serialises writers; one connection avoids "database is locked"
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.SetMaxOpenConns(1)
		}
	}

	if cfg.AutoMigrate {
		if err := Migrate(db); err != nil {
			return nil, err
		}
	}
	return db, nil
}

// Migrate creates or updates the products, shelf_images and alerts tables.
// Models are migrated one at a time so a failure names its table.
func Migrate(db *gorm.DB) error {
	for _, m := range allModels() {
		if err := db.AutoMigrate(m); err != nil {
			return fmt.Errorf("migrate %T: %w", m, err)
		}
	}
	logger.Debug("Database schema is up to date")
	return nil
}

func dialectorFor(cfg config.DatabaseConfig, defaultPath string) (gorm.Dialector, error) {
	switch strings.ToLower(cfg.Driver) {
	case "sqlite", "":
		dsn := cfg.DSN
		if dsn == "" {
			dsn = defaultPath
		}
		if dsn == "" {
			return nil, fmt.Errorf("sqlite database path is empty")
		}
		if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
			if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
				return nil, fmt.Errorf("create database directory: %w", err)
			}
		}
		return sqlite.Open(dsn), nil
	case "postgres":
		return postgres.Open(cfg.DSN), nil
	case "mysql":
		return mysql.Open(cfg.DSN), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
}

func gormLogLevel() gormlogger.LogLevel {
	switch logger.Logger.GetLevel() {
	case logrus.DebugLevel, logrus.TraceLevel:
		return gormlogger.Info
	case logrus.InfoLevel, logrus.WarnLevel:
		return gormlogger.Warn
	default:
		return gormlogger.Error
	}
}
