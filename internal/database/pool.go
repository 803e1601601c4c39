package database

import (
	"context"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Config selects a driver and tunes the connection pool behind it.
type Config struct {
	// Driver is one of sqlite, postgres, mysql. Empty selects sqlite.
	Driver string `json:"driver" yaml:"driver"`
	// DSN is the driver-specific data source name. An empty sqlite DSN
	// opens a shared in-memory database.
	DSN string `json:"dsn" yaml:"dsn"`

	MaxIdleConns    int           `json:"max_idle_conns" yaml:"max_idle_conns"`
	MaxOpenConns    int           `json:"max_open_conns" yaml:"max_open_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time" yaml:"conn_max_idle_time"`

	// PingTimeout bounds the connectivity probe run right after connecting.
	PingTimeout time.Duration `json:"ping_timeout" yaml:"ping_timeout"`
}

// DefaultConfig returns pool settings sized for the low write rate of
// behavior model persistence.
func DefaultConfig() Config {
	return Config{
		MaxIdleConns:    2,
		MaxOpenConns:    10,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 10 * time.Minute,
		PingTimeout:     5 * time.Second,
	}
}

// Open connects to the configured database, applies the pool limits and
// verifies connectivity before returning the handle. Zero-valued pool
// fields fall back to DefaultConfig.
func Open(config Config, logger *zap.Logger) (*gorm.DB, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var dialector gorm.Dialector
	switch config.Driver {
	case "sqlite", "":
		dsn := config.DSN
		if dsn == "" {
			dsn = "file::memory:?cache=shared"
		}
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(config.DSN)
	case "mysql":
		dialector = mysql.Open(config.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", config.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	def := DefaultConfig()
	if config.MaxIdleConns <= 0 {
		config.MaxIdleConns = def.MaxIdleConns
	}
	if config.MaxOpenConns <= 0 {
		config.MaxOpenConns = def.MaxOpenConns
	}
	if config.ConnMaxLifetime <= 0 {
		config.ConnMaxLifetime = def.ConnMaxLifetime
	}
	if config.ConnMaxIdleTime <= 0 {
		config.ConnMaxIdleTime = def.ConnMaxIdleTime
	}
	if config.PingTimeout <= 0 {
		config.PingTimeout = def.PingTimeout
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("unwrap sql handle: %w", err)
	}
	sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(config.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), config.PingTimeout)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	driver := config.Driver
	if driver == "" {
		driver = "sqlite"
	}
	logger.Debug("database connected",
		zap.String("driver", driver),
		zap.Int("max_open_conns", config.MaxOpenConns),
	)
	return db, nil
}
