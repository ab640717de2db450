package database

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Xavier-Fan123/oil-trading-system-sub007/internal/contracts"
	"github.com/Xavier-Fan123/oil-trading-system-sub007/internal/marketdata"
	"github.com/Xavier-Fan123/oil-trading-system-sub007/internal/tradegroups"
)

// NewPostgresDB opens the application database with pool limits applied.
func NewPostgresDB(dsn string, maxOpenConns, maxIdleConns, connMaxLifetimeSeconds int) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("access sql pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(connMaxLifetimeSeconds) * time.Second)

	return db, nil
}

// Migrate runs all schema migrations.
func Migrate(db *gorm.DB) error {
	if err := contracts.Migrate(db); err != nil {
		return fmt.Errorf("migrate contracts: %w", err)
	}
	if err := marketdata.Migrate(db); err != nil {
		return fmt.Errorf("migrate marketdata: %w", err)
	}
	if err := tradegroups.Migrate(db); err != nil {
		return fmt.Errorf("migrate tradegroups: %w", err)
	}
	return nil
}
