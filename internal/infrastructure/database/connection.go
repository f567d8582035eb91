package database

import (
	"context"
	"fmt"
	"time"

	"github.com/richstorm00/saas-starter/internal/config"
	"github.com/richstorm00/saas-starter/pkg/logger"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	slowQueryThreshold = 200 * time.Millisecond
	pingTimeout        = 5 * time.Second
	pingAttempts       = 3
)

// NewConnection opens the Postgres pool that backs the customer index and
// the webhook event log. The database may still be starting when the
// service boots, so the first ping is retried a few times.
func NewConnection(cfg *config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger:                                   logger.NewGormLogger(log, gormlogger.Warn, slowQueryThreshold, true),
		DisableForeignKeyConstraintWhenMigrating: true,
		PrepareStmt:                              true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open billing database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying SQL database: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	for attempt := 1; ; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
		err = sqlDB.PingContext(ctx)
		cancel()
		if err == nil {
			break
		}
		if attempt == pingAttempts {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("billing database unreachable after %d attempts: %w", attempt, err)
		}
		log.Warn("Billing database not ready, retrying",
			zap.Int("attempt", attempt),
			zap.Error(err))
		time.Sleep(time.Duration(attempt) * time.Second)
	}

	log.Info("Billing database connected",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Name),
		zap.Bool("from_url", cfg.URL != ""),
		zap.Int("max_open_conns", cfg.MaxOpenConns),
	)
	return db, nil
}

// Close releases the pool.
func Close(db *gorm.DB, log *zap.Logger) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying SQL database: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close billing database: %w", err)
	}

	log.Info("Billing database closed")
	return nil
}
