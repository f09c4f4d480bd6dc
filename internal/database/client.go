// Package database writes calibrated readings to TimescaleDB through gorm.
package database

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/chrissnell/sensorcal/internal/log"
)

const createHypertableSQL = `SELECT create_hypertable('calibrated_readings', 'time', if_not_exists => true);`

// DefaultBatchSize is the number of rows per INSERT.
const DefaultBatchSize = 1000

// Client holds the connection to a TimescaleDB database.
type Client struct {
	DB        *gorm.DB
	BatchSize int
	logger    *zap.SugaredLogger
}

// Connect opens the database and routes gorm's logger through zap.
func Connect(connectionString string, logger *zap.SugaredLogger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	db, err := gorm.Open(postgres.Open(connectionString), &gorm.Config{Logger: gormLogger()})
	if err != nil {
		return nil, fmt.Errorf("unable to connect to TimescaleDB: %w", err)
	}
	logger.Info("TimescaleDB connection successful")
	return &Client{DB: db, BatchSize: DefaultBatchSize, logger: logger}, nil
}

// New wraps an open gorm handle.
func New(db *gorm.DB, logger *zap.SugaredLogger) *Client {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Client{DB: db, BatchSize: DefaultBatchSize, logger: logger}
}

func gormLogger() logger.Interface {
	return logger.New(
		zap.NewStdLog(log.GetZapLogger()),
		logger.Config{
			SlowThreshold:             5 * time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		},
	)
}

// Migrate creates the readings table and, when the timescaledb extension is
// installed, turns it into a hypertable.
func (c *Client) Migrate(ctx context.Context) error {
	db := c.DB.WithContext(ctx)
	if err := db.AutoMigrate(&CalibratedReading{}); err != nil {
		return fmt.Errorf("migrating calibrated_readings: %w", err)
	}
	if db.Dialector.Name() != "postgres" {
		return nil
	}
	var installed int64
	if err := db.Raw(`SELECT count(*) FROM pg_extension WHERE extname = 'timescaledb'`).Scan(&installed).Error; err != nil {
		return fmt.Errorf("checking timescaledb extension: %w", err)
	}
	if installed == 0 {
		c.logger.Warn("timescaledb extension not installed; calibrated_readings stays a plain table")
		return nil
	}
	if err := db.Exec(createHypertableSQL).Error; err != nil {
		return fmt.Errorf("creating hypertable: %w", err)
	}
	return nil
}

// InsertReadings writes readings in batches inside one transaction.
func (c *Client) InsertReadings(ctx context.Context, readings []CalibratedReading) error {
	if len(readings) == 0 {
		return nil
	}
	batch := c.BatchSize
	if batch <= 0 {
		batch = DefaultBatchSize
	}
	err := c.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(readings, batch).Error
	})
	if err != nil {
		return fmt.Errorf("inserting %d calibrated readings: %w", len(readings), err)
	}
	c.logger.Infow("stored calibrated readings", "rows", len(readings))
	return nil
}

// Close releases the underlying connection pool.
func (c *Client) Close() error {
	sqlDB, err := c.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
