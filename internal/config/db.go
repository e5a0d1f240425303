package config

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// ConnectDB establishes a connection pool to the PostgreSQL database
func ConnectDB(ctx context.Context, cfg DBConfig, log *zap.Logger) (*pgxpool.Pool, error) {
	var pool *pgxpool.Pool
	var err error

	// Retry connecting to the database a few times
	maxRetries := 5
	retryInterval := 5 * time.Second

	for i := 0; i < maxRetries; i++ {
		pool, err = pgxpool.New(ctx, cfg.DSN())
		if err == nil {
			err = pool.Ping(ctx)
			if err == nil {
				log.Info("Successfully connected to PostgreSQL", zap.String("host", cfg.Host), zap.String("db", cfg.Name))
				return pool, nil
			}
			pool.Close()
		}
		log.Warn("Failed to connect to database, retrying",
			zap.Int("attempt", i+1), zap.Int("max_attempts", maxRetries),
			zap.Duration("retry_in", retryInterval), zap.Error(err))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryInterval):
		}
	}
	return nil, fmt.Errorf("unable to connect to database after %d attempts: %w", maxRetries, err)
}

// Schema creates the two tables if they don't exist
const Schema = `
	CREATE TABLE IF NOT EXISTS users (
		phone_number TEXT PRIMARY KEY,
		user_type TEXT NOT NULL CHECK (user_type IN ('supplier', 'collector')),
		name TEXT NOT NULL,
		location TEXT NOT NULL,
		waste_types TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS waste_listings (
		id BIGSERIAL PRIMARY KEY,
		supplier_phone TEXT NOT NULL,
		waste_type TEXT NOT NULL CHECK (waste_type IN ('vegetable_scraps', 'fruit_peels', 'prepared_food')),
		quantity DOUBLE PRECISION NOT NULL CHECK (quantity > 0), -- kilograms
		available_until TIMESTAMP WITH TIME ZONE NOT NULL,
		status TEXT NOT NULL CHECK (status IN ('available', 'scheduled')) DEFAULT 'available',
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_waste_listings_available
		ON waste_listings (created_at DESC, id DESC) WHERE status = 'available';
`

// AutoMigrate creates tables if they don't exist
func AutoMigrate(ctx context.Context, db *pgxpool.Pool, log *zap.Logger) error {
	if _, err := db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("unable to apply migrations: %w", err)
	}
	log.Info("AutoMigrate applied successfully")
	return nil
}
