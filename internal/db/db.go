package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type DB struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

func (db *DB) Close() {
	db.pool.Close()
}

// RunMigrations runs database migrations
func (db *DB) RunMigrations(ctx context.Context) error {
	_, err := db.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS splitter_transactions (
			id UUID PRIMARY KEY,
			chain_id BIGINT NOT NULL,
			contract TEXT NOT NULL,
			kind TEXT NOT NULL,
			tx_hash TEXT NOT NULL,
			from_address TEXT NOT NULL,
			amount NUMERIC(78, 0),
			description TEXT NOT NULL DEFAULT '',
			participant TEXT,
			block_number BIGINT NOT NULL,
			gas_used BIGINT NOT NULL,
			confirmed_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (chain_id, tx_hash)
		);
		CREATE INDEX IF NOT EXISTS idx_splitter_transactions_contract
			ON splitter_transactions (chain_id, contract, confirmed_at DESC);
	`)
	if err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	return nil
}
