package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	Db *pgxpool.Pool
}

func NewStore(connString string) (*Store, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return &Store{Db: pool}, nil
}

func (s *Store) Close() {
	s.Db.Close()
}

// EnsureSchema creates the tables if they do not exist. Safe to run on
// every startup.
func (s *Store) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS pomelo_authorizations (
			id BIGSERIAL PRIMARY KEY,
			external_transaction_id TEXT NOT NULL,
			idempotency_key TEXT NOT NULL UNIQUE,
			card_id TEXT NOT NULL,
			local_amount NUMERIC(20,2) NOT NULL,
			local_currency TEXT NOT NULL,
			settlement_amount_usd NUMERIC(20,2) NOT NULL,
			internal_transaction_id UUID NOT NULL,
			status TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_pomelo_authorizations_external_id
			ON pomelo_authorizations (external_transaction_id)`,
		`CREATE TABLE IF NOT EXISTS internal_transactions (
			id UUID PRIMARY KEY,
			debit_consumer_id TEXT NOT NULL,
			debit_amount_usd NUMERIC(20,2) NOT NULL,
			exchange_rate_used NUMERIC(20,4) NOT NULL,
			memo TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS consumers (
			id TEXT PRIMARY KEY,
			external_user_id TEXT NOT NULL,
			wallet_id TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS cards (
			card_id TEXT PRIMARY KEY,
			external_user_id TEXT NOT NULL,
			consumer_id TEXT NOT NULL REFERENCES consumers (id)
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.Db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema setup failed: %w", err)
		}
	}
	return nil
}
