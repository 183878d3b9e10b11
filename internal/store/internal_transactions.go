package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/antipr000/NobaServer-sub008/internal/models"
)

var ErrInternalTransactionNotFound = errors.New("internal transaction not found")

// InternalTransactionStore persists the internal funds movements, keyed by
// the ID pre-generated on the authorization record.
type InternalTransactionStore struct {
	db *Store
}

func NewInternalTransactionStore(db *Store) *InternalTransactionStore {
	return &InternalTransactionStore{db: db}
}

// GetOrCreate inserts the transaction, or fetches the existing one when the
// ID already exists. A colliding ID means a concurrent retry already raced
// past the terminal-status check; that is resolved here, not surfaced.
func (s *InternalTransactionStore) GetOrCreate(ctx context.Context, tx *models.InternalTransaction) (*models.InternalTransaction, bool, error) {
	tag, err := s.db.Db.Exec(ctx,
		`INSERT INTO internal_transactions (id, debit_consumer_id, debit_amount_usd, exchange_rate_used, memo, status)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO NOTHING`,
		tx.ID, tx.DebitConsumerID, tx.DebitAmountUSD, tx.ExchangeRateUsed, tx.Memo, tx.Status,
	)
	if err != nil {
		return nil, false, fmt.Errorf("internal transaction insert failed: %w", err)
	}

	stored, err := s.GetByID(ctx, tx.ID)
	if err != nil {
		return nil, false, err
	}
	return stored, tag.RowsAffected() == 1, nil
}

func (s *InternalTransactionStore) GetByID(ctx context.Context, id uuid.UUID) (*models.InternalTransaction, error) {
	var tx models.InternalTransaction
	err := s.db.Db.QueryRow(ctx,
		`SELECT id, debit_consumer_id, debit_amount_usd, exchange_rate_used, memo, status, created_at
		 FROM internal_transactions WHERE id = $1`,
		id,
	).Scan(&tx.ID, &tx.DebitConsumerID, &tx.DebitAmountUSD, &tx.ExchangeRateUsed,
		&tx.Memo, &tx.Status, &tx.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInternalTransactionNotFound
		}
		return nil, fmt.Errorf("internal transaction fetch failed: %w", err)
	}
	return &tx, nil
}
