package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/antipr000/NobaServer-sub008/internal/models"
)

var ErrAuthorizationNotFound = errors.New("authorization not found")

// AuthorizationStore persists card-network authorization attempts keyed by
// the partner-supplied idempotency key.
type AuthorizationStore struct {
	db *Store
}

func NewAuthorizationStore(db *Store) *AuthorizationStore {
	return &AuthorizationStore{db: db}
}

// GetOrCreate inserts a PENDING record with a freshly generated internal
// transaction ID, or returns the existing record when the idempotency key is
// already taken. The unique index is the only concurrency primitive: two
// racing deliveries both land here and exactly one insert wins; the loser's
// generated ID is discarded. The boolean reports whether this call created
// the record.
func (s *AuthorizationStore) GetOrCreate(ctx context.Context, attempt *models.Authorization) (*models.Authorization, bool, error) {
	internalID := uuid.New()

	tag, err := s.db.Db.Exec(ctx,
		`INSERT INTO pomelo_authorizations
			(external_transaction_id, idempotency_key, card_id, local_amount, local_currency,
			 settlement_amount_usd, internal_transaction_id, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (idempotency_key) DO NOTHING`,
		attempt.ExternalTransactionID, attempt.IdempotencyKey, attempt.CardID,
		attempt.LocalAmount, attempt.LocalCurrency, attempt.SettlementAmountUSD,
		internalID, models.StatusPending,
	)
	if err != nil {
		return nil, false, fmt.Errorf("authorization insert failed: %w", err)
	}

	record, err := s.GetByIdempotencyKey(ctx, attempt.IdempotencyKey)
	if err != nil {
		return nil, false, err
	}
	return record, tag.RowsAffected() == 1, nil
}

// GetByIdempotencyKey fetches the record for a partner idempotency key.
func (s *AuthorizationStore) GetByIdempotencyKey(ctx context.Context, key string) (*models.Authorization, error) {
	var rec models.Authorization
	err := s.db.Db.QueryRow(ctx,
		`SELECT external_transaction_id, idempotency_key, card_id, local_amount, local_currency,
			settlement_amount_usd, internal_transaction_id, status, created_at, updated_at
		 FROM pomelo_authorizations WHERE idempotency_key = $1`,
		key,
	).Scan(&rec.ExternalTransactionID, &rec.IdempotencyKey, &rec.CardID, &rec.LocalAmount,
		&rec.LocalCurrency, &rec.SettlementAmountUSD, &rec.InternalTransactionID,
		&rec.Status, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAuthorizationNotFound
		}
		return nil, fmt.Errorf("authorization fetch failed: %w", err)
	}
	return &rec, nil
}

// UpdateStatus moves a PENDING record to a terminal status. Terminal records
// are immutable: if the record already left PENDING the update matches zero
// rows and this is a no-op, not an error.
func (s *AuthorizationStore) UpdateStatus(ctx context.Context, externalTransactionID string, status models.AuthorizationStatus) error {
	_, err := s.db.Db.Exec(ctx,
		`UPDATE pomelo_authorizations
		 SET status = $1, updated_at = now()
		 WHERE external_transaction_id = $2 AND status = $3`,
		status, externalTransactionID, models.StatusPending,
	)
	if err != nil {
		return fmt.Errorf("authorization status update failed: %w", err)
	}
	return nil
}
