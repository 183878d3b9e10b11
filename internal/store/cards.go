package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

var ErrCardNotFound = errors.New("card not registered to user")

// CardStore maps card-network card IDs to internal consumers.
type CardStore struct {
	db *Store
}

func NewCardStore(db *Store) *CardStore {
	return &CardStore{db: db}
}

// ResolveConsumer returns the consumer owning the card. The lookup must
// match both the card and the claimed external user: a card presented under
// someone else's user ID resolves to ErrCardNotFound.
func (s *CardStore) ResolveConsumer(ctx context.Context, cardID, externalUserID string) (string, error) {
	var consumerID string
	err := s.db.Db.QueryRow(ctx,
		`SELECT consumer_id FROM cards WHERE card_id = $1 AND external_user_id = $2`,
		cardID, externalUserID,
	).Scan(&consumerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrCardNotFound
		}
		return "", fmt.Errorf("card lookup failed: %w", err)
	}
	return consumerID, nil
}
