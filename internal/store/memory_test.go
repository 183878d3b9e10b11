package store_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/antipr000/NobaServer-sub008/internal/models"
	"github.com/antipr000/NobaServer-sub008/internal/store"
)

func newAttempt(key string) *models.Authorization {
	return &models.Authorization{
		ExternalTransactionID: "tx-" + key,
		IdempotencyKey:        key,
		CardID:                "card-1",
		LocalAmount:           decimal.RequireFromString("5000"),
		LocalCurrency:         "COP",
		SettlementAmountUSD:   decimal.RequireFromString("1.25"),
	}
}

func TestAuthorizationGetOrCreateIdempotency(t *testing.T) {
	s := store.NewMemoryAuthorizationStore()
	ctx := context.Background()

	first, created, err := s.GetOrCreate(ctx, newAttempt("key-1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !created {
		t.Fatal("expected created=true on first call")
	}
	if first.Status != models.StatusPending {
		t.Fatalf("expected PENDING, got %s", first.Status)
	}
	if first.InternalTransactionID == uuid.Nil {
		t.Fatal("expected a generated internal transaction ID")
	}

	// Second call with the same key returns the existing record, same ID.
	second, created, err := s.GetOrCreate(ctx, newAttempt("key-1"))
	if err != nil {
		t.Fatalf("unexpected error on retry: %v", err)
	}
	if created {
		t.Fatal("expected created=false on duplicate call")
	}
	if second.InternalTransactionID != first.InternalTransactionID {
		t.Fatal("retry must not generate a new internal transaction ID")
	}
	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Fatal("createdAt should not change on idempotent create")
	}
}

func TestAuthorizationDistinctKeysDistinctInternalIDs(t *testing.T) {
	s := store.NewMemoryAuthorizationStore()
	ctx := context.Background()

	a, _, _ := s.GetOrCreate(ctx, newAttempt("key-a"))
	b, _, _ := s.GetOrCreate(ctx, newAttempt("key-b"))
	if a.InternalTransactionID == b.InternalTransactionID {
		t.Fatal("distinct keys must never share an internal transaction ID")
	}
}

func TestUpdateStatusTerminalImmutable(t *testing.T) {
	s := store.NewMemoryAuthorizationStore()
	ctx := context.Background()

	rec, _, _ := s.GetOrCreate(ctx, newAttempt("key-1"))

	if err := s.UpdateStatus(ctx, rec.ExternalTransactionID, models.StatusApproved); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Second transition is a no-op, not an error.
	if err := s.UpdateStatus(ctx, rec.ExternalTransactionID, models.StatusInsufficientFunds); err != nil {
		t.Fatalf("unexpected error on repeat update: %v", err)
	}

	stored, err := s.GetByIdempotencyKey(ctx, "key-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored.Status != models.StatusApproved {
		t.Fatalf("terminal status must not be overwritten, got %s", stored.Status)
	}
}

func TestGetByIdempotencyKeyNotFound(t *testing.T) {
	s := store.NewMemoryAuthorizationStore()
	if _, err := s.GetByIdempotencyKey(context.Background(), "missing"); err != store.ErrAuthorizationNotFound {
		t.Fatalf("expected ErrAuthorizationNotFound, got %v", err)
	}
}

func TestInternalTransactionGetOrCreateIdempotency(t *testing.T) {
	s := store.NewMemoryInternalTransactionStore()
	ctx := context.Background()

	tx := &models.InternalTransaction{
		ID:               uuid.New(),
		DebitConsumerID:  "consumer-1",
		DebitAmountUSD:   decimal.RequireFromString("50.00"),
		ExchangeRateUsed: decimal.RequireFromString("100"),
		Memo:             "Card authorization tx-1 at Coffee",
		Status:           models.InternalTransactionInitiated,
	}

	first, created, err := s.GetOrCreate(ctx, tx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !created {
		t.Fatal("expected created=true on first call")
	}

	// Colliding ID resolves to the stored transaction.
	collision := &models.InternalTransaction{
		ID:              tx.ID,
		DebitConsumerID: "consumer-other",
		DebitAmountUSD:  decimal.RequireFromString("99.99"),
	}
	second, created, err := s.GetOrCreate(ctx, collision)
	if err != nil {
		t.Fatalf("unexpected error on collision: %v", err)
	}
	if created {
		t.Fatal("expected created=false on colliding ID")
	}
	if !second.DebitAmountUSD.Equal(first.DebitAmountUSD) {
		t.Fatal("collision must return the original transaction unchanged")
	}
}

func TestResolveConsumer(t *testing.T) {
	s := store.NewMemoryCardStore()
	s.RegisterCard("card-1", "user-1", "consumer-1")
	ctx := context.Background()

	consumerID, err := s.ResolveConsumer(ctx, "card-1", "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if consumerID != "consumer-1" {
		t.Fatalf("expected consumer-1, got %s", consumerID)
	}

	// Card presented under someone else's user must not resolve.
	if _, err := s.ResolveConsumer(ctx, "card-1", "user-2"); err != store.ErrCardNotFound {
		t.Fatalf("expected ErrCardNotFound for ownership mismatch, got %v", err)
	}
	if _, err := s.ResolveConsumer(ctx, "card-missing", "user-1"); err != store.ErrCardNotFound {
		t.Fatalf("expected ErrCardNotFound for unknown card, got %v", err)
	}
}
