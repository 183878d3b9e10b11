package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/antipr000/NobaServer-sub008/internal/models"
)

// In-process implementations of the ledger contracts, used in tests and
// local runs without Postgres. They mirror the database semantics:
// get-or-create on the unique key, terminal statuses immutable.

type MemoryAuthorizationStore struct {
	mu      sync.Mutex
	records map[string]*models.Authorization // by idempotency key
}

func NewMemoryAuthorizationStore() *MemoryAuthorizationStore {
	return &MemoryAuthorizationStore{records: make(map[string]*models.Authorization)}
}

func (m *MemoryAuthorizationStore) GetOrCreate(ctx context.Context, attempt *models.Authorization) (*models.Authorization, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.records[attempt.IdempotencyKey]; ok {
		rec := *existing
		return &rec, false, nil
	}

	now := time.Now()
	rec := *attempt
	rec.InternalTransactionID = uuid.New()
	rec.Status = models.StatusPending
	rec.CreatedAt = now
	rec.UpdatedAt = now
	m.records[attempt.IdempotencyKey] = &rec

	out := rec
	return &out, true, nil
}

func (m *MemoryAuthorizationStore) GetByIdempotencyKey(ctx context.Context, key string) (*models.Authorization, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.records[key]
	if !ok {
		return nil, ErrAuthorizationNotFound
	}
	rec := *existing
	return &rec, nil
}

func (m *MemoryAuthorizationStore) UpdateStatus(ctx context.Context, externalTransactionID string, status models.AuthorizationStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, rec := range m.records {
		if rec.ExternalTransactionID == externalTransactionID && rec.Status == models.StatusPending {
			rec.Status = status
			rec.UpdatedAt = time.Now()
		}
	}
	return nil
}

type MemoryInternalTransactionStore struct {
	mu      sync.Mutex
	records map[uuid.UUID]*models.InternalTransaction
}

func NewMemoryInternalTransactionStore() *MemoryInternalTransactionStore {
	return &MemoryInternalTransactionStore{records: make(map[uuid.UUID]*models.InternalTransaction)}
}

func (m *MemoryInternalTransactionStore) GetOrCreate(ctx context.Context, tx *models.InternalTransaction) (*models.InternalTransaction, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.records[tx.ID]; ok {
		stored := *existing
		return &stored, false, nil
	}

	rec := *tx
	rec.CreatedAt = time.Now()
	m.records[tx.ID] = &rec

	out := rec
	return &out, true, nil
}

func (m *MemoryInternalTransactionStore) GetByID(ctx context.Context, id uuid.UUID) (*models.InternalTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.records[id]
	if !ok {
		return nil, ErrInternalTransactionNotFound
	}
	stored := *existing
	return &stored, nil
}

type memoryCard struct {
	externalUserID string
	consumerID     string
}

type MemoryCardStore struct {
	mu    sync.Mutex
	cards map[string]memoryCard // by card ID
}

func NewMemoryCardStore() *MemoryCardStore {
	return &MemoryCardStore{cards: make(map[string]memoryCard)}
}

// RegisterCard seeds a card to consumer mapping.
func (m *MemoryCardStore) RegisterCard(cardID, externalUserID, consumerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cards[cardID] = memoryCard{externalUserID: externalUserID, consumerID: consumerID}
}

func (m *MemoryCardStore) ResolveConsumer(ctx context.Context, cardID, externalUserID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	card, ok := m.cards[cardID]
	if !ok || card.externalUserID != externalUserID {
		return "", ErrCardNotFound
	}
	return card.consumerID, nil
}
