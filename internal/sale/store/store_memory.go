package store

import (
	"context"
	"math/big"
	"sync"

	"crowdgate/internal/sale/models"
	"crowdgate/pkg/platform/sentinel"
)

// InMemoryStore keeps the ledger and purchase log in process memory. Values
// are deep-copied on every boundary so callers never alias store state.
type InMemoryStore struct {
	mu        sync.RWMutex
	ledger    *models.Ledger
	purchases []models.PurchaseReceipt
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Init(_ context.Context, ledger *models.Ledger) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ledger != nil {
		return sentinel.ErrConflict
	}
	s.ledger = ledger.Clone()
	return nil
}

func (s *InMemoryStore) Load(_ context.Context) (*models.Ledger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.ledger == nil {
		return nil, sentinel.ErrNotFound
	}
	return s.ledger.Clone(), nil
}

func (s *InMemoryStore) Save(_ context.Context, ledger *models.Ledger) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ledger == nil {
		return sentinel.ErrNotFound
	}
	s.ledger = ledger.Clone()
	return nil
}

func (s *InMemoryStore) AppendPurchase(_ context.Context, receipt models.PurchaseReceipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.purchases = append(s.purchases, copyReceipt(receipt))
	return nil
}

func (s *InMemoryStore) ListPurchases(_ context.Context) ([]models.PurchaseReceipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.PurchaseReceipt, 0, len(s.purchases))
	for _, r := range s.purchases {
		out = append(out, copyReceipt(r))
	}
	return out, nil
}

func copyReceipt(r models.PurchaseReceipt) models.PurchaseReceipt {
	r.Value = new(big.Int).Set(r.Value)
	r.Tokens = new(big.Int).Set(r.Tokens)
	r.Refund = new(big.Int).Set(r.Refund)
	return r
}
