package infrastructure

import (
	"context"
	"sync"

	"github.com/relaymart/order-system/orchestrator-service/domain"
	"github.com/relaymart/order-system/shared/saga"
)

// MemoryOrderStore is the default, non-durable order store. Records live in a
// process-wide map and are lost on restart; the Postgres store covers
// deployments that need records to survive restarts.
type MemoryOrderStore struct {
	mu      sync.RWMutex
	records map[string]*saga.SagaRecord
}

// NewMemoryOrderStore creates an empty in-memory order store.
func NewMemoryOrderStore() *MemoryOrderStore {
	return &MemoryOrderStore{
		records: make(map[string]*saga.SagaRecord),
	}
}

// Put stores a record, overwriting any record under the same order ID.
func (s *MemoryOrderStore) Put(_ context.Context, record *saga.SagaRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.OrderID] = record.Clone()
	return nil
}

// Get returns a copy of the stored record or domain.ErrOrderNotFound.
func (s *MemoryOrderStore) Get(_ context.Context, orderID string) (*saga.SagaRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[orderID]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return record.Clone(), nil
}

// Close is a no-op; the map needs no teardown.
func (s *MemoryOrderStore) Close() error {
	return nil
}
