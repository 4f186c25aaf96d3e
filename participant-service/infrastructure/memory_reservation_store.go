package infrastructure

import (
	"context"
	"sync"

	"github.com/relaymart/order-system/participant-service/domain"
)

// MemoryReservationStore keeps reservations in a process-local map. Lost on
// restart, which is acceptable for a stateless demo participant.
type MemoryReservationStore struct {
	mu           sync.RWMutex
	reservations map[string]domain.Reservation
}

// NewMemoryReservationStore creates an empty in-memory reservation store.
func NewMemoryReservationStore() *MemoryReservationStore {
	return &MemoryReservationStore{
		reservations: make(map[string]domain.Reservation),
	}
}

// Save stores a reservation, overwriting any previous hold for the order.
func (s *MemoryReservationStore) Save(_ context.Context, reservation domain.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reservations[reservation.OrderID] = reservation
	return nil
}

// Delete removes a reservation; deleting an unknown order ID is a no-op.
func (s *MemoryReservationStore) Delete(_ context.Context, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.reservations, orderID)
	return nil
}

// Get returns the reservation for an order, if held.
func (s *MemoryReservationStore) Get(_ context.Context, orderID string) (domain.Reservation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	reservation, ok := s.reservations[orderID]
	return reservation, ok
}
