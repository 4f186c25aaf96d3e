package config

import (
	"github.com/pkg/errors"
	"github.com/relaymart/order-system/participant-service/domain"
	"github.com/relaymart/order-system/participant-service/handlers"
	"github.com/relaymart/order-system/participant-service/infrastructure"
)

type Dependencies struct {
	// Stores
	ReservationStore *infrastructure.MemoryReservationStore

	// Domain
	Participant domain.Participant

	// HTTP Handlers
	ParticipantHandlers *handlers.ParticipantHandlers
}

// BuildDependencies wires a participant for the configured role.
func BuildDependencies(config *Config) (*Dependencies, error) {
	deps := &Dependencies{}

	deps.ReservationStore = infrastructure.NewMemoryReservationStore()

	switch config.Role {
	case "payment":
		deps.Participant = domain.NewPaymentParticipant(deps.ReservationStore)
	case "inventory":
		deps.Participant = domain.NewInventoryParticipant(deps.ReservationStore)
	case "delivery":
		deps.Participant = domain.NewDeliveryParticipant(deps.ReservationStore)
	default:
		return nil, errors.Errorf("unknown participant role %q", config.Role)
	}

	deps.ParticipantHandlers = handlers.NewParticipantHandlers(deps.Participant)

	return deps, nil
}

// Close releases dependency resources; the in-memory store has none.
func (d *Dependencies) Close() error {
	return nil
}
