package domain

import (
	"context"

	"github.com/relaymart/order-system/shared/saga"
)

// Failure reasons surfaced by the delivery participant.
const (
	ReasonSlotUnavailable = "Delivery slot unavailable"
	ReasonSlotRequired    = "Slot is required"
)

// DeliveryParticipant holds a delivery time slot for an order.
type DeliveryParticipant struct {
	store ReservationStore
}

// NewDeliveryParticipant creates the delivery participant.
func NewDeliveryParticipant(store ReservationStore) *DeliveryParticipant {
	return &DeliveryParticipant{store: store}
}

func (p *DeliveryParticipant) Role() saga.StepName {
	return saga.StepDelivery
}

func (p *DeliveryParticipant) Reserve(ctx context.Context, cmd ReserveCommand) saga.StepOutcome {
	if cmd.ForceFail {
		return saga.Fail(ReasonSlotUnavailable)
	}
	if cmd.Slot == "" {
		return saga.Fail(ReasonSlotRequired)
	}
	if err := p.store.Save(ctx, Reservation{OrderID: cmd.OrderID, Slot: cmd.Slot}); err != nil {
		return saga.Fail(err.Error())
	}
	return saga.Succeed()
}

func (p *DeliveryParticipant) Cancel(ctx context.Context, orderID string) saga.StepOutcome {
	if err := p.store.Delete(ctx, orderID); err != nil {
		return saga.Fail(err.Error())
	}
	return saga.Succeed()
}
