package domain

import (
	"context"

	"github.com/relaymart/order-system/shared/saga"
)

// Failure reasons surfaced by the inventory participant.
const (
	ReasonStockRejected    = "Stock reservation failed"
	ReasonQuantityRequired = "Quantity is required"
)

// InventoryParticipant places a stock hold for an order.
type InventoryParticipant struct {
	store ReservationStore
}

// NewInventoryParticipant creates the inventory participant.
func NewInventoryParticipant(store ReservationStore) *InventoryParticipant {
	return &InventoryParticipant{store: store}
}

func (p *InventoryParticipant) Role() saga.StepName {
	return saga.StepInventory
}

func (p *InventoryParticipant) Reserve(ctx context.Context, cmd ReserveCommand) saga.StepOutcome {
	if cmd.ForceFail {
		return saga.Fail(ReasonStockRejected)
	}
	if cmd.Quantity <= 0 {
		return saga.Fail(ReasonQuantityRequired)
	}
	if err := p.store.Save(ctx, Reservation{OrderID: cmd.OrderID, SKU: cmd.SKU, Quantity: cmd.Quantity}); err != nil {
		return saga.Fail(err.Error())
	}
	return saga.Succeed()
}

func (p *InventoryParticipant) Cancel(ctx context.Context, orderID string) saga.StepOutcome {
	if err := p.store.Delete(ctx, orderID); err != nil {
		return saga.Fail(err.Error())
	}
	return saga.Succeed()
}
