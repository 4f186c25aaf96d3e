package domain

import (
	"context"

	"github.com/relaymart/order-system/shared/saga"
)

// ReserveCommand carries the data a participant needs to perform its step.
// OrderID is the correlation key tying the reservation to a later cancel.
// ForceFail is the test-injection mechanism: when set, the participant must
// short-circuit to a failed outcome without touching its state, and must do
// so deterministically.
type ReserveCommand struct {
	OrderID   string  `json:"order_id"`
	Amount    float64 `json:"amount,omitempty"`
	SKU       string  `json:"sku,omitempty"`
	Quantity  int     `json:"quantity,omitempty"`
	Slot      string  `json:"slot,omitempty"`
	ForceFail bool    `json:"force_fail,omitempty"`
}

// Participant is the contract every saga participant implements: one forward
// action and one compensation, both classified into a saga.StepOutcome.
// Cancel must be idempotent: cancelling an absent or already-cancelled
// reservation is a success, never a fault.
type Participant interface {
	Role() saga.StepName
	Reserve(ctx context.Context, cmd ReserveCommand) saga.StepOutcome
	Cancel(ctx context.Context, orderID string) saga.StepOutcome
}

// Reservation is one held side effect, keyed by order ID.
type Reservation struct {
	OrderID  string
	Amount   float64
	SKU      string
	Quantity int
	Slot     string
}

// ReservationStore holds a participant's reservations. Implementations must
// be safe for concurrent use. Delete of an unknown order ID is a no-op.
type ReservationStore interface {
	Save(ctx context.Context, reservation Reservation) error
	Delete(ctx context.Context, orderID string) error
	Get(ctx context.Context, orderID string) (Reservation, bool)
}
