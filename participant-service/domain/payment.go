package domain

import (
	"context"

	"github.com/relaymart/order-system/shared/saga"
)

// ReasonPaymentRejected is the business failure reason returned when the
// payment step is forced to fail.
const ReasonPaymentRejected = "Payment gateway rejected transaction"

// PaymentParticipant holds funds for an order and releases them on cancel.
type PaymentParticipant struct {
	store ReservationStore
}

// NewPaymentParticipant creates the payment participant.
func NewPaymentParticipant(store ReservationStore) *PaymentParticipant {
	return &PaymentParticipant{store: store}
}

func (p *PaymentParticipant) Role() saga.StepName {
	return saga.StepPayment
}

// Reserve debits the order amount. The forced failure short-circuits before
// any state change.
func (p *PaymentParticipant) Reserve(ctx context.Context, cmd ReserveCommand) saga.StepOutcome {
	if cmd.ForceFail {
		return saga.Fail(ReasonPaymentRejected)
	}
	if cmd.Amount <= 0 {
		return saga.Fail("Amount must be positive")
	}
	if err := p.store.Save(ctx, Reservation{OrderID: cmd.OrderID, Amount: cmd.Amount}); err != nil {
		return saga.Fail(err.Error())
	}
	return saga.Succeed()
}

// Cancel releases a held payment. Idempotent by construction.
func (p *PaymentParticipant) Cancel(ctx context.Context, orderID string) saga.StepOutcome {
	if err := p.store.Delete(ctx, orderID); err != nil {
		return saga.Fail(err.Error())
	}
	return saga.Succeed()
}
