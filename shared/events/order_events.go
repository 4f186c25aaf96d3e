package events

import "github.com/relaymart/order-system/shared/saga"

// Saga lifecycle event types published by the orchestrator once a run reaches
// a terminal status. Publishing is best-effort and never changes the outcome
// of the run itself.
const (
	OrderSagaCompletedEvent   = "order.saga.completed"
	OrderSagaCompensatedEvent = "order.saga.compensated"
	OrderSagaFailedEvent      = "order.saga.failed"
)

// OrderSagaEventData is the payload of a saga lifecycle event.
type OrderSagaEventData struct {
	OrderID string          `json:"order_id"`
	Status  saga.SagaStatus `json:"status"`
	Reason  string          `json:"reason,omitempty"`
	Steps   int             `json:"steps"`
}

// SagaEventType maps a terminal saga status to its lifecycle event type.
func SagaEventType(status saga.SagaStatus) string {
	switch status {
	case saga.SagaStatusCompleted:
		return OrderSagaCompletedEvent
	case saga.SagaStatusCompensated:
		return OrderSagaCompensatedEvent
	default:
		return OrderSagaFailedEvent
	}
}
