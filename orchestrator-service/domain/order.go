package domain

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/relaymart/order-system/shared/saga"
)

// ErrOrderNotFound is returned by OrderStore.Get for unknown order IDs.
var ErrOrderNotFound = errors.New("order not found")

// ValidationError marks a request rejected before any saga step ran.
type ValidationError struct {
	Field  string
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Detail)
}

// IsValidationError reports whether err is a request validation failure.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// OrderRequest is the inbound order. Immutable once accepted; the force flags
// are the per-step failure injection consumed by the matching participant.
type OrderRequest struct {
	OrderID  string  `json:"order_id"`
	Amount   float64 `json:"amount"`
	SKU      string  `json:"sku"`
	Quantity int     `json:"quantity"`
	Slot     string  `json:"slot"`

	ForcePaymentFailure   bool `json:"force_payment_failure,omitempty"`
	ForceInventoryFailure bool `json:"force_inventory_failure,omitempty"`
	ForceDeliveryFailure  bool `json:"force_delivery_failure,omitempty"`
}

// Validate checks the request shape. A failure here stops the saga before
// step one, with no compensation needed.
func (r *OrderRequest) Validate() error {
	if r.OrderID == "" {
		return &ValidationError{Field: "order_id", Detail: "must not be empty"}
	}
	if r.Amount <= 0 {
		return &ValidationError{Field: "amount", Detail: "must be positive"}
	}
	if r.SKU == "" {
		return &ValidationError{Field: "sku", Detail: "must not be empty"}
	}
	if r.Quantity <= 0 {
		return &ValidationError{Field: "quantity", Detail: "must be positive"}
	}
	if r.Slot == "" {
		return &ValidationError{Field: "slot", Detail: "must not be empty"}
	}
	return nil
}

// ForceFailure returns the injection flag for a given step.
func (r *OrderRequest) ForceFailure(step saga.StepName) bool {
	switch step {
	case saga.StepPayment:
		return r.ForcePaymentFailure
	case saga.StepInventory:
		return r.ForceInventoryFailure
	case saga.StepDelivery:
		return r.ForceDeliveryFailure
	default:
		return false
	}
}

// OrderStore maps order IDs to terminal saga records. Implementations must be
// safe for concurrent use. Put overwrites an existing record for the same
// order ID (repeated order IDs are undefined behavior upstream; overwrite is
// this system's documented policy).
type OrderStore interface {
	Put(ctx context.Context, record *saga.SagaRecord) error
	Get(ctx context.Context, orderID string) (*saga.SagaRecord, error)
}

// ParticipantClient is the orchestrator's view of one participant. Both calls
// classify every participant and transport condition into a StepOutcome and
// never return a raw transport error.
type ParticipantClient interface {
	Role() saga.StepName
	Reserve(ctx context.Context, req *OrderRequest) saga.StepOutcome
	Cancel(ctx context.Context, orderID string) saga.StepOutcome
}
