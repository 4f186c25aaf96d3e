package application

import (
	"context"

	"github.com/relaymart/order-system/orchestrator-service/domain"
	"github.com/relaymart/order-system/shared/saga"
	"github.com/relaymart/order-system/shared/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// GetOrder answers status queries for finished saga runs.
type GetOrder struct {
	store domain.OrderStore
}

// NewGetOrder creates the GetOrder use case.
func NewGetOrder(store domain.OrderStore) *GetOrder {
	return &GetOrder{store: store}
}

// Execute returns the stored record or domain.ErrOrderNotFound.
func (uc *GetOrder) Execute(ctx context.Context, orderID string) (*saga.SagaRecord, error) {
	ctx, span := telemetry.StartSpan(ctx, "get_order",
		trace.WithAttributes(attribute.String("order_id", orderID)),
	)
	defer span.End()

	record, err := uc.store.Get(ctx, orderID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return record, nil
}
