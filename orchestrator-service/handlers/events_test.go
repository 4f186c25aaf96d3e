package handlers

import (
	"context"
	"log/slog"
	"testing"

	"github.com/relaymart/order-system/shared/events"
	"github.com/relaymart/order-system/shared/saga"
	"github.com/stretchr/testify/assert"
)

func TestSagaAuditHandlers_HandlesLifecycleEvents(t *testing.T) {
	handler := NewSagaAuditHandlers(slog.Default())
	ctx := context.Background()

	event := events.NewEvent("demo-1", events.OrderSagaCompensatedEvent, events.OrderSagaEventData{
		OrderID: "demo-1",
		Status:  saga.SagaStatusCompensated,
		Reason:  "Stock reservation failed",
		Steps:   3,
	})

	assert.NoError(t, handler.Handle(ctx, event))
}

func TestSagaAuditHandlers_IgnoresUnknownEvents(t *testing.T) {
	handler := NewSagaAuditHandlers(slog.Default())

	event := events.NewEvent("demo-1", "something.unrelated", nil)
	assert.NoError(t, handler.Handle(context.Background(), event))
}

func TestSagaAuditHandlers_MalformedPayloadIsNotFatal(t *testing.T) {
	handler := NewSagaAuditHandlers(slog.Default())

	event := events.NewEvent("demo-1", events.OrderSagaCompletedEvent, []byte("{broken"))
	assert.NoError(t, handler.Handle(context.Background(), event))
}
