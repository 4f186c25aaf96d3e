package handlers

import (
	"context"
	"log/slog"

	"github.com/relaymart/order-system/shared/events"
	"github.com/relaymart/order-system/shared/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// SagaAuditHandlers consumes saga lifecycle events and records them as an
// audit trail: a structured log line plus an outcome counter. Consumption is
// observational only; it never feeds back into saga execution.
type SagaAuditHandlers struct {
	logger *slog.Logger
}

// NewSagaAuditHandlers creates the audit event handlers.
func NewSagaAuditHandlers(logger *slog.Logger) *SagaAuditHandlers {
	return &SagaAuditHandlers{logger: logger}
}

// HandlerID returns the unique identifier for this event handler.
func (h *SagaAuditHandlers) HandlerID() string {
	return "orchestrator-saga-audit"
}

// Handle implements the events.EventHandler interface.
func (h *SagaAuditHandlers) Handle(ctx context.Context, event *events.Event) error {
	switch event.EventType {
	case events.OrderSagaCompletedEvent, events.OrderSagaCompensatedEvent, events.OrderSagaFailedEvent:
	default:
		// Unknown event type, ignore.
		return nil
	}

	var data events.OrderSagaEventData
	if err := event.UnmarshalPayload(&data); err != nil {
		h.logger.Warn("undecodable saga lifecycle event",
			"event_type", event.EventType,
			"error", err,
		)
		return nil
	}

	telemetry.RecordCounter(ctx, "saga_audit_events_total", "Audited saga lifecycle events", 1,
		attribute.String("event_type", event.EventType),
		attribute.String("status", string(data.Status)),
	)

	h.logger.Info("saga audit",
		"order_id", data.OrderID,
		"status", string(data.Status),
		"reason", data.Reason,
		"steps", data.Steps,
	)
	return nil
}
