package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	"github.com/relaymart/order-system/orchestrator-service/domain"
	"github.com/relaymart/order-system/shared/events"
	"github.com/relaymart/order-system/shared/models"
	"github.com/relaymart/order-system/shared/saga"
	"github.com/relaymart/order-system/shared/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// RunOrderSaga drives one order through the payment -> inventory -> delivery
// sequence. Steps run strictly in order; the compensation stack records each
// success, and the first failure triggers best-effort cancels in reverse
// order of completion. Each run produces exactly one terminal SagaRecord.
type RunOrderSaga struct {
	clients        map[saga.StepName]domain.ParticipantClient
	store          domain.OrderStore
	eventPublisher events.Publisher
	logger         *slog.Logger
}

// NewRunOrderSaga creates the saga engine. The client set must cover every
// step returned by saga.Steps().
func NewRunOrderSaga(
	clients []domain.ParticipantClient,
	store domain.OrderStore,
	eventPublisher events.Publisher,
	logger *slog.Logger,
) *RunOrderSaga {
	byRole := make(map[saga.StepName]domain.ParticipantClient, len(clients))
	for _, client := range clients {
		byRole[client.Role()] = client
	}
	return &RunOrderSaga{
		clients:        byRole,
		store:          store,
		eventPublisher: eventPublisher,
		logger:         logger,
	}
}

// Execute runs the saga to a terminal status and persists the record.
// A *domain.ValidationError means no step ran; any other error is an
// orchestrator fault after step state may already have changed.
func (uc *RunOrderSaga) Execute(ctx context.Context, req *domain.OrderRequest) (*saga.SagaRecord, error) {
	start := time.Now()
	ctx, span := telemetry.StartSpan(ctx, "run_order_saga",
		trace.WithAttributes(
			attribute.String("order_id", req.OrderID),
			attribute.Float64("amount", req.Amount),
			attribute.String("sku", req.SKU),
		),
	)
	defer span.End()

	if err := req.Validate(); err != nil {
		span.RecordError(err)
		return nil, err
	}
	for _, step := range saga.Steps() {
		if _, ok := uc.clients[step]; !ok {
			return nil, errors.Errorf("no participant client for step %s", step)
		}
	}

	record := saga.NewRecord(req.OrderID)
	stack := &saga.CompensationStack{}

	for _, step := range saga.Steps() {
		outcome := uc.reserve(ctx, step, req)
		record.Append(step, saga.OperationReserve, outcome)

		if outcome.Failed() {
			uc.logger.Warn("saga step failed, compensating",
				"order_id", req.OrderID,
				"step", string(step),
				"reason", outcome.Reason,
			)
			if err := record.MarkFailed(outcome.Reason); err != nil {
				return nil, errors.Wrap(err, "failed to mark saga failed")
			}
			if err := uc.compensate(ctx, record, stack); err != nil {
				return nil, err
			}
			break
		}

		stack.Push(saga.CompensationEntry{Step: step, OrderID: req.OrderID})
	}

	if record.Status == saga.SagaStatusPending {
		if err := record.MarkCompleted(); err != nil {
			return nil, errors.Wrap(err, "failed to mark saga completed")
		}
	}

	if err := uc.store.Put(ctx, record); err != nil {
		return nil, errors.Wrap(err, "failed to persist saga record")
	}

	uc.publishLifecycleEvent(ctx, record)

	telemetry.RecordCounter(ctx, "order_sagas_total", "Total order saga runs", 1,
		attribute.String("status", string(record.Status)),
	)
	telemetry.RecordHistogram(ctx, "order_saga_duration_seconds", "Order saga duration", time.Since(start).Seconds(),
		attribute.String("status", string(record.Status)),
	)

	uc.logger.Info("saga finished",
		"order_id", req.OrderID,
		"status", string(record.Status),
		"steps", len(record.Steps),
	)
	return record, nil
}

func (uc *RunOrderSaga) reserve(ctx context.Context, step saga.StepName, req *domain.OrderRequest) saga.StepOutcome {
	outcome := uc.clients[step].Reserve(ctx, req)
	telemetry.RecordCounter(ctx, "saga_steps_total", "Total saga step calls", 1,
		attribute.String("step", string(step)),
		attribute.String("operation", string(saga.OperationReserve)),
		attribute.String("outcome", string(outcome.Status)),
	)
	return outcome
}

// compensate pops the stack in LIFO order and cancels every entry. A failed
// cancel is logged into the record and does not stop the remaining entries;
// there is no retry.
func (uc *RunOrderSaga) compensate(ctx context.Context, record *saga.SagaRecord, stack *saga.CompensationStack) error {
	for {
		entry, ok := stack.Pop()
		if !ok {
			break
		}

		outcome := uc.clients[entry.Step].Cancel(ctx, entry.OrderID)
		record.Append(entry.Step, saga.OperationCancel, outcome)
		telemetry.RecordCounter(ctx, "saga_steps_total", "Total saga step calls", 1,
			attribute.String("step", string(entry.Step)),
			attribute.String("operation", string(saga.OperationCancel)),
			attribute.String("outcome", string(outcome.Status)),
		)

		if outcome.Failed() {
			uc.logger.Error("compensation failed",
				"order_id", entry.OrderID,
				"step", string(entry.Step),
				"reason", outcome.Reason,
			)
		}
	}

	return errors.Wrap(record.MarkCompensated(), "failed to mark saga compensated")
}

// publishLifecycleEvent emits the terminal event. Best-effort: a publish
// failure is logged and never alters the saga outcome.
func (uc *RunOrderSaga) publishLifecycleEvent(ctx context.Context, record *saga.SagaRecord) {
	if uc.eventPublisher == nil {
		return
	}

	event := events.NewEvent(
		models.ID(record.OrderID),
		events.SagaEventType(record.Status),
		events.OrderSagaEventData{
			OrderID: record.OrderID,
			Status:  record.Status,
			Reason:  record.Reason,
			Steps:   len(record.Steps),
		},
	).WithCorrelationID(models.ID(record.OrderID))

	if err := uc.eventPublisher.Publish(ctx, event); err != nil {
		uc.logger.Error("failed to publish saga lifecycle event",
			"order_id", record.OrderID,
			"event_type", event.EventType,
			"error", err,
		)
	}
}
