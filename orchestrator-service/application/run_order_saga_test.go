package application

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/relaymart/order-system/orchestrator-service/domain"
	"github.com/relaymart/order-system/orchestrator-service/infrastructure"
	"github.com/relaymart/order-system/shared/events"
	sharedinfra "github.com/relaymart/order-system/shared/infrastructure"
	"github.com/relaymart/order-system/shared/saga"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordedCall is one observed participant invocation.
type recordedCall struct {
	Step      saga.StepName
	Operation saga.Operation
	OrderID   string
}

// callLog is shared across the fake clients so tests can assert global
// ordering across participants.
type callLog struct {
	mu    sync.Mutex
	calls []recordedCall
}

func (l *callLog) add(call recordedCall) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, call)
}

func (l *callLog) all() []recordedCall {
	l.mu.Lock()
	defer l.mu.Unlock()
	calls := make([]recordedCall, len(l.calls))
	copy(calls, l.calls)
	return calls
}

// fakeParticipantClient honors the request's force-failure flag for its own
// role and can additionally be told to fail its cancel.
type fakeParticipantClient struct {
	role       saga.StepName
	log        *callLog
	failCancel bool
}

func (c *fakeParticipantClient) Role() saga.StepName {
	return c.role
}

func (c *fakeParticipantClient) Reserve(_ context.Context, req *domain.OrderRequest) saga.StepOutcome {
	c.log.add(recordedCall{Step: c.role, Operation: saga.OperationReserve, OrderID: req.OrderID})
	if req.ForceFailure(c.role) {
		return saga.Fail(string(c.role) + " rejected")
	}
	return saga.Succeed()
}

func (c *fakeParticipantClient) Cancel(_ context.Context, orderID string) saga.StepOutcome {
	c.log.add(recordedCall{Step: c.role, Operation: saga.OperationCancel, OrderID: orderID})
	if c.failCancel {
		return saga.Fail(string(c.role) + " cancel unavailable")
	}
	return saga.Succeed()
}

type sagaFixture struct {
	engine  *RunOrderSaga
	store   *infrastructure.MemoryOrderStore
	bus     *sharedinfra.MemoryBus
	log     *callLog
	clients map[saga.StepName]*fakeParticipantClient
}

func newFixture() *sagaFixture {
	log := &callLog{}
	clients := map[saga.StepName]*fakeParticipantClient{}
	var clientList []domain.ParticipantClient
	for _, step := range saga.Steps() {
		client := &fakeParticipantClient{role: step, log: log}
		clients[step] = client
		clientList = append(clientList, client)
	}

	store := infrastructure.NewMemoryOrderStore()
	bus := sharedinfra.NewMemoryBus()
	engine := NewRunOrderSaga(clientList, store, bus, slog.Default())

	return &sagaFixture{engine: engine, store: store, bus: bus, log: log, clients: clients}
}

func demoRequest() *domain.OrderRequest {
	return &domain.OrderRequest{
		OrderID:  "demo-1",
		Amount:   10,
		SKU:      "SKU-1",
		Quantity: 1,
		Slot:     "2024-05-20T10:00",
	}
}

func TestExecute_AllStepsSucceed(t *testing.T) {
	f := newFixture()

	record, err := f.engine.Execute(context.Background(), demoRequest())
	require.NoError(t, err)

	assert.Equal(t, saga.SagaStatusCompleted, record.Status)
	assert.Empty(t, record.Reason)
	require.Len(t, record.Steps, 3)
	for i, step := range saga.Steps() {
		assert.Equal(t, step, record.Steps[i].Step)
		assert.Equal(t, saga.OperationReserve, record.Steps[i].Operation)
		assert.True(t, record.Steps[i].Outcome.Succeeded())
	}

	// No compensation was observed anywhere.
	for _, call := range f.log.all() {
		assert.Equal(t, saga.OperationReserve, call.Operation)
	}
}

func TestExecute_FailureAtEachStepCompensatesInReverse(t *testing.T) {
	tests := []struct {
		name        string
		force       func(req *domain.OrderRequest)
		wantCalls   []recordedCall
		wantEntries int
	}{
		{
			name:  "payment fails first, nothing to compensate",
			force: func(req *domain.OrderRequest) { req.ForcePaymentFailure = true },
			wantCalls: []recordedCall{
				{Step: saga.StepPayment, Operation: saga.OperationReserve, OrderID: "demo-1"},
			},
			wantEntries: 1,
		},
		{
			name:  "inventory fails, payment is cancelled",
			force: func(req *domain.OrderRequest) { req.ForceInventoryFailure = true },
			wantCalls: []recordedCall{
				{Step: saga.StepPayment, Operation: saga.OperationReserve, OrderID: "demo-1"},
				{Step: saga.StepInventory, Operation: saga.OperationReserve, OrderID: "demo-1"},
				{Step: saga.StepPayment, Operation: saga.OperationCancel, OrderID: "demo-1"},
			},
			wantEntries: 3,
		},
		{
			name:  "delivery fails, inventory then payment are cancelled",
			force: func(req *domain.OrderRequest) { req.ForceDeliveryFailure = true },
			wantCalls: []recordedCall{
				{Step: saga.StepPayment, Operation: saga.OperationReserve, OrderID: "demo-1"},
				{Step: saga.StepInventory, Operation: saga.OperationReserve, OrderID: "demo-1"},
				{Step: saga.StepDelivery, Operation: saga.OperationReserve, OrderID: "demo-1"},
				{Step: saga.StepInventory, Operation: saga.OperationCancel, OrderID: "demo-1"},
				{Step: saga.StepPayment, Operation: saga.OperationCancel, OrderID: "demo-1"},
			},
			wantEntries: 5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			req := demoRequest()
			tt.force(req)

			record, err := f.engine.Execute(context.Background(), req)
			require.NoError(t, err)

			assert.Equal(t, saga.SagaStatusCompensated, record.Status)
			assert.Equal(t, tt.wantCalls, f.log.all())
			assert.Len(t, record.Steps, tt.wantEntries)
		})
	}
}

func TestExecute_InventoryFailureScenario(t *testing.T) {
	// The named demo scenario: payment succeeds, inventory is forced to
	// fail, delivery is never attempted and payment is cancelled.
	f := newFixture()
	req := demoRequest()
	req.ForceInventoryFailure = true

	record, err := f.engine.Execute(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, saga.SagaStatusCompensated, record.Status)
	require.Len(t, record.Steps, 3)

	assert.Equal(t, saga.StepPayment, record.Steps[0].Step)
	assert.True(t, record.Steps[0].Outcome.Succeeded())

	assert.Equal(t, saga.StepInventory, record.Steps[1].Step)
	assert.True(t, record.Steps[1].Outcome.Failed())

	assert.Equal(t, saga.StepPayment, record.Steps[2].Step)
	assert.Equal(t, saga.OperationCancel, record.Steps[2].Operation)
	assert.True(t, record.Steps[2].Outcome.Succeeded())

	for _, call := range f.log.all() {
		if call.Step == saga.StepDelivery {
			t.Fatalf("delivery must never be attempted, saw %+v", call)
		}
	}
}

func TestExecute_CompensationIsBestEffort(t *testing.T) {
	// Steps 1 and 2 succeed, step 3 fails, and the cancel of step 2 itself
	// fails: the cancel of step 1 must still be attempted.
	f := newFixture()
	f.clients[saga.StepInventory].failCancel = true

	req := demoRequest()
	req.ForceDeliveryFailure = true

	record, err := f.engine.Execute(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, saga.SagaStatusCompensated, record.Status)

	calls := f.log.all()
	require.Len(t, calls, 5)
	assert.Equal(t, recordedCall{Step: saga.StepInventory, Operation: saga.OperationCancel, OrderID: "demo-1"}, calls[3])
	assert.Equal(t, recordedCall{Step: saga.StepPayment, Operation: saga.OperationCancel, OrderID: "demo-1"}, calls[4])

	// The failed compensation is surfaced inside the record, not raised.
	require.Len(t, record.Steps, 5)
	assert.True(t, record.Steps[3].Outcome.Failed())
	assert.True(t, record.Steps[4].Outcome.Succeeded())
}

func TestExecute_ValidationStopsBeforeAnyStep(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(req *domain.OrderRequest)
	}{
		{"empty order_id", func(req *domain.OrderRequest) { req.OrderID = "" }},
		{"non-positive amount", func(req *domain.OrderRequest) { req.Amount = 0 }},
		{"empty sku", func(req *domain.OrderRequest) { req.SKU = "" }},
		{"non-positive quantity", func(req *domain.OrderRequest) { req.Quantity = -1 }},
		{"empty slot", func(req *domain.OrderRequest) { req.Slot = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			req := demoRequest()
			tt.mutate(req)

			_, err := f.engine.Execute(context.Background(), req)
			require.Error(t, err)
			assert.True(t, domain.IsValidationError(err))
			assert.Empty(t, f.log.all(), "no participant may be called on validation failure")
		})
	}
}

func TestExecute_PersistsTerminalRecord(t *testing.T) {
	f := newFixture()

	record, err := f.engine.Execute(context.Background(), demoRequest())
	require.NoError(t, err)

	stored, err := f.store.Get(context.Background(), "demo-1")
	require.NoError(t, err)
	assert.Equal(t, record.Status, stored.Status)
	require.Len(t, stored.Steps, len(record.Steps))
	for i := range record.Steps {
		assert.Equal(t, record.Steps[i].Step, stored.Steps[i].Step)
		assert.Equal(t, record.Steps[i].Outcome, stored.Steps[i].Outcome)
	}
}

func TestExecute_PublishesTerminalLifecycleEvent(t *testing.T) {
	f := newFixture()

	_, err := f.engine.Execute(context.Background(), demoRequest())
	require.NoError(t, err)

	history := f.bus.History()
	require.Len(t, history, 1)
	assert.Equal(t, events.OrderSagaCompletedEvent, history[0].EventType)

	req := demoRequest()
	req.OrderID = "demo-2"
	req.ForceInventoryFailure = true
	_, err = f.engine.Execute(context.Background(), req)
	require.NoError(t, err)

	history = f.bus.History()
	require.Len(t, history, 2)
	assert.Equal(t, events.OrderSagaCompensatedEvent, history[1].EventType)
}

func TestExecute_PublishFailureDoesNotChangeOutcome(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.bus.Subscribe(context.Background(), events.NewEventHandlerFunc("broken", func(context.Context, *events.Event) error {
		return errors.New("broker down")
	})))

	record, err := f.engine.Execute(context.Background(), demoRequest())
	require.NoError(t, err)
	assert.Equal(t, saga.SagaStatusCompleted, record.Status)
}

func TestExecute_RepeatedOrderIDOverwrites(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.engine.Execute(ctx, demoRequest())
	require.NoError(t, err)

	req := demoRequest()
	req.ForceDeliveryFailure = true
	_, err = f.engine.Execute(ctx, req)
	require.NoError(t, err)

	stored, err := f.store.Get(ctx, "demo-1")
	require.NoError(t, err)
	assert.Equal(t, saga.SagaStatusCompensated, stored.Status)
}

func TestExecute_ConcurrentRunsForDifferentOrders(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := demoRequest()
			req.OrderID = "order-" + string(rune('a'+i))
			record, err := f.engine.Execute(ctx, req)
			if assert.NoError(t, err) {
				assert.Equal(t, saga.SagaStatusCompleted, record.Status)
			}
		}(i)
	}
	wg.Wait()
}
