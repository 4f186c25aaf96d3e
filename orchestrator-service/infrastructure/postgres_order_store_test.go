package infrastructure

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/relaymart/order-system/orchestrator-service/domain"
	"github.com/relaymart/order-system/shared/saga"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*PostgresOrderStore, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		db.Close()
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	return NewPostgresOrderStore(sqlx.NewDb(db, "sqlmock")), mock
}

func TestPostgresOrderStore_InitSchema(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS order_sagas").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS order_saga_steps").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.InitSchema(context.Background()))
}

func TestPostgresOrderStore_PutWritesRecordAndSteps(t *testing.T) {
	store, mock := newMockStore(t)

	record := saga.NewRecord("demo-1")
	record.Append(saga.StepPayment, saga.OperationReserve, saga.Succeed())
	record.Append(saga.StepInventory, saga.OperationReserve, saga.Fail("Stock reservation failed"))
	record.Append(saga.StepPayment, saga.OperationCancel, saga.Succeed())
	require.NoError(t, record.MarkFailed("Stock reservation failed"))
	require.NoError(t, record.MarkCompensated())

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO order_sagas").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM order_saga_steps").
		WithArgs("demo-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	for range record.Steps {
		mock.ExpectExec("INSERT INTO order_saga_steps").
			WillReturnResult(sqlmock.NewResult(1, 1))
	}
	mock.ExpectCommit()

	require.NoError(t, store.Put(context.Background(), record))
}

func TestPostgresOrderStore_GetRebuildsRecord(t *testing.T) {
	store, mock := newMockStore(t)

	started := time.Now().Add(-time.Minute)
	finished := time.Now()

	mock.ExpectQuery("SELECT order_id, status, reason, started_at, finished_at").
		WithArgs("demo-1").
		WillReturnRows(sqlmock.NewRows([]string{"order_id", "status", "reason", "started_at", "finished_at"}).
			AddRow("demo-1", "compensated", "Stock reservation failed", started, finished))
	mock.ExpectQuery("SELECT order_id, position, step, operation, outcome, outcome_reason, recorded_at").
		WithArgs("demo-1").
		WillReturnRows(sqlmock.NewRows([]string{"order_id", "position", "step", "operation", "outcome", "outcome_reason", "recorded_at"}).
			AddRow("demo-1", 0, "payment", "reserve", "succeeded", nil, started).
			AddRow("demo-1", 1, "inventory", "reserve", "failed", "Stock reservation failed", started).
			AddRow("demo-1", 2, "payment", "cancel", "succeeded", nil, finished))

	record, err := store.Get(context.Background(), "demo-1")
	require.NoError(t, err)

	assert.Equal(t, saga.SagaStatusCompensated, record.Status)
	assert.Equal(t, "Stock reservation failed", record.Reason)
	require.Len(t, record.Steps, 3)
	assert.Equal(t, saga.StepPayment, record.Steps[0].Step)
	assert.Equal(t, saga.OperationCancel, record.Steps[2].Operation)
	assert.True(t, record.Steps[1].Outcome.Failed())
}

func TestPostgresOrderStore_GetUnknown(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT order_id, status, reason, started_at, finished_at").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"order_id", "status", "reason", "started_at", "finished_at"}))

	_, err := store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}
