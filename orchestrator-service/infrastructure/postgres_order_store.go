package infrastructure

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/relaymart/order-system/orchestrator-service/domain"
	"github.com/relaymart/order-system/shared/saga"
)

// PostgresOrderStore is the durable swap-in for the in-memory order store.
// The orchestrator's control flow is identical either way; only the injected
// OrderStore changes.
type PostgresOrderStore struct {
	db *sqlx.DB
}

// NewPostgresOrderStore creates a store on an existing connection pool.
func NewPostgresOrderStore(db *sqlx.DB) *PostgresOrderStore {
	return &PostgresOrderStore{db: db}
}

// NewPostgresOrderStoreWithSchema initializes the schema then returns the store.
func NewPostgresOrderStoreWithSchema(ctx context.Context, db *sqlx.DB) (*PostgresOrderStore, error) {
	store := NewPostgresOrderStore(db)
	if err := store.InitSchema(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// InitSchema creates the saga tables if they do not exist.
func (s *PostgresOrderStore) InitSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS order_sagas (
			order_id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			reason TEXT,
			started_at TIMESTAMPTZ NOT NULL,
			finished_at TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS order_saga_steps (
			id BIGSERIAL PRIMARY KEY,
			order_id TEXT NOT NULL REFERENCES order_sagas(order_id) ON DELETE CASCADE,
			position INT NOT NULL,
			step TEXT NOT NULL,
			operation TEXT NOT NULL,
			outcome TEXT NOT NULL,
			outcome_reason TEXT,
			recorded_at TIMESTAMPTZ NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "failed to initialize order saga schema")
		}
	}
	return nil
}

type postgresSaga struct {
	OrderID    string         `db:"order_id"`
	Status     string         `db:"status"`
	Reason     sql.NullString `db:"reason"`
	StartedAt  time.Time      `db:"started_at"`
	FinishedAt sql.NullTime   `db:"finished_at"`
}

type postgresStep struct {
	OrderID       string         `db:"order_id"`
	Position      int            `db:"position"`
	Step          string         `db:"step"`
	Operation     string         `db:"operation"`
	Outcome       string         `db:"outcome"`
	OutcomeReason sql.NullString `db:"outcome_reason"`
	RecordedAt    time.Time      `db:"recorded_at"`
}

// Put upserts the record and rewrites its step log inside one transaction.
func (s *PostgresOrderStore) Put(ctx context.Context, record *saga.SagaRecord) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO order_sagas (order_id, status, reason, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (order_id) DO UPDATE
		SET status = EXCLUDED.status,
			reason = EXCLUDED.reason,
			started_at = EXCLUDED.started_at,
			finished_at = EXCLUDED.finished_at`,
		record.OrderID, record.Status, nullString(record.Reason), record.StartedAt, nullTime(record.FinishedAt),
	)
	if err != nil {
		return errors.Wrap(err, "failed to upsert order saga")
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM order_saga_steps WHERE order_id = $1`, record.OrderID); err != nil {
		return errors.Wrap(err, "failed to clear step log")
	}

	for i, step := range record.Steps {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO order_saga_steps (order_id, position, step, operation, outcome, outcome_reason, recorded_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			record.OrderID, i, step.Step, step.Operation, step.Outcome.Status, nullString(step.Outcome.Reason), step.Timestamp,
		)
		if err != nil {
			return errors.Wrap(err, "failed to insert step log entry")
		}
	}

	return errors.Wrap(tx.Commit(), "failed to commit order saga")
}

// Get loads the record with its step log in recorded order.
func (s *PostgresOrderStore) Get(ctx context.Context, orderID string) (*saga.SagaRecord, error) {
	var row postgresSaga
	err := s.db.GetContext(ctx, &row, `
		SELECT order_id, status, reason, started_at, finished_at
		FROM order_sagas WHERE order_id = $1`, orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load order saga")
	}

	var steps []postgresStep
	err = s.db.SelectContext(ctx, &steps, `
		SELECT order_id, position, step, operation, outcome, outcome_reason, recorded_at
		FROM order_saga_steps WHERE order_id = $1 ORDER BY position`, orderID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load step log")
	}

	record := &saga.SagaRecord{
		OrderID:   row.OrderID,
		Status:    saga.SagaStatus(row.Status),
		Reason:    row.Reason.String,
		StartedAt: row.StartedAt,
		Steps:     make([]saga.StepLogEntry, 0, len(steps)),
	}
	if row.FinishedAt.Valid {
		record.FinishedAt = row.FinishedAt.Time
	}
	for _, step := range steps {
		record.Steps = append(record.Steps, saga.StepLogEntry{
			Step:      saga.StepName(step.Step),
			Operation: saga.Operation(step.Operation),
			Outcome: saga.StepOutcome{
				Status: saga.OutcomeStatus(step.Outcome),
				Reason: step.OutcomeReason.String,
			},
			Timestamp: step.RecordedAt,
		})
	}
	return record, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
