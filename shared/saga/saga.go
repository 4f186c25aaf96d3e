package saga

import (
	"time"

	"github.com/pkg/errors"
)

// ErrIllegalTransition is returned when a saga record is asked to move to a
// status its current status does not allow.
var ErrIllegalTransition = errors.New("illegal saga status transition")

// StepName identifies one participant step of the order saga.
type StepName string

const (
	StepPayment   StepName = "payment"
	StepInventory StepName = "inventory"
	StepDelivery  StepName = "delivery"
)

// Steps returns the fixed execution order of the saga. Compensation always
// runs over the mirror image of this list, restricted to the steps that
// actually succeeded.
func Steps() []StepName {
	return []StepName{StepPayment, StepInventory, StepDelivery}
}

// Operation distinguishes forward actions from compensations in the step log.
type Operation string

const (
	OperationReserve Operation = "reserve"
	OperationCancel  Operation = "cancel"
)

// OutcomeStatus is the binary classification of a participant response.
type OutcomeStatus string

const (
	OutcomeSucceeded OutcomeStatus = "succeeded"
	OutcomeFailed    OutcomeStatus = "failed"
)

// StepOutcome is the uniform result of a reserve or cancel call. A participant
// response is always classified into exactly one of the two statuses; there is
// no partial state.
type StepOutcome struct {
	Status OutcomeStatus `json:"status"`
	Reason string        `json:"reason,omitempty"`
}

// Succeed builds a successful outcome.
func Succeed() StepOutcome {
	return StepOutcome{Status: OutcomeSucceeded}
}

// Fail builds a failed outcome with the given reason.
func Fail(reason string) StepOutcome {
	return StepOutcome{Status: OutcomeFailed, Reason: reason}
}

// Succeeded reports whether the outcome is a success.
func (o StepOutcome) Succeeded() bool {
	return o.Status == OutcomeSucceeded
}

// Failed reports whether the outcome is a failure.
func (o StepOutcome) Failed() bool {
	return o.Status == OutcomeFailed
}

// SagaStatus represents the status of a saga run.
type SagaStatus string

const (
	SagaStatusPending     SagaStatus = "pending"
	SagaStatusCompleted   SagaStatus = "completed"
	SagaStatusFailed      SagaStatus = "failed"
	SagaStatusCompensated SagaStatus = "compensated"
)

// Terminal reports whether no further status transition is legal.
func (s SagaStatus) Terminal() bool {
	return s == SagaStatusCompleted || s == SagaStatusCompensated
}

// StepLogEntry records one participant call and its outcome.
type StepLogEntry struct {
	Step      StepName    `json:"step"`
	Operation Operation   `json:"operation"`
	Outcome   StepOutcome `json:"outcome"`
	Timestamp time.Time   `json:"timestamp"`
}

// CompensationEntry holds the correlation data needed to cancel a previously
// successful step. Entries are pushed only after the step's reserve succeeded.
type CompensationEntry struct {
	Step    StepName `json:"step"`
	OrderID string   `json:"order_id"`
}

// CompensationStack is the LIFO bookkeeping of steps that must be undone when
// the saga fails. Not safe for concurrent use; each saga run owns its stack.
type CompensationStack struct {
	entries []CompensationEntry
}

// Push adds an entry on top of the stack.
func (s *CompensationStack) Push(entry CompensationEntry) {
	s.entries = append(s.entries, entry)
}

// Pop removes and returns the most recently pushed entry.
func (s *CompensationStack) Pop() (CompensationEntry, bool) {
	if len(s.entries) == 0 {
		return CompensationEntry{}, false
	}
	entry := s.entries[len(s.entries)-1]
	s.entries = s.entries[:len(s.entries)-1]
	return entry, true
}

// Len returns the number of pending compensations.
func (s *CompensationStack) Len() int {
	return len(s.entries)
}

// SagaRecord is the full account of one saga run: its terminal status, the
// failure reason if any, and the ordered log of every reserve and cancel call.
// The orchestrator owns the record while the run is in flight and hands it to
// the order store only once terminal.
type SagaRecord struct {
	OrderID    string         `json:"order_id"`
	Status     SagaStatus     `json:"status"`
	Reason     string         `json:"reason,omitempty"`
	Steps      []StepLogEntry `json:"steps"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at,omitempty"`
}

// NewRecord creates a pending record for an order.
func NewRecord(orderID string) *SagaRecord {
	return &SagaRecord{
		OrderID:   orderID,
		Status:    SagaStatusPending,
		Steps:     []StepLogEntry{},
		StartedAt: time.Now(),
	}
}

// Append adds a step log entry stamped with the current time.
func (r *SagaRecord) Append(step StepName, op Operation, outcome StepOutcome) {
	r.Steps = append(r.Steps, StepLogEntry{
		Step:      step,
		Operation: op,
		Outcome:   outcome,
		Timestamp: time.Now(),
	})
}

// MarkCompleted transitions Pending -> Completed.
func (r *SagaRecord) MarkCompleted() error {
	if r.Status != SagaStatusPending {
		return errors.Wrapf(ErrIllegalTransition, "%s -> %s", r.Status, SagaStatusCompleted)
	}
	r.Status = SagaStatusCompleted
	r.FinishedAt = time.Now()
	return nil
}

// MarkFailed transitions Pending -> Failed and records the terminal reason.
func (r *SagaRecord) MarkFailed(reason string) error {
	if r.Status != SagaStatusPending {
		return errors.Wrapf(ErrIllegalTransition, "%s -> %s", r.Status, SagaStatusFailed)
	}
	r.Status = SagaStatusFailed
	r.Reason = reason
	r.FinishedAt = time.Now()
	return nil
}

// MarkCompensated transitions Failed -> Compensated.
func (r *SagaRecord) MarkCompensated() error {
	if r.Status != SagaStatusFailed {
		return errors.Wrapf(ErrIllegalTransition, "%s -> %s", r.Status, SagaStatusCompensated)
	}
	r.Status = SagaStatusCompensated
	r.FinishedAt = time.Now()
	return nil
}

// Clone returns a deep copy of the record so stored records cannot be mutated
// through aliased slices.
func (r *SagaRecord) Clone() *SagaRecord {
	clone := *r
	clone.Steps = make([]StepLogEntry, len(r.Steps))
	copy(clone.Steps, r.Steps)
	return &clone
}
