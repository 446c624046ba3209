// Package cycle holds the records of monthly cycle runs: the idempotent run
// row, the month-close snapshot and the audit log.
package cycle

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/pfin-cycle-ledger/internal/domain/cadence"
	"github.com/pfin-cycle-ledger/internal/domain/liability"
	"github.com/pfin-cycle-ledger/internal/domain/shared"
)

// RunStatus is the state of a cycle run. NOT_STARTED is implicit: no row exists.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "RUNNING"
	RunStatusCompleted RunStatus = "COMPLETED"
	RunStatusFailed    RunStatus = "FAILED"
)

const (
	automaticKeyPrefix      = "automatic:"
	DefaultFailureReasonLen = 512
)

var (
	ErrInvalidRunRequest = errors.New("invalid cycle run request")
	ErrRunInProgress     = errors.New("cycle run already in progress for this idempotency key")
)

// RunFailedError is returned after a failed run has been recorded
type RunFailedError struct {
	RunID  uuid.UUID
	Reason string
	Err    error
}

func (e *RunFailedError) Error() string {
	return fmt.Sprintf("cycle run %s failed: %s", e.RunID, e.Reason)
}

func (e *RunFailedError) Unwrap() error {
	return e.Err
}

// RunRequest asks for one user's cycle to be run at a reference instant.
// A zero ReferenceInstant means "now" as seen by the orchestrator's clock.
type RunRequest struct {
	UserID           string           `json:"user_id"`
	ReferenceInstant time.Time        `json:"reference_instant"`
	Source           shared.RunSource `json:"source"`
	IdempotencyKey   string           `json:"idempotency_key,omitempty"`
	CorrelationID    string           `json:"correlation_id,omitempty"`
}

func (r RunRequest) Validate() error {
	if r.UserID == "" {
		return fmt.Errorf("%w: user_id is required", ErrInvalidRunRequest)
	}
	if !r.Source.Valid() {
		return fmt.Errorf("%w: unknown source %q", ErrInvalidRunRequest, r.Source)
	}
	if len(r.IdempotencyKey) > 255 {
		return fmt.Errorf("%w: idempotency key longer than 255 characters", ErrInvalidRunRequest)
	}
	return nil
}

// ResolveKey returns the caller's key, or the per-cycle key for automatic runs.
// Manual runs without a key are never deduplicated.
func (r RunRequest) ResolveKey(cycleKey string) string {
	if r.IdempotencyKey != "" {
		return r.IdempotencyKey
	}
	if r.Source == shared.RunSourceAutomatic {
		return AutomaticKey(cycleKey)
	}
	return ""
}

// AutomaticKey is the idempotency key used by scheduled runs
func AutomaticKey(cycleKey string) string {
	return automaticKeyPrefix + cycleKey
}

// Aggregates are the summed money movements of a run
type Aggregates struct {
	InterestAccrued float64 `json:"interest_accrued" bson:"interest_accrued"`
	PaymentsApplied float64 `json:"payments_applied" bson:"payments_applied"`
	SpendAdded      float64 `json:"spend_added" bson:"spend_added"`
}

func (a *Aggregates) Add(res liability.AdvanceResult) {
	a.InterestAccrued = shared.Round2(a.InterestAccrued + res.InterestAccrued)
	a.PaymentsApplied = shared.Round2(a.PaymentsApplied + res.PaymentsApplied)
	a.SpendAdded = shared.Round2(a.SpendAdded + res.SpendAdded)
}

// Result is the payload returned by a completed run and replayed verbatim
// for repeated requests with the same idempotency key
type Result struct {
	RunID            uuid.UUID                 `json:"run_id"`
	UserID           string                    `json:"user_id"`
	CycleKey         string                    `json:"cycle_key"`
	Source           shared.RunSource          `json:"source"`
	IdempotencyKey   string                    `json:"idempotency_key,omitempty"`
	ReferenceInstant time.Time                 `json:"reference_instant"`
	UpdatedCardCount int                       `json:"updated_card_count"`
	UpdatedLoanCount int                       `json:"updated_loan_count"`
	Aggregates       Aggregates                `json:"aggregates"`
	Liabilities      []liability.AdvanceResult `json:"liabilities"`
	LedgerEntryIDs   []uuid.UUID               `json:"ledger_entry_ids"`
	Snapshot         Summary                   `json:"snapshot"`
	CompletedAt      time.Time                 `json:"completed_at"`

	// Replayed is set when the result comes from an earlier completed run
	Replayed bool `json:"-"`
}

// Changed reports whether the run moved any balance
func (r *Result) Changed() bool {
	return r.UpdatedCardCount+r.UpdatedLoanCount > 0
}

// Run is the persisted record of a cycle run
type Run struct {
	ID               uuid.UUID        `json:"id"`
	UserID           string           `json:"user_id"`
	CycleKey         string           `json:"cycle_key"`
	Source           shared.RunSource `json:"source"`
	IdempotencyKey   string           `json:"idempotency_key,omitempty"`
	Status           RunStatus        `json:"status"`
	UpdatedCardCount int              `json:"updated_card_count"`
	UpdatedLoanCount int              `json:"updated_loan_count"`
	Aggregates       Aggregates       `json:"aggregates"`
	Result           json.RawMessage  `json:"result,omitempty"`
	FailureReason    string           `json:"failure_reason,omitempty"`
	ReferenceInstant time.Time        `json:"reference_instant"`
	StartedAt        time.Time        `json:"started_at"`
	FinishedAt       *time.Time       `json:"finished_at,omitempty"`
}

// NewRun starts a RUNNING record for the request
func NewRun(req RunRequest, ref time.Time, key string, now time.Time) *Run {
	return &Run{
		ID:               uuid.New(),
		UserID:           req.UserID,
		CycleKey:         cadence.CycleKey(ref),
		Source:           req.Source,
		IdempotencyKey:   key,
		Status:           RunStatusRunning,
		ReferenceInstant: ref.UTC(),
		StartedAt:        now.UTC(),
	}
}

// Complete stores the result payload on the run
func (r *Run) Complete(res *Result, now time.Time) error {
	payload, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("failed to encode cycle result: %w", err)
	}
	finished := now.UTC()
	r.Status = RunStatusCompleted
	r.UpdatedCardCount = res.UpdatedCardCount
	r.UpdatedLoanCount = res.UpdatedLoanCount
	r.Aggregates = res.Aggregates
	r.Result = payload
	r.FinishedAt = &finished
	return nil
}

// Fail marks the run failed with a bounded reason
func (r *Run) Fail(reason string, maxLen int, now time.Time) {
	finished := now.UTC()
	r.Status = RunStatusFailed
	r.FailureReason = TruncateReason(reason, maxLen)
	r.FinishedAt = &finished
}

// DecodeResult returns the stored payload of a completed run
func (r *Run) DecodeResult() (*Result, error) {
	if len(r.Result) == 0 {
		return nil, fmt.Errorf("cycle run %s has no stored result", r.ID)
	}
	var res Result
	if err := json.Unmarshal(r.Result, &res); err != nil {
		return nil, fmt.Errorf("failed to decode cycle result: %w", err)
	}
	return &res, nil
}

// TruncateReason cuts a failure reason to at most maxLen bytes without
// splitting a UTF-8 sequence
func TruncateReason(reason string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = DefaultFailureReasonLen
	}
	if len(reason) <= maxLen {
		return reason
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(reason[cut]) {
		cut--
	}
	return reason[:cut]
}
