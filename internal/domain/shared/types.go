package shared

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrInvalidTrigger = errors.New("invalid cycle trigger")

// RunSource tells whether a cycle run was requested by a user or the scheduler
type RunSource string

const (
	RunSourceManual    RunSource = "MANUAL"
	RunSourceAutomatic RunSource = "AUTOMATIC"
)

func (s RunSource) Valid() bool {
	return s == RunSourceManual || s == RunSourceAutomatic
}

// OutboxStatus defines message publishing states
type OutboxStatus string

const (
	OutboxStatusPending         OutboxStatus = "PENDING"
	OutboxStatusProcessed       OutboxStatus = "PROCESSED"
	OutboxStatusFailedToPublish OutboxStatus = "FAILED_TO_PUBLISH"
)

// CycleTrigger is the Kafka message asking the processor to run a user's cycle
type CycleTrigger struct {
	TriggerID        uuid.UUID `json:"trigger_id"`
	UserID           string    `json:"user_id"`
	ReferenceInstant time.Time `json:"reference_instant"`
	Source           RunSource `json:"source"`
	IdempotencyKey   string    `json:"idempotency_key,omitempty"`
	CorrelationID    string    `json:"correlation_id"`
	Timestamp        time.Time `json:"timestamp"`
}

func (t CycleTrigger) Validate() error {
	if t.UserID == "" {
		return errors.Join(ErrInvalidTrigger, errors.New("user_id is required"))
	}
	if !t.Source.Valid() {
		return errors.Join(ErrInvalidTrigger, errors.New("unknown source "+string(t.Source)))
	}
	return nil
}
