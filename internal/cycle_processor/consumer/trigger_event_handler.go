package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pfin-cycle-ledger/internal/cycle_processor/service"
	"github.com/pfin-cycle-ledger/internal/domain/cycle"
	"github.com/pfin-cycle-ledger/internal/domain/shared"
	"github.com/pfin-cycle-ledger/internal/platform/messaging/producers"
	"github.com/pfin-cycle-ledger/internal/platform/notify"
)

// TriggerEventHandler runs the cycle requested by each trigger message.
// Returning nil commits the offset; an error leaves it for redelivery.
type TriggerEventHandler struct {
	cycleService service.CycleService
	producer     producers.DeadLetterPublisher
	alerter      notify.Alerter
	clock        func() time.Time
	logger       *slog.Logger
}

func NewTriggerEventHandler(
	logger *slog.Logger,
	cycleService service.CycleService,
	producer producers.DeadLetterPublisher,
	alerter notify.Alerter,
) *TriggerEventHandler {
	return &TriggerEventHandler{
		cycleService: cycleService,
		producer:     producer,
		alerter:      alerter,
		clock:        time.Now,
		logger:       logger,
	}
}

// HandleMessage processes Kafka messages
func (h *TriggerEventHandler) HandleMessage(ctx context.Context, key []byte, value []byte) error {
	var trigger shared.CycleTrigger
	if err := json.Unmarshal(value, &trigger); err != nil {
		h.logger.Error("Failed to unmarshal cycle trigger", "error", err, "message_key", string(key))
		return h.deadLetter(ctx, key, value, "malformed cycle trigger: "+err.Error(), err)
	}
	if err := trigger.Validate(); err != nil {
		h.logger.Error("Rejected invalid cycle trigger", "error", err, "message_key", string(key))
		return h.deadLetter(ctx, key, value, err.Error(), err)
	}

	logger := h.logger.With("trigger_id", trigger.TriggerID.String(), "user_id", trigger.UserID)
	if trigger.CorrelationID != "" {
		logger = logger.With("correlation_id", trigger.CorrelationID)
	}
	logger.Info("Received cycle trigger", "source", string(trigger.Source), "reference_instant", trigger.ReferenceInstant)

	res, err := h.cycleService.RunMonthlyCycle(ctx, cycle.RunRequest{
		UserID:           trigger.UserID,
		ReferenceInstant: trigger.ReferenceInstant,
		Source:           trigger.Source,
		IdempotencyKey:   trigger.IdempotencyKey,
		CorrelationID:    trigger.CorrelationID,
	})
	if err != nil {
		var runErr *cycle.RunFailedError
		switch {
		case errors.Is(err, cycle.ErrRunInProgress):
			// the worker holding the key finishes the job
			logger.Info("Cycle run already in progress, skipping trigger")
			return nil
		case errors.Is(err, cycle.ErrInvalidRunRequest):
			return h.deadLetter(ctx, key, value, err.Error(), err)
		case errors.As(err, &runErr):
			h.alert(ctx, trigger, runErr, logger)
			if dlqErr := h.deadLetter(ctx, key, value, runErr.Error(), err); dlqErr != nil {
				logger.Error("Failed run could not be dead-lettered", "run_id", runErr.RunID.String())
			}
			return nil
		default:
			logger.Error("Cycle run could not start", "error", err)
			return fmt.Errorf("cycle trigger %s failed: %w", trigger.TriggerID, err)
		}
	}

	logger.Info("Cycle trigger processed",
		"run_id", res.RunID.String(),
		"replayed", res.Replayed,
		"updated_cards", res.UpdatedCardCount,
		"updated_loans", res.UpdatedLoanCount,
	)
	return nil
}

// deadLetter commits the message once it is parked in the DLQ and otherwise
// returns the cause so Kafka redelivers it
func (h *TriggerEventHandler) deadLetter(ctx context.Context, key, value []byte, reason string, cause error) error {
	if h.producer != nil {
		dlqErr := h.producer.PublishToDLQ(ctx, string(key), value, reason)
		if dlqErr == nil {
			h.logger.Info("Published cycle trigger to DLQ", "message_key", string(key), "reason", reason)
			return nil
		}
		h.logger.Error("Failed to publish cycle trigger to DLQ", "dlq_error", dlqErr, "original_error", cause, "message_key", string(key))
	}
	return fmt.Errorf("unprocessable cycle trigger: %w", cause)
}

func (h *TriggerEventHandler) alert(ctx context.Context, trigger shared.CycleTrigger, runErr *cycle.RunFailedError, logger *slog.Logger) {
	if h.alerter == nil {
		return
	}
	err := h.alerter.AlertRunFailure(ctx, notify.RunFailure{
		RunID:         runErr.RunID.String(),
		UserID:        trigger.UserID,
		Source:        string(trigger.Source),
		CorrelationID: trigger.CorrelationID,
		Reason:        runErr.Reason,
		OccurredAt:    h.clock(),
	})
	if err != nil {
		logger.Error("Failed to alert on failed cycle run", "run_id", runErr.RunID.String(), "error", err)
	}
}
