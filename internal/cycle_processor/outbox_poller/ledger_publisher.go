package outbox_poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pfin-cycle-ledger/internal/domain/ledger"
	"github.com/pfin-cycle-ledger/internal/domain/outbox"
	"github.com/pfin-cycle-ledger/internal/domain/shared"
)

// LedgerPublisher delivers an outbox message to the ledger store
type LedgerPublisher interface {
	PublishToLedger(ctx context.Context, message *outbox.Message) error
}

type LedgerPublisherImpl struct {
	outboxRepo outbox.Repository
	ledgerRepo ledger.Repository
	logger     *slog.Logger
}

func NewLedgerPublisher(
	outboxRepo outbox.Repository,
	ledgerRepo ledger.Repository,
	logger *slog.Logger,
) LedgerPublisher {
	return &LedgerPublisherImpl{
		outboxRepo: outboxRepo,
		ledgerRepo: ledgerRepo,
		logger:     logger,
	}
}

// PublishToLedger inserts the queued entry and marks the message PROCESSED.
// Entry ids are assigned before queueing, so a duplicate id means an earlier
// attempt already wrote the entry.
func (p *LedgerPublisherImpl) PublishToLedger(ctx context.Context, message *outbox.Message) error {
	entry, err := message.GetLedgerEntry()
	if err != nil {
		p.logger.Error("Failed to decode ledger entry from outbox payload", "outbox_id", message.ID, "entry_id", message.EntryID.String(), "error", err)
		if updateErr := p.outboxRepo.UpdateStatus(ctx, message.ID, shared.OutboxStatusFailedToPublish); updateErr != nil {
			p.logger.Error("Also failed to mark undecodable outbox message", "outbox_id", message.ID, "update_error", updateErr)
		}
		return fmt.Errorf("decode payload for outbox %d failed: %w", message.ID, err)
	}

	logger := p.logger.With("outbox_id", message.ID, "entry_id", entry.ID.String(), "user_id", entry.UserID)

	if err := p.ledgerRepo.Create(ctx, entry); err != nil {
		if !errors.Is(err, ledger.ErrDuplicateEntry{EntryID: entry.ID}) {
			logger.Error("Failed to write ledger entry", "error", err)
			return fmt.Errorf("failed to create ledger entry %s: %w", entry.ID, err)
		}
		logger.Info("Ledger entry already delivered")
	} else {
		logger.Debug("Ledger entry written", "entry_type", string(entry.EntryType), "cycle_key", entry.CycleKey)
	}

	if err := p.outboxRepo.UpdateStatus(ctx, message.ID, shared.OutboxStatusProcessed); err != nil {
		logger.Error("Failed to mark outbox message as PROCESSED", "error", err)
		return fmt.Errorf("ledger write for %s OK, but failed to mark outbox %d as PROCESSED: %w", entry.ID, message.ID, err)
	}
	return nil
}
