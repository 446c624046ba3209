package components

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pfin-cycle-ledger/internal/cycle_processor/service"
	"github.com/pfin-cycle-ledger/internal/domain/ledger"
	"github.com/pfin-cycle-ledger/internal/domain/outbox"
)

type OutboxManagerImpl struct {
	outboxRepo outbox.Repository
	clock      func() time.Time
	logger     *slog.Logger
}

func NewOutboxManager(outboxRepo outbox.Repository, clock func() time.Time, logger *slog.Logger) service.OutboxManager {
	return &OutboxManagerImpl{
		outboxRepo: outboxRepo,
		clock:      clock,
		logger:     logger,
	}
}

// Enqueue writes one outbox message per entry using the caller's transaction
func (m *OutboxManagerImpl) Enqueue(ctx context.Context, tx pgx.Tx, entries []*ledger.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	outboxRepoTx := m.outboxRepo.WithTx(tx)
	now := m.clock()

	for _, entry := range entries {
		message, err := outbox.NewMessage(entry, now)
		if err != nil {
			m.logger.Error("Failed to build outbox message", "entry_id", entry.ID.String(), "error", err)
			return err
		}
		if err := outboxRepoTx.Create(ctx, message); err != nil {
			m.logger.Error("Failed to create outbox message",
				"entry_id", entry.ID.String(),
				"user_id", entry.UserID,
				"error", err,
			)
			return fmt.Errorf("failed to queue ledger entry %s: %w", entry.ID, err)
		}
		m.logger.Debug("Outbox message created", "entry_id", entry.ID.String(), "outbox_id", message.ID)
	}
	return nil
}
