package outbox_poller

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pfin-cycle-ledger/internal/config"
	"github.com/pfin-cycle-ledger/internal/domain/outbox"
	"github.com/pfin-cycle-ledger/internal/domain/shared"
)

// purgeInterval spaces out retention sweeps; delivery runs on every tick
const purgeInterval = time.Hour

// Poller moves pending ledger entries from the Postgres outbox into MongoDB
// and drops delivered rows once they are older than the retention window
type Poller struct {
	outboxRepo       outbox.Repository
	ledgerPublisher  LedgerPublisher
	logger           *slog.Logger
	pollInterval     time.Duration
	batchSize        int
	maxRetryAttempts int
	retention        time.Duration
	clock            func() time.Time
	lastPurge        time.Time
}

func NewPoller(
	cfg *config.OutboxConfig,
	outboxRepo outbox.Repository,
	ledgerPublisher LedgerPublisher,
	logger *slog.Logger,
) *Poller {
	return &Poller{
		outboxRepo:       outboxRepo,
		ledgerPublisher:  ledgerPublisher,
		logger:           logger,
		pollInterval:     cfg.PollingInterval,
		batchSize:        cfg.BatchSize,
		maxRetryAttempts: cfg.MaxRetryAttempts,
		retention:        cfg.Retention,
		clock:            time.Now,
	}
}

// Start polls until ctx is cancelled
func (p *Poller) Start(ctx context.Context) {
	p.logger.Info("Starting ledger outbox poller",
		"poll_interval", p.pollInterval.String(),
		"batch_size", p.batchSize,
		"max_retry_attempts", p.maxRetryAttempts,
		"retention", p.retention.String(),
	)
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Ledger outbox poller stopping")
			return
		case <-ticker.C:
			if _, err := p.ProcessPending(ctx); err != nil {
				p.logger.Error("Error while delivering pending ledger entries", "error", err)
			}
			if now := p.clock(); now.Sub(p.lastPurge) >= purgeInterval {
				p.lastPurge = now
				if _, err := p.PurgeProcessed(ctx); err != nil {
					p.logger.Error("Error while purging delivered outbox messages", "error", err)
				}
			}
		}
	}
}

// ProcessPending delivers one batch and returns how many messages succeeded
func (p *Poller) ProcessPending(ctx context.Context) (int, error) {
	messages, err := p.outboxRepo.GetPending(ctx, p.batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to get pending outbox messages: %w", err)
	}
	if len(messages) == 0 {
		return 0, nil
	}
	p.logger.Debug("Fetched pending outbox messages", "count", len(messages))

	delivered := 0
	for _, msg := range messages {
		if err := ctx.Err(); err != nil {
			return delivered, err
		}
		if err := p.ledgerPublisher.PublishToLedger(ctx, msg); err != nil {
			p.recordAttempt(ctx, msg, err)
			continue
		}
		delivered++
	}
	p.logger.Info("Delivered ledger entries", "delivered", delivered, "fetched", len(messages))
	return delivered, nil
}

func (p *Poller) recordAttempt(ctx context.Context, msg *outbox.Message, cause error) {
	logger := p.logger.With("outbox_id", msg.ID, "entry_id", msg.EntryID.String())
	logger.Error("Failed to deliver ledger entry", "attempts", msg.Attempts, "error", cause)

	if err := p.outboxRepo.IncrementAttempts(ctx, msg.ID); err != nil {
		logger.Error("Failed to increment outbox attempts", "error", err)
		return
	}
	if msg.Attempts+1 < p.maxRetryAttempts {
		return
	}

	logger.Warn("Max delivery attempts reached, marking FAILED_TO_PUBLISH", "attempts_made", msg.Attempts+1)
	if err := p.outboxRepo.UpdateStatus(ctx, msg.ID, shared.OutboxStatusFailedToPublish); err != nil {
		logger.Error("Failed to mark outbox message FAILED_TO_PUBLISH", "error", err)
	}
}

// PurgeProcessed deletes delivered messages older than the retention window.
// A zero retention keeps everything.
func (p *Poller) PurgeProcessed(ctx context.Context) (int64, error) {
	if p.retention <= 0 {
		return 0, nil
	}
	cutoff := p.clock().Add(-p.retention)
	purged, err := p.outboxRepo.PurgeProcessed(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if purged > 0 {
		p.logger.Info("Purged delivered outbox messages", "purged", purged, "before", cutoff)
	}
	return purged, nil
}
