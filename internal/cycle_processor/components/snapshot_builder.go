package components

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pfin-cycle-ledger/internal/cycle_processor/service"
	"github.com/pfin-cycle-ledger/internal/domain/cycle"
	"github.com/pfin-cycle-ledger/internal/domain/liability"
)

type SnapshotBuilderImpl struct {
	profileReader cycle.ProfileReader
	snapshotRepo  cycle.SnapshotRepository
	clock         func() time.Time
	logger        *slog.Logger
}

func NewSnapshotBuilder(profileReader cycle.ProfileReader, snapshotRepo cycle.SnapshotRepository, clock func() time.Time, logger *slog.Logger) service.SnapshotBuilder {
	return &SnapshotBuilderImpl{
		profileReader: profileReader,
		snapshotRepo:  snapshotRepo,
		clock:         clock,
		logger:        logger,
	}
}

func (b *SnapshotBuilderImpl) Build(ctx context.Context, userID, cycleKey string, runID uuid.UUID, liabilities []liability.Liability) (cycle.Summary, error) {
	profile, err := b.profileReader.GetProfile(ctx, userID)
	if err != nil {
		return cycle.Summary{}, fmt.Errorf("failed to read financial profile: %w", err)
	}

	summary := cycle.Summarize(profile, liabilities)
	snapshot := &cycle.Snapshot{
		UserID:    userID,
		CycleKey:  cycleKey,
		RunID:     runID,
		Summary:   summary,
		UpdatedAt: b.clock().UTC(),
	}
	if err := b.snapshotRepo.Upsert(ctx, snapshot); err != nil {
		return cycle.Summary{}, err
	}

	b.logger.Debug("Month-close snapshot stored", "user_id", userID, "cycle_key", cycleKey, "net_worth", summary.NetWorth)
	return summary, nil
}
