// Package scheduler publishes the automatic monthly cycle trigger for every
// user on a cron schedule evaluated in UTC.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pfin-cycle-ledger/internal/config"
	"github.com/pfin-cycle-ledger/internal/domain/shared"
	"github.com/pfin-cycle-ledger/internal/platform/messaging/producers"
	"github.com/robfig/cron/v3"
)

// UserLister returns every user that owns at least one liability
type UserLister interface {
	ListUserIDs(ctx context.Context) ([]string, error)
}

type Scheduler struct {
	cron      *cron.Cron
	users     UserLister
	publisher producers.TriggerPublisher
	clock     func() time.Time
	logger    *slog.Logger
	ctx       context.Context
}

func New(cfg config.SchedulerConfig, users UserLister, publisher producers.TriggerPublisher, logger *slog.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:      cron.New(cron.WithLocation(time.UTC)),
		users:     users,
		publisher: publisher,
		clock:     time.Now,
		logger:    logger,
		ctx:       context.Background(),
	}
	if _, err := s.cron.AddFunc(cfg.Cron, s.tick); err != nil {
		return nil, fmt.Errorf("invalid scheduler cron %q: %w", cfg.Cron, err)
	}
	return s, nil
}

// Start runs the schedule in the background. Publishing stops when ctx ends.
func (s *Scheduler) Start(ctx context.Context) {
	s.ctx = ctx
	s.cron.Start()
	for _, e := range s.cron.Entries() {
		s.logger.Info("Cycle scheduler started", "next_run", e.Next)
	}
}

// Stop waits for a running tick to finish
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("Cycle scheduler stopped")
}

func (s *Scheduler) tick() {
	ref := s.clock().UTC()
	published, err := s.PublishAll(s.ctx, ref)
	if err != nil {
		s.logger.Error("Automatic cycle triggers partially failed", "published", published, "error", err)
		return
	}
	s.logger.Info("Automatic cycle triggers published", "published", published, "reference_instant", ref)
}

// PublishAll sends one AUTOMATIC trigger per user for the reference instant.
// A failed publish does not stop the remaining users.
func (s *Scheduler) PublishAll(ctx context.Context, ref time.Time) (int, error) {
	userIDs, err := s.users.ListUserIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list users: %w", err)
	}

	var errs []error
	published := 0
	for _, userID := range userIDs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		trigger := shared.CycleTrigger{
			TriggerID:        uuid.New(),
			UserID:           userID,
			ReferenceInstant: ref,
			Source:           shared.RunSourceAutomatic,
			CorrelationID:    uuid.NewString(),
			Timestamp:        s.clock().UTC(),
		}
		if err := s.publisher.PublishTrigger(ctx, trigger); err != nil {
			s.logger.Error("Failed to publish cycle trigger", "user_id", userID, "error", err)
			errs = append(errs, fmt.Errorf("user %s: %w", userID, err))
			continue
		}
		published++
	}
	return published, errors.Join(errs...)
}
