package components

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pfin-cycle-ledger/internal/domain/cycle"
	"github.com/pfin-cycle-ledger/internal/domain/liability"
	"github.com/pfin-cycle-ledger/internal/domain/outbox"
	"github.com/pfin-cycle-ledger/internal/domain/shared"
)

// In-memory stores backing the orchestrator tests. Transactions are not
// simulated; WithTx returns the same store.

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

type stubTxRunner struct {
	calls int
}

func (r *stubTxRunner) ExecuteTx(_ context.Context, fn func(tx pgx.Tx) error) error {
	r.calls++
	return fn(nil)
}

func clone(l liability.Liability) liability.Liability {
	switch v := l.(type) {
	case *liability.Card:
		c := *v
		return &c
	case *liability.Loan:
		c := *v
		return &c
	}
	return nil
}

type memLiabilityRepo struct {
	mu    sync.Mutex
	items map[uuid.UUID]liability.Liability
	order []uuid.UUID
}

func newMemLiabilityRepo(items ...liability.Liability) *memLiabilityRepo {
	r := &memLiabilityRepo{items: map[uuid.UUID]liability.Liability{}}
	for _, l := range items {
		_ = r.Create(context.Background(), l)
	}
	return r
}

func (r *memLiabilityRepo) Create(_ context.Context, l liability.Liability) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := l.Info().ID
	r.items[id] = clone(l)
	r.order = append(r.order, id)
	return nil
}

func (r *memLiabilityRepo) GetByID(_ context.Context, id uuid.UUID) (liability.Liability, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.items[id]
	if !ok {
		return nil, liability.ErrLiabilityNotFound{LiabilityID: id}
	}
	return clone(l), nil
}

func (r *memLiabilityRepo) ListByUser(_ context.Context, userID string) ([]liability.Liability, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []liability.Liability
	for _, id := range r.order {
		if l, ok := r.items[id]; ok && l.Info().UserID == userID {
			out = append(out, clone(l))
		}
	}
	return out, nil
}

func (r *memLiabilityRepo) ListUserIDs(_ context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := map[string]bool{}
	var ids []string
	for _, l := range r.items {
		if !seen[l.Info().UserID] {
			seen[l.Info().UserID] = true
			ids = append(ids, l.Info().UserID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *memLiabilityRepo) Update(_ context.Context, l liability.Liability) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := l.Info().ID
	stored, ok := r.items[id]
	if !ok || stored.Info().Version != l.Info().Version-1 {
		return liability.ErrConcurrentModification{LiabilityID: id}
	}
	r.items[id] = clone(l)
	return nil
}

func (r *memLiabilityRepo) LockForUpdate(ctx context.Context, id uuid.UUID) (liability.Liability, error) {
	return r.GetByID(ctx, id)
}

func (r *memLiabilityRepo) WithTx(pgx.Tx) liability.Repository {
	return r
}

func (r *memLiabilityRepo) get(id uuid.UUID) liability.Liability {
	l, _ := r.GetByID(context.Background(), id)
	return l
}

type memRunRepo struct {
	mu   sync.Mutex
	runs []*cycle.Run
}

func (r *memRunRepo) Create(_ context.Context, run *cycle.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if run.IdempotencyKey != "" {
		for _, existing := range r.runs {
			if existing.UserID == run.UserID && existing.IdempotencyKey == run.IdempotencyKey &&
				existing.Status != cycle.RunStatusFailed {
				return cycle.ErrDuplicateRun{UserID: run.UserID, IdempotencyKey: run.IdempotencyKey}
			}
		}
	}
	cp := *run
	r.runs = append(r.runs, &cp)
	return nil
}

func (r *memRunRepo) find(id uuid.UUID) *cycle.Run {
	for _, run := range r.runs {
		if run.ID == id {
			return run
		}
	}
	return nil
}

func (r *memRunRepo) GetByID(_ context.Context, id uuid.UUID) (*cycle.Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if run := r.find(id); run != nil {
		cp := *run
		return &cp, nil
	}
	return nil, cycle.ErrRunNotFound{RunID: id}
}

func (r *memRunRepo) GetCompletedByKey(_ context.Context, userID, key string) (*cycle.Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, run := range r.runs {
		if run.UserID == userID && run.IdempotencyKey == key && run.Status == cycle.RunStatusCompleted {
			cp := *run
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memRunRepo) transition(run *cycle.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := r.find(run.ID)
	if stored == nil || stored.Status != cycle.RunStatusRunning {
		return cycle.ErrRunNotFound{RunID: run.ID}
	}
	*stored = *run
	return nil
}

func (r *memRunRepo) MarkCompleted(_ context.Context, run *cycle.Run) error {
	return r.transition(run)
}

func (r *memRunRepo) MarkFailed(_ context.Context, run *cycle.Run) error {
	return r.transition(run)
}

func (r *memRunRepo) FailStale(_ context.Context, userID, key string, before time.Time, reason string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, run := range r.runs {
		if run.UserID == userID && run.IdempotencyKey == key && run.Status == cycle.RunStatusRunning && run.StartedAt.Before(before) {
			run.Status = cycle.RunStatusFailed
			run.FailureReason = reason
			n++
		}
	}
	return n, nil
}

func (r *memRunRepo) ListByUser(_ context.Context, userID string, limit, offset int) ([]*cycle.Run, error) {
	return nil, errors.New("not used")
}

func (r *memRunRepo) CountByUser(_ context.Context, userID string) (int64, error) {
	return 0, errors.New("not used")
}

func (r *memRunRepo) withStatus(status cycle.RunStatus) []*cycle.Run {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*cycle.Run
	for _, run := range r.runs {
		if run.Status == status {
			out = append(out, run)
		}
	}
	return out
}

type memOutboxRepo struct {
	mu       sync.Mutex
	messages []*outbox.Message
	failWith error
}

func (r *memOutboxRepo) Create(_ context.Context, m *outbox.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return r.failWith
	}
	m.ID = int64(len(r.messages) + 1)
	r.messages = append(r.messages, m)
	return nil
}

func (r *memOutboxRepo) GetPending(_ context.Context, limit int) ([]*outbox.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*outbox.Message
	for _, m := range r.messages {
		if m.Status == shared.OutboxStatusPending && len(out) < limit {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *memOutboxRepo) UpdateStatus(_ context.Context, id int64, status shared.OutboxStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.messages {
		if m.ID == id {
			m.Status = status
			return nil
		}
	}
	return outbox.ErrMessageNotFound{ID: id}
}

func (r *memOutboxRepo) IncrementAttempts(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.messages {
		if m.ID == id {
			m.Attempts++
			return nil
		}
	}
	return outbox.ErrMessageNotFound{ID: id}
}

func (r *memOutboxRepo) PurgeProcessed(_ context.Context, before time.Time) (int64, error) {
	return 0, errors.New("not used")
}

func (r *memOutboxRepo) WithTx(pgx.Tx) outbox.Repository {
	return r
}

func (r *memOutboxRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages)
}

type memSnapshotRepo struct {
	mu        sync.Mutex
	snapshots map[string]*cycle.Snapshot
	failWith  error
}

func (r *memSnapshotRepo) Upsert(_ context.Context, s *cycle.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return r.failWith
	}
	if r.snapshots == nil {
		r.snapshots = map[string]*cycle.Snapshot{}
	}
	cp := *s
	r.snapshots[s.UserID+"/"+s.CycleKey] = &cp
	return nil
}

func (r *memSnapshotRepo) Get(_ context.Context, userID, cycleKey string) (*cycle.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.snapshots[userID+"/"+cycleKey]; ok {
		return s, nil
	}
	return nil, cycle.ErrSnapshotNotFound{UserID: userID, CycleKey: cycleKey}
}

type memAuditRepo struct {
	mu   sync.Mutex
	logs []*cycle.AuditLog
}

func (r *memAuditRepo) Create(_ context.Context, log *cycle.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, log)
	return nil
}

func (r *memAuditRepo) ListByUser(_ context.Context, userID string, limit int) ([]*cycle.AuditLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.logs, nil
}

type staticProfile struct {
	profile *cycle.Profile
}

func (p staticProfile) GetProfile(context.Context, string) (*cycle.Profile, error) {
	return p.profile, nil
}
