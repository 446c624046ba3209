package service

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pfin-cycle-ledger/internal/domain/cycle"
	"github.com/pfin-cycle-ledger/internal/domain/ledger"
	"github.com/pfin-cycle-ledger/internal/domain/liability"
	"github.com/pfin-cycle-ledger/internal/domain/shared"
	"github.com/stretchr/testify/mock"
)

var testNow = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

func testClock() time.Time { return testNow }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubTxRunner struct{}

func (stubTxRunner) ExecuteTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return fn(nil)
}

type MockLedgerRepository struct {
	mock.Mock
}

func (m *MockLedgerRepository) Create(ctx context.Context, entry *ledger.Entry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockLedgerRepository) GetByID(ctx context.Context, id uuid.UUID) (*ledger.Entry, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Entry), args.Error(1)
}

func (m *MockLedgerRepository) GetByUserID(ctx context.Context, userID string, limit, offset int) ([]*ledger.Entry, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*ledger.Entry), args.Error(1)
}

func (m *MockLedgerRepository) CountByUserID(ctx context.Context, userID string) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLedgerRepository) GetByCycleKey(ctx context.Context, userID, cycleKey string) ([]*ledger.Entry, error) {
	args := m.Called(ctx, userID, cycleKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*ledger.Entry), args.Error(1)
}

func (m *MockLedgerRepository) GetByReference(ctx context.Context, referenceType, referenceID string) ([]*ledger.Entry, error) {
	args := m.Called(ctx, referenceType, referenceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*ledger.Entry), args.Error(1)
}

type MockLiabilityRepository struct {
	mock.Mock
}

func (m *MockLiabilityRepository) Create(ctx context.Context, l liability.Liability) error {
	args := m.Called(ctx, l)
	return args.Error(0)
}

func (m *MockLiabilityRepository) GetByID(ctx context.Context, id uuid.UUID) (liability.Liability, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(liability.Liability), args.Error(1)
}

func (m *MockLiabilityRepository) ListByUser(ctx context.Context, userID string) ([]liability.Liability, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]liability.Liability), args.Error(1)
}

func (m *MockLiabilityRepository) ListUserIDs(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockLiabilityRepository) Update(ctx context.Context, l liability.Liability) error {
	args := m.Called(ctx, l)
	return args.Error(0)
}

func (m *MockLiabilityRepository) LockForUpdate(ctx context.Context, id uuid.UUID) (liability.Liability, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(liability.Liability), args.Error(1)
}

func (m *MockLiabilityRepository) WithTx(tx pgx.Tx) liability.Repository {
	return m
}

type MockOutboxManager struct {
	mock.Mock
}

func (m *MockOutboxManager) Enqueue(ctx context.Context, tx pgx.Tx, entries []*ledger.Entry) error {
	args := m.Called(ctx, tx, entries)
	return args.Error(0)
}

type MockRunRepository struct {
	mock.Mock
}

func (m *MockRunRepository) Create(ctx context.Context, run *cycle.Run) error {
	return m.Called(ctx, run).Error(0)
}

func (m *MockRunRepository) GetByID(ctx context.Context, id uuid.UUID) (*cycle.Run, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cycle.Run), args.Error(1)
}

func (m *MockRunRepository) GetCompletedByKey(ctx context.Context, userID, idempotencyKey string) (*cycle.Run, error) {
	args := m.Called(ctx, userID, idempotencyKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cycle.Run), args.Error(1)
}

func (m *MockRunRepository) MarkCompleted(ctx context.Context, run *cycle.Run) error {
	return m.Called(ctx, run).Error(0)
}

func (m *MockRunRepository) MarkFailed(ctx context.Context, run *cycle.Run) error {
	return m.Called(ctx, run).Error(0)
}

func (m *MockRunRepository) FailStale(ctx context.Context, userID, idempotencyKey string, startedBefore time.Time, reason string) (int64, error) {
	args := m.Called(ctx, userID, idempotencyKey, startedBefore, reason)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRunRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*cycle.Run, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*cycle.Run), args.Error(1)
}

func (m *MockRunRepository) CountByUser(ctx context.Context, userID string) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

type MockSnapshotRepository struct {
	mock.Mock
}

func (m *MockSnapshotRepository) Upsert(ctx context.Context, snapshot *cycle.Snapshot) error {
	return m.Called(ctx, snapshot).Error(0)
}

func (m *MockSnapshotRepository) Get(ctx context.Context, userID, cycleKey string) (*cycle.Snapshot, error) {
	args := m.Called(ctx, userID, cycleKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cycle.Snapshot), args.Error(1)
}

type MockAuditRepository struct {
	mock.Mock
}

func (m *MockAuditRepository) Create(ctx context.Context, log *cycle.AuditLog) error {
	return m.Called(ctx, log).Error(0)
}

func (m *MockAuditRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*cycle.AuditLog, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*cycle.AuditLog), args.Error(1)
}

type MockTriggerPublisher struct {
	mock.Mock
}

func (m *MockTriggerPublisher) PublishTrigger(ctx context.Context, trigger shared.CycleTrigger) error {
	return m.Called(ctx, trigger).Error(0)
}

func (m *MockTriggerPublisher) Close() error {
	return m.Called().Error(0)
}

type MockCycleRunner struct {
	mock.Mock
}

func (m *MockCycleRunner) RunMonthlyCycle(ctx context.Context, req cycle.RunRequest) (*cycle.Result, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cycle.Result), args.Error(1)
}

func (m *MockCycleRunner) PreviewLiability(ctx context.Context, userID string, liabilityID uuid.UUID, cycles int) (*liability.Preview, error) {
	args := m.Called(ctx, userID, liabilityID, cycles)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*liability.Preview), args.Error(1)
}
