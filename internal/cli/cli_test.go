package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pfin-cycle-ledger/internal/config"
	"github.com/pfin-cycle-ledger/internal/cycle_processor/service"
	"github.com/pfin-cycle-ledger/internal/domain/cycle"
	"github.com/pfin-cycle-ledger/internal/domain/liability"
	"github.com/pfin-cycle-ledger/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

type MockCycleService struct {
	mock.Mock
}

func (m *MockCycleService) RunMonthlyCycle(ctx context.Context, req cycle.RunRequest) (*cycle.Result, error) {
	args := m.Called(ctx, req)
	if res, ok := args.Get(0).(*cycle.Result); ok {
		return res, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCycleService) PreviewLiability(ctx context.Context, userID string, liabilityID uuid.UUID, cycles int) (*liability.Preview, error) {
	args := m.Called(ctx, userID, liabilityID, cycles)
	if p, ok := args.Get(0).(*liability.Preview); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

func execute(t *testing.T, connect connectFunc, args ...string) (string, error) {
	t.Helper()
	if connect == nil {
		connect = func(context.Context, *config.Config, *slog.Logger) (service.CycleService, func(), error) {
			t.Fatal("stores must not be touched")
			return nil, nil, nil
		}
	}
	cmd := newRootCommand(connect, func() time.Time { return testNow })
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func decodeOutput[T any](t *testing.T, out string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(out), &v), out)
	return v
}

func TestSimulateCard(t *testing.T) {
	out, err := execute(t, nil, "simulate", "card",
		"--statement", "1000", "--apr", "24", "--policy", "FIXED", "--min", "50", "--cycles", "1")
	require.NoError(t, err)

	res := decodeOutput[liability.CardCycleResult](t, out)
	assert.Equal(t, 1, res.Cycles)
	assert.Equal(t, 20.0, res.InterestAccrued)
	assert.Equal(t, 1020.0, res.DueBalance)
	assert.Equal(t, 50.0, res.MinimumDue)
	assert.Equal(t, 50.0, res.PaymentsApplied)
	assert.Equal(t, 970.0, res.Balance)
}

func TestSimulateCard_InvalidTerms(t *testing.T) {
	t.Run("negative apr", func(t *testing.T) {
		_, err := execute(t, nil, "simulate", "card", "--statement", "100", "--apr", "-1")
		assert.ErrorIs(t, err, liability.ErrNegativeAmount)
	})

	t.Run("percent policy without percent", func(t *testing.T) {
		_, err := execute(t, nil, "simulate", "card", "--statement", "100", "--policy", "percent_plus_interest")
		assert.ErrorIs(t, err, liability.ErrMissingMinimumPercent)
	})

	t.Run("unknown policy", func(t *testing.T) {
		_, err := execute(t, nil, "simulate", "card", "--policy", "SOMETIMES")
		assert.ErrorIs(t, err, liability.ErrUnknownMinimumPolicy)
	})
}

func TestSimulateLoan(t *testing.T) {
	out, err := execute(t, nil, "simulate", "loan",
		"--balance", "5000", "--apr", "6", "--min", "200", "--cadence", "MONTHLY", "--cycles", "1")
	require.NoError(t, err)

	res := decodeOutput[liability.LoanCycleResult](t, out)
	assert.Equal(t, 25.0, res.InterestAccrued)
	assert.Equal(t, 200.0, res.PaymentsApplied)
	assert.Equal(t, 4825.0, res.Balance)
	assert.False(t, res.PaidOff)
}

func TestSimulateLoan_RejectsBadRecurrence(t *testing.T) {
	_, err := execute(t, nil, "simulate", "loan", "--balance", "100", "--cadence", "CUSTOM", "--interval", "0", "--unit", "DAYS")
	assert.Error(t, err)
}

func TestNextOccurrence(t *testing.T) {
	t.Run("month end clamps", func(t *testing.T) {
		out, err := execute(t, nil, "next-occurrence", "--cadence", "MONTHLY", "--anchor", "2024-01-31", "--ref", "2024-02-10")
		require.NoError(t, err)

		res := decodeOutput[occurrenceOutput](t, out)
		assert.Equal(t, "2024-02-29", res.NextOccurrence)
		assert.Equal(t, "2024-02", res.CycleKey)
		assert.False(t, res.Exhausted)
		assert.Nil(t, res.MonthlyEquivalent)
	})

	t.Run("past one time is exhausted", func(t *testing.T) {
		out, err := execute(t, nil, "next-occurrence", "--cadence", "ONE_TIME", "--anchor", "2024-01-01")
		require.NoError(t, err)

		res := decodeOutput[occurrenceOutput](t, out)
		assert.True(t, res.Exhausted)
		assert.Empty(t, res.NextOccurrence)
		assert.Equal(t, "2024-03-15", res.ReferenceDate)
	})

	t.Run("monthly equivalent", func(t *testing.T) {
		out, err := execute(t, nil, "next-occurrence", "--cadence", "weekly", "--anchor", "2024-03-01", "--amount", "120")
		require.NoError(t, err)

		res := decodeOutput[occurrenceOutput](t, out)
		require.NotNil(t, res.MonthlyEquivalent)
		assert.Equal(t, 520.0, *res.MonthlyEquivalent)
		assert.Equal(t, "2024-03-15", res.NextOccurrence)
	})

	t.Run("bad date", func(t *testing.T) {
		_, err := execute(t, nil, "next-occurrence", "--anchor", "31/01/2024")
		assert.ErrorContains(t, err, "invalid date")
	})
}

func writeConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cyclectl.env")
	require.NoError(t, os.WriteFile(path, []byte("LOG_LEVEL=error\nAPP_NAME=cyclectl-test\n"), 0o600))
	return path
}

func TestRun(t *testing.T) {
	cfgPath := writeConfig(t)
	ref := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)

	runner := new(MockCycleService)
	runner.On("RunMonthlyCycle", mock.Anything, mock.MatchedBy(func(req cycle.RunRequest) bool {
		return req.UserID == "alice" &&
			req.Source == shared.RunSourceManual &&
			req.IdempotencyKey == "k-1" &&
			req.ReferenceInstant.Equal(ref)
	})).Return(&cycle.Result{
		RunID:            uuid.New(),
		UserID:           "alice",
		CycleKey:         "2024-04",
		UpdatedCardCount: 1,
	}, nil).Once()

	released := false
	connect := func(_ context.Context, cfg *config.Config, _ *slog.Logger) (service.CycleService, func(), error) {
		assert.Equal(t, "cyclectl-test", cfg.Application.Name)
		return runner, func() { released = true }, nil
	}

	out, err := execute(t, connect, "run", "--user", "alice", "--ref", "2024-04-01", "--key", "k-1", "--config", cfgPath)
	require.NoError(t, err)

	res := decodeOutput[cycle.Result](t, out)
	assert.Equal(t, "2024-04", res.CycleKey)
	assert.Equal(t, 1, res.UpdatedCardCount)
	assert.True(t, released)
	runner.AssertExpectations(t)
}

func TestRun_Errors(t *testing.T) {
	t.Run("user is required", func(t *testing.T) {
		_, err := execute(t, nil, "run")
		assert.ErrorContains(t, err, "user")
	})

	t.Run("key too long", func(t *testing.T) {
		long := string(bytes.Repeat([]byte("k"), 256))
		_, err := execute(t, nil, "run", "--user", "alice", "--key", long)
		assert.ErrorIs(t, err, cycle.ErrInvalidRunRequest)
	})

	t.Run("missing config file", func(t *testing.T) {
		_, err := execute(t, nil, "run", "--user", "alice", "--config", filepath.Join(t.TempDir(), "absent.env"))
		assert.ErrorContains(t, err, "config file")
	})

	t.Run("connect failure", func(t *testing.T) {
		connect := func(context.Context, *config.Config, *slog.Logger) (service.CycleService, func(), error) {
			return nil, nil, errors.New("postgres unreachable")
		}
		_, err := execute(t, connect, "run", "--user", "alice", "--config", writeConfig(t))
		assert.ErrorContains(t, err, "postgres unreachable")
	})

	t.Run("run failure", func(t *testing.T) {
		runner := new(MockCycleService)
		runner.On("RunMonthlyCycle", mock.Anything, mock.Anything).Return(nil, cycle.ErrRunInProgress).Once()
		connect := func(context.Context, *config.Config, *slog.Logger) (service.CycleService, func(), error) {
			return runner, func() {}, nil
		}
		_, err := execute(t, connect, "run", "--user", "alice", "--config", writeConfig(t))
		assert.ErrorIs(t, err, cycle.ErrRunInProgress)
	})
}
