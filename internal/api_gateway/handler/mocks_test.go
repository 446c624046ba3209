package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pfin-cycle-ledger/internal/api_gateway/middleware"
	"github.com/pfin-cycle-ledger/internal/api_gateway/service"
	"github.com/pfin-cycle-ledger/internal/domain/cycle"
	"github.com/pfin-cycle-ledger/internal/domain/ledger"
	"github.com/pfin-cycle-ledger/internal/domain/liability"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testUserID = "user-1"

var testNow = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

func testClock() time.Time { return testNow }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// PaginatedResponse is a generic version of Response for testing paginated data
type PaginatedResponse[T any] struct {
	Data          []T        `json:"data"`
	Error         *ErrorInfo `json:"error,omitempty"`
	CorrelationID string     `json:"correlation_id,omitempty"`
	Meta          *MetaInfo  `json:"meta,omitempty"`
}

// DataResponse is a generic version of Response for testing single objects
type DataResponse[T any] struct {
	Data          T          `json:"data"`
	Error         *ErrorInfo `json:"error,omitempty"`
	CorrelationID string     `json:"correlation_id,omitempty"`
}

// newTestRouter authenticates every request as testUserID
func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(middleware.CorrelationID(), func(c *gin.Context) {
		c.Set(middleware.UserIDKey, testUserID)
		c.Next()
	})
	return router
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewBuffer(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	return out
}

type MockCycleService struct {
	mock.Mock
}

func (m *MockCycleService) RunCycle(ctx context.Context, req cycle.RunRequest) (*cycle.Result, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cycle.Result), args.Error(1)
}

func (m *MockCycleService) TriggerCycle(ctx context.Context, req cycle.RunRequest) (uuid.UUID, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *MockCycleService) ListRuns(ctx context.Context, userID string, page, perPage int) ([]*cycle.Run, int64, error) {
	args := m.Called(ctx, userID, page, perPage)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*cycle.Run), args.Get(1).(int64), args.Error(2)
}

func (m *MockCycleService) GetSnapshot(ctx context.Context, userID, cycleKey string) (*cycle.Snapshot, error) {
	args := m.Called(ctx, userID, cycleKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cycle.Snapshot), args.Error(1)
}

func (m *MockCycleService) ListAudits(ctx context.Context, userID string, limit int) ([]*cycle.AuditLog, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*cycle.AuditLog), args.Error(1)
}

func (m *MockCycleService) PreviewLiability(ctx context.Context, userID string, liabilityID uuid.UUID, cycles int) (*liability.Preview, error) {
	args := m.Called(ctx, userID, liabilityID, cycles)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*liability.Preview), args.Error(1)
}

type MockLedgerService struct {
	mock.Mock
}

func (m *MockLedgerService) AppendEntry(ctx context.Context, draft ledger.Draft) (*ledger.Entry, error) {
	args := m.Called(ctx, draft)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Entry), args.Error(1)
}

func (m *MockLedgerService) GetEntry(ctx context.Context, userID string, id uuid.UUID) (*ledger.Entry, error) {
	args := m.Called(ctx, userID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Entry), args.Error(1)
}

func (m *MockLedgerService) ListEntries(ctx context.Context, userID, cycleKey string, page, perPage int) ([]*ledger.Entry, int64, error) {
	args := m.Called(ctx, userID, cycleKey, page, perPage)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*ledger.Entry), args.Get(1).(int64), args.Error(2)
}

func (m *MockLedgerService) ReverseEntry(ctx context.Context, userID string, id uuid.UUID, description string) (*ledger.Entry, error) {
	args := m.Called(ctx, userID, id, description)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Entry), args.Error(1)
}

type MockLiabilityService struct {
	mock.Mock
}

func (m *MockLiabilityService) ListLiabilities(ctx context.Context, userID string) ([]liability.Liability, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]liability.Liability), args.Error(1)
}

func (m *MockLiabilityService) CreateCard(ctx context.Context, params service.CardParams) (*liability.Card, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*liability.Card), args.Error(1)
}

func (m *MockLiabilityService) CreateLoan(ctx context.Context, params service.LoanParams) (*liability.Loan, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*liability.Loan), args.Error(1)
}

func (m *MockLiabilityService) Charge(ctx context.Context, userID string, id uuid.UUID, amount float64, description string) (liability.Liability, *ledger.Entry, error) {
	args := m.Called(ctx, userID, id, amount, description)
	return unpackOperation(args)
}

func (m *MockLiabilityService) Pay(ctx context.Context, userID string, id uuid.UUID, amount float64, description string) (liability.Liability, *ledger.Entry, error) {
	args := m.Called(ctx, userID, id, amount, description)
	return unpackOperation(args)
}

func unpackOperation(args mock.Arguments) (liability.Liability, *ledger.Entry, error) {
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(liability.Liability), args.Get(1).(*ledger.Entry), args.Error(2)
}
