package outbox

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pfin-cycle-ledger/internal/domain/ledger"
	"github.com/pfin-cycle-ledger/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEntry(t *testing.T) *ledger.Entry {
	t.Helper()
	at := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)
	entry, err := ledger.NewEntry(ledger.Draft{
		UserID:      "user-1",
		EntryType:   ledger.EntryTypeCardInterest,
		Description: "Interest on Travel card",
		OccurredAt:  at,
		CycleKey:    "2024-03",
		Lines: []ledger.DraftLine{
			{LineType: ledger.LineTypeDebit, AccountCode: "EXPENSE:INTEREST:TRAVEL_1A2B3C4D", Amount: decimal.RequireFromString("12.35")},
			{LineType: ledger.LineTypeCredit, AccountCode: "LIABILITY:CARD:TRAVEL_1A2B3C4D", Amount: decimal.RequireFromString("12.35")},
		},
	}, at)
	require.NoError(t, err)
	return entry
}

func TestNewMessage(t *testing.T) {
	t.Run("SuccessfulCreation", func(t *testing.T) {
		entry := newTestEntry(t)
		now := time.Date(2024, 4, 1, 0, 15, 0, 0, time.UTC)

		msg, err := NewMessage(entry, now)

		require.NoError(t, err)
		assert.Equal(t, entry.ID, msg.EntryID)
		assert.Equal(t, "user-1", msg.UserID)
		assert.Equal(t, shared.OutboxStatusPending, msg.Status)
		assert.Equal(t, 0, msg.Attempts)
		assert.Nil(t, msg.LastAttemptAt)
		assert.Equal(t, now, msg.CreatedAt)

		var raw map[string]any
		require.NoError(t, json.Unmarshal(msg.Payload, &raw))
		assert.Equal(t, entry.ID.String(), raw["id"])
	})
}

func TestMessage_StatusTransitions(t *testing.T) {
	now := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)

	t.Run("IncrementAttempts", func(t *testing.T) {
		msg := &Message{Attempts: 1}
		msg.IncrementAttempts(now)
		assert.Equal(t, 2, msg.Attempts)
		require.NotNil(t, msg.LastAttemptAt)
		assert.Equal(t, now, *msg.LastAttemptAt)
	})

	t.Run("MarkAsProcessed", func(t *testing.T) {
		msg := &Message{Status: shared.OutboxStatusPending}
		msg.MarkAsProcessed(now)
		assert.Equal(t, shared.OutboxStatusProcessed, msg.Status)
		assert.Equal(t, now, *msg.LastAttemptAt)
	})

	t.Run("MarkAsFailed", func(t *testing.T) {
		msg := &Message{Status: shared.OutboxStatusPending}
		msg.MarkAsFailed(now)
		assert.Equal(t, shared.OutboxStatusFailedToPublish, msg.Status)
		assert.Equal(t, now, *msg.LastAttemptAt)
	})
}

func TestMessage_GetLedgerEntry(t *testing.T) {
	t.Run("SuccessfulDecode", func(t *testing.T) {
		entry := newTestEntry(t)
		msg, err := NewMessage(entry, time.Now())
		require.NoError(t, err)

		decoded, err := msg.GetLedgerEntry()

		require.NoError(t, err)
		assert.Equal(t, entry.ID, decoded.ID)
		assert.Equal(t, entry.EntryType, decoded.EntryType)
		assert.Equal(t, entry.CycleKey, decoded.CycleKey)
		require.Len(t, decoded.Lines, 2)
		assert.True(t, entry.Lines[0].Amount.Equal(decoded.Lines[0].Amount))
		assert.True(t, entry.OccurredAt.Equal(decoded.OccurredAt))
	})

	t.Run("InvalidPayload", func(t *testing.T) {
		msg := &Message{Payload: json.RawMessage(`{"id":`)}
		_, err := msg.GetLedgerEntry()
		assert.Error(t, err)
	})
}

func TestErrMessageNotFound_Is(t *testing.T) {
	err := error(ErrMessageNotFound{ID: 7})
	assert.True(t, errors.Is(err, ErrMessageNotFound{}))
	assert.True(t, errors.Is(err, ErrMessageNotFound{ID: 7}))
	assert.False(t, errors.Is(err, ErrMessageNotFound{ID: 8}))
	assert.False(t, errors.Is(err, ErrDuplicateMessage{EntryID: uuid.New()}))
}
