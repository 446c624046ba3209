// Package outbox holds ledger entries written alongside liability updates until
// the poller delivers them to the ledger store.
package outbox

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pfin-cycle-ledger/internal/domain/ledger"
	"github.com/pfin-cycle-ledger/internal/domain/shared"
)

// Message carries one serialized ledger entry
type Message struct {
	ID            int64               `json:"id"`
	EntryID       uuid.UUID           `json:"entry_id"`
	UserID        string              `json:"user_id"`
	Payload       json.RawMessage     `json:"payload"`
	Status        shared.OutboxStatus `json:"status"`
	Attempts      int                 `json:"attempts"`
	CreatedAt     time.Time           `json:"created_at"`
	LastAttemptAt *time.Time          `json:"last_attempt_at,omitempty"`
}

func NewMessage(entry *ledger.Entry, now time.Time) (*Message, error) {
	payload, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ledger entry %s: %w", entry.ID, err)
	}

	return &Message{
		EntryID:   entry.ID,
		UserID:    entry.UserID,
		Payload:   payload,
		Status:    shared.OutboxStatusPending,
		CreatedAt: now,
	}, nil
}

func (m *Message) IncrementAttempts(now time.Time) {
	m.Attempts++
	m.LastAttemptAt = &now
}

func (m *Message) MarkAsProcessed(now time.Time) {
	m.Status = shared.OutboxStatusProcessed
	m.LastAttemptAt = &now
}

func (m *Message) MarkAsFailed(now time.Time) {
	m.Status = shared.OutboxStatusFailedToPublish
	m.LastAttemptAt = &now
}

// GetLedgerEntry decodes the payload back into the entry it was built from
func (m *Message) GetLedgerEntry() (*ledger.Entry, error) {
	var entry ledger.Entry
	if err := json.Unmarshal(m.Payload, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}
