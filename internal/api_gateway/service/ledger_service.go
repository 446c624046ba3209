package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pfin-cycle-ledger/internal/domain/ledger"
)

// LedgerServiceImpl writes ledger entries straight to the ledger store
type LedgerServiceImpl struct {
	ledgerRepo ledger.Repository
	clock      func() time.Time
	logger     *slog.Logger
}

func NewLedgerService(logger *slog.Logger, ledgerRepo ledger.Repository, clock func() time.Time) LedgerService {
	if clock == nil {
		clock = time.Now
	}
	return &LedgerServiceImpl{
		ledgerRepo: ledgerRepo,
		clock:      clock,
		logger:     logger,
	}
}

func (s *LedgerServiceImpl) AppendEntry(ctx context.Context, draft ledger.Draft) (*ledger.Entry, error) {
	entry, err := ledger.NewEntry(draft, s.clock())
	if err != nil {
		s.logger.Info("Rejected ledger entry draft", "user_id", draft.UserID, "error", err)
		return nil, err
	}

	if err := s.ledgerRepo.Create(ctx, entry); err != nil {
		s.logger.Error("Failed to append ledger entry", "entry_id", entry.ID.String(), "user_id", entry.UserID, "error", err)
		return nil, err
	}

	s.logger.Info("Ledger entry appended",
		"entry_id", entry.ID.String(),
		"user_id", entry.UserID,
		"entry_type", string(entry.EntryType),
		"lines", len(entry.Lines),
	)
	return entry, nil
}

func (s *LedgerServiceImpl) GetEntry(ctx context.Context, userID string, id uuid.UUID) (*ledger.Entry, error) {
	entry, err := s.ledgerRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if entry.UserID != userID {
		return nil, ledger.ErrEntryNotFound{EntryID: id}
	}
	return entry, nil
}

// ListEntries pages in the store when listing everything. A single cycle is
// small enough to page in memory.
func (s *LedgerServiceImpl) ListEntries(ctx context.Context, userID, cycleKey string, page, perPage int) ([]*ledger.Entry, int64, error) {
	offset := (page - 1) * perPage

	if cycleKey != "" {
		entries, err := s.ledgerRepo.GetByCycleKey(ctx, userID, cycleKey)
		if err != nil {
			return nil, 0, err
		}
		total := int64(len(entries))
		if offset >= len(entries) {
			return []*ledger.Entry{}, total, nil
		}
		end := min(offset+perPage, len(entries))
		return entries[offset:end], total, nil
	}

	entries, err := s.ledgerRepo.GetByUserID(ctx, userID, perPage, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.ledgerRepo.CountByUserID(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

func (s *LedgerServiceImpl) ReverseEntry(ctx context.Context, userID string, id uuid.UUID, description string) (*ledger.Entry, error) {
	original, err := s.GetEntry(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	existing, err := s.ledgerRepo.GetByReference(ctx, ledger.ReferenceTypeLedgerEntry, id.String())
	if err != nil {
		return nil, err
	}
	for _, e := range existing {
		if e.EntryType == ledger.EntryTypeReversal {
			return nil, ledger.ErrAlreadyReversed
		}
	}

	return s.AppendEntry(ctx, ledger.ReversalDraft(original, description, s.clock()))
}
