package handler

import (
	"errors"

	"github.com/pfin-cycle-ledger/internal/domain/cadence"
	"github.com/pfin-cycle-ledger/internal/domain/ledger"
	"github.com/pfin-cycle-ledger/internal/domain/liability"
)

// Error codes beyond the generic ones in http_response.go
const (
	CodeImbalancedEntry    = "IMBALANCED_ENTRY"
	CodeInvalidLineAmount  = "INVALID_LINE_AMOUNT"
	CodeInvalidRecurrence  = "INVALID_RECURRENCE"
	CodeInvalidLiability   = "INVALID_LIABILITY"
	CodeRunInProgress      = "RUN_IN_PROGRESS"
	CodeRunFailed          = "CYCLE_RUN_FAILED"
	CodeAlreadyReversed    = "ALREADY_REVERSED"
	CodeInsufficientCredit = "INSUFFICIENT_CREDIT"
	CodeOverpayment        = "PAYMENT_EXCEEDS_BALANCE"
)

var liabilityValidationErrors = []error{
	liability.ErrEmptyName,
	liability.ErrEmptyUserID,
	liability.ErrNegativeAmount,
	liability.ErrInvalidCreditLimit,
	liability.ErrMissingMinimumPercent,
	liability.ErrInvalidMinimumPercent,
	liability.ErrUnknownMinimumPolicy,
	liability.ErrInvalidAmount,
	liability.ErrInvalidCycleDay,
	liability.ErrOperationNotPermitted,
	liability.ErrMissingLastCycleAnchor,
}

// validationCode returns the error code of a client input error, or "" for anything else
func validationCode(err error) string {
	var imbalanced ledger.ImbalancedEntryError
	var invalidLine ledger.InvalidLineAmountError
	switch {
	case errors.As(err, &imbalanced):
		return CodeImbalancedEntry
	case errors.As(err, &invalidLine):
		return CodeInvalidLineAmount
	case errors.Is(err, ledger.ErrInvalidDraft):
		return "BAD_REQUEST"
	case errors.Is(err, cadence.ErrInvalidRecurrence):
		return CodeInvalidRecurrence
	}
	for _, target := range liabilityValidationErrors {
		if errors.Is(err, target) {
			return CodeInvalidLiability
		}
	}
	return ""
}
