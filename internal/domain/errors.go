// internal/domain/errors.go
package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrDecryption            = errors.New("failed to decrypt wallet credentials")
	ErrInsufficientFunds     = errors.New("insufficient funds")
	ErrExpiredBlockReference = errors.New("block reference expired")
	ErrMalformedTransaction  = errors.New("malformed transaction")
	ErrSubmission            = errors.New("transaction submission failed")
	ErrToolNotFound          = errors.New("tool not found")
)

var (
	ErrWalletNotFound       = errors.New("wallet not found")
	ErrWalletExists         = errors.New("wallet already exists")
	ErrWalletLocked         = errors.New("wallet is locked")
	ErrPasswordNotSet       = errors.New("password not set")
	ErrNoPendingTransaction = errors.New("no pending transaction")
	ErrTransactionInFlight  = errors.New("transaction already in flight")
	ErrConfirmationTimeout  = errors.New("transaction confirmation timed out")
)

// NewInvalidInput wraps ErrInvalidInput with a user facing reason.
func NewInvalidInput(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, reason)
}

// NewMalformedTransaction wraps ErrMalformedTransaction with detail.
func NewMalformedTransaction(detail string) error {
	return fmt.Errorf("%w: %s", ErrMalformedTransaction, detail)
}

// InsufficientFundsError carries the balance and requirement in SOL.
// Either value may be zero when the RPC node did not report it.
type InsufficientFundsError struct {
	Balance  decimal.Decimal
	Required decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	if e.Required.IsZero() {
		return ErrInsufficientFunds.Error()
	}
	return fmt.Sprintf("insufficient funds: balance %s SOL, required %s SOL",
		e.Balance.String(), e.Required.String())
}

func (e *InsufficientFundsError) Is(target error) bool {
	return target == ErrInsufficientFunds
}

// SubmissionError is the catch-all for RPC and network failures.
type SubmissionError struct {
	Detail string
}

func (e *SubmissionError) Error() string {
	return "transaction submission failed: " + e.Detail
}

func (e *SubmissionError) Is(target error) bool {
	return target == ErrSubmission
}

// ErrorClass returns a short stable label for metrics and events.
func ErrorClass(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrDecryption):
		return "decryption"
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrExpiredBlockReference):
		return "expired_block_reference"
	case errors.Is(err, ErrMalformedTransaction):
		return "malformed_transaction"
	case errors.Is(err, ErrWalletLocked):
		return "wallet_locked"
	case errors.Is(err, ErrConfirmationTimeout):
		return "timeout"
	case errors.Is(err, ErrToolNotFound):
		return "tool_not_found"
	default:
		return "submission"
	}
}
