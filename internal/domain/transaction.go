// internal/domain/transaction.go
package domain

import (
	"math/big"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	LamportsPerSOL = 1_000_000_000

	// EstimatedFeeLamports is the flat network fee reserved on top of a direct transfer.
	EstimatedFeeLamports = 5000

	// SOLDecimals is the maximum precision accepted for SOL amounts.
	SOLDecimals = 9

	maxAmountExponent = 10
	maxAmountDigits   = 40
	maxAmountLength   = 64
)

type TransactionKind string

const (
	TransactionKindLegacy    TransactionKind = "legacy"
	TransactionKindVersioned TransactionKind = "versioned"
	TransactionKindTransfer  TransactionKind = "transfer"
)

type TransactionStatus string

const (
	TransactionStatusConfirmed TransactionStatus = "confirmed"
	TransactionStatusFailed    TransactionStatus = "failed"
	TransactionStatusPending   TransactionStatus = "pending"
)

// StagedTransaction is a decoded, not yet signed, transaction blob.
type StagedTransaction struct {
	BlobBase64       string
	Kind             TransactionKind
	FeePayer         string
	RequiredSigners  int
	InstructionCount int
	ProgramIDs       []string
	HasBlockhash     bool
}

// SubmitResult describes the outcome of signing and broadcasting.
// Broadcast is true once the raw bytes were accepted by the RPC node.
type SubmitResult struct {
	Kind        TransactionKind
	Signature   string
	ExplorerURL string
	Broadcast   bool
	Amount      decimal.Decimal
	Recipient   string
}

// TransactionEvent is emitted after every settlement attempt.
type TransactionEvent struct {
	EventID    string            `json:"event_id"`
	UserID     string            `json:"user_id"`
	Kind       TransactionKind   `json:"kind"`
	Signature  string            `json:"signature,omitempty"`
	Status     TransactionStatus `json:"status"`
	ErrorClass string            `json:"error_class,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// LamportsToSOL converts an integer lamport amount into SOL.
func LamportsToSOL(lamports uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(lamports), -SOLDecimals)
}

// SOLToLamports converts a SOL amount into lamports. The amount must be
// positive and carry at most nine decimal places.
func SOLToLamports(amount decimal.Decimal) (uint64, error) {
	if !amount.IsPositive() {
		return 0, NewInvalidInput("amount must be greater than 0")
	}
	// Bound the exponent before any big-int work. A coefficient of at least
	// one times 10^11 SOL already overflows uint64 lamports.
	if amount.Exponent() > maxAmountExponent {
		return 0, NewInvalidInput("amount is too large")
	}
	if amount.Exponent() < -maxAmountDigits || amount.NumDigits() > maxAmountDigits {
		return 0, NewInvalidInput("amount supports at most 9 decimal places")
	}
	lamports := amount.Shift(SOLDecimals)
	if !lamports.IsInteger() {
		return 0, NewInvalidInput("amount supports at most 9 decimal places")
	}
	n := lamports.BigInt()
	if !n.IsUint64() {
		return 0, NewInvalidInput("amount is too large")
	}
	return n.Uint64(), nil
}

// ParseSOLAmount parses user supplied text into a transferable SOL amount.
func ParseSOLAmount(text string) (decimal.Decimal, uint64, error) {
	text = strings.TrimSpace(text)
	if len(text) > maxAmountLength {
		return decimal.Zero, 0, NewInvalidInput("amount is not a number")
	}
	amount, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Zero, 0, NewInvalidInput("amount is not a number")
	}
	lamports, err := SOLToLamports(amount)
	if err != nil {
		return decimal.Zero, 0, err
	}
	return amount, lamports, nil
}
