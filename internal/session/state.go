// internal/session/state.go
package session

import "github.com/shopspring/decimal"

type Mode string

const (
	ModeIdle                      Mode = "idle"
	ModeAwaitingPasswordSet       Mode = "awaiting_password_set"
	ModeAwaitingPasswordUnlock    Mode = "awaiting_password_unlock"
	ModeAwaitingTransferRecipient Mode = "awaiting_transfer_recipient"
	ModeAwaitingTransferAmount    Mode = "awaiting_transfer_amount"
)

type TransferDetails struct {
	Recipient string           `json:"recipient"`
	Amount    *decimal.Decimal `json:"amount,omitempty"`
}

// PendingTransaction is a staged blob waiting for confirm or cancel.
// InFlight is set once a confirm was accepted and signing started.
type PendingTransaction struct {
	BlobBase64             string `json:"blob_base64"`
	ConfirmationMessageRef int    `json:"confirmation_message_ref"`
	InFlight               bool   `json:"in_flight,omitempty"`
}

// State is the per-user conversation state. Only one awaiting mode is
// active at a time; Pending is independent of Mode.
type State struct {
	Mode                    Mode                `json:"mode"`
	Transfer                *TransferDetails    `json:"transfer,omitempty"`
	Pending                 *PendingTransaction `json:"pending,omitempty"`
	LastSensitiveMessageRef int                 `json:"last_sensitive_message_ref,omitempty"`
}

// Empty reports whether the state carries nothing worth storing.
func (s State) Empty() bool {
	return (s.Mode == "" || s.Mode == ModeIdle) &&
		s.Transfer == nil &&
		s.Pending == nil &&
		s.LastSensitiveMessageRef == 0
}

func (s State) clone() State {
	out := s
	if out.Mode == "" {
		out.Mode = ModeIdle
	}
	if s.Transfer != nil {
		t := *s.Transfer
		out.Transfer = &t
	}
	if s.Pending != nil {
		p := *s.Pending
		out.Pending = &p
	}
	return out
}
