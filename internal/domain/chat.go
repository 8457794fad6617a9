// internal/domain/chat.go
package domain

import "time"

type InboundKind string

const (
	InboundCommand  InboundKind = "command"
	InboundText     InboundKind = "text"
	InboundCallback InboundKind = "callback"
)

const (
	CallbackConfirmTransaction = "confirm_transaction"
	CallbackCancelTransaction  = "cancel_transaction"
)

// InboundEvent is a transport independent chat update. Polling and webhook
// delivery both produce this value.
type InboundEvent struct {
	ID         string
	Kind       InboundKind
	UserID     string
	ChatID     int64
	MessageRef int
	Command    string
	Text       string

	CallbackData       string
	CallbackMessageRef int

	ReceivedAt time.Time
}
