// internal/session/machine.go
package session

import (
	"strings"

	"agent-wallet-service/internal/domain"

	"github.com/shopspring/decimal"
)

type EventKind string

const (
	EventCommand         EventKind = "command"
	EventText            EventKind = "text"
	EventConfirm         EventKind = "confirm"
	EventCancel          EventKind = "cancel"
	EventPasswordChecked EventKind = "password_checked"
	EventStaged          EventKind = "staged"
	EventSubmitFinished  EventKind = "submit_finished"
)

const (
	CommandLock     = "lock"
	CommandUnlock   = "unlock"
	CommandTransfer = "transfer"
)

// WalletFacts is a snapshot of the wallet record taken by the caller
// right before Apply.
type WalletFacts struct {
	Exists      bool
	HasPassword bool
	Locked      bool
}

type Event struct {
	Kind       EventKind
	Command    string
	Text       string
	MessageRef int
	Wallet     WalletFacts

	// EventPasswordChecked
	Matched bool
	// EventStaged
	Blob string
	// EventSubmitFinished: keep the staged blob for an explicit retry,
	// presented again under MessageRef
	Retain bool
}

type EffectKind string

const (
	EffectReply           EffectKind = "reply"
	EffectDeleteSensitive EffectKind = "delete_sensitive"
	EffectDeleteMessage   EffectKind = "delete_message"
	EffectSetPassword     EffectKind = "set_password"
	EffectCheckPassword   EffectKind = "check_password"
	EffectLockWallet      EffectKind = "lock_wallet"
	EffectUnlockWallet    EffectKind = "unlock_wallet"
	EffectForwardPrompt   EffectKind = "forward_prompt"
	EffectExecuteTransfer EffectKind = "execute_transfer"
	EffectSubmitPending   EffectKind = "submit_pending"
)

// Effect is a side effect requested by the machine. Secret carries a
// plaintext password and must not outlive effect execution.
type Effect struct {
	Kind       EffectKind
	Text       string
	Secret     string
	MessageRef int
	Recipient  string
	Amount     decimal.Decimal
	Blob       string
}

func reply(text string) Effect {
	return Effect{Kind: EffectReply, Text: text}
}

// Machine is the pure transition function for conversation state.
type Machine struct {
	validAddress func(string) bool
}

func NewMachine(validAddress func(string) bool) *Machine {
	return &Machine{validAddress: validAddress}
}

// Apply returns the next state and the effects the caller must perform.
// It never performs I/O and never mutates s.
func (m *Machine) Apply(s State, ev Event) (State, []Effect) {
	next := s.clone()

	switch ev.Kind {
	case EventCommand:
		return m.command(next, ev)
	case EventText:
		return m.text(next, ev)
	case EventConfirm, EventCancel:
		return m.decision(next, ev)
	case EventPasswordChecked:
		return m.passwordChecked(next, ev)
	case EventStaged:
		next.Pending = &PendingTransaction{BlobBase64: ev.Blob, ConfirmationMessageRef: ev.MessageRef}
		return next, nil
	case EventSubmitFinished:
		if next.Pending != nil {
			if ev.Retain {
				next.Pending.InFlight = false
				if ev.MessageRef != 0 {
					next.Pending.ConfirmationMessageRef = ev.MessageRef
				}
			} else {
				next.Pending = nil
			}
		}
		return next, nil
	}
	return next, nil
}

// command handles the stateful commands. Each one replaces whatever
// awaiting mode was active but leaves a staged transaction alone.
func (m *Machine) command(next State, ev Event) (State, []Effect) {
	next.Mode = ModeIdle
	next.Transfer = nil

	if !ev.Wallet.Exists {
		return next, []Effect{reply(MsgNoWallet)}
	}

	switch ev.Command {
	case CommandLock:
		if !ev.Wallet.HasPassword {
			next.Mode = ModeAwaitingPasswordSet
			return next, []Effect{reply(MsgPromptPasswordSet)}
		}
		return next, []Effect{{Kind: EffectLockWallet}, reply(MsgLocked)}

	case CommandUnlock:
		if !ev.Wallet.HasPassword {
			return next, []Effect{reply(MsgPasswordNotSet)}
		}
		next.Mode = ModeAwaitingPasswordUnlock
		return next, []Effect{reply(MsgPromptPassword)}

	case CommandTransfer:
		if ev.Wallet.Locked {
			return next, []Effect{reply(MsgWalletLocked)}
		}
		next.Mode = ModeAwaitingTransferRecipient
		next.Transfer = &TransferDetails{}
		return next, []Effect{reply(MsgPromptRecipient)}
	}

	return next, nil
}

func (m *Machine) text(next State, ev Event) (State, []Effect) {
	switch next.Mode {
	case ModeAwaitingPasswordSet:
		next.Mode = ModeIdle
		next.LastSensitiveMessageRef = ev.MessageRef
		return next, []Effect{
			{Kind: EffectSetPassword, Secret: ev.Text},
			reply(MsgPasswordSet),
			{Kind: EffectDeleteSensitive, MessageRef: ev.MessageRef},
		}

	case ModeAwaitingPasswordUnlock:
		next.LastSensitiveMessageRef = ev.MessageRef
		return next, []Effect{
			{Kind: EffectCheckPassword, Secret: ev.Text},
			{Kind: EffectDeleteSensitive, MessageRef: ev.MessageRef},
		}

	case ModeAwaitingTransferRecipient:
		recipient := strings.TrimSpace(ev.Text)
		if m.validAddress == nil || !m.validAddress(recipient) {
			return next, []Effect{reply(MsgInvalidRecipient)}
		}
		next.Mode = ModeAwaitingTransferAmount
		next.Transfer = &TransferDetails{Recipient: recipient}
		return next, []Effect{reply(MsgPromptAmount)}

	case ModeAwaitingTransferAmount:
		transfer := next.Transfer
		next.Mode = ModeIdle
		next.Transfer = nil

		if transfer == nil || transfer.Recipient == "" {
			return next, []Effect{reply(MsgGenericError)}
		}
		if ev.Wallet.Locked {
			return next, []Effect{reply(MsgWalletLocked)}
		}
		amount, _, err := domain.ParseSOLAmount(ev.Text)
		if err != nil {
			return next, []Effect{reply(MsgInvalidAmount)}
		}
		return next, []Effect{{Kind: EffectExecuteTransfer, Recipient: transfer.Recipient, Amount: amount}}
	}

	// idle free text
	if next.Pending != nil {
		return next, []Effect{reply(MsgPendingExists)}
	}
	if !ev.Wallet.Exists {
		return next, []Effect{reply(MsgNoWallet)}
	}
	if ev.Wallet.Locked {
		return next, []Effect{reply(MsgWalletLockedChat)}
	}
	return next, []Effect{{Kind: EffectForwardPrompt, Text: ev.Text}}
}

func (m *Machine) passwordChecked(next State, ev Event) (State, []Effect) {
	if next.Mode != ModeAwaitingPasswordUnlock {
		return next, nil
	}
	if !ev.Matched {
		return next, []Effect{reply(MsgIncorrectPassword)}
	}
	next.Mode = ModeIdle
	return next, []Effect{{Kind: EffectUnlockWallet}, reply(MsgUnlocked)}
}

func (m *Machine) decision(next State, ev Event) (State, []Effect) {
	pending := next.Pending
	switch {
	case pending == nil:
		return next, []Effect{reply(MsgNothingPending)}
	case pending.ConfirmationMessageRef != 0 && ev.MessageRef != 0 && pending.ConfirmationMessageRef != ev.MessageRef:
		return next, []Effect{reply(MsgStaleConfirmation)}
	case pending.InFlight:
		return next, []Effect{reply(MsgAlreadyProcessing)}
	}

	if ev.Kind == EventCancel {
		next.Pending = nil
		return next, []Effect{
			{Kind: EffectDeleteMessage, MessageRef: pending.ConfirmationMessageRef},
			reply(MsgTransactionCancel),
		}
	}

	if ev.Wallet.Locked {
		return next, []Effect{reply(MsgWalletLocked)}
	}

	pending.InFlight = true
	return next, []Effect{
		{Kind: EffectDeleteMessage, MessageRef: pending.ConfirmationMessageRef},
		{Kind: EffectSubmitPending, Blob: pending.BlobBase64},
	}
}
