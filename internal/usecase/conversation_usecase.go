// internal/usecase/conversation_usecase.go
package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"agent-wallet-service/internal/agent"
	"agent-wallet-service/internal/chains/sol"
	"agent-wallet-service/internal/domain"
	"agent-wallet-service/internal/metrics"
	"agent-wallet-service/internal/session"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const (
	CommandStart        = "start"
	CommandHelp         = "help"
	CommandCheckAddress = "checkaddress"
	CommandBalance      = "balance"
)

// ConversationUsecase routes chat events for every user. Events of one user
// are handled strictly one at a time.
type ConversationUsecase struct {
	wallets      *WalletUsecase
	transactions *TransactionUsecase
	prompts      agent.PromptService
	messenger    Messenger
	sessions     session.Store
	machine      *session.Machine
	locks        *session.KeyedMutex
	network      string
	agentTimeout time.Duration
	logger       *zap.Logger
}

func NewConversationUsecase(
	wallets *WalletUsecase,
	transactions *TransactionUsecase,
	prompts agent.PromptService,
	messenger Messenger,
	sessions session.Store,
	network string,
	agentTimeout time.Duration,
	logger *zap.Logger,
) *ConversationUsecase {
	if agentTimeout <= 0 {
		agentTimeout = 60 * time.Second
	}
	return &ConversationUsecase{
		wallets:      wallets,
		transactions: transactions,
		prompts:      prompts,
		messenger:    messenger,
		sessions:     sessions,
		machine:      session.NewMachine(sol.IsValidAddress),
		locks:        session.NewKeyedMutex(),
		network:      network,
		agentTimeout: agentTimeout,
		logger:       logger,
	}
}

// HandleEvent processes one inbound update to completion. Failures are
// reported to the user and logged; nothing is returned to the transport.
func (uc *ConversationUsecase) HandleEvent(ctx context.Context, ev domain.InboundEvent) {
	metrics.ChatEventsTotal.WithLabelValues(string(ev.Kind)).Inc()

	unlock := uc.locks.Lock(ev.UserID)
	defer unlock()

	uc.logger.Debug("handling chat event",
		zap.String("event_id", ev.ID),
		zap.String("user_id", ev.UserID),
		zap.String("kind", string(ev.Kind)))

	switch ev.Kind {
	case domain.InboundCommand:
		uc.handleCommand(ctx, ev)

	case domain.InboundText:
		uc.step(ctx, ev, session.Event{Kind: session.EventText, Text: ev.Text, MessageRef: ev.MessageRef})

	case domain.InboundCallback:
		switch ev.CallbackData {
		case domain.CallbackConfirmTransaction:
			uc.step(ctx, ev, session.Event{Kind: session.EventConfirm, MessageRef: ev.CallbackMessageRef})
		case domain.CallbackCancelTransaction:
			uc.step(ctx, ev, session.Event{Kind: session.EventCancel, MessageRef: ev.CallbackMessageRef})
		default:
			uc.logger.Warn("unknown callback",
				zap.String("user_id", ev.UserID),
				zap.String("data", ev.CallbackData))
			uc.reply(ctx, ev.ChatID, msgCallbackFailed)
		}
	}
}

func (uc *ConversationUsecase) handleCommand(ctx context.Context, ev domain.InboundEvent) {
	switch strings.ToLower(ev.Command) {
	case CommandStart:
		wallet, created, err := uc.wallets.CreateWallet(ctx, ev.UserID)
		switch {
		case err != nil:
			uc.logger.Error("failed to create wallet", zap.String("user_id", ev.UserID), zap.Error(err))
			uc.reply(ctx, ev.ChatID, msgCreateFailed)
		case created:
			uc.reply(ctx, ev.ChatID, welcomeMessage(wallet.PublicKey))
		default:
			uc.reply(ctx, ev.ChatID, msgWalletExists)
		}

	case CommandHelp:
		uc.reply(ctx, ev.ChatID, HelpMessage)

	case CommandCheckAddress:
		wallet, err := uc.wallets.GetWallet(ctx, ev.UserID)
		switch {
		case errors.Is(err, domain.ErrWalletNotFound):
			uc.reply(ctx, ev.ChatID, session.MsgNoWallet)
		case err != nil:
			uc.logger.Error("failed to load wallet", zap.String("user_id", ev.UserID), zap.Error(err))
			uc.reply(ctx, ev.ChatID, msgAddressFailed)
		default:
			uc.reply(ctx, ev.ChatID, addressBlock(wallet.PublicKey))
		}

	case CommandBalance:
		balance, err := uc.wallets.Balance(ctx, ev.UserID)
		switch {
		case errors.Is(err, domain.ErrWalletNotFound):
			uc.reply(ctx, ev.ChatID, session.MsgNoWallet)
		case errors.Is(err, domain.ErrWalletLocked):
			uc.reply(ctx, ev.ChatID, session.MsgWalletLocked)
		case err != nil:
			uc.logger.Error("failed to fetch balance", zap.String("user_id", ev.UserID), zap.Error(err))
			uc.reply(ctx, ev.ChatID, msgBalanceFailed)
		default:
			uc.reply(ctx, ev.ChatID, balanceMessage(balance))
		}

	case session.CommandLock, session.CommandUnlock, session.CommandTransfer:
		uc.step(ctx, ev, session.Event{Kind: session.EventCommand, Command: strings.ToLower(ev.Command)})

	default:
		uc.reply(ctx, ev.ChatID, msgUnknownCommand)
	}
}

// step feeds one event through the state machine and performs the
// resulting effects. Effects may yield follow-up events, which are applied
// in order within the same critical section.
func (uc *ConversationUsecase) step(ctx context.Context, ev domain.InboundEvent, first session.Event) {
	facts, err := uc.facts(ctx, ev.UserID)
	if err != nil {
		uc.logger.Error("failed to load wallet facts", zap.String("user_id", ev.UserID), zap.Error(err))
		uc.reply(ctx, ev.ChatID, session.MsgGenericError)
		return
	}

	state, err := uc.sessions.Get(ctx, ev.UserID)
	if err != nil {
		uc.logger.Error("failed to load session", zap.String("user_id", ev.UserID), zap.Error(err))
		uc.reply(ctx, ev.ChatID, session.MsgGenericError)
		return
	}

	queue := []session.Event{first}
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		next.Wallet = facts

		var effects []session.Effect
		state, effects = uc.machine.Apply(state, next)
		uc.save(ctx, ev.UserID, state)

		failed := false
		for _, eff := range effects {
			// cleanup still runs after a failed effect
			if failed && eff.Kind != session.EffectDeleteSensitive {
				continue
			}
			follow, err := uc.execute(ctx, ev, &state, &facts, eff)
			if err != nil {
				failed = true
				continue
			}
			if follow != nil {
				queue = append(queue, *follow)
			}
		}
		uc.save(ctx, ev.UserID, state)
	}
}

// execute performs one effect. A non-nil error means the user was already
// told about the failure and the remaining effects must be skipped.
func (uc *ConversationUsecase) execute(
	ctx context.Context,
	ev domain.InboundEvent,
	state *session.State,
	facts *session.WalletFacts,
	eff session.Effect,
) (*session.Event, error) {

	switch eff.Kind {
	case session.EffectReply:
		uc.reply(ctx, ev.ChatID, eff.Text)

	case session.EffectDeleteSensitive:
		if err := uc.messenger.Delete(ctx, ev.ChatID, eff.MessageRef); err != nil {
			uc.logger.Warn("failed to delete sensitive message",
				zap.String("user_id", ev.UserID),
				zap.Int("message_ref", eff.MessageRef),
				zap.Error(err))
		}
		if state.LastSensitiveMessageRef == eff.MessageRef {
			state.LastSensitiveMessageRef = 0
		}

	case session.EffectDeleteMessage:
		uc.deleteMessage(ctx, ev, eff.MessageRef)

	case session.EffectSetPassword:
		if err := uc.wallets.SetPassword(ctx, ev.UserID, eff.Secret); err != nil {
			uc.logger.Error("failed to set password", zap.String("user_id", ev.UserID), zap.Error(err))
			uc.reply(ctx, ev.ChatID, msgPasswordFailed)
			return nil, err
		}
		facts.HasPassword = true
		facts.Locked = true

	case session.EffectCheckPassword:
		matched, err := uc.wallets.VerifyPassword(ctx, ev.UserID, eff.Secret)
		if err != nil {
			uc.logger.Error("failed to verify password", zap.String("user_id", ev.UserID), zap.Error(err))
			state.Mode = session.ModeIdle
			uc.reply(ctx, ev.ChatID, msgUnlockFailed)
			return nil, err
		}
		return &session.Event{Kind: session.EventPasswordChecked, Matched: matched}, nil

	case session.EffectLockWallet, session.EffectUnlockWallet:
		locked := eff.Kind == session.EffectLockWallet
		if err := uc.wallets.SetLocked(ctx, ev.UserID, locked); err != nil {
			uc.logger.Error("failed to change lock", zap.String("user_id", ev.UserID), zap.Error(err))
			if locked {
				uc.reply(ctx, ev.ChatID, session.MsgGenericError)
			} else {
				uc.reply(ctx, ev.ChatID, msgUnlockFailed)
			}
			return nil, err
		}
		facts.Locked = locked

	case session.EffectForwardPrompt:
		return uc.forwardPrompt(ctx, ev, eff.Text), nil

	case session.EffectExecuteTransfer:
		uc.executeTransfer(ctx, ev, eff)

	case session.EffectSubmitPending:
		return uc.submitPending(ctx, ev, eff.Blob), nil
	}

	return nil, nil
}

// forwardPrompt relays free text to the agent and stages any transaction it
// returns. The returned event is the staging of that transaction, if any.
func (uc *ConversationUsecase) forwardPrompt(ctx context.Context, ev domain.InboundEvent, text string) *session.Event {
	wallet, err := uc.wallets.GetWallet(ctx, ev.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrWalletNotFound) {
			uc.reply(ctx, ev.ChatID, session.MsgNoWallet)
		} else {
			uc.logger.Error("failed to load wallet", zap.String("user_id", ev.UserID), zap.Error(err))
			uc.reply(ctx, ev.ChatID, msgAgentFailed)
		}
		return nil
	}

	noticeRef := uc.reply(ctx, ev.ChatID, msgProcessing)

	req := agent.PromptRequest{Message: text, ThreadID: wallet.Thread()}
	if req.ThreadID == "" {
		req.WalletAddress = wallet.PublicKey
	}

	agentCtx, cancel := context.WithTimeout(ctx, uc.agentTimeout)
	timer := prometheus.NewTimer(metrics.AgentRequestDuration.WithLabelValues("chat"))
	resp, err := uc.prompts.SendPrompt(agentCtx, req)
	timer.ObserveDuration()
	cancel()

	uc.deleteMessage(ctx, ev, noticeRef)

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			metrics.AgentRequestsTotal.WithLabelValues("timeout").Inc()
			uc.logger.Warn("agent timed out", zap.String("user_id", ev.UserID), zap.Duration("timeout", uc.agentTimeout))
			uc.reply(ctx, ev.ChatID, msgAgentTimeout)
			return nil
		}
		metrics.AgentRequestsTotal.WithLabelValues("error").Inc()
		uc.logger.Error("agent request failed", zap.String("user_id", ev.UserID), zap.Error(err))
		uc.reply(ctx, ev.ChatID, msgAgentFailed)
		return nil
	}
	metrics.AgentRequestsTotal.WithLabelValues("ok").Inc()

	if resp.ThreadID != "" && resp.ThreadID != wallet.Thread() {
		if err := uc.wallets.SetThread(ctx, ev.UserID, resp.ThreadID); err != nil {
			uc.logger.Warn("failed to store thread id",
				zap.String("user_id", ev.UserID),
				zap.String("thread_id", resp.ThreadID),
				zap.Error(err))
		}
	}

	blob, found := ExtractTransaction(resp)
	if !found {
		if strings.TrimSpace(resp.Response) == "" {
			uc.reply(ctx, ev.ChatID, msgAgentFailed)
		} else {
			uc.reply(ctx, ev.ChatID, resp.Response)
		}
		return nil
	}

	staged, err := sol.DecodeStaged(blob)
	if err != nil {
		uc.logger.Warn("agent returned an undecodable transaction",
			zap.String("user_id", ev.UserID),
			zap.Error(err))
		uc.reply(ctx, ev.ChatID, msgPrepareFailed)
		return nil
	}

	ref, err := uc.messenger.SendConfirmation(ctx, ev.ChatID, confirmationMessage(staged, uc.network))
	if err != nil {
		uc.logger.Error("failed to send confirmation", zap.String("user_id", ev.UserID), zap.Error(err))
		uc.reply(ctx, ev.ChatID, msgPrepareFailed)
		return nil
	}

	uc.logger.Info("transaction staged",
		zap.String("user_id", ev.UserID),
		zap.String("kind", string(staged.Kind)),
		zap.Int("confirmation_ref", ref))

	return &session.Event{Kind: session.EventStaged, Blob: staged.BlobBase64, MessageRef: ref}
}

func (uc *ConversationUsecase) executeTransfer(ctx context.Context, ev domain.InboundEvent, eff session.Effect) {
	result, err := uc.transactions.ExecuteDirectTransfer(ctx, ev.UserID, eff.Recipient, eff.Amount)
	switch {
	case err == nil:
		uc.reply(ctx, ev.ChatID, transferSuccessMessage(result))
	case errors.Is(err, domain.ErrConfirmationTimeout) && result != nil && result.Broadcast:
		uc.reply(ctx, ev.ChatID, pendingMessage(result))
	default:
		uc.reply(ctx, ev.ChatID, transferFailureMessage(err))
	}
}

// submitPending settles the staged transaction. A timeout before the node
// accepted the bytes keeps the transaction staged under a fresh
// confirmation prompt; every other outcome clears it.
func (uc *ConversationUsecase) submitPending(ctx context.Context, ev domain.InboundEvent, blob string) *session.Event {
	noticeRef := uc.reply(ctx, ev.ChatID, msgSubmitting)
	result, err := uc.transactions.ConfirmAndSubmit(ctx, ev.UserID, blob)
	uc.deleteMessage(ctx, ev, noticeRef)

	broadcast := result != nil && result.Broadcast
	switch {
	case err == nil:
		uc.reply(ctx, ev.ChatID, submitSuccessMessage(result))
	case errors.Is(err, domain.ErrConfirmationTimeout) && broadcast:
		uc.reply(ctx, ev.ChatID, pendingMessage(result))
	case errors.Is(err, domain.ErrConfirmationTimeout):
		uc.reply(ctx, ev.ChatID, submitFailureMessage(err, true))
		if ref := uc.represent(ctx, ev, blob); ref != 0 {
			return &session.Event{Kind: session.EventSubmitFinished, Retain: true, MessageRef: ref}
		}
	default:
		uc.reply(ctx, ev.ChatID, submitFailureMessage(err, false))
	}
	return &session.Event{Kind: session.EventSubmitFinished}
}

func (uc *ConversationUsecase) represent(ctx context.Context, ev domain.InboundEvent, blob string) int {
	staged, err := sol.DecodeStaged(blob)
	if err != nil {
		return 0
	}
	ref, err := uc.messenger.SendConfirmation(ctx, ev.ChatID, confirmationMessage(staged, uc.network))
	if err != nil {
		uc.logger.Warn("failed to present confirmation again", zap.String("user_id", ev.UserID), zap.Error(err))
		return 0
	}
	return ref
}

func (uc *ConversationUsecase) facts(ctx context.Context, userID string) (session.WalletFacts, error) {
	wallet, err := uc.wallets.GetWallet(ctx, userID)
	if errors.Is(err, domain.ErrWalletNotFound) {
		return session.WalletFacts{}, nil
	}
	if err != nil {
		return session.WalletFacts{}, err
	}
	return session.WalletFacts{
		Exists:      true,
		HasPassword: wallet.HasPassword(),
		Locked:      wallet.IsLocked,
	}, nil
}

func (uc *ConversationUsecase) save(ctx context.Context, userID string, state session.State) {
	if err := uc.sessions.Set(ctx, userID, state); err != nil {
		uc.logger.Error("failed to save session", zap.String("user_id", userID), zap.Error(err))
	}
}

// reply sends text and returns its message ref, or 0 if sending failed.
func (uc *ConversationUsecase) reply(ctx context.Context, chatID int64, text string) int {
	ref, err := uc.messenger.Send(ctx, chatID, text)
	if err != nil {
		uc.logger.Warn("failed to send message", zap.Int64("chat_id", chatID), zap.Error(err))
		return 0
	}
	return ref
}

func (uc *ConversationUsecase) deleteMessage(ctx context.Context, ev domain.InboundEvent, ref int) {
	if ref == 0 {
		return
	}
	if err := uc.messenger.Delete(ctx, ev.ChatID, ref); err != nil {
		uc.logger.Debug("failed to delete message",
			zap.String("user_id", ev.UserID),
			zap.Int("message_ref", ref),
			zap.Error(err))
	}
}
