// internal/handler/telegram_handler.go
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"agent-wallet-service/internal/domain"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// EventDispatcher is satisfied by *usecase.ConversationUsecase.
type EventDispatcher interface {
	HandleEvent(ctx context.Context, ev domain.InboundEvent)
}

// BotCommands is the menu registered with Telegram at startup.
var BotCommands = []tgbotapi.BotCommand{
	{Command: "start", Description: "Create your wallet"},
	{Command: "help", Description: "Show available commands"},
	{Command: "checkaddress", Description: "Show your wallet address"},
	{Command: "balance", Description: "Show your SOL balance"},
	{Command: "transfer", Description: "Send SOL to another wallet"},
	{Command: "lock", Description: "Lock your wallet with a password"},
	{Command: "unlock", Description: "Unlock your wallet"},
}

// TelegramHandler turns Telegram updates into inbound events. Polling and
// webhook delivery share Dispatch.
type TelegramHandler struct {
	bot        BotAPI
	dispatcher EventDispatcher
	baseCtx    context.Context
	wg         sync.WaitGroup
	logger     *zap.Logger
}

func NewTelegramHandler(baseCtx context.Context, bot BotAPI, dispatcher EventDispatcher, logger *zap.Logger) *TelegramHandler {
	return &TelegramHandler{
		bot:        bot,
		dispatcher: dispatcher,
		baseCtx:    baseCtx,
		logger:     logger,
	}
}

func (h *TelegramHandler) RegisterCommands() error {
	_, err := h.bot.Request(tgbotapi.NewSetMyCommands(BotCommands...))
	return err
}

// Poll dispatches updates until ctx is done or the channel closes.
func (h *TelegramHandler) Poll(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	h.logger.Info("telegram polling started")
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("telegram polling stopped")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			h.Dispatch(update)
		}
	}
}

// HandleWebhook accepts one pushed update and acknowledges it immediately.
func (h *TelegramHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	var update tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		h.logger.Warn("failed to decode telegram update", zap.Error(err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	h.Dispatch(update)
	w.WriteHeader(http.StatusOK)
}

// Dispatch handles the update on its own goroutine.
func (h *TelegramHandler) Dispatch(update tgbotapi.Update) {
	if update.CallbackQuery != nil {
		if _, err := h.bot.Request(tgbotapi.NewCallback(update.CallbackQuery.ID, "")); err != nil {
			h.logger.Debug("failed to answer callback", zap.Error(err))
		}
	}

	ev, ok := ToInboundEvent(update)
	if !ok {
		return
	}

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				h.logger.Error("panic while handling chat event",
					zap.String("event_id", ev.ID),
					zap.Any("panic", rec))
			}
		}()
		h.dispatcher.HandleEvent(h.baseCtx, ev)
	}()
}

// Wait blocks until every dispatched event has been handled.
func (h *TelegramHandler) Wait() {
	h.wg.Wait()
}

// ToInboundEvent converts an update. Updates without a user or chat, and
// non-text messages, are ignored.
func ToInboundEvent(update tgbotapi.Update) (domain.InboundEvent, bool) {
	ev := domain.InboundEvent{
		ID:         ulid.Make().String(),
		ReceivedAt: time.Now().UTC(),
	}

	switch {
	case update.CallbackQuery != nil:
		cb := update.CallbackQuery
		if cb.From == nil || cb.Message == nil || cb.Message.Chat == nil {
			return ev, false
		}
		ev.Kind = domain.InboundCallback
		ev.UserID = strconv.FormatInt(cb.From.ID, 10)
		ev.ChatID = cb.Message.Chat.ID
		ev.CallbackData = cb.Data
		ev.CallbackMessageRef = cb.Message.MessageID
		return ev, true

	case update.Message != nil:
		msg := update.Message
		if msg.From == nil || msg.Chat == nil || msg.Text == "" {
			return ev, false
		}
		ev.UserID = strconv.FormatInt(msg.From.ID, 10)
		ev.ChatID = msg.Chat.ID
		ev.MessageRef = msg.MessageID
		if msg.IsCommand() {
			ev.Kind = domain.InboundCommand
			ev.Command = msg.Command()
			ev.Text = msg.CommandArguments()
		} else {
			ev.Kind = domain.InboundText
			ev.Text = msg.Text
		}
		return ev, true
	}

	return ev, false
}
