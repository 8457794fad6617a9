// internal/handler/telegram_messenger.go
package handler

import (
	"context"
	"strings"

	"agent-wallet-service/internal/domain"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// BotAPI is the part of *tgbotapi.BotAPI the transport uses.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// TelegramMessenger renders replies as Markdown messages.
type TelegramMessenger struct {
	bot    BotAPI
	logger *zap.Logger
}

func NewTelegramMessenger(bot BotAPI, logger *zap.Logger) *TelegramMessenger {
	return &TelegramMessenger{bot: bot, logger: logger}
}

func (m *TelegramMessenger) Send(_ context.Context, chatID int64, text string) (int, error) {
	return m.send(tgbotapi.NewMessage(chatID, text))
}

func (m *TelegramMessenger) SendConfirmation(_ context.Context, chatID int64, text string) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Confirm", domain.CallbackConfirmTransaction),
			tgbotapi.NewInlineKeyboardButtonData("❌ Cancel", domain.CallbackCancelTransaction),
		),
	)
	return m.send(msg)
}

func (m *TelegramMessenger) Delete(_ context.Context, chatID int64, ref int) error {
	_, err := m.bot.Request(tgbotapi.NewDeleteMessage(chatID, ref))
	return err
}

// send tries Markdown first and falls back to plain text when Telegram
// rejects the entities, which happens with agent replies containing stray
// underscores or asterisks.
func (m *TelegramMessenger) send(msg tgbotapi.MessageConfig) (int, error) {
	msg.ParseMode = tgbotapi.ModeMarkdown
	sent, err := m.bot.Send(msg)
	if err != nil && isParseError(err) {
		m.logger.Debug("markdown rejected, resending as plain text",
			zap.Int64("chat_id", msg.ChatID),
			zap.Error(err))
		msg.ParseMode = ""
		sent, err = m.bot.Send(msg)
	}
	if err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

func isParseError(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "can't parse entities")
}
