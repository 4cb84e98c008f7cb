package notifier

import (
	"context"
	"strconv"
	"strings"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// CommandHandler is called when a chat command is received. The reply is sent back to the chat.
type CommandHandler func(ctx context.Context, chatID, text string) string

// StartPolling begins long-polling for Telegram commands. Blocks until ctx is cancelled.
func (t *TelegramNotifier) StartPolling(ctx context.Context, handler CommandHandler) {
	u := tgbot.NewUpdate(0)
	u.Timeout = 30
	updates := t.bot.GetUpdatesChan(u)
	defer t.bot.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("telegram polling stopped")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			msg := update.Message
			if msg == nil || !msg.IsCommand() {
				continue
			}
			chatID := strconv.FormatInt(msg.Chat.ID, 10)
			text := strings.TrimSpace(msg.Text)
			t.logger.Info("received command",
				zap.String("chat_id", chatID),
				zap.String("command", msg.Command()))
			reply := handler(ctx, chatID, text)
			if reply == "" {
				continue
			}
			if err := t.SendChatMessage(ctx, chatID, reply); err != nil {
				t.logger.Error("send reply", zap.String("chat_id", chatID), zap.Error(err))
			}
		}
	}
}
