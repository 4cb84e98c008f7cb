package notifier

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"DipHunter/internal/model"
)

// maxMessageLen is the Telegram limit for a single message body.
const maxMessageLen = 4096

// TelegramNotifier sends messages via the Telegram Bot API.
type TelegramNotifier struct {
	bot    *tgbot.BotAPI
	logger *zap.Logger
}

// NewTelegramNotifier creates a notifier with optional proxy support.
func NewTelegramNotifier(botToken, proxyURL string, logger *zap.Logger) (*TelegramNotifier, error) {
	transport := &http.Transport{}
	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil {
			return nil, &model.ConfigurationError{Field: "proxy", Err: err}
		}
		transport.Proxy = http.ProxyURL(u)
	}
	client := &http.Client{
		Timeout:   40 * time.Second,
		Transport: transport,
	}
	bot, err := tgbot.NewBotAPIWithClient(botToken, tgbot.APIEndpoint, client)
	if err != nil {
		return nil, fmt.Errorf("init telegram bot: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TelegramNotifier{bot: bot, logger: logger}, nil
}

// SendChatMessage sends text to a chat, split into Telegram-sized chunks.
func (t *TelegramNotifier) SendChatMessage(ctx context.Context, chatID string, text string) error {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return &model.DispatchError{Channel: ChannelTelegram, Recipient: chatID, Err: fmt.Errorf("parse chat id: %w", err)}
	}
	for _, part := range chunk(text, maxMessageLen) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := t.bot.Send(tgbot.NewMessage(id, part)); err != nil {
			return &model.DispatchError{Channel: ChannelTelegram, Recipient: chatID, Err: err}
		}
	}
	return nil
}

func chunk(text string, size int) []string {
	runes := []rune(text)
	if len(runes) <= size {
		return []string{text}
	}
	var parts []string
	for len(runes) > 0 {
		n := size
		if len(runes) < n {
			n = len(runes)
		}
		parts = append(parts, string(runes[:n]))
		runes = runes[n:]
	}
	return parts
}
