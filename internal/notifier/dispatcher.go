package notifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"DipHunter/internal/model"
)

// Delivery channels.
const (
	ChannelEmail    = "email"
	ChannelTelegram = "telegram"
)

// EmailSender delivers a subject and body to an address.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// ChatSender delivers text to a chat.
type ChatSender interface {
	SendChatMessage(ctx context.Context, chatID, text string) error
}

// Dispatcher routes a signal to the channels a user opted into.
// A nil sender disables its channel. Each send is retried Retries times
// with exponential backoff starting at Backoff.
type Dispatcher struct {
	Email     EmailSender
	Chat      ChatSender
	Retries   int
	Backoff   time.Duration
	OnFailure func(channel string, err error)
	logger    *zap.Logger
}

// NewDispatcher creates a dispatcher over the given senders.
func NewDispatcher(email EmailSender, chat ChatSender, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{Email: email, Chat: chat, Backoff: time.Second, logger: logger}
}

// Dispatch delivers the message to every enabled channel of the user.
// It reports whether at least one channel accepted the message; failures
// on one channel never block the other.
func (d *Dispatcher) Dispatch(ctx context.Context, u *model.User, subject, body string) (bool, error) {
	if u == nil {
		return false, nil
	}
	var (
		notified bool
		errs     []error
	)
	if u.EmailSignalsReceiver && u.Email != "" && d.Email != nil {
		err := withRetry(ctx, d.logger, d.Retries, d.Backoff, func() error {
			return d.Email.SendEmail(ctx, u.Email, subject, body)
		})
		if err != nil {
			errs = append(errs, d.fail(ChannelEmail, u.Email, err))
		} else {
			notified = true
		}
	}
	if u.TelegramSignalsReceiver && u.TelegramChatID != "" && d.Chat != nil {
		err := withRetry(ctx, d.logger, d.Retries, d.Backoff, func() error {
			return d.Chat.SendChatMessage(ctx, u.TelegramChatID, subject+"\n\n"+body)
		})
		if err != nil {
			errs = append(errs, d.fail(ChannelTelegram, u.TelegramChatID, err))
		} else {
			notified = true
		}
	}
	return notified, errors.Join(errs...)
}

func (d *Dispatcher) fail(channel, recipient string, err error) error {
	var de *model.DispatchError
	if !errors.As(err, &de) {
		err = &model.DispatchError{Channel: channel, Recipient: recipient, Err: err}
	}
	d.logger.Warn("dispatch failed",
		zap.String("channel", channel),
		zap.String("recipient", recipient),
		zap.Error(err))
	if d.OnFailure != nil {
		d.OnFailure(channel, err)
	}
	return err
}

func withRetry(ctx context.Context, logger *zap.Logger, maxRetries int, base time.Duration, send func() error) error {
	var lastErr error
	for i := 0; i <= maxRetries; i++ {
		err := send()
		if err == nil {
			return nil
		}
		lastErr = err
		if i == maxRetries {
			break
		}
		backoff := base * time.Duration(1<<uint(i))
		logger.Warn("send failed, retrying",
			zap.Int("attempt", i+1),
			zap.Int("max_attempts", maxRetries+1),
			zap.Duration("backoff", backoff),
			zap.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	if maxRetries == 0 {
		return lastErr
	}
	return fmt.Errorf("all %d attempts exhausted: %w", maxRetries+1, lastErr)
}
