package notifier

import (
	"context"
	"time"

	"go.uber.org/zap"
	mail "gopkg.in/mail.v2"

	"DipHunter/internal/model"
)

// EmailNotifier delivers plain-text mail over SMTP.
type EmailNotifier struct {
	dialer *mail.Dialer
	from   string
	logger *zap.Logger
}

// NewEmailNotifier creates an SMTP notifier.
func NewEmailNotifier(host string, port int, username, password, from string, timeout time.Duration, logger *zap.Logger) *EmailNotifier {
	d := mail.NewDialer(host, port, username, password)
	if timeout > 0 {
		d.Timeout = timeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmailNotifier{dialer: d, from: from, logger: logger}
}

// SendEmail sends one message to a single recipient.
func (e *EmailNotifier) SendEmail(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m := mail.NewMessage()
	m.SetHeader("From", e.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)
	if err := e.dialer.DialAndSend(m); err != nil {
		return &model.DispatchError{Channel: ChannelEmail, Recipient: to, Err: err}
	}
	e.logger.Debug("email sent", zap.String("to", to), zap.String("subject", subject))
	return nil
}
