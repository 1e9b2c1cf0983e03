package email

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/gomail.v2"

	"accountforge/internal/config"
)

type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Transport delivers a rendered message.
type Transport interface {
	Send(ctx context.Context, m Message) error
}

// SMTPTransport sends through gomail, dialing per message.
type SMTPTransport struct {
	from   string
	dialer *gomail.Dialer
}

func NewSMTPTransport(cfg config.EmailConfig) (*SMTPTransport, error) {
	if !cfg.Enabled() {
		return nil, errors.New("email is not configured")
	}
	dialer := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	dialer.SSL = cfg.Secure
	return &SMTPTransport{from: cfg.From, dialer: dialer}, nil
}

func (t *SMTPTransport) Send(ctx context.Context, m Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return t.dialer.DialAndSend(buildMessage(t.from, m))
}

func buildMessage(from string, m Message) *gomail.Message {
	msg := gomail.NewMessage()
	msg.SetHeader("From", from)
	msg.SetHeader("To", m.To)
	msg.SetHeader("Subject", m.Subject)

	msg.SetBody("text/plain", m.Text)
	if strings.TrimSpace(m.HTML) != "" {
		msg.AddAlternative("text/html", m.HTML)
	}
	return msg
}

// LogTransport writes messages to the log instead of sending them. It backs
// development setups without SMTP credentials.
type LogTransport struct {
	Logger zerolog.Logger
}

func (t LogTransport) Send(_ context.Context, m Message) error {
	t.Logger.Info().
		Str("to", m.To).
		Str("subject", m.Subject).
		Str("body", m.Text).
		Msg("email not sent: smtp disabled")
	return nil
}
