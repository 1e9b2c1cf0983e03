package email

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"accountforge/internal/auth"
	"accountforge/internal/i18n"
)

// Dispatcher renders and sends the account emails.
type Dispatcher struct {
	transport   Transport
	frontendURL string
	logger      zerolog.Logger
}

func NewDispatcher(t Transport, frontendURL string, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		transport:   t,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		logger:      logger,
	}
}

func (d *Dispatcher) SendVerification(ctx context.Context, locale, to, name, token string) error {
	link := d.link("/verify-email", token)
	content := i18n.VerificationEmail(locale, name, link, hours(auth.VerificationTokenTTL))
	return d.send(ctx, to, content, "verification")
}

func (d *Dispatcher) SendPasswordReset(ctx context.Context, locale, to, name, token string) error {
	link := d.link("/reset-password", token)
	content := i18n.PasswordResetEmail(locale, name, link, hours(auth.ResetTokenTTL))
	return d.send(ctx, to, content, "password_reset")
}

func (d *Dispatcher) link(path, token string) string {
	return d.frontendURL + path + "?token=" + url.QueryEscape(token)
}

func (d *Dispatcher) send(ctx context.Context, to string, c i18n.EmailContent, kind string) error {
	err := d.transport.Send(ctx, Message{
		To:      to,
		Subject: c.Subject,
		Text:    c.Text,
		HTML:    c.HTML,
	})
	if err != nil {
		d.logger.Error().Err(err).Str("kind", kind).Msg("send email failed")
		return fmt.Errorf("send %s email: %w", kind, err)
	}
	d.logger.Debug().Str("kind", kind).Msg("email sent")
	return nil
}

func hours(d time.Duration) int {
	return int(d / time.Hour)
}
