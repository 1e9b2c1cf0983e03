package email

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"accountforge/internal/config"
)

type captureTransport struct {
	sent []Message
	err  error
}

func (c *captureTransport) Send(_ context.Context, m Message) error {
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, m)
	return nil
}

func TestDispatcherVerificationLink(t *testing.T) {
	tr := &captureTransport{}
	d := NewDispatcher(tr, "http://localhost:3000/", zerolog.Nop())

	require.NoError(t, d.SendVerification(context.Background(), "en", "ada@example.com", "Ada", "abc123"))
	require.Len(t, tr.sent, 1)

	m := tr.sent[0]
	assert.Equal(t, "ada@example.com", m.To)
	assert.Equal(t, "Verify Your Email - AccountForge", m.Subject)
	assert.Contains(t, m.Text, "http://localhost:3000/verify-email?token=abc123")
	assert.Contains(t, m.Text, "24 hours")
}

func TestDispatcherResetLink(t *testing.T) {
	tr := &captureTransport{}
	d := NewDispatcher(tr, "https://app.example.com", zerolog.Nop())

	require.NoError(t, d.SendPasswordReset(context.Background(), "de", "bea@example.com", "Bea", "tok"))
	require.Len(t, tr.sent, 1)
	assert.Contains(t, tr.sent[0].Text, "https://app.example.com/reset-password?token=tok")
	assert.Contains(t, tr.sent[0].Text, "1 Stunde(n)")
}

func TestDispatcherWrapsTransportErrors(t *testing.T) {
	boom := errors.New("smtp down")
	d := NewDispatcher(&captureTransport{err: boom}, "http://x", zerolog.Nop())

	err := d.SendVerification(context.Background(), "en", "a@example.com", "A", "t")
	assert.ErrorIs(t, err, boom)
}

func TestBuildMessageHeaders(t *testing.T) {
	msg := buildMessage(`"AccountForge" <noreply@accountforge.com>`, Message{
		To:      "ada@example.com",
		Subject: "Hello",
		Text:    "plain body",
		HTML:    "<p>html body</p>",
	})

	var buf bytes.Buffer
	_, err := msg.WriteTo(&buf)
	require.NoError(t, err)

	raw := buf.String()
	assert.Contains(t, raw, "To: ada@example.com")
	assert.Contains(t, raw, "Subject: Hello")
	assert.Contains(t, raw, "noreply@accountforge.com")
	assert.Contains(t, raw, "multipart/alternative")
	assert.True(t, strings.Contains(raw, "plain body"))
}

func TestNewSMTPTransportRequiresConfig(t *testing.T) {
	_, err := NewSMTPTransport(config.EmailConfig{})
	assert.Error(t, err)

	tr, err := NewSMTPTransport(config.EmailConfig{Host: "smtp.example.com", Port: 465, From: "x@example.com", Secure: true})
	require.NoError(t, err)
	assert.True(t, tr.dialer.SSL)
}

func TestLogTransport(t *testing.T) {
	var buf bytes.Buffer
	tr := LogTransport{Logger: zerolog.New(&buf)}
	require.NoError(t, tr.Send(context.Background(), Message{To: "a@example.com", Subject: "S", Text: "link"}))
	assert.Contains(t, buf.String(), "a@example.com")
	assert.Contains(t, buf.String(), "smtp disabled")
}
