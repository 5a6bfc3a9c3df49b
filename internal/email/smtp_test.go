package email

import (
	"bytes"
	"errors"
	"testing"

	mail "github.com/go-mail/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSMTPSender_RequiresHost(t *testing.T) {
	_, err := NewSMTPSender(Config{From: "noreply@example.com"})
	assert.Error(t, err)
}

func TestSend_BuildsMultipartMessage(t *testing.T) {
	s, err := NewSMTPSender(Config{Host: "smtp.example.com", From: "noreply@example.com", TLSMode: "ssl"})
	require.NoError(t, err)

	var captured bytes.Buffer
	var dialer *mail.Dialer
	s.dial = func(d *mail.Dialer, m *mail.Message) error {
		dialer = d
		_, err := m.WriteTo(&captured)
		return err
	}

	require.NoError(t, s.Send("zs@example.com", "Linked", "<p>hola</p>", "hola"))
	assert.True(t, dialer.SSL)
	assert.Equal(t, 587, dialer.Port)
	out := captured.String()
	assert.Contains(t, out, "To: zs@example.com")
	assert.Contains(t, out, "multipart/alternative")
	assert.Contains(t, out, "text/html")
}

func TestSend_WrapsDialError(t *testing.T) {
	s, err := NewSMTPSender(Config{Host: "smtp.example.com", From: "noreply@example.com"})
	require.NoError(t, err)
	s.dial = func(*mail.Dialer, *mail.Message) error { return errors.New("connection refused") }
	assert.ErrorContains(t, s.Send("a@b.c", "s", "", "t"), "connection refused")
}
