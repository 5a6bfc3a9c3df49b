// Package email envía avisos transaccionales (vínculo de cuenta) por SMTP.
package email

import (
	"crypto/tls"
	"errors"
	"fmt"

	mail "github.com/go-mail/mail"

	"github.com/dropDatabas3/hellojohn-dingtalk/internal/observability/logger"
)

// Sender envía un email con versión HTML y texto.
type Sender interface {
	Send(to, subject, htmlBody, textBody string) error
}

// Config de SMTP. Host vacío = envío deshabilitado.
type Config struct {
	Host               string
	Port               int
	From               string
	Username           string
	Password           string
	TLSMode            string // "auto" | "starttls" | "ssl" | "none"
	InsecureSkipVerify bool
}

// Enabled reporta si hay servidor configurado.
func (c Config) Enabled() bool { return c.Host != "" && c.From != "" }

// SMTPSender implementa Sender con go-mail.
type SMTPSender struct {
	cfg  Config
	dial func(d *mail.Dialer, m *mail.Message) error
}

// NewSMTPSender valida la config mínima.
func NewSMTPSender(cfg Config) (*SMTPSender, error) {
	if !cfg.Enabled() {
		return nil, errors.New("smtp: host and from are required")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.TLSMode == "" {
		cfg.TLSMode = "auto"
	}
	return &SMTPSender{cfg: cfg, dial: func(d *mail.Dialer, m *mail.Message) error { return d.DialAndSend(m) }}, nil
}

// Send arma un multipart/alternative y lo entrega.
func (s *SMTPSender) Send(to, subject, htmlBody, textBody string) error {
	log := logger.L().With(logger.Component("email.smtp"), logger.String("host", s.cfg.Host))

	m := s.message(to, subject, htmlBody, textBody)

	d := mail.NewDialer(s.cfg.Host, s.cfg.Port, s.cfg.Username, s.cfg.Password)
	d.TLSConfig = &tls.Config{ServerName: s.cfg.Host, InsecureSkipVerify: s.cfg.InsecureSkipVerify}
	switch s.cfg.TLSMode {
	case "ssl":
		d.SSL = true
	case "none":
		d.StartTLSPolicy = mail.NoStartTLS
	case "starttls":
		d.StartTLSPolicy = mail.MandatoryStartTLS
	}

	if err := s.dial(d, m); err != nil {
		log.Error("smtp send failed", logger.Err(err))
		return fmt.Errorf("smtp send: %w", err)
	}
	log.Debug("email sent", logger.String("subject", subject))
	return nil
}

func (s *SMTPSender) message(to, subject, htmlBody, textBody string) *mail.Message {
	m := mail.NewMessage()
	m.SetHeader("From", s.cfg.From)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	if textBody != "" {
		m.SetBody("text/plain", textBody)
	}
	if htmlBody != "" {
		if textBody == "" {
			m.SetBody("text/html", htmlBody)
		} else {
			m.AddAlternative("text/html", htmlBody)
		}
	}
	return m
}
