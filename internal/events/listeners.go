package events

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/dropDatabas3/hellojohn-dingtalk/internal/observability/logger"
)

// Mailer es el subconjunto del sender SMTP que usan los listeners.
type Mailer interface {
	Send(to, subject, htmlBody, textBody string) error
}

// placeholderDomain identifica los emails generados para cuentas sin email real.
const placeholderDomain = "@dingtalk.local"

// RegisterLogListeners deja rastro en el log de cada login y cambio de vínculo.
func RegisterLogListeners(b *Bus) error {
	log := logger.L().With(logger.Component("events.listener"))
	if err := b.Subscribe(TopicLoginSucceeded, func(e LoginSucceeded) {
		log.Info("provider login",
			logger.UserID(e.UserID),
			logger.ProviderUserID(e.ProviderUserID),
			logger.LoginMethod(string(e.Method)),
			logger.ClientIP(e.SourceIP),
		)
	}); err != nil {
		return err
	}
	if err := b.Subscribe(TopicIdentityLinked, func(e IdentityLinked) {
		log.Info("identity linked",
			logger.UserID(e.UserID),
			logger.ProviderUserID(e.ProviderUserID),
			logger.Bool("registered", e.Registered),
		)
	}); err != nil {
		return err
	}
	return b.Subscribe(TopicIdentityUnlinked, func(e IdentityUnlinked) {
		log.Info("identity unlinked",
			logger.UserID(e.UserID),
			logger.ProviderUserID(e.ProviderUserID),
			logger.Bool("by_admin", e.ByAdmin),
		)
	})
}

// RegisterMailListener avisa por email cuando una cuenta con email real queda vinculada.
func RegisterMailListener(b *Bus, m Mailer, siteName string) error {
	if m == nil {
		return nil
	}
	if siteName == "" {
		siteName = "Forum"
	}
	return b.Subscribe(TopicIdentityLinked, func(e IdentityLinked) {
		if e.Email == "" || strings.HasSuffix(strings.ToLower(e.Email), placeholderDomain) {
			return
		}
		subject := fmt.Sprintf("[%s] DingTalk account linked", siteName)
		text := fmt.Sprintf("Hi %s,\n\nYour account is now linked to the DingTalk identity %q.\nIf this was not you, unlink it from your account settings.\n",
			e.Username, e.DisplayName)
		body := fmt.Sprintf("<p>Hi %s,</p><p>Your account is now linked to the DingTalk identity <b>%s</b>.</p><p>If this was not you, unlink it from your account settings.</p>",
			html.EscapeString(e.Username), html.EscapeString(e.DisplayName))
		if err := m.Send(e.Email, subject, body, text); err != nil {
			logger.From(context.Background()).Warn("link notice not sent",
				logger.Component("events.mail"), logger.UserID(e.UserID), logger.Err(err))
		}
	})
}
