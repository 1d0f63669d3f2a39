package services

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"

	"gopkg.in/gomail.v2"

	pkglogger "github.com/cicalumni/alumni-api/pkg/logger"
)

type smtpSender interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPMailer sends emails through an SMTP relay.
type SMTPMailer struct {
	dialer      smtpSender
	fromAddress string
	logger      *slog.Logger
}

// NewSMTPMailer creates a mailer for host:port authenticating as user.
func NewSMTPMailer(host string, port int, user, password, fromAddress string, insecureSkipVerify bool, logger *slog.Logger) *SMTPMailer {
	d := gomail.NewDialer(host, port, user, password)
	if insecureSkipVerify {
		d.TLSConfig = &tls.Config{InsecureSkipVerify: true, ServerName: host} //nolint:gosec // opt-in for local relays
	}

	return &SMTPMailer{dialer: d, fromAddress: fromAddress, logger: logger}
}

// Send delivers msg. gomail has no context support, so ctx is only checked
// before dialing.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	gm := gomail.NewMessage()
	gm.SetHeader("From", m.fromAddress)
	gm.SetHeader("To", msg.To)
	gm.SetHeader("Subject", msg.Subject)
	if msg.TextBody != "" {
		gm.SetBody("text/plain", msg.TextBody)
		gm.AddAlternative("text/html", msg.HTMLBody)
	} else {
		gm.SetBody("text/html", msg.HTMLBody)
	}

	if err := m.dialer.DialAndSend(gm); err != nil {
		m.logger.Error("failed to send email via SMTP",
			slog.String("email", pkglogger.SanitizedEmail(msg.To)),
			slog.Any("error", err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	m.logger.Info("email sent",
		slog.String("email", pkglogger.SanitizedEmail(msg.To)),
		slog.String("subject", msg.Subject))

	return nil
}
