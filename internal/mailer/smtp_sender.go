package mailer

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/theopensource-company/playrbase-auth/internal/config"
)

// SMTPSender delivers mail through a plain SMTP endpoint.
type SMTPSender struct {
	cfg config.MailConfig
}

// NewSMTPSender constructs the sender.
func NewSMTPSender(cfg config.MailConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg}
}

// Send submits the message synchronously.
func (s *SMTPSender) Send(_ context.Context, email Email) error {
	from := email.From
	if from == "" {
		from = s.cfg.From
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "To: %s\r\n", email.To)
	fmt.Fprintf(&msg, "Subject: %s\r\n", email.Subject)
	msg.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	msg.WriteString(email.Body)

	var auth smtp.Auth
	if s.cfg.SMTPUser != "" {
		host := s.cfg.SMTPAddr
		if idx := strings.IndexByte(host, ':'); idx >= 0 {
			host = host[:idx]
		}
		auth = smtp.PlainAuth("", s.cfg.SMTPUser, s.cfg.SMTPPass, host)
	}

	return smtp.SendMail(s.cfg.SMTPAddr, auth, from, []string{email.To}, []byte(msg.String()))
}
