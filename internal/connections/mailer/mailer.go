package mailer

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"order-desk/internal/common/logger"
	"order-desk/internal/config"
)

type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// New returns an SMTP mailer, or a mailer that only logs when no host is configured.
func New(cfg config.MailConfig, lg *logger.Logger) Mailer {
	if strings.TrimSpace(cfg.Host) == "" {
		return &LogMailer{lg: lg}
	}
	return &SMTPMailer{cfg: cfg}
}

type SMTPMailer struct {
	cfg  config.MailConfig
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	var auth smtp.Auth
	if m.cfg.User != "" {
		auth = smtp.PlainAuth("", m.cfg.User, m.cfg.Password, m.cfg.Host)
	}
	send := m.send
	if send == nil {
		send = smtp.SendMail
	}
	msg := buildMessage(m.cfg.From, to, subject, body, time.Now())
	if err := send(addr, auth, m.cfg.From, []string{to}, msg); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	return nil
}

func buildMessage(from, to, subject, body string, at time.Time) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	fmt.Fprintf(&b, "Date: %s\r\n", at.Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return []byte(b.String())
}

type LogMailer struct {
	lg *logger.Logger
}

func (m *LogMailer) Send(_ context.Context, to, subject, body string) error {
	m.lg.Info("mail_logged", map[string]any{"to": to, "subject": subject, "body": body})
	return nil
}
