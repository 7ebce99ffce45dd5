package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/folio/internal/config"
)

var ErrMailerNotConfigured = errors.New("mail delivery is not configured")

// Mail is a plain-text message.
type Mail struct {
	To      []string
	ReplyTo string
	Subject string
	Body    string
}

// Mailer delivers mail.
type Mailer interface {
	Send(ctx context.Context, mail Mail) error
}

// SMTPMailer sends through an authenticated SMTP relay.
type SMTPMailer struct {
	host     string
	port     string
	user     string
	password string
	from     string
	send     func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPMailer returns nil when no host is configured.
func NewSMTPMailer(cfg config.SMTPConfig) *SMTPMailer {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil
	}
	from := strings.TrimSpace(cfg.From)
	if from == "" {
		from = strings.TrimSpace(cfg.User)
	}
	port := strings.TrimSpace(cfg.Port)
	if port == "" {
		port = "587"
	}
	return &SMTPMailer{
		host:     strings.TrimSpace(cfg.Host),
		port:     port,
		user:     strings.TrimSpace(cfg.User),
		password: cfg.Password,
		from:     from,
		send:     smtp.SendMail,
	}
}

// Send implements Mailer. net/smtp has no context support, so the call runs
// in a goroutine and ctx only bounds how long the caller waits.
func (m *SMTPMailer) Send(ctx context.Context, mail Mail) error {
	if m == nil {
		return ErrMailerNotConfigured
	}
	if len(mail.To) == 0 {
		return errors.New("mail has no recipient")
	}

	var auth smtp.Auth
	if m.user != "" {
		auth = smtp.PlainAuth("", m.user, m.password, m.host)
	}
	msg := composeMail(m.from, mail, time.Now())

	done := make(chan error, 1)
	go func() {
		done <- m.send(net.JoinHostPort(m.host, m.port), auth, m.from, mail.To, msg)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send mail: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("send mail: %w", ctx.Err())
	}
}

func composeMail(from string, mail Mail, now time.Time) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + strings.Join(mail.To, ", ") + "\r\n")
	if mail.ReplyTo != "" {
		b.WriteString("Reply-To: " + stripHeader(mail.ReplyTo) + "\r\n")
	}
	b.WriteString("Subject: " + stripHeader(mail.Subject) + "\r\n")
	b.WriteString("Date: " + now.Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(strings.ReplaceAll(mail.Body, "\r\n", "\n"), "\n", "\r\n"))
	b.WriteString("\r\n")
	return []byte(b.String())
}

// stripHeader keeps user input from injecting extra header lines.
func stripHeader(value string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(strings.TrimSpace(value))
}
