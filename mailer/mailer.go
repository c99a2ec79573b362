// Package mailer delivers password reset e-mails.
package mailer

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/wneessen/go-mail"
)

type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// LogMailer writes messages to the log instead of sending them. It is used
// when no SMTP server is configured.
type LogMailer struct {
	Logger zerolog.Logger
}

func (m LogMailer) Send(_ context.Context, to, subject, body string) error {
	m.Logger.Info().Str("to", to).Str("subject", subject).Str("body", body).Msg("mail not sent, no SMTP server configured")
	return nil
}

// SMTPMailer sends plain-text mail through an SMTP relay, upgrading to TLS
// when the relay offers STARTTLS.
type SMTPMailer struct {
	Addr     string
	User     string
	Password string
	From     string
}

func (m SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, err := NewMessage(m.From, to, subject, body)
	if err != nil {
		return err
	}
	client, err := m.client()
	if err != nil {
		return err
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	return nil
}

func (m SMTPMailer) client() (*mail.Client, error) {
	host, portStr, err := net.SplitHostPort(m.Addr)
	if err != nil {
		return nil, fmt.Errorf("smtp address %q: %w", m.Addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("smtp port %q: %w", portStr, err)
	}
	opts := []mail.Option{
		mail.WithPort(port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if m.User != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.User),
			mail.WithPassword(m.Password),
		)
	}
	client, err := mail.NewClient(host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return client, nil
}

// NewMessage builds a UTF-8 plain-text message. Line breaks in the subject
// are dropped so it cannot carry extra headers.
func NewMessage(from, to, subject, body string) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(from); err != nil {
		return nil, fmt.Errorf("sender %q: %w", from, err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("recipient %q: %w", to, err)
	}
	msg.Subject(strings.NewReplacer("\r", "", "\n", "").Replace(subject))
	msg.SetBodyString(mail.TypeTextPlain, body)
	return msg, nil
}
