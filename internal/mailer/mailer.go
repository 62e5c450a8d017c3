// Package mailer delivers account e-mails.
package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strings"
	"time"

	"videoflix.systems/videoflix/internal/config"
)

// Mailer sends the activation e-mail of a freshly registered account.
type Mailer interface {
	SendActivation(ctx context.Context, to, link string) error
}

// New returns an SMTP mailer when SMTP_ADDR is configured and a LogMailer
// otherwise.
func New(conf config.Config) Mailer {
	if strings.TrimSpace(conf.SMTPAddr) == "" {
		slog.Warn("SMTP_ADDR not set, activation e-mails will only be logged")
		return LogMailer{}
	}
	return &SMTPMailer{
		Addr:     conf.SMTPAddr,
		From:     conf.SMTPFrom,
		Username: conf.SMTPUsername,
		Password: conf.SMTPPassword,
	}
}

// ActivationLink builds the frontend URL the user follows to activate.
func ActivationLink(frontendBaseURL, uidb64, token string) string {
	return fmt.Sprintf("%s/activate/%s/%s/", strings.TrimRight(frontendBaseURL, "/"), uidb64, token)
}

// ActivationMessage renders the plain text RFC 5322 message.
func ActivationMessage(from, to, link string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	b.WriteString("Subject: Confirm your email\r\n")
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().UTC().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	fmt.Fprintf(&b, "Dear %s,\r\n\r\n", to)
	fmt.Fprintf(&b, "Please activate your account using this link: %s\r\n", link)
	b.WriteString("If you did not create an account with us, please disregard this email.\r\n")
	return []byte(b.String())
}

// SMTPMailer sends through an SMTP relay, authenticating with PLAIN auth
// when a username is set.
type SMTPMailer struct {
	Addr     string
	From     string
	Username string
	Password string

	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func (m *SMTPMailer) SendActivation(ctx context.Context, to, link string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var auth smtp.Auth
	if m.Username != "" {
		host, _, err := net.SplitHostPort(m.Addr)
		if err != nil {
			return fmt.Errorf("smtp addr %q: %w", m.Addr, err)
		}
		auth = smtp.PlainAuth("", m.Username, m.Password, host)
	}

	send := m.send
	if send == nil {
		send = smtp.SendMail
	}
	if err := send(m.Addr, auth, m.From, []string{to}, ActivationMessage(m.From, to, link)); err != nil {
		return fmt.Errorf("send activation mail: %w", err)
	}
	slog.Info("Activation e-mail sent", "to", to)
	return nil
}

// LogMailer writes the activation link to the log instead of sending it.
type LogMailer struct{}

func (LogMailer) SendActivation(ctx context.Context, to, link string) error {
	slog.Info("Activation e-mail (not sent)", "to", to, "link", link)
	return nil
}
