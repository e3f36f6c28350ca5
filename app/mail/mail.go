// Package mail delivers account emails.
package mail

import (
	"context"
	"fmt"
	"html"
	"net/smtp"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Elyes-Bali/UniProfs-UI/app/logging"
)

// Mailer sends the account lifecycle emails.
type Mailer interface {
	SendVerification(ctx context.Context, to, code string) error
	SendWelcome(ctx context.Context, to, name string) error
	SendPasswordReset(ctx context.Context, to, resetURL string) error
	SendResetSuccess(ctx context.Context, to string) error
}

// Message is a rendered email.
type Message struct {
	To      string
	Subject string
	HTML    string
}

func verificationMessage(to, code string) Message {
	return Message{
		To:      to,
		Subject: "Verify your email",
		HTML: fmt.Sprintf(`<p>Thank you for signing up!</p>
<p>Your verification code is:</p>
<h2 style="letter-spacing:4px">%s</h2>
<p>Enter this code on the verification page to complete your registration. The code expires in 24 hours.</p>`,
			html.EscapeString(code)),
	}
}

func welcomeMessage(to, name string) Message {
	return Message{
		To:      to,
		Subject: "Welcome to UniProfs",
		HTML:    fmt.Sprintf(`<p>Welcome, %s!</p><p>Your email is verified and your study tools are ready.</p>`, html.EscapeString(name)),
	}
}

func resetMessage(to, resetURL string) Message {
	return Message{
		To:      to,
		Subject: "Reset your password",
		HTML: fmt.Sprintf(`<p>We received a request to reset your password.</p>
<p><a href="%s">Reset password</a></p>
<p>This link expires in 1 hour. If you did not ask for a reset, ignore this email.</p>`,
			html.EscapeString(resetURL)),
	}
}

func resetSuccessMessage(to string) Message {
	return Message{
		To:      to,
		Subject: "Password reset successful",
		HTML:    `<p>Your password has been reset. If this was not you, contact support right away.</p>`,
	}
}

// SMTPConfig holds the relay settings.
type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Sender   string
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPMailer sends HTML mail through an SMTP relay.
type SMTPMailer struct {
	cfg    SMTPConfig
	send   sendFunc
	logger zerolog.Logger
}

func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	if cfg.Sender == "" {
		cfg.Sender = "no-reply@localhost"
	}
	return &SMTPMailer{cfg: cfg, send: smtp.SendMail, logger: logging.Component("mail")}
}

func (m *SMTPMailer) deliver(msg Message) error {
	var auth smtp.Auth
	if m.cfg.Username != "" && m.cfg.Password != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}
	addr := fmt.Sprintf("%s:%s", m.cfg.Host, m.cfg.Port)

	body := []byte(
		fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n", m.cfg.Sender, msg.To, msg.Subject) +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/html; charset=UTF-8\r\n\r\n" +
			msg.HTML,
	)

	if err := m.send(addr, auth, m.cfg.Sender, []string{msg.To}, body); err != nil {
		m.logger.Error().Err(err).Str("to", msg.To).Str("subject", msg.Subject).Msg("smtp send failed")
		return fmt.Errorf("send %q: %w", msg.Subject, err)
	}
	m.logger.Info().Str("to", msg.To).Str("subject", msg.Subject).Msg("email sent")
	return nil
}

func (m *SMTPMailer) SendVerification(_ context.Context, to, code string) error {
	return m.deliver(verificationMessage(to, code))
}

func (m *SMTPMailer) SendWelcome(_ context.Context, to, name string) error {
	return m.deliver(welcomeMessage(to, name))
}

func (m *SMTPMailer) SendPasswordReset(_ context.Context, to, resetURL string) error {
	return m.deliver(resetMessage(to, resetURL))
}

func (m *SMTPMailer) SendResetSuccess(_ context.Context, to string) error {
	return m.deliver(resetSuccessMessage(to))
}

// LogMailer logs emails instead of sending them. Used when no SMTP host is configured.
type LogMailer struct {
	logger zerolog.Logger
	mu     sync.Mutex
	sent   []Message
}

func NewLogMailer() *LogMailer {
	return &LogMailer{logger: logging.Component("mail")}
}

// Sent returns every recorded message, newest last.
func (m *LogMailer) Sent() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.sent...)
}

func (m *LogMailer) record(msg Message) error {
	m.mu.Lock()
	m.sent = append(m.sent, msg)
	m.mu.Unlock()
	m.logger.Info().Str("to", msg.To).Str("subject", msg.Subject).Msg("email not sent: smtp not configured")
	return nil
}

func (m *LogMailer) SendVerification(_ context.Context, to, code string) error {
	return m.record(verificationMessage(to, code))
}

func (m *LogMailer) SendWelcome(_ context.Context, to, name string) error {
	return m.record(welcomeMessage(to, name))
}

func (m *LogMailer) SendPasswordReset(_ context.Context, to, resetURL string) error {
	return m.record(resetMessage(to, resetURL))
}

func (m *LogMailer) SendResetSuccess(_ context.Context, to string) error {
	return m.record(resetSuccessMessage(to))
}
