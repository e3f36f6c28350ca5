package mail

import (
	"context"
	"errors"
	"net/smtp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSMTPMailerBuildsMessage(t *testing.T) {
	m := NewSMTPMailer(SMTPConfig{Host: "smtp.example", Port: "587", Username: "u", Password: "p", Sender: "team@uniprofs.ai"})

	var (
		gotAddr string
		gotAuth smtp.Auth
		gotTo   []string
		gotMsg  string
	)
	m.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotAuth, gotTo, gotMsg = addr, a, to, string(msg)
		return nil
	}

	require.NoError(t, m.SendVerification(context.Background(), "ana@example.com", "123456"))
	assert.Equal(t, "smtp.example:587", gotAddr)
	assert.NotNil(t, gotAuth)
	assert.Equal(t, []string{"ana@example.com"}, gotTo)
	assert.Contains(t, gotMsg, "Subject: Verify your email\r\n")
	assert.Contains(t, gotMsg, "Content-Type: text/html; charset=UTF-8")
	assert.Contains(t, gotMsg, "123456")
}

func TestSMTPMailerWrapsError(t *testing.T) {
	m := NewSMTPMailer(SMTPConfig{Host: "smtp.example", Port: "25"})
	m.send = func(string, smtp.Auth, string, []string, []byte) error { return errors.New("relay down") }

	err := m.SendResetSuccess(context.Background(), "ana@example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "relay down")
}

func TestLogMailerRecords(t *testing.T) {
	m := NewLogMailer()
	require.NoError(t, m.SendPasswordReset(context.Background(), "ana@example.com", "http://app/reset-password/abc"))
	require.NoError(t, m.SendWelcome(context.Background(), "ana@example.com", "<Ana>"))

	sent := m.Sent()
	require.Len(t, sent, 2)
	assert.Contains(t, sent[0].HTML, "http://app/reset-password/abc")
	assert.Contains(t, sent[1].HTML, "&lt;Ana&gt;")
}
