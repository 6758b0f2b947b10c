package email

import (
	"errors"
	"net/smtp"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestSendInviteBuildsLink(t *testing.T) {
	svc := NewEmailService(SMTPServerConfig{Host: "mail.test", Port: 2525, Sender: "noreply@test"}, "https://app.test/", zerolog.Nop())

	var gotAddr string
	var gotMsg []byte
	svc.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotMsg = addr, msg
		if from != "noreply@test" || len(to) != 1 || to[0] != "new@example.com" {
			t.Errorf("from=%q to=%v", from, to)
		}
		return nil
	}

	if err := svc.SendInvite("new@example.com", "abc123", "Alice"); err != nil {
		t.Fatal(err)
	}
	if gotAddr != "mail.test:2525" {
		t.Errorf("addr = %q", gotAddr)
	}
	if !strings.Contains(string(gotMsg), "https://app.test/register?code=abc123&email=new%40example.com") {
		t.Errorf("message does not contain the signup link:\n%s", gotMsg)
	}
}

func TestDisabledServiceDoesNotSend(t *testing.T) {
	svc := NewEmailService(SMTPServerConfig{}, "https://app.test", zerolog.Nop())
	svc.send = func(string, smtp.Auth, string, []string, []byte) error {
		t.Error("send called without a host")
		return nil
	}
	if svc.Enabled() {
		t.Error("Enabled() = true without host")
	}
	if err := svc.SendRecovery("a@example.com", "tok"); err != nil {
		t.Errorf("SendRecovery = %v", err)
	}
}

func TestSendErrorIsWrapped(t *testing.T) {
	svc := NewEmailService(SMTPServerConfig{Host: "mail.test", Port: 25}, "https://app.test", zerolog.Nop())
	boom := errors.New("connection refused")
	svc.send = func(string, smtp.Auth, string, []string, []byte) error { return boom }
	if err := svc.SendRecovery("a@example.com", "tok"); !errors.Is(err, boom) {
		t.Errorf("err = %v, want wrapped %v", err, boom)
	}
}
