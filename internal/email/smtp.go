package email

import (
	"fmt"
	"net/smtp"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
)

// SMTPServerConfig holds the connection settings for the outgoing mail server.
type SMTPServerConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	Sender   string // From address
}

// EmailService sends the invitation and credential recovery mails. Without
// a configured host it only logs the links it would have sent, which is
// what local development relies on.
type EmailService struct {
	config      SMTPServerConfig
	auth        smtp.Auth
	frontendURL string
	log         zerolog.Logger
	send        func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewEmailService(config SMTPServerConfig, frontendURL string, log zerolog.Logger) *EmailService {
	var auth smtp.Auth
	if config.Username != "" {
		auth = smtp.PlainAuth("", config.Username, config.Password, config.Host)
	}
	return &EmailService{
		config:      config,
		auth:        auth,
		frontendURL: strings.TrimSuffix(frontendURL, "/"),
		log:         log.With().Str("component", "email").Logger(),
		send:        smtp.SendMail,
	}
}

// Enabled reports whether an SMTP host is configured.
func (s *EmailService) Enabled() bool {
	return s.config.Host != ""
}

// SendInvite mails the signup link carrying the invite code.
func (s *EmailService) SendInvite(recipient, code, inviterName string) error {
	link := fmt.Sprintf("%s/register?code=%s&email=%s", s.frontendURL, url.QueryEscape(code), url.QueryEscape(recipient))
	body := fmt.Sprintf(
		"Hi,\n\n%s has invited you to join Sport Pal Planner.\n\nSign up with this link:\n%s\n\nSee you on the court!\n",
		inviterName, link)
	return s.deliver(recipient, "You're invited to Sport Pal Planner", body, link)
}

// SendRecovery mails a single-use password reset link.
func (s *EmailService) SendRecovery(recipient, token string) error {
	link := fmt.Sprintf("%s/recover?token=%s", s.frontendURL, url.QueryEscape(token))
	body := fmt.Sprintf(
		"Hi,\n\nA password reset was requested for your Sport Pal Planner account.\n\nChoose a new password here:\n%s\n\nIf you did not expect this mail you can ignore it.\n",
		link)
	return s.deliver(recipient, "Reset your Sport Pal Planner password", body, link)
}

func (s *EmailService) deliver(recipient, subject, body, link string) error {
	if !s.Enabled() {
		s.log.Info().Str("to", recipient).Str("link", link).Msg("smtp disabled, mail not sent")
		return nil
	}

	message := []byte(
		"To: " + recipient + "\r\n" +
			"From: " + s.config.Sender + "\r\n" +
			"Subject: " + subject + "\r\n" +
			"Content-Type: text/plain; charset=UTF-8\r\n" +
			"\r\n" +
			body + "\r\n")

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	if err := s.send(addr, s.auth, s.config.Sender, []string{recipient}, message); err != nil {
		return fmt.Errorf("smtp error: %w", err)
	}
	s.log.Debug().Str("to", recipient).Str("subject", subject).Msg("mail sent")
	return nil
}
