package email

import (
	"fmt"
	"mime"
	"net/smtp"

	"go-storefront/config"
)

type Sender struct {
	cfg config.SMTP
}

func NewSender(cfg config.SMTP) *Sender {
	return &Sender{cfg: cfg}
}

func (s *Sender) SendEmail(to string, subject string, body string) error {
	if !s.cfg.Enabled() {
		return fmt.Errorf(
			"missing required SMTP settings: SMTP_SERVER=%q, SMTP_PORT=%q, FROM_ADDR=%q",
			s.cfg.Server, s.cfg.Port, s.cfg.FromAddr)
	}

	msg := buildMessage(s.cfg.FromName, s.cfg.FromAddr, to, subject, body)

	var auth smtp.Auth
	if s.cfg.User != "" {
		auth = smtp.PlainAuth("", s.cfg.User, s.cfg.Pass, s.cfg.Server)
	}

	err := smtp.SendMail(s.cfg.Server+":"+s.cfg.Port, auth, s.cfg.FromAddr, []string{to}, msg)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	return nil
}

// subjects are Persian, so they go out as RFC 2047 encoded words
func buildMessage(fromName, fromAddr, to, subject, body string) []byte {
	return []byte(fmt.Sprintf("From: %s <%s>\r\n"+
		"To: %s\r\n"+
		"Subject: %s\r\n"+
		"MIME-Version: 1.0\r\n"+
		"Content-Type: text/plain; charset=UTF-8\r\n\r\n"+
		"%s",
		mime.QEncoding.Encode("utf-8", fromName), fromAddr, to,
		mime.QEncoding.Encode("utf-8", subject), body))
}
