package integrations

import (
	"fmt"
	"log"
	"net/smtp"

	"canteen-backend/internal/config"
)

// Mailer sends email through SMTP when configured, and degrades to logging
// the message otherwise, so development setups need no mail server.
type Mailer struct {
	cfg config.SMTPConfig
}

func NewMailer(cfg config.SMTPConfig) *Mailer {
	if cfg.Host == "" {
		log.Println("WARN: SMTP not configured, emails will be logged instead of sent")
	}
	return &Mailer{cfg: cfg}
}

// Send delivers one message. Returns the message id ("mock" when SMTP is not
// configured).
func (m *Mailer) Send(to, subject, body string) (string, error) {
	if m.cfg.Host == "" {
		log.Printf("Email (mock): to=%s subject=%q", to, subject)
		return "mock-message-id", nil
	}

	from := m.cfg.From
	if from == "" {
		from = m.cfg.User
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n", from, to, subject, body)
	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	auth := smtp.PlainAuth("", m.cfg.User, m.cfg.Password, m.cfg.Host)

	if err := smtp.SendMail(addr, auth, from, []string{to}, []byte(msg)); err != nil {
		return "", fmt.Errorf("send mail: %w", err)
	}
	return fmt.Sprintf("%s->%s", from, to), nil
}
