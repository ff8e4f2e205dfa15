// Package email provides an SMTP-based notifier for the notification subsystem.
package email

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/ethicsdesk/ethicsdesk/internal/config"
	"github.com/ethicsdesk/ethicsdesk/internal/port/notifier"
)

// Notifier sends email notifications via SMTP.
type Notifier struct {
	cfg config.SMTP
}

// NewNotifier creates a new email notifier.
func NewNotifier(cfg config.SMTP) *Notifier {
	return &Notifier{cfg: cfg}
}

// Name returns the provider identifier.
func (n *Notifier) Name() string { return "email" }

// Send sends an email notification.
func (n *Notifier) Send(_ context.Context, msg notifier.Notification) error {
	if n.cfg.Host == "" || n.cfg.From == "" {
		return notifier.ErrNotConfigured
	}

	addr := fmt.Sprintf("%s:%d", n.cfg.Host, n.cfg.Port)

	raw := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		n.cfg.From, msg.To, msg.Subject, msg.Body)

	var auth smtp.Auth
	if n.cfg.Password != "" {
		auth = smtp.PlainAuth("", n.cfg.From, n.cfg.Password, n.cfg.Host)
	}

	if err := smtp.SendMail(addr, auth, n.cfg.From, []string{msg.To}, []byte(raw)); err != nil {
		return fmt.Errorf("send mail to %s: %w", msg.To, err)
	}
	return nil
}
