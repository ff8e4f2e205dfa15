// Package notifier defines the notification port (interface).
package notifier

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned when a notifier is not properly configured.
var ErrNotConfigured = errors.New("notifier: not configured")

// Notification is the payload sent through a Notifier. Delivery mechanics
// (SMTP, templating, localization) are entirely external to the workflow
// core.
type Notification struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	Source  string `json:"source"` // e.g. "proposal.status_changed", "review.closed"
}

// Notifier is the port interface for sending notifications.
type Notifier interface {
	// Name returns the unique identifier for this notifier (e.g. "email").
	Name() string

	// Send delivers a notification.
	Send(ctx context.Context, n Notification) error
}
