package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"golang.org/x/sync/semaphore"

	"github.com/ethicsdesk/ethicsdesk/internal/domain/proposal"
	"github.com/ethicsdesk/ethicsdesk/internal/domain/review"
	"github.com/ethicsdesk/ethicsdesk/internal/port/database"
	"github.com/ethicsdesk/ethicsdesk/internal/port/messagequeue"
	"github.com/ethicsdesk/ethicsdesk/internal/port/notifier"
)

// maxConcurrentSends bounds in-flight notifier deliveries across all events.
const maxConcurrentSends = 8

// NotificationService consumes workflow events from the queue and dispatches
// notifications to all registered notifiers.
type NotificationService struct {
	store         database.Store
	notifiers     []notifier.Notifier
	enabledEvents map[string]bool
	sem           *semaphore.Weighted
}

// NewNotificationService creates a NotificationService with the given
// notifiers and list of enabled event subjects (e.g. "proposals.status").
// If enabledEvents is nil or empty, all events are enabled.
func NewNotificationService(store database.Store, notifiers []notifier.Notifier, enabledEvents []string) *NotificationService {
	enabled := make(map[string]bool, len(enabledEvents))
	for _, e := range enabledEvents {
		enabled[e] = true
	}
	return &NotificationService{
		store:         store,
		notifiers:     notifiers,
		enabledEvents: enabled,
		sem:           semaphore.NewWeighted(maxConcurrentSends),
	}
}

// Run subscribes the service to the workflow event subjects. It returns a
// cancel function that tears down the subscriptions; handler dispatch happens
// on the queue's delivery goroutines.
func (s *NotificationService) Run(ctx context.Context, queue messagequeue.Queue) (func(), error) {
	cancelStatus, err := queue.Subscribe(ctx, messagequeue.SubjectProposalStatus, s.handleStatusChanged)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", messagequeue.SubjectProposalStatus, err)
	}
	cancelReview, err := queue.Subscribe(ctx, messagequeue.SubjectReviewClosed, s.handleReviewClosed)
	if err != nil {
		cancelStatus()
		return nil, fmt.Errorf("subscribe %s: %w", messagequeue.SubjectReviewClosed, err)
	}
	return func() {
		cancelStatus()
		cancelReview()
	}, nil
}

func (s *NotificationService) handleStatusChanged(ctx context.Context, subject string, data []byte) error {
	var event StatusChangedEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return fmt.Errorf("decode status event: %w", err)
	}

	p, err := s.store.GetProposal(ctx, event.ProposalID)
	if err != nil {
		return fmt.Errorf("load proposal %s: %w", event.ProposalID, err)
	}

	to, err := s.recipient(ctx, p)
	if err != nil {
		return err
	}

	status := proposal.Status(event.NewStatus)
	s.Notify(ctx, notifier.Notification{
		To:      to,
		Subject: fmt.Sprintf("[%s] Proposal status: %s", p.Reference, status),
		Body: fmt.Sprintf("Your proposal %q (%s) moved from %s to %s.\nReason: %s\n",
			p.Title, p.Reference, proposal.Status(event.OldStatus), status, event.Reason),
		Source: subject,
	})
	return nil
}

func (s *NotificationService) handleReviewClosed(ctx context.Context, subject string, data []byte) error {
	var r review.Review
	if err := json.Unmarshal(data, &r); err != nil {
		return fmt.Errorf("decode review event: %w", err)
	}
	if r.Continuation == nil {
		return nil
	}

	p, err := s.store.GetProposal(ctx, r.ProposalID)
	if err != nil {
		return fmt.Errorf("load proposal %s: %w", r.ProposalID, err)
	}

	to, err := s.recipient(ctx, p)
	if err != nil {
		return err
	}

	s.Notify(ctx, notifier.Notification{
		To:      to,
		Subject: fmt.Sprintf("[%s] Review outcome: %s", p.Reference, *r.Continuation),
		Body: fmt.Sprintf("The %s review of proposal %q (%s) closed with outcome %s.\n",
			r.Type, p.Title, p.Reference, *r.Continuation),
		Source: subject,
	})
	return nil
}

// recipient resolves the proposal applicant's email address.
func (s *NotificationService) recipient(ctx context.Context, p *proposal.Proposal) (string, error) {
	u, err := s.store.GetUser(ctx, p.ApplicantID)
	if err != nil {
		return "", fmt.Errorf("load applicant %s: %w", p.ApplicantID, err)
	}
	return u.Email, nil
}

// Notify sends a notification to all registered notifiers. Deliveries run
// concurrently, bounded by maxConcurrentSends; errors are logged but never
// interrupt delivery to other notifiers.
func (s *NotificationService) Notify(ctx context.Context, n notifier.Notification) {
	if len(s.enabledEvents) > 0 && !s.enabledEvents[n.Source] {
		return
	}

	for _, provider := range s.notifiers {
		if err := s.sem.Acquire(ctx, 1); err != nil {
			return
		}
		go func(p notifier.Notifier) {
			defer s.sem.Release(1)
			if err := p.Send(ctx, n); err != nil {
				slog.Warn("notification send failed",
					"provider", p.Name(),
					"subject", n.Subject,
					"error", err,
				)
				return
			}
			slog.Debug("notification sent", "provider", p.Name(), "subject", n.Subject)
		}(provider)
	}
}

// NotifierCount returns the number of registered notifiers.
func (s *NotificationService) NotifierCount() int {
	return len(s.notifiers)
}
