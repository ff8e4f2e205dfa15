// Package docs bridges the document-generation port onto the message queue.
// The PDF renderer is a separate consumer; the portal only announces work.
package docs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ethicsdesk/ethicsdesk/internal/port/documents"
	"github.com/ethicsdesk/ethicsdesk/internal/port/messagequeue"
)

// Generator publishes readiness signals on the documents subject.
type Generator struct {
	queue messagequeue.Queue
}

// NewGenerator creates a queue-backed document generator signal.
func NewGenerator(queue messagequeue.Queue) *Generator {
	return &Generator{queue: queue}
}

// SignalReady announces that a proposal's confirmation documents are due.
func (g *Generator) SignalReady(ctx context.Context, sig documents.ReadySignal) error {
	data, err := json.Marshal(sig)
	if err != nil {
		return fmt.Errorf("marshal document signal: %w", err)
	}
	if err := g.queue.Publish(ctx, messagequeue.SubjectDocumentsReady, data); err != nil {
		return fmt.Errorf("publish document signal for %s: %w", sig.ProposalID, err)
	}
	return nil
}
