package ws

import (
	"context"
	"encoding/json"
	"log/slog"
)

// Event type constants for WebSocket messages. The secretary dashboard
// subscribes to these to refresh without polling.
const (
	EventProposalStatus   = "proposal.status"
	EventReviewCreated    = "review.created"
	EventReviewClosed     = "review.closed"
	EventDecisionRecorded = "review.decision"
)

// ProposalStatusEvent is broadcast when a proposal's status changes.
type ProposalStatusEvent struct {
	ProposalID string `json:"proposal_id"`
	Reference  string `json:"reference"`
	OldStatus  string `json:"old_status"`
	NewStatus  string `json:"new_status"`
}

// ReviewEvent is broadcast when a review opens or closes.
type ReviewEvent struct {
	ReviewID     string `json:"review_id"`
	ProposalID   string `json:"proposal_id"`
	Type         string `json:"type"`
	Stage        string `json:"stage"`
	Continuation string `json:"continuation,omitempty"`
}

// DecisionEvent is broadcast when a reviewer submits a vote. The vote
// itself stays private; only the fact of submission is announced.
type DecisionEvent struct {
	ReviewID   string `json:"review_id"`
	ProposalID string `json:"proposal_id"`
	Submitted  int    `json:"submitted"`
	Expected   int    `json:"expected"`
}

// BroadcastEvent is a convenience method that marshals a typed event and broadcasts it.
func (h *Hub) BroadcastEvent(ctx context.Context, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal ws event payload", "type", eventType, "error", err)
		return
	}

	h.Broadcast(ctx, Message{
		Type:    eventType,
		Payload: json.RawMessage(data),
	})
}
