package review

import (
	"fmt"

	"github.com/ethicsdesk/ethicsdesk/internal/domain"
)

// Outcome is the aggregated result of a review's decisions.
type Outcome struct {
	// Go is nil while any assigned reviewer has not voted yet.
	Go           *bool        `json:"go,omitempty"`
	Continuation Continuation `json:"continuation"`
	Pending      bool         `json:"pending"`
}

// Aggregate combines the individual decisions of a review into its overall
// outcome.
//
// The rule is unanimity, not majority: one dissenting reviewer blocks
// approval. A blocked review returns the proposal for revision unless a
// dissenting reviewer flags the rejection as final; only then is the
// proposal rejected outright. The outcome stays pending until every
// assigned reviewer has a recorded vote. Escalation flags override the
// vote-derived continuation: an METC referral outranks a long-route
// escalation, and both outrank the plain go/no-go tally.
//
// A review with zero assigned decisions never yields an outcome; that is a
// reviewer-assignment configuration defect surfaced as a policy violation,
// not an auto-approve path.
func Aggregate(decisions []Decision) (Outcome, error) {
	if len(decisions) == 0 {
		return Outcome{}, fmt.Errorf("%w: review has no assigned decisions", domain.ErrPolicy)
	}

	allGo := true
	anyReject := false
	var escalation Escalation
	for i := range decisions {
		d := &decisions[i]
		if !d.Submitted() {
			return Outcome{Pending: true, Continuation: ContinuationNotProcessed}, nil
		}
		if !*d.Go {
			allGo = false
		}
		if d.Reject {
			anyReject = true
		}
		switch d.Escalation {
		case EscalationMETC:
			escalation = EscalationMETC
		case EscalationLongRoute:
			if escalation != EscalationMETC {
				escalation = EscalationLongRoute
			}
		}
	}

	out := Outcome{Go: &allGo}
	switch {
	case escalation == EscalationMETC:
		out.Continuation = ContinuationMETC
	case escalation == EscalationLongRoute:
		out.Continuation = ContinuationLongRoute
	case allGo:
		out.Continuation = ContinuationApproved
	case anyReject:
		out.Continuation = ContinuationRejected
	default:
		out.Continuation = ContinuationRevision
	}
	return out, nil
}
