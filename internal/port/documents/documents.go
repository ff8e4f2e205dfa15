// Package documents defines the document-generation signal port. PDF
// rendering is an external subsystem; the workflow core only signals that a
// proposal's confirmation documents are due.
package documents

import "context"

// ReadySignal is the payload announcing that documents can be generated.
type ReadySignal struct {
	ProposalID string `json:"proposal_id"`
	Reference  string `json:"reference"`
	Kind       string `json:"kind"` // "approval" | "pre_assessment"
}

// Generator receives document-readiness signals.
type Generator interface {
	SignalReady(ctx context.Context, sig ReadySignal) error
}
