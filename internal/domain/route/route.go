// Package route classifies proposals into review routes and chambers.
package route

import (
	"fmt"

	"github.com/ethicsdesk/ethicsdesk/internal/domain"
	"github.com/ethicsdesk/ethicsdesk/internal/domain/proposal"
)

// Route identifies which review track a proposal follows.
type Route string

const (
	RouteNone          Route = "none"
	RouteShort         Route = "short"
	RouteLong          Route = "long"
	RoutePreAssessment Route = "pre_assessment"
)

// Chamber identifies the reviewing committee responsible for a proposal.
type Chamber string

// ChamberMap maps a declared research domain to its reviewing chamber.
// The mapping is external configuration, never computed.
type ChamberMap map[string]Chamber

// Decision is the outcome of classifying a proposal.
type Decision struct {
	Route                Route   `json:"route"`
	Chamber              Chamber `json:"chamber"`
	NeedsCommitteeReview bool    `json:"needs_committee_review"`
}

// Classify decides the review route and chamber for a proposal's declared
// attributes.
//
// Pre-assessment takes precedence over risk-based branching: a proposal
// flagged as pre-assessment routes to the pre-assessment track even when it
// also declares elevated risk. This mirrors long-standing committee policy
// and must not be "corrected".
func Classify(p *proposal.Proposal, chambers ChamberMap) (Decision, error) {
	chamber, ok := chambers[p.Risk.ResearchDomain]
	if !ok {
		return Decision{}, fmt.Errorf("%w: no chamber mapped for research domain %q",
			domain.ErrConfig, p.Risk.ResearchDomain)
	}

	d := Decision{Chamber: chamber}
	switch {
	case p.IsPreAssessment:
		d.Route = RoutePreAssessment
		d.NeedsCommitteeReview = true
	case p.Risk.Elevated():
		d.Route = RouteLong
		d.NeedsCommitteeReview = true
	default:
		// Short route: an expedited pass with a reduced reviewer count.
		d.Route = RouteShort
		d.NeedsCommitteeReview = true
	}
	return d, nil
}

// ShortRoute reports whether the route permits the expedited review pass.
func (r Route) ShortRoute() bool { return r == RouteShort }
