package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ethicsdesk/ethicsdesk/internal/domain"
	"github.com/ethicsdesk/ethicsdesk/internal/domain/proposal"
	"github.com/ethicsdesk/ethicsdesk/internal/domain/review"
)

func newTestProposalService(store *mockStore) *ProposalService {
	wf := newTestWorkflow(store, newMockQueue(), nil)
	return NewProposalService(store, wf)
}

func TestProposal_Create(t *testing.T) {
	store := newMockStore()
	svc := newTestProposalService(store)

	p, err := svc.Create(context.Background(), proposal.CreateRequest{
		Title:       "Gaze tracking in toddlers",
		ApplicantID: "user-applicant",
		Risk:        proposal.RiskProfile{ResearchDomain: "general"},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if p.Status != proposal.StatusDraft {
		t.Errorf("status = %s, want draft", p.Status)
	}
	wantRef := proposal.FormatReference(time.Now().Year(), 1, 0)
	if p.Reference != wantRef {
		t.Errorf("reference = %s, want %s", p.Reference, wantRef)
	}
}

func TestProposal_Create_SequentialReferences(t *testing.T) {
	store := newMockStore()
	svc := newTestProposalService(store)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		p, err := svc.Create(ctx, proposal.CreateRequest{
			Title:       fmt.Sprintf("study %d", i),
			ApplicantID: "user-applicant",
		})
		if err != nil {
			t.Fatal(err)
		}
		want := proposal.FormatReference(time.Now().Year(), i, 0)
		if p.Reference != want {
			t.Errorf("reference %d = %s, want %s", i, p.Reference, want)
		}
	}
}

func TestProposal_Create_Invalid(t *testing.T) {
	store := newMockStore()
	svc := newTestProposalService(store)
	ctx := context.Background()

	cases := []struct {
		name string
		req  proposal.CreateRequest
	}{
		{"missing title", proposal.CreateRequest{ApplicantID: "u"}},
		{"missing applicant", proposal.CreateRequest{Title: "t"}},
		{"revision without parent", proposal.CreateRequest{Title: "t", ApplicantID: "u", IsRevision: true}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Create(ctx, tc.req); !errors.Is(err, domain.ErrValidation) {
				t.Errorf("err = %v, want ErrValidation", err)
			}
		})
	}
}

func TestProposal_Update_DraftOnly(t *testing.T) {
	store := newMockStore()
	svc := newTestProposalService(store)
	ctx := context.Background()

	p := seedProposal(store, nil)
	title := "Updated title"
	got, err := svc.Update(ctx, p.ID, proposal.UpdateRequest{Title: &title})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.Title != title {
		t.Errorf("title = %s, want %s", got.Title, title)
	}

	store.proposals[p.ID].Status = proposal.StatusSubmitted
	_, err = svc.Update(ctx, p.ID, proposal.UpdateRequest{Title: &title})
	if !errors.Is(err, domain.ErrPolicy) {
		t.Fatalf("err = %v, want ErrPolicy", err)
	}
}

func TestProposal_Submit(t *testing.T) {
	store := newMockStore()
	svc := newTestProposalService(store)
	ctx := context.Background()

	p := seedProposal(store, nil)
	got, err := svc.Submit(ctx, p.ID)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if got.Status != proposal.StatusSubmitted {
		t.Errorf("status = %s, want submitted", got.Status)
	}
	if got.DateSubmitted == nil {
		t.Error("date_submitted not stamped")
	}
	if _, err := store.GetActiveReview(ctx, p.ID, review.TypeCommittee); err != nil {
		t.Errorf("no review opened on submit: %v", err)
	}
}

func TestProposal_Submit_SupervisorPath(t *testing.T) {
	store := newMockStore()
	svc := newTestProposalService(store)
	ctx := context.Background()

	p := seedProposal(store, func(p *proposal.Proposal) { p.SupervisorID = "user-supervisor" })
	got, err := svc.Submit(ctx, p.ID)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if got.Status != proposal.StatusSubmittedToSupervisor {
		t.Errorf("status = %s, want submitted_to_supervisor", got.Status)
	}
	if got.DateSubmittedSupervisor == nil {
		t.Error("date_submitted_supervisor not stamped")
	}
	if got.DateSubmitted != nil {
		t.Error("date_submitted must stay empty until the committee pass")
	}
}

func TestProposal_Submit_NonDraftRejected(t *testing.T) {
	store := newMockStore()
	svc := newTestProposalService(store)
	ctx := context.Background()

	p := seedProposal(store, nil)
	if _, err := svc.Submit(ctx, p.ID); err != nil {
		t.Fatal(err)
	}

	_, err := svc.Submit(ctx, p.ID)
	if !errors.Is(err, domain.ErrPolicy) {
		t.Fatalf("resubmit err = %v, want ErrPolicy", err)
	}
}

func TestProposal_Withdraw(t *testing.T) {
	store := newMockStore()
	svc := newTestProposalService(store)
	ctx := context.Background()

	p := seedProposal(store, nil)
	got, err := svc.Withdraw(ctx, p.ID)
	if err != nil {
		t.Fatalf("Withdraw: %v", err)
	}
	if got.Status != proposal.StatusArchived {
		t.Errorf("status = %s, want archived", got.Status)
	}
	if !got.InArchive {
		t.Error("in_archive not set")
	}
}

func TestProposal_CreateRevision(t *testing.T) {
	store := newMockStore()
	svc := newTestProposalService(store)
	ctx := context.Background()

	parent, err := svc.Create(ctx, proposal.CreateRequest{
		Title:       "Original",
		ApplicantID: "user-applicant",
		Risk:        proposal.RiskProfile{ResearchDomain: "general", Deception: true},
	})
	if err != nil {
		t.Fatal(err)
	}

	rev, err := svc.CreateRevision(ctx, parent.ID)
	if err != nil {
		t.Fatalf("CreateRevision: %v", err)
	}

	if !rev.IsRevision || rev.ParentID != parent.ID {
		t.Errorf("revision link broken: is_revision=%v parent=%s", rev.IsRevision, rev.ParentID)
	}
	wantRef, _ := proposal.NextRevisionReference(parent.Reference)
	if rev.Reference != wantRef {
		t.Errorf("reference = %s, want %s", rev.Reference, wantRef)
	}
	if !rev.Risk.Deception {
		t.Error("risk profile not carried into the revision")
	}
}

func TestProposal_CreateCopy(t *testing.T) {
	store := newMockStore()
	svc := newTestProposalService(store)
	ctx := context.Background()

	src, err := svc.Create(ctx, proposal.CreateRequest{
		Title:       "Original",
		ApplicantID: "user-applicant",
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.ReplaceStudies(ctx, src.ID, []proposal.Study{{Name: "group A"}}); err != nil {
		t.Fatal(err)
	}

	cp, err := svc.CreateCopy(ctx, src.ID, "")
	if err != nil {
		t.Fatalf("CreateCopy: %v", err)
	}

	if cp.ID == src.ID || cp.Reference == src.Reference {
		t.Error("copy must get its own identity and reference")
	}
	if cp.ParentID != "" || cp.IsRevision {
		t.Error("copy must not be linked as a revision")
	}
	studies, _ := svc.Studies(ctx, cp.ID)
	if len(studies) != 1 || studies[0].Name != "group A" {
		t.Errorf("studies not copied: %+v", studies)
	}
}

func TestProposal_ReplaceStudies_DraftOnly(t *testing.T) {
	store := newMockStore()
	svc := newTestProposalService(store)
	ctx := context.Background()

	p := seedProposal(store, nil)
	store.proposals[p.ID].Status = proposal.StatusUnderReview

	_, err := svc.ReplaceStudies(ctx, p.ID, []proposal.Study{{Name: "late addition"}})
	if !errors.Is(err, domain.ErrPolicy) {
		t.Fatalf("err = %v, want ErrPolicy", err)
	}
}

func TestProposal_Get_NotFound(t *testing.T) {
	store := newMockStore()
	svc := newTestProposalService(store)

	_, err := svc.Get(context.Background(), "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
