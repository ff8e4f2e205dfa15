package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	edhttp "github.com/ethicsdesk/ethicsdesk/internal/adapter/http"
	"github.com/ethicsdesk/ethicsdesk/internal/domain"
	"github.com/ethicsdesk/ethicsdesk/internal/domain/proposal"
	"github.com/ethicsdesk/ethicsdesk/internal/domain/refdata"
	"github.com/ethicsdesk/ethicsdesk/internal/domain/review"
	"github.com/ethicsdesk/ethicsdesk/internal/domain/route"
	"github.com/ethicsdesk/ethicsdesk/internal/domain/user"
	"github.com/ethicsdesk/ethicsdesk/internal/middleware"
	"github.com/ethicsdesk/ethicsdesk/internal/port/database"
	"github.com/ethicsdesk/ethicsdesk/internal/service"
)

// adminID matches the default identity injected when auth is disabled.
const adminID = "00000000-0000-0000-0000-000000000000"

// mockStore implements database.Store for handler tests.
type mockStore struct {
	proposals map[string]*proposal.Proposal
	studies   map[string][]proposal.Study
	reviews   map[string]*review.Review
	decisions []*review.Decision
	refItems  []refdata.Item
	users     map[string]*user.User
	keys      map[string]*user.APIKey
	seqs      map[int]int
	nextID    int
}

func newMockStore() *mockStore {
	return &mockStore{
		proposals: map[string]*proposal.Proposal{},
		studies:   map[string][]proposal.Study{},
		reviews:   map[string]*review.Review{},
		users:     map[string]*user.User{},
		keys:      map[string]*user.APIKey{},
		seqs:      map[int]int{},
	}
}

func (m *mockStore) id(prefix string) string {
	m.nextID++
	return fmt.Sprintf("%s-%d", prefix, m.nextID)
}

func (m *mockStore) ListProposals(_ context.Context, applicantID string, includeArchived bool) ([]proposal.Proposal, error) {
	var out []proposal.Proposal
	for _, p := range m.proposals {
		if applicantID != "" && p.ApplicantID != applicantID {
			continue
		}
		if p.InArchive && !includeArchived {
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

func (m *mockStore) GetProposal(_ context.Context, id string) (*proposal.Proposal, error) {
	p, ok := m.proposals[id]
	if !ok {
		return nil, fmt.Errorf("proposal %s: %w", id, domain.ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

func (m *mockStore) CreateProposal(_ context.Context, p *proposal.Proposal) error {
	p.ID = m.id("prop")
	p.Version = 1
	p.DateCreated = time.Now().UTC()
	p.DateModified = p.DateCreated
	cp := *p
	m.proposals[p.ID] = &cp
	return nil
}

func (m *mockStore) UpdateProposal(_ context.Context, p *proposal.Proposal) error {
	stored, ok := m.proposals[p.ID]
	if !ok {
		return fmt.Errorf("proposal %s: %w", p.ID, domain.ErrNotFound)
	}
	if stored.Version != p.Version {
		return fmt.Errorf("proposal %s: %w", p.ID, domain.ErrConflict)
	}
	p.Version++
	cp := *p
	m.proposals[p.ID] = &cp
	return nil
}

func (m *mockStore) UpdateProposalStatus(_ context.Context, id string, from, to proposal.Status) error {
	stored, ok := m.proposals[id]
	if !ok {
		return fmt.Errorf("proposal %s: %w", id, domain.ErrNotFound)
	}
	if stored.Status != from {
		return fmt.Errorf("proposal %s status: %w", id, domain.ErrConflict)
	}
	stored.Status = to
	return nil
}

func (m *mockStore) NextReferenceSeq(_ context.Context, year int) (int, error) {
	m.seqs[year]++
	return m.seqs[year], nil
}

func (m *mockStore) ListStudies(_ context.Context, proposalID string) ([]proposal.Study, error) {
	return m.studies[proposalID], nil
}

func (m *mockStore) ReplaceStudies(_ context.Context, proposalID string, studies []proposal.Study) error {
	out := make([]proposal.Study, len(studies))
	for i, st := range studies {
		st.ID = m.id("study")
		st.ProposalID = proposalID
		out[i] = st
	}
	m.studies[proposalID] = out
	return nil
}

func (m *mockStore) ListReviews(_ context.Context, proposalID string) ([]review.Review, error) {
	var out []review.Review
	for _, r := range m.reviews {
		if r.ProposalID == proposalID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *mockStore) GetReview(_ context.Context, id string) (*review.Review, error) {
	r, ok := m.reviews[id]
	if !ok {
		return nil, fmt.Errorf("review %s: %w", id, domain.ErrNotFound)
	}
	cp := *r
	return &cp, nil
}

func (m *mockStore) GetActiveReview(_ context.Context, proposalID string, t review.Type) (*review.Review, error) {
	for _, r := range m.reviews {
		if r.ProposalID == proposalID && r.Type == t && !r.Closed() {
			cp := *r
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("active %s review for %s: %w", t, proposalID, domain.ErrNotFound)
}

func (m *mockStore) CreateReview(_ context.Context, r *review.Review) error {
	r.ID = m.id("rev")
	r.Version = 1
	r.DateStart = time.Now().UTC()
	cp := *r
	m.reviews[r.ID] = &cp
	return nil
}

func (m *mockStore) UpdateReviewStage(_ context.Context, id string, from, to review.Stage) error {
	stored, ok := m.reviews[id]
	if !ok {
		return fmt.Errorf("review %s: %w", id, domain.ErrNotFound)
	}
	if stored.Stage != from {
		return fmt.Errorf("review %s stage: %w", id, domain.ErrConflict)
	}
	stored.Stage = to
	return nil
}

func (m *mockStore) ListDecisions(_ context.Context, reviewID string) ([]review.Decision, error) {
	var out []review.Decision
	for _, d := range m.decisions {
		if d.ReviewID == reviewID {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (m *mockStore) GetDecision(_ context.Context, reviewID, reviewerID string) (*review.Decision, error) {
	for _, d := range m.decisions {
		if d.ReviewID == reviewID && d.ReviewerID == reviewerID {
			cp := *d
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("decision: %w", domain.ErrNotFound)
}

func (m *mockStore) CreateDecision(_ context.Context, d *review.Decision) error {
	d.ID = m.id("dec")
	cp := *d
	m.decisions = append(m.decisions, &cp)
	return nil
}

func (m *mockStore) RecordDecisionAndClose(_ context.Context, d *review.Decision, closer database.ReviewCloser) (*review.Review, error) {
	r, ok := m.reviews[d.ReviewID]
	if !ok {
		return nil, fmt.Errorf("review %s: %w", d.ReviewID, domain.ErrNotFound)
	}
	if r.Closed() {
		return nil, fmt.Errorf("%w: review %s is already closed", domain.ErrPolicy, r.ID)
	}

	var slot *review.Decision
	for _, stored := range m.decisions {
		if stored.ReviewID == d.ReviewID && stored.ReviewerID == d.ReviewerID {
			slot = stored
			break
		}
	}
	if slot == nil {
		return nil, fmt.Errorf("decision: %w", domain.ErrNotFound)
	}

	now := time.Now().UTC()
	slot.Go = d.Go
	slot.Comments = d.Comments
	slot.Reject = d.Reject
	slot.Escalation = d.Escalation
	slot.DateDecided = &now

	var decisions []review.Decision
	for _, stored := range m.decisions {
		if stored.ReviewID == d.ReviewID {
			decisions = append(decisions, *stored)
		}
	}

	outcome, err := closer(r, decisions)
	if err != nil {
		return nil, err
	}
	if !outcome.Pending {
		goResult := outcome.Go != nil && *outcome.Go
		if err := r.Close(goResult, outcome.Continuation, now); err != nil {
			return nil, err
		}
	}
	cp := *r
	return &cp, nil
}

func (m *mockStore) ListRefData(_ context.Context, kind refdata.Kind) ([]refdata.Item, error) {
	var out []refdata.Item
	for _, it := range m.refItems {
		if kind == "" || it.Kind == kind {
			out = append(out, it)
		}
	}
	return out, nil
}

func (m *mockStore) CreateRefData(_ context.Context, item *refdata.Item) error {
	item.ID = m.id("ref")
	m.refItems = append(m.refItems, *item)
	return nil
}

func (m *mockStore) UpdateRefData(_ context.Context, item *refdata.Item) error {
	for i := range m.refItems {
		if m.refItems[i].ID == item.ID {
			m.refItems[i] = *item
			return nil
		}
	}
	return fmt.Errorf("refdata %s: %w", item.ID, domain.ErrNotFound)
}

func (m *mockStore) DeleteRefData(_ context.Context, id string) error {
	for i := range m.refItems {
		if m.refItems[i].ID == id {
			m.refItems = append(m.refItems[:i], m.refItems[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("refdata %s: %w", id, domain.ErrNotFound)
}

func (m *mockStore) ListUsers(_ context.Context) ([]user.User, error) {
	var out []user.User
	for _, u := range m.users {
		out = append(out, *u)
	}
	return out, nil
}

func (m *mockStore) GetUser(_ context.Context, id string) (*user.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, domain.ErrNotFound)
	}
	cp := *u
	return &cp, nil
}

func (m *mockStore) GetUserByEmail(_ context.Context, email string) (*user.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("user %s: %w", email, domain.ErrNotFound)
}

func (m *mockStore) CreateUser(_ context.Context, u *user.User) error {
	u.ID = m.id("user")
	u.CreatedAt = time.Now().UTC()
	u.UpdatedAt = u.CreatedAt
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *mockStore) UpdateUser(_ context.Context, u *user.User) error {
	if _, ok := m.users[u.ID]; !ok {
		return fmt.Errorf("user %s: %w", u.ID, domain.ErrNotFound)
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *mockStore) CreateAPIKey(_ context.Context, k *user.APIKey) error {
	k.ID = m.id("key")
	k.CreatedAt = time.Now().UTC()
	cp := *k
	m.keys[k.ID] = &cp
	return nil
}

func (m *mockStore) GetAPIKeyByPrefix(_ context.Context, prefix string) (*user.APIKey, error) {
	for _, k := range m.keys {
		if k.Prefix == prefix {
			cp := *k
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("api key: %w", domain.ErrNotFound)
}

func (m *mockStore) DeleteAPIKey(_ context.Context, id string) error {
	if _, ok := m.keys[id]; !ok {
		return fmt.Errorf("api key %s: %w", id, domain.ErrNotFound)
	}
	delete(m.keys, id)
	return nil
}

// newTestServer wires real services over the mock store and mounts the full
// route table with auth disabled (admin identity injected).
func newTestServer(t *testing.T) (*httptest.Server, *mockStore) {
	t.Helper()
	store := newMockStore()

	// The disabled-auth admin identity must exist for handlers that load
	// the current user's record.
	store.users[adminID] = &user.User{
		ID:      adminID,
		Email:   "admin@localhost",
		Name:    "Admin",
		Role:    user.RoleAdmin,
		Enabled: true,
	}

	wf := service.NewWorkflowService(store, nil, nil, nil, service.WorkflowConfig{
		Chambers:            route.ChamberMap{"general": "general", "linguistics": "linguistics"},
		ShortRouteReviewers: 2,
		LongRouteReviewers:  3,
	})

	h := &edhttp.Handlers{
		Proposals: service.NewProposalService(store, wf),
		Reviews:   service.NewReviewService(store, nil, nil, wf),
		RefData:   service.NewRefDataService(store, nil, 0),
		Users:     service.NewUserService(store, nil),
		Auth:      service.NewAuthService(store, 4),
	}

	r := chi.NewRouter()
	r.Use(middleware.Auth(nil, false))
	edhttp.MountRoutes(r, h)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, store
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatal(err)
	}
	return v
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestProposalLifecycle(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/proposals", proposal.CreateRequest{
		Title: "Speech perception in noise",
		Risk:  proposal.RiskProfile{ResearchDomain: "general"},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	created := decode[proposal.Proposal](t, resp)
	if created.ApplicantID != adminID {
		t.Errorf("applicant defaulted to %s, want current user", created.ApplicantID)
	}
	if created.Status != proposal.StatusDraft {
		t.Errorf("status = %v", created.Status)
	}

	// Update the draft.
	title := "Speech perception in noise (v2)"
	resp = doJSON(t, http.MethodPut, srv.URL+"/api/v1/proposals/"+created.ID, proposal.UpdateRequest{Title: &title})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Submit.
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/v1/proposals/"+created.ID+"/submit", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("submit status = %d", resp.StatusCode)
	}
	submitted := decode[proposal.Proposal](t, resp)
	if submitted.Status != proposal.StatusSubmitted {
		t.Errorf("status after submit = %v", submitted.Status)
	}

	// A review was opened.
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/v1/proposals/"+created.ID+"/reviews", nil)
	reviews := decode[[]review.Review](t, resp)
	if len(reviews) != 1 || reviews[0].Type != review.TypeCommittee {
		t.Fatalf("reviews = %+v", reviews)
	}

	// Resubmitting the same proposal is a workflow conflict.
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/v1/proposals/"+created.ID+"/submit", nil)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("resubmit status = %d, want 409", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestProposal_CreateValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/proposals", proposal.CreateRequest{})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestProposal_NotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/v1/proposals/missing", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestReviewAssignmentAndDecision(t *testing.T) {
	srv, store := newTestServer(t)
	ctx := context.Background()

	// Submit a proposal to open a committee review.
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/proposals", proposal.CreateRequest{
		Title: "Bilingual code switching",
		Risk:  proposal.RiskProfile{ResearchDomain: "linguistics"},
	})
	p := decode[proposal.Proposal](t, resp)
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/v1/proposals/"+p.ID+"/submit", nil)
	resp.Body.Close()

	rev, err := store.GetActiveReview(ctx, p.ID, review.TypeCommittee)
	if err != nil {
		t.Fatal(err)
	}

	m1 := &user.User{Email: "m1@example.org", Name: "member one", Role: user.RoleCommittee, Enabled: true}
	m2 := &user.User{Email: "m2@example.org", Name: "member two", Role: user.RoleCommittee, Enabled: true}
	_ = store.CreateUser(ctx, m1)
	_ = store.CreateUser(ctx, m2)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/v1/reviews/"+rev.ID+"/reviewers", map[string]any{
		"reviewer_ids": []string{m1.ID, m2.ID},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("assign status = %d", resp.StatusCode)
	}
	assigned := decode[review.Review](t, resp)
	if assigned.Stage != review.StageCommitteeAssessment {
		t.Errorf("stage = %v", assigned.Stage)
	}

	// Requests act as the disabled-auth admin; point one decision slot at
	// that identity so the admin's vote lands on an assigned slot.
	for _, d := range store.decisions {
		if d.ReviewID == rev.ID && d.ReviewerID == m2.ID {
			d.ReviewerID = adminID
		}
	}

	// The admin's own decision slot is visible.
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/v1/reviews/"+rev.ID+"/decisions/me", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("my decision status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	// First vote leaves the review open.
	goVote := true
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/v1/reviews/"+rev.ID+"/decisions", map[string]any{"go": goVote})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("decision status = %d", resp.StatusCode)
	}
	afterVote := decode[review.Review](t, resp)
	if afterVote.Closed() {
		t.Error("review closed on first of two votes")
	}

	// Voting twice for the same reviewer just updates the open slot; a
	// vote after closure would 409. Close via the other reviewer directly.
	decisions, _ := store.ListDecisions(ctx, rev.ID)
	if len(decisions) != 2 {
		t.Fatalf("decisions = %d, want 2", len(decisions))
	}
}

func TestAssignReviewers_TooFewIsConflict(t *testing.T) {
	srv, store := newTestServer(t)
	ctx := context.Background()

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/proposals", proposal.CreateRequest{
		Title: "Short study",
		Risk:  proposal.RiskProfile{ResearchDomain: "general"},
	})
	p := decode[proposal.Proposal](t, resp)
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/v1/proposals/"+p.ID+"/submit", nil)
	resp.Body.Close()

	rev, _ := store.GetActiveReview(ctx, p.ID, review.TypeCommittee)
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/v1/reviews/"+rev.ID+"/reviewers", map[string]any{
		"reviewer_ids": []string{adminID},
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want 409", resp.StatusCode)
	}
}

func TestRefDataCRUD(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/refdata", refdata.CreateRequest{
		Kind:        refdata.KindSetting,
		Description: "classroom",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	item := decode[refdata.Item](t, resp)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/v1/refdata?kind=setting", nil)
	items := decode[[]refdata.Item](t, resp)
	if len(items) != 1 {
		t.Fatalf("items = %+v", items)
	}

	desc := "school classroom"
	resp = doJSON(t, http.MethodPut, srv.URL+"/api/v1/refdata/"+item.ID, refdata.UpdateRequest{Description: &desc})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, http.MethodDelete, srv.URL+"/api/v1/refdata/"+item.ID, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestRefData_UnknownKind(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/v1/refdata?kind=horoscope", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestUsersCRUD(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/users", user.CreateRequest{
		Email: "reviewer@example.org",
		Name:  "Reviewer",
		Role:  user.RoleCommittee,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	created := decode[user.User](t, resp)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/v1/users/"+created.ID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/v1/users/me", nil)
	me := decode[user.User](t, resp)
	if me.ID != adminID {
		t.Errorf("me = %s, want admin", me.ID)
	}
}

func TestAPIKeyMinting(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/auth/keys", user.CreateKeyRequest{Name: "ci"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	created := decode[service.CreateKeyResponse](t, resp)
	if created.PlainKey == "" {
		t.Fatal("plaintext key missing from mint response")
	}

	resp = doJSON(t, http.MethodDelete, srv.URL+"/api/v1/auth/keys/"+created.APIKey.ID, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("delete status = %d", resp.StatusCode)
	}
	resp.Body.Close()
}
