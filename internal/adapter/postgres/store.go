package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ethicsdesk/ethicsdesk/internal/domain"
	"github.com/ethicsdesk/ethicsdesk/internal/domain/proposal"
)

// Store implements database.Store using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const proposalColumns = `id, reference, title, status, is_pre_assessment, is_revision,
	in_archive, embargo, parent_id, applicant_id, supervisor_id,
	physical_risk, psychological_risk, legal_risk, deception, legally_incapable,
	medical_research, metc_applicable, research_domain, version,
	date_created, date_modified, date_submitted_supervisor, date_submitted, date_reviewed`

func scanProposal(row scannable) (proposal.Proposal, error) {
	var p proposal.Proposal
	var parentID *string
	var status int
	err := row.Scan(
		&p.ID, &p.Reference, &p.Title, &status, &p.IsPreAssessment, &p.IsRevision,
		&p.InArchive, &p.Embargo, &parentID, &p.ApplicantID, &p.SupervisorID,
		&p.Risk.PhysicalRisk, &p.Risk.PsychologicalRisk, &p.Risk.LegalRisk,
		&p.Risk.Deception, &p.Risk.LegallyIncapable, &p.Risk.MedicalResearch,
		&p.Risk.METCApplicable, &p.Risk.ResearchDomain, &p.Version,
		&p.DateCreated, &p.DateModified, &p.DateSubmittedSupervisor, &p.DateSubmitted, &p.DateReviewed,
	)
	if err != nil {
		return p, err
	}
	p.Status = proposal.Status(status)
	p.ParentID = emptyIfNil(parentID)
	return p, nil
}

// --- Proposals ---

func (s *Store) ListProposals(ctx context.Context, applicantID string, includeArchived bool) ([]proposal.Proposal, error) {
	q := `SELECT ` + proposalColumns + ` FROM proposals WHERE ($1 = '' OR applicant_id = $1::uuid)`
	if !includeArchived {
		q += ` AND NOT in_archive`
	}
	q += ` ORDER BY date_created DESC`

	rows, err := s.pool.Query(ctx, q, applicantID)
	if err != nil {
		return nil, fmt.Errorf("list proposals: %w", err)
	}
	defer rows.Close()

	var proposals []proposal.Proposal
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, err
		}
		proposals = append(proposals, p)
	}
	return proposals, rows.Err()
}

func (s *Store) GetProposal(ctx context.Context, id string) (*proposal.Proposal, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+proposalColumns+` FROM proposals WHERE id = $1`, id)

	p, err := scanProposal(row)
	if err != nil {
		return nil, notFoundWrap(err, "get proposal %s", id)
	}
	return &p, nil
}

func (s *Store) CreateProposal(ctx context.Context, p *proposal.Proposal) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO proposals (reference, title, status, is_pre_assessment, is_revision,
			embargo, parent_id, applicant_id, supervisor_id,
			physical_risk, psychological_risk, legal_risk, deception, legally_incapable,
			medical_research, metc_applicable, research_domain)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
		 RETURNING id, version, date_created, date_modified`,
		p.Reference, p.Title, int(p.Status), p.IsPreAssessment, p.IsRevision,
		p.Embargo, nullIfEmpty(p.ParentID), p.ApplicantID, p.SupervisorID,
		p.Risk.PhysicalRisk, p.Risk.PsychologicalRisk, p.Risk.LegalRisk,
		p.Risk.Deception, p.Risk.LegallyIncapable, p.Risk.MedicalResearch,
		p.Risk.METCApplicable, p.Risk.ResearchDomain,
	).Scan(&p.ID, &p.Version, &p.DateCreated, &p.DateModified)
	if err != nil {
		return fmt.Errorf("create proposal: %w", err)
	}
	return nil
}

func (s *Store) UpdateProposal(ctx context.Context, p *proposal.Proposal) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE proposals SET title = $2, supervisor_id = $3, embargo = $4,
			physical_risk = $5, psychological_risk = $6, legal_risk = $7,
			deception = $8, legally_incapable = $9, medical_research = $10,
			metc_applicable = $11, research_domain = $12, in_archive = $13,
			status = $14, version = version + 1, date_modified = now(),
			date_submitted_supervisor = $15, date_submitted = $16, date_reviewed = $17
		 WHERE id = $1 AND version = $18`,
		p.ID, p.Title, p.SupervisorID, p.Embargo,
		p.Risk.PhysicalRisk, p.Risk.PsychologicalRisk, p.Risk.LegalRisk,
		p.Risk.Deception, p.Risk.LegallyIncapable, p.Risk.MedicalResearch,
		p.Risk.METCApplicable, p.Risk.ResearchDomain, p.InArchive,
		int(p.Status), p.DateSubmittedSupervisor, p.DateSubmitted, p.DateReviewed,
		p.Version)
	if err != nil {
		return fmt.Errorf("update proposal %s: %w", p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update proposal %s: %w", p.ID, domain.ErrConflict)
	}
	p.Version++
	return nil
}

// UpdateProposalStatus moves a proposal's status with a compare-and-set on
// the current value, so concurrent workflow transitions cannot double-apply.
func (s *Store) UpdateProposalStatus(ctx context.Context, id string, from, to proposal.Status) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE proposals SET status = $3, date_modified = now()
		 WHERE id = $1 AND status = $2`,
		id, int(from), int(to))
	if err != nil {
		return fmt.Errorf("update proposal status %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update proposal status %s (%s -> %s): %w", id, from, to, domain.ErrConflict)
	}
	return nil
}

// NextReferenceSeq increments and returns the per-year reference sequence.
func (s *Store) NextReferenceSeq(ctx context.Context, year int) (int, error) {
	var seq int
	err := s.pool.QueryRow(ctx,
		`INSERT INTO reference_sequences (year, last_seq) VALUES ($1, 1)
		 ON CONFLICT (year) DO UPDATE SET last_seq = reference_sequences.last_seq + 1
		 RETURNING last_seq`, year).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("next reference seq for %d: %w", year, err)
	}
	return seq, nil
}

// --- Studies ---

func (s *Store) ListStudies(ctx context.Context, proposalID string) ([]proposal.Study, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, proposal_id, ord, name, age_groups, setting_ids, recruitment_ids, compensation_id, trait_ids
		 FROM studies WHERE proposal_id = $1 ORDER BY ord`, proposalID)
	if err != nil {
		return nil, fmt.Errorf("list studies: %w", err)
	}
	defer rows.Close()

	var studies []proposal.Study
	for rows.Next() {
		var st proposal.Study
		if err := rows.Scan(&st.ID, &st.ProposalID, &st.Order, &st.Name,
			&st.AgeGroups, &st.SettingIDs, &st.RecruitmentIDs, &st.CompensationID, &st.TraitIDs); err != nil {
			return nil, err
		}
		studies = append(studies, st)
	}
	return studies, rows.Err()
}

// ReplaceStudies swaps a proposal's study set atomically. The form layer
// always submits the full set, so replace-all is the natural write shape.
func (s *Store) ReplaceStudies(ctx context.Context, proposalID string, studies []proposal.Study) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	if _, err := tx.Exec(ctx, `DELETE FROM studies WHERE proposal_id = $1`, proposalID); err != nil {
		return fmt.Errorf("clear studies: %w", err)
	}

	for i := range studies {
		st := &studies[i]
		err = tx.QueryRow(ctx,
			`INSERT INTO studies (proposal_id, ord, name, age_groups, setting_ids, recruitment_ids, compensation_id, trait_ids)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
			 RETURNING id`,
			proposalID, st.Order, st.Name, pgTextArray(st.AgeGroups), pgTextArray(st.SettingIDs),
			pgTextArray(st.RecruitmentIDs), st.CompensationID, pgTextArray(st.TraitIDs),
		).Scan(&st.ID)
		if err != nil {
			return fmt.Errorf("insert study: %w", err)
		}
		st.ProposalID = proposalID
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit studies: %w", err)
	}
	return nil
}
