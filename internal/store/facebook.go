package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hearthline/leadflow/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

type FacebookLeadStore struct {
	db *pgxpool.Pool
}

func NewFacebookLeadStore(db *pgxpool.Pool) *FacebookLeadStore {
	return &FacebookLeadStore{db: db}
}

func (s *FacebookLeadStore) CreateRef(ctx context.Context, ref *domain.FacebookLeadRef) error {
	ref.Status = domain.FetchStatusPending
	err := s.db.QueryRow(ctx,
		`INSERT INTO facebook_lead_refs (tenant_id, leadgen_id, page_id, form_id, ad_id, status)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at, updated_at`,
		ref.TenantID, ref.LeadgenID, ref.PageID, ref.FormID, ref.AdID, ref.Status,
	).Scan(&ref.ID, &ref.CreatedAt, &ref.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return err
	}
	return nil
}

const claimableRef = `(status IN ('pending', 'failed') OR (status = 'fetching' AND claimed_at < $2))`

// ListPending returns refs still worth fetching: pending ones, failed ones and
// abandoned claims that have not exhausted their attempts, oldest first.
func (s *FacebookLeadStore) ListPending(ctx context.Context, maxAttempts int, limit int, staleBefore time.Time) ([]domain.FacebookLeadRef, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, tenant_id, leadgen_id, page_id, form_id, ad_id, status, attempts, last_error, lead_id, claimed_at, created_at, updated_at
		 FROM facebook_lead_refs
		 WHERE attempts < $1 AND `+claimableRef+`
		 ORDER BY created_at ASC
		 LIMIT $3`,
		maxAttempts, staleBefore, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var refs []domain.FacebookLeadRef
	for rows.Next() {
		var r domain.FacebookLeadRef
		if err := rows.Scan(&r.ID, &r.TenantID, &r.LeadgenID, &r.PageID, &r.FormID, &r.AdID, &r.Status,
			&r.Attempts, &r.LastError, &r.LeadID, &r.ClaimedAt, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		refs = append(refs, r)
	}
	return refs, rows.Err()
}

// Claim is a conditional update, so two sweeps racing on one ref see exactly
// one winner.
func (s *FacebookLeadStore) Claim(ctx context.Context, id uuid.UUID, staleBefore time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx,
		`UPDATE facebook_lead_refs
		 SET status = 'fetching', claimed_at = NOW(), attempts = attempts + 1, updated_at = NOW()
		 WHERE id = $1 AND `+claimableRef,
		id, staleBefore,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *FacebookLeadStore) MarkFetched(ctx context.Context, id uuid.UUID, leadID uuid.UUID) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE facebook_lead_refs
		 SET status = 'fetched', lead_id = $2, last_error = '', updated_at = NOW()
		 WHERE id = $1`,
		id, leadID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *FacebookLeadStore) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE facebook_lead_refs
		 SET status = 'failed', last_error = $2, updated_at = NOW()
		 WHERE id = $1`,
		id, reason,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
