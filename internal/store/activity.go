package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/hearthline/leadflow/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ActivityStore struct {
	db *pgxpool.Pool
}

func NewActivityStore(db *pgxpool.Pool) *ActivityStore {
	return &ActivityStore{db: db}
}

// Create inserts an activity. A zero CreatedAt defaults to NOW() so backfilled
// leads can carry their historical timestamp.
func (s *ActivityStore) Create(ctx context.Context, a *domain.Activity) error {
	var createdAt any
	if !a.CreatedAt.IsZero() {
		createdAt = a.CreatedAt
	}
	return s.db.QueryRow(ctx,
		`INSERT INTO activities (lead_id, tenant_id, type, content, stage, tracking, created_by, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE($8::timestamptz, NOW()))
		 RETURNING id, created_at`,
		a.LeadID, a.TenantID, a.Type, a.Content, a.Stage, a.Tracking, a.CreatedBy, createdAt,
	).Scan(&a.ID, &a.CreatedAt)
}

func (s *ActivityStore) ListByLead(ctx context.Context, leadID uuid.UUID, tenantID uuid.UUID) ([]domain.Activity, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, lead_id, tenant_id, type, content, stage, tracking, created_by, created_at
		 FROM activities WHERE lead_id = $1 AND tenant_id = $2
		 ORDER BY created_at DESC`,
		leadID, tenantID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var activities []domain.Activity
	for rows.Next() {
		var a domain.Activity
		if err := rows.Scan(&a.ID, &a.LeadID, &a.TenantID, &a.Type, &a.Content, &a.Stage, &a.Tracking, &a.CreatedBy, &a.CreatedAt); err != nil {
			return nil, err
		}
		activities = append(activities, a)
	}
	return activities, rows.Err()
}
