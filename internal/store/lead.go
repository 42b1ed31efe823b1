package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hearthline/leadflow/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type LeadStore struct {
	db *pgxpool.Pool
}

func NewLeadStore(db *pgxpool.Pool) *LeadStore {
	return &LeadStore{db: db}
}

const leadColumns = `id, tenant_id, first_name, last_name, email, phone, city, interest, campaign, office, notes,
	consent, stage, source, is_spam, assigned_to, external_id, raw_payload, created_at, last_activity_at, updated_at`

func scanLead(row rowScanner) (*domain.Lead, error) {
	l := &domain.Lead{}
	err := row.Scan(
		&l.ID, &l.TenantID, &l.FirstName, &l.LastName, &l.Email, &l.Phone, &l.City, &l.Interest, &l.Campaign, &l.Office, &l.Notes,
		&l.Consent, &l.Stage, &l.Source, &l.IsSpam, &l.AssignedTo, &l.ExternalID, &l.RawPayload, &l.CreatedAt, &l.LastActivityAt, &l.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return l, nil
}

func (s *LeadStore) Create(ctx context.Context, l *domain.Lead) error {
	err := s.db.QueryRow(ctx,
		`INSERT INTO leads (tenant_id, first_name, last_name, email, phone, city, interest, campaign, office, notes,
		                    consent, stage, source, is_spam, assigned_to, external_id, raw_payload, created_at, last_activity_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		 RETURNING id, updated_at`,
		l.TenantID, l.FirstName, l.LastName, l.Email, l.Phone, l.City, l.Interest, l.Campaign, l.Office, l.Notes,
		l.Consent, l.Stage, l.Source, l.IsSpam, l.AssignedTo, l.ExternalID, l.RawPayload, l.CreatedAt, l.LastActivityAt,
	).Scan(&l.ID, &l.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return err
	}
	return nil
}

func (s *LeadStore) GetByID(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (*domain.Lead, error) {
	return scanLead(s.db.QueryRow(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE id = $1 AND tenant_id = $2`,
		id, tenantID))
}

func (s *LeadStore) FindByEmail(ctx context.Context, tenantID uuid.UUID, email string) (*domain.Lead, error) {
	return scanLead(s.db.QueryRow(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE tenant_id = $1 AND email = $2`,
		tenantID, email))
}

func (s *LeadStore) FindByPhone(ctx context.Context, tenantID uuid.UUID, phone string) (*domain.Lead, error) {
	return scanLead(s.db.QueryRow(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE tenant_id = $1 AND phone = $2`,
		tenantID, phone))
}

// Update writes every mutable column. source and created_at are never part
// of the statement.
func (s *LeadStore) Update(ctx context.Context, l *domain.Lead) error {
	err := s.db.QueryRow(ctx,
		`UPDATE leads SET first_name = $3, last_name = $4, email = $5, phone = $6, city = $7, interest = $8,
		                  campaign = $9, office = $10, notes = $11, consent = $12, stage = $13, is_spam = $14,
		                  assigned_to = $15, external_id = $16, raw_payload = $17, last_activity_at = $18, updated_at = NOW()
		 WHERE id = $1 AND tenant_id = $2
		 RETURNING updated_at`,
		l.ID, l.TenantID, l.FirstName, l.LastName, l.Email, l.Phone, l.City, l.Interest,
		l.Campaign, l.Office, l.Notes, l.Consent, l.Stage, l.IsSpam,
		l.AssignedTo, l.ExternalID, l.RawPayload, l.LastActivityAt,
	).Scan(&l.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return err
	}
	return nil
}

func (s *LeadStore) Delete(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) error {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM leads WHERE id = $1 AND tenant_id = $2`,
		id, tenantID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *LeadStore) List(ctx context.Context, tenantID uuid.UUID, f domain.LeadFilter) ([]domain.Lead, int, error) {
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	var conditions []string
	var args []any

	conditions = append(conditions, fmt.Sprintf("tenant_id = $%d", len(args)+1))
	args = append(args, tenantID)

	if f.Stage != "" {
		conditions = append(conditions, fmt.Sprintf("stage = $%d", len(args)+1))
		args = append(args, f.Stage)
	}
	if f.Source != "" {
		conditions = append(conditions, fmt.Sprintf("source = $%d", len(args)+1))
		args = append(args, f.Source)
	}
	if f.IsSpam != nil {
		conditions = append(conditions, fmt.Sprintf("is_spam = $%d", len(args)+1))
		args = append(args, *f.IsSpam)
	}
	if f.AssignedTo != "" {
		conditions = append(conditions, fmt.Sprintf("assigned_to = $%d", len(args)+1))
		args = append(args, f.AssignedTo)
	}
	if f.Search != "" {
		p := len(args) + 1
		conditions = append(conditions, fmt.Sprintf(
			"(first_name ILIKE $%d OR last_name ILIKE $%d OR email ILIKE $%d OR phone ILIKE $%d OR city ILIKE $%d)",
			p, p, p, p, p))
		args = append(args, "%"+f.Search+"%")
	}

	limitParam := len(args) + 1
	args = append(args, f.Limit, f.Offset)

	query := fmt.Sprintf(
		`SELECT %s, COUNT(*) OVER() AS total
		 FROM leads
		 WHERE %s
		 ORDER BY last_activity_at DESC
		 LIMIT $%d OFFSET $%d`,
		leadColumns,
		strings.Join(conditions, " AND "),
		limitParam, limitParam+1,
	)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list leads: %w", err)
	}
	defer rows.Close()

	var leads []domain.Lead
	total := 0
	for rows.Next() {
		var l domain.Lead
		err := rows.Scan(
			&l.ID, &l.TenantID, &l.FirstName, &l.LastName, &l.Email, &l.Phone, &l.City, &l.Interest, &l.Campaign, &l.Office, &l.Notes,
			&l.Consent, &l.Stage, &l.Source, &l.IsSpam, &l.AssignedTo, &l.ExternalID, &l.RawPayload, &l.CreatedAt, &l.LastActivityAt, &l.UpdatedAt,
			&total,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("scan lead: %w", err)
		}
		leads = append(leads, l)
	}
	return leads, total, rows.Err()
}

func (s *LeadStore) ListStale(ctx context.Context, tenantID uuid.UUID, before time.Time, excludeStages []string) ([]domain.Lead, error) {
	lowered := make([]string, len(excludeStages))
	for i, st := range excludeStages {
		lowered[i] = strings.ToLower(st)
	}

	rows, err := s.db.Query(ctx,
		`SELECT `+leadColumns+`
		 FROM leads
		 WHERE tenant_id = $1 AND last_activity_at < $2 AND NOT (lower(stage) = ANY($3))
		 ORDER BY last_activity_at ASC`,
		tenantID, before, lowered,
	)
	if err != nil {
		return nil, fmt.Errorf("list stale leads: %w", err)
	}
	defer rows.Close()

	var leads []domain.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, *l)
	}
	return leads, rows.Err()
}

func (s *LeadStore) Summary(ctx context.Context, tenantID uuid.UUID, since time.Time) (*domain.LeadSummary, error) {
	sum := &domain.LeadSummary{
		ByStage:  make(map[string]int),
		BySource: make(map[string]int),
	}

	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*),
		        COUNT(*) FILTER (WHERE is_spam),
		        COUNT(*) FILTER (WHERE created_at >= $2),
		        COUNT(*) FILTER (WHERE assigned_to IS NULL)
		 FROM leads WHERE tenant_id = $1`,
		tenantID, since,
	).Scan(&sum.Total, &sum.Spam, &sum.LastSevenD, &sum.Unassigned)
	if err != nil {
		return nil, fmt.Errorf("summary totals: %w", err)
	}

	if err := s.countBy(ctx, "stage", tenantID, sum.ByStage); err != nil {
		return nil, err
	}
	if err := s.countBy(ctx, "source", tenantID, sum.BySource); err != nil {
		return nil, err
	}
	return sum, nil
}

// countBy groups non-spam leads by a fixed column name; column is never user input.
func (s *LeadStore) countBy(ctx context.Context, column string, tenantID uuid.UUID, into map[string]int) error {
	rows, err := s.db.Query(ctx,
		fmt.Sprintf(`SELECT %s, COUNT(*) FROM leads WHERE tenant_id = $1 AND is_spam = FALSE GROUP BY %s`, column, column),
		tenantID,
	)
	if err != nil {
		return fmt.Errorf("summary by %s: %w", column, err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return err
		}
		into[key] = n
	}
	return rows.Err()
}
