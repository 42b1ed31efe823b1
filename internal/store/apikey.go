package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/hearthline/leadflow/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type APIKeyStore struct {
	db *pgxpool.Pool
}

func NewAPIKeyStore(db *pgxpool.Pool) *APIKeyStore {
	return &APIKeyStore{db: db}
}

const apiKeyColumns = `id, tenant_id, label, prefix, key_hash, key_encrypted, active, created_by, created_at, revoked_at, last_used_at`

func scanAPIKey(row rowScanner) (*domain.APIKey, error) {
	k := &domain.APIKey{}
	err := row.Scan(&k.ID, &k.TenantID, &k.Label, &k.Prefix, &k.KeyHash, &k.KeyEncrypted, &k.Active,
		&k.CreatedBy, &k.CreatedAt, &k.RevokedAt, &k.LastUsedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return k, nil
}

func (s *APIKeyStore) Create(ctx context.Context, k *domain.APIKey) error {
	err := s.db.QueryRow(ctx,
		`INSERT INTO api_keys (tenant_id, label, prefix, key_hash, key_encrypted, active, created_by)
		 VALUES ($1, $2, $3, $4, $5, TRUE, $6)
		 RETURNING id, active, created_at`,
		k.TenantID, k.Label, k.Prefix, k.KeyHash, k.KeyEncrypted, k.CreatedBy,
	).Scan(&k.ID, &k.Active, &k.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return err
	}
	return nil
}

func (s *APIKeyStore) GetByHash(ctx context.Context, keyHash string) (*domain.APIKey, error) {
	return scanAPIKey(s.db.QueryRow(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE key_hash = $1`, keyHash))
}

func (s *APIKeyStore) GetByID(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (*domain.APIKey, error) {
	return scanAPIKey(s.db.QueryRow(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE id = $1 AND tenant_id = $2`, id, tenantID))
}

func (s *APIKeyStore) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]domain.APIKey, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE tenant_id = $1 ORDER BY created_at DESC`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []domain.APIKey
	for rows.Next() {
		k, err := scanAPIKey(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, *k)
	}
	return keys, rows.Err()
}

func (s *APIKeyStore) Revoke(ctx context.Context, id uuid.UUID, tenantID uuid.UUID, at time.Time) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE api_keys SET active = FALSE, revoked_at = COALESCE(revoked_at, $3)
		 WHERE id = $1 AND tenant_id = $2`,
		id, tenantID, at,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *APIKeyStore) TouchLastUsed(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := s.db.Exec(ctx, `UPDATE api_keys SET last_used_at = $2 WHERE id = $1`, id, at)
	return err
}
