package domain

import (
	"time"

	"github.com/google/uuid"
)

// APIKey is a tenant-scoped ingestion credential. Only the peppered hash is
// used for lookups; the encrypted copy exists solely for the reveal operation.
type APIKey struct {
	ID           uuid.UUID  `json:"id"`
	TenantID     uuid.UUID  `json:"tenant_id"`
	Label        string     `json:"label"`
	Prefix       string     `json:"prefix"`
	KeyHash      string     `json:"-"`
	KeyEncrypted []byte     `json:"-"`
	Active       bool       `json:"active"`
	CreatedBy    *uuid.UUID `json:"created_by,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	RevokedAt    *time.Time `json:"revoked_at,omitempty"`
	LastUsedAt   *time.Time `json:"last_used_at,omitempty"`
}

func (k *APIKey) Revealable() bool {
	return len(k.KeyEncrypted) > 0
}
