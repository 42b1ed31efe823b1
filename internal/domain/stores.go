package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type TenantStore interface {
	Create(ctx context.Context, t *Tenant) error
	GetByID(ctx context.Context, id uuid.UUID) (*Tenant, error)
	GetBySlug(ctx context.Context, slug string) (*Tenant, error)
	GetByFacebookPageID(ctx context.Context, pageID string) (*Tenant, error)
	List(ctx context.Context) ([]Tenant, error)
	Update(ctx context.Context, t *Tenant) error
	Delete(ctx context.Context, id uuid.UUID) error
	AnyAllowsOrigin(ctx context.Context, origin string) (bool, error)
}

// LeadStore persists leads. Create returns store.ErrConflict when the
// (tenant, email) or (tenant, phone) partial unique index rejects the row.
type LeadStore interface {
	Create(ctx context.Context, l *Lead) error
	GetByID(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (*Lead, error)
	FindByEmail(ctx context.Context, tenantID uuid.UUID, email string) (*Lead, error)
	FindByPhone(ctx context.Context, tenantID uuid.UUID, phone string) (*Lead, error)
	Update(ctx context.Context, l *Lead) error
	Delete(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) error
	List(ctx context.Context, tenantID uuid.UUID, f LeadFilter) ([]Lead, int, error)
	// ListStale returns leads whose last activity is before the cutoff and
	// whose stage is not in excludeStages (compared case-insensitively).
	ListStale(ctx context.Context, tenantID uuid.UUID, before time.Time, excludeStages []string) ([]Lead, error)
	Summary(ctx context.Context, tenantID uuid.UUID, since time.Time) (*LeadSummary, error)
}

type ActivityStore interface {
	Create(ctx context.Context, a *Activity) error
	ListByLead(ctx context.Context, leadID uuid.UUID, tenantID uuid.UUID) ([]Activity, error)
}

type APIKeyStore interface {
	Create(ctx context.Context, k *APIKey) error
	GetByHash(ctx context.Context, keyHash string) (*APIKey, error)
	GetByID(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (*APIKey, error)
	ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]APIKey, error)
	Revoke(ctx context.Context, id uuid.UUID, tenantID uuid.UUID, at time.Time) error
	TouchLastUsed(ctx context.Context, id uuid.UUID, at time.Time) error
}

type UserStore interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	// ListByTenant lists a tenant's operators; a nil tenant lists everyone.
	ListByTenant(ctx context.Context, tenantID *uuid.UUID) ([]User, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
}

// FacebookLeadStore tracks leadgen references awaiting the Graph API fetch.
// CreateRef returns store.ErrConflict for an already-known leadgen id.
// A fetching ref whose claim is older than staleBefore counts as abandoned
// and may be claimed again.
type FacebookLeadStore interface {
	CreateRef(ctx context.Context, ref *FacebookLeadRef) error
	ListPending(ctx context.Context, maxAttempts int, limit int, staleBefore time.Time) ([]FacebookLeadRef, error)
	// Claim moves a ref to fetching and counts the attempt. It reports false
	// when another sweep holds the ref or it is already fetched.
	Claim(ctx context.Context, id uuid.UUID, staleBefore time.Time) (bool, error)
	MarkFetched(ctx context.Context, id uuid.UUID, leadID uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
}

// LeadFormFetcher resolves an ad-platform lead reference into a submission.
type LeadFormFetcher interface {
	FetchLead(ctx context.Context, accessToken string, leadgenID string) (*Submission, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, e Event) error
}

// DeliveryGuard remembers webhook deliveries so platform retries are dropped.
// Forget releases a claimed key when the delivery could not be processed, so
// the platform's retry is accepted.
type DeliveryGuard interface {
	FirstDelivery(ctx context.Context, key string) (bool, error)
	Forget(ctx context.Context, key string) error
}
