package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/hearthline/leadflow/internal/domain"
	"github.com/hearthline/leadflow/internal/store"
)

// IdentityResolver finds the existing lead a submission belongs to.
//
// Matching is a logical OR over the populated contact fields within one
// tenant: a phone match with a different email still resolves to the same
// lead. Two people sharing a phone collapse into one record; that over-merge
// is the accepted dedup policy. Email is checked first, so when email and
// phone point at different leads the email match wins.
type IdentityResolver struct {
	leads domain.LeadStore
}

func NewIdentityResolver(leads domain.LeadStore) *IdentityResolver {
	return &IdentityResolver{leads: leads}
}

// Resolve returns the matching lead or nil. Both fields empty means no lookup
// at all; the caller creates unconditionally.
func (r *IdentityResolver) Resolve(ctx context.Context, tenantID uuid.UUID, email, phone string) (*domain.Lead, error) {
	if email != "" {
		l, err := r.leads.FindByEmail(ctx, tenantID, email)
		if err == nil {
			return l, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	}

	if phone != "" {
		l, err := r.leads.FindByPhone(ctx, tenantID, phone)
		if err == nil {
			return l, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	}

	return nil, nil
}
