package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/hearthline/leadflow/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTenantService_Create(t *testing.T) {
	s := NewTenantService(newMockTenantStore())
	ctx := context.Background()

	tenant, err := s.Create(ctx, " Bright Futures ", "Bright-Futures", domain.TenantConfig{
		SpamKeywords:   []string{"Crypto", " crypto ", ""},
		AllowedOrigins: []string{"https://Example.org/"},
	})
	require.NoError(t, err)

	assert.Equal(t, "Bright Futures", tenant.Name)
	assert.Equal(t, "bright-futures", tenant.Slug)
	assert.Equal(t, domain.DefaultStages, tenant.Config.Stages)
	assert.Equal(t, domain.DefaultSLAHours, tenant.Config.SLAHours)
	assert.Equal(t, []string{"crypto"}, tenant.Config.SpamKeywords)
	assert.Equal(t, []string{"https://example.org"}, tenant.Config.AllowedOrigins)

	_, err = s.Create(ctx, "Copycat", "bright-futures", domain.TenantConfig{})
	assert.ErrorIs(t, err, ErrTenantSlugTaken)
}

func TestTenantService_CreateValidation(t *testing.T) {
	s := NewTenantService(newMockTenantStore())
	ctx := context.Background()

	_, err := s.Create(ctx, "", "ok", domain.TenantConfig{})
	assert.ErrorIs(t, err, ErrTenantNameEmpty)

	_, err = s.Create(ctx, "Bad Slug", "bad slug!", domain.TenantConfig{})
	assert.ErrorIs(t, err, ErrInvalidSlug)

	_, err = s.Create(ctx, "Dup Stages", "dup", domain.TenantConfig{Stages: []string{"New", "new"}})
	assert.ErrorIs(t, err, ErrInvalidTenantConfig)

	_, err = s.Create(ctx, "Bad Team", "team", domain.TenantConfig{Team: []domain.TeamMember{{ID: "x"}}})
	assert.ErrorIs(t, err, ErrInvalidTenantConfig)
}

func TestTenantService_UpdateKeepsRedactedToken(t *testing.T) {
	s := NewTenantService(newMockTenantStore())
	ctx := context.Background()

	tenant, err := s.Create(ctx, "Agency", "agency", domain.TenantConfig{FacebookAccessToken: "secret-token"})
	require.NoError(t, err)

	redacted := tenant.Config.Redacted()
	redacted.SLAHours = 12
	updated, err := s.Update(ctx, tenant.ID, nil, redacted)
	require.NoError(t, err)

	assert.Equal(t, 12, updated.Config.SLAHours)
	assert.Equal(t, "secret-token", updated.Config.FacebookAccessToken)

	name := "Renamed"
	updated, err = s.Update(ctx, tenant.ID, &name, domain.TenantConfig{FacebookAccessToken: "new-token"})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)
	assert.Equal(t, "new-token", updated.Config.FacebookAccessToken)
}

func TestTenantService_NotFound(t *testing.T) {
	s := NewTenantService(newMockTenantStore())
	ctx := context.Background()

	_, err := s.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrTenantNotFound)

	_, err = s.Update(ctx, uuid.New(), nil, domain.TenantConfig{})
	assert.ErrorIs(t, err, ErrTenantNotFound)

	assert.ErrorIs(t, s.Delete(ctx, uuid.New()), ErrTenantNotFound)
}
