package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/hearthline/leadflow/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserService_Create(t *testing.T) {
	users := newMockUserStore()
	tenants := newMockTenantStore()
	s := NewUserService(users, tenants)
	ctx := context.Background()

	tenant := tenants.add("Agency", domain.TenantConfig{})
	super := &domain.User{ID: uuid.New(), Role: domain.RoleSuperAdmin}
	admin := &domain.User{ID: uuid.New(), Role: domain.RoleAgencyAdmin, TenantID: &tenant.ID}
	member := &domain.User{ID: uuid.New(), Role: domain.RoleAgencyUser, TenantID: &tenant.ID}

	u, err := s.Create(ctx, super, NewUser{Email: "Admin@Agency.org", Password: "password1", Role: domain.RoleAgencyAdmin, TenantID: &tenant.ID})
	require.NoError(t, err)
	assert.Equal(t, "admin@agency.org", u.Email)
	assert.True(t, u.Active)
	assert.NotEqual(t, "password1", u.PasswordHash)

	// Agency admins are pinned to their own tenant.
	other := uuid.New()
	u, err = s.Create(ctx, admin, NewUser{Email: "staff@agency.org", Password: "password1", Role: domain.RoleAgencyUser, TenantID: &other})
	require.NoError(t, err)
	assert.Equal(t, tenant.ID, *u.TenantID)

	_, err = s.Create(ctx, admin, NewUser{Email: "boss@agency.org", Password: "password1", Role: domain.RoleSuperAdmin})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = s.Create(ctx, member, NewUser{Email: "x@agency.org", Password: "password1", Role: domain.RoleAgencyUser})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = s.Create(ctx, super, NewUser{Email: "staff@agency.org", Password: "password1", Role: domain.RoleAgencyUser, TenantID: &tenant.ID})
	assert.ErrorIs(t, err, ErrUserEmailTaken)
}

func TestUserService_CreateValidation(t *testing.T) {
	tenants := newMockTenantStore()
	s := NewUserService(newMockUserStore(), tenants)
	ctx := context.Background()
	super := &domain.User{Role: domain.RoleSuperAdmin}
	tenant := tenants.add("Agency", domain.TenantConfig{})

	_, err := s.Create(ctx, super, NewUser{Email: "a@x.org", Password: "short", Role: domain.RoleAgencyUser, TenantID: &tenant.ID})
	assert.ErrorIs(t, err, ErrWeakPassword)

	_, err = s.Create(ctx, super, NewUser{Email: "a@x.org", Password: "password1", Role: "owner"})
	assert.ErrorIs(t, err, ErrInvalidRole)

	_, err = s.Create(ctx, super, NewUser{Email: "a@x.org", Password: "password1", Role: domain.RoleAgencyUser})
	assert.ErrorIs(t, err, ErrTenantRequired)

	_, err = s.Create(ctx, super, NewUser{Email: "a@x.org", Password: "password1", Role: domain.RoleSuperAdmin, TenantID: &tenant.ID})
	assert.ErrorIs(t, err, ErrSuperAdminTenant)

	missing := uuid.New()
	_, err = s.Create(ctx, super, NewUser{Email: "a@x.org", Password: "password1", Role: domain.RoleAgencyUser, TenantID: &missing})
	assert.ErrorIs(t, err, ErrTenantNotFound)

	_, err = s.Create(ctx, super, NewUser{Email: " ", Password: "password1", Role: domain.RoleSuperAdmin})
	assert.ErrorIs(t, err, ErrUserEmailEmpty)
}

func TestUserService_ListAndSetActive(t *testing.T) {
	users := newMockUserStore()
	tenants := newMockTenantStore()
	s := NewUserService(users, tenants)
	ctx := context.Background()

	a := tenants.add("A", domain.TenantConfig{})
	b := tenants.add("B", domain.TenantConfig{})
	super := &domain.User{Role: domain.RoleSuperAdmin}
	adminA := &domain.User{Role: domain.RoleAgencyAdmin, TenantID: &a.ID}

	userA, err := s.Create(ctx, super, NewUser{Email: "a@x.org", Password: "password1", Role: domain.RoleAgencyUser, TenantID: &a.ID})
	require.NoError(t, err)
	userB, err := s.Create(ctx, super, NewUser{Email: "b@x.org", Password: "password1", Role: domain.RoleAgencyUser, TenantID: &b.ID})
	require.NoError(t, err)

	listed, err := s.List(ctx, adminA, nil)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, userA.ID, listed[0].ID)

	all, err := s.List(ctx, super, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	assert.ErrorIs(t, s.SetActive(ctx, adminA, userB.ID, false), ErrUserNotFound)
	require.NoError(t, s.SetActive(ctx, adminA, userA.ID, false))
	assert.False(t, users.users[userA.ID].Active)
}
