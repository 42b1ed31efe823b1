package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/hearthline/leadflow/internal/domain"
	"github.com/hearthline/leadflow/internal/store"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrUserEmailTaken   = errors.New("email already registered")
	ErrUserEmailEmpty   = errors.New("email is required")
	ErrWeakPassword     = errors.New("password must be at least 8 characters")
	ErrInvalidRole      = errors.New("invalid role")
	ErrForbidden        = errors.New("insufficient role")
	ErrTenantRequired   = errors.New("tenant_id is required for agency roles")
	ErrSuperAdminTenant = errors.New("super_admin cannot belong to a tenant")
)

type NewUser struct {
	Email    string
	Name     string
	Password string
	Role     domain.Role
	TenantID *uuid.UUID
}

// UserService manages operator accounts. Agency admins manage their own
// tenant; only a super admin can create another super admin or reach across
// tenants.
type UserService struct {
	users   domain.UserStore
	tenants domain.TenantStore
}

func NewUserService(users domain.UserStore, tenants domain.TenantStore) *UserService {
	return &UserService{users: users, tenants: tenants}
}

func (s *UserService) Create(ctx context.Context, actor *domain.User, in NewUser) (*domain.User, error) {
	if !actor.Role.AtLeast(domain.RoleAgencyAdmin) {
		return nil, ErrForbidden
	}
	if !domain.ValidRole(string(in.Role)) {
		return nil, ErrInvalidRole
	}
	email := deref(NormalizeEmail(in.Email))
	if email == "" {
		return nil, ErrUserEmailEmpty
	}
	if len(in.Password) < minPasswordLength {
		return nil, ErrWeakPassword
	}

	if actor.Role != domain.RoleSuperAdmin {
		if in.Role == domain.RoleSuperAdmin {
			return nil, ErrForbidden
		}
		in.TenantID = actor.TenantID
	}

	if in.Role == domain.RoleSuperAdmin {
		if in.TenantID != nil {
			return nil, ErrSuperAdminTenant
		}
	} else {
		if in.TenantID == nil {
			return nil, ErrTenantRequired
		}
		if _, err := s.tenants.GetByID(ctx, *in.TenantID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, ErrTenantNotFound
			}
			return nil, err
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	u := &domain.User{
		TenantID:     in.TenantID,
		Email:        email,
		Name:         strings.TrimSpace(in.Name),
		PasswordHash: string(hash),
		Role:         in.Role,
		Active:       true,
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, ErrUserEmailTaken
		}
		return nil, err
	}
	return u, nil
}

// List returns the operators visible to the caller within scope. A nil scope
// is only honored for super admins.
func (s *UserService) List(ctx context.Context, actor *domain.User, scope *uuid.UUID) ([]domain.User, error) {
	if actor.Role != domain.RoleSuperAdmin {
		scope = actor.TenantID
	}
	return s.users.ListByTenant(ctx, scope)
}

func (s *UserService) SetActive(ctx context.Context, actor *domain.User, id uuid.UUID, active bool) error {
	if !actor.Role.AtLeast(domain.RoleAgencyAdmin) {
		return ErrForbidden
	}
	target, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	if actor.Role != domain.RoleSuperAdmin {
		if !sameTenant(actor.TenantID, target.TenantID) {
			return ErrUserNotFound
		}
		if target.Role == domain.RoleSuperAdmin {
			return ErrForbidden
		}
	}

	err = s.users.SetActive(ctx, id, active)
	if errors.Is(err, store.ErrNotFound) {
		return ErrUserNotFound
	}
	return err
}

func sameTenant(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
