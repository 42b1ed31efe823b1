package domain

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleSuperAdmin  Role = "super_admin"
	RoleAgencyAdmin Role = "agency_admin"
	RoleAgencyUser  Role = "agency_user"
)

func ValidRole(r string) bool {
	switch Role(r) {
	case RoleSuperAdmin, RoleAgencyAdmin, RoleAgencyUser:
		return true
	}
	return false
}

// rank orders the hierarchy; higher outranks lower.
func (r Role) rank() int {
	switch r {
	case RoleSuperAdmin:
		return 3
	case RoleAgencyAdmin:
		return 2
	case RoleAgencyUser:
		return 1
	}
	return 0
}

// AtLeast reports whether r is the same as or above min in the hierarchy.
func (r Role) AtLeast(min Role) bool {
	return r.rank() >= min.rank() && r.rank() > 0
}

type User struct {
	ID           uuid.UUID  `json:"id"`
	TenantID     *uuid.UUID `json:"tenant_id"`
	Email        string     `json:"email"`
	Name         string     `json:"name"`
	PasswordHash string     `json:"-"`
	Role         Role       `json:"role"`
	Active       bool       `json:"active"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}
