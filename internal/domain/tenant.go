package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const DefaultSLAHours = 24

// DefaultStages is the pipeline a tenant starts with when none is configured.
var DefaultStages = []string{
	"New Lead",
	"Contacted",
	"Info Session",
	"Application Started",
	"Home Study",
	"License Granted",
	"Placed",
	"Not a Fit",
}

type Tenant struct {
	ID        uuid.UUID    `json:"id"`
	Name      string       `json:"name"`
	Slug      string       `json:"slug"`
	Config    TenantConfig `json:"config"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

type TeamMember struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

// TenantConfig is stored as a single JSONB document on the tenant row.
type TenantConfig struct {
	Stages          []string     `json:"stages"`
	Team            []TeamMember `json:"team"`
	SpamKeywords    []string     `json:"spam_keywords"`
	SLAHours        int          `json:"sla_hours"`
	AllowedOrigins  []string     `json:"allowed_origins"`
	FacebookPageIDs []string     `json:"facebook_page_ids,omitempty"`

	// Page access token for the Graph API follow-up fetch. Redacted on read.
	FacebookAccessToken string `json:"facebook_access_token,omitempty"`
}

// WithDefaults fills in the pipeline and SLA when they were left empty.
func (c TenantConfig) WithDefaults() TenantConfig {
	if len(c.Stages) == 0 {
		c.Stages = append([]string(nil), DefaultStages...)
	}
	if c.SLAHours <= 0 {
		c.SLAHours = DefaultSLAHours
	}
	return c
}

// Redacted returns a copy safe to hand to dashboard clients.
func (c TenantConfig) Redacted() TenantConfig {
	if c.FacebookAccessToken != "" {
		c.FacebookAccessToken = "********"
	}
	return c
}

func (t *Tenant) InitialStage() string {
	if len(t.Config.Stages) == 0 {
		return DefaultStages[0]
	}
	return t.Config.Stages[0]
}

func (t *Tenant) HasStage(stage string) bool {
	stages := t.Config.Stages
	if len(stages) == 0 {
		stages = DefaultStages
	}
	for _, s := range stages {
		if s == stage {
			return true
		}
	}
	return false
}

func (t *Tenant) SLAHours() int {
	if t.Config.SLAHours <= 0 {
		return DefaultSLAHours
	}
	return t.Config.SLAHours
}

func (t *Tenant) TeamMember(id string) (TeamMember, bool) {
	for _, m := range t.Config.Team {
		if m.ID == id {
			return m, true
		}
	}
	return TeamMember{}, false
}

// OriginAllowed reports whether a browser origin may post to this tenant's intake.
// An empty list means any origin is accepted.
func (t *Tenant) OriginAllowed(origin string) bool {
	if origin == "" || len(t.Config.AllowedOrigins) == 0 {
		return true
	}
	origin = strings.TrimRight(strings.ToLower(origin), "/")
	for _, o := range t.Config.AllowedOrigins {
		o = strings.TrimRight(strings.ToLower(o), "/")
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}
