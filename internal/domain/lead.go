package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// terminalStages end SLA tracking. Matched case-insensitively.
var terminalStages = map[string]struct{}{
	"license granted": {},
	"placed":          {},
	"not a fit":       {},
	"approved":        {},
	"denied":          {},
}

// TerminalStages lists the closed stages in display form.
func TerminalStages() []string {
	return []string{"License Granted", "Placed", "Not a Fit", "Approved", "Denied"}
}

func IsTerminalStage(stage string) bool {
	_, ok := terminalStages[strings.ToLower(strings.TrimSpace(stage))]
	return ok
}

type Lead struct {
	ID             uuid.UUID      `json:"id"`
	TenantID       uuid.UUID      `json:"tenant_id"`
	FirstName      string         `json:"first_name"`
	LastName       string         `json:"last_name"`
	Email          *string        `json:"email"`
	Phone          *string        `json:"phone"`
	City           string         `json:"city,omitempty"`
	Interest       string         `json:"interest,omitempty"`
	Campaign       string         `json:"campaign,omitempty"`
	Office         string         `json:"office,omitempty"`
	Notes          string         `json:"notes,omitempty"`
	Consent        bool           `json:"consent"`
	Stage          string         `json:"stage"`
	Source         string         `json:"source"`
	IsSpam         bool           `json:"is_spam"`
	AssignedTo     *string        `json:"assigned_to"`
	ExternalID     string         `json:"external_id,omitempty"`
	RawPayload     map[string]any `json:"raw_payload,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	LastActivityAt time.Time      `json:"last_activity_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

func (l *Lead) FullName() string {
	return strings.TrimSpace(l.FirstName + " " + l.LastName)
}

// LeadPatch carries a partial update. Nil fields are left untouched.
type LeadPatch struct {
	FirstName  *string
	LastName   *string
	Email      *string
	Phone      *string
	City       *string
	Interest   *string
	Campaign   *string
	Office     *string
	Notes      *string
	Consent    *bool
	IsSpam     *bool
	Stage      *string
	StageNote  *string
	AssignedTo *string // empty string clears the assignment
}

type LeadFilter struct {
	Stage      string
	Source     string
	IsSpam     *bool
	AssignedTo string
	Search     string
	Limit      int
	Offset     int
}

// LeadSummary backs the dashboard counters.
type LeadSummary struct {
	Total       int            `json:"total"`
	Spam        int            `json:"spam"`
	LastSevenD  int            `json:"created_last_7_days"`
	ByStage     map[string]int `json:"by_stage"`
	BySource    map[string]int `json:"by_source"`
	Unassigned  int            `json:"unassigned"`
	GeneratedAt time.Time      `json:"generated_at"`
}
