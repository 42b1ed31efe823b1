package domain

import (
	"time"

	"github.com/google/uuid"
)

type ActivityType string

const (
	ActivityTypeNote        ActivityType = "note"
	ActivityTypeCall        ActivityType = "call"
	ActivityTypeEmail       ActivityType = "email"
	ActivityTypeSMS         ActivityType = "sms"
	ActivityTypeStageChange ActivityType = "stage_change"
	ActivityTypeUTM         ActivityType = "utm"
)

// ValidManualActivityType reports whether an operator may log this type directly.
// Stage changes and tracking snapshots are only written by the services.
func ValidManualActivityType(t string) bool {
	switch ActivityType(t) {
	case ActivityTypeNote, ActivityTypeCall, ActivityTypeEmail, ActivityTypeSMS:
		return true
	}
	return false
}

// Activity is append-only. Stage is set for stage_change rows, Tracking for utm rows.
type Activity struct {
	ID        uuid.UUID         `json:"id"`
	LeadID    uuid.UUID         `json:"lead_id"`
	TenantID  uuid.UUID         `json:"tenant_id"`
	Type      ActivityType      `json:"type"`
	Content   string            `json:"content,omitempty"`
	Stage     string            `json:"stage,omitempty"`
	Tracking  map[string]string `json:"tracking,omitempty"`
	CreatedBy *uuid.UUID        `json:"created_by,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}
