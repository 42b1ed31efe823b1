package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventLeadCreated      = "lead.created"
	EventLeadUpdated      = "lead.updated"
	EventLeadStageChanged = "lead.stage_changed"
	EventSLAOverdue       = "sla.overdue"
)

// Event is handed to downstream notifiers. Delivery is best effort.
type Event struct {
	Type       string         `json:"type"`
	TenantID   uuid.UUID      `json:"tenant_id"`
	LeadID     *uuid.UUID     `json:"lead_id,omitempty"`
	Payload    map[string]any `json:"payload,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}
