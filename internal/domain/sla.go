package domain

import "github.com/google/uuid"

type OverdueLead struct {
	Lead         Lead    `json:"lead"`
	HoursOverdue float64 `json:"hours_overdue"`
}

type TenantOverdueReport struct {
	TenantID   uuid.UUID     `json:"tenant_id"`
	TenantName string        `json:"tenant_name"`
	SLAHours   int           `json:"sla_hours"`
	Leads      []OverdueLead `json:"leads"`
}
