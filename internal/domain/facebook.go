package domain

import (
	"time"

	"github.com/google/uuid"
)

type FetchStatus string

const (
	FetchStatusPending  FetchStatus = "pending"
	FetchStatusFetching FetchStatus = "fetching"
	FetchStatusFetched  FetchStatus = "fetched"
	FetchStatusFailed   FetchStatus = "failed"
)

// FacebookLeadRef is the opaque leadgen reference delivered by the webhook,
// waiting to be resolved through the Graph API.
type FacebookLeadRef struct {
	ID        uuid.UUID   `json:"id"`
	TenantID  uuid.UUID   `json:"tenant_id"`
	LeadgenID string      `json:"leadgen_id"`
	PageID    string      `json:"page_id"`
	FormID    string      `json:"form_id,omitempty"`
	AdID      string      `json:"ad_id,omitempty"`
	Status    FetchStatus `json:"status"`
	Attempts  int         `json:"attempts"`
	LastError string      `json:"last_error,omitempty"`
	LeadID    *uuid.UUID  `json:"lead_id,omitempty"`
	ClaimedAt *time.Time  `json:"claimed_at,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}
