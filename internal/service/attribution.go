package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/hearthline/leadflow/internal/domain"
)

// ResolveSource picks the first-touch source: an explicit source, then
// utm_source, then the channel default.
func ResolveSource(sub *domain.Submission) string {
	if s := strings.TrimSpace(sub.Source); s != "" {
		return strings.ToLower(s)
	}
	if s := strings.TrimSpace(sub.Tracking["utm_source"]); s != "" {
		return strings.ToLower(s)
	}
	return sub.Channel.DefaultSource()
}

// touchTime is when the submission happened: the backfill timestamp when one
// was supplied, otherwise now.
func touchTime(sub *domain.Submission, now time.Time) time.Time {
	if sub.SubmittedAt != nil && !sub.SubmittedAt.IsZero() {
		return *sub.SubmittedAt
	}
	return now
}

// NewLeadFromSubmission builds the record for a first touch.
func NewLeadFromSubmission(tenant *domain.Tenant, sub *domain.Submission, spam bool, now time.Time) *domain.Lead {
	at := touchTime(sub, now)
	lead := &domain.Lead{
		TenantID:       tenant.ID,
		FirstName:      sub.FirstName,
		LastName:       sub.LastName,
		Email:          NormalizeEmail(sub.Email),
		Phone:          NormalizePhone(sub.Phone),
		City:           sub.City,
		Interest:       sub.Interest,
		Campaign:       sub.Campaign,
		Office:         sub.Office,
		Notes:          sub.Notes,
		Stage:          tenant.InitialStage(),
		Source:         ResolveSource(sub),
		IsSpam:         spam,
		ExternalID:     sub.ExternalID,
		RawPayload:     sub.Raw,
		CreatedAt:      at,
		LastActivityAt: at,
	}
	if sub.Consent != nil {
		lead.Consent = *sub.Consent
	}
	return lead
}

// MergeSubmission applies a repeat touch to an existing lead. Source,
// creation time, stage and the original payload are never touched; a spam hit
// raises the flag but a clean submission never clears it.
func MergeSubmission(lead *domain.Lead, sub *domain.Submission, spam bool, now time.Time) {
	overwrite(&lead.FirstName, sub.FirstName)
	overwrite(&lead.LastName, sub.LastName)
	overwrite(&lead.City, sub.City)
	overwrite(&lead.Interest, sub.Interest)
	overwrite(&lead.Campaign, sub.Campaign)
	overwrite(&lead.Office, sub.Office)
	overwrite(&lead.Notes, sub.Notes)

	if e := NormalizeEmail(sub.Email); e != nil {
		lead.Email = e
	}
	if p := NormalizePhone(sub.Phone); p != nil {
		lead.Phone = p
	}
	if sub.Consent != nil {
		lead.Consent = *sub.Consent
	}
	if lead.ExternalID == "" {
		lead.ExternalID = sub.ExternalID
	}
	if spam {
		lead.IsSpam = true
	}
	lead.LastActivityAt = now
}

func overwrite(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// TrackingSnapshot returns the utm activity for this touch, or nil when the
// submission carried no tracking parameters.
func TrackingSnapshot(lead *domain.Lead, sub *domain.Submission, at time.Time) *domain.Activity {
	if !sub.HasTracking() {
		return nil
	}
	tracking := make(map[string]string, len(sub.Tracking))
	for k, v := range sub.Tracking {
		if v != "" {
			tracking[k] = v
		}
	}
	return &domain.Activity{
		LeadID:    lead.ID,
		TenantID:  lead.TenantID,
		Type:      domain.ActivityTypeUTM,
		Content:   fmt.Sprintf("Tracking captured via %s", sub.Channel),
		Tracking:  tracking,
		CreatedAt: at,
	}
}

// creationActivity is the synthetic first entry in a new lead's timeline. It is
// a stage change into the initial stage, stamped with the lead's creation time.
func creationActivity(lead *domain.Lead) *domain.Activity {
	return &domain.Activity{
		LeadID:    lead.ID,
		TenantID:  lead.TenantID,
		Type:      domain.ActivityTypeStageChange,
		Stage:     lead.Stage,
		Content:   fmt.Sprintf("Lead created from %s", lead.Source),
		CreatedAt: lead.CreatedAt,
	}
}
