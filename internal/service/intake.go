package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hearthline/leadflow/internal/domain"
	"github.com/hearthline/leadflow/internal/metrics"
	"github.com/hearthline/leadflow/internal/store"
	"go.uber.org/zap"
)

var (
	ErrContactRequired = errors.New("email or phone is required")
	ErrIntakeConflict  = errors.New("lead insert conflicted but no matching lead was found")
)

// IngestOptions tunes a single ingestion call.
type IngestOptions struct {
	// Actor is the operator behind a manual entry, recorded on the activities.
	Actor *uuid.UUID
	// AllowAnonymous lets a manual entry through with neither email nor phone.
	AllowAnonymous bool
}

type IntakeResult struct {
	Lead       *domain.Lead      `json:"lead"`
	Created    bool              `json:"created"`
	Spam       bool              `json:"spam"`
	Activities []domain.Activity `json:"activities"`
}

// IntakeService turns any submission (web form, ad-platform webhook, manual
// entry, backfill) into a create-or-update against the tenant's leads.
type IntakeService struct {
	leads      domain.LeadStore
	activities domain.ActivityStore
	resolver   *IdentityResolver
	events     domain.EventPublisher
	logger     *zap.Logger
	now        func() time.Time
}

func NewIntakeService(leads domain.LeadStore, activities domain.ActivityStore, events domain.EventPublisher, logger *zap.Logger) *IntakeService {
	return &IntakeService{
		leads:      leads,
		activities: activities,
		resolver:   NewIdentityResolver(leads),
		events:     events,
		logger:     logger,
		now:        time.Now,
	}
}

// Ingest resolves the submission to an existing lead or creates a new one, then
// records the timeline entries for this touch-point. The submission is
// normalized in place.
func (s *IntakeService) Ingest(ctx context.Context, tenant *domain.Tenant, sub *domain.Submission, opts IngestOptions) (*IntakeResult, error) {
	if sub.Channel == "" {
		sub.Channel = domain.ChannelWebsite
	}
	normalizeSubmission(sub)

	if sub.Channel == domain.ChannelManual && !sub.HasContact() && !opts.AllowAnonymous {
		return nil, ErrContactRequired
	}

	res, err := s.ingest(ctx, tenant, sub, opts)
	if err != nil {
		metrics.LeadsIngested.WithLabelValues(string(sub.Channel), "failed").Inc()
		return nil, err
	}

	outcome := "updated"
	if res.Created {
		outcome = "created"
	}
	metrics.LeadsIngested.WithLabelValues(string(sub.Channel), outcome).Inc()
	if res.Spam {
		metrics.SpamFlagged.WithLabelValues(string(sub.Channel)).Inc()
	}

	s.publish(ctx, res)
	return res, nil
}

func (s *IntakeService) ingest(ctx context.Context, tenant *domain.Tenant, sub *domain.Submission, opts IngestOptions) (*IntakeResult, error) {
	spam, keyword := ClassifySpam(tenant.Config.SpamKeywords, sub)
	if spam {
		s.logger.Info("submission flagged as spam",
			zap.String("tenant_id", tenant.ID.String()),
			zap.String("channel", string(sub.Channel)),
			zap.String("keyword", keyword))
	}

	now := s.now()
	at := touchTime(sub, now)

	lead, err := s.resolver.Resolve(ctx, tenant.ID, sub.Email, sub.Phone)
	if err != nil {
		return nil, fmt.Errorf("resolve identity: %w", err)
	}

	res := &IntakeResult{Spam: spam}

	if lead == nil {
		lead = NewLeadFromSubmission(tenant, sub, spam, now)
		err = s.leads.Create(ctx, lead)
		switch {
		case err == nil:
			res.Created = true
		case errors.Is(err, store.ErrConflict):
			// A concurrent submission won the insert; apply ours as an update.
			s.logger.Info("lead insert raced, retrying as update",
				zap.String("tenant_id", tenant.ID.String()))
			lead, err = s.resolver.Resolve(ctx, tenant.ID, sub.Email, sub.Phone)
			if err != nil {
				return nil, fmt.Errorf("resolve identity after conflict: %w", err)
			}
			if lead == nil {
				return nil, ErrIntakeConflict
			}
		default:
			return nil, fmt.Errorf("create lead: %w", err)
		}
	}

	if res.Created {
		act := creationActivity(lead)
		act.CreatedBy = opts.Actor
		if err := s.activities.Create(ctx, act); err != nil {
			return nil, fmt.Errorf("record creation activity: %w", err)
		}
		res.Activities = append(res.Activities, *act)
	} else {
		if err := s.merge(ctx, lead, sub, spam, now); err != nil {
			return nil, err
		}
	}

	if snap := TrackingSnapshot(lead, sub, at); snap != nil {
		snap.CreatedBy = opts.Actor
		if err := s.activities.Create(ctx, snap); err != nil {
			return nil, fmt.Errorf("record tracking snapshot: %w", err)
		}
		res.Activities = append(res.Activities, *snap)
	}

	res.Lead = lead
	return res, nil
}

// merge applies a repeat touch. When the new email or phone already belongs to
// a different lead the update is retried keeping this lead's own contacts.
func (s *IntakeService) merge(ctx context.Context, lead *domain.Lead, sub *domain.Submission, spam bool, now time.Time) error {
	email, phone := lead.Email, lead.Phone
	MergeSubmission(lead, sub, spam, now)

	err := s.leads.Update(ctx, lead)
	if errors.Is(err, store.ErrConflict) {
		s.logger.Warn("contact belongs to another lead, keeping existing contact fields",
			zap.String("lead_id", lead.ID.String()))
		lead.Email, lead.Phone = email, phone
		err = s.leads.Update(ctx, lead)
	}
	if err != nil {
		return fmt.Errorf("update lead: %w", err)
	}
	return nil
}

func (s *IntakeService) publish(ctx context.Context, res *IntakeResult) {
	eventType := domain.EventLeadUpdated
	if res.Created {
		eventType = domain.EventLeadCreated
	}
	leadID := res.Lead.ID
	err := s.events.Publish(ctx, domain.Event{
		Type:     eventType,
		TenantID: res.Lead.TenantID,
		LeadID:   &leadID,
		Payload: map[string]any{
			"source":  res.Lead.Source,
			"stage":   res.Lead.Stage,
			"is_spam": res.Lead.IsSpam,
		},
		OccurredAt: s.now(),
	})
	if err != nil {
		s.logger.Warn("failed to publish lead event", zap.String("type", eventType), zap.Error(err))
	}
}
