package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hearthline/leadflow/internal/domain"
	"github.com/hearthline/leadflow/internal/store"
	"go.uber.org/zap"
)

var (
	ErrLeadNotFound         = errors.New("lead not found")
	ErrLeadContactConflict  = errors.New("email or phone already belongs to another lead")
	ErrInvalidStage         = errors.New("stage is not configured for this tenant")
	ErrInvalidAssignee      = errors.New("assignee is not a team member")
	ErrInvalidActivityType  = errors.New("invalid activity type")
	ErrActivityContentEmpty = errors.New("content is required")
)

type LeadUpdateResult struct {
	Lead       *domain.Lead      `json:"lead"`
	Activities []domain.Activity `json:"activities"`
}

type LeadService struct {
	leads      domain.LeadStore
	activities domain.ActivityStore
	events     domain.EventPublisher
	logger     *zap.Logger
	now        func() time.Time
}

func NewLeadService(leads domain.LeadStore, activities domain.ActivityStore, events domain.EventPublisher, logger *zap.Logger) *LeadService {
	return &LeadService{
		leads:      leads,
		activities: activities,
		events:     events,
		logger:     logger,
		now:        time.Now,
	}
}

func (s *LeadService) Get(ctx context.Context, tenantID, id uuid.UUID) (*domain.Lead, error) {
	l, err := s.leads.GetByID(ctx, id, tenantID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrLeadNotFound
		}
		return nil, err
	}
	return l, nil
}

func (s *LeadService) List(ctx context.Context, tenantID uuid.UUID, f domain.LeadFilter) ([]domain.Lead, int, error) {
	f.Search = strings.TrimSpace(f.Search)
	return s.leads.List(ctx, tenantID, f)
}

// Update applies a partial update. Everything is validated before the first
// write, so a rejected patch leaves the lead untouched. A stage change to a
// different value records exactly one stage_change activity; re-sending the
// current stage records nothing.
func (s *LeadService) Update(ctx context.Context, tenant *domain.Tenant, id uuid.UUID, patch domain.LeadPatch, actor *uuid.UUID) (*LeadUpdateResult, error) {
	lead, err := s.Get(ctx, tenant.ID, id)
	if err != nil {
		return nil, err
	}
	now := s.now()

	var newStage string
	stageChanged := false
	if patch.Stage != nil {
		newStage = strings.TrimSpace(*patch.Stage)
		if !tenant.HasStage(newStage) {
			return nil, ErrInvalidStage
		}
		stageChanged = newStage != lead.Stage
	}

	var assignNote string
	if patch.AssignedTo != nil {
		assignee := strings.TrimSpace(*patch.AssignedTo)
		switch {
		case assignee == "":
			if lead.AssignedTo != nil {
				lead.AssignedTo = nil
				assignNote = "Unassigned"
			}
		default:
			member, ok := tenant.TeamMember(assignee)
			if !ok {
				return nil, ErrInvalidAssignee
			}
			if deref(lead.AssignedTo) != assignee {
				lead.AssignedTo = &assignee
				assignNote = "Assigned to " + member.Name
			}
		}
	}

	applyPatch(lead, patch)

	oldStage := lead.Stage
	if stageChanged {
		lead.Stage = newStage
		lead.LastActivityAt = now
	}
	if assignNote != "" {
		lead.LastActivityAt = now
	}

	if err := s.leads.Update(ctx, lead); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return nil, ErrLeadNotFound
		case errors.Is(err, store.ErrConflict):
			return nil, ErrLeadContactConflict
		}
		return nil, fmt.Errorf("update lead: %w", err)
	}

	res := &LeadUpdateResult{Lead: lead}

	if stageChanged {
		note := fmt.Sprintf("Stage changed from %s to %s", oldStage, newStage)
		if patch.StageNote != nil && strings.TrimSpace(*patch.StageNote) != "" {
			note = strings.TrimSpace(*patch.StageNote)
		}
		act := &domain.Activity{
			LeadID:    lead.ID,
			TenantID:  lead.TenantID,
			Type:      domain.ActivityTypeStageChange,
			Stage:     newStage,
			Content:   note,
			CreatedBy: actor,
			CreatedAt: now,
		}
		if err := s.activities.Create(ctx, act); err != nil {
			return nil, fmt.Errorf("record stage change: %w", err)
		}
		res.Activities = append(res.Activities, *act)

		s.publish(ctx, domain.Event{
			Type:     domain.EventLeadStageChanged,
			TenantID: lead.TenantID,
			LeadID:   &lead.ID,
			Payload: map[string]any{
				"from": oldStage,
				"to":   newStage,
			},
			OccurredAt: now,
		})
	}

	if assignNote != "" {
		act := &domain.Activity{
			LeadID:    lead.ID,
			TenantID:  lead.TenantID,
			Type:      domain.ActivityTypeNote,
			Content:   assignNote,
			CreatedBy: actor,
			CreatedAt: now,
		}
		if err := s.activities.Create(ctx, act); err != nil {
			return nil, fmt.Errorf("record assignment: %w", err)
		}
		res.Activities = append(res.Activities, *act)
	}

	return res, nil
}

func applyPatch(lead *domain.Lead, p domain.LeadPatch) {
	setString(&lead.FirstName, p.FirstName)
	setString(&lead.LastName, p.LastName)
	setString(&lead.City, p.City)
	setString(&lead.Interest, p.Interest)
	setString(&lead.Campaign, p.Campaign)
	setString(&lead.Office, p.Office)
	setString(&lead.Notes, p.Notes)

	// An explicit empty value clears the contact field.
	if p.Email != nil {
		lead.Email = NormalizeEmail(*p.Email)
	}
	if p.Phone != nil {
		lead.Phone = NormalizePhone(*p.Phone)
	}
	if p.Consent != nil {
		lead.Consent = *p.Consent
	}
	if p.IsSpam != nil {
		lead.IsSpam = *p.IsSpam
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}

func (s *LeadService) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	err := s.leads.Delete(ctx, id, tenantID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrLeadNotFound
	}
	return err
}

// AddActivity logs an operator interaction. It counts as activity for SLA
// purposes, so the lead's latest-activity timestamp moves forward.
func (s *LeadService) AddActivity(ctx context.Context, tenantID, leadID uuid.UUID, activityType, content string, actor *uuid.UUID) (*domain.Activity, error) {
	if !domain.ValidManualActivityType(activityType) {
		return nil, ErrInvalidActivityType
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrActivityContentEmpty
	}

	lead, err := s.Get(ctx, tenantID, leadID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	act := &domain.Activity{
		LeadID:    lead.ID,
		TenantID:  tenantID,
		Type:      domain.ActivityType(activityType),
		Content:   content,
		CreatedBy: actor,
		CreatedAt: now,
	}
	if err := s.activities.Create(ctx, act); err != nil {
		return nil, fmt.Errorf("create activity: %w", err)
	}

	lead.LastActivityAt = now
	if err := s.leads.Update(ctx, lead); err != nil {
		s.logger.Warn("failed to bump last activity", zap.String("lead_id", lead.ID.String()), zap.Error(err))
	}
	return act, nil
}

func (s *LeadService) ListActivities(ctx context.Context, tenantID, leadID uuid.UUID) ([]domain.Activity, error) {
	if _, err := s.Get(ctx, tenantID, leadID); err != nil {
		return nil, err
	}
	return s.activities.ListByLead(ctx, leadID, tenantID)
}

func (s *LeadService) Summary(ctx context.Context, tenantID uuid.UUID) (*domain.LeadSummary, error) {
	now := s.now()
	sum, err := s.leads.Summary(ctx, tenantID, now.Add(-7*24*time.Hour))
	if err != nil {
		return nil, err
	}
	sum.GeneratedAt = now
	return sum, nil
}

func (s *LeadService) publish(ctx context.Context, e domain.Event) {
	if err := s.events.Publish(ctx, e); err != nil {
		s.logger.Warn("failed to publish lead event", zap.String("type", e.Type), zap.Error(err))
	}
}
