package service

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/hearthline/leadflow/internal/domain"
	"github.com/hearthline/leadflow/internal/metrics"
	"go.uber.org/zap"
)

const defaultSLAScanInterval = 1 * time.Hour

// IsOverdue reports whether a lead has gone without activity past the
// threshold. Terminal stages are never overdue.
func IsOverdue(lead *domain.Lead, threshold time.Time) bool {
	if domain.IsTerminalStage(lead.Stage) {
		return false
	}
	return lead.LastActivityAt.Before(threshold)
}

// HoursOverdue is the time between the lead's last activity and the SLA
// threshold, rounded to one decimal.
func HoursOverdue(lastActivity, threshold time.Time) float64 {
	h := threshold.Sub(lastActivity).Hours()
	if h < 0 {
		return 0
	}
	return math.Round(h*10) / 10
}

// SLAService reports leads nobody has touched within their tenant's response
// window. It never mutates leads.
type SLAService struct {
	tenants domain.TenantStore
	leads   domain.LeadStore
	events  domain.EventPublisher
	logger  *zap.Logger

	interval time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func NewSLAService(tenants domain.TenantStore, leads domain.LeadStore, events domain.EventPublisher, logger *zap.Logger) *SLAService {
	return &SLAService{
		tenants:  tenants,
		leads:    leads,
		events:   events,
		logger:   logger,
		interval: defaultSLAScanInterval,
		stopCh:   make(chan struct{}),
	}
}

func (s *SLAService) SetInterval(d time.Duration) {
	s.interval = d
}

// ScanTenant builds the overdue report for one tenant as of now.
func (s *SLAService) ScanTenant(ctx context.Context, tenant *domain.Tenant, now time.Time) (*domain.TenantOverdueReport, error) {
	slaHours := tenant.SLAHours()
	threshold := now.Add(-time.Duration(slaHours) * time.Hour)

	stale, err := s.leads.ListStale(ctx, tenant.ID, threshold, domain.TerminalStages())
	if err != nil {
		return nil, err
	}

	report := &domain.TenantOverdueReport{
		TenantID:   tenant.ID,
		TenantName: tenant.Name,
		SLAHours:   slaHours,
		Leads:      []domain.OverdueLead{},
	}
	for i := range stale {
		if !IsOverdue(&stale[i], threshold) {
			continue
		}
		report.Leads = append(report.Leads, domain.OverdueLead{
			Lead:         stale[i],
			HoursOverdue: HoursOverdue(stale[i].LastActivityAt, threshold),
		})
	}
	return report, nil
}

// Scan walks every tenant. A tenant that fails is logged and skipped so one
// bad configuration cannot hide everyone else's overdue leads. Only tenants
// with at least one overdue lead appear in the result, and each of those
// emits an sla.overdue event.
func (s *SLAService) Scan(ctx context.Context, now time.Time) ([]domain.TenantOverdueReport, error) {
	tenants, err := s.tenants.List(ctx)
	if err != nil {
		return nil, err
	}

	reports := []domain.TenantOverdueReport{}
	for i := range tenants {
		t := &tenants[i]
		report, err := s.ScanTenant(ctx, t, now)
		if err != nil {
			s.logger.Error("sla scan failed for tenant", zap.String("tenant_id", t.ID.String()), zap.Error(err))
			continue
		}
		metrics.OverdueLeads.WithLabelValues(t.Slug).Set(float64(len(report.Leads)))
		if len(report.Leads) == 0 {
			continue
		}
		reports = append(reports, *report)
		s.notify(ctx, report, now)
	}
	return reports, nil
}

func (s *SLAService) notify(ctx context.Context, report *domain.TenantOverdueReport, now time.Time) {
	ids := make([]string, len(report.Leads))
	for i, ol := range report.Leads {
		ids[i] = ol.Lead.ID.String()
	}
	err := s.events.Publish(ctx, domain.Event{
		Type:     domain.EventSLAOverdue,
		TenantID: report.TenantID,
		Payload: map[string]any{
			"sla_hours": report.SLAHours,
			"count":     len(report.Leads),
			"lead_ids":  ids,
		},
		OccurredAt: now,
	})
	if err != nil {
		s.logger.Warn("failed to publish overdue event", zap.String("tenant_id", report.TenantID.String()), zap.Error(err))
	}
}

// Start runs the scan on a periodic schedule in a background goroutine.
func (s *SLAService) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.logger.Info("sla scanner started", zap.Duration("interval", s.interval))

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				s.run(ctx)
				cancel()
			case <-s.stopCh:
				s.logger.Info("sla scanner stopped")
				return
			}
		}
	}()
}

func (s *SLAService) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

func (s *SLAService) run(ctx context.Context) {
	reports, err := s.Scan(ctx, time.Now())
	if err != nil {
		s.logger.Error("sla scan failed", zap.Error(err))
		return
	}
	total := 0
	for _, r := range reports {
		total += len(r.Leads)
	}
	if total > 0 {
		s.logger.Info("sla scan found overdue leads", zap.Int("tenants", len(reports)), zap.Int("leads", total))
	}
}
