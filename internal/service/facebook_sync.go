package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hearthline/leadflow/internal/domain"
	"github.com/hearthline/leadflow/internal/metrics"
	"github.com/hearthline/leadflow/internal/store"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultFacebookSyncInterval = 5 * time.Minute
	defaultFetchConcurrency     = 4
	defaultFetchTimeout         = 15 * time.Second
	defaultMaxFetchAttempts     = 5
	defaultSweepBatchSize       = 100

	// A claim older than this is treated as a sweep that died mid-fetch.
	defaultClaimTimeout = time.Hour
)

var (
	ErrLeadgenIDMissing   = errors.New("leadgen_id is required")
	ErrPageNotMapped      = errors.New("facebook page is not mapped to a tenant")
	ErrMissingAccessToken = errors.New("tenant has no facebook access token configured")
)

type SweepResult struct {
	Attempted int `json:"attempted"`
	Fetched   int `json:"fetched"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// FacebookSyncService resolves leadgen references delivered by the webhook into
// full leads. The webhook only carries an opaque id; the contact details have
// to be fetched from the Graph API afterwards.
type FacebookSyncService struct {
	refs    domain.FacebookLeadStore
	tenants domain.TenantStore
	fetcher domain.LeadFormFetcher
	intake  *IntakeService
	logger  *zap.Logger

	concurrency  int
	fetchTimeout time.Duration
	maxAttempts  int
	batchSize    int
	claimTimeout time.Duration
	now          func() time.Time

	interval time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func NewFacebookSyncService(refs domain.FacebookLeadStore, tenants domain.TenantStore, fetcher domain.LeadFormFetcher, intake *IntakeService, logger *zap.Logger) *FacebookSyncService {
	return &FacebookSyncService{
		refs:         refs,
		tenants:      tenants,
		fetcher:      fetcher,
		intake:       intake,
		logger:       logger,
		concurrency:  defaultFetchConcurrency,
		fetchTimeout: defaultFetchTimeout,
		maxAttempts:  defaultMaxFetchAttempts,
		batchSize:    defaultSweepBatchSize,
		claimTimeout: defaultClaimTimeout,
		now:          time.Now,
		interval:     defaultFacebookSyncInterval,
		stopCh:       make(chan struct{}),
	}
}

func (s *FacebookSyncService) SetInterval(d time.Duration) {
	s.interval = d
}

// Record stores a leadgen notification for the next sweep. It returns false
// when the leadgen id was already known.
func (s *FacebookSyncService) Record(ctx context.Context, pageID string, ref *domain.FacebookLeadRef) (bool, error) {
	if ref.LeadgenID == "" {
		return false, ErrLeadgenIDMissing
	}
	tenant, err := s.tenants.GetByFacebookPageID(ctx, pageID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, ErrPageNotMapped
		}
		return false, err
	}

	ref.TenantID = tenant.ID
	ref.PageID = pageID
	if err := s.refs.CreateRef(ctx, ref); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Sweep fetches every outstanding reference with bounded concurrency. One
// reference failing never stops the others; the failure is written back to the
// reference and retried on a later sweep until attempts run out. Each ref is
// claimed before fetching, so overlapping sweeps never ingest it twice.
func (s *FacebookSyncService) Sweep(ctx context.Context) (*SweepResult, error) {
	staleBefore := s.now().Add(-s.claimTimeout)
	refs, err := s.refs.ListPending(ctx, s.maxAttempts, s.batchSize, staleBefore)
	if err != nil {
		return nil, fmt.Errorf("list pending refs: %w", err)
	}
	if len(refs) == 0 {
		return &SweepResult{}, nil
	}

	tenants := s.loadTenants(ctx, refs)

	var fetched, failed, skipped atomic.Int64
	var g errgroup.Group
	g.SetLimit(s.concurrency)

	for i := range refs {
		ref := refs[i]
		g.Go(func() error {
			claimed, err := s.refs.Claim(ctx, ref.ID, staleBefore)
			if err != nil {
				s.logger.Warn("failed to claim facebook ref", zap.String("ref_id", ref.ID.String()), zap.Error(err))
			}
			if !claimed {
				skipped.Add(1)
				return nil
			}
			if err := s.process(ctx, tenants[ref.TenantID], &ref); err != nil {
				failed.Add(1)
				metrics.FacebookFetches.WithLabelValues("failed").Inc()
				s.logger.Warn("facebook lead fetch failed",
					zap.String("ref_id", ref.ID.String()),
					zap.String("leadgen_id", ref.LeadgenID),
					zap.Int("attempt", ref.Attempts+1),
					zap.Error(err))
				if markErr := s.refs.MarkFailed(ctx, ref.ID, err.Error()); markErr != nil {
					s.logger.Error("failed to record fetch failure", zap.String("ref_id", ref.ID.String()), zap.Error(markErr))
				}
				return nil
			}
			fetched.Add(1)
			metrics.FacebookFetches.WithLabelValues("fetched").Inc()
			return nil
		})
	}
	_ = g.Wait()

	return &SweepResult{
		Attempted: len(refs),
		Fetched:   int(fetched.Load()),
		Failed:    int(failed.Load()),
		Skipped:   int(skipped.Load()),
	}, nil
}

// loadTenants resolves each distinct tenant once, before the fan-out.
func (s *FacebookSyncService) loadTenants(ctx context.Context, refs []domain.FacebookLeadRef) map[uuid.UUID]*domain.Tenant {
	out := make(map[uuid.UUID]*domain.Tenant)
	for _, r := range refs {
		if _, seen := out[r.TenantID]; seen {
			continue
		}
		t, err := s.tenants.GetByID(ctx, r.TenantID)
		if err != nil {
			s.logger.Warn("tenant lookup failed during facebook sweep", zap.String("tenant_id", r.TenantID.String()), zap.Error(err))
			out[r.TenantID] = nil
			continue
		}
		out[r.TenantID] = t
	}
	return out
}

func (s *FacebookSyncService) process(ctx context.Context, tenant *domain.Tenant, ref *domain.FacebookLeadRef) error {
	if tenant == nil {
		return ErrTenantNotFound
	}
	if tenant.Config.FacebookAccessToken == "" {
		return ErrMissingAccessToken
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	sub, err := s.fetcher.FetchLead(fetchCtx, tenant.Config.FacebookAccessToken, ref.LeadgenID)
	cancel()
	if err != nil {
		return fmt.Errorf("fetch lead %s: %w", ref.LeadgenID, err)
	}

	sub.Channel = domain.ChannelFacebook
	if sub.ExternalID == "" {
		sub.ExternalID = ref.LeadgenID
	}
	if sub.Tracking == nil {
		sub.Tracking = make(map[string]string)
	}
	setDefault(sub.Tracking, "fb_form_id", ref.FormID)
	setDefault(sub.Tracking, "fb_ad_id", ref.AdID)

	res, err := s.intake.Ingest(ctx, tenant, sub, IngestOptions{})
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}
	s.markFetched(ctx, ref, res.Lead.ID)
	return nil
}

// markFetched retries once on a detached context. If both writes fail the ref
// keeps its claim, which holds it out of sweeps until the claim goes stale.
func (s *FacebookSyncService) markFetched(ctx context.Context, ref *domain.FacebookLeadRef, leadID uuid.UUID) {
	err := s.refs.MarkFetched(ctx, ref.ID, leadID)
	if err == nil {
		return
	}
	retryCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err = s.refs.MarkFetched(retryCtx, ref.ID, leadID); err != nil {
		s.logger.Error("failed to mark ref fetched; ref stays claimed",
			zap.String("ref_id", ref.ID.String()),
			zap.String("lead_id", leadID.String()),
			zap.Error(err))
	}
}

func setDefault(m map[string]string, key, value string) {
	if value == "" {
		return
	}
	if _, ok := m[key]; !ok {
		m[key] = value
	}
}

// Start runs the sweep on a periodic schedule in a background goroutine.
func (s *FacebookSyncService) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.logger.Info("facebook sync started", zap.Duration("interval", s.interval))

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
				res, err := s.Sweep(ctx)
				cancel()
				if err != nil {
					s.logger.Error("facebook sweep failed", zap.Error(err))
				} else if res.Attempted > 0 {
					s.logger.Info("facebook sweep finished",
						zap.Int("attempted", res.Attempted),
						zap.Int("fetched", res.Fetched),
						zap.Int("failed", res.Failed))
				}
			case <-s.stopCh:
				s.logger.Info("facebook sync stopped")
				return
			}
		}
	}()
}

func (s *FacebookSyncService) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}
