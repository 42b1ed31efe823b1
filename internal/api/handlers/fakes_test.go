package handlers

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hearthline/leadflow/internal/domain"
	"github.com/hearthline/leadflow/internal/service"
	"github.com/hearthline/leadflow/internal/store"
)

type fakeTenants map[uuid.UUID]*domain.Tenant

func (f fakeTenants) GetByID(_ context.Context, id uuid.UUID) (*domain.Tenant, error) {
	if t, ok := f[id]; ok {
		return t, nil
	}
	return nil, service.ErrTenantNotFound
}

type fakeKeys map[string]*domain.APIKey

func (f fakeKeys) Authenticate(_ context.Context, raw string) (*domain.APIKey, error) {
	if k, ok := f[raw]; ok {
		return k, nil
	}
	return nil, errors.New("invalid api key")
}

type memLeadStore struct {
	mu    sync.Mutex
	leads map[uuid.UUID]*domain.Lead
}

func newMemLeadStore() *memLeadStore {
	return &memLeadStore{leads: make(map[uuid.UUID]*domain.Lead)}
}

func (m *memLeadStore) Create(_ context.Context, l *domain.Lead) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l.ID = uuid.New()
	l.UpdatedAt = time.Now()
	cp := *l
	m.leads[l.ID] = &cp
	return nil
}

func (m *memLeadStore) GetByID(_ context.Context, id, tenantID uuid.UUID) (*domain.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.leads[id]
	if !ok || l.TenantID != tenantID {
		return nil, store.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (m *memLeadStore) find(tenantID uuid.UUID, match func(*domain.Lead) bool) (*domain.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.leads {
		if l.TenantID == tenantID && match(l) {
			cp := *l
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memLeadStore) FindByEmail(_ context.Context, tenantID uuid.UUID, email string) (*domain.Lead, error) {
	return m.find(tenantID, func(l *domain.Lead) bool { return l.Email != nil && *l.Email == email })
}

func (m *memLeadStore) FindByPhone(_ context.Context, tenantID uuid.UUID, phone string) (*domain.Lead, error) {
	return m.find(tenantID, func(l *domain.Lead) bool { return l.Phone != nil && *l.Phone == phone })
}

func (m *memLeadStore) Update(_ context.Context, l *domain.Lead) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.leads[l.ID]
	if !ok || cur.TenantID != l.TenantID {
		return store.ErrNotFound
	}
	cp := *l
	m.leads[l.ID] = &cp
	return nil
}

func (m *memLeadStore) Delete(_ context.Context, id, tenantID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.leads[id]
	if !ok || l.TenantID != tenantID {
		return store.ErrNotFound
	}
	delete(m.leads, id)
	return nil
}

func (m *memLeadStore) List(_ context.Context, tenantID uuid.UUID, _ domain.LeadFilter) ([]domain.Lead, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Lead
	for _, l := range m.leads {
		if l.TenantID == tenantID {
			out = append(out, *l)
		}
	}
	return out, len(out), nil
}

func (m *memLeadStore) ListStale(_ context.Context, tenantID uuid.UUID, before time.Time, exclude []string) ([]domain.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Lead
	for _, l := range m.leads {
		if l.TenantID == tenantID && l.LastActivityAt.Before(before) && !domain.IsTerminalStage(l.Stage) {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (m *memLeadStore) Summary(_ context.Context, tenantID uuid.UUID, _ time.Time) (*domain.LeadSummary, error) {
	leads, total, _ := m.List(context.Background(), tenantID, domain.LeadFilter{})
	sum := &domain.LeadSummary{Total: total, ByStage: map[string]int{}, BySource: map[string]int{}}
	for _, l := range leads {
		sum.ByStage[l.Stage]++
		sum.BySource[l.Source]++
	}
	return sum, nil
}

func (m *memLeadStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.leads)
}

type memActivityStore struct {
	mu   sync.Mutex
	rows []domain.Activity
}

func (m *memActivityStore) Create(_ context.Context, a *domain.Activity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.ID = uuid.New()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	m.rows = append(m.rows, *a)
	return nil
}

func (m *memActivityStore) ListByLead(_ context.Context, leadID, tenantID uuid.UUID) ([]domain.Activity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Activity
	for _, a := range m.rows {
		if a.LeadID == leadID && a.TenantID == tenantID {
			out = append(out, a)
		}
	}
	return out, nil
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, domain.Event) error { return nil }

type recordedRef struct {
	pageID string
	ref    domain.FacebookLeadRef
}

type fakeRecorder struct {
	mu   sync.Mutex
	refs []recordedRef
	err  error
}

func (f *fakeRecorder) Record(_ context.Context, pageID string, ref *domain.FacebookLeadRef) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	f.refs = append(f.refs, recordedRef{pageID: pageID, ref: *ref})
	return true, nil
}
