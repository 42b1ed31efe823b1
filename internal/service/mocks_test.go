package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hearthline/leadflow/internal/domain"
	"github.com/hearthline/leadflow/internal/store"
)

// mockTenantStore implements domain.TenantStore for testing.
type mockTenantStore struct {
	tenants map[uuid.UUID]*domain.Tenant
	listErr error
}

func newMockTenantStore() *mockTenantStore {
	return &mockTenantStore{tenants: make(map[uuid.UUID]*domain.Tenant)}
}

func (m *mockTenantStore) add(name string, cfg domain.TenantConfig) *domain.Tenant {
	t := &domain.Tenant{ID: uuid.New(), Name: name, Slug: strings.ToLower(name), Config: cfg.WithDefaults()}
	m.tenants[t.ID] = t
	return t
}

func (m *mockTenantStore) Create(ctx context.Context, t *domain.Tenant) error {
	for _, existing := range m.tenants {
		if existing.Slug == t.Slug {
			return store.ErrConflict
		}
	}
	t.ID = uuid.New()
	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt
	cp := *t
	m.tenants[t.ID] = &cp
	return nil
}

func (m *mockTenantStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Tenant, error) {
	t, ok := m.tenants[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *mockTenantStore) GetBySlug(ctx context.Context, slug string) (*domain.Tenant, error) {
	for _, t := range m.tenants {
		if t.Slug == slug {
			cp := *t
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *mockTenantStore) GetByFacebookPageID(ctx context.Context, pageID string) (*domain.Tenant, error) {
	for _, t := range m.tenants {
		for _, p := range t.Config.FacebookPageIDs {
			if p == pageID {
				cp := *t
				return &cp, nil
			}
		}
	}
	return nil, store.ErrNotFound
}

func (m *mockTenantStore) List(ctx context.Context) ([]domain.Tenant, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []domain.Tenant
	for _, t := range m.tenants {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *mockTenantStore) Update(ctx context.Context, t *domain.Tenant) error {
	if _, ok := m.tenants[t.ID]; !ok {
		return store.ErrNotFound
	}
	cp := *t
	m.tenants[t.ID] = &cp
	return nil
}

func (m *mockTenantStore) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := m.tenants[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.tenants, id)
	return nil
}

func (m *mockTenantStore) AnyAllowsOrigin(ctx context.Context, origin string) (bool, error) {
	for _, t := range m.tenants {
		if t.OriginAllowed(origin) {
			return true, nil
		}
	}
	return false, nil
}

// mockLeadStore implements domain.LeadStore with the same partial
// uniqueness the database enforces. It hands out copies so a service can
// only change stored state through Update.
type mockLeadStore struct {
	mu    sync.Mutex
	leads map[uuid.UUID]*domain.Lead

	staleErr map[uuid.UUID]error
	// raceOnCreate inserts this lead just before the next Create, simulating
	// a concurrent submission that won the insert.
	raceOnCreate *domain.Lead
}

func newMockLeadStore() *mockLeadStore {
	return &mockLeadStore{
		leads:    make(map[uuid.UUID]*domain.Lead),
		staleErr: make(map[uuid.UUID]error),
	}
}

func (m *mockLeadStore) conflicts(l *domain.Lead) bool {
	for _, existing := range m.leads {
		if existing.ID == l.ID || existing.TenantID != l.TenantID {
			continue
		}
		if l.Email != nil && existing.Email != nil && *l.Email == *existing.Email {
			return true
		}
		if l.Phone != nil && existing.Phone != nil && *l.Phone == *existing.Phone {
			return true
		}
	}
	return false
}

func (m *mockLeadStore) Create(ctx context.Context, l *domain.Lead) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.raceOnCreate != nil {
		winner := *m.raceOnCreate
		m.leads[winner.ID] = &winner
		m.raceOnCreate = nil
	}
	if m.conflicts(l) {
		return store.ErrConflict
	}
	l.ID = uuid.New()
	l.UpdatedAt = time.Now()
	cp := *l
	m.leads[l.ID] = &cp
	return nil
}

func (m *mockLeadStore) GetByID(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (*domain.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.leads[id]
	if !ok || l.TenantID != tenantID {
		return nil, store.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (m *mockLeadStore) FindByEmail(ctx context.Context, tenantID uuid.UUID, email string) (*domain.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.leads {
		if l.TenantID == tenantID && l.Email != nil && *l.Email == email {
			cp := *l
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *mockLeadStore) FindByPhone(ctx context.Context, tenantID uuid.UUID, phone string) (*domain.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.leads {
		if l.TenantID == tenantID && l.Phone != nil && *l.Phone == phone {
			cp := *l
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *mockLeadStore) Update(ctx context.Context, l *domain.Lead) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.leads[l.ID]
	if !ok || existing.TenantID != l.TenantID {
		return store.ErrNotFound
	}
	if m.conflicts(l) {
		return store.ErrConflict
	}
	cp := *l
	cp.Source = existing.Source
	cp.CreatedAt = existing.CreatedAt
	cp.UpdatedAt = time.Now()
	m.leads[l.ID] = &cp
	return nil
}

func (m *mockLeadStore) Delete(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.leads[id]
	if !ok || l.TenantID != tenantID {
		return store.ErrNotFound
	}
	delete(m.leads, id)
	return nil
}

func (m *mockLeadStore) List(ctx context.Context, tenantID uuid.UUID, f domain.LeadFilter) ([]domain.Lead, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Lead
	for _, l := range m.leads {
		if l.TenantID != tenantID {
			continue
		}
		if f.Stage != "" && l.Stage != f.Stage {
			continue
		}
		if f.IsSpam != nil && l.IsSpam != *f.IsSpam {
			continue
		}
		out = append(out, *l)
	}
	return out, len(out), nil
}

func (m *mockLeadStore) ListStale(ctx context.Context, tenantID uuid.UUID, before time.Time, excludeStages []string) ([]domain.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.staleErr[tenantID]; err != nil {
		return nil, err
	}
	excluded := make(map[string]bool)
	for _, s := range excludeStages {
		excluded[strings.ToLower(s)] = true
	}
	var out []domain.Lead
	for _, l := range m.leads {
		if l.TenantID == tenantID && l.LastActivityAt.Before(before) && !excluded[strings.ToLower(l.Stage)] {
			out = append(out, *l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastActivityAt.Before(out[j].LastActivityAt) })
	return out, nil
}

func (m *mockLeadStore) Summary(ctx context.Context, tenantID uuid.UUID, since time.Time) (*domain.LeadSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sum := &domain.LeadSummary{ByStage: map[string]int{}, BySource: map[string]int{}}
	for _, l := range m.leads {
		if l.TenantID != tenantID {
			continue
		}
		sum.Total++
		if l.IsSpam {
			sum.Spam++
			continue
		}
		sum.ByStage[l.Stage]++
		sum.BySource[l.Source]++
	}
	return sum, nil
}

// mockActivityStore implements domain.ActivityStore for testing.
type mockActivityStore struct {
	mu         sync.Mutex
	activities []domain.Activity
}

func newMockActivityStore() *mockActivityStore {
	return &mockActivityStore{}
}

func (m *mockActivityStore) Create(ctx context.Context, a *domain.Activity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.ID = uuid.New()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	m.activities = append(m.activities, *a)
	return nil
}

func (m *mockActivityStore) ListByLead(ctx context.Context, leadID uuid.UUID, tenantID uuid.UUID) ([]domain.Activity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Activity
	for _, a := range m.activities {
		if a.LeadID == leadID && a.TenantID == tenantID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *mockActivityStore) forLead(leadID uuid.UUID) []domain.Activity {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Activity
	for _, a := range m.activities {
		if a.LeadID == leadID {
			out = append(out, a)
		}
	}
	return out
}

func (m *mockActivityStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.activities)
}

// recordingPublisher implements domain.EventPublisher and keeps every event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.Event
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, e domain.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) ofType(t string) []domain.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []domain.Event
	for _, e := range p.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// mockAPIKeyStore implements domain.APIKeyStore for testing.
type mockAPIKeyStore struct {
	keys map[uuid.UUID]*domain.APIKey
}

func newMockAPIKeyStore() *mockAPIKeyStore {
	return &mockAPIKeyStore{keys: make(map[uuid.UUID]*domain.APIKey)}
}

func (m *mockAPIKeyStore) Create(ctx context.Context, k *domain.APIKey) error {
	k.ID = uuid.New()
	k.Active = true
	k.CreatedAt = time.Now()
	cp := *k
	m.keys[k.ID] = &cp
	return nil
}

func (m *mockAPIKeyStore) GetByHash(ctx context.Context, keyHash string) (*domain.APIKey, error) {
	for _, k := range m.keys {
		if k.KeyHash == keyHash {
			cp := *k
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *mockAPIKeyStore) GetByID(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (*domain.APIKey, error) {
	k, ok := m.keys[id]
	if !ok || k.TenantID != tenantID {
		return nil, store.ErrNotFound
	}
	cp := *k
	return &cp, nil
}

func (m *mockAPIKeyStore) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]domain.APIKey, error) {
	var out []domain.APIKey
	for _, k := range m.keys {
		if k.TenantID == tenantID {
			out = append(out, *k)
		}
	}
	return out, nil
}

func (m *mockAPIKeyStore) Revoke(ctx context.Context, id uuid.UUID, tenantID uuid.UUID, at time.Time) error {
	k, ok := m.keys[id]
	if !ok || k.TenantID != tenantID {
		return store.ErrNotFound
	}
	k.Active = false
	k.RevokedAt = &at
	return nil
}

func (m *mockAPIKeyStore) TouchLastUsed(ctx context.Context, id uuid.UUID, at time.Time) error {
	k, ok := m.keys[id]
	if !ok {
		return store.ErrNotFound
	}
	k.LastUsedAt = &at
	return nil
}

// mockUserStore implements domain.UserStore for testing.
type mockUserStore struct {
	users map[uuid.UUID]*domain.User
}

func newMockUserStore() *mockUserStore {
	return &mockUserStore{users: make(map[uuid.UUID]*domain.User)}
}

func (m *mockUserStore) Create(ctx context.Context, u *domain.User) error {
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return store.ErrConflict
		}
	}
	u.ID = uuid.New()
	u.CreatedAt = time.Now()
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *mockUserStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *mockUserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *mockUserStore) ListByTenant(ctx context.Context, tenantID *uuid.UUID) ([]domain.User, error) {
	var out []domain.User
	for _, u := range m.users {
		if tenantID == nil || (u.TenantID != nil && *u.TenantID == *tenantID) {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (m *mockUserStore) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	u, ok := m.users[id]
	if !ok {
		return store.ErrNotFound
	}
	u.Active = active
	return nil
}

// mockFacebookLeadStore implements domain.FacebookLeadStore for testing.
type mockFacebookLeadStore struct {
	mu   sync.Mutex
	refs map[uuid.UUID]*domain.FacebookLeadRef

	markFetchedErr error
}

func newMockFacebookLeadStore() *mockFacebookLeadStore {
	return &mockFacebookLeadStore{refs: make(map[uuid.UUID]*domain.FacebookLeadRef)}
}

func (m *mockFacebookLeadStore) CreateRef(ctx context.Context, ref *domain.FacebookLeadRef) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.refs {
		if r.LeadgenID == ref.LeadgenID {
			return store.ErrConflict
		}
	}
	ref.ID = uuid.New()
	ref.Status = domain.FetchStatusPending
	ref.CreatedAt = time.Now()
	cp := *ref
	m.refs[ref.ID] = &cp
	return nil
}

func claimable(r *domain.FacebookLeadRef, staleBefore time.Time) bool {
	switch r.Status {
	case domain.FetchStatusPending, domain.FetchStatusFailed:
		return true
	case domain.FetchStatusFetching:
		return r.ClaimedAt != nil && r.ClaimedAt.Before(staleBefore)
	}
	return false
}

func (m *mockFacebookLeadStore) ListPending(ctx context.Context, maxAttempts int, limit int, staleBefore time.Time) ([]domain.FacebookLeadRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.FacebookLeadRef
	for _, r := range m.refs {
		if claimable(r, staleBefore) && r.Attempts < maxAttempts {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LeadgenID < out[j].LeadgenID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockFacebookLeadStore) Claim(ctx context.Context, id uuid.UUID, staleBefore time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.refs[id]
	if !ok || !claimable(r, staleBefore) {
		return false, nil
	}
	now := time.Now()
	r.Status = domain.FetchStatusFetching
	r.ClaimedAt = &now
	r.Attempts++
	return true, nil
}

func (m *mockFacebookLeadStore) MarkFetched(ctx context.Context, id uuid.UUID, leadID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.markFetchedErr != nil {
		return m.markFetchedErr
	}
	r, ok := m.refs[id]
	if !ok {
		return store.ErrNotFound
	}
	r.Status = domain.FetchStatusFetched
	r.LeadID = &leadID
	r.LastError = ""
	return nil
}

func (m *mockFacebookLeadStore) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.refs[id]
	if !ok {
		return store.ErrNotFound
	}
	r.Status = domain.FetchStatusFailed
	r.LastError = reason
	return nil
}

func (m *mockFacebookLeadStore) byLeadgen(id string) *domain.FacebookLeadRef {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.refs {
		if r.LeadgenID == id {
			cp := *r
			return &cp
		}
	}
	return nil
}

func strPtr(s string) *string { return &s }
