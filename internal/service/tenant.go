package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/hearthline/leadflow/internal/domain"
	"github.com/hearthline/leadflow/internal/store"
)

var (
	ErrTenantNotFound      = errors.New("tenant not found")
	ErrTenantSlugTaken     = errors.New("tenant slug already in use")
	ErrTenantNameEmpty     = errors.New("name is required")
	ErrInvalidSlug         = errors.New("slug must be lowercase letters, digits and dashes")
	ErrInvalidTenantConfig = errors.New("invalid tenant config")
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// redactedToken is what dashboards see (and send back) for a stored secret.
const redactedToken = "********"

type TenantService struct {
	store domain.TenantStore
}

func NewTenantService(s domain.TenantStore) *TenantService {
	return &TenantService{store: s}
}

func (s *TenantService) Create(ctx context.Context, name, slug string, cfg domain.TenantConfig) (*domain.Tenant, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrTenantNameEmpty
	}
	slug = strings.ToLower(strings.TrimSpace(slug))
	if !slugPattern.MatchString(slug) {
		return nil, ErrInvalidSlug
	}
	if cfg.FacebookAccessToken == redactedToken {
		cfg.FacebookAccessToken = ""
	}
	cfg, err := validateConfig(cfg)
	if err != nil {
		return nil, err
	}

	t := &domain.Tenant{Name: name, Slug: slug, Config: cfg}
	if err := s.store.Create(ctx, t); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, ErrTenantSlugTaken
		}
		return nil, err
	}
	return t, nil
}

func (s *TenantService) GetByID(ctx context.Context, id uuid.UUID) (*domain.Tenant, error) {
	t, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrTenantNotFound
		}
		return nil, err
	}
	return t, nil
}

func (s *TenantService) GetBySlug(ctx context.Context, slug string) (*domain.Tenant, error) {
	t, err := s.store.GetBySlug(ctx, strings.ToLower(strings.TrimSpace(slug)))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrTenantNotFound
		}
		return nil, err
	}
	return t, nil
}

func (s *TenantService) List(ctx context.Context) ([]domain.Tenant, error) {
	return s.store.List(ctx)
}

// Update replaces the name (when given) and the whole config document. A
// redacted access token in the input keeps the stored one.
func (s *TenantService) Update(ctx context.Context, id uuid.UUID, name *string, cfg domain.TenantConfig) (*domain.Tenant, error) {
	t, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if name != nil {
		n := strings.TrimSpace(*name)
		if n == "" {
			return nil, ErrTenantNameEmpty
		}
		t.Name = n
	}
	if cfg.FacebookAccessToken == redactedToken {
		cfg.FacebookAccessToken = t.Config.FacebookAccessToken
	}
	cfg, err = validateConfig(cfg)
	if err != nil {
		return nil, err
	}
	t.Config = cfg

	if err := s.store.Update(ctx, t); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrTenantNotFound
		}
		return nil, err
	}
	return t, nil
}

func (s *TenantService) Delete(ctx context.Context, id uuid.UUID) error {
	err := s.store.Delete(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return ErrTenantNotFound
	}
	return err
}

// AllowsOrigin reports whether any tenant lists the browser origin. Used by
// CORS preflight, which happens before the tenant is known.
func (s *TenantService) AllowsOrigin(ctx context.Context, origin string) (bool, error) {
	return s.store.AnyAllowsOrigin(ctx, strings.TrimRight(strings.ToLower(origin), "/"))
}

func validateConfig(cfg domain.TenantConfig) (domain.TenantConfig, error) {
	cfg = cfg.WithDefaults()

	seen := make(map[string]struct{}, len(cfg.Stages))
	stages := make([]string, 0, len(cfg.Stages))
	for _, st := range cfg.Stages {
		st = strings.TrimSpace(st)
		if st == "" {
			return cfg, fmt.Errorf("%w: empty stage name", ErrInvalidTenantConfig)
		}
		key := strings.ToLower(st)
		if _, dup := seen[key]; dup {
			return cfg, fmt.Errorf("%w: duplicate stage %q", ErrInvalidTenantConfig, st)
		}
		seen[key] = struct{}{}
		stages = append(stages, st)
	}
	cfg.Stages = stages

	members := make(map[string]struct{}, len(cfg.Team))
	for i, m := range cfg.Team {
		m.ID = strings.TrimSpace(m.ID)
		m.Name = strings.TrimSpace(m.Name)
		m.Email = strings.ToLower(strings.TrimSpace(m.Email))
		if m.ID == "" || m.Name == "" {
			return cfg, fmt.Errorf("%w: team member needs id and name", ErrInvalidTenantConfig)
		}
		if _, dup := members[m.ID]; dup {
			return cfg, fmt.Errorf("%w: duplicate team member %q", ErrInvalidTenantConfig, m.ID)
		}
		members[m.ID] = struct{}{}
		cfg.Team[i] = m
	}

	cfg.SpamKeywords = cleanList(cfg.SpamKeywords, true)
	cfg.AllowedOrigins = cleanList(cfg.AllowedOrigins, true)
	for i, o := range cfg.AllowedOrigins {
		cfg.AllowedOrigins[i] = strings.TrimRight(o, "/")
	}
	cfg.FacebookPageIDs = cleanList(cfg.FacebookPageIDs, false)
	cfg.FacebookAccessToken = strings.TrimSpace(cfg.FacebookAccessToken)
	return cfg, nil
}

// cleanList trims, drops empties and removes duplicates, preserving order.
func cleanList(in []string, lower bool) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if lower {
			v = strings.ToLower(v)
		}
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
