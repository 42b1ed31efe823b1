package service

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hearthline/leadflow/internal/domain"
	"github.com/hearthline/leadflow/internal/store"
	"go.uber.org/zap"
)

const apiKeyPrefix = "lf_"

var (
	ErrAPIKeyNotFound      = errors.New("api key not found")
	ErrAPIKeyNotRevealable = errors.New("api key has no recoverable copy")
	ErrInvalidAPIKey       = errors.New("invalid api key")
	ErrAPIKeyLabelEmpty    = errors.New("label is required")
)

// APIKeyService issues and checks tenant ingestion keys. Lookups go through an
// HMAC of the raw key under a server-side pepper; the optional AES-GCM copy
// only backs the audited reveal.
type APIKeyService struct {
	store         domain.APIKeyStore
	pepper        []byte
	encryptionKey []byte
	logger        *zap.Logger
	now           func() time.Time
}

// NewAPIKeyService validates the encryption key length. An empty key disables
// reveal.
func NewAPIKeyService(s domain.APIKeyStore, pepper string, encryptionKey []byte, logger *zap.Logger) (*APIKeyService, error) {
	switch len(encryptionKey) {
	case 0, 16, 24, 32:
	default:
		return nil, fmt.Errorf("api key encryption key must be 16, 24 or 32 bytes, got %d", len(encryptionKey))
	}
	return &APIKeyService{
		store:         s,
		pepper:        []byte(pepper),
		encryptionKey: encryptionKey,
		logger:        logger,
		now:           time.Now,
	}, nil
}

func (s *APIKeyService) Hash(raw string) string {
	mac := hmac.New(sha256.New, s.pepper)
	mac.Write([]byte(raw))
	return hex.EncodeToString(mac.Sum(nil))
}

// Create issues a key. The raw value is returned once and never stored.
func (s *APIKeyService) Create(ctx context.Context, tenantID uuid.UUID, label string, actor *uuid.UUID) (*domain.APIKey, string, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return nil, "", ErrAPIKeyLabelEmpty
	}

	raw, err := generateAPIKey()
	if err != nil {
		return nil, "", fmt.Errorf("generate api key: %w", err)
	}

	k := &domain.APIKey{
		TenantID:  tenantID,
		Label:     label,
		Prefix:    raw[:len(apiKeyPrefix)+6],
		KeyHash:   s.Hash(raw),
		CreatedBy: actor,
	}
	if len(s.encryptionKey) > 0 {
		k.KeyEncrypted, err = s.encrypt([]byte(raw))
		if err != nil {
			return nil, "", fmt.Errorf("encrypt api key: %w", err)
		}
	}

	if err := s.store.Create(ctx, k); err != nil {
		return nil, "", err
	}
	return k, raw, nil
}

func (s *APIKeyService) List(ctx context.Context, tenantID uuid.UUID) ([]domain.APIKey, error) {
	return s.store.ListByTenant(ctx, tenantID)
}

func (s *APIKeyService) Revoke(ctx context.Context, tenantID, id uuid.UUID) error {
	err := s.store.Revoke(ctx, id, tenantID, s.now())
	if errors.Is(err, store.ErrNotFound) {
		return ErrAPIKeyNotFound
	}
	return err
}

// Reveal decrypts the stored copy. Every call is logged for audit.
func (s *APIKeyService) Reveal(ctx context.Context, tenantID, id uuid.UUID, actor uuid.UUID) (string, error) {
	k, err := s.store.GetByID(ctx, id, tenantID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrAPIKeyNotFound
		}
		return "", err
	}
	if !k.Revealable() || len(s.encryptionKey) == 0 {
		return "", ErrAPIKeyNotRevealable
	}

	raw, err := s.decrypt(k.KeyEncrypted)
	if err != nil {
		return "", fmt.Errorf("decrypt api key: %w", err)
	}

	s.logger.Info("api key revealed",
		zap.String("audit", "api_key.reveal"),
		zap.String("actor_id", actor.String()),
		zap.String("tenant_id", tenantID.String()),
		zap.String("key_id", id.String()))
	return string(raw), nil
}

// Authenticate resolves a raw key to its active record and stamps last use.
func (s *APIKeyService) Authenticate(ctx context.Context, raw string) (*domain.APIKey, error) {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, apiKeyPrefix) {
		return nil, ErrInvalidAPIKey
	}

	k, err := s.store.GetByHash(ctx, s.Hash(raw))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidAPIKey
		}
		return nil, err
	}
	if !k.Active {
		return nil, ErrInvalidAPIKey
	}

	now := s.now()
	if err := s.store.TouchLastUsed(ctx, k.ID, now); err != nil {
		s.logger.Warn("failed to update api key last use", zap.String("key_id", k.ID.String()), zap.Error(err))
	} else {
		k.LastUsedAt = &now
	}
	return k, nil
}

func generateAPIKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return apiKeyPrefix + hex.EncodeToString(b), nil
}

func (s *APIKeyService) encrypt(data []byte) ([]byte, error) {
	block, err := aes.NewCipher(s.encryptionKey)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err = io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return gcm.Seal(nonce, nonce, data, nil), nil
}

func (s *APIKeyService) decrypt(data []byte) ([]byte, error) {
	block, err := aes.NewCipher(s.encryptionKey)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return nil, errors.New("ciphertext too short")
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	return gcm.Open(nil, nonce, ciphertext, nil)
}
