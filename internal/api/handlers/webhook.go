package handlers

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/hearthline/leadflow/internal/domain"
	"github.com/hearthline/leadflow/internal/service"
	"go.uber.org/zap"
)

// KeyAuthenticator resolves the google_key embedded in a lead form delivery.
type KeyAuthenticator interface {
	Authenticate(ctx context.Context, raw string) (*domain.APIKey, error)
}

// LeadRefRecorder stores Facebook leadgen references for the follow-up fetch.
type LeadRefRecorder interface {
	Record(ctx context.Context, pageID string, ref *domain.FacebookLeadRef) (bool, error)
}

type WebhookConfig struct {
	FacebookVerifyToken string
	// FacebookAppSecret enables X-Hub-Signature-256 checks when set.
	FacebookAppSecret string
}

// WebhookHandler accepts ad-platform deliveries. Once a delivery is
// authenticated and parsed it is always acknowledged with 200 so the platform
// does not retry; processing failures are logged.
type WebhookHandler struct {
	intake  *service.IntakeService
	keys    KeyAuthenticator
	tenants TenantLookup
	refs    LeadRefRecorder
	guard   domain.DeliveryGuard
	cfg     WebhookConfig
	logger  *zap.Logger
}

func NewWebhookHandler(intake *service.IntakeService, keys KeyAuthenticator, tenants TenantLookup, refs LeadRefRecorder, guard domain.DeliveryGuard, cfg WebhookConfig, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		intake:  intake,
		keys:    keys,
		tenants: tenants,
		refs:    refs,
		guard:   guard,
		cfg:     cfg,
		logger:  logger,
	}
}

// Google receives the Ads lead form webhook. The google_key configured in
// the Ads UI is a tenant API key.
func (h *WebhookHandler) Google(w http.ResponseWriter, r *http.Request) {
	gl, err := service.ParseGoogleLead(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if gl.GoogleKey == "" {
		writeError(w, http.StatusUnauthorized, "google_key is required")
		return
	}
	key, err := h.keys.Authenticate(r.Context(), gl.GoogleKey)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid google_key")
		return
	}

	log := h.logger.With(
		zap.String("channel", string(domain.ChannelGoogle)),
		zap.String("tenant_id", key.TenantID.String()),
		zap.String("external_id", gl.Submission.ExternalID),
		zap.Bool("is_test", gl.IsTest),
	)

	var claimed string
	if gl.Submission.ExternalID != "" && h.guard != nil {
		dk := "google:" + key.TenantID.String() + ":" + gl.Submission.ExternalID
		first, err := h.guard.FirstDelivery(r.Context(), dk)
		switch {
		case err != nil:
			log.Warn("delivery guard unavailable, processing anyway", zap.Error(err))
		case !first:
			log.Info("duplicate webhook delivery ignored")
			writeJSON(w, http.StatusOK, map[string]string{"status": "duplicate"})
			return
		default:
			claimed = dk
		}
	}

	tenant, err := h.tenants.GetByID(r.Context(), key.TenantID)
	if err != nil {
		log.Error("failed to load tenant for webhook", zap.Error(err))
		h.release(r.Context(), claimed, log)
		writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
		return
	}

	res, err := h.intake.Ingest(r.Context(), tenant, gl.Submission, service.IngestOptions{})
	if err != nil {
		log.Error("failed to ingest google lead", zap.Error(err))
		h.release(r.Context(), claimed, log)
		writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"lead_id": res.Lead.ID.String(),
		"created": res.Created,
	})
}

// release drops a delivery claim so a retry of an unprocessed lead gets through.
func (h *WebhookHandler) release(ctx context.Context, key string, log *zap.Logger) {
	if key == "" {
		return
	}
	if err := h.guard.Forget(context.WithoutCancel(ctx), key); err != nil {
		log.Warn("failed to release delivery claim", zap.Error(err))
	}
}

// FacebookVerify answers the subscription handshake.
func (h *WebhookHandler) FacebookVerify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	token := q.Get("hub.verify_token")
	if q.Get("hub.mode") != "subscribe" || h.cfg.FacebookVerifyToken == "" ||
		subtle.ConstantTimeCompare([]byte(token), []byte(h.cfg.FacebookVerifyToken)) != 1 {
		writeError(w, http.StatusForbidden, "verification failed")
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, q.Get("hub.challenge"))
}

// Facebook records leadgen notifications. The lead itself is fetched later
// by the sync sweep, since the notification carries only ids.
func (h *WebhookHandler) Facebook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if h.cfg.FacebookAppSecret != "" && !validHubSignature(h.cfg.FacebookAppSecret, body, r.Header.Get("X-Hub-Signature-256")) {
		writeError(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	refs, err := service.ParseFacebookWebhook(bytes.NewReader(body))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	recorded := 0
	for i := range refs {
		ref := refs[i]
		created, err := h.refs.Record(r.Context(), ref.PageID, &ref)
		switch {
		case errors.Is(err, service.ErrPageNotMapped):
			h.logger.Warn("leadgen for unmapped page", zap.String("page_id", ref.PageID), zap.String("leadgen_id", ref.LeadgenID))
		case err != nil:
			h.logger.Error("failed to record leadgen", zap.String("leadgen_id", ref.LeadgenID), zap.Error(err))
		case created:
			recorded++
		}
	}

	writeJSON(w, http.StatusOK, map[string]int{"received": len(refs), "recorded": recorded})
}

func validHubSignature(secret string, body []byte, header string) bool {
	sig, ok := strings.CutPrefix(header, "sha256=")
	if !ok {
		return false
	}
	got, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}
