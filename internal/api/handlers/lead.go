package handlers

import (
	"encoding/csv"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hearthline/leadflow/internal/domain"
	"github.com/hearthline/leadflow/internal/service"
	"go.uber.org/zap"
)

type LeadHandler struct {
	leads   *service.LeadService
	intake  *service.IntakeService
	tenants TenantLookup
	logger  *zap.Logger
}

func NewLeadHandler(leads *service.LeadService, intake *service.IntakeService, tenants TenantLookup, logger *zap.Logger) *LeadHandler {
	return &LeadHandler{leads: leads, intake: intake, tenants: tenants, logger: logger}
}

type listLeadsResponse struct {
	Leads  []domain.Lead `json:"leads"`
	Total  int           `json:"total"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}

func leadFilter(r *http.Request) (domain.LeadFilter, bool) {
	q := r.URL.Query()
	f := domain.LeadFilter{
		Stage:      q.Get("stage"),
		Source:     strings.ToLower(q.Get("source")),
		AssignedTo: q.Get("assigned_to"),
		Search:     q.Get("q"),
		Limit:      queryInt(r, "limit", 50),
		Offset:     queryInt(r, "offset", 0),
	}
	if v := q.Get("spam"); v != "" {
		spam, err := strconv.ParseBool(v)
		if err != nil {
			return f, false
		}
		f.IsSpam = &spam
	}
	return f, true
}

func (h *LeadHandler) List(w http.ResponseWriter, r *http.Request) {
	_, tenantID, ok := scope(w, r, "")
	if !ok {
		return
	}
	f, ok := leadFilter(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "spam must be true or false")
		return
	}

	leads, total, err := h.leads.List(r.Context(), tenantID, f)
	if err != nil {
		writeServiceError(w, err, "failed to list leads")
		return
	}
	if leads == nil {
		leads = []domain.Lead{}
	}
	writeJSON(w, http.StatusOK, listLeadsResponse{Leads: leads, Total: total, Limit: f.Limit, Offset: f.Offset})
}

const exportPageSize = 500

var exportHeader = []string{
	"id", "first_name", "last_name", "email", "phone", "city", "interest", "campaign", "office",
	"stage", "source", "is_spam", "assigned_to", "consent", "created_at", "last_activity_at",
}

// Export streams every lead matching the list filters as CSV. Rows are read
// page by page so large tenants never sit in memory at once.
func (h *LeadHandler) Export(w http.ResponseWriter, r *http.Request) {
	_, tenantID, ok := scope(w, r, "")
	if !ok {
		return
	}
	f, ok := leadFilter(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "spam must be true or false")
		return
	}
	f.Limit = exportPageSize
	f.Offset = 0

	// Fetch the first page before committing to a 200.
	leads, total, err := h.leads.List(r.Context(), tenantID, f)
	if err != nil {
		writeServiceError(w, err, "failed to export leads")
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="leads-`+time.Now().UTC().Format("20060102")+`.csv"`)
	w.WriteHeader(http.StatusOK)

	// Headers are gone from here on; failures can only be logged.
	log := h.logger.With(zap.String("tenant_id", tenantID.String()))
	cw := csv.NewWriter(w)
	written := 0
	writeErr := cw.Write(exportHeader)
	for writeErr == nil {
		for i := range leads {
			if writeErr = cw.Write(leadRecord(&leads[i])); writeErr != nil {
				break
			}
			written++
		}
		if writeErr != nil {
			break
		}
		f.Offset += len(leads)
		if len(leads) < f.Limit || f.Offset >= total {
			break
		}
		leads, _, err = h.leads.List(r.Context(), tenantID, f)
		if err != nil {
			log.Error("lead export truncated", zap.Int("rows", written), zap.Error(err))
			break
		}
	}
	cw.Flush()
	if writeErr == nil {
		writeErr = cw.Error()
	}
	if writeErr != nil {
		log.Warn("lead export write failed", zap.Int("rows", written), zap.Error(writeErr))
	}
}

func leadRecord(l *domain.Lead) []string {
	return []string{
		l.ID.String(),
		l.FirstName,
		l.LastName,
		deref(l.Email),
		deref(l.Phone),
		l.City,
		l.Interest,
		l.Campaign,
		l.Office,
		l.Stage,
		l.Source,
		strconv.FormatBool(l.IsSpam),
		deref(l.AssignedTo),
		strconv.FormatBool(l.Consent),
		l.CreatedAt.UTC().Format(time.RFC3339),
		l.LastActivityAt.UTC().Format(time.RFC3339),
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

type createLeadRequest struct {
	TenantID       string            `json:"tenant_id"`
	FirstName      string            `json:"first_name"`
	LastName       string            `json:"last_name"`
	Email          string            `json:"email"`
	Phone          string            `json:"phone"`
	City           string            `json:"city"`
	Interest       string            `json:"interest"`
	Campaign       string            `json:"campaign"`
	Office         string            `json:"office"`
	Notes          string            `json:"notes"`
	Source         string            `json:"source"`
	Consent        *bool             `json:"consent"`
	Tracking       map[string]string `json:"tracking"`
	AllowAnonymous bool              `json:"allow_anonymous"`
}

// Create is manual entry from the dashboard. It goes through the same intake
// path as every other channel, so a known contact is merged, not duplicated.
func (h *LeadHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createLeadRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, tenantID, ok := scope(w, r, req.TenantID)
	if !ok {
		return
	}
	tenant, err := h.tenants.GetByID(r.Context(), tenantID)
	if err != nil {
		writeServiceError(w, err, "failed to load tenant")
		return
	}

	sub := &domain.Submission{
		Channel:   domain.ChannelManual,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Phone:     req.Phone,
		City:      req.City,
		Interest:  req.Interest,
		Campaign:  req.Campaign,
		Office:    req.Office,
		Notes:     req.Notes,
		Source:    req.Source,
		Consent:   req.Consent,
		Tracking:  req.Tracking,
	}

	res, err := h.intake.Ingest(r.Context(), tenant, sub, service.IngestOptions{
		Actor:          p.ActorID(),
		AllowAnonymous: req.AllowAnonymous,
	})
	if err != nil {
		writeServiceError(w, err, "failed to create lead")
		return
	}

	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, res)
}

func (h *LeadHandler) Get(w http.ResponseWriter, r *http.Request) {
	_, tenantID, ok := scope(w, r, "")
	if !ok {
		return
	}
	id, ok := urlID(w, r, "id", "lead")
	if !ok {
		return
	}

	lead, err := h.leads.Get(r.Context(), tenantID, id)
	if err != nil {
		writeServiceError(w, err, "failed to get lead")
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

type updateLeadRequest struct {
	TenantID   string  `json:"tenant_id"`
	FirstName  *string `json:"first_name"`
	LastName   *string `json:"last_name"`
	Email      *string `json:"email"`
	Phone      *string `json:"phone"`
	City       *string `json:"city"`
	Interest   *string `json:"interest"`
	Campaign   *string `json:"campaign"`
	Office     *string `json:"office"`
	Notes      *string `json:"notes"`
	Consent    *bool   `json:"consent"`
	IsSpam     *bool   `json:"is_spam"`
	Stage      *string `json:"stage"`
	StageNote  *string `json:"stage_note"`
	AssignedTo *string `json:"assigned_to"`
}

func (req updateLeadRequest) patch() domain.LeadPatch {
	return domain.LeadPatch{
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Email:      req.Email,
		Phone:      req.Phone,
		City:       req.City,
		Interest:   req.Interest,
		Campaign:   req.Campaign,
		Office:     req.Office,
		Notes:      req.Notes,
		Consent:    req.Consent,
		IsSpam:     req.IsSpam,
		Stage:      req.Stage,
		StageNote:  req.StageNote,
		AssignedTo: req.AssignedTo,
	}
}

func (h *LeadHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id", "lead")
	if !ok {
		return
	}
	var req updateLeadRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, tenantID, ok := scope(w, r, req.TenantID)
	if !ok {
		return
	}
	tenant, err := h.tenants.GetByID(r.Context(), tenantID)
	if err != nil {
		writeServiceError(w, err, "failed to load tenant")
		return
	}

	res, err := h.leads.Update(r.Context(), tenant, id, req.patch(), p.ActorID())
	if err != nil {
		writeServiceError(w, err, "failed to update lead")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *LeadHandler) Delete(w http.ResponseWriter, r *http.Request) {
	_, tenantID, ok := scope(w, r, "")
	if !ok {
		return
	}
	id, ok := urlID(w, r, "id", "lead")
	if !ok {
		return
	}

	if err := h.leads.Delete(r.Context(), tenantID, id); err != nil {
		writeServiceError(w, err, "failed to delete lead")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *LeadHandler) ListActivities(w http.ResponseWriter, r *http.Request) {
	_, tenantID, ok := scope(w, r, "")
	if !ok {
		return
	}
	id, ok := urlID(w, r, "id", "lead")
	if !ok {
		return
	}

	activities, err := h.leads.ListActivities(r.Context(), tenantID, id)
	if err != nil {
		writeServiceError(w, err, "failed to list activities")
		return
	}
	if activities == nil {
		activities = []domain.Activity{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"activities": activities})
}

type addActivityRequest struct {
	TenantID string `json:"tenant_id"`
	Type     string `json:"type"`
	Content  string `json:"content"`
}

func (h *LeadHandler) AddActivity(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id", "lead")
	if !ok {
		return
	}
	var req addActivityRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, tenantID, ok := scope(w, r, req.TenantID)
	if !ok {
		return
	}

	a, err := h.leads.AddActivity(r.Context(), tenantID, id, req.Type, req.Content, p.ActorID())
	if err != nil {
		writeServiceError(w, err, "failed to add activity")
		return
	}
	writeJSON(w, http.StatusCreated, a)
}
