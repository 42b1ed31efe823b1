package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/hearthline/leadflow/internal/domain"
)

var ErrInvalidPayload = errors.New("invalid payload")

// trackingKeys are the attribution parameters lifted out of a flat payload.
var trackingKeys = []string{
	"utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content",
	"gclid", "gbraid", "wbraid", "fbclid", "msclkid", "referrer", "landing_page",
}

func decodeObject(body io.Reader) (map[string]any, error) {
	dec := json.NewDecoder(body)
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if m == nil {
		return nil, fmt.Errorf("%w: expected a JSON object", ErrInvalidPayload)
	}
	return m, nil
}

// ParseWebForm reads a website form post. Field names are snake_case; a
// single "name" is split when first/last are absent. Tracking parameters may
// arrive flat or under "tracking".
func ParseWebForm(body io.Reader) (*domain.Submission, error) {
	m, err := decodeObject(body)
	if err != nil {
		return nil, err
	}

	sub := &domain.Submission{
		Channel:    domain.ChannelWebsite,
		FirstName:  field(m, "first_name", "firstName"),
		LastName:   field(m, "last_name", "lastName"),
		Email:      field(m, "email"),
		Phone:      field(m, "phone", "phone_number", "phoneNumber"),
		City:       field(m, "city"),
		Interest:   field(m, "interest"),
		Campaign:   field(m, "campaign"),
		Office:     field(m, "office"),
		Notes:      field(m, "notes", "message"),
		Source:     field(m, "source"),
		ExternalID: field(m, "external_id", "externalId"),
		Tracking:   map[string]string{},
		Raw:        m,
	}
	if sub.FirstName == "" && sub.LastName == "" {
		sub.FirstName, sub.LastName = splitName(field(m, "name", "full_name", "fullName"))
	}
	if c, ok := boolField(m, "consent"); ok {
		sub.Consent = &c
	}
	if ts := field(m, "submitted_at", "submittedAt"); ts != "" {
		t, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			return nil, fmt.Errorf("%w: submitted_at must be RFC 3339", ErrInvalidPayload)
		}
		sub.SubmittedAt = &t
	}

	for _, k := range trackingKeys {
		if v := field(m, k); v != "" {
			sub.Tracking[k] = v
		}
	}
	if nested, ok := m["tracking"].(map[string]any); ok {
		for k, v := range nested {
			if s := stringify(v); s != "" {
				sub.Tracking[k] = s
			}
		}
	}
	return sub, nil
}

// GoogleLead is a decoded Google Ads lead form webhook.
type GoogleLead struct {
	Submission *domain.Submission
	GoogleKey  string
	IsTest     bool
}

// ParseGoogleLead accepts both the snake_case and camelCase renderings of the
// lead form webhook. Column values are matched on column_id.
func ParseGoogleLead(body io.Reader) (*GoogleLead, error) {
	m, err := decodeObject(body)
	if err != nil {
		return nil, err
	}

	sub := &domain.Submission{
		Channel:    domain.ChannelGoogle,
		ExternalID: field(m, "lead_id", "leadId"),
		Tracking:   map[string]string{},
		Raw:        redactKey(m),
	}

	columns, _ := firstPresent(m, "user_column_data", "userColumnData").([]any)
	var extras []string
	for _, c := range columns {
		col, ok := c.(map[string]any)
		if !ok {
			continue
		}
		id := strings.ToUpper(field(col, "column_id", "columnId"))
		val := field(col, "string_value", "stringValue")
		if val == "" {
			continue
		}
		switch id {
		case "FULL_NAME":
			if sub.FirstName == "" && sub.LastName == "" {
				sub.FirstName, sub.LastName = splitName(val)
			}
		case "FIRST_NAME":
			sub.FirstName = val
		case "LAST_NAME":
			sub.LastName = val
		case "EMAIL", "WORK_EMAIL":
			if sub.Email == "" {
				sub.Email = val
			}
		case "PHONE_NUMBER", "WORK_PHONE":
			if sub.Phone == "" {
				sub.Phone = val
			}
		case "CITY":
			sub.City = val
		default:
			name := field(col, "column_name", "columnName")
			if name == "" {
				name = id
			}
			extras = append(extras, name+": "+val)
		}
	}
	sub.Notes = strings.Join(extras, "\n")

	if v := field(m, "gcl_id", "gclId", "gclid"); v != "" {
		sub.Tracking["gclid"] = v
	}
	if v := field(m, "campaign_id", "campaignId"); v != "" {
		sub.Tracking["google_campaign_id"] = v
		sub.Campaign = v
	}
	if v := field(m, "adgroup_id", "adgroupId"); v != "" {
		sub.Tracking["google_adgroup_id"] = v
	}
	if v := field(m, "creative_id", "creativeId"); v != "" {
		sub.Tracking["google_creative_id"] = v
	}
	if v := field(m, "form_id", "formId"); v != "" {
		sub.Tracking["google_form_id"] = v
	}

	isTest, _ := boolField(m, "is_test", "isTest")
	return &GoogleLead{
		Submission: sub,
		GoogleKey:  field(m, "google_key", "googleKey"),
		IsTest:     isTest,
	}, nil
}

// ParseFacebookWebhook extracts leadgen references from a page webhook
// delivery. Changes for other fields are ignored.
func ParseFacebookWebhook(body io.Reader) ([]domain.FacebookLeadRef, error) {
	m, err := decodeObject(body)
	if err != nil {
		return nil, err
	}

	entries, _ := m["entry"].([]any)
	var refs []domain.FacebookLeadRef
	for _, e := range entries {
		entry, ok := e.(map[string]any)
		if !ok {
			continue
		}
		changes, _ := entry["changes"].([]any)
		for _, c := range changes {
			change, ok := c.(map[string]any)
			if !ok || field(change, "field") != "leadgen" {
				continue
			}
			value, ok := change["value"].(map[string]any)
			if !ok {
				continue
			}
			ref := domain.FacebookLeadRef{
				LeadgenID: field(value, "leadgen_id", "leadgenId"),
				PageID:    field(value, "page_id", "pageId"),
				FormID:    field(value, "form_id", "formId"),
				AdID:      field(value, "ad_id", "adId"),
			}
			if ref.PageID == "" {
				ref.PageID = field(entry, "id")
			}
			if ref.LeadgenID == "" {
				continue
			}
			refs = append(refs, ref)
		}
	}
	return refs, nil
}

func firstPresent(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func field(m map[string]any, keys ...string) string {
	return strings.TrimSpace(stringify(firstPresent(m, keys...)))
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	return ""
}

func boolField(m map[string]any, keys ...string) (bool, bool) {
	switch t := firstPresent(m, keys...).(type) {
	case bool:
		return t, true
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "yes", "on", "1", "y":
			return true, true
		case "false", "no", "off", "0", "n", "":
			return false, true
		}
	case json.Number:
		return t.String() != "0", true
	}
	return false, false
}

func splitName(full string) (string, string) {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}

// redactKey drops the shared secret before the payload is kept for audit.
func redactKey(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if k == "google_key" || k == "googleKey" {
			continue
		}
		out[k] = v
	}
	return out
}
