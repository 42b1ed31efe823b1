package adplatform

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hearthline/leadflow/internal/buildconfig"
	"github.com/hearthline/leadflow/internal/domain"
)

const (
	graphBaseURL        = "https://graph.facebook.com"
	defaultGraphVersion = "v19.0"
	leadFields          = "created_time,field_data,ad_id,ad_name,campaign_id,campaign_name,form_id"
)

// FacebookClient fetches Lead Ads submissions from the Graph API.
type FacebookClient struct {
	baseURL    string
	version    string
	httpClient *http.Client
}

func NewFacebookClient(version string) *FacebookClient {
	if version == "" {
		version = defaultGraphVersion
	}
	return &FacebookClient{
		baseURL:    graphBaseURL,
		version:    version,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// SetBaseURL points the client at another host. Tests use it with httptest.
func (c *FacebookClient) SetBaseURL(u string) {
	c.baseURL = strings.TrimRight(u, "/")
}

type graphField struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

type graphLead struct {
	ID           string       `json:"id"`
	CreatedTime  string       `json:"created_time"`
	AdID         string       `json:"ad_id"`
	AdName       string       `json:"ad_name"`
	CampaignID   string       `json:"campaign_id"`
	CampaignName string       `json:"campaign_name"`
	FormID       string       `json:"form_id"`
	FieldData    []graphField `json:"field_data"`
	Error        *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error,omitempty"`
}

// graph time layout, e.g. 2024-03-01T17:04:05+0000
const graphTimeLayout = "2006-01-02T15:04:05-0700"

func (c *FacebookClient) FetchLead(ctx context.Context, accessToken string, leadgenID string) (*domain.Submission, error) {
	q := url.Values{}
	q.Set("fields", leadFields)
	q.Set("access_token", accessToken)
	endpoint := fmt.Sprintf("%s/%s/%s?%s", c.baseURL, c.version, url.PathEscape(leadgenID), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create graph request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", buildconfig.UserAgent())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("graph request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read graph response: %w", err)
	}

	var lead graphLead
	if err := json.Unmarshal(respBody, &lead); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("graph API returned status %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("unmarshal graph response: %w", err)
	}
	if lead.Error != nil {
		return nil, fmt.Errorf("graph API error %d: %s", lead.Error.Code, lead.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("graph API returned status %d", resp.StatusCode)
	}

	return lead.toSubmission(leadgenID), nil
}

func (l *graphLead) toSubmission(leadgenID string) *domain.Submission {
	sub := &domain.Submission{
		Channel:    domain.ChannelFacebook,
		ExternalID: leadgenID,
		Campaign:   l.CampaignName,
		Tracking:   map[string]string{},
		Raw:        map[string]any{},
	}

	var extras []string
	var fullName string
	for _, f := range l.FieldData {
		if len(f.Values) == 0 {
			continue
		}
		val := strings.TrimSpace(f.Values[0])
		sub.Raw[f.Name] = val
		switch strings.ToLower(f.Name) {
		case "full_name":
			fullName = val
		case "first_name":
			sub.FirstName = val
		case "last_name":
			sub.LastName = val
		case "email":
			sub.Email = val
		case "phone_number", "phone":
			sub.Phone = val
		case "city":
			sub.City = val
		default:
			extras = append(extras, f.Name+": "+val)
		}
	}
	if sub.FirstName == "" && sub.LastName == "" && fullName != "" {
		parts := strings.Fields(fullName)
		if len(parts) > 0 {
			sub.FirstName = parts[0]
			sub.LastName = strings.Join(parts[1:], " ")
		}
	}
	sub.Notes = strings.Join(extras, "\n")

	if l.CreatedTime != "" {
		if t, err := time.Parse(graphTimeLayout, l.CreatedTime); err == nil {
			sub.SubmittedAt = &t
		}
	}

	setTracking(sub.Tracking, "fb_ad_id", l.AdID)
	setTracking(sub.Tracking, "fb_ad_name", l.AdName)
	setTracking(sub.Tracking, "fb_campaign_id", l.CampaignID)
	setTracking(sub.Tracking, "fb_form_id", l.FormID)
	return sub
}

func setTracking(m map[string]string, k, v string) {
	if v != "" {
		m[k] = v
	}
}
