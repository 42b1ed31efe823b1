package adplatform

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hearthline/leadflow/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFacebookClient_FetchLead(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v19.0/123456", r.URL.Path)
		assert.Equal(t, "page-token", r.URL.Query().Get("access_token"))
		assert.Contains(t, r.URL.Query().Get("fields"), "field_data")

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "123456",
			"created_time": "2024-03-01T17:04:05+0000",
			"ad_id": "ad-1",
			"campaign_name": "Spring Foster Drive",
			"form_id": "form-9",
			"field_data": [
				{"name": "full_name", "values": ["Jane Q Doe"]},
				{"name": "email", "values": ["Jane@Example.com"]},
				{"name": "phone_number", "values": ["(512) 555-0100"]},
				{"name": "city", "values": ["Austin"]},
				{"name": "household_size", "values": ["4"]}
			]
		}`))
	}))
	defer srv.Close()

	c := NewFacebookClient("")
	c.SetBaseURL(srv.URL)

	sub, err := c.FetchLead(context.Background(), "page-token", "123456")
	require.NoError(t, err)

	assert.Equal(t, domain.ChannelFacebook, sub.Channel)
	assert.Equal(t, "Jane", sub.FirstName)
	assert.Equal(t, "Q Doe", sub.LastName)
	assert.Equal(t, "Jane@Example.com", sub.Email)
	assert.Equal(t, "(512) 555-0100", sub.Phone)
	assert.Equal(t, "Austin", sub.City)
	assert.Equal(t, "Spring Foster Drive", sub.Campaign)
	assert.Equal(t, "123456", sub.ExternalID)
	assert.Equal(t, "household_size: 4", sub.Notes)
	assert.Equal(t, "ad-1", sub.Tracking["fb_ad_id"])
	assert.Equal(t, "form-9", sub.Tracking["fb_form_id"])
	require.NotNil(t, sub.SubmittedAt)
	assert.True(t, sub.SubmittedAt.Equal(time.Date(2024, 3, 1, 17, 4, 5, 0, time.UTC)))
}

func TestFacebookClient_FetchLead_GraphError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": {"message": "Invalid OAuth access token.", "code": 190}}`))
	}))
	defer srv.Close()

	c := NewFacebookClient("v19.0")
	c.SetBaseURL(srv.URL)

	_, err := c.FetchLead(context.Background(), "bad", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "190")
}

func TestFacebookClient_FetchLead_NonJSONFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	}))
	defer srv.Close()

	c := NewFacebookClient("v19.0")
	c.SetBaseURL(srv.URL)

	_, err := c.FetchLead(context.Background(), "tok", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestNewFetcher(t *testing.T) {
	f, err := NewFetcher(ProviderMock, "")
	require.NoError(t, err)
	assert.IsType(t, &MockClient{}, f)

	f, err = NewFetcher(ProviderFacebook, "v20.0")
	require.NoError(t, err)
	assert.IsType(t, &FacebookClient{}, f)

	_, err = NewFetcher("myspace", "")
	assert.Error(t, err)
}
