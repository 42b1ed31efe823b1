package adplatform

import (
	"context"
	"fmt"
	"sync"

	"github.com/hearthline/leadflow/internal/domain"
)

// MockClient is a configurable fetcher for tests and local runs. Leads maps a
// leadgen id to the submission it returns; unknown ids return a synthetic lead
// unless Err is set.
type MockClient struct {
	mu    sync.Mutex
	Leads map[string]*domain.Submission
	Err   error

	// Call tracking for assertions
	FetchCalls []string
}

func NewMockClient() *MockClient {
	return &MockClient{Leads: make(map[string]*domain.Submission)}
}

func (m *MockClient) FetchLead(ctx context.Context, accessToken string, leadgenID string) (*domain.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.FetchCalls = append(m.FetchCalls, leadgenID)
	if m.Err != nil {
		return nil, m.Err
	}
	if sub, ok := m.Leads[leadgenID]; ok {
		cp := *sub
		return &cp, nil
	}
	return &domain.Submission{
		Channel:    domain.ChannelFacebook,
		FirstName:  "Mock",
		LastName:   "Lead",
		Email:      fmt.Sprintf("lead-%s@example.com", leadgenID),
		ExternalID: leadgenID,
	}, nil
}
