package adplatform

import (
	"fmt"

	"github.com/hearthline/leadflow/internal/domain"
)

// Provider constants
const (
	ProviderFacebook = "facebook"
	ProviderMock     = "mock"
)

// NewFetcher creates the lead-form fetcher for the named provider.
func NewFetcher(provider, graphVersion string) (domain.LeadFormFetcher, error) {
	switch provider {
	case ProviderFacebook, "":
		return NewFacebookClient(graphVersion), nil
	case ProviderMock:
		return NewMockClient(), nil
	default:
		return nil, fmt.Errorf("unknown ad platform: %s (valid options: facebook, mock)", provider)
	}
}
