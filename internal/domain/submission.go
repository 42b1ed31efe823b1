package domain

import "time"

type Channel string

const (
	ChannelWebsite  Channel = "website"
	ChannelGoogle   Channel = "google"
	ChannelFacebook Channel = "facebook"
	ChannelManual   Channel = "manual"
)

// DefaultSource is the first-touch source used when neither an explicit
// source nor utm_source was supplied.
func (c Channel) DefaultSource() string {
	switch c {
	case ChannelGoogle:
		return "google"
	case ChannelFacebook:
		return "facebook"
	case ChannelManual:
		return "manual"
	default:
		return "website"
	}
}

// Submission is the single internal shape every ingestion path normalizes to.
// Empty strings mean "not provided".
type Submission struct {
	Channel    Channel
	FirstName  string
	LastName   string
	Email      string
	Phone      string
	City       string
	Interest   string
	Campaign   string
	Office     string
	Notes      string
	Source     string
	Consent    *bool
	ExternalID string

	// Tracking holds utm_* and click-id parameters observed at this touch-point.
	Tracking map[string]string

	// SubmittedAt backdates a backfill import. Nil means now.
	SubmittedAt *time.Time

	Raw map[string]any
}

func (s *Submission) HasTracking() bool {
	for _, v := range s.Tracking {
		if v != "" {
			return true
		}
	}
	return false
}

func (s *Submission) HasContact() bool {
	return s.Email != "" || s.Phone != ""
}
