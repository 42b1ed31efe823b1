package service

import (
	"strings"
	"unicode"

	"github.com/hearthline/leadflow/internal/domain"
)

// NormalizeEmail lowercases and trims; an empty result means "absent".
func NormalizeEmail(raw string) *string {
	e := strings.ToLower(strings.TrimSpace(raw))
	if e == "" {
		return nil
	}
	return &e
}

// NormalizePhone reduces a phone number to an E.164-like form. An explicit
// leading + keeps its country code as written. Without one, ten digits is a
// North American number and gets +1. Fewer than eight or more than fifteen
// digits is treated as absent.
func NormalizePhone(raw string) *string {
	trimmed := strings.TrimSpace(raw)
	var digits strings.Builder
	for _, r := range trimmed {
		if unicode.IsDigit(r) {
			digits.WriteRune(r)
		}
	}
	d := digits.String()

	var out string
	switch {
	case len(d) < 8 || len(d) > 15:
		return nil
	case strings.HasPrefix(trimmed, "+"):
		out = "+" + d
	case len(d) == 10:
		out = "+1" + d
	default:
		out = "+" + d
	}
	return &out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// normalizeSubmission trims every text field and canonicalizes the contact
// fields in place.
func normalizeSubmission(sub *domain.Submission) {
	sub.FirstName = strings.TrimSpace(sub.FirstName)
	sub.LastName = strings.TrimSpace(sub.LastName)
	sub.City = strings.TrimSpace(sub.City)
	sub.Interest = strings.TrimSpace(sub.Interest)
	sub.Campaign = strings.TrimSpace(sub.Campaign)
	sub.Office = strings.TrimSpace(sub.Office)
	sub.Notes = strings.TrimSpace(sub.Notes)
	sub.Source = strings.ToLower(strings.TrimSpace(sub.Source))
	sub.Email = deref(NormalizeEmail(sub.Email))
	sub.Phone = deref(NormalizePhone(sub.Phone))

	if len(sub.Tracking) > 0 {
		cleaned := make(map[string]string, len(sub.Tracking))
		for k, v := range sub.Tracking {
			k = strings.ToLower(strings.TrimSpace(k))
			v = strings.TrimSpace(v)
			if k != "" && v != "" {
				cleaned[k] = v
			}
		}
		sub.Tracking = cleaned
	}
}
