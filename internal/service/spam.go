package service

import (
	"sort"
	"strings"

	"github.com/hearthline/leadflow/internal/domain"
)

// ClassifySpam matches tenant keywords against every text value of the
// submission, free-text and raw payload included. The first keyword found
// wins; there is no scoring.
func ClassifySpam(keywords []string, sub *domain.Submission) (bool, string) {
	if len(keywords) == 0 {
		return false, ""
	}

	haystack := strings.ToLower(submissionText(sub))
	for _, kw := range keywords {
		needle := strings.ToLower(strings.TrimSpace(kw))
		if needle == "" {
			continue
		}
		if strings.Contains(haystack, needle) {
			return true, kw
		}
	}
	return false, ""
}

// submissionText concatenates all textual values, separated by newlines so a
// keyword never matches across two fields.
func submissionText(sub *domain.Submission) string {
	var b strings.Builder
	add := func(s string) {
		if s != "" {
			b.WriteString(s)
			b.WriteByte('\n')
		}
	}

	add(sub.FirstName)
	add(sub.LastName)
	add(sub.Email)
	add(sub.Phone)
	add(sub.City)
	add(sub.Interest)
	add(sub.Campaign)
	add(sub.Office)
	add(sub.Notes)
	add(sub.Source)

	keys := make([]string, 0, len(sub.Tracking))
	for k := range sub.Tracking {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		add(sub.Tracking[k])
	}

	appendRawText(&b, sub.Raw)
	return b.String()
}

func appendRawText(b *strings.Builder, v any) {
	switch val := v.(type) {
	case string:
		if val != "" {
			b.WriteString(val)
			b.WriteByte('\n')
		}
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			appendRawText(b, val[k])
		}
	case []any:
		for _, item := range val {
			appendRawText(b, item)
		}
	}
}
