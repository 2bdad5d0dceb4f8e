package match

import (
	"strings"

	"MentionScanner/internal/domain"
)

// Content decides whether a candidate item satisfies a monitor's
// keywords. A keyword matches when it appears as a case-insensitive
// substring of the item's title, body, or any tag. An empty keyword set
// never matches. The matcher only sees the normalized item shape, so
// the same logic serves every platform fetcher.
func Content(item domain.CandidateItem, keywords []string) domain.MatchResult {
	if len(keywords) == 0 {
		return domain.MatchResult{}
	}

	fields := make([]string, 0, 2+len(item.Tags))
	fields = append(fields, strings.ToLower(item.Title), strings.ToLower(item.Body))
	for _, tag := range item.Tags {
		fields = append(fields, strings.ToLower(tag))
	}

	var matched []string
	for _, keyword := range keywords {
		needle := strings.ToLower(strings.TrimSpace(keyword))
		if needle == "" {
			continue
		}
		for _, field := range fields {
			if strings.Contains(field, needle) {
				matched = append(matched, keyword)
				break
			}
		}
	}

	return domain.MatchResult{
		Matched:         len(matched) > 0,
		MatchedKeywords: matched,
	}
}
