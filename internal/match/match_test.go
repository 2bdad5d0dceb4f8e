package match

import (
	"testing"

	"MentionScanner/internal/domain"
)

func TestContentEmptyKeywordsNeverMatch(t *testing.T) {
	t.Parallel()

	item := domain.CandidateItem{Title: "anything at all", Body: "more text"}

	res := Content(item, nil)
	if res.Matched {
		t.Fatalf("expected no match for empty keyword set")
	}
	if len(res.MatchedKeywords) != 0 {
		t.Fatalf("expected no matched keywords, got %v", res.MatchedKeywords)
	}
}

func TestContentCaseInsensitive(t *testing.T) {
	t.Parallel()

	item := domain.CandidateItem{Body: "we rewrote the frontend in react last month"}

	res := Content(item, []string{"React"})
	if !res.Matched {
		t.Fatalf("expected case-insensitive match")
	}
	if len(res.MatchedKeywords) != 1 || res.MatchedKeywords[0] != "React" {
		t.Fatalf("expected original keyword back, got %v", res.MatchedKeywords)
	}
}

func TestContentMatchesTitle(t *testing.T) {
	t.Parallel()

	item := domain.CandidateItem{Title: "New pricing announced"}

	res := Content(item, []string{"pricing"})
	if !res.Matched {
		t.Fatalf("expected match on title")
	}
	if len(res.MatchedKeywords) != 1 || res.MatchedKeywords[0] != "pricing" {
		t.Fatalf("unexpected matched keywords: %v", res.MatchedKeywords)
	}
}

func TestContentMatchesTags(t *testing.T) {
	t.Parallel()

	item := domain.CandidateItem{
		Title: "weekly thread",
		Tags:  []string{"selfhosted", "Kubernetes"},
	}

	res := Content(item, []string{"kubernetes"})
	if !res.Matched {
		t.Fatalf("expected match on tag field")
	}
}

func TestContentCollectsEveryMatchingKeyword(t *testing.T) {
	t.Parallel()

	item := domain.CandidateItem{
		Title: "Acme pricing update",
		Body:  "the new acme dashboard ships next week",
	}

	res := Content(item, []string{"acme", "pricing", "billing"})
	if !res.Matched {
		t.Fatalf("expected match")
	}
	if len(res.MatchedKeywords) != 2 {
		t.Fatalf("expected two matched keywords, got %v", res.MatchedKeywords)
	}
}

func TestContentIgnoresBlankKeywords(t *testing.T) {
	t.Parallel()

	item := domain.CandidateItem{Body: "plain content"}

	res := Content(item, []string{"  ", ""})
	if res.Matched {
		t.Fatalf("blank keywords must not match everything")
	}
}
