package platforms

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"MentionScanner/internal/fetch"
)

const algoliaBody = `{
  "hits": [
    {"objectID": "1001", "title": "Show HN: Acme 2.0", "story_text": "", "author": "dev", "url": "https://acme.io", "points": 50, "num_comments": 7, "created_at": "2026-08-01T10:00:00Z"},
    {"objectID": "1002", "title": "", "story_title": "Acme thread", "comment_text": "acme works for us", "author": "commenter", "created_at": "2026-08-01T11:00:00Z"}
  ]
}`

func TestHackerNewsFetchSearch(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("query"); got != "acme" {
			t.Errorf("unexpected query: %s", got)
		}
		_, _ = w.Write([]byte(algoliaBody))
	}))
	defer server.Close()

	fetcher := NewHackerNewsFetcher(server.Client(), nil)
	fetcher.baseURL = server.URL

	items, err := fetcher.Fetch(context.Background(), fetch.Request{Keywords: []string{"acme"}})
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}

	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].PlatformID != "1001" || items[0].URL != "https://acme.io" {
		t.Fatalf("unexpected first item: %+v", items[0])
	}
	// Comments without their own URL link back to the HN item page.
	if items[1].Title != "Acme thread" || items[1].URL != "https://news.ycombinator.com/item?id=1002" {
		t.Fatalf("unexpected comment normalization: %+v", items[1])
	}
}

func TestHackerNewsFetchFallsBackToNewest(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("query") != "" {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(algoliaBody))
	}))
	defer server.Close()

	fetcher := NewHackerNewsFetcher(server.Client(), nil)
	fetcher.baseURL = server.URL

	items, err := fetcher.Fetch(context.Background(), fetch.Request{Keywords: []string{"show hn"}})
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if len(items) != 1 || items[0].PlatformID != "1001" {
		t.Fatalf("expected keyword-filtered fallback, got %+v", items)
	}
}
