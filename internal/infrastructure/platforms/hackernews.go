package platforms

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"MentionScanner/internal/domain"
	"MentionScanner/internal/fetch"
)

const algoliaBaseURL = "https://hn.algolia.com/api/v1"

// HackerNewsFetcher queries the Algolia HN search API. Primary strategy
// is search_by_date per keyword; fallback is the plain newest-stories
// listing filtered client-side.
type HackerNewsFetcher struct {
	client  *http.Client
	baseURL string
	logger  *slog.Logger
}

var _ fetch.Fetcher = (*HackerNewsFetcher)(nil)

// NewHackerNewsFetcher wires an HTTP client.
func NewHackerNewsFetcher(client *http.Client, logger *slog.Logger) *HackerNewsFetcher {
	return &HackerNewsFetcher{
		client:  defaultClient(client),
		baseURL: algoliaBaseURL,
		logger:  logger,
	}
}

// Platform identifies the fetcher inside the registry.
func (h *HackerNewsFetcher) Platform() domain.Platform {
	return domain.PlatformHackerNews
}

type algoliaResponse struct {
	Hits []algoliaHit `json:"hits"`
}

type algoliaHit struct {
	ObjectID    string `json:"objectID"`
	Title       string `json:"title"`
	StoryTitle  string `json:"story_title"`
	StoryText   string `json:"story_text"`
	CommentText string `json:"comment_text"`
	Author      string `json:"author"`
	URL         string `json:"url"`
	Points      int64  `json:"points"`
	NumComments int64  `json:"num_comments"`
	CreatedAt   string `json:"created_at"`
}

// Fetch searches stories and comments per keyword with pacing; on
// search failure it falls back to the newest-stories listing.
func (h *HackerNewsFetcher) Fetch(ctx context.Context, req fetch.Request) ([]domain.CandidateItem, error) {
	if len(req.Keywords) == 0 {
		return nil, nil
	}

	items, err := h.search(ctx, req.Keywords)
	if err == nil {
		return items, nil
	}
	if fetch.KindOf(err) == fetch.KindQuota {
		return nil, err
	}

	if h.logger != nil {
		h.logger.Debug("search failed, falling back to newest listing", "error", err)
	}
	fallback, fbErr := h.fetchNewest(ctx, req.Keywords)
	if fbErr != nil {
		return nil, err
	}
	return fallback, nil
}

func (h *HackerNewsFetcher) search(ctx context.Context, keywords []string) ([]domain.CandidateItem, error) {
	seen := map[string]struct{}{}
	var items []domain.CandidateItem

	for i, keyword := range keywords {
		if i > 0 {
			if err := pace(ctx); err != nil {
				return nil, fetch.NewError(fetch.KindNetwork, "%v", err)
			}
		}

		query := url.Values{}
		query.Set("query", keyword)
		query.Set("tags", "(story,comment)")
		query.Set("hitsPerPage", "100")

		var resp algoliaResponse
		if err := getJSON(ctx, h.client, h.baseURL+"/search_by_date?"+query.Encode(), nil, &resp); err != nil {
			return nil, err
		}

		for _, hit := range resp.Hits {
			if _, ok := seen[hit.ObjectID]; ok || hit.ObjectID == "" {
				continue
			}
			seen[hit.ObjectID] = struct{}{}
			items = append(items, h.normalize(hit))
		}
	}

	return items, nil
}

func (h *HackerNewsFetcher) fetchNewest(ctx context.Context, keywords []string) ([]domain.CandidateItem, error) {
	var resp algoliaResponse
	if err := getJSON(ctx, h.client, h.baseURL+"/search_by_date?tags=story&hitsPerPage=100", nil, &resp); err != nil {
		return nil, err
	}

	var items []domain.CandidateItem
	for _, hit := range resp.Hits {
		if hit.ObjectID == "" || !containsAnyKeyword(keywords, hit.Title, hit.StoryText) {
			continue
		}
		items = append(items, h.normalize(hit))
	}
	return items, nil
}

func (h *HackerNewsFetcher) normalize(hit algoliaHit) domain.CandidateItem {
	title := hit.Title
	if title == "" {
		title = hit.StoryTitle
	}
	body := hit.StoryText
	if body == "" {
		body = hit.CommentText
	}
	itemURL := hit.URL
	if itemURL == "" {
		itemURL = fmt.Sprintf("https://news.ycombinator.com/item?id=%s", hit.ObjectID)
	}

	publishedAt := time.Now().UTC()
	if parsed, err := time.Parse(time.RFC3339, hit.CreatedAt); err == nil {
		publishedAt = parsed
	}

	return domain.CandidateItem{
		PlatformID:  hit.ObjectID,
		Title:       title,
		Body:        body,
		Author:      hit.Author,
		URL:         itemURL,
		PublishedAt: publishedAt,
		Metadata: map[string]any{
			"points":   hit.Points,
			"comments": hit.NumComments,
		},
	}
}
