package platforms

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"MentionScanner/internal/domain"
	"MentionScanner/internal/fetch"
)

const redditBaseURL = "https://www.reddit.com"

// RedditFetcher polls reddit's public JSON API. Primary strategy is a
// targeted search per keyword; on failure it falls back to the /r/all
// new listing filtered client-side.
type RedditFetcher struct {
	client  *http.Client
	baseURL string
	logger  *slog.Logger
	limit   int
}

var _ fetch.Fetcher = (*RedditFetcher)(nil)

// NewRedditFetcher wires an HTTP client; limit defaults to 100.
func NewRedditFetcher(client *http.Client, logger *slog.Logger) *RedditFetcher {
	return &RedditFetcher{
		client:  defaultClient(client),
		baseURL: redditBaseURL,
		logger:  logger,
		limit:   100,
	}
}

// Platform identifies the fetcher inside the registry.
func (r *RedditFetcher) Platform() domain.Platform {
	return domain.PlatformReddit
}

type redditListing struct {
	Data struct {
		Children []struct {
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	Name        string  `json:"name"`
	Title       string  `json:"title"`
	Selftext    string  `json:"selftext"`
	Author      string  `json:"author"`
	Permalink   string  `json:"permalink"`
	Subreddit   string  `json:"subreddit"`
	Score       int64   `json:"score"`
	NumComments int64   `json:"num_comments"`
	CreatedUTC  float64 `json:"created_utc"`
}

// Fetch runs one search request per keyword, paced, deduplicating by
// post id across keywords.
func (r *RedditFetcher) Fetch(ctx context.Context, req fetch.Request) ([]domain.CandidateItem, error) {
	if len(req.Keywords) == 0 {
		return nil, nil
	}

	items, err := r.searchByKeywords(ctx, req.Keywords)
	if err == nil {
		return items, nil
	}
	if fetch.KindOf(err) == fetch.KindQuota {
		return nil, err
	}

	r.debug("search failed, falling back to new listing", "error", err)
	fallback, fbErr := r.fetchNewListing(ctx, req.Keywords)
	if fbErr != nil {
		return nil, err
	}
	return fallback, nil
}

func (r *RedditFetcher) searchByKeywords(ctx context.Context, keywords []string) ([]domain.CandidateItem, error) {
	seen := map[string]struct{}{}
	var items []domain.CandidateItem

	for i, keyword := range keywords {
		if i > 0 {
			if err := pace(ctx); err != nil {
				return nil, fetch.NewError(fetch.KindNetwork, "%v", err)
			}
		}

		query := url.Values{}
		query.Set("q", keyword)
		query.Set("sort", "new")
		query.Set("limit", strconv.Itoa(r.limit))
		searchURL := r.baseURL + "/search.json?" + query.Encode()

		var listing redditListing
		if err := getJSON(ctx, r.client, searchURL, nil, &listing); err != nil {
			return nil, err
		}

		for _, child := range listing.Data.Children {
			post := child.Data
			if _, ok := seen[post.Name]; ok || post.Name == "" {
				continue
			}
			seen[post.Name] = struct{}{}
			items = append(items, r.normalize(post))
		}
	}

	return items, nil
}

func (r *RedditFetcher) fetchNewListing(ctx context.Context, keywords []string) ([]domain.CandidateItem, error) {
	var listing redditListing
	if err := getJSON(ctx, r.client, r.baseURL+"/r/all/new.json?limit=100", nil, &listing); err != nil {
		return nil, err
	}

	var items []domain.CandidateItem
	for _, child := range listing.Data.Children {
		post := child.Data
		if post.Name == "" || !containsAnyKeyword(keywords, post.Title, post.Selftext) {
			continue
		}
		items = append(items, r.normalize(post))
	}
	return items, nil
}

func (r *RedditFetcher) normalize(post redditPost) domain.CandidateItem {
	return domain.CandidateItem{
		PlatformID:  post.Name,
		Title:       post.Title,
		Body:        post.Selftext,
		Author:      post.Author,
		URL:         redditBaseURL + post.Permalink,
		PublishedAt: time.Unix(int64(post.CreatedUTC), 0).UTC(),
		Tags:        []string{post.Subreddit},
		Metadata: map[string]any{
			"subreddit": post.Subreddit,
			"score":     post.Score,
			"comments":  post.NumComments,
		},
	}
}

func (r *RedditFetcher) debug(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Debug(msg, args...)
	}
}
