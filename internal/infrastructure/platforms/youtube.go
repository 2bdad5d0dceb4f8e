package platforms

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"MentionScanner/internal/domain"
	"MentionScanner/internal/fetch"
)

const youtubeAPIBaseURL = "https://www.googleapis.com/youtube/v3"

var videoIDExpr = regexp.MustCompile(`(?:v=|youtu\.be/|/shorts/)([A-Za-z0-9_-]{6,})`)

// YouTubeFetcher polls comment threads for a monitored video. The video
// is resolved from the monitor's explicit youtube URL or a keyword that
// is a youtube link; without one the fetch yields nothing. Primary
// strategy searches comments per keyword via searchTerms; fallback is
// the plain newest-comments listing filtered client-side.
type YouTubeFetcher struct {
	client  *http.Client
	baseURL string
	apiKey  string
	logger  *slog.Logger
}

var _ fetch.Fetcher = (*YouTubeFetcher)(nil)

// NewYouTubeFetcher wires an HTTP client and the Data API key.
func NewYouTubeFetcher(client *http.Client, apiKey string, logger *slog.Logger) *YouTubeFetcher {
	return &YouTubeFetcher{
		client:  defaultClient(client),
		baseURL: youtubeAPIBaseURL,
		apiKey:  apiKey,
		logger:  logger,
	}
}

// Platform identifies the fetcher inside the registry.
func (y *YouTubeFetcher) Platform() domain.Platform {
	return domain.PlatformYouTube
}

type commentThreadsResponse struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			TopLevelComment struct {
				Snippet struct {
					TextDisplay string `json:"textDisplay"`
					Author      string `json:"authorDisplayName"`
					LikeCount   int64  `json:"likeCount"`
					PublishedAt string `json:"publishedAt"`
				} `json:"snippet"`
			} `json:"topLevelComment"`
		} `json:"snippet"`
	} `json:"items"`
}

// Fetch retrieves comment threads for the resolved video.
func (y *YouTubeFetcher) Fetch(ctx context.Context, req fetch.Request) ([]domain.CandidateItem, error) {
	target := resolveTarget(req, "youtube.com", "youtu.be")
	if target == "" {
		return nil, nil
	}
	if y.apiKey == "" {
		return nil, fetch.NewError(fetch.KindAuth, "youtube api key is not configured")
	}

	videoID := extractVideoID(target)
	if videoID == "" {
		return nil, fetch.NewError(fetch.KindMalformed, "cannot extract video id from %s", target)
	}

	items, err := y.searchComments(ctx, videoID, req.Keywords)
	if err == nil {
		return items, nil
	}
	if fetch.KindOf(err) == fetch.KindQuota {
		return nil, err
	}

	if y.logger != nil {
		y.logger.Debug("comment search failed, falling back to newest comments", "video", videoID, "error", err)
	}
	fallback, fbErr := y.fetchNewestComments(ctx, videoID, req.Keywords)
	if fbErr != nil {
		return nil, err
	}
	return fallback, nil
}

func (y *YouTubeFetcher) searchComments(ctx context.Context, videoID string, keywords []string) ([]domain.CandidateItem, error) {
	seen := map[string]struct{}{}
	var items []domain.CandidateItem

	for i, keyword := range keywords {
		if i > 0 {
			if err := pace(ctx); err != nil {
				return nil, fetch.NewError(fetch.KindNetwork, "%v", err)
			}
		}

		query := y.threadQuery(videoID)
		query.Set("searchTerms", keyword)

		var resp commentThreadsResponse
		if err := getJSON(ctx, y.client, y.baseURL+"/commentThreads?"+query.Encode(), nil, &resp); err != nil {
			return nil, err
		}
		y.collect(&items, seen, resp, videoID)
	}

	return items, nil
}

func (y *YouTubeFetcher) fetchNewestComments(ctx context.Context, videoID string, keywords []string) ([]domain.CandidateItem, error) {
	var resp commentThreadsResponse
	if err := getJSON(ctx, y.client, y.baseURL+"/commentThreads?"+y.threadQuery(videoID).Encode(), nil, &resp); err != nil {
		return nil, err
	}

	seen := map[string]struct{}{}
	var items []domain.CandidateItem
	y.collect(&items, seen, resp, videoID)

	filtered := items[:0]
	for _, item := range items {
		if containsAnyKeyword(keywords, item.Body) {
			filtered = append(filtered, item)
		}
	}
	return filtered, nil
}

func (y *YouTubeFetcher) threadQuery(videoID string) url.Values {
	query := url.Values{}
	query.Set("part", "snippet")
	query.Set("videoId", videoID)
	query.Set("order", "time")
	query.Set("maxResults", "100")
	query.Set("key", y.apiKey)
	return query
}

func (y *YouTubeFetcher) collect(items *[]domain.CandidateItem, seen map[string]struct{}, resp commentThreadsResponse, videoID string) {
	for _, thread := range resp.Items {
		if _, ok := seen[thread.ID]; ok || thread.ID == "" {
			continue
		}
		seen[thread.ID] = struct{}{}

		snippet := thread.Snippet.TopLevelComment.Snippet
		publishedAt := time.Now().UTC()
		if parsed, err := time.Parse(time.RFC3339, snippet.PublishedAt); err == nil {
			publishedAt = parsed
		}

		*items = append(*items, domain.CandidateItem{
			PlatformID:  thread.ID,
			Body:        snippet.TextDisplay,
			Author:      snippet.Author,
			URL:         "https://www.youtube.com/watch?v=" + videoID + "&lc=" + thread.ID,
			PublishedAt: publishedAt,
			Metadata: map[string]any{
				"video_id": videoID,
				"likes":    snippet.LikeCount,
			},
		})
	}
}

func extractVideoID(target string) string {
	match := videoIDExpr.FindStringSubmatch(target)
	if len(match) < 2 {
		return ""
	}
	return match[1]
}
