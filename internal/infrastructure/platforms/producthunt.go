package platforms

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"MentionScanner/internal/domain"
	"MentionScanner/internal/fetch"
)

const productHuntGraphQLURL = "https://api.producthunt.com/v2/api/graphql"

// ProductHuntFetcher queries the Product Hunt GraphQL API. Primary
// strategy asks for posts under each keyword's topic slug; fallback is
// the plain newest-posts listing filtered client-side.
type ProductHuntFetcher struct {
	client   *http.Client
	endpoint string
	token    string
	logger   *slog.Logger
}

var _ fetch.Fetcher = (*ProductHuntFetcher)(nil)

// NewProductHuntFetcher wires an HTTP client and the API token.
func NewProductHuntFetcher(client *http.Client, token string, logger *slog.Logger) *ProductHuntFetcher {
	return &ProductHuntFetcher{
		client:   defaultClient(client),
		endpoint: productHuntGraphQLURL,
		token:    token,
		logger:   logger,
	}
}

// Platform identifies the fetcher inside the registry.
func (p *ProductHuntFetcher) Platform() domain.Platform {
	return domain.PlatformProductHunt
}

const topicPostsQuery = `query($topic: String!) {
  posts(first: 50, order: NEWEST, topic: $topic) {
    edges { node { id name tagline description url votesCount createdAt user { name } } }
  }
}`

const newestPostsQuery = `query {
  posts(first: 50, order: NEWEST) {
    edges { node { id name tagline description url votesCount createdAt user { name } } }
  }
}`

type productHuntResponse struct {
	Data struct {
		Posts struct {
			Edges []struct {
				Node productHuntPost `json:"node"`
			} `json:"edges"`
		} `json:"posts"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

type productHuntPost struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Tagline     string `json:"tagline"`
	Description string `json:"description"`
	URL         string `json:"url"`
	VotesCount  int64  `json:"votesCount"`
	CreatedAt   string `json:"createdAt"`
	User        struct {
		Name string `json:"name"`
	} `json:"user"`
}

// Fetch queries the topic feed per keyword with pacing; on failure it
// falls back to the newest posts filtered by keyword containment.
func (p *ProductHuntFetcher) Fetch(ctx context.Context, req fetch.Request) ([]domain.CandidateItem, error) {
	if len(req.Keywords) == 0 {
		return nil, nil
	}
	if p.token == "" {
		return nil, fetch.NewError(fetch.KindAuth, "product hunt token is not configured")
	}

	items, err := p.fetchByTopics(ctx, req.Keywords)
	if err == nil {
		return items, nil
	}
	if fetch.KindOf(err) == fetch.KindQuota {
		return nil, err
	}

	if p.logger != nil {
		p.logger.Debug("topic query failed, falling back to newest posts", "error", err)
	}
	fallback, fbErr := p.fetchNewest(ctx, req.Keywords)
	if fbErr != nil {
		return nil, err
	}
	return fallback, nil
}

func (p *ProductHuntFetcher) fetchByTopics(ctx context.Context, keywords []string) ([]domain.CandidateItem, error) {
	seen := map[string]struct{}{}
	var items []domain.CandidateItem

	for i, keyword := range keywords {
		if i > 0 {
			if err := pace(ctx); err != nil {
				return nil, fetch.NewError(fetch.KindNetwork, "%v", err)
			}
		}

		resp, err := p.query(ctx, topicPostsQuery, map[string]any{"topic": topicSlug(keyword)})
		if err != nil {
			return nil, err
		}

		for _, edge := range resp.Data.Posts.Edges {
			if _, ok := seen[edge.Node.ID]; ok || edge.Node.ID == "" {
				continue
			}
			seen[edge.Node.ID] = struct{}{}
			items = append(items, p.normalize(edge.Node))
		}
	}

	return items, nil
}

func (p *ProductHuntFetcher) fetchNewest(ctx context.Context, keywords []string) ([]domain.CandidateItem, error) {
	resp, err := p.query(ctx, newestPostsQuery, nil)
	if err != nil {
		return nil, err
	}

	var items []domain.CandidateItem
	for _, edge := range resp.Data.Posts.Edges {
		post := edge.Node
		if post.ID == "" || !containsAnyKeyword(keywords, post.Name, post.Tagline, post.Description) {
			continue
		}
		items = append(items, p.normalize(post))
	}
	return items, nil
}

func (p *ProductHuntFetcher) query(ctx context.Context, query string, variables map[string]any) (*productHuntResponse, error) {
	body, err := json.Marshal(map[string]any{"query": query, "variables": variables})
	if err != nil {
		return nil, fetch.NewError(fetch.KindMalformed, "marshal graphql request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fetch.NewError(fetch.KindNetwork, "build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fetch.NewError(fetch.KindNetwork, "graphql request: %w", err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp); err != nil {
		return nil, err
	}

	var decoded productHuntResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fetch.NewError(fetch.KindMalformed, "decode graphql response: %w", err)
	}
	if len(decoded.Errors) > 0 {
		return nil, fetch.NewError(fetch.KindMalformed, "graphql error: %s", decoded.Errors[0].Message)
	}
	return &decoded, nil
}

func (p *ProductHuntFetcher) normalize(post productHuntPost) domain.CandidateItem {
	publishedAt := time.Now().UTC()
	if parsed, err := time.Parse(time.RFC3339, post.CreatedAt); err == nil {
		publishedAt = parsed
	}

	return domain.CandidateItem{
		PlatformID:  post.ID,
		Title:       post.Name,
		Body:        strings.TrimSpace(post.Tagline + "\n" + post.Description),
		Author:      post.User.Name,
		URL:         post.URL,
		PublishedAt: publishedAt,
		Metadata:    map[string]any{"votes": post.VotesCount},
	}
}

func topicSlug(keyword string) string {
	slug := strings.ToLower(strings.TrimSpace(keyword))
	return strings.ReplaceAll(slug, " ", "-")
}
