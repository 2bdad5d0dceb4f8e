package platforms

import (
	"context"
	"encoding/xml"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"MentionScanner/internal/domain"
	"MentionScanner/internal/fetch"
)

const mediumBaseURL = "https://medium.com"

// MediumFetcher polls medium tag feeds. Primary strategy is the RSS
// feed for each keyword's tag; fallback scrapes the tag page HTML.
type MediumFetcher struct {
	client  *http.Client
	baseURL string
	logger  *slog.Logger
}

var _ fetch.Fetcher = (*MediumFetcher)(nil)

// NewMediumFetcher wires an HTTP client.
func NewMediumFetcher(client *http.Client, logger *slog.Logger) *MediumFetcher {
	return &MediumFetcher{
		client:  defaultClient(client),
		baseURL: mediumBaseURL,
		logger:  logger,
	}
}

// Platform identifies the fetcher inside the registry.
func (m *MediumFetcher) Platform() domain.Platform {
	return domain.PlatformMedium
}

type mediumFeed struct {
	Channel struct {
		Items []struct {
			GUID        string   `xml:"guid"`
			Title       string   `xml:"title"`
			Link        string   `xml:"link"`
			Creator     string   `xml:"creator"`
			PubDate     string   `xml:"pubDate"`
			Description string   `xml:"description"`
			Categories  []string `xml:"category"`
		} `xml:"item"`
	} `xml:"channel"`
}

// Fetch reads the tag feed per keyword with pacing, deduplicating by
// post guid across tags.
func (m *MediumFetcher) Fetch(ctx context.Context, req fetch.Request) ([]domain.CandidateItem, error) {
	if len(req.Keywords) == 0 {
		return nil, nil
	}

	seen := map[string]struct{}{}
	var items []domain.CandidateItem
	var lastErr error

	for i, keyword := range req.Keywords {
		if i > 0 {
			if err := pace(ctx); err != nil {
				return nil, fetch.NewError(fetch.KindNetwork, "%v", err)
			}
		}

		tag := tagSlug(keyword)
		feedItems, err := m.fetchTagFeed(ctx, tag)
		if err != nil {
			if fetch.KindOf(err) == fetch.KindQuota {
				return nil, err
			}
			m.debug("tag feed failed, falling back to tag page", "tag", tag, "error", err)
			feedItems, err = m.scrapeTagPage(ctx, tag)
			if err != nil {
				lastErr = err
				continue
			}
		}

		for _, item := range feedItems {
			if _, ok := seen[item.PlatformID]; ok || item.PlatformID == "" {
				continue
			}
			seen[item.PlatformID] = struct{}{}
			items = append(items, item)
		}
	}

	if len(items) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return items, nil
}

func (m *MediumFetcher) fetchTagFeed(ctx context.Context, tag string) ([]domain.CandidateItem, error) {
	feedURL := m.baseURL + "/feed/tag/" + url.PathEscape(tag)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fetch.NewError(fetch.KindNetwork, "build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fetch.NewError(fetch.KindNetwork, "request feed: %w", err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp); err != nil {
		return nil, err
	}

	var feed mediumFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fetch.NewError(fetch.KindMalformed, "decode feed %s: %w", feedURL, err)
	}

	items := make([]domain.CandidateItem, 0, len(feed.Channel.Items))
	for _, entry := range feed.Channel.Items {
		publishedAt := time.Now().UTC()
		if parsed, err := time.Parse(time.RFC1123, entry.PubDate); err == nil {
			publishedAt = parsed
		} else if parsed, err := time.Parse(time.RFC1123Z, entry.PubDate); err == nil {
			publishedAt = parsed
		}

		items = append(items, domain.CandidateItem{
			PlatformID:  postID(entry.GUID, entry.Link),
			Title:       entry.Title,
			Body:        stripHTML(entry.Description),
			Author:      entry.Creator,
			URL:         entry.Link,
			PublishedAt: publishedAt,
			Tags:        entry.Categories,
			Metadata:    map[string]any{"tag": tag},
		})
	}
	return items, nil
}

func (m *MediumFetcher) scrapeTagPage(ctx context.Context, tag string) ([]domain.CandidateItem, error) {
	pageURL := m.baseURL + "/tag/" + url.PathEscape(tag)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fetch.NewError(fetch.KindNetwork, "build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fetch.NewError(fetch.KindNetwork, "request tag page: %w", err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp); err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fetch.NewError(fetch.KindMalformed, "parse tag page: %w", err)
	}

	var items []domain.CandidateItem
	doc.Find("article").Each(func(_ int, article *goquery.Selection) {
		link := article.Find("a[href*='/p/'], a[data-post-id]").First()
		href, _ := link.Attr("href")
		if href == "" {
			return
		}
		if !strings.HasPrefix(href, "http") {
			href = m.baseURL + href
		}

		items = append(items, domain.CandidateItem{
			PlatformID:  postID("", href),
			Title:       strings.TrimSpace(article.Find("h2").First().Text()),
			Body:        strings.TrimSpace(article.Find("h3, p").First().Text()),
			URL:         href,
			PublishedAt: time.Now().UTC(),
			Tags:        []string{tag},
			Metadata:    map[string]any{"tag": tag},
		})
	})

	if len(items) == 0 {
		return nil, fetch.NewError(fetch.KindMalformed, "no posts found at %s", pageURL)
	}
	return items, nil
}

// postID derives a stable identifier: the trailing hex slug medium puts
// on both guids and post URLs.
func postID(guid, link string) string {
	for _, candidate := range []string{guid, link} {
		if candidate == "" {
			continue
		}
		trimmed := strings.TrimSuffix(candidate, "/")
		if q := strings.IndexByte(trimmed, '?'); q >= 0 {
			trimmed = trimmed[:q]
		}
		if idx := strings.LastIndexByte(trimmed, '/'); idx >= 0 {
			trimmed = trimmed[idx+1:]
		}
		if idx := strings.LastIndexByte(trimmed, '-'); idx >= 0 {
			trimmed = trimmed[idx+1:]
		}
		if trimmed != "" {
			return trimmed
		}
	}
	return link
}

func stripHTML(fragment string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return fragment
	}
	return strings.TrimSpace(doc.Text())
}

func (m *MediumFetcher) debug(msg string, args ...any) {
	if m.logger != nil {
		m.logger.Debug(msg, args...)
	}
}

func tagSlug(keyword string) string {
	slug := strings.ToLower(strings.TrimSpace(keyword))
	return strings.ReplaceAll(slug, " ", "-")
}
