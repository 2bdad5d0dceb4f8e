package platforms

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"MentionScanner/internal/domain"
	"MentionScanner/internal/fetch"
)

// TrustpilotFetcher scrapes a company's review page. The page is
// resolved from the monitor's explicit trustpilot URL or a keyword that
// is a trustpilot link; without one the fetch yields nothing. Primary
// strategy reads the embedded __NEXT_DATA__ JSON; fallback parses the
// review DOM directly.
type TrustpilotFetcher struct {
	client *http.Client
	logger *slog.Logger
}

var _ fetch.Fetcher = (*TrustpilotFetcher)(nil)

// NewTrustpilotFetcher wires an HTTP client.
func NewTrustpilotFetcher(client *http.Client, logger *slog.Logger) *TrustpilotFetcher {
	return &TrustpilotFetcher{client: defaultClient(client), logger: logger}
}

// Platform identifies the fetcher inside the registry.
func (t *TrustpilotFetcher) Platform() domain.Platform {
	return domain.PlatformTrustpilot
}

type trustpilotPageData struct {
	Props struct {
		PageProps struct {
			Reviews []trustpilotReview `json:"reviews"`
		} `json:"pageProps"`
	} `json:"props"`
}

type trustpilotReview struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Text     string `json:"text"`
	Rating   int64  `json:"rating"`
	Consumer struct {
		DisplayName string `json:"displayName"`
	} `json:"consumer"`
	Dates struct {
		PublishedDate string `json:"publishedDate"`
	} `json:"dates"`
}

// Fetch downloads the review page and extracts reviews.
func (t *TrustpilotFetcher) Fetch(ctx context.Context, req fetch.Request) ([]domain.CandidateItem, error) {
	target := resolveTarget(req, "trustpilot.com")
	if target == "" {
		return nil, nil
	}

	doc, err := t.fetchDocument(ctx, target)
	if err != nil {
		return nil, err
	}

	items, err := t.parseEmbeddedJSON(doc, target)
	if err == nil {
		// A readable page with zero reviews is a valid empty answer.
		return items, nil
	}
	if t.logger != nil {
		t.logger.Debug("embedded review data unreadable, falling back to dom parse", "url", target, "error", err)
	}

	return t.parseReviewDOM(doc, target)
}

func (t *TrustpilotFetcher) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fetch.NewError(fetch.KindNetwork, "build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fetch.NewError(fetch.KindNetwork, "request page: %w", err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp); err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fetch.NewError(fetch.KindMalformed, "parse page: %w", err)
	}
	return doc, nil
}

func (t *TrustpilotFetcher) parseEmbeddedJSON(doc *goquery.Document, pageURL string) ([]domain.CandidateItem, error) {
	raw := doc.Find("script#__NEXT_DATA__").First().Text()
	if strings.TrimSpace(raw) == "" {
		return nil, fetch.NewError(fetch.KindMalformed, "page carries no embedded data")
	}

	var page trustpilotPageData
	if err := json.Unmarshal([]byte(raw), &page); err != nil {
		return nil, fetch.NewError(fetch.KindMalformed, "decode embedded data: %w", err)
	}

	items := make([]domain.CandidateItem, 0, len(page.Props.PageProps.Reviews))
	for _, review := range page.Props.PageProps.Reviews {
		if review.ID == "" {
			continue
		}

		publishedAt := time.Now().UTC()
		if parsed, err := time.Parse(time.RFC3339, review.Dates.PublishedDate); err == nil {
			publishedAt = parsed
		}

		items = append(items, domain.CandidateItem{
			PlatformID:  review.ID,
			Title:       review.Title,
			Body:        review.Text,
			Author:      review.Consumer.DisplayName,
			URL:         "https://www.trustpilot.com/reviews/" + review.ID,
			PublishedAt: publishedAt,
			Metadata:    map[string]any{"rating": review.Rating},
		})
	}
	return items, nil
}

func (t *TrustpilotFetcher) parseReviewDOM(doc *goquery.Document, pageURL string) ([]domain.CandidateItem, error) {
	var items []domain.CandidateItem

	doc.Find("article[data-service-review-card-paper]").Each(func(_ int, card *goquery.Selection) {
		id, _ := card.Attr("data-service-review-id")
		if id == "" {
			return
		}

		title := strings.TrimSpace(card.Find("[data-service-review-title-typography]").First().Text())
		body := strings.TrimSpace(card.Find("[data-service-review-text-typography]").First().Text())
		author := strings.TrimSpace(card.Find("[data-consumer-name-typography]").First().Text())

		publishedAt := time.Now().UTC()
		if stamp, ok := card.Find("time").First().Attr("datetime"); ok {
			if parsed, err := time.Parse(time.RFC3339, stamp); err == nil {
				publishedAt = parsed
			}
		}

		item := domain.CandidateItem{
			PlatformID:  id,
			Title:       title,
			Body:        body,
			Author:      author,
			URL:         "https://www.trustpilot.com/reviews/" + id,
			PublishedAt: publishedAt,
			Metadata:    map[string]any{},
		}
		if rating, ok := card.Find("[data-service-review-rating]").First().Attr("data-service-review-rating"); ok {
			item.Metadata["rating"] = rating
		}
		items = append(items, item)
	})

	if len(items) == 0 {
		return nil, fetch.NewError(fetch.KindMalformed, "no reviews found at %s", pageURL)
	}
	return items, nil
}
