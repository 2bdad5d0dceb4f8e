// Package platforms contains one fetcher per external content source.
// Every fetcher normalizes source responses into domain.CandidateItem
// and classifies failures with the fetch error taxonomy.
package platforms

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"MentionScanner/internal/fetch"
)

const (
	userAgent = "MentionScanner/1.0"

	// keywordPace is the minimum delay between consecutive requests
	// issued for one monitor's keywords, to respect source rate limits.
	keywordPace = time.Second
)

func defaultClient(client *http.Client) *http.Client {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return client
}

// getJSON issues a GET and decodes the JSON body into v, translating
// transport and status failures into classified fetch errors.
func getJSON(ctx context.Context, client *http.Client, rawURL string, headers map[string]string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fetch.NewError(fetch.KindNetwork, "build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fetch.NewError(fetch.KindNetwork, "request %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp); err != nil {
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fetch.NewError(fetch.KindMalformed, "decode %s: %w", rawURL, err)
	}
	return nil
}

// classifyStatus maps HTTP status codes onto the fetch error taxonomy.
func classifyStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fetch.NewError(fetch.KindAuth, "source rejected credentials: %s", resp.Status)
	case resp.StatusCode == http.StatusTooManyRequests:
		return fetch.NewError(fetch.KindQuota, "source rate limit hit: %s", resp.Status)
	default:
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fetch.NewError(fetch.KindNetwork, "source returned %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}
}

// resolveTarget finds the URL a URL-bound fetcher should poll: the
// explicit per-platform override wins, otherwise the first keyword that
// looks like a URL on one of the platform's domains. Empty means the
// monitor has no target on this platform and the fetch yields nothing.
func resolveTarget(req fetch.Request, domains ...string) string {
	if req.URL != "" {
		return req.URL
	}
	for _, keyword := range req.Keywords {
		candidate := strings.TrimSpace(keyword)
		if !strings.HasPrefix(candidate, "http://") && !strings.HasPrefix(candidate, "https://") {
			continue
		}
		for _, domain := range domains {
			if strings.Contains(candidate, domain) {
				return candidate
			}
		}
	}
	return ""
}

// pace waits the inter-request delay unless the context ends first.
func pace(ctx context.Context) error {
	timer := time.NewTimer(keywordPace)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("pacing interrupted: %w", ctx.Err())
	}
}

// containsAnyKeyword applies the client-side containment filter used by
// fallback listings: case-insensitive substring across the given fields.
func containsAnyKeyword(keywords []string, fields ...string) bool {
	lowered := make([]string, len(fields))
	for i, field := range fields {
		lowered[i] = strings.ToLower(field)
	}
	for _, keyword := range keywords {
		needle := strings.ToLower(strings.TrimSpace(keyword))
		if needle == "" {
			continue
		}
		for _, field := range lowered {
			if strings.Contains(field, needle) {
				return true
			}
		}
	}
	return false
}
