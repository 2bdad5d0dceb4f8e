package fetch

import (
	"context"
	"fmt"

	"MentionScanner/internal/domain"
)

// Request carries everything a fetcher needs for one monitor's poll.
type Request struct {
	Monitor  domain.Monitor
	Keywords []string
	URL      string
	Options  map[string]string
}

// Fetcher captures a single platform adapter (reddit, trustpilot, etc.).
type Fetcher interface {
	Platform() domain.Platform
	Fetch(ctx context.Context, req Request) ([]domain.CandidateItem, error)
}

// Registry keeps a mapping from platform identifiers to their fetchers.
type Registry struct {
	fetchers map[domain.Platform]Fetcher
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{fetchers: map[domain.Platform]Fetcher{}}
}

// Register adds or replaces a fetcher implementation.
func (r *Registry) Register(f Fetcher) {
	if r.fetchers == nil {
		r.fetchers = map[domain.Platform]Fetcher{}
	}
	r.fetchers[f.Platform()] = f
}

// Resolve returns a fetcher by platform or an error if it is absent.
func (r *Registry) Resolve(platform domain.Platform) (Fetcher, error) {
	if f, ok := r.fetchers[platform]; ok {
		return f, nil
	}
	return nil, fmt.Errorf("fetcher for platform %s is not registered", platform)
}
