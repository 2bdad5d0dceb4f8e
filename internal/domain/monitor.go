package domain

import "time"

// Platform identifies an external content source.
type Platform string

const (
	PlatformReddit      Platform = "reddit"
	PlatformHackerNews  Platform = "hackernews"
	PlatformYouTube     Platform = "youtube"
	PlatformTrustpilot  Platform = "trustpilot"
	PlatformProductHunt Platform = "producthunt"
	PlatformMedium      Platform = "medium"
)

// Platforms lists every source the pipeline knows how to poll.
func Platforms() []Platform {
	return []Platform{
		PlatformReddit,
		PlatformHackerNews,
		PlatformYouTube,
		PlatformTrustpilot,
		PlatformProductHunt,
		PlatformMedium,
	}
}

// Monitor is a user-configured watch over external platforms.
// The pipeline reads its configuration and owns only the stats fields.
type Monitor struct {
	ID            int64
	UserID        int64
	Name          string
	Keywords      []string
	PlatformURLs  map[Platform]string
	Active        bool
	LastCheckedAt time.Time
	ResultsCount  int64
	ErrorsCount   int64
	LastError     string
	CreatedAt     time.Time
}

// URLFor resolves the explicit per-platform URL override, if configured.
func (m Monitor) URLFor(p Platform) string {
	if m.PlatformURLs == nil {
		return ""
	}
	return m.PlatformURLs[p]
}

// CandidateItem is the normalized shape every platform fetcher emits.
// It lives in memory for one cycle only.
type CandidateItem struct {
	PlatformID  string
	Title       string
	Body        string
	Author      string
	URL         string
	PublishedAt time.Time
	Tags        []string
	Metadata    map[string]any
}

// MatchResult reports whether an item satisfied a monitor's keywords.
type MatchResult struct {
	Matched         bool
	MatchedKeywords []string
}

// MatchedItem pairs a candidate with the keywords that selected it,
// ready for the persistence writer.
type MatchedItem struct {
	Item     CandidateItem
	Keywords []string
}

// Result is a persisted, deduplicated match attributed to a monitor.
// The viewed/clicked/saved/hidden flags belong to the dashboard.
type Result struct {
	ID              int64
	MonitorID       int64
	Platform        Platform
	PlatformItemID  string
	Title           string
	Content         string
	URL             string
	Author          string
	MatchedKeywords []string
	Metadata        map[string]any
	PublishedAt     time.Time
	CreatedAt       time.Time
	Viewed          bool
	Clicked         bool
	Saved           bool
	Hidden          bool
}

// MonitorStats is the per-cycle outcome the orchestrator writes back.
type MonitorStats struct {
	MonitorID     int64
	LastCheckedAt time.Time
	NewResults    int64
	Errored       bool
	LastError     string
}
