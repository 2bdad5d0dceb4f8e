package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"MentionScanner/internal/config"
	"MentionScanner/internal/domain"
	"MentionScanner/internal/fetch"
	"MentionScanner/internal/ports"
)

type fakeFetcher struct {
	platform domain.Platform

	mu    sync.Mutex
	calls []int64
	items map[int64][]domain.CandidateItem
	errs  map[int64]error
}

func (f *fakeFetcher) Platform() domain.Platform { return f.platform }

func (f *fakeFetcher) Fetch(_ context.Context, req fetch.Request) ([]domain.CandidateItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req.Monitor.ID)
	if err := f.errs[req.Monitor.ID]; err != nil {
		return nil, err
	}
	return f.items[req.Monitor.ID], nil
}

func (f *fakeFetcher) fetchCount(monitorID int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, id := range f.calls {
		if id == monitorID {
			count++
		}
	}
	return count
}

type fakeWriter struct {
	mu           sync.Mutex
	saved        map[int64][]domain.MatchedItem
	seen         map[string]bool
	stats        []domain.MonitorStats
	failSaves    map[int64]int
	breakAfter   map[int64]int
	cancelOnSave func()
	nextID       int64
}

func newFakeWriter() *fakeWriter {
	return &fakeWriter{
		saved:      map[int64][]domain.MatchedItem{},
		seen:       map[string]bool{},
		failSaves:  map[int64]int{},
		breakAfter: map[int64]int{},
	}
}

// SaveNewResults inserts item by item like the Postgres writer: already
// seen items yield no id, and a breakAfter entry aborts one call after
// the given number of inserts, returning the partial outcome.
func (w *fakeWriter) SaveNewResults(_ context.Context, monitorID int64, platform domain.Platform, items []domain.MatchedItem) (ports.SaveOutcome, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failSaves[monitorID] > 0 {
		w.failSaves[monitorID]--
		if w.cancelOnSave != nil {
			w.cancelOnSave()
		}
		return ports.SaveOutcome{}, errors.New("write refused")
	}

	var outcome ports.SaveOutcome
	for _, item := range items {
		if limit, ok := w.breakAfter[monitorID]; ok && outcome.Count >= limit {
			delete(w.breakAfter, monitorID)
			return outcome, errors.New("connection lost")
		}
		key := fmt.Sprintf("%d/%s/%s", monitorID, platform, item.Item.PlatformID)
		if w.seen[key] {
			continue
		}
		w.seen[key] = true
		w.nextID++
		w.saved[monitorID] = append(w.saved[monitorID], item)
		outcome.Count++
		outcome.IDs = append(outcome.IDs, w.nextID)
	}
	return outcome, nil
}

func (w *fakeWriter) UpdateMonitorStats(_ context.Context, stats domain.MonitorStats) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stats = append(w.stats, stats)
	return nil
}

func (w *fakeWriter) statsFor(monitorID int64) []domain.MonitorStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []domain.MonitorStats
	for _, s := range w.stats {
		if s.MonitorID == monitorID {
			out = append(out, s)
		}
	}
	return out
}

type fakeTrigger struct {
	mu  sync.Mutex
	ids []int64
}

func (t *fakeTrigger) TriggerAnalysis(_ context.Context, resultID, _ int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ids = append(t.ids, resultID)
	return nil
}

func testConfig() config.Config {
	return config.Config{
		Gate: config.GateConfig{FreeTierCadence: 3},
		Platforms: []config.PlatformConfig{
			{Name: "reddit", Enabled: true, IntervalMinutes: 30, WindowSeconds: 1, Workers: 4, DeadlineMinutes: 1},
		},
	}
}

func testOrchestrator(directory *fakeDirectory, writer *fakeWriter, trigger *fakeTrigger, fetcher *fakeFetcher) *Orchestrator {
	registry := fetch.NewRegistry()
	registry.Register(fetcher)

	return NewOrchestrator(CycleDeps{
		Directory: directory,
		Writer:    writer,
		Trigger:   trigger,
		Registry:  registry,
		Stats:     NewStatsRecorder(),
		Config:    testConfig(),
	})
}

func TestRunCyclePersistsMatchesAndTriggersAnalysis(t *testing.T) {
	t.Parallel()

	directory := &fakeDirectory{
		monitors: []domain.Monitor{
			{ID: 1, UserID: 10, Active: true, Keywords: []string{"pricing"}},
		},
		plans: map[int64]domain.Plan{10: {UserID: 10, Tier: domain.TierPro}},
	}
	writer := newFakeWriter()
	trigger := &fakeTrigger{}
	fetcher := &fakeFetcher{
		platform: domain.PlatformReddit,
		items: map[int64][]domain.CandidateItem{
			1: {
				{PlatformID: "t3_a", Title: "New pricing announced"},
				{PlatformID: "t3_b", Title: "unrelated post"},
			},
		},
	}

	stats := testOrchestrator(directory, writer, trigger, fetcher).RunCycle(context.Background(), domain.PlatformReddit)

	if stats.Processed != 1 || stats.Errors != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.NewResults != 1 {
		t.Fatalf("expected one new result, got %d", stats.NewResults)
	}

	saved := writer.saved[1]
	if len(saved) != 1 || saved[0].Item.PlatformID != "t3_a" {
		t.Fatalf("expected only the matching item persisted, got %+v", saved)
	}
	if len(saved[0].Keywords) != 1 || saved[0].Keywords[0] != "pricing" {
		t.Fatalf("unexpected matched keywords: %v", saved[0].Keywords)
	}

	if len(trigger.ids) != 1 {
		t.Fatalf("expected one analysis trigger, got %d", len(trigger.ids))
	}

	monitorStats := writer.statsFor(1)
	if len(monitorStats) != 1 || monitorStats[0].Errored {
		t.Fatalf("expected one clean stats update, got %+v", monitorStats)
	}
}

func TestRunCycleIsolatesFailingMonitor(t *testing.T) {
	t.Parallel()

	directory := &fakeDirectory{
		monitors: []domain.Monitor{
			{ID: 1, UserID: 10, Active: true, Keywords: []string{"acme"}},
			{ID: 2, UserID: 10, Active: true, Keywords: []string{"acme"}},
		},
		plans: map[int64]domain.Plan{10: {UserID: 10, Tier: domain.TierPro}},
	}
	writer := newFakeWriter()
	trigger := &fakeTrigger{}
	fetcher := &fakeFetcher{
		platform: domain.PlatformReddit,
		items: map[int64][]domain.CandidateItem{
			2: {{PlatformID: "t3_x", Body: "acme broke again"}},
		},
		errs: map[int64]error{
			1: fetch.NewError(fetch.KindNetwork, "connection reset"),
		},
	}

	stats := testOrchestrator(directory, writer, trigger, fetcher).RunCycle(context.Background(), domain.PlatformReddit)

	if stats.Processed != 2 {
		t.Fatalf("both monitors must be processed, got %d", stats.Processed)
	}
	if stats.Errors != 1 {
		t.Fatalf("expected one errored unit, got %d", stats.Errors)
	}
	if len(writer.saved[2]) != 1 {
		t.Fatalf("healthy sibling must still persist, got %+v", writer.saved[2])
	}

	failedStats := writer.statsFor(1)
	if len(failedStats) != 1 || !failedStats[0].Errored || failedStats[0].LastError == "" {
		t.Fatalf("expected error stat for monitor 1, got %+v", failedStats)
	}
}

func TestRunCycleGatedMonitorNeverFetches(t *testing.T) {
	t.Parallel()

	directory := &fakeDirectory{
		monitors: []domain.Monitor{
			{ID: 1, UserID: 10, Active: true, Keywords: []string{"acme"}},
			{ID: 2, UserID: 20, Active: true, Keywords: []string{"acme"}},
		},
		plans: map[int64]domain.Plan{
			10: {UserID: 10, Tier: domain.TierPro},
			20: {UserID: 20, Tier: domain.TierPro, Lapsed: true},
		},
	}
	writer := newFakeWriter()
	fetcher := &fakeFetcher{platform: domain.PlatformReddit}

	stats := testOrchestrator(directory, writer, &fakeTrigger{}, fetcher).RunCycle(context.Background(), domain.PlatformReddit)

	if stats.Skipped != 1 {
		t.Fatalf("expected one skipped monitor, got %d", stats.Skipped)
	}
	if fetcher.fetchCount(2) != 0 {
		t.Fatalf("gated monitor must not reach the fetcher")
	}
	if fetcher.fetchCount(1) != 1 {
		t.Fatalf("ungated monitor must be fetched once, got %d", fetcher.fetchCount(1))
	}
}

func TestRunCycleRetriesPersistOnce(t *testing.T) {
	t.Parallel()

	directory := &fakeDirectory{
		monitors: []domain.Monitor{
			{ID: 1, UserID: 10, Active: true, Keywords: []string{"acme"}},
		},
		plans: map[int64]domain.Plan{10: {UserID: 10, Tier: domain.TierPro}},
	}
	writer := newFakeWriter()
	writer.failSaves[1] = 1
	fetcher := &fakeFetcher{
		platform: domain.PlatformReddit,
		items: map[int64][]domain.CandidateItem{
			1: {{PlatformID: "t3_a", Title: "acme outage"}},
		},
	}

	stats := testOrchestrator(directory, writer, &fakeTrigger{}, fetcher).RunCycle(context.Background(), domain.PlatformReddit)

	if stats.Errors != 0 {
		t.Fatalf("retried write must not count as error, got %+v", stats)
	}
	if len(writer.saved[1]) != 1 {
		t.Fatalf("expected item persisted on retry, got %+v", writer.saved[1])
	}
}

func TestRunCyclePersistentWriteFailureBecomesErrorStat(t *testing.T) {
	t.Parallel()

	directory := &fakeDirectory{
		monitors: []domain.Monitor{
			{ID: 1, UserID: 10, Active: true, Keywords: []string{"acme"}},
		},
		plans: map[int64]domain.Plan{10: {UserID: 10, Tier: domain.TierPro}},
	}
	writer := newFakeWriter()
	writer.failSaves[1] = 2
	fetcher := &fakeFetcher{
		platform: domain.PlatformReddit,
		items: map[int64][]domain.CandidateItem{
			1: {{PlatformID: "t3_a", Title: "acme outage"}},
		},
	}

	stats := testOrchestrator(directory, writer, &fakeTrigger{}, fetcher).RunCycle(context.Background(), domain.PlatformReddit)

	if stats.Errors != 1 {
		t.Fatalf("expected one errored unit, got %+v", stats)
	}
	errStats := writer.statsFor(1)
	if len(errStats) != 1 || !errStats[0].Errored {
		t.Fatalf("expected error stat after failed retry, got %+v", errStats)
	}
}

func TestRunCycleTriggersRowsInsertedBeforeRetry(t *testing.T) {
	t.Parallel()

	directory := &fakeDirectory{
		monitors: []domain.Monitor{
			{ID: 1, UserID: 10, Active: true, Keywords: []string{"acme"}},
		},
		plans: map[int64]domain.Plan{10: {UserID: 10, Tier: domain.TierPro}},
	}
	writer := newFakeWriter()
	writer.breakAfter[1] = 1
	trigger := &fakeTrigger{}
	fetcher := &fakeFetcher{
		platform: domain.PlatformReddit,
		items: map[int64][]domain.CandidateItem{
			1: {
				{PlatformID: "t3_a", Title: "acme outage"},
				{PlatformID: "t3_b", Title: "acme is down"},
			},
		},
	}

	stats := testOrchestrator(directory, writer, trigger, fetcher).RunCycle(context.Background(), domain.PlatformReddit)

	if stats.Errors != 0 {
		t.Fatalf("recovered write must not count as error, got %+v", stats)
	}
	if len(writer.saved[1]) != 2 {
		t.Fatalf("expected both items persisted across the retry, got %+v", writer.saved[1])
	}
	if stats.NewResults != 2 {
		t.Fatalf("expected both inserts counted, got %d", stats.NewResults)
	}
	// The row inserted by the interrupted first attempt dedups away on
	// retry; its analysis trigger must still fire.
	if len(trigger.ids) != 2 {
		t.Fatalf("expected a trigger per inserted row, got %v", trigger.ids)
	}
}

func TestRunCycleExpiredDeadlineMarksUnitsTimedOut(t *testing.T) {
	t.Parallel()

	directory := &fakeDirectory{
		monitors: []domain.Monitor{
			{ID: 1, UserID: 10, Active: true, Keywords: []string{"acme"}},
		},
		plans: map[int64]domain.Plan{10: {UserID: 10, Tier: domain.TierPro}},
	}
	writer := newFakeWriter()
	fetcher := &fakeFetcher{platform: domain.PlatformReddit}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stats := testOrchestrator(directory, writer, &fakeTrigger{}, fetcher).RunCycle(ctx, domain.PlatformReddit)

	if stats.TimedOut != 1 || stats.Processed != 0 || stats.Errors != 0 {
		t.Fatalf("expected one timed-out unit, got %+v", stats)
	}
	if fetcher.fetchCount(1) != 0 {
		t.Fatalf("abandoned unit must not reach the fetcher")
	}

	timeoutStats := writer.statsFor(1)
	if len(timeoutStats) != 1 || !timeoutStats[0].Errored {
		t.Fatalf("expected a timed-out stat write, got %+v", timeoutStats)
	}
	if timeoutStats[0].LastError != "cycle deadline exceeded" {
		t.Fatalf("unexpected last error: %q", timeoutStats[0].LastError)
	}
}

func TestRunCyclePersistFailureAfterDeadlineIsTimedOut(t *testing.T) {
	t.Parallel()

	directory := &fakeDirectory{
		monitors: []domain.Monitor{
			{ID: 1, UserID: 10, Active: true, Keywords: []string{"acme"}},
		},
		plans: map[int64]domain.Plan{10: {UserID: 10, Tier: domain.TierPro}},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	writer := newFakeWriter()
	writer.failSaves[1] = 2
	writer.cancelOnSave = cancel
	fetcher := &fakeFetcher{
		platform: domain.PlatformReddit,
		items: map[int64][]domain.CandidateItem{
			1: {{PlatformID: "t3_a", Title: "acme outage"}},
		},
	}

	stats := testOrchestrator(directory, writer, &fakeTrigger{}, fetcher).RunCycle(ctx, domain.PlatformReddit)

	if stats.TimedOut != 1 || stats.Errors != 0 {
		t.Fatalf("write failing past the deadline must count as timed out, got %+v", stats)
	}

	monitorStats := writer.statsFor(1)
	if len(monitorStats) != 1 || monitorStats[0].LastError != "cycle deadline exceeded" {
		t.Fatalf("expected a timed-out stat, got %+v", monitorStats)
	}
}

func TestRunCycleQuotaErrorHaltsRemainingMonitors(t *testing.T) {
	t.Parallel()

	directory := &fakeDirectory{
		monitors: []domain.Monitor{
			{ID: 1, UserID: 10, Active: true, Keywords: []string{"acme"}},
			{ID: 2, UserID: 10, Active: true, Keywords: []string{"acme"}},
			{ID: 3, UserID: 10, Active: true, Keywords: []string{"acme"}},
		},
		plans: map[int64]domain.Plan{10: {UserID: 10, Tier: domain.TierPro}},
	}
	writer := newFakeWriter()
	fetcher := &fakeFetcher{
		platform: domain.PlatformReddit,
		errs: map[int64]error{
			1: fetch.NewError(fetch.KindQuota, "rate limited"),
		},
	}

	stats := testOrchestrator(directory, writer, &fakeTrigger{}, fetcher).RunCycle(context.Background(), domain.PlatformReddit)

	if stats.Errors != 1 {
		t.Fatalf("only the quota-hit monitor may count as errored, got %+v", stats)
	}
	if stats.Skipped != 2 {
		t.Fatalf("remaining monitors must be skipped after the quota hit, got %+v", stats)
	}
	if fetcher.fetchCount(2) != 0 || fetcher.fetchCount(3) != 0 {
		t.Fatalf("halted monitors must not reach the fetcher, got calls %v", fetcher.calls)
	}
	// Halted monitors are skipped, not errored: no stat rows for them.
	if got := writer.statsFor(2); len(got) != 0 {
		t.Fatalf("skipped monitor must not get an error stat, got %+v", got)
	}
	if got := writer.statsFor(3); len(got) != 0 {
		t.Fatalf("skipped monitor must not get an error stat, got %+v", got)
	}
}

func TestRunCycleRecordsSnapshot(t *testing.T) {
	t.Parallel()

	directory := &fakeDirectory{monitors: nil}
	recorder := NewStatsRecorder()
	registry := fetch.NewRegistry()
	registry.Register(&fakeFetcher{platform: domain.PlatformReddit})

	orchestrator := NewOrchestrator(CycleDeps{
		Directory: directory,
		Writer:    newFakeWriter(),
		Trigger:   &fakeTrigger{},
		Registry:  registry,
		Stats:     recorder,
		Config:    testConfig(),
	})

	before := time.Now().UTC()
	orchestrator.RunCycle(context.Background(), domain.PlatformReddit)

	snapshot := recorder.Snapshot()
	stats, ok := snapshot[domain.PlatformReddit]
	if !ok {
		t.Fatalf("expected a recorded cycle for reddit")
	}
	if stats.StartedAt.Before(before.Add(-time.Second)) {
		t.Fatalf("unexpected start time: %v", stats.StartedAt)
	}
}
