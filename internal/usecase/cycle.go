package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"MentionScanner/internal/config"
	"MentionScanner/internal/domain"
	"MentionScanner/internal/fetch"
	"MentionScanner/internal/match"
	"MentionScanner/internal/ports"
)

// CycleDeps wires all driven adapters into the orchestrator.
type CycleDeps struct {
	Directory ports.MonitorDirectory
	Writer    ports.ResultWriter
	Trigger   ports.AnalysisTrigger
	Alerts    ports.AlertNotifier
	Registry  *fetch.Registry
	Gate      *Gate
	Stats     ports.CycleStatsSink
	Config    config.Config
	Logger    *slog.Logger
}

// Orchestrator runs one platform's polling cycle: load monitors, gate,
// stagger, fetch, match, persist, trigger analysis, update stats. Each
// monitor is an independent unit of work; one unit's failure never
// aborts its siblings or the cycle.
type Orchestrator struct {
	directory ports.MonitorDirectory
	writer    ports.ResultWriter
	trigger   ports.AnalysisTrigger
	alerts    ports.AlertNotifier
	registry  *fetch.Registry
	gate      *Gate
	stats     ports.CycleStatsSink
	cfg       config.Config
	logger    *slog.Logger

	mu  sync.Mutex
	seq map[domain.Platform]uint64
}

// NewOrchestrator constructs the cycle orchestrator.
func NewOrchestrator(deps CycleDeps) *Orchestrator {
	gate := deps.Gate
	if gate == nil {
		gate = NewGate(deps.Config.Gate.FreeTierCadence)
	}
	return &Orchestrator{
		directory: deps.Directory,
		writer:    deps.Writer,
		trigger:   deps.Trigger,
		alerts:    deps.Alerts,
		registry:  deps.Registry,
		gate:      gate,
		stats:     deps.Stats,
		cfg:       deps.Config,
		logger:    deps.Logger,
		seq:       map[domain.Platform]uint64{},
	}
}

type unitOutcome struct {
	newResults int
	errored    bool
	timedOut   bool
	quotaHit   bool
}

// RunCycle executes one best-effort cycle for the platform. The
// returned stats are also recorded on the stats sink; callers observing
// them is optional.
func (o *Orchestrator) RunCycle(ctx context.Context, platform domain.Platform) (stats domain.CycleStats) {
	started := time.Now().UTC()
	stats = domain.CycleStats{Platform: platform, StartedAt: started}

	pcfg, _ := o.cfg.PlatformByName(platform)

	cctx, cancel := context.WithTimeout(ctx, pcfg.Deadline())
	defer cancel()

	defer func() {
		stats.Duration = time.Since(started)
		if o.stats != nil {
			o.stats.RecordCycle(stats)
		}
		o.log().Info("cycle finished",
			"platform", platform,
			"monitors", stats.Monitors,
			"skipped", stats.Skipped,
			"processed", stats.Processed,
			"new_results", stats.NewResults,
			"errors", stats.Errors,
			"timed_out", stats.TimedOut,
			"duration", stats.Duration)
	}()

	fetcher, err := o.registry.Resolve(platform)
	if err != nil {
		o.log().Error("cycle aborted", "platform", platform, "error", err)
		return stats
	}

	monitors, err := o.directory.ListActiveMonitors(cctx, platform)
	if err != nil {
		o.log().Error("load active monitors", "platform", platform, "error", err)
		return stats
	}
	stats.Monitors = len(monitors)
	if len(monitors) == 0 {
		return stats
	}

	plans, err := o.gate.PrefetchPlans(cctx, o.directory, monitors)
	if err != nil {
		// A broken billing lookup degrades every owner to the free
		// tier rather than aborting the cycle.
		o.log().Warn("plan prefetch failed, treating owners as free tier", "platform", platform, "error", err)
		plans = map[int64]domain.Plan{}
	}

	seq := o.nextSeq(platform)

	runnable := make([]domain.CyclePlan, 0, len(monitors))
	for _, m := range monitors {
		plan, ok := plans[m.UserID]
		if !ok {
			plan = domain.FreePlan(m.UserID)
		}
		if o.gate.ShouldSkip(m, plan, seq) {
			stats.Skipped++
			continue
		}
		runnable = append(runnable, domain.CyclePlan{Monitor: m})
	}
	// Stagger offsets are assigned over the post-gate list so the
	// window is spread across monitors that will actually run.
	for i := range runnable {
		runnable[i].Delay = Stagger(i, len(runnable), pcfg.Window())
	}

	workers := pcfg.Workers
	if workers < 1 {
		workers = 1
	}

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		sem      = make(chan struct{}, workers)
		quotaHit atomic.Bool
	)

	for _, unit := range runnable {
		wg.Add(1)
		go func(monitor domain.Monitor, delay time.Duration) {
			defer wg.Done()

			outcome := o.runUnit(cctx, fetcher, pcfg, platform, monitor, delay, sem, &quotaHit)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case outcome.timedOut:
				stats.TimedOut++
			case outcome.quotaHit && !outcome.errored:
				stats.Skipped++
			default:
				stats.Processed++
				stats.NewResults += outcome.newResults
				if outcome.errored {
					stats.Errors++
				}
			}
		}(unit.Monitor, unit.Delay)
	}
	wg.Wait()

	return stats
}

// runUnit waits out the stagger delay, acquires a pool slot, and
// processes a single monitor.
func (o *Orchestrator) runUnit(ctx context.Context, fetcher fetch.Fetcher, pcfg config.PlatformConfig, platform domain.Platform, monitor domain.Monitor, delay time.Duration, sem chan struct{}, quotaHit *atomic.Bool) unitOutcome {
	if !sleepCtx(ctx, delay) {
		o.markTimedOut(monitor)
		return unitOutcome{timedOut: true}
	}

	if quotaHit.Load() {
		return unitOutcome{quotaHit: true}
	}

	select {
	case sem <- struct{}{}:
	case <-ctx.Done():
		o.markTimedOut(monitor)
		return unitOutcome{timedOut: true}
	}
	defer func() { <-sem }()

	outcome := o.processMonitor(ctx, fetcher, pcfg, platform, monitor)
	if outcome.quotaHit {
		quotaHit.Store(true)
	}
	return outcome
}

// processMonitor performs the strict per-unit sequence:
// fetch -> match -> dedup-write -> trigger -> stats update.
func (o *Orchestrator) processMonitor(ctx context.Context, fetcher fetch.Fetcher, pcfg config.PlatformConfig, platform domain.Platform, monitor domain.Monitor) unitOutcome {
	log := o.log().With("platform", platform, "monitor_id", monitor.ID)

	req := fetch.Request{
		Monitor:  monitor,
		Keywords: monitor.Keywords,
		URL:      monitor.URLFor(platform),
		Options:  pcfg.Options,
	}

	items, err := fetcher.Fetch(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			o.markTimedOut(monitor)
			return unitOutcome{timedOut: true}
		}
		kind := fetch.KindOf(err)
		log.Warn("fetch failed", "kind", kind, "error", err)
		o.recordMonitorError(ctx, monitor, fmt.Sprintf("fetch %s: %v", kind, err))
		return unitOutcome{errored: true, quotaHit: fetch.IsQuota(err)}
	}

	matched := make([]domain.MatchedItem, 0, len(items))
	for _, item := range items {
		res := match.Content(item, monitor.Keywords)
		if res.Matched {
			matched = append(matched, domain.MatchedItem{Item: item, Keywords: res.MatchedKeywords})
		}
	}
	log.Debug("matched candidates", "fetched", len(items), "matched", len(matched))

	outcome, err := o.writer.SaveNewResults(ctx, monitor.ID, platform, matched)
	if err != nil {
		// One in-unit retry; a persistent write failure becomes an
		// error stat, never a cycle abort. Rows the first attempt
		// already inserted dedup away on retry, so its partial outcome
		// is folded in to keep the analysis fan-out complete.
		retry, retryErr := o.writer.SaveNewResults(ctx, monitor.ID, platform, matched)
		outcome.Count += retry.Count
		outcome.IDs = append(outcome.IDs, retry.IDs...)
		err = retryErr
	}
	if err != nil {
		if ctx.Err() != nil {
			o.markTimedOut(monitor)
			return unitOutcome{timedOut: true}
		}
		log.Warn("persist results failed", "error", err)
		o.recordMonitorError(ctx, monitor, fmt.Sprintf("persist: %v", err))
		return unitOutcome{errored: true}
	}

	for _, id := range outcome.IDs {
		if terr := o.trigger.TriggerAnalysis(ctx, id, monitor.ID); terr != nil {
			log.Warn("analysis trigger failed", "result_id", id, "error", terr)
		}
	}

	if serr := o.writer.UpdateMonitorStats(ctx, domain.MonitorStats{
		MonitorID:     monitor.ID,
		LastCheckedAt: time.Now().UTC(),
		NewResults:    int64(outcome.Count),
	}); serr != nil {
		log.Warn("update monitor stats failed", "error", serr)
	}

	return unitOutcome{newResults: outcome.Count}
}

// recordMonitorError writes the error stat and alerts the operator
// channel when the monitor crosses the configured failure streak.
func (o *Orchestrator) recordMonitorError(ctx context.Context, monitor domain.Monitor, message string) {
	stats := domain.MonitorStats{
		MonitorID:     monitor.ID,
		LastCheckedAt: time.Now().UTC(),
		Errored:       true,
		LastError:     message,
	}
	if err := o.writer.UpdateMonitorStats(ctx, stats); err != nil {
		o.log().Warn("record monitor error failed", "monitor_id", monitor.ID, "error", err)
	}

	streak := o.cfg.Alerts.ErrorStreak
	if o.alerts == nil || streak <= 0 || monitor.ErrorsCount+1 != streak {
		return
	}
	alert := fmt.Sprintf("monitor %q (#%d) has failed %d consecutive checks: %s", monitor.Name, monitor.ID, streak, message)
	if err := o.alerts.PublishAlert(ctx, alert); err != nil {
		o.log().Warn("operator alert failed", "monitor_id", monitor.ID, "error", err)
	}
}

// markTimedOut records an abandoned unit. Results it already wrote
// stand; only the stat reflects the missed check.
func (o *Orchestrator) markTimedOut(monitor domain.Monitor) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := o.writer.UpdateMonitorStats(ctx, domain.MonitorStats{
		MonitorID:     monitor.ID,
		LastCheckedAt: time.Now().UTC(),
		Errored:       true,
		LastError:     "cycle deadline exceeded",
	})
	if err != nil {
		o.log().Warn("record timeout failed", "monitor_id", monitor.ID, "error", err)
	}
}

func (o *Orchestrator) nextSeq(platform domain.Platform) uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	seq := o.seq[platform]
	o.seq[platform] = seq + 1
	return seq
}

func (o *Orchestrator) log() *slog.Logger {
	if o.logger != nil {
		return o.logger
	}
	return slog.Default()
}

// sleepCtx waits for d or until the context ends; it reports whether
// the full delay elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
