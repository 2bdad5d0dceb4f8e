package scheduler

import (
	"context"
	"sync"
	"time"

	"MentionScanner/internal/domain"
	"MentionScanner/internal/ports"
)

// PlatformInterval pairs a platform with its polling cadence.
type PlatformInterval struct {
	Platform domain.Platform
	Interval time.Duration
}

// TickerScheduler drives one ticker goroutine per platform. Each
// platform fires on its own cadence; the first cycle runs immediately
// on start.
type TickerScheduler struct {
	intervals []PlatformInterval

	mu   sync.Mutex
	stop chan struct{}
	wg   sync.WaitGroup
}

var _ ports.Scheduler = (*TickerScheduler)(nil)

// NewTickerScheduler builds a scheduler for the given platform cadences.
func NewTickerScheduler(intervals []PlatformInterval) *TickerScheduler {
	return &TickerScheduler{intervals: intervals}
}

// Start launches the per-platform tickers.
func (t *TickerScheduler) Start(ctx context.Context, job func(platform domain.Platform, trigger time.Time)) error {
	if job == nil {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stop != nil {
		return nil
	}
	t.stop = make(chan struct{})

	for _, entry := range t.intervals {
		t.wg.Add(1)
		go t.run(ctx, entry, job)
	}

	return nil
}

func (t *TickerScheduler) run(ctx context.Context, entry PlatformInterval, job func(domain.Platform, time.Time)) {
	defer t.wg.Done()

	ticker := time.NewTicker(entry.Interval)
	defer ticker.Stop()

	job(entry.Platform, time.Now())
	for {
		select {
		case trigger := <-ticker.C:
			job(entry.Platform, trigger)
		case <-ctx.Done():
			return
		case <-t.stop:
			return
		}
	}
}

// Stop halts all ticker goroutines and waits for them to exit.
func (t *TickerScheduler) Stop(ctx context.Context) error {
	t.mu.Lock()
	if t.stop == nil {
		t.mu.Unlock()
		return nil
	}
	close(t.stop)
	t.stop = nil
	t.mu.Unlock()

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
