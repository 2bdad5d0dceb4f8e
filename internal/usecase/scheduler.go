package usecase

import (
	"context"
	"time"

	"MentionScanner/internal/domain"
	"MentionScanner/internal/ports"
)

// Scheduler wires the ticker driver with the cycle orchestrator.
type Scheduler struct {
	driver       ports.Scheduler
	orchestrator *Orchestrator
}

// NewScheduler returns a helper to start/stop recurring cycles.
func NewScheduler(driver ports.Scheduler, orchestrator *Orchestrator) *Scheduler {
	return &Scheduler{driver: driver, orchestrator: orchestrator}
}

// Start registers the orchestrator with the provided scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.orchestrator == nil {
		return nil
	}

	job := func(platform domain.Platform, _ time.Time) {
		s.orchestrator.RunCycle(ctx, platform)
	}

	return s.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
