package domain

import "time"

// CycleStats summarizes one orchestrator run for one platform.
type CycleStats struct {
	Platform   Platform
	StartedAt  time.Time
	Duration   time.Duration
	Monitors   int
	Skipped    int
	Processed  int
	NewResults int
	Errors     int
	TimedOut   int
}
