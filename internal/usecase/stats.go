package usecase

import (
	"sync"

	"MentionScanner/internal/domain"
	"MentionScanner/internal/ports"
)

// StatsRecorder keeps the most recent cycle outcome per platform for
// the ops status endpoint.
type StatsRecorder struct {
	mu     sync.RWMutex
	cycles map[domain.Platform]domain.CycleStats
}

var _ ports.CycleStatsSink = (*StatsRecorder)(nil)

// NewStatsRecorder builds an empty recorder.
func NewStatsRecorder() *StatsRecorder {
	return &StatsRecorder{cycles: map[domain.Platform]domain.CycleStats{}}
}

// RecordCycle stores the latest outcome, replacing the previous one.
func (r *StatsRecorder) RecordCycle(stats domain.CycleStats) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cycles[stats.Platform] = stats
}

// Snapshot returns a copy of the last cycle per platform.
func (r *StatsRecorder) Snapshot() map[domain.Platform]domain.CycleStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[domain.Platform]domain.CycleStats, len(r.cycles))
	for platform, stats := range r.cycles {
		out[platform] = stats
	}
	return out
}
