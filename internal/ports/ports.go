package ports

import (
	"context"
	"time"

	"MentionScanner/internal/domain"
)

// MonitorDirectory exposes the monitor/plan snapshot loaded at cycle start.
type MonitorDirectory interface {
	ListActiveMonitors(ctx context.Context, platform domain.Platform) ([]domain.Monitor, error)
	GetPlans(ctx context.Context, userIDs []int64) (map[int64]domain.Plan, error)
}

// SaveOutcome reports what the dedup writer actually inserted.
type SaveOutcome struct {
	Count int
	IDs   []int64
}

// ResultWriter persists matched items with insert-if-absent semantics
// keyed on (monitorID, platform, platformItemID).
type ResultWriter interface {
	SaveNewResults(ctx context.Context, monitorID int64, platform domain.Platform, items []domain.MatchedItem) (SaveOutcome, error)
	UpdateMonitorStats(ctx context.Context, stats domain.MonitorStats) error
}

// AnalysisTrigger hands newly inserted results to the downstream
// analysis worker. Fire-and-forget: failures are logged by the caller,
// never retried by the pipeline.
type AnalysisTrigger interface {
	TriggerAnalysis(ctx context.Context, resultID, monitorID int64) error
}

// AlertNotifier pushes operator-facing alerts about failing monitors.
type AlertNotifier interface {
	PublishAlert(ctx context.Context, message string) error
}

// Scheduler drives recurring per-platform cycles.
type Scheduler interface {
	Start(ctx context.Context, job func(platform domain.Platform, trigger time.Time)) error
	Stop(ctx context.Context) error
}

// CycleStatsSink records the outcome of each finished cycle.
type CycleStatsSink interface {
	RecordCycle(stats domain.CycleStats)
}
