package usecase

import (
	"context"
	"fmt"

	"MentionScanner/internal/domain"
	"MentionScanner/internal/ports"
)

// Gate applies subscription-tier policy to decide whether a monitor
// participates in the current cycle.
type Gate struct {
	freeTierCadence int
}

// NewGate builds a gate; cadence is how often (in cycles) free-tier
// monitors run. Values below 1 mean free monitors run every cycle.
func NewGate(freeTierCadence int) *Gate {
	return &Gate{freeTierCadence: freeTierCadence}
}

// ShouldSkip reports whether the monitor sits out this cycle. cycleSeq
// is the orchestrator's per-platform cycle counter, used to run
// free-tier monitors on every Nth cycle only.
func (g *Gate) ShouldSkip(monitor domain.Monitor, plan domain.Plan, cycleSeq uint64) bool {
	if !monitor.Active {
		return true
	}
	if plan.Lapsed || plan.QuotaExceeded {
		return true
	}
	if plan.Tier == domain.TierFree && g.freeTierCadence > 1 {
		return cycleSeq%uint64(g.freeTierCadence) != 0
	}
	return false
}

// PrefetchPlans bulk-loads plan rows for every monitor owner in one
// call. Owners missing from the directory's answer fall back to the
// free tier, the most restrictive policy.
func (g *Gate) PrefetchPlans(ctx context.Context, directory ports.MonitorDirectory, monitors []domain.Monitor) (map[int64]domain.Plan, error) {
	if len(monitors) == 0 {
		return map[int64]domain.Plan{}, nil
	}

	seen := make(map[int64]struct{}, len(monitors))
	userIDs := make([]int64, 0, len(monitors))
	for _, m := range monitors {
		if _, ok := seen[m.UserID]; ok {
			continue
		}
		seen[m.UserID] = struct{}{}
		userIDs = append(userIDs, m.UserID)
	}

	plans, err := directory.GetPlans(ctx, userIDs)
	if err != nil {
		return nil, fmt.Errorf("prefetch plans: %w", err)
	}

	for _, id := range userIDs {
		if _, ok := plans[id]; !ok {
			plans[id] = domain.FreePlan(id)
		}
	}
	return plans, nil
}
