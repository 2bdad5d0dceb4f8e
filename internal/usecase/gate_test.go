package usecase

import (
	"context"
	"testing"

	"MentionScanner/internal/domain"
)

type fakeDirectory struct {
	monitors  []domain.Monitor
	plans     map[int64]domain.Plan
	planErr   error
	planCalls [][]int64
}

func (f *fakeDirectory) ListActiveMonitors(_ context.Context, _ domain.Platform) ([]domain.Monitor, error) {
	return f.monitors, nil
}

func (f *fakeDirectory) GetPlans(_ context.Context, userIDs []int64) (map[int64]domain.Plan, error) {
	f.planCalls = append(f.planCalls, userIDs)
	if f.planErr != nil {
		return nil, f.planErr
	}
	return f.plans, nil
}

func TestShouldSkipInactiveMonitor(t *testing.T) {
	t.Parallel()

	gate := NewGate(3)
	monitor := domain.Monitor{ID: 1, Active: false}

	if !gate.ShouldSkip(monitor, domain.Plan{Tier: domain.TierPro}, 0) {
		t.Fatalf("inactive monitor must be skipped")
	}
}

func TestShouldSkipLapsedAndQuotaExceeded(t *testing.T) {
	t.Parallel()

	gate := NewGate(3)
	monitor := domain.Monitor{ID: 1, Active: true}

	if !gate.ShouldSkip(monitor, domain.Plan{Tier: domain.TierPro, Lapsed: true}, 0) {
		t.Fatalf("lapsed plan must be skipped")
	}
	if !gate.ShouldSkip(monitor, domain.Plan{Tier: domain.TierTeam, QuotaExceeded: true}, 0) {
		t.Fatalf("quota-exceeded workspace must be skipped")
	}
}

func TestShouldSkipFreeTierCadence(t *testing.T) {
	t.Parallel()

	gate := NewGate(3)
	monitor := domain.Monitor{ID: 1, Active: true}
	plan := domain.Plan{Tier: domain.TierFree}

	if gate.ShouldSkip(monitor, plan, 0) {
		t.Fatalf("free tier must run on cycle 0")
	}
	if !gate.ShouldSkip(monitor, plan, 1) {
		t.Fatalf("free tier must skip cycle 1")
	}
	if !gate.ShouldSkip(monitor, plan, 2) {
		t.Fatalf("free tier must skip cycle 2")
	}
	if gate.ShouldSkip(monitor, plan, 3) {
		t.Fatalf("free tier must run on cycle 3")
	}
}

func TestShouldSkipProTierEveryCycle(t *testing.T) {
	t.Parallel()

	gate := NewGate(3)
	monitor := domain.Monitor{ID: 1, Active: true}
	plan := domain.Plan{Tier: domain.TierPro}

	for seq := uint64(0); seq < 5; seq++ {
		if gate.ShouldSkip(monitor, plan, seq) {
			t.Fatalf("pro tier skipped on cycle %d", seq)
		}
	}
}

func TestPrefetchPlansDeduplicatesOwnersAndFillsGaps(t *testing.T) {
	t.Parallel()

	directory := &fakeDirectory{
		plans: map[int64]domain.Plan{
			10: {UserID: 10, Tier: domain.TierPro},
		},
	}
	monitors := []domain.Monitor{
		{ID: 1, UserID: 10},
		{ID: 2, UserID: 10},
		{ID: 3, UserID: 20},
	}

	gate := NewGate(3)
	plans, err := gate.PrefetchPlans(context.Background(), directory, monitors)
	if err != nil {
		t.Fatalf("PrefetchPlans error: %v", err)
	}

	if len(directory.planCalls) != 1 {
		t.Fatalf("expected one bulk plan lookup, got %d", len(directory.planCalls))
	}
	if len(directory.planCalls[0]) != 2 {
		t.Fatalf("expected deduplicated owner ids, got %v", directory.planCalls[0])
	}

	if plans[10].Tier != domain.TierPro {
		t.Fatalf("expected pro plan for user 10, got %v", plans[10].Tier)
	}
	if plans[20].Tier != domain.TierFree {
		t.Fatalf("missing plan must degrade to free tier, got %v", plans[20].Tier)
	}
}
