package domain

import "time"

// PlanTier enumerates subscription levels, most restrictive first.
type PlanTier string

const (
	TierFree PlanTier = "free"
	TierPro  PlanTier = "pro"
	TierTeam PlanTier = "team"
)

// Plan is the billing snapshot the quota gate evaluates.
type Plan struct {
	UserID        int64
	Tier          PlanTier
	Lapsed        bool
	QuotaExceeded bool
	UpdatedAt     time.Time
}

// FreePlan is the fallback applied when a user's plan cannot be loaded.
// Treating unknowns as the most restrictive tier keeps a stale billing
// cache from granting extra polling.
func FreePlan(userID int64) Plan {
	return Plan{UserID: userID, Tier: TierFree}
}

// CyclePlan is one monitor admitted into a cycle together with its
// stagger offset from the cycle start.
type CyclePlan struct {
	Monitor Monitor
	Delay   time.Duration
}
