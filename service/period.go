package service

import (
	"time"

	"esusu/models"
)

// CurrentPeriod maps wall-clock time onto a group's rotation schedule.
// Weeks run 1..activeMembers and wrap into the next cycle. activeMembers must
// be read from current membership at call time, never cached; for identical
// inputs the result is identical, which keeps period lookups idempotent
// across retries.
func CurrentPeriod(startDate, now time.Time, cadence models.Cadence, activeMembers int) models.Period {
	if activeMembers < 1 {
		activeMembers = 1
	}

	elapsed := int(now.Sub(startDate) / cadence.PeriodLength())
	if elapsed < 0 {
		elapsed = 0
	}

	return models.Period{
		Cycle: elapsed/activeMembers + 1,
		Week:  elapsed%activeMembers + 1,
	}
}

// PeriodDeadline returns the instant a period's collection window closes:
// the start of the following period.
func PeriodDeadline(startDate time.Time, cadence models.Cadence, period models.Period, activeMembers int) time.Time {
	if activeMembers < 1 {
		activeMembers = 1
	}

	elapsed := (period.Cycle-1)*activeMembers + period.Week // periods completed at deadline
	return startDate.Add(time.Duration(elapsed) * cadence.PeriodLength())
}
