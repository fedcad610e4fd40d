package ledger

import (
	"math"
	"time"

	"timeclock/internal/models"
)

const (
	// BreakThreshold is the elapsed time from which the default break applies.
	BreakThreshold = 4 * time.Hour
	// MaxSessionSpan bounds an admin-edited session.
	MaxSessionSpan = 24 * time.Hour
)

// BreakMinutesFor is the default break policy.
func BreakMinutesFor(elapsed time.Duration) int {
	if elapsed < BreakThreshold {
		return 0
	}
	return models.DefaultBreakMinutes
}

// ResolveBreak applies an override when present, clamped at zero, and falls
// back to the default policy otherwise.
func ResolveBreak(elapsed time.Duration, override *int) int {
	if override != nil {
		return max(0, *override)
	}
	return BreakMinutesFor(elapsed)
}

// WorkedHours is elapsed hours net of the break, never negative.
func WorkedHours(start, end time.Time, breakMinutes int) float64 {
	hours := end.Sub(start).Hours() - float64(breakMinutes)/60
	return math.Max(hours, 0)
}

// RecordHours computes worked hours for rec net of its stored break. An open
// session runs until now.
func RecordHours(rec models.ClockRecord, now time.Time) float64 {
	state := rec.State()
	if state.Open {
		return WorkedHours(rec.ClockIn, now, rec.BreakMinutes)
	}
	return WorkedHours(rec.ClockIn, state.End, state.BreakMinutes)
}

// Round2 rounds to two decimals for presentation.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
