// Package dates provides calendar-day arithmetic for missing-date discovery.
// All operations use the local system calendar; a "day" is the start-of-day
// instant in local time.
package dates

import "time"

// KeyLayout is the canonical string form of a calendar day
const KeyLayout = "2006-01-02"

// StartOfDay normalizes t to midnight in its own location
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Key returns the canonical YYYY-MM-DD form of t's calendar day
func Key(t time.Time) string {
	return t.Format(KeyLayout)
}

// IsToday reports whether t falls on the same calendar day as now
func IsToday(t, now time.Time) bool {
	return StartOfDay(t).Equal(StartOfDay(now))
}

// Missing returns the calendar days in [now-(lookbackDays-1), now] whose key
// is absent from existing, most recent first. Deterministic given now and
// existing; never fails.
func Missing(existing map[string]struct{}, lookbackDays int, now time.Time) []time.Time {
	today := StartOfDay(now)
	var missing []time.Time
	for i := 0; i < lookbackDays; i++ {
		day := today.AddDate(0, 0, -i)
		if _, ok := existing[Key(day)]; !ok {
			missing = append(missing, day)
		}
	}
	return missing
}
