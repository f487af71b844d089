package badges

import "time"

// Award predicates are pure functions of historical session data, so
// they can be tested against a fixed history without touching storage.

// QualifiesEarlyBird reports whether a session starting at the given
// local time earns the early bird badge (before 7 AM).
func QualifiesEarlyBird(sessionStartLocal time.Time) bool {
	return sessionStartLocal.Hour() < 7
}

// QualifiesFocusMaster reports whether the user's total focus session
// count, inclusive of the just-persisted one, reaches the threshold.
func QualifiesFocusMaster(totalFocusSessions int) bool {
	return totalFocusSessions >= 10
}

// QualifiesConsistency reports whether every one of the last 7
// consecutive UTC calendar days, today included, appears in focusDays.
func QualifiesConsistency(focusDays []time.Time, todayUTC time.Time) bool {
	have := make(map[time.Time]bool, len(focusDays))
	for _, d := range focusDays {
		have[truncateDay(d.UTC())] = true
	}
	day := truncateDay(todayUTC)
	for i := 0; i < 7; i++ {
		if !have[day.AddDate(0, 0, -i)] {
			return false
		}
	}
	return true
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
