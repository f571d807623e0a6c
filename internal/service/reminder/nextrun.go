package reminder

import (
	"time"

	"github.com/heartmarshall/leerming-backend/internal/domain"
)

// NextRunAt computes the next reminder instant for a learner: the first of
// their review days, at their review time, in their timezone, that is both
// after the last completed review's date and still in the future. The result
// is in UTC. ok is false when the profile has no review days.
func NextRunAt(prefs *domain.ScheduleProfile, lastReviewDate *time.Time, now time.Time) (fireAt time.Time, ok bool) {
	if len(prefs.ReviewDays) == 0 {
		return time.Time{}, false
	}

	loc := prefs.Location()
	local := now.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)

	if lastReviewDate != nil {
		// Review dates are calendar dates carried at midnight UTC; read
		// the fields in UTC and rebuild the day in the learner's zone.
		last := lastReviewDate.UTC()
		dayAfter := time.Date(last.Year(), last.Month(), last.Day()+1, 0, 0, 0, 0, loc)
		if dayAfter.After(start) {
			start = dayAfter
		}
	}

	// Walk at most a full week: with at least one review day set, a match
	// exists within seven days of the start (eight candidates when today's
	// review time has already passed).
	for i := 0; i <= 7; i++ {
		day := start.AddDate(0, 0, i)
		if !prefs.IsReviewDay(day.Weekday()) {
			continue
		}
		at := time.Date(day.Year(), day.Month(), day.Day(),
			prefs.ReviewTime.Hour, prefs.ReviewTime.Minute, 0, 0, loc)
		if at.After(now) {
			return at.UTC(), true
		}
	}

	return time.Time{}, false
}
