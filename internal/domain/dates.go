package domain

import "time"

// DateOnly strips the clock from t, keeping the calendar date (as observed in
// t's location) as midnight UTC. All calendar-date fields in this package
// (NextReviewDate, Review.CreationDate) are normalized through it.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// SameDate reports whether a and b fall on the same calendar date after
// DateOnly normalization.
func SameDate(a, b time.Time) bool {
	return DateOnly(a).Equal(DateOnly(b))
}
