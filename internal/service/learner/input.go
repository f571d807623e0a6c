package learner

import (
	"slices"
	"time"

	"github.com/heartmarshall/leerming-backend/internal/domain"
)

// UpdateScheduleInput holds the full replacement schedule for a learner.
// An empty ReviewDays list is valid and means "no reviews"; the learner's
// reminder is removed in that case.
type UpdateScheduleInput struct {
	ReviewDays           []time.Weekday
	ReviewTime           domain.TimeOfDay
	Timezone             string
	NotificationsEnabled bool
}

// Validate validates the update schedule input.
func (i UpdateScheduleInput) Validate() error {
	var errs []domain.FieldError

	for _, d := range i.ReviewDays {
		if d < time.Sunday || d > time.Saturday {
			errs = append(errs, domain.FieldError{Field: "review_days", Message: "invalid weekday"})
			break
		}
	}

	if !i.ReviewTime.IsValid() {
		errs = append(errs, domain.FieldError{Field: "review_time", Message: "must be a valid clock time"})
	}

	if i.Timezone == "" {
		errs = append(errs, domain.FieldError{Field: "timezone", Message: "required"})
	} else if len(i.Timezone) > 64 {
		errs = append(errs, domain.FieldError{Field: "timezone", Message: "too long"})
	} else if _, err := time.LoadLocation(i.Timezone); err != nil {
		errs = append(errs, domain.FieldError{Field: "timezone", Message: "invalid IANA timezone"})
	}

	if len(errs) > 0 {
		return &domain.ValidationError{Errors: errs}
	}
	return nil
}

// normalizedDays returns the review days sorted with duplicates dropped.
func (i UpdateScheduleInput) normalizedDays() []time.Weekday {
	days := slices.Clone(i.ReviewDays)
	slices.Sort(days)
	return slices.Compact(days)
}
