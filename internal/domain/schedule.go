package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TimeOfDay is a clock time with minute precision, timezone-agnostic.
// The timezone it is interpreted in comes from the owning ScheduleProfile.
type TimeOfDay struct {
	Hour   int
	Minute int
}

func (t TimeOfDay) String() string { return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute) }

func (t TimeOfDay) IsValid() bool {
	return t.Hour >= 0 && t.Hour < 24 && t.Minute >= 0 && t.Minute < 60
}

// ScheduleProfile holds a learner's review scheduling preferences.
// It is owned by the learner; the core reads it, only the preference-change
// handler writes it.
type ScheduleProfile struct {
	OwnerID              uuid.UUID
	ReviewDays           []time.Weekday // sorted, non-empty
	ReviewTime           TimeOfDay
	Timezone             string
	NotificationsEnabled bool
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// IsReviewDay reports whether the given weekday is one of the learner's
// configured review days.
func (p *ScheduleProfile) IsReviewDay(day time.Weekday) bool {
	for _, d := range p.ReviewDays {
		if d == day {
			return true
		}
	}
	return false
}

// Location resolves the profile timezone, falling back to UTC on any
// unknown or empty name.
func (p *ScheduleProfile) Location() *time.Location {
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
