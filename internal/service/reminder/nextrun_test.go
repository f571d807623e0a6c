package reminder

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heartmarshall/leerming-backend/internal/domain"
)

func TestNextRunAt(t *testing.T) {
	t.Parallel()

	// testNow is Monday 2026-03-02 08:00 UTC. New York is on EST (UTC-5)
	// that week, so a 09:00 local review time lands at 14:00 UTC.
	date := func(year int, month time.Month, day int) *time.Time {
		d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
		return &d
	}
	profile := func(days []time.Weekday, at domain.TimeOfDay, tz string) *domain.ScheduleProfile {
		return &domain.ScheduleProfile{
			ReviewDays:           days,
			ReviewTime:           at,
			Timezone:             tz,
			NotificationsEnabled: true,
		}
	}
	everyDay := []time.Weekday{
		time.Sunday, time.Monday, time.Tuesday, time.Wednesday,
		time.Thursday, time.Friday, time.Saturday,
	}

	tests := []struct {
		name           string
		profile        *domain.ScheduleProfile
		lastReviewDate *time.Time
		now            time.Time
		want           time.Time
		wantOK         bool
	}{
		{
			name:    "today before review time",
			profile: profile(everyDay, domain.TimeOfDay{Hour: 9}, "UTC"),
			now:     testNow,
			want:    time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
			wantOK:  true,
		},
		{
			name:    "today's review time already passed",
			profile: profile(everyDay, domain.TimeOfDay{Hour: 9}, "UTC"),
			now:     time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
			want:    time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC),
			wantOK:  true,
		},
		{
			name:    "review time resolved in learner timezone",
			profile: profile(everyDay, domain.TimeOfDay{Hour: 9}, "America/New_York"),
			now:     testNow,
			want:    time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC),
			wantOK:  true,
		},
		{
			name:    "timezone shifts past a local midnight",
			profile: profile(everyDay, domain.TimeOfDay{Hour: 22}, "America/New_York"),
			now:     testNow,
			want:    time.Date(2026, 3, 3, 3, 0, 0, 0, time.UTC),
			wantOK:  true,
		},
		{
			name:           "already reviewed today waits for tomorrow",
			profile:        profile(everyDay, domain.TimeOfDay{Hour: 9}, "UTC"),
			lastReviewDate: date(2026, 3, 2),
			now:            testNow,
			want:           time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC),
			wantOK:         true,
		},
		{
			name: "walks to the next configured weekday",
			profile: profile(
				[]time.Weekday{time.Monday, time.Wednesday},
				domain.TimeOfDay{Hour: 9}, "UTC",
			),
			now:    time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
			want:   time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC),
			wantOK: true,
		},
		{
			name: "last review plus day walk combine",
			profile: profile(
				[]time.Weekday{time.Monday, time.Wednesday},
				domain.TimeOfDay{Hour: 9}, "UTC",
			),
			lastReviewDate: date(2026, 3, 2),
			now:            testNow,
			want:           time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC),
			wantOK:         true,
		},
		{
			name:    "no review days",
			profile: profile(nil, domain.TimeOfDay{Hour: 9}, "UTC"),
			now:     testNow,
			wantOK:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, ok := NextRunAt(tt.profile, tt.lastReviewDate, tt.now)
			if !tt.wantOK {
				assert.False(t, ok)
				return
			}
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, time.UTC, got.Location())
		})
	}
}
