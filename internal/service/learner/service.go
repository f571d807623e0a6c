package learner

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/heartmarshall/leerming-backend/internal/domain"
)

// profileRepo defines the schedule profile repository interface needed by
// the learner service.
type profileRepo interface {
	GetByOwnerID(ctx context.Context, ownerID uuid.UUID) (*domain.ScheduleProfile, error)
	Upsert(ctx context.Context, prefs *domain.ScheduleProfile) (*domain.ScheduleProfile, error)
	Delete(ctx context.Context, ownerID uuid.UUID) error
}

// reminderScheduler is the slice of the reminder batcher the learner
// service drives after a preference change.
type reminderScheduler interface {
	Reschedule(ctx context.Context, learnerID uuid.UUID) error
	Remove(ctx context.Context, learnerID uuid.UUID) error
}

type clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Service manages learner scheduling preferences. Every write is followed
// by a reminder reschedule so the batcher always reflects the new schedule.
type Service struct {
	log       *slog.Logger
	profiles  profileRepo
	reminders reminderScheduler
	clock     clock
}

// NewService creates a new learner service instance.
func NewService(
	logger *slog.Logger,
	profiles profileRepo,
	reminders reminderScheduler,
) *Service {
	return &Service{
		log:       logger.With("service", "learner"),
		profiles:  profiles,
		reminders: reminders,
		clock:     realClock{},
	}
}
