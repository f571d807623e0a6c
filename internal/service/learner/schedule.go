package learner

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/heartmarshall/leerming-backend/internal/domain"
)

// GetSchedule returns the learner's schedule profile.
func (s *Service) GetSchedule(ctx context.Context, ownerID uuid.UUID) (*domain.ScheduleProfile, error) {
	prefs, err := s.profiles.GetByOwnerID(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("learner.GetSchedule: %w", err)
	}
	return prefs, nil
}

// UpdateSchedule replaces the learner's schedule profile and re-registers
// their reminder against the new settings. A schedule with no review days
// removes the reminder instead.
func (s *Service) UpdateSchedule(ctx context.Context, ownerID uuid.UUID, input UpdateScheduleInput) (*domain.ScheduleProfile, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	prefs := &domain.ScheduleProfile{
		OwnerID:              ownerID,
		ReviewDays:           input.normalizedDays(),
		ReviewTime:           input.ReviewTime,
		Timezone:             input.Timezone,
		NotificationsEnabled: input.NotificationsEnabled,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	updated, err := s.profiles.Upsert(ctx, prefs)
	if err != nil {
		return nil, fmt.Errorf("learner.UpdateSchedule: %w", err)
	}

	if len(updated.ReviewDays) == 0 {
		if err := s.reminders.Remove(ctx, ownerID); err != nil {
			return nil, fmt.Errorf("learner.UpdateSchedule: remove reminder: %w", err)
		}
	} else {
		if err := s.reminders.Reschedule(ctx, ownerID); err != nil {
			return nil, fmt.Errorf("learner.UpdateSchedule: reschedule reminder: %w", err)
		}
	}

	s.log.InfoContext(ctx, "schedule updated",
		slog.String("owner_id", ownerID.String()),
		slog.Int("review_days", len(updated.ReviewDays)),
		slog.String("review_time", updated.ReviewTime.String()),
		slog.Bool("notifications", updated.NotificationsEnabled))

	return updated, nil
}

// DeleteSchedule drops the learner's profile and any pending reminder.
func (s *Service) DeleteSchedule(ctx context.Context, ownerID uuid.UUID) error {
	if err := s.profiles.Delete(ctx, ownerID); err != nil {
		return fmt.Errorf("learner.DeleteSchedule: %w", err)
	}
	if err := s.reminders.Remove(ctx, ownerID); err != nil {
		return fmt.Errorf("learner.DeleteSchedule: remove reminder: %w", err)
	}

	s.log.InfoContext(ctx, "schedule deleted", slog.String("owner_id", ownerID.String()))
	return nil
}
