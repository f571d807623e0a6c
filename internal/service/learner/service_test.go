package learner

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heartmarshall/leerming-backend/internal/domain"
)

var testNow = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type profileRepoMock struct {
	mu       sync.Mutex
	byOwner  map[uuid.UUID]*domain.ScheduleProfile
	upserted []uuid.UUID
}

func newProfileRepoMock() *profileRepoMock {
	return &profileRepoMock{byOwner: make(map[uuid.UUID]*domain.ScheduleProfile)}
}

func (m *profileRepoMock) GetByOwnerID(_ context.Context, ownerID uuid.UUID) (*domain.ScheduleProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byOwner[ownerID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *profileRepoMock) Upsert(_ context.Context, prefs *domain.ScheduleProfile) (*domain.ScheduleProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *prefs
	m.byOwner[prefs.OwnerID] = &cp
	m.upserted = append(m.upserted, prefs.OwnerID)
	out := cp
	return &out, nil
}

func (m *profileRepoMock) Delete(_ context.Context, ownerID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byOwner[ownerID]; !ok {
		return domain.ErrNotFound
	}
	delete(m.byOwner, ownerID)
	return nil
}

type reminderSchedulerMock struct {
	RescheduleFunc func(ctx context.Context, learnerID uuid.UUID) error
	RemoveFunc     func(ctx context.Context, learnerID uuid.UUID) error

	mu          sync.Mutex
	rescheduled []uuid.UUID
	removed     []uuid.UUID
}

func (m *reminderSchedulerMock) Reschedule(ctx context.Context, learnerID uuid.UUID) error {
	m.mu.Lock()
	m.rescheduled = append(m.rescheduled, learnerID)
	m.mu.Unlock()
	if m.RescheduleFunc != nil {
		return m.RescheduleFunc(ctx, learnerID)
	}
	return nil
}

func (m *reminderSchedulerMock) Remove(ctx context.Context, learnerID uuid.UUID) error {
	m.mu.Lock()
	m.removed = append(m.removed, learnerID)
	m.mu.Unlock()
	if m.RemoveFunc != nil {
		return m.RemoveFunc(ctx, learnerID)
	}
	return nil
}

func (m *reminderSchedulerMock) RescheduleCalls() []uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]uuid.UUID(nil), m.rescheduled...)
}

func (m *reminderSchedulerMock) RemoveCalls() []uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]uuid.UUID(nil), m.removed...)
}

func newTestService(profiles *profileRepoMock, reminders *reminderSchedulerMock) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(logger, profiles, reminders)
	svc.clock = fixedClock{now: testNow}
	return svc
}

func validInput() UpdateScheduleInput {
	return UpdateScheduleInput{
		ReviewDays:           []time.Weekday{time.Monday, time.Thursday},
		ReviewTime:           domain.TimeOfDay{Hour: 9, Minute: 30},
		Timezone:             "Europe/Amsterdam",
		NotificationsEnabled: true,
	}
}

func TestService_UpdateSchedule_PersistsAndReschedules(t *testing.T) {
	t.Parallel()

	profiles := newProfileRepoMock()
	reminders := &reminderSchedulerMock{}
	svc := newTestService(profiles, reminders)
	ownerID := uuid.New()

	got, err := svc.UpdateSchedule(context.Background(), ownerID, validInput())
	require.NoError(t, err)

	assert.Equal(t, ownerID, got.OwnerID)
	assert.Equal(t, []time.Weekday{time.Monday, time.Thursday}, got.ReviewDays)
	assert.Equal(t, "09:30", got.ReviewTime.String())
	assert.True(t, got.NotificationsEnabled)
	assert.Equal(t, testNow, got.UpdatedAt)

	require.Equal(t, []uuid.UUID{ownerID}, reminders.RescheduleCalls())
	assert.Empty(t, reminders.RemoveCalls())

	stored, err := svc.GetSchedule(context.Background(), ownerID)
	require.NoError(t, err)
	assert.Equal(t, got.ReviewDays, stored.ReviewDays)
}

func TestService_UpdateSchedule_SortsAndDeduplicatesDays(t *testing.T) {
	t.Parallel()

	profiles := newProfileRepoMock()
	svc := newTestService(profiles, &reminderSchedulerMock{})
	ownerID := uuid.New()

	in := validInput()
	in.ReviewDays = []time.Weekday{time.Friday, time.Monday, time.Friday}

	got, err := svc.UpdateSchedule(context.Background(), ownerID, in)
	require.NoError(t, err)
	assert.Equal(t, []time.Weekday{time.Monday, time.Friday}, got.ReviewDays)
}

func TestService_UpdateSchedule_EmptyDaysRemovesReminder(t *testing.T) {
	t.Parallel()

	profiles := newProfileRepoMock()
	reminders := &reminderSchedulerMock{}
	svc := newTestService(profiles, reminders)
	ownerID := uuid.New()

	in := validInput()
	in.ReviewDays = nil

	got, err := svc.UpdateSchedule(context.Background(), ownerID, in)
	require.NoError(t, err)
	assert.Empty(t, got.ReviewDays)

	require.Equal(t, []uuid.UUID{ownerID}, reminders.RemoveCalls())
	assert.Empty(t, reminders.RescheduleCalls())
}

func TestService_UpdateSchedule_InvalidInput(t *testing.T) {
	t.Parallel()

	profiles := newProfileRepoMock()
	reminders := &reminderSchedulerMock{}
	svc := newTestService(profiles, reminders)

	in := validInput()
	in.Timezone = "Nowhere/Nowhere"

	_, err := svc.UpdateSchedule(context.Background(), uuid.New(), in)
	require.ErrorIs(t, err, domain.ErrValidation)
	assert.Empty(t, profiles.upserted)
	assert.Empty(t, reminders.RescheduleCalls())
}

func TestService_UpdateSchedule_RescheduleFailurePropagates(t *testing.T) {
	t.Parallel()

	schedErr := errors.New("scheduler down")
	profiles := newProfileRepoMock()
	reminders := &reminderSchedulerMock{
		RescheduleFunc: func(context.Context, uuid.UUID) error { return schedErr },
	}
	svc := newTestService(profiles, reminders)

	_, err := svc.UpdateSchedule(context.Background(), uuid.New(), validInput())
	require.ErrorIs(t, err, schedErr)
}

func TestService_GetSchedule_NotFound(t *testing.T) {
	t.Parallel()

	svc := newTestService(newProfileRepoMock(), &reminderSchedulerMock{})

	_, err := svc.GetSchedule(context.Background(), uuid.New())
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestService_DeleteSchedule(t *testing.T) {
	t.Parallel()

	profiles := newProfileRepoMock()
	reminders := &reminderSchedulerMock{}
	svc := newTestService(profiles, reminders)
	ownerID := uuid.New()

	_, err := svc.UpdateSchedule(context.Background(), ownerID, validInput())
	require.NoError(t, err)

	require.NoError(t, svc.DeleteSchedule(context.Background(), ownerID))
	require.Equal(t, []uuid.UUID{ownerID}, reminders.RemoveCalls())

	_, err = svc.GetSchedule(context.Background(), ownerID)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestService_DeleteSchedule_NotFound(t *testing.T) {
	t.Parallel()

	svc := newTestService(newProfileRepoMock(), &reminderSchedulerMock{})

	err := svc.DeleteSchedule(context.Background(), uuid.New())
	require.ErrorIs(t, err, domain.ErrNotFound)
}
