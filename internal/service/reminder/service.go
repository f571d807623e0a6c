package reminder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/leerming-backend/internal/domain"
)

// ---------------------------------------------------------------------------
// Consumer-defined interfaces (private)
// ---------------------------------------------------------------------------

type batchRepo interface {
	// GetOrCreateByFireAt returns the batch for the exact fire instant,
	// creating it when absent. The second result reports creation.
	GetOrCreateByFireAt(ctx context.Context, fireAt time.Time) (*domain.ReminderBatch, bool, error)
	GetByID(ctx context.Context, batchID uuid.UUID) (*domain.ReminderBatch, error)
	FindByMember(ctx context.Context, learnerID uuid.UUID) (*domain.ReminderBatch, error)
	SetJobHandle(ctx context.Context, batchID uuid.UUID, handle string) error
	SetLastRunResult(ctx context.Context, batchID uuid.UUID, result string) error
	AddMember(ctx context.Context, batchID, learnerID uuid.UUID) error
	// RemoveMember returns the number of members left in the batch.
	RemoveMember(ctx context.Context, batchID, learnerID uuid.UUID) (int, error)
	Delete(ctx context.Context, batchID uuid.UUID) error
	List(ctx context.Context) ([]*domain.ReminderBatch, error)
}

type jobRunner interface {
	// Schedule arranges for fn to run at fireAt and returns an opaque
	// handle. A fireAt in the past runs fn immediately.
	Schedule(fireAt time.Time, fn func()) (string, error)
	// Cancel stops a pending job. Unknown or already-fired handles are
	// ignored.
	Cancel(handle string)
}

type notifier interface {
	Send(ctx context.Context, learnerID uuid.UUID, kind domain.MessageKind) error
}

type reviewReader interface {
	LastReviewDate(ctx context.Context, ownerID uuid.UUID) (*time.Time, error)
	HasActiveSession(ctx context.Context, ownerID uuid.UUID) (bool, error)
}

type profileRepo interface {
	GetByOwnerID(ctx context.Context, ownerID uuid.UUID) (*domain.ScheduleProfile, error)
	List(ctx context.Context) ([]*domain.ScheduleProfile, error)
}

type clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// ---------------------------------------------------------------------------
// Service
// ---------------------------------------------------------------------------

// Service is the reminder batcher. Learners whose next reminder falls on the
// same instant share a single batch and a single scheduled job, so the
// notification provider sees one outbound campaign per distinct timestamp.
type Service struct {
	batches  batchRepo
	runner   jobRunner
	notify   notifier
	reviews  reviewReader
	profiles profileRepo
	clock    clock
	log      *slog.Logger

	// mu serializes batch mutations: moving a learner between batches
	// touches two rows plus the job runner, and interleaving two moves
	// can leave an empty batch with a live job.
	mu sync.Mutex
}

// NewService creates a new reminder service.
func NewService(
	log *slog.Logger,
	batches batchRepo,
	runner jobRunner,
	notify notifier,
	reviews reviewReader,
	profiles profileRepo,
) *Service {
	return &Service{
		batches:  batches,
		runner:   runner,
		notify:   notify,
		reviews:  reviews,
		profiles: profiles,
		clock:    realClock{},
		log:      log.With("service", "reminder"),
	}
}

// Add places a learner into the batch firing at exactly fireAt, creating the
// batch and scheduling its job when no such batch exists yet. A learner
// belongs to at most one batch, so adding moves them out of any previous one.
func (s *Service) Add(ctx context.Context, learnerID uuid.UUID, fireAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.add(ctx, learnerID, fireAt)
}

func (s *Service) add(ctx context.Context, learnerID uuid.UUID, fireAt time.Time) error {
	fireAt = fireAt.UTC().Truncate(time.Minute)

	batch, created, err := s.batches.GetOrCreateByFireAt(ctx, fireAt)
	if err != nil {
		return fmt.Errorf("get or create batch: %w", err)
	}

	if created {
		batchID := batch.ID
		handle, err := s.runner.Schedule(fireAt, func() {
			s.fire(batchID)
		})
		if err != nil {
			return fmt.Errorf("schedule batch job: %w", err)
		}
		if err := s.batches.SetJobHandle(ctx, batchID, handle); err != nil {
			s.runner.Cancel(handle)
			return fmt.Errorf("store job handle: %w", err)
		}
		s.log.InfoContext(ctx, "batch created",
			slog.String("batch_id", batchID.String()),
			slog.Time("fire_at", fireAt),
		)
	}

	if prev, err := s.batches.FindByMember(ctx, learnerID); err == nil && prev.ID != batch.ID {
		if err := s.removeFromBatch(ctx, prev, learnerID); err != nil {
			return err
		}
	} else if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("find current batch: %w", err)
	}

	if err := s.batches.AddMember(ctx, batch.ID, learnerID); err != nil {
		return fmt.Errorf("add batch member: %w", err)
	}

	return nil
}

// Remove takes a learner out of whatever batch they are in. Removing a
// learner who is in no batch is a no-op. The last member leaving a batch
// cancels its job and deletes it.
func (s *Service) Remove(ctx context.Context, learnerID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.remove(ctx, learnerID)
}

func (s *Service) remove(ctx context.Context, learnerID uuid.UUID) error {
	batch, err := s.batches.FindByMember(ctx, learnerID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("find current batch: %w", err)
	}

	return s.removeFromBatch(ctx, batch, learnerID)
}

func (s *Service) removeFromBatch(ctx context.Context, batch *domain.ReminderBatch, learnerID uuid.UUID) error {
	remaining, err := s.batches.RemoveMember(ctx, batch.ID, learnerID)
	if err != nil {
		return fmt.Errorf("remove batch member: %w", err)
	}

	if remaining > 0 {
		return nil
	}

	s.runner.Cancel(batch.JobHandle)
	if err := s.batches.Delete(ctx, batch.ID); err != nil {
		return fmt.Errorf("delete empty batch: %w", err)
	}

	s.log.InfoContext(ctx, "empty batch deleted",
		slog.String("batch_id", batch.ID.String()),
		slog.Time("fire_at", batch.FireAt),
	)

	return nil
}

// Reschedule recomputes a learner's next reminder from their schedule
// profile and moves them into the matching batch. A profile without review
// days (or no profile at all) just removes any pending reminder.
func (s *Service) Reschedule(ctx context.Context, learnerID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prefs, err := s.profiles.GetByOwnerID(ctx, learnerID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return s.remove(ctx, learnerID)
		}
		return fmt.Errorf("get schedule profile: %w", err)
	}

	lastReview, err := s.reviews.LastReviewDate(ctx, learnerID)
	if err != nil {
		return fmt.Errorf("get last review date: %w", err)
	}

	fireAt, ok := NextRunAt(prefs, lastReview, s.clock.Now())
	if !ok {
		s.log.InfoContext(ctx, "no review days, reminder removed",
			slog.String("learner_id", learnerID.String()),
		)
		return s.remove(ctx, learnerID)
	}

	return s.add(ctx, learnerID, fireAt)
}

// NotifyMembers sends the review reminder to every member of a batch,
// skipping learners who already reviewed today, are mid-session, or turned
// notifications off. Send failures are logged and counted, never retried.
// A short summary of the run is recorded on the batch.
func (s *Service) NotifyMembers(ctx context.Context, batchID uuid.UUID) error {
	batch, err := s.batches.GetByID(ctx, batchID)
	if err != nil {
		return fmt.Errorf("get batch: %w", err)
	}

	var sent, skipped, failed int
	for _, learnerID := range batch.Members {
		notify, err := s.shouldNotify(ctx, learnerID)
		if err != nil {
			failed++
			s.log.ErrorContext(ctx, "reminder eligibility check failed",
				slog.String("learner_id", learnerID.String()),
				slog.String("error", err.Error()),
			)
			continue
		}
		if !notify {
			skipped++
			continue
		}

		if err := s.notify.Send(ctx, learnerID, domain.MessageKindReviewReminder); err != nil {
			failed++
			s.log.ErrorContext(ctx, "reminder send failed",
				slog.String("learner_id", learnerID.String()),
				slog.String("error", err.Error()),
			)
			continue
		}
		sent++
	}

	summary, _ := json.Marshal(map[string]int{"sent": sent, "skipped": skipped, "failed": failed})
	if err := s.batches.SetLastRunResult(ctx, batchID, string(summary)); err != nil {
		return fmt.Errorf("record run result: %w", err)
	}

	s.log.InfoContext(ctx, "batch fired",
		slog.String("batch_id", batchID.String()),
		slog.Int("sent", sent),
		slog.Int("skipped", skipped),
		slog.Int("failed", failed),
	)

	return nil
}

func (s *Service) shouldNotify(ctx context.Context, learnerID uuid.UUID) (bool, error) {
	prefs, err := s.profiles.GetByOwnerID(ctx, learnerID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("get schedule profile: %w", err)
	}
	if !prefs.NotificationsEnabled {
		return false, nil
	}

	lastReview, err := s.reviews.LastReviewDate(ctx, learnerID)
	if err != nil {
		return false, fmt.Errorf("get last review date: %w", err)
	}
	if lastReview != nil && domain.SameDate(*lastReview, s.clock.Now()) {
		return false, nil
	}

	active, err := s.reviews.HasActiveSession(ctx, learnerID)
	if err != nil {
		return false, fmt.Errorf("check active session: %w", err)
	}

	return !active, nil
}

// RestoreScheduled re-registers the jobs of all persisted batches, used on
// process start. Batches whose fire instant has already passed fire
// immediately.
func (s *Service) RestoreScheduled(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	batches, err := s.batches.List(ctx)
	if err != nil {
		return fmt.Errorf("list batches: %w", err)
	}

	for _, batch := range batches {
		batchID := batch.ID
		handle, err := s.runner.Schedule(batch.FireAt, func() {
			s.fire(batchID)
		})
		if err != nil {
			return fmt.Errorf("schedule batch %s: %w", batchID, err)
		}
		if err := s.batches.SetJobHandle(ctx, batchID, handle); err != nil {
			s.runner.Cancel(handle)
			return fmt.Errorf("store job handle for batch %s: %w", batchID, err)
		}
	}

	s.log.InfoContext(ctx, "scheduled batches restored", slog.Int("count", len(batches)))

	return nil
}

// ReregisterAll recomputes the reminder of every learner with a schedule
// profile. Run periodically so that learners who never finish a session
// still get their next reminder.
func (s *Service) ReregisterAll(ctx context.Context) error {
	profiles, err := s.profiles.List(ctx)
	if err != nil {
		return fmt.Errorf("list schedule profiles: %w", err)
	}

	var failed int
	for _, prefs := range profiles {
		if err := s.Reschedule(ctx, prefs.OwnerID); err != nil {
			failed++
			s.log.ErrorContext(ctx, "reschedule failed",
				slog.String("learner_id", prefs.OwnerID.String()),
				slog.String("error", err.Error()),
			)
		}
	}
	if failed > 0 {
		return fmt.Errorf("reschedule failed for %d of %d learners", failed, len(profiles))
	}

	s.log.InfoContext(ctx, "reminders reregistered", slog.Int("count", len(profiles)))

	return nil
}

// fire is the scheduled job body. It runs outside any request, so it gets a
// fresh context and reports failures through the log only.
func (s *Service) fire(batchID uuid.UUID) {
	ctx := context.Background()
	if err := s.NotifyMembers(ctx, batchID); err != nil {
		s.log.ErrorContext(ctx, "batch fire failed",
			slog.String("batch_id", batchID.String()),
			slog.String("error", err.Error()),
		)
	}
}
