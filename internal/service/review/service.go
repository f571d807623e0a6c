package review

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/leerming-backend/internal/domain"
)

// ---------------------------------------------------------------------------
// Consumer-defined interfaces (private)
// ---------------------------------------------------------------------------

type flashcardRepo interface {
	GetByID(ctx context.Context, ownerID, cardID uuid.UUID) (*domain.FlashCard, error)
	FindDueIDs(ctx context.Context, ownerID uuid.UUID, date time.Time) ([]uuid.UUID, error)
	UpdateReviewState(ctx context.Context, card *domain.FlashCard) error
}

type reviewRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Review, error)
	GetByDate(ctx context.Context, ownerID uuid.UUID, creationDate time.Time) (*domain.Review, error)
	Create(ctx context.Context, review *domain.Review) (*domain.Review, error)
	Complete(ctx context.Context, reviewID uuid.UUID, scorePercentage int, completedAt time.Time) (*domain.Review, error)
	LastCompletedDate(ctx context.Context, ownerID uuid.UUID) (*time.Time, error)
}

type sessionStore interface {
	Get(ctx context.Context, ownerID uuid.UUID) (*domain.SessionState, error)
	Put(ctx context.Context, state *domain.SessionState) error
	Delete(ctx context.Context, ownerID uuid.UUID) error
}

type profileRepo interface {
	GetByOwnerID(ctx context.Context, ownerID uuid.UUID) (*domain.ScheduleProfile, error)
}

type reminderRegistrar interface {
	Reschedule(ctx context.Context, learnerID uuid.UUID) error
}

type txManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// ---------------------------------------------------------------------------
// Service
// ---------------------------------------------------------------------------

// Service implements the review session engine: it drives a learner through
// a shuffled queue of due cards and reconciles the answers back into card
// state at the end of the session.
type Service struct {
	cards     flashcardRepo
	reviews   reviewRepo
	sessions  sessionStore
	profiles  profileRepo
	reminders reminderRegistrar
	tx        txManager
	clock     clock
	log       *slog.Logger

	// locks serializes session mutations per learner so that concurrent
	// requests cannot lose answer or cursor updates.
	locks keyedMutex
}

// NewService creates a new review service.
func NewService(
	log *slog.Logger,
	cards flashcardRepo,
	reviews reviewRepo,
	sessions sessionStore,
	profiles profileRepo,
	reminders reminderRegistrar,
	tx txManager,
) *Service {
	return &Service{
		cards:     cards,
		reviews:   reviews,
		sessions:  sessions,
		profiles:  profiles,
		reminders: reminders,
		tx:        tx,
		clock:     realClock{},
		log:       log.With("service", "review"),
	}
}

// keyedMutex hands out one mutex per learner id. Entries are never evicted;
// the per-entry cost is a single mutex and the learner set is bounded.
type keyedMutex struct {
	mu sync.Map // uuid.UUID -> *sync.Mutex
}

func (k *keyedMutex) lock(id uuid.UUID) (unlock func()) {
	v, _ := k.mu.LoadOrStore(id, &sync.Mutex{})
	m := v.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}
