package review

// Manual mocks (moq-style with func fields and call recorders).

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/leerming-backend/internal/domain"
)

type flashcardRepoMock struct {
	GetByIDFunc           func(ctx context.Context, ownerID, cardID uuid.UUID) (*domain.FlashCard, error)
	FindDueIDsFunc        func(ctx context.Context, ownerID uuid.UUID, date time.Time) ([]uuid.UUID, error)
	UpdateReviewStateFunc func(ctx context.Context, card *domain.FlashCard) error

	mu               sync.Mutex
	getByIDCalls     []uuid.UUID
	findDueIDsCalls  []time.Time
	updateStateCalls []domain.FlashCard
}

func (m *flashcardRepoMock) GetByID(ctx context.Context, ownerID, cardID uuid.UUID) (*domain.FlashCard, error) {
	m.mu.Lock()
	m.getByIDCalls = append(m.getByIDCalls, cardID)
	m.mu.Unlock()
	return m.GetByIDFunc(ctx, ownerID, cardID)
}

func (m *flashcardRepoMock) FindDueIDs(ctx context.Context, ownerID uuid.UUID, date time.Time) ([]uuid.UUID, error) {
	m.mu.Lock()
	m.findDueIDsCalls = append(m.findDueIDsCalls, date)
	m.mu.Unlock()
	return m.FindDueIDsFunc(ctx, ownerID, date)
}

func (m *flashcardRepoMock) UpdateReviewState(ctx context.Context, card *domain.FlashCard) error {
	m.mu.Lock()
	m.updateStateCalls = append(m.updateStateCalls, *card)
	m.mu.Unlock()
	return m.UpdateReviewStateFunc(ctx, card)
}

func (m *flashcardRepoMock) UpdateReviewStateCalls() []domain.FlashCard {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.FlashCard(nil), m.updateStateCalls...)
}

type reviewRepoMock struct {
	GetByIDFunc           func(ctx context.Context, id uuid.UUID) (*domain.Review, error)
	GetByDateFunc         func(ctx context.Context, ownerID uuid.UUID, creationDate time.Time) (*domain.Review, error)
	CreateFunc            func(ctx context.Context, review *domain.Review) (*domain.Review, error)
	CompleteFunc          func(ctx context.Context, reviewID uuid.UUID, scorePercentage int, completedAt time.Time) (*domain.Review, error)
	LastCompletedDateFunc func(ctx context.Context, ownerID uuid.UUID) (*time.Time, error)

	mu            sync.Mutex
	createCalls   []domain.Review
	completeCalls []int
}

func (m *reviewRepoMock) GetByID(ctx context.Context, id uuid.UUID) (*domain.Review, error) {
	return m.GetByIDFunc(ctx, id)
}

func (m *reviewRepoMock) GetByDate(ctx context.Context, ownerID uuid.UUID, creationDate time.Time) (*domain.Review, error) {
	return m.GetByDateFunc(ctx, ownerID, creationDate)
}

func (m *reviewRepoMock) Create(ctx context.Context, review *domain.Review) (*domain.Review, error) {
	m.mu.Lock()
	m.createCalls = append(m.createCalls, *review)
	m.mu.Unlock()
	return m.CreateFunc(ctx, review)
}

func (m *reviewRepoMock) CreateCalls() []domain.Review {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Review(nil), m.createCalls...)
}

func (m *reviewRepoMock) Complete(ctx context.Context, reviewID uuid.UUID, scorePercentage int, completedAt time.Time) (*domain.Review, error) {
	m.mu.Lock()
	m.completeCalls = append(m.completeCalls, scorePercentage)
	m.mu.Unlock()
	return m.CompleteFunc(ctx, reviewID, scorePercentage, completedAt)
}

func (m *reviewRepoMock) CompleteCalls() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.completeCalls...)
}

func (m *reviewRepoMock) LastCompletedDate(ctx context.Context, ownerID uuid.UUID) (*time.Time, error) {
	return m.LastCompletedDateFunc(ctx, ownerID)
}

// sessionStoreMock is an in-memory session store used as a stand-in for the
// Redis adapter.
type sessionStoreMock struct {
	mu     sync.Mutex
	states map[uuid.UUID]*domain.SessionState

	putCalls    int
	deleteCalls int
}

func newSessionStoreMock() *sessionStoreMock {
	return &sessionStoreMock{states: make(map[uuid.UUID]*domain.SessionState)}
}

func (m *sessionStoreMock) Get(_ context.Context, ownerID uuid.UUID) (*domain.SessionState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.states[ownerID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *state
	clone.CardIDs = append([]uuid.UUID(nil), state.CardIDs...)
	clone.Answers = make(map[uuid.UUID]bool, len(state.Answers))
	for k, v := range state.Answers {
		clone.Answers[k] = v
	}
	return &clone, nil
}

func (m *sessionStoreMock) Put(_ context.Context, state *domain.SessionState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putCalls++
	clone := *state
	m.states[state.OwnerID] = &clone
	return nil
}

func (m *sessionStoreMock) Delete(_ context.Context, ownerID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteCalls++
	delete(m.states, ownerID)
	return nil
}

type profileRepoMock struct {
	GetByOwnerIDFunc func(ctx context.Context, ownerID uuid.UUID) (*domain.ScheduleProfile, error)
}

func (m *profileRepoMock) GetByOwnerID(ctx context.Context, ownerID uuid.UUID) (*domain.ScheduleProfile, error) {
	return m.GetByOwnerIDFunc(ctx, ownerID)
}

type reminderRegistrarMock struct {
	RescheduleFunc func(ctx context.Context, learnerID uuid.UUID) error

	mu              sync.Mutex
	rescheduleCalls []uuid.UUID
}

func (m *reminderRegistrarMock) Reschedule(ctx context.Context, learnerID uuid.UUID) error {
	m.mu.Lock()
	m.rescheduleCalls = append(m.rescheduleCalls, learnerID)
	m.mu.Unlock()
	if m.RescheduleFunc != nil {
		return m.RescheduleFunc(ctx, learnerID)
	}
	return nil
}

func (m *reminderRegistrarMock) RescheduleCalls() []uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]uuid.UUID(nil), m.rescheduleCalls...)
}

// txManagerMock runs the callback without a transaction.
type txManagerMock struct{}

func (txManagerMock) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// fixedClock always returns the same instant.
type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }
