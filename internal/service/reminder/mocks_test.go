package reminder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/leerming-backend/internal/domain"
)

// batchRepoFake is an in-memory batch store honoring the same invariants as
// the postgres repo: one batch per fire instant, one batch per learner.
type batchRepoFake struct {
	mu       sync.Mutex
	byID     map[uuid.UUID]*domain.ReminderBatch
	byFireAt map[time.Time]uuid.UUID
}

func newBatchRepoFake() *batchRepoFake {
	return &batchRepoFake{
		byID:     make(map[uuid.UUID]*domain.ReminderBatch),
		byFireAt: make(map[time.Time]uuid.UUID),
	}
}

func (f *batchRepoFake) GetOrCreateByFireAt(_ context.Context, fireAt time.Time) (*domain.ReminderBatch, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if id, ok := f.byFireAt[fireAt]; ok {
		return f.clone(id), false, nil
	}

	batch := &domain.ReminderBatch{ID: uuid.New(), FireAt: fireAt}
	f.byID[batch.ID] = batch
	f.byFireAt[fireAt] = batch.ID
	return f.clone(batch.ID), true, nil
}

func (f *batchRepoFake) GetByID(_ context.Context, batchID uuid.UUID) (*domain.ReminderBatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.byID[batchID]; !ok {
		return nil, domain.ErrNotFound
	}
	return f.clone(batchID), nil
}

func (f *batchRepoFake) FindByMember(_ context.Context, learnerID uuid.UUID) (*domain.ReminderBatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for id, batch := range f.byID {
		if batch.HasMember(learnerID) {
			return f.clone(id), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *batchRepoFake) SetJobHandle(_ context.Context, batchID uuid.UUID, handle string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	batch, ok := f.byID[batchID]
	if !ok {
		return domain.ErrNotFound
	}
	batch.JobHandle = handle
	return nil
}

func (f *batchRepoFake) SetLastRunResult(_ context.Context, batchID uuid.UUID, result string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	batch, ok := f.byID[batchID]
	if !ok {
		return domain.ErrNotFound
	}
	batch.LastRunResult = &result
	return nil
}

func (f *batchRepoFake) AddMember(_ context.Context, batchID, learnerID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	batch, ok := f.byID[batchID]
	if !ok {
		return domain.ErrNotFound
	}
	if batch.HasMember(learnerID) {
		return nil
	}
	batch.Members = append(batch.Members, learnerID)
	return nil
}

func (f *batchRepoFake) RemoveMember(_ context.Context, batchID, learnerID uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	batch, ok := f.byID[batchID]
	if !ok {
		return 0, domain.ErrNotFound
	}
	members := batch.Members[:0]
	for _, id := range batch.Members {
		if id != learnerID {
			members = append(members, id)
		}
	}
	batch.Members = members
	return len(members), nil
}

func (f *batchRepoFake) Delete(_ context.Context, batchID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	batch, ok := f.byID[batchID]
	if !ok {
		return domain.ErrNotFound
	}
	delete(f.byFireAt, batch.FireAt)
	delete(f.byID, batchID)
	return nil
}

func (f *batchRepoFake) List(_ context.Context) ([]*domain.ReminderBatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]*domain.ReminderBatch, 0, len(f.byID))
	for id := range f.byID {
		out = append(out, f.clone(id))
	}
	return out, nil
}

// clone must be called with f.mu held.
func (f *batchRepoFake) clone(id uuid.UUID) *domain.ReminderBatch {
	batch := *f.byID[id]
	batch.Members = append([]uuid.UUID(nil), f.byID[id].Members...)
	return &batch
}

type scheduledJob struct {
	handle string
	fireAt time.Time
	fn     func()
}

type jobRunnerMock struct {
	mu        sync.Mutex
	seq       int
	scheduled []scheduledJob
	cancelled []string
}

func (m *jobRunnerMock) Schedule(fireAt time.Time, fn func()) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	handle := fmt.Sprintf("job-%d", m.seq)
	m.scheduled = append(m.scheduled, scheduledJob{handle: handle, fireAt: fireAt, fn: fn})
	return handle, nil
}

func (m *jobRunnerMock) Cancel(handle string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelled = append(m.cancelled, handle)
}

func (m *jobRunnerMock) ScheduleCalls() []scheduledJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]scheduledJob(nil), m.scheduled...)
}

func (m *jobRunnerMock) CancelCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.cancelled...)
}

type sentMessage struct {
	LearnerID uuid.UUID
	Kind      domain.MessageKind
}

type notifierMock struct {
	SendFunc func(ctx context.Context, learnerID uuid.UUID, kind domain.MessageKind) error

	mu    sync.Mutex
	calls []sentMessage
}

func (m *notifierMock) Send(ctx context.Context, learnerID uuid.UUID, kind domain.MessageKind) error {
	m.mu.Lock()
	m.calls = append(m.calls, sentMessage{LearnerID: learnerID, Kind: kind})
	m.mu.Unlock()
	if m.SendFunc == nil {
		return nil
	}
	return m.SendFunc(ctx, learnerID, kind)
}

func (m *notifierMock) SendCalls() []sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMessage(nil), m.calls...)
}

type reviewReaderMock struct {
	LastReviewDateFunc   func(ctx context.Context, ownerID uuid.UUID) (*time.Time, error)
	HasActiveSessionFunc func(ctx context.Context, ownerID uuid.UUID) (bool, error)
}

func (m *reviewReaderMock) LastReviewDate(ctx context.Context, ownerID uuid.UUID) (*time.Time, error) {
	if m.LastReviewDateFunc == nil {
		return nil, nil
	}
	return m.LastReviewDateFunc(ctx, ownerID)
}

func (m *reviewReaderMock) HasActiveSession(ctx context.Context, ownerID uuid.UUID) (bool, error) {
	if m.HasActiveSessionFunc == nil {
		return false, nil
	}
	return m.HasActiveSessionFunc(ctx, ownerID)
}

type profileRepoMock struct {
	GetByOwnerIDFunc func(ctx context.Context, ownerID uuid.UUID) (*domain.ScheduleProfile, error)
	ListFunc         func(ctx context.Context) ([]*domain.ScheduleProfile, error)
}

func (m *profileRepoMock) GetByOwnerID(ctx context.Context, ownerID uuid.UUID) (*domain.ScheduleProfile, error) {
	return m.GetByOwnerIDFunc(ctx, ownerID)
}

func (m *profileRepoMock) List(ctx context.Context) ([]*domain.ScheduleProfile, error) {
	return m.ListFunc(ctx)
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }
