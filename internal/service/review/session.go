package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/leerming-backend/internal/domain"
)

// Start begins today's review session for a learner, or resumes the one
// already in progress (idempotent re-entry, e.g. a page refresh).
//
// Returns domain.ErrNoCardsToReview when nothing is due today or when
// today's review has already been completed.
func (s *Service) Start(ctx context.Context, ownerID uuid.UUID) (*domain.Review, error) {
	unlock := s.locks.lock(ownerID)
	defer unlock()

	// Existing runtime state wins: same review, same queue order.
	state, err := s.sessions.Get(ctx, ownerID)
	if err == nil {
		rev, revErr := s.reviews.GetByID(ctx, state.ReviewID)
		if revErr == nil && !rev.IsCompleted() {
			s.log.InfoContext(ctx, "resuming session",
				slog.String("owner_id", ownerID.String()),
				slog.String("review_id", rev.ID.String()),
			)
			return rev, nil
		}
		if revErr != nil && !errors.Is(revErr, domain.ErrNotFound) {
			return nil, fmt.Errorf("get review for session: %w", revErr)
		}
		// The review vanished or was completed elsewhere: the runtime
		// state is stale and must go.
		if delErr := s.sessions.Delete(ctx, ownerID); delErr != nil {
			return nil, fmt.Errorf("drop stale session state: %w", delErr)
		}
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("get session state: %w", err)
	}

	today := domain.DateOnly(s.clock.Now())

	rev, err := s.reviews.GetByDate(ctx, ownerID, today)
	switch {
	case err == nil:
		if rev.IsCompleted() {
			// One review per day: a completed review means there is
			// nothing left to do today.
			return nil, domain.ErrNoCardsToReview
		}
	case errors.Is(err, domain.ErrNotFound):
		rev, err = s.createReview(ctx, ownerID, today)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("get review for date: %w", err)
	}

	queue := make([]uuid.UUID, len(rev.FlashcardIDs))
	copy(queue, rev.FlashcardIDs)
	rand.Shuffle(len(queue), func(i, j int) {
		queue[i], queue[j] = queue[j], queue[i]
	})

	state = &domain.SessionState{
		OwnerID:       ownerID,
		ReviewID:      rev.ID,
		CardIDs:       queue,
		CurrentCardID: queue[0],
		Answers:       make(map[uuid.UUID]bool),
	}
	if err := s.sessions.Put(ctx, state); err != nil {
		return nil, fmt.Errorf("store session state: %w", err)
	}

	s.log.InfoContext(ctx, "session started",
		slog.String("owner_id", ownerID.String()),
		slog.String("review_id", rev.ID.String()),
		slog.Int("cards", len(queue)),
	)

	return rev, nil
}

// createReview collects today's due cards and persists a new review with
// that fixed card set. Creation races from the same learner resolve through
// the (owner, creation_date) unique constraint.
func (s *Service) createReview(ctx context.Context, ownerID uuid.UUID, today time.Time) (*domain.Review, error) {
	dueIDs, err := s.cards.FindDueIDs(ctx, ownerID, today)
	if err != nil {
		return nil, fmt.Errorf("find due cards: %w", err)
	}
	if len(dueIDs) == 0 {
		return nil, domain.ErrNoCardsToReview
	}

	rev := &domain.Review{
		ID:           uuid.New(),
		OwnerID:      ownerID,
		CreationDate: today,
		FlashcardIDs: dueIDs,
	}

	var created *domain.Review
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		var txErr error
		created, txErr = s.reviews.Create(txCtx, rev)
		return txErr
	})
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			// Lost the race against a concurrent Start: reuse the winner.
			existing, getErr := s.reviews.GetByDate(ctx, ownerID, today)
			if getErr != nil {
				return nil, fmt.Errorf("get review after create race: %w", getErr)
			}
			return existing, nil
		}
		return nil, fmt.Errorf("create review: %w", err)
	}

	return created, nil
}

// CurrentCard returns the card under the cursor together with a
// "position/total" progress step. A card deleted mid-session surfaces as
// domain.ErrNotFound; the caller is expected to advance past it.
func (s *Service) CurrentCard(ctx context.Context, ownerID uuid.UUID) (*domain.FlashCard, string, error) {
	state, err := s.sessions.Get(ctx, ownerID)
	if err != nil {
		return nil, "", fmt.Errorf("get session state: %w", err)
	}

	step := fmt.Sprintf("%d/%d", state.CursorIndex()+1, len(state.CardIDs))

	card, err := s.cards.GetByID(ctx, ownerID, state.CurrentCardID)
	if err != nil {
		return nil, step, fmt.Errorf("get current card: %w", err)
	}

	return card, step, nil
}

// AddAnswer records the learner's answer for a card in the running session,
// overwriting any earlier answer for the same card. Cards outside the
// session queue are rejected with domain.ErrNotFound. The card itself is
// not touched until End.
func (s *Service) AddAnswer(ctx context.Context, ownerID, cardID uuid.UUID, correct bool) error {
	unlock := s.locks.lock(ownerID)
	defer unlock()

	state, err := s.sessions.Get(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("get session state: %w", err)
	}

	if !slices.Contains(state.CardIDs, cardID) {
		// Only cards from the session queue may be answered; anything else
		// would skew the score past the card set.
		return fmt.Errorf("card %s is not part of the session: %w", cardID, domain.ErrNotFound)
	}

	if state.Answers == nil {
		state.Answers = make(map[uuid.UUID]bool)
	}
	state.Answers[cardID] = correct

	if err := s.sessions.Put(ctx, state); err != nil {
		return fmt.Errorf("store session state: %w", err)
	}

	return nil
}

// Next moves the cursor to the next card in the queue. Cards that were
// deleted mid-session are skipped silently. When the queue is exhausted it
// returns domain.ErrSessionEnded, the signal to call End.
func (s *Service) Next(ctx context.Context, ownerID uuid.UUID) (*domain.FlashCard, error) {
	unlock := s.locks.lock(ownerID)
	defer unlock()

	state, err := s.sessions.Get(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("get session state: %w", err)
	}

	idx := state.CursorIndex()
	for next := idx + 1; next < len(state.CardIDs); next++ {
		card, err := s.cards.GetByID(ctx, ownerID, state.CardIDs[next])
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get next card: %w", err)
		}

		state.CurrentCardID = card.ID
		if err := s.sessions.Put(ctx, state); err != nil {
			return nil, fmt.Errorf("store session state: %w", err)
		}
		return card, nil
	}

	return nil, domain.ErrSessionEnded
}

// End closes the running session: every recorded answer is reconciled into
// its card through the leveling rules, the score is computed over the full
// card set (unanswered cards count as wrong), the review is marked
// completed, the runtime state is destroyed, and the learner's next
// reminder is re-registered.
//
// Ending an already-completed review is a silent no-op.
func (s *Service) End(ctx context.Context, ownerID uuid.UUID) (*domain.Review, error) {
	unlock := s.locks.lock(ownerID)
	defer unlock()

	state, err := s.sessions.Get(ctx, ownerID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// No runtime state: either End already ran or nothing started.
			return s.completedToday(ctx, ownerID)
		}
		return nil, fmt.Errorf("get session state: %w", err)
	}

	rev, err := s.reviews.GetByID(ctx, state.ReviewID)
	if err != nil {
		return nil, fmt.Errorf("get review: %w", err)
	}
	if rev.IsCompleted() {
		if err := s.sessions.Delete(ctx, ownerID); err != nil {
			return nil, fmt.Errorf("delete session state: %w", err)
		}
		return rev, nil
	}

	completedAt := s.clock.Now()

	prefs, err := s.profiles.GetByOwnerID(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("get schedule profile: %w", err)
	}

	// Re-leveling and completion commit together: a failure anywhere rolls
	// the whole thing back, so a retried End starts from untouched cards.
	var completed *domain.Review
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		correct := 0
		for cardID, answeredCorrectly := range state.Answers {
			if answeredCorrectly {
				correct++
			}

			card, err := s.cards.GetByID(txCtx, ownerID, cardID)
			if errors.Is(err, domain.ErrNotFound) {
				// Deleted mid-session: the answer still scores, but there
				// is no card left to re-level.
				continue
			}
			if err != nil {
				return fmt.Errorf("get card %s: %w", cardID, err)
			}

			updated, changed := AdvanceCard(*card, answeredCorrectly, completedAt, prefs)
			if changed {
				if err := s.cards.UpdateReviewState(txCtx, &updated); err != nil {
					return fmt.Errorf("update card %s: %w", cardID, err)
				}
			}
		}

		score := Score(correct, len(rev.FlashcardIDs))

		var txErr error
		completed, txErr = s.reviews.Complete(txCtx, rev.ID, score, completedAt)
		if txErr != nil {
			return fmt.Errorf("complete review: %w", txErr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.sessions.Delete(ctx, ownerID); err != nil {
		return nil, fmt.Errorf("delete session state: %w", err)
	}

	if err := s.reminders.Reschedule(ctx, ownerID); err != nil {
		return nil, fmt.Errorf("reschedule reminder: %w", err)
	}

	s.log.InfoContext(ctx, "session ended",
		slog.String("owner_id", ownerID.String()),
		slog.String("review_id", completed.ID.String()),
		slog.Int("score", completed.ScorePercentage),
	)

	return completed, nil
}

// completedToday returns today's review when it is already completed,
// making a repeated End call idempotent. Anything else is ErrNotFound.
func (s *Service) completedToday(ctx context.Context, ownerID uuid.UUID) (*domain.Review, error) {
	today := domain.DateOnly(s.clock.Now())
	rev, err := s.reviews.GetByDate(ctx, ownerID, today)
	if err != nil {
		return nil, fmt.Errorf("get review for date: %w", err)
	}
	if !rev.IsCompleted() {
		return nil, fmt.Errorf("review %s: %w", rev.ID, domain.ErrNotFound)
	}
	return rev, nil
}

// SetDifficulty applies a direct difficulty edit to a card: the level snaps
// to the band floor and the next review date is recomputed from today.
func (s *Service) SetDifficulty(ctx context.Context, ownerID, cardID uuid.UUID, difficulty domain.Difficulty) (*domain.FlashCard, error) {
	if !difficulty.IsValid() {
		return nil, domain.NewValidationError("difficulty", "must be one of EASY, MEDIUM, HARD")
	}

	card, err := s.cards.GetByID(ctx, ownerID, cardID)
	if err != nil {
		return nil, fmt.Errorf("get card: %w", err)
	}

	prefs, err := s.profiles.GetByOwnerID(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("get schedule profile: %w", err)
	}

	updated := SnapDifficulty(*card, difficulty, s.clock.Now(), prefs)
	if err := s.cards.UpdateReviewState(ctx, &updated); err != nil {
		return nil, fmt.Errorf("update card: %w", err)
	}

	return &updated, nil
}

// LastReviewDate returns the creation date of the learner's most recent
// completed review, or nil when none exists. Used by the reminder batcher
// to decide whom to notify and when the next reminder is due.
func (s *Service) LastReviewDate(ctx context.Context, ownerID uuid.UUID) (*time.Time, error) {
	return s.reviews.LastCompletedDate(ctx, ownerID)
}

// HasActiveSession reports whether the learner currently has runtime
// session state, i.e. an in-progress review.
func (s *Service) HasActiveSession(ctx context.Context, ownerID uuid.UUID) (bool, error) {
	_, err := s.sessions.Get(ctx, ownerID)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	return false, fmt.Errorf("get session state: %w", err)
}
