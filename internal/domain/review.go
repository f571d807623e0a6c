package domain

import (
	"time"

	"github.com/google/uuid"
)

// Review is one day's bounded review run for a learner. At most one review
// exists per (owner, creation date); the card set is fixed at creation.
type Review struct {
	ID              uuid.UUID
	OwnerID         uuid.UUID
	CreationDate    time.Time // calendar date, midnight UTC
	FlashcardIDs    []uuid.UUID
	ScorePercentage int // 0..100
	CompletedAt     *time.Time
	CreatedAt       time.Time
}

// IsCompleted reports whether the review has been ended. Ending a completed
// review again is a no-op.
func (r *Review) IsCompleted() bool { return r.CompletedAt != nil }

// SessionState is the ephemeral cursor of an in-progress review session.
// It lives in the session store between Start and End and is owned
// exclusively by the review session engine.
type SessionState struct {
	OwnerID       uuid.UUID          `json:"owner_id"`
	ReviewID      uuid.UUID          `json:"review_id"`
	CardIDs       []uuid.UUID        `json:"card_ids"` // shuffled once at Start, never reordered
	CurrentCardID uuid.UUID          `json:"current_card_id"`
	Answers       map[uuid.UUID]bool `json:"answers"`
}

// CursorIndex returns the position of the current card in the queue,
// or -1 if the cursor points at an unknown card.
func (s *SessionState) CursorIndex() int {
	for i, id := range s.CardIDs {
		if id == s.CurrentCardID {
			return i
		}
	}
	return -1
}
