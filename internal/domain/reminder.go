package domain

import (
	"time"

	"github.com/google/uuid"
)

// ReminderBatch groups learners whose next reminder fires at the same
// instant. One scheduled job serves the whole group: the downstream
// notification provider enforces a minimum spacing between outbound
// campaigns, so one timer per distinct timestamp keeps throughput compliant.
//
// Invariants:
//   - at most one batch per distinct FireAt (unique constraint);
//   - a learner is a member of at most one batch;
//   - a batch with no members is deleted and its job cancelled.
type ReminderBatch struct {
	ID            uuid.UUID
	FireAt        time.Time
	Members       []uuid.UUID
	JobHandle     string  // opaque reference into the scheduled job runner
	LastRunResult *string // short JSON summary of the last fire, for observability
	CreatedAt     time.Time
}

// MessageKind identifies the kind of notification sent to a learner.
type MessageKind string

const (
	MessageKindReviewReminder MessageKind = "REVIEW_REMINDER"
)

// HasMember reports whether the learner belongs to this batch.
func (b *ReminderBatch) HasMember(learnerID uuid.UUID) bool {
	for _, id := range b.Members {
		if id == learnerID {
			return true
		}
	}
	return false
}
