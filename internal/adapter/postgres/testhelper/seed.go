package testhelper

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/heartmarshall/leerming-backend/internal/domain"
)

// uniqueSuffix returns a short unique string for generating non-conflicting test data.
func uniqueSuffix() string {
	return uuid.New().String()[:8]
}

// SeedFlashCard creates a level-1 HARD flashcard for a learner with no next
// review date, i.e. due immediately. Returns the filled domain.FlashCard.
func SeedFlashCard(t *testing.T, pool *pgxpool.Pool, ownerID uuid.UUID) domain.FlashCard {
	t.Helper()
	ctx := context.Background()

	suffix := uniqueSuffix()
	now := time.Now().UTC().Truncate(time.Microsecond)
	card := domain.FlashCard{
		ID:         uuid.New(),
		OwnerID:    ownerID,
		Question:   "question-" + suffix,
		Answer:     "answer-" + suffix,
		Level:      domain.MinLevel,
		Difficulty: domain.DifficultyHard,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	_, err := pool.Exec(ctx,
		`INSERT INTO flashcards (id, owner_id, question, answer, level, difficulty, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		card.ID, card.OwnerID, card.Question, card.Answer, card.Level, string(card.Difficulty), card.CreatedAt, card.UpdatedAt,
	)
	if err != nil {
		t.Fatalf("testhelper: SeedFlashCard insert: %v", err)
	}

	return card
}

// SeedScheduledCard creates a flashcard at the given level with a fixed next
// review date.
func SeedScheduledCard(t *testing.T, pool *pgxpool.Pool, ownerID uuid.UUID, level int, nextReview time.Time) domain.FlashCard {
	t.Helper()
	ctx := context.Background()

	card := SeedFlashCard(t, pool, ownerID)
	card.Level = level
	card.Difficulty = domain.DifficultyForLevel(level)
	next := domain.DateOnly(nextReview)
	card.NextReviewDate = &next

	_, err := pool.Exec(ctx,
		`UPDATE flashcards SET level = $2, difficulty = $3, next_review_date = $4 WHERE id = $1`,
		card.ID, card.Level, string(card.Difficulty), card.NextReviewDate,
	)
	if err != nil {
		t.Fatalf("testhelper: SeedScheduledCard update: %v", err)
	}

	return card
}

// SeedMasteredCard creates a flashcard already marked as mastered.
func SeedMasteredCard(t *testing.T, pool *pgxpool.Pool, ownerID uuid.UUID) domain.FlashCard {
	t.Helper()
	ctx := context.Background()

	card := SeedFlashCard(t, pool, ownerID)
	now := time.Now().UTC().Truncate(time.Microsecond)
	card.Level = domain.MaxLevel
	card.Difficulty = domain.DifficultyEasy
	card.MasteredAt = &now

	_, err := pool.Exec(ctx,
		`UPDATE flashcards SET level = $2, difficulty = $3, mastered_at = $4 WHERE id = $1`,
		card.ID, card.Level, string(card.Difficulty), card.MasteredAt,
	)
	if err != nil {
		t.Fatalf("testhelper: SeedMasteredCard update: %v", err)
	}

	return card
}

// SeedProfile creates a schedule profile with every weekday enabled,
// 09:00 UTC review time, and notifications on.
func SeedProfile(t *testing.T, pool *pgxpool.Pool, ownerID uuid.UUID) domain.ScheduleProfile {
	t.Helper()
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Microsecond)
	prefs := domain.ScheduleProfile{
		OwnerID: ownerID,
		ReviewDays: []time.Weekday{
			time.Sunday, time.Monday, time.Tuesday, time.Wednesday,
			time.Thursday, time.Friday, time.Saturday,
		},
		ReviewTime:           domain.TimeOfDay{Hour: 9},
		Timezone:             "UTC",
		NotificationsEnabled: true,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	days := make([]int16, len(prefs.ReviewDays))
	for i, d := range prefs.ReviewDays {
		days[i] = int16(d)
	}

	_, err := pool.Exec(ctx,
		`INSERT INTO schedule_profiles (owner_id, review_days, review_time, timezone, notifications_enabled, created_at, updated_at)
		 VALUES ($1, $2, '09:00', $3, $4, $5, $6)`,
		prefs.OwnerID, days, prefs.Timezone, prefs.NotificationsEnabled, prefs.CreatedAt, prefs.UpdatedAt,
	)
	if err != nil {
		t.Fatalf("testhelper: SeedProfile insert: %v", err)
	}

	return prefs
}

// SeedReview creates a review for a calendar date with the given card set.
// Pass a non-nil completedAt to seed a completed review.
func SeedReview(t *testing.T, pool *pgxpool.Pool, ownerID uuid.UUID, creationDate time.Time, cardIDs []uuid.UUID, completedAt *time.Time) domain.Review {
	t.Helper()
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Microsecond)
	rev := domain.Review{
		ID:           uuid.New(),
		OwnerID:      ownerID,
		CreationDate: domain.DateOnly(creationDate),
		FlashcardIDs: cardIDs,
		CompletedAt:  completedAt,
		CreatedAt:    now,
	}

	_, err := pool.Exec(ctx,
		`INSERT INTO reviews (id, owner_id, creation_date, completed_at, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		rev.ID, rev.OwnerID, rev.CreationDate, rev.CompletedAt, rev.CreatedAt,
	)
	if err != nil {
		t.Fatalf("testhelper: SeedReview insert review: %v", err)
	}

	for pos, cardID := range cardIDs {
		_, err := pool.Exec(ctx,
			`INSERT INTO review_cards (review_id, flashcard_id, position) VALUES ($1, $2, $3)`,
			rev.ID, cardID, pos,
		)
		if err != nil {
			t.Fatalf("testhelper: SeedReview insert review_card[%d]: %v", pos, err)
		}
	}

	return rev
}

// SeedBatch creates a reminder batch with the given members.
func SeedBatch(t *testing.T, pool *pgxpool.Pool, fireAt time.Time, members ...uuid.UUID) domain.ReminderBatch {
	t.Helper()
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Microsecond)
	batch := domain.ReminderBatch{
		ID:        uuid.New(),
		FireAt:    fireAt.UTC(),
		Members:   members,
		CreatedAt: now,
	}

	_, err := pool.Exec(ctx,
		`INSERT INTO reminder_batches (id, fire_at, created_at) VALUES ($1, $2, $3)`,
		batch.ID, batch.FireAt, batch.CreatedAt,
	)
	if err != nil {
		t.Fatalf("testhelper: SeedBatch insert batch: %v", err)
	}

	for _, learnerID := range members {
		_, err := pool.Exec(ctx,
			`INSERT INTO reminder_batch_members (batch_id, learner_id, created_at) VALUES ($1, $2, $3)`,
			batch.ID, learnerID, now,
		)
		if err != nil {
			t.Fatalf("testhelper: SeedBatch insert member: %v", err)
		}
	}

	return batch
}
