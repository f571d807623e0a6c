package testhelper

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

func TestSetupTestDB_Smoke(t *testing.T) {
	pool := SetupTestDB(t)

	card := SeedFlashCard(t, pool, uuid.New())

	// Verify the card exists in the DB via SELECT.
	var question string
	err := pool.QueryRow(
		context.Background(),
		`SELECT question FROM flashcards WHERE id = $1`,
		card.ID,
	).Scan(&question)
	if err != nil {
		t.Fatalf("expected flashcard in DB, got error: %v", err)
	}

	if question != card.Question {
		t.Fatalf("expected question %q, got %q", card.Question, question)
	}
}
