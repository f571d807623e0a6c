package domain

import (
	"time"

	"github.com/google/uuid"
)

// Level bounds of the fixed leveling ladder. A card climbs one level per
// correct answer and falls back to MinLevel on a wrong one.
const (
	MinLevel = 1
	MaxLevel = 7
)

// Difficulty is the coarse label derived from a card's level.
type Difficulty string

const (
	DifficultyHard   Difficulty = "HARD"   // levels 1-2
	DifficultyMedium Difficulty = "MEDIUM" // levels 3-4
	DifficultyEasy   Difficulty = "EASY"   // levels 5-7
)

func (d Difficulty) String() string { return string(d) }

func (d Difficulty) IsValid() bool {
	switch d {
	case DifficultyHard, DifficultyMedium, DifficultyEasy:
		return true
	}
	return false
}

// BaseLevel returns the lowest level of the difficulty band. Editing a card's
// difficulty directly snaps its level here.
func (d Difficulty) BaseLevel() int {
	switch d {
	case DifficultyMedium:
		return 3
	case DifficultyEasy:
		return 5
	default:
		return MinLevel
	}
}

// DifficultyForLevel maps a level onto its difficulty band.
func DifficultyForLevel(level int) Difficulty {
	switch {
	case level <= 2:
		return DifficultyHard
	case level <= 4:
		return DifficultyMedium
	default:
		return DifficultyEasy
	}
}

// FlashCard is a unit of knowledge a learner is memorizing.
type FlashCard struct {
	ID             uuid.UUID
	OwnerID        uuid.UUID
	Question       string
	Answer         string
	Level          int
	Difficulty     Difficulty
	MasteredAt     *time.Time
	NextReviewDate *time.Time // calendar date, midnight UTC
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsMastered reports whether the card left the review rotation for good.
func (c *FlashCard) IsMastered() bool { return c.MasteredAt != nil }

// IsDue reports whether the card is eligible for a review on the given date.
//   - Mastered cards are never due.
//   - Cards that were never scheduled are always due.
func (c *FlashCard) IsDue(date time.Time) bool {
	if c.IsMastered() {
		return false
	}
	if c.NextReviewDate == nil {
		return true
	}
	return !c.NextReviewDate.After(date)
}
