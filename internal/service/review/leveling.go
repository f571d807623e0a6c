package review

import (
	"math"
	"time"

	"github.com/heartmarshall/leerming-backend/internal/domain"
)

// reviewIntervals maps a card level to the number of days before the card
// reappears in a session. Fixed ladder, roughly doubling per level.
var reviewIntervals = map[int]int{
	1: 1,
	2: 2,
	3: 4,
	4: 7,
	5: 15,
	6: 30,
	7: 60,
}

// AdvanceCard applies one answer outcome to a card and returns the updated
// copy. Pure value computation: no DB, no context, no logger.
//
// Rules:
//   - a mastered card is returned unchanged (changed = false);
//   - a correct answer at MaxLevel masters the card: MasteredAt is set to
//     effectiveDate and the next review date is cleared;
//   - a correct answer below MaxLevel raises the level by one;
//   - a wrong answer resets the level to MinLevel;
//   - after any non-mastering change the difficulty label is recomputed and
//     the next review date becomes the first date that is both at least
//     interval days after effectiveDate and one of the learner's review
//     days (the candidate start date itself is eligible).
func AdvanceCard(card domain.FlashCard, correct bool, effectiveDate time.Time, prefs *domain.ScheduleProfile) (domain.FlashCard, bool) {
	if card.IsMastered() {
		return card, false
	}

	if correct && card.Level >= domain.MaxLevel {
		masteredAt := effectiveDate
		card.MasteredAt = &masteredAt
		card.NextReviewDate = nil
		card.Difficulty = domain.DifficultyForLevel(card.Level)
		return card, true
	}

	if correct {
		card.Level++
	} else {
		card.Level = domain.MinLevel
	}

	scheduleCard(&card, effectiveDate, prefs)
	return card, true
}

// SnapDifficulty applies a direct difficulty edit: the level snaps to the
// lowest level of the chosen band and the next review date is recomputed.
// Editing a mastered card counts as a manual reset and puts it back into
// rotation.
func SnapDifficulty(card domain.FlashCard, difficulty domain.Difficulty, effectiveDate time.Time, prefs *domain.ScheduleProfile) domain.FlashCard {
	card.MasteredAt = nil
	card.Level = difficulty.BaseLevel()
	scheduleCard(&card, effectiveDate, prefs)
	return card
}

func scheduleCard(card *domain.FlashCard, effectiveDate time.Time, prefs *domain.ScheduleProfile) {
	card.Difficulty = domain.DifficultyForLevel(card.Level)
	candidate := domain.DateOnly(effectiveDate).AddDate(0, 0, reviewIntervals[card.Level])
	next := nextScheduledDate(candidate, prefs.ReviewDays)
	card.NextReviewDate = &next
}

// nextScheduledDate walks forward day by day from candidate (inclusive)
// until it lands on one of the learner's review days. ReviewDays is a
// non-empty weekday set, so at most seven steps are needed.
func nextScheduledDate(candidate time.Time, reviewDays []time.Weekday) time.Time {
	for range [7]struct{}{} {
		for _, day := range reviewDays {
			if candidate.Weekday() == day {
				return candidate
			}
		}
		candidate = candidate.AddDate(0, 0, 1)
	}
	return candidate
}

// Score computes the review score percentage: round(correct/total*100),
// rounding half away from zero. A review with no cards scores 0.
func Score(correct, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(correct) / float64(total) * 100))
}
