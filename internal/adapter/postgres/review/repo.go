// Package review implements the Review repository using PostgreSQL.
// A review row carries its fixed card set in the review_cards table; Create
// writes both, so callers run it inside a transaction.
package review

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/heartmarshall/leerming-backend/internal/adapter/postgres"
	"github.com/heartmarshall/leerming-backend/internal/domain"
)

// Repo provides review persistence backed by PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new review repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// ---------------------------------------------------------------------------
// SQL constants
// ---------------------------------------------------------------------------

const reviewColumns = `r.id, r.owner_id, r.creation_date, r.score_percentage, r.completed_at, r.created_at`

const createReviewSQL = `
INSERT INTO reviews (id, owner_id, creation_date, created_at)
VALUES ($1, $2, $3, $4)
RETURNING id, owner_id, creation_date, score_percentage, completed_at, created_at`

const addCardSQL = `
INSERT INTO review_cards (review_id, flashcard_id, position)
VALUES ($1, $2, $3)`

const getByIDSQL = `
SELECT ` + reviewColumns + `
FROM reviews r
WHERE r.id = $1`

const getByDateSQL = `
SELECT ` + reviewColumns + `
FROM reviews r
WHERE r.owner_id = $1 AND r.creation_date = $2`

const cardIDsSQL = `
SELECT flashcard_id
FROM review_cards
WHERE review_id = $1
ORDER BY position ASC`

const completeSQL = `
UPDATE reviews
SET score_percentage = $2, completed_at = $3
WHERE id = $1 AND completed_at IS NULL
RETURNING id, owner_id, creation_date, score_percentage, completed_at, created_at`

const lastCompletedDateSQL = `
SELECT max(creation_date)
FROM reviews
WHERE owner_id = $1 AND completed_at IS NOT NULL`

const countByOwnerSQL = `
SELECT count(*) FROM reviews WHERE owner_id = $1`

const listByOwnerSQL = `
SELECT ` + reviewColumns + `
FROM reviews r
WHERE r.owner_id = $1
ORDER BY r.creation_date DESC
LIMIT $2 OFFSET $3`

// ---------------------------------------------------------------------------
// Read operations
// ---------------------------------------------------------------------------

// GetByID returns a review by primary key, card set included.
func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Review, error) {
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	row := querier.QueryRow(ctx, getByIDSQL, id)

	rev, err := scanReview(row)
	if err != nil {
		return nil, mapError(err, "review", id)
	}

	if rev.FlashcardIDs, err = r.cardIDs(ctx, querier, rev.ID); err != nil {
		return nil, err
	}

	return rev, nil
}

// GetByDate returns the learner's review for a calendar date, card set
// included. At most one review exists per (owner, date).
func (r *Repo) GetByDate(ctx context.Context, ownerID uuid.UUID, creationDate time.Time) (*domain.Review, error) {
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	row := querier.QueryRow(ctx, getByDateSQL, ownerID, domain.DateOnly(creationDate))

	rev, err := scanReview(row)
	if err != nil {
		return nil, mapError(err, "review", uuid.Nil)
	}

	if rev.FlashcardIDs, err = r.cardIDs(ctx, querier, rev.ID); err != nil {
		return nil, err
	}

	return rev, nil
}

// LastCompletedDate returns the creation date of the learner's most recent
// completed review, or nil when none exists.
func (r *Repo) LastCompletedDate(ctx context.Context, ownerID uuid.UUID) (*time.Time, error) {
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	var date *time.Time
	if err := querier.QueryRow(ctx, lastCompletedDateSQL, ownerID).Scan(&date); err != nil {
		return nil, fmt.Errorf("last completed review date: %w", err)
	}

	if date != nil {
		d := domain.DateOnly(*date)
		date = &d
	}

	return date, nil
}

// ListByOwner returns a learner's review history, newest first, with
// pagination. Card sets are not loaded. Returns reviews, total count, error.
func (r *Repo) ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*domain.Review, int, error) {
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	var total int
	if err := querier.QueryRow(ctx, countByOwnerSQL, ownerID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count reviews: %w", err)
	}

	rows, err := querier.Query(ctx, listByOwnerSQL, ownerID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	var reviews []*domain.Review
	for rows.Next() {
		rev, err := scanReview(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan review: %w", err)
		}
		reviews = append(reviews, rev)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate reviews: %w", err)
	}

	if reviews == nil {
		reviews = []*domain.Review{}
	}

	return reviews, total, nil
}

// ---------------------------------------------------------------------------
// Write operations
// ---------------------------------------------------------------------------

// Create inserts a review and its card set. A second review for the same
// (owner, creation_date) results in domain.ErrAlreadyExists. The card rows
// go in via a batch, so run Create inside a transaction.
func (r *Repo) Create(ctx context.Context, rev *domain.Review) (*domain.Review, error) {
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	now := time.Now().UTC().Truncate(time.Microsecond)
	id := rev.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	row := querier.QueryRow(ctx, createReviewSQL, id, rev.OwnerID, domain.DateOnly(rev.CreationDate), now)

	created, err := scanReview(row)
	if err != nil {
		return nil, mapError(err, "review", id)
	}

	batch := &pgx.Batch{}
	for pos, cardID := range rev.FlashcardIDs {
		batch.Queue(addCardSQL, created.ID, cardID, pos)
	}

	results := querier.SendBatch(ctx, batch)
	defer results.Close()
	for range rev.FlashcardIDs {
		if _, err := results.Exec(); err != nil {
			return nil, mapError(err, "review card", created.ID)
		}
	}
	if err := results.Close(); err != nil {
		return nil, mapError(err, "review card", created.ID)
	}

	created.FlashcardIDs = append([]uuid.UUID(nil), rev.FlashcardIDs...)

	return created, nil
}

// Complete marks a review completed with its final score. An
// already-completed review is not touched and returns domain.ErrNotFound.
func (r *Repo) Complete(ctx context.Context, reviewID uuid.UUID, scorePercentage int, completedAt time.Time) (*domain.Review, error) {
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	row := querier.QueryRow(ctx, completeSQL, reviewID, scorePercentage, completedAt)

	rev, err := scanReview(row)
	if err != nil {
		return nil, mapError(err, "review", reviewID)
	}

	if rev.FlashcardIDs, err = r.cardIDs(ctx, querier, rev.ID); err != nil {
		return nil, err
	}

	return rev, nil
}

// ---------------------------------------------------------------------------
// Row scanning helpers
// ---------------------------------------------------------------------------

func (r *Repo) cardIDs(ctx context.Context, querier postgres.Querier, reviewID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := querier.Query(ctx, cardIDsSQL, reviewID)
	if err != nil {
		return nil, fmt.Errorf("get review card ids: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan review card id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate review card ids: %w", err)
	}

	return ids, nil
}

func scanReview(row pgx.Row) (*domain.Review, error) {
	var rev domain.Review

	if err := row.Scan(&rev.ID, &rev.OwnerID, &rev.CreationDate,
		&rev.ScorePercentage, &rev.CompletedAt, &rev.CreatedAt); err != nil {
		return nil, err
	}

	rev.CreationDate = domain.DateOnly(rev.CreationDate)

	return &rev, nil
}

// ---------------------------------------------------------------------------
// Error mapping
// ---------------------------------------------------------------------------

// mapError converts pgx/pgconn errors into domain errors.
func mapError(err error, entity string, id uuid.UUID) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s %s: %w", entity, id, err)
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", entity, id, domain.ErrNotFound)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("%s %s: %w", entity, id, domain.ErrAlreadyExists)
		case "23503": // foreign_key_violation
			return fmt.Errorf("%s %s: %w", entity, id, domain.ErrNotFound)
		case "23514": // check_violation
			return fmt.Errorf("%s %s: %w", entity, id, domain.ErrValidation)
		}
	}

	return fmt.Errorf("%s %s: %w", entity, id, err)
}
