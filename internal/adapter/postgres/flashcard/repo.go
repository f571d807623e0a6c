// Package flashcard implements the FlashCard repository using PostgreSQL.
// All queries use raw SQL; list and due-card filtering build conditions
// dynamically with squirrel.
package flashcard

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/heartmarshall/leerming-backend/internal/adapter/postgres"
	"github.com/heartmarshall/leerming-backend/internal/domain"
)

// ListFilter narrows ListByOwner results. Zero values mean "no filter".
type ListFilter struct {
	Search     string            // substring match on question or answer
	Difficulty domain.Difficulty // exact difficulty band
	Mastered   *bool             // mastered / not yet mastered
	Limit      int
	Offset     int
}

// Repo provides flashcard persistence backed by PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new flashcard repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// ---------------------------------------------------------------------------
// SQL constants
// ---------------------------------------------------------------------------

const cardColumns = `id, owner_id, question, answer, level, difficulty,
       mastered_at, next_review_date, created_at, updated_at`

const createSQL = `
INSERT INTO flashcards (id, owner_id, question, answer, level, difficulty,
                        next_review_date, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING ` + cardColumns

const getByIDSQL = `
SELECT ` + cardColumns + `
FROM flashcards
WHERE id = $1 AND owner_id = $2`

const updateContentSQL = `
UPDATE flashcards
SET question = $3, answer = $4, updated_at = $5
WHERE id = $1 AND owner_id = $2
RETURNING ` + cardColumns

const updateReviewStateSQL = `
UPDATE flashcards
SET level = $3, difficulty = $4, mastered_at = $5, next_review_date = $6, updated_at = $7
WHERE id = $1 AND owner_id = $2`

const deleteSQL = `
DELETE FROM flashcards WHERE id = $1 AND owner_id = $2`

// ---------------------------------------------------------------------------
// Read operations
// ---------------------------------------------------------------------------

// GetByID returns a card by primary key filtered by owner_id.
// Returns domain.ErrNotFound if the card does not exist or belongs to
// another learner.
func (r *Repo) GetByID(ctx context.Context, ownerID, cardID uuid.UUID) (*domain.FlashCard, error) {
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	row := querier.QueryRow(ctx, getByIDSQL, cardID, ownerID)

	card, err := scanCard(row)
	if err != nil {
		return nil, mapError(err, "flashcard", cardID)
	}

	return card, nil
}

// FindDueIDs returns the ids of all cards due for review on the given date:
// not mastered, with a next review date on or before the date (or none at
// all, which marks a brand-new card).
func (r *Repo) FindDueIDs(ctx context.Context, ownerID uuid.UUID, date time.Time) ([]uuid.UUID, error) {
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	query, args, err := psql.Select("id").
		From("flashcards").
		Where(sq.Eq{"owner_id": ownerID}).
		Where(sq.Eq{"mastered_at": nil}).
		Where(sq.Or{
			sq.Eq{"next_review_date": nil},
			sq.LtOrEq{"next_review_date": domain.DateOnly(date)},
		}).
		OrderBy("created_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build due cards query: %w", err)
	}

	rows, err := querier.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find due cards: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan due card id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate due card ids: %w", err)
	}

	return ids, nil
}

// ListByOwner returns a learner's cards with optional filtering, newest
// first. Returns cards, total matching count, and error.
func (r *Repo) ListByOwner(ctx context.Context, ownerID uuid.UUID, filter ListFilter) ([]*domain.FlashCard, int, error) {
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	conds := filterConds(ownerID, filter)

	countQuery, countArgs, err := psql.Select("count(*)").From("flashcards").Where(conds).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count query: %w", err)
	}

	var total int
	if err := querier.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count cards: %w", err)
	}

	builder := psql.Select(cardColumns).
		From("flashcards").
		Where(conds).
		OrderBy("created_at DESC")
	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit)).Offset(uint64(filter.Offset))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list query: %w", err)
	}

	rows, err := querier.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list cards: %w", err)
	}
	defer rows.Close()

	cards, err := scanCards(rows)
	if err != nil {
		return nil, 0, fmt.Errorf("list cards: %w", err)
	}

	return cards, total, nil
}

func filterConds(ownerID uuid.UUID, filter ListFilter) sq.And {
	conds := sq.And{sq.Eq{"owner_id": ownerID}}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		conds = append(conds, sq.Or{
			sq.ILike{"question": pattern},
			sq.ILike{"answer": pattern},
		})
	}
	if filter.Difficulty != "" {
		conds = append(conds, sq.Eq{"difficulty": string(filter.Difficulty)})
	}
	if filter.Mastered != nil {
		if *filter.Mastered {
			conds = append(conds, sq.NotEq{"mastered_at": nil})
		} else {
			conds = append(conds, sq.Eq{"mastered_at": nil})
		}
	}
	return conds
}

// ---------------------------------------------------------------------------
// Write operations
// ---------------------------------------------------------------------------

// Create inserts a new card and returns the persisted domain.FlashCard.
func (r *Repo) Create(ctx context.Context, card *domain.FlashCard) (*domain.FlashCard, error) {
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	now := time.Now().UTC().Truncate(time.Microsecond)
	id := card.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	row := querier.QueryRow(ctx, createSQL,
		id, card.OwnerID, card.Question, card.Answer,
		card.Level, string(card.Difficulty), card.NextReviewDate, now, now,
	)

	created, err := scanCard(row)
	if err != nil {
		return nil, mapError(err, "flashcard", id)
	}

	return created, nil
}

// UpdateContent changes a card's question and answer without touching its
// review state.
func (r *Repo) UpdateContent(ctx context.Context, ownerID, cardID uuid.UUID, question, answer string) (*domain.FlashCard, error) {
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	now := time.Now().UTC().Truncate(time.Microsecond)
	row := querier.QueryRow(ctx, updateContentSQL, cardID, ownerID, question, answer, now)

	card, err := scanCard(row)
	if err != nil {
		return nil, mapError(err, "flashcard", cardID)
	}

	return card, nil
}

// UpdateReviewState persists the leveling fields of a card: level,
// difficulty, mastery mark and next review date.
// Returns domain.ErrNotFound if the card does not exist or belongs to
// another learner.
func (r *Repo) UpdateReviewState(ctx context.Context, card *domain.FlashCard) error {
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	now := time.Now().UTC().Truncate(time.Microsecond)
	tag, err := querier.Exec(ctx, updateReviewStateSQL,
		card.ID, card.OwnerID,
		card.Level, string(card.Difficulty), card.MasteredAt, card.NextReviewDate, now,
	)
	if err != nil {
		return mapError(err, "flashcard", card.ID)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("flashcard %s: %w", card.ID, domain.ErrNotFound)
	}

	return nil
}

// Delete removes a card by ID.
// Returns domain.ErrNotFound if the card does not exist or belongs to
// another learner.
func (r *Repo) Delete(ctx context.Context, ownerID, cardID uuid.UUID) error {
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	tag, err := querier.Exec(ctx, deleteSQL, cardID, ownerID)
	if err != nil {
		return mapError(err, "flashcard", cardID)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("flashcard %s: %w", cardID, domain.ErrNotFound)
	}

	return nil
}

// ---------------------------------------------------------------------------
// Row scanning helpers
// ---------------------------------------------------------------------------

func scanCard(row pgx.Row) (*domain.FlashCard, error) {
	var (
		card       domain.FlashCard
		difficulty string
	)

	if err := row.Scan(&card.ID, &card.OwnerID, &card.Question, &card.Answer,
		&card.Level, &difficulty, &card.MasteredAt, &card.NextReviewDate,
		&card.CreatedAt, &card.UpdatedAt); err != nil {
		return nil, err
	}

	card.Difficulty = domain.Difficulty(difficulty)
	normalizeDates(&card)

	return &card, nil
}

func scanCards(rows pgx.Rows) ([]*domain.FlashCard, error) {
	var cards []*domain.FlashCard
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		cards = append(cards, card)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if cards == nil {
		cards = []*domain.FlashCard{}
	}

	return cards, nil
}

// normalizeDates pins DATE columns to the canonical midnight-UTC form the
// domain layer compares against.
func normalizeDates(card *domain.FlashCard) {
	if card.NextReviewDate != nil {
		d := domain.DateOnly(*card.NextReviewDate)
		card.NextReviewDate = &d
	}
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
