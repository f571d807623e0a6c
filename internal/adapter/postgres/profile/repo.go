// Package profile implements the ScheduleProfile repository using
// PostgreSQL. Review days travel as a smallint array, the review time as a
// TIME column.
package profile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/heartmarshall/leerming-backend/internal/adapter/postgres"
	"github.com/heartmarshall/leerming-backend/internal/domain"
)

// Repo provides schedule profile persistence backed by PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new profile repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// ---------------------------------------------------------------------------
// SQL constants
// ---------------------------------------------------------------------------

const profileColumns = `owner_id, review_days, review_time, timezone, notifications_enabled, created_at, updated_at`

const getByOwnerIDSQL = `
SELECT ` + profileColumns + `
FROM schedule_profiles
WHERE owner_id = $1`

const upsertSQL = `
INSERT INTO schedule_profiles (owner_id, review_days, review_time, timezone, notifications_enabled, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $6)
ON CONFLICT (owner_id) DO UPDATE
SET review_days = EXCLUDED.review_days,
    review_time = EXCLUDED.review_time,
    timezone = EXCLUDED.timezone,
    notifications_enabled = EXCLUDED.notifications_enabled,
    updated_at = EXCLUDED.updated_at
RETURNING ` + profileColumns

const listSQL = `
SELECT ` + profileColumns + `
FROM schedule_profiles
ORDER BY created_at ASC`

const deleteSQL = `
DELETE FROM schedule_profiles WHERE owner_id = $1`

// ---------------------------------------------------------------------------
// Operations
// ---------------------------------------------------------------------------

// GetByOwnerID returns a learner's schedule profile.
// Returns domain.ErrNotFound when the learner has none.
func (r *Repo) GetByOwnerID(ctx context.Context, ownerID uuid.UUID) (*domain.ScheduleProfile, error) {
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	row := querier.QueryRow(ctx, getByOwnerIDSQL, ownerID)

	prefs, err := scanProfile(row)
	if err != nil {
		return nil, mapError(err, "schedule profile", ownerID)
	}

	return prefs, nil
}

// List returns all schedule profiles, oldest first.
func (r *Repo) List(ctx context.Context) ([]*domain.ScheduleProfile, error) {
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	rows, err := querier.Query(ctx, listSQL)
	if err != nil {
		return nil, fmt.Errorf("list schedule profiles: %w", err)
	}
	defer rows.Close()

	var profiles []*domain.ScheduleProfile
	for rows.Next() {
		prefs, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan schedule profile: %w", err)
		}
		profiles = append(profiles, prefs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate schedule profiles: %w", err)
	}

	if profiles == nil {
		profiles = []*domain.ScheduleProfile{}
	}

	return profiles, nil
}

// Upsert creates the learner's profile or replaces its settings.
func (r *Repo) Upsert(ctx context.Context, prefs *domain.ScheduleProfile) (*domain.ScheduleProfile, error) {
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	now := time.Now().UTC().Truncate(time.Microsecond)
	row := querier.QueryRow(ctx, upsertSQL,
		prefs.OwnerID,
		toDayArray(prefs.ReviewDays),
		toPgTime(prefs.ReviewTime),
		prefs.Timezone,
		prefs.NotificationsEnabled,
		now,
	)

	saved, err := scanProfile(row)
	if err != nil {
		return nil, mapError(err, "schedule profile", prefs.OwnerID)
	}

	return saved, nil
}

// Delete removes a learner's profile.
// Returns domain.ErrNotFound when the learner has none.
func (r *Repo) Delete(ctx context.Context, ownerID uuid.UUID) error {
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	tag, err := querier.Exec(ctx, deleteSQL, ownerID)
	if err != nil {
		return mapError(err, "schedule profile", ownerID)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("schedule profile %s: %w", ownerID, domain.ErrNotFound)
	}

	return nil
}

// ---------------------------------------------------------------------------
// Row scanning and mapping helpers
// ---------------------------------------------------------------------------

func scanProfile(row pgx.Row) (*domain.ScheduleProfile, error) {
	var (
		prefs      domain.ScheduleProfile
		days       []int16
		reviewTime pgtype.Time
	)

	if err := row.Scan(&prefs.OwnerID, &days, &reviewTime, &prefs.Timezone,
		&prefs.NotificationsEnabled, &prefs.CreatedAt, &prefs.UpdatedAt); err != nil {
		return nil, err
	}

	prefs.ReviewDays = toWeekdays(days)
	prefs.ReviewTime = fromPgTime(reviewTime)

	return &prefs, nil
}

func toDayArray(days []time.Weekday) []int16 {
	out := make([]int16, len(days))
	for i, d := range days {
		out[i] = int16(d)
	}
	return out
}

func toWeekdays(days []int16) []time.Weekday {
	out := make([]time.Weekday, len(days))
	for i, d := range days {
		out[i] = time.Weekday(d)
	}
	return out
}

func toPgTime(t domain.TimeOfDay) pgtype.Time {
	micros := (int64(t.Hour)*3600 + int64(t.Minute)*60) * 1_000_000
	return pgtype.Time{Microseconds: micros, Valid: true}
}

func fromPgTime(t pgtype.Time) domain.TimeOfDay {
	seconds := t.Microseconds / 1_000_000
	return domain.TimeOfDay{
		Hour:   int(seconds / 3600),
		Minute: int(seconds % 3600 / 60),
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
