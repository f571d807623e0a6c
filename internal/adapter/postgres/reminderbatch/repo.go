// Package reminderbatch implements the ReminderBatch repository using
// PostgreSQL. The fire_at unique constraint gives one batch per instant and
// the learner_id unique constraint keeps a learner in at most one batch.
package reminderbatch

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

// Repo provides reminder batch persistence backed by PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new reminder batch repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// ---------------------------------------------------------------------------
// SQL constants
// ---------------------------------------------------------------------------

const batchColumns = `id, fire_at, job_handle, last_run_result, created_at`

const insertSQL = `
INSERT INTO reminder_batches (id, fire_at, created_at)
VALUES ($1, $2, $3)
ON CONFLICT (fire_at) DO NOTHING
RETURNING ` + batchColumns

const getByFireAtSQL = `
SELECT ` + batchColumns + `
FROM reminder_batches
WHERE fire_at = $1`

const getByIDSQL = `
SELECT ` + batchColumns + `
FROM reminder_batches
WHERE id = $1`

const findByMemberSQL = `
SELECT b.id, b.fire_at, b.job_handle, b.last_run_result, b.created_at
FROM reminder_batches b
JOIN reminder_batch_members m ON m.batch_id = b.id
WHERE m.learner_id = $1`

const membersSQL = `
SELECT learner_id
FROM reminder_batch_members
WHERE batch_id = $1
ORDER BY created_at ASC`

const setJobHandleSQL = `
UPDATE reminder_batches SET job_handle = $2 WHERE id = $1`

const setLastRunResultSQL = `
UPDATE reminder_batches SET last_run_result = $2 WHERE id = $1`

const addMemberSQL = `
INSERT INTO reminder_batch_members (batch_id, learner_id, created_at)
VALUES ($1, $2, $3)
ON CONFLICT (learner_id) DO UPDATE SET batch_id = EXCLUDED.batch_id`

const removeMemberSQL = `
DELETE FROM reminder_batch_members WHERE batch_id = $1 AND learner_id = $2`

const countMembersSQL = `
SELECT count(*) FROM reminder_batch_members WHERE batch_id = $1`

const deleteSQL = `
DELETE FROM reminder_batches WHERE id = $1`

const listSQL = `
SELECT ` + batchColumns + `
FROM reminder_batches
ORDER BY fire_at ASC`

// ---------------------------------------------------------------------------
// Operations
// ---------------------------------------------------------------------------

// GetOrCreateByFireAt returns the batch firing at exactly fireAt, inserting
// it when absent. The second result reports whether this call created it.
// A losing insert race falls back to reading the winner's row.
func (r *Repo) GetOrCreateByFireAt(ctx context.Context, fireAt time.Time) (*domain.ReminderBatch, bool, error) {
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	now := time.Now().UTC().Truncate(time.Microsecond)
	id := uuid.New()

	row := querier.QueryRow(ctx, insertSQL, id, fireAt.UTC(), now)
	batch, err := scanBatch(row)
	if err == nil {
		batch.Members = []uuid.UUID{}
		return batch, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, mapError(err, "reminder batch", id)
	}

	// ON CONFLICT DO NOTHING returned no row: the batch already exists.
	row = querier.QueryRow(ctx, getByFireAtSQL, fireAt.UTC())
	batch, err = scanBatch(row)
	if err != nil {
		return nil, false, mapError(err, "reminder batch", uuid.Nil)
	}

	if batch.Members, err = r.members(ctx, querier, batch.ID); err != nil {
		return nil, false, err
	}

	return batch, false, nil
}

// GetByID returns a batch with its member list.
func (r *Repo) GetByID(ctx context.Context, batchID uuid.UUID) (*domain.ReminderBatch, error) {
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	row := querier.QueryRow(ctx, getByIDSQL, batchID)

	batch, err := scanBatch(row)
	if err != nil {
		return nil, mapError(err, "reminder batch", batchID)
	}

	if batch.Members, err = r.members(ctx, querier, batch.ID); err != nil {
		return nil, err
	}

	return batch, nil
}

// FindByMember returns the batch a learner currently belongs to.
// Returns domain.ErrNotFound when the learner is in no batch.
func (r *Repo) FindByMember(ctx context.Context, learnerID uuid.UUID) (*domain.ReminderBatch, error) {
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	row := querier.QueryRow(ctx, findByMemberSQL, learnerID)

	batch, err := scanBatch(row)
	if err != nil {
		return nil, mapError(err, "reminder batch", uuid.Nil)
	}

	if batch.Members, err = r.members(ctx, querier, batch.ID); err != nil {
		return nil, err
	}

	return batch, nil
}

// List returns all batches ordered by fire instant, member lists included.
func (r *Repo) List(ctx context.Context) ([]*domain.ReminderBatch, error) {
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	rows, err := querier.Query(ctx, listSQL)
	if err != nil {
		return nil, fmt.Errorf("list reminder batches: %w", err)
	}
	defer rows.Close()

	var batches []*domain.ReminderBatch
	for rows.Next() {
		batch, err := scanBatch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reminder batch: %w", err)
		}
		batches = append(batches, batch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reminder batches: %w", err)
	}

	for _, batch := range batches {
		if batch.Members, err = r.members(ctx, querier, batch.ID); err != nil {
			return nil, err
		}
	}

	if batches == nil {
		batches = []*domain.ReminderBatch{}
	}

	return batches, nil
}

// SetJobHandle stores the runner's handle for the batch's scheduled job.
func (r *Repo) SetJobHandle(ctx context.Context, batchID uuid.UUID, handle string) error {
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	tag, err := querier.Exec(ctx, setJobHandleSQL, batchID, handle)
	if err != nil {
		return mapError(err, "reminder batch", batchID)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("reminder batch %s: %w", batchID, domain.ErrNotFound)
	}

	return nil
}

// SetLastRunResult records a summary of the batch's last fire.
func (r *Repo) SetLastRunResult(ctx context.Context, batchID uuid.UUID, result string) error {
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	tag, err := querier.Exec(ctx, setLastRunResultSQL, batchID, result)
	if err != nil {
		return mapError(err, "reminder batch", batchID)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("reminder batch %s: %w", batchID, domain.ErrNotFound)
	}

	return nil
}

// AddMember places a learner into a batch, moving them out of any other
// batch they were in.
func (r *Repo) AddMember(ctx context.Context, batchID, learnerID uuid.UUID) error {
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	now := time.Now().UTC().Truncate(time.Microsecond)
	if _, err := querier.Exec(ctx, addMemberSQL, batchID, learnerID, now); err != nil {
		return mapError(err, "reminder batch member", learnerID)
	}

	return nil
}

// RemoveMember drops a learner from a batch and returns how many members
// remain. Removing a learner who is not a member is a no-op.
func (r *Repo) RemoveMember(ctx context.Context, batchID, learnerID uuid.UUID) (int, error) {
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	if _, err := querier.Exec(ctx, removeMemberSQL, batchID, learnerID); err != nil {
		return 0, mapError(err, "reminder batch member", learnerID)
	}

	var remaining int
	if err := querier.QueryRow(ctx, countMembersSQL, batchID).Scan(&remaining); err != nil {
		return 0, fmt.Errorf("count batch members: %w", err)
	}

	return remaining, nil
}

// Delete removes a batch; its membership rows go with it.
func (r *Repo) Delete(ctx context.Context, batchID uuid.UUID) error {
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	tag, err := querier.Exec(ctx, deleteSQL, batchID)
	if err != nil {
		return mapError(err, "reminder batch", batchID)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("reminder batch %s: %w", batchID, domain.ErrNotFound)
	}

	return nil
}

// ---------------------------------------------------------------------------
// Row scanning helpers
// ---------------------------------------------------------------------------

func (r *Repo) members(ctx context.Context, querier postgres.Querier, batchID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := querier.Query(ctx, membersSQL, batchID)
	if err != nil {
		return nil, fmt.Errorf("get batch members: %w", err)
	}
	defer rows.Close()

	members := []uuid.UUID{}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan batch member: %w", err)
		}
		members = append(members, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate batch members: %w", err)
	}

	return members, nil
}

func scanBatch(row pgx.Row) (*domain.ReminderBatch, error) {
	var batch domain.ReminderBatch

	if err := row.Scan(&batch.ID, &batch.FireAt, &batch.JobHandle,
		&batch.LastRunResult, &batch.CreatedAt); err != nil {
		return nil, err
	}

	batch.FireAt = batch.FireAt.UTC()

	return &batch, nil
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
