package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sparvidata/automation-core/internal/domain"
)

type ScheduledJobRepository struct {
	pool *pgxpool.Pool
}

func NewScheduledJobRepository(pool *pgxpool.Pool) *ScheduledJobRepository {
	return &ScheduledJobRepository{pool: pool}
}

// Upsert is the only write path for a (connection, automation type) pair's
// ScheduledJob row — invariant P2 (at most one row per pair) holds because
// the unique index on (connection_id, automation_type) makes every write
// here an upsert, never a blind insert.
func (r *ScheduledJobRepository) Upsert(ctx context.Context, job *domain.ScheduledJob) (*domain.ScheduledJob, error) {
	query := `
		INSERT INTO scheduled_jobs (connection_id, organization_id, automation_type, enabled, next_run_at, last_run_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (connection_id, automation_type) DO UPDATE
		SET enabled = EXCLUDED.enabled, next_run_at = EXCLUDED.next_run_at, updated_at = NOW()
		RETURNING id, connection_id, organization_id, automation_type, enabled, next_run_at, last_run_at, created_at, updated_at`

	row := r.pool.QueryRow(ctx, query,
		job.ConnectionID, job.OrganizationID, job.AutomationType, job.Enabled, job.NextRunAt, job.LastRunAt,
	)
	return scanScheduledJob(row)
}

func (r *ScheduledJobRepository) GetByConnectionAndType(ctx context.Context, connectionID uuid.UUID, automationType domain.AutomationType) (*domain.ScheduledJob, error) {
	query := `
		SELECT id, connection_id, organization_id, automation_type, enabled, next_run_at, last_run_at, created_at, updated_at
		FROM scheduled_jobs
		WHERE connection_id = $1 AND automation_type = $2`

	row := r.pool.QueryRow(ctx, query, connectionID, automationType)
	return scanScheduledJob(row)
}

func (r *ScheduledJobRepository) Delete(ctx context.Context, connectionID uuid.UUID, automationType domain.AutomationType) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM scheduled_jobs WHERE connection_id = $1 AND automation_type = $2`,
		connectionID, automationType)
	if err != nil {
		return fmt.Errorf("delete scheduled job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrScheduledJobNotFound
	}
	return nil
}

// DueWithin does not lock rows: the orchestrator dedups due jobs in-tick
// and the Status Tracker's isJobRunning check guards against a double
// dispatch, so a plain read here is sufficient (see SPEC_FULL.md §4.2).
// The lower bound excludes rows that fell due before the window opened,
// matching getDueJobs's next_run_at ∈ [now-buffer, now+buffer] window.
func (r *ScheduledJobRepository) DueWithin(ctx context.Context, lowerBound, upperBound time.Time, limit int) ([]*domain.ScheduledJob, error) {
	query := `
		SELECT id, connection_id, organization_id, automation_type, enabled, next_run_at, last_run_at, created_at, updated_at
		FROM scheduled_jobs
		WHERE enabled AND next_run_at >= $1 AND next_run_at <= $2
		ORDER BY next_run_at ASC
		LIMIT $3`

	rows, err := r.pool.Query(ctx, query, lowerBound, upperBound, limit)
	if err != nil {
		return nil, fmt.Errorf("list due scheduled jobs: %w", err)
	}
	defer rows.Close()

	var out []*domain.ScheduledJob
	for rows.Next() {
		j, err := scanScheduledJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, nil
}

func (r *ScheduledJobRepository) MarkFired(ctx context.Context, id uuid.UUID, firedAt time.Time, nextRunAt time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE scheduled_jobs SET last_run_at = $2, next_run_at = $3, updated_at = NOW() WHERE id = $1`,
		id, firedAt, nextRunAt)
	if err != nil {
		return fmt.Errorf("mark scheduled job fired: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrScheduledJobNotFound
	}
	return nil
}

func scanScheduledJob(row rowScanner) (*domain.ScheduledJob, error) {
	var j domain.ScheduledJob
	err := row.Scan(
		&j.ID, &j.ConnectionID, &j.OrganizationID, &j.AutomationType, &j.Enabled,
		&j.NextRunAt, &j.LastRunAt, &j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrScheduledJobNotFound
		}
		return nil, fmt.Errorf("scan scheduled job: %w", err)
	}
	return &j, nil
}
