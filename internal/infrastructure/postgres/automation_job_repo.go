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

type AutomationJobRepository struct {
	pool *pgxpool.Pool
}

func NewAutomationJobRepository(pool *pgxpool.Pool) *AutomationJobRepository {
	return &AutomationJobRepository{pool: pool}
}

func (r *AutomationJobRepository) Create(ctx context.Context, job *domain.AutomationJob) (*domain.AutomationJob, error) {
	query := `
		INSERT INTO automation_jobs (
			connection_id, organization_id, scheduled_job_id, automation_type,
			status, scheduled_at
		) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, connection_id, organization_id, scheduled_job_id, automation_type,
		          status, scheduled_at, started_at, finished_at, result_summary,
		          error_message, created_at, updated_at`

	row := r.pool.QueryRow(ctx, query,
		job.ConnectionID, job.OrganizationID, job.ScheduledJobID, job.AutomationType,
		job.Status, job.ScheduledAt,
	)
	return scanAutomationJob(row)
}

func (r *AutomationJobRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.AutomationJob, error) {
	query := `
		SELECT id, connection_id, organization_id, scheduled_job_id, automation_type,
		       status, scheduled_at, started_at, finished_at, result_summary,
		       error_message, created_at, updated_at
		FROM automation_jobs
		WHERE id = $1`

	row := r.pool.QueryRow(ctx, query, id)
	return scanAutomationJob(row)
}

// ClaimRunning is the DB-level half of invariant P1: it only flips scheduled
// -> running when no other job for the same (connection_id, automation_type)
// is currently running, using a correlated NOT EXISTS guard so two
// orchestrator goroutines racing on the same pair cannot both win.
func (r *AutomationJobRepository) ClaimRunning(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE automation_jobs AS j
		SET    status = 'running', started_at = NOW(), updated_at = NOW()
		WHERE  j.id = $1
		  AND  j.status = 'scheduled'
		  AND  NOT EXISTS (
		      SELECT 1 FROM automation_jobs o
		      WHERE o.connection_id = j.connection_id
		        AND o.automation_type = j.automation_type
		        AND o.status = 'running'
		        AND o.id != j.id
		  )`

	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("claim job running: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return domain.ErrJobAlreadyRunning
	}
	return nil
}

func (r *AutomationJobRepository) Complete(ctx context.Context, id uuid.UUID, resultSummary []byte) error {
	return r.finish(ctx, id, domain.JobCompleted, resultSummary, nil)
}

func (r *AutomationJobRepository) Fail(ctx context.Context, id uuid.UUID, errMsg string) error {
	return r.finish(ctx, id, domain.JobFailed, nil, &errMsg)
}

func (r *AutomationJobRepository) Cancel(ctx context.Context, id uuid.UUID) error {
	return r.finish(ctx, id, domain.JobCancelled, nil, nil)
}

// finish transitions a job to a terminal status. The WHERE clause enforces
// domain.JobStatus.CanTransition at the storage layer too: completion only
// ever follows running, while failure and cancellation may also apply to a
// job still scheduled (a worker-pool submission failure, or an explicit
// cancelJob before the job was ever claimed) — so a late-arriving
// duplicate completion is a no-op either way.
func (r *AutomationJobRepository) finish(ctx context.Context, id uuid.UUID, to domain.JobStatus, resultSummary []byte, errMsg *string) error {
	fromClause := "status = 'running'"
	if to == domain.JobCancelled || to == domain.JobFailed {
		fromClause = "status IN ('scheduled', 'running')"
	}

	query := fmt.Sprintf(`
		UPDATE automation_jobs
		SET    status = $2, finished_at = NOW(), result_summary = $3, error_message = $4, updated_at = NOW()
		WHERE  id = $1 AND %s`, fromClause)

	tag, err := r.pool.Exec(ctx, query, id, to, resultSummary, errMsg)
	if err != nil {
		return fmt.Errorf("finish job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return domain.ErrInvalidTransition
	}
	return nil
}

func (r *AutomationJobRepository) IsRunning(ctx context.Context, connectionID uuid.UUID, automationType domain.AutomationType) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(
			SELECT 1 FROM automation_jobs
			WHERE connection_id = $1 AND automation_type = $2 AND status = 'running'
		 )`, connectionID, automationType).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check job running: %w", err)
	}
	return exists, nil
}

func (r *AutomationJobRepository) MostRecentSince(ctx context.Context, connectionID uuid.UUID, automationType domain.AutomationType, since time.Time) (*domain.AutomationJob, error) {
	query := `
		SELECT id, connection_id, organization_id, scheduled_job_id, automation_type,
		       status, scheduled_at, started_at, finished_at, result_summary,
		       error_message, created_at, updated_at
		FROM automation_jobs
		WHERE connection_id = $1 AND automation_type = $2 AND scheduled_at >= $3
		ORDER BY scheduled_at DESC
		LIMIT 1`

	row := r.pool.QueryRow(ctx, query, connectionID, automationType, since)
	job, err := scanAutomationJob(row)
	if errors.Is(err, domain.ErrJobNotFound) {
		return nil, nil
	}
	return job, err
}

func (r *AutomationJobRepository) Summary(ctx context.Context, connectionID uuid.UUID, windowHours int) (*domain.JobSummary, error) {
	since := time.Now().UTC().Add(-time.Duration(windowHours) * time.Hour)

	rows, err := r.pool.Query(ctx, `
		SELECT automation_type, status, COUNT(*)
		FROM automation_jobs
		WHERE connection_id = $1 AND scheduled_at >= $2
		GROUP BY automation_type, status`, connectionID, since)
	if err != nil {
		return nil, fmt.Errorf("summarize jobs: %w", err)
	}
	defer rows.Close()

	summary := &domain.JobSummary{
		ConnectionID: connectionID,
		WindowHours:  windowHours,
		CountByType:  make(map[domain.AutomationType]map[domain.JobStatus]int),
	}
	for rows.Next() {
		var at domain.AutomationType
		var st domain.JobStatus
		var count int
		if err := rows.Scan(&at, &st, &count); err != nil {
			return nil, err
		}
		if summary.CountByType[at] == nil {
			summary.CountByType[at] = make(map[domain.JobStatus]int)
		}
		summary.CountByType[at][st] = count
	}

	var lastJobAt *time.Time
	err = r.pool.QueryRow(ctx,
		`SELECT MAX(scheduled_at) FROM automation_jobs WHERE connection_id = $1`, connectionID,
	).Scan(&lastJobAt)
	if err != nil {
		return nil, fmt.Errorf("find last job time: %w", err)
	}
	summary.LastJobAt = lastJobAt

	return summary, nil
}

func (r *AutomationJobRepository) PurgeTerminalBefore(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM automation_jobs
		WHERE status IN ('completed', 'failed', 'cancelled') AND finished_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge terminal jobs: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func scanAutomationJob(row rowScanner) (*domain.AutomationJob, error) {
	var j domain.AutomationJob
	err := row.Scan(
		&j.ID, &j.ConnectionID, &j.OrganizationID, &j.ScheduledJobID, &j.AutomationType,
		&j.Status, &j.ScheduledAt, &j.StartedAt, &j.FinishedAt, &j.ResultSummary,
		&j.ErrorMessage, &j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("scan automation job: %w", err)
	}
	return &j, nil
}
