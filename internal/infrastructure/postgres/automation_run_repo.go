package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sparvidata/automation-core/internal/domain"
)

type AutomationRunRepository struct {
	pool *pgxpool.Pool
}

func NewAutomationRunRepository(pool *pgxpool.Pool) *AutomationRunRepository {
	return &AutomationRunRepository{pool: pool}
}

func (r *AutomationRunRepository) Create(ctx context.Context, run *domain.AutomationRun) (*domain.AutomationRun, error) {
	query := `
		INSERT INTO automation_runs (job_id, results)
		VALUES ($1, $2)
		RETURNING id, job_id, results, created_at`

	row := r.pool.QueryRow(ctx, query, run.JobID, run.Results)
	return scanRun(row)
}

func (r *AutomationRunRepository) GetByJobID(ctx context.Context, jobID uuid.UUID) (*domain.AutomationRun, error) {
	query := `SELECT id, job_id, results, created_at FROM automation_runs WHERE job_id = $1`
	row := r.pool.QueryRow(ctx, query, jobID)
	return scanRun(row)
}

func scanRun(row rowScanner) (*domain.AutomationRun, error) {
	var run domain.AutomationRun
	err := row.Scan(&run.ID, &run.JobID, &run.Results, &run.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("scan automation run: %w", err)
	}
	return &run, nil
}
