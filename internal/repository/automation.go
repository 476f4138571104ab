package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sparvidata/automation-core/internal/domain"
)

// ScheduledJobRepository manages the single "next run" row per enabled
// (connection, automation type) pair that the Schedule Manager drives.
type ScheduledJobRepository interface {
	// Upsert creates or replaces the ScheduledJob row for
	// (connectionID, automationType) — invariant P2 relies on this being
	// the only write path, one row per pair.
	Upsert(ctx context.Context, job *domain.ScheduledJob) (*domain.ScheduledJob, error)
	GetByConnectionAndType(ctx context.Context, connectionID uuid.UUID, automationType domain.AutomationType) (*domain.ScheduledJob, error)
	Delete(ctx context.Context, connectionID uuid.UUID, automationType domain.AutomationType) error

	// DueWithin returns every enabled ScheduledJob with NextRunAt in
	// [lowerBound, upperBound], for the orchestrator's tick loop. Order is
	// NextRunAt ASC. The lower bound keeps a tick from resurrecting rows
	// that have been overdue since long before the buffer window opened.
	DueWithin(ctx context.Context, lowerBound, upperBound time.Time, limit int) ([]*domain.ScheduledJob, error)

	// MarkFired advances NextRunAt and LastRunAt in one statement — called
	// once the orchestrator has successfully dispatched a run for this row,
	// so a crash mid-dispatch can never skip the next occurrence.
	MarkFired(ctx context.Context, id uuid.UUID, firedAt time.Time, nextRunAt time.Time) error
}

// AutomationJobRepository is the execution-history table: one row per
// dispatched run, transitioning scheduled -> running -> {completed, failed,
// cancelled} per domain.JobStatus.CanTransition.
type AutomationJobRepository interface {
	Create(ctx context.Context, job *domain.AutomationJob) (*domain.AutomationJob, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.AutomationJob, error)

	// ClaimRunning transitions a job from scheduled to running, but only if
	// no other job for the same (ConnectionID, AutomationType) is already
	// running — the DB-level half of invariant P1. Returns
	// domain.ErrJobAlreadyRunning if one is.
	ClaimRunning(ctx context.Context, id uuid.UUID) error

	Complete(ctx context.Context, id uuid.UUID, resultSummary []byte) error
	Fail(ctx context.Context, id uuid.UUID, errMsg string) error
	Cancel(ctx context.Context, id uuid.UUID) error

	// IsRunning reports whether any job for (connectionID, automationType)
	// currently has status = running — statustracker's isJobRunning.
	IsRunning(ctx context.Context, connectionID uuid.UUID, automationType domain.AutomationType) (bool, error)

	// MostRecentSince returns the most recent job for the pair scheduled at
	// or after since, or nil — statustracker's hasRecentJob / 5-minute rate limit.
	MostRecentSince(ctx context.Context, connectionID uuid.UUID, automationType domain.AutomationType, since time.Time) (*domain.AutomationJob, error)

	// Summary aggregates job counts by type and status over the trailing
	// window, for getConnectionJobSummary.
	Summary(ctx context.Context, connectionID uuid.UUID, windowHours int) (*domain.JobSummary, error)

	// PurgeTerminalBefore deletes completed/failed/cancelled jobs whose
	// FinishedAt is older than cutoff — the orchestrator's 10-minute purge
	// of terminal state, by window not by row count.
	PurgeTerminalBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// AutomationRunRepository stores the audit payload attached to a completed
// job execution.
type AutomationRunRepository interface {
	Create(ctx context.Context, run *domain.AutomationRun) (*domain.AutomationRun, error)
	GetByJobID(ctx context.Context, jobID uuid.UUID) (*domain.AutomationRun, error)
}
