// Package statustracker implements the Status Tracker: the single
// responsibility of knowing whether a job is running, whether one ran
// recently, and moving jobs through their terminal states.
//
// Grounded on
// original_source/backend/core/automation/task_status_tracker.py: reads
// fail open (an error checking state is treated as "no", never as "yes",
// so a failing read never stalls dispatch; a duplicate dispatch that
// results is rejected by the repository's ClaimRunning guard) while writes
// propagate their error to the caller.
package statustracker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sparvidata/automation-core/internal/domain"
	"github.com/sparvidata/automation-core/internal/repository"
)

type Tracker struct {
	jobs   repository.AutomationJobRepository
	logger *slog.Logger
}

func New(jobs repository.AutomationJobRepository, logger *slog.Logger) *Tracker {
	return &Tracker{jobs: jobs, logger: logger.With("component", "status_tracker")}
}

// IsJobRunning reports whether a job of this type is currently running for
// connectionID. On a read error it assumes false — the orchestrator's
// in-tick dedup and the DB-level ClaimRunning guard are the real backstop
// against invariant P1, so fail-open here only risks an extra dispatch
// attempt that ClaimRunning will itself reject.
func (t *Tracker) IsJobRunning(ctx context.Context, connectionID uuid.UUID, automationType domain.AutomationType) bool {
	running, err := t.jobs.IsRunning(ctx, connectionID, automationType)
	if err != nil {
		t.logger.Error("failed to check running job, assuming not running",
			"connection_id", connectionID, "automation_type", automationType, "error", err)
		return false
	}
	return running
}

// HasRecentJob reports whether a job of this type was scheduled within the
// last window for connectionID — the 5-minute rate limit the orchestrator
// applies before dispatching a due job.
func (t *Tracker) HasRecentJob(ctx context.Context, connectionID uuid.UUID, automationType domain.AutomationType, window time.Duration) bool {
	since := time.Now().UTC().Add(-window)
	job, err := t.jobs.MostRecentSince(ctx, connectionID, automationType, since)
	if err != nil {
		t.logger.Error("failed to check recent job, assuming none",
			"connection_id", connectionID, "automation_type", automationType, "error", err)
		return false
	}
	return job != nil
}

func (t *Tracker) MarkJobRunning(ctx context.Context, jobID uuid.UUID) error {
	if err := t.jobs.ClaimRunning(ctx, jobID); err != nil {
		return fmt.Errorf("mark job running: %w", err)
	}
	return nil
}

func (t *Tracker) MarkJobCompleted(ctx context.Context, jobID uuid.UUID, resultSummary any) error {
	var raw []byte
	if resultSummary != nil {
		var err error
		raw, err = json.Marshal(resultSummary)
		if err != nil {
			return fmt.Errorf("marshal result summary: %w", err)
		}
	}
	if err := t.jobs.Complete(ctx, jobID, raw); err != nil {
		return fmt.Errorf("mark job completed: %w", err)
	}
	return nil
}

func (t *Tracker) MarkJobFailed(ctx context.Context, jobID uuid.UUID, errMsg string) error {
	if err := t.jobs.Fail(ctx, jobID, errMsg); err != nil {
		return fmt.Errorf("mark job failed: %w", err)
	}
	return nil
}

func (t *Tracker) MarkJobCancelled(ctx context.Context, jobID uuid.UUID) error {
	if err := t.jobs.Cancel(ctx, jobID); err != nil {
		return fmt.Errorf("mark job cancelled: %w", err)
	}
	return nil
}

// GetConnectionJobSummary aggregates job counts by automation type and
// status over the trailing windowHours.
func (t *Tracker) GetConnectionJobSummary(ctx context.Context, connectionID uuid.UUID, windowHours int) (*domain.JobSummary, error) {
	summary, err := t.jobs.Summary(ctx, connectionID, windowHours)
	if err != nil {
		return nil, fmt.Errorf("get connection job summary: %w", err)
	}
	return summary, nil
}
