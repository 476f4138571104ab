package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sparvidata/automation-core/internal/domain"
	"github.com/sparvidata/automation-core/internal/repository"
)

// Manager is the Schedule Manager: it owns the translation from a
// connection's ScheduleConfig into the materialized ScheduledJob rows the
// orchestrator polls, per SPEC_FULL.md §4.1.
type Manager struct {
	configs repository.AutomationConnectionConfigRepository
	jobs    repository.ScheduledJobRepository
	logger  *slog.Logger
}

func NewManager(configs repository.AutomationConnectionConfigRepository, jobs repository.ScheduledJobRepository, logger *slog.Logger) *Manager {
	return &Manager{configs: configs, jobs: jobs, logger: logger.With("component", "schedule_manager")}
}

// UpdateConnectionSchedule validates and persists a connection's full
// schedule configuration, then re-materializes one ScheduledJob row per
// enabled automation type — disabled or removed types have their row
// deleted so the orchestrator never sees a stale due job for them.
func (m *Manager) UpdateConnectionSchedule(ctx context.Context, connectionID, organizationID uuid.UUID, cfg domain.ScheduleConfig) (*domain.AutomationConnectionConfig, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}

	stored, err := m.configs.Upsert(ctx, &domain.AutomationConnectionConfig{
		ConnectionID:   connectionID,
		OrganizationID: organizationID,
		ScheduleConfig: cfg,
	})
	if err != nil {
		return nil, fmt.Errorf("upsert schedule config: %w", err)
	}

	now := time.Now().UTC()
	for _, automationType := range domain.AllAutomationTypes {
		sched, ok := cfg[automationType]
		if !ok || !sched.Enabled {
			if delErr := m.jobs.Delete(ctx, connectionID, automationType); delErr != nil && !errors.Is(delErr, domain.ErrScheduledJobNotFound) {
				return nil, fmt.Errorf("remove scheduled job for %s: %w", automationType, delErr)
			}
			continue
		}

		next, runErr := NextRun(sched, now)
		if runErr != nil {
			return nil, fmt.Errorf("compute next run for %s: %w", automationType, runErr)
		}

		if _, upErr := m.jobs.Upsert(ctx, &domain.ScheduledJob{
			ConnectionID:   connectionID,
			OrganizationID: organizationID,
			AutomationType: automationType,
			Enabled:        true,
			NextRunAt:      next,
		}); upErr != nil {
			return nil, fmt.Errorf("materialize scheduled job for %s: %w", automationType, upErr)
		}
	}

	return stored, nil
}

// ConnectionSchedule is the read-model returned by GetConnectionSchedule:
// the stored config, falling back to domain.DefaultScheduleConfig when no
// row exists yet, plus each enabled automation type's next run time.
type ConnectionSchedule struct {
	ConnectionID uuid.UUID
	Config       domain.ScheduleConfig
	NextRuns     map[domain.AutomationType]time.Time
}

func (m *Manager) GetConnectionSchedule(ctx context.Context, connectionID uuid.UUID) (*ConnectionSchedule, error) {
	stored, err := m.configs.Get(ctx, connectionID)
	cfg := domain.DefaultScheduleConfig()
	if err == nil {
		cfg = stored.ScheduleConfig
	} else if !errors.Is(err, domain.ErrConfigNotFound) {
		return nil, fmt.Errorf("get schedule config: %w", err)
	}

	nextRuns := make(map[domain.AutomationType]time.Time, len(cfg))
	now := time.Now().UTC()
	for automationType, sched := range cfg {
		if !sched.Enabled {
			continue
		}
		next, runErr := NextRun(sched, now)
		if runErr != nil {
			m.logger.Warn("skipping next-run calculation", "automation_type", automationType, "error", runErr)
			continue
		}
		nextRuns[automationType] = next
	}

	return &ConnectionSchedule{ConnectionID: connectionID, Config: cfg, NextRuns: nextRuns}, nil
}

// GetDueJobs returns every enabled ScheduledJob whose NextRunAt falls within
// bufferMinutes of now in either direction, matching schedule_manager.py's
// get_due_jobs window of next_run_at ∈ [now-buffer, now+buffer]. It does not
// filter out already-running jobs — that is the status tracker's job,
// applied by the orchestrator right before dispatch.
func (m *Manager) GetDueJobs(ctx context.Context, bufferMinutes int) ([]*domain.ScheduledJob, error) {
	now := time.Now().UTC()
	buffer := time.Duration(bufferMinutes) * time.Minute
	lowerBound := now.Add(-buffer)
	upperBound := now.Add(buffer)
	jobs, err := m.jobs.DueWithin(ctx, lowerBound, upperBound, 500)
	if err != nil {
		return nil, fmt.Errorf("list due scheduled jobs: %w", err)
	}
	return jobs, nil
}

// MarkJobExecuted advances a ScheduledJob's last/next run times once the
// orchestrator has dispatched it, deriving the new schedule from cfg so a
// concurrent config update can't be silently clobbered by a stale read.
func (m *Manager) MarkJobExecuted(ctx context.Context, job *domain.ScheduledJob, cfg domain.ScheduleConfig) error {
	sched, ok := cfg[job.AutomationType]
	if !ok || !sched.Enabled {
		// The automation type was disabled since this job was claimed —
		// nothing to reschedule; the row will be deleted on the next
		// UpdateConnectionSchedule call.
		return nil
	}

	now := time.Now().UTC()
	next, err := NextRun(sched, now)
	if err != nil {
		return fmt.Errorf("compute next run: %w", err)
	}

	if err := m.jobs.MarkFired(ctx, job.ID, now, next); err != nil {
		return fmt.Errorf("mark job executed: %w", err)
	}
	return nil
}
