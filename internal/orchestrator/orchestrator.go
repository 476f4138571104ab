// Package orchestrator implements the Orchestrator: the single ticking
// loop that turns due ScheduledJob rows into dispatched AutomationJob
// executions, and the bounded worker pool that runs them.
//
// Grounded on internal/scheduler/dispatcher.go's ticker-driven Start(ctx)
// loop, internal/scheduler/worker.go's goroutine-per-job dispatch under a
// bounded pool, and internal/scheduler/reaper.go's own tick loop for the
// terminal-job purge.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sparvidata/automation-core/internal/domain"
	"github.com/sparvidata/automation-core/internal/eventbus"
	"github.com/sparvidata/automation-core/internal/executor"
	"github.com/sparvidata/automation-core/internal/metrics"
	"github.com/sparvidata/automation-core/internal/repository"
	"github.com/sparvidata/automation-core/internal/schedule"
	"github.com/sparvidata/automation-core/internal/statustracker"
)

var (
	errWorkerPoolSaturated = errors.New("worker pool saturated")
	errNilResult           = errors.New("no result to record")
)

const (
	defaultTickInterval     = 60 * time.Second
	defaultPurgeInterval    = 10 * time.Minute
	defaultPurgeRetention   = 7 * 24 * time.Hour
	defaultRateLimitWindow  = 5 * time.Minute
	defaultWorkerCount      = 3
	shutdownGrace           = 5 * time.Second
	dueJobsBufferMinutes    = 5
)

// Config tunes the orchestrator away from its defaults; a zero Config
// is valid and resolves to spec defaults.
type Config struct {
	TickInterval    time.Duration
	PurgeInterval   time.Duration
	PurgeRetention  time.Duration
	RateLimitWindow time.Duration
	WorkerCount     int
}

// Orchestrator is the Orchestrator component: one ticker thread, one
// bounded worker pool, and an in-memory cancellation registry keyed by
// job ID.
type Orchestrator struct {
	scheduleMgr *schedule.Manager
	tracker     *statustracker.Tracker
	jobs        repository.AutomationJobRepository
	runs        repository.AutomationRunRepository
	bus         *eventbus.Bus
	executors   map[domain.AutomationType]executor.Executor
	logger      *slog.Logger

	tickInterval    time.Duration
	purgeInterval   time.Duration
	purgeRetention  time.Duration
	rateLimitWindow time.Duration

	sem chan struct{}
	wg  sync.WaitGroup

	cancelMu sync.Mutex
	cancels  map[uuid.UUID]context.CancelFunc
}

func New(
	scheduleMgr *schedule.Manager,
	tracker *statustracker.Tracker,
	jobs repository.AutomationJobRepository,
	runs repository.AutomationRunRepository,
	bus *eventbus.Bus,
	logger *slog.Logger,
	cfg Config,
) *Orchestrator {
	if cfg.TickInterval == 0 {
		cfg.TickInterval = defaultTickInterval
	}
	if cfg.PurgeInterval == 0 {
		cfg.PurgeInterval = defaultPurgeInterval
	}
	if cfg.PurgeRetention == 0 {
		cfg.PurgeRetention = defaultPurgeRetention
	}
	if cfg.RateLimitWindow == 0 {
		cfg.RateLimitWindow = defaultRateLimitWindow
	}
	if cfg.WorkerCount == 0 {
		cfg.WorkerCount = defaultWorkerCount
	}

	return &Orchestrator{
		scheduleMgr:     scheduleMgr,
		tracker:         tracker,
		jobs:            jobs,
		runs:            runs,
		bus:             bus,
		executors:       make(map[domain.AutomationType]executor.Executor),
		logger:          logger.With("component", "orchestrator"),
		tickInterval:    cfg.TickInterval,
		purgeInterval:   cfg.PurgeInterval,
		purgeRetention:  cfg.PurgeRetention,
		rateLimitWindow: cfg.RateLimitWindow,
		sem:             make(chan struct{}, cfg.WorkerCount),
		cancels:         make(map[uuid.UUID]context.CancelFunc),
	}
}

// RegisterExecutor wires the Task Executor for automationType. Called
// during composition, before Start.
func (o *Orchestrator) RegisterExecutor(automationType domain.AutomationType, e executor.Executor) {
	o.executors[automationType] = e
}

// SchedulerContext returns the narrow seam executors use to publish events
// and request follow-up runs, without holding a pointer back to the full
// Orchestrator.
func (o *Orchestrator) SchedulerContext() executor.SchedulerContext {
	return schedulerContextAdapter{o: o}
}

// Start launches the tick loop and the purge loop as background
// goroutines and returns immediately.
func (o *Orchestrator) Start(ctx context.Context) {
	o.wg.Add(2)
	go func() {
		defer o.wg.Done()
		o.runTickLoop(ctx)
	}()
	go func() {
		defer o.wg.Done()
		o.runPurgeLoop(ctx)
	}()
	o.logger.Info("orchestrator started", "tick_interval", o.tickInterval, "purge_interval", o.purgeInterval)
}

// Stop waits for in-flight loops and dispatched jobs to wind down, up to
// a fixed grace period, then returns regardless.
func (o *Orchestrator) Stop() {
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(shutdownGrace):
		o.logger.Warn("orchestrator shutdown grace period elapsed with work still in flight")
	}
}

func (o *Orchestrator) runTickLoop(ctx context.Context) {
	ticker := time.NewTicker(o.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.tick(ctx)
		}
	}
}

func (o *Orchestrator) runPurgeLoop(ctx context.Context) {
	ticker := time.NewTicker(o.purgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.purge(ctx)
		}
	}
}

func (o *Orchestrator) purge(ctx context.Context) {
	start := time.Now()
	defer func() { metrics.PurgeCycleDuration.Observe(time.Since(start).Seconds()) }()

	cutoff := time.Now().UTC().Add(-o.purgeRetention)
	n, err := o.jobs.PurgeTerminalBefore(ctx, cutoff)
	if err != nil {
		o.logger.Error("purge terminal jobs", "error", err)
		return
	}
	if n > 0 {
		metrics.PurgedJobsTotal.Add(float64(n))
		o.logger.Info("purged terminal jobs", "count", n, "cutoff", cutoff)
	}
}

// tick fetches due jobs and dispatches every survivor of the three-stage
// filter: in-tick pair dedup, the Status Tracker's running check, and its
// 5-minute rate limit. A per-job error never stops the tick from
// processing the rest of the batch.
func (o *Orchestrator) tick(ctx context.Context) {
	start := time.Now()
	defer func() { metrics.TickDuration.Observe(time.Since(start).Seconds()) }()

	due, err := o.scheduleMgr.GetDueJobs(ctx, dueJobsBufferMinutes)
	if err != nil {
		o.logger.Error("fetch due jobs", "error", err)
		return
	}
	if len(due) == 0 {
		return
	}

	seen := make(map[string]struct{}, len(due))
	var dispatched, suppressed int

	for _, scheduledJob := range due {
		key := pairKey(scheduledJob.ConnectionID, scheduledJob.AutomationType)
		if _, ok := seen[key]; ok {
			suppressed++
			metrics.JobsSuppressedTotal.WithLabelValues(string(scheduledJob.AutomationType)).Inc()
			continue
		}
		seen[key] = struct{}{}

		if o.tracker.IsJobRunning(ctx, scheduledJob.ConnectionID, scheduledJob.AutomationType) {
			suppressed++
			metrics.JobsSuppressedTotal.WithLabelValues(string(scheduledJob.AutomationType)).Inc()
			continue
		}
		if o.tracker.HasRecentJob(ctx, scheduledJob.ConnectionID, scheduledJob.AutomationType, o.rateLimitWindow) {
			suppressed++
			metrics.JobsSuppressedTotal.WithLabelValues(string(scheduledJob.AutomationType)).Inc()
			continue
		}

		if err := o.dispatchScheduled(ctx, scheduledJob); err != nil {
			o.logger.Error("dispatch scheduled job", "connection_id", scheduledJob.ConnectionID,
				"automation_type", scheduledJob.AutomationType, "error", err)
			continue
		}
		dispatched++
		metrics.JobsDispatchedTotal.WithLabelValues(string(scheduledJob.AutomationType)).Inc()
	}

	o.logger.Info("tick complete", "due", len(due), "dispatched", dispatched, "suppressed", suppressed)
}

// dispatchScheduled inserts an AutomationJob for a tick-discovered
// ScheduledJob, submits it to the worker pool, and advances the
// ScheduledJob's next run — in that order, so a crash between insert and
// markJobExecuted only risks one duplicate dispatch, never a skipped one.
func (o *Orchestrator) dispatchScheduled(ctx context.Context, scheduledJob *domain.ScheduledJob) error {
	job, err := o.createJob(ctx, scheduledJob.ConnectionID, scheduledJob.OrganizationID, scheduledJob.AutomationType, &scheduledJob.ID)
	if err != nil {
		return err
	}

	if err := o.submit(ctx, job); err != nil {
		if failErr := o.tracker.MarkJobFailed(ctx, job.ID, err.Error()); failErr != nil {
			o.logger.Error("mark job failed after submission error", "job_id", job.ID, "error", failErr)
		}
		return err
	}

	sched, err := o.scheduleMgr.GetConnectionSchedule(ctx, scheduledJob.ConnectionID)
	if err != nil {
		o.logger.Error("load connection schedule for markJobExecuted", "connection_id", scheduledJob.ConnectionID, "error", err)
		return nil
	}
	if err := o.scheduleMgr.MarkJobExecuted(ctx, scheduledJob, sched.Config); err != nil {
		o.logger.Error("mark scheduled job executed", "scheduled_job_id", scheduledJob.ID, "error", err)
	}
	return nil
}

// ImmediateRunResult is the return shape of ScheduleImmediateRun: the
// job actually created (if any), and the pair suppressed as a duplicate
// (if any) — a single call produces at most one of each.
type ImmediateRunResult struct {
	JobsCreated         []uuid.UUID
	PreventedDuplicates []string
}

// ScheduleImmediateRun dispatches automationType for connectionID right
// away, outside its normal cadence, subject to the same running/recent
// guards a tick applies — two calls within the rate-limit window for the
// same pair produce one dispatched job and one suppressed duplicate. A job
// whose submission the worker pool rejects is marked failed and is still
// reported in JobsCreated.
func (o *Orchestrator) ScheduleImmediateRun(ctx context.Context, connectionID, organizationID uuid.UUID, automationType domain.AutomationType) (*ImmediateRunResult, error) {
	result := &ImmediateRunResult{}

	if o.tracker.IsJobRunning(ctx, connectionID, automationType) || o.tracker.HasRecentJob(ctx, connectionID, automationType, o.rateLimitWindow) {
		result.PreventedDuplicates = append(result.PreventedDuplicates, pairKey(connectionID, automationType))
		return result, nil
	}

	job, err := o.createJob(ctx, connectionID, organizationID, automationType, nil)
	if err != nil {
		return nil, err
	}

	if err := o.submit(ctx, job); err != nil {
		if failErr := o.tracker.MarkJobFailed(ctx, job.ID, err.Error()); failErr != nil {
			o.logger.Error("mark job failed after submission error", "job_id", job.ID, "error", failErr)
		}
		o.logger.Error("submit immediate run", "job_id", job.ID, "error", err)
	}

	result.JobsCreated = append(result.JobsCreated, job.ID)
	return result, nil
}

func (o *Orchestrator) createJob(ctx context.Context, connectionID, organizationID uuid.UUID, automationType domain.AutomationType, scheduledJobID *uuid.UUID) (*domain.AutomationJob, error) {
	job, err := o.jobs.Create(ctx, &domain.AutomationJob{
		ConnectionID:   connectionID,
		OrganizationID: organizationID,
		ScheduledJobID: scheduledJobID,
		AutomationType: automationType,
		Status:         domain.JobScheduled,
		ScheduledAt:    time.Now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("create automation job: %w", err)
	}

	connIDCopy, orgIDCopy := job.ConnectionID, job.OrganizationID
	if _, err := o.bus.Publish(ctx, domain.EventJobScheduled, &connIDCopy, &orgIDCopy, nil, map[string]any{
		"jobId": job.ID, "automationType": job.AutomationType,
	}); err != nil {
		o.logger.Error("publish job scheduled event", "job_id", job.ID, "error", err)
	}

	return job, nil
}

// submit tries to hand job to the worker pool without blocking. A full
// pool is a submission failure, per spec: the ticker never waits for
// capacity, it fails the job immediately and moves on.
func (o *Orchestrator) submit(ctx context.Context, job *domain.AutomationJob) error {
	select {
	case o.sem <- struct{}{}:
	default:
		metrics.WorkerPoolSaturatedTotal.Inc()
		return errWorkerPoolSaturated
	}

	runCtx, cancel := context.WithCancel(context.Background())
	o.cancelMu.Lock()
	o.cancels[job.ID] = cancel
	o.cancelMu.Unlock()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer func() { <-o.sem }()
		defer func() {
			o.cancelMu.Lock()
			delete(o.cancels, job.ID)
			o.cancelMu.Unlock()
			cancel()
		}()
		o.runJob(runCtx, job)
	}()
	return nil
}

// runJob claims the job, runs its executor with panic protection, and
// records the outcome. An executor panic or error is always mapped to a
// failed job — it never propagates out of the worker goroutine.
func (o *Orchestrator) runJob(ctx context.Context, job *domain.AutomationJob) {
	if err := o.tracker.MarkJobRunning(ctx, job.ID); err != nil {
		o.logger.Error("claim job running", "job_id", job.ID, "error", err)
		return
	}

	connIDCopy, orgIDCopy := job.ConnectionID, job.OrganizationID
	if _, err := o.bus.Publish(ctx, domain.EventJobStarted, &connIDCopy, &orgIDCopy, nil, map[string]any{"jobId": job.ID}); err != nil {
		o.logger.Error("publish job started event", "job_id", job.ID, "error", err)
	}

	taskExecutor, ok := o.executors[job.AutomationType]
	if !ok {
		o.finishFailed(ctx, job, fmt.Errorf("no executor registered for automation type %s", job.AutomationType))
		return
	}

	start := time.Now()
	result, err := o.runExecutorSafely(ctx, taskExecutor, job)
	duration := time.Since(start).Seconds()

	if err != nil {
		metrics.JobExecutionDuration.WithLabelValues(string(job.AutomationType), "failed").Observe(duration)
		o.finishFailed(ctx, job, err)
		return
	}

	metrics.JobExecutionDuration.WithLabelValues(string(job.AutomationType), "completed").Observe(duration)
	o.finishCompleted(ctx, job, result)
}

// runExecutorSafely recovers a panicking executor and turns it into a
// plain error, so one broken task never takes down the worker goroutine.
func (o *Orchestrator) runExecutorSafely(ctx context.Context, e executor.Executor, job *domain.AutomationJob) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("executor panicked: %v", r)
		}
	}()
	return e.Execute(ctx, job)
}

func (o *Orchestrator) finishFailed(ctx context.Context, job *domain.AutomationJob, cause error) {
	metrics.JobsCompletedTotal.WithLabelValues(string(job.AutomationType), "failed").Inc()
	if err := o.tracker.MarkJobFailed(ctx, job.ID, cause.Error()); err != nil {
		o.logger.Error("mark job failed", "job_id", job.ID, "error", err)
	}
	connIDCopy, orgIDCopy := job.ConnectionID, job.OrganizationID
	if _, err := o.bus.Publish(ctx, domain.EventJobFailed, &connIDCopy, &orgIDCopy, nil, map[string]any{
		"jobId": job.ID, "error": cause.Error(),
	}); err != nil {
		o.logger.Error("publish job failed event", "job_id", job.ID, "error", err)
	}
}

func (o *Orchestrator) finishCompleted(ctx context.Context, job *domain.AutomationJob, result any) {
	metrics.JobsCompletedTotal.WithLabelValues(string(job.AutomationType), "completed").Inc()
	if err := o.tracker.MarkJobCompleted(ctx, job.ID, result); err != nil {
		o.logger.Error("mark job completed", "job_id", job.ID, "error", err)
		return
	}

	if raw, err := marshalResult(result); err == nil {
		if _, err := o.runs.Create(ctx, &domain.AutomationRun{JobID: job.ID, Results: raw}); err != nil {
			o.logger.Error("record automation run", "job_id", job.ID, "error", err)
		}
	}

	connIDCopy, orgIDCopy := job.ConnectionID, job.OrganizationID
	if _, err := o.bus.Publish(ctx, domain.EventJobCompleted, &connIDCopy, &orgIDCopy, nil, map[string]any{"jobId": job.ID}); err != nil {
		o.logger.Error("publish job completed event", "job_id", job.ID, "error", err)
	}
}

// CancelJob marks jobID cancelled in the store and, if it is currently
// running in this process, cancels its context. Cancellation is
// cooperative: the executor notices only the next time it checks ctx.
func (o *Orchestrator) CancelJob(ctx context.Context, jobID uuid.UUID) error {
	if err := o.tracker.MarkJobCancelled(ctx, jobID); err != nil {
		return err
	}

	o.cancelMu.Lock()
	cancel, ok := o.cancels[jobID]
	o.cancelMu.Unlock()
	if ok {
		cancel()
	}
	return nil
}

func pairKey(connectionID uuid.UUID, automationType domain.AutomationType) string {
	return connectionID.String() + ":" + string(automationType)
}

func marshalResult(result any) ([]byte, error) {
	if result == nil {
		return nil, errNilResult
	}
	return json.Marshal(result)
}

type schedulerContextAdapter struct {
	o *Orchestrator
}

func (a schedulerContextAdapter) PublishEvent(ctx context.Context, eventType domain.EventType, connectionID, organizationID *uuid.UUID, data any) (*domain.Event, error) {
	return a.o.bus.Publish(ctx, eventType, connectionID, organizationID, nil, data)
}

func (a schedulerContextAdapter) ScheduleImmediateRun(ctx context.Context, connectionID, organizationID uuid.UUID, automationType domain.AutomationType) error {
	_, err := a.o.ScheduleImmediateRun(ctx, connectionID, organizationID, automationType)
	return err
}
