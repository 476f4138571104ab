package orchestrator_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sparvidata/automation-core/internal/domain"
	"github.com/sparvidata/automation-core/internal/eventbus"
	"github.com/sparvidata/automation-core/internal/orchestrator"
	"github.com/sparvidata/automation-core/internal/schedule"
	"github.com/sparvidata/automation-core/internal/statustracker"
)

// --- fakes, in the teacher's hand-rolled func-field style ---

type fakeScheduledJobRepo struct {
	mu    sync.Mutex
	due   []*domain.ScheduledJob
	fired []uuid.UUID
}

func (f *fakeScheduledJobRepo) Upsert(ctx context.Context, job *domain.ScheduledJob) (*domain.ScheduledJob, error) {
	return job, nil
}
func (f *fakeScheduledJobRepo) GetByConnectionAndType(ctx context.Context, connectionID uuid.UUID, automationType domain.AutomationType) (*domain.ScheduledJob, error) {
	return nil, domain.ErrScheduledJobNotFound
}
func (f *fakeScheduledJobRepo) Delete(ctx context.Context, connectionID uuid.UUID, automationType domain.AutomationType) error {
	return nil
}
func (f *fakeScheduledJobRepo) DueWithin(ctx context.Context, lowerBound, upperBound time.Time, limit int) ([]*domain.ScheduledJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*domain.ScheduledJob(nil), f.due...), nil
}
func (f *fakeScheduledJobRepo) MarkFired(ctx context.Context, id uuid.UUID, firedAt, nextRunAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fired = append(f.fired, id)
	return nil
}

type fakeConfigRepo struct{}

func (f *fakeConfigRepo) Get(ctx context.Context, connectionID uuid.UUID) (*domain.AutomationConnectionConfig, error) {
	return nil, domain.ErrConfigNotFound
}
func (f *fakeConfigRepo) Upsert(ctx context.Context, cfg *domain.AutomationConnectionConfig) (*domain.AutomationConnectionConfig, error) {
	return cfg, nil
}

// fakeAutomationJobRepo is an in-memory AutomationJobRepository sufficient
// to exercise P1 (at most one running job per pair) and P4 (monotonic
// transitions, including the scheduled->failed exception).
type fakeAutomationJobRepo struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*domain.AutomationJob
}

func newFakeAutomationJobRepo() *fakeAutomationJobRepo {
	return &fakeAutomationJobRepo{jobs: make(map[uuid.UUID]*domain.AutomationJob)}
}

func (f *fakeAutomationJobRepo) Create(ctx context.Context, job *domain.AutomationJob) (*domain.AutomationJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *job
	cp.ID = uuid.New()
	f.jobs[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (f *fakeAutomationJobRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.AutomationJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[id]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	out := *j
	return &out, nil
}

func (f *fakeAutomationJobRepo) ClaimRunning(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[id]
	if !ok {
		return domain.ErrJobNotFound
	}
	if !j.Status.CanTransition(domain.JobRunning) {
		return domain.ErrInvalidTransition
	}
	for _, other := range f.jobs {
		if other.ID != id && other.ConnectionID == j.ConnectionID &&
			other.AutomationType == j.AutomationType && other.Status == domain.JobRunning {
			return domain.ErrJobAlreadyRunning
		}
	}
	j.Status = domain.JobRunning
	return nil
}

func (f *fakeAutomationJobRepo) Complete(ctx context.Context, id uuid.UUID, resultSummary []byte) error {
	return f.finish(id, domain.JobCompleted, resultSummary, nil)
}
func (f *fakeAutomationJobRepo) Fail(ctx context.Context, id uuid.UUID, errMsg string) error {
	return f.finish(id, domain.JobFailed, nil, &errMsg)
}
func (f *fakeAutomationJobRepo) Cancel(ctx context.Context, id uuid.UUID) error {
	return f.finish(id, domain.JobCancelled, nil, nil)
}

func (f *fakeAutomationJobRepo) finish(id uuid.UUID, to domain.JobStatus, resultSummary []byte, errMsg *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[id]
	if !ok {
		return domain.ErrJobNotFound
	}
	if !j.Status.CanTransition(to) {
		return domain.ErrInvalidTransition
	}
	j.Status = to
	j.ResultSummary = resultSummary
	j.ErrorMessage = errMsg
	return nil
}

func (f *fakeAutomationJobRepo) IsRunning(ctx context.Context, connectionID uuid.UUID, automationType domain.AutomationType) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, j := range f.jobs {
		if j.ConnectionID == connectionID && j.AutomationType == automationType && j.Status == domain.JobRunning {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeAutomationJobRepo) MostRecentSince(ctx context.Context, connectionID uuid.UUID, automationType domain.AutomationType, since time.Time) (*domain.AutomationJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var found *domain.AutomationJob
	for _, j := range f.jobs {
		if j.ConnectionID == connectionID && j.AutomationType == automationType && !j.ScheduledAt.Before(since) {
			if found == nil || j.ScheduledAt.After(found.ScheduledAt) {
				cp := *j
				found = &cp
			}
		}
	}
	return found, nil
}

func (f *fakeAutomationJobRepo) Summary(ctx context.Context, connectionID uuid.UUID, windowHours int) (*domain.JobSummary, error) {
	return &domain.JobSummary{ConnectionID: connectionID, WindowHours: windowHours}, nil
}

func (f *fakeAutomationJobRepo) PurgeTerminalBefore(ctx context.Context, cutoff time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for id, j := range f.jobs {
		if (j.Status == domain.JobCompleted || j.Status == domain.JobFailed || j.Status == domain.JobCancelled) &&
			j.FinishedAt != nil && j.FinishedAt.Before(cutoff) {
			delete(f.jobs, id)
			n++
		}
	}
	return n, nil
}

type fakeRunRepo struct {
	mu   sync.Mutex
	runs []*domain.AutomationRun
}

func (f *fakeRunRepo) Create(ctx context.Context, run *domain.AutomationRun) (*domain.AutomationRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *run
	cp.ID = uuid.New()
	f.runs = append(f.runs, &cp)
	return &cp, nil
}
func (f *fakeRunRepo) GetByJobID(ctx context.Context, jobID uuid.UUID) (*domain.AutomationRun, error) {
	return nil, nil
}

type fakeEventRepo struct {
	mu     sync.Mutex
	events []*domain.Event
}

func (f *fakeEventRepo) Create(ctx context.Context, e *domain.Event) (*domain.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *e
	f.events = append(f.events, &cp)
	return &cp, nil
}
func (f *fakeEventRepo) ListByConnection(ctx context.Context, connectionID uuid.UUID, limit int) ([]*domain.Event, error) {
	return nil, nil
}
func (f *fakeEventRepo) ListByOrganization(ctx context.Context, organizationID uuid.UUID, types []domain.EventType, limit int) ([]*domain.Event, error) {
	return nil, nil
}

// blockingExecutor holds Execute open until release is closed, letting a
// test observe a job mid-flight (status == running) before it completes.
type blockingExecutor struct {
	release chan struct{}
	started chan struct{}
}

func newBlockingExecutor() *blockingExecutor {
	return &blockingExecutor{release: make(chan struct{}), started: make(chan struct{}, 8)}
}

func (e *blockingExecutor) Execute(ctx context.Context, job *domain.AutomationJob) (any, error) {
	e.started <- struct{}{}
	<-e.release
	return map[string]any{"ok": true}, nil
}

type failingExecutor struct{}

func (failingExecutor) Execute(ctx context.Context, job *domain.AutomationJob) (any, error) {
	return nil, errors.New("target unreachable")
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discardWriter{}, nil))
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func newTestOrchestrator(t *testing.T, jobsRepo *fakeAutomationJobRepo) (*orchestrator.Orchestrator, *fakeScheduledJobRepo) {
	t.Helper()
	logger := discardLogger()
	scheduledRepo := &fakeScheduledJobRepo{}
	mgr := schedule.NewManager(&fakeConfigRepo{}, scheduledRepo, logger)
	tracker := statustracker.New(jobsRepo, logger)
	bus := eventbus.New(&fakeEventRepo{}, logger)
	runs := &fakeRunRepo{}

	o := orchestrator.New(mgr, tracker, jobsRepo, runs, bus, logger, orchestrator.Config{
		WorkerCount: 3,
	})
	return o, scheduledRepo
}

// TestScheduleImmediateRun_DuplicateWithinWindowIsSuppressed exercises
// concrete scenario 4: calling ScheduleImmediateRun twice in quick
// succession for the same pair creates exactly one job and reports the
// second call as a prevented duplicate.
func TestScheduleImmediateRun_DuplicateWithinWindowIsSuppressed(t *testing.T) {
	jobsRepo := newFakeAutomationJobRepo()
	o, _ := newTestOrchestrator(t, jobsRepo)
	exec := newBlockingExecutor()
	o.RegisterExecutor(domain.AutomationMetadataRefresh, exec)

	connID, orgID := uuid.New(), uuid.New()
	ctx := context.Background()

	first, err := o.ScheduleImmediateRun(ctx, connID, orgID, domain.AutomationMetadataRefresh)
	if err != nil {
		t.Fatalf("first ScheduleImmediateRun: %v", err)
	}
	if len(first.JobsCreated) != 1 || len(first.PreventedDuplicates) != 0 {
		t.Fatalf("expected one job created and no duplicates, got %+v", first)
	}

	second, err := o.ScheduleImmediateRun(ctx, connID, orgID, domain.AutomationMetadataRefresh)
	if err != nil {
		t.Fatalf("second ScheduleImmediateRun: %v", err)
	}
	if len(second.JobsCreated) != 0 || len(second.PreventedDuplicates) != 1 {
		t.Fatalf("expected zero jobs created and one prevented duplicate, got %+v", second)
	}

	close(exec.release)
	o.Stop()
}

// TestRunJob_EnforcesAtMostOneRunningPerPair exercises P1: a second job
// for the same (connection, automation type) cannot claim running while
// the first is still in flight.
func TestRunJob_EnforcesAtMostOneRunningPerPair(t *testing.T) {
	jobsRepo := newFakeAutomationJobRepo()
	o, _ := newTestOrchestrator(t, jobsRepo)
	exec := newBlockingExecutor()
	o.RegisterExecutor(domain.AutomationMetadataRefresh, exec)

	connID, orgID := uuid.New(), uuid.New()
	ctx := context.Background()

	first, err := o.ScheduleImmediateRun(ctx, connID, orgID, domain.AutomationMetadataRefresh)
	if err != nil {
		t.Fatalf("ScheduleImmediateRun: %v", err)
	}
	if len(first.JobsCreated) != 1 {
		t.Fatalf("expected a job to be created, got %+v", first)
	}

	select {
	case <-exec.started:
	case <-time.After(2 * time.Second):
		t.Fatal("executor never started")
	}

	running, err := jobsRepo.IsRunning(ctx, connID, domain.AutomationMetadataRefresh)
	if err != nil || !running {
		t.Fatalf("expected job to be running, got running=%v err=%v", running, err)
	}

	second, err := jobsRepo.Create(ctx, &domain.AutomationJob{
		ConnectionID: connID, OrganizationID: orgID, AutomationType: domain.AutomationMetadataRefresh,
		Status: domain.JobScheduled, ScheduledAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("create second job: %v", err)
	}
	if err := statustracker.New(jobsRepo, discardLogger()).MarkJobRunning(ctx, second.ID); !errors.Is(err, domain.ErrJobAlreadyRunning) {
		t.Fatalf("expected second claim to fail with ErrJobAlreadyRunning, got %v", err)
	}

	close(exec.release)
	o.Stop()

	running, err = jobsRepo.IsRunning(ctx, connID, domain.AutomationMetadataRefresh)
	if err != nil || running {
		t.Fatalf("expected no job running after completion, got running=%v err=%v", running, err)
	}
}

// TestRunJob_ExecutorErrorMarksJobFailed exercises P4's terminal
// transition for a failing executor: the job ends failed with an error
// message recorded.
func TestRunJob_ExecutorErrorMarksJobFailed(t *testing.T) {
	jobsRepo := newFakeAutomationJobRepo()
	o, _ := newTestOrchestrator(t, jobsRepo)
	o.RegisterExecutor(domain.AutomationValidationAutomation, failingExecutor{})

	connID, orgID := uuid.New(), uuid.New()
	ctx := context.Background()

	result, err := o.ScheduleImmediateRun(ctx, connID, orgID, domain.AutomationValidationAutomation)
	if err != nil {
		t.Fatalf("ScheduleImmediateRun: %v", err)
	}
	if len(result.JobsCreated) != 1 {
		t.Fatalf("expected one job created, got %+v", result)
	}
	jobID := result.JobsCreated[0]

	o.Stop()

	job, err := jobsRepo.GetByID(ctx, jobID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if job.Status != domain.JobFailed {
		t.Fatalf("expected job to be failed, got %s", job.Status)
	}
	if job.ErrorMessage == nil || *job.ErrorMessage == "" {
		t.Fatal("expected an error message to be recorded")
	}
}

// TestSubmit_PoolSaturation_FailsJobWithoutEverRunning exercises the
// scheduled->failed exception to the monotonic state machine: a job
// whose worker-pool submission is rejected (pool at capacity) fails
// directly from scheduled, without ever passing through running.
func TestSubmit_PoolSaturation_FailsJobWithoutEverRunning(t *testing.T) {
	jobsRepo := newFakeAutomationJobRepo()
	logger := discardLogger()
	scheduledRepo := &fakeScheduledJobRepo{}
	mgr := schedule.NewManager(&fakeConfigRepo{}, scheduledRepo, logger)
	tracker := statustracker.New(jobsRepo, logger)
	bus := eventbus.New(&fakeEventRepo{}, logger)
	runs := &fakeRunRepo{}

	o := orchestrator.New(mgr, tracker, jobsRepo, runs, bus, logger, orchestrator.Config{
		WorkerCount: 1,
	})
	exec := newBlockingExecutor()
	o.RegisterExecutor(domain.AutomationMetadataRefresh, exec)
	o.RegisterExecutor(domain.AutomationSchemaChangeDetect, exec)

	connA, connB, orgID := uuid.New(), uuid.New(), uuid.New()
	ctx := context.Background()

	if _, err := o.ScheduleImmediateRun(ctx, connA, orgID, domain.AutomationMetadataRefresh); err != nil {
		t.Fatalf("first ScheduleImmediateRun: %v", err)
	}
	select {
	case <-exec.started:
	case <-time.After(2 * time.Second):
		t.Fatal("first executor never started")
	}

	secondResult, err := o.ScheduleImmediateRun(ctx, connB, orgID, domain.AutomationSchemaChangeDetect)
	if err != nil {
		t.Fatalf("second ScheduleImmediateRun: %v", err)
	}
	if len(secondResult.JobsCreated) != 1 {
		t.Fatalf("expected the second job to still be created (and then fail on submit), got %+v", secondResult)
	}

	jobID := secondResult.JobsCreated[0]
	job, err := jobsRepo.GetByID(ctx, jobID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if job.Status != domain.JobFailed {
		t.Fatalf("expected second job to be failed immediately (pool saturated with worker count 1), got %s", job.Status)
	}
	if job.StartedAt != nil {
		t.Fatal("expected a submission failure to never set StartedAt (no scheduled->running transition)")
	}

	close(exec.release)
	o.Stop()
}
