package statustracker_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sparvidata/automation-core/internal/domain"
	"github.com/sparvidata/automation-core/internal/statustracker"
)

type fakeJobRepo struct {
	isRunning       func(ctx context.Context, connectionID uuid.UUID, automationType domain.AutomationType) (bool, error)
	mostRecentSince func(ctx context.Context, connectionID uuid.UUID, automationType domain.AutomationType, since time.Time) (*domain.AutomationJob, error)
	claimRunning    func(ctx context.Context, id uuid.UUID) error
	complete        func(ctx context.Context, id uuid.UUID, resultSummary []byte) error
	fail            func(ctx context.Context, id uuid.UUID, errMsg string) error
	cancel          func(ctx context.Context, id uuid.UUID) error
	summary         func(ctx context.Context, connectionID uuid.UUID, windowHours int) (*domain.JobSummary, error)
}

func (f *fakeJobRepo) Create(ctx context.Context, job *domain.AutomationJob) (*domain.AutomationJob, error) {
	return nil, nil
}
func (f *fakeJobRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.AutomationJob, error) {
	return nil, nil
}
func (f *fakeJobRepo) ClaimRunning(ctx context.Context, id uuid.UUID) error {
	return f.claimRunning(ctx, id)
}
func (f *fakeJobRepo) Complete(ctx context.Context, id uuid.UUID, resultSummary []byte) error {
	return f.complete(ctx, id, resultSummary)
}
func (f *fakeJobRepo) Fail(ctx context.Context, id uuid.UUID, errMsg string) error {
	return f.fail(ctx, id, errMsg)
}
func (f *fakeJobRepo) Cancel(ctx context.Context, id uuid.UUID) error { return f.cancel(ctx, id) }
func (f *fakeJobRepo) IsRunning(ctx context.Context, connectionID uuid.UUID, automationType domain.AutomationType) (bool, error) {
	return f.isRunning(ctx, connectionID, automationType)
}
func (f *fakeJobRepo) MostRecentSince(ctx context.Context, connectionID uuid.UUID, automationType domain.AutomationType, since time.Time) (*domain.AutomationJob, error) {
	return f.mostRecentSince(ctx, connectionID, automationType, since)
}
func (f *fakeJobRepo) Summary(ctx context.Context, connectionID uuid.UUID, windowHours int) (*domain.JobSummary, error) {
	return f.summary(ctx, connectionID, windowHours)
}
func (f *fakeJobRepo) PurgeTerminalBefore(ctx context.Context, cutoff time.Time) (int, error) {
	return 0, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discardWriter{}, nil))
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestIsJobRunning_ReadError_FailsOpenToFalse(t *testing.T) {
	repo := &fakeJobRepo{
		isRunning: func(ctx context.Context, connectionID uuid.UUID, automationType domain.AutomationType) (bool, error) {
			return false, errors.New("connection reset")
		},
	}
	tracker := statustracker.New(repo, discardLogger())

	if running := tracker.IsJobRunning(context.Background(), uuid.New(), domain.AutomationMetadataRefresh); running {
		t.Error("expected IsJobRunning to fail open to false on repository error")
	}
}

func TestHasRecentJob_ReadError_FailsOpenToFalse(t *testing.T) {
	repo := &fakeJobRepo{
		mostRecentSince: func(ctx context.Context, connectionID uuid.UUID, automationType domain.AutomationType, since time.Time) (*domain.AutomationJob, error) {
			return nil, errors.New("timeout")
		},
	}
	tracker := statustracker.New(repo, discardLogger())

	if tracker.HasRecentJob(context.Background(), uuid.New(), domain.AutomationMetadataRefresh, 5*time.Minute) {
		t.Error("expected HasRecentJob to fail open to false on repository error")
	}
}

func TestHasRecentJob_TrueWhenJobExists(t *testing.T) {
	job := &domain.AutomationJob{ID: uuid.New()}
	repo := &fakeJobRepo{
		mostRecentSince: func(ctx context.Context, connectionID uuid.UUID, automationType domain.AutomationType, since time.Time) (*domain.AutomationJob, error) {
			return job, nil
		},
	}
	tracker := statustracker.New(repo, discardLogger())

	if !tracker.HasRecentJob(context.Background(), uuid.New(), domain.AutomationMetadataRefresh, 5*time.Minute) {
		t.Error("expected HasRecentJob to return true when a recent job exists")
	}
}

func TestMarkJobRunning_PropagatesAlreadyRunningError(t *testing.T) {
	repo := &fakeJobRepo{
		claimRunning: func(ctx context.Context, id uuid.UUID) error {
			return domain.ErrJobAlreadyRunning
		},
	}
	tracker := statustracker.New(repo, discardLogger())

	err := tracker.MarkJobRunning(context.Background(), uuid.New())
	if !errors.Is(err, domain.ErrJobAlreadyRunning) {
		t.Errorf("want wrapped ErrJobAlreadyRunning, got %v", err)
	}
}
