// Package executor implements the three Task Executors: Metadata Refresh,
// Schema Change Detection, and Validation Run. Each executor takes an
// AutomationJob and returns a JSON-able result summary, or an error the
// orchestrator records as the job's failure message.
//
// Executors never hold a pointer back to the orchestrator that dispatched
// them — that would recreate the Orchestrator-Executors-Event-handlers
// cycle the design explicitly breaks. Instead they depend on
// SchedulerContext, a narrow interface covering the two things an
// executor legitimately needs to push back out: publishing an event and
// asking for an immediate follow-up run.
package executor

import (
	"context"

	"github.com/google/uuid"
	"github.com/sparvidata/automation-core/internal/domain"
)

// SchedulerContext is the seam between an executor and whatever dispatched
// it. The orchestrator implements this; tests supply a fake.
type SchedulerContext interface {
	PublishEvent(ctx context.Context, eventType domain.EventType, connectionID, organizationID *uuid.UUID, data any) (*domain.Event, error)
	// ScheduleImmediateRun asks the scheduler to dispatch automationType for
	// connectionID outside its normal cadence, deduplicating against an
	// already-pending or already-running job the same way a tick would.
	ScheduleImmediateRun(ctx context.Context, connectionID, organizationID uuid.UUID, automationType domain.AutomationType) error
}

// Executor runs one automation type's task body for a single job.
type Executor interface {
	Execute(ctx context.Context, job *domain.AutomationJob) (resultSummary any, err error)
}
