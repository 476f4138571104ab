package executor

import (
	"context"
	"fmt"

	"github.com/sparvidata/automation-core/internal/domain"
	"github.com/sparvidata/automation-core/internal/metadatamgr"
	"github.com/sparvidata/automation-core/internal/repository"
)

// MetadataRefreshExecutor submits a refresh request to the external
// Metadata Task Manager and returns as soon as the submission is accepted.
// It never waits for the refresh to complete — that collaborator is
// trusted to finish the job on its own.
type MetadataRefreshExecutor struct {
	connections repository.ConnectionRepository
	metadataMgr *metadatamgr.Client
	scheduler   SchedulerContext
}

func NewMetadataRefreshExecutor(connections repository.ConnectionRepository, metadataMgr *metadatamgr.Client, scheduler SchedulerContext) *MetadataRefreshExecutor {
	return &MetadataRefreshExecutor{connections: connections, metadataMgr: metadataMgr, scheduler: scheduler}
}

type metadataRefreshResult struct {
	Submitted bool `json:"submitted"`
}

func (e *MetadataRefreshExecutor) Execute(ctx context.Context, job *domain.AutomationJob) (any, error) {
	conn, err := e.connections.GetByID(ctx, job.ConnectionID, job.OrganizationID)
	if err != nil {
		return nil, fmt.Errorf("load connection: %w", err)
	}

	req := metadatamgr.DefaultRefreshRequest(conn.ID)
	if err := e.metadataMgr.SubmitRefresh(ctx, req); err != nil {
		return nil, fmt.Errorf("submit metadata refresh: %w", err)
	}

	if _, err := e.scheduler.PublishEvent(ctx, domain.EventMetadataRefreshed, &conn.ID, &conn.OrganizationID, req); err != nil {
		return nil, fmt.Errorf("publish metadata refreshed event: %w", err)
	}

	return metadataRefreshResult{Submitted: true}, nil
}
