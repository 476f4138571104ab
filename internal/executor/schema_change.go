package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sparvidata/automation-core/internal/connector"
	"github.com/sparvidata/automation-core/internal/connector/dial"
	"github.com/sparvidata/automation-core/internal/domain"
	"github.com/sparvidata/automation-core/internal/repository"
)

const schemaSnapshotTableLimit = 100

// SchemaChangeExecutor collects a fresh structural snapshot, diffs it
// against the most recently stored one, and records every change that
// isn't a duplicate of something already recorded in the last 24h.
type SchemaChangeExecutor struct {
	connections repository.ConnectionRepository
	metadata    repository.ConnectionMetadataRepository
	changes     repository.SchemaChangeRepository
	scheduler   SchedulerContext
	now         func() time.Time
}

func NewSchemaChangeExecutor(connections repository.ConnectionRepository, metadata repository.ConnectionMetadataRepository, changes repository.SchemaChangeRepository, scheduler SchedulerContext) *SchemaChangeExecutor {
	return &SchemaChangeExecutor{
		connections: connections,
		metadata:    metadata,
		changes:     changes,
		scheduler:   scheduler,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

type schemaChangeResult struct {
	TablesScanned        int `json:"tablesScanned"`
	ChangesDetected      int `json:"changesDetected"`
	DuplicatesSuppressed int `json:"duplicatesSuppressed"`
}

func (e *SchemaChangeExecutor) Execute(ctx context.Context, job *domain.AutomationJob) (any, error) {
	conn, err := e.connections.GetByID(ctx, job.ConnectionID, job.OrganizationID)
	if err != nil {
		return nil, fmt.Errorf("load connection: %w", err)
	}

	db, err := dial.Open(ctx, conn)
	if err != nil {
		return nil, fmt.Errorf("connect to target: %w", err)
	}
	defer db.Close()

	currentTables, err := db.Tables(ctx, schemaSnapshotTableLimit)
	if err != nil {
		return nil, fmt.Errorf("collect schema snapshot: %w", err)
	}

	previousTables, hadPrevious, err := e.previousSnapshot(ctx, conn.ID)
	if err != nil {
		return nil, fmt.Errorf("load previous schema snapshot: %w", err)
	}

	now := e.now()

	// No baseline yet: store the current snapshot as the baseline and
	// report no changes, rather than diffing against an empty snapshot
	// (which would report every table as newly added).
	if !hadPrevious {
		if err := e.replaceSnapshot(ctx, conn.ID, currentTables, now); err != nil {
			return nil, fmt.Errorf("store schema snapshot: %w", err)
		}
		return schemaChangeResult{TablesScanned: len(currentTables)}, nil
	}

	detected := diffTables(currentTables, previousTables, now)

	inserted := make([]*domain.SchemaChange, 0, len(detected))
	duplicates := 0
	since := now.Add(-24 * time.Hour)
	for i := range detected {
		change := detected[i]
		change.ConnectionID = conn.ID

		dup, err := e.changes.ExistsRecentDuplicate(ctx, conn.ID, change.TableName, change.ChangeType, change.ColumnName, since)
		if err != nil {
			return nil, fmt.Errorf("check duplicate schema change: %w", err)
		}
		if dup {
			duplicates++
			continue
		}

		stored, err := e.changes.Create(ctx, &change)
		if err != nil {
			return nil, fmt.Errorf("record schema change: %w", err)
		}
		inserted = append(inserted, stored)
	}

	if err := e.replaceSnapshot(ctx, conn.ID, currentTables, now); err != nil {
		return nil, fmt.Errorf("store schema snapshot: %w", err)
	}

	if len(inserted) > 0 {
		if _, err := e.scheduler.PublishEvent(ctx, domain.EventSchemaChangesDetected, &conn.ID, &conn.OrganizationID, map[string]any{
			"changes": inserted,
			"count":   len(inserted),
		}); err != nil {
			return nil, fmt.Errorf("publish schema changes detected event: %w", err)
		}
	}

	return schemaChangeResult{
		TablesScanned:        len(currentTables),
		ChangesDetected:      len(inserted),
		DuplicatesSuppressed: duplicates,
	}, nil
}

func (e *SchemaChangeExecutor) previousSnapshot(ctx context.Context, connectionID uuid.UUID) (tables []connector.Table, hadPrevious bool, err error) {
	stored, err := e.metadata.Latest(ctx, connectionID, domain.MetadataTables)
	if err != nil {
		return nil, false, err
	}
	if stored == nil {
		return nil, false, nil
	}
	if err := json.Unmarshal(stored.Metadata, &tables); err != nil {
		return nil, false, fmt.Errorf("decode stored schema snapshot: %w", err)
	}
	return tables, true, nil
}

// replaceSnapshot stores the freshly collected snapshot as the new "most
// recent" row for this connection. Nothing deletes the old rows — Latest
// always orders by collected_at, so the new row becomes current the
// instant it's committed, which is all "atomic replace" requires here.
func (e *SchemaChangeExecutor) replaceSnapshot(ctx context.Context, connectionID uuid.UUID, tables []connector.Table, at time.Time) error {
	raw, err := json.Marshal(tables)
	if err != nil {
		return fmt.Errorf("encode schema snapshot: %w", err)
	}
	_, err = e.metadata.Create(ctx, &domain.ConnectionMetadata{
		ConnectionID: connectionID,
		Type:         domain.MetadataTables,
		Metadata:     raw,
		CollectedAt:  at,
	})
	return err
}
