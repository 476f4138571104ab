package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sparvidata/automation-core/internal/domain"
)

// ConnectionMetadataRepository stores the collected structural/statistical
// snapshots a metadata-refresh run produces.
type ConnectionMetadataRepository interface {
	Create(ctx context.Context, m *domain.ConnectionMetadata) (*domain.ConnectionMetadata, error)
	// Latest returns the most recently collected snapshot for
	// (connectionID, metadataType), or nil with a nil error when none
	// exists — used for freshness checks and schema diffs.
	Latest(ctx context.Context, connectionID uuid.UUID, metadataType domain.MetadataType) (*domain.ConnectionMetadata, error)
}

// SchemaChangeRepository stores detected drift entries and dedups them
// within a 24h window on (ConnectionID, TableName, ChangeType, ColumnName).
type SchemaChangeRepository interface {
	Create(ctx context.Context, change *domain.SchemaChange) (*domain.SchemaChange, error)
	// ExistsRecentDuplicate reports whether an equivalent change was already
	// recorded for this table/column/type within the last 24h — the
	// dedup check the schema-change executor runs before inserting.
	ExistsRecentDuplicate(ctx context.Context, connectionID uuid.UUID, tableName string, changeType domain.SchemaChangeType, columnName *string, since time.Time) (bool, error)
	ListByConnection(ctx context.Context, connectionID uuid.UUID, limit int) ([]*domain.SchemaChange, error)
	Acknowledge(ctx context.Context, id uuid.UUID) error
}

// ProfileHistoryRepository stores per-table statistical profile snapshots.
type ProfileHistoryRepository interface {
	Create(ctx context.Context, p *domain.ProfileHistory) (*domain.ProfileHistory, error)
	Latest(ctx context.Context, connectionID uuid.UUID, tableName string) (*domain.ProfileHistory, error)
	// ListSince supports history.SuggestRefreshInterval's trend analysis.
	ListSince(ctx context.Context, connectionID uuid.UUID, tableName string, since time.Time) ([]*domain.ProfileHistory, error)
}
