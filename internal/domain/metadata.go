package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// MetadataType is the closed set of metadata a refresh job can collect.
type MetadataType string

const (
	MetadataTables     MetadataType = "tables"
	MetadataColumns    MetadataType = "columns"
	MetadataStatistics MetadataType = "statistics"
)

// ConnectionMetadata is one collected snapshot. The row with the greatest
// CollectedAt for a given (ConnectionID, Type) is the "current" view.
type ConnectionMetadata struct {
	ID           uuid.UUID       `json:"id"`
	ConnectionID uuid.UUID       `json:"connectionId"`
	Type         MetadataType    `json:"type"`
	Metadata     json.RawMessage `json:"metadata"`
	CollectedAt  time.Time       `json:"collectedAt"`
}

// SchemaChangeType is the closed set of drift kinds the detector can emit.
type SchemaChangeType string

const (
	ChangeTableAdded              SchemaChangeType = "table_added"
	ChangeTableRemoved            SchemaChangeType = "table_removed"
	ChangeColumnAdded             SchemaChangeType = "column_added"
	ChangeColumnRemoved           SchemaChangeType = "column_removed"
	ChangeColumnTypeChanged       SchemaChangeType = "column_type_changed"
	ChangeColumnNullabilityChanged SchemaChangeType = "column_nullability_changed"
	ChangePrimaryKeyAdded         SchemaChangeType = "primary_key_added"
	ChangePrimaryKeyRemoved       SchemaChangeType = "primary_key_removed"
	ChangePrimaryKeyChanged       SchemaChangeType = "primary_key_changed"
	ChangeForeignKeyAdded         SchemaChangeType = "foreign_key_added"
	ChangeForeignKeyRemoved       SchemaChangeType = "foreign_key_removed"
	ChangeIndexAdded              SchemaChangeType = "index_added"
	ChangeIndexRemoved            SchemaChangeType = "index_removed"
	ChangeIndexChanged            SchemaChangeType = "index_changed"
)

// SchemaChange is a single typed diff entry between two successive schema
// snapshots, deduplicated within a 24h window on
// (ConnectionID, TableName, ChangeType, ColumnName).
type SchemaChange struct {
	ID             uuid.UUID        `json:"id"`
	ConnectionID   uuid.UUID        `json:"connectionId"`
	TableName      string           `json:"tableName"`
	ColumnName     *string          `json:"columnName,omitempty"`
	ChangeType     SchemaChangeType `json:"changeType"`
	Details        json.RawMessage  `json:"details"`
	Important      bool             `json:"important"` // opaque per Open Questions; no differential handling
	Acknowledged   bool             `json:"acknowledged"`
	DetectedAt     time.Time        `json:"detectedAt"`
}

// ProfileHistory is a snapshot of one table's statistical profile at a
// point in time. ValidationResult weakly references rows here.
type ProfileHistory struct {
	ID           uuid.UUID       `json:"id"`
	ConnectionID uuid.UUID       `json:"connectionId"`
	TableName    string          `json:"tableName"`
	Profile      json.RawMessage `json:"profile"`
	CollectedAt  time.Time       `json:"collectedAt"`
}

// Freshness buckets the age of the most recent metadata snapshot.
type Freshness string

const (
	FreshnessFresh  Freshness = "fresh"  // < 1h
	FreshnessRecent Freshness = "recent" // < 24h
	FreshnessStale  Freshness = "stale"  // >= 24h
)

func FreshnessFor(age time.Duration) Freshness {
	switch {
	case age < time.Hour:
		return FreshnessFresh
	case age < 24*time.Hour:
		return FreshnessRecent
	default:
		return FreshnessStale
	}
}
