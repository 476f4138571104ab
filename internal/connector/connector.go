// Package connector abstracts the target databases a Connection points at
// (snowflake, postgresql, duckdb) behind one interface so the metadata
// collector, schema-change detector, and validation executor never branch
// on connection type themselves.
package connector

import (
	"context"
	"time"
)

// Column describes one column of one table, as reported by a target
// database's information-schema equivalent.
type Column struct {
	Name       string
	Type       string // driver-native type name, lowercased by the caller before comparison
	Nullable   bool
	OrdinalPos int
}

// PrimaryKey lists the column names participating in a table's primary key,
// in ordinal order.
type PrimaryKey struct {
	Columns []string
}

// ForeignKey describes one foreign key constraint.
type ForeignKey struct {
	Name             string
	ConstrainedCols  []string
	ReferredTable    string
	ReferredCols     []string
}

// Index describes one index.
type Index struct {
	Name    string
	Columns []string
	Unique  bool
}

// Table is a full structural snapshot of one table.
type Table struct {
	Name        string
	Columns     []Column
	PrimaryKey  *PrimaryKey
	ForeignKeys []ForeignKey
	Indexes     []Index
}

// Snapshot is the full schema snapshot collected for a connection, capped
// at 100 tables per spec §4.3.
type Snapshot struct {
	Tables      []Table
	CollectedAt time.Time
}

// DB is what a connector implementation must satisfy: enough to collect a
// capped schema snapshot and run a single bounded, timed-out scalar query
// for a validation rule.
type DB interface {
	// Tables returns up to maxTables structural table snapshots.
	Tables(ctx context.Context, maxTables int) ([]Table, error)

	// QueryScalar executes query with the given statement timeout and
	// returns the first column of the first row, or nil if there were no
	// rows.
	QueryScalar(ctx context.Context, query string, timeout time.Duration) (any, error)

	// Close releases any held connections.
	Close() error
}

// Credentials is the decoded shape of Connection.Credentials understood by
// every adapter: a DSN-ish set of fields, not a single connection string,
// since each engine encodes its DSN differently.
type Credentials struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Database string `json:"database"`
	Username string `json:"username"`
	Password string `json:"password"`
	Account  string `json:"account"` // snowflake only
	Warehouse string `json:"warehouse"` // snowflake only
	Path     string `json:"path"`     // duckdb only: file path or ":memory:"
	Schema   string `json:"schema"`
}
