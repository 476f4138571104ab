// Package duckdb adapts a target DuckDB file (or in-memory database) to
// connector.DB using the duckdb-go/v2 driver.
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/sparvidata/automation-core/internal/connector"
)

type DB struct {
	conn *sql.DB
}

func Open(ctx context.Context, creds connector.Credentials) (*DB, error) {
	path := creds.Path
	if path == "" {
		path = ":memory:"
	}

	conn, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb target: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping duckdb target: %w", err)
	}
	return &DB{conn: conn}, nil
}

func (d *DB) Close() error { return d.conn.Close() }

func (d *DB) Tables(ctx context.Context, maxTables int) ([]connector.Table, error) {
	rows, err := d.conn.QueryContext(ctx,
		`SELECT table_name FROM information_schema.tables
		 WHERE table_type = 'BASE TABLE' ORDER BY table_name LIMIT ?`, maxTables)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}

	tables := make([]connector.Table, 0, len(names))
	for _, name := range names {
		cols, err := d.columns(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("describe table %s: %w", name, err)
		}
		tables = append(tables, connector.Table{Name: name, Columns: cols})
	}
	return tables, nil
}

func (d *DB) columns(ctx context.Context, table string) ([]connector.Column, error) {
	rows, err := d.conn.QueryContext(ctx,
		`SELECT column_name, data_type, is_nullable, ordinal_position
		 FROM information_schema.columns WHERE table_name = ? ORDER BY ordinal_position`, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []connector.Column
	for rows.Next() {
		var col connector.Column
		var nullable string
		if err := rows.Scan(&col.Name, &col.Type, &nullable, &col.OrdinalPos); err != nil {
			return nil, err
		}
		col.Nullable = strings.EqualFold(nullable, "YES")
		cols = append(cols, col)
	}
	return cols, nil
}

// QueryScalar runs query bounded by ctx's deadline. DuckDB has no
// session-level statement timeout knob, so the timeout is enforced purely
// through context cancellation — the driver aborts the query when ctx is
// done.
func (d *DB) QueryScalar(ctx context.Context, query string, timeout time.Duration) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	row := d.conn.QueryRowContext(ctx, query)
	var val any
	if err := row.Scan(&val); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan scalar: %w", err)
	}
	return val, nil
}
