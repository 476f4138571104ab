// Package snowflake adapts a target Snowflake account to connector.DB
// using the gosnowflake database/sql driver. Snowflake is not present in
// any reference example in this codebase's retrieval pack; gosnowflake is
// the only maintained database/sql driver for it and is named, not
// grounded, per the project's dependency rules (see DESIGN.md).
package snowflake

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	sf "github.com/snowflakedb/gosnowflake"
	"github.com/sparvidata/automation-core/internal/connector"
)

type DB struct {
	conn *sql.DB
}

func Open(ctx context.Context, creds connector.Credentials) (*DB, error) {
	cfg := &sf.Config{
		Account:   creds.Account,
		User:      creds.Username,
		Password:  creds.Password,
		Database:  creds.Database,
		Schema:    creds.Schema,
		Warehouse: creds.Warehouse,
	}
	dsn, err := sf.DSN(cfg)
	if err != nil {
		return nil, fmt.Errorf("build snowflake dsn: %w", err)
	}

	conn, err := sql.Open("snowflake", dsn)
	if err != nil {
		return nil, fmt.Errorf("open snowflake target: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping snowflake target: %w", err)
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

// QueryScalar sets the session-level STATEMENT_TIMEOUT_IN_SECONDS per spec
// §4.3 and runs the rule query on the same pooled connection. The session
// setting is not reset: it stays on that connection after it returns to
// the pool.
func (d *DB) QueryScalar(ctx context.Context, query string, timeout time.Duration) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := d.conn.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	timeoutSeconds := int(timeout.Seconds())
	if _, err := conn.ExecContext(ctx, fmt.Sprintf("ALTER SESSION SET STATEMENT_TIMEOUT_IN_SECONDS = %d", timeoutSeconds)); err != nil {
		return nil, fmt.Errorf("set statement timeout: %w", err)
	}

	row := conn.QueryRowContext(ctx, query)
	var val any
	if err := row.Scan(&val); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan scalar: %w", err)
	}
	return val, nil
}
