// Package postgresdb adapts a target PostgreSQL database (a user's
// Connection, not the platform's own store) to connector.DB.
package postgresdb

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/sparvidata/automation-core/internal/connector"
)

type DB struct {
	conn *sql.DB
}

// Open builds a connection string from Credentials, URL-encoding the
// username/password the way the validation executor's contract requires
// (spec §4.3), and opens a pooled database/sql handle over pgx's stdlib
// driver.
func Open(ctx context.Context, creds connector.Credentials) (*DB, error) {
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s",
		url.QueryEscape(creds.Username),
		url.QueryEscape(creds.Password),
		creds.Host, creds.Port, creds.Database,
	)

	conn, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres target: %w", err)
	}
	conn.SetMaxOpenConns(5)
	conn.SetConnMaxLifetime(30 * time.Minute)

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping postgres target: %w", err)
	}

	return &DB{conn: conn}, nil
}

func (d *DB) Close() error { return d.conn.Close() }

func (d *DB) Tables(ctx context.Context, maxTables int) ([]connector.Table, error) {
	rows, err := d.conn.QueryContext(ctx, `
		SELECT table_name FROM information_schema.tables
		WHERE table_schema = 'public' AND table_type = 'BASE TABLE'
		ORDER BY table_name LIMIT $1`, maxTables)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		names = append(names, name)
	}

	tables := make([]connector.Table, 0, len(names))
	for _, name := range names {
		t, err := d.describeTable(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("describe table %s: %w", name, err)
		}
		tables = append(tables, t)
	}
	return tables, nil
}

func (d *DB) describeTable(ctx context.Context, name string) (connector.Table, error) {
	t := connector.Table{Name: name}

	colRows, err := d.conn.QueryContext(ctx, `
		SELECT column_name, data_type, is_nullable, ordinal_position
		FROM information_schema.columns
		WHERE table_schema = 'public' AND table_name = $1
		ORDER BY ordinal_position`, name)
	if err != nil {
		return t, err
	}
	defer colRows.Close()
	for colRows.Next() {
		var col connector.Column
		var nullable string
		if err := colRows.Scan(&col.Name, &col.Type, &nullable, &col.OrdinalPos); err != nil {
			return t, err
		}
		col.Nullable = nullable == "YES"
		t.Columns = append(t.Columns, col)
	}

	pkRows, err := d.conn.QueryContext(ctx, `
		SELECT kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
		WHERE tc.table_schema = 'public' AND tc.table_name = $1 AND tc.constraint_type = 'PRIMARY KEY'
		ORDER BY kcu.ordinal_position`, name)
	if err != nil {
		return t, err
	}
	defer pkRows.Close()
	var pkCols []string
	for pkRows.Next() {
		var col string
		if err := pkRows.Scan(&col); err != nil {
			return t, err
		}
		pkCols = append(pkCols, col)
	}
	if len(pkCols) > 0 {
		t.PrimaryKey = &connector.PrimaryKey{Columns: pkCols}
	}

	// Only columns and the primary key are collected; ForeignKeys and
	// Indexes are left empty for every table.
	return t, nil
}

func (d *DB) QueryScalar(ctx context.Context, query string, timeout time.Duration) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// statement_timeout is session-scoped; set it on the same connection
	// the query runs on via a transaction so it can't leak to pool siblings.
	tx, err := d.conn.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL statement_timeout = %d", timeout.Milliseconds())); err != nil {
		return nil, fmt.Errorf("set statement_timeout: %w", err)
	}

	row := tx.QueryRowContext(ctx, query)
	var val any
	if err := row.Scan(&val); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan scalar: %w", err)
	}
	return val, tx.Commit()
}
