package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sparvidata/automation-core/internal/domain"
)

type ConnectionMetadataRepository struct {
	pool *pgxpool.Pool
}

func NewConnectionMetadataRepository(pool *pgxpool.Pool) *ConnectionMetadataRepository {
	return &ConnectionMetadataRepository{pool: pool}
}

func (r *ConnectionMetadataRepository) Create(ctx context.Context, m *domain.ConnectionMetadata) (*domain.ConnectionMetadata, error) {
	query := `
		INSERT INTO connection_metadata (connection_id, type, metadata, collected_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, connection_id, type, metadata, collected_at`

	row := r.pool.QueryRow(ctx, query, m.ConnectionID, m.Type, m.Metadata, m.CollectedAt)
	return scanMetadata(row)
}

func (r *ConnectionMetadataRepository) Latest(ctx context.Context, connectionID uuid.UUID, metadataType domain.MetadataType) (*domain.ConnectionMetadata, error) {
	query := `
		SELECT id, connection_id, type, metadata, collected_at
		FROM connection_metadata
		WHERE connection_id = $1 AND type = $2
		ORDER BY collected_at DESC
		LIMIT 1`

	row := r.pool.QueryRow(ctx, query, connectionID, metadataType)
	m, err := scanMetadata(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return m, err
}

func scanMetadata(row rowScanner) (*domain.ConnectionMetadata, error) {
	var m domain.ConnectionMetadata
	err := row.Scan(&m.ID, &m.ConnectionID, &m.Type, &m.Metadata, &m.CollectedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, pgx.ErrNoRows
		}
		return nil, fmt.Errorf("scan connection metadata: %w", err)
	}
	return &m, nil
}

type SchemaChangeRepository struct {
	pool *pgxpool.Pool
}

func NewSchemaChangeRepository(pool *pgxpool.Pool) *SchemaChangeRepository {
	return &SchemaChangeRepository{pool: pool}
}

func (r *SchemaChangeRepository) Create(ctx context.Context, change *domain.SchemaChange) (*domain.SchemaChange, error) {
	query := `
		INSERT INTO schema_changes (
			connection_id, table_name, column_name, change_type, details, important, acknowledged, detected_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, connection_id, table_name, column_name, change_type, details,
		          important, acknowledged, detected_at`

	row := r.pool.QueryRow(ctx, query,
		change.ConnectionID, change.TableName, change.ColumnName, change.ChangeType,
		change.Details, change.Important, change.Acknowledged, change.DetectedAt,
	)
	return scanChange(row)
}

// ExistsRecentDuplicate backs the executor's 24h dedup window — column_name
// is nullable so the comparison uses IS NOT DISTINCT FROM rather than = to
// match NULL-to-NULL for table-level changes.
func (r *SchemaChangeRepository) ExistsRecentDuplicate(ctx context.Context, connectionID uuid.UUID, tableName string, changeType domain.SchemaChangeType, columnName *string, since time.Time) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM schema_changes
			WHERE connection_id = $1
			  AND table_name = $2
			  AND change_type = $3
			  AND column_name IS NOT DISTINCT FROM $4
			  AND detected_at >= $5
		)`, connectionID, tableName, changeType, columnName, since).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check duplicate schema change: %w", err)
	}
	return exists, nil
}

func (r *SchemaChangeRepository) ListByConnection(ctx context.Context, connectionID uuid.UUID, limit int) ([]*domain.SchemaChange, error) {
	query := `
		SELECT id, connection_id, table_name, column_name, change_type, details,
		       important, acknowledged, detected_at
		FROM schema_changes
		WHERE connection_id = $1
		ORDER BY detected_at DESC
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, connectionID, limit)
	if err != nil {
		return nil, fmt.Errorf("list schema changes: %w", err)
	}
	defer rows.Close()

	var out []*domain.SchemaChange
	for rows.Next() {
		c, err := scanChange(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (r *SchemaChangeRepository) Acknowledge(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE schema_changes SET acknowledged = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("acknowledge schema change: %w", err)
	}
	return nil
}

func scanChange(row rowScanner) (*domain.SchemaChange, error) {
	var c domain.SchemaChange
	err := row.Scan(
		&c.ID, &c.ConnectionID, &c.TableName, &c.ColumnName, &c.ChangeType,
		&c.Details, &c.Important, &c.Acknowledged, &c.DetectedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan schema change: %w", err)
	}
	return &c, nil
}

type ProfileHistoryRepository struct {
	pool *pgxpool.Pool
}

func NewProfileHistoryRepository(pool *pgxpool.Pool) *ProfileHistoryRepository {
	return &ProfileHistoryRepository{pool: pool}
}

func (r *ProfileHistoryRepository) Create(ctx context.Context, p *domain.ProfileHistory) (*domain.ProfileHistory, error) {
	query := `
		INSERT INTO profile_history (connection_id, table_name, profile, collected_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, connection_id, table_name, profile, collected_at`

	row := r.pool.QueryRow(ctx, query, p.ConnectionID, p.TableName, p.Profile, p.CollectedAt)
	return scanProfile(row)
}

func (r *ProfileHistoryRepository) Latest(ctx context.Context, connectionID uuid.UUID, tableName string) (*domain.ProfileHistory, error) {
	query := `
		SELECT id, connection_id, table_name, profile, collected_at
		FROM profile_history
		WHERE connection_id = $1 AND table_name = $2
		ORDER BY collected_at DESC
		LIMIT 1`

	row := r.pool.QueryRow(ctx, query, connectionID, tableName)
	p, err := scanProfile(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

func (r *ProfileHistoryRepository) ListSince(ctx context.Context, connectionID uuid.UUID, tableName string, since time.Time) ([]*domain.ProfileHistory, error) {
	query := `
		SELECT id, connection_id, table_name, profile, collected_at
		FROM profile_history
		WHERE connection_id = $1 AND table_name = $2 AND collected_at >= $3
		ORDER BY collected_at ASC`

	rows, err := r.pool.Query(ctx, query, connectionID, tableName, since)
	if err != nil {
		return nil, fmt.Errorf("list profile history: %w", err)
	}
	defer rows.Close()

	var out []*domain.ProfileHistory
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func scanProfile(row rowScanner) (*domain.ProfileHistory, error) {
	var p domain.ProfileHistory
	err := row.Scan(&p.ID, &p.ConnectionID, &p.TableName, &p.Profile, &p.CollectedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, pgx.ErrNoRows
		}
		return nil, fmt.Errorf("scan profile history: %w", err)
	}
	return &p, nil
}
