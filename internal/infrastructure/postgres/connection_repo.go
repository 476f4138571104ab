package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sparvidata/automation-core/internal/domain"
)

type ConnectionRepository struct {
	pool *pgxpool.Pool
}

func NewConnectionRepository(pool *pgxpool.Pool) *ConnectionRepository {
	return &ConnectionRepository{pool: pool}
}

func (r *ConnectionRepository) Create(ctx context.Context, c *domain.Connection) (*domain.Connection, error) {
	query := `
		INSERT INTO connections (organization_id, name, type, credentials, is_default)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, organization_id, name, type, credentials, is_default, created_at, updated_at`

	row := r.pool.QueryRow(ctx, query,
		c.OrganizationID, c.Name, c.Type, c.Credentials, c.IsDefault,
	)

	created, err := scanConnection(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, domain.ErrDuplicateDefault
		}
		return nil, err
	}
	return created, nil
}

func (r *ConnectionRepository) GetByID(ctx context.Context, id, organizationID uuid.UUID) (*domain.Connection, error) {
	query := `
		SELECT id, organization_id, name, type, credentials, is_default, created_at, updated_at
		FROM connections
		WHERE id = $1 AND organization_id = $2`

	row := r.pool.QueryRow(ctx, query, id, organizationID)
	return scanConnection(row)
}

func (r *ConnectionRepository) List(ctx context.Context, organizationID uuid.UUID) ([]*domain.Connection, error) {
	query := `
		SELECT id, organization_id, name, type, credentials, is_default, created_at, updated_at
		FROM connections
		WHERE organization_id = $1
		ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, query, organizationID)
	if err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}
	defer rows.Close()

	var out []*domain.Connection
	for rows.Next() {
		c, err := scanConnection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// SetDefault clears is_default on every other connection for the
// organization and sets it on id, atomically — a connection's default flag
// is exclusive within its organization.
func (r *ConnectionRepository) SetDefault(ctx context.Context, id, organizationID uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`UPDATE connections SET is_default = FALSE, updated_at = NOW()
		 WHERE organization_id = $1 AND is_default = TRUE`, organizationID); err != nil {
		return fmt.Errorf("clear existing default: %w", err)
	}

	tag, err := tx.Exec(ctx,
		`UPDATE connections SET is_default = TRUE, updated_at = NOW()
		 WHERE id = $1 AND organization_id = $2`, id, organizationID)
	if err != nil {
		return fmt.Errorf("set default: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrConnectionNotFound
	}

	return tx.Commit(ctx)
}

func (r *ConnectionRepository) Delete(ctx context.Context, id, organizationID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM connections WHERE id = $1 AND organization_id = $2`, id, organizationID)
	if err != nil {
		return fmt.Errorf("delete connection: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrConnectionNotFound
	}
	return nil
}

func scanConnection(row rowScanner) (*domain.Connection, error) {
	var c domain.Connection
	err := row.Scan(
		&c.ID, &c.OrganizationID, &c.Name, &c.Type, &c.Credentials,
		&c.IsDefault, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrConnectionNotFound
		}
		return nil, fmt.Errorf("scan connection: %w", err)
	}
	return &c, nil
}
