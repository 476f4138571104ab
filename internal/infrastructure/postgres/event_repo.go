package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sparvidata/automation-core/internal/domain"
)

type EventRepository struct {
	pool *pgxpool.Pool
}

func NewEventRepository(pool *pgxpool.Pool) *EventRepository {
	return &EventRepository{pool: pool}
}

func (r *EventRepository) Create(ctx context.Context, e *domain.Event) (*domain.Event, error) {
	query := `
		INSERT INTO automation_events (type, connection_id, organization_id, user_id, data, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, type, connection_id, organization_id, user_id, data, timestamp`

	row := r.pool.QueryRow(ctx, query, e.Type, e.ConnectionID, e.OrganizationID, e.UserID, e.Data, e.Timestamp)
	return scanEvent(row)
}

func (r *EventRepository) ListByConnection(ctx context.Context, connectionID uuid.UUID, limit int) ([]*domain.Event, error) {
	query := `
		SELECT id, type, connection_id, organization_id, user_id, data, timestamp
		FROM automation_events
		WHERE connection_id = $1
		ORDER BY timestamp DESC
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, connectionID, limit)
	if err != nil {
		return nil, fmt.Errorf("list events by connection: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (r *EventRepository) ListByOrganization(ctx context.Context, organizationID uuid.UUID, types []domain.EventType, limit int) ([]*domain.Event, error) {
	args := []any{organizationID}
	where := "organization_id = $1"
	if len(types) > 0 {
		args = append(args, types)
		where += fmt.Sprintf(" AND type = ANY($%d)", len(args))
	}
	args = append(args, limit)

	query := fmt.Sprintf(`
		SELECT id, type, connection_id, organization_id, user_id, data, timestamp
		FROM automation_events
		WHERE %s
		ORDER BY timestamp DESC
		LIMIT $%d`, where, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events by organization: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func scanEvents(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]*domain.Event, error) {
	var out []*domain.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanEvent(row rowScanner) (*domain.Event, error) {
	var e domain.Event
	err := row.Scan(&e.ID, &e.Type, &e.ConnectionID, &e.OrganizationID, &e.UserID, &e.Data, &e.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("scan event: %w", err)
	}
	return &e, nil
}
