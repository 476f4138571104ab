package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sparvidata/automation-core/internal/domain"
)

type AutomationConnectionConfigRepository struct {
	pool *pgxpool.Pool
}

func NewAutomationConnectionConfigRepository(pool *pgxpool.Pool) *AutomationConnectionConfigRepository {
	return &AutomationConnectionConfigRepository{pool: pool}
}

func (r *AutomationConnectionConfigRepository) Get(ctx context.Context, connectionID uuid.UUID) (*domain.AutomationConnectionConfig, error) {
	query := `
		SELECT id, connection_id, organization_id, schedule_config, created_at, updated_at
		FROM automation_connection_configs
		WHERE connection_id = $1`

	row := r.pool.QueryRow(ctx, query, connectionID)
	return scanConfig(row)
}

// Upsert writes the one config row a connection is allowed to have,
// replacing the whole schedule_config document on conflict — the Schedule
// Manager always reads-modifies-writes the full per-type map, never a
// single automation type's slice of it.
func (r *AutomationConnectionConfigRepository) Upsert(ctx context.Context, cfg *domain.AutomationConnectionConfig) (*domain.AutomationConnectionConfig, error) {
	raw, err := json.Marshal(cfg.ScheduleConfig)
	if err != nil {
		return nil, fmt.Errorf("marshal schedule config: %w", err)
	}

	query := `
		INSERT INTO automation_connection_configs (connection_id, organization_id, schedule_config)
		VALUES ($1, $2, $3)
		ON CONFLICT (connection_id) DO UPDATE
		SET schedule_config = EXCLUDED.schedule_config, updated_at = NOW()
		RETURNING id, connection_id, organization_id, schedule_config, created_at, updated_at`

	row := r.pool.QueryRow(ctx, query, cfg.ConnectionID, cfg.OrganizationID, raw)
	return scanConfig(row)
}

func scanConfig(row rowScanner) (*domain.AutomationConnectionConfig, error) {
	var cfg domain.AutomationConnectionConfig
	var raw []byte
	err := row.Scan(&cfg.ID, &cfg.ConnectionID, &cfg.OrganizationID, &raw, &cfg.CreatedAt, &cfg.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrConfigNotFound
		}
		return nil, fmt.Errorf("scan automation connection config: %w", err)
	}
	if err := json.Unmarshal(raw, &cfg.ScheduleConfig); err != nil {
		return nil, fmt.Errorf("unmarshal schedule config: %w", err)
	}
	return &cfg, nil
}
