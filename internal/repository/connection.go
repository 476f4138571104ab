package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/sparvidata/automation-core/internal/domain"
)

// ConnectionRepository depends on interface, not concrete implementation, so
// callers can swap postgres for a fake in tests.
type ConnectionRepository interface {
	Create(ctx context.Context, c *domain.Connection) (*domain.Connection, error)
	GetByID(ctx context.Context, id, organizationID uuid.UUID) (*domain.Connection, error)
	List(ctx context.Context, organizationID uuid.UUID) ([]*domain.Connection, error)
	// SetDefault clears IsDefault on every other connection for the
	// organization and sets it on id, atomically.
	SetDefault(ctx context.Context, id, organizationID uuid.UUID) error
	Delete(ctx context.Context, id, organizationID uuid.UUID) error
}

// AutomationConnectionConfigRepository stores the per-connection schedule
// configuration that the Schedule Manager reads and writes.
type AutomationConnectionConfigRepository interface {
	// Get returns domain.ErrConfigNotFound when no row exists yet — callers
	// fall back to domain.DefaultScheduleConfig().
	Get(ctx context.Context, connectionID uuid.UUID) (*domain.AutomationConnectionConfig, error)
	// Upsert creates or replaces the config row for connectionID.
	Upsert(ctx context.Context, cfg *domain.AutomationConnectionConfig) (*domain.AutomationConnectionConfig, error)
}
