package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/sparvidata/automation-core/internal/domain"
)

// EventRepository persists every event before the Event Bus dispatches it
// to subscribers, so delivery failures never lose the record of what fired.
type EventRepository interface {
	Create(ctx context.Context, e *domain.Event) (*domain.Event, error)
	ListByConnection(ctx context.Context, connectionID uuid.UUID, limit int) ([]*domain.Event, error)
	ListByOrganization(ctx context.Context, organizationID uuid.UUID, types []domain.EventType, limit int) ([]*domain.Event, error)
}
