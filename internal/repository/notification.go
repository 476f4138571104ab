package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/sparvidata/automation-core/internal/domain"
)

// NotificationSettingsRepository manages the per-organization delivery
// preferences the Notification Dispatcher reads before emailing out an
// event.
type NotificationSettingsRepository interface {
	// Get returns domain.ErrNotificationSettingsNotFound when no row exists
	// yet — callers fall back to domain.DefaultNotificationSettings().
	Get(ctx context.Context, organizationID uuid.UUID) (*domain.NotificationSettings, error)
	Upsert(ctx context.Context, s *domain.NotificationSettings) (*domain.NotificationSettings, error)
}
