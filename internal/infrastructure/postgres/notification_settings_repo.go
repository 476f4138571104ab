package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sparvidata/automation-core/internal/domain"
)

type NotificationSettingsRepository struct {
	pool *pgxpool.Pool
}

func NewNotificationSettingsRepository(pool *pgxpool.Pool) *NotificationSettingsRepository {
	return &NotificationSettingsRepository{pool: pool}
}

func (r *NotificationSettingsRepository) Get(ctx context.Context, organizationID uuid.UUID) (*domain.NotificationSettings, error) {
	query := `
		SELECT id, organization_id, notify_job_failed, notify_schema_changes,
		       notify_validation_failures, email_enabled, to_emails, created_at, updated_at
		FROM notification_settings
		WHERE organization_id = $1`

	row := r.pool.QueryRow(ctx, query, organizationID)
	return scanNotificationSettings(row)
}

// Upsert writes the one notification_settings row an organization is
// allowed to have, mirroring notifications.py's save_notification_settings
// replace-whole-document semantics.
func (r *NotificationSettingsRepository) Upsert(ctx context.Context, s *domain.NotificationSettings) (*domain.NotificationSettings, error) {
	query := `
		INSERT INTO notification_settings
			(organization_id, notify_job_failed, notify_schema_changes, notify_validation_failures, email_enabled, to_emails)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (organization_id) DO UPDATE
		SET notify_job_failed = EXCLUDED.notify_job_failed,
		    notify_schema_changes = EXCLUDED.notify_schema_changes,
		    notify_validation_failures = EXCLUDED.notify_validation_failures,
		    email_enabled = EXCLUDED.email_enabled,
		    to_emails = EXCLUDED.to_emails,
		    updated_at = NOW()
		RETURNING id, organization_id, notify_job_failed, notify_schema_changes,
		          notify_validation_failures, email_enabled, to_emails, created_at, updated_at`

	row := r.pool.QueryRow(ctx, query,
		s.OrganizationID, s.NotifyJobFailed, s.NotifySchemaChanges, s.NotifyValidationFailures, s.EmailEnabled, s.ToEmails,
	)
	return scanNotificationSettings(row)
}

func scanNotificationSettings(row rowScanner) (*domain.NotificationSettings, error) {
	var s domain.NotificationSettings
	err := row.Scan(
		&s.ID, &s.OrganizationID, &s.NotifyJobFailed, &s.NotifySchemaChanges,
		&s.NotifyValidationFailures, &s.EmailEnabled, &s.ToEmails, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotificationSettingsNotFound
		}
		return nil, fmt.Errorf("scan notification settings: %w", err)
	}
	return &s, nil
}
