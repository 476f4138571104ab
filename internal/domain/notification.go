package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNotificationSettingsNotFound = errors.New("notification settings not found")

// NotificationSettings is the per-organization delivery preference row,
// simplified from notifications.py's email/Slack/webhook trio down to
// email — the only channel internal/email.Sender implements.
type NotificationSettings struct {
	ID                       uuid.UUID `json:"id"`
	OrganizationID           uuid.UUID `json:"organizationId"`
	NotifyJobFailed          bool      `json:"notifyJobFailed"`
	NotifySchemaChanges      bool      `json:"notifySchemaChanges"`
	NotifyValidationFailures bool      `json:"notifyValidationFailures"`
	EmailEnabled             bool      `json:"emailEnabled"`
	ToEmails                 []string  `json:"toEmails"`
	CreatedAt                time.Time `json:"createdAt"`
	UpdatedAt                time.Time `json:"updatedAt"`
}

// DefaultNotificationSettings mirrors the defaults
// get_notification_settings returns when no row exists yet: every event
// type notifies, but delivery itself is off until an operator supplies
// recipient addresses.
func DefaultNotificationSettings(organizationID uuid.UUID) *NotificationSettings {
	return &NotificationSettings{
		OrganizationID:            organizationID,
		NotifyJobFailed:           true,
		NotifySchemaChanges:       true,
		NotifyValidationFailures:  true,
		EmailEnabled:              false,
		ToEmails:                  nil,
	}
}
