package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType is the closed set of events flowing through the Event Bus.
type EventType string

const (
	EventMetadataRefreshed           EventType = "METADATA_REFRESHED"
	EventSchemaChangesDetected       EventType = "SCHEMA_CHANGES_DETECTED"
	EventValidationFailuresDetected  EventType = "VALIDATION_FAILURES_DETECTED"
	EventJobScheduled                EventType = "JOB_SCHEDULED"
	EventJobStarted                  EventType = "JOB_STARTED"
	EventJobCompleted                EventType = "JOB_COMPLETED"
	EventJobFailed                   EventType = "JOB_FAILED"
	EventJobCancelled                EventType = "JOB_CANCELLED"
	EventConfigCreated               EventType = "CONFIG_CREATED"
	EventConfigUpdated               EventType = "CONFIG_UPDATED"
	EventConfigDeleted               EventType = "CONFIG_DELETED"
	EventValidationFailure           EventType = "VALIDATION_FAILURE"
	EventProfileCompletion           EventType = "PROFILE_COMPLETION"
	EventSchemaChange                EventType = "SCHEMA_CHANGE"
	EventUserRequest                 EventType = "USER_REQUEST"
	EventSystemRefresh               EventType = "SYSTEM_REFRESH"
	EventManualTrigger               EventType = "MANUAL_TRIGGER"
	EventAutomationEnabled           EventType = "AUTOMATION_ENABLED"
	EventAutomationDisabled          EventType = "AUTOMATION_DISABLED"
)

// Event is the envelope persisted to automation_events before any handler
// runs, and the value handlers receive.
type Event struct {
	ID             uuid.UUID       `json:"id"`
	Type           EventType       `json:"type"`
	ConnectionID   *uuid.UUID      `json:"connectionId,omitempty"`
	OrganizationID *uuid.UUID      `json:"organizationId,omitempty"`
	UserID         *uuid.UUID      `json:"userId,omitempty"`
	Data           json.RawMessage `json:"data"`
	Timestamp      time.Time       `json:"timestamp"`
}
