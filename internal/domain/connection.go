package domain

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrConnectionNotFound  = errors.New("connection not found")
	ErrDuplicateDefault    = errors.New("organization already has a default connection")
	ErrInvalidConnection   = errors.New("invalid connection")
	ErrConfigNotFound      = errors.New("automation connection config not found")
)

// ConnectionType is the closed set of target databases this system can
// profile, validate, and watch for schema drift.
type ConnectionType string

const (
	ConnectionSnowflake  ConnectionType = "snowflake"
	ConnectionPostgreSQL ConnectionType = "postgresql"
	ConnectionDuckDB     ConnectionType = "duckdb"
)

func (t ConnectionType) Valid() bool {
	switch t {
	case ConnectionSnowflake, ConnectionPostgreSQL, ConnectionDuckDB:
		return true
	default:
		return false
	}
}

// Connection is a user-registered target database. Credentials are opaque
// JSON to the core — only the connector package knows how to interpret them
// for a given ConnectionType.
type Connection struct {
	ID             uuid.UUID       `json:"id"`
	OrganizationID uuid.UUID       `json:"organizationId"`
	Name           string          `json:"name"`
	Type           ConnectionType  `json:"type"`
	Credentials    json.RawMessage `json:"-"` // never serialized back to callers
	IsDefault      bool            `json:"isDefault"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// AutomationConnectionConfig is the 1:1 schedule configuration for a
// connection's three automation types.
type AutomationConnectionConfig struct {
	ID             uuid.UUID      `json:"id"`
	ConnectionID   uuid.UUID      `json:"connectionId"`
	OrganizationID uuid.UUID      `json:"organizationId"`
	ScheduleConfig ScheduleConfig `json:"scheduleConfig"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

// AutomationType is the closed set of automations the scheduler drives.
type AutomationType string

const (
	AutomationMetadataRefresh      AutomationType = "metadata_refresh"
	AutomationSchemaChangeDetect   AutomationType = "schema_change_detection"
	AutomationValidationAutomation AutomationType = "validation_automation"
)

func (t AutomationType) Valid() bool {
	switch t {
	case AutomationMetadataRefresh, AutomationSchemaChangeDetect, AutomationValidationAutomation:
		return true
	default:
		return false
	}
}

var AllAutomationTypes = []AutomationType{
	AutomationMetadataRefresh,
	AutomationSchemaChangeDetect,
	AutomationValidationAutomation,
}

// ScheduleType selects the recurrence pattern of a Schedule.
type ScheduleType string

const (
	ScheduleDaily  ScheduleType = "daily"
	ScheduleWeekly ScheduleType = "weekly"
)

// Schedule is one automation type's entry in a connection's ScheduleConfig.
// It is the tagged-variant shape from the redesign notes: Days is only
// meaningful when Type == ScheduleWeekly.
type Schedule struct {
	Enabled  bool         `json:"enabled"`
	Type     ScheduleType `json:"scheduleType"`
	Time     string       `json:"time"` // "HH:MM", validated 24h
	Timezone string       `json:"timezone"`
	Days     []time.Weekday `json:"days,omitempty"`
}

// ScheduleConfig maps every automation type to its schedule. Disabled or
// absent entries simply are not materialized into ScheduledJob rows.
type ScheduleConfig map[AutomationType]Schedule

// DefaultScheduleConfig mirrors the documented default returned by
// getConnectionSchedule when no config row exists yet: daily metadata
// refresh at 02:00 UTC, daily schema detection at 03:00 UTC, validation
// disabled.
func DefaultScheduleConfig() ScheduleConfig {
	return ScheduleConfig{
		AutomationMetadataRefresh: {
			Enabled: true, Type: ScheduleDaily, Time: "02:00", Timezone: "UTC",
		},
		AutomationSchemaChangeDetect: {
			Enabled: true, Type: ScheduleDaily, Time: "03:00", Timezone: "UTC",
		},
		AutomationValidationAutomation: {
			Enabled: false, Type: ScheduleDaily, Time: "04:00", Timezone: "UTC",
		},
	}
}
