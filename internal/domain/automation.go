package domain

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrScheduledJobNotFound = errors.New("scheduled job not found")
	ErrJobNotFound          = errors.New("automation job not found")
	ErrJobAlreadyRunning    = errors.New("a job for this connection and automation type is already running")
	ErrInvalidTransition    = errors.New("invalid job status transition")
)

// JobStatus is the closed, monotonic lifecycle of an AutomationJob.
type JobStatus string

const (
	JobScheduled JobStatus = "scheduled"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// CanTransition enforces the monotonic state machine from spec P4:
// scheduled -> running -> {completed, failed, cancelled}, with two
// exceptions: scheduled -> failed directly, for when a job never reaches
// running because the worker pool rejected its submission, and
// scheduled -> cancelled, for a job cancelled before it is claimed.
func (s JobStatus) CanTransition(to JobStatus) bool {
	switch s {
	case JobScheduled:
		return to == JobRunning || to == JobCancelled || to == JobFailed
	case JobRunning:
		return to == JobCompleted || to == JobFailed || to == JobCancelled
	default:
		return false // terminal states never transition again
	}
}

// ScheduledJob is the materialized "next run" row for one enabled
// (connection, automation type) pair. At most one row exists per pair
// (invariant P2).
type ScheduledJob struct {
	ID             uuid.UUID      `json:"id"`
	ConnectionID   uuid.UUID      `json:"connectionId"`
	OrganizationID uuid.UUID      `json:"organizationId"`
	AutomationType AutomationType `json:"automationType"`
	Enabled        bool           `json:"enabled"`
	NextRunAt      time.Time      `json:"nextRunAt"` // always UTC
	LastRunAt      *time.Time     `json:"lastRunAt"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

// AutomationJob is one dispatched execution. Invariant P1: no two jobs with
// the same (ConnectionID, AutomationType) may be Running simultaneously.
type AutomationJob struct {
	ID             uuid.UUID       `json:"id"`
	ConnectionID   uuid.UUID       `json:"connectionId"`
	OrganizationID uuid.UUID       `json:"organizationId"`
	ScheduledJobID *uuid.UUID      `json:"scheduledJobId,omitempty"`
	AutomationType AutomationType  `json:"automationType"`
	Status         JobStatus       `json:"status"`
	ScheduledAt    time.Time       `json:"scheduledAt"`
	StartedAt      *time.Time      `json:"startedAt,omitempty"`
	FinishedAt     *time.Time      `json:"finishedAt,omitempty"`
	ResultSummary  json.RawMessage `json:"resultSummary,omitempty"`
	ErrorMessage   *string         `json:"errorMessage,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// AutomationRun is the audit row attached to a job execution.
type AutomationRun struct {
	ID        uuid.UUID       `json:"id"`
	JobID     uuid.UUID       `json:"jobId"`
	Results   json.RawMessage `json:"results"`
	CreatedAt time.Time       `json:"createdAt"`
}

// JobSummary is the aggregate returned by getConnectionJobSummary: counts
// by status and automation type over a trailing window, plus the time of
// the most recent job.
type JobSummary struct {
	ConnectionID uuid.UUID                         `json:"connectionId"`
	WindowHours  int                                `json:"windowHours"`
	CountByType  map[AutomationType]map[JobStatus]int `json:"countByType"`
	LastJobAt    *time.Time                         `json:"lastJobAt"`
}
