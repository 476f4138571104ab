// Package notify implements the Notification Dispatcher: it subscribes to
// the Event Bus for the three event types worth paging a human over and
// emails every configured recipient for the organization, gated by that
// organization's NotificationSettings.
//
// Grounded on the teacher's internal/email package (Sender interface,
// LogSender for local env, ResendSender for staging/production) —
// generalized from a single magic-link template into one templated
// message per event type, and on
// original_source/backend/routes/notifications.py's per-organization,
// per-severity settings concept, simplified to the one channel
// internal/email.Sender implements.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sparvidata/automation-core/internal/domain"
	"github.com/sparvidata/automation-core/internal/email"
	"github.com/sparvidata/automation-core/internal/eventbus"
	"github.com/sparvidata/automation-core/internal/repository"
)

// Dispatcher formats and emails a notification for each subscribed event
// type, gated by the organization's NotificationSettings. A delivery
// failure is logged and never propagated back to the Event Bus — a
// broken mail provider must never block the rest of the subscriber fan-out.
type Dispatcher struct {
	settings repository.NotificationSettingsRepository
	sender   email.Sender
	logger   *slog.Logger
}

func New(settings repository.NotificationSettingsRepository, sender email.Sender, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{settings: settings, sender: sender, logger: logger.With("component", "notify")}
}

// Subscribe registers the dispatcher's handlers on bus for every event
// type it cares about. Called once during composition, before the
// orchestrator starts publishing.
func (d *Dispatcher) Subscribe(bus *eventbus.Bus) {
	bus.Subscribe(domain.EventJobFailed, d.handleJobFailed)
	bus.Subscribe(domain.EventSchemaChangesDetected, d.handleSchemaChangesDetected)
	bus.Subscribe(domain.EventValidationFailuresDetected, d.handleValidationFailuresDetected)
}

func (d *Dispatcher) handleJobFailed(ctx context.Context, event domain.Event) error {
	return d.dispatch(ctx, event, func(s *domain.NotificationSettings) bool { return s.NotifyJobFailed },
		"Automation job failed",
		func() string {
			var data struct {
				JobID any    `json:"jobId"`
				Error string `json:"error"`
			}
			_ = json.Unmarshal(event.Data, &data)
			return fmt.Sprintf("Job %v failed: %s", data.JobID, data.Error)
		},
	)
}

func (d *Dispatcher) handleSchemaChangesDetected(ctx context.Context, event domain.Event) error {
	return d.dispatch(ctx, event, func(s *domain.NotificationSettings) bool { return s.NotifySchemaChanges },
		"Schema changes detected",
		func() string {
			var data struct {
				Count int `json:"count"`
			}
			_ = json.Unmarshal(event.Data, &data)
			return fmt.Sprintf("%d schema change(s) detected on connection %s", data.Count, connectionLabel(event))
		},
	)
}

func (d *Dispatcher) handleValidationFailuresDetected(ctx context.Context, event domain.Event) error {
	return d.dispatch(ctx, event, func(s *domain.NotificationSettings) bool { return s.NotifyValidationFailures },
		"Validation failures detected",
		func() string {
			var data struct {
				InvalidCount int `json:"invalidCount"`
				RulesRun     int `json:"rulesRun"`
			}
			_ = json.Unmarshal(event.Data, &data)
			return fmt.Sprintf("%d of %d validation rule(s) failed on connection %s", data.InvalidCount, data.RulesRun, connectionLabel(event))
		},
	)
}

func connectionLabel(event domain.Event) string {
	if event.ConnectionID == nil {
		return "unknown"
	}
	return event.ConnectionID.String()
}

// dispatch is the shared gate-then-send path every handler above follows:
// skip silently if the event has no organization, skip if the
// organization's settings disable this event type or email entirely,
// otherwise format and send one email per recipient.
func (d *Dispatcher) dispatch(ctx context.Context, event domain.Event, enabled func(*domain.NotificationSettings) bool, subject string, body func() string) error {
	if event.OrganizationID == nil {
		return nil
	}

	settings, err := d.settings.Get(ctx, *event.OrganizationID)
	if err != nil {
		if err == domain.ErrNotificationSettingsNotFound {
			settings = domain.DefaultNotificationSettings(*event.OrganizationID)
		} else {
			return fmt.Errorf("load notification settings: %w", err)
		}
	}

	if !settings.EmailEnabled || !enabled(settings) || len(settings.ToEmails) == 0 {
		return nil
	}

	msg := body()
	var errs []string
	for _, to := range settings.ToEmails {
		if err := d.sender.Send(ctx, to, subject, msg); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", to, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("send notification: %s", strings.Join(errs, "; "))
	}
	return nil
}
