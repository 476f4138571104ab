// Package eventbus implements the synchronous typed pub/sub described in
// SPEC_FULL.md §4.6: every event is persisted before any handler runs, and
// a handler panic or error is recovered and logged rather than propagated,
// so one broken subscriber can never take down the publisher.
//
// Grounded on original_source/backend/core/automation/events.py's
// publish_automation_event — store-then-notify, best-effort fan-out — cast
// into the teacher's dependency-injected, logger-carrying component shape
// (internal/scheduler/dispatcher.go).
package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/sparvidata/automation-core/internal/domain"
	"github.com/sparvidata/automation-core/internal/repository"
)

// Handler reacts to one published event. Returning an error only logs —
// it never unwinds the publisher or blocks sibling handlers.
type Handler func(ctx context.Context, event domain.Event) error

type Bus struct {
	mu       sync.RWMutex
	handlers map[domain.EventType][]Handler
	events   repository.EventRepository
	logger   *slog.Logger
}

func New(events repository.EventRepository, logger *slog.Logger) *Bus {
	return &Bus{
		handlers: make(map[domain.EventType][]Handler),
		events:   events,
		logger:   logger.With("component", "eventbus"),
	}
}

// Subscribe registers h to run, in registration order, whenever an event of
// eventType is published. Safe to call concurrently with Publish.
func (b *Bus) Subscribe(eventType domain.EventType, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], h)
}

// Publish persists the event first — a handler failure must never cause an
// event to go unrecorded — then runs every subscriber synchronously,
// recovering and logging any panic or error so the rest still run.
func (b *Bus) Publish(ctx context.Context, eventType domain.EventType, connectionID, organizationID, userID *uuid.UUID, data any) (*domain.Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal event data: %w", err)
	}

	event := domain.Event{
		ID:             uuid.New(),
		Type:           eventType,
		ConnectionID:   connectionID,
		OrganizationID: organizationID,
		UserID:         userID,
		Data:           raw,
	}

	stored, err := b.events.Create(ctx, &event)
	if err != nil {
		return nil, fmt.Errorf("persist event: %w", err)
	}

	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers[eventType]...)
	b.mu.RUnlock()

	for _, h := range handlers {
		b.dispatch(ctx, *stored, h)
	}

	return stored, nil
}

func (b *Bus) dispatch(ctx context.Context, event domain.Event, h Handler) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				"event_type", event.Type, "event_id", event.ID, "panic", r)
		}
	}()

	if err := h(ctx, event); err != nil {
		b.logger.Error("event handler failed",
			"event_type", event.Type, "event_id", event.ID, "error", err)
	}
}
