// Package lifecycle implements the Unified Lifecycle Manager: an ordered,
// per-subsystem fault-isolated startup sequence, grounded on
// original_source/backend/core/automation/unified_manager.py's
// initialize_all_systems. Unlike the original's process-wide singleton
// (double-checked-locking around a module-level instance), this is a
// plain component constructed once by the composition root and passed
// around by reference — "singletons -> supervised components" from the
// redesign notes.
package lifecycle

import (
	"context"
	"log/slog"
	"sync"
)

// ShouldEnableAutomation decides whether the orchestrator's scheduling
// loop should run at all, grounded on unified_manager.py's
// _should_enable_automation: DISABLE_AUTOMATION is an explicit override
// that always wins; the "local" environment (this repo's equivalent of
// the original's "development") requires an explicit opt-in via
// ENABLE_AUTOMATION_SCHEDULER; every other environment defaults to enabled.
func ShouldEnableAutomation(env string, disableAutomation, enableAutomationScheduler bool) bool {
	if disableAutomation {
		return false
	}
	if env == "local" {
		return enableAutomationScheduler
	}
	return true
}

// Step is one independently fault-isolated subsystem to start or stop.
type Step struct {
	Name string
	Run  func(ctx context.Context) error
}

// Manager runs a registered sequence of startup steps where one
// subsystem's failure never prevents the others from starting, and an
// equivalent sequence of shutdown steps in reverse order.
type Manager struct {
	logger            *slog.Logger
	automationEnabled bool
	steps             []Step
	stopSteps         []Step

	mu          sync.Mutex
	initialized bool
	results     map[string]bool
}

func New(logger *slog.Logger, automationEnabled bool) *Manager {
	return &Manager{
		logger:            logger.With("component", "lifecycle"),
		automationEnabled: automationEnabled,
		results:           make(map[string]bool),
	}
}

// AddStep registers a subsystem to bring up during Start, in registration
// order.
func (m *Manager) AddStep(name string, run func(ctx context.Context) error) {
	m.steps = append(m.steps, Step{Name: name, Run: run})
}

// AddAutomationStep registers a step that only runs when automation
// scheduling is enabled — the orchestrator's tick loop is the canonical
// example. A skipped step still counts as successful, matching the
// original's "mark initialized even when scheduler init is skipped".
func (m *Manager) AddAutomationStep(name string, run func(ctx context.Context) error) {
	m.steps = append(m.steps, Step{
		Name: name,
		Run: func(ctx context.Context) error {
			if !m.automationEnabled {
				m.logger.Info("automation disabled, skipping subsystem", "subsystem", name)
				return nil
			}
			return run(ctx)
		},
	})
}

// AddShutdownStep registers a subsystem to tear down during Stop. Steps
// run in reverse registration order, each fault-isolated the same way
// startup steps are.
func (m *Manager) AddShutdownStep(name string, run func(ctx context.Context) error) {
	m.stopSteps = append(m.stopSteps, Step{Name: name, Run: run})
}

// Start runs every registered step in order. A step's error or panic is
// recovered, logged, and recorded as a failure in the returned results
// map — it never stops subsequent steps from starting. initialized is set
// true unconditionally at the end, mirroring the original's "prevent
// retry loops" rationale: a half-started process should not be restarted
// automatically, it should surface its results map for an operator to act on.
func (m *Manager) Start(ctx context.Context) map[string]bool {
	for _, step := range m.steps {
		m.results[step.Name] = m.runStep(ctx, step)
	}

	m.mu.Lock()
	m.initialized = true
	m.mu.Unlock()

	for name, ok := range m.results {
		status := "ok"
		if !ok {
			status = "failed"
		}
		m.logger.Info("lifecycle startup summary", "subsystem", name, "status", status)
	}
	return m.results
}

func (m *Manager) runStep(ctx context.Context, step Step) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("subsystem init panicked", "subsystem", step.Name, "panic", r)
			ok = false
		}
	}()

	if err := step.Run(ctx); err != nil {
		m.logger.Error("subsystem init failed", "subsystem", step.Name, "error", err)
		return false
	}
	m.logger.Info("subsystem initialized", "subsystem", step.Name)
	return true
}

// Stop runs every registered shutdown step in reverse order, fault
// isolated the same way Start is — one subsystem failing to stop cleanly
// never prevents the others from being asked to.
func (m *Manager) Stop(ctx context.Context) {
	for i := len(m.stopSteps) - 1; i >= 0; i-- {
		m.runShutdownStep(ctx, m.stopSteps[i])
	}
}

func (m *Manager) runShutdownStep(ctx context.Context, step Step) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("subsystem shutdown panicked", "subsystem", step.Name, "panic", r)
		}
	}()

	if err := step.Run(ctx); err != nil {
		m.logger.Error("subsystem shutdown failed", "subsystem", step.Name, "error", err)
		return
	}
	m.logger.Info("subsystem stopped", "subsystem", step.Name)
}

// Initialized reports whether Start has completed, regardless of whether
// every subsystem came up successfully.
func (m *Manager) Initialized() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.initialized
}

// AutomationEnabled reports the gate decision the Manager was constructed
// with.
func (m *Manager) AutomationEnabled() bool {
	return m.automationEnabled
}
