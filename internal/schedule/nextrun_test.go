package schedule_test

import (
	"testing"
	"time"

	"github.com/sparvidata/automation-core/internal/domain"
	"github.com/sparvidata/automation-core/internal/schedule"
)

func mustParse(t *testing.T, layout, value string) time.Time {
	t.Helper()
	ts, err := time.Parse(layout, value)
	if err != nil {
		t.Fatalf("parse %q: %v", value, err)
	}
	return ts
}

// Scenario 1: a daily schedule in a non-UTC timezone fires at the correct
// UTC instant, not at the wall-clock hour interpreted as UTC.
func TestNextRun_Daily_NonUTCTimezone(t *testing.T) {
	sched := domain.Schedule{
		Enabled: true, Type: domain.ScheduleDaily, Time: "09:00", Timezone: "America/New_York",
	}
	// 2026-03-10 is after the US DST change (2026-03-08 2am) so New York
	// is on daylight time already (EDT, UTC-4).
	from := mustParse(t, time.RFC3339, "2026-03-10T08:00:00Z") // 04:00 EDT

	next, err := schedule.NextRun(sched, from)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := mustParse(t, time.RFC3339, "2026-03-10T13:00:00Z") // 09:00 EDT == 13:00 UTC
	if !next.Equal(want) {
		t.Errorf("next run = %v, want %v", next, want)
	}
}

// Scenario 2: a daily schedule whose wall-clock time spans a DST
// spring-forward transition still advances by one calendar day, not by a
// fixed 24h duration.
func TestNextRun_Daily_DSTSpringForward(t *testing.T) {
	sched := domain.Schedule{
		Enabled: true, Type: domain.ScheduleDaily, Time: "09:00", Timezone: "America/New_York",
	}
	// US DST begins 2026-03-08 at 02:00 local (clocks jump to 03:00 EDT).
	// "from" is just after the 09:00 EST run on March 7th.
	from := mustParse(t, time.RFC3339, "2026-03-07T14:30:00Z") // 09:30 EST

	next, err := schedule.NextRun(sched, from)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// March 8th 09:00 local is now EDT (UTC-4), not EST (UTC-5) — the
	// elapsed wall-clock gap is 23h, not 24h.
	want := mustParse(t, time.RFC3339, "2026-03-08T13:00:00Z")
	if !next.Equal(want) {
		t.Errorf("next run = %v, want %v (gap should be 23h across spring-forward)", next, want)
	}
	if got := next.Sub(from); got != 22*time.Hour+30*time.Minute {
		t.Errorf("elapsed = %v, want 22h30m (23h wall-clock minus the 30m already past 09:00 EST)", got)
	}
}

// Scenario 3: a weekly schedule whose only target day is today, but whose
// time-of-day has already passed, rolls over to next week rather than
// firing immediately or firing later today.
func TestNextRun_Weekly_TodayAlreadyPast(t *testing.T) {
	sched := domain.Schedule{
		Enabled: true, Type: domain.ScheduleWeekly, Time: "01:00", Timezone: "UTC",
		Days: []time.Weekday{time.Sunday},
	}
	// 2026-08-02 is a Sunday; evaluate well after 01:00 UTC.
	from := mustParse(t, time.RFC3339, "2026-08-02T12:00:00Z")

	next, err := schedule.NextRun(sched, from)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := mustParse(t, time.RFC3339, "2026-08-09T01:00:00Z") // next Sunday
	if !next.Equal(want) {
		t.Errorf("next run = %v, want %v", next, want)
	}
	if next.Weekday() != time.Sunday {
		t.Errorf("next run weekday = %v, want Sunday", next.Weekday())
	}
}

func TestNextRun_Weekly_LaterThisWeek(t *testing.T) {
	sched := domain.Schedule{
		Enabled: true, Type: domain.ScheduleWeekly, Time: "10:00", Timezone: "UTC",
		Days: []time.Weekday{time.Monday, time.Friday},
	}
	// Wednesday — next target is Friday this week.
	from := mustParse(t, time.RFC3339, "2026-08-05T00:00:00Z")

	next, err := schedule.NextRun(sched, from)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.Weekday() != time.Friday {
		t.Errorf("next run weekday = %v, want Friday", next.Weekday())
	}
	if next.Day() != 7 {
		t.Errorf("next run day = %d, want 7 (2026-08-07)", next.Day())
	}
}

func TestNextRun_Disabled_ReturnsError(t *testing.T) {
	sched := domain.Schedule{Enabled: false, Type: domain.ScheduleDaily, Time: "02:00", Timezone: "UTC"}
	if _, err := schedule.NextRun(sched, time.Now()); err == nil {
		t.Error("expected error for disabled schedule, got nil")
	}
}

func TestValidateConfig_RejectsBadTimezone(t *testing.T) {
	cfg := domain.ScheduleConfig{
		domain.AutomationMetadataRefresh: {
			Enabled: true, Type: domain.ScheduleDaily, Time: "02:00", Timezone: "Not/A_Zone",
		},
	}
	if err := schedule.ValidateConfig(cfg); err == nil {
		t.Error("expected error for invalid timezone, got nil")
	}
}

func TestValidateConfig_RejectsWeeklyWithNoDays(t *testing.T) {
	cfg := domain.ScheduleConfig{
		domain.AutomationValidationAutomation: {
			Enabled: true, Type: domain.ScheduleWeekly, Time: "02:00", Timezone: "UTC",
		},
	}
	if err := schedule.ValidateConfig(cfg); err == nil {
		t.Error("expected error for weekly schedule with no days, got nil")
	}
}

func TestValidateConfig_DefaultConfigIsValid(t *testing.T) {
	if err := schedule.ValidateConfig(domain.DefaultScheduleConfig()); err != nil {
		t.Errorf("default schedule config should be valid: %v", err)
	}
}
