// Package schedule implements the Schedule Manager: translating a
// connection's per-automation-type Schedule into the single materialized
// ScheduledJob row that drives the orchestrator's tick loop.
//
// Grounded on original_source/backend/core/automation/schedule_manager.py
// (_calculate_single_next_run, update_connection_schedule,
// get_due_jobs, mark_job_executed), reworked to use Go's tzdata-backed
// time.Date/AddDate instead of pytz so repeated daily/weekly advances stay
// correct across DST transitions without hand-rolled offset math.
package schedule

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/sparvidata/automation-core/internal/domain"
)

var ErrInvalidSchedule = errors.New("invalid schedule configuration")

// NextRun computes the next UTC instant a Schedule should fire, strictly
// after from. Daily schedules fire at Time every day; weekly schedules fire
// at Time on each listed weekday. time.Date normalizes wall-clock
// arithmetic per the target location's DST rules, so advancing by
// AddDate(0, 0, n) never silently drifts the scheduled clock time.
func NextRun(sched domain.Schedule, from time.Time) (time.Time, error) {
	if !sched.Enabled {
		return time.Time{}, fmt.Errorf("%w: schedule is disabled", ErrInvalidSchedule)
	}

	loc, err := time.LoadLocation(sched.Timezone)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid timezone %q: %v", ErrInvalidSchedule, sched.Timezone, err)
	}

	hour, minute, err := parseTime(sched.Time)
	if err != nil {
		return time.Time{}, err
	}

	nowLocal := from.In(loc)

	switch sched.Type {
	case domain.ScheduleDaily:
		candidate := time.Date(nowLocal.Year(), nowLocal.Month(), nowLocal.Day(), hour, minute, 0, 0, loc)
		if !candidate.After(nowLocal) {
			candidate = candidate.AddDate(0, 0, 1)
		}
		return candidate.UTC(), nil

	case domain.ScheduleWeekly:
		if len(sched.Days) == 0 {
			return time.Time{}, fmt.Errorf("%w: weekly schedule requires at least one day", ErrInvalidSchedule)
		}
		return nextWeeklyRun(nowLocal, hour, minute, sched.Days, loc).UTC(), nil

	default:
		return time.Time{}, fmt.Errorf("%w: unknown schedule type %q", ErrInvalidSchedule, sched.Type)
	}
}

func nextWeeklyRun(nowLocal time.Time, hour, minute int, days []time.Weekday, loc *time.Location) time.Time {
	targets := append([]time.Weekday(nil), days...)
	sort.Slice(targets, func(i, j int) bool { return targets[i] < targets[j] })

	todayCandidate := time.Date(nowLocal.Year(), nowLocal.Month(), nowLocal.Day(), hour, minute, 0, 0, loc)
	currentWeekday := nowLocal.Weekday()

	daysAhead := -1
	for _, target := range targets {
		if target > currentWeekday {
			daysAhead = int(target - currentWeekday)
			break
		}
		if target == currentWeekday && todayCandidate.After(nowLocal) {
			daysAhead = 0
			break
		}
	}
	if daysAhead == -1 {
		// No remaining target day this week — wrap to the earliest target
		// day next week.
		daysAhead = 7 + int(targets[0]) - int(currentWeekday)
	}

	return todayCandidate.AddDate(0, 0, daysAhead)
}

func parseTime(hhmm string) (hour, minute int, err error) {
	if _, err := fmt.Sscanf(hhmm, "%d:%d", &hour, &minute); err != nil {
		return 0, 0, fmt.Errorf("%w: invalid time %q, expected HH:MM", ErrInvalidSchedule, hhmm)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("%w: time %q out of range", ErrInvalidSchedule, hhmm)
	}
	return hour, minute, nil
}

// ValidateConfig checks every entry of a ScheduleConfig the way
// schedule_manager.py's _validate_schedule_config does: enabled entries
// must have a valid schedule type, HH:MM time, loadable timezone, and (for
// weekly) at least one day.
func ValidateConfig(cfg domain.ScheduleConfig) error {
	for automationType, sched := range cfg {
		if !automationType.Valid() {
			return fmt.Errorf("%w: unknown automation type %q", ErrInvalidSchedule, automationType)
		}
		if !sched.Enabled {
			continue
		}
		if sched.Type != domain.ScheduleDaily && sched.Type != domain.ScheduleWeekly {
			return fmt.Errorf("%w: invalid schedule type %q for %s", ErrInvalidSchedule, sched.Type, automationType)
		}
		if _, _, err := parseTime(sched.Time); err != nil {
			return err
		}
		if _, err := time.LoadLocation(sched.Timezone); err != nil {
			return fmt.Errorf("%w: invalid timezone %q for %s", ErrInvalidSchedule, sched.Timezone, automationType)
		}
		if sched.Type == domain.ScheduleWeekly && len(sched.Days) == 0 {
			return fmt.Errorf("%w: weekly schedule for %s requires at least one day", ErrInvalidSchedule, automationType)
		}
	}
	return nil
}
