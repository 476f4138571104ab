// Package history implements the History & Change-Analytics read-model:
// it never runs a metadata refresh itself, it only reads back the
// ProfileHistory snapshots Task Executors already wrote and turns them
// into a freshness bucket and a suggested schedule tightening.
//
// Grounded on original_source/backend/core/metadata/change_analytics.py's
// suggest_refresh_interval, restored here as the thin read-model the
// GLOSSARY names it as — no anomaly-detection algorithm, consistent with
// Non-goals.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sparvidata/automation-core/internal/domain"
	"github.com/sparvidata/automation-core/internal/repository"
)

const (
	lookbackWindow     = 30 * 24 * time.Hour
	minIntervalHours   = 1
	maxIntervalHours   = 168 // 7 days
	minDataPoints      = 5
)

// ChangeFrequency buckets how often a table's profile actually changed
// over the lookback window.
type ChangeFrequency string

const (
	FrequencyUnknown ChangeFrequency = "unknown"
	FrequencyLow     ChangeFrequency = "low"
	FrequencyMedium  ChangeFrequency = "medium"
	FrequencyHigh    ChangeFrequency = "high"
)

// RefreshSuggestion is the result of SuggestRefreshInterval.
type RefreshSuggestion struct {
	ConnectionID           uuid.UUID       `json:"connectionId"`
	TableName              string          `json:"tableName"`
	Freshness              domain.Freshness `json:"freshness"`
	Frequency              ChangeFrequency `json:"frequency"`
	CurrentIntervalHours   int             `json:"currentIntervalHours"`
	SuggestedIntervalHours int             `json:"suggestedIntervalHours"`
	Reason                 string          `json:"reason"`
}

// Service is the History & Change-Analytics read-model.
type Service struct {
	profiles repository.ProfileHistoryRepository
}

func New(profiles repository.ProfileHistoryRepository) *Service {
	return &Service{profiles: profiles}
}

// Freshness reports how stale the most recent profile snapshot is for
// (connectionID, tableName). Returns domain.FreshnessStale when no
// snapshot has ever been collected.
func (s *Service) Freshness(ctx context.Context, connectionID uuid.UUID, tableName string) (domain.Freshness, error) {
	latest, err := s.profiles.Latest(ctx, connectionID, tableName)
	if err != nil {
		return "", fmt.Errorf("load latest profile: %w", err)
	}
	if latest == nil {
		return domain.FreshnessStale, nil
	}
	return domain.FreshnessFor(time.Since(latest.CollectedAt)), nil
}

// SuggestRefreshInterval looks at every ProfileHistory snapshot collected
// for (connectionID, tableName) over the trailing 30 days and recommends
// tightening or loosening currentIntervalHours, the way
// suggest_refresh_interval does: too little data just returns the current
// interval unchanged, a snapshot is counted as "changed" when its raw
// profile payload differs byte-for-byte from the one before it.
func (s *Service) SuggestRefreshInterval(ctx context.Context, connectionID uuid.UUID, tableName string, currentIntervalHours int) (*RefreshSuggestion, error) {
	since := time.Now().UTC().Add(-lookbackWindow)
	snapshots, err := s.profiles.ListSince(ctx, connectionID, tableName, since)
	if err != nil {
		return nil, fmt.Errorf("list profile history: %w", err)
	}

	freshness, err := s.Freshness(ctx, connectionID, tableName)
	if err != nil {
		return nil, err
	}

	suggestion := &RefreshSuggestion{
		ConnectionID:           connectionID,
		TableName:              tableName,
		Freshness:              freshness,
		Frequency:              FrequencyUnknown,
		CurrentIntervalHours:   currentIntervalHours,
		SuggestedIntervalHours: currentIntervalHours,
		Reason:                 "insufficient data to suggest a change",
	}

	if len(snapshots) < minDataPoints {
		return suggestion, nil
	}

	changes, avgHoursBetweenChanges := changeStats(snapshots)
	ratio := float64(changes) / float64(len(snapshots))

	switch {
	case ratio >= 0.5:
		suggestion.Frequency = FrequencyHigh
		suggestion.Reason = "high change frequency detected, decreasing interval for more timely updates"
		if avgHoursBetweenChanges > 0 {
			suggestion.SuggestedIntervalHours = clampHours(min(int(avgHoursBetweenChanges/3), currentIntervalHours))
		} else {
			suggestion.SuggestedIntervalHours = clampHours(currentIntervalHours / 2)
		}
	case ratio >= 0.1:
		suggestion.Frequency = FrequencyMedium
		suggestion.Reason = "medium change frequency detected, maintaining reasonable refresh interval"
		if avgHoursBetweenChanges > 0 && int(avgHoursBetweenChanges) < currentIntervalHours {
			suggestion.SuggestedIntervalHours = clampHours(int(avgHoursBetweenChanges * 0.75))
		}
	default:
		suggestion.Frequency = FrequencyLow
		suggestion.Reason = "low change frequency detected, increasing interval to reduce system load"
		suggestion.SuggestedIntervalHours = clampHours(currentIntervalHours * 2)
	}

	return suggestion, nil
}

// changeStats counts consecutive snapshots whose Profile payload differs
// and the average number of hours between those changes.
func changeStats(snapshots []*domain.ProfileHistory) (changes int, avgHoursBetweenChanges float64) {
	var changeTimes []time.Time
	for i := 1; i < len(snapshots); i++ {
		if string(snapshots[i].Profile) != string(snapshots[i-1].Profile) {
			changes++
			changeTimes = append(changeTimes, snapshots[i].CollectedAt)
		}
	}
	if len(changeTimes) < 2 {
		return changes, 0
	}

	var totalHours float64
	for i := 1; i < len(changeTimes); i++ {
		totalHours += changeTimes[i].Sub(changeTimes[i-1]).Hours()
	}
	return changes, totalHours / float64(len(changeTimes)-1)
}

func clampHours(h int) int {
	if h < minIntervalHours {
		return minIntervalHours
	}
	if h > maxIntervalHours {
		return maxIntervalHours
	}
	return h
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
