// Package snooze plans the next ring of a snoozed alarm
package snooze

import (
	"errors"
	"time"

	"github.com/borgmon/alarm-clock/pkg/models"
)

// ErrLimitReached is returned once an alarm has used all of its snoozes
var ErrLimitReached = errors.New("snooze limit reached")

// Config is the snooze policy
type Config struct {
	Duration time.Duration
	MaxCount int // 0 = unlimited
}

// FromConfig extracts the snooze policy from the application settings
func FromConfig(cfg models.Config) Config {
	return Config{
		Duration: cfg.SnoozeDuration(),
		MaxCount: cfg.MaxSnoozeCount,
	}
}

// Snooze counts a snooze against alarm and returns when it should ring again.
// The alarm is left untouched when the limit is reached. Rescheduling the
// returned occurrence is up to the caller.
func Snooze(alarm *models.Alarm, cfg Config, now time.Time) (models.Occurrence, error) {
	if cfg.MaxCount > 0 && alarm.SnoozeCount >= cfg.MaxCount {
		return models.Occurrence{}, ErrLimitReached
	}

	alarm.SnoozeCount++
	return models.Occurrence{
		AlarmID: alarm.ID,
		At:      now.Add(cfg.Duration),
	}, nil
}

// Remaining returns how many snoozes are left, -1 when unlimited
func Remaining(alarm models.Alarm, cfg Config) int {
	if cfg.MaxCount == 0 {
		return -1
	}
	return max(cfg.MaxCount-alarm.SnoozeCount, 0)
}
