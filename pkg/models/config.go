package models

import (
	"errors"
	"time"
)

// Config holds application configuration
type Config struct {
	SnoozeMinutes      int      `json:"snooze_minutes"`       // minutes between snooze and the next ring
	MaxSnoozeCount     int      `json:"max_snooze_count"`     // 0 = unlimited
	AutoDismissMinutes int      `json:"auto_dismiss_minutes"` // 0 = ring until acted on
	AutoStart          bool     `json:"auto_start"`           // start with the desktop session
	DatabasePath       string   `json:"database_path"`        // sqlite file holding the alarms
	EventSubscribers   []string `json:"event_subscribers"`    // cloudevents endpoints
	MissedNotification bool     `json:"missed_notification"`  // raise a notification on missed alarms
}

// DefaultConfig returns the settings used before anything has been saved
func DefaultConfig() Config {
	return Config{
		SnoozeMinutes:      10,
		MaxSnoozeCount:     0,
		AutoDismissMinutes: 15,
		DatabasePath:       "alarms.db",
		EventSubscribers:   []string{},
		MissedNotification: true,
	}
}

// Validate rejects settings the engine cannot work with
func (c Config) Validate() error {
	var errs []error
	if c.SnoozeMinutes <= 0 {
		errs = append(errs, errors.New("snooze minutes must be positive"))
	}
	if c.MaxSnoozeCount < 0 {
		errs = append(errs, errors.New("max snooze count must not be negative"))
	}
	if c.AutoDismissMinutes < 0 {
		errs = append(errs, errors.New("auto dismiss minutes must not be negative"))
	}
	if c.DatabasePath == "" {
		errs = append(errs, errors.New("database path is required"))
	}
	return errors.Join(errs...)
}

// SnoozeDuration is the configured snooze length
func (c Config) SnoozeDuration() time.Duration {
	return time.Duration(c.SnoozeMinutes) * time.Minute
}

// AutoDismissAfter is the configured ringing budget, 0 when disabled
func (c Config) AutoDismissAfter() time.Duration {
	return time.Duration(c.AutoDismissMinutes) * time.Minute
}
