package store

import (
	"encoding/json"

	"fyne.io/fyne/v2"
	"github.com/borgmon/alarm-clock/pkg/models"
)

const (
	keySnoozeMinutes      = "snooze_minutes"
	keyMaxSnoozeCount     = "max_snooze_count"
	keyAutoDismissMinutes = "auto_dismiss_minutes"
	keyAutoStart          = "auto_start"
	keyDatabasePath       = "database_path"
	keyEventSubscribers   = "event_subscribers"
	keyMissedNotification = "missed_notification"
)

// ConfigStore handles configuration persistence using Fyne preferences
type ConfigStore struct {
	prefs fyne.Preferences
}

// NewConfigStore creates a new ConfigStore instance
func NewConfigStore(app fyne.App) *ConfigStore {
	return &ConfigStore{prefs: app.Preferences()}
}

// Load loads configuration from preferences
func (cs *ConfigStore) Load() models.Config {
	defaults := models.DefaultConfig()

	config := models.Config{
		SnoozeMinutes:      cs.prefs.IntWithFallback(keySnoozeMinutes, defaults.SnoozeMinutes),
		MaxSnoozeCount:     cs.prefs.IntWithFallback(keyMaxSnoozeCount, defaults.MaxSnoozeCount),
		AutoDismissMinutes: cs.prefs.IntWithFallback(keyAutoDismissMinutes, defaults.AutoDismissMinutes),
		AutoStart:          cs.prefs.BoolWithFallback(keyAutoStart, defaults.AutoStart),
		DatabasePath:       cs.prefs.StringWithFallback(keyDatabasePath, defaults.DatabasePath),
		MissedNotification: cs.prefs.BoolWithFallback(keyMissedNotification, defaults.MissedNotification),
		EventSubscribers:   []string{},
	}

	// Subscribers are stored as a JSON list
	if raw := cs.prefs.String(keyEventSubscribers); raw != "" {
		if err := json.Unmarshal([]byte(raw), &config.EventSubscribers); err != nil {
			config.EventSubscribers = []string{}
		}
	}

	return config
}

// Save validates and stores configuration in preferences
func (cs *ConfigStore) Save(config models.Config) error {
	if err := config.Validate(); err != nil {
		return err
	}

	cs.prefs.SetInt(keySnoozeMinutes, config.SnoozeMinutes)
	cs.prefs.SetInt(keyMaxSnoozeCount, config.MaxSnoozeCount)
	cs.prefs.SetInt(keyAutoDismissMinutes, config.AutoDismissMinutes)
	cs.prefs.SetBool(keyAutoStart, config.AutoStart)
	cs.prefs.SetString(keyDatabasePath, config.DatabasePath)
	cs.prefs.SetBool(keyMissedNotification, config.MissedNotification)

	subscribers := config.EventSubscribers
	if subscribers == nil {
		subscribers = []string{}
	}
	raw, err := json.Marshal(subscribers)
	if err != nil {
		return err
	}
	cs.prefs.SetString(keyEventSubscribers, string(raw))

	return nil
}

// OnChange registers fn to run with the new configuration whenever a
// preference changes
func (cs *ConfigStore) OnChange(fn func(models.Config)) {
	cs.prefs.AddChangeListener(func() {
		fn(cs.Load())
	})
}
