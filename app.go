package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"github.com/borgmon/alarm-clock/pkg/active"
	"github.com/borgmon/alarm-clock/pkg/audio"
	"github.com/borgmon/alarm-clock/pkg/events"
	"github.com/borgmon/alarm-clock/pkg/logging"
	"github.com/borgmon/alarm-clock/pkg/models"
	"github.com/borgmon/alarm-clock/pkg/service"
	"github.com/borgmon/alarm-clock/pkg/snooze"
	"github.com/borgmon/alarm-clock/pkg/speech"
	"github.com/borgmon/alarm-clock/pkg/store"
	"github.com/borgmon/alarm-clock/pkg/timer"
	"github.com/borgmon/alarm-clock/pkg/trigger"
	"github.com/borgmon/alarm-clock/pkg/wakeup"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var version = "dev"

// rescheduleInterval picks up alarms edited from the command line
const rescheduleInterval = time.Minute

type AlarmClock struct {
	active.NopListener

	app              fyne.App
	ctx              context.Context
	logger           zerolog.Logger
	configStore      *store.ConfigStore
	alarms           *store.AlarmStore
	service          *service.Service
	triggers         *trigger.Triggers
	output           *audio.Output
	notifier         *subscribers
	rescheduleTicker *time.Ticker

	mu             sync.Mutex
	config         models.Config
	ringWindow     *RingWindow
	settingsWindow *SettingsWindow
}

func newRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Ring alarms from the system tray",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ac, err := newAlarmClock(cmd.Context())
			if err != nil {
				return err
			}
			defer ac.alarms.Close()

			ac.initialize()
			ac.run()
			return nil
		},
	}
}

func newAlarmClock(ctx context.Context) (*AlarmClock, error) {
	ctx, logger := logging.NewLogger(ctx, appName, version)
	if verbose {
		logger = logger.Level(zerolog.DebugLevel)
		ctx = logging.NewContextWithLogger(ctx, logger)
	}

	ac := &AlarmClock{
		app:    app.NewWithID(appID),
		ctx:    ctx,
		logger: logger,
	}
	ac.configStore = store.NewConfigStore(ac.app)
	ac.config = ac.configStore.Load()

	alarms, err := openAlarmStore(ac.config.DatabasePath, logger)
	if err != nil {
		return nil, err
	}
	ac.alarms = alarms

	ac.notifier, err = newSubscribers(ac.config.EventSubscribers)
	if err != nil {
		return nil, fmt.Errorf("failed to create event sender: %w", err)
	}

	ac.output = audio.NewOutput(logger)
	if err := ac.output.Open(); err != nil {
		logger.Warn().Err(err).Msg("failed to open audio output")
	}
	drivers := wakeup.Drivers{Audio: ac.output, Media: ac.output}
	if speaker, err := speech.NewCommand(logger); err == nil {
		drivers.Speaker = speaker
	} else {
		logger.Warn().Err(err).Msg("time announcements are unavailable")
	}

	clock := timer.NewSystem()
	orchestrator := wakeup.New(clock, drivers, wakeup.WithLogger(logger))
	ac.output.OnVolumeChange(func(level int) {
		orchestrator.VolumeChanged(level)
		ac.volumeChanged(level)
	})

	ac.triggers = trigger.New(clock, logger)
	ac.service = service.New(ctx, clock, orchestrator, ac.config, alarms, ac.triggers,
		service.WithNotifier(ac.notifier),
		service.WithListener(ac),
	)
	ac.triggers.Handle(ac.service.HandleOccurrence)

	return ac, nil
}

func (ac *AlarmClock) initialize() {
	// Sync autostart state with config on startup
	if err := setupAutostart(ac.config.AutoStart, ac.logger); err != nil {
		ac.logger.Warn().Err(err).Msg("failed to setup autostart")
	}

	ac.configStore.OnChange(ac.configChanged)
	ac.setupSystemTray()

	if _, resumed, err := ac.service.Resume(ac.ctx); err != nil {
		ac.logger.Error().Err(err).Msg("failed to resume interrupted alarm")
	} else if !resumed {
		ac.reschedule()
	}

	ac.startRescheduler()
}

func (ac *AlarmClock) run() {
	ac.app.Run()
}

func (ac *AlarmClock) quit() {
	if ac.rescheduleTicker != nil {
		ac.rescheduleTicker.Stop()
	}
	ac.triggers.CancelAll()
	ac.app.Quit()
}

func (ac *AlarmClock) currentConfig() models.Config {
	ac.mu.Lock()
	defer ac.mu.Unlock()
	return ac.config
}

func (ac *AlarmClock) configChanged(cfg models.Config) {
	ac.mu.Lock()
	previous := ac.config
	ac.config = cfg
	ac.mu.Unlock()

	ac.service.SetConfig(cfg)

	if err := ac.notifier.update(cfg.EventSubscribers); err != nil {
		ac.logger.Error().Err(err).Msg("failed to update event subscribers")
	}

	if cfg.AutoStart != previous.AutoStart {
		if err := setupAutostart(cfg.AutoStart, ac.logger); err != nil {
			ac.logger.Error().Err(err).Msg("failed to change autostart")
		}
	}

	if cfg.DatabasePath != previous.DatabasePath {
		ac.logger.Warn().Str("database_path", cfg.DatabasePath).Msg("database path takes effect after a restart")
	}
}

func (ac *AlarmClock) reschedule() {
	if _, err := ac.service.Reschedule(ac.ctx); err != nil {
		ac.logger.Error().Err(err).Msg("failed to schedule alarms")
	}
	ac.updateSystemTrayMenu()
}

func (ac *AlarmClock) startRescheduler() {
	ac.rescheduleTicker = time.NewTicker(rescheduleInterval)
	go func() {
		for range ac.rescheduleTicker.C {
			ac.reschedule()
		}
	}()
}

func (ac *AlarmClock) dismiss(token string) error {
	_, err := ac.service.Dismiss(ac.ctx, token)
	return err
}

func (ac *AlarmClock) snooze() error {
	_, err := ac.service.Snooze(ac.ctx)
	return err
}

func (ac *AlarmClock) SessionStateChanged(alarmID int64, state active.State) {
	if state == active.Ringing {
		if s, ok := ac.service.Controller().Current(); ok && s.Alarm.ID == alarmID {
			ac.showRingWindow(s)
		}
	} else {
		ac.closeRingWindow(alarmID)
	}
	ac.updateSystemTrayMenu()
}

func (ac *AlarmClock) MissedAlarm(alarm models.Alarm) {
	if !ac.currentConfig().MissedNotification {
		return
	}

	name := alarm.Name
	if name == "" {
		name = "Alarm"
	}
	ac.app.SendNotification(fyne.NewNotification("Missed alarm",
		fmt.Sprintf("%s at %s stopped ringing without an answer", name, alarm.TimeString())))
}

func (ac *AlarmClock) showRingWindow(s active.Session) {
	cfg := ac.currentConfig()
	left := snooze.Remaining(s.Alarm, snooze.FromConfig(cfg))

	volume, err := ac.output.Volume()
	if err != nil {
		volume = ac.output.MaxVolume()
	}

	rw := NewRingWindow(ac.app, s, cfg.SnoozeMinutes, left, volume, ac.output.MaxVolume(), RingActions{
		Dismiss: ac.dismiss,
		Snooze:  ac.snooze,
		Volume:  ac.output.SetVolume,
	})

	ac.mu.Lock()
	previous := ac.ringWindow
	ac.ringWindow = rw
	ac.mu.Unlock()

	if previous != nil {
		previous.Close()
	}
	rw.Show()
}

// volumeChanged follows the output volume on the ring window slider
func (ac *AlarmClock) volumeChanged(level int) {
	ac.mu.Lock()
	rw := ac.ringWindow
	ac.mu.Unlock()

	if rw != nil {
		rw.ShowVolume(level)
	}
}

func (ac *AlarmClock) closeRingWindow(alarmID int64) {
	ac.mu.Lock()
	rw := ac.ringWindow
	if rw == nil || rw.session.Alarm.ID != alarmID {
		ac.mu.Unlock()
		return
	}
	ac.ringWindow = nil
	ac.mu.Unlock()

	rw.Close()
}

// subscribers swaps the event sender when the subscriber list changes
type subscribers struct {
	mu     sync.Mutex
	sender events.EventSender
}

func newSubscribers(endpoints []string) (*subscribers, error) {
	s := &subscribers{}
	return s, s.update(endpoints)
}

func (s *subscribers) update(endpoints []string) error {
	sender, err := events.New(endpoints)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.sender = sender
	s.mu.Unlock()
	return nil
}

// Notify sends in the background. Failures are logged by the sender.
func (s *subscribers) Notify(ctx context.Context, outcome active.Outcome) error {
	s.mu.Lock()
	sender := s.sender
	s.mu.Unlock()

	go sender.Notify(context.WithoutCancel(ctx), outcome)
	return nil
}
