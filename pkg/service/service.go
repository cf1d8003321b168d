// Package service keeps the stored alarms, the armed trigger and the ringing
// alarm in step with each other
package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/borgmon/alarm-clock/pkg/active"
	"github.com/borgmon/alarm-clock/pkg/calendar"
	"github.com/borgmon/alarm-clock/pkg/logging"
	"github.com/borgmon/alarm-clock/pkg/models"
	"github.com/borgmon/alarm-clock/pkg/store"
	"github.com/borgmon/alarm-clock/pkg/timer"
	"github.com/borgmon/alarm-clock/pkg/wakeup"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// Store persists alarm records
type Store interface {
	Load(ctx context.Context) ([]models.Alarm, error)
	Get(ctx context.Context, id int64) (models.Alarm, error)
	Save(ctx context.Context, alarm *models.Alarm) error
	Delete(ctx context.Context, id int64) error
}

// Trigger wakes the process when an occurrence is due
type Trigger interface {
	Arm(o models.Occurrence) error
	Cancel(alarmID int64)
}

// Notifier publishes the outcome of a session
type Notifier interface {
	Notify(ctx context.Context, outcome active.Outcome) error
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, active.Outcome) error { return nil }

type Option func(*Service)

// WithNotifier publishes dismissed, snoozed and missed outcomes
func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

// WithListener adds a listener that sees every controller event after the
// service has handled it
func WithListener(l active.Listener) Option {
	return func(s *Service) {
		s.listeners = append(s.listeners, l)
	}
}

// Service arms the earliest due alarm, rings it through the controller and
// writes the outcome back to the store. Pending snoozes are only kept in
// memory.
type Service struct {
	ctx        context.Context
	clock      timer.Scheduler
	store      Store
	trigger    Trigger
	notifier   Notifier
	controller *active.Controller
	listeners  active.Listeners
	logger     zerolog.Logger

	mu       sync.Mutex
	armed    models.Occurrence
	snoozes  map[int64]models.Occurrence
	fired    map[int64]time.Time
	origin   map[int64]time.Weekday
	sessions map[int64]uuid.UUID
}

func New(ctx context.Context, clock timer.Scheduler, ringer active.Ringer, cfg models.Config, alarms Store, trigger Trigger, opts ...Option) *Service {
	logger := logging.GetLoggerFromContext(ctx)

	s := &Service{
		ctx:      ctx,
		clock:    clock,
		store:    alarms,
		trigger:  trigger,
		notifier: nopNotifier{},
		logger:   logger,
		snoozes:  make(map[int64]models.Occurrence),
		fired:    make(map[int64]time.Time),
		origin:   make(map[int64]time.Weekday),
		sessions: make(map[int64]uuid.UUID),
	}
	for _, opt := range opts {
		opt(s)
	}

	listeners := append(active.Listeners{s}, s.listeners...)
	s.controller = active.NewController(clock, ringer, cfg, listeners, logger)
	return s
}

// Controller returns the controller ringing the alarms
func (s *Service) Controller() *active.Controller {
	return s.controller
}

// SetConfig applies new settings to the following transitions
func (s *Service) SetConfig(cfg models.Config) {
	s.controller.SetConfig(cfg)
}

// Alarms returns every stored alarm
func (s *Service) Alarms(ctx context.Context) ([]models.Alarm, error) {
	return s.store.Load(ctx)
}

// Next returns the alarm that rings first and when, taking pending snoozes
// into account. ok is false when nothing is due.
func (s *Service) Next(ctx context.Context) (models.Alarm, models.Occurrence, bool, error) {
	alarms, err := s.store.Load(ctx)
	if err != nil {
		return models.Alarm{}, models.Occurrence{}, false, err
	}

	alarm, next, ok := s.plan(alarms, s.clock.Now())
	return alarm, next, ok, nil
}

// Snoozes lists the pending snoozes, soonest first
func (s *Service) Snoozes() []models.Occurrence {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]models.Occurrence, 0, len(s.snoozes))
	for _, o := range s.snoozes {
		result = append(result, o)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].At.Before(result[j].At)
	})
	return result
}

// plan picks the earliest occurrence. Pending snoozes replace the alarm's
// regular schedule, and an alarm that fired at most a second ago is planned
// from after that instant so the same occurrence is not rung twice. On a tie
// the regular schedule wins.
func (s *Service) plan(alarms []models.Alarm, now time.Time) (alarm models.Alarm, next models.Occurrence, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	justFired := func(a models.Alarm) (time.Time, bool) {
		f, found := s.fired[a.ID]
		return f, found && !f.Before(now.Add(-time.Second))
	}

	regular := lo.Filter(alarms, func(a models.Alarm, _ int) bool {
		_, snoozed := s.snoozes[a.ID]
		_, fired := justFired(a)
		return !snoozed && !fired
	})
	alarm, next, ok = calendar.NextAlarm(regular, now)

	for _, a := range alarms {
		var o models.Occurrence
		if snoozed, found := s.snoozes[a.ID]; found {
			o = snoozed
		} else if f, fired := justFired(a); fired && a.Enabled {
			o = calendar.NextOccurrence(a, f.Add(time.Second))
		} else {
			continue
		}

		if !ok || o.At.Before(next.At) {
			alarm, next, ok = a, o, true
		}
	}
	return alarm, next, ok
}

// Reschedule arms the trigger for the earliest occurrence and disarms the
// previous one if another alarm now comes first
func (s *Service) Reschedule(ctx context.Context) (models.Occurrence, error) {
	alarms, err := s.store.Load(ctx)
	if err != nil {
		return models.Occurrence{}, err
	}

	logger := logging.GetLoggerFromContext(ctx)
	alarm, next, ok := s.plan(alarms, s.clock.Now())

	s.mu.Lock()
	previous := s.armed
	s.armed = next
	s.mu.Unlock()

	if !previous.IsZero() && (!ok || previous.AlarmID != next.AlarmID) {
		s.trigger.Cancel(previous.AlarmID)
	}

	if !ok {
		logger.Info().Msg("no alarm scheduled")
		return models.Occurrence{}, nil
	}

	if err := s.trigger.Arm(next); err != nil {
		return models.Occurrence{}, err
	}

	logger.Info().Int64("alarm_id", alarm.ID).Str("name", alarm.Name).Time("at", next.At).Msg("next alarm armed")
	return next, nil
}

// HandleOccurrence rings the alarm of an occurrence that came due
func (s *Service) HandleOccurrence(o models.Occurrence) {
	if _, err := s.Fire(s.ctx, o.AlarmID); err != nil {
		s.logger.Error().Err(err).Int64("alarm_id", o.AlarmID).Msg("failed to ring alarm")
	}
}

// Fire starts ringing the alarm now. A pending snooze for the alarm is used
// up by it.
func (s *Service) Fire(ctx context.Context, id int64) (active.Session, error) {
	alarm, err := s.store.Get(ctx, id)
	if err != nil {
		return active.Session{}, err
	}

	now := s.clock.Now()

	s.mu.Lock()
	_, snoozed := s.snoozes[id]
	delete(s.snoozes, id)
	s.fired[id] = now
	if _, found := s.origin[id]; !found || !snoozed {
		s.origin[id] = now.Weekday()
	}
	s.mu.Unlock()

	session := s.controller.Trigger(alarm)

	s.mu.Lock()
	s.sessions[id] = session.ID
	s.mu.Unlock()

	if _, err := s.Reschedule(ctx); err != nil {
		return session, err
	}
	return session, nil
}

// Resume rings an alarm that was still ringing when the process stopped. Its
// auto-dismiss budget continues from the duration stored with it.
func (s *Service) Resume(ctx context.Context) (active.Session, bool, error) {
	alarms, err := s.store.Load(ctx)
	if err != nil {
		return active.Session{}, false, err
	}

	logger := logging.GetLoggerFromContext(ctx)
	for _, a := range alarms {
		if a.Active {
			logger.Info().Int64("alarm_id", a.ID).Msg("resuming interrupted alarm")
			session, err := s.Fire(ctx, a.ID)
			return session, err == nil, err
		}
	}
	return active.Session{}, false, nil
}

// Dismiss ends the ringing alarm when token is accepted
func (s *Service) Dismiss(ctx context.Context, token string) (active.Outcome, error) {
	return s.controller.Dismiss(token)
}

// Snooze puts the ringing alarm off for the configured snooze length
func (s *Service) Snooze(ctx context.Context) (active.Outcome, error) {
	return s.controller.Snooze()
}

// DismissEarly cancels the alarm's upcoming ring before it happens. A pending
// snooze is dropped, a one-time alarm is switched off and a weekday alarm
// skips its next occurrence.
func (s *Service) DismissEarly(ctx context.Context, id int64) (models.Occurrence, error) {
	alarm, err := s.store.Get(ctx, id)
	if err != nil {
		return models.Occurrence{}, err
	}

	now := s.clock.Now()

	s.mu.Lock()
	skipped, snoozed := s.snoozes[id]
	delete(s.snoozes, id)
	delete(s.origin, id)
	s.mu.Unlock()

	switch {
	case snoozed:
		alarm.SnoozeCount = 0
		alarm.ActiveDuration = 0
	case !alarm.Enabled:
		return models.Occurrence{}, nil
	case alarm.OneTime():
		skipped = calendar.NextOccurrence(alarm, now)
		alarm.Enabled = false
	default:
		skipped = calendar.NextOccurrence(alarm, now)
		at := skipped.At
		alarm.EarlyDismissedAt = &at
	}

	if err := s.store.Save(ctx, &alarm); err != nil {
		return models.Occurrence{}, err
	}

	logger := logging.GetLoggerFromContext(ctx)
	logger.Info().Int64("alarm_id", id).Time("skipped", skipped.At).Msg("alarm dismissed early")

	if _, err := s.Reschedule(ctx); err != nil {
		return skipped, err
	}
	return skipped, nil
}

// SetEnabled switches an alarm on or off. Either way the snooze history of
// the alarm is cleared.
func (s *Service) SetEnabled(ctx context.Context, id int64, enabled bool) (models.Alarm, error) {
	alarm, err := s.store.Get(ctx, id)
	if err != nil {
		return models.Alarm{}, err
	}

	alarm.Enabled = enabled
	alarm.SnoozeCount = 0
	alarm.ActiveDuration = 0

	s.forget(id)

	if err := s.store.Save(ctx, &alarm); err != nil {
		return models.Alarm{}, err
	}

	if _, err := s.Reschedule(ctx); err != nil {
		return alarm, err
	}
	return alarm, nil
}

// Save stores an alarm, assigning an id to a new one, and re-arms the trigger
func (s *Service) Save(ctx context.Context, alarm *models.Alarm) error {
	if err := s.store.Save(ctx, alarm); err != nil {
		return err
	}

	_, err := s.Reschedule(ctx)
	return err
}

// Delete removes an alarm. If it is ringing it keeps ringing until acted on.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}

	s.forget(id)
	s.trigger.Cancel(id)

	_, err := s.Reschedule(ctx)
	return err
}

func (s *Service) forget(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.snoozes, id)
	delete(s.origin, id)
}

func (s *Service) SessionStateChanged(alarmID int64, state active.State) {
	if state != active.Ringing && state != active.Idle {
		return
	}

	alarm, err := s.store.Get(s.ctx, alarmID)
	if err != nil {
		s.logger.Error().Err(err).Int64("alarm_id", alarmID).Msg("failed to load ringing alarm")
		return
	}

	alarm.Active = state == active.Ringing
	if err := s.store.Save(s.ctx, &alarm); err != nil {
		s.logger.Error().Err(err).Int64("alarm_id", alarmID).Msg("failed to store alarm state")
	}
}

func (s *Service) Dismissed(alarm models.Alarm, usedToken bool) {
	s.finish(active.Outcome{State: active.Dismissed, Alarm: alarm, UsedToken: usedToken})
}

func (s *Service) MissedAlarm(alarm models.Alarm) {
	s.finish(active.Outcome{State: active.Missed, Alarm: alarm})
}

func (s *Service) Snoozed(alarm models.Alarm, next models.Occurrence) {
	s.mu.Lock()
	s.snoozes[alarm.ID] = next
	s.mu.Unlock()

	s.finish(active.Outcome{State: active.Snoozed, Alarm: alarm, Next: next})
}

func (s *Service) HardwareWarning(w wakeup.Warning) {
	s.logger.Warn().Err(w.Err).Int64("alarm_id", w.AlarmID).Str("effect", string(w.Effect)).Msg("wakeup effect unavailable")
}

// finish writes the outcome of a session back to the stored alarm, publishes
// it and arms the next occurrence
func (s *Service) finish(out active.Outcome) {
	ctx := s.ctx
	id := out.Alarm.ID

	s.mu.Lock()
	out.Session = s.sessions[id]
	delete(s.sessions, id)
	weekday, rang := s.origin[id]
	if out.State != active.Snoozed {
		delete(s.origin, id)
	}
	s.mu.Unlock()

	alarm, err := s.store.Get(ctx, id)
	switch {
	case errors.Is(err, store.ErrAlarmNotFound):
		s.logger.Info().Int64("alarm_id", id).Msg("alarm was removed while ringing")
	case err != nil:
		s.logger.Error().Err(err).Int64("alarm_id", id).Msg("failed to load alarm")
	default:
		alarm.Active = false
		alarm.SnoozeCount = out.Alarm.SnoozeCount
		alarm.ActiveDuration = out.Alarm.ActiveDuration
		if out.State != active.Snoozed {
			retire(&alarm, weekday, rang)
		}

		if err := s.store.Save(ctx, &alarm); err != nil {
			s.logger.Error().Err(err).Int64("alarm_id", id).Msg("failed to store alarm outcome")
		}
		out.Alarm = alarm
	}

	if err := s.notifier.Notify(ctx, out); err != nil {
		s.logger.Error().Err(err).Int64("alarm_id", id).Msg("failed to publish outcome")
	}

	if _, err := s.Reschedule(ctx); err != nil {
		s.logger.Error().Err(err).Msg("failed to reschedule")
	}
}

// retire updates an alarm that has finished ringing for good. A one-time
// alarm is switched off. A weekday alarm that does not repeat loses the day
// it rang on and is switched off once no day is left.
func retire(alarm *models.Alarm, weekday time.Weekday, rang bool) {
	if alarm.OneTime() {
		alarm.Enabled = false
		return
	}
	if alarm.Repeat || !rang {
		return
	}

	alarm.Days = alarm.Days.Remove(weekday)
	if alarm.Days.Empty() {
		alarm.Enabled = false
	}
}
