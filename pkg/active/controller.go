// Package active owns the lifecycle of the alarm that is currently ringing
package active

import (
	"errors"
	"sync"
	"time"

	"github.com/borgmon/alarm-clock/pkg/models"
	"github.com/borgmon/alarm-clock/pkg/snooze"
	"github.com/borgmon/alarm-clock/pkg/timer"
	"github.com/borgmon/alarm-clock/pkg/tokengate"
	"github.com/borgmon/alarm-clock/pkg/wakeup"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DeadlineMargin is taken off the auto-dismiss budget so the miss is settled
// before a following occurrence can start at the same instant
const DeadlineMargin = 2 * time.Second

// ErrNoSession is returned when dismiss or snooze is requested while nothing rings
var ErrNoSession = errors.New("no alarm is ringing")

// Ringer plays the wakeup effects of a session
type Ringer interface {
	Start(alarm models.Alarm) []wakeup.Warning
	Stop() bool
}

// Controller moves one alarm at a time from ringing to dismissed, snoozed or
// missed. Transitions are serialized by the controller lock, and listeners
// are called after it is released.
type Controller struct {
	clock    timer.Scheduler
	ringer   Ringer
	listener Listener
	logger   zerolog.Logger

	mu          sync.Mutex
	cfg         models.Config
	session     *Session
	deadline    timer.Handle
	generation  uint64
	lastOutcome State
}

func NewController(clock timer.Scheduler, ringer Ringer, cfg models.Config, listener Listener, logger zerolog.Logger) *Controller {
	if listener == nil {
		listener = NopListener{}
	}

	c := &Controller{
		clock:    clock,
		ringer:   ringer,
		listener: listener,
		logger:   logger,
		cfg:      cfg,
	}

	if w, ok := ringer.(interface{ OnWarning(func(wakeup.Warning)) }); ok {
		w.OnWarning(c.listener.HardwareWarning)
	}
	return c
}

// SetConfig changes the settings used from the next transition on
func (c *Controller) SetConfig(cfg models.Config) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg = cfg
}

// State returns Ringing while a session is live, Idle otherwise
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != nil {
		return Ringing
	}
	return Idle
}

// Current returns a copy of the live session
func (c *Controller) Current() (Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return Session{}, false
	}
	return *c.session, true
}

// Trigger starts ringing alarm. A different alarm that is still ringing is
// taken over: its effects stop but its record is left as it was. Triggering
// the alarm that is already ringing changes nothing.
func (c *Controller) Trigger(alarm models.Alarm) Session {
	var events []func()

	c.mu.Lock()
	if c.session != nil {
		if c.session.Alarm.ID == alarm.ID {
			s := *c.session
			c.mu.Unlock()
			c.logger.Debug().Int64("alarm_id", alarm.ID).Msg("alarm is already ringing")
			return s
		}

		previous := c.session.Alarm.ID
		c.logger.Info().Int64("alarm_id", alarm.ID).Int64("previous", previous).Msg("taking over ringing alarm")
		c.teardown()
		events = append(events, func() { c.listener.SessionStateChanged(previous, Idle) })
	}

	now := c.clock.Now()
	alarm.Active = true

	c.generation++
	gen := c.generation
	s := &Session{
		ID:          uuid.New(),
		Alarm:       alarm,
		StartedAt:   now,
		CarriedOver: alarm.ActiveDuration,
	}
	c.session = s

	warnings := c.ringer.Start(alarm)

	if budget := c.cfg.AutoDismissAfter(); budget > 0 {
		wait := max(budget-alarm.ActiveDuration-DeadlineMargin, 0)
		s.Deadline = now.Add(wait)
		c.deadline = c.clock.Schedule(wait, func() { c.expire(gen) })
	}

	c.logger.Info().
		Int64("alarm_id", alarm.ID).
		Str("session", s.ID.String()).
		Time("deadline", s.Deadline).
		Msg("alarm ringing")

	result := *s
	c.mu.Unlock()

	events = append(events, func() { c.listener.SessionStateChanged(alarm.ID, Ringing) })
	for _, w := range warnings {
		events = append(events, func() { c.listener.HardwareWarning(w) })
	}
	emit(events)

	return result
}

// Dismiss ends the session when token passes the token gate. On a mismatch
// the alarm keeps ringing and tokengate.ErrTokenMismatch is returned.
func (c *Controller) Dismiss(token string) (Outcome, error) {
	c.mu.Lock()
	if c.session == nil {
		c.mu.Unlock()
		c.logger.Error().Msg("dismiss requested with no alarm ringing")
		return Outcome{}, ErrNoSession
	}

	s := *c.session
	if err := tokengate.Check(s.Alarm, token); err != nil {
		c.mu.Unlock()
		c.logger.Info().Int64("alarm_id", s.Alarm.ID).Msg("token rejected")
		return Outcome{State: Ringing, Alarm: s.Alarm, Session: s.ID, Rejected: err}, err
	}

	c.teardown()

	alarm := s.Alarm
	alarm.Active = false
	alarm.SnoozeCount = 0
	alarm.ActiveDuration = 0
	used := tokengate.UsedToken(s.Alarm, token)

	out := Outcome{State: Dismissed, Alarm: alarm, Session: s.ID, UsedToken: used}
	c.lastOutcome = Dismissed
	c.mu.Unlock()

	c.logger.Info().Int64("alarm_id", alarm.ID).Bool("used_token", used).Msg("alarm dismissed")
	emit([]func(){
		func() { c.listener.SessionStateChanged(alarm.ID, Dismissed) },
		func() { c.listener.Dismissed(alarm, used) },
	})
	return out, nil
}

// Snooze ends the session and plans the next ring. When the snooze limit is
// reached the alarm keeps ringing and snooze.ErrLimitReached is returned.
func (c *Controller) Snooze() (Outcome, error) {
	c.mu.Lock()
	if c.session == nil {
		c.mu.Unlock()
		c.logger.Error().Msg("snooze requested with no alarm ringing")
		return Outcome{}, ErrNoSession
	}

	s := *c.session
	now := c.clock.Now()

	alarm := s.Alarm
	next, err := snooze.Snooze(&alarm, snooze.FromConfig(c.cfg), now)
	if err != nil {
		c.mu.Unlock()
		c.logger.Info().Int64("alarm_id", alarm.ID).Int("snooze_count", alarm.SnoozeCount).Msg("snooze refused")
		return Outcome{State: Ringing, Alarm: s.Alarm, Session: s.ID, Rejected: err}, err
	}

	c.teardown()

	alarm.Active = false
	alarm.ActiveDuration = s.Elapsed(now)

	out := Outcome{State: Snoozed, Alarm: alarm, Session: s.ID, Next: next}
	c.lastOutcome = Snoozed
	c.mu.Unlock()

	c.logger.Info().Int64("alarm_id", alarm.ID).Time("next", next.At).Msg("alarm snoozed")
	emit([]func(){
		func() { c.listener.SessionStateChanged(alarm.ID, Snoozed) },
		func() { c.listener.Snoozed(alarm, next) },
	})
	return out, nil
}

func (c *Controller) expire(gen uint64) {
	c.mu.Lock()
	if c.session == nil || gen != c.generation {
		c.mu.Unlock()
		return
	}

	s := *c.session
	c.teardown()

	alarm := s.Alarm
	alarm.Active = false
	alarm.SnoozeCount = 0
	alarm.ActiveDuration = 0
	c.lastOutcome = Missed
	c.mu.Unlock()

	c.logger.Warn().Int64("alarm_id", alarm.ID).Str("session", s.ID.String()).Msg("alarm missed")
	emit([]func(){
		func() { c.listener.SessionStateChanged(alarm.ID, Missed) },
		func() { c.listener.MissedAlarm(alarm) },
	})
}

// LastOutcome returns how the previous session ended, Idle before the first one
func (c *Controller) LastOutcome() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastOutcome
}

// teardown stops the live session. Callers hold c.mu.
func (c *Controller) teardown() {
	c.generation++
	if c.deadline != nil {
		c.deadline.Cancel()
		c.deadline = nil
	}
	c.ringer.Stop()
	c.session = nil
}

func emit(events []func()) {
	for _, fn := range events {
		fn()
	}
}
