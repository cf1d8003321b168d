package active

import (
	"errors"
	"testing"
	"time"

	"github.com/borgmon/alarm-clock/pkg/models"
	"github.com/borgmon/alarm-clock/pkg/snooze"
	"github.com/borgmon/alarm-clock/pkg/timer"
	"github.com/borgmon/alarm-clock/pkg/tokengate"
	"github.com/borgmon/alarm-clock/pkg/wakeup"
	"github.com/matryer/is"
	"github.com/rs/zerolog"
)

var start = time.Date(2024, time.March, 4, 7, 0, 0, 0, time.UTC)

type fakeRinger struct {
	started  []int64
	stopped  int
	running  bool
	warnings []wakeup.Warning
}

func (r *fakeRinger) Start(alarm models.Alarm) []wakeup.Warning {
	r.started = append(r.started, alarm.ID)
	r.running = true
	return r.warnings
}

func (r *fakeRinger) Stop() bool {
	if !r.running {
		return false
	}
	r.running = false
	r.stopped++
	return true
}

type event struct {
	kind  string
	id    int64
	state State
	used  bool
	next  time.Time
}

type recorder struct {
	events   []event
	warnings []wakeup.Warning
	alarms   []models.Alarm
}

func (r *recorder) SessionStateChanged(alarmID int64, state State) {
	r.events = append(r.events, event{kind: "state", id: alarmID, state: state})
}

func (r *recorder) MissedAlarm(alarm models.Alarm) {
	r.events = append(r.events, event{kind: "missed", id: alarm.ID})
	r.alarms = append(r.alarms, alarm)
}

func (r *recorder) Dismissed(alarm models.Alarm, usedToken bool) {
	r.events = append(r.events, event{kind: "dismissed", id: alarm.ID, used: usedToken})
	r.alarms = append(r.alarms, alarm)
}

func (r *recorder) Snoozed(alarm models.Alarm, next models.Occurrence) {
	r.events = append(r.events, event{kind: "snoozed", id: alarm.ID, next: next.At})
	r.alarms = append(r.alarms, alarm)
}

func (r *recorder) HardwareWarning(w wakeup.Warning) {
	r.warnings = append(r.warnings, w)
}

func (r *recorder) last() event {
	return r.events[len(r.events)-1]
}

type fixture struct {
	clock    *timer.Manual
	ringer   *fakeRinger
	listener *recorder
	c        *Controller
}

func newFixture(cfg models.Config) *fixture {
	f := &fixture{
		clock:    timer.NewManual(start),
		ringer:   &fakeRinger{},
		listener: &recorder{},
	}
	f.c = NewController(f.clock, f.ringer, cfg, f.listener, zerolog.Nop())
	return f
}

func config(autoDismiss, maxSnooze int) models.Config {
	cfg := models.DefaultConfig()
	cfg.AutoDismissMinutes = autoDismiss
	cfg.MaxSnoozeCount = maxSnooze
	return cfg
}

func TestAutoDismissFiresBeforeBudgetRunsOut(t *testing.T) {
	is := is.New(t)
	f := newFixture(config(15, 0))

	s := f.c.Trigger(models.Alarm{ID: 1, Enabled: true})
	is.Equal(start.Add(15*time.Minute-2*time.Second), s.Deadline)
	is.Equal(Ringing, f.c.State())
	is.True(s.Alarm.Active)

	f.clock.Advance(15*time.Minute - 2*time.Second - time.Millisecond)
	is.Equal(Ringing, f.c.State())

	f.clock.Advance(time.Millisecond)
	is.Equal(Idle, f.c.State())
	is.Equal(Missed, f.c.LastOutcome())
	is.Equal(1, f.ringer.stopped)

	is.Equal([]event{
		{kind: "state", id: 1, state: Ringing},
		{kind: "state", id: 1, state: Missed},
		{kind: "missed", id: 1},
	}, f.listener.events)
	is.True(!f.listener.alarms[0].Active)
}

func TestCarriedOverDurationShortensDeadline(t *testing.T) {
	is := is.New(t)
	f := newFixture(config(15, 0))

	// only the duration saved at the last snooze survives a restart, so a
	// session interrupted by a reboot starts its budget from that value
	s := f.c.Trigger(models.Alarm{ID: 1, ActiveDuration: 5 * time.Minute})
	is.Equal(start.Add(10*time.Minute-2*time.Second), s.Deadline)
	is.Equal(5*time.Minute, s.CarriedOver)
}

func TestSpentBudgetMissesImmediately(t *testing.T) {
	is := is.New(t)
	f := newFixture(config(15, 0))

	f.c.Trigger(models.Alarm{ID: 1, ActiveDuration: 20 * time.Minute})
	f.clock.Advance(0)

	is.Equal(Idle, f.c.State())
	is.Equal(Missed, f.c.LastOutcome())
}

func TestNoAutoDismissRingsUntilActedOn(t *testing.T) {
	is := is.New(t)
	f := newFixture(config(0, 0))

	s := f.c.Trigger(models.Alarm{ID: 1})
	is.True(s.Deadline.IsZero())

	f.clock.Advance(24 * time.Hour)
	is.Equal(Ringing, f.c.State())
	is.Equal(0, f.clock.Pending())
}

func TestDismissWithMatchingToken(t *testing.T) {
	is := is.New(t)
	f := newFixture(config(15, 0))

	f.c.Trigger(models.Alarm{ID: 3, RequireToken: true, TokenID: "1234", SnoozeCount: 2, ActiveDuration: time.Minute})

	out, err := f.c.Dismiss("1234")
	is.NoErr(err)
	is.Equal(Dismissed, out.State)
	is.True(out.UsedToken)
	is.Equal(0, out.Alarm.SnoozeCount)
	is.Equal(time.Duration(0), out.Alarm.ActiveDuration)
	is.True(!out.Alarm.Active)

	is.Equal(Idle, f.c.State())
	is.Equal(event{kind: "dismissed", id: 3, used: true}, f.listener.last())

	// the auto-dismiss timer went with the session
	f.clock.Advance(time.Hour)
	is.Equal(Dismissed, f.c.LastOutcome())
}

func TestDismissWithWrongTokenKeepsRinging(t *testing.T) {
	is := is.New(t)
	f := newFixture(config(15, 0))

	f.c.Trigger(models.Alarm{ID: 3, RequireToken: true, TokenID: "1234"})

	out, err := f.c.Dismiss("5678")
	is.True(errors.Is(err, tokengate.ErrTokenMismatch))
	is.Equal(Ringing, out.State)
	is.True(errors.Is(out.Rejected, tokengate.ErrTokenMismatch))

	is.Equal(Ringing, f.c.State())
	is.Equal(0, f.ringer.stopped)
	is.Equal(1, len(f.listener.events))

	_, err = f.c.Dismiss("1234")
	is.NoErr(err)
}

func TestDismissWithoutTokenRequirement(t *testing.T) {
	is := is.New(t)
	f := newFixture(config(15, 0))

	f.c.Trigger(models.Alarm{ID: 3})
	out, err := f.c.Dismiss("")
	is.NoErr(err)
	is.True(!out.UsedToken)
}

func TestSnoozeCarriesElapsedTime(t *testing.T) {
	is := is.New(t)
	f := newFixture(config(15, 0))

	f.c.Trigger(models.Alarm{ID: 4, ActiveDuration: time.Minute})
	f.clock.Advance(3 * time.Minute)

	out, err := f.c.Snooze()
	is.NoErr(err)
	is.Equal(Snoozed, out.State)
	is.Equal(4*time.Minute, out.Alarm.ActiveDuration)
	is.Equal(1, out.Alarm.SnoozeCount)
	is.Equal(start.Add(13*time.Minute), out.Next.At)
	is.Equal(int64(4), out.Next.AlarmID)
	is.True(!out.Alarm.Active)

	is.Equal(Idle, f.c.State())
	is.Equal(event{kind: "snoozed", id: 4, next: start.Add(13 * time.Minute)}, f.listener.last())

	// the next session picks up the remaining budget
	f.clock.Advance(10 * time.Minute)
	s := f.c.Trigger(out.Alarm)
	is.Equal(f.clock.Now().Add(11*time.Minute-2*time.Second), s.Deadline)
}

func TestSnoozeLimitKeepsRinging(t *testing.T) {
	is := is.New(t)
	f := newFixture(config(15, 2))

	f.c.Trigger(models.Alarm{ID: 4, SnoozeCount: 2})

	out, err := f.c.Snooze()
	is.True(errors.Is(err, snooze.ErrLimitReached))
	is.True(errors.Is(out.Rejected, snooze.ErrLimitReached))
	is.Equal(Ringing, f.c.State())
	is.Equal(0, f.ringer.stopped)

	s, ok := f.c.Current()
	is.True(ok)
	is.Equal(2, s.Alarm.SnoozeCount)
}

func TestNothingToActOn(t *testing.T) {
	is := is.New(t)
	f := newFixture(config(15, 0))

	_, err := f.c.Dismiss("")
	is.True(errors.Is(err, ErrNoSession))

	_, err = f.c.Snooze()
	is.True(errors.Is(err, ErrNoSession))

	is.Equal(0, len(f.listener.events))
}

func TestTakeoverLeavesFirstAlarmAlone(t *testing.T) {
	is := is.New(t)
	f := newFixture(config(15, 0))

	f.c.Trigger(models.Alarm{ID: 1, SnoozeCount: 1})
	f.clock.Advance(time.Minute)
	s := f.c.Trigger(models.Alarm{ID: 2})

	is.Equal(int64(2), s.Alarm.ID)
	is.Equal([]int64{1, 2}, f.ringer.started)
	is.Equal(1, f.ringer.stopped)

	is.Equal([]event{
		{kind: "state", id: 1, state: Ringing},
		{kind: "state", id: 1, state: Idle},
		{kind: "state", id: 2, state: Ringing},
	}, f.listener.events)
	is.Equal(0, len(f.listener.alarms))

	// the first alarm's deadline no longer applies
	f.clock.Advance(14 * time.Minute)
	is.Equal(Ringing, f.c.State())
	f.clock.Advance(time.Minute)
	is.Equal(Idle, f.c.State())
	is.Equal(int64(2), f.listener.last().id)
}

func TestRetriggerIsNoop(t *testing.T) {
	is := is.New(t)
	f := newFixture(config(15, 0))

	first := f.c.Trigger(models.Alarm{ID: 1})
	f.clock.Advance(time.Minute)
	second := f.c.Trigger(models.Alarm{ID: 1})

	is.Equal(first.ID, second.ID)
	is.Equal(1, len(f.ringer.started))
	is.Equal(first.Deadline, second.Deadline)
}

func TestStartupWarningsReachListener(t *testing.T) {
	is := is.New(t)
	f := newFixture(config(15, 0))
	f.ringer.warnings = []wakeup.Warning{{AlarmID: 1, Effect: wakeup.EffectVibration, Err: wakeup.ErrHardwareUnavailable}}

	s := f.c.Trigger(models.Alarm{ID: 1, Vibrate: true})
	is.Equal(1, len(f.listener.warnings))
	is.True(!s.Deadline.IsZero())
}

type fakeAudio struct {
	level int
	sets  int
}

func (a *fakeAudio) MaxVolume() int { return 10 }

func (a *fakeAudio) Volume() (int, error) { return a.level, nil }

func (a *fakeAudio) SetVolume(level int) error {
	a.level = level
	a.sets++
	return nil
}

func (a *fakeAudio) RequestFocus() error { return nil }

func (a *fakeAudio) AbandonFocus() {}

func TestTerminalTransitionSilencesOrchestrator(t *testing.T) {
	is := is.New(t)
	clock := timer.NewManual(start)
	audio := &fakeAudio{level: 3}
	orchestrator := wakeup.New(clock, wakeup.Drivers{Audio: audio})
	c := NewController(clock, orchestrator, config(1, 0), nil, zerolog.Nop())

	c.Trigger(models.Alarm{ID: 1, Volume: 100, GradualVolume: true})
	clock.Advance(20 * time.Second)
	is.Equal(4, audio.level)

	clock.Advance(time.Minute)
	is.Equal(Missed, c.LastOutcome())
	is.True(!orchestrator.Running())
	is.Equal(3, audio.level)

	sets := audio.sets
	clock.Advance(time.Hour)
	is.Equal(sets, audio.sets)
}
