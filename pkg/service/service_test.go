package service

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/borgmon/alarm-clock/pkg/active"
	"github.com/borgmon/alarm-clock/pkg/logging"
	"github.com/borgmon/alarm-clock/pkg/models"
	"github.com/borgmon/alarm-clock/pkg/store"
	"github.com/borgmon/alarm-clock/pkg/timer"
	"github.com/borgmon/alarm-clock/pkg/trigger"
	"github.com/borgmon/alarm-clock/pkg/wakeup"
	"github.com/google/uuid"
	"github.com/matryer/is"
	"github.com/rs/zerolog"
)

// Monday
var start = time.Date(2024, time.March, 4, 6, 0, 0, 0, time.UTC)

type memoryStore struct {
	alarms map[int64]models.Alarm
	nextID int64
}

func (m *memoryStore) Load(ctx context.Context) ([]models.Alarm, error) {
	result := make([]models.Alarm, 0, len(m.alarms))
	for _, a := range m.alarms {
		result = append(result, a)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *memoryStore) Get(ctx context.Context, id int64) (models.Alarm, error) {
	a, ok := m.alarms[id]
	if !ok {
		return models.Alarm{}, store.ErrAlarmNotFound
	}
	return a, nil
}

func (m *memoryStore) Save(ctx context.Context, alarm *models.Alarm) error {
	if alarm.ID == 0 {
		m.nextID++
		alarm.ID = m.nextID
	}
	m.alarms[alarm.ID] = *alarm
	return nil
}

func (m *memoryStore) Delete(ctx context.Context, id int64) error {
	if _, ok := m.alarms[id]; !ok {
		return store.ErrAlarmNotFound
	}
	delete(m.alarms, id)
	return nil
}

type ringer struct {
	started []int64
	running bool
}

func (r *ringer) Start(alarm models.Alarm) []wakeup.Warning {
	r.started = append(r.started, alarm.ID)
	r.running = true
	return nil
}

func (r *ringer) Stop() bool {
	was := r.running
	r.running = false
	return was
}

type recordingNotifier struct {
	outcomes []active.Outcome
}

func (n *recordingNotifier) Notify(ctx context.Context, outcome active.Outcome) error {
	n.outcomes = append(n.outcomes, outcome)
	return nil
}

type fixture struct {
	ctx      context.Context
	clock    *timer.Manual
	store    *memoryStore
	triggers *trigger.Triggers
	ringer   *ringer
	notifier *recordingNotifier
	svc      *Service
}

func newFixture(t *testing.T) (*is.I, *fixture) {
	is := is.New(t)

	ctx := logging.NewContextWithLogger(context.Background(), zerolog.Nop())
	f := &fixture{
		ctx:      ctx,
		clock:    timer.NewManual(start),
		store:    &memoryStore{alarms: map[int64]models.Alarm{}},
		ringer:   &ringer{},
		notifier: &recordingNotifier{},
	}
	f.triggers = trigger.New(f.clock, zerolog.Nop())

	f.svc = New(ctx, f.clock, f.ringer, models.DefaultConfig(), f.store, f.triggers, WithNotifier(f.notifier))
	f.triggers.Handle(f.svc.HandleOccurrence)
	return is, f
}

func (f *fixture) add(is *is.I, alarm models.Alarm) models.Alarm {
	is.NoErr(f.svc.Save(f.ctx, &alarm))
	return alarm
}

func (f *fixture) lastOutcome() active.Outcome {
	return f.notifier.outcomes[len(f.notifier.outcomes)-1]
}

func TestOneTimeAlarmRingsOnceAndSwitchesOff(t *testing.T) {
	is, f := newFixture(t)
	a := f.add(is, models.Alarm{Name: "once", Enabled: true, Hour: 7, Volume: 80})

	armed := f.triggers.Armed()
	is.Equal(1, len(armed))
	is.Equal(start.Add(time.Hour), armed[0].At)

	f.clock.Advance(time.Hour)
	is.Equal([]int64{a.ID}, f.ringer.started)
	is.Equal(active.Ringing, f.svc.Controller().State())
	is.True(f.store.alarms[a.ID].Active)

	out, err := f.svc.Dismiss(f.ctx, "")
	is.NoErr(err)
	is.Equal(active.Dismissed, out.State)

	stored := f.store.alarms[a.ID]
	is.True(!stored.Enabled)
	is.True(!stored.Active)

	is.Equal(1, len(f.notifier.outcomes))
	is.Equal(active.Dismissed, f.lastOutcome().State)
	is.True(f.lastOutcome().Session != uuid.Nil)

	is.Equal(0, len(f.triggers.Armed()))
	_, _, ok, err := f.svc.Next(f.ctx)
	is.NoErr(err)
	is.True(!ok)
}

func TestSnoozeRingsAgainWithRemainingBudget(t *testing.T) {
	is, f := newFixture(t)
	a := f.add(is, models.Alarm{Enabled: true, Hour: 7, Days: models.NewDaySet(time.Monday), Repeat: true})

	f.clock.Advance(time.Hour)
	f.clock.Advance(2 * time.Minute)

	out, err := f.svc.Snooze(f.ctx)
	is.NoErr(err)
	is.Equal(start.Add(72*time.Minute), out.Next.At)

	stored := f.store.alarms[a.ID]
	is.Equal(1, stored.SnoozeCount)
	is.Equal(2*time.Minute, stored.ActiveDuration)
	is.True(!stored.Active)
	is.True(stored.Enabled)

	_, next, ok, err := f.svc.Next(f.ctx)
	is.NoErr(err)
	is.True(ok)
	is.Equal(start.Add(72*time.Minute), next.At)

	f.clock.Advance(10 * time.Minute)
	is.Equal(2, len(f.ringer.started))

	s, ok := f.svc.Controller().Current()
	is.True(ok)
	is.Equal(2*time.Minute, s.CarriedOver)
	is.Equal(f.clock.Now().Add(13*time.Minute-active.DeadlineMargin), s.Deadline)

	_, err = f.svc.Dismiss(f.ctx, "")
	is.NoErr(err)
	stored = f.store.alarms[a.ID]
	is.Equal(0, stored.SnoozeCount)
	is.Equal(time.Duration(0), stored.ActiveDuration)

	// a repeating alarm stays as configured
	is.True(stored.Enabled)
	is.Equal(models.NewDaySet(time.Monday), stored.Days)
}

func TestMissedNonRepeatingAlarmDropsItsDay(t *testing.T) {
	is, f := newFixture(t)
	a := f.add(is, models.Alarm{Enabled: true, Hour: 7, Days: models.NewDaySet(time.Monday, time.Wednesday)})

	f.clock.Advance(time.Hour)
	f.clock.Advance(15 * time.Minute)

	is.Equal(active.Missed, f.svc.Controller().LastOutcome())
	is.Equal(active.Missed, f.lastOutcome().State)

	stored := f.store.alarms[a.ID]
	is.True(stored.Enabled)
	is.Equal(models.NewDaySet(time.Wednesday), stored.Days)

	_, next, ok, err := f.svc.Next(f.ctx)
	is.NoErr(err)
	is.True(ok)
	is.Equal(time.Date(2024, time.March, 6, 7, 0, 0, 0, time.UTC), next.At)
}

func TestLastDayDismissedSwitchesAlarmOff(t *testing.T) {
	is, f := newFixture(t)
	a := f.add(is, models.Alarm{Enabled: true, Hour: 7, Days: models.NewDaySet(time.Monday)})

	f.clock.Advance(time.Hour)
	_, err := f.svc.Dismiss(f.ctx, "")
	is.NoErr(err)

	is.True(!f.store.alarms[a.ID].Enabled)
}

func TestDismissedOccurrenceIsNotArmedAgain(t *testing.T) {
	is, f := newFixture(t)
	f.add(is, models.Alarm{Enabled: true, Hour: 7, Days: models.NewDaySet(time.Monday), Repeat: true})

	f.clock.Advance(time.Hour)
	_, err := f.svc.Dismiss(f.ctx, "")
	is.NoErr(err)

	armed := f.triggers.Armed()
	is.Equal(1, len(armed))
	is.Equal(time.Date(2024, time.March, 11, 7, 0, 0, 0, time.UTC), armed[0].At)

	f.clock.Advance(time.Minute)
	is.Equal(1, len(f.ringer.started))
}

func TestEarliestAlarmIsArmed(t *testing.T) {
	is, f := newFixture(t)
	late := f.add(is, models.Alarm{Enabled: true, Hour: 8})
	early := f.add(is, models.Alarm{Enabled: true, Hour: 7, Minute: 30})

	armed := f.triggers.Armed()
	is.Equal(1, len(armed))
	is.Equal(early.ID, armed[0].AlarmID)

	is.NoErr(f.svc.Delete(f.ctx, early.ID))
	armed = f.triggers.Armed()
	is.Equal(1, len(armed))
	is.Equal(late.ID, armed[0].AlarmID)
}

func TestAlarmsSharingAMinuteBothRing(t *testing.T) {
	is, f := newFixture(t)
	first := f.add(is, models.Alarm{Enabled: true, Hour: 7, Days: models.EveryDay, Repeat: true})
	second := f.add(is, models.Alarm{Enabled: true, Hour: 7, Days: models.EveryDay, Repeat: true})

	armed := f.triggers.Armed()
	is.Equal(1, len(armed))
	is.Equal(first.ID, armed[0].AlarmID)

	f.clock.Advance(time.Hour)
	is.Equal([]int64{first.ID, second.ID}, f.ringer.started)

	// neither rings again until tomorrow
	armed = f.triggers.Armed()
	is.Equal(1, len(armed))
	is.Equal(first.ID, armed[0].AlarmID)
	is.Equal(time.Date(2024, time.March, 5, 7, 0, 0, 0, time.UTC), armed[0].At)
}

func TestDismissEarlySkipsNextOccurrence(t *testing.T) {
	is, f := newFixture(t)
	a := f.add(is, models.Alarm{Enabled: true, Hour: 7, Days: models.NewDaySet(time.Monday, time.Tuesday), Repeat: true})

	skipped, err := f.svc.DismissEarly(f.ctx, a.ID)
	is.NoErr(err)
	is.Equal(start.Add(time.Hour), skipped.At)
	is.True(skipped.At.Equal(*f.store.alarms[a.ID].EarlyDismissedAt))

	_, next, ok, err := f.svc.Next(f.ctx)
	is.NoErr(err)
	is.True(ok)
	is.Equal(start.Add(25*time.Hour), next.At)

	f.clock.Advance(2 * time.Hour)
	is.Equal(0, len(f.ringer.started))
}

func TestDismissEarlyOneTimeSwitchesOff(t *testing.T) {
	is, f := newFixture(t)
	a := f.add(is, models.Alarm{Enabled: true, Hour: 7})

	_, err := f.svc.DismissEarly(f.ctx, a.ID)
	is.NoErr(err)
	is.True(!f.store.alarms[a.ID].Enabled)
	is.Equal(0, len(f.triggers.Armed()))
}

func TestDisablingDropsPendingSnooze(t *testing.T) {
	is, f := newFixture(t)
	a := f.add(is, models.Alarm{Enabled: true, Hour: 7, Days: models.NewDaySet(time.Monday), Repeat: true})

	f.clock.Advance(time.Hour)
	_, err := f.svc.Snooze(f.ctx)
	is.NoErr(err)

	stored, err := f.svc.SetEnabled(f.ctx, a.ID, false)
	is.NoErr(err)
	is.Equal(0, stored.SnoozeCount)
	is.True(!stored.Enabled)

	_, _, ok, err := f.svc.Next(f.ctx)
	is.NoErr(err)
	is.True(!ok)

	f.clock.Advance(time.Hour)
	is.Equal(1, len(f.ringer.started))
}

func TestResumeContinuesInterruptedAlarm(t *testing.T) {
	is, f := newFixture(t)
	a := models.Alarm{Enabled: true, Hour: 5, Days: models.NewDaySet(time.Monday), Repeat: true, Active: true, ActiveDuration: 5 * time.Minute}
	is.NoErr(f.store.Save(f.ctx, &a))

	s, ok, err := f.svc.Resume(f.ctx)
	is.NoErr(err)
	is.True(ok)
	is.Equal(a.ID, s.Alarm.ID)
	is.Equal(start.Add(10*time.Minute-active.DeadlineMargin), s.Deadline)
}

func TestAlarmRemovedWhileRinging(t *testing.T) {
	is, f := newFixture(t)
	a := f.add(is, models.Alarm{Enabled: true, Hour: 7})

	f.clock.Advance(time.Hour)
	is.NoErr(f.svc.Delete(f.ctx, a.ID))
	is.Equal(active.Ringing, f.svc.Controller().State())

	_, err := f.svc.Dismiss(f.ctx, "")
	is.NoErr(err)
	is.Equal(0, len(f.store.alarms))
	is.Equal(active.Dismissed, f.lastOutcome().State)
}

func TestSnoozesAreListed(t *testing.T) {
	is, f := newFixture(t)
	a := f.add(is, models.Alarm{Enabled: true, Hour: 7, Days: models.NewDaySet(time.Monday), Repeat: true})

	is.Equal(0, len(f.svc.Snoozes()))

	f.clock.Advance(time.Hour)
	_, err := f.svc.Snooze(f.ctx)
	is.NoErr(err)

	is.Equal([]models.Occurrence{{AlarmID: a.ID, At: start.Add(70 * time.Minute)}}, f.svc.Snoozes())
}
