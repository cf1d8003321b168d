// Package trigger arms in-process wake-up timers for alarm occurrences
package trigger

import (
	"sort"
	"sync"
	"time"

	"github.com/borgmon/alarm-clock/pkg/models"
	"github.com/borgmon/alarm-clock/pkg/timer"
	"github.com/rs/zerolog"
)

// MaxSleep bounds a single wait. Long waits are split up and the wall clock
// is checked again after each one, so a suspended machine fires as soon as it
// wakes rather than after the full monotonic delay.
const MaxSleep = time.Minute

// Triggers holds at most one armed occurrence per alarm
type Triggers struct {
	clock  timer.Scheduler
	logger zerolog.Logger

	mu      sync.Mutex
	handler func(models.Occurrence)
	armed   map[int64]*armed
}

type armed struct {
	occurrence models.Occurrence
	handle     timer.Handle
}

func New(clock timer.Scheduler, logger zerolog.Logger) *Triggers {
	return &Triggers{
		clock:  clock,
		logger: logger,
		armed:  make(map[int64]*armed),
	}
}

// Handle sets the function called when an armed occurrence is due
func (t *Triggers) Handle(fn func(models.Occurrence)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handler = fn
}

// Arm schedules o, replacing whatever was armed for the same alarm.
// Occurrences in the past fire right away.
func (t *Triggers) Arm(o models.Occurrence) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if prev, ok := t.armed[o.AlarmID]; ok {
		prev.handle.Cancel()
	}

	a := &armed{occurrence: o}
	t.armed[o.AlarmID] = a
	t.wait(a)

	t.logger.Debug().Int64("alarm_id", o.AlarmID).Time("at", o.At).Msg("trigger armed")
	return nil
}

// Cancel disarms the alarm's occurrence, if any
func (t *Triggers) Cancel(alarmID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if a, ok := t.armed[alarmID]; ok {
		a.handle.Cancel()
		delete(t.armed, alarmID)
		t.logger.Debug().Int64("alarm_id", alarmID).Msg("trigger cancelled")
	}
}

// CancelAll disarms everything
func (t *Triggers) CancelAll() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for id, a := range t.armed {
		a.handle.Cancel()
		delete(t.armed, id)
	}
}

// Armed lists the armed occurrences, soonest first
func (t *Triggers) Armed() []models.Occurrence {
	t.mu.Lock()
	defer t.mu.Unlock()

	result := make([]models.Occurrence, 0, len(t.armed))
	for _, a := range t.armed {
		result = append(result, a.occurrence)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].At.Equal(result[j].At) {
			return result[i].AlarmID < result[j].AlarmID
		}
		return result[i].At.Before(result[j].At)
	})
	return result
}

// wait schedules the next check for a. Callers hold t.mu.
func (t *Triggers) wait(a *armed) {
	d := min(a.occurrence.At.Sub(t.clock.Now()), MaxSleep)
	a.handle = t.clock.Schedule(d, func() { t.check(a) })
}

func (t *Triggers) check(a *armed) {
	t.mu.Lock()
	if t.armed[a.occurrence.AlarmID] != a {
		t.mu.Unlock()
		return
	}

	if t.clock.Now().Before(a.occurrence.At) {
		t.wait(a)
		t.mu.Unlock()
		return
	}

	delete(t.armed, a.occurrence.AlarmID)
	handler := t.handler
	t.mu.Unlock()

	t.logger.Info().Int64("alarm_id", a.occurrence.AlarmID).Time("at", a.occurrence.At).Msg("trigger fired")
	if handler != nil {
		handler(a.occurrence)
	}
}
