package active

import (
	"fmt"
	"time"

	"github.com/borgmon/alarm-clock/pkg/models"
	"github.com/borgmon/alarm-clock/pkg/wakeup"
	"github.com/google/uuid"
)

// State is the lifecycle position of the controller
type State int

const (
	Idle State = iota
	Ringing
	Dismissed
	Snoozed
	Missed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Ringing:
		return "ringing"
	case Dismissed:
		return "dismissed"
	case Snoozed:
		return "snoozed"
	case Missed:
		return "missed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Terminal reports whether the state ends a session
func (s State) Terminal() bool {
	return s == Dismissed || s == Snoozed || s == Missed
}

// Session is one alarm ringing
type Session struct {
	ID          uuid.UUID
	Alarm       models.Alarm
	StartedAt   time.Time
	CarriedOver time.Duration // ringing time from earlier sessions of this alarm
	Deadline    time.Time     // auto-dismiss instant, zero when disabled
}

// Elapsed is the ringing time counted against the auto-dismiss budget
func (s Session) Elapsed(now time.Time) time.Duration {
	return s.CarriedOver + now.Sub(s.StartedAt)
}

// Outcome is the result of a controller transition. Rejected outcomes leave
// the session ringing and carry the reason.
type Outcome struct {
	State     State
	Alarm     models.Alarm // the record after the transition
	Session   uuid.UUID
	UsedToken bool
	Next      models.Occurrence // set when snoozed
	Rejected  error
}

// Listener receives the facts of every transition once the controller has
// released its lock. Implementations must not block.
type Listener interface {
	SessionStateChanged(alarmID int64, state State)
	MissedAlarm(alarm models.Alarm)
	Dismissed(alarm models.Alarm, usedToken bool)
	Snoozed(alarm models.Alarm, next models.Occurrence)
	HardwareWarning(w wakeup.Warning)
}

// NopListener ignores everything. Embed it to implement part of Listener.
type NopListener struct{}

func (NopListener) SessionStateChanged(int64, State) {}
func (NopListener) MissedAlarm(models.Alarm) {}
func (NopListener) Dismissed(models.Alarm, bool) {}
func (NopListener) Snoozed(models.Alarm, models.Occurrence) {}
func (NopListener) HardwareWarning(wakeup.Warning) {}

// Listeners fans every event out in order
type Listeners []Listener

func (ls Listeners) SessionStateChanged(alarmID int64, state State) {
	for _, l := range ls {
		l.SessionStateChanged(alarmID, state)
	}
}

func (ls Listeners) MissedAlarm(alarm models.Alarm) {
	for _, l := range ls {
		l.MissedAlarm(alarm)
	}
}

func (ls Listeners) Dismissed(alarm models.Alarm, usedToken bool) {
	for _, l := range ls {
		l.Dismissed(alarm, usedToken)
	}
}

func (ls Listeners) Snoozed(alarm models.Alarm, next models.Occurrence) {
	for _, l := range ls {
		l.Snoozed(alarm, next)
	}
}

func (ls Listeners) HardwareWarning(w wakeup.Warning) {
	for _, l := range ls {
		l.HardwareWarning(w)
	}
}
