package calendar

import (
	"time"

	"github.com/borgmon/alarm-clock/pkg/models"
)

// OccurrencesFor returns one upcoming occurrence per selected weekday, or a
// single occurrence for a one-time alarm. Nothing returned is before now.
//
// The candidate for each day is that weekday's date on or after today at the
// alarm's hour and minute, in now's location. A candidate strictly before now
// moves a week ahead (a day for one-time alarms). A candidate that equals the
// alarm's early dismissal moves a further week ahead so that a slot the user
// already cancelled is not rung again.
func OccurrencesFor(alarm models.Alarm, now time.Time) []models.Occurrence {
	if alarm.OneTime() {
		return []models.Occurrence{{
			AlarmID: alarm.ID,
			At:      skipEarlyDismissal(alarm, candidate(alarm, now, 0, 1)),
		}}
	}

	days := alarm.Days.Days()
	result := make([]models.Occurrence, 0, len(days))
	for _, day := range days {
		offset := (int(day) - int(now.Weekday()) + 7) % 7
		result = append(result, models.Occurrence{
			AlarmID: alarm.ID,
			At:      skipEarlyDismissal(alarm, candidate(alarm, now, offset, 7)),
		})
	}
	return result
}

// NextOccurrence returns the earliest of OccurrencesFor
func NextOccurrence(alarm models.Alarm, now time.Time) models.Occurrence {
	occurrences := OccurrencesFor(alarm, now)
	next := occurrences[0]
	for _, o := range occurrences[1:] {
		if o.At.Before(next.At) {
			next = o
		}
	}
	return next
}

// candidate builds the alarm time offset days from now's date, rolling forward
// by step days when it has already passed.
func candidate(alarm models.Alarm, now time.Time, offset, step int) time.Time {
	y, m, d := now.Date()
	at := time.Date(y, m, d+offset, alarm.Hour, alarm.Minute, 0, 0, now.Location())
	if at.Before(now) {
		at = addDays(at, step)
	}
	return at
}

func skipEarlyDismissal(alarm models.Alarm, at time.Time) time.Time {
	if alarm.EarlyDismissedAt != nil && alarm.EarlyDismissedAt.Equal(at) {
		return addDays(at, 7)
	}
	return at
}

// addDays moves by calendar days so the wall-clock time survives DST changes
func addDays(t time.Time, days int) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d+days, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}
