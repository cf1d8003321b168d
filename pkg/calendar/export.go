package calendar

import (
	"fmt"
	"io"
	"time"

	"github.com/borgmon/alarm-clock/pkg/models"
	"github.com/emersion/go-ical"
	"github.com/rs/zerolog"
	"github.com/teambition/rrule-go"
)

const productID = "-//borgmon//alarm-clock//EN"

var weekdayToRRule = map[time.Weekday]rrule.Weekday{
	time.Sunday:    rrule.SU,
	time.Monday:    rrule.MO,
	time.Tuesday:   rrule.TU,
	time.Wednesday: rrule.WE,
	time.Thursday:  rrule.TH,
	time.Friday:    rrule.FR,
	time.Saturday:  rrule.SA,
}

// RecurrenceRule describes an alarm's day set as an RFC 5545 rule starting at
// its next occurrence. One-time alarms have no rule.
func RecurrenceRule(alarm models.Alarm, now time.Time) *rrule.ROption {
	if alarm.OneTime() {
		return nil
	}

	days := alarm.Days.Days()
	byDay := make([]rrule.Weekday, 0, len(days))
	for _, d := range days {
		byDay = append(byDay, weekdayToRRule[d])
	}

	opt := &rrule.ROption{
		Freq:      rrule.WEEKLY,
		Dtstart:   NextOccurrence(alarm, now).At,
		Byweekday: byDay,
	}
	if !alarm.Repeat {
		// every selected day rings once
		opt.Count = len(days)
	}
	return opt
}

// Expand lists every occurrence of the alarm in [from, until]. Recurring
// alarms are expanded with their recurrence rule, and the early-dismissed slot
// is left out.
func Expand(alarm models.Alarm, from, until time.Time) ([]time.Time, error) {
	opt := RecurrenceRule(alarm, from)
	if opt == nil {
		at := NextOccurrence(alarm, from).At
		if at.After(until) {
			return nil, nil
		}
		return []time.Time{at}, nil
	}

	rule, err := rrule.NewRRule(*opt)
	if err != nil {
		return nil, fmt.Errorf("failed to build recurrence for alarm %d: %w", alarm.ID, err)
	}

	result := []time.Time{}
	for _, t := range rule.Between(from, until, true) {
		if alarm.EarlyDismissedAt != nil && alarm.EarlyDismissedAt.Equal(t) {
			continue
		}
		result = append(result, t)
	}
	return result, nil
}

// Export writes the enabled alarms as a VCALENDAR. Each alarm becomes a
// VEVENT at its next occurrence carrying an audio VALARM, with a weekly
// RRULE when it repeats.
func Export(w io.Writer, alarms []models.Alarm, now time.Time, logger zerolog.Logger) error {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)

	exported := 0
	for _, alarm := range alarms {
		if !alarm.Enabled {
			logger.Debug().Int64("alarm_id", alarm.ID).Msg("skipping disabled alarm")
			continue
		}

		next := NextOccurrence(alarm, now)

		event := ical.NewEvent()
		event.Props.SetText(ical.PropUID, fmt.Sprintf("alarm-%d@alarm-clock", alarm.ID))
		event.Props.SetDateTime(ical.PropDateTimeStamp, now.UTC())
		event.Props.SetDateTime(ical.PropDateTimeStart, next.At)
		event.Props.SetText(ical.PropSummary, summary(alarm))

		if opt := RecurrenceRule(alarm, now); opt != nil {
			prop := ical.NewProp(ical.PropRecurrenceRule)
			prop.Value = opt.RRuleString()
			event.Props.Set(prop)
		}

		valarm := ical.NewComponent(ical.CompAlarm)
		valarm.Props.SetText(ical.PropAction, "AUDIO")
		trigger := ical.NewProp(ical.PropTrigger)
		trigger.Value = "PT0S"
		valarm.Props.Set(trigger)
		event.Children = append(event.Children, valarm)

		cal.Children = append(cal.Children, event.Component)
		exported++
	}

	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("failed to encode calendar: %w", err)
	}

	logger.Info().Int("alarms", exported).Msg("exported alarms to calendar")
	return nil
}

func summary(alarm models.Alarm) string {
	if alarm.Name != "" {
		return alarm.Name
	}
	return "Alarm " + alarm.TimeString()
}
