package calendar

import (
	"sort"
	"time"

	"github.com/borgmon/alarm-clock/pkg/models"
	"github.com/samber/lo"
)

// NextAlarm picks the enabled alarm that rings soonest. When two alarms are
// due at the same instant the one earlier in alarms wins. ok is false when
// no alarm is enabled.
func NextAlarm(alarms []models.Alarm, now time.Time) (alarm models.Alarm, next models.Occurrence, ok bool) {
	enabled := lo.Filter(alarms, func(a models.Alarm, _ int) bool {
		return a.Enabled
	})

	for _, a := range enabled {
		o := NextOccurrence(a, now)
		if !ok || o.At.Before(next.At) {
			alarm, next, ok = a, o, true
		}
	}

	return alarm, next, ok
}

// Upcoming lists the next occurrence of every enabled alarm in ring order
func Upcoming(alarms []models.Alarm, now time.Time) []models.Occurrence {
	result := make([]models.Occurrence, 0, len(alarms))
	for _, a := range alarms {
		if a.Enabled {
			result = append(result, NextOccurrence(a, now))
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].At.Before(result[j].At)
	})
	return result
}
