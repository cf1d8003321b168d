package models

import (
	"fmt"
	"strings"
	"time"
)

// DaySet is a set of weekdays stored as a bitmask, bit n = time.Weekday(n)
type DaySet uint8

// Weekdays is Monday through Friday
const Weekdays DaySet = 1<<time.Monday | 1<<time.Tuesday | 1<<time.Wednesday | 1<<time.Thursday | 1<<time.Friday

// EveryDay contains all seven days
const EveryDay DaySet = 0x7f

// NewDaySet builds a set from the given days
func NewDaySet(days ...time.Weekday) DaySet {
	var s DaySet
	for _, d := range days {
		s = s.Add(d)
	}
	return s
}

func (s DaySet) Has(d time.Weekday) bool {
	return s&(1<<uint(d)) != 0
}

func (s DaySet) Add(d time.Weekday) DaySet {
	return s | 1<<uint(d)
}

func (s DaySet) Remove(d time.Weekday) DaySet {
	return s &^ (1 << uint(d))
}

func (s DaySet) Empty() bool {
	return s&EveryDay == 0
}

// Days lists the selected weekdays starting from Sunday
func (s DaySet) Days() []time.Weekday {
	days := make([]time.Weekday, 0, 7)
	for d := time.Sunday; d <= time.Saturday; d++ {
		if s.Has(d) {
			days = append(days, d)
		}
	}
	return days
}

func (s DaySet) String() string {
	if s.Empty() {
		return "once"
	}
	names := make([]string, 0, 7)
	for _, d := range s.Days() {
		names = append(names, d.String()[:3])
	}
	return strings.Join(names, ",")
}

// ParseDaySet accepts a comma separated list of day names ("mon,wed"), the
// shorthands "daily" and "weekdays", or "once"/"" for the empty set.
func ParseDaySet(value string) (DaySet, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	switch value {
	case "", "once":
		return 0, nil
	case "daily", "everyday":
		return EveryDay, nil
	case "weekdays":
		return Weekdays, nil
	}

	var s DaySet
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if len(part) < 3 {
			return 0, fmt.Errorf("unknown day %q", part)
		}
		found := false
		for d := time.Sunday; d <= time.Saturday; d++ {
			if strings.HasPrefix(strings.ToLower(d.String()), part[:3]) {
				s = s.Add(d)
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("unknown day %q", part)
		}
	}
	return s, nil
}
