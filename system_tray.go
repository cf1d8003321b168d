package main

import (
	"fmt"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/theme"
	"github.com/borgmon/alarm-clock/pkg/calendar"
	"github.com/borgmon/alarm-clock/pkg/models"
)

// upcomingLimit is how many alarms the tray lists
const upcomingLimit = 5

func (ac *AlarmClock) setupSystemTray() {
	ac.updateSystemTrayMenu()
}

func (ac *AlarmClock) updateSystemTrayMenu() {
	desk, ok := ac.app.(desktop.App)
	if !ok {
		return
	}

	menuItems := []*fyne.MenuItem{}

	if s, ringing := ac.service.Controller().Current(); ringing {
		header := fyne.NewMenuItem(fmt.Sprintf("Ringing: %s", alarmLabel(s.Alarm)), func() {
			ac.showRingWindow(s)
		})
		menuItems = append(menuItems, header)

		// A token alarm is only dismissed from the ring window
		if !s.Alarm.RequireToken {
			menuItems = append(menuItems, fyne.NewMenuItem("Dismiss", func() {
				go ac.dismiss("")
			}))
		}
		menuItems = append(menuItems,
			fyne.NewMenuItem("Snooze", func() {
				go ac.snooze()
			}),
			fyne.NewMenuItemSeparator(),
		)
	}

	if upcoming := ac.upcoming(upcomingLimit); len(upcoming) > 0 {
		headerItem := fyne.NewMenuItem("Upcoming:", nil)
		headerItem.Disabled = true
		menuItems = append(menuItems, headerItem)

		for _, item := range upcoming {
			alarmItem := fyne.NewMenuItem(item, nil)
			alarmItem.Disabled = true
			menuItems = append(menuItems, alarmItem)
		}
		menuItems = append(menuItems, fyne.NewMenuItemSeparator())
	}

	menuItems = append(menuItems,
		fyne.NewMenuItem("Settings", func() {
			ac.showSettingsWindow()
		}),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Quit", func() {
			ac.quit()
		}),
	)

	menu := fyne.NewMenu("Alarm Clock", menuItems...)
	fyne.Do(func() {
		desk.SetSystemTrayMenu(menu)
		desk.SetSystemTrayIcon(theme.HistoryIcon())
	})
}

// upcoming describes the next rings, soonest first
func (ac *AlarmClock) upcoming(limit int) []string {
	alarms, err := ac.service.Alarms(ac.ctx)
	if err != nil {
		ac.logger.Error().Err(err).Msg("failed to load alarms")
		return nil
	}

	byID := make(map[int64]models.Alarm, len(alarms))
	for _, a := range alarms {
		byID[a.ID] = a
	}

	now := time.Now()
	items := []string{}

	for _, o := range ac.service.Snoozes() {
		items = append(items, fmt.Sprintf("  %s - %s (snoozed)", o.At.Format("3:04 PM"), alarmLabel(byID[o.AlarmID])))
	}

	for _, o := range calendar.Upcoming(alarms, now) {
		if len(items) >= limit {
			break
		}
		items = append(items, fmt.Sprintf("  %s - %s", o.At.Format("Mon 3:04 PM"), alarmLabel(byID[o.AlarmID])))
	}
	return items
}

func alarmLabel(a models.Alarm) string {
	if a.Name == "" {
		return a.TimeString()
	}
	return truncateString(a.Name, 35)
}

// truncateString truncates a string to maxLen characters, adding "..." if needed
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
