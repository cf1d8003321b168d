package main

import (
	"fmt"
	"strconv"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/widget"
	"github.com/borgmon/alarm-clock/pkg/models"
	"github.com/borgmon/alarm-clock/pkg/store"
	"github.com/samber/lo"
)

const unlimited = "Unlimited"

type SettingsWindow struct {
	window fyne.Window
	app    fyne.App
	config models.Config
	store  *store.ConfigStore

	snoozeSelect      *widget.Select
	maxSnoozeSelect   *widget.Select
	autoDismissSelect *widget.Select
	autoStartCheck    *widget.Check
	missedCheck       *widget.Check
	subscribersEntry  *widget.Entry

	saveStatusLabel *widget.Label
	saveButton      *widget.Button
}

func NewSettingsWindow(app fyne.App, config models.Config, configStore *store.ConfigStore) *SettingsWindow {
	sw := &SettingsWindow{
		app:    app,
		config: config,
		store:  configStore,
	}

	sw.window = app.NewWindow("Alarm Clock - Settings")
	sw.buildUI()

	return sw
}

func minuteOptions(values ...int) []string {
	return lo.Map(values, func(v int, _ int) string {
		return fmt.Sprintf("%d min", v)
	})
}

func (sw *SettingsWindow) buildUI() {
	sw.snoozeSelect = widget.NewSelect(minuteOptions(1, 2, 3, 5, 10, 15, 20, 30), sw.markChanged)
	sw.snoozeSelect.SetSelected(fmt.Sprintf("%d min", sw.config.SnoozeMinutes))

	sw.maxSnoozeSelect = widget.NewSelect([]string{unlimited, "1", "2", "3", "5", "10"}, sw.markChanged)
	if sw.config.MaxSnoozeCount == 0 {
		sw.maxSnoozeSelect.SetSelected(unlimited)
	} else {
		sw.maxSnoozeSelect.SetSelected(strconv.Itoa(sw.config.MaxSnoozeCount))
	}

	sw.autoDismissSelect = widget.NewSelect(append([]string{"Never"}, minuteOptions(1, 5, 10, 15, 20, 30, 60)...), sw.markChanged)
	if sw.config.AutoDismissMinutes == 0 {
		sw.autoDismissSelect.SetSelected("Never")
	} else {
		sw.autoDismissSelect.SetSelected(fmt.Sprintf("%d min", sw.config.AutoDismissMinutes))
	}

	sw.autoStartCheck = widget.NewCheck("Start with the desktop session", func(bool) { sw.markChanged("") })
	sw.autoStartCheck.SetChecked(sw.config.AutoStart)

	sw.missedCheck = widget.NewCheck("Notify when an alarm stops ringing unanswered", func(bool) { sw.markChanged("") })
	sw.missedCheck.SetChecked(sw.config.MissedNotification)

	sw.subscribersEntry = widget.NewMultiLineEntry()
	sw.subscribersEntry.SetPlaceHolder("https://example.com/events")
	sw.subscribersEntry.SetText(strings.Join(sw.config.EventSubscribers, "\n"))
	sw.subscribersEntry.OnChanged = sw.markChanged

	subscribersHelp := widget.NewLabel("One URL per line. Dismissed, snoozed and missed alarms are posted as CloudEvents.")
	subscribersHelp.Wrapping = fyne.TextWrapWord

	storageEntry := widget.NewEntry()
	storageEntry.SetText(sw.app.Storage().RootURI().Path())
	storageEntry.Disable()

	form := container.New(layout.NewFormLayout(),
		widget.NewLabel("Snooze length:"), sw.snoozeSelect,
		widget.NewLabel("Snoozes per alarm:"), sw.maxSnoozeSelect,
		widget.NewLabel("Stop ringing after:"), sw.autoDismissSelect,
		widget.NewLabel("Auto Start:"), sw.autoStartCheck,
		widget.NewLabel("Missed alarms:"), sw.missedCheck,
		container.NewVBox(widget.NewLabel("Event subscribers:"), subscribersHelp), sw.subscribersEntry,
		widget.NewLabel("Storage Location:"), storageEntry,
	)

	sw.saveStatusLabel = widget.NewLabel("")
	sw.saveButton = widget.NewButton("Save", sw.save)
	sw.saveButton.Importance = widget.HighImportance
	sw.saveButton.Disable()

	closeButton := widget.NewButton("Close", func() {
		sw.window.Close()
	})

	buttonRow := container.NewBorder(
		nil,
		nil,
		container.NewHBox(sw.saveButton, sw.saveStatusLabel),
		closeButton,
		container.NewHBox(),
	)

	content := container.NewBorder(
		nil,
		container.NewPadded(buttonRow),
		nil,
		nil,
		container.NewPadded(container.NewVScroll(form)),
	)

	sw.window.SetContent(content)
	sw.window.Resize(fyne.NewSize(640, 480))
	sw.window.CenterOnScreen()
}

func (sw *SettingsWindow) markChanged(string) {
	if sw.saveButton != nil {
		sw.saveButton.Enable()
		sw.saveStatusLabel.SetText("")
	}
}

// configFromUI reads the form back into a configuration
func (sw *SettingsWindow) configFromUI() models.Config {
	cfg := sw.config

	fmt.Sscanf(sw.snoozeSelect.Selected, "%d min", &cfg.SnoozeMinutes)

	cfg.MaxSnoozeCount = 0
	if sw.maxSnoozeSelect.Selected != unlimited {
		cfg.MaxSnoozeCount, _ = strconv.Atoi(sw.maxSnoozeSelect.Selected)
	}

	cfg.AutoDismissMinutes = 0
	fmt.Sscanf(sw.autoDismissSelect.Selected, "%d min", &cfg.AutoDismissMinutes)

	cfg.AutoStart = sw.autoStartCheck.Checked
	cfg.MissedNotification = sw.missedCheck.Checked
	cfg.EventSubscribers = parseSubscribers(sw.subscribersEntry.Text)

	return cfg
}

func parseSubscribers(text string) []string {
	return lo.Uniq(lo.FilterMap(strings.Split(text, "\n"), func(line string, _ int) (string, bool) {
		line = strings.TrimSpace(line)
		return line, line != ""
	}))
}

func (sw *SettingsWindow) save() {
	cfg := sw.configFromUI()
	if err := sw.store.Save(cfg); err != nil {
		sw.saveStatusLabel.SetText("Error: " + err.Error())
		sw.saveStatusLabel.Importance = widget.DangerImportance
		sw.saveStatusLabel.Refresh()
		return
	}

	sw.config = cfg
	sw.saveButton.Disable()
	sw.saveStatusLabel.SetText("Settings saved")
	sw.saveStatusLabel.Importance = widget.SuccessImportance
	sw.saveStatusLabel.Refresh()
}

func (sw *SettingsWindow) Show() {
	sw.window.Show()
	sw.window.RequestFocus()
}

func (ac *AlarmClock) showSettingsWindow() {
	ac.mu.Lock()
	defer ac.mu.Unlock()

	// If settings window already exists, just bring it to front
	if ac.settingsWindow != nil {
		ac.settingsWindow.Show()
		return
	}

	ac.settingsWindow = NewSettingsWindow(ac.app, ac.config, ac.configStore)
	ac.settingsWindow.window.SetOnClosed(func() {
		ac.mu.Lock()
		ac.settingsWindow = nil
		ac.mu.Unlock()
	})
	ac.settingsWindow.Show()
}
