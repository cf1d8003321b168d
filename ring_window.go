package main

import (
	"fmt"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/borgmon/alarm-clock/pkg/active"
)

// holdTime is how long Dismiss and Snooze have to be held
const holdTime = 2 * time.Second

// RingActions are run off the fyne main thread
type RingActions struct {
	Dismiss func(token string) error
	Snooze  func() error
	Volume  func(level int) error
}

// RingWindow covers the screen while an alarm rings. It cannot be closed
// directly, only by dismissing or snoozing the alarm.
type RingWindow struct {
	window        fyne.Window
	session       active.Session
	snoozeMinutes int
	snoozesLeft   int // -1 when unlimited
	maxVolume     int
	actions       RingActions

	tokenEntry   *widget.Entry
	status       *widget.Label
	volumeSlider *widget.Slider
	shownVolume  int
}

func NewRingWindow(app fyne.App, session active.Session, snoozeMinutes, snoozesLeft, volume, maxVolume int, actions RingActions) *RingWindow {
	rw := &RingWindow{
		session:       session,
		snoozeMinutes: snoozeMinutes,
		snoozesLeft:   snoozesLeft,
		maxVolume:     maxVolume,
		shownVolume:   volume,
		actions:       actions,
	}

	fyne.Do(func() {
		rw.window = app.NewWindow("Alarm")
		rw.window.SetFullScreen(true)
		rw.window.SetCloseIntercept(func() {})
		rw.buildUI()
	})

	return rw
}

func (rw *RingWindow) buildUI() {
	alarm := rw.session.Alarm

	name := alarm.Name
	if name == "" {
		name = "Alarm"
	}
	title := canvas.NewText(name, nil)
	title.TextSize = 32
	title.Alignment = fyne.TextAlignCenter

	clock := canvas.NewText(rw.session.StartedAt.Format("3:04 PM"), nil)
	clock.TextSize = 64
	clock.Alignment = fyne.TextAlignCenter

	rw.status = widget.NewLabel("")
	rw.status.Alignment = fyne.TextAlignCenter
	rw.status.Importance = widget.DangerImportance

	content := container.NewVBox(
		container.NewPadded(title),
		clock,
	)

	if !rw.session.Deadline.IsZero() {
		deadline := widget.NewLabel(fmt.Sprintf("Stops ringing at %s", rw.session.Deadline.Format("3:04 PM")))
		deadline.Alignment = fyne.TextAlignCenter
		content.Add(deadline)
	}

	content.Add(widget.NewSeparator())

	if alarm.RequireToken {
		rw.tokenEntry = widget.NewPasswordEntry()
		rw.tokenEntry.SetPlaceHolder("Scan or type the token")
		rw.tokenEntry.OnSubmitted = func(token string) { go rw.dismissWith(token) }
		content.Add(rw.tokenEntry)
	}

	if rw.actions.Volume != nil {
		rw.volumeSlider = widget.NewSlider(0, float64(rw.maxVolume))
		rw.volumeSlider.Step = 1
		rw.volumeSlider.Value = float64(rw.shownVolume)
		rw.volumeSlider.OnChangeEnded = func(v float64) {
			if level := int(v); level != rw.shownVolume {
				rw.shownVolume = level
				go rw.report(rw.actions.Volume(level))
			}
		}
		content.Add(container.NewBorder(nil, nil, widget.NewIcon(theme.VolumeDownIcon()), widget.NewIcon(theme.VolumeUpIcon()), rw.volumeSlider))
	}

	buttonRow := container.NewHBox()
	if rw.snoozesLeft != 0 {
		label := fmt.Sprintf("Snooze %dm", rw.snoozeMinutes)
		if rw.snoozesLeft > 0 {
			label = fmt.Sprintf("%s (%d left)", label, rw.snoozesLeft)
		}
		buttonRow.Add(NewHoldButton(label, holdTime, rw.snooze))
	}
	buttonRow.Add(NewHoldButton("Dismiss (hold)", holdTime, rw.dismiss))

	content.Add(container.NewCenter(buttonRow))
	content.Add(rw.status)

	rw.window.SetContent(container.NewPadded(container.NewCenter(content)))
}

// dismiss and snooze run on the main thread when a hold button completes
func (rw *RingWindow) dismiss() {
	token := ""
	if rw.tokenEntry != nil {
		token = rw.tokenEntry.Text
	}
	go rw.dismissWith(token)
}

func (rw *RingWindow) dismissWith(token string) {
	rw.report(rw.actions.Dismiss(token))
}

func (rw *RingWindow) snooze() {
	go func() { rw.report(rw.actions.Snooze()) }()
}

// ShowVolume moves the slider to a level set elsewhere
func (rw *RingWindow) ShowVolume(level int) {
	fyne.Do(func() {
		if rw.volumeSlider == nil || level == rw.shownVolume {
			return
		}
		rw.shownVolume = level
		rw.volumeSlider.SetValue(float64(level))
	})
}

func (rw *RingWindow) report(err error) {
	if err == nil {
		return
	}
	fyne.Do(func() {
		rw.status.SetText(err.Error())
		if rw.tokenEntry != nil {
			rw.tokenEntry.SetText("")
		}
	})
}

func (rw *RingWindow) Show() {
	fyne.Do(func() {
		if rw.window != nil {
			rw.window.Show()
			rw.window.RequestFocus()
		}
	})
}

func (rw *RingWindow) Close() {
	fyne.Do(func() {
		if rw.window != nil {
			rw.window.Close()
			rw.window = nil
		}
	})
}
