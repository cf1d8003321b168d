package wakeup

import (
	"errors"
	"fmt"
	"time"
)

// Audio controls the output stream the alarm rings on. Levels are device
// steps between 0 and MaxVolume.
type Audio interface {
	MaxVolume() int
	Volume() (int, error)
	SetVolume(level int) error
	RequestFocus() error
	AbandonFocus()
}

type Vibrator interface {
	Pulse(d time.Duration) error
	Cancel()
}

// Speaker synthesizes speech. onDone is called once the utterance has been
// fully played, from any goroutine.
type Speaker interface {
	Speak(text string, onDone func()) error
	IsSpeaking() bool
}

// MediaPlayer plays one track at a time. onComplete is called when the track
// ends on its own, never after Stop.
type MediaPlayer interface {
	Play(path string, onComplete func()) error
	Stop()
}

// Ducker is implemented by media players that can lower their output while
// speech is playing
type Ducker interface {
	Duck(on bool)
}

// Drivers bundles the hardware an orchestrator rings with. Any of them may be
// nil, the matching effect is then skipped with a warning.
type Drivers struct {
	Audio    Audio
	Vibrator Vibrator
	Speaker  Speaker
	Media    MediaPlayer
}

// Effect names one of the cues played while an alarm rings
type Effect string

const (
	EffectVolume    Effect = "volume"
	EffectVibration Effect = "vibration"
	EffectSpeech    Effect = "speech"
	EffectMedia     Effect = "media"
)

// ErrHardwareUnavailable is wrapped by every Warning
var ErrHardwareUnavailable = errors.New("hardware unavailable")

var (
	errNoDevice      = errors.New("no device configured")
	errEmptyPlaylist = errors.New("no playable tracks")
)

// Warning reports an effect that could not be played. The remaining effects
// keep running.
type Warning struct {
	AlarmID int64
	Effect  Effect
	Err     error
}

func newWarning(alarmID int64, effect Effect, cause error) Warning {
	return Warning{
		AlarmID: alarmID,
		Effect:  effect,
		Err:     fmt.Errorf("%w: %w", ErrHardwareUnavailable, cause),
	}
}

func (w Warning) Error() string {
	return fmt.Sprintf("%s for alarm %d: %v", w.Effect, w.AlarmID, w.Err)
}

func (w Warning) Unwrap() error {
	return w.Err
}
