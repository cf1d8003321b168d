// Package audio plays alarm media through oto and exposes a software volume
// that the wakeup effects ramp and restore.
package audio

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/borgmon/alarm-clock/pkg/models"
	"github.com/rs/zerolog"
)

// MaxLevel is the number of volume steps above silence
const MaxLevel = 15

// DefaultRingtone selects the built-in tone instead of a file
const DefaultRingtone = models.DefaultRingtone

// volumeQueue bounds the volume changes waiting to be reported
const volumeQueue = 16

// duckGain is applied on top of the volume while speech is playing
const duckGain = 0.3

var ErrUnsupportedMedia = errors.New("unsupported media")

// Output is a single audio output with a software volume and one track at a time
type Output struct {
	logger   zerolog.Logger
	readFile func(string) ([]byte, error)
	fallback []byte

	mu       sync.Mutex
	level    int
	ducked   bool
	focused  bool
	current  *Player
	changes  chan int
	onChange func(level int)
}

// NewOutput creates an output at full volume. The built-in tone plays for
// the "default" ringtone.
func NewOutput(logger zerolog.Logger) *Output {
	return &Output{
		logger:   logger,
		readFile: os.ReadFile,
		fallback: Tone(880, 400, 600, 4),
		level:    MaxLevel,
	}
}

// Open starts the audio device in the background so the first ring does not
// wait for it
func (o *Output) Open() error {
	format, _, err := parseWAV(o.fallback)
	if err != nil {
		return err
	}
	InitAudioContext(format)
	return nil
}

// OnVolumeChange registers fn to hear about every SetVolume, the output's own
// callers included. fn runs on a separate goroutine in change order.
func (o *Output) OnVolumeChange(fn func(level int)) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.onChange = fn
	if o.changes == nil {
		o.changes = make(chan int, volumeQueue)
		go o.dispatch(o.changes)
	}
}

func (o *Output) dispatch(changes <-chan int) {
	for level := range changes {
		o.mu.Lock()
		fn := o.onChange
		o.mu.Unlock()

		if fn != nil {
			fn(level)
		}
	}
}

func (o *Output) MaxVolume() int {
	return MaxLevel
}

func (o *Output) Volume() (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.level, nil
}

func (o *Output) SetVolume(level int) error {
	if level < 0 || level > MaxLevel {
		return fmt.Errorf("volume %d out of range 0-%d", level, MaxLevel)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	o.level = level
	if o.current != nil {
		o.current.SetVolume(o.gain())
	}

	if o.changes != nil {
		select {
		case o.changes <- level:
		default:
			o.logger.Warn().Int("level", level).Msg("volume change not reported, queue full")
		}
	}
	return nil
}

// RequestFocus claims the output for a ringing alarm. Only one alarm can
// hold it.
func (o *Output) RequestFocus() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.focused {
		return errors.New("audio output is already in use")
	}
	o.focused = true
	return nil
}

func (o *Output) AbandonFocus() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.focused = false
}

// Play decodes the WAV at path and starts it, replacing the current track
func (o *Output) Play(path string, onComplete func()) error {
	data, err := o.load(path)
	if err != nil {
		return err
	}

	format, audioData, err := parseWAV(data)
	if err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}

	InitAudioContext(format)

	o.mu.Lock()
	defer o.mu.Unlock()

	o.current.Stop()
	o.current = nil

	p, err := play(audioData, o.gain(), onComplete)
	if err != nil {
		return err
	}
	o.current = p

	o.logger.Debug().Str("path", path).Int("sample_rate", format.SampleRate).Msg("playing track")
	return nil
}

// Stop silences the current track without calling its completion
func (o *Output) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.current.Stop()
	o.current = nil
}

// Duck lowers the output while speech plays
func (o *Output) Duck(on bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.ducked = on
	if o.current != nil {
		o.current.SetVolume(o.gain())
	}
}

func (o *Output) load(path string) ([]byte, error) {
	if path == DefaultRingtone {
		return o.fallback, nil
	}
	if path == "" {
		return nil, fmt.Errorf("%w: empty path", ErrUnsupportedMedia)
	}
	return o.readFile(path)
}

// gain maps the level to the player gain. Callers hold o.mu.
func (o *Output) gain() float64 {
	g := float64(o.level) / MaxLevel
	if o.ducked {
		g *= duckGain
	}
	return g
}
