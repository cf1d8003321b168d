// Package wakeup plays the cues of a ringing alarm: the volume ramp,
// vibration pulses, spoken time and media playback. Every cue is a chain of
// one-shot timers on a timer.Scheduler so that the whole set can be torn down
// at once.
package wakeup

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/borgmon/alarm-clock/pkg/models"
	"github.com/borgmon/alarm-clock/pkg/timer"
	"github.com/rs/zerolog"
)

const (
	RampStep       = 5 * time.Second
	VibrationPulse = 500 * time.Millisecond
	VibrationGap   = time.Second
	RestartDelay   = time.Second
	SpeechPoll     = 500 * time.Millisecond

	// UtteranceTimeout ends an utterance whose completion never arrives
	UtteranceTimeout = 45 * time.Second
)

const (
	timerRamp      = "ramp"
	timerVibration = "vibration"
	timerSpeech    = "speech"
	timerMedia     = "media"
	timerUtterance = "utterance"
)

// Orchestrator rings one alarm at a time
type Orchestrator struct {
	clock      timer.Scheduler
	drivers    Drivers
	logger     zerolog.Logger
	playlist   PlaylistFunc
	speechText func(time.Time) string

	mu         sync.Mutex
	onWarning  func(Warning)
	generation uint64
	running    bool
	alarm      models.Alarm
	timers     *timer.Group
	warned     map[Effect]bool

	focused    bool
	restore    int
	canRestore bool
	target     int
	expected   int
	selfCaused []int
	ramping    bool

	vibrating bool
	speaking  bool
	utterance uint64

	mediaActive bool
	ducked      bool
	tracks      []string
	track       int
	repeat      bool
	fallback    bool
}

type Option func(*Orchestrator)

func WithLogger(logger zerolog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

func WithPlaylist(fn PlaylistFunc) Option {
	return func(o *Orchestrator) {
		o.playlist = fn
	}
}

// WithSpeechText replaces the "The time is 7:00 AM" utterance
func WithSpeechText(fn func(time.Time) string) Option {
	return func(o *Orchestrator) {
		o.speechText = fn
	}
}

func New(clock timer.Scheduler, drivers Drivers, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		clock:      clock,
		drivers:    drivers,
		logger:     zerolog.Nop(),
		playlist:   ResolveTracks,
		speechText: CurrentTime,
		timers:     timer.NewGroup(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// CurrentTime is the default spoken text
func CurrentTime(now time.Time) string {
	return "The time is " + now.Format("3:04 PM")
}

// OnWarning registers fn to receive warnings raised after Start returned
func (o *Orchestrator) OnWarning(fn func(Warning)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.onWarning = fn
}

// Start begins ringing alarm, replacing any session still running. Effects
// that cannot be played are skipped and reported, the others always start.
func (o *Orchestrator) Start(alarm models.Alarm) []Warning {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.running {
		o.teardown()
	}

	o.generation++
	gen := o.generation
	o.running = true
	o.alarm = alarm
	o.warned = make(map[Effect]bool)

	o.logger.Info().Int64("alarm_id", alarm.ID).Uint64("generation", gen).Msg("starting wakeup effects")

	var warnings []Warning
	warnings = append(warnings, o.startVolume(gen)...)
	warnings = append(warnings, o.startMedia(gen)...)
	warnings = append(warnings, o.startSpeech(gen)...)
	warnings = append(warnings, o.startVibration(gen)...)
	return warnings
}

// Stop tears every effect down, restores the volume found at Start and
// releases the output. It returns false when nothing was ringing.
func (o *Orchestrator) Stop() bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.running {
		return false
	}
	o.teardown()
	return true
}

// Running reports whether a session is being played
func (o *Orchestrator) Running() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running
}

// VolumeChanged is called by the host whenever the output volume changes.
// Changes the orchestrator made itself are ignored. Other changes are undone
// when the alarm restricts its volume, otherwise they are kept and end the
// ramp.
func (o *Orchestrator) VolumeChanged(level int) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.running || o.drivers.Audio == nil {
		return
	}

	if i := slices.Index(o.selfCaused, level); i >= 0 {
		o.selfCaused = o.selfCaused[i+1:]
		return
	}
	if level == o.expected {
		return
	}

	log := o.logger.With().Int64("alarm_id", o.alarm.ID).Int("level", level).Int("expected", o.expected).Logger()

	if o.alarm.RestrictVolume {
		log.Debug().Msg("restoring restricted volume")
		if err := o.setVolume(o.expected); err != nil {
			log.Error().Err(err).Msg("failed to restore volume")
		}
		return
	}

	log.Debug().Msg("accepting volume change")
	o.expected = level
	o.ramping = false
	o.timers.Cancel(timerRamp)
}

// run executes a timer step if its session is still current and reports
// warnings once the lock is released
func (o *Orchestrator) run(gen uint64, step func(uint64) []Warning) {
	o.mu.Lock()
	if !o.running || gen != o.generation {
		o.mu.Unlock()
		return
	}
	warnings := step(gen)
	handler := o.onWarning
	o.mu.Unlock()

	if handler != nil {
		for _, w := range warnings {
			handler(w)
		}
	}
}

// post moves a driver callback onto the scheduler so it never runs inside
// the driver call that triggered it
func (o *Orchestrator) post(gen uint64, step func(uint64) []Warning) func() {
	return func() {
		o.clock.Schedule(0, func() { o.run(gen, step) })
	}
}

func (o *Orchestrator) warn(effect Effect, cause error) []Warning {
	o.logger.Warn().Err(cause).Int64("alarm_id", o.alarm.ID).Str("effect", string(effect)).Msg("wakeup effect unavailable")

	if o.warned[effect] {
		return nil
	}
	o.warned[effect] = true
	return []Warning{newWarning(o.alarm.ID, effect, cause)}
}

func (o *Orchestrator) teardown() {
	o.running = false
	o.generation++
	o.timers.CancelAll()

	if o.vibrating {
		o.drivers.Vibrator.Cancel()
	}
	o.vibrating = false
	o.speaking = false

	if o.mediaActive {
		o.drivers.Media.Stop()
	}
	o.mediaActive = false
	o.ducked = false
	o.tracks = nil
	o.fallback = false

	o.ramping = false
	o.selfCaused = nil
	if o.canRestore {
		if err := o.drivers.Audio.SetVolume(o.restore); err != nil {
			o.logger.Error().Err(err).Int64("alarm_id", o.alarm.ID).Msg("failed to restore volume")
		}
	}
	o.canRestore = false
	o.releaseFocus()

	o.logger.Info().Int64("alarm_id", o.alarm.ID).Msg("wakeup effects stopped")
}

func (o *Orchestrator) releaseFocus() {
	if o.focused {
		o.drivers.Audio.AbandonFocus()
		o.focused = false
	}
}

func (o *Orchestrator) startVolume(gen uint64) []Warning {
	audio := o.drivers.Audio
	if audio == nil {
		return o.warn(EffectVolume, errNoDevice)
	}

	var warnings []Warning
	if err := audio.RequestFocus(); err != nil {
		warnings = append(warnings, o.warn(EffectVolume, err)...)
	} else {
		o.focused = true
	}

	if level, err := audio.Volume(); err != nil {
		warnings = append(warnings, o.warn(EffectVolume, err)...)
	} else {
		o.restore = level
		o.canRestore = true
	}

	o.target = DeviceLevel(o.alarm.Volume, audio.MaxVolume())
	start := o.target
	if o.alarm.GradualVolume {
		start = 0
	}

	if err := o.setVolume(start); err != nil {
		return append(warnings, o.warn(EffectVolume, err)...)
	}

	if start < o.target {
		o.ramping = true
		o.scheduleRamp(gen)
	}
	return warnings
}

// DeviceLevel converts a 0-100 percentage into a device step
func DeviceLevel(percent, maxLevel int) int {
	return (percent*maxLevel + 50) / 100
}

func (o *Orchestrator) setVolume(level int) error {
	o.selfCaused = append(o.selfCaused, level)
	if err := o.drivers.Audio.SetVolume(level); err != nil {
		o.selfCaused = o.selfCaused[:len(o.selfCaused)-1]
		return err
	}
	o.expected = level
	return nil
}

func (o *Orchestrator) scheduleRamp(gen uint64) {
	o.timers.Set(timerRamp, o.clock.Schedule(RampStep, func() { o.run(gen, o.rampStep) }))
}

func (o *Orchestrator) rampStep(gen uint64) []Warning {
	if !o.ramping {
		return nil
	}

	if err := o.setVolume(o.expected + 1); err != nil {
		o.ramping = false
		return o.warn(EffectVolume, err)
	}

	if o.expected >= o.target {
		o.ramping = false
		o.timers.Cancel(timerRamp)
		return nil
	}
	o.scheduleRamp(gen)
	return nil
}

func (o *Orchestrator) startVibration(gen uint64) []Warning {
	if !o.alarm.Vibrate {
		return nil
	}
	if o.drivers.Vibrator == nil {
		return o.warn(EffectVibration, errNoDevice)
	}

	o.vibrating = true
	return o.pulse(gen)
}

// pulse vibrates once and schedules the next pulse. Nothing is scheduled
// while speaking, the end of the utterance resumes the pulses.
func (o *Orchestrator) pulse(gen uint64) []Warning {
	if !o.vibrating || o.speaking {
		return nil
	}

	if err := o.drivers.Vibrator.Pulse(VibrationPulse); err != nil {
		o.vibrating = false
		o.timers.Cancel(timerVibration)
		return o.warn(EffectVibration, err)
	}

	o.timers.Set(timerVibration, o.clock.Schedule(VibrationPulse+VibrationGap, func() { o.run(gen, o.pulse) }))
	return nil
}

func (o *Orchestrator) startSpeech(gen uint64) []Warning {
	if !o.alarm.TTS {
		return nil
	}
	if o.drivers.Speaker == nil {
		return o.warn(EffectSpeech, errNoDevice)
	}
	return o.speak(gen)
}

func (o *Orchestrator) speak(gen uint64) []Warning {
	if o.drivers.Speaker.IsSpeaking() {
		o.timers.Set(timerSpeech, o.clock.Schedule(SpeechPoll, func() { o.run(gen, o.speak) }))
		return nil
	}

	o.speaking = true
	if o.vibrating {
		o.timers.Cancel(timerVibration)
		o.drivers.Vibrator.Cancel()
	}
	o.duck(true)

	o.utterance++
	id := o.utterance
	done := func(gen uint64) []Warning { return o.spoken(gen, id) }

	text := o.speechText(o.clock.Now())
	if err := o.drivers.Speaker.Speak(text, o.post(gen, done)); err != nil {
		o.speaking = false
		o.duck(false)
		warnings := o.warn(EffectSpeech, err)
		return append(warnings, o.pulse(gen)...)
	}

	o.timers.Set(timerUtterance, o.clock.Schedule(UtteranceTimeout, func() {
		o.run(gen, func(gen uint64) []Warning {
			o.logger.Warn().Int64("alarm_id", o.alarm.ID).Dur("timeout", UtteranceTimeout).Msg("utterance never finished")
			return o.spoken(gen, id)
		})
	}))

	o.logger.Debug().Int64("alarm_id", o.alarm.ID).Str("text", text).Msg("speaking")
	return nil
}

// spoken ends utterance id. A completion that arrives after the utterance
// timed out is ignored.
func (o *Orchestrator) spoken(gen uint64, id uint64) []Warning {
	if !o.speaking || id != o.utterance {
		return nil
	}
	o.speaking = false
	o.timers.Cancel(timerUtterance)
	o.duck(false)

	if freq := o.alarm.TTSFrequencySeconds; freq > 0 {
		o.timers.Set(timerSpeech, o.clock.Schedule(time.Duration(freq)*time.Second, func() { o.run(gen, o.speak) }))
	}
	return o.pulse(gen)
}

func (o *Orchestrator) startMedia(gen uint64) []Warning {
	ref := o.alarm.Media
	if !ref.HasMedia() {
		return nil
	}
	if o.drivers.Media == nil {
		return o.warn(EffectMedia, errNoDevice)
	}

	var warnings []Warning
	tracks, err := o.playlist(ref)
	if err == nil && len(tracks) == 0 {
		err = errEmptyPlaylist
	}
	if err != nil {
		warnings = o.warn(EffectMedia, err)
		tracks = nil
	}

	o.tracks = tracks
	o.track = 0
	o.repeat = ref.Repeat
	o.fallback = false
	o.mediaActive = true
	return append(warnings, o.play(gen)...)
}

// play starts the current track. Tracks that fail are skipped for at most one
// pass over the playlist, then the built-in tone takes over.
func (o *Orchestrator) play(gen uint64) []Warning {
	var warnings []Warning
	for attempt := 0; attempt < len(o.tracks); attempt++ {
		path := o.tracks[o.track]
		err := o.drivers.Media.Play(path, o.post(gen, o.trackEnded))
		if err == nil {
			o.logger.Debug().Int64("alarm_id", o.alarm.ID).Str("track", path).Msg("playing")
			if o.speaking {
				o.duck(true)
			}
			return warnings
		}

		warnings = append(warnings, o.warn(EffectMedia, fmt.Errorf("failed to play %s: %w", path, err))...)
		o.track = (o.track + 1) % len(o.tracks)
	}

	if o.fallback {
		o.mediaActive = false
		return warnings
	}

	o.logger.Warn().Int64("alarm_id", o.alarm.ID).Msg("no track could be played, using the built-in tone")
	fallback := models.DefaultMedia()
	o.fallback = true
	o.tracks = []string{fallback.Path}
	o.track = 0
	o.repeat = fallback.Repeat
	return append(warnings, o.play(gen)...)
}

func (o *Orchestrator) trackEnded(gen uint64) []Warning {
	if !o.mediaActive {
		return nil
	}
	repeat := o.repeat

	if len(o.tracks) > 1 {
		o.track++
		if o.track >= len(o.tracks) {
			if !repeat {
				o.mediaFinished()
				return nil
			}
			o.track = 0
		}
		return o.play(gen)
	}

	if !repeat {
		o.mediaFinished()
		return nil
	}
	o.timers.Set(timerMedia, o.clock.Schedule(RestartDelay, func() { o.run(gen, o.play) }))
	return nil
}

func (o *Orchestrator) mediaFinished() {
	o.mediaActive = false
	o.ducked = false
	o.drivers.Media.Stop()
	o.releaseFocus()
}

func (o *Orchestrator) duck(on bool) {
	d, ok := o.drivers.Media.(Ducker)
	if !ok || o.ducked == on || (on && !o.mediaActive) {
		return
	}
	o.ducked = on
	d.Duck(on)
}
