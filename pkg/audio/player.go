package audio

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/rs/zerolog/log"
)

// ErrNoContext is returned when the audio device could not be opened
var ErrNoContext = errors.New("audio context not ready")

// ContextTimeout bounds the wait for the audio device before a track plays
const ContextTimeout = 3 * time.Second

type contextOpener func(*oto.NewContextOptions) (*oto.Context, chan struct{}, error)

// device opens the oto context once and lets players wait for it
type device struct {
	once  sync.Once
	ready chan struct{}
	ctx   *oto.Context
}

func newDevice() *device {
	return &device{ready: make(chan struct{})}
}

var globalDevice = newDevice()

// InitAudioContext starts opening the audio device in the background. Every
// track is played with the format of the first call.
func InitAudioContext(format *wavFormat) {
	globalDevice.open(format, oto.NewContext)
}

func (d *device) open(format *wavFormat, newContext contextOpener) {
	d.once.Do(func() {
		op := &oto.NewContextOptions{
			SampleRate:   format.SampleRate,
			ChannelCount: format.Channels,
			Format:       oto.FormatSignedInt16LE,
		}

		ctx, readyChan, err := newContext(op)
		if err != nil {
			log.Error().Err(err).Msg("failed to initialize audio context")
			close(d.ready)
			return
		}

		go func() {
			// Wait for the hardware audio devices to be ready
			<-readyChan
			d.ctx = ctx
			close(d.ready)
			log.Info().Int("sample_rate", format.SampleRate).Msg("audio context initialized")
		}()
	})
}

// wait returns the opened context, or ErrNoContext when the device failed or
// is not ready within timeout
func (d *device) wait(timeout time.Duration) (*oto.Context, error) {
	select {
	case <-d.ready:
		if d.ctx == nil {
			return nil, ErrNoContext
		}
		return d.ctx, nil
	case <-time.After(timeout):
		return nil, fmt.Errorf("%w: device not ready after %s", ErrNoContext, timeout)
	}
}

// Player plays one track with cancellation support
type Player struct {
	stopChan chan struct{}
	player   *oto.Player
	stopped  bool
	mu       sync.Mutex
}

// play starts audioData and calls onComplete when it ends on its own
func play(audioData []byte, gain float64, onComplete func()) (*Player, error) {
	ctx, err := globalDevice.wait(ContextTimeout)
	if err != nil {
		return nil, err
	}

	p := &Player{
		stopChan: make(chan struct{}),
		player:   ctx.NewPlayer(bytes.NewReader(audioData)),
	}
	p.player.SetVolume(gain)

	// Play starts playing the sound and returns without waiting
	p.player.Play()
	go p.wait(onComplete)

	return p, nil
}

func (p *Player) wait(onComplete func()) {
	// Wait for the sound to finish playing or stop signal
	for p.player.IsPlaying() {
		select {
		case <-p.stopChan:
			return
		case <-time.After(10 * time.Millisecond):
			// Continue checking
		}
	}

	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	p.mu.Unlock()

	if err := p.player.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close audio player")
	}

	if onComplete != nil {
		onComplete()
	}
}

// SetVolume changes the gain of the playing track
func (p *Player) SetVolume(gain float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.stopped {
		p.player.SetVolume(gain)
	}
}

// Stop stops the audio playback
func (p *Player) Stop() {
	if p == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.stopped {
		p.stopped = true
		close(p.stopChan)
		p.player.Pause()
		if err := p.player.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close audio player")
		}
	}
}
