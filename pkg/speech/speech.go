// Package speech speaks text through the platform's command line synthesizer
package speech

import (
	"context"
	"errors"
	"os/exec"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	ErrNoSynthesizer = errors.New("no speech synthesizer found")
	ErrBusy          = errors.New("already speaking")
)

// DefaultTimeout kills a synthesizer that has not finished an utterance
const DefaultTimeout = 30 * time.Second

// Command runs one synthesizer process per utterance
type Command struct {
	name    string
	args    []string
	logger  zerolog.Logger
	timeout time.Duration

	mu  sync.Mutex
	cmd *exec.Cmd
}

// Synthesizers are tried in order by NewCommand
var Synthesizers = map[string][]string{
	"darwin":  {"say"},
	"linux":   {"espeak-ng", "espeak", "spd-say"},
	"windows": {},
}

// NewCommand finds a synthesizer for the current platform
func NewCommand(logger zerolog.Logger) (*Command, error) {
	for _, name := range Synthesizers[runtime.GOOS] {
		if path, err := exec.LookPath(name); err == nil {
			logger.Debug().Str("synthesizer", path).Msg("found speech synthesizer")
			return NewCommandWith(logger, path), nil
		}
	}
	return nil, ErrNoSynthesizer
}

// NewCommandWith speaks by running name with args followed by the text
func NewCommandWith(logger zerolog.Logger, name string, args ...string) *Command {
	return &Command{name: name, args: args, logger: logger, timeout: DefaultTimeout}
}

// WithTimeout changes how long a single utterance may run
func (c *Command) WithTimeout(d time.Duration) *Command {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timeout = d
	return c
}

// Speak starts the utterance and returns. onDone runs on another goroutine
// once the synthesizer exits.
func (c *Command) Speak(text string, onDone func()) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cmd != nil {
		return ErrBusy
	}

	timeout := c.timeout
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	cmd := exec.CommandContext(ctx, c.name, append(append([]string{}, c.args...), text)...)
	if err := cmd.Start(); err != nil {
		cancel()
		return err
	}
	c.cmd = cmd

	go func() {
		defer cancel()
		err := cmd.Wait()

		c.mu.Lock()
		c.cmd = nil
		c.mu.Unlock()

		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			c.logger.Warn().Dur("timeout", timeout).Str("synthesizer", c.name).Msg("speech synthesizer timed out")
		} else if err != nil {
			c.logger.Warn().Err(err).Str("synthesizer", c.name).Msg("speech ended with error")
		}
		if onDone != nil {
			onDone()
		}
	}()

	return nil
}

func (c *Command) IsSpeaking() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cmd != nil
}
