package audio

import (
	"testing"
	"time"

	"github.com/borgmon/alarm-clock/pkg/models"
	"github.com/borgmon/alarm-clock/pkg/timer"
	"github.com/borgmon/alarm-clock/pkg/wakeup"
	"github.com/matryer/is"
	"github.com/rs/zerolog"
)

func waitForLevel(t *testing.T, o *Output, want int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		if level, _ := o.Volume(); level == want {
			return
		}
		if time.Now().After(deadline) {
			level, _ := o.Volume()
			t.Fatalf("volume is %d, want %d", level, want)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestRestrictedAlarmUndoesVolumeChange(t *testing.T) {
	is := is.New(t)
	out := NewOutput(zerolog.Nop())
	o := wakeup.New(timer.NewSystem(), wakeup.Drivers{Audio: out})
	out.OnVolumeChange(o.VolumeChanged)

	o.Start(models.Alarm{ID: 1, Volume: 100, RestrictVolume: true})
	defer o.Stop()

	is.NoErr(out.SetVolume(3))
	waitForLevel(t, out, MaxLevel)
}

func TestUnrestrictedAlarmKeepsVolumeChange(t *testing.T) {
	is := is.New(t)
	out := NewOutput(zerolog.Nop())
	o := wakeup.New(timer.NewSystem(), wakeup.Drivers{Audio: out})
	out.OnVolumeChange(o.VolumeChanged)

	o.Start(models.Alarm{ID: 1, Volume: 100})
	is.NoErr(out.SetVolume(3))

	time.Sleep(100 * time.Millisecond)
	waitForLevel(t, out, 3)

	// the level found at start comes back once the alarm stops
	o.Stop()
	waitForLevel(t, out, MaxLevel)
}
