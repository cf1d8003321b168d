// Package timer provides the cancellable one-shot timers every ringing
// effect is built on. Repetition is expressed by rescheduling from inside the
// callback, so cancelling a handle only ever means "do not run the next step".
package timer

import (
	"sync"
	"time"
)

// Handle refers to a scheduled callback
type Handle interface {
	// Cancel prevents the callback from running. It returns false when the
	// callback already ran or was already cancelled.
	Cancel() bool
}

// Scheduler runs callbacks after a delay and reports the current time
type Scheduler interface {
	Now() time.Time
	Schedule(d time.Duration, fn func()) Handle
}

// System schedules on the wall clock using time.AfterFunc
type System struct{}

// NewSystem returns a Scheduler backed by the runtime timers
func NewSystem() System {
	return System{}
}

func (System) Now() time.Time {
	return time.Now()
}

func (System) Schedule(d time.Duration, fn func()) Handle {
	if d < 0 {
		d = 0
	}
	return systemHandle{t: time.AfterFunc(d, fn)}
}

type systemHandle struct {
	t *time.Timer
}

func (h systemHandle) Cancel() bool {
	return h.t.Stop()
}

// Group collects handles so that a whole set of timers can be cancelled at once
type Group struct {
	mu      sync.Mutex
	handles map[string]Handle
}

// NewGroup creates an empty Group
func NewGroup() *Group {
	return &Group{handles: make(map[string]Handle)}
}

// Set stores h under key, cancelling whatever was stored there before
func (g *Group) Set(key string, h Handle) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if old, ok := g.handles[key]; ok && old != nil {
		old.Cancel()
	}
	g.handles[key] = h
}

// Cancel cancels and forgets the handle stored under key
func (g *Group) Cancel(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if h, ok := g.handles[key]; ok && h != nil {
		h.Cancel()
	}
	delete(g.handles, key)
}

// CancelAll cancels every stored handle
func (g *Group) CancelAll() {
	g.mu.Lock()
	defer g.mu.Unlock()

	for key, h := range g.handles {
		if h != nil {
			h.Cancel()
		}
		delete(g.handles, key)
	}
}

// Len returns the number of handles currently stored
func (g *Group) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.handles)
}
