package timer

import (
	"container/heap"
	"sync"
	"time"
)

// Manual is a virtual clock. Time only moves when Advance or Set is called,
// and due callbacks run synchronously on the calling goroutine in deadline
// order, which makes timing behaviour reproducible in tests.
type Manual struct {
	mu      sync.Mutex
	current time.Time
	seq     uint64
	queue   timerQueue
}

// NewManual returns a clock initialised to start
func NewManual(start time.Time) *Manual {
	return &Manual{current: start}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

func (m *Manual) Schedule(d time.Duration, fn func()) Handle {
	if d < 0 {
		d = 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	t := &manualTimer{
		clock: m,
		at:    m.current.Add(d),
		seq:   m.seq,
		fn:    fn,
	}
	heap.Push(&m.queue, t)
	return t
}

// Advance moves the clock forward by d, running every callback that becomes
// due on the way. Callbacks may schedule further timers; those run too when
// they fall inside the window.
func (m *Manual) Advance(d time.Duration) time.Time {
	m.mu.Lock()
	target := m.current.Add(d)
	m.mu.Unlock()

	return m.runUntil(target)
}

// Set moves the clock to t, running due callbacks. Moving backwards only
// changes the reported time.
func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	if t.Before(m.current) {
		m.current = t
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	m.runUntil(t)
}

// Pending returns the number of callbacks waiting to run
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, t := range m.queue {
		if !t.done {
			n++
		}
	}
	return n
}

// NextDeadline returns the deadline of the earliest pending callback
func (m *Manual) NextDeadline() (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for m.queue.Len() > 0 && m.queue[0].done {
		heap.Pop(&m.queue)
	}
	if m.queue.Len() == 0 {
		return time.Time{}, false
	}
	return m.queue[0].at, true
}

func (m *Manual) runUntil(target time.Time) time.Time {
	for {
		m.mu.Lock()
		for m.queue.Len() > 0 && m.queue[0].done {
			heap.Pop(&m.queue)
		}
		if m.queue.Len() == 0 || m.queue[0].at.After(target) {
			m.current = target
			m.mu.Unlock()
			return target
		}

		t := heap.Pop(&m.queue).(*manualTimer)
		t.done = true
		if t.at.After(m.current) {
			m.current = t.at
		}
		m.mu.Unlock()

		t.fn()
	}
}

type manualTimer struct {
	clock *Manual
	at    time.Time
	seq   uint64
	fn    func()
	done  bool
	index int
}

func (t *manualTimer) Cancel() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()

	if t.done {
		return false
	}
	t.done = true
	return true
}

// timerQueue is a min-heap ordered by deadline, then by scheduling order
type timerQueue []*manualTimer

func (q timerQueue) Len() int { return len(q) }

func (q timerQueue) Less(i, j int) bool {
	if q[i].at.Equal(q[j].at) {
		return q[i].seq < q[j].seq
	}
	return q[i].at.Before(q[j].at)
}

func (q timerQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *timerQueue) Push(x any) {
	t := x.(*manualTimer)
	t.index = len(*q)
	*q = append(*q, t)
}

func (q *timerQueue) Pop() any {
	old := *q
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return t
}
