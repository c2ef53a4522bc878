package watcher

import (
	"sync"
	"time"
)

// Debouncer coalesces bursts of triggers into one callback. The first
// trigger arms a timer; triggers that land while it is armed are swallowed.
// When the timer fires the callback runs once and the debouncer re-arms on
// the next trigger.
type Debouncer struct {
	delay time.Duration
	fn    func()

	mu    sync.Mutex
	timer *time.Timer
	armed bool
}

// NewDebouncer creates a debouncer with the given settle delay.
func NewDebouncer(delay time.Duration, fn func()) *Debouncer {
	return &Debouncer{delay: delay, fn: fn}
}

// Trigger arms the timer if it is not already armed.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.armed {
		return
	}
	d.armed = true
	d.timer = time.AfterFunc(d.delay, d.fire)
}

func (d *Debouncer) fire() {
	d.mu.Lock()
	d.armed = false
	d.mu.Unlock()

	d.fn()
}

// Stop cancels an armed timer. A callback already in flight still completes.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.armed = false
}
