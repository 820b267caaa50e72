package watcher

import (
	"sync"
	"time"
)

// Debouncer delays execution until a quiet period has passed.
type Debouncer struct {
	delay   time.Duration
	timer   *time.Timer
	mu      sync.Mutex
	pending func()
}

// NewDebouncer creates a new debouncer with the specified delay.
func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{delay: delay}
}

// Trigger schedules or resets the debounced function.
func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.pending = fn
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		fn := d.pending
		d.pending = nil
		d.mu.Unlock()

		if fn != nil {
			fn()
		}
	})
}

// Cancel cancels any pending execution.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.pending = nil
}

// Flush immediately executes any pending function.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	fn := d.pending
	d.pending = nil
	d.mu.Unlock()

	if fn != nil {
		fn()
	}
}
