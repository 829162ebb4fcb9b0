package query

import (
	"sync"
	"time"
)

// Debouncer delivers the last value set within a quiet window. Every Set
// restarts the window; only the final value reaches fire.
type Debouncer[T any] struct {
	window time.Duration
	fire   func(T)

	mu      sync.Mutex
	timer   *time.Timer
	gen     uint64
	pending bool
	val     T
}

func NewDebouncer[T any](window time.Duration, fire func(T)) *Debouncer[T] {
	return &Debouncer[T]{window: window, fire: fire}
}

func (d *Debouncer[T]) Set(v T) {
	d.mu.Lock()
	d.val = v
	d.pending = true
	d.gen++
	gen := d.gen
	if d.timer != nil {
		d.timer.Stop()
	}
	if d.window <= 0 {
		d.mu.Unlock()
		d.settle(gen)
		return
	}
	d.timer = time.AfterFunc(d.window, func() { d.settle(gen) })
	d.mu.Unlock()
}

// settle fires the value from generation gen unless a newer Set superseded it.
func (d *Debouncer[T]) settle(gen uint64) {
	d.mu.Lock()
	if gen != d.gen || !d.pending {
		d.mu.Unlock()
		return
	}
	d.pending = false
	v := d.val
	d.mu.Unlock()
	d.fire(v)
}

// Pending reports a value still waiting for its window to elapse.
func (d *Debouncer[T]) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

// Flush fires a pending value now.
func (d *Debouncer[T]) Flush() {
	d.mu.Lock()
	gen := d.gen
	if d.timer != nil {
		d.timer.Stop()
	}
	d.mu.Unlock()
	d.settle(gen)
}

// Stop drops any pending value.
func (d *Debouncer[T]) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.pending = false
	d.gen++
}
