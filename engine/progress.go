package engine

import (
	"sync"
	"sync/atomic"
)

// ProgressObserver is notified after every increment. It may observe values
// slightly out of order when called from several workers at once.
type ProgressObserver func(done, total uint64)

// Progress is the byte counter shared by all workers of a run.
type Progress struct {
	done  atomic.Uint64
	total atomic.Uint64

	mu       sync.RWMutex
	observer ProgressObserver
}

// NewProgress creates a counter with an expected total for display.
func NewProgress(total uint64) *Progress {
	p := &Progress{}
	p.total.Store(total)
	return p
}

// Observe registers fn to be called after each Add. A nil fn removes the observer.
func (p *Progress) Observe(fn ProgressObserver) {
	p.mu.Lock()
	p.observer = fn
	p.mu.Unlock()
}

// Add increments the counter and returns the new value.
func (p *Progress) Add(n uint64) uint64 {
	done := p.done.Add(n)

	p.mu.RLock()
	fn := p.observer
	p.mu.RUnlock()
	if fn != nil {
		fn(done, p.total.Load())
	}
	return done
}

// Load returns the number of bytes accounted for so far.
func (p *Progress) Load() uint64 {
	return p.done.Load()
}

// Reset zeroes the counter for a new phase.
func (p *Progress) Reset() {
	p.done.Store(0)
}

// SetTotal sets the expected total.
func (p *Progress) SetTotal(total uint64) {
	p.total.Store(total)
}

// Total returns the expected total.
func (p *Progress) Total() uint64 {
	return p.total.Load()
}
