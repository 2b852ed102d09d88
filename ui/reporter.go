package ui

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/franksops/lzstage/engine"
)

// LineReporter prints one progress line per interval, for output that is not a terminal.
type LineReporter struct {
	out      io.Writer
	label    string
	interval time.Duration
	now      func() time.Time

	mu    sync.Mutex
	last  time.Time
	start time.Time
}

// NewLineReporter creates a reporter writing to out. A zero interval prints every update.
func NewLineReporter(out io.Writer, label string, interval time.Duration) *LineReporter {
	return &LineReporter{
		out:      out,
		label:    label,
		interval: interval,
		now:      time.Now,
	}
}

// Attach makes the reporter observe p.
func (r *LineReporter) Attach(p *engine.Progress) {
	p.Observe(r.Observe)
}

// Observe is an engine.ProgressObserver. The final update is always printed.
func (r *LineReporter) Observe(done, total uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if r.start.IsZero() {
		r.start = now
	}
	if done < total && !r.last.IsZero() && now.Sub(r.last) < r.interval {
		return
	}
	r.last = now

	percent := 100.0
	if total > 0 {
		percent = float64(done) * 100 / float64(total)
	}
	var speed float64
	if elapsed := now.Sub(r.start).Seconds(); elapsed > 0 {
		speed = float64(done) / elapsed
	}
	fmt.Fprintf(r.out, "%s: %5.1f%% %s / %s (%s)\n",
		r.label, percent, formatBytes(done), formatBytes(total), formatSpeed(speed))
}
