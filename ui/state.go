package ui

import (
	"sort"
	"sync"
	"time"

	eventemitter "github.com/vansante/go-event-emitter"

	"github.com/franksops/lzstage/engine"
)

// Phase names the step a staging run is in.
type Phase string

const (
	PhaseResolving Phase = "resolving"
	PhaseBuilding  Phase = "building"
	PhaseChecksums Phase = "checksums"
	PhaseTransfer  Phase = "transfer"
	PhaseDone      Phase = "done"
)

// UIState is a snapshot of a staging run for rendering.
type UIState struct {
	Phase          Phase
	TotalFiles     int
	TotalBytes     uint64
	CompletedFiles int
	CompletedBytes uint64
	ActiveStreams  []ActiveStream
	Retries        int
	Workers        int
	StartedAt      time.Time
	Elapsed        time.Duration
	Err            error
	Done           bool
}

// ActiveStream is a job currently being transferred.
type ActiveStream struct {
	FilePath string
	Size     int64
	Since    time.Time
}

// Throughput returns the average bytes per second of the current phase.
func (s UIState) Throughput() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.CompletedBytes) / s.Elapsed.Seconds()
}

// Percent returns the completed share of the current phase in [0, 1].
func (s UIState) Percent() float64 {
	if s.TotalBytes == 0 {
		if s.Done {
			return 1
		}
		return 0
	}
	p := float64(s.CompletedBytes) / float64(s.TotalBytes)
	if p > 1 {
		return 1
	}
	return p
}

// StateTracker folds engine events into a UIState. It is safe for use from
// the worker goroutines that emit the events.
type StateTracker struct {
	mu     sync.Mutex
	state  UIState
	active map[string]ActiveStream
	now    func() time.Time
}

// NewStateTracker creates an idle tracker.
func NewStateTracker() *StateTracker {
	return &StateTracker{
		active: make(map[string]ActiveStream),
		now:    time.Now,
	}
}

// Attach subscribes the tracker to all events of an emitter.
func (t *StateTracker) Attach(emitter *eventemitter.Emitter) {
	emitter.AddCapturer(t.capture)
}

// StartPhase resets the counters for a new phase of files and bytes.
func (t *StateTracker) StartPhase(phase Phase, files int, bytes uint64, workers int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.state.Phase = phase
	t.state.TotalFiles = files
	t.state.TotalBytes = bytes
	t.state.CompletedFiles = 0
	t.state.CompletedBytes = 0
	t.state.Retries = 0
	t.state.Workers = workers
	t.state.StartedAt = t.now()
	t.active = make(map[string]ActiveStream)
}

// Observe is an engine.ProgressObserver feeding the byte counters.
func (t *StateTracker) Observe(done, total uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.state.TotalBytes = total
	if done > t.state.CompletedBytes {
		t.state.CompletedBytes = done
	}
}

// Finish marks the run as done, with the error that ended it if any.
func (t *StateTracker) Finish(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.state.Done = true
	t.state.Err = err
	if err == nil {
		t.state.Phase = PhaseDone
	}
	t.active = make(map[string]ActiveStream)
}

// Snapshot returns a copy of the current state.
func (t *StateTracker) Snapshot() UIState {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.state
	if !s.StartedAt.IsZero() {
		s.Elapsed = t.now().Sub(s.StartedAt)
	}
	s.ActiveStreams = make([]ActiveStream, 0, len(t.active))
	for _, a := range t.active {
		s.ActiveStreams = append(s.ActiveStreams, a)
	}
	sort.Slice(s.ActiveStreams, func(i, k int) bool {
		return s.ActiveStreams[i].FilePath < s.ActiveStreams[k].FilePath
	})
	return s
}

func (t *StateTracker) capture(event eventemitter.EventType, args ...interface{}) {
	if len(args) == 0 {
		return
	}
	job, ok := args[0].(engine.TransferJob)
	if !ok {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	switch event {
	case engine.JobStartedEvent:
		t.active[job.DestinationPath] = ActiveStream{
			FilePath: job.SourcePath,
			Size:     job.Size,
			Since:    t.now(),
		}
	case engine.JobRetryEvent:
		t.state.Retries++
	case engine.JobTransferredEvent, engine.SidecarWrittenEvent:
		delete(t.active, job.DestinationPath)
		t.state.CompletedFiles++
		if len(args) > 1 {
			if done, ok := args[1].(uint64); ok && done > t.state.CompletedBytes {
				t.state.CompletedBytes = done
			}
		}
	case engine.JobFailedEvent:
		delete(t.active, job.DestinationPath)
		if len(args) > 1 {
			if err, ok := args[1].(error); ok && t.state.Err == nil {
				t.state.Err = err
			}
		}
	}
}
