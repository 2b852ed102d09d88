package main

import (
	"context"
	"io"
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	eventemitter "github.com/vansante/go-event-emitter"

	"github.com/franksops/lzstage/engine"
	"github.com/franksops/lzstage/ui"
)

const reportInterval = 5 * time.Second

// display shows the progress of each phase either in the TUI or as plain lines.
type display struct {
	out   io.Writer
	tui   bool
	state *ui.StateTracker

	program *tea.Program
	done    chan struct{}
}

func newDisplay(out io.Writer, tui bool) *display {
	return &display{
		out:   out,
		tui:   tui,
		state: ui.NewStateTracker(),
	}
}

// start runs the TUI in the background. Quitting it cancels the run.
func (d *display) start(cancel context.CancelFunc) {
	if !d.tui {
		return
	}
	d.program = tea.NewProgram(ui.NewTUIModel("lzstage", d.state.Snapshot), tea.WithOutput(d.out))
	d.done = make(chan struct{})
	go func() {
		defer close(d.done)
		model, err := d.program.Run()
		if err != nil {
			slog.Error("TUI failed", "error", err)
			return
		}
		if m, ok := model.(ui.TUIModel); ok && m.Interrupted() {
			cancel()
		}
	}()
}

// phase resets the display for a new phase fed by progress and emitter.
func (d *display) phase(phase ui.Phase, files int, bytes uint64, workers int, progress *engine.Progress, emitter *eventemitter.Emitter) {
	d.state.StartPhase(phase, files, bytes, workers)
	if emitter != nil {
		d.state.Attach(emitter)
	}
	if progress == nil {
		return
	}
	if d.tui {
		progress.Observe(d.state.Observe)
		return
	}
	ui.NewLineReporter(d.out, string(phase), reportInterval).Attach(progress)
}

// finish marks the run done and waits for the TUI to exit.
func (d *display) finish(err error) {
	d.state.Finish(err)
	if d.program == nil {
		return
	}
	select {
	case <-d.done:
	case <-time.After(2 * time.Second):
		d.program.Quit()
		<-d.done
	}
}

// logEvents logs every engine event at debug level.
func logEvents(logger *slog.Logger) func(event eventemitter.EventType, args ...interface{}) {
	return func(event eventemitter.EventType, args ...interface{}) {
		attrs := []any{"event", string(event)}
		if len(args) > 0 {
			if job, ok := args[0].(engine.TransferJob); ok {
				attrs = append(attrs, "job", job.OneLine())
				args = args[1:]
			}
		}
		if len(args) > 0 {
			attrs = append(attrs, slog.Any("args", args))
		}
		logger.Debug("engine event", attrs...)
	}
}
