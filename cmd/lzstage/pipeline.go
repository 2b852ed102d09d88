package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	eventemitter "github.com/vansante/go-event-emitter"

	lzerrors "github.com/franksops/lzstage/errors"
	"github.com/franksops/lzstage/engine"
	"github.com/franksops/lzstage/landingzone"
	"github.com/franksops/lzstage/provider"
	"github.com/franksops/lzstage/store"
	"github.com/franksops/lzstage/ui"
)

// stageFlags are shared by every command that uploads files.
type stageFlags struct {
	assumeYes       bool
	assay           string
	concurrency     int
	fixChecksums    bool
	validateAndMove bool
	tui             bool
}

func (f *stageFlags) register(cmd *cobra.Command, fixDefault bool) {
	fl := cmd.Flags()
	fl.BoolVarP(&f.assumeYes, "yes", "y", false, "Assume yes for all questions; the destination must then be a project UUID or a path")
	fl.StringVar(&f.assay, "assay", "", "Only consider landing zones of this assay UUID")
	fl.IntVar(&f.concurrency, "num-parallel-transfers", -1, "Number of parallel transfers, 0 for sequential (default from config)")
	fl.BoolVar(&f.fixChecksums, "fix-md5", fixDefault, "Compute missing .md5 sidecars before uploading")
	fl.BoolVar(&f.validateAndMove, "validate-and-move", false, "Submit the landing zone for validation and moving afterwards")
	fl.BoolVar(&f.tui, "tui", false, "Show an interactive progress display")
}

// stageOptions describe one run of the staging pipeline.
type stageOptions struct {
	Destination     string
	AssumeYes       bool
	Assay           string
	Builder         engine.Builder
	FixChecksums    bool
	ValidateAndMove bool
}

// stager runs resolve, build, fix checksums, execute and the optional move.
type stager struct {
	API         landingzone.API
	Confirm     landingzone.ConfirmFunc
	Collections provider.Collections
	Journal     store.Store

	Concurrency int
	Retry       engine.RetryConfig

	Display *display
	Logger  *slog.Logger
}

func (s *stager) run(ctx context.Context, opts stageOptions) (engine.TransferReport, error) {
	logger := s.Logger

	resolver := &landingzone.Resolver{API: s.API, Confirm: s.Confirm, Logger: logger}
	if s.API == nil && !strings.HasPrefix(opts.Destination, "/") {
		return engine.TransferReport{}, lzerrors.New(lzerrors.CodeParameter, "resolve", opts.Destination,
			"resolving a landing zone needs sodar_url and sodar_api_token")
	}
	s.phase(ui.PhaseResolving, 0, 0, nil, nil)
	res, err := resolver.Resolve(ctx, opts.Destination, opts.AssumeYes, opts.Assay)
	if err != nil {
		return engine.TransferReport{}, err
	}

	// The only interactive step is over; the display can take the terminal.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if s.Display != nil {
		s.Display.start(cancel)
	}

	report, err := s.stage(ctx, res, opts)
	if s.Display != nil {
		s.Display.finish(err)
	}
	return report, err
}

func (s *stager) stage(ctx context.Context, res landingzone.Resolution, opts stageOptions) (engine.TransferReport, error) {
	logger := s.Logger

	s.phase(ui.PhaseBuilding, 0, 0, nil, nil)
	if p, ok := opts.Builder.(engine.Preparer); ok {
		if err := p.Prepare(ctx); err != nil {
			return engine.TransferReport{}, err
		}
	}
	set, err := opts.Builder.Build(ctx, res.Path)
	if err != nil {
		return engine.TransferReport{}, err
	}
	logger.Info("built transfer jobs", "files", set.Len(), "bytes", set.TotalBytes(), "collection", res.Path)
	for _, job := range set.Jobs() {
		logger.Debug("job", "job", job.OneLine())
	}

	if opts.FixChecksums {
		fixer := engine.NewSidecarFixer(s.Concurrency, logger)
		fixer.AddCapturer(logEvents(logger))
		files, bytes := missingSources(set)
		s.phase(ui.PhaseChecksums, files, bytes, fixer.Progress, fixer.Emitter)

		if set, err = fixer.Fix(ctx, set); err != nil {
			return engine.TransferReport{}, err
		}
	}

	exec := engine.NewExecutor(s.Collections, s.Concurrency, logger)
	exec.Retry = s.Retry
	exec.AddCapturer(logEvents(logger))
	if s.Journal != nil {
		exec.Tracker = engine.NewJobTracker(s.Journal)
	}
	s.phase(ui.PhaseTransfer, set.Len(), uint64(set.TotalBytes()), exec.Progress, exec.Emitter)

	report, err := exec.Execute(ctx, set)
	if err != nil {
		return report, err
	}
	logger.Info("transfer complete", "files", report.Completed, "bytes", report.TransferredBytes)

	switch {
	case !opts.ValidateAndMove:
		logger.Info("files were staged but not moved; submit the landing zone when ready", "collection", res.Path)
	case res.UUID == "":
		logger.Info("destination is not a landing zone, files will not be moved", "collection", res.Path)
	default:
		logger.Info("submitting landing zone for validation and moving", "landing_zone", res.UUID)
		if err := s.API.SubmitValidateAndMove(ctx, res.UUID); err != nil {
			return report, lzerrors.Wrap(lzerrors.CodeRemote, "validate and move", res.UUID, err)
		}
	}
	return report, nil
}

func (s *stager) phase(phase ui.Phase, files int, bytes uint64, progress *engine.Progress, emitter *eventemitter.Emitter) {
	s.Logger.Debug("entering phase", "phase", phase, "files", files, "bytes", bytes)
	if s.Display != nil {
		s.Display.phase(phase, files, bytes, s.Concurrency, progress, emitter)
	}
}

// missingSources counts the sidecars that do not exist yet and the size of
// the data files they are computed from.
func missingSources(set engine.JobSet) (int, uint64) {
	var n int
	var bytes uint64
	for _, job := range set.Jobs() {
		if _, err := os.Stat(job.SourcePath); err == nil || !engine.IsSidecar(job.SourcePath) {
			continue
		}
		n++
		if info, err := os.Stat(engine.DataPath(job.SourcePath)); err == nil {
			bytes += uint64(info.Size())
		}
	}
	return n, bytes
}

// newStager wires the configured backends for a command. The cleanup function
// must be called even when an error is returned.
func newStager(ctx context.Context, cmd *cobra.Command, flags stageFlags, destination string) (*stager, func(), error) {
	var closers []func() error
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				logger.Warn("cleanup failed", "error", err)
			}
		}
	}

	s := &stager{
		Concurrency: cfg.Concurrency,
		Retry:       engine.RetryConfig{Attempts: cfg.Retry.Attempts, Delay: cfg.Retry.Delay},
		Logger:      logger,
	}
	if flags.concurrency >= 0 {
		s.Concurrency = flags.concurrency
	}
	if flags.assumeYes {
		s.Confirm = landingzone.AlwaysYes
	} else {
		s.Confirm = landingzone.TerminalConfirm(cmd.InOrStdin(), cmd.ErrOrStderr())
	}
	if !strings.HasPrefix(destination, "/") || flags.validateAndMove {
		if err := cfg.RequireRemote(); err == nil {
			s.API = landingzone.NewClient(cfg.SodarURL, cfg.SodarAPIToken, logger)
		} else if !strings.HasPrefix(destination, "/") {
			return nil, cleanup, err
		}
	}

	collections, closeCollections, err := openCollections(ctx, cfg.Storage, cfg.MaxBytesPerSecond)
	if err != nil {
		return nil, cleanup, err
	}
	closers = append(closers, closeCollections)
	s.Collections = collections

	if cfg.StateDir != "" {
		journal, err := openJournal(cfg.StateDir)
		if err != nil {
			return nil, cleanup, err
		}
		closers = append(closers, journal.Close)
		s.Journal = journal
	}

	out := cmd.OutOrStdout()
	if flags.tui {
		logFile, err := openLogFile(cfg.StateDir)
		if err != nil {
			return nil, cleanup, err
		}
		closers = append(closers, logFile.Close)
		if s.Logger, err = newLogger(logFile, logLevel, logFormat); err != nil {
			return nil, cleanup, err
		}
	}
	s.Display = newDisplay(out, flags.tui)
	return s, cleanup, nil
}

func openJournal(stateDir string) (*store.BoltStore, error) {
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	return store.NewBoltStore(filepath.Join(stateDir, "state.db"))
}

// openLogFile keeps logs off the terminal while the TUI owns it.
func openLogFile(stateDir string) (io.WriteCloser, error) {
	if stateDir == "" {
		stateDir = os.TempDir()
	}
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	return os.OpenFile(filepath.Join(stateDir, "lzstage.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
}
