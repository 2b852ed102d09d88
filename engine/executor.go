package engine

import (
	"context"
	"errors"
	"log/slog"
	"path"
	"sync/atomic"
	"time"

	"github.com/avast/retry-go/v4"
	eventemitter "github.com/vansante/go-event-emitter"

	lzerrors "github.com/franksops/lzstage/errors"
	"github.com/franksops/lzstage/provider"
)

// RetryConfig bounds the retries of each remote step of a job.
type RetryConfig struct {
	// Attempts is the total number of tries per step, at least 1.
	Attempts uint
	// Delay is the fixed pause between tries.
	Delay time.Duration
}

// DefaultRetryConfig tries every step five times, one second apart.
var DefaultRetryConfig = RetryConfig{
	Attempts: 5,
	Delay:    time.Second,
}

// TransferReport summarises one Execute call.
type TransferReport struct {
	Jobs             int
	TotalBytes       int64
	TransferredBytes uint64
	Completed        int
	Err              error
}

// Executor uploads a job set into a collection store.
type Executor struct {
	*eventemitter.Emitter

	Collections provider.Collections

	// Concurrency is the number of parallel transfers; 0 runs the jobs
	// one after another in job set order.
	Concurrency int
	Retry       RetryConfig

	Progress *Progress
	// Tracker optionally journals job states.
	Tracker *JobTracker
	Buffers *BufferPool
	Logger  *slog.Logger
}

// NewExecutor creates an executor with default retry settings.
func NewExecutor(collections provider.Collections, concurrency int, logger *slog.Logger) *Executor {
	return &Executor{
		Emitter:     eventemitter.NewEmitter(false),
		Collections: collections,
		Concurrency: concurrency,
		Retry:       DefaultRetryConfig,
		Progress:    NewProgress(0),
		Buffers:     NewBufferPool(0),
		Logger:      logger,
	}
}

func (e *Executor) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

func (e *Executor) emit(event eventemitter.EventType, args ...interface{}) {
	if e.Emitter != nil {
		e.EmitEvent(event, args...)
	}
}

// Execute transfers every job. The first job that still fails after its
// retries stops the run; jobs transferred before stay in place.
func (e *Executor) Execute(ctx context.Context, set JobSet) (TransferReport, error) {
	if e.Progress == nil {
		e.Progress = NewProgress(0)
	}
	e.Progress.Reset()
	e.Progress.SetTotal(uint64(set.TotalBytes()))

	if e.Tracker != nil {
		if err := e.Tracker.InitJobs(set); err != nil {
			e.logger().Warn("failed to journal jobs", "error", err)
		}
	}

	e.logger().Info("transferring files",
		"files", set.Len(), "bytes", set.TotalBytes(), "concurrency", e.Concurrency)

	var completed atomic.Int64
	err := RunJobs(ctx, set, e.Concurrency, func(ctx context.Context, job TransferJob) error {
		if err := e.transfer(ctx, job); err != nil {
			return err
		}
		completed.Add(1)
		return nil
	})

	report := TransferReport{
		Jobs:             set.Len(),
		TotalBytes:       set.TotalBytes(),
		TransferredBytes: e.Progress.Load(),
		Completed:        int(completed.Load()),
		Err:              err,
	}
	return report, err
}

func (e *Executor) transfer(ctx context.Context, job TransferJob) error {
	// A started job runs to completion; cancellation only stops dispatch.
	ctx = context.WithoutCancel(ctx)

	logger := e.logger().With("job", job.OneLine())
	logger.Debug("starting transfer")
	e.emit(JobStartedEvent, job)
	e.track(job, func(t *JobTracker) error { return t.MarkInProgress(job) })

	if err := e.runSteps(ctx, job); err != nil {
		code := lzerrors.CodeOf(err)
		if code == "" {
			code = lzerrors.CodeTransfer
		}
		err = lzerrors.Wrap(code, "transfer", job.SourcePath, err)
		logger.Error("transfer failed", "error", err)
		e.track(job, func(t *JobTracker) error { return t.MarkFailed(job, err) })
		e.emit(JobFailedEvent, job, err)
		return err
	}

	done := e.Progress.Add(uint64(job.Size))
	e.track(job, func(t *JobTracker) error { return t.MarkCompleted(job) })
	e.emit(JobTransferredEvent, job, done)
	return nil
}

// runSteps performs the remote calls of one job in order: create the parent
// collection, wait until it is visible, upload, verify the checksum.
func (e *Executor) runSteps(ctx context.Context, job TransferJob) error {
	parent := path.Dir(job.DestinationPath)

	err := e.retry(ctx, job, "make collection", func() error {
		return transient("make collection", parent, e.Collections.MakeCollection(ctx, parent))
	})
	if err != nil {
		return err
	}

	err = e.retry(ctx, job, "check collection", func() error {
		exists, err := e.Collections.CollectionExists(ctx, parent)
		if err != nil {
			return transient("check collection", parent, err)
		}
		if !exists {
			return lzerrors.New(lzerrors.CodeTransfer, "check collection", parent, "collection not visible yet")
		}
		return nil
	})
	if err != nil {
		return err
	}

	err = e.retry(ctx, job, "put", func() error {
		return transient("put", job.DestinationPath, e.Collections.PutObject(ctx, job.SourcePath, job.DestinationPath))
	})
	if err != nil {
		return err
	}

	local, err := ComputeMD5(job.SourcePath, e.Buffers)
	if err != nil {
		return lzerrors.Wrap(lzerrors.CodeChecksum, "md5", job.SourcePath, err)
	}

	var remote string
	err = e.retry(ctx, job, "checksum", func() error {
		var err error
		remote, err = e.Collections.ChecksumObject(ctx, job.DestinationPath)
		return transient("checksum", job.DestinationPath, err)
	})
	if err != nil {
		return err
	}
	if remote != local {
		return lzerrors.New(lzerrors.CodeChecksum, "verify", job.DestinationPath,
			"remote checksum %s does not match local checksum %s", remote, local)
	}
	return nil
}

func (e *Executor) retry(ctx context.Context, job TransferJob, step string, fn func() error) error {
	attempts := e.Retry.Attempts
	if attempts == 0 {
		attempts = 1
	}
	return retry.Do(fn,
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(e.Retry.Delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(lzerrors.Retryable),
		retry.OnRetry(func(n uint, err error) {
			e.logger().Warn("remote step failed",
				"job", job.OneLine(), "step", step, "attempt", n+1, "of", attempts, "error", err)
			e.emit(JobRetryEvent, job, step, n+1, err)
		}),
	)
}

func (e *Executor) track(job TransferJob, mark func(*JobTracker) error) {
	if e.Tracker == nil {
		return
	}
	if err := mark(e.Tracker); err != nil {
		e.logger().Warn("failed to journal job state", "job", job.OneLine(), "error", err)
	}
}

// transient classifies a collection store failure as a retryable transfer
// error. Cancellation and already classified errors pass through.
func transient(op, pth string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if lzerrors.CodeOf(err) != "" {
		return err
	}
	return lzerrors.Wrap(lzerrors.CodeTransfer, op, pth, err)
}
