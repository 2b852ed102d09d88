package engine

import (
	"context"
	"log/slog"
	"os"
	"sync"

	eventemitter "github.com/vansante/go-event-emitter"

	lzerrors "github.com/franksops/lzstage/errors"
)

// SidecarFixer generates the checksum sidecars a job set refers to but which
// do not exist yet.
type SidecarFixer struct {
	*eventemitter.Emitter

	// Concurrency is the number of parallel hashers; 0 hashes inline.
	Concurrency int

	// Progress receives the size of every hashed data file.
	Progress *Progress

	Buffers *BufferPool
	Logger  *slog.Logger
}

// NewSidecarFixer creates a fixer with its own emitter and progress counter.
func NewSidecarFixer(concurrency int, logger *slog.Logger) *SidecarFixer {
	return &SidecarFixer{
		Emitter:     eventemitter.NewEmitter(false),
		Concurrency: concurrency,
		Progress:    NewProgress(0),
		Buffers:     NewBufferPool(0),
		Logger:      logger,
	}
}

func (f *SidecarFixer) logger() *slog.Logger {
	if f.Logger == nil {
		return slog.Default()
	}
	return f.Logger
}

// Fix writes every missing sidecar and returns the job set with the sidecar
// jobs replaced by ones carrying the real sidecar size. A checksum failure is
// not retried and aborts the fix.
func (f *SidecarFixer) Fix(ctx context.Context, set JobSet) (JobSet, error) {
	var ready, pending []TransferJob
	var dataBytes int64
	for _, job := range set.jobs {
		if _, err := os.Stat(job.SourcePath); err == nil {
			ready = append(ready, job)
			continue
		}
		if !IsSidecar(job.SourcePath) {
			return JobSet{}, lzerrors.New(lzerrors.CodeMissingFile, "fix checksums", job.SourcePath, "data file disappeared")
		}
		size, err := fileSize(DataPath(job.SourcePath))
		if err != nil {
			return JobSet{}, lzerrors.Wrap(lzerrors.CodeMissingFile, "fix checksums", DataPath(job.SourcePath), err)
		}
		dataBytes += size
		pending = append(pending, job)
	}
	if len(pending) == 0 {
		return set, nil
	}

	logger := f.logger()
	logger.Info("computing missing checksums",
		"files", len(pending), "bytes", dataBytes, "concurrency", f.Concurrency)
	for _, job := range pending {
		logger.Debug("missing checksum sidecar", "path", job.SourcePath)
	}

	progress := f.Progress
	if progress == nil {
		progress = NewProgress(0)
	}
	progress.Reset()
	progress.SetTotal(uint64(dataBytes))

	var mu sync.Mutex
	replaced := make([]TransferJob, 0, len(pending))

	err := RunJobs(ctx, NewJobSet(pending...), f.Concurrency, func(ctx context.Context, job TransferJob) error {
		dataPath := DataPath(job.SourcePath)
		dataSize, err := fileSize(dataPath)
		if err != nil {
			return lzerrors.Wrap(lzerrors.CodeChecksum, "md5", dataPath, err)
		}

		size, err := WriteSidecar(dataPath, f.Buffers)
		if err != nil {
			logger.Error("failed to write checksum sidecar", "path", job.SourcePath, "error", err)
			return err
		}

		fixed := job.WithSize(size)
		mu.Lock()
		replaced = append(replaced, fixed)
		mu.Unlock()

		done := progress.Add(uint64(dataSize))
		if f.Emitter != nil {
			f.EmitEvent(SidecarWrittenEvent, fixed, done)
		}
		return nil
	})
	if err != nil {
		return JobSet{}, err
	}

	return NewJobSet(append(ready, replaced...)...), nil
}
