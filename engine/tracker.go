package engine

import (
	"sync"
	"time"

	"github.com/franksops/lzstage/store"
)

// JobTracker journals the state of every job of a run in a store. Records
// are keyed by destination path, which is unique within a job set.
type JobTracker struct {
	store store.Store
	now   func() time.Time

	// bbolt serialises writers anyway; the lock keeps read-modify-write
	// sequences of one record atomic.
	mu sync.Mutex
}

// NewJobTracker creates a new JobTracker.
func NewJobTracker(s store.Store) *JobTracker {
	return &JobTracker{
		store: s,
		now:   time.Now,
	}
}

// InitJob records job as pending, replacing any record of an earlier run.
func (jt *JobTracker) InitJob(job TransferJob) error {
	jt.mu.Lock()
	defer jt.mu.Unlock()

	return jt.store.SaveJob(&store.JobRecord{
		ID:              job.DestinationPath,
		SourcePath:      job.SourcePath,
		DestinationPath: job.DestinationPath,
		State:           store.StatePending,
		TotalBytes:      job.Size,
		UpdatedAt:       jt.now(),
	})
}

// InitJobs records every job of set as pending.
func (jt *JobTracker) InitJobs(set JobSet) error {
	for _, job := range set.jobs {
		if err := jt.InitJob(job); err != nil {
			return err
		}
	}
	return nil
}

func (jt *JobTracker) update(job TransferJob, fn func(*store.JobRecord)) error {
	jt.mu.Lock()
	defer jt.mu.Unlock()

	record, err := jt.store.GetJob(job.DestinationPath)
	if err != nil {
		return err
	}
	fn(record)
	record.UpdatedAt = jt.now()
	return jt.store.SaveJob(record)
}

// MarkInProgress updates a job's state to InProgress.
func (jt *JobTracker) MarkInProgress(job TransferJob) error {
	return jt.update(job, func(r *store.JobRecord) {
		r.State = store.StateInProgress
	})
}

// MarkCompleted updates a job's state to Completed.
func (jt *JobTracker) MarkCompleted(job TransferJob) error {
	return jt.update(job, func(r *store.JobRecord) {
		r.State = store.StateCompleted
		r.BytesTransferred = r.TotalBytes
		r.Error = ""
	})
}

// MarkFailed updates a job's state to Failed with an error message.
func (jt *JobTracker) MarkFailed(job TransferJob, cause error) error {
	return jt.update(job, func(r *store.JobRecord) {
		r.State = store.StateFailed
		if cause != nil {
			r.Error = cause.Error()
		}
	})
}
