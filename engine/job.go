package engine

import (
	"fmt"
	"sort"
)

// TransferJob represents a single file transfer from the local file system
// into a remote collection. It is a value type: jobs are compared with == and
// replaced rather than mutated.
type TransferJob struct {
	// SourcePath is the absolute local path to read from.
	SourcePath string

	// DestinationPath is the remote collection path, including the file name.
	DestinationPath string

	// Size is the byte count of SourcePath when the job was built.
	Size int64

	// Command is the literal transfer command text for blueprint jobs.
	Command string
}

// Less orders jobs by source path, then destination path.
func (j TransferJob) Less(other TransferJob) bool {
	if j.SourcePath != other.SourcePath {
		return j.SourcePath < other.SourcePath
	}
	return j.DestinationPath < other.DestinationPath
}

// WithSize returns a copy of the job carrying a new size.
func (j TransferJob) WithSize(size int64) TransferJob {
	j.Size = size
	return j
}

// OneLine renders the job for logs.
func (j TransferJob) OneLine() string {
	if j.Command == "" {
		return fmt.Sprintf("%s -> %s (%d)", j.SourcePath, j.DestinationPath, j.Size)
	}
	return fmt.Sprintf("%s -> %s (%d) [%s]", j.SourcePath, j.DestinationPath, j.Size, j.Command)
}

// JobSet is an ordered, duplicate-free collection of jobs.
type JobSet struct {
	jobs []TransferJob
}

// NewJobSet sorts the jobs by (SourcePath, DestinationPath) and drops
// duplicates of that pair, keeping the first occurrence.
func NewJobSet(jobs ...TransferJob) JobSet {
	sorted := make([]TransferJob, len(jobs))
	copy(sorted, jobs)
	sort.SliceStable(sorted, func(i, k int) bool {
		return sorted[i].Less(sorted[k])
	})

	out := sorted[:0]
	for i, job := range sorted {
		if i > 0 && job.SourcePath == out[len(out)-1].SourcePath && job.DestinationPath == out[len(out)-1].DestinationPath {
			continue
		}
		out = append(out, job)
	}
	return JobSet{jobs: out}
}

// Len returns the number of jobs.
func (s JobSet) Len() int {
	return len(s.jobs)
}

// Jobs returns a copy of the ordered jobs.
func (s JobSet) Jobs() []TransferJob {
	out := make([]TransferJob, len(s.jobs))
	copy(out, s.jobs)
	return out
}

// TotalBytes returns the sum of all job sizes.
func (s JobSet) TotalBytes() int64 {
	var total int64
	for _, job := range s.jobs {
		total += job.Size
	}
	return total
}

// JobChannel is a channel used to queue and dispatch TransferJobs to workers
// in the worker pool.
type JobChannel chan TransferJob
