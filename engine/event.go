package engine

import eventemitter "github.com/vansante/go-event-emitter"

const (
	// JobStartedEvent carries (TransferJob).
	JobStartedEvent eventemitter.EventType = "job-started"
	// JobRetryEvent carries (TransferJob, step string, attempt uint, error).
	JobRetryEvent eventemitter.EventType = "job-retry"
	// JobTransferredEvent carries (TransferJob, bytesDone uint64).
	JobTransferredEvent eventemitter.EventType = "job-transferred"
	// JobFailedEvent carries (TransferJob, error).
	JobFailedEvent eventemitter.EventType = "job-failed"
	// SidecarWrittenEvent carries (TransferJob, bytesDone uint64) for a generated sidecar.
	SidecarWrittenEvent eventemitter.EventType = "sidecar-written"
)
