// Package task manages delegated background work: submitting jobs to
// the batch-completion API, persisting their records, polling each job
// to a terminal state, and notifying the live conversation when one
// finishes.
package task

// Status is the lifecycle state of a delegated job. Values mirror the
// remote batch API's terminal statuses, plus "processing" for anything
// still in flight.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusExpired    Status = "expired"
	StatusCancelled  Status = "cancelled"
)

// Terminal reports whether the status is one the poller stops on.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusExpired, StatusCancelled:
		return true
	}
	return false
}

// Record is one delegated job as persisted in the store, keyed by the
// remote batch job id.
type Record struct {
	// Description is the short human description given at submission,
	// used in spoken notifications.
	Description string `json:"description"`

	// Status is the last observed lifecycle state.
	Status Status `json:"status"`

	// Result holds the completed output text. Nil unless the job
	// completed and produced output.
	Result *string `json:"result"`
}
