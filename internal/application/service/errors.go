package service

import "errors"

var (
	// ErrOperationInterrupted is returned when a simulated service call is
	// cancelled before it completes. The whole operation can be retried.
	ErrOperationInterrupted = errors.New("operation interrupted")

	// ErrNotApproved is returned by Generate for a record without approvedAt
	ErrNotApproved = errors.New("application has not been approved")

	// ErrNotBypassable is returned when a field carries a finding that does
	// not allow bypass
	ErrNotBypassable = errors.New("finding cannot be bypassed")

	// ErrNoFinding is returned when bypassing a field the last validation run
	// did not report on
	ErrNoFinding = errors.New("no finding for field")
)

// IsRetryable reports whether err is a transient failure the caller may retry
func IsRetryable(err error) bool {
	return errors.Is(err, ErrOperationInterrupted)
}
