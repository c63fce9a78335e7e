package resilience

import (
	"context"
	"errors"
	"io/fs"
	"os/exec"
)

// Failure says how a failed command run should be treated.
type Failure int

const (
	FailureNone Failure = iota
	// FailureCancelled: the caller gave up; says nothing about the binary.
	FailureCancelled
	// FailureRejected: the binary ran and exited non-zero, usually a bad
	// or encrypted PDF. Retrying gives the same answer.
	FailureRejected
	// FailureCrashed: killed by a signal (OOM killer, segfault).
	FailureCrashed
	// FailureMissing: not installed, not on PATH or not executable.
	FailureMissing
	// FailureStartup: any other error before the process ran.
	FailureStartup
)

func (f Failure) String() string {
	switch f {
	case FailureNone:
		return "none"
	case FailureCancelled:
		return "cancelled"
	case FailureRejected:
		return "rejected"
	case FailureCrashed:
		return "crashed"
	case FailureMissing:
		return "missing"
	default:
		return "startup"
	}
}

func (f Failure) retryable() bool { return f == FailureCrashed }

// blamesBinary reports whether the failure should count toward benching
// the binary. Rejections are verdicts on the input.
func (f Failure) blamesBinary() bool {
	return f == FailureCrashed || f == FailureMissing || f == FailureStartup
}

// Classify maps an os/exec error onto a Failure.
func Classify(err error) Failure {
	if err == nil {
		return FailureNone
	}
	var re *RunError
	if errors.As(err, &re) {
		return re.Failure
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return FailureCancelled
	}
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
		return FailureMissing
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if exitErr.ProcessState != nil && !exitErr.ProcessState.Exited() {
			return FailureCrashed
		}
		return FailureRejected
	}
	return FailureStartup
}

// RunError is a failed command run after retries.
type RunError struct {
	Binary   string
	Failure  Failure
	Attempts int
	Err      error
}

func (e *RunError) Error() string {
	return e.Binary + " " + e.Failure.String() + ": " + e.Err.Error()
}

func (e *RunError) Unwrap() error { return e.Err }
