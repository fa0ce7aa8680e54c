package relay

import (
	"errors"
	"fmt"
)

type retriableError struct {
	msg string
}

func (e retriableError) Error() string   { return e.msg }
func (e retriableError) Retriable() bool { return true }

var (
	// ErrInProgress is returned when another invocation holds the blob. Redelivery later is safe.
	ErrInProgress error = retriableError{"relay already in progress for blob"}

	ErrForeignContainer = errors.New("event names a container other than the configured source container")
)

type StepError struct {
	Step Step
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("relay step %s failed: %s", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}
