package capture

import (
	"errors"
	"fmt"
)

var (
	ErrTimeout = errors.New("the capture did not collect enough samples before its deadline")
)

// TimeoutError is returned when a Session reached its deadline before
// collecting the target amount of samples.
type TimeoutError struct {
	Collected int
	Target    int

	// Partial is what was collected before the deadline.
	Partial []float32
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%v: collected %d of %d samples", ErrTimeout, e.Collected, e.Target)
}

func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// RegistrationError is returned when the capture processor cannot be
// registered in the audio context.
type RegistrationError struct {
	ProcessorName string
	Err           error
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("unable to register processor '%s': %v", e.ProcessorName, e.Err)
}

func (e *RegistrationError) Unwrap() error {
	return e.Err
}
