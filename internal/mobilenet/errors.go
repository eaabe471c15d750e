package mobilenet

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is matched by every construction-time configuration error.
var ErrInvalidConfig = errors.New("invalid mobilenet configuration")

// ValidationError reports a hyperparameter outside its valid range.
type ValidationError struct {
	Field  string // "alpha", "input_resolution", "num_class", "dropout"
	Value  any
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("mobilenet: invalid %s=%v: %s", e.Field, e.Value, e.Reason)
}

// Is reports whether target is ErrInvalidConfig.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidConfig
}

// ScheduleError reports a stage schedule that cannot be built into a network:
// a stage transition whose resolutions do not divide evenly, or a stage
// scaled down to zero channels or zero resolution.
type ScheduleError struct {
	Index         int // index of the stage (or first stage of the transition)
	InResolution  int
	OutResolution int
	Reason        string
}

// Error implements the error interface.
func (e *ScheduleError) Error() string {
	return fmt.Sprintf("mobilenet: stage %d (resolution %d -> %d): %s",
		e.Index, e.InResolution, e.OutResolution, e.Reason)
}

// Is reports whether target is ErrInvalidConfig.
func (e *ScheduleError) Is(target error) bool {
	return target == ErrInvalidConfig
}
