package engine

import (
	"errors"
	"fmt"

	"github.com/jeeftor/rowpilot/internal/macro"
)

// ErrAborted marks a row or step cut short because a stop was requested.
// It is a normal terminal condition, not a failure of the macro.
var ErrAborted = errors.New("execution aborted")

// ErrBusy is wrapped when a control call is not valid in the current state
var ErrBusy = errors.New("controller is busy")

// ErrNotLoaded is returned by Start before any macro was loaded
var ErrNotLoaded = errors.New("no macro loaded")

// ValidationError reports a malformed macro. It is raised before a run starts and never retried.
type ValidationError = macro.ValidationError

// DeviceActionError is a failure performing a device primitive
type DeviceActionError struct {
	Op  string
	Err error
}

func (e *DeviceActionError) Error() string {
	return fmt.Sprintf("device %s failed: %v", e.Op, e.Err)
}

func (e *DeviceActionError) Unwrap() error { return e.Err }

// MatchNotFoundError is raised when text or an image is absent after every attempt
type MatchNotFoundError struct {
	Kind   string // "text" or "image"
	Target string
	Err    error
}

func (e *MatchNotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Target)
}

func (e *MatchNotFoundError) Unwrap() error { return e.Err }

// DataAccessError is a missing row or a missing or invalid variable mapping
type DataAccessError struct {
	Row  int
	Name string
	Err  error
}

func (e *DataAccessError) Error() string {
	switch {
	case e.Name != "":
		return fmt.Sprintf("row %d: column %q: %v", e.Row, e.Name, e.Err)
	default:
		return fmt.Sprintf("row %d: %v", e.Row, e.Err)
	}
}

func (e *DataAccessError) Unwrap() error { return e.Err }

// stepError carries a failure out of the step that raised it. Enclosing
// If and Loop steps see it and do not count the failure again.
type stepError struct {
	label string
	err   error
}

func (e *stepError) Error() string {
	return fmt.Sprintf("step %s: %v", e.label, e.err)
}

func (e *stepError) Unwrap() error { return e.err }

// InternalError is an unexpected engine fault. It ends the run in the Error state.
type InternalError struct {
	Err error
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("internal engine error: %v", e.Err)
}

func (e *InternalError) Unwrap() error { return e.Err }

// IsFatal reports whether err must end the whole run rather than be handled
// by a step's error policy.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var internal *InternalError
	return errors.As(err, &internal) || macro.IsValidationError(err)
}

// IsAborted reports whether err stems from a stop request
func IsAborted(err error) bool {
	return errors.Is(err, ErrAborted)
}

// retryable reports whether the step error policy may run the step again
func retryable(err error) bool {
	return err != nil && !IsFatal(err) && !IsAborted(err)
}
