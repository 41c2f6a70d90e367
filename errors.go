package display

import (
	"errors"
	"fmt"
)

// Sentinel errors. Typed errors below wrap one of these so callers can
// match with errors.Is.
var (
	// ErrInvalidDimensions is returned for zero or negative sizes.
	ErrInvalidDimensions = errors.New("display: invalid dimensions")

	// ErrResolutionOutOfRange is returned when an output resolution falls
	// outside [50%, 100%] of the owning display resolution.
	ErrResolutionOutOfRange = errors.New("display: output resolution out of range")

	// ErrReleased is returned for operations on a torn-down context or output.
	ErrReleased = errors.New("display: released")

	// ErrNullTarget is returned when a pass would proceed without a color or depth target.
	ErrNullTarget = errors.New("display: null render target")

	// ErrNoOutput is returned when no physical output can be discovered.
	ErrNoOutput = errors.New("display: no output available")

	// ErrWrongThread is returned when a mutating call runs outside the render thread.
	ErrWrongThread = errors.New("display: not on render thread")

	// ErrThreadStopped is returned by Thread.Do after Close.
	ErrThreadStopped = errors.New("display: render thread stopped")

	// ErrNoBackendAvailable is returned when no swap chain backend is registered.
	ErrNoBackendAvailable = errors.New("display: no swap chain backend available")

	// ErrIndexOutOfRange is returned for invalid back-buffer indices.
	ErrIndexOutOfRange = errors.New("display: back buffer index out of range")

	// ErrUnknownContext is returned when a context id is not registered.
	ErrUnknownContext = errors.New("display: unknown context")
)

// ConfigurationError reports invalid dimensions or settings passed by the caller.
// These are programmer errors and are also asserted.
type ConfigurationError struct {
	Op     string
	Width  int
	Height int
	Err    error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("display: %s %dx%d: %v", e.Op, e.Width, e.Height, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// ResourceAllocationError reports a device texture creation failure.
// The affected target stays unbound.
type ResourceAllocationError struct {
	Label string
	Err   error
}

func (e *ResourceAllocationError) Error() string {
	return fmt.Sprintf("display: allocate %q: %v", e.Label, e.Err)
}

func (e *ResourceAllocationError) Unwrap() error { return e.Err }

// PlatformIntegrationError reports a windowing or output enumeration failure.
type PlatformIntegrationError struct {
	Op  string
	Err error
}

func (e *PlatformIntegrationError) Error() string {
	return fmt.Sprintf("display: %s: %v", e.Op, e.Err)
}

func (e *PlatformIntegrationError) Unwrap() error { return e.Err }

// StateError reports an operation on a context in the wrong lifecycle state.
type StateError struct {
	Op    string
	ID    ContextID
	State State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("display: %s on context %d in state %s", e.Op, e.ID, e.State)
}

// Unwrap returns ErrReleased for operations on released contexts.
func (e *StateError) Unwrap() error {
	if e.State == StateReleased {
		return ErrReleased
	}
	return nil
}

func invalidDimensions(op string, w, h int) error {
	return &ConfigurationError{Op: op, Width: w, Height: h, Err: ErrInvalidDimensions}
}
