package dispatch

import "errors"

// Domain errors for the dispatch package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, dispatch.ErrCancelled) {
//	    // operator stopped the run; not a fault
//	}
var (
	// ErrCancelled is returned when a run is stopped by Cancel or by its
	// context before every frame was sent.
	ErrCancelled = errors.New("dispatch: cancelled")

	// ErrTransmission wraps a per-frame failure from the Transmitter.
	ErrTransmission = errors.New("dispatch: transmission failed")

	// ErrBusy is returned when a run is requested while another is active.
	ErrBusy = errors.New("dispatch: a run is already in progress")

	// ErrInvalidRequest is returned when a request has no entries or an entry
	// is malformed (missing address, zero repetitions).
	ErrInvalidRequest = errors.New("dispatch: invalid request")

	// ErrNoTransmitter is returned when the engine has no Transmitter.
	ErrNoTransmitter = errors.New("dispatch: transmitter unavailable")

	// errStopped is the cancellation cause used when StopOnError aborts a run.
	errStopped = errors.New("dispatch: stopped after failure")
)
