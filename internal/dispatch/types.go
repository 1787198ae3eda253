package dispatch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// Transmitter is the raw-frame send primitive the engine drives.
// Implementations must be safe for concurrent use when the engine runs
// requests in parallel.
type Transmitter interface {
	// Transmit sends payload from src to dst on the named interface.
	Transmit(ctx context.Context, src, dst net.HardwareAddr, iface string, payload []byte) error
}

// TransmitterFunc adapts a function to the Transmitter interface.
type TransmitterFunc func(ctx context.Context, src, dst net.HardwareAddr, iface string, payload []byte) error

// Transmit calls f.
func (f TransmitterFunc) Transmit(ctx context.Context, src, dst net.HardwareAddr, iface string, payload []byte) error {
	return f(ctx, src, dst, iface, payload)
}

// Entry is one command to send, possibly several times.
type Entry struct {
	Source      net.HardwareAddr
	Destination net.HardwareAddr
	Interface   string

	Command     byte
	CommandName string

	// Repetitions is the number of frames sent for this entry (at least 1).
	Repetitions int

	// Delay is waited after each frame before the next frame of the same
	// request. Best effort; cancellation interrupts it.
	Delay time.Duration
}

// Frames returns the number of frames the entry will send.
func (e Entry) Frames() int {
	return e.Repetitions
}

// Request is an ordered set of entries sent in one transmission run.
// Entries of a request are always sent sequentially.
type Request struct {
	// Label names the target for logs and tallies (usually the controller).
	Label   string
	Entries []Entry
}

// Frames returns the total frame count of the request.
func (r Request) Frames() int {
	n := 0
	for _, e := range r.Entries {
		n += e.Frames()
	}
	return n
}

// Validate reports whether the request can be dispatched.
func (r Request) Validate() error {
	if len(r.Entries) == 0 {
		return fmt.Errorf("%w: request %q has no entries", ErrInvalidRequest, r.Label)
	}
	for i, e := range r.Entries {
		switch {
		case len(e.Source) == 0:
			return fmt.Errorf("%w: entry %d: missing source address", ErrInvalidRequest, i)
		case len(e.Destination) == 0:
			return fmt.Errorf("%w: entry %d: missing destination address", ErrInvalidRequest, i)
		case e.Interface == "":
			return fmt.Errorf("%w: entry %d: missing interface", ErrInvalidRequest, i)
		case e.Repetitions < 1:
			return fmt.Errorf("%w: entry %d: repetitions must be at least 1", ErrInvalidRequest, i)
		case e.Delay < 0:
			return fmt.Errorf("%w: entry %d: negative delay", ErrInvalidRequest, i)
		}
	}
	return nil
}

// EntryStatus is the final state of one entry.
type EntryStatus string

const (
	EntrySent      EntryStatus = "sent"
	EntryFailed    EntryStatus = "failed"
	EntryCancelled EntryStatus = "cancelled" // Run cancelled after some frames were sent
	EntrySkipped   EntryStatus = "skipped"   // No frame attempted
)

// EntryResult is the tally line for one entry.
type EntryResult struct {
	Request     int         `json:"request"` // Index of the request within the batch
	Index       int         `json:"index"`   // Index of the entry within its request
	Label       string      `json:"label,omitempty"`
	Destination string      `json:"destination"`
	CommandName string      `json:"command_name,omitempty"`
	Command     byte        `json:"command"`
	FramesSent  int         `json:"frames_sent"`
	Repetitions int         `json:"repetitions"`
	Status      EntryStatus `json:"status"`
	Error       string      `json:"error,omitempty"`

	err error
}

// Err returns the transmission error of a failed entry.
func (r EntryResult) Err() error {
	return r.err
}

// Status is the final state of a run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusPartial   Status = "partial"   // Some entries failed, the rest were sent
	StatusFailed    Status = "failed"    // Every entry failed, or StopOnError aborted the run
	StatusCancelled Status = "cancelled" // Cancel or context ended the run early
)

// Outcome is the per-entry tally of a finished run.
type Outcome struct {
	RunID  string `json:"run_id"`
	Status Status `json:"status"`

	Requests    int `json:"requests"`
	FramesTotal int `json:"frames_total"`
	FramesSent  int `json:"frames_sent"`

	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`

	Results []EntryResult `json:"results"`

	StartedAt   time.Time     `json:"started_at"`
	CompletedAt time.Time     `json:"completed_at"`
	Duration    time.Duration `json:"duration"`
}

// Success reports whether every frame of the run was sent.
func (o *Outcome) Success() bool {
	return o != nil && o.Status == StatusCompleted
}

// Failures returns the results of failed entries in batch order.
func (o *Outcome) Failures() []EntryResult {
	if o == nil {
		return nil
	}
	var out []EntryResult
	for _, r := range o.Results {
		if r.Status == EntryFailed {
			out = append(out, r)
		}
	}
	return out
}

// Err joins every entry failure into one error, or returns nil.
// Each joined error matches ErrTransmission.
func (o *Outcome) Err() error {
	var errs []error
	for _, r := range o.Failures() {
		errs = append(errs, fmt.Errorf("%s entry %d (%s): %w", r.Destination, r.Index, r.CommandName, r.err))
	}
	return errors.Join(errs...)
}

// ProgressFunc receives the number of frames processed so far and the total.
// Calls are serialised and current never decreases.
type ProgressFunc func(current, total int)

// CompleteFunc is called exactly once when a run ends. err is ErrCancelled
// for cancelled runs and nil otherwise; per-entry failures are in outcome.
type CompleteFunc func(success bool, outcome *Outcome, err error)

// Options tune how the engine schedules a batch.
type Options struct {
	// Parallel runs the requests of a batch concurrently. Entries within a
	// request stay strictly ordered either way.
	Parallel bool

	// MaxParallel bounds concurrent requests when Parallel is set (0 = unbounded).
	MaxParallel int

	// StopOnError aborts the run after the first failed entry.
	StopOnError bool
}
