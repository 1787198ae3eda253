package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/scanctl/internal/protocol"
)

// Logger defines the logging interface used by the Engine.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Engine transmits dispatch requests through a Transmitter.
//
// Only one run is active at a time. A second Send or SendBatchAsync while a
// run is in flight fails with ErrBusy.
//
// Thread Safety: all methods are safe for concurrent use.
type Engine struct {
	tx     Transmitter
	opts   Options
	logger Logger

	mu     sync.Mutex
	active *Run
}

// NewEngine creates a dispatch engine.
//
// Parameters:
//   - tx: Raw-frame send primitive
//   - opts: Scheduling options for batches
//   - logger: Logger instance (may be nil)
func NewEngine(tx Transmitter, opts Options, logger Logger) *Engine {
	if logger == nil {
		logger = noopLogger{}
	}
	if opts.MaxParallel < 0 {
		opts.MaxParallel = 0
	}
	return &Engine{
		tx:     tx,
		opts:   opts,
		logger: logger,
	}
}

// Options returns the engine's scheduling options.
func (e *Engine) Options() Options {
	return e.opts
}

// Run is the handle of one in-flight batch.
type Run struct {
	ID string

	cancel context.CancelCauseFunc
	done   chan struct{}

	outcome *Outcome
	err     error
}

// Cancel requests cooperative termination. The run stops at the next frame
// boundary. Calling Cancel on a finished run has no effect.
func (r *Run) Cancel() {
	r.cancel(ErrCancelled)
}

// Done is closed after the run's completion callback has returned.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the run ends and returns its outcome.
// Must not be called from inside the run's CompleteFunc.
func (r *Run) Wait() (*Outcome, error) {
	<-r.done
	return r.outcome, r.err
}

// Send transmits a single request and blocks until it finishes.
//
// Returns:
//   - *Outcome: per-entry tally (also returned on cancellation)
//   - error: nil when the run finished, even if some entries failed, or:
//   - ErrCancelled if the run was cancelled
//   - ErrBusy if another run is active
//   - ErrInvalidRequest if the request is malformed
func (e *Engine) Send(ctx context.Context, req Request) (*Outcome, error) {
	run, err := e.start(ctx, []Request{req}, nil, nil)
	if err != nil {
		return nil, err
	}
	return run.Wait()
}

// SendBatchAsync starts a run over requests on its own goroutine and
// returns immediately.
//
// onProgress (may be nil) is called after each frame attempt. onComplete
// (may be nil) is called exactly once when the run ends; cancelled runs
// report (false, outcome, ErrCancelled).
//
// The run inherits cancellation from ctx. Callers that outlive ctx, such as
// HTTP handlers, should pass context.WithoutCancel.
func (e *Engine) SendBatchAsync(ctx context.Context, requests []Request, onProgress ProgressFunc, onComplete CompleteFunc) (*Run, error) {
	return e.start(ctx, requests, onProgress, onComplete)
}

// Cancel requests termination of the active run, if any.
// It reports whether a run was signalled.
func (e *Engine) Cancel() bool {
	e.mu.Lock()
	run := e.active
	e.mu.Unlock()

	if run == nil {
		return false
	}
	e.logger.Info("dispatch cancel requested", "run_id", run.ID)
	run.Cancel()
	return true
}

// IsSending reports whether a run is in flight.
func (e *Engine) IsSending() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active != nil
}

// Active returns the in-flight run or nil.
func (e *Engine) Active() *Run {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

func (e *Engine) start(ctx context.Context, requests []Request, onProgress ProgressFunc, onComplete CompleteFunc) (*Run, error) {
	if e.tx == nil {
		return nil, ErrNoTransmitter
	}
	if len(requests) == 0 {
		return nil, fmt.Errorf("%w: empty batch", ErrInvalidRequest)
	}
	for i, req := range requests {
		if err := req.Validate(); err != nil {
			return nil, fmt.Errorf("request %d: %w", i, err)
		}
	}

	runCtx, cancel := context.WithCancelCause(ctx)
	run := &Run{
		ID:     uuid.New().String(),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	e.mu.Lock()
	if e.active != nil {
		e.mu.Unlock()
		cancel(nil)
		return nil, ErrBusy
	}
	e.active = run
	e.mu.Unlock()

	go e.execute(runCtx, run, requests, onProgress, onComplete)
	return run, nil
}

// batchState is the mutable state shared by the workers of one run.
type batchState struct {
	mu         sync.Mutex
	processed  int
	total      int
	onProgress ProgressFunc
}

// frameDone advances the progress counter and reports it.
// The lock is held across the callback so reports are serialised.
func (s *batchState) frameDone() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processed++
	if s.onProgress != nil {
		s.onProgress(s.processed, s.total)
	}
}

func (e *Engine) execute(ctx context.Context, run *Run, requests []Request, onProgress ProgressFunc, onComplete CompleteFunc) { //nolint:gocognit // run orchestration: schedules requests, tallies and reports
	defer run.cancel(nil)

	started := time.Now().UTC()
	outcome := &Outcome{
		RunID:     run.ID,
		Status:    StatusRunning,
		Requests:  len(requests),
		StartedAt: started,
	}

	// Results are laid out in batch order; each request writes its own slots.
	offsets := make([]int, len(requests))
	n := 0
	for i, req := range requests {
		offsets[i] = n
		n += len(req.Entries)
		outcome.FramesTotal += req.Frames()
	}
	outcome.Results = make([]EntryResult, n)

	state := &batchState{total: outcome.FramesTotal, onProgress: onProgress}

	e.logger.Info("dispatch run started",
		"run_id", run.ID,
		"requests", len(requests),
		"frames", outcome.FramesTotal,
		"parallel", e.opts.Parallel,
	)

	if e.opts.Parallel && len(requests) > 1 {
		var g errgroup.Group
		if e.opts.MaxParallel > 0 {
			g.SetLimit(e.opts.MaxParallel)
		}
		for i, req := range requests {
			results := outcome.Results[offsets[i] : offsets[i]+len(req.Entries)]
			g.Go(func() error {
				e.sendRequest(ctx, run, state, i, req, results)
				return nil
			})
		}
		_ = g.Wait() // workers record failures in results
	} else {
		for i, req := range requests {
			results := outcome.Results[offsets[i] : offsets[i]+len(req.Entries)]
			e.sendRequest(ctx, run, state, i, req, results)
		}
	}

	for _, r := range outcome.Results {
		outcome.FramesSent += r.FramesSent
		switch r.Status {
		case EntrySent:
			outcome.Succeeded++
		case EntryFailed:
			outcome.Failed++
		default:
			outcome.Skipped++
		}
	}

	// A cancel that lands during the final frame still ends the run as
	// cancelled, though nothing was left to skip.
	cause := context.Cause(ctx)
	cancelled := ctx.Err() != nil && !errors.Is(cause, errStopped)

	var runErr error
	switch {
	case cancelled:
		outcome.Status = StatusCancelled
		runErr = ErrCancelled
	case outcome.Failed > 0 && (outcome.Succeeded == 0 || errors.Is(cause, errStopped)):
		outcome.Status = StatusFailed
	case outcome.Failed > 0:
		outcome.Status = StatusPartial
	default:
		outcome.Status = StatusCompleted
	}

	outcome.CompletedAt = time.Now().UTC()
	outcome.Duration = outcome.CompletedAt.Sub(started)

	run.outcome = outcome
	run.err = runErr

	e.logger.Info("dispatch run complete",
		"run_id", run.ID,
		"status", outcome.Status,
		"frames_sent", outcome.FramesSent,
		"frames_total", outcome.FramesTotal,
		"succeeded", outcome.Succeeded,
		"failed", outcome.Failed,
		"skipped", outcome.Skipped,
		"duration_ms", outcome.Duration.Milliseconds(),
	)

	// Release the engine before the callback so it may start the next run.
	e.mu.Lock()
	e.active = nil
	e.mu.Unlock()

	if onComplete != nil {
		onComplete(outcome.Success(), outcome, runErr)
	}
	close(run.done)
}

// sendRequest sends the entries of one request in order. Each frame is
// followed by the delay of its entry unless it is the last frame of the
// request. results has one slot per entry.
func (e *Engine) sendRequest(ctx context.Context, run *Run, state *batchState, reqIdx int, req Request, results []EntryResult) {
	var pending time.Duration

	for i, entry := range req.Entries {
		res := &results[i]
		*res = EntryResult{
			Request:     reqIdx,
			Index:       i,
			Label:       req.Label,
			Destination: entry.Destination.String(),
			CommandName: entry.CommandName,
			Command:     entry.Command,
			Repetitions: entry.Repetitions,
			Status:      EntrySkipped,
		}

		payload, err := protocol.EncodePayload([]byte{entry.Command})
		if err != nil {
			e.fail(run, res, err)
			continue
		}

		for rep := 0; rep < entry.Repetitions; rep++ {
			if pending > 0 && !sleep(ctx, pending) {
				e.interrupt(res)
				break
			}
			if ctx.Err() != nil {
				e.interrupt(res)
				break
			}

			// A frame in flight always completes; cancellation lands between frames.
			err := e.tx.Transmit(context.WithoutCancel(ctx), entry.Source, entry.Destination, entry.Interface, payload)
			state.frameDone()
			pending = entry.Delay
			if err != nil {
				e.fail(run, res, err)
				break
			}
			res.FramesSent++
		}

		if res.FramesSent == entry.Repetitions {
			res.Status = EntrySent
		}
	}
}

// fail records a failed entry and applies StopOnError.
func (e *Engine) fail(run *Run, res *EntryResult, err error) {
	res.Status = EntryFailed
	res.err = fmt.Errorf("%w: %w", ErrTransmission, err)
	res.Error = err.Error()

	e.logger.Warn("dispatch frame failed",
		"run_id", run.ID,
		"destination", res.Destination,
		"command", res.CommandName,
		"entry", res.Index,
		"frames_sent", res.FramesSent,
		"error", err,
	)

	if e.opts.StopOnError {
		run.cancel(errStopped)
	}
}

// interrupt marks an entry cut short by cancellation.
func (e *Engine) interrupt(res *EntryResult) {
	if res.FramesSent > 0 {
		res.Status = EntryCancelled
	}
}

// sleep waits for d or until ctx ends. It reports whether the full delay elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
