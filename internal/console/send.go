package console

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/scanctl/internal/audit"
	"github.com/nerrad567/scanctl/internal/dispatch"
	"github.com/nerrad567/scanctl/internal/history"
	"github.com/nerrad567/scanctl/internal/macro"
)

// progressInterval throttles progress events. The final frame of a run is
// always reported.
const progressInterval = 250 * time.Millisecond

// BroadcastLabel is the run label used for broadcasts without a macro.
const BroadcastLabel = "broadcast"

// SendToController sends cfg to one controller. A nil cfg sends the
// controller's current selections.
//
// The run is started asynchronously and its handle returned; use Run.Wait
// to block until it finishes. The run inherits cancellation from ctx.
func (s *Service) SendToController(ctx context.Context, actor Actor, address string, cfg *macro.Config) (*dispatch.Run, error) {
	c, err := s.reg.Controller(address)
	if err != nil {
		return nil, err
	}

	conf := macro.CaptureController(c, nil)
	if cfg != nil {
		conf = *cfg
	}

	req, err := s.BuildRequest(c, conf)
	if err != nil {
		return nil, err
	}
	return s.start(ctx, actor, req.Label, []dispatch.Request{req}, []string{c.Address})
}

// Broadcast sends one request per controller bound to an enabled scan
// unit. A controller bound to several units is sent to once.
//
// With a nil cfg every controller gets its own current selections and
// controllers with nothing enabled are skipped. With a cfg every controller
// gets the same configuration.
//
// Returns ErrNoEnabledUnits if no unit is enabled and bound, and
// ErrNothingToSend if no controller has anything to send.
func (s *Service) Broadcast(ctx context.Context, actor Actor, cfg *macro.Config, label string) (*dispatch.Run, error) {
	units := s.reg.EnabledUnits()
	if len(units) == 0 {
		return nil, ErrNoEnabledUnits
	}

	var (
		requests []dispatch.Request
		targets  []string
		seen     = make(map[string]bool, len(units))
	)
	for _, u := range units {
		if seen[u.Controller] {
			continue
		}
		seen[u.Controller] = true

		c, err := s.reg.Controller(u.Controller)
		if err != nil {
			return nil, fmt.Errorf("unit %d: %w", u.Unit, err)
		}

		conf := macro.CaptureController(c, nil)
		if cfg != nil {
			conf = *cfg
		}

		req, err := s.BuildRequest(c, conf)
		if cfg == nil && errors.Is(err, ErrNothingToSend) {
			s.logger.Debug("broadcast skipping controller with nothing enabled", "unit", u.Unit, "controller", c.Address)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("unit %d: %w", u.Unit, err)
		}
		requests = append(requests, req)
		targets = append(targets, c.Address)
	}

	if len(requests) == 0 {
		return nil, ErrNothingToSend
	}
	if label == "" {
		label = BroadcastLabel
	}
	return s.start(ctx, actor, label, requests, targets)
}

// BroadcastMacro loads a macro and broadcasts it to the enabled scan units.
func (s *Service) BroadcastMacro(ctx context.Context, actor Actor, scope macro.Scope, name string) (*dispatch.Run, error) {
	cfg, err := s.macros.Load(scope, name)
	if err != nil {
		return nil, err
	}
	return s.Broadcast(ctx, actor, &cfg, BroadcastLabel+":"+name)
}

// Cancel stops the active run, if any, and reports whether one was signalled.
func (s *Service) Cancel(ctx context.Context, actor Actor) bool {
	run := s.engine.Active()
	if run == nil || !s.engine.Cancel() {
		return false
	}
	s.record(ctx, actor, audit.ActionCancel, audit.EntityRun, run.ID, nil)
	return true
}

// IsSending reports whether a run is in flight.
func (s *Service) IsSending() bool {
	return s.engine.IsSending()
}

// cancelMessage is the optional payload of a remote cancel request.
type cancelMessage struct {
	Operator string `json:"operator"`
}

// HandleCancelMessage is an MQTT message handler that cancels the active
// run. The payload may be empty or {"operator": "..."}.
func (s *Service) HandleCancelMessage(topic string, payload []byte) error {
	var msg cancelMessage
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &msg); err != nil {
			return fmt.Errorf("decoding cancel request on %s: %w", topic, err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	if !s.Cancel(ctx, Actor{Operator: msg.Operator, Source: SourceMQTT}) {
		s.logger.Debug("remote cancel ignored, nothing in flight", "topic", topic)
	}
	return nil
}

// start hands requests to the engine with callbacks that fan the run's
// progress and completion out to the configured observers.
func (s *Service) start(ctx context.Context, actor Actor, label string, requests []dispatch.Request, targets []string) (*dispatch.Run, error) {
	var (
		ready = make(chan struct{})
		runID string
		last  time.Time
	)

	// Progress calls are serialised by the engine, so last needs no lock.
	onProgress := func(current, total int) {
		<-ready
		now := time.Now()
		if current < total && now.Sub(last) < progressInterval {
			return
		}
		last = now
		s.publishProgress(ProgressEvent{RunID: runID, Label: label, Current: current, Total: total})
	}

	onComplete := func(_ bool, outcome *dispatch.Outcome, err error) {
		s.finish(actor, label, targets, outcome, err)
	}

	run, err := s.engine.SendBatchAsync(ctx, requests, onProgress, onComplete)
	if err != nil {
		return nil, err
	}
	runID = run.ID
	close(ready)

	frames := 0
	for _, r := range requests {
		frames += r.Frames()
	}
	s.record(ctx, actor, audit.ActionDispatch, audit.EntityRun, run.ID, map[string]any{
		"label":       label,
		"controllers": targets,
		"frames":      frames,
	})
	s.logger.Info("dispatch started", "run_id", run.ID, "label", label, "controllers", len(targets), "frames", frames)
	return run, nil
}

// finish records a run that has ended. It runs on the engine's goroutine
// before Run.Wait returns.
func (s *Service) finish(actor Actor, label string, targets []string, outcome *dispatch.Outcome, runErr error) {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	source := actor.source()

	if s.history != nil {
		if err := s.history.Record(ctx, history.FromOutcome(outcome, source, label)); err != nil {
			s.logger.Warn("history write failed", "run_id", outcome.RunID, "error", err)
		}
	}

	s.writeMetrics(outcome, source)

	ev := CompletedEvent{
		RunID:       outcome.RunID,
		Label:       label,
		Source:      source,
		Operator:    actor.Operator,
		Controllers: targets,
		Status:      outcome.Status,
		Success:     outcome.Success(),
		FramesSent:  outcome.FramesSent,
		FramesTotal: outcome.FramesTotal,
		Succeeded:   outcome.Succeeded,
		Failed:      outcome.Failed,
		Skipped:     outcome.Skipped,
		CompletedAt: outcome.CompletedAt,
	}
	switch {
	case runErr != nil:
		ev.Error = runErr.Error()
	case outcome.Failed > 0:
		ev.Error = outcome.Err().Error()
	}
	s.publishCompleted(ev)
}
