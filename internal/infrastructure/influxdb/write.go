package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementRuns    = "dispatch_runs"
	MeasurementEntries = "dispatch_entries"
)

// RunPoint summarises one finished dispatch run.
type RunPoint struct {
	RunID       string
	Source      string
	Status      string
	Requests    int
	FramesTotal int
	FramesSent  int
	Succeeded   int
	Failed      int
	Skipped     int
	Duration    time.Duration
	CompletedAt time.Time
}

// EntryPoint records the frames sent to one controller for one command.
type EntryPoint struct {
	RunID       string
	Controller  string
	Command     string
	Status      string
	FramesSent  int
	Repetitions int
	CompletedAt time.Time
}

func runPoint(r RunPoint) *write.Point {
	return write.NewPoint(
		MeasurementRuns,
		map[string]string{
			"source": r.Source,
			"status": r.Status,
		},
		map[string]any{
			"run_id":       r.RunID,
			"requests":     r.Requests,
			"frames_total": r.FramesTotal,
			"frames_sent":  r.FramesSent,
			"succeeded":    r.Succeeded,
			"failed":       r.Failed,
			"skipped":      r.Skipped,
			"duration_ms":  r.Duration.Milliseconds(),
		},
		pointTime(r.CompletedAt),
	)
}

func entryPoint(e EntryPoint) *write.Point {
	return write.NewPoint(
		MeasurementEntries,
		map[string]string{
			"controller": e.Controller,
			"command":    e.Command,
			"status":     e.Status,
		},
		map[string]any{
			"run_id":      e.RunID,
			"frames_sent": e.FramesSent,
			"repetitions": e.Repetitions,
		},
		pointTime(e.CompletedAt),
	)
}

func pointTime(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}

// WriteRun records a run summary. Non-blocking; points are batched.
func (c *Client) WriteRun(r RunPoint) {
	if !c.IsConnected() {
		return
	}
	c.writer.WritePoint(runPoint(r))
}

// WriteEntries records per-entry frame counts of a run.
func (c *Client) WriteEntries(entries []EntryPoint) {
	if !c.IsConnected() {
		return
	}
	for _, e := range entries {
		c.writer.WritePoint(entryPoint(e))
	}
}

// WritePoint writes a custom point timestamped now.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any) {
	if !c.IsConnected() {
		return
	}
	c.writer.WritePoint(write.NewPoint(measurement, tags, fields, time.Now()))
}
