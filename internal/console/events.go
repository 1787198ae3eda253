package console

import (
	"time"

	"github.com/nerrad567/scanctl/internal/dispatch"
	"github.com/nerrad567/scanctl/internal/infrastructure/influxdb"
	"github.com/nerrad567/scanctl/internal/infrastructure/mqtt"
)

// MQTTClient is the interface for publishing dispatch events to the broker.
type MQTTClient interface {
	// PublishJSON marshals v and publishes it to topic.
	PublishJSON(topic string, v any) error

	// Topics returns the topic builder for the configured prefix.
	Topics() mqtt.Topics
}

// WSHub is the interface for broadcasting WebSocket events.
type WSHub interface {
	// Broadcast sends an event to all clients subscribed to the given channel.
	Broadcast(channel string, payload any)
}

// MetricsWriter is the interface for recording run metrics.
type MetricsWriter interface {
	WriteRun(r influxdb.RunPoint)
	WriteEntries(entries []influxdb.EntryPoint)
}

// WebSocket channel names.
const (
	ChannelDispatchProgress  = "dispatch.progress"
	ChannelDispatchCompleted = "dispatch.completed"
	ChannelRegistryChanged   = "registry.changed"
)

// ProgressEvent reports frames processed so far in a run.
type ProgressEvent struct {
	RunID   string `json:"run_id"`
	Label   string `json:"label,omitempty"`
	Current int    `json:"current"`
	Total   int    `json:"total"`
}

// CompletedEvent reports the end of a run.
type CompletedEvent struct {
	RunID       string          `json:"run_id"`
	Label       string          `json:"label,omitempty"`
	Source      string          `json:"source"`
	Operator    string          `json:"operator,omitempty"`
	Controllers []string        `json:"controllers"`
	Status      dispatch.Status `json:"status"`
	Success     bool            `json:"success"`
	FramesSent  int             `json:"frames_sent"`
	FramesTotal int             `json:"frames_total"`
	Succeeded   int             `json:"succeeded"`
	Failed      int             `json:"failed"`
	Skipped     int             `json:"skipped"`
	Error       string          `json:"error,omitempty"`
	CompletedAt time.Time       `json:"completed_at"`
}

// RegistryEvent reports that an entity in the registry changed.
type RegistryEvent struct {
	Entity string    `json:"entity"`
	ID     string    `json:"id"`
	At     time.Time `json:"at"`
}

func (s *Service) publishProgress(ev ProgressEvent) {
	if s.hub != nil {
		s.hub.Broadcast(ChannelDispatchProgress, ev)
	}
	if s.mqtt != nil {
		if err := s.mqtt.PublishJSON(s.mqtt.Topics().DispatchProgress(ev.RunID), ev); err != nil {
			s.logger.Debug("progress publish failed", "run_id", ev.RunID, "error", err)
		}
	}
}

func (s *Service) publishCompleted(ev CompletedEvent) {
	if s.hub != nil {
		s.hub.Broadcast(ChannelDispatchCompleted, ev)
	}
	if s.mqtt != nil {
		if err := s.mqtt.PublishJSON(s.mqtt.Topics().DispatchCompleted(ev.RunID), ev); err != nil {
			s.logger.Warn("completion publish failed", "run_id", ev.RunID, "error", err)
		}
	}
}

func (s *Service) registryChanged(entity, id string) {
	ev := RegistryEvent{Entity: entity, ID: id, At: time.Now().UTC()}
	if s.hub != nil {
		s.hub.Broadcast(ChannelRegistryChanged, ev)
	}
	if s.mqtt != nil {
		if err := s.mqtt.PublishJSON(s.mqtt.Topics().RegistryChanged(), ev); err != nil {
			s.logger.Debug("registry change publish failed", "entity", entity, "error", err)
		}
	}
}

func (s *Service) writeMetrics(o *dispatch.Outcome, source string) {
	if s.metrics == nil {
		return
	}
	s.metrics.WriteRun(influxdb.RunPoint{
		RunID:       o.RunID,
		Source:      source,
		Status:      string(o.Status),
		Requests:    o.Requests,
		FramesTotal: o.FramesTotal,
		FramesSent:  o.FramesSent,
		Succeeded:   o.Succeeded,
		Failed:      o.Failed,
		Skipped:     o.Skipped,
		Duration:    o.Duration,
		CompletedAt: o.CompletedAt,
	})

	entries := make([]influxdb.EntryPoint, 0, len(o.Results))
	for _, r := range o.Results {
		entries = append(entries, influxdb.EntryPoint{
			RunID:       o.RunID,
			Controller:  r.Destination,
			Command:     r.CommandName,
			Status:      string(r.Status),
			FramesSent:  r.FramesSent,
			Repetitions: r.Repetitions,
			CompletedAt: o.CompletedAt,
		})
	}
	if len(entries) > 0 {
		s.metrics.WriteEntries(entries)
	}
}
