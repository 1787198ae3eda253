package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/nerrad567/scanctl/internal/registry"
)

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string          `json:"timestamp"`
	Version       string          `json:"version"`
	UptimeSeconds int64           `json:"uptime_seconds"`
	Runtime       RuntimeMetrics  `json:"runtime"`
	WebSocket     WSMetrics       `json:"websocket"`
	MQTT          BackendMetrics  `json:"mqtt"`
	InfluxDB      BackendMetrics  `json:"influxdb"`
	Registry      RegistryMetrics `json:"registry"`
	Dispatch      DispatchMetrics `json:"dispatch"`
	Database      DatabaseMetrics `json:"database"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int `json:"connected_clients"`
}

// BackendMetrics reports an optional backend's connection state.
type BackendMetrics struct {
	Configured bool `json:"configured"`
	Connected  bool `json:"connected"`
}

// RegistryMetrics contains controller registry statistics.
type RegistryMetrics struct {
	Controllers  int `json:"controllers"`
	BoundUnits   int `json:"bound_units"`
	EnabledUnits int `json:"enabled_units"`
	GlobalMacros int `json:"global_macros"`
}

// DispatchMetrics reports the dispatch engine state. Frame counts come from
// the latest progress event of the active run.
type DispatchMetrics struct {
	Sending     bool   `json:"sending"`
	RunID       string `json:"run_id,omitempty"`
	FramesSent  int    `json:"frames_sent,omitempty"`
	FramesTotal int    `json:"frames_total,omitempty"`
}

// DatabaseMetrics contains database connection pool statistics.
type DatabaseMetrics struct {
	OpenConnections int   `json:"open_connections"`
	InUse           int   `json:"in_use"`
	Idle            int   `json:"idle"`
	WaitCount       int64 `json:"wait_count"`
}

// handleMetrics returns comprehensive system metrics.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
	}

	if s.hub != nil {
		metrics.WebSocket.ConnectedClients = s.hub.ClientCount()
	}
	if s.mqtt != nil {
		metrics.MQTT = BackendMetrics{Configured: true, Connected: s.mqtt.IsConnected()}
	}
	if s.influx != nil {
		metrics.InfluxDB = BackendMetrics{Configured: true, Connected: s.influx.IsConnected()}
	}

	reg := s.console.Registry()
	metrics.Registry = RegistryMetrics{
		Controllers:  len(reg.Controllers()),
		EnabledUnits: len(reg.EnabledUnits()),
		GlobalMacros: len(reg.MacroNames(registry.Global)),
	}
	for _, a := range reg.Units() {
		if a.Bound() {
			metrics.Registry.BoundUnits++
		}
	}

	if run := s.console.Engine().Active(); run != nil {
		metrics.Dispatch = DispatchMetrics{Sending: true, RunID: run.ID}
		if s.hub != nil {
			if p, ok := s.hub.Progress(run.ID); ok {
				metrics.Dispatch.FramesSent, metrics.Dispatch.FramesTotal = p.Current, p.Total
			}
		}
	}

	if s.db != nil {
		dbStats := s.db.Stats()
		metrics.Database = DatabaseMetrics{
			OpenConnections: dbStats.OpenConnections,
			InUse:           dbStats.InUse,
			Idle:            dbStats.Idle,
			WaitCount:       dbStats.WaitCount,
		}
	}

	writeJSON(w, http.StatusOK, metrics)
}
