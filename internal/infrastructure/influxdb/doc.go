// Package influxdb writes dispatch metrics to InfluxDB v2.
//
// Each finished run produces one dispatch_runs point (tags: source, status)
// and one dispatch_entries point per entry (tags: controller, command,
// status). Writes are non-blocking and batched per the influxdb section of
// config.yaml; asynchronous write failures are reported through SetOnError.
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // metrics off
//	}
//	client.WriteRun(influxdb.RunPoint{RunID: id, Status: "completed", FramesSent: 12})
package influxdb
