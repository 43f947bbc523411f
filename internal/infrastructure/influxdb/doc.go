// Package influxdb provides InfluxDB connectivity for chimed telemetry.
//
// It wraps the official influxdb-client-go v2 library for connection
// management, batched point writes and health checks.
//
// # Purpose
//
// Optional time-series storage for:
//   - Doorbell events (every received message)
//   - Connection state transitions
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WriteDoorbellEvent("doorbell/events", "ring", time.Now())
//
// # Error Handling
//
// Writes are non-blocking; batch errors are delivered to the SetOnError
// callback. Connection and health check errors are returned directly.
package influxdb
