// Package telemetry records doorbell activity as time-series points.
//
// A Recorder observes the session's appstate.Model and writes one point
// per received message and one per connection state change. Writes go
// through a PointWriter, normally the non-blocking InfluxDB client, so
// recording never stalls the session event loop.
//
// Usage:
//
//	rec := telemetry.NewRecorder(influxClient, m.Topic)
//	stop := rec.Attach(model)
//	defer stop()
package telemetry
