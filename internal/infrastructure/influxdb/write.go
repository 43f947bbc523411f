package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by chimed.
const (
	MeasurementDoorbellEvents  = "doorbell_events"
	MeasurementConnectionState = "connection_state"
)

// WriteDoorbellEvent records a received doorbell message.
//
// Parameters:
//   - topic: Subscription topic the message arrived on (tag)
//   - payload: Message text (field)
//   - at: Receive time
func (c *Client) WriteDoorbellEvent(topic, payload string, at time.Time) {
	c.WritePointWithTime(
		MeasurementDoorbellEvents,
		map[string]string{"topic": topic},
		map[string]interface{}{"payload": payload},
		at,
	)
}

// WriteConnectionState records a session state transition.
//
// Parameters:
//   - state: State name, e.g. "connected_subscribed" (tag)
//   - code: Numeric state for graphing (field)
//   - at: Transition time
func (c *Client) WriteConnectionState(state string, code int, at time.Time) {
	c.WritePointWithTime(
		MeasurementConnectionState,
		map[string]string{"state": state},
		map[string]interface{}{"code": code},
		at,
	)
}

// WritePointWithTime writes a point with an explicit timestamp.
// The write is non-blocking; data is batched and sent asynchronously.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
