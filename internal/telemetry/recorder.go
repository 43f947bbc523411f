package telemetry

import (
	"time"

	"github.com/virtualchime/chime-core/internal/appstate"
)

// PointWriter writes telemetry points without blocking.
// Satisfied by *influxdb.Client.
type PointWriter interface {
	WriteDoorbellEvent(topic, payload string, at time.Time)
	WriteConnectionState(state string, code int, at time.Time)
}

// TopicFunc returns the topic messages are currently received on.
type TopicFunc func() string

// Recorder turns model notifications into telemetry points.
type Recorder struct {
	writer PointWriter
	topic  TopicFunc
	now    func() time.Time
}

// NewRecorder creates a Recorder. topic may be nil, in which case
// doorbell events are written with an empty topic tag.
func NewRecorder(writer PointWriter, topic TopicFunc) *Recorder {
	if topic == nil {
		topic = func() string { return "" }
	}
	return &Recorder{
		writer: writer,
		topic:  topic,
		now:    time.Now,
	}
}

// Attach starts recording changes of model and returns a function that
// stops it.
func (r *Recorder) Attach(model *appstate.Model) (stop func()) {
	return model.Observe(r.Record)
}

// Record writes the point for one model change. Cleared history is not
// recorded.
func (r *Recorder) Record(c appstate.Change, _ appstate.Snapshot) {
	at := r.now()
	switch c.Kind {
	case appstate.StateChanged:
		r.writer.WriteConnectionState(c.State.Name(), int(c.State), at)
	case appstate.MessageReceived:
		r.writer.WriteDoorbellEvent(r.topic(), c.Message, at)
	}
}
